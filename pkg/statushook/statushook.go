// Package statushook fires the receiver's optional status-hook program,
// the Go replacement for the original program's do_statuscmd system() call.
package statushook

import (
	"os/exec"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Hook fires an external program with the completion percent as its sole
// argument. Invocation is fire-and-forget: best effort, never blocking the
// receive loop, failures only logged.
type Hook struct {
	cmd string
	log *logrus.Entry
}

// New returns a Hook for cmd. An empty cmd makes Fire a no-op, matching
// the original's "statuscmd set means call it" guard.
func New(cmd string, log *logrus.Entry) *Hook {
	return &Hook{cmd: cmd, log: log}
}

// Fire invokes the hook with percent, in the background, if a command was
// configured. Per spec, only 0%% and 100%% are ever passed: step
// granularity between them is reserved and unimplemented.
func (h *Hook) Fire(percent int) {
	if h == nil || h.cmd == "" {
		return
	}
	cmd := exec.Command(h.cmd, strconv.Itoa(percent))
	go func() {
		if err := cmd.Run(); err != nil {
			h.log.Warnf("status hook %s %d: %v", h.cmd, percent, err)
		}
	}()
}
