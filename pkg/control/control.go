// Package control provides the sender's operator control-event inbox, the
// explicit replacement for the original program's SIGUSR1 ("stop waiting
// for clients") and SIGUSR2 ("dump census") signal handlers.
package control

import (
	"os"
	"os/signal"
	"syscall"
)

// Event is a discrete operator-triggered control event.
type Event int

const (
	// StopWaiting ends await-quorum regardless of the live client count.
	StopWaiting Event = iota
	// DumpCensus requests an immediate census dump.
	DumpCensus
)

// Inbox is the channel the sender loop receives control events from. It
// is buffered so a signal delivered while the loop is busy is not lost.
type Inbox chan Event

// NewInbox returns a ready-to-use Inbox.
func NewInbox() Inbox {
	return make(Inbox, 8)
}

// WireSignals arranges for SIGUSR1 to emit StopWaiting and SIGUSR2 to emit
// DumpCensus on inbox, preserving the original program's operator-facing
// signal numbers as the default wiring even though the sender loop itself
// only ever observes channel receives. Returns a function that stops the
// signal relay.
func WireSignals(inbox Inbox) (stop func()) {
	ch := make(chan os.Signal, 8)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGUSR2)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-ch:
				switch sig {
				case syscall.SIGUSR1:
					inbox <- StopWaiting
				case syscall.SIGUSR2:
					inbox <- DumpCensus
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
