// Package sender implements the broadcast-side state machine described by
// loopsend.c's main(): init, optional await-quorum, optional bandwidth
// pacing, the broadcast loop itself, and its termination predicates.
package sender

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/oguerrier/loopcast"
	"github.com/oguerrier/loopcast/pkg/census"
	"github.com/oguerrier/loopcast/pkg/control"
	"github.com/oguerrier/loopcast/pkg/mcast"
	"github.com/sirupsen/logrus"
)

// Sender runs one broadcast session: a payload read once from an input
// stream, then looped over the data transport until the census goes
// empty or a deadline elapses.
type Sender struct {
	opts   *loopcast.Options
	buf    *loopcast.Buffer
	data   *mcast.DataConn
	keep   *mcast.KeepaliveConn
	census *census.Table
	inbox  control.Inbox
	log    *logrus.Entry
}

// New builds a Sender from opts, opening its data (and, if keepalives are
// enabled, keepalive) sockets. ifaceAddr is the resolved IPv4 address of
// opts.Interface, used as the sockets' outgoing interface. report, if
// non-nil, instruments both sockets via loopcast.StatsConn.
func New(opts *loopcast.Options, ifaceAddr net.IP, inbox control.Inbox, report loopcast.ReportStatsFn, log *logrus.Entry) (*Sender, error) {
	data, err := mcast.NewSenderDataConn(opts.MulticastAddr, opts.Port, ifaceAddr, report)
	if err != nil {
		return nil, fmt.Errorf("sender: data socket: %w", err)
	}

	s := &Sender{
		opts:  opts,
		buf:   loopcast.NewBuffer(opts.MaxChunks),
		data:  data,
		inbox: inbox,
		log:   log,
	}

	if opts.Keepalives {
		keep, err := mcast.NewSenderKeepaliveConn(opts.MulticastAddr, opts.Port, report)
		if err != nil {
			data.Close()
			return nil, fmt.Errorf("sender: keepalive socket: %w", err)
		}
		s.keep = keep
		s.census = census.NewTable(time.Duration(opts.MaxWait) * time.Second)
	}

	return s, nil
}

// Census exposes the census table, for a Prometheus collector or manual
// inspection. Nil if keepalives are disabled.
func (s *Sender) Census() *census.Table { return s.census }

// Run reads the payload from r, then drives the state machine to
// completion. It returns once the sender has decided, by its own
// predicates, to stop.
func (s *Sender) Run(ctx context.Context, r io.Reader) error {
	if err := s.buf.InitFromReader(r, s.opts.ReturnValue); err != nil {
		return fmt.Errorf("sender: buffer init: %w", err)
	}

	stopWait := make(chan struct{}, 1)
	controlDone := make(chan struct{})
	relayCtx, stopRelay := context.WithCancel(ctx)
	go func() {
		defer close(controlDone)
		s.relayControlEvents(relayCtx, stopWait)
	}()
	defer func() {
		stopRelay()
		<-controlDone
	}()

	if s.opts.ClientsNumber > 0 {
		if err := s.awaitQuorum(ctx, stopWait); err != nil {
			return err
		}
	}

	if s.opts.Verbose {
		s.log.Info("start main loop")
	}
	if s.opts.Output != "" {
		s.dumpCensus()
	}

	var pacer *time.Ticker
	if s.opts.BWLimit > 0 {
		interval := PacerInterval(s.opts.BWLimit)
		if interval <= 0 {
			s.log.Warn("bwlimit sleep value is 0µs, bwlimit deactivated")
		} else {
			pacer = time.NewTicker(interval)
			defer pacer.Stop()
		}
	}

	startTime := time.Now()
	for loop := uint32(1); ; loop++ {
		if s.opts.Verbose {
			s.log.Debugf("loop %d :", loop)
		}
		stop, err := s.broadcastOnce(pacer)
		if err != nil {
			return err
		}
		if stop {
			break
		}
		if s.keep != nil {
			if s.drainAndCensus() == 0 {
				if s.opts.Verbose {
					s.log.Info("no keepalive received, stop sending")
				}
				break
			}
		} else if s.opts.MaxWait > 0 && time.Since(startTime) > time.Duration(s.opts.MaxWait)*time.Second {
			if s.opts.Verbose {
				s.log.Infof("max time reached after %s, stop sending", time.Since(startTime).Round(time.Second))
			}
			break
		}
	}

	s.data.Close()
	if s.keep != nil {
		s.keep.Close()
	}
	s.buf.Release()
	return nil
}

// broadcastOnce sends every chunk once, pacing between sends if pacer is
// armed and checking the census after every packet if keepalives are
// enabled. It returns stop=true if the census went empty mid-loop.
func (s *Sender) broadcastOnce(pacer *time.Ticker) (stop bool, err error) {
	n := s.buf.NChunks()
	for i := uint32(0); i < n; i++ {
		msg, err := loopcast.Frame(s.buf, i)
		if err != nil {
			return false, fmt.Errorf("sender: frame chunk %d: %w", i, err)
		}
		if err := s.data.Send(msg); err != nil {
			return false, fmt.Errorf("sender: send: %w", err)
		}
		if pacer != nil {
			<-pacer.C
		}
		if s.keep != nil {
			if s.drainAndCensus() == 0 {
				return true, nil
			}
		}
	}
	return false, nil
}

// awaitQuorum blocks, polling the census once a second, until the live
// count reaches opts.ClientsNumber or a StopWaiting control event arrives.
func (s *Sender) awaitQuorum(ctx context.Context, stopWait <-chan struct{}) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		live := s.drainAndCensus()
		if s.opts.Verbose {
			s.log.Infof("expecting %d clients, found %d", s.opts.ClientsNumber, live)
		}
		if live >= s.opts.ClientsNumber {
			return nil
		}
		select {
		case <-stopWait:
			if s.opts.Verbose {
				s.log.Infof("stop-waiting received, starting with %d clients, where %d were expected", live, s.opts.ClientsNumber)
			}
			return nil
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drainAndCensus pulls every pending keepalive into the census table and
// returns the resulting live count.
func (s *Sender) drainAndCensus() int {
	for {
		id, value, ok, err := s.keep.DrainOnce()
		if err != nil {
			s.log.Warnf("keepalive drain: %v", err)
			break
		}
		if !ok {
			break
		}
		now := time.Now()
		s.census.Update(id, value, now)
		if s.opts.Verbose {
			s.log.Debugf("received keepalive from client %d.%d, with value %d", id/256, id%256, value)
		}
	}
	return s.census.DrainAndCensus(time.Now())
}

// dumpCensus writes the census to opts.Output, or standard error if unset
// or unopenable.
func (s *Sender) dumpCensus() {
	if s.census == nil {
		s.log.Warn("no keepalives")
		return
	}
	w := io.Writer(os.Stderr)
	if s.opts.Output != "" {
		f, err := os.Create(s.opts.Output)
		if err != nil {
			s.log.Warnf("dump census: %v", err)
		} else {
			defer f.Close()
			w = f
		}
	}
	if _, err := s.census.Dump(w); err != nil {
		s.log.Warnf("dump census: %v", err)
	}
}

// relayControlEvents runs for the sender's lifetime: it fires dumpCensus
// immediately on a DumpCensus event and forwards StopWaiting events to
// awaitQuorum's stopWait channel.
func (s *Sender) relayControlEvents(ctx context.Context, stopWait chan<- struct{}) {
	for {
		select {
		case ev, ok := <-s.inbox:
			if !ok {
				return
			}
			switch ev {
			case control.StopWaiting:
				select {
				case stopWait <- struct{}{}:
				default:
				}
			case control.DumpCensus:
				s.dumpCensus()
			}
		case <-ctx.Done():
			return
		}
	}
}
