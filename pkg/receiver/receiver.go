// Package receiver implements the receive-side state machine described by
// looprecv.c's main(): an optional keepalive scheduler running alongside an
// interruptible receive/accept loop, with exit-on-value and completion
// exits.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/oguerrier/loopcast"
	"github.com/oguerrier/loopcast/pkg/mcast"
	"github.com/oguerrier/loopcast/pkg/netif"
	"github.com/oguerrier/loopcast/pkg/statushook"
	"github.com/sirupsen/logrus"
)

// dumpProbeChunks is the packet-count cadence at which IsComplete is
// probed: every 2MiB worth of chunks, matching the original's cost-
// amortized scan cadence (probing on every packet would dominate the
// receive loop for large payloads).
const dumpProbeChunks = (2 * 1024 * 1024) / loopcast.ChunkSize

// ErrExitOnValue is returned by Run when the receiver was configured in
// exit-on-value mode and accepted its triggering chunk. ReturnValue holds
// the process exit code to report; no payload is written.
type ErrExitOnValue struct {
	ReturnValue uint8
}

func (e *ErrExitOnValue) Error() string {
	return fmt.Sprintf("loopcast: exit-on-value, return code %d", e.ReturnValue)
}

// Receiver runs one receive session against the data (and, if keepalives
// are enabled, keepalive) transports, reassembling into a Buffer.
type Receiver struct {
	opts     *loopcast.Options
	buf      *loopcast.Buffer
	data     *mcast.DataConn
	keep     *mcast.KeepaliveConn
	hook     *statushook.Hook
	clientID uint16
	log      *logrus.Entry
}

// New builds a Receiver from opts. ifaceAddr is the resolved IPv4 address
// of opts.Interface: it both seeds the default client id (unless
// opts.ClientsNumber overrides it) and configures the keepalive socket's
// outgoing interface. report, if non-nil, instruments both sockets via
// loopcast.StatsConn.
func New(opts *loopcast.Options, ifaceAddr net.IP, report loopcast.ReportStatsFn, log *logrus.Entry) (*Receiver, error) {
	data, err := mcast.NewReceiverDataConn(opts.MulticastAddr, opts.Port, report)
	if err != nil {
		return nil, fmt.Errorf("receiver: data socket: %w", err)
	}

	r := &Receiver{
		opts: opts,
		buf:  loopcast.NewBuffer(opts.MaxChunks),
		data: data,
		hook: statushook.New(opts.StatusCmd, log),
		log:  log,
	}

	if opts.ClientsNumber > 0 {
		r.clientID = uint16(opts.ClientsNumber)
	} else {
		r.clientID = netif.DefaultClientID(ipToUint32(ifaceAddr))
	}

	if opts.Keepalives {
		keep, err := mcast.NewReceiverKeepaliveConn(opts.MulticastAddr, opts.Port, ifaceAddr, report)
		if err != nil {
			data.Close()
			return nil, fmt.Errorf("receiver: keepalive socket: %w", err)
		}
		r.keep = keep
	}

	return r, nil
}

// Run drives the receive loop until the payload is complete or, in
// exit-on-value mode, until the triggering chunk is accepted. On normal
// completion it flushes the reassembled payload to w and returns the
// returnvalue stamped into chunk 0. In exit-on-value mode it returns
// *ErrExitOnValue instead, and w is never written.
func (r *Receiver) Run(ctx context.Context, w io.Writer) (uint8, error) {
	defer r.teardown()

	var keepaliveDeadline time.Time
	if r.keep != nil {
		if err := r.keep.Send(r.clientID, r.opts.ReturnValue); err != nil {
			r.log.Warnf("keepalive send: %v", err)
		}
		keepaliveDeadline = time.Now().Add(r.maxWait())
	}

	var accepted uint32
	firstPacket := true
	for {
		deadline := r.nextDeadline(keepaliveDeadline)
		if err := r.data.SetReadDeadline(deadline); err != nil {
			return 0, fmt.Errorf("receiver: set deadline: %w", err)
		}

		msg, err := r.data.Recv(make([]byte, loopcast.WireSize))
		if err != nil {
			if isTimeout(err) {
				if r.keep != nil && !time.Now().Before(keepaliveDeadline) {
					if sendErr := r.keep.Send(r.clientID, r.opts.ReturnValue); sendErr != nil {
						r.log.Warnf("keepalive send: %v", sendErr)
					}
					keepaliveDeadline = time.Now().Add(r.maxWait())
				}
				select {
				case <-ctx.Done():
					return 0, ctx.Err()
				default:
				}
				continue
			}
			return 0, fmt.Errorf("receiver: recv: %w", err)
		}

		if firstPacket {
			firstPacket = false
			r.hook.Fire(0)
		}

		result := r.buf.Accept(msg)
		if result == loopcast.AcceptCorrupt || result == loopcast.AcceptOutOfRange {
			if r.opts.Verbose {
				r.log.Debugf("chunk %d: %s", msg.Chunk.N, result)
			}
			continue
		}
		if result == loopcast.AcceptFresh && r.buf.NewLoopDetected && r.opts.Verbose {
			r.log.Info("entering a new receive loop from sender")
		}

		if r.opts.ExitOnValue {
			return msg.Chunk.ReturnValue, &ErrExitOnValue{ReturnValue: msg.Chunk.ReturnValue}
		}

		// Counts every accepted packet, fresh or duplicate, matching the
		// original's loop++ on any successful buffer_recv.
		accepted++
		if accepted%dumpProbeChunks == 0 && r.buf.IsComplete() {
			returnValue := r.buf.Chunk0ReturnValue()
			if err := r.buf.Flush(w); err != nil {
				return 0, fmt.Errorf("receiver: flush: %w", err)
			}
			r.hook.Fire(100)
			if r.opts.Verbose {
				r.log.Info("successfully received")
			}
			return returnValue, nil
		}
	}
}

// maxWait is the keepalive emission period as a time.Duration.
func (r *Receiver) maxWait() time.Duration {
	if r.opts.MaxWait <= 0 {
		return loopcast.DefaultMaxWait * time.Second
	}
	return time.Duration(r.opts.MaxWait) * time.Second
}

// nextDeadline is the earlier of "no deadline" and the next keepalive
// tick, so the data receive stays interruptible by the keepalive
// scheduler the way the original's SIGALRM interrupted its blocking
// recvfrom.
func (r *Receiver) nextDeadline(keepaliveDeadline time.Time) time.Time {
	if r.keep == nil {
		return time.Time{}
	}
	return keepaliveDeadline
}

func (r *Receiver) teardown() {
	r.data.Close()
	if r.keep != nil {
		r.keep.Close()
	}
	r.buf.Release()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func ipToUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
}
