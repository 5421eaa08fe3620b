package loopcast

import (
	"net"
	"sync/atomic"
	"time"
)

const (
	ConnStatsOpen  = 0
	ConnStatsClose = 1
)

// ConnStatsStateMap names the states ReportStatsFn is invoked with.
var ConnStatsStateMap = map[int]string{
	ConnStatsOpen:  "open",
	ConnStatsClose: "close",
}

// ReportStatsFn is invoked on open and close of a StatsConn. It mirrors
// the teacher's sockstats.ReportStatsFn hook shape.
type ReportStatsFn func(c *StatsConn, state int)

// StatsConn wraps the net.PacketConn backing a data or keepalive
// transport, counting datagrams and bytes in each direction and
// reporting them through an operator-supplied callback. This is the same
// wrap/report shape sockstats.Conn uses to surface TCP_INFO telemetry,
// adapted here to UDP multicast traffic: there is no tcp_info to gather,
// so the counters are plain send/receive byte and packet tallies instead.
type StatsConn struct {
	net.PacketConn
	reportStats ReportStatsFn
	OpenedAt    int64
	ClosedAt    int64
	SentBytes   int64
	RecvBytes   int64
	SentPackets int64
	RecvPackets int64
}

// WrapPacketConn wraps pc, reporting an open event immediately.
func WrapPacketConn(pc net.PacketConn, report ReportStatsFn) *StatsConn {
	w := &StatsConn{
		PacketConn:  pc,
		reportStats: report,
		OpenedAt:    time.Now().UnixNano(),
	}
	if w.reportStats != nil {
		w.reportStats(w, ConnStatsOpen)
	}
	return w
}

// ReadFrom wraps the underlying ReadFrom and tracks received bytes.
func (w *StatsConn) ReadFrom(b []byte) (int, net.Addr, error) {
	n, addr, err := w.PacketConn.ReadFrom(b)
	if err == nil {
		atomic.AddInt64(&w.RecvBytes, int64(n))
		atomic.AddInt64(&w.RecvPackets, 1)
	}
	return n, addr, err
}

// WriteTo wraps the underlying WriteTo and tracks sent bytes.
func (w *StatsConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	n, err := w.PacketConn.WriteTo(b, addr)
	if err == nil {
		atomic.AddInt64(&w.SentBytes, int64(n))
		atomic.AddInt64(&w.SentPackets, 1)
	}
	return n, err
}

// Close invokes the report callback with a close event before closing the
// underlying connection.
func (w *StatsConn) Close() error {
	w.ClosedAt = time.Now().UnixNano()
	if w.reportStats != nil {
		w.reportStats(w, ConnStatsClose)
	}
	return w.PacketConn.Close()
}
