package mcast

import (
	"fmt"
	"net"
	"time"

	"github.com/oguerrier/loopcast"
)

// DataConn is the data-plane multicast transport: one Message per
// datagram, at the configured group/port.
type DataConn struct {
	conn net.PacketConn
	dest *net.UDPAddr // set on the sender side only
}

// NewSenderDataConn opens the data socket in send mode: an ephemeral local
// port with outgoing interface, TTL and loopback configured, ready to
// transmit to group:port. report, if non-nil, wraps the socket in a
// loopcast.StatsConn so its traffic is observable.
func NewSenderDataConn(group net.IP, port int, ifaceAddr net.IP, report loopcast.ReportStatsFn) (*DataConn, error) {
	udp, fd, err := openSocket(0)
	if err != nil {
		return nil, err
	}
	if err := configureSendSide(fd, ifaceAddr); err != nil {
		udp.Close()
		return nil, err
	}
	return &DataConn{
		conn: wrap(udp, report),
		dest: &net.UDPAddr{IP: group, Port: port},
	}, nil
}

// NewReceiverDataConn opens the data socket in receive mode: bound to
// port, joined to group.
func NewReceiverDataConn(group net.IP, port int, report loopcast.ReportStatsFn) (*DataConn, error) {
	udp, fd, err := openSocket(port)
	if err != nil {
		return nil, err
	}
	enableReusePort(fd)
	if err := joinGroup(fd, group); err != nil {
		udp.Close()
		return nil, err
	}
	return &DataConn{conn: wrap(udp, report)}, nil
}

// Send frames and transmits one data message.
func (d *DataConn) Send(m loopcast.Message) error {
	_, err := d.conn.WriteTo(m.Marshal(), d.dest)
	return err
}

// Recv blocks (up to any deadline set via SetReadDeadline) for the next
// data message, decoding it into a Message.
func (d *DataConn) Recv(buf []byte) (loopcast.Message, error) {
	n, _, err := d.conn.ReadFrom(buf)
	if err != nil {
		return loopcast.Message{}, err
	}
	if n != loopcast.WireSize {
		return loopcast.Message{}, fmt.Errorf("mcast: short datagram (%d bytes, want %d)", n, loopcast.WireSize)
	}
	return loopcast.UnmarshalMessage(buf[:n])
}

// SetReadDeadline bounds the next Recv call. The receiver uses this to
// keep its blocking receive interruptible by the keepalive scheduler's
// timer ticks, in place of the original's SIGALRM-interrupted recvfrom.
func (d *DataConn) SetReadDeadline(t time.Time) error {
	return d.conn.SetReadDeadline(t)
}

// Close shuts down the socket.
func (d *DataConn) Close() error {
	return d.conn.Close()
}

// wrap optionally instruments pc with loopcast.StatsConn; a nil report
// leaves the connection untouched.
func wrap(pc net.PacketConn, report loopcast.ReportStatsFn) net.PacketConn {
	if report == nil {
		return pc
	}
	return loopcast.WrapPacketConn(pc, report)
}
