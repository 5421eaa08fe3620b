package mcast

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/oguerrier/loopcast"
)

// KeepaliveConn is the out-of-band liveness channel on port+1. Sender-side
// it is receive-only and drained opportunistically; receiver-side it is
// send-only, sharing the data socket's TTL/loopback settings.
type KeepaliveConn struct {
	conn net.PacketConn
	dest *net.UDPAddr // set on the receiver (send) side only
}

// NewSenderKeepaliveConn opens the keepalive socket in receive mode: bound
// to port+1, joined to group so it sees receivers' heartbeats.
func NewSenderKeepaliveConn(group net.IP, port int, report loopcast.ReportStatsFn) (*KeepaliveConn, error) {
	udp, fd, err := openSocket(port + 1)
	if err != nil {
		return nil, err
	}
	enableReusePort(fd)
	if err := joinGroup(fd, group); err != nil {
		udp.Close()
		return nil, err
	}
	return &KeepaliveConn{conn: wrap(udp, report)}, nil
}

// NewReceiverKeepaliveConn opens the keepalive socket in send mode, with
// the same TTL/loopback settings as the data socket, targeting port+1.
func NewReceiverKeepaliveConn(group net.IP, port int, ifaceAddr net.IP, report loopcast.ReportStatsFn) (*KeepaliveConn, error) {
	udp, fd, err := openSocket(0)
	if err != nil {
		return nil, err
	}
	if err := configureSendSide(fd, ifaceAddr); err != nil {
		udp.Close()
		return nil, err
	}
	return &KeepaliveConn{
		conn: wrap(udp, report),
		dest: &net.UDPAddr{IP: group, Port: port + 1},
	}, nil
}

// Send transmits one keepalive word: (value<<16)|id, network byte order.
func (k *KeepaliveConn) Send(id uint16, value uint8) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(value)<<16|uint32(id))
	_, err := k.conn.WriteTo(b[:], k.dest)
	return err
}

// DrainOnce reads at most one pending keepalive without blocking beyond an
// immediate deadline, standing in for the original's O_NONBLOCK recvfrom
// drain loop. ok is false when nothing was pending.
func (k *KeepaliveConn) DrainOnce() (id uint16, value uint8, ok bool, err error) {
	if err := k.conn.SetReadDeadline(time.Now()); err != nil {
		return 0, 0, false, err
	}
	var b [4]byte
	n, _, readErr := k.conn.ReadFrom(b[:])
	if readErr != nil {
		var ne net.Error
		if errors.As(readErr, &ne) && ne.Timeout() {
			return 0, 0, false, nil
		}
		return 0, 0, false, readErr
	}
	if n != 4 {
		return 0, 0, false, fmt.Errorf("mcast: short keepalive datagram (%d bytes)", n)
	}
	word := binary.BigEndian.Uint32(b[:])
	return uint16(word & 0xffff), uint8(word >> 16), true, nil
}

// Close shuts down the socket.
func (k *KeepaliveConn) Close() error {
	return k.conn.Close()
}
