// Package mcast implements loopcast's two UDP multicast transports: the
// data channel (port) and the keepalive channel (port+1).
package mcast

import (
	"fmt"
	"net"

	"github.com/docker/docker/pkg/parsers/kernel"
	"github.com/higebu/netfd"
	"golang.org/x/sys/unix"
)

// multicastTTL matches the original program's fixed TTL of 3 hops.
const multicastTTL = 3

// openSocket opens a UDP4 socket bound to the given local port (0 for an
// ephemeral send-side port) and returns both the net.UDPConn and its raw
// fd, extracted the same way the teacher's Prometheus collector pulls a
// raw fd out of a net.Conn to apply socket options past what net exposes.
func openSocket(port int) (*net.UDPConn, int, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, 0, fmt.Errorf("mcast: listen :%d: %w", port, err)
	}
	return conn, netfd.GetFdFromConn(conn), nil
}

// joinGroup applies IP_ADD_MEMBERSHIP for group on INADDR_ANY, the
// receive-side counterpart of the original network_init()'s imreq setup.
func joinGroup(fd int, group net.IP) error {
	var mreq unix.IPMreq
	copy(mreq.Multiaddr[:], group.To4())
	if err := unix.SetsockoptIPMreq(fd, unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, &mreq); err != nil {
		return fmt.Errorf("mcast: IP_ADD_MEMBERSHIP: %w", err)
	}
	return nil
}

// configureSendSide applies the sender-facing socket options network_init()
// sets before transmitting: outgoing interface, TTL, loopback enabled.
func configureSendSide(fd int, ifaceAddr net.IP) error {
	if ifaceAddr != nil {
		var addr [4]byte
		copy(addr[:], ifaceAddr.To4())
		if err := unix.SetsockoptInet4Addr(fd, unix.IPPROTO_IP, unix.IP_MULTICAST_IF, addr); err != nil {
			return fmt.Errorf("mcast: IP_MULTICAST_IF: %w", err)
		}
	}
	if err := unix.SetsockoptByte(fd, unix.IPPROTO_IP, unix.IP_MULTICAST_TTL, multicastTTL); err != nil {
		return fmt.Errorf("mcast: IP_MULTICAST_TTL: %w", err)
	}
	if err := unix.SetsockoptByte(fd, unix.IPPROTO_IP, unix.IP_MULTICAST_LOOP, 1); err != nil {
		return fmt.Errorf("mcast: IP_MULTICAST_LOOP: %w", err)
	}
	return nil
}

// enableReusePort best-effort applies SO_REUSEPORT (Linux 3.9+) to fd.
// Callers apply it after openSocket has already bound the port, so it does
// not let a second process that also opens through openSocket bind the same
// port. Failure is not fatal: older kernels simply skip the option.
func enableReusePort(fd int) {
	ok, err := kernel.CheckKernelVersion(3, 9, 0)
	if err != nil || !ok {
		return
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
}
