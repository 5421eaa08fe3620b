//go:build linux

package netif

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// primaryIPv4 resolves the IPv4 address bound to the named interface via
// the SIOCGIFADDR ioctl, the same call network_init() used to derive a
// receiver's default client id.
func primaryIPv4(name string) (uint32, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return 0, fmt.Errorf("netif: socket: %w", err)
	}
	defer unix.Close(fd)

	req, err := unix.NewIfreq(name)
	if err != nil {
		return 0, fmt.Errorf("netif: ifreq %s: %w", name, err)
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFADDR, req); err != nil {
		return 0, fmt.Errorf("netif: SIOCGIFADDR %s: %w", name, err)
	}
	addr4, err := req.Inet4Addr()
	if err != nil {
		return 0, fmt.Errorf("netif: %s has no ipv4 address: %w", name, err)
	}
	return uint32(addr4[0])<<24 | uint32(addr4[1])<<16 | uint32(addr4[2])<<8 | uint32(addr4[3]), nil
}
