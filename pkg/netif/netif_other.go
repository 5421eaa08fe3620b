//go:build !linux

package netif

import (
	"fmt"
	"net"
)

// primaryIPv4 is the portable fallback for platforms without SIOCGIFADDR:
// it walks the interface's configured addresses looking for the first
// IPv4 one.
func primaryIPv4(name string) (uint32, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return 0, fmt.Errorf("netif: %w", err)
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return 0, fmt.Errorf("netif: %w", err)
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipnet.IP.To4()
		if ip4 == nil {
			continue
		}
		return uint32(ip4[0])<<24 | uint32(ip4[1])<<16 | uint32(ip4[2])<<8 | uint32(ip4[3]), nil
	}
	return 0, fmt.Errorf("netif: %s has no ipv4 address", name)
}
