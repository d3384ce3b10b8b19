package server

import (
	"fmt"
	"net"
	"strconv"
)

// clientURLs lists the WebSocket URLs devices on the local network can use to
// reach the agent: one per IPv4 address of every interface that is up.
func clientURLs(port int) ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	urls := []string{}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipNet.IP.To4(); ip4 != nil && !ip4.IsLoopback() {
				host := net.JoinHostPort(ip4.String(), strconv.Itoa(port))
				urls = append(urls, "ws://"+host+"/ws")
			}
		}
	}
	return urls, nil
}
