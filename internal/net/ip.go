package net

import (
	"fmt"
	"net"
)

// GetOutgoingIP finds the preferred local IP address for the relay to share.
func GetOutgoingIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		// No route out; fall back to the local interfaces.
		return firstIPv4()
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

func firstIPv4() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.To4().String(), nil
			}
		}
	}
	return "127.0.0.1", nil
}

// ShareLink is the document URL other users open to join roomID. The room is
// the last path segment.
func ShareLink(host string, port int, roomID string) string {
	return fmt.Sprintf("http://%s/board/%s", net.JoinHostPort(host, fmt.Sprint(port)), roomID)
}
