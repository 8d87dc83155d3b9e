package discovery

import (
	"net"
)

// Interface represents a capture device
type Interface struct {
	Name        string
	Description string
	Addresses   []net.IP
	MAC         net.HardwareAddr // empty when the OS has no matching link
	Up          bool
	Loopback    bool
}

// IPv4 returns the first IPv4 address of the device, or nil.
func (i Interface) IPv4() net.IP {
	for _, a := range i.Addresses {
		if ip4 := a.To4(); ip4 != nil {
			return ip4
		}
	}
	return nil
}
