// Package discovery lists the devices a capture session can bind to.
package discovery

import (
	"errors"
	"fmt"
	"net"

	"github.com/google/gopacket/pcap"
)

// ErrNoInterface is returned by Default when no device is usable.
var ErrNoInterface = errors.New("no capture interface with an IPv4 address is up")

// Replaced in tests so they never touch libpcap or the OS.
var (
	findAllDevs     = pcap.FindAllDevs
	interfaceByName = net.InterfaceByName
)

// Interfaces returns every device visible to libpcap, enriched with the
// link information the OS reports for it.
func Interfaces() ([]Interface, error) {
	devices, err := findAllDevs()
	if err != nil {
		return nil, fmt.Errorf("could not list capture devices: %v", err)
	}

	out := make([]Interface, 0, len(devices))
	for _, d := range devices {
		iface := Interface{Name: d.Name, Description: d.Description}
		for _, a := range d.Addresses {
			if a.IP != nil {
				iface.Addresses = append(iface.Addresses, a.IP)
			}
		}
		if link, err := interfaceByName(d.Name); err == nil {
			iface.MAC = link.HardwareAddr
			iface.Up = link.Flags&net.FlagUp != 0
			iface.Loopback = link.Flags&net.FlagLoopback != 0
		}
		out = append(out, iface)
	}
	return out, nil
}

// Default picks the first device that is up, not loopback and has an IPv4
// address. It is used when no interface is configured.
func Default() (Interface, error) {
	ifaces, err := Interfaces()
	if err != nil {
		return Interface{}, err
	}
	for _, iface := range ifaces {
		if iface.Up && !iface.Loopback && iface.IPv4() != nil {
			return iface, nil
		}
	}
	return Interface{}, ErrNoInterface
}
