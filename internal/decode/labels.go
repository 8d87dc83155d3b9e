package decode

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Protocol returns the label of the most specific layer decoded.
func (f Fields) Protocol() string {
	switch {
	case f.DNS != nil:
		return "DNS"
	case f.Transport == TransportTCP:
		return "TCP"
	case f.Transport == TransportUDP:
		return "UDP"
	case f.ICMP != "":
		return "ICMP"
	case f.ARP != "":
		return "ARP"
	case f.IPVersion == 4:
		return "IPv4"
	case f.IPVersion == 6:
		return "IPv6"
	case f.HasEthernet():
		return "Ethernet"
	default:
		return "Unknown"
	}
}

// Source labels the sender: IP (with port), else MAC, else N/A.
func (f Fields) Source() string {
	return endpoint(f.SrcIP, f.SrcPort, f.Transport != TransportNone, f.EthSrc)
}

// Destination labels the receiver like Source.
func (f Fields) Destination() string {
	return endpoint(f.DstIP, f.DstPort, f.Transport != TransportNone, f.EthDst)
}

func endpoint(ip net.IP, port uint16, hasPort bool, mac net.HardwareAddr) string {
	switch {
	case ip != nil && hasPort:
		return net.JoinHostPort(ip.String(), strconv.Itoa(int(port)))
	case ip != nil:
		return ip.String()
	case mac != nil:
		return mac.String()
	default:
		return "N/A"
	}
}

// Summary is the one-line info column.
func (f Fields) Summary() string {
	switch {
	case f.DNS != nil:
		kind := "query"
		if f.DNS.Response {
			kind = "response"
		}
		if len(f.DNS.Queries) == 0 {
			return "DNS " + kind
		}
		return fmt.Sprintf("DNS %s %s", kind, strings.Join(f.DNS.Queries, ", "))
	case f.Transport == TransportTCP:
		return fmt.Sprintf("%d -> %d [%s] len=%d", f.SrcPort, f.DstPort, f.TCPFlags, len(f.Payload))
	case f.Transport == TransportUDP:
		return fmt.Sprintf("%d -> %d len=%d", f.SrcPort, f.DstPort, len(f.Payload))
	case f.ICMP != "":
		return f.ICMP
	case f.ARP != "":
		return f.ARP
	}
	return fmt.Sprintf("%d bytes", len(f.Payload))
}

// Describe renders a multi-line layer breakdown for the detail view.
func (f Fields) Describe() string {
	var b strings.Builder
	if f.HasEthernet() {
		fmt.Fprintf(&b, "Ethernet  %s -> %s", f.EthSrc, f.EthDst)
		if len(f.VLANs) > 0 {
			fmt.Fprintf(&b, " vlan=%v", f.VLANs)
		}
		b.WriteByte('\n')
	} else {
		b.WriteString("Ethernet  (absent)\n")
	}
	if f.HasIP() {
		fmt.Fprintf(&b, "IPv%d      %s -> %s proto=%s\n", f.IPVersion, f.SrcIP, f.DstIP, f.IPProtocol)
	}
	if f.Transport != TransportNone {
		fmt.Fprintf(&b, "%-9s %d -> %d", f.Transport, f.SrcPort, f.DstPort)
		if f.TCPFlags != "" {
			fmt.Fprintf(&b, " [%s]", f.TCPFlags)
		}
		b.WriteByte('\n')
	}
	if f.DNS != nil {
		fmt.Fprintf(&b, "DNS       response=%t queries=%s\n", f.DNS.Response, strings.Join(f.DNS.Queries, ", "))
	}
	if f.ICMP != "" {
		fmt.Fprintf(&b, "ICMP      %s\n", f.ICMP)
	}
	if f.ARP != "" {
		fmt.Fprintf(&b, "ARP       %s\n", f.ARP)
	}
	fmt.Fprintf(&b, "Payload   %d bytes", len(f.Payload))
	return b.String()
}
