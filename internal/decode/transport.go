package decode

import (
	"fmt"
	"net"
	"strings"

	"github.com/google/gopacket/layers"
)

// decodeTransport checks TCP before UDP; the IP protocol number makes them
// mutually exclusive.
func decodeTransport(proto layers.IPProtocol, data []byte, f *Fields) {
	switch proto {
	case layers.IPProtocolTCP:
		var tcp layers.TCP
		if err := tcp.DecodeFromBytes(data, df); err != nil {
			return
		}
		f.Transport = TransportTCP
		f.SrcPort, f.DstPort = uint16(tcp.SrcPort), uint16(tcp.DstPort)
		f.TCPFlags = tcpFlags(&tcp)
		f.Payload = tcp.Payload

	case layers.IPProtocolUDP:
		var udp layers.UDP
		if err := udp.DecodeFromBytes(data, df); err != nil {
			return
		}
		f.Transport = TransportUDP
		f.SrcPort, f.DstPort = uint16(udp.SrcPort), uint16(udp.DstPort)
		f.Payload = udp.Payload
		if f.SrcPort == dnsPort || f.DstPort == dnsPort {
			decodeDNS(udp.Payload, f)
		}

	case layers.IPProtocolICMPv4:
		var icmp layers.ICMPv4
		if err := icmp.DecodeFromBytes(data, df); err != nil {
			return
		}
		f.ICMP = icmp.TypeCode.String()
		f.Payload = icmp.Payload

	case layers.IPProtocolICMPv6:
		var icmp layers.ICMPv6
		if err := icmp.DecodeFromBytes(data, df); err != nil {
			return
		}
		f.ICMP = icmp.TypeCode.String()
		f.Payload = icmp.Payload
	}
}

func decodeDNS(data []byte, f *Fields) {
	var dns layers.DNS
	if err := dns.DecodeFromBytes(data, df); err != nil {
		return
	}
	info := &DNSInfo{Response: dns.QR}
	for _, q := range dns.Questions {
		info.Queries = append(info.Queries, string(q.Name))
	}
	f.DNS = info
}

func decodeARP(data []byte, f *Fields) {
	var arp layers.ARP
	if err := arp.DecodeFromBytes(data, df); err != nil {
		return
	}
	switch arp.Operation {
	case layers.ARPRequest:
		f.ARP = fmt.Sprintf("who has %s? tell %s",
			net.IP(arp.DstProtAddress), net.IP(arp.SourceProtAddress))
	case layers.ARPReply:
		f.ARP = fmt.Sprintf("%s is at %s",
			net.IP(arp.SourceProtAddress), net.HardwareAddr(arp.SourceHwAddress))
	default:
		f.ARP = fmt.Sprintf("operation %d", arp.Operation)
	}
}

func tcpFlags(tcp *layers.TCP) string {
	var flags []string
	for _, fl := range []struct {
		set  bool
		name string
	}{
		{tcp.SYN, "SYN"}, {tcp.ACK, "ACK"}, {tcp.FIN, "FIN"},
		{tcp.RST, "RST"}, {tcp.PSH, "PSH"}, {tcp.URG, "URG"},
	} {
		if fl.set {
			flags = append(flags, fl.name)
		}
	}
	return strings.Join(flags, ", ")
}
