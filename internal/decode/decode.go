// Package decode extracts layered protocol fields from a raw link-layer
// frame. Every layer is optional: a missing or malformed layer is reported
// as absent and never stops the decoding of the others.
package decode

import (
	"encoding/binary"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const dnsPort = 53

var df = gopacket.NilDecodeFeedback

// Transport identifies the transport layer found in a frame.
type Transport uint8

const (
	TransportNone Transport = iota
	TransportTCP
	TransportUDP
)

func (t Transport) String() string {
	switch t {
	case TransportTCP:
		return "TCP"
	case TransportUDP:
		return "UDP"
	default:
		return "none"
	}
}

// DNSInfo holds the application-layer hints of a DNS message.
type DNSInfo struct {
	Queries  []string
	Response bool
}

// Fields is the decoded view of one frame. Zero values mean "not present".
type Fields struct {
	EthSrc net.HardwareAddr
	EthDst net.HardwareAddr
	VLANs  []uint16

	IPVersion  uint8
	SrcIP      net.IP
	DstIP      net.IP
	IPProtocol layers.IPProtocol

	Transport Transport
	SrcPort   uint16
	DstPort   uint16
	TCPFlags  string

	DNS  *DNSInfo
	ICMP string
	ARP  string

	// Payload is the innermost payload found: the transport payload when a
	// transport header decoded, else the payload of the deepest decoded
	// layer, else the whole frame.
	Payload []byte
}

// HasEthernet reports whether an Ethernet header was decoded.
func (f Fields) HasEthernet() bool {
	return f.EthSrc != nil
}

// HasIP reports whether an IPv4 or IPv6 header was decoded.
func (f Fields) HasIP() bool {
	return f.IPVersion != 0
}

// Decode parses data starting at the link layer. A buffer that is exactly
// one well-formed IP packet is decoded as bare IP; anything else is tried as
// Ethernet first and retried as bare IP when no network layer came out.
func Decode(data []byte) Fields {
	f := Fields{Payload: data}
	if len(data) == 0 {
		return f
	}
	if rawIPLength(data) && decodeIP(data, &f) {
		return f
	}

	var eth layers.Ethernet
	ethErr := eth.DecodeFromBytes(data, df)
	if ethErr == nil && knownEtherType(eth.EthernetType) {
		decodeEthernet(&eth, &f)
		if f.HasIP() || f.ARP != "" {
			return f
		}
		// Bytes 12-13 of an IP header (the source address) can look like
		// a known ethertype.
		raw := Fields{Payload: data}
		if decodeIP(data, &raw) {
			return raw
		}
		return f
	}

	if decodeIP(data, &f) {
		return f
	}

	// Valid Ethernet framing carrying something we do not decode (LLDP,
	// LLC...). The whole frame stays the payload.
	if ethErr == nil {
		f.EthSrc, f.EthDst = eth.SrcMAC, eth.DstMAC
	}
	return f
}

// DecodeLink parses data framed as link. Raw IP link types skip the
// Ethernet attempt entirely.
func DecodeLink(data []byte, link layers.LinkType) Fields {
	switch link {
	case layers.LinkTypeRaw, layers.LinkTypeIPv4, layers.LinkTypeIPv6:
		f := Fields{Payload: data}
		decodeIP(data, &f)
		return f
	}
	return Decode(data)
}

// rawIPLength reports whether data starts with an IP header whose length
// field accounts for exactly len(data) bytes.
func rawIPLength(data []byte) bool {
	switch data[0] >> 4 {
	case 4:
		if len(data) < 20 || data[0]&0x0f < 5 {
			return false
		}
		return int(binary.BigEndian.Uint16(data[2:4])) == len(data)
	case 6:
		if len(data) < 40 {
			return false
		}
		return 40+int(binary.BigEndian.Uint16(data[4:6])) == len(data)
	}
	return false
}

func knownEtherType(t layers.EthernetType) bool {
	switch t {
	case layers.EthernetTypeIPv4, layers.EthernetTypeIPv6, layers.EthernetTypeARP,
		layers.EthernetTypeDot1Q, layers.EthernetTypeQinQ:
		return true
	}
	return false
}

func decodeEthernet(eth *layers.Ethernet, f *Fields) {
	f.EthSrc, f.EthDst = eth.SrcMAC, eth.DstMAC

	etherType, rest := eth.EthernetType, eth.Payload
	for etherType == layers.EthernetTypeDot1Q || etherType == layers.EthernetTypeQinQ {
		var tag layers.Dot1Q
		if err := tag.DecodeFromBytes(rest, df); err != nil {
			break
		}
		f.VLANs = append(f.VLANs, tag.VLANIdentifier)
		etherType, rest = tag.Type, tag.Payload
	}
	f.Payload = rest

	switch etherType {
	case layers.EthernetTypeIPv4, layers.EthernetTypeIPv6:
		decodeIP(rest, f)
	case layers.EthernetTypeARP:
		decodeARP(rest, f)
	}
}

// decodeIP fills the network layer and everything above it. It leaves f
// untouched and returns false when data is not an IP packet.
func decodeIP(data []byte, f *Fields) bool {
	if len(data) == 0 {
		return false
	}

	switch data[0] >> 4 {
	case 4:
		var ip layers.IPv4
		if err := ip.DecodeFromBytes(data, df); err != nil {
			return false
		}
		f.IPVersion = 4
		f.SrcIP, f.DstIP = ip.SrcIP, ip.DstIP
		f.IPProtocol = ip.Protocol
		f.Payload = ip.Payload
		// Only the first fragment carries the transport header.
		if ip.FragOffset == 0 {
			decodeTransport(ip.Protocol, ip.Payload, f)
		}
		return true

	case 6:
		var ip layers.IPv6
		if err := ip.DecodeFromBytes(data, df); err != nil {
			return false
		}
		f.IPVersion = 6
		f.SrcIP, f.DstIP = ip.SrcIP, ip.DstIP
		f.IPProtocol = ip.NextHeader
		f.Payload = ip.Payload
		decodeTransport(ip.NextHeader, ip.Payload, f)
		return true
	}
	return false
}
