package decode

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	macA = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	macB = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	ipA  = net.IPv4(10, 0, 0, 1).To4()
	ipB  = net.IPv4(10, 0, 0, 2).To4()
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

func ipv4(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: proto, SrcIP: ipA, DstIP: ipB}
}

func ether(t layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{SrcMAC: macA, DstMAC: macB, EthernetType: t}
}

func tcpFrame(t *testing.T, payload string) []byte {
	ip := ipv4(layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: 51000, DstPort: 80, SYN: true, ACK: true, Window: 1024}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ether(layers.EthernetTypeIPv4), ip, tcp, gopacket.Payload(payload))
}

func dnsQuery(t *testing.T, withEthernet bool, name string) []byte {
	ip := ipv4(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 40000, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	dns := &layers.DNS{
		ID: 7, RD: true,
		Questions: []layers.DNSQuestion{{Name: []byte(name), Type: layers.DNSTypeA, Class: layers.DNSClassIN}},
	}
	if withEthernet {
		return serialize(t, ether(layers.EthernetTypeIPv4), ip, udp, dns)
	}
	return serialize(t, ip, udp, dns)
}

func TestDecodeTCP(t *testing.T) {
	f := Decode(tcpFrame(t, "GET / HTTP/1.1\r\n"))

	assert.True(t, f.HasEthernet())
	assert.Equal(t, macA, f.EthSrc)
	assert.Equal(t, macB, f.EthDst)
	assert.Equal(t, uint8(4), f.IPVersion)
	assert.True(t, ipA.Equal(f.SrcIP))
	assert.Equal(t, TransportTCP, f.Transport)
	assert.Equal(t, uint16(51000), f.SrcPort)
	assert.Equal(t, uint16(80), f.DstPort)
	assert.Equal(t, "SYN, ACK", f.TCPFlags)
	assert.Equal(t, "GET / HTTP/1.1\r\n", string(f.Payload))

	assert.Equal(t, "TCP", f.Protocol())
	assert.Equal(t, "10.0.0.1:51000", f.Source())
	assert.Equal(t, "10.0.0.2:80", f.Destination())
	assert.Equal(t, "51000 -> 80 [SYN, ACK] len=16", f.Summary())
}

func TestDecodeDNSQuery(t *testing.T) {
	f := Decode(dnsQuery(t, true, "example.com"))

	require.NotNil(t, f.DNS)
	assert.Equal(t, []string{"example.com"}, f.DNS.Queries)
	assert.False(t, f.DNS.Response)
	assert.Equal(t, TransportUDP, f.Transport)
	assert.Equal(t, "DNS", f.Protocol())
	assert.Equal(t, "DNS query example.com", f.Summary())
}

func TestDecodeRawIPWithoutEthernet(t *testing.T) {
	f := Decode(dnsQuery(t, false, "example.org"))

	assert.False(t, f.HasEthernet())
	assert.Nil(t, f.EthSrc)
	assert.Equal(t, uint8(4), f.IPVersion)
	assert.True(t, ipB.Equal(f.DstIP))
	assert.Equal(t, uint16(53), f.DstPort)
	require.NotNil(t, f.DNS)
	assert.Equal(t, []string{"example.org"}, f.DNS.Queries)
}

// Source addresses whose first two octets read as IPv4, ARP, 802.1Q,
// IPv6 or QinQ when bytes 12-13 are taken as an ethertype.
func TestDecodeRawIPSourceLooksLikeEtherType(t *testing.T) {
	for _, src := range []string{"8.0.0.1", "8.6.0.1", "129.0.0.1", "134.221.0.1", "136.168.0.1"} {
		t.Run(src, func(t *testing.T) {
			srcIP := net.ParseIP(src).To4()
			ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: srcIP, DstIP: ipB}
			udp := &layers.UDP{SrcPort: 4000, DstPort: 9000}
			require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
			f := Decode(serialize(t, ip, udp, gopacket.Payload("payload")))

			assert.False(t, f.HasEthernet())
			require.True(t, f.HasIP())
			assert.True(t, srcIP.Equal(f.SrcIP))
			assert.True(t, ipB.Equal(f.DstIP))
			assert.Equal(t, TransportUDP, f.Transport)
			assert.Equal(t, uint16(9000), f.DstPort)
			assert.Equal(t, "payload", string(f.Payload))
		})
	}
}

func TestDecodeLinkRaw(t *testing.T) {
	srcIP := net.IP{8, 0, 0, 1}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: srcIP, DstIP: ipB}
	udp := &layers.UDP{SrcPort: 4000, DstPort: 9000}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	data := serialize(t, ip, udp, gopacket.Payload("x"))

	// Trailing bytes defeat the length check; the link type still decides.
	data = append(data, 0, 0, 0, 0)
	f := DecodeLink(data, layers.LinkTypeRaw)
	assert.False(t, f.HasEthernet())
	assert.True(t, srcIP.Equal(f.SrcIP))

	eth := DecodeLink(tcpFrame(t, "hi"), layers.LinkTypeEthernet)
	assert.True(t, eth.HasEthernet())
	assert.True(t, ipA.Equal(eth.SrcIP))
}

func TestDecodeIPv6UDP(t *testing.T) {
	src, dst := net.ParseIP("fe80::1"), net.ParseIP("fe80::2")
	ip := &layers.IPv6{Version: 6, HopLimit: 64, NextHeader: layers.IPProtocolUDP, SrcIP: src, DstIP: dst}
	udp := &layers.UDP{SrcPort: 5000, DstPort: 6000}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	f := Decode(serialize(t, ether(layers.EthernetTypeIPv6), ip, udp, gopacket.Payload("hello")))

	assert.Equal(t, uint8(6), f.IPVersion)
	assert.Equal(t, "UDP", f.Protocol())
	assert.Equal(t, "[fe80::1]:5000", f.Source())
	assert.Equal(t, "hello", string(f.Payload))
}

func TestDecodeVLAN(t *testing.T) {
	ip := ipv4(layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: 1, DstPort: 2, ACK: true}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	tag := &layers.Dot1Q{VLANIdentifier: 42, Type: layers.EthernetTypeIPv4}
	f := Decode(serialize(t, ether(layers.EthernetTypeDot1Q), tag, ip, tcp))

	assert.Equal(t, []uint16{42}, f.VLANs)
	assert.Equal(t, TransportTCP, f.Transport)
	assert.Empty(t, f.Payload, "a pure ACK carries no application payload")
}

func TestDecodeARP(t *testing.T) {
	arp := &layers.ARP{
		AddrType: layers.LinkTypeEthernet, Protocol: layers.EthernetTypeIPv4,
		HwAddressSize: 6, ProtAddressSize: 4, Operation: layers.ARPRequest,
		SourceHwAddress: macA, SourceProtAddress: ipA,
		DstHwAddress: make([]byte, 6), DstProtAddress: ipB,
	}
	f := Decode(serialize(t, ether(layers.EthernetTypeARP), arp))

	assert.Equal(t, "ARP", f.Protocol())
	assert.Equal(t, "who has 10.0.0.2? tell 10.0.0.1", f.Summary())
	assert.Equal(t, macA.String(), f.Source())
	assert.False(t, f.HasIP())
}

func TestDecodeICMP(t *testing.T) {
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Id: 1, Seq: 1}
	f := Decode(serialize(t, ether(layers.EthernetTypeIPv4), ipv4(layers.IPProtocolICMPv4), icmp, gopacket.Payload("ping")))

	assert.Equal(t, "ICMP", f.Protocol())
	assert.Equal(t, "10.0.0.1", f.Source(), "no port without a transport header")
	assert.NotEmpty(t, f.Summary())
}

func TestDecodeNonFirstFragment(t *testing.T) {
	ip := ipv4(layers.IPProtocolTCP)
	ip.FragOffset = 10
	f := Decode(serialize(t, ether(layers.EthernetTypeIPv4), ip, gopacket.Payload("continuation bytes here")))

	assert.True(t, f.HasIP())
	assert.Equal(t, TransportNone, f.Transport)
	assert.Equal(t, "IPv4", f.Protocol())
	assert.Equal(t, "continuation bytes here", string(f.Payload))
}

func TestDecodeUnknownEtherType(t *testing.T) {
	frame := serialize(t, ether(layers.EthernetType(0x88cc)), gopacket.Payload("lldp-ish payload"))
	f := Decode(frame)

	assert.True(t, f.HasEthernet())
	assert.False(t, f.HasIP())
	assert.Equal(t, "Ethernet", f.Protocol())
	assert.Equal(t, macB.String(), f.Destination())
}

func TestDecodeTruncatedFrames(t *testing.T) {
	full := tcpFrame(t, "payload bytes")

	for n := 0; n <= len(full); n++ {
		var f Fields
		require.NotPanics(t, func() { f = Decode(full[:n]) }, "length %d", n)
		assert.NotEmpty(t, f.Protocol())
		assert.NotEmpty(t, f.Source())
	}

	f := Decode(full[:14+20+4])
	assert.True(t, f.HasEthernet())
	assert.True(t, f.HasIP(), "IP header survives a cut transport header")
	assert.Equal(t, TransportNone, f.Transport)
}

func TestDecodeGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, {0x00}, {0xff, 0xff, 0xff}, make([]byte, 13)} {
		f := Decode(data)
		assert.Equal(t, "Unknown", f.Protocol())
		assert.Equal(t, "N/A", f.Source())
		assert.Equal(t, "N/A", f.Destination())
		assert.Equal(t, data, f.Payload)
	}
}

func TestDescribe(t *testing.T) {
	out := Decode(dnsQuery(t, false, "example.net")).Describe()
	assert.Contains(t, out, "Ethernet  (absent)")
	assert.Contains(t, out, "queries=example.net")
}
