package analysis

import "strconv"

var commonPorts = map[int]string{
	20:   "FTP-DATA",
	21:   "FTP",
	22:   "SSH",
	23:   "Telnet",
	25:   "SMTP",
	53:   "DNS",
	67:   "DHCP",
	68:   "DHCP",
	80:   "HTTP",
	110:  "POP3",
	123:  "NTP",
	143:  "IMAP",
	161:  "SNMP",
	443:  "HTTPS",
	445:  "SMB",
	853:  "DNS-over-TLS",
	3306: "MySQL",
	3389: "RDP",
	5060: "SIP",
	5432: "PostgreSQL",
	6379: "Redis",
	8080: "HTTP-Alt",
}

// GetServiceName returns the common name for a port, or the port number as a string.
func GetServiceName(port int) string {
	if name, ok := commonPorts[port]; ok {
		return name
	}
	return strconv.Itoa(port)
}

// ServiceLabel names the well-known side of a conversation: the lower of
// the two ports when it is known, else the destination port.
func ServiceLabel(srcPort, dstPort int) string {
	if srcPort == 0 && dstPort == 0 {
		return ""
	}
	if _, ok := commonPorts[srcPort]; ok && (srcPort < dstPort || dstPort == 0) {
		return commonPorts[srcPort]
	}
	return GetServiceName(dstPort)
}
