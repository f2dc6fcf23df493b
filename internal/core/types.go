// Package core defines core types with zero external dependencies.
package core

import (
	"net"
	"net/netip"
)

// EthernetHeader represents the fixed 14-byte L2 header.
type EthernetHeader struct {
	DstMAC    [6]byte
	SrcMAC    [6]byte
	EtherType uint16 // 0x0800=IPv4
}

// IPv4Header holds the IPv4 fields the pipeline consumes.
type IPv4Header struct {
	SrcIP    netip.Addr // always a 4-byte address, zero allocation
	DstIP    netip.Addr
	Protocol uint8 // UDP=17
}

// UDPHeader represents the L4 UDP ports.
type UDPHeader struct {
	SrcPort uint16
	DstPort uint16
}

// DNSFlags is the 16-bit flag word of a DNS header, one field per
// RFC1035 section. Single-bit fields are 0 or 1.
type DNSFlags struct {
	QR     uint8
	Opcode uint8 // 4 bits
	AA     uint8
	TC     uint8
	RD     uint8
	RA     uint8
	Z      uint8 // reserved, not validated
	AD     uint8
	CD     uint8
	RCode  uint8 // 4 bits
}

// DNSHeader is the fixed 12-byte DNS message header.
type DNSHeader struct {
	ID      uint16
	Flags   DNSFlags
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Endpoints is the source/destination triple of a frame at L2, L3 and L4.
type Endpoints struct {
	SrcMAC  [6]byte
	DstMAC  [6]byte
	SrcIP   netip.Addr
	DstIP   netip.Addr
	SrcPort uint16
	DstPort uint16
}

// Swapped returns the endpoints as seen by the reverse direction.
func (e Endpoints) Swapped() Endpoints {
	return Endpoints{
		SrcMAC:  e.DstMAC,
		DstMAC:  e.SrcMAC,
		SrcIP:   e.DstIP,
		DstIP:   e.SrcIP,
		SrcPort: e.DstPort,
		DstPort: e.SrcPort,
	}
}

// SrcHW formats the source MAC. Intended for logging only, it allocates.
func (e Endpoints) SrcHW() string { return net.HardwareAddr(e.SrcMAC[:]).String() }

// DstHW formats the destination MAC. Intended for logging only, it allocates.
func (e Endpoints) DstHW() string { return net.HardwareAddr(e.DstMAC[:]).String() }

// Match records the block-list lookups performed for a DNS-bound frame.
type Match struct {
	SrcAddr bool
	DstAddr bool
	SrcPort bool
	DstPort bool
}

// Any reports whether any lookup matched.
func (m Match) Any() bool {
	return m.SrcAddr || m.DstAddr || m.SrcPort || m.DstPort
}
