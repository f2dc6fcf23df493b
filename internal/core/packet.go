// Package core defines core data structures with zero external dependencies.
package core

import "time"

// RawFrame is a received link-layer frame. Data may reference a capture ring
// buffer and is only valid until the next read on the same source.
type RawFrame struct {
	Data           []byte    // Frame bytes, [0, len(Data)) is the valid extent
	Timestamp      time.Time // Capture timestamp
	CaptureLen     uint32    // Captured length
	OrigLen        uint32    // Original length on the wire
	InterfaceIndex int       // Ingress interface index
}

// DecodedFrame is the result of decoding the Ethernet/IPv4/UDP/DNS stack.
type DecodedFrame struct {
	Ethernet EthernetHeader
	IPv4     IPv4Header
	UDP      UDPHeader
	DNS      DNSHeader
}

// Endpoints extracts the source/destination triple.
func (d DecodedFrame) Endpoints() Endpoints {
	return Endpoints{
		SrcMAC:  d.Ethernet.SrcMAC,
		DstMAC:  d.Ethernet.DstMAC,
		SrcIP:   d.IPv4.SrcIP,
		DstIP:   d.IPv4.DstIP,
		SrcPort: d.UDP.SrcPort,
		DstPort: d.UDP.DstPort,
	}
}
