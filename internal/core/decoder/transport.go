// Package decoder implements protocol decoding.
package decoder

import "firestige.xyz/dnsreflect/internal/core"

const (
	udpOffset    = ipv4Offset + ipv4HeaderLen
	udpHeaderLen = 8

	udpSrcOff = 0
	udpDstOff = 2

	// DNSPort is the well-known DNS server port.
	DNSPort = 53
)

// UDPView is a read-only UDP header.
type UDPView struct{ v View }

// UDPMutView is the writable counterpart of UDPView.
type UDPMutView struct{ m MutView }

// UDP validates and returns the UDP header following an options-less IPv4 header.
func UDP(data []byte) (UDPView, error) {
	v, err := viewAt(data, udpOffset, udpHeaderLen)
	if err != nil {
		return UDPView{}, err
	}
	return UDPView{v: v}, nil
}

// UDPMut validates and returns a writable UDP header.
func UDPMut(data []byte) (UDPMutView, error) {
	m, err := mutViewAt(data, udpOffset, udpHeaderLen)
	if err != nil {
		return UDPMutView{}, err
	}
	return UDPMutView{m: m}, nil
}

// SrcPort returns the source port in host order.
func (u UDPView) SrcPort() uint16 { return u.v.u16(udpSrcOff) }

// DstPort returns the destination port in host order.
func (u UDPView) DstPort() uint16 { return u.v.u16(udpDstOff) }

// Header copies the fields into an immutable value.
func (u UDPView) Header() core.UDPHeader {
	return core.UDPHeader{SrcPort: u.SrcPort(), DstPort: u.DstPort()}
}

// View returns the read-only view of the same bytes.
func (u UDPMutView) View() UDPView { return UDPView{v: u.m.View} }

// SwapPorts exchanges source and destination ports in place. The UDP
// checksum is not recomputed; ports and pseudo-header addresses are summed
// commutatively, so swapping both pairs leaves it valid.
func (u UDPMutView) SwapPorts() { u.m.swap(udpSrcOff, udpDstOff, 2) }
