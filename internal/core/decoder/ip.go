// Package decoder implements protocol decoding.
package decoder

import (
	"net/netip"

	"github.com/google/gopacket/layers"

	"firestige.xyz/dnsreflect/internal/core"
)

const (
	ipv4Offset = ethernetOffset + ethernetHeaderLen
	// The header is assumed to carry no options: IHL is not consulted and
	// UDP is always read at a fixed offset behind a 20-byte IPv4 header.
	ipv4HeaderLen = 20

	ipv4ProtoOff = 9
	ipv4SrcOff   = 12
	ipv4DstOff   = 16

	// ProtocolUDP is the IPv4 protocol number for UDP.
	ProtocolUDP = uint8(layers.IPProtocolUDP)
)

// IPv4View is a read-only, options-less IPv4 header.
type IPv4View struct{ v View }

// IPv4MutView is the writable counterpart of IPv4View.
type IPv4MutView struct{ m MutView }

// IPv4 validates and returns the IPv4 header following the Ethernet header.
func IPv4(data []byte) (IPv4View, error) {
	v, err := viewAt(data, ipv4Offset, ipv4HeaderLen)
	if err != nil {
		return IPv4View{}, err
	}
	return IPv4View{v: v}, nil
}

// IPv4Mut validates and returns a writable IPv4 header.
func IPv4Mut(data []byte) (IPv4MutView, error) {
	m, err := mutViewAt(data, ipv4Offset, ipv4HeaderLen)
	if err != nil {
		return IPv4MutView{}, err
	}
	return IPv4MutView{m: m}, nil
}

// Protocol returns the encapsulated transport protocol number.
func (h IPv4View) Protocol() uint8 { return h.v.u8(ipv4ProtoOff) }

// SrcAddr returns the source address.
func (h IPv4View) SrcAddr() netip.Addr { return netip.AddrFrom4(h.v.array4(ipv4SrcOff)) }

// DstAddr returns the destination address.
func (h IPv4View) DstAddr() netip.Addr { return netip.AddrFrom4(h.v.array4(ipv4DstOff)) }

// SrcUint32 returns the source address as a host-order integer.
func (h IPv4View) SrcUint32() uint32 { return h.v.u32(ipv4SrcOff) }

// DstUint32 returns the destination address as a host-order integer.
func (h IPv4View) DstUint32() uint32 { return h.v.u32(ipv4DstOff) }

// Header copies the fields into an immutable value.
func (h IPv4View) Header() core.IPv4Header {
	return core.IPv4Header{
		SrcIP:    h.SrcAddr(),
		DstIP:    h.DstAddr(),
		Protocol: h.Protocol(),
	}
}

// View returns the read-only view of the same bytes.
func (h IPv4MutView) View() IPv4View { return IPv4View{v: h.m.View} }

// SwapAddrs exchanges source and destination addresses in place. The
// header checksum is left untouched; it is invariant under the swap.
func (h IPv4MutView) SwapAddrs() { h.m.swap(ipv4SrcOff, ipv4DstOff, 4) }
