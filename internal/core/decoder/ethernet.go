// Package decoder implements protocol decoding.
package decoder

import (
	"github.com/google/gopacket/layers"

	"firestige.xyz/dnsreflect/internal/core"
)

const (
	// Ethernet constants
	ethernetOffset    = 0
	ethernetHeaderLen = 14

	ethDstOff  = 0
	ethSrcOff  = 6
	ethTypeOff = 12

	// EtherTypeIPv4 is the only encapsulation the pipeline follows.
	EtherTypeIPv4 = uint16(layers.EthernetTypeIPv4)
)

// EthernetView is a read-only Ethernet header at the start of a frame.
type EthernetView struct{ v View }

// EthernetMutView is the writable counterpart of EthernetView.
type EthernetMutView struct{ m MutView }

// Ethernet validates and returns the Ethernet header of data.
func Ethernet(data []byte) (EthernetView, error) {
	v, err := viewAt(data, ethernetOffset, ethernetHeaderLen)
	if err != nil {
		return EthernetView{}, err
	}
	return EthernetView{v: v}, nil
}

// EthernetMut validates and returns a writable Ethernet header of data.
func EthernetMut(data []byte) (EthernetMutView, error) {
	m, err := mutViewAt(data, ethernetOffset, ethernetHeaderLen)
	if err != nil {
		return EthernetMutView{}, err
	}
	return EthernetMutView{m: m}, nil
}

// DstMAC returns the destination hardware address.
func (e EthernetView) DstMAC() [6]byte { return e.v.array6(ethDstOff) }

// SrcMAC returns the source hardware address.
func (e EthernetView) SrcMAC() [6]byte { return e.v.array6(ethSrcOff) }

// EtherType returns the encapsulated protocol in host order.
func (e EthernetView) EtherType() uint16 { return e.v.u16(ethTypeOff) }

// Header copies the fields into an immutable value.
func (e EthernetView) Header() core.EthernetHeader {
	return core.EthernetHeader{
		DstMAC:    e.DstMAC(),
		SrcMAC:    e.SrcMAC(),
		EtherType: e.EtherType(),
	}
}

// View returns the read-only view of the same bytes.
func (e EthernetMutView) View() EthernetView { return EthernetView{v: e.m.View} }

// SwapMACs exchanges source and destination MAC addresses in place.
func (e EthernetMutView) SwapMACs() { e.m.swap(ethDstOff, ethSrcOff, 6) }
