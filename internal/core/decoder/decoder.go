// Package decoder implements L2-L4 protocol stack decoding for DNS over UDP.
package decoder

import (
	"fmt"

	"firestige.xyz/dnsreflect/internal/core"
)

// MinDNSFrameLen is the shortest frame carrying a complete DNS header.
const MinDNSFrameLen = dnsOffset + dnsHeaderLen

// Absolute offsets of the classifying fields under the fixed layout, for
// matchers that run outside this package such as kernel socket filters.
const (
	EtherTypeOffset  = ethernetOffset + ethTypeOff
	IPProtocolOffset = ipv4Offset + ipv4ProtoOff
	UDPDstPortOffset = udpOffset + udpDstOff
)

// Decode decodes the Ethernet, IPv4, UDP and DNS headers of data. It does not
// classify the frame: ethertype, protocol and port are reported as found.
// On any bounds failure no partial result is returned.
func Decode(data []byte) (core.DecodedFrame, error) {
	eth, err := Ethernet(data)
	if err != nil {
		return core.DecodedFrame{}, fmt.Errorf("ethernet header: %w", err)
	}
	ip, err := IPv4(data)
	if err != nil {
		return core.DecodedFrame{}, fmt.Errorf("ipv4 header: %w", err)
	}
	udp, err := UDP(data)
	if err != nil {
		return core.DecodedFrame{}, fmt.Errorf("udp header: %w", err)
	}
	dns, err := DNS(data)
	if err != nil {
		return core.DecodedFrame{}, fmt.Errorf("dns header: %w", err)
	}

	return core.DecodedFrame{
		Ethernet: eth.Header(),
		IPv4:     ip.Header(),
		UDP:      udp.Header(),
		DNS:      dns.Header(),
	}, nil
}
