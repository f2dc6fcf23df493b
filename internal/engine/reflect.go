package engine

import (
	"fmt"

	"firestige.xyz/dnsreflect/internal/core/decoder"
)

// Reflect turns a frame around in place: it swaps the Ethernet MACs, the
// IPv4 addresses and the UDP ports. All three headers are validated before
// the first byte is written, so a short frame is left untouched. Lengths
// and checksums are not modified. Reflect is its own inverse.
func Reflect(data []byte) error {
	eth, err := decoder.EthernetMut(data)
	if err != nil {
		return fmt.Errorf("reflect ethernet: %w", err)
	}
	ip, err := decoder.IPv4Mut(data)
	if err != nil {
		return fmt.Errorf("reflect ipv4: %w", err)
	}
	udp, err := decoder.UDPMut(data)
	if err != nil {
		return fmt.Errorf("reflect udp: %w", err)
	}

	eth.SwapMACs()
	ip.SwapAddrs()
	udp.SwapPorts()
	return nil
}
