package decoder

import (
	"errors"
	"net/netip"
	"testing"

	"firestige.xyz/dnsreflect/internal/core"
)

func TestIPv4Basic(t *testing.T) {
	data := makeDNSFrame()

	ip, err := IPv4(data)
	if err != nil {
		t.Fatalf("IPv4 failed: %v", err)
	}

	if ip.Protocol() != ProtocolUDP {
		t.Errorf("Expected Protocol 17, got %d", ip.Protocol())
	}

	expectedSrc := netip.MustParseAddr("192.168.1.1")
	if ip.SrcAddr() != expectedSrc {
		t.Errorf("Expected SrcIP %v, got %v", expectedSrc, ip.SrcAddr())
	}

	expectedDst := netip.MustParseAddr("1.1.1.1")
	if ip.DstAddr() != expectedDst {
		t.Errorf("Expected DstIP %v, got %v", expectedDst, ip.DstAddr())
	}

	if ip.SrcUint32() != 0xC0A80101 {
		t.Errorf("Expected SrcUint32 0xC0A80101, got 0x%08x", ip.SrcUint32())
	}
	if ip.DstUint32() != 0x01010101 {
		t.Errorf("Expected DstUint32 0x01010101, got 0x%08x", ip.DstUint32())
	}

	h := ip.Header()
	if !h.SrcIP.Is4() || h.SrcIP != expectedSrc || h.DstIP != expectedDst || h.Protocol != 17 {
		t.Errorf("Header() mismatch: %+v", h)
	}
}

// IHL is not consulted: a header claiming options is still read at fixed offsets.
func TestIPv4IgnoresIHL(t *testing.T) {
	data := makeDNSFrame()
	data[14] = 0x46 // IHL 6

	ip, err := IPv4(data)
	if err != nil {
		t.Fatalf("IPv4 failed: %v", err)
	}
	if ip.DstAddr() != netip.MustParseAddr("1.1.1.1") {
		t.Errorf("unexpected DstIP %v", ip.DstAddr())
	}
}

func TestIPv4TooShort(t *testing.T) {
	data := makeDNSFrame()[:33] // one byte short of a full IPv4 header

	if _, err := IPv4(data); !errors.Is(err, core.ErrOutOfBounds) {
		t.Errorf("Expected ErrOutOfBounds, got %v", err)
	}
	if _, err := IPv4Mut(data); !errors.Is(err, core.ErrOutOfBounds) {
		t.Errorf("Expected ErrOutOfBounds from IPv4Mut, got %v", err)
	}
}

func TestIPv4SwapAddrs(t *testing.T) {
	data := makeDNSFrame()
	ip, err := IPv4Mut(data)
	if err != nil {
		t.Fatalf("IPv4Mut failed: %v", err)
	}

	ip.SwapAddrs()

	v := ip.View()
	if v.SrcAddr() != netip.MustParseAddr("1.1.1.1") {
		t.Errorf("unexpected SrcIP after swap: %v", v.SrcAddr())
	}
	if v.DstAddr() != netip.MustParseAddr("192.168.1.1") {
		t.Errorf("unexpected DstIP after swap: %v", v.DstAddr())
	}
	// checksum bytes untouched
	if data[24] != 0xBE || data[25] != 0xEF {
		t.Errorf("checksum modified: %02x%02x", data[24], data[25])
	}
}
