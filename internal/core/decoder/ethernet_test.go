package decoder

import (
	"errors"
	"testing"

	"firestige.xyz/dnsreflect/internal/core"
)

func TestEthernetBasic(t *testing.T) {
	data := makeDNSFrame()

	eth, err := Ethernet(data)
	if err != nil {
		t.Fatalf("Ethernet failed: %v", err)
	}

	// Check Dst MAC
	expectedDstMAC := [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	if eth.DstMAC() != expectedDstMAC {
		t.Errorf("Expected DstMAC %v, got %v", expectedDstMAC, eth.DstMAC())
	}

	// Check Src MAC
	expectedSrcMAC := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	if eth.SrcMAC() != expectedSrcMAC {
		t.Errorf("Expected SrcMAC %v, got %v", expectedSrcMAC, eth.SrcMAC())
	}

	// Check EtherType
	if eth.EtherType() != EtherTypeIPv4 {
		t.Errorf("Expected EtherType 0x0800, got 0x%04x", eth.EtherType())
	}

	h := eth.Header()
	if h.SrcMAC != expectedSrcMAC || h.DstMAC != expectedDstMAC || h.EtherType != 0x0800 {
		t.Errorf("Header() mismatch: %+v", h)
	}
}

func TestEthernetExactLength(t *testing.T) {
	data := makeDNSFrame()[:14]
	if _, err := Ethernet(data); err != nil {
		t.Errorf("14-byte frame should decode, got %v", err)
	}
}

func TestEthernetTooShort(t *testing.T) {
	for n := 0; n < 14; n++ {
		data := makeDNSFrame()[:n]
		if _, err := Ethernet(data); !errors.Is(err, core.ErrOutOfBounds) {
			t.Errorf("len=%d: expected ErrOutOfBounds, got %v", n, err)
		}
		if _, err := EthernetMut(data); !errors.Is(err, core.ErrOutOfBounds) {
			t.Errorf("len=%d: expected ErrOutOfBounds from EthernetMut, got %v", n, err)
		}
	}
}

func TestEthernetSwapMACs(t *testing.T) {
	data := makeDNSFrame()
	eth, err := EthernetMut(data)
	if err != nil {
		t.Fatalf("EthernetMut failed: %v", err)
	}

	eth.SwapMACs()

	v := eth.View()
	if v.SrcMAC() != [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55} {
		t.Errorf("unexpected SrcMAC after swap: %v", v.SrcMAC())
	}
	if v.DstMAC() != [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF} {
		t.Errorf("unexpected DstMAC after swap: %v", v.DstMAC())
	}
	if v.EtherType() != EtherTypeIPv4 {
		t.Errorf("EtherType changed by swap: 0x%04x", v.EtherType())
	}
}
