package afpacket

import (
	"fmt"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"firestige.xyz/dnsreflect/internal/core/decoder"
)

// AF_PACKET also delivers frames the host transmits. Both programs start by
// dropping those, so only the receive path is ever reflected.
func ingressGuard(skipToDrop uint8) []bpf.Instruction {
	return []bpf.Instruction{
		bpf.LoadExtension{Num: bpf.ExtType},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: unix.PACKET_OUTGOING, SkipTrue: skipToDrop},
	}
}

// IngressFilter accepts every received frame, truncated to snapLen, and
// drops outgoing ones. It is attached when the prefilter is disabled.
func IngressFilter(snapLen int) []bpf.Instruction {
	return append(ingressGuard(1),
		bpf.RetConstant{Val: uint32(snapLen)},
		bpf.RetConstant{Val: 0},
	)
}

// Prefilter returns a classic BPF program that accepts received IPv4/UDP
// frames addressed to port 53 and drops everything else. It reads the same
// fixed offsets as the decoder, so the IPv4 header length is not consulted.
// Accepted frames are truncated to snapLen.
func Prefilter(snapLen int) []bpf.Instruction {
	return append(ingressGuard(7),
		bpf.LoadAbsolute{Off: decoder.EtherTypeOffset, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: uint32(decoder.EtherTypeIPv4), SkipTrue: 5},
		bpf.LoadAbsolute{Off: decoder.IPProtocolOffset, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: uint32(decoder.ProtocolUDP), SkipTrue: 3},
		bpf.LoadAbsolute{Off: decoder.UDPDstPortOffset, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: decoder.DNSPort, SkipTrue: 1},
		bpf.RetConstant{Val: uint32(snapLen)},
		bpf.RetConstant{Val: 0},
	)
}

// AssembleFilter assembles the program attached to the socket: Prefilter
// when prefilter is set, IngressFilter otherwise.
func AssembleFilter(snapLen int, prefilter bool) ([]bpf.RawInstruction, error) {
	prog := IngressFilter(snapLen)
	if prefilter {
		prog = Prefilter(snapLen)
	}
	raw, err := bpf.Assemble(prog)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble socket filter: %w", err)
	}
	return raw, nil
}
