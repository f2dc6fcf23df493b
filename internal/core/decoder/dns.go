// Package decoder implements protocol decoding.
package decoder

import "firestige.xyz/dnsreflect/internal/core"

const (
	dnsOffset    = udpOffset + udpHeaderLen
	dnsHeaderLen = 12

	dnsIDOff      = 0
	dnsFlagsOff   = 2
	dnsQDCountOff = 4
	dnsANCountOff = 6
	dnsNSCountOff = 8
	dnsARCountOff = 10
)

// DNSView is a read-only fixed DNS header. Only the 12-byte header is
// decoded; the message body is never parsed.
type DNSView struct{ v View }

// DNS validates and returns the DNS header following the UDP header.
func DNS(data []byte) (DNSView, error) {
	v, err := viewAt(data, dnsOffset, dnsHeaderLen)
	if err != nil {
		return DNSView{}, err
	}
	return DNSView{v: v}, nil
}

// ID returns the transaction id.
func (d DNSView) ID() uint16 { return d.v.u16(dnsIDOff) }

// QDCount returns the number of questions.
func (d DNSView) QDCount() uint16 { return d.v.u16(dnsQDCountOff) }

// ANCount returns the number of answer records.
func (d DNSView) ANCount() uint16 { return d.v.u16(dnsANCountOff) }

// NSCount returns the number of authority records.
func (d DNSView) NSCount() uint16 { return d.v.u16(dnsNSCountOff) }

// ARCount returns the number of additional records.
func (d DNSView) ARCount() uint16 { return d.v.u16(dnsARCountOff) }

// Flags extracts the flag word. Bit 15 in RFC1035 numbering is the most
// significant bit of the first flag byte:
//
//	byte0: QR(7) Opcode(6-3) AA(2) TC(1) RD(0)
//	byte1: RA(7) Z(6) AD(5) CD(4) RCODE(3-0)
//
// Reserved bits are reported as-is.
func (d DNSView) Flags() core.DNSFlags {
	return decodeFlags(d.v.u8(dnsFlagsOff), d.v.u8(dnsFlagsOff+1))
}

func decodeFlags(hi, lo uint8) core.DNSFlags {
	return core.DNSFlags{
		QR:     hi >> 7 & 0x1,
		Opcode: hi >> 3 & 0xF,
		AA:     hi >> 2 & 0x1,
		TC:     hi >> 1 & 0x1,
		RD:     hi & 0x1,
		RA:     lo >> 7 & 0x1,
		Z:      lo >> 6 & 0x1,
		AD:     lo >> 5 & 0x1,
		CD:     lo >> 4 & 0x1,
		RCode:  lo & 0xF,
	}
}

// Header copies the fields into an immutable value.
func (d DNSView) Header() core.DNSHeader {
	return core.DNSHeader{
		ID:      d.ID(),
		Flags:   d.Flags(),
		QDCount: d.QDCount(),
		ANCount: d.ANCount(),
		NSCount: d.NSCount(),
		ARCount: d.ARCount(),
	}
}
