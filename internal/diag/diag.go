// Package diag emits per-frame diagnostic records.
package diag

import (
	"firestige.xyz/dnsreflect/internal/core"
	"firestige.xyz/dnsreflect/internal/log"
)

// Stage names the point in the pipeline a record was taken.
type Stage string

const (
	StageIngress   Stage = "ingress"   // DNS-bound frame as received
	StageReflected Stage = "reflected" // the same frame after reflection
)

// Record is one diagnostic observation of a DNS-bound frame.
type Record struct {
	Pipeline  string
	Stage     Stage
	DNS       core.DNSHeader
	Endpoints core.Endpoints
	Match     core.Match
}

// Emitter consumes diagnostic records. Emit must not retain r.
type Emitter interface {
	Emit(r Record)
}

// Nop discards every record.
type Nop struct{}

func (Nop) Emit(Record) {}

// LogEmitter writes one structured log entry per record.
type LogEmitter struct {
	logger log.Logger
}

func NewLogEmitter(logger log.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) Emit(r Record) {
	if !e.logger.IsInfoEnabled() {
		return
	}
	f := r.DNS.Flags
	fields := log.Fields{
		"pipeline": r.Pipeline,
		"stage":    string(r.Stage),
		"id":       r.DNS.ID,
		"qr":       f.QR,
		"op":       f.Opcode,
		"aa":       f.AA,
		"tc":       f.TC,
		"rd":       f.RD,
		"ra":       f.RA,
		"ad":       f.AD,
		"cd":       f.CD,
		"rcode":    f.RCode,
		"qd":       r.DNS.QDCount,
		"an":       r.DNS.ANCount,
		"ns":       r.DNS.NSCount,
		"ar":       r.DNS.ARCount,
		"src_mac":  r.Endpoints.SrcHW(),
		"dst_mac":  r.Endpoints.DstHW(),
		"src":      r.Endpoints.SrcIP.String(),
		"dst":      r.Endpoints.DstIP.String(),
		"sport":    r.Endpoints.SrcPort,
		"dport":    r.Endpoints.DstPort,
	}
	if r.Match.Any() {
		fields["blocked"] = matchKeys(r.Match)
	}
	e.logger.WithFields(fields).Info("dns frame")
}

// matchKeys lists the block-list hits, e.g. "dst_addr,dst_port".
func matchKeys(m core.Match) string {
	var b []byte
	add := func(hit bool, key string) {
		if !hit {
			return
		}
		if len(b) > 0 {
			b = append(b, ',')
		}
		b = append(b, key...)
	}
	add(m.SrcAddr, "src_addr")
	add(m.DstAddr, "dst_addr")
	add(m.SrcPort, "src_port")
	add(m.DstPort, "dst_port")
	return string(b)
}
