// Package engine implements the per-frame decision chain: classify a frame
// as DNS over UDP/IPv4, inspect its DNS header and block-list membership,
// and reflect it back to its sender.
package engine

import (
	"firestige.xyz/dnsreflect/internal/blocklist"
	"firestige.xyz/dnsreflect/internal/core"
	"firestige.xyz/dnsreflect/internal/core/decoder"
)

// Stage identifies a step of the decision chain.
type Stage uint8

const (
	StageEthernet Stage = iota
	StageIPv4
	StageUDP
	StageDNS
	StageReflect
)

var stageNames = [...]string{
	StageEthernet: "ethernet",
	StageIPv4:     "ipv4",
	StageUDP:      "udp",
	StageDNS:      "dns",
	StageReflect:  "reflect",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// chain is evaluated strictly in order and stops at the first terminal step.
var chain = [...]Stage{StageEthernet, StageIPv4, StageUDP, StageDNS, StageReflect}

// Result is the outcome of processing one frame.
type Result struct {
	Action core.Action
	Stage  Stage // step that terminated the chain
	Err    error // set when Action is ActionAbort, matches core.ErrOutOfBounds

	// Inspected is set once the DNS header of a DNS-bound frame was decoded;
	// DNS, Before and Match are only meaningful from then on.
	Inspected bool
	DNS       core.DNSHeader
	Before    core.Endpoints // as received
	After     core.Endpoints // after reflection, zero unless Action is ActionTX
	Match     core.Match
}

// Engine evaluates the decision chain. It holds no per-frame state and is
// safe for concurrent use as long as its Reader is.
type Engine struct {
	blocked blocklist.Reader
}

// New creates an engine that consults blocked for diagnostics. blocked may be nil.
func New(blocked blocklist.Reader) *Engine {
	return &Engine{blocked: blocked}
}

// Process runs the chain over data. data is mutated in place only when the
// returned action is ActionTX. Process does not allocate.
func (e *Engine) Process(data []byte) Result {
	var r Result
	for _, s := range chain {
		action, done, err := e.step(s, data, &r)
		if err != nil {
			r.Action = core.ActionAbort
			r.Stage = s
			r.Err = err
			return r
		}
		if done {
			r.Action = action
			r.Stage = s
			return r
		}
	}
	// unreachable: the reflect step always terminates
	r.Action = core.ActionPass
	return r
}

// step dispatches statically so that r stays on the caller's stack.
func (e *Engine) step(s Stage, data []byte, r *Result) (core.Action, bool, error) {
	switch s {
	case StageEthernet:
		return e.matchEthernet(data, r)
	case StageIPv4:
		return e.matchIPv4(data, r)
	case StageUDP:
		return e.matchUDP(data, r)
	case StageDNS:
		return e.inspectDNS(data, r)
	case StageReflect:
		return e.reflect(data, r)
	}
	return core.ActionPass, true, nil
}

func (e *Engine) matchEthernet(data []byte, r *Result) (core.Action, bool, error) {
	eth, err := decoder.Ethernet(data)
	if err != nil {
		return core.ActionAbort, true, err
	}
	if eth.EtherType() != decoder.EtherTypeIPv4 {
		return core.ActionPass, true, nil
	}
	r.Before.SrcMAC = eth.SrcMAC()
	r.Before.DstMAC = eth.DstMAC()
	return 0, false, nil
}

func (e *Engine) matchIPv4(data []byte, r *Result) (core.Action, bool, error) {
	ip, err := decoder.IPv4(data)
	if err != nil {
		return core.ActionAbort, true, err
	}
	if ip.Protocol() != decoder.ProtocolUDP {
		return core.ActionPass, true, nil
	}
	r.Before.SrcIP = ip.SrcAddr()
	r.Before.DstIP = ip.DstAddr()
	return 0, false, nil
}

func (e *Engine) matchUDP(data []byte, r *Result) (core.Action, bool, error) {
	udp, err := decoder.UDP(data)
	if err != nil {
		return core.ActionAbort, true, err
	}
	if udp.DstPort() != decoder.DNSPort {
		return core.ActionPass, true, nil
	}
	r.Before.SrcPort = udp.SrcPort()
	r.Before.DstPort = udp.DstPort()
	return 0, false, nil
}

// inspectDNS decodes the DNS header and looks the frame up in the
// block-lists. Neither result influences the action: every DNS-bound
// frame is reflected.
func (e *Engine) inspectDNS(data []byte, r *Result) (core.Action, bool, error) {
	dns, err := decoder.DNS(data)
	if err != nil {
		return core.ActionAbort, true, err
	}
	r.DNS = dns.Header()
	r.Inspected = true

	if e.blocked != nil {
		r.Match = core.Match{
			SrcAddr: e.blocked.IsBlockedAddress(r.Before.SrcIP),
			DstAddr: e.blocked.IsBlockedAddress(r.Before.DstIP),
			SrcPort: e.blocked.IsBlockedPort(r.Before.SrcPort),
			DstPort: e.blocked.IsBlockedPort(r.Before.DstPort),
		}
	}
	return 0, false, nil
}

// reflect rewrites the frame in place. After is read back from the rewritten
// bytes rather than derived from Before, so it describes what is sent.
func (e *Engine) reflect(data []byte, r *Result) (core.Action, bool, error) {
	eth, err := decoder.Ethernet(data)
	if err != nil {
		return core.ActionAbort, true, err
	}
	ip, err := decoder.IPv4(data)
	if err != nil {
		return core.ActionAbort, true, err
	}
	udp, err := decoder.UDP(data)
	if err != nil {
		return core.ActionAbort, true, err
	}
	if err := Reflect(data); err != nil {
		return core.ActionAbort, true, err
	}

	// the views alias data
	r.After = core.Endpoints{
		SrcMAC:  eth.SrcMAC(),
		DstMAC:  eth.DstMAC(),
		SrcIP:   ip.SrcAddr(),
		DstIP:   ip.DstAddr(),
		SrcPort: udp.SrcPort(),
		DstPort: udp.DstPort(),
	}
	return core.ActionTX, true, nil
}
