package pipeline

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"firestige.xyz/dnsreflect/internal/core"
	"firestige.xyz/dnsreflect/internal/metrics"
)

// Metrics contains per-pipeline counters.
type Metrics struct {
	Received    atomic.Uint64
	Passed      atomic.Uint64
	Aborted     atomic.Uint64
	Dropped     atomic.Uint64
	Transmitted atomic.Uint64
	TxErrors    atomic.Uint64
	Inspected   atomic.Uint64 // DNS-bound frames whose header was decoded
	Matched     atomic.Uint64 // DNS-bound frames with at least one block-list hit

	// prometheus children resolved once per pipeline
	frames   [core.ActionTX + 1]prometheus.Counter
	matches  [4]prometheus.Counter
	txErrors prometheus.Counter
	latency  prometheus.Observer
}

// NewMetrics creates a metrics instance labelled with the pipeline name.
func NewMetrics(name string) *Metrics {
	m := &Metrics{
		txErrors: metrics.TxErrorsTotal.WithLabelValues(name),
		latency:  metrics.ProcessLatencySeconds.WithLabelValues(name),
	}
	for a := core.ActionAbort; a <= core.ActionTX; a++ {
		m.frames[a] = metrics.FramesTotal.WithLabelValues(name, a.String())
	}
	for i, key := range []string{metrics.KeySrcAddr, metrics.KeyDstAddr, metrics.KeySrcPort, metrics.KeyDstPort} {
		m.matches[i] = metrics.BlocklistMatchesTotal.WithLabelValues(name, key)
	}
	return m
}

func (m *Metrics) countAction(a core.Action) {
	switch a {
	case core.ActionAbort:
		m.Aborted.Add(1)
	case core.ActionDrop:
		m.Dropped.Add(1)
	case core.ActionPass:
		m.Passed.Add(1)
	case core.ActionTX:
		m.Transmitted.Add(1)
	}
	if int(a) < len(m.frames) {
		m.frames[a].Inc()
	}
}

func (m *Metrics) countMatch(match core.Match) {
	if !match.Any() {
		return
	}
	m.Matched.Add(1)
	for i, hit := range [4]bool{match.SrcAddr, match.DstAddr, match.SrcPort, match.DstPort} {
		if hit {
			m.matches[i].Inc()
		}
	}
}

func (m *Metrics) countTxError() {
	m.TxErrors.Add(1)
	m.txErrors.Inc()
}

// Reset resets all counters to zero. Prometheus counters are not reset.
func (m *Metrics) Reset() {
	m.Received.Store(0)
	m.Passed.Store(0)
	m.Aborted.Store(0)
	m.Dropped.Store(0)
	m.Transmitted.Store(0)
	m.TxErrors.Store(0)
	m.Inspected.Store(0)
	m.Matched.Store(0)
}
