// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesTotal counts frames by final action (abort/drop/pass/tx)
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dnsreflect_frames_total",
			Help: "Total number of frames processed, by action",
		},
		[]string{"pipeline", "action"},
	)

	// BlocklistMatchesTotal counts block-list hits on DNS-bound frames
	BlocklistMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dnsreflect_blocklist_matches_total",
			Help: "Total number of block-list matches on DNS-bound frames",
		},
		[]string{"pipeline", "key"},
	)

	// TxErrorsTotal counts reflected frames that could not be written back
	TxErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dnsreflect_tx_errors_total",
			Help: "Total number of reflected frames that failed to transmit",
		},
		[]string{"pipeline"},
	)

	// ProcessLatencySeconds measures the decision chain per frame
	ProcessLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dnsreflect_process_latency_seconds",
			Help:    "Latency of the per-frame decision chain in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00000005, 2, 16), // 50ns to ~1.6ms
		},
		[]string{"pipeline"},
	)

	// BlocklistEntries tracks the size of each block-list table
	BlocklistEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dnsreflect_blocklist_entries",
			Help: "Current number of entries per block-list table",
		},
		[]string{"table"},
	)
)

// Block-list match keys.
const (
	KeySrcAddr = "src_addr"
	KeyDstAddr = "dst_addr"
	KeySrcPort = "src_port"
	KeyDstPort = "dst_port"
)

// ObserveBlocklist publishes the current table sizes.
func ObserveBlocklist(addresses, ports int) {
	BlocklistEntries.WithLabelValues("addresses").Set(float64(addresses))
	BlocklistEntries.WithLabelValues("ports").Set(float64(ports))
}
