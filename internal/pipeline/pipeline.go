// Package pipeline implements the per-queue receive, decide and transmit loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"firestige.xyz/dnsreflect/internal/core"
	"firestige.xyz/dnsreflect/internal/diag"
	"firestige.xyz/dnsreflect/internal/engine"
	"firestige.xyz/dnsreflect/internal/log"
)

// Source delivers frames and transmits reflected ones.
//
// ReadFrame returns io.EOF when the source is exhausted and
// core.ErrReadTimeout when no frame arrived in time. The returned data may be
// mutated by the caller until the next ReadFrame.
type Source interface {
	ReadFrame() (core.RawFrame, error)
	WriteFrame(data []byte) error
}

// Pipeline is a single-threaded frame processing loop. Several pipelines may
// share one engine.
type Pipeline struct {
	id      int
	name    string
	source  Source
	engine  *engine.Engine
	emitter diag.Emitter
	metrics *Metrics
	logger  log.Logger

	// Runtime state
	cancel context.CancelFunc
	done   chan struct{}
	err    error
	once   sync.Once
}

// Config contains pipeline configuration.
type Config struct {
	ID      int
	Name    string // metrics and log label, defaults to "pipeline-<ID>"
	Source  Source
	Engine  *engine.Engine
	Emitter diag.Emitter // nil disables diagnostics
}

// New creates a new pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("pipeline-%d", cfg.ID)
	}
	if cfg.Emitter == nil {
		cfg.Emitter = diag.Nop{}
	}
	return &Pipeline{
		id:      cfg.ID,
		name:    cfg.Name,
		source:  cfg.Source,
		engine:  cfg.Engine,
		emitter: cfg.Emitter,
		metrics: NewMetrics(cfg.Name),
		logger:  log.GetLogger().WithFields(log.Fields{"pipeline": cfg.Name}),
		done:    make(chan struct{}),
	}
}

// Name returns the pipeline label.
func (p *Pipeline) Name() string { return p.name }

// Start runs the loop in the background until Stop, the end of the source or
// a read failure.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go func() {
		defer close(p.done)
		p.err = p.Run(ctx)
	}()
}

// Stop stops the pipeline and waits for the loop to exit. It returns the
// error the loop ended with, if any.
func (p *Pipeline) Stop() error {
	if p.cancel == nil {
		return nil
	}
	p.once.Do(p.cancel)
	<-p.done
	return p.err
}

// Done is closed when a started pipeline has exited.
func (p *Pipeline) Done() <-chan struct{} { return p.done }

// Run processes frames until ctx is cancelled or the source ends. A clean
// end (cancellation or io.EOF) returns nil.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started")
	defer p.logger.Info("pipeline stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		raw, err := p.source.ReadFrame()
		if err != nil {
			switch {
			case errors.Is(err, core.ErrReadTimeout):
				continue
			case errors.Is(err, io.EOF):
				return nil
			default:
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%w: %s: read frame: %w", core.ErrPipelineStopped, p.name, err)
			}
		}
		p.processFrame(raw)
	}
}

// processFrame runs one frame through the engine and transmits it when the
// verdict is TX.
func (p *Pipeline) processFrame(raw core.RawFrame) {
	p.metrics.Received.Add(1)

	start := time.Now()
	res := p.engine.Process(raw.Data)
	p.metrics.latency.Observe(time.Since(start).Seconds())

	if res.Inspected {
		p.metrics.Inspected.Add(1)
		p.metrics.countMatch(res.Match)
		p.emitter.Emit(diag.Record{
			Pipeline:  p.name,
			Stage:     diag.StageIngress,
			DNS:       res.DNS,
			Endpoints: res.Before,
			Match:     res.Match,
		})
	}

	if res.Action == core.ActionAbort && p.logger.IsTraceEnabled() {
		p.logger.WithFields(log.Fields{"stage": res.Stage.String(), "len": len(raw.Data)}).
			WithError(res.Err).Trace("frame aborted")
	}

	if res.Action == core.ActionTX {
		p.emitter.Emit(diag.Record{
			Pipeline:  p.name,
			Stage:     diag.StageReflected,
			DNS:       res.DNS,
			Endpoints: res.After,
			Match:     res.Match,
		})
		if err := p.source.WriteFrame(raw.Data); err != nil {
			p.metrics.countTxError()
			p.logger.WithError(err).Debug("failed to transmit reflected frame")
		}
	}
	p.metrics.countAction(res.Action)
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Received:    p.metrics.Received.Load(),
		Passed:      p.metrics.Passed.Load(),
		Aborted:     p.metrics.Aborted.Load(),
		Dropped:     p.metrics.Dropped.Load(),
		Transmitted: p.metrics.Transmitted.Load(),
		TxErrors:    p.metrics.TxErrors.Load(),
		Inspected:   p.metrics.Inspected.Load(),
		Matched:     p.metrics.Matched.Load(),
	}
}

// Stats represents pipeline statistics.
type Stats struct {
	Received    uint64 `json:"received"`
	Passed      uint64 `json:"passed"`
	Aborted     uint64 `json:"aborted"`
	Dropped     uint64 `json:"dropped"`
	Transmitted uint64 `json:"transmitted"`
	TxErrors    uint64 `json:"tx_errors"`
	Inspected   uint64 `json:"inspected"`
	Matched     uint64 `json:"matched"`
}

// Add accumulates s into t.
func (t Stats) Add(s Stats) Stats {
	t.Received += s.Received
	t.Passed += s.Passed
	t.Aborted += s.Aborted
	t.Dropped += s.Dropped
	t.Transmitted += s.Transmitted
	t.TxErrors += s.TxErrors
	t.Inspected += s.Inspected
	t.Matched += s.Matched
	return t
}
