// Package daemon implements the reflector lifecycle manager.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"firestige.xyz/dnsreflect/internal/blocklist"
	"firestige.xyz/dnsreflect/internal/config"
	"firestige.xyz/dnsreflect/internal/control"
	"firestige.xyz/dnsreflect/internal/core"
	"firestige.xyz/dnsreflect/internal/diag"
	"firestige.xyz/dnsreflect/internal/engine"
	"firestige.xyz/dnsreflect/internal/log"
	"firestige.xyz/dnsreflect/internal/metrics"
	"firestige.xyz/dnsreflect/internal/pipeline"
	"firestige.xyz/dnsreflect/internal/source/afpacket"
)

const shutdownTimeout = 5 * time.Second

// FrameSource is a pipeline source that owns a kernel or file handle.
type FrameSource interface {
	pipeline.Source
	Close() error
}

// SourceFactory opens the frame source for one worker.
type SourceFactory func(cfg *config.Config, worker int) (FrameSource, error)

// Option customizes a Daemon.
type Option func(*Daemon)

// WithConfigPath records the file the configuration was loaded from, so
// SIGHUP can reload it.
func WithConfigPath(path string) Option {
	return func(d *Daemon) { d.configPath = path }
}

// WithPIDFile makes the daemon write its PID to path while running.
func WithPIDFile(path string) Option {
	return func(d *Daemon) { d.pidFile = path }
}

// WithSourceFactory replaces the AF_PACKET source.
func WithSourceFactory(f SourceFactory) Option {
	return func(d *Daemon) { d.openSource = f }
}

// Daemon manages the reflector process lifecycle.
type Daemon struct {
	// Configuration
	config     *config.Config
	configPath string
	pidFile    string
	openSource SourceFactory

	// Core components
	blocklist *Blocklist
	engine    *engine.Engine
	sources   []FrameSource
	pipelines []*pipeline.Pipeline

	metricsServer *metrics.Server // nil if metrics disabled
	controlServer *control.Server // nil if control API disabled

	// Lifecycle management
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownChan chan struct{}
	failChan     chan error
	sigChan      chan os.Signal
	stopOnce     sync.Once
}

// New creates a daemon for a validated configuration.
func New(cfg *config.Config, opts ...Option) *Daemon {
	d := &Daemon{
		config:       cfg,
		openSource:   openAFPacket,
		shutdownChan: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// Start brings up every component. Any failure is returned after the
// components started so far have been torn down.
func (d *Daemon) Start() (err error) {
	// 1. Initialize logging system
	if err := log.Init(d.config.Log); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger := log.GetLogger()
	logger.WithFields(log.Fields{
		"interface": d.config.Interface,
		"workers":   d.config.Workers,
		"config":    d.configPath,
	}).Info("starting dnsreflect daemon")

	defer func() {
		if err != nil {
			d.Stop()
		}
	}()

	// 2. Write PID file
	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	// 3. Populate the block-list before any frame is processed
	d.blocklist, err = OpenBlocklist(d.config.Blocklist)
	if err != nil {
		return err
	}

	// 4. Start metrics server
	if d.config.Metrics.Enabled {
		d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
		if err := d.metricsServer.Start(d.ctx); err != nil {
			d.metricsServer = nil
			return err
		}
	}

	// 5. Start block-list control API
	if d.config.Control.Enabled {
		d.controlServer = control.NewServer(d.config.Control.Listen, d.blocklist.Store, d.blocklist.Writer)
		if err := d.controlServer.Start(d.ctx); err != nil {
			d.controlServer = nil
			return err
		}
	}

	// 6. Attach one source per worker and start the pipelines
	d.engine = engine.New(d.blocklist.Store)
	emitter := newEmitter(d.config.Diagnostics)
	d.failChan = make(chan error, d.config.Workers)
	for i := 0; i < d.config.Workers; i++ {
		src, err := d.openSource(d.config, i)
		if err != nil {
			return fmt.Errorf("worker %d: %w", i, err)
		}
		d.sources = append(d.sources, src)

		p := pipeline.NewBuilder().
			WithID(i).
			WithName(fmt.Sprintf("%s-%d", d.config.Interface, i)).
			WithSource(src).
			WithEngine(d.engine).
			WithEmitter(emitter).
			Build()
		d.pipelines = append(d.pipelines, p)
		p.Start(d.ctx)
		go d.watch(p)
	}

	logger.Info("daemon started successfully")
	return nil
}

// watch reports a pipeline that exits on its own.
func (d *Daemon) watch(p *pipeline.Pipeline) {
	select {
	case <-p.Done():
	case <-d.ctx.Done():
		return
	}
	if d.ctx.Err() != nil {
		return
	}
	err := p.Stop()
	if err == nil {
		err = fmt.Errorf("%w: %s: source exhausted", core.ErrPipelineStopped, p.Name())
	}
	d.failChan <- err
}

// Stop performs graceful shutdown. It is safe to call more than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(d.stop)
}

func (d *Daemon) stop() {
	logger := log.GetLogger()
	logger.Info("initiating graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// 1. Stop control API (no new block-list writes)
	if d.controlServer != nil {
		if err := d.controlServer.Stop(ctx); err != nil {
			logger.WithError(err).Error("error stopping control server")
		}
	}

	// 2. Stop pipelines before their sources are closed
	d.cancel()
	for _, p := range d.pipelines {
		if err := p.Stop(); err != nil {
			logger.WithError(err).WithField("pipeline", p.Name()).Warn("pipeline ended with error")
		}
	}

	// 3. Detach sources
	for _, st := range d.SourceStats() {
		logger.WithFields(log.Fields{
			"received": st.Received,
			"sent":     st.Sent,
			"drops":    st.Drops,
		}).Info("socket statistics")
	}
	for _, s := range d.sources {
		if err := s.Close(); err != nil {
			logger.WithError(err).Error("error closing source")
		}
	}

	// 4. Stop metrics server
	if d.metricsServer != nil {
		if err := d.metricsServer.Stop(ctx); err != nil {
			logger.WithError(err).Error("error stopping metrics server")
		}
	}

	// 5. Close block-list journal
	if d.blocklist != nil {
		if err := d.blocklist.Close(); err != nil {
			logger.WithError(err).Error("error closing block-list journal")
		}
	}

	if d.sigChan != nil {
		signal.Stop(d.sigChan)
	}
	if err := d.removePIDFile(); err != nil {
		logger.WithError(err).Error("error removing PID file")
	}

	logger.WithFields(statsFields(d.Stats())).Info("daemon stopped gracefully")
}

// Run blocks until shutdown is triggered by SIGTERM/SIGINT, TriggerShutdown
// or a pipeline exiting on its own. SIGHUP reloads the configuration.
// A pipeline failure is returned.
func (d *Daemon) Run() error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	logger := log.GetLogger()
	logger.Info("daemon running, waiting for signals")

	for {
		select {
		case sig := <-d.sigChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				logger.WithField("signal", sig.String()).Info("received shutdown signal")
				d.Stop()
				return nil
			case syscall.SIGHUP:
				logger.Info("received reload signal")
				if err := d.Reload(); err != nil {
					logger.WithError(err).Error("failed to reload config")
				}
			}
		case <-d.shutdownChan:
			logger.Info("shutdown triggered")
			d.Stop()
			return nil
		case err := <-d.failChan:
			logger.WithError(err).Error("pipeline exited")
			d.Stop()
			return err
		case <-d.ctx.Done():
			d.Stop()
			return nil
		}
	}
}

// Reload re-reads the configuration file.
// Hot-reloadable: log settings, inline and file seeds (additive).
// Everything else requires a restart.
func (d *Daemon) Reload() error {
	if d.configPath == "" {
		return errors.New("no config file to reload")
	}
	newConfig, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	hotReloaded := []string{}
	if err := log.Init(newConfig.Log); err != nil {
		log.GetLogger().WithError(err).Error("failed to reinitialize logging")
	} else {
		d.config.Log = newConfig.Log
		hotReloaded = append(hotReloaded, "log")
	}

	seeds, err := LoadSeeds(newConfig.Blocklist)
	if err != nil {
		return err
	}
	if err := blocklist.Seed(d.blocklist.Store, seeds); err != nil {
		return err
	}
	d.blocklist.observe()
	hotReloaded = append(hotReloaded, "blocklist")

	requiresRestart := []string{}
	if newConfig.Interface != d.config.Interface {
		requiresRestart = append(requiresRestart, "interface")
	}
	if newConfig.Workers != d.config.Workers {
		requiresRestart = append(requiresRestart, "workers")
	}
	if newConfig.Capture != d.config.Capture {
		requiresRestart = append(requiresRestart, "capture")
	}
	if newConfig.Metrics != d.config.Metrics {
		requiresRestart = append(requiresRestart, "metrics")
	}
	if newConfig.Control != d.config.Control {
		requiresRestart = append(requiresRestart, "control")
	}
	if newConfig.Diagnostics != d.config.Diagnostics {
		requiresRestart = append(requiresRestart, "diagnostics")
	}

	log.GetLogger().WithFields(log.Fields{
		"hot_reloaded":     hotReloaded,
		"requires_restart": requiresRestart,
	}).Info("configuration reloaded")
	return nil
}

// TriggerShutdown triggers graceful shutdown from an external caller.
func (d *Daemon) TriggerShutdown() {
	select {
	case d.shutdownChan <- struct{}{}:
	default:
	}
}

// Stats sums the statistics of every pipeline.
func (d *Daemon) Stats() pipeline.Stats {
	var total pipeline.Stats
	for _, p := range d.pipelines {
		total = total.Add(p.Stats())
	}
	return total
}

// SourceStats returns kernel ring counters of the AF_PACKET sources. It must
// not be called after Stop.
func (d *Daemon) SourceStats() []afpacket.Stats {
	var out []afpacket.Stats
	for _, s := range d.sources {
		if as, ok := s.(*afpacket.Source); ok {
			out = append(out, as.Stats())
		}
	}
	return out
}

func (d *Daemon) writePIDFile() error {
	if d.pidFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(d.pidFile), 0o755); err != nil {
		return err
	}
	return os.WriteFile(d.pidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

func (d *Daemon) removePIDFile() error {
	if d.pidFile == "" {
		return nil
	}
	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func openAFPacket(cfg *config.Config, worker int) (FrameSource, error) {
	acfg := afpacket.Config{
		Interface:    cfg.Interface,
		SnapLen:      cfg.Capture.SnapLen,
		BufferSizeMB: cfg.Capture.BufferSizeMB,
		PollTimeout:  cfg.Capture.PollTimeout,
		Prefilter:    cfg.Capture.Prefilter,
	}
	if cfg.Workers > 1 {
		acfg.FanoutID = cfg.Capture.FanoutID
	}
	src, err := afpacket.Open(acfg)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func newEmitter(cfg config.DiagnosticsConfig) diag.Emitter {
	if !cfg.Enabled {
		return diag.Nop{}
	}
	return diag.NewLogEmitter(log.GetLogger())
}

func statsFields(s pipeline.Stats) log.Fields {
	return log.Fields{
		"received":    s.Received,
		"passed":      s.Passed,
		"aborted":     s.Aborted,
		"transmitted": s.Transmitted,
		"tx_errors":   s.TxErrors,
		"matched":     s.Matched,
	}
}
