// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/dnsreflect/internal/blocklist"
	"firestige.xyz/dnsreflect/internal/core"
)

// Config is the top-level configuration, found under the `dnsreflect:` root key.
type Config struct {
	Interface   string            `mapstructure:"interface"`
	Workers     int               `mapstructure:"workers"`
	Capture     CaptureConfig     `mapstructure:"capture"`
	Blocklist   BlocklistConfig   `mapstructure:"blocklist"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	Control     ControlConfig     `mapstructure:"control"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Log         LogConfig         `mapstructure:"log"`
}

// ─── Capture ───

// CaptureConfig tunes the AF_PACKET ring shared by all workers.
type CaptureConfig struct {
	SnapLen      int           `mapstructure:"snap_len"`
	BufferSizeMB int           `mapstructure:"buffer_size_mb"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
	FanoutID     uint16        `mapstructure:"fanout_id"` // used when workers > 1
	Prefilter    bool          `mapstructure:"prefilter"` // kernel BPF: IPv4/UDP/53 only
}

// ─── Block-list ───

// BlocklistConfig seeds the block-list store.
type BlocklistConfig struct {
	Capacity  int      `mapstructure:"capacity"` // per table
	Addresses []string `mapstructure:"addresses"`
	Ports     []int    `mapstructure:"ports"`
	File      string   `mapstructure:"file"`       // optional YAML seed file
	StateFile string   `mapstructure:"state_file"` // optional sqlite journal; empty = in-memory only
}

// Seeds parses the inline seed entries.
func (c BlocklistConfig) Seeds() (blocklist.Seeds, error) {
	return blocklist.ParseSeeds(c.Addresses, c.Ports)
}

// ─── Diagnostics ───

// DiagnosticsConfig toggles per-frame diagnostic records.
type DiagnosticsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ─── Control Plane ───

// ControlConfig configures the block-list HTTP API.
type ControlConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string           `mapstructure:"level"`  // trace / debug / info / warn / error
	Format     string           `mapstructure:"format"` // text / json
	Pattern    string           `mapstructure:"pattern"`
	TimeFormat string           `mapstructure:"time_format"`
	Outputs    LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains log destinations besides stdout.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

const rootKey = "dnsreflect"

// configRoot is the wrapper matching the YAML structure `dnsreflect: ...`.
type configRoot struct {
	Dnsreflect Config `mapstructure:"dnsreflect"`
}

// Load loads configuration from path. An empty path yields the defaults,
// still subject to environment overrides (e.g. DNSREFLECT_LOG_LEVEL).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// key "dnsreflect.log.level" maps to env "DNSREFLECT_LOG_LEVEL"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Dnsreflect

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	def := func(key string, value any) { v.SetDefault(rootKey+"."+key, value) }

	def("interface", "eth0")
	def("workers", 1)

	def("capture.snap_len", 65535)
	def("capture.buffer_size_mb", 8)
	def("capture.poll_timeout", "100ms")
	def("capture.fanout_id", 53)
	def("capture.prefilter", true)

	def("blocklist.capacity", blocklist.DefaultCapacity)
	def("blocklist.addresses", []string{"1.1.1.1"})
	def("blocklist.ports", []int{53})
	def("blocklist.file", "")
	def("blocklist.state_file", "")

	def("diagnostics.enabled", true)

	def("control.enabled", false)
	def("control.listen", "127.0.0.1:9190")

	def("metrics.enabled", false)
	def("metrics.listen", ":9191")
	def("metrics.path", "/metrics")

	def("log.level", "info")
	def("log.format", "text")
	def("log.pattern", "%time [%level] %msg %field%n")
	def("log.time_format", "2006-01-02 15:04:05.000")
	def("log.outputs.file.enabled", false)
	def("log.outputs.file.path", "/var/log/dnsreflect/dnsreflect.log")
	def("log.outputs.file.rotation.max_size_mb", 100)
	def("log.outputs.file.rotation.max_age_days", 30)
	def("log.outputs.file.rotation.max_backups", 5)
	def("log.outputs.file.rotation.compress", true)
}

// ValidateAndApplyDefaults validates the configuration. Every failure wraps
// core.ErrConfigInvalid.
func (cfg *Config) ValidateAndApplyDefaults() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", core.ErrConfigInvalid, fmt.Sprintf(format, args...))
	}

	// ── Log ──
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return invalid("log level %q (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return invalid("log format %q (must be json/text)", cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return invalid("log.outputs.file.path is required when file output is enabled")
	}

	// ── Capture ──
	if strings.TrimSpace(cfg.Interface) == "" {
		return invalid("interface must not be empty")
	}
	if cfg.Workers < 1 {
		return invalid("workers must be >= 1, got %d", cfg.Workers)
	}
	if cfg.Capture.SnapLen <= 0 {
		cfg.Capture.SnapLen = 65535
	}
	if cfg.Capture.BufferSizeMB <= 0 {
		cfg.Capture.BufferSizeMB = 8
	}
	if cfg.Capture.PollTimeout <= 0 {
		cfg.Capture.PollTimeout = 100 * time.Millisecond
	}

	// ── Block-list ──
	if cfg.Blocklist.Capacity < 1 {
		return invalid("blocklist.capacity must be >= 1, got %d", cfg.Blocklist.Capacity)
	}
	seeds, err := cfg.Blocklist.Seeds()
	if err != nil {
		return invalid("blocklist seeds: %v", err)
	}
	if len(seeds.Addresses) > cfg.Blocklist.Capacity || len(seeds.Ports) > cfg.Blocklist.Capacity {
		return invalid("blocklist seeds exceed capacity %d", cfg.Blocklist.Capacity)
	}

	// ── Listeners ──
	if cfg.Control.Enabled && cfg.Control.Listen == "" {
		return invalid("control.listen is required when control.enabled=true")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return invalid("metrics.listen is required when metrics.enabled=true")
	}
	if cfg.Metrics.Path == "" || !strings.HasPrefix(cfg.Metrics.Path, "/") {
		cfg.Metrics.Path = "/metrics"
	}
	return nil
}
