package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"firestige.xyz/dnsreflect/internal/config"
)

type logrusAdapter struct {
	entry *logrus.Entry
}

var (
	procMu  sync.Mutex
	proc    *logrus.Logger
	procOut *MultiWriter
)

// Init builds the process logger from cfg and installs it. Later calls
// reconfigure the same logrus logger in place, so loggers derived from an
// earlier GetLogger pick up the new level, format and outputs. The file
// appender of the previous configuration is closed.
func Init(cfg config.LogConfig) error {
	return initLogger(cfg, os.Stdout)
}

func initLogger(cfg config.LogConfig, stdout io.Writer) error {
	l, err := newLogger(cfg, stdout)
	if err != nil {
		return err
	}

	procMu.Lock()
	defer procMu.Unlock()

	if proc == nil {
		proc = l
	} else {
		proc.SetFormatter(l.Formatter)
		proc.SetOutput(l.Out)
		proc.SetLevel(l.GetLevel())
	}
	SetLogger(Wrap(proc))

	prev := procOut
	procOut, _ = l.Out.(*MultiWriter)
	if prev != nil {
		if err := prev.Close(); err != nil {
			proc.WithError(err).Warn("failed to close previous log output")
		}
	}
	return nil
}

// New builds a logrus logger writing to stdout and, when enabled, a
// rotating file.
func New(cfg config.LogConfig) (*logrus.Logger, error) {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.LogConfig, stdout io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	out := NewMultiWriter().Add(stdout)
	if cfg.Outputs.File.Enabled {
		if _, err := out.AddFileAppender(cfg.Outputs.File); err != nil {
			return nil, fmt.Errorf("failed to create file output: %w", err)
		}
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetOutput(out)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: cfg.TimeFormat})
	case "text", "":
		l.SetFormatter(newFormatter(cfg.Pattern, cfg.TimeFormat))
	default:
		return nil, fmt.Errorf("unsupported log format: %s (must be json or text)", cfg.Format)
	}
	return l, nil
}

func (l *logrusAdapter) Trace(args ...interface{})                 { l.entry.Trace(args...) }
func (l *logrusAdapter) Tracef(format string, args ...interface{}) { l.entry.Tracef(format, args...) }

func (l *logrusAdapter) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusAdapter) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *logrusAdapter) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *logrusAdapter) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

func (l *logrusAdapter) Warn(args ...interface{})                 { l.entry.Warn(args...) }
func (l *logrusAdapter) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

func (l *logrusAdapter) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusAdapter) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusAdapter) Fatal(args ...interface{})                 { l.entry.Fatal(args...) }
func (l *logrusAdapter) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

func (l *logrusAdapter) WithField(field string, value interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithField(field, value)}
}
func (l *logrusAdapter) WithFields(fields Fields) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}
func (l *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{entry: l.entry.WithError(err)}
}

func (l *logrusAdapter) IsTraceEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.TraceLevel)
}
func (l *logrusAdapter) IsDebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}
func (l *logrusAdapter) IsInfoEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.InfoLevel)
}
