package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ClientInterface controls a running daemon. Defined as an interface so
// commands can be tested with a mock.
type ClientInterface interface {
	Stop(ctx context.Context) error
	Reload(ctx context.Context) error
}

var cli ClientInterface

// GetClient returns the injected client, or a signal client for the
// --pidfile daemon.
func GetClient() ClientInterface {
	if cli != nil {
		return cli
	}
	return &signalClient{pidFile: pidFile}
}

// SetClient injects the client used by stop and reload.
func SetClient(c ClientInterface) {
	cli = c
}

// signalClient talks to the daemon through POSIX signals, locating it by
// its PID file.
type signalClient struct {
	pidFile string
}

func (c *signalClient) pid() (int, error) {
	data, err := os.ReadFile(c.pidFile)
	if err != nil {
		return 0, fmt.Errorf("daemon not running (pid file %s): %w", c.pidFile, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s", c.pidFile)
	}
	return pid, nil
}

func (c *signalClient) signal(sig syscall.Signal) error {
	pid, err := c.pid()
	if err != nil {
		return err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return process.Signal(sig)
}

// Stop sends SIGTERM and waits for the daemon to remove its PID file.
func (c *signalClient) Stop(ctx context.Context) error {
	if err := c.signal(syscall.SIGTERM); err != nil {
		return err
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(c.pidFile); os.IsNotExist(err) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("daemon did not exit: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Reload sends SIGHUP.
func (c *signalClient) Reload(ctx context.Context) error {
	return c.signal(syscall.SIGHUP)
}
