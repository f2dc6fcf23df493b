package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/dnsreflect/internal/config"
	"firestige.xyz/dnsreflect/internal/daemon"
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:     "daemon",
	Aliases: []string{"start"},
	Short:   "Run the reflector in foreground",
	Long: `Run the reflector in foreground.

The daemon will:
  1. Load configuration and initialize logging
  2. Populate the block-list from config, seed file and journal
  3. Start the metrics endpoint and block-list API (if configured)
  4. Attach one AF_PACKET socket per worker and start reflecting
  5. Handle signals for graceful shutdown (SIGTERM, SIGINT) and reload (SIGHUP)

Attach and block-list failures abort startup with a non-zero exit code.

Examples:
  dnsreflect daemon -c /etc/dnsreflect/config.yml
  dnsreflect daemon -i eth1 -w 4`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDaemon(); err != nil {
			exitWithError("daemon failed", err)
		}
	},
}

var (
	daemonInterface string
	daemonWorkers   int
)

func init() {
	daemonCmd.Flags().StringVarP(&daemonInterface, "interface", "i", "",
		"interface to attach to (overrides config)")
	daemonCmd.Flags().IntVarP(&daemonWorkers, "workers", "w", 0,
		"number of fanout workers (overrides config)")
}

// loadConfig loads the global config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if daemonInterface != "" {
		cfg.Interface = daemonInterface
	}
	if daemonWorkers > 0 {
		cfg.Workers = daemonWorkers
	}
	return cfg, nil
}

func runDaemon() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Starting dnsreflect on %s (%d worker(s))\n", cfg.Interface, cfg.Workers)

	d := daemon.New(cfg,
		daemon.WithConfigPath(configFile),
		daemon.WithPIDFile(pidFile),
	)
	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Run main loop (blocks until shutdown)
	return d.Run()
}
