package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/dnsreflect/internal/config"
	"firestige.xyz/dnsreflect/internal/daemon"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and block-list seeds",
	Long: `Load the configuration file and the block-list seed file without attaching
to any interface.

Examples:
  dnsreflect validate -c /etc/dnsreflect/config.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(configFile, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

func runValidate(path string, w io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	seeds, err := daemon.LoadSeeds(cfg.Blocklist)
	if err != nil {
		return err
	}
	if len(seeds.Addresses) > cfg.Blocklist.Capacity || len(seeds.Ports) > cfg.Blocklist.Capacity {
		return fmt.Errorf("block-list seeds exceed capacity %d", cfg.Blocklist.Capacity)
	}

	fmt.Fprintf(w, "VALID: interface %q, %d worker(s), %d blocked address(es), %d blocked port(s)\n",
		cfg.Interface,
		cfg.Workers,
		len(seeds.Addresses),
		len(seeds.Ports),
	)
	return nil
}
