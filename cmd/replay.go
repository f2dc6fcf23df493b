package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/dnsreflect/internal/config"
	"firestige.xyz/dnsreflect/internal/daemon"
	"firestige.xyz/dnsreflect/internal/log"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Run the reflector over a pcap file",
	Long: `Feed every frame of a pcap capture through the reflector and print the
resulting statistics as JSON. Reflected frames are written to --out when given.

The block-list and diagnostics settings of the config file apply; the
interface, metrics and control settings are ignored.

Examples:
  dnsreflect replay --in queries.pcap
  dnsreflect replay -c config.yml --in queries.pcap --out reflected.pcap`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := runReplay(ctx, configFile, replayIn, replayOut, os.Stdout); err != nil {
			exitWithError("replay failed", err)
		}
	},
}

var (
	replayIn  string
	replayOut string
)

func init() {
	replayCmd.Flags().StringVar(&replayIn, "in", "", "input pcap file (required)")
	replayCmd.Flags().StringVar(&replayOut, "out", "", "output pcap file for reflected frames")
	replayCmd.MarkFlagRequired("in")
}

func runReplay(ctx context.Context, path, in, out string, w io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	stats, err := daemon.Replay(ctx, cfg, in, out)
	if err != nil {
		return err
	}

	resultJSON, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}
	fmt.Fprintln(w, string(resultJSON))
	return nil
}
