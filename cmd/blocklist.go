package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"firestige.xyz/dnsreflect/internal/config"
	"firestige.xyz/dnsreflect/internal/daemon"
	"firestige.xyz/dnsreflect/internal/log"
)

var blocklistCmd = &cobra.Command{
	Use:   "blocklist",
	Short: "Show the block-list the daemon would start with",
	Long: `Print the block-list entries the daemon would load at startup, combining
inline seeds, the seed file and the journal.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runBlocklist(configFile, os.Stdout); err != nil {
			exitWithError("failed to load block-list", err)
		}
	},
}

type blocklistView struct {
	Addresses []string `json:"addresses"`
	Ports     []uint16 `json:"ports"`
	Capacity  int      `json:"capacity"`
}

func runBlocklist(path string, w io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	// keep stdout clean for the JSON output
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	log.SetLogger(log.Wrap(quiet))

	bl, err := daemon.OpenBlocklist(cfg.Blocklist)
	if err != nil {
		return err
	}
	defer bl.Close()

	view := blocklistView{
		Addresses: []string{},
		Ports:     append([]uint16{}, bl.Store.Ports()...),
		Capacity:  bl.Store.Capacity(),
	}
	for _, a := range bl.Store.Addresses() {
		view.Addresses = append(view.Addresses, a.String())
	}

	resultJSON, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}
	fmt.Fprintln(w, string(resultJSON))
	return nil
}
