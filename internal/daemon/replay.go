package daemon

import (
	"context"
	"errors"

	"firestige.xyz/dnsreflect/internal/config"
	"firestige.xyz/dnsreflect/internal/engine"
	"firestige.xyz/dnsreflect/internal/pipeline"
	"firestige.xyz/dnsreflect/internal/source/pcapfile"
)

// Replay runs the reflector over the pcap file in and returns the pipeline
// statistics. Reflected frames are written to out unless it is empty.
// Metrics and the control API are not started.
func Replay(ctx context.Context, cfg *config.Config, in, out string) (stats pipeline.Stats, err error) {
	bl, err := OpenBlocklist(cfg.Blocklist)
	if err != nil {
		return pipeline.Stats{}, err
	}
	defer func() { err = errors.Join(err, bl.Close()) }()

	src, err := pcapfile.Open(in, out)
	if err != nil {
		return pipeline.Stats{}, err
	}
	defer func() { err = errors.Join(err, src.Close()) }()

	p := pipeline.NewBuilder().
		WithName("replay").
		WithSource(src).
		WithEngine(engine.New(bl.Store)).
		WithEmitter(newEmitter(cfg.Diagnostics)).
		Build()

	err = p.Run(ctx)
	return p.Stats(), err
}
