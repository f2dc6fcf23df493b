package daemon

import (
	"errors"
	"fmt"

	"firestige.xyz/dnsreflect/internal/blocklist"
	"firestige.xyz/dnsreflect/internal/config"
	"firestige.xyz/dnsreflect/internal/core"
	"firestige.xyz/dnsreflect/internal/log"
	"firestige.xyz/dnsreflect/internal/metrics"
)

// Blocklist bundles the store read by the engine with the writer used by the
// control plane. Writer journals changes when a state file is configured.
type Blocklist struct {
	Store  *blocklist.Store
	Writer blocklist.Writer

	journal *blocklist.Journal
}

// OpenBlocklist creates the store and populates it from the inline seeds,
// the seed file and the journal, in that order.
func OpenBlocklist(cfg config.BlocklistConfig) (*Blocklist, error) {
	seeds, err := LoadSeeds(cfg)
	if err != nil {
		return nil, err
	}

	b := &Blocklist{Store: blocklist.NewStore(cfg.Capacity)}
	b.Writer = b.Store
	if err := blocklist.Seed(b.Store, seeds); err != nil {
		return nil, err
	}

	if cfg.StateFile != "" {
		j, err := blocklist.OpenJournal(cfg.StateFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrControlPlane, err)
		}
		if err := j.Restore(b.Store); err != nil {
			return nil, errors.Join(err, j.Close())
		}
		b.journal = j
		b.Writer = blocklist.NewPersistent(b.Store, j)
	}

	b.observe()
	addrs, ports := b.Store.Len()
	log.GetLogger().WithFields(log.Fields{
		"addresses": addrs,
		"ports":     ports,
		"capacity":  cfg.Capacity,
		"journal":   cfg.StateFile,
	}).Info("block-list populated")
	return b, nil
}

// Close closes the journal, if any.
func (b *Blocklist) Close() error {
	if b.journal == nil {
		return nil
	}
	return b.journal.Close()
}

func (b *Blocklist) observe() {
	metrics.ObserveBlocklist(b.Store.Len())
}

// LoadSeeds merges the inline entries with the seed file.
func LoadSeeds(cfg config.BlocklistConfig) (blocklist.Seeds, error) {
	seeds, err := cfg.Seeds()
	if err != nil {
		return blocklist.Seeds{}, fmt.Errorf("%w: %w", core.ErrConfigInvalid, err)
	}
	if cfg.File != "" {
		fromFile, err := blocklist.LoadFile(cfg.File)
		if err != nil {
			return blocklist.Seeds{}, fmt.Errorf("%w: %w", core.ErrConfigInvalid, err)
		}
		seeds = seeds.Merge(fromFile)
	}
	return seeds, nil
}
