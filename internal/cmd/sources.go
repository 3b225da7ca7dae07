package cmd

import (
	"github.com/dendrascience/dockerfs/dockerfs"
	"github.com/dendrascience/dockerfs/internal/config"
	"github.com/dendrascience/dockerfs/inventory"
	"github.com/dendrascience/dockerfs/namespace"
)

// newSources creates one inventory source per configured kind, in merge
// order.
func newSources(cfg *config.Config, runner inventory.Runner) ([]*inventory.Source, error) {
	kinds, err := cfg.Kinds()
	if err != nil {
		return nil, err
	}
	if runner == nil {
		runner = inventory.ExecRunner{Timeout: cfg.QueryTimeout}
	}
	sources := make([]*inventory.Source, 0, len(kinds))
	for _, k := range kinds {
		src := inventory.NewSource(k, cfg.Runtime, runner)
		src.NoTrunc = cfg.NoTrunc
		sources = append(sources, src)
	}
	return sources, nil
}

// newAdapter wires the configured sources into gates and an adapter. A nil
// runner runs the real runtime binary.
func newAdapter(cfg *config.Config, runner inventory.Runner) (*dockerfs.Adapter, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	sources, err := newSources(cfg, runner)
	if err != nil {
		return nil, err
	}
	gates := make([]*namespace.Gate, 0, len(sources))
	for _, src := range sources {
		gates = append(gates, namespace.NewGate(string(src.Kind), src, policy))
	}
	return dockerfs.NewAdapter(dockerfs.Options{RefreshInterval: cfg.RefreshInterval}, gates...), nil
}
