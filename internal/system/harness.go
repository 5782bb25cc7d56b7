// Package system wires the engine, table registry, executor and sampler into
// one running harness, so the dashboard and the headless commands boot the
// same stack.
package system

import (
	"context"
	"fmt"

	"wtmt/internal/codec"
	"wtmt/internal/config"
	"wtmt/internal/engine"
	"wtmt/internal/executor"
	"wtmt/internal/logging"
	"wtmt/internal/stats"
	"wtmt/internal/workload"
)

// Harness is a fully initialized workload stack.
type Harness struct {
	Config   *config.Config
	Engine   engine.Engine
	Registry *workload.Registry
	Executor *executor.Executor
	Sampler  *stats.Sampler
}

// OpenEngine opens the storage engine described by cfg.
func OpenEngine(cfg *config.Config) (*engine.SQLEngine, error) {
	compression, err := codec.ParseType(cfg.Engine.Compression)
	if err != nil {
		return nil, err
	}
	return engine.Open(engine.Options{
		Driver:      cfg.Engine.Driver,
		Path:        cfg.DatabasePath(),
		Compression: compression,
		ValueSize:   cfg.Engine.ValueSize,
		BusyTimeout: cfg.GetBusyTimeout(),
	})
}

// LoadRegistry registers every table already present in the engine.
func LoadRegistry(ctx context.Context, eng engine.Engine) (*workload.Registry, error) {
	infos, err := eng.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	reg := workload.NewRegistry()
	for _, info := range infos {
		reg.Load(info.Name, info.Entries, info.MaxKey)
	}
	return reg, nil
}

// Boot validates cfg, opens the engine, loads existing tables and starts the
// executor.
func Boot(ctx context.Context, cfg *config.Config) (*Harness, error) {
	timer := logging.StartTimer(logging.CategoryBoot, "system.Boot")
	defer timer.Stop()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	eng, err := OpenEngine(cfg)
	if err != nil {
		return nil, err
	}
	return BootWithEngine(ctx, cfg, eng)
}

// BootWithEngine is Boot over an already opened engine. The harness takes
// ownership of eng.
func BootWithEngine(ctx context.Context, cfg *config.Config, eng engine.Engine) (*Harness, error) {
	reg, err := LoadRegistry(ctx, eng)
	if err != nil {
		eng.Close()
		return nil, err
	}
	logging.Boot("loaded %d tables (%d entries) from %s", len(reg.Tables()), reg.TotalEntries(), cfg.DatabasePath())

	ex := executor.New(eng, reg, executor.Config{
		Workers:    cfg.Workload.Workers,
		QueueDepth: cfg.Workload.QueueDepth,
		BatchSize:  cfg.Workload.BatchSize,
	})
	sampler := stats.NewSampler(stats.EngineSource{Stats: eng.Stats(), Registry: reg}, cfg.Stats.Window)

	return &Harness{
		Config:   cfg,
		Engine:   eng,
		Registry: reg,
		Executor: ex,
		Sampler:  sampler,
	}, nil
}

// Close stops the executor and closes the engine.
func (h *Harness) Close() error {
	if h == nil {
		return nil
	}
	if h.Executor != nil {
		h.Executor.Stop()
	}
	if h.Engine != nil {
		if err := h.Engine.Close(); err != nil {
			return fmt.Errorf("failed to close engine: %w", err)
		}
	}
	return nil
}
