// Package scheduler runs the periodic background sweeps: HITL timeout
// processing on a wall-clock tick.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is a unit of periodic work.
type Sweeper interface {
	// Sweep processes due work at the given time, returning how many
	// items it handled.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Config holds scheduler settings. The tick must stay at or below one
// minute for auto_proceed timeouts to be useful.
type Config struct {
	Enabled      bool          `json:"enabled" envconfig:"SCHEDULER_ENABLED"`
	TickInterval time.Duration `json:"tickInterval" envconfig:"SCHEDULER_TICK"`
}

// DefaultConfig returns scheduler defaults.
func DefaultConfig() Config {
	return Config{Enabled: true, TickInterval: 30 * time.Second}
}

// Scheduler drives registered sweepers on a fixed tick.
type Scheduler struct {
	cfg      Config
	sweepers []Sweeper
}

// New creates a scheduler.
func New(cfg Config, sweepers ...Sweeper) *Scheduler {
	if cfg.TickInterval <= 0 || cfg.TickInterval > time.Minute {
		cfg.TickInterval = 30 * time.Second
	}
	return &Scheduler{cfg: cfg, sweepers: sweepers}
}

// Run ticks until the context is cancelled. Should be run as a goroutine.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	slog.Info("Scheduler started", "tick", s.cfg.TickInterval)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.tick(ctx, now.UTC())
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	for _, sw := range s.sweepers {
		count, err := sw.Sweep(ctx, now)
		if err != nil {
			slog.Warn("Sweep failed", "error", err)
			continue
		}
		if count > 0 {
			slog.Info("Sweep processed items", "count", count)
		}
	}
}
