package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.calls.Add(1)
	return 1, nil
}

func TestRunTicksSweepers(t *testing.T) {
	sweeper := &countingSweeper{}
	s := New(Config{Enabled: true, TickInterval: 10 * time.Millisecond}, sweeper)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_ = s.Run(ctx)

	if sweeper.calls.Load() < 2 {
		t.Fatalf("expected repeated sweeps, got %d", sweeper.calls.Load())
	}
}

func TestDisabledSchedulerReturnsImmediately(t *testing.T) {
	sweeper := &countingSweeper{}
	s := New(Config{Enabled: false, TickInterval: time.Millisecond}, sweeper)

	done := make(chan struct{})
	go func() {
		_ = s.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled scheduler did not return")
	}
	if sweeper.calls.Load() != 0 {
		t.Fatal("disabled scheduler must not sweep")
	}
}

func TestTickIntervalClampedToAMinute(t *testing.T) {
	s := New(Config{Enabled: true, TickInterval: time.Hour})
	if s.cfg.TickInterval > time.Minute {
		t.Fatalf("tick must stay at or below one minute, got %v", s.cfg.TickInterval)
	}
	s = New(Config{Enabled: true})
	if s.cfg.TickInterval <= 0 {
		t.Fatalf("zero tick not defaulted: %v", s.cfg.TickInterval)
	}
}
