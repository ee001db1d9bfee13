// Package services wires the core components into one explicitly passed
// value constructed at startup. No module-level mutable state.
package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/OrgWeave/OrgWeave/internal/bus"
	"github.com/OrgWeave/OrgWeave/internal/config"
	"github.com/OrgWeave/OrgWeave/internal/engine"
	"github.com/OrgWeave/OrgWeave/internal/hitl"
	"github.com/OrgWeave/OrgWeave/internal/notify"
	"github.com/OrgWeave/OrgWeave/internal/provider"
	"github.com/OrgWeave/OrgWeave/internal/scheduler"
	"github.com/OrgWeave/OrgWeave/internal/store"
)

// Services is the assembled core.
type Services struct {
	Cfg       config.Config
	Store     *store.Store
	Bus       *bus.Bus
	Provider  provider.LLMProvider
	Notifier  *notify.Service
	Engine    *engine.Engine
	HITL      *hitl.Manager
	Scheduler *scheduler.Scheduler

	kafkaMirror *bus.KafkaMirror
}

// New builds the full service graph from configuration.
func New(cfg config.Config) (*Services, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Paths.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.Open(cfg.Paths.DBPath)
	if err != nil {
		return nil, err
	}

	eventBus := bus.New()
	var mirror *bus.KafkaMirror
	if cfg.Kafka.Enabled {
		mirror = bus.NewKafkaMirror(cfg.Kafka)
		eventBus.SetMirror(mirror)
	}

	var channels []notify.Channel
	if cfg.Notify.Email.Enabled {
		channels = append(channels, notify.NewEmailChannel(cfg.Notify.Email))
	}
	if cfg.Notify.Slack.Enabled {
		channels = append(channels, notify.NewSlackChannel(cfg.Notify.Slack))
	}
	notifier := notify.NewService(eventBus, channels...)

	var llm provider.LLMProvider
	if cfg.Provider.APIKey != "" {
		llm = provider.NewGate(
			provider.NewOpenAIProvider(cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Provider.Model),
			cfg.Provider.MaxConcurrent)
	}

	eng := engine.New(cfg.Engine, st, eventBus, llm, notifier)
	manager := hitl.NewManager(st, eventBus, notifier)
	manager.SetResumer(eng)
	eng.SetReviewer(manager)

	sched := scheduler.New(cfg.Scheduler, &hitlSweeper{manager})

	return &Services{
		Cfg:         cfg,
		Store:       st,
		Bus:         eventBus,
		Provider:    llm,
		Notifier:    notifier,
		Engine:      eng,
		HITL:        manager,
		Scheduler:   sched,
		kafkaMirror: mirror,
	}, nil
}

// Close releases the store and the Kafka mirror.
func (s *Services) Close() error {
	if s.kafkaMirror != nil {
		_ = s.kafkaMirror.Close()
	}
	return s.Store.Close()
}

type hitlSweeper struct {
	manager *hitl.Manager
}

func (h *hitlSweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	return h.manager.CheckTimeouts(ctx, now)
}
