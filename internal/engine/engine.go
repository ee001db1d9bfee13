// Package engine implements the task state machine: admission, analysis,
// delegation fan-out, child completion fan-in, aggregation, and
// finalization. The store is the source of truth; the bus only mirrors
// state changes for dashboards.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/OrgWeave/OrgWeave/internal/bus"
	"github.com/OrgWeave/OrgWeave/internal/notify"
	"github.com/OrgWeave/OrgWeave/internal/org"
	"github.com/OrgWeave/OrgWeave/internal/prompts"
	"github.com/OrgWeave/OrgWeave/internal/provider"
	"github.com/OrgWeave/OrgWeave/internal/store"
)

// Guard errors surfaced to callers at submission.
var (
	ErrOrgNotActive = errors.New("org is not active")
	ErrNodePaused   = errors.New("node is paused")
	ErrNoRootNode   = errors.New("org has no root node")
)

// Reviewer is the HITL surface the engine consults at its gates. A nil
// reviewer disables all gates.
type Reviewer interface {
	QueueForReview(ctx context.Context, node *org.Node, task *org.Task, reviewType string, content *org.Response) (*org.QueueItem, error)
}

// Config holds engine settings.
type Config struct {
	Workers   int `json:"workers" envconfig:"ENGINE_WORKERS"`
	QueueSize int `json:"queueSize" envconfig:"ENGINE_QUEUE_SIZE"`
}

// DefaultConfig returns engine defaults.
func DefaultConfig() Config {
	return Config{Workers: 4, QueueSize: 256}
}

// Engine drives tasks through the state machine. One logical executor
// owns a task at a time: per-task keyed mutexes serialize transitions,
// and the per-parent mutex makes the aggregation trigger fire exactly
// once.
type Engine struct {
	store    *store.Store
	bus      *bus.Bus
	llm      provider.LLMProvider // nil runs the engine on default plans
	notifier *notify.Service
	reviewer Reviewer
	prompts  prompts.Builder

	locks keyedMutex

	mu      sync.RWMutex
	running bool
	queue   chan func(context.Context)
	wg      sync.WaitGroup
}

// New creates an engine. The LLM provider and notifier may be nil.
func New(cfg Config, st *store.Store, eventBus *bus.Bus, llm provider.LLMProvider, notifier *notify.Service) *Engine {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &Engine{
		store:    st,
		bus:      eventBus,
		llm:      llm,
		notifier: notifier,
		queue:    make(chan func(context.Context), cfg.QueueSize),
	}
}

// SetReviewer attaches the HITL manager. Must be called before Start.
func (e *Engine) SetReviewer(r Reviewer) { e.reviewer = r }

// Start launches the worker pool. Without Start the engine runs every
// unit of work inline on the caller's goroutine, which keeps one-shot
// commands and tests deterministic.
func (e *Engine) Start(ctx context.Context, workers int) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker(ctx)
	}
	slog.Info("Task engine started", "workers", workers)
}

// Wait blocks until all workers have exited after context cancellation.
func (e *Engine) Wait() { e.wg.Wait() }

func (e *Engine) worker(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case unit := <-e.queue:
			unit(ctx)
		}
	}
}

// enqueue hands a unit of work to the pool, or runs it inline when the
// pool is not running. A full queue spills to a fresh goroutine rather
// than blocking a worker that is fanning out children.
func (e *Engine) enqueue(unit func(context.Context)) {
	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()
	if !running {
		unit(context.Background())
		return
	}
	select {
	case e.queue <- unit:
	default:
		go unit(context.Background())
	}
}

// logEvent persists an event row and mirrors it on the bus. Event logging
// is monitoring only, so persistence failures are logged and swallowed.
func (e *Engine) logEvent(orgID, eventType string, payload map[string]any, sourceNode, targetNode, taskID string) {
	ev := org.NewEvent(orgID, eventType, payload)
	ev.SourceNodeID = sourceNode
	ev.TargetNodeID = targetNode
	ev.TaskID = taskID
	if err := e.store.SaveEvent(ev); err != nil {
		slog.Warn("Event log write failed", "type", eventType, "error", err)
	}
	if e.bus != nil {
		e.bus.Publish(bus.Topic(orgID), bus.Event{Type: eventType, Payload: payload})
	}
}

// gateEnabled decides whether a HITL gate applies to a node. The three
// schema flags map one gate each: enabled alone reviews incoming tasks,
// review_delegation reviews delegation plans, approval_required reviews
// outgoing responses.
func gateEnabled(node *org.Node, reviewType string) bool {
	if !node.HITL.Enabled {
		return false
	}
	switch reviewType {
	case org.ReviewTaskReceived:
		return !node.HITL.ApprovalRequired && !node.HITL.ReviewDelegation
	case org.ReviewDelegation:
		return node.HITL.ReviewDelegation
	case org.ReviewResponseApproval:
		return node.HITL.ApprovalRequired
	}
	return false
}

// keyedMutex hands out one mutex per key so independent tasks never
// contend.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}
