package provider

import (
	"context"
)

// Gate bounds concurrent calls to an underlying provider so the external
// rate limit is never exceeded by a wide parallel delegation.
type Gate struct {
	inner LLMProvider
	slots chan struct{}
}

// NewGate wraps a provider with a concurrency limit.
func NewGate(inner LLMProvider, maxConcurrent int) *Gate {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Gate{
		inner: inner,
		slots: make(chan struct{}, maxConcurrent),
	}
}

// Generate acquires a slot, forwards the call, and releases the slot.
// Blocks until a slot is free or the context is cancelled.
func (g *Gate) Generate(ctx context.Context, prompt, systemPrompt string, temperature float64, maxTokens int) (string, error) {
	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-g.slots }()
	return g.inner.Generate(ctx, prompt, systemPrompt, temperature, maxTokens)
}

// DefaultModel returns the wrapped provider's default model.
func (g *Gate) DefaultModel() string { return g.inner.DefaultModel() }

// Available returns the number of free slots.
func (g *Gate) Available() int { return cap(g.slots) - len(g.slots) }
