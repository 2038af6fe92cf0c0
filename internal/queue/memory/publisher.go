// Package memory implements an in-memory event publisher for tests.
package memory

import (
	"context"
	"sync"

	"github.com/gitscout/gitscout/internal/queue"
)

// Publisher records published events in order.
type Publisher struct {
	mu     sync.Mutex
	events []queue.SavedUserEvent
}

func New() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Publish(_ context.Context, event queue.SavedUserEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *Publisher) Close() error { return nil }

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []queue.SavedUserEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.SavedUserEvent, len(p.events))
	copy(out, p.events)
	return out
}
