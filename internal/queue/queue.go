// Package queue publishes saved-user events so downstream consumers (mail
// campaigns, analytics) can react to new records without polling the
// database.
package queue

import (
	"context"
	"time"
)

// SavedUserEvent is emitted once per newly persisted user.
type SavedUserEvent struct {
	GitUsername string    `json:"git_username"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Country     string    `json:"country"`
	SavedAt     time.Time `json:"saved_at"`
}

// Publisher defines the common interface for an event publisher.
type Publisher interface {
	// Publish emits a saved-user event. Implementations must not block
	// indefinitely; delivery is best-effort from the crawler's perspective.
	Publish(ctx context.Context, event SavedUserEvent) error
	// Close releases any underlying connections.
	Close() error
}

// NoOpPublisher discards all events. It is used when no event stream is
// configured.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(context.Context, SavedUserEvent) error { return nil }
func (NoOpPublisher) Close() error                                  { return nil }
