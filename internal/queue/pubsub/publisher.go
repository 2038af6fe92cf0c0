// Package pubsub implements a Google Cloud Pub/Sub event publisher.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub"

	"github.com/gitscout/gitscout/internal/queue"
)

// Config captures the parameters required to connect to Pub/Sub.
type Config struct {
	ProjectID string
	TopicID   string
}

// Publisher publishes saved-user events to a Pub/Sub topic.
type Publisher struct {
	client *gcppubsub.Client
	topic  *gcppubsub.Topic
}

// New creates a Publisher for the configured project and topic.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project id is required")
	}
	if cfg.TopicID == "" {
		return nil, fmt.Errorf("topic id is required")
	}
	client, err := gcppubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &Publisher{
		client: client,
		topic:  client.Topic(cfg.TopicID),
	}, nil
}

// Publish marshals the event to JSON and publishes it, waiting for the
// server acknowledgment.
func (p *Publisher) Publish(ctx context.Context, event queue.SavedUserEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	result := p.topic.Publish(ctx, &gcppubsub.Message{
		Data:       data,
		Attributes: map[string]string{"git_username": event.GitUsername},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close flushes the topic and closes the client.
func (p *Publisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
