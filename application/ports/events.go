package ports

import (
	"context"
	"time"
)

// EntityEvent describes a lifecycle change published after a successful
// commit. Publishing is fire-and-forget; a failed publish is logged, never
// surfaced to the caller.
type EntityEvent struct {
	Action     string    `json:"action"` // created, updated, deleted, shared, unshared, moved
	EntityType string    `json:"entityType"`
	EntityKey  string    `json:"entityKey"` // partition+row composite
	UserRowKey string    `json:"userRowKey,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventPublisher publishes entity lifecycle events to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event EntityEvent) error
}
