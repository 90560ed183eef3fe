package services

import (
	"context"

	"borsapulse/pkg/contracts/events"
)

// EventPublisher broadcasts domain events to stream clients
type EventPublisher interface {
	Publish(ctx context.Context, typ events.Type, data any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, events.Type, any) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
