package infrastructure

import (
	"apocaliptyx/domain/events"
)

// NoopEventPublisher drops every event. The offline maintenance commands use it.
type NoopEventPublisher struct{}

// NewNoopEventPublisher creates a new no-op event publisher
func NewNoopEventPublisher() *NoopEventPublisher {
	return &NoopEventPublisher{}
}

func (n *NoopEventPublisher) Publish(events.Event) error {
	return nil
}
