package infrastructure

import (
	"context"

	"apocaliptyx/domain/events"
	"apocaliptyx/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// NATSTransactionalPublisher buffers events until the owning transaction commits
type NATSTransactionalPublisher struct {
	realPublisher interfaces.EventPublisher
	pending       []events.Event
}

// NewNATSTransactionalPublisher creates a new transactional publisher
func NewNATSTransactionalPublisher(realPublisher interfaces.EventPublisher) *NATSTransactionalPublisher {
	return &NATSTransactionalPublisher{realPublisher: realPublisher}
}

// Publish queues the event
func (p *NATSTransactionalPublisher) Publish(event events.Event) error {
	p.pending = append(p.pending, event)
	return nil
}

// Pending returns the number of queued events
func (p *NATSTransactionalPublisher) Pending() int {
	return len(p.pending)
}

// Flush publishes queued events in order. A failing event is logged and the
// rest are still published.
func (p *NATSTransactionalPublisher) Flush(_ context.Context) error {
	for _, event := range p.pending {
		if err := p.realPublisher.Publish(event); err != nil {
			log.WithFields(log.Fields{
				"eventType": event.Type(),
				"error":     err,
			}).Error("Failed to publish event during flush")
		}
	}

	log.WithField("count", len(p.pending)).Debug("Flushed pending events")
	p.pending = p.pending[:0]
	return nil
}

// Discard drops queued events
func (p *NATSTransactionalPublisher) Discard() {
	if len(p.pending) > 0 {
		log.WithField("count", len(p.pending)).Debug("Discarding pending events")
	}
	p.pending = p.pending[:0]
}
