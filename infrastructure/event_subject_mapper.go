package infrastructure

import (
	"fmt"

	"apocaliptyx/domain/events"
)

// EventSubjectMapper maps domain events to NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

var subjectsByType = map[events.EventType]string{
	events.EventTypeBalanceChange:     "users.balance_changed",
	events.EventTypeUserCreated:       "users.created",
	events.EventTypeScenarioCreated:   "scenarios.created",
	events.EventTypePredictionPlaced:  "scenarios.prediction_placed",
	events.EventTypePoolsRecalculated: "scenarios.pools_recalculated",
	events.EventTypeScenarioStolen:    "scenarios.stolen",
	events.EventTypeShieldApplied:     "scenarios.shield_applied",
}

// MapEventToSubject converts a domain event to its NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	if subject, ok := subjectsByType[event.Type()]; ok {
		return subject
	}
	return fmt.Sprintf("unknown.%s", event.Type())
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	for eventType, s := range subjectsByType {
		if s == subject {
			return eventType
		}
	}
	return events.EventType(subject)
}

// GetAllSubjects returns the subjects the stream must capture
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{"users.>", "scenarios.>"}
}
