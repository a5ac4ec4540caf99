package events

import (
	"time"

	"apocaliptyx/domain/entities"

	"github.com/google/uuid"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange     EventType = "balance_change"
	EventTypeUserCreated       EventType = "user_created"
	EventTypeScenarioCreated   EventType = "scenario_created"
	EventTypePredictionPlaced  EventType = "prediction_placed"
	EventTypePoolsRecalculated EventType = "pools_recalculated"
	EventTypeScenarioStolen    EventType = "scenario_stolen"
	EventTypeShieldApplied     EventType = "shield_applied"
)

// ScenarioEventTypes lists the events that implement ScenarioEvent
func ScenarioEventTypes() []EventType {
	return []EventType{
		EventTypeScenarioCreated,
		EventTypePredictionPlaced,
		EventTypePoolsRecalculated,
		EventTypeScenarioStolen,
		EventTypeShieldApplied,
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// ScenarioEvent is implemented by events that change a scenario's read model
type ScenarioEvent interface {
	Event
	ScenarioRef() uuid.UUID
}

// BalanceChangeEvent is emitted for every ledger entry
type BalanceChangeEvent struct {
	UserID          uuid.UUID                `json:"user_id"`
	OldBalance      int64                    `json:"old_balance"`
	NewBalance      int64                    `json:"new_balance"`
	TransactionType entities.TransactionType `json:"transaction_type"`
	ChangeAmount    int64                    `json:"change_amount"`
	TransactionID   int64                    `json:"transaction_id"`
	ScenarioID      *uuid.UUID               `json:"scenario_id,omitempty"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// UserCreatedEvent represents a new account registration
type UserCreatedEvent struct {
	UserID         uuid.UUID `json:"user_id"`
	Username       string    `json:"username"`
	InitialBalance int64     `json:"initial_balance"`
}

func (e UserCreatedEvent) Type() EventType {
	return EventTypeUserCreated
}

// ScenarioCreatedEvent represents a newly published scenario
type ScenarioCreatedEvent struct {
	ScenarioID uuid.UUID `json:"scenario_id"`
	CreatorID  uuid.UUID `json:"creator_id"`
	Title      string    `json:"title"`
}

func (e ScenarioCreatedEvent) Type() EventType {
	return EventTypeScenarioCreated
}

func (e ScenarioCreatedEvent) ScenarioRef() uuid.UUID {
	return e.ScenarioID
}

// PredictionPlacedEvent represents a stake committed to one side
type PredictionPlacedEvent struct {
	ScenarioID uuid.UUID     `json:"scenario_id"`
	UserID     uuid.UUID     `json:"user_id"`
	Side       entities.Side `json:"side"`
	Amount     int64         `json:"amount"`
}

func (e PredictionPlacedEvent) Type() EventType {
	return EventTypePredictionPlaced
}

func (e PredictionPlacedEvent) ScenarioRef() uuid.UUID {
	return e.ScenarioID
}

// PoolsRecalculatedEvent carries the pools written by a recalculation
type PoolsRecalculatedEvent struct {
	ScenarioID uuid.UUID             `json:"scenario_id"`
	Pools      entities.PoolSnapshot `json:"pools"`
}

func (e PoolsRecalculatedEvent) Type() EventType {
	return EventTypePoolsRecalculated
}

func (e PoolsRecalculatedEvent) ScenarioRef() uuid.UUID {
	return e.ScenarioID
}

// ScenarioStolenEvent represents a completed holder transfer
type ScenarioStolenEvent struct {
	ScenarioID     uuid.UUID `json:"scenario_id"`
	Title          string    `json:"title"`
	FormerHolderID uuid.UUID `json:"former_holder_id"`
	NewHolderID    uuid.UUID `json:"new_holder_id"`
	Cost           int64     `json:"cost"`
	Compensation   int64     `json:"compensation"`
	StealCount     int       `json:"steal_count"`
}

func (e ScenarioStolenEvent) Type() EventType {
	return EventTypeScenarioStolen
}

func (e ScenarioStolenEvent) ScenarioRef() uuid.UUID {
	return e.ScenarioID
}

// ShieldAppliedEvent represents a shield purchase
type ShieldAppliedEvent struct {
	ScenarioID     uuid.UUID           `json:"scenario_id"`
	Title          string              `json:"title"`
	HolderID       uuid.UUID           `json:"holder_id"`
	Tier           entities.ShieldTier `json:"tier"`
	ProtectedUntil time.Time           `json:"protected_until"`
}

func (e ShieldAppliedEvent) Type() EventType {
	return EventTypeShieldApplied
}

func (e ShieldAppliedEvent) ScenarioRef() uuid.UUID {
	return e.ScenarioID
}
