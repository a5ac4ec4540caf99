package entities

import (
	"time"

	"github.com/google/uuid"
)

// ScenarioStatus is the lifecycle state of a scenario
type ScenarioStatus string

const (
	ScenarioStatusActive    ScenarioStatus = "ACTIVE"
	ScenarioStatusResolved  ScenarioStatus = "RESOLVED"
	ScenarioStatusCancelled ScenarioStatus = "CANCELLED"
)

// IsTerminal reports whether no further steals, shields or predictions are allowed
func (s ScenarioStatus) IsTerminal() bool {
	switch s {
	case ScenarioStatusResolved, ScenarioStatusCancelled:
		return true
	case ScenarioStatusActive:
		return false
	default:
		return true
	}
}

// Scenario is a predictable future event with a current holder and a coin pool
type Scenario struct {
	ID               uuid.UUID      `db:"id" json:"id"`
	CreatorID        uuid.UUID      `db:"creator_id" json:"creator_id"`
	HolderID         *uuid.UUID     `db:"holder_id" json:"holder_id,omitempty"`
	Title            string         `db:"title" json:"title"`
	Description      string         `db:"description" json:"description"`
	YesPool          int64          `db:"yes_pool" json:"yes_pool"`
	NoPool           int64          `db:"no_pool" json:"no_pool"`
	TotalPool        int64          `db:"total_pool" json:"total_pool"`
	ParticipantCount int            `db:"participant_count" json:"participant_count"`
	StealCount       int            `db:"steal_count" json:"steal_count"`
	LastStolenAt     *time.Time     `db:"last_stolen_at" json:"last_stolen_at,omitempty"`
	Status           ScenarioStatus `db:"status" json:"status"`
	Outcome          *bool          `db:"outcome" json:"outcome,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// CurrentHolder returns the holder, falling back to the creator if the
// scenario has never been stolen
func (s *Scenario) CurrentHolder() uuid.UUID {
	if s.HolderID != nil {
		return *s.HolderID
	}
	return s.CreatorID
}

// IsHeldBy checks if userID is the current holder
func (s *Scenario) IsHeldBy(userID uuid.UUID) bool {
	return s.CurrentHolder() == userID
}

// IsActive checks if the scenario still accepts steals and predictions
func (s *Scenario) IsActive() bool {
	return s.Status == ScenarioStatusActive
}

// ApplyPools copies a pool snapshot onto the scenario
func (s *Scenario) ApplyPools(p PoolSnapshot) {
	s.YesPool = p.YesPool
	s.NoPool = p.NoPool
	s.TotalPool = p.TotalPool
	s.ParticipantCount = p.ParticipantCount
}

// CooldownRemaining returns how long until the scenario can be stolen again
func (s *Scenario) CooldownRemaining(cooldown time.Duration, now time.Time) time.Duration {
	if cooldown <= 0 || s.LastStolenAt == nil {
		return 0
	}
	remaining := s.LastStolenAt.Add(cooldown).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
