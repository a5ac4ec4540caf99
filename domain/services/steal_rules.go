package services

import (
	"time"

	"apocaliptyx/domain/entities"

	"github.com/google/uuid"
)

// StealQuote is the outcome of evaluating a steal attempt before any money moves
type StealQuote struct {
	ScenarioID        uuid.UUID        `json:"scenario_id"`
	HolderID          uuid.UUID        `json:"holder_id"`
	Cost              int64            `json:"cost"`
	Compensation      int64            `json:"compensation"`
	StealCount        int              `json:"steal_count"`
	Shield            *entities.Shield `json:"shield,omitempty"`
	ShieldRemaining   time.Duration    `json:"shield_remaining"`
	CooldownRemaining time.Duration    `json:"cooldown_remaining"`
	// Blocker is the precondition that currently forbids the steal, nil if allowed
	Blocker error `json:"-"`
}

// Allowed reports whether the steal may proceed
func (q *StealQuote) Allowed() bool {
	return q.Blocker == nil
}

// StealRules holds the pure steal decision logic
type StealRules struct {
	costPolicy         StealCostPolicy
	compensationPolicy CompensationPolicy
	cooldown           time.Duration
}

// NewStealRules creates the rule set. A zero cooldown disables the cooldown check.
func NewStealRules(costPolicy StealCostPolicy, compensationPolicy CompensationPolicy, cooldown time.Duration) *StealRules {
	return &StealRules{
		costPolicy:         costPolicy,
		compensationPolicy: compensationPolicy,
		cooldown:           cooldown,
	}
}

// Quote prices a steal of scenario by thiefID and records the first failed
// precondition in Blocker. The order of checks is: status, self-steal,
// shield, cooldown.
func (r *StealRules) Quote(scenario *entities.Scenario, shield *entities.Shield, thiefID uuid.UUID, now time.Time) *StealQuote {
	cost := r.costPolicy.Cost(scenario)
	quote := &StealQuote{
		ScenarioID:        scenario.ID,
		HolderID:          scenario.CurrentHolder(),
		Cost:              cost,
		Compensation:      r.compensationPolicy.Compensation(scenario, cost),
		StealCount:        scenario.StealCount,
		CooldownRemaining: scenario.CooldownRemaining(r.cooldown, now),
	}
	if shield.IsActive(now) {
		quote.Shield = shield
		quote.ShieldRemaining = shield.Remaining(now)
	}

	switch {
	case !scenario.IsActive():
		quote.Blocker = &ScenarioNotActiveError{ScenarioID: scenario.ID, Status: scenario.Status}
	case scenario.IsHeldBy(thiefID):
		quote.Blocker = ErrSelfSteal
	case quote.Shield != nil:
		quote.Blocker = &ScenarioShieldedError{
			ScenarioID:     scenario.ID,
			Tier:           shield.Tier,
			ProtectedUntil: shield.ProtectedUntil,
			Remaining:      quote.ShieldRemaining,
		}
	case quote.CooldownRemaining > 0:
		quote.Blocker = &StealCooldownError{ScenarioID: scenario.ID, Remaining: quote.CooldownRemaining}
	}

	return quote
}

// Evaluate is Quote that fails on the first violated precondition
func (r *StealRules) Evaluate(scenario *entities.Scenario, shield *entities.Shield, thiefID uuid.UUID, now time.Time) (*StealQuote, error) {
	quote := r.Quote(scenario, shield, thiefID, now)
	if quote.Blocker != nil {
		return nil, quote.Blocker
	}
	return quote, nil
}

// ShieldRules decides who may buy which shield
type ShieldRules struct {
	catalog entities.ShieldCatalog
}

// NewShieldRules creates the shield rule set
func NewShieldRules(catalog entities.ShieldCatalog) *ShieldRules {
	return &ShieldRules{catalog: catalog}
}

// Catalog returns the configured tiers
func (r *ShieldRules) Catalog() entities.ShieldCatalog {
	return r.catalog
}

// Plan builds the shield userID would buy, or returns the violated precondition
func (r *ShieldRules) Plan(scenario *entities.Scenario, userID uuid.UUID, tier entities.ShieldTier, now time.Time) (*entities.Shield, error) {
	terms, ok := r.catalog.Lookup(tier)
	if !ok || terms.Duration <= 0 {
		return nil, ErrInvalidShieldTier
	}
	if !scenario.IsActive() {
		return nil, &ScenarioNotActiveError{ScenarioID: scenario.ID, Status: scenario.Status}
	}
	if !scenario.IsHeldBy(userID) {
		return nil, &NotHolderError{
			ScenarioID: scenario.ID,
			UserID:     userID,
			HolderID:   scenario.CurrentHolder(),
		}
	}

	return &entities.Shield{
		ScenarioID:     scenario.ID,
		HolderID:       userID,
		Tier:           tier,
		Cost:           terms.Cost,
		ProtectedUntil: now.Add(terms.Duration),
		CreatedAt:      now,
	}, nil
}
