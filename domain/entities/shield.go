package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ShieldTier is the closed set of purchasable shield levels
type ShieldTier string

const (
	ShieldTierBasic    ShieldTier = "basic"
	ShieldTierPremium  ShieldTier = "premium"
	ShieldTierUltimate ShieldTier = "ultimate"
)

// ParseShieldTier converts user input into a ShieldTier
func ParseShieldTier(s string) (ShieldTier, error) {
	tier := ShieldTier(s)
	switch tier {
	case ShieldTierBasic, ShieldTierPremium, ShieldTierUltimate:
		return tier, nil
	default:
		return "", fmt.Errorf("unknown shield tier %q", s)
	}
}

// ShieldTierSpec is the price and protection window of a tier
type ShieldTierSpec struct {
	Cost     int64
	Duration time.Duration
}

// ShieldCatalog maps every tier to its price and duration
type ShieldCatalog map[ShieldTier]ShieldTierSpec

// DefaultShieldCatalog returns the stock prices and durations
func DefaultShieldCatalog() ShieldCatalog {
	return ShieldCatalog{
		ShieldTierBasic:    {Cost: 50, Duration: time.Hour},
		ShieldTierPremium:  {Cost: 150, Duration: 6 * time.Hour},
		ShieldTierUltimate: {Cost: 400, Duration: 24 * time.Hour},
	}
}

// Lookup returns the price and duration for tier
func (c ShieldCatalog) Lookup(tier ShieldTier) (ShieldTierSpec, bool) {
	terms, ok := c[tier]
	return terms, ok
}

// Shield protects a scenario from steals until ProtectedUntil
type Shield struct {
	ScenarioID     uuid.UUID  `db:"scenario_id" json:"scenario_id"`
	HolderID       uuid.UUID  `db:"holder_id" json:"holder_id"`
	Tier           ShieldTier `db:"tier" json:"tier"`
	Cost           int64      `db:"cost" json:"cost"`
	ProtectedUntil time.Time  `db:"protected_until" json:"protected_until"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// IsActive checks if the shield still protects the scenario at now
func (s *Shield) IsActive(now time.Time) bool {
	return s != nil && s.ProtectedUntil.After(now)
}

// Remaining returns the protection time left, or zero once expired
func (s *Shield) Remaining(now time.Time) time.Duration {
	if !s.IsActive(now) {
		return 0
	}
	return s.ProtectedUntil.Sub(now)
}
