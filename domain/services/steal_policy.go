package services

import (
	"apocaliptyx/domain/entities"

	"github.com/shopspring/decimal"
)

// StealCostPolicy prices a steal against the scenario's current state
type StealCostPolicy interface {
	Cost(scenario *entities.Scenario) int64
}

// CompensationPolicy decides how much of a steal cost goes to the dispossessed holder
type CompensationPolicy interface {
	Compensation(scenario *entities.Scenario, cost int64) int64
}

// EscalatingStealCost charges the larger of BaseCost and PoolRate of the total
// pool, then scales by 1 + Escalation per previous steal
type EscalatingStealCost struct {
	BaseCost   int64
	PoolRate   decimal.Decimal
	Escalation decimal.Decimal
}

// DefaultStealCost returns the stock pricing: 100 coins or 10% of the pool,
// plus 25% per previous steal
func DefaultStealCost() EscalatingStealCost {
	return EscalatingStealCost{
		BaseCost:   100,
		PoolRate:   decimal.RequireFromString("0.10"),
		Escalation: decimal.RequireFromString("0.25"),
	}
}

func (p EscalatingStealCost) Cost(scenario *entities.Scenario) int64 {
	base := decimal.NewFromInt(p.BaseCost)
	fromPool := decimal.NewFromInt(scenario.TotalPool).Mul(p.PoolRate)
	price := decimal.Max(base, fromPool)

	multiplier := decimal.NewFromInt(1).Add(p.Escalation.Mul(decimal.NewFromInt(int64(scenario.StealCount))))
	cost := price.Mul(multiplier).Ceil().IntPart()
	if cost < 1 {
		return 1
	}
	return cost
}

// FractionalCompensation returns Rate of the steal cost, rounded down
type FractionalCompensation struct {
	Rate decimal.Decimal
}

// DefaultCompensation pays back half the steal cost
func DefaultCompensation() FractionalCompensation {
	return FractionalCompensation{Rate: decimal.RequireFromString("0.5")}
}

func (p FractionalCompensation) Compensation(_ *entities.Scenario, cost int64) int64 {
	amount := decimal.NewFromInt(cost).Mul(p.Rate).Floor().IntPart()
	switch {
	case amount < 0:
		return 0
	case amount > cost:
		return cost
	default:
		return amount
	}
}
