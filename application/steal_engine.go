package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"apocaliptyx/domain/entities"
	"apocaliptyx/domain/events"
	"apocaliptyx/domain/services"
	"apocaliptyx/infrastructure/observability"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// StealResult describes a completed steal
type StealResult struct {
	ScenarioID     uuid.UUID `json:"scenario_id"`
	FormerHolderID uuid.UUID `json:"former_holder_id"`
	NewHolderID    uuid.UUID `json:"new_holder_id"`
	Cost           int64     `json:"cost"`
	Compensation   int64     `json:"compensation"`
	StealCount     int       `json:"steal_count"`
	NewBalance     int64     `json:"new_balance"`
}

// StealEngine coordinates steals and shield purchases across the ledger and
// the pool tracker
type StealEngine struct {
	uowFactory      UnitOfWorkFactory
	stealRules      *services.StealRules
	shieldRules     *services.ShieldRules
	zeroStakePolicy entities.ZeroStakePolicy
	now             func() time.Time
}

// NewStealEngine creates a new steal engine
func NewStealEngine(uowFactory UnitOfWorkFactory, stealRules *services.StealRules, shieldRules *services.ShieldRules, zeroStakePolicy entities.ZeroStakePolicy) *StealEngine {
	return &StealEngine{
		uowFactory:      uowFactory,
		stealRules:      stealRules,
		shieldRules:     shieldRules,
		zeroStakePolicy: zeroStakePolicy,
		now:             time.Now,
	}
}

// WithClock replaces the wall clock used for shield and cooldown checks
func (e *StealEngine) WithClock(now func() time.Time) *StealEngine {
	e.now = now
	return e
}

// ShieldCatalog returns the purchasable shield tiers
func (e *StealEngine) ShieldCatalog() entities.ShieldCatalog {
	return e.shieldRules.Catalog()
}

// Quote prices a steal without moving any coins
func (e *StealEngine) Quote(ctx context.Context, scenarioID, thiefID uuid.UUID) (*services.StealQuote, error) {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	scenario, shield, err := e.loadTarget(ctx, uow, scenarioID, false)
	if err != nil {
		return nil, err
	}
	return e.stealRules.Quote(scenario, shield, thiefID, e.now()), nil
}

// AttemptSteal charges the thief and moves the scenario to them.
//
// The charge commits first. The holder transfer then runs in a second unit of
// work guarded by a compare-and-swap on the holder observed when the price was
// quoted. If the transfer fails for any reason the charge is refunded with a
// STEAL_REFUND entry, so a lost race costs nothing.
func (e *StealEngine) AttemptSteal(ctx context.Context, scenarioID, thiefID uuid.UUID) (*StealResult, error) {
	quote, err := e.chargeThief(ctx, scenarioID, thiefID)
	if err != nil {
		e.recordStealOutcome(err)
		return nil, err
	}

	result, err := e.transferOwnership(ctx, scenarioID, thiefID, quote)
	if err == nil {
		observability.GetMetrics().RecordStealAttempt(observability.StealOutcomeSuccess)
		return result, nil
	}

	refundErr := e.refund(ctx, scenarioID, thiefID, quote.Cost, err)
	if refundErr != nil {
		log.WithError(refundErr).WithFields(log.Fields{
			"scenarioID": scenarioID,
			"thiefID":    thiefID,
			"cost":       quote.Cost,
		}).Error("Failed to refund steal charge")
		observability.GetMetrics().RecordStealAttempt(observability.StealOutcomeError)
		return nil, errors.Join(err, fmt.Errorf("failed to refund %d coins: %w", quote.Cost, refundErr))
	}

	var mismatch *services.OwnershipMismatchError
	if errors.As(err, &mismatch) {
		observability.GetMetrics().RecordStealAttempt(observability.StealOutcomeRaceLost)
		return nil, &services.StealRaceLostError{
			ScenarioID: scenarioID,
			Refunded:   quote.Cost,
			HolderID:   mismatch.Actual,
		}
	}

	e.recordStealOutcome(err)
	return nil, fmt.Errorf("steal failed and %d coins were refunded: %w", quote.Cost, err)
}

// chargeThief validates the steal and debits its cost
func (e *StealEngine) chargeThief(ctx context.Context, scenarioID, thiefID uuid.UUID) (*services.StealQuote, error) {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	scenario, shield, err := e.loadTarget(ctx, uow, scenarioID, false)
	if err != nil {
		return nil, err
	}

	quote, err := e.stealRules.Evaluate(scenario, shield, thiefID, e.now())
	if err != nil {
		return nil, err
	}

	ledger := services.NewLedgerService(uow.UserRepository(), uow.TransactionRepository(), uow.EventBus())
	if _, err := ledger.Debit(ctx, thiefID, quote.Cost, entities.TransactionTypeSteal, &scenarioID, map[string]any{
		"holder_id":   quote.HolderID.String(),
		"steal_count": quote.StealCount,
	}); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	observability.GetMetrics().RecordLedgerTransaction(string(entities.TransactionTypeSteal))
	return quote, nil
}

// transferOwnership swaps the holder and pays the former holder's compensation
func (e *StealEngine) transferOwnership(ctx context.Context, scenarioID, thiefID uuid.UUID, quote *services.StealQuote) (*StealResult, error) {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	scenario, shield, err := e.loadTarget(ctx, uow, scenarioID, true)
	if err != nil {
		return nil, err
	}

	// A shield bought between the charge and now still wins
	now := e.now()
	if shield.IsActive(now) && scenario.IsHeldBy(quote.HolderID) {
		return nil, &services.ScenarioShieldedError{
			ScenarioID:     scenarioID,
			Tier:           shield.Tier,
			ProtectedUntil: shield.ProtectedUntil,
			Remaining:      shield.Remaining(now),
		}
	}

	tracker := services.NewPoolTrackerWithClock(uow.ScenarioRepository(), uow.PredictionRepository(), uow.EventBus(), e.zeroStakePolicy, e.now)
	if err := tracker.TransferHolder(ctx, scenarioID, quote.HolderID, thiefID); err != nil {
		return nil, err
	}

	if quote.Compensation > 0 {
		ledger := services.NewLedgerService(uow.UserRepository(), uow.TransactionRepository(), uow.EventBus())
		if _, err := ledger.Credit(ctx, quote.HolderID, quote.Compensation, entities.TransactionTypeCompensation, &scenarioID, map[string]any{
			"thief_id": thiefID.String(),
		}); err != nil {
			return nil, err
		}
	}

	thief, err := uow.UserRepository().GetByID(ctx, thiefID)
	if err != nil {
		return nil, fmt.Errorf("failed to get thief: %w", err)
	}
	if thief == nil {
		return nil, &services.UserNotFoundError{UserID: thiefID}
	}

	result := &StealResult{
		ScenarioID:     scenarioID,
		FormerHolderID: quote.HolderID,
		NewHolderID:    thiefID,
		Cost:           quote.Cost,
		Compensation:   quote.Compensation,
		StealCount:     scenario.StealCount + 1,
		NewBalance:     thief.Balance,
	}

	if err := uow.EventBus().Publish(events.ScenarioStolenEvent{
		ScenarioID:     scenarioID,
		Title:          scenario.Title,
		FormerHolderID: quote.HolderID,
		NewHolderID:    thiefID,
		Cost:           quote.Cost,
		Compensation:   quote.Compensation,
		StealCount:     result.StealCount,
	}); err != nil {
		log.WithError(err).Error("Failed to publish scenario stolen event")
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if quote.Compensation > 0 {
		observability.GetMetrics().RecordLedgerTransaction(string(entities.TransactionTypeCompensation))
	}
	log.WithFields(log.Fields{
		"scenarioID":   scenarioID,
		"from":         quote.HolderID,
		"to":           thiefID,
		"cost":         quote.Cost,
		"compensation": quote.Compensation,
	}).Info("Scenario stolen")
	return result, nil
}

func (e *StealEngine) refund(ctx context.Context, scenarioID, thiefID uuid.UUID, amount int64, cause error) error {
	// The caller's context may already be cancelled; the refund must still land
	ctx = context.WithoutCancel(ctx)

	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	ledger := services.NewLedgerService(uow.UserRepository(), uow.TransactionRepository(), uow.EventBus())
	if _, err := ledger.Credit(ctx, thiefID, amount, entities.TransactionTypeStealRefund, &scenarioID, map[string]any{
		"reason": cause.Error(),
	}); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	observability.GetMetrics().RecordLedgerTransaction(string(entities.TransactionTypeStealRefund))
	log.WithFields(log.Fields{
		"scenarioID": scenarioID,
		"thiefID":    thiefID,
		"amount":     amount,
	}).Warn("Steal refunded")
	return nil
}

// ApplyShield sells the holder a shield, replacing any existing one
func (e *StealEngine) ApplyShield(ctx context.Context, scenarioID, userID uuid.UUID, tier entities.ShieldTier) (*entities.Shield, error) {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	scenario, err := uow.ScenarioRepository().GetByIDForUpdate(ctx, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}
	if scenario == nil {
		return nil, &services.ScenarioNotFoundError{ScenarioID: scenarioID}
	}

	shield, err := e.shieldRules.Plan(scenario, userID, tier, e.now().UTC())
	if err != nil {
		return nil, err
	}

	if shield.Cost > 0 {
		ledger := services.NewLedgerService(uow.UserRepository(), uow.TransactionRepository(), uow.EventBus())
		if _, err := ledger.Debit(ctx, userID, shield.Cost, entities.TransactionTypeShield, &scenarioID, map[string]any{
			"tier": string(tier),
		}); err != nil {
			return nil, err
		}
	}

	if err := uow.ShieldRepository().Upsert(ctx, shield); err != nil {
		return nil, fmt.Errorf("failed to save shield: %w", err)
	}

	if err := uow.EventBus().Publish(events.ShieldAppliedEvent{
		ScenarioID:     scenarioID,
		Title:          scenario.Title,
		HolderID:       userID,
		Tier:           tier,
		ProtectedUntil: shield.ProtectedUntil,
	}); err != nil {
		log.WithError(err).Error("Failed to publish shield applied event")
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	metrics := observability.GetMetrics()
	metrics.RecordShieldApplied(string(tier))
	if shield.Cost > 0 {
		metrics.RecordLedgerTransaction(string(entities.TransactionTypeShield))
	}
	return shield, nil
}

func (e *StealEngine) loadTarget(ctx context.Context, uow UnitOfWork, scenarioID uuid.UUID, forUpdate bool) (*entities.Scenario, *entities.Shield, error) {
	var (
		scenario *entities.Scenario
		err      error
	)
	if forUpdate {
		scenario, err = uow.ScenarioRepository().GetByIDForUpdate(ctx, scenarioID)
	} else {
		scenario, err = uow.ScenarioRepository().GetByID(ctx, scenarioID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get scenario: %w", err)
	}
	if scenario == nil {
		return nil, nil, &services.ScenarioNotFoundError{ScenarioID: scenarioID}
	}

	shield, err := uow.ShieldRepository().GetByScenario(ctx, scenarioID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get shield: %w", err)
	}
	return scenario, shield, nil
}

func (e *StealEngine) recordStealOutcome(err error) {
	outcome := observability.StealOutcomeError
	switch {
	case errors.Is(err, services.ErrScenarioShielded):
		outcome = observability.StealOutcomeShielded
	case errors.Is(err, services.ErrInsufficientFunds):
		outcome = observability.StealOutcomeInsufficient
	case errors.Is(err, services.ErrSelfSteal),
		errors.Is(err, services.ErrScenarioNotActive),
		errors.Is(err, services.ErrScenarioNotFound),
		errors.Is(err, services.ErrStealCooldown),
		errors.Is(err, services.ErrUserNotFound):
		outcome = observability.StealOutcomeRejected
	}
	observability.GetMetrics().RecordStealAttempt(outcome)
}
