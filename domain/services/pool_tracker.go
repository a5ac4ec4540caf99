package services

import (
	"context"
	"fmt"
	"time"

	"apocaliptyx/domain/entities"
	"apocaliptyx/domain/events"
	"apocaliptyx/domain/interfaces"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// poolTracker is the only writer of a scenario's holder and pool columns
type poolTracker struct {
	scenarioRepo    interfaces.ScenarioRepository
	predictionRepo  interfaces.PredictionRepository
	eventPublisher  interfaces.EventPublisher
	zeroStakePolicy entities.ZeroStakePolicy
	now             func() time.Time
}

// NewPoolTracker creates a new pool tracker
func NewPoolTracker(
	scenarioRepo interfaces.ScenarioRepository,
	predictionRepo interfaces.PredictionRepository,
	eventPublisher interfaces.EventPublisher,
	zeroStakePolicy entities.ZeroStakePolicy,
) interfaces.PoolTracker {
	return &poolTracker{
		scenarioRepo:    scenarioRepo,
		predictionRepo:  predictionRepo,
		eventPublisher:  eventPublisher,
		zeroStakePolicy: zeroStakePolicy,
		now:             time.Now,
	}
}

// NewPoolTrackerWithClock creates a pool tracker that stamps steals with now
// instead of the wall clock
func NewPoolTrackerWithClock(
	scenarioRepo interfaces.ScenarioRepository,
	predictionRepo interfaces.PredictionRepository,
	eventPublisher interfaces.EventPublisher,
	zeroStakePolicy entities.ZeroStakePolicy,
	now func() time.Time,
) interfaces.PoolTracker {
	return &poolTracker{
		scenarioRepo:    scenarioRepo,
		predictionRepo:  predictionRepo,
		eventPublisher:  eventPublisher,
		zeroStakePolicy: zeroStakePolicy,
		now:             now,
	}
}

// GetHolder returns the current holder, which is the creator until the first steal
func (t *poolTracker) GetHolder(ctx context.Context, scenarioID uuid.UUID) (uuid.UUID, error) {
	scenario, err := t.scenarioRepo.GetByID(ctx, scenarioID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get scenario: %w", err)
	}
	if scenario == nil {
		return uuid.Nil, &ScenarioNotFoundError{ScenarioID: scenarioID}
	}
	return scenario.CurrentHolder(), nil
}

// TransferHolder moves the scenario from fromUserID to toUserID only if
// fromUserID still holds it when the write lands
func (t *poolTracker) TransferHolder(ctx context.Context, scenarioID, fromUserID, toUserID uuid.UUID) error {
	if fromUserID == toUserID {
		return fmt.Errorf("%w: transfer to the current holder", ErrSelfSteal)
	}

	swapped, err := t.scenarioRepo.CompareAndSwapHolder(ctx, scenarioID, fromUserID, toUserID, t.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to transfer holder: %w", err)
	}
	if swapped {
		log.WithFields(log.Fields{
			"scenarioID": scenarioID,
			"from":       fromUserID,
			"to":         toUserID,
		}).Info("Scenario holder transferred")
		return nil
	}

	// Nothing changed, find out why
	scenario, err := t.scenarioRepo.GetByID(ctx, scenarioID)
	if err != nil {
		return fmt.Errorf("failed to get scenario: %w", err)
	}
	if scenario == nil {
		return &ScenarioNotFoundError{ScenarioID: scenarioID}
	}
	if !scenario.IsActive() {
		return &ScenarioNotActiveError{ScenarioID: scenarioID, Status: scenario.Status}
	}
	return &OwnershipMismatchError{
		ScenarioID: scenarioID,
		Expected:   fromUserID,
		Actual:     scenario.CurrentHolder(),
	}
}

// RecalculatePools rebuilds the pool figures from the predictions and writes them back
func (t *poolTracker) RecalculatePools(ctx context.Context, scenarioID uuid.UUID) (*entities.PoolSnapshot, error) {
	scenario, err := t.scenarioRepo.GetByID(ctx, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}
	if scenario == nil {
		return nil, &ScenarioNotFoundError{ScenarioID: scenarioID}
	}

	predictions, err := t.predictionRepo.GetByScenario(ctx, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to get predictions: %w", err)
	}

	snapshot := entities.ComputePools(predictions, t.zeroStakePolicy)
	if err := t.scenarioRepo.UpdatePools(ctx, scenarioID, snapshot); err != nil {
		return nil, fmt.Errorf("failed to update pools: %w", err)
	}

	if err := t.eventPublisher.Publish(events.PoolsRecalculatedEvent{
		ScenarioID: scenarioID,
		Pools:      snapshot,
	}); err != nil {
		log.WithError(err).Error("Failed to publish pools recalculated event")
	}

	log.WithFields(log.Fields{
		"scenarioID":   scenarioID,
		"predictions":  len(predictions),
		"yesPool":      snapshot.YesPool,
		"noPool":       snapshot.NoPool,
		"participants": snapshot.ParticipantCount,
	}).Debug("Recalculated scenario pools")

	return &snapshot, nil
}
