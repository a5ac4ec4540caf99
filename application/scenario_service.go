package application

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"apocaliptyx/domain/entities"
	"apocaliptyx/domain/events"
	"apocaliptyx/domain/services"
	"apocaliptyx/infrastructure/observability"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 4000
	defaultListLimit     = 50
)

// ScenarioService handles scenario creation, predictions and pool upkeep
type ScenarioService struct {
	uowFactory      UnitOfWorkFactory
	cache           ScenarioReadCache
	zeroStakePolicy entities.ZeroStakePolicy
}

// NewScenarioService creates a new scenario service. cache may be nil.
func NewScenarioService(uowFactory UnitOfWorkFactory, cache ScenarioReadCache, zeroStakePolicy entities.ZeroStakePolicy) *ScenarioService {
	return &ScenarioService{
		uowFactory:      uowFactory,
		cache:           cache,
		zeroStakePolicy: zeroStakePolicy,
	}
}

// CreateScenario publishes a new ACTIVE scenario held implicitly by its creator
func (s *ScenarioService) CreateScenario(ctx context.Context, creatorID uuid.UUID, title, description string) (*entities.Scenario, error) {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title must be 1-%d characters", services.ErrInvalidInput, maxTitleLength)
	}
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return nil, fmt.Errorf("%w: description exceeds %d characters", services.ErrInvalidInput, maxDescriptionLength)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	creator, err := uow.UserRepository().GetByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get creator: %w", err)
	}
	if creator == nil {
		return nil, &services.UserNotFoundError{UserID: creatorID}
	}

	scenario := &entities.Scenario{
		ID:          uuid.New(),
		CreatorID:   creatorID,
		Title:       title,
		Description: description,
		Status:      entities.ScenarioStatusActive,
	}
	if err := uow.ScenarioRepository().Create(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to create scenario: %w", err)
	}

	if err := uow.EventBus().Publish(events.ScenarioCreatedEvent{
		ScenarioID: scenario.ID,
		CreatorID:  creatorID,
		Title:      title,
	}); err != nil {
		log.WithError(err).Error("Failed to publish scenario created event")
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"scenarioID": scenario.ID,
		"creatorID":  creatorID,
	}).Info("Scenario created")
	return scenario, nil
}

// GetScenario returns a scenario, preferring the read cache
func (s *ScenarioService) GetScenario(ctx context.Context, id uuid.UUID) (*entities.Scenario, error) {
	if s.cache != nil {
		if scenario, ok := s.cache.Get(ctx, id); ok {
			return scenario, nil
		}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	scenario, err := uow.ScenarioRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}
	if scenario == nil {
		return nil, &services.ScenarioNotFoundError{ScenarioID: id}
	}

	if s.cache != nil {
		s.cache.Set(ctx, scenario)
	}
	return scenario, nil
}

// ListActive returns the newest ACTIVE scenarios
func (s *ScenarioService) ListActive(ctx context.Context, limit int) ([]*entities.Scenario, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	scenarios, err := uow.ScenarioRepository().ListByStatus(ctx, entities.ScenarioStatusActive, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	return scenarios, nil
}

// PlacePrediction stakes amount coins on side and refreshes the pools
func (s *ScenarioService) PlacePrediction(ctx context.Context, userID, scenarioID uuid.UUID, side entities.Side, amount int64) (*entities.Prediction, *entities.PoolSnapshot, error) {
	if _, err := entities.ParseSide(string(side)); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", services.ErrInvalidSide, err)
	}
	if amount <= 0 {
		return nil, nil, &services.InvalidAmountError{Amount: amount}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	scenario, err := uow.ScenarioRepository().GetByIDForUpdate(ctx, scenarioID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get scenario: %w", err)
	}
	if scenario == nil {
		return nil, nil, &services.ScenarioNotFoundError{ScenarioID: scenarioID}
	}
	if !scenario.IsActive() {
		return nil, nil, &services.ScenarioNotActiveError{ScenarioID: scenarioID, Status: scenario.Status}
	}

	existing, err := uow.PredictionRepository().GetByScenarioAndUser(ctx, scenarioID, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check existing prediction: %w", err)
	}
	if existing != nil {
		return nil, nil, services.ErrAlreadyPredicted
	}

	ledger := services.NewLedgerService(uow.UserRepository(), uow.TransactionRepository(), uow.EventBus())
	if _, err := ledger.Debit(ctx, userID, amount, entities.TransactionTypePrediction, &scenarioID, map[string]any{
		"side": string(side),
	}); err != nil {
		return nil, nil, err
	}

	prediction := &entities.Prediction{
		ScenarioID: scenarioID,
		UserID:     userID,
		Side:       side,
		Amount:     amount,
	}
	if err := uow.PredictionRepository().Create(ctx, prediction); err != nil {
		return nil, nil, fmt.Errorf("failed to create prediction: %w", err)
	}

	if err := uow.EventBus().Publish(events.PredictionPlacedEvent{
		ScenarioID: scenarioID,
		UserID:     userID,
		Side:       side,
		Amount:     amount,
	}); err != nil {
		log.WithError(err).Error("Failed to publish prediction placed event")
	}

	tracker := services.NewPoolTracker(uow.ScenarioRepository(), uow.PredictionRepository(), uow.EventBus(), s.zeroStakePolicy)
	pools, err := tracker.RecalculatePools(ctx, scenarioID)
	if err != nil {
		return nil, nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	metrics := observability.GetMetrics()
	metrics.RecordLedgerTransaction(string(entities.TransactionTypePrediction))
	metrics.RecordPoolRecalculation(observability.RecalcTriggerPrediction)
	return prediction, pools, nil
}

// RecalculatePools rebuilds one scenario's pools in its own unit of work
func (s *ScenarioService) RecalculatePools(ctx context.Context, scenarioID uuid.UUID, trigger string) (*entities.PoolSnapshot, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	tracker := services.NewPoolTracker(uow.ScenarioRepository(), uow.PredictionRepository(), uow.EventBus(), s.zeroStakePolicy)
	pools, err := tracker.RecalculatePools(ctx, scenarioID)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	observability.GetMetrics().RecordPoolRecalculation(trigger)
	return pools, nil
}

// RecalculateAllActive recalculates every ACTIVE scenario, one unit of work
// each. Failures are logged and counted; the sweep continues.
func (s *ScenarioService) RecalculateAllActive(ctx context.Context, trigger string) (recalculated, failed int, err error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	scenarios, err := uow.ScenarioRepository().ListByStatus(ctx, entities.ScenarioStatusActive, 0)
	uow.Rollback()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list active scenarios: %w", err)
	}

	for _, scenario := range scenarios {
		if ctx.Err() != nil {
			return recalculated, failed, ctx.Err()
		}
		if _, err := s.RecalculatePools(ctx, scenario.ID, trigger); err != nil {
			log.WithError(err).WithField("scenarioID", scenario.ID).Error("Failed to recalculate pools")
			failed++
			continue
		}
		recalculated++
	}
	return recalculated, failed, nil
}
