package repository

import (
	"context"
	"errors"
	"fmt"

	"apocaliptyx/database"
	"apocaliptyx/domain/entities"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PredictionRepository implements the PredictionRepository interface
type PredictionRepository struct {
	q Queryable
}

// NewPredictionRepository creates a new prediction repository
func NewPredictionRepository(db *database.DB) *PredictionRepository {
	return &PredictionRepository{q: db.Pool}
}

// NewPredictionRepositoryScoped creates a prediction repository bound to a transaction
func NewPredictionRepositoryScoped(tx Queryable) *PredictionRepository {
	return &PredictionRepository{q: tx}
}

// Create inserts a prediction
func (r *PredictionRepository) Create(ctx context.Context, prediction *entities.Prediction) error {
	query := `
		INSERT INTO predictions (scenario_id, user_id, side, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		prediction.ScenarioID,
		prediction.UserID,
		prediction.Side,
		prediction.Amount,
	).Scan(&prediction.ID, &prediction.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create prediction: %w", err)
	}
	return nil
}

// GetByScenario returns all predictions on a scenario in placement order
func (r *PredictionRepository) GetByScenario(ctx context.Context, scenarioID uuid.UUID) ([]*entities.Prediction, error) {
	query := `
		SELECT id, scenario_id, user_id, side, amount, created_at
		FROM predictions
		WHERE scenario_id = $1
		ORDER BY id ASC
	`

	rows, err := r.q.Query(ctx, query, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to get predictions for scenario %s: %w", scenarioID, err)
	}
	defer rows.Close()

	var predictions []*entities.Prediction
	for rows.Next() {
		var p entities.Prediction
		if err := rows.Scan(&p.ID, &p.ScenarioID, &p.UserID, &p.Side, &p.Amount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate predictions: %w", err)
	}
	return predictions, nil
}

// GetByScenarioAndUser returns a user's prediction on a scenario, or nil
func (r *PredictionRepository) GetByScenarioAndUser(ctx context.Context, scenarioID, userID uuid.UUID) (*entities.Prediction, error) {
	query := `
		SELECT id, scenario_id, user_id, side, amount, created_at
		FROM predictions
		WHERE scenario_id = $1 AND user_id = $2
	`

	var p entities.Prediction
	err := r.q.QueryRow(ctx, query, scenarioID, userID).Scan(
		&p.ID, &p.ScenarioID, &p.UserID, &p.Side, &p.Amount, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return &p, nil
}
