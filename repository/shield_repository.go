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

// ShieldRepository stores the single shield record per scenario
type ShieldRepository struct {
	q Queryable
}

// NewShieldRepository creates a new shield repository
func NewShieldRepository(db *database.DB) *ShieldRepository {
	return &ShieldRepository{q: db.Pool}
}

// NewShieldRepositoryScoped creates a shield repository bound to a transaction
func NewShieldRepositoryScoped(tx Queryable) *ShieldRepository {
	return &ShieldRepository{q: tx}
}

// GetByScenario returns the latest shield for a scenario, expired or not
func (r *ShieldRepository) GetByScenario(ctx context.Context, scenarioID uuid.UUID) (*entities.Shield, error) {
	query := `
		SELECT scenario_id, holder_id, tier, cost, protected_until, created_at
		FROM shields
		WHERE scenario_id = $1
	`

	var s entities.Shield
	err := r.q.QueryRow(ctx, query, scenarioID).Scan(
		&s.ScenarioID, &s.HolderID, &s.Tier, &s.Cost, &s.ProtectedUntil, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shield for scenario %s: %w", scenarioID, err)
	}
	return &s, nil
}

// Upsert replaces any previous shield on the scenario
func (r *ShieldRepository) Upsert(ctx context.Context, shield *entities.Shield) error {
	query := `
		INSERT INTO shields (scenario_id, holder_id, tier, cost, protected_until)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scenario_id) DO UPDATE
		SET holder_id = EXCLUDED.holder_id,
		    tier = EXCLUDED.tier,
		    cost = EXCLUDED.cost,
		    protected_until = EXCLUDED.protected_until,
		    created_at = NOW()
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query,
		shield.ScenarioID,
		shield.HolderID,
		shield.Tier,
		shield.Cost,
		shield.ProtectedUntil,
	).Scan(&shield.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert shield for scenario %s: %w", shield.ScenarioID, err)
	}
	return nil
}
