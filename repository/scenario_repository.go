package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"apocaliptyx/database"
	"apocaliptyx/domain/entities"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const scenarioColumns = `
	id, creator_id, holder_id, title, description,
	yes_pool, no_pool, total_pool, participant_count,
	steal_count, last_stolen_at, status, outcome,
	created_at, updated_at`

// ScenarioRepository implements the ScenarioRepository interface
type ScenarioRepository struct {
	q Queryable
}

// NewScenarioRepository creates a new scenario repository
func NewScenarioRepository(db *database.DB) *ScenarioRepository {
	return &ScenarioRepository{q: db.Pool}
}

// NewScenarioRepositoryScoped creates a scenario repository bound to a transaction
func NewScenarioRepositoryScoped(tx Queryable) *ScenarioRepository {
	return &ScenarioRepository{q: tx}
}

// Create inserts a new scenario. Pools always start empty.
func (r *ScenarioRepository) Create(ctx context.Context, scenario *entities.Scenario) error {
	if scenario.Status == "" {
		scenario.Status = entities.ScenarioStatusActive
	}

	query := `
		INSERT INTO scenarios (id, creator_id, holder_id, title, description, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		scenario.ID,
		scenario.CreatorID,
		scenario.HolderID,
		scenario.Title,
		scenario.Description,
		scenario.Status,
	).Scan(&scenario.CreatedAt, &scenario.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create scenario: %w", err)
	}
	return nil
}

// GetByID retrieves a scenario by ID
func (r *ScenarioRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Scenario, error) {
	query := `SELECT ` + scenarioColumns + ` FROM scenarios WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByIDForUpdate retrieves a scenario and locks its row
func (r *ScenarioRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Scenario, error) {
	query := `SELECT ` + scenarioColumns + ` FROM scenarios WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *ScenarioRepository) getOne(ctx context.Context, query string, id uuid.UUID) (*entities.Scenario, error) {
	scenario, err := scanScenario(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario %s: %w", id, err)
	}
	return scenario, nil
}

// ListByStatus returns scenarios with the given status, newest first.
// A non-positive limit returns all of them.
func (r *ScenarioRepository) ListByStatus(ctx context.Context, status entities.ScenarioStatus, limit int) ([]*entities.Scenario, error) {
	query := `SELECT ` + scenarioColumns + ` FROM scenarios WHERE status = $1 ORDER BY created_at DESC`
	args := []any{status}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s scenarios: %w", status, err)
	}
	defer rows.Close()

	var scenarios []*entities.Scenario
	for rows.Next() {
		scenario, err := scanScenario(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		scenarios = append(scenarios, scenario)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scenarios: %w", err)
	}
	return scenarios, nil
}

// CompareAndSwapHolder moves the holder from expected to next only while
// expected still holds an active scenario. A false result with a nil error
// means another writer got there first.
func (r *ScenarioRepository) CompareAndSwapHolder(ctx context.Context, id, expected, next uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE scenarios
		SET holder_id = $3,
		    steal_count = steal_count + 1,
		    last_stolen_at = $4,
		    updated_at = NOW()
		WHERE id = $1
		  AND COALESCE(holder_id, creator_id) = $2
		  AND status = 'ACTIVE'
	`

	result, err := r.q.Exec(ctx, query, id, expected, next, at)
	if err != nil {
		return false, fmt.Errorf("failed to swap holder of scenario %s: %w", id, err)
	}
	return result.RowsAffected() == 1, nil
}

// UpdatePools stores derived pool values. total_pool is a generated column.
func (r *ScenarioRepository) UpdatePools(ctx context.Context, id uuid.UUID, pools entities.PoolSnapshot) error {
	query := `
		UPDATE scenarios
		SET yes_pool = $2, no_pool = $3, participant_count = $4, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.q.Exec(ctx, query, id, pools.YesPool, pools.NoPool, pools.ParticipantCount)
	if err != nil {
		return fmt.Errorf("failed to update pools of scenario %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("scenario %s not found", id)
	}
	return nil
}

func scanScenario(row pgx.Row) (*entities.Scenario, error) {
	var s entities.Scenario
	err := row.Scan(
		&s.ID,
		&s.CreatorID,
		&s.HolderID,
		&s.Title,
		&s.Description,
		&s.YesPool,
		&s.NoPool,
		&s.TotalPool,
		&s.ParticipantCount,
		&s.StealCount,
		&s.LastStolenAt,
		&s.Status,
		&s.Outcome,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
