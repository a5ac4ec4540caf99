package interfaces

import (
	"context"
	"time"

	"apocaliptyx/domain/entities"
	"apocaliptyx/domain/events"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user, returning nil if it does not exist
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)

	// GetByIDForUpdate retrieves a user and locks the row until the unit of work ends
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.User, error)

	// Create inserts a new user with the balance already set on the entity
	Create(ctx context.Context, user *entities.User) error

	// UpdateBalance overwrites a user's balance
	UpdateBalance(ctx context.Context, id uuid.UUID, newBalance int64) error
}

// TransactionRepository is the append-only ledger store
type TransactionRepository interface {
	// Record appends a ledger entry and fills in its ID and CreatedAt
	Record(ctx context.Context, tx *entities.Transaction) error

	// GetByUser returns the newest entries for a user first. A non-positive
	// limit returns all of them.
	GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.Transaction, error)

	// GetByScenario returns every entry referencing a scenario, oldest first
	GetByScenario(ctx context.Context, scenarioID uuid.UUID) ([]*entities.Transaction, error)

	// SumByUser returns the signed sum of a user's entries
	SumByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ScenarioRepository defines the interface for scenario data access
type ScenarioRepository interface {
	// Create inserts a new scenario
	Create(ctx context.Context, scenario *entities.Scenario) error

	// GetByID retrieves a scenario, returning nil if it does not exist
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Scenario, error)

	// GetByIDForUpdate retrieves a scenario and locks the row until the unit of work ends
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Scenario, error)

	// ListByStatus returns scenarios in a status, newest first. limit <= 0 means no limit.
	ListByStatus(ctx context.Context, status entities.ScenarioStatus, limit int) ([]*entities.Scenario, error)

	// CompareAndSwapHolder moves the holder from expected to next only if expected
	// is still the holder, bumping steal_count. It reports whether a row changed.
	CompareAndSwapHolder(ctx context.Context, id, expected, next uuid.UUID, at time.Time) (bool, error)

	// UpdatePools writes recomputed pool figures
	UpdatePools(ctx context.Context, id uuid.UUID, pools entities.PoolSnapshot) error
}

// PredictionRepository defines the interface for prediction data access
type PredictionRepository interface {
	// Create inserts a prediction
	Create(ctx context.Context, prediction *entities.Prediction) error

	// GetByScenario returns all predictions on a scenario
	GetByScenario(ctx context.Context, scenarioID uuid.UUID) ([]*entities.Prediction, error)

	// GetByScenarioAndUser returns a user's prediction on a scenario or nil
	GetByScenarioAndUser(ctx context.Context, scenarioID, userID uuid.UUID) (*entities.Prediction, error)
}

// ShieldRepository stores at most one shield per scenario
type ShieldRepository interface {
	// GetByScenario returns the scenario's shield row, expired or not, or nil
	GetByScenario(ctx context.Context, scenarioID uuid.UUID) (*entities.Shield, error)

	// Upsert writes the shield, replacing any previous one for the scenario
	Upsert(ctx context.Context, shield *entities.Shield) error
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}
