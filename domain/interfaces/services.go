package interfaces

import (
	"context"

	"apocaliptyx/domain/entities"

	"github.com/google/uuid"
)

// LedgerService performs balance-affecting operations. Each call updates the
// balance and appends the ledger entry inside the caller's unit of work.
type LedgerService interface {
	Credit(ctx context.Context, userID uuid.UUID, amount int64, txType entities.TransactionType, scenarioRef *uuid.UUID, metadata map[string]any) (*entities.Transaction, error)
	Debit(ctx context.Context, userID uuid.UUID, amount int64, txType entities.TransactionType, scenarioRef *uuid.UUID, metadata map[string]any) (*entities.Transaction, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
}

// PoolTracker owns the holder field and the pool aggregates of scenarios
type PoolTracker interface {
	GetHolder(ctx context.Context, scenarioID uuid.UUID) (uuid.UUID, error)
	TransferHolder(ctx context.Context, scenarioID, fromUserID, toUserID uuid.UUID) error
	RecalculatePools(ctx context.Context, scenarioID uuid.UUID) (*entities.PoolSnapshot, error)
}

// UserService manages account registration
type UserService interface {
	GetOrCreateUser(ctx context.Context, userID uuid.UUID, username string) (*entities.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*entities.User, error)
}
