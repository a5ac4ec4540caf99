package application

import (
	"context"

	"apocaliptyx/domain/interfaces"
)

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and releases buffered events
	Commit() error

	// Rollback rolls back the transaction and drops buffered events.
	// Calling it after Commit is a no-op.
	Rollback() error

	// Repository getters, valid between Begin and Commit/Rollback
	UserRepository() interfaces.UserRepository
	TransactionRepository() interfaces.TransactionRepository
	ScenarioRepository() interfaces.ScenarioRepository
	PredictionRepository() interfaces.PredictionRepository
	ShieldRepository() interfaces.ShieldRepository
	EventBus() interfaces.EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
