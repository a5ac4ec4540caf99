package repository

import (
	"context"
	"errors"
	"fmt"

	"apocaliptyx/application"
	"apocaliptyx/database"
	"apocaliptyx/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

// unitOfWork runs every repository on a single pgx transaction
type unitOfWork struct {
	db              *database.DB
	tx              pgx.Tx
	ctx             context.Context
	eventBus        interfaces.EventPublisher
	userRepo        interfaces.UserRepository
	transactionRepo interfaces.TransactionRepository
	scenarioRepo    interfaces.ScenarioRepository
	predictionRepo  interfaces.PredictionRepository
	shieldRepo      interfaces.ShieldRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB) *unitOfWorkFactory {
	return &unitOfWorkFactory{db: db}
}

type unitOfWorkFactory struct {
	db *database.DB
}

// CreateWithPublisher creates a UnitOfWork whose EventBus is the given
// publisher. The caller owns flushing it after commit.
func (f *unitOfWorkFactory) CreateWithPublisher(publisher interfaces.EventPublisher) application.UnitOfWork {
	return &unitOfWork{
		db:       f.db,
		eventBus: publisher,
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.userRepo = NewUserRepositoryScoped(tx)
	u.transactionRepo = NewTransactionRepositoryScoped(tx)
	u.scenarioRepo = NewScenarioRepositoryScoped(tx)
	u.predictionRepo = NewPredictionRepositoryScoped(tx)
	u.shieldRepo = NewShieldRepositoryScoped(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil
	return nil
}

// Rollback rolls back the transaction. It is safe to call after Commit.
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil
	return nil
}

func (u *unitOfWork) UserRepository() interfaces.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

func (u *unitOfWork) TransactionRepository() interfaces.TransactionRepository {
	if u.transactionRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionRepo
}

func (u *unitOfWork) ScenarioRepository() interfaces.ScenarioRepository {
	if u.scenarioRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.scenarioRepo
}

func (u *unitOfWork) PredictionRepository() interfaces.PredictionRepository {
	if u.predictionRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.predictionRepo
}

func (u *unitOfWork) ShieldRepository() interfaces.ShieldRepository {
	if u.shieldRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.shieldRepo
}

// EventBus returns the publisher events should be buffered on
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	if u.eventBus == nil {
		panic("unit of work has no event publisher")
	}
	return u.eventBus
}
