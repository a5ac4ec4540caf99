package infrastructure

import (
	"context"

	"apocaliptyx/application"
	"apocaliptyx/domain/interfaces"
)

// unitOfWork wraps a repository UnitOfWork and publishes buffered events after commit
type unitOfWork struct {
	inner                  application.UnitOfWork
	transactionalPublisher *NATSTransactionalPublisher
	ctx                    context.Context
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	u.ctx = ctx
	return u.inner.Begin(ctx)
}

// Commit commits the transaction and then flushes events. Publishing is best
// effort once the data is committed.
func (u *unitOfWork) Commit() error {
	if err := u.inner.Commit(); err != nil {
		u.transactionalPublisher.Discard()
		return err
	}

	_ = u.transactionalPublisher.Flush(u.ctx)
	return nil
}

func (u *unitOfWork) Rollback() error {
	u.transactionalPublisher.Discard()
	return u.inner.Rollback()
}

func (u *unitOfWork) UserRepository() interfaces.UserRepository {
	return u.inner.UserRepository()
}

func (u *unitOfWork) TransactionRepository() interfaces.TransactionRepository {
	return u.inner.TransactionRepository()
}

func (u *unitOfWork) ScenarioRepository() interfaces.ScenarioRepository {
	return u.inner.ScenarioRepository()
}

func (u *unitOfWork) PredictionRepository() interfaces.PredictionRepository {
	return u.inner.PredictionRepository()
}

func (u *unitOfWork) ShieldRepository() interfaces.ShieldRepository {
	return u.inner.ShieldRepository()
}

func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	return u.transactionalPublisher
}
