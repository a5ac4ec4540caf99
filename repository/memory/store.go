// Package memory holds an in-process implementation of the repositories.
// A unit of work takes the store lock on Begin and keeps it until Commit or
// Rollback, so units of work are serialized and Rollback restores the state
// captured at Begin.
package memory

import (
	"context"
	"fmt"
	"maps"

	"apocaliptyx/application"
	"apocaliptyx/domain/entities"
	"apocaliptyx/domain/interfaces"

	"github.com/google/uuid"
)

type state struct {
	users        map[uuid.UUID]*entities.User
	scenarios    map[uuid.UUID]*entities.Scenario
	shields      map[uuid.UUID]*entities.Shield
	predictions  []*entities.Prediction
	transactions []*entities.Transaction
	nextTxID     int64
	nextPredID   int64
}

// snapshot copies the containers. Stored entities are never mutated in place,
// so sharing the pointers is safe.
func (s *state) snapshot() *state {
	return &state{
		users:        maps.Clone(s.users),
		scenarios:    maps.Clone(s.scenarios),
		shields:      maps.Clone(s.shields),
		predictions:  s.predictions[:len(s.predictions):len(s.predictions)],
		transactions: s.transactions[:len(s.transactions):len(s.transactions)],
		nextTxID:     s.nextTxID,
		nextPredID:   s.nextPredID,
	}
}

// Store is the shared in-memory database
type Store struct {
	sem   chan struct{}
	state *state
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		sem: make(chan struct{}, 1),
		state: &state{
			users:     make(map[uuid.UUID]*entities.User),
			scenarios: make(map[uuid.UUID]*entities.Scenario),
			shields:   make(map[uuid.UUID]*entities.Shield),
		},
	}
}

// CreateWithPublisher creates a UnitOfWork over the store
func (s *Store) CreateWithPublisher(publisher interfaces.EventPublisher) application.UnitOfWork {
	return &unitOfWork{store: s, eventBus: publisher}
}

func (s *Store) lock(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to begin transaction: %w", ctx.Err())
	}
}

func (s *Store) unlock() {
	<-s.sem
}

type unitOfWork struct {
	store    *Store
	saved    *state
	begun    bool
	eventBus interfaces.EventPublisher
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.begun {
		return fmt.Errorf("transaction already started")
	}
	if err := u.store.lock(ctx); err != nil {
		return err
	}
	u.saved = u.store.state.snapshot()
	u.begun = true
	return nil
}

func (u *unitOfWork) Commit() error {
	if !u.begun {
		return fmt.Errorf("no transaction to commit")
	}
	u.saved = nil
	u.begun = false
	u.store.unlock()
	return nil
}

func (u *unitOfWork) Rollback() error {
	if !u.begun {
		return nil
	}
	u.store.state = u.saved
	u.saved = nil
	u.begun = false
	u.store.unlock()
	return nil
}

func (u *unitOfWork) mustBegin() {
	if !u.begun {
		panic("unit of work not started - call Begin() first")
	}
}

func (u *unitOfWork) UserRepository() interfaces.UserRepository {
	u.mustBegin()
	return &userRepository{store: u.store}
}

func (u *unitOfWork) TransactionRepository() interfaces.TransactionRepository {
	u.mustBegin()
	return &transactionRepository{store: u.store}
}

func (u *unitOfWork) ScenarioRepository() interfaces.ScenarioRepository {
	u.mustBegin()
	return &scenarioRepository{store: u.store}
}

func (u *unitOfWork) PredictionRepository() interfaces.PredictionRepository {
	u.mustBegin()
	return &predictionRepository{store: u.store}
}

func (u *unitOfWork) ShieldRepository() interfaces.ShieldRepository {
	u.mustBegin()
	return &shieldRepository{store: u.store}
}

func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	if u.eventBus == nil {
		panic("unit of work has no event publisher")
	}
	return u.eventBus
}
