package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"apocaliptyx/application"
	"apocaliptyx/domain/entities"
	"apocaliptyx/domain/events"
	"apocaliptyx/domain/services"
	"apocaliptyx/infrastructure"
	"apocaliptyx/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type capturingPublisher struct {
	mu        sync.Mutex
	published []events.Event
}

func (p *capturingPublisher) Publish(event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, event)
	return nil
}

func (p *capturingPublisher) ofType(eventType events.EventType) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []events.Event
	for _, e := range p.published {
		if e.Type() == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

// interceptingFactory runs hook right before the at-th unit of work is created
type interceptingFactory struct {
	inner application.UnitOfWorkFactory
	calls int
	at    int
	hook  func()
}

func (f *interceptingFactory) Create() application.UnitOfWork {
	f.calls++
	if f.calls == f.at && f.hook != nil {
		hook := f.hook
		f.hook = nil
		hook()
	}
	return f.inner.Create()
}

type harness struct {
	store     *memory.Store
	publisher *capturingPublisher
	factory   *infrastructure.UnitOfWorkFactory
	scenarios *application.ScenarioService
	engine    *application.StealEngine
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:     memory.NewStore(),
		publisher: &capturingPublisher{},
		now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.factory = infrastructure.NewUnitOfWorkFactory(h.store, h.publisher)
	h.scenarios = application.NewScenarioService(h.factory, nil, entities.ZeroStakeCountVotes)
	h.engine = h.newEngine(h.factory)
	return h
}

func (h *harness) newEngine(factory application.UnitOfWorkFactory) *application.StealEngine {
	stealRules := services.NewStealRules(services.DefaultStealCost(), services.DefaultCompensation(), 0)
	shieldRules := services.NewShieldRules(entities.DefaultShieldCatalog())
	return application.NewStealEngine(factory, stealRules, shieldRules, entities.ZeroStakeCountVotes).
		WithClock(func() time.Time { return h.now })
}

func (h *harness) createUser(t *testing.T, name string, balance int64) uuid.UUID {
	t.Helper()
	wallet := application.NewWalletService(h.factory, balance)
	user, err := wallet.RegisterUser(context.Background(), uuid.New(), name)
	require.NoError(t, err)
	return user.ID
}

func (h *harness) createScenario(t *testing.T, creatorID uuid.UUID, title string) *entities.Scenario {
	t.Helper()
	scenario, err := h.scenarios.CreateScenario(context.Background(), creatorID, title, "")
	require.NoError(t, err)
	return scenario
}

func (h *harness) balance(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	balance, err := application.NewWalletService(h.factory, 0).GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return balance
}

func (h *harness) scenario(t *testing.T, id uuid.UUID) *entities.Scenario {
	t.Helper()
	scenario, err := h.scenarios.GetScenario(context.Background(), id)
	require.NoError(t, err)
	return scenario
}

func (h *harness) history(t *testing.T, userID uuid.UUID) []*entities.Transaction {
	t.Helper()
	history, err := application.NewWalletService(h.factory, 0).GetHistory(context.Background(), userID, 0)
	require.NoError(t, err)
	return history
}

// insertPrediction bypasses the ledger to seed legacy rows such as zero stakes
func (h *harness) insertPrediction(t *testing.T, scenarioID, userID uuid.UUID, side entities.Side, amount int64) {
	t.Helper()
	ctx := context.Background()
	uow := h.factory.Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.PredictionRepository().Create(ctx, &entities.Prediction{
		ScenarioID: scenarioID,
		UserID:     userID,
		Side:       side,
		Amount:     amount,
	}))
	require.NoError(t, uow.Commit())
}
