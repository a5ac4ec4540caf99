package memory

import (
	"context"
	"testing"
	"time"

	"apocaliptyx/domain/entities"
	"apocaliptyx/domain/testhelpers"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(name string, balance int64) *entities.User {
	return &entities.User{ID: uuid.New(), Username: name, Balance: balance, Level: 1, Role: entities.RoleUser}
}

func TestStore_RollbackRestoresState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewStore()

	alice := newUser("alice", 100)
	uow := store.CreateWithPublisher(&testhelpers.MockEventPublisher{})
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.UserRepository().Create(ctx, alice))
	require.NoError(t, uow.Commit())

	uow = store.CreateWithPublisher(&testhelpers.MockEventPublisher{})
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.UserRepository().UpdateBalance(ctx, alice.ID, 5))
	require.NoError(t, uow.TransactionRepository().Record(ctx, &entities.Transaction{
		UserID: alice.ID, Type: entities.TransactionTypeSteal, Amount: -95, BalanceBefore: 100, BalanceAfter: 5,
	}))
	require.NoError(t, uow.Rollback())

	uow = store.CreateWithPublisher(&testhelpers.MockEventPublisher{})
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), user.Balance)

	history, err := uow.TransactionRepository().GetByUser(ctx, alice.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestStore_BeginBlocksUntilRelease(t *testing.T) {
	t.Parallel()
	store := NewStore()

	first := store.CreateWithPublisher(&testhelpers.MockEventPublisher{})
	require.NoError(t, first.Begin(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	second := store.CreateWithPublisher(&testhelpers.MockEventPublisher{})
	assert.ErrorIs(t, second.Begin(ctx), context.DeadlineExceeded)

	require.NoError(t, first.Commit())
	require.NoError(t, second.Begin(context.Background()))
	require.NoError(t, second.Rollback())
}

func TestStore_CompareAndSwapHolder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewStore()

	creator := newUser("creator", 0)
	thief := newUser("thief", 0)

	uow := store.CreateWithPublisher(&testhelpers.MockEventPublisher{})
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	require.NoError(t, uow.UserRepository().Create(ctx, creator))
	require.NoError(t, uow.UserRepository().Create(ctx, thief))
	scenario := &entities.Scenario{ID: uuid.New(), CreatorID: creator.ID, Title: "t"}
	require.NoError(t, uow.ScenarioRepository().Create(ctx, scenario))

	repo := uow.ScenarioRepository()
	now := time.Now()

	ok, err := repo.CompareAndSwapHolder(ctx, scenario.ID, thief.ID, creator.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.CompareAndSwapHolder(ctx, scenario.ID, creator.ID, thief.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, err := repo.GetByID(ctx, scenario.ID)
	require.NoError(t, err)
	assert.Equal(t, thief.ID, loaded.CurrentHolder())
	assert.Equal(t, 1, loaded.StealCount)
	require.NotNil(t, loaded.LastStolenAt)
	assert.True(t, loaded.LastStolenAt.Equal(now))
}

func TestStore_RejectsInvalidRows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewStore()

	uow := store.CreateWithPublisher(&testhelpers.MockEventPublisher{})
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	alice := newUser("alice", 10)
	require.NoError(t, uow.UserRepository().Create(ctx, alice))
	assert.Error(t, uow.UserRepository().Create(ctx, newUser("alice", 0)))
	assert.Error(t, uow.UserRepository().UpdateBalance(ctx, alice.ID, -1))

	err := uow.TransactionRepository().Record(ctx, &entities.Transaction{
		UserID: alice.ID, Type: entities.TransactionTypeReward, Amount: 5, BalanceBefore: 10, BalanceAfter: 99,
	})
	assert.Error(t, err)

	scenario := &entities.Scenario{ID: uuid.New(), CreatorID: alice.ID, Title: "t"}
	require.NoError(t, uow.ScenarioRepository().Create(ctx, scenario))
	p := &entities.Prediction{ScenarioID: scenario.ID, UserID: alice.ID, Side: entities.SideYes}
	require.NoError(t, uow.PredictionRepository().Create(ctx, p))
	dup := &entities.Prediction{ScenarioID: scenario.ID, UserID: alice.ID, Side: entities.SideNo}
	assert.Error(t, uow.PredictionRepository().Create(ctx, dup))
}
