package cmd

import (
	"context"
	"testing"

	"apocaliptyx/config"
	"apocaliptyx/domain/entities"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newOfflineTestApp wires the maintenance stack on the memory store without
// initializing metrics
func newOfflineTestApp(t *testing.T) *app {
	t.Helper()

	cfg := config.NewTestConfig()
	require.True(t, cfg.UseMemoryStore())

	a, err := newApp(context.Background(), cfg, appOptions{offline: true})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestRecalculatePools_HealsStalePools(t *testing.T) {
	ctx := context.Background()
	a := newOfflineTestApp(t)

	alice := uuid.New()
	bob := uuid.New()
	_, err := a.wallet.RegisterUser(ctx, alice, "alice")
	require.NoError(t, err)
	_, err = a.wallet.RegisterUser(ctx, bob, "bob")
	require.NoError(t, err)

	scenario, err := a.scenarios.CreateScenario(ctx, alice, "Grid collapse by 2030", "")
	require.NoError(t, err)
	_, _, err = a.scenarios.PlacePrediction(ctx, bob, scenario.ID, entities.SideYes, 40)
	require.NoError(t, err)

	// Corrupt the stored snapshot
	uow := a.uowFactory.Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.ScenarioRepository().UpdatePools(ctx, scenario.ID, entities.PoolSnapshot{}))
	require.NoError(t, uow.Commit())

	t.Run("single scenario", func(t *testing.T) {
		require.NoError(t, a.recalculatePools(ctx, scenario.ID.String()))

		got, err := a.scenarios.GetScenario(ctx, scenario.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(40), got.YesPool)
		assert.Equal(t, int64(40), got.TotalPool)
		assert.Equal(t, 1, got.ParticipantCount)
	})

	t.Run("all active", func(t *testing.T) {
		require.NoError(t, a.recalculatePools(ctx, ""))
	})

	t.Run("invalid id", func(t *testing.T) {
		assert.Error(t, a.recalculatePools(ctx, "not-a-uuid"))
	})

	t.Run("unknown scenario", func(t *testing.T) {
		assert.Error(t, a.recalculatePools(ctx, uuid.NewString()))
	})
}

func TestReconcile_DetectsDrift(t *testing.T) {
	ctx := context.Background()
	a := newOfflineTestApp(t)

	userID := uuid.New()
	_, err := a.wallet.RegisterUser(ctx, userID, "carol")
	require.NoError(t, err)

	require.NoError(t, a.reconcile(ctx, userID.String()))

	uow := a.uowFactory.Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.UserRepository().UpdateBalance(ctx, userID, 1234))
	require.NoError(t, uow.Commit())

	err = a.reconcile(ctx, userID.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drift of 234")

	assert.Error(t, a.reconcile(ctx, uuid.NewString()))
}

func TestMaintenanceCommands_RequireDatabase(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	t.Cleanup(config.ResetConfig)

	err := RecalculatePools(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")

	err = Reconcile(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")

	assert.Error(t, Reconcile(context.Background(), "nope"))
}
