package application_test

import (
	"context"
	"testing"
	"time"

	"apocaliptyx/application"
	"apocaliptyx/domain/entities"
	"apocaliptyx/domain/events"
	"apocaliptyx/domain/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStealEngine_AttemptSteal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	alice := h.createUser(t, "alice", 1000)
	bob := h.createUser(t, "bob", 500)
	scenario := h.createScenario(t, alice, "AI passes the bar exam by 2027")

	result, err := h.engine.AttemptSteal(ctx, scenario.ID, bob)
	require.NoError(t, err)

	assert.Equal(t, alice, result.FormerHolderID)
	assert.Equal(t, bob, result.NewHolderID)
	assert.Equal(t, int64(100), result.Cost)
	assert.Equal(t, int64(50), result.Compensation)
	assert.Equal(t, 1, result.StealCount)
	assert.Equal(t, int64(400), result.NewBalance)

	assert.Equal(t, int64(400), h.balance(t, bob))
	assert.Equal(t, int64(1050), h.balance(t, alice))

	updated := h.scenario(t, scenario.ID)
	assert.Equal(t, bob, updated.CurrentHolder())
	assert.Equal(t, 1, updated.StealCount)
	require.NotNil(t, updated.LastStolenAt)
	assert.True(t, updated.LastStolenAt.Equal(h.now))

	stolen := h.publisher.ofType(events.EventTypeScenarioStolen)
	require.Len(t, stolen, 1)
	assert.Equal(t, 1, stolen[0].(events.ScenarioStolenEvent).StealCount)

	bobHistory := h.history(t, bob)
	require.NotEmpty(t, bobHistory)
	assert.Equal(t, entities.TransactionTypeSteal, bobHistory[0].Type)
	assert.Equal(t, int64(-100), bobHistory[0].Amount)
	require.NotNil(t, bobHistory[0].ScenarioID)
	assert.Equal(t, scenario.ID, *bobHistory[0].ScenarioID)

	aliceHistory := h.history(t, alice)
	assert.Equal(t, entities.TransactionTypeCompensation, aliceHistory[0].Type)
	assert.Equal(t, int64(50), aliceHistory[0].Amount)
}

func TestStealEngine_AttemptStealRejections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("self steal", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		alice := h.createUser(t, "alice", 1000)
		scenario := h.createScenario(t, alice, "self")

		_, err := h.engine.AttemptSteal(ctx, scenario.ID, alice)
		assert.ErrorIs(t, err, services.ErrSelfSteal)
		assert.Equal(t, int64(1000), h.balance(t, alice))
	})

	t.Run("insufficient funds", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		alice := h.createUser(t, "alice", 1000)
		bob := h.createUser(t, "bob", 40)
		scenario := h.createScenario(t, alice, "poor")

		_, err := h.engine.AttemptSteal(ctx, scenario.ID, bob)
		var insufficient *services.InsufficientFundsError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, int64(60), insufficient.Shortfall())
		assert.Equal(t, int64(40), h.balance(t, bob))
		assert.Equal(t, alice, h.scenario(t, scenario.ID).CurrentHolder())
	})

	t.Run("unknown scenario", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		bob := h.createUser(t, "bob", 500)

		_, err := h.engine.AttemptSteal(ctx, bob, bob)
		assert.ErrorIs(t, err, services.ErrScenarioNotFound)
	})
}

func TestStealEngine_ShieldBlocksSteal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	alice := h.createUser(t, "alice", 1000)
	bob := h.createUser(t, "bob", 500)
	scenario := h.createScenario(t, alice, "Fusion power on the grid")

	shield, err := h.engine.ApplyShield(ctx, scenario.ID, alice, entities.ShieldTierBasic)
	require.NoError(t, err)
	assert.Equal(t, h.now.Add(time.Hour), shield.ProtectedUntil)
	assert.Equal(t, int64(950), h.balance(t, alice))

	_, err = h.engine.AttemptSteal(ctx, scenario.ID, bob)
	var shielded *services.ScenarioShieldedError
	require.ErrorAs(t, err, &shielded)
	assert.Equal(t, entities.ShieldTierBasic, shielded.Tier)
	assert.Equal(t, time.Hour, shielded.Remaining)

	assert.Equal(t, int64(500), h.balance(t, bob))
	assert.Equal(t, int64(950), h.balance(t, alice))
	assert.Equal(t, alice, h.scenario(t, scenario.ID).CurrentHolder())

	// Once the shield lapses the steal goes through
	h.now = h.now.Add(time.Hour + time.Second)
	_, err = h.engine.AttemptSteal(ctx, scenario.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, bob, h.scenario(t, scenario.ID).CurrentHolder())
}

func TestStealEngine_ApplyShieldRejections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	alice := h.createUser(t, "alice", 1000)
	bob := h.createUser(t, "bob", 100)
	scenario := h.createScenario(t, alice, "shield rules")

	_, err := h.engine.ApplyShield(ctx, scenario.ID, bob, entities.ShieldTierBasic)
	assert.ErrorIs(t, err, services.ErrNotHolder)

	_, err = h.engine.ApplyShield(ctx, scenario.ID, alice, entities.ShieldTier("mythic"))
	assert.ErrorIs(t, err, services.ErrInvalidShieldTier)

	_, err = h.engine.AttemptSteal(ctx, scenario.ID, bob)
	require.NoError(t, err)

	// bob now holds it but cannot afford the ultimate tier
	_, err = h.engine.ApplyShield(ctx, scenario.ID, bob, entities.ShieldTierUltimate)
	assert.ErrorIs(t, err, services.ErrInsufficientFunds)
	assert.Equal(t, int64(0), h.balance(t, bob))
	assert.Empty(t, h.publisher.ofType(events.EventTypeShieldApplied))
}

func TestStealEngine_ConcurrentStealRefundsLoser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	alice := h.createUser(t, "alice", 1000)
	bob := h.createUser(t, "bob", 500)
	carol := h.createUser(t, "carol", 500)
	scenario := h.createScenario(t, alice, "Mars landing before 2030")

	carolEngine := h.newEngine(h.factory)
	racing := &interceptingFactory{inner: h.factory, at: 2}
	racing.hook = func() {
		// carol's whole steal lands between bob's charge and bob's transfer
		_, err := carolEngine.AttemptSteal(ctx, scenario.ID, carol)
		require.NoError(t, err)
	}
	bobEngine := h.newEngine(racing)

	_, err := bobEngine.AttemptSteal(ctx, scenario.ID, bob)
	var raceLost *services.StealRaceLostError
	require.ErrorAs(t, err, &raceLost)
	assert.ErrorIs(t, err, services.ErrStealRaceLost)
	assert.Equal(t, int64(100), raceLost.Refunded)
	assert.Equal(t, carol, raceLost.HolderID)

	updated := h.scenario(t, scenario.ID)
	assert.Equal(t, carol, updated.CurrentHolder())
	assert.Equal(t, 1, updated.StealCount)

	assert.Equal(t, int64(500), h.balance(t, bob))
	assert.Equal(t, int64(400), h.balance(t, carol))
	assert.Equal(t, int64(1050), h.balance(t, alice), "former holder is compensated exactly once")

	bobHistory := h.history(t, bob)
	require.Len(t, bobHistory, 3)
	assert.Equal(t, entities.TransactionTypeStealRefund, bobHistory[0].Type)
	assert.Equal(t, int64(100), bobHistory[0].Amount)
	assert.Equal(t, entities.TransactionTypeSteal, bobHistory[1].Type)

	assert.Len(t, h.publisher.ofType(events.EventTypeScenarioStolen), 1)
}

func TestStealEngine_CoinConservation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	alice := h.createUser(t, "alice", 1000)
	bob := h.createUser(t, "bob", 500)
	carol := h.createUser(t, "carol", 700)
	scenario := h.createScenario(t, alice, "conservation")

	_, _, err := h.scenarios.PlacePrediction(ctx, carol, scenario.ID, entities.SideYes, 300)
	require.NoError(t, err)

	// pool 300 keeps the base price, steal count escalates it
	first, err := h.engine.AttemptSteal(ctx, scenario.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(100), first.Cost)

	second, err := h.engine.AttemptSteal(ctx, scenario.ID, carol)
	require.NoError(t, err)
	assert.Equal(t, int64(125), second.Cost)

	_, err = h.engine.ApplyShield(ctx, scenario.ID, carol, entities.ShieldTierBasic)
	require.NoError(t, err)

	_, err = h.engine.AttemptSteal(ctx, scenario.ID, alice)
	assert.ErrorIs(t, err, services.ErrScenarioShielded)

	wallet := application.NewWalletService(h.factory, 0)
	total := int64(0)
	for _, userID := range []uuid.UUID{alice, bob, carol} {
		report, err := wallet.Reconcile(ctx, userID)
		require.NoError(t, err)
		assert.True(t, report.Consistent, "user %s drifted by %d", userID, report.Drift)
		total += report.Balance
	}

	// minted: 2200 starting, +50 and +62 compensation; burned: 300 stake,
	// 100 and 125 steals, 50 shield
	assert.Equal(t, int64(2200+50+62-300-100-125-50), total)
}
