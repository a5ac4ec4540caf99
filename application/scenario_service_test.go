package application_test

import (
	"context"
	"sync"
	"testing"

	"apocaliptyx/application"
	"apocaliptyx/domain/entities"
	"apocaliptyx/domain/events"
	"apocaliptyx/domain/services"
	"apocaliptyx/infrastructure/observability"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entities.Scenario
	hits    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[uuid.UUID]*entities.Scenario)}
}

func (c *mapCache) Get(_ context.Context, id uuid.UUID) (*entities.Scenario, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[id]
	if ok {
		c.hits++
	}
	return s, ok
}

func (c *mapCache) Set(_ context.Context, scenario *entities.Scenario) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[scenario.ID] = scenario
}

func (c *mapCache) Invalidate(_ context.Context, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

func TestScenarioService_CreateScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	alice := h.createUser(t, "alice", 1000)

	tests := []struct {
		name    string
		creator uuid.UUID
		title   string
		wantErr error
	}{
		{"valid", alice, "  Quantum computer breaks RSA-2048  ", nil},
		{"blank title", alice, "   ", services.ErrInvalidInput},
		{"unknown creator", uuid.New(), "orphan", services.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario, err := h.scenarios.CreateScenario(ctx, tt.creator, tt.title, "details")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Quantum computer breaks RSA-2048", scenario.Title)
			assert.Equal(t, entities.ScenarioStatusActive, scenario.Status)
			assert.Equal(t, alice, scenario.CurrentHolder())
			assert.Nil(t, scenario.HolderID)
		})
	}

	assert.Len(t, h.publisher.ofType(events.EventTypeScenarioCreated), 1)
}

func TestScenarioService_PlacePrediction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	alice := h.createUser(t, "alice", 1000)
	bob := h.createUser(t, "bob", 500)
	carol := h.createUser(t, "carol", 50)
	scenario := h.createScenario(t, alice, "Humans on Mars by 2035")

	prediction, pools, err := h.scenarios.PlacePrediction(ctx, bob, scenario.ID, entities.SideYes, 200)
	require.NoError(t, err)
	assert.NotZero(t, prediction.ID)
	assert.Equal(t, int64(200), pools.YesPool)
	assert.Equal(t, int64(200), pools.TotalPool)
	assert.Equal(t, 1, pools.ParticipantCount)
	assert.Equal(t, int64(300), h.balance(t, bob))

	_, pools, err = h.scenarios.PlacePrediction(ctx, alice, scenario.ID, entities.SideNo, 100)
	require.NoError(t, err)
	assert.Equal(t, entities.PoolSnapshot{YesPool: 200, NoPool: 100, TotalPool: 300, ParticipantCount: 2}, *pools)

	_, _, err = h.scenarios.PlacePrediction(ctx, bob, scenario.ID, entities.SideNo, 10)
	assert.ErrorIs(t, err, services.ErrAlreadyPredicted)

	_, _, err = h.scenarios.PlacePrediction(ctx, carol, scenario.ID, entities.SideYes, 0)
	assert.ErrorIs(t, err, services.ErrInvalidAmount)

	_, _, err = h.scenarios.PlacePrediction(ctx, carol, scenario.ID, entities.Side("MAYBE"), 10)
	assert.ErrorIs(t, err, services.ErrInvalidSide)

	_, _, err = h.scenarios.PlacePrediction(ctx, carol, scenario.ID, entities.SideYes, 60)
	assert.ErrorIs(t, err, services.ErrInsufficientFunds)
	assert.Equal(t, int64(50), h.balance(t, carol))

	_, _, err = h.scenarios.PlacePrediction(ctx, carol, uuid.New(), entities.SideYes, 10)
	assert.ErrorIs(t, err, services.ErrScenarioNotFound)

	stored := h.scenario(t, scenario.ID)
	assert.Equal(t, int64(300), stored.TotalPool)
	assert.Equal(t, 2, stored.ParticipantCount)
}

func TestScenarioService_ZeroStakePredictionsCountAsVotes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	alice := h.createUser(t, "alice", 1000)
	bob := h.createUser(t, "bob", 0)
	carol := h.createUser(t, "carol", 0)
	scenario := h.createScenario(t, alice, "legacy votes")

	h.insertPrediction(t, scenario.ID, alice, entities.SideYes, 0)
	h.insertPrediction(t, scenario.ID, bob, entities.SideYes, 0)
	h.insertPrediction(t, scenario.ID, carol, entities.SideNo, 0)

	pools, err := h.scenarios.RecalculatePools(ctx, scenario.ID, observability.RecalcTriggerManual)
	require.NoError(t, err)
	assert.Equal(t, entities.PoolSnapshot{YesPool: 2, NoPool: 1, TotalPool: 3, ParticipantCount: 3}, *pools)

	stakes := application.NewScenarioService(h.factory, nil, entities.ZeroStakeSumStakes)
	pools, err = stakes.RecalculatePools(ctx, scenario.ID, observability.RecalcTriggerManual)
	require.NoError(t, err)
	assert.Equal(t, entities.PoolSnapshot{ParticipantCount: 3}, *pools)
}

func TestScenarioService_GetScenarioUsesCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	cache := newMapCache()
	svc := application.NewScenarioService(h.factory, cache, entities.ZeroStakeCountVotes)

	alice := h.createUser(t, "alice", 1000)
	scenario := h.createScenario(t, alice, "cached")

	first, err := svc.GetScenario(ctx, scenario.ID)
	require.NoError(t, err)
	assert.Zero(t, cache.hits)

	second, err := svc.GetScenario(ctx, scenario.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first.ID, second.ID)

	_, err = svc.GetScenario(ctx, uuid.New())
	assert.ErrorIs(t, err, services.ErrScenarioNotFound)
}

func TestScenarioService_ListActive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	alice := h.createUser(t, "alice", 1000)

	for _, title := range []string{"one", "two", "three"} {
		h.createScenario(t, alice, title)
	}

	all, err := h.scenarios.ListActive(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := h.scenarios.ListActive(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
