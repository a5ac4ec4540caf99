package repository

import (
	"context"
	"testing"
	"time"

	"apocaliptyx/domain/entities"
	"apocaliptyx/repository/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioRepository_CompareAndSwapHolder(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	users := NewUserRepository(testDB.DB)
	repo := NewScenarioRepository(testDB.DB)

	creator := testutil.CreateTestUser("creator", 0)
	thief := testutil.CreateTestUser("thief", 0)
	rival := testutil.CreateTestUser("rival", 0)
	for _, u := range []*entities.User{creator, thief, rival} {
		require.NoError(t, users.Create(ctx, u))
	}

	scenario := testutil.CreateTestScenario(creator.ID, "Asteroid by 2030")
	require.NoError(t, repo.Create(ctx, scenario))

	loaded, err := repo.GetByID(ctx, scenario.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Nil(t, loaded.HolderID)
	assert.Equal(t, creator.ID, loaded.CurrentHolder())
	assert.Equal(t, entities.ScenarioStatusActive, loaded.Status)

	at := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("swap from implicit creator holder", func(t *testing.T) {
		ok, err := repo.CompareAndSwapHolder(ctx, scenario.ID, creator.ID, thief.ID, at)
		require.NoError(t, err)
		assert.True(t, ok)

		s, err := repo.GetByID(ctx, scenario.ID)
		require.NoError(t, err)
		assert.Equal(t, thief.ID, s.CurrentHolder())
		assert.Equal(t, 1, s.StealCount)
		require.NotNil(t, s.LastStolenAt)
		assert.True(t, s.LastStolenAt.Equal(at))
	})

	t.Run("stale expectation fails", func(t *testing.T) {
		ok, err := repo.CompareAndSwapHolder(ctx, scenario.ID, creator.ID, rival.ID, at)
		require.NoError(t, err)
		assert.False(t, ok)

		s, err := repo.GetByID(ctx, scenario.ID)
		require.NoError(t, err)
		assert.Equal(t, thief.ID, s.CurrentHolder())
		assert.Equal(t, 1, s.StealCount)
	})

	t.Run("inactive scenario cannot be swapped", func(t *testing.T) {
		_, err := testDB.DB.Exec(ctx, `UPDATE scenarios SET status = 'RESOLVED' WHERE id = $1`, scenario.ID)
		require.NoError(t, err)

		ok, err := repo.CompareAndSwapHolder(ctx, scenario.ID, thief.ID, rival.ID, at)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown scenario", func(t *testing.T) {
		ok, err := repo.CompareAndSwapHolder(ctx, uuid.New(), thief.ID, rival.ID, at)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestScenarioRepository_PoolsAndListing(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	users := NewUserRepository(testDB.DB)
	repo := NewScenarioRepository(testDB.DB)

	creator := testutil.CreateTestUser("creator", 0)
	require.NoError(t, users.Create(ctx, creator))

	first := testutil.CreateTestScenario(creator.ID, "first")
	second := testutil.CreateTestScenario(creator.ID, "second")
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	require.NoError(t, repo.UpdatePools(ctx, first.ID, entities.PoolSnapshot{
		YesPool: 2, NoPool: 1, TotalPool: 3, ParticipantCount: 3,
	}))

	s, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.YesPool)
	assert.Equal(t, int64(1), s.NoPool)
	assert.Equal(t, int64(3), s.TotalPool)
	assert.Equal(t, 3, s.ParticipantCount)

	assert.Error(t, repo.UpdatePools(ctx, uuid.New(), entities.PoolSnapshot{}))

	all, err := repo.ListByStatus(ctx, entities.ScenarioStatusActive, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	limited, err := repo.ListByStatus(ctx, entities.ScenarioStatusActive, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	resolved, err := repo.ListByStatus(ctx, entities.ScenarioStatusResolved, 0)
	require.NoError(t, err)
	assert.Empty(t, resolved)
}
