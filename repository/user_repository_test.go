package repository

import (
	"context"
	"testing"

	"apocaliptyx/domain/entities"
	"apocaliptyx/repository/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	t.Run("user not found", func(t *testing.T) {
		user, err := repo.GetByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("user found", func(t *testing.T) {
		testUser := testutil.CreateTestUser("alice", 1000)
		require.NoError(t, repo.Create(ctx, testUser))
		assert.False(t, testUser.CreatedAt.IsZero())

		user, err := repo.GetByID(ctx, testUser.ID)
		require.NoError(t, err)
		require.NotNil(t, user)

		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, int64(1000), user.Balance)
		assert.Equal(t, entities.RoleUser, user.Role)
	})

	t.Run("duplicate username", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, testutil.CreateTestUser("bob", 0)))
		err := repo.Create(ctx, testutil.CreateTestUser("bob", 0))
		assert.Error(t, err)
	})

	t.Run("negative balance rejected", func(t *testing.T) {
		err := repo.Create(ctx, testutil.CreateTestUser("carol", -1))
		assert.Error(t, err)
	})
}

func TestUserRepository_UpdateBalance(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	testUser := testutil.CreateTestUser("dave", 500)
	require.NoError(t, repo.Create(ctx, testUser))

	require.NoError(t, repo.UpdateBalance(ctx, testUser.ID, 750))

	user, err := repo.GetByID(ctx, testUser.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(750), user.Balance)

	assert.Error(t, repo.UpdateBalance(ctx, testUser.ID, -5))
	assert.Error(t, repo.UpdateBalance(ctx, uuid.New(), 10))
}
