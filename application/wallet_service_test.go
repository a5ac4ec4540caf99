package application_test

import (
	"context"
	"testing"

	"apocaliptyx/application"
	"apocaliptyx/domain/entities"
	"apocaliptyx/domain/events"
	"apocaliptyx/domain/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletService_RegisterUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	wallet := application.NewWalletService(h.factory, 1000)

	id := uuid.New()
	user, err := wallet.RegisterUser(ctx, id, "  dana  ")
	require.NoError(t, err)
	assert.Equal(t, "dana", user.Username)
	assert.Equal(t, int64(1000), user.Balance)

	again, err := wallet.RegisterUser(ctx, id, "ignored")
	require.NoError(t, err)
	assert.Equal(t, "dana", again.Username)

	history, err := wallet.GetHistory(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entities.TransactionTypeInitial, history[0].Type)
	assert.Len(t, h.publisher.ofType(events.EventTypeBalanceChange), 1)
}

func TestWalletService_UnknownUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	wallet := application.NewWalletService(h.factory, 1000)

	_, err := wallet.GetBalance(ctx, uuid.New())
	assert.ErrorIs(t, err, services.ErrUserNotFound)

	_, err = wallet.GetHistory(ctx, uuid.New(), 10)
	assert.ErrorIs(t, err, services.ErrUserNotFound)

	_, err = wallet.Reconcile(ctx, uuid.New())
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}

func TestWalletService_AdminAdjust(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	wallet := application.NewWalletService(h.factory, 1000)

	target := h.createUser(t, "target", 200)
	admin := application.Actor{UserID: uuid.New(), Role: entities.RoleAdmin}

	tests := []struct {
		name        string
		actor       application.Actor
		amount      int64
		wantErr     error
		wantBalance int64
	}{
		{"credit", admin, 300, nil, 500},
		{"debit", admin, -150, nil, 350},
		{"overdraw", admin, -1000, services.ErrInsufficientFunds, 350},
		{"zero", admin, 0, services.ErrInvalidAmount, 350},
		{"plain user", application.Actor{UserID: uuid.New(), Role: entities.RoleUser}, 10, services.ErrForbidden, 350},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := wallet.AdminAdjust(ctx, tt.actor, target, tt.amount, "support ticket")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, entities.TransactionTypeAdminAdjustment, tx.Type)
				assert.Equal(t, tt.amount, tx.Amount)
				assert.Equal(t, admin.UserID.String(), tx.Metadata["admin_id"])
			}
			assert.Equal(t, tt.wantBalance, h.balance(t, target))
		})
	}

	report, err := wallet.Reconcile(ctx, target)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, int64(350), report.LedgerSum)
}

func TestWalletService_ReconcileDetectsDrift(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	wallet := application.NewWalletService(h.factory, 1000)
	user := h.createUser(t, "drifter", 100)

	// Write a balance without a ledger entry
	uow := h.factory.Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.UserRepository().UpdateBalance(ctx, user, 130))
	require.NoError(t, uow.Commit())

	report, err := wallet.Reconcile(ctx, user)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.Equal(t, int64(30), report.Drift)
}
