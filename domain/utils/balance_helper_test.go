package utils

import (
	"context"
	"errors"
	"testing"

	"apocaliptyx/domain/entities"
	"apocaliptyx/domain/events"
	"apocaliptyx/domain/testhelpers"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRecordBalanceChange(t *testing.T) {
	ctx := context.Background()

	txRepo := new(testhelpers.MockTransactionRepository)
	publisher := new(testhelpers.MockEventPublisher)

	userID := uuid.New()
	tx := &entities.Transaction{
		UserID:        userID,
		Type:          entities.TransactionTypeSteal,
		Amount:        -100,
		BalanceBefore: 500,
		BalanceAfter:  400,
	}

	txRepo.On("Record", ctx, tx).Run(func(args mock.Arguments) {
		args.Get(1).(*entities.Transaction).ID = 42
	}).Return(nil)
	publisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		bc, ok := e.(events.BalanceChangeEvent)
		return ok && bc.UserID == userID && bc.ChangeAmount == -100 && bc.TransactionID == 42
	})).Return(nil)

	err := RecordBalanceChange(ctx, txRepo, publisher, tx)
	require.NoError(t, err)

	txRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestRecordBalanceChange_UserCreatedEvent(t *testing.T) {
	ctx := context.Background()

	txRepo := new(testhelpers.MockTransactionRepository)
	publisher := new(testhelpers.MockEventPublisher)

	tx := &entities.Transaction{
		UserID:       uuid.New(),
		Type:         entities.TransactionTypeInitial,
		Amount:       1000,
		BalanceAfter: 1000,
		Metadata:     map[string]any{"username": "oracle"},
	}

	txRepo.On("Record", ctx, tx).Return(nil)
	publisher.On("Publish", mock.AnythingOfType("events.BalanceChangeEvent")).Return(nil)
	publisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		created, ok := e.(events.UserCreatedEvent)
		return ok && created.Username == "oracle" && created.InitialBalance == 1000
	})).Return(nil)

	require.NoError(t, RecordBalanceChange(ctx, txRepo, publisher, tx))
	publisher.AssertNumberOfCalls(t, "Publish", 2)
}

func TestRecordBalanceChange_RejectsInvalidEntry(t *testing.T) {
	ctx := context.Background()

	txRepo := new(testhelpers.MockTransactionRepository)
	publisher := new(testhelpers.MockEventPublisher)

	tx := &entities.Transaction{
		UserID:        uuid.New(),
		Type:          entities.TransactionTypeReward,
		Amount:        10,
		BalanceBefore: 0,
		BalanceAfter:  5,
	}

	err := RecordBalanceChange(ctx, txRepo, publisher, tx)
	assert.Error(t, err)
	txRepo.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestRecordBalanceChange_RepositoryError(t *testing.T) {
	ctx := context.Background()

	txRepo := new(testhelpers.MockTransactionRepository)
	publisher := new(testhelpers.MockEventPublisher)

	tx := &entities.Transaction{
		UserID:       uuid.New(),
		Type:         entities.TransactionTypeReward,
		Amount:       10,
		BalanceAfter: 10,
	}
	txRepo.On("Record", ctx, tx).Return(errors.New("connection reset"))

	err := RecordBalanceChange(ctx, txRepo, publisher, tx)
	assert.ErrorContains(t, err, "failed to record transaction")
	publisher.AssertNotCalled(t, "Publish", mock.Anything)
}
