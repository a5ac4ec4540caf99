package services

import (
	"context"
	"fmt"

	"apocaliptyx/domain/entities"
	"apocaliptyx/domain/interfaces"
	"apocaliptyx/domain/utils"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ledgerService applies balance changes. It relies on the caller's unit of
// work so the balance update and the ledger append commit together.
type ledgerService struct {
	userRepo       interfaces.UserRepository
	txRepo         interfaces.TransactionRepository
	eventPublisher interfaces.EventPublisher
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	userRepo interfaces.UserRepository,
	txRepo interfaces.TransactionRepository,
	eventPublisher interfaces.EventPublisher,
) interfaces.LedgerService {
	return &ledgerService{
		userRepo:       userRepo,
		txRepo:         txRepo,
		eventPublisher: eventPublisher,
	}
}

// Credit adds amount to the user's balance
func (s *ledgerService) Credit(ctx context.Context, userID uuid.UUID, amount int64, txType entities.TransactionType, scenarioRef *uuid.UUID, metadata map[string]any) (*entities.Transaction, error) {
	if amount <= 0 {
		return nil, &InvalidAmountError{Amount: amount}
	}
	if !txType.AllowsCredit() {
		return nil, fmt.Errorf("transaction type %s cannot be used for a credit", txType)
	}

	return s.apply(ctx, userID, amount, txType, scenarioRef, metadata)
}

// Debit removes amount from the user's balance, refusing to go negative
func (s *ledgerService) Debit(ctx context.Context, userID uuid.UUID, amount int64, txType entities.TransactionType, scenarioRef *uuid.UUID, metadata map[string]any) (*entities.Transaction, error) {
	if amount <= 0 {
		return nil, &InvalidAmountError{Amount: amount}
	}
	if !txType.AllowsDebit() {
		return nil, fmt.Errorf("transaction type %s cannot be used for a debit", txType)
	}

	return s.apply(ctx, userID, -amount, txType, scenarioRef, metadata)
}

// GetBalance returns the user's current balance
func (s *ledgerService) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return 0, &UserNotFoundError{UserID: userID}
	}
	return user.Balance, nil
}

func (s *ledgerService) apply(ctx context.Context, userID uuid.UUID, delta int64, txType entities.TransactionType, scenarioRef *uuid.UUID, metadata map[string]any) (*entities.Transaction, error) {
	// Lock the row so concurrent debits serialize on the balance check
	user, err := s.userRepo.GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, &UserNotFoundError{UserID: userID}
	}

	if delta < 0 && !user.HasSufficientBalance(-delta) {
		return nil, &InsufficientFundsError{
			UserID:   userID,
			Balance:  user.Balance,
			Required: -delta,
		}
	}

	newBalance := user.Balance + delta
	if err := s.userRepo.UpdateBalance(ctx, userID, newBalance); err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	tx := &entities.Transaction{
		UserID:        userID,
		Type:          txType,
		Amount:        delta,
		BalanceBefore: user.Balance,
		BalanceAfter:  newBalance,
		ScenarioID:    scenarioRef,
		Metadata:      metadata,
	}
	if err := utils.RecordBalanceChange(ctx, s.txRepo, s.eventPublisher, tx); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"userID":     userID,
		"type":       txType,
		"amount":     delta,
		"newBalance": newBalance,
	}).Debug("Applied ledger entry")

	return tx, nil
}
