package application

import (
	"context"
	"fmt"
	"strings"

	"apocaliptyx/domain/entities"
	"apocaliptyx/domain/services"
	"apocaliptyx/infrastructure/observability"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// ReconcileReport compares a balance with the sum of its ledger
type ReconcileReport struct {
	UserID     uuid.UUID `json:"user_id"`
	Balance    int64     `json:"balance"`
	LedgerSum  int64     `json:"ledger_sum"`
	Drift      int64     `json:"drift"`
	Consistent bool      `json:"consistent"`
}

// WalletService exposes account and ledger operations
type WalletService struct {
	uowFactory      UnitOfWorkFactory
	startingBalance int64
}

// NewWalletService creates a new wallet service
func NewWalletService(uowFactory UnitOfWorkFactory, startingBalance int64) *WalletService {
	return &WalletService{
		uowFactory:      uowFactory,
		startingBalance: startingBalance,
	}
}

// RegisterUser returns the user, creating it with the starting balance on first call
func (s *WalletService) RegisterUser(ctx context.Context, userID uuid.UUID, username string) (*entities.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	userService := services.NewUserService(uow.UserRepository(), uow.TransactionRepository(), uow.EventBus(), s.startingBalance)
	user, err := userService.GetOrCreateUser(ctx, userID, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return user, nil
}

// GetBalance returns the user's balance
func (s *WalletService) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	ledger := services.NewLedgerService(uow.UserRepository(), uow.TransactionRepository(), uow.EventBus())
	return ledger.GetBalance(ctx, userID)
}

// GetHistory returns the newest ledger entries, clamping limit to a sane range
func (s *WalletService) GetHistory(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.Transaction, error) {
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, &services.UserNotFoundError{UserID: userID}
	}

	history, err := uow.TransactionRepository().GetByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return history, nil
}

// Reconcile checks that the balance equals the sum of the user's ledger
func (s *WalletService) Reconcile(ctx context.Context, userID uuid.UUID) (*ReconcileReport, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, &services.UserNotFoundError{UserID: userID}
	}

	sum, err := uow.TransactionRepository().SumByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger: %w", err)
	}

	report := &ReconcileReport{
		UserID:     userID,
		Balance:    user.Balance,
		LedgerSum:  sum,
		Drift:      user.Balance - sum,
		Consistent: user.Balance == sum,
	}
	if !report.Consistent {
		log.WithFields(log.Fields{
			"userID":    userID,
			"balance":   user.Balance,
			"ledgerSum": sum,
		}).Warn("Balance does not match ledger")
	}
	return report, nil
}

// AdminAdjust credits (positive amount) or debits (negative amount) a user
// on behalf of an admin
func (s *WalletService) AdminAdjust(ctx context.Context, actor Actor, targetID uuid.UUID, amount int64, reason string) (*entities.Transaction, error) {
	if !actor.Role.CanAdjustBalances() {
		return nil, fmt.Errorf("%w: role %s cannot adjust balances", services.ErrForbidden, actor.Role)
	}
	if amount == 0 {
		return nil, &services.InvalidAmountError{Amount: amount}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	ledger := services.NewLedgerService(uow.UserRepository(), uow.TransactionRepository(), uow.EventBus())
	metadata := map[string]any{
		"admin_id": actor.UserID.String(),
		"reason":   reason,
	}

	var (
		tx  *entities.Transaction
		err error
	)
	if amount > 0 {
		tx, err = ledger.Credit(ctx, targetID, amount, entities.TransactionTypeAdminAdjustment, nil, metadata)
	} else {
		tx, err = ledger.Debit(ctx, targetID, -amount, entities.TransactionTypeAdminAdjustment, nil, metadata)
	}
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	observability.GetMetrics().RecordLedgerTransaction(string(tx.Type))
	log.WithFields(log.Fields{
		"adminID":  actor.UserID,
		"targetID": targetID,
		"amount":   amount,
		"reason":   reason,
	}).Info("Admin balance adjustment")
	return tx, nil
}
