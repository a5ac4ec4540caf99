package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the reason for a balance change
type TransactionType string

const (
	TransactionTypeInitial         TransactionType = "INITIAL"
	TransactionTypePurchase        TransactionType = "PURCHASE"
	TransactionTypeSale            TransactionType = "SALE"
	TransactionTypePrediction      TransactionType = "PREDICTION"
	TransactionTypeSteal           TransactionType = "STEAL"
	TransactionTypeStealRefund     TransactionType = "STEAL_REFUND"
	TransactionTypeCompensation    TransactionType = "COMPENSATION"
	TransactionTypeShield          TransactionType = "SHIELD"
	TransactionTypeWin             TransactionType = "WIN"
	TransactionTypeLoss            TransactionType = "LOSS"
	TransactionTypeReward          TransactionType = "REWARD"
	TransactionTypeAdminAdjustment TransactionType = "ADMIN_ADJUSTMENT"
)

// Direction describes which sign a transaction type may carry
type Direction int

const (
	DirectionCredit Direction = iota
	DirectionDebit
	DirectionEither
)

// Direction returns the allowed sign for the type. Unknown types return
// false so callers can reject them.
func (tt TransactionType) Direction() (Direction, bool) {
	switch tt {
	case TransactionTypeInitial, TransactionTypeSale, TransactionTypeStealRefund,
		TransactionTypeCompensation, TransactionTypeWin, TransactionTypeReward:
		return DirectionCredit, true
	case TransactionTypePurchase, TransactionTypePrediction, TransactionTypeSteal,
		TransactionTypeShield, TransactionTypeLoss:
		return DirectionDebit, true
	case TransactionTypeAdminAdjustment:
		return DirectionEither, true
	default:
		return 0, false
	}
}

// AllowsCredit reports whether the type may be used for a positive amount
func (tt TransactionType) AllowsCredit() bool {
	dir, ok := tt.Direction()
	return ok && (dir == DirectionCredit || dir == DirectionEither)
}

// AllowsDebit reports whether the type may be used for a negative amount
func (tt TransactionType) AllowsDebit() bool {
	dir, ok := tt.Direction()
	return ok && (dir == DirectionDebit || dir == DirectionEither)
}

// Description returns a human readable label
func (tt TransactionType) Description() string {
	switch tt {
	case TransactionTypeInitial:
		return "Starting balance"
	case TransactionTypePurchase:
		return "Shop purchase"
	case TransactionTypeSale:
		return "Shop sale"
	case TransactionTypePrediction:
		return "Prediction stake"
	case TransactionTypeSteal:
		return "Scenario steal"
	case TransactionTypeStealRefund:
		return "Steal refund"
	case TransactionTypeCompensation:
		return "Compensation for stolen scenario"
	case TransactionTypeShield:
		return "Scenario shield"
	case TransactionTypeWin:
		return "Prediction win"
	case TransactionTypeLoss:
		return "Prediction loss"
	case TransactionTypeReward:
		return "Reward"
	case TransactionTypeAdminAdjustment:
		return "Admin adjustment"
	default:
		return string(tt)
	}
}

func (tt TransactionType) String() string {
	return string(tt)
}

// Transaction is an immutable ledger entry. Amount is signed.
type Transaction struct {
	ID            int64           `db:"id" json:"id"`
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`
	Type          TransactionType `db:"type" json:"type"`
	Amount        int64           `db:"amount" json:"amount"`
	BalanceBefore int64           `db:"balance_before" json:"balance_before"`
	BalanceAfter  int64           `db:"balance_after" json:"balance_after"`
	ScenarioID    *uuid.UUID      `db:"scenario_id" json:"scenario_id,omitempty"`
	Metadata      map[string]any  `db:"metadata" json:"metadata,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// IsCredit returns true if the entry increased the balance
func (t *Transaction) IsCredit() bool {
	return t.Amount > 0
}

// Validate checks the entry before it is appended
func (t *Transaction) Validate() error {
	if t.Amount == 0 {
		return errors.New("transaction amount cannot be zero")
	}
	if t.Amount > 0 && !t.Type.AllowsCredit() {
		return errors.New("transaction type " + string(t.Type) + " cannot credit")
	}
	if t.Amount < 0 && !t.Type.AllowsDebit() {
		return errors.New("transaction type " + string(t.Type) + " cannot debit")
	}
	if t.BalanceAfter != t.BalanceBefore+t.Amount {
		return errors.New("balance calculation is inconsistent")
	}
	if t.BalanceAfter < 0 {
		return errors.New("balance cannot go negative")
	}
	return nil
}
