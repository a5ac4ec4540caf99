package services

import (
	"errors"
	"fmt"
	"time"

	"apocaliptyx/domain/entities"

	"github.com/google/uuid"
)

// Sentinel errors. Every typed error below unwraps to one of these so callers
// can branch with errors.Is and read details with errors.As.
var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOwnershipMismatch = errors.New("ownership mismatch")
	ErrSelfSteal         = errors.New("cannot steal your own scenario")
	ErrScenarioShielded  = errors.New("scenario is shielded")
	ErrStealRaceLost     = errors.New("steal race lost")
	ErrNotHolder         = errors.New("not the scenario holder")
	ErrScenarioNotFound  = errors.New("scenario not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrScenarioNotActive = errors.New("scenario is not active")
	ErrStealCooldown     = errors.New("scenario was stolen too recently")
	ErrAlreadyPredicted  = errors.New("prediction already placed")
	ErrInvalidShieldTier = errors.New("invalid shield tier")
	ErrInvalidSide       = errors.New("invalid prediction side")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
)

// InvalidAmountError reports a non-positive amount
type InvalidAmountError struct {
	Amount int64
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("amount must be positive, got %d", e.Amount)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// InsufficientFundsError reports how many coins the user was short
type InsufficientFundsError struct {
	UserID   uuid.UUID
	Balance  int64
	Required int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: have %d, need %d (short %d)", e.Balance, e.Required, e.Shortfall())
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// Shortfall returns the missing amount
func (e *InsufficientFundsError) Shortfall() int64 {
	return e.Required - e.Balance
}

// OwnershipMismatchError reports a failed holder compare-and-swap
type OwnershipMismatchError struct {
	ScenarioID uuid.UUID
	Expected   uuid.UUID
	Actual     uuid.UUID
}

func (e *OwnershipMismatchError) Error() string {
	return fmt.Sprintf("scenario %s is held by %s, not %s", e.ScenarioID, e.Actual, e.Expected)
}

func (e *OwnershipMismatchError) Unwrap() error { return ErrOwnershipMismatch }

// ScenarioShieldedError reports the active shield blocking a steal
type ScenarioShieldedError struct {
	ScenarioID     uuid.UUID
	Tier           entities.ShieldTier
	ProtectedUntil time.Time
	Remaining      time.Duration
}

func (e *ScenarioShieldedError) Error() string {
	return fmt.Sprintf("scenario is protected by a %s shield for another %s", e.Tier, e.Remaining.Round(time.Second))
}

func (e *ScenarioShieldedError) Unwrap() error { return ErrScenarioShielded }

// StealCooldownError reports the remaining cooldown after a recent steal
type StealCooldownError struct {
	ScenarioID uuid.UUID
	Remaining  time.Duration
}

func (e *StealCooldownError) Error() string {
	return fmt.Sprintf("scenario can be stolen again in %s", e.Remaining.Round(time.Second))
}

func (e *StealCooldownError) Unwrap() error { return ErrStealCooldown }

// StealRaceLostError reports that a concurrent steal committed first and the
// attempted debit was refunded
type StealRaceLostError struct {
	ScenarioID uuid.UUID
	Refunded   int64
	HolderID   uuid.UUID
}

func (e *StealRaceLostError) Error() string {
	return fmt.Sprintf("another steal completed first; %d coins were refunded", e.Refunded)
}

func (e *StealRaceLostError) Unwrap() error { return ErrStealRaceLost }

// NotHolderError reports a holder-only action attempted by someone else
type NotHolderError struct {
	ScenarioID uuid.UUID
	UserID     uuid.UUID
	HolderID   uuid.UUID
}

func (e *NotHolderError) Error() string {
	return fmt.Sprintf("user %s does not hold scenario %s", e.UserID, e.ScenarioID)
}

func (e *NotHolderError) Unwrap() error { return ErrNotHolder }

// ScenarioNotFoundError reports an unknown scenario
type ScenarioNotFoundError struct {
	ScenarioID uuid.UUID
}

func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario %s not found", e.ScenarioID)
}

func (e *ScenarioNotFoundError) Unwrap() error { return ErrScenarioNotFound }

// UserNotFoundError reports an unknown user
type UserNotFoundError struct {
	UserID uuid.UUID
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user %s not found", e.UserID)
}

func (e *UserNotFoundError) Unwrap() error { return ErrUserNotFound }

// ScenarioNotActiveError reports an action on a resolved or cancelled scenario
type ScenarioNotActiveError struct {
	ScenarioID uuid.UUID
	Status     entities.ScenarioStatus
}

func (e *ScenarioNotActiveError) Error() string {
	return fmt.Sprintf("scenario %s is %s", e.ScenarioID, e.Status)
}

func (e *ScenarioNotActiveError) Unwrap() error { return ErrScenarioNotActive }
