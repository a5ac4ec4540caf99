package services

import (
	"context"
	"fmt"

	"apocaliptyx/domain/entities"
	"apocaliptyx/domain/events"
	"apocaliptyx/domain/interfaces"
	"apocaliptyx/domain/utils"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type userService struct {
	userRepo        interfaces.UserRepository
	txRepo          interfaces.TransactionRepository
	eventPublisher  interfaces.EventPublisher
	startingBalance int64
}

// NewUserService creates a new user service
func NewUserService(
	userRepo interfaces.UserRepository,
	txRepo interfaces.TransactionRepository,
	eventPublisher interfaces.EventPublisher,
	startingBalance int64,
) interfaces.UserService {
	return &userService{
		userRepo:        userRepo,
		txRepo:          txRepo,
		eventPublisher:  eventPublisher,
		startingBalance: startingBalance,
	}
}

// GetOrCreateUser returns the user, registering it with the starting balance
// on first sight
func (s *userService) GetOrCreateUser(ctx context.Context, userID uuid.UUID, username string) (*entities.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	if username == "" {
		username = "user-" + userID.String()[:8]
	}

	user = &entities.User{
		ID:       userID,
		Username: username,
		Balance:  s.startingBalance,
		Level:    1,
		Role:     entities.RoleUser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if s.startingBalance > 0 {
		// The INITIAL entry keeps the ledger sum equal to the balance
		initial := &entities.Transaction{
			UserID:        userID,
			Type:          entities.TransactionTypeInitial,
			Amount:        s.startingBalance,
			BalanceBefore: 0,
			BalanceAfter:  s.startingBalance,
			Metadata:      map[string]any{"username": username},
		}
		if err := utils.RecordBalanceChange(ctx, s.txRepo, s.eventPublisher, initial); err != nil {
			return nil, err
		}
	} else if err := s.eventPublisher.Publish(events.UserCreatedEvent{UserID: userID, Username: username}); err != nil {
		log.WithError(err).Error("Failed to publish user created event")
	}

	log.WithFields(log.Fields{
		"userID":   userID,
		"username": username,
		"balance":  s.startingBalance,
	}).Info("Registered new user")

	return user, nil
}

// GetUser returns an existing user
func (s *userService) GetUser(ctx context.Context, userID uuid.UUID) (*entities.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, &UserNotFoundError{UserID: userID}
	}
	return user, nil
}
