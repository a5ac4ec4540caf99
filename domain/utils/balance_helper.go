package utils

import (
	"context"
	"fmt"

	"apocaliptyx/domain/entities"
	"apocaliptyx/domain/events"
	"apocaliptyx/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// RecordBalanceChange appends a ledger entry and emits the matching events.
// Every balance mutation in the system goes through here.
func RecordBalanceChange(ctx context.Context, txRepo interfaces.TransactionRepository, eventPublisher interfaces.EventPublisher, tx *entities.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("invalid ledger entry for user %s: %w", tx.UserID, err)
	}

	if err := txRepo.Record(ctx, tx); err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}

	event := events.BalanceChangeEvent{
		UserID:          tx.UserID,
		OldBalance:      tx.BalanceBefore,
		NewBalance:      tx.BalanceAfter,
		TransactionType: tx.Type,
		ChangeAmount:    tx.Amount,
		TransactionID:   tx.ID,
		ScenarioID:      tx.ScenarioID,
	}
	log.WithFields(log.Fields{
		"userID":          event.UserID,
		"oldBalance":      event.OldBalance,
		"newBalance":      event.NewBalance,
		"transactionType": event.TransactionType,
		"changeAmount":    event.ChangeAmount,
	}).Debug("Publishing BalanceChangeEvent")
	if err := eventPublisher.Publish(event); err != nil {
		log.WithError(err).Error("Failed to publish balance change event")
	}

	if tx.Type == entities.TransactionTypeInitial {
		if username, ok := tx.Metadata["username"].(string); ok {
			created := events.UserCreatedEvent{
				UserID:         tx.UserID,
				Username:       username,
				InitialBalance: tx.BalanceAfter,
			}
			if err := eventPublisher.Publish(created); err != nil {
				log.WithError(err).Error("Failed to publish user created event")
			}
		}
	}

	return nil
}
