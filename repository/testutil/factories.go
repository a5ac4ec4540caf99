package testutil

import (
	"time"

	"apocaliptyx/domain/entities"

	"github.com/google/uuid"
)

// CreateTestUser builds a user with a fresh ID
func CreateTestUser(username string, balance int64) *entities.User {
	now := time.Now()
	return &entities.User{
		ID:        uuid.New(),
		Username:  username,
		Balance:   balance,
		Level:     1,
		Role:      entities.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateTestScenario builds an active scenario owned by creatorID
func CreateTestScenario(creatorID uuid.UUID, title string) *entities.Scenario {
	return &entities.Scenario{
		ID:        uuid.New(),
		CreatorID: creatorID,
		Title:     title,
		Status:    entities.ScenarioStatusActive,
	}
}

// CreateTestPrediction builds a prediction on a scenario
func CreateTestPrediction(scenarioID, userID uuid.UUID, side entities.Side, amount int64) *entities.Prediction {
	return &entities.Prediction{
		ScenarioID: scenarioID,
		UserID:     userID,
		Side:       side,
		Amount:     amount,
	}
}

// CreateTestTransaction builds a ledger entry consistent with the given balances
func CreateTestTransaction(userID uuid.UUID, txType entities.TransactionType, before, amount int64) *entities.Transaction {
	return &entities.Transaction{
		UserID:        userID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  before + amount,
		Metadata:      map[string]any{"test": true},
	}
}
