package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Side is the outcome a prediction backs
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// ParseSide converts user input into a Side
func ParseSide(s string) (Side, error) {
	side := Side(s)
	switch side {
	case SideYes, SideNo:
		return side, nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

// Prediction is a user's position on one side of a scenario
type Prediction struct {
	ID         int64     `db:"id" json:"id"`
	ScenarioID uuid.UUID `db:"scenario_id" json:"scenario_id"`
	UserID     uuid.UUID `db:"user_id" json:"user_id"`
	Side       Side      `db:"side" json:"side"`
	Amount     int64     `db:"amount" json:"amount"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
