package application

import (
	"context"

	"apocaliptyx/domain/entities"

	"github.com/google/uuid"
)

// ScenarioReadCache is the optional read model in front of the scenario table
type ScenarioReadCache interface {
	Get(ctx context.Context, id uuid.UUID) (*entities.Scenario, bool)
	Set(ctx context.Context, scenario *entities.Scenario)
	Invalidate(ctx context.Context, id uuid.UUID)
}

// Actor is the authenticated caller of an administrative operation
type Actor struct {
	UserID uuid.UUID
	Role   entities.Role
}
