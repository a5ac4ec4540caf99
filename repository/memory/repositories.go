package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"apocaliptyx/domain/entities"

	"github.com/google/uuid"
)

type userRepository struct {
	store *Store
}

func (r *userRepository) GetByID(_ context.Context, id uuid.UUID) (*entities.User, error) {
	user, ok := r.store.state.users[id]
	if !ok {
		return nil, nil
	}
	clone := *user
	return &clone, nil
}

func (r *userRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	return r.GetByID(ctx, id)
}

func (r *userRepository) Create(_ context.Context, user *entities.User) error {
	st := r.store.state
	if _, exists := st.users[user.ID]; exists {
		return fmt.Errorf("failed to create user %s: duplicate id", user.ID)
	}
	for _, existing := range st.users {
		if existing.Username == user.Username {
			return fmt.Errorf("failed to create user %s: username %q taken", user.ID, user.Username)
		}
	}
	if user.Balance < 0 {
		return fmt.Errorf("failed to create user %s: negative balance", user.ID)
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	clone := *user
	st.users[user.ID] = &clone
	return nil
}

func (r *userRepository) UpdateBalance(_ context.Context, id uuid.UUID, newBalance int64) error {
	user, ok := r.store.state.users[id]
	if !ok {
		return fmt.Errorf("user %s not found", id)
	}
	if newBalance < 0 {
		return fmt.Errorf("failed to update balance for user %s: negative balance", id)
	}
	clone := *user
	clone.Balance = newBalance
	clone.UpdatedAt = time.Now().UTC()
	r.store.state.users[id] = &clone
	return nil
}

type transactionRepository struct {
	store *Store
}

func (r *transactionRepository) Record(_ context.Context, tx *entities.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("failed to record transaction for user %s: %w", tx.UserID, err)
	}
	st := r.store.state
	if _, ok := st.users[tx.UserID]; !ok {
		return fmt.Errorf("failed to record transaction: user %s not found", tx.UserID)
	}

	st.nextTxID++
	tx.ID = st.nextTxID
	tx.CreatedAt = time.Now().UTC()
	st.transactions = append(st.transactions, cloneTransaction(tx))
	return nil
}

func (r *transactionRepository) GetByUser(_ context.Context, userID uuid.UUID, limit int) ([]*entities.Transaction, error) {
	var result []*entities.Transaction
	txs := r.store.state.transactions
	for i := len(txs) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		if txs[i].UserID == userID {
			result = append(result, cloneTransaction(txs[i]))
		}
	}
	return result, nil
}

func (r *transactionRepository) GetByScenario(_ context.Context, scenarioID uuid.UUID) ([]*entities.Transaction, error) {
	var result []*entities.Transaction
	for _, tx := range r.store.state.transactions {
		if tx.ScenarioID != nil && *tx.ScenarioID == scenarioID {
			result = append(result, cloneTransaction(tx))
		}
	}
	return result, nil
}

func (r *transactionRepository) SumByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	for _, tx := range r.store.state.transactions {
		if tx.UserID == userID {
			sum += tx.Amount
		}
	}
	return sum, nil
}

func cloneTransaction(tx *entities.Transaction) *entities.Transaction {
	clone := *tx
	clone.Metadata = maps.Clone(tx.Metadata)
	if tx.ScenarioID != nil {
		id := *tx.ScenarioID
		clone.ScenarioID = &id
	}
	return &clone
}

type scenarioRepository struct {
	store *Store
}

func (r *scenarioRepository) Create(_ context.Context, scenario *entities.Scenario) error {
	st := r.store.state
	if _, exists := st.scenarios[scenario.ID]; exists {
		return fmt.Errorf("failed to create scenario: duplicate id %s", scenario.ID)
	}
	if _, ok := st.users[scenario.CreatorID]; !ok {
		return fmt.Errorf("failed to create scenario: creator %s not found", scenario.CreatorID)
	}
	if scenario.Status == "" {
		scenario.Status = entities.ScenarioStatusActive
	}

	now := time.Now().UTC()
	scenario.CreatedAt = now
	scenario.UpdatedAt = now
	scenario.ApplyPools(entities.PoolSnapshot{})
	scenario.StealCount = 0
	scenario.LastStolenAt = nil
	st.scenarios[scenario.ID] = cloneScenario(scenario)
	return nil
}

func (r *scenarioRepository) GetByID(_ context.Context, id uuid.UUID) (*entities.Scenario, error) {
	scenario, ok := r.store.state.scenarios[id]
	if !ok {
		return nil, nil
	}
	return cloneScenario(scenario), nil
}

func (r *scenarioRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Scenario, error) {
	return r.GetByID(ctx, id)
}

func (r *scenarioRepository) ListByStatus(_ context.Context, status entities.ScenarioStatus, limit int) ([]*entities.Scenario, error) {
	var result []*entities.Scenario
	for _, s := range r.store.state.scenarios {
		if s.Status == status {
			result = append(result, cloneScenario(s))
		}
	}
	slices.SortFunc(result, func(a, b *entities.Scenario) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *scenarioRepository) CompareAndSwapHolder(_ context.Context, id, expected, next uuid.UUID, at time.Time) (bool, error) {
	scenario, ok := r.store.state.scenarios[id]
	if !ok || !scenario.IsActive() || scenario.CurrentHolder() != expected {
		return false, nil
	}

	clone := cloneScenario(scenario)
	holder := next
	stolenAt := at
	clone.HolderID = &holder
	clone.StealCount++
	clone.LastStolenAt = &stolenAt
	clone.UpdatedAt = time.Now().UTC()
	r.store.state.scenarios[id] = clone
	return true, nil
}

func (r *scenarioRepository) UpdatePools(_ context.Context, id uuid.UUID, pools entities.PoolSnapshot) error {
	scenario, ok := r.store.state.scenarios[id]
	if !ok {
		return fmt.Errorf("scenario %s not found", id)
	}
	clone := cloneScenario(scenario)
	pools.TotalPool = pools.YesPool + pools.NoPool
	clone.ApplyPools(pools)
	clone.UpdatedAt = time.Now().UTC()
	r.store.state.scenarios[id] = clone
	return nil
}

func cloneScenario(s *entities.Scenario) *entities.Scenario {
	clone := *s
	if s.HolderID != nil {
		id := *s.HolderID
		clone.HolderID = &id
	}
	if s.LastStolenAt != nil {
		at := *s.LastStolenAt
		clone.LastStolenAt = &at
	}
	if s.Outcome != nil {
		outcome := *s.Outcome
		clone.Outcome = &outcome
	}
	return &clone
}

type predictionRepository struct {
	store *Store
}

func (r *predictionRepository) Create(_ context.Context, prediction *entities.Prediction) error {
	st := r.store.state
	if _, ok := st.scenarios[prediction.ScenarioID]; !ok {
		return fmt.Errorf("failed to create prediction: scenario %s not found", prediction.ScenarioID)
	}
	for _, p := range st.predictions {
		if p.ScenarioID == prediction.ScenarioID && p.UserID == prediction.UserID {
			return fmt.Errorf("failed to create prediction: user %s already predicted", prediction.UserID)
		}
	}
	if prediction.Amount < 0 {
		return fmt.Errorf("failed to create prediction: negative amount")
	}

	st.nextPredID++
	prediction.ID = st.nextPredID
	prediction.CreatedAt = time.Now().UTC()
	clone := *prediction
	st.predictions = append(st.predictions, &clone)
	return nil
}

func (r *predictionRepository) GetByScenario(_ context.Context, scenarioID uuid.UUID) ([]*entities.Prediction, error) {
	var result []*entities.Prediction
	for _, p := range r.store.state.predictions {
		if p.ScenarioID == scenarioID {
			clone := *p
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (r *predictionRepository) GetByScenarioAndUser(_ context.Context, scenarioID, userID uuid.UUID) (*entities.Prediction, error) {
	for _, p := range r.store.state.predictions {
		if p.ScenarioID == scenarioID && p.UserID == userID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, nil
}

type shieldRepository struct {
	store *Store
}

func (r *shieldRepository) GetByScenario(_ context.Context, scenarioID uuid.UUID) (*entities.Shield, error) {
	shield, ok := r.store.state.shields[scenarioID]
	if !ok {
		return nil, nil
	}
	clone := *shield
	return &clone, nil
}

func (r *shieldRepository) Upsert(_ context.Context, shield *entities.Shield) error {
	if _, ok := r.store.state.scenarios[shield.ScenarioID]; !ok {
		return fmt.Errorf("failed to upsert shield: scenario %s not found", shield.ScenarioID)
	}
	shield.CreatedAt = time.Now().UTC()
	clone := *shield
	r.store.state.shields[shield.ScenarioID] = &clone
	return nil
}
