package scenarios

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"apocaliptyx/application"
	"apocaliptyx/domain/entities"
	"apocaliptyx/domain/services"
	"apocaliptyx/infrastructure/observability"
	"apocaliptyx/server/common"
	"apocaliptyx/server/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ScenarioService is the scenario behaviour the handlers need
type ScenarioService interface {
	CreateScenario(ctx context.Context, creatorID uuid.UUID, title, description string) (*entities.Scenario, error)
	GetScenario(ctx context.Context, id uuid.UUID) (*entities.Scenario, error)
	ListActive(ctx context.Context, limit int) ([]*entities.Scenario, error)
	PlacePrediction(ctx context.Context, userID, scenarioID uuid.UUID, side entities.Side, amount int64) (*entities.Prediction, *entities.PoolSnapshot, error)
	RecalculatePools(ctx context.Context, scenarioID uuid.UUID, trigger string) (*entities.PoolSnapshot, error)
}

// StealService is the steal and shield behaviour the handlers need
type StealService interface {
	Quote(ctx context.Context, scenarioID, thiefID uuid.UUID) (*services.StealQuote, error)
	AttemptSteal(ctx context.Context, scenarioID, thiefID uuid.UUID) (*application.StealResult, error)
	ApplyShield(ctx context.Context, scenarioID, userID uuid.UUID, tier entities.ShieldTier) (*entities.Shield, error)
}

var (
	_ ScenarioService = (*application.ScenarioService)(nil)
	_ StealService    = (*application.StealEngine)(nil)
)

// Feature serves scenarios, predictions, steals and shields
type Feature struct {
	scenarios ScenarioService
	steals    StealService
	limiter   func(http.Handler) http.Handler
}

// NewFeature creates the scenarios feature. limiter guards the coin-moving
// endpoints and may be nil.
func NewFeature(scenarios ScenarioService, steals StealService, limiter func(http.Handler) http.Handler) *Feature {
	if limiter == nil {
		limiter = func(next http.Handler) http.Handler { return next }
	}
	return &Feature{scenarios: scenarios, steals: steals, limiter: limiter}
}

// Routes mounts the feature under /scenarios
func (f *Feature) Routes(r chi.Router) {
	r.Route("/scenarios", func(r chi.Router) {
		r.Get("/", f.handleList)
		r.With(f.limiter).Post("/", f.handleCreate)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", f.handleGet)
			r.Get("/steal-quote", f.handleQuote)

			r.Group(func(r chi.Router) {
				r.Use(f.limiter)
				r.Post("/predictions", f.handlePredict)
				r.Post("/steal", f.handleSteal)
				r.Post("/shield", f.handleShield)
			})

			r.With(middleware.RequireRole(entities.Role.CanModerate)).Post("/recalculate", f.handleRecalculate)
		})
	})
}

type createRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type predictionRequest struct {
	Side   string `json:"side"`
	Amount int64  `json:"amount"`
}

type predictionResponse struct {
	Prediction *entities.Prediction   `json:"prediction"`
	Pools      *entities.PoolSnapshot `json:"pools"`
}

type shieldRequest struct {
	Tier string `json:"tier"`
}

type quoteResponse struct {
	ScenarioID               uuid.UUID            `json:"scenario_id"`
	HolderID                 uuid.UUID            `json:"holder_id"`
	Cost                     int64                `json:"cost"`
	Compensation             int64                `json:"compensation"`
	StealCount               int                  `json:"steal_count"`
	ShieldTier               *entities.ShieldTier `json:"shield_tier,omitempty"`
	ShieldRemainingSeconds   int64                `json:"shield_remaining_seconds"`
	CooldownRemainingSeconds int64                `json:"cooldown_remaining_seconds"`
	Allowed                  bool                 `json:"allowed"`
	BlockedBy                string               `json:"blocked_by,omitempty"`
	BlockedMessage           string               `json:"blocked_message,omitempty"`
}

func (f *Feature) handleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		common.HandleError(w, r, err)
		return
	}

	scenarios, err := f.scenarios.ListActive(r.Context(), limit)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}
	if scenarios == nil {
		scenarios = []*entities.Scenario{}
	}
	common.WriteJSON(w, http.StatusOK, scenarios)
}

func (f *Feature) handleCreate(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())

	var req createRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		common.HandleError(w, r, err)
		return
	}

	scenario, err := f.scenarios.CreateScenario(r.Context(), principal.UserID, req.Title, req.Description)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, scenario)
}

func (f *Feature) handleGet(w http.ResponseWriter, r *http.Request) {
	scenarioID, err := pathID(r)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}

	scenario, err := f.scenarios.GetScenario(r.Context(), scenarioID)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, scenario)
}

func (f *Feature) handlePredict(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	scenarioID, err := pathID(r)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}

	var req predictionRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		common.HandleError(w, r, err)
		return
	}

	prediction, pools, err := f.scenarios.PlacePrediction(r.Context(), principal.UserID, scenarioID, entities.Side(strings.ToUpper(req.Side)), req.Amount)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, predictionResponse{Prediction: prediction, Pools: pools})
}

func (f *Feature) handleQuote(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	scenarioID, err := pathID(r)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}

	quote, err := f.steals.Quote(r.Context(), scenarioID, principal.UserID)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}

	resp := quoteResponse{
		ScenarioID:               quote.ScenarioID,
		HolderID:                 quote.HolderID,
		Cost:                     quote.Cost,
		Compensation:             quote.Compensation,
		StealCount:               quote.StealCount,
		ShieldRemainingSeconds:   ceilSeconds(quote.ShieldRemaining),
		CooldownRemainingSeconds: ceilSeconds(quote.CooldownRemaining),
		Allowed:                  quote.Allowed(),
	}
	if quote.Shield != nil {
		tier := quote.Shield.Tier
		resp.ShieldTier = &tier
	}
	if !quote.Allowed() {
		blocker := common.FromError(quote.Blocker)
		resp.BlockedBy = blocker.Code
		resp.BlockedMessage = blocker.Message
	}
	common.WriteJSON(w, http.StatusOK, resp)
}

func (f *Feature) handleSteal(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	scenarioID, err := pathID(r)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}

	result, err := f.steals.AttemptSteal(r.Context(), scenarioID, principal.UserID)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, result)
}

func (f *Feature) handleShield(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	scenarioID, err := pathID(r)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}

	var req shieldRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		common.HandleError(w, r, err)
		return
	}
	tier, err := entities.ParseShieldTier(strings.ToLower(req.Tier))
	if err != nil {
		common.HandleError(w, r, services.ErrInvalidShieldTier)
		return
	}

	shield, err := f.steals.ApplyShield(r.Context(), scenarioID, principal.UserID, tier)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, shield)
}

func (f *Feature) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	scenarioID, err := pathID(r)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}

	pools, err := f.scenarios.RecalculatePools(r.Context(), scenarioID, observability.RecalcTriggerManual)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, pools)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, common.NewUserError(http.StatusBadRequest, "invalid_id", "Scenario id must be a UUID")
	}
	return id, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, common.NewUserError(http.StatusBadRequest, "invalid_"+key, key+" must be an integer")
	}
	return value, nil
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
