package wallet

import (
	"context"
	"net/http"
	"strconv"

	"apocaliptyx/application"
	"apocaliptyx/domain/entities"
	"apocaliptyx/server/common"
	"apocaliptyx/server/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Service is the wallet behaviour the handlers need
type Service interface {
	RegisterUser(ctx context.Context, userID uuid.UUID, username string) (*entities.User, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	GetHistory(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.Transaction, error)
}

// Feature serves the caller's own account
type Feature struct {
	wallet Service
}

// NewFeature creates the wallet feature
func NewFeature(wallet Service) *Feature {
	return &Feature{wallet: wallet}
}

var _ Service = (*application.WalletService)(nil)

// Routes mounts the feature under /users/me
func (f *Feature) Routes(r chi.Router) {
	r.Route("/users/me", func(r chi.Router) {
		r.Post("/", f.handleRegister)
		r.Get("/balance", f.handleBalance)
		r.Get("/transactions", f.handleTransactions)
	})
}

type registerRequest struct {
	Username string `json:"username"`
}

type balanceResponse struct {
	UserID  uuid.UUID `json:"user_id"`
	Balance int64     `json:"balance"`
}

func (f *Feature) handleRegister(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())

	var req registerRequest
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(w, r, &req); err != nil {
			common.HandleError(w, r, err)
			return
		}
	}
	if req.Username == "" {
		req.Username = principal.Username
	}

	user, err := f.wallet.RegisterUser(r.Context(), principal.UserID, req.Username)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, user)
}

func (f *Feature) handleBalance(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())

	balance, err := f.wallet.GetBalance(r.Context(), principal.UserID)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, balanceResponse{UserID: principal.UserID, Balance: balance})
}

func (f *Feature) handleTransactions(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			common.HandleError(w, r, common.NewUserError(http.StatusBadRequest, "invalid_limit", "limit must be an integer"))
			return
		}
		limit = parsed
	}

	history, err := f.wallet.GetHistory(r.Context(), principal.UserID, limit)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}
	if history == nil {
		history = []*entities.Transaction{}
	}
	common.WriteJSON(w, http.StatusOK, history)
}
