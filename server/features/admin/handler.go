package admin

import (
	"context"
	"net/http"

	"apocaliptyx/application"
	"apocaliptyx/domain/entities"
	"apocaliptyx/server/common"
	"apocaliptyx/server/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Service is the administrative wallet behaviour the handlers need
type Service interface {
	AdminAdjust(ctx context.Context, actor application.Actor, targetID uuid.UUID, amount int64, reason string) (*entities.Transaction, error)
	Reconcile(ctx context.Context, userID uuid.UUID) (*application.ReconcileReport, error)
}

var _ Service = (*application.WalletService)(nil)

// Feature serves balance administration
type Feature struct {
	wallet Service
}

// NewFeature creates the admin feature
func NewFeature(wallet Service) *Feature {
	return &Feature{wallet: wallet}
}

// Routes mounts the feature under /admin, restricted to balance administrators
func (f *Feature) Routes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireRole(entities.Role.CanAdjustBalances))
		r.Post("/users/{id}/adjust", f.handleAdjust)
		r.Get("/users/{id}/reconcile", f.handleReconcile)
	})
}

type adjustRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

func (f *Feature) handleAdjust(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	targetID, err := userID(r)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}

	var req adjustRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		common.HandleError(w, r, err)
		return
	}
	if req.Reason == "" {
		common.HandleError(w, r, common.NewUserError(http.StatusBadRequest, "invalid_input", "reason is required"))
		return
	}

	actor := application.Actor{UserID: principal.UserID, Role: principal.Role}
	tx, err := f.wallet.AdminAdjust(r.Context(), actor, targetID, req.Amount, req.Reason)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, tx)
}

func (f *Feature) handleReconcile(w http.ResponseWriter, r *http.Request) {
	targetID, err := userID(r)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}

	report, err := f.wallet.Reconcile(r.Context(), targetID)
	if err != nil {
		common.HandleError(w, r, err)
		return
	}
	if !report.Consistent {
		log.WithFields(log.Fields{
			"userID": targetID,
			"drift":  report.Drift,
		}).Warn("Reconcile requested for drifted account")
	}
	common.WriteJSON(w, http.StatusOK, report)
}

func userID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, common.NewUserError(http.StatusBadRequest, "invalid_id", "User id must be a UUID")
	}
	return id, nil
}
