package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"apocaliptyx/domain/services"

	log "github.com/sirupsen/logrus"
)

// APIError represents a structured error with a client-facing and an internal message
type APIError struct {
	Status  int            // HTTP status code
	Code    string         // Stable machine-readable code
	Message string         // Message shown to the client
	Details map[string]any // Actionable values such as remaining seconds
	Err     error          // Underlying error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

// Unwrap returns the underlying error
func (e *APIError) Unwrap() error {
	return e.Err
}

// NewUserError creates an error for client-caused issues (validation, bad JSON, etc)
func NewUserError(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// NewSystemError creates an error for system issues (database, unexpected state, etc)
func NewSystemError(err error) *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "Something went wrong. Please try again later.",
		Err:     err,
	}
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// FromError maps domain errors onto HTTP errors. Unknown errors become 500s.
func FromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	mapped := &APIError{Message: err.Error(), Err: err}

	var (
		insufficient *services.InsufficientFundsError
		shielded     *services.ScenarioShieldedError
		cooldown     *services.StealCooldownError
		raceLost     *services.StealRaceLostError
		mismatch     *services.OwnershipMismatchError
		notHolder    *services.NotHolderError
	)

	switch {
	case errors.As(err, &insufficient):
		mapped.Status, mapped.Code = http.StatusPaymentRequired, "insufficient_funds"
		mapped.Details = map[string]any{
			"balance":   insufficient.Balance,
			"required":  insufficient.Required,
			"shortfall": insufficient.Shortfall(),
		}
	case errors.As(err, &shielded):
		mapped.Status, mapped.Code = http.StatusLocked, "scenario_shielded"
		mapped.Details = map[string]any{
			"tier":              shielded.Tier,
			"protected_until":   shielded.ProtectedUntil,
			"remaining_seconds": seconds(shielded.Remaining),
		}
	case errors.As(err, &cooldown):
		mapped.Status, mapped.Code = http.StatusLocked, "steal_cooldown"
		mapped.Details = map[string]any{"remaining_seconds": seconds(cooldown.Remaining)}
	case errors.As(err, &raceLost):
		mapped.Status, mapped.Code = http.StatusConflict, "steal_race_lost"
		mapped.Details = map[string]any{
			"refunded":  raceLost.Refunded,
			"holder_id": raceLost.HolderID,
		}
	case errors.As(err, &mismatch):
		mapped.Status, mapped.Code = http.StatusConflict, "ownership_mismatch"
		mapped.Details = map[string]any{"holder_id": mismatch.Actual}
	case errors.As(err, &notHolder):
		mapped.Status, mapped.Code = http.StatusForbidden, "not_holder"
		mapped.Details = map[string]any{"holder_id": notHolder.HolderID}
	case errors.Is(err, services.ErrForbidden):
		mapped.Status, mapped.Code = http.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrSelfSteal):
		mapped.Status, mapped.Code = http.StatusConflict, "self_steal"
	case errors.Is(err, services.ErrAlreadyPredicted):
		mapped.Status, mapped.Code = http.StatusConflict, "already_predicted"
	case errors.Is(err, services.ErrScenarioNotActive):
		mapped.Status, mapped.Code = http.StatusConflict, "scenario_not_active"
	case errors.Is(err, services.ErrScenarioNotFound):
		mapped.Status, mapped.Code = http.StatusNotFound, "scenario_not_found"
	case errors.Is(err, services.ErrUserNotFound):
		mapped.Status, mapped.Code = http.StatusNotFound, "user_not_found"
	case errors.Is(err, services.ErrInvalidAmount):
		mapped.Status, mapped.Code = http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, services.ErrInvalidSide):
		mapped.Status, mapped.Code = http.StatusBadRequest, "invalid_side"
	case errors.Is(err, services.ErrInvalidShieldTier):
		mapped.Status, mapped.Code = http.StatusBadRequest, "invalid_shield_tier"
	case errors.Is(err, services.ErrInvalidInput):
		mapped.Status, mapped.Code = http.StatusBadRequest, "invalid_input"
	default:
		return NewSystemError(err)
	}
	return mapped
}

// HandleError logs err and writes the matching JSON error response
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := FromError(err)

	fields := log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": apiErr.Status,
		"code":   apiErr.Code,
	}
	if apiErr.Err != nil {
		fields["error"] = apiErr.Err.Error()
	}
	if apiErr.Status >= http.StatusInternalServerError {
		log.WithFields(fields).Error("Unexpected error in request")
	} else {
		log.WithFields(fields).Debug("Request rejected")
	}

	WriteJSON(w, apiErr.Status, errorBody{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	})
}

// WriteJSON writes v with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

// DecodeJSON reads a JSON request body into v
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return NewUserError(http.StatusBadRequest, "invalid_body", "Request body is not valid JSON: "+err.Error())
	}
	return nil
}

func seconds(d time.Duration) int64 {
	return int64(math.Ceil(d.Seconds()))
}
