package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/makersrow/escrow-engine/internal/contracts"
	"github.com/makersrow/escrow-engine/internal/domain"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	writeJSON(w, statusCode, contracts.SuccessResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message, requestID string) {
	writeJSON(w, statusCode, contracts.ErrorResponse{
		Status: "error",
		Error: contracts.ErrorPayload{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	})
}

func mapDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrInvalidDistributionConfig):
		return http.StatusBadRequest, "invalid_distribution_config"
	case errors.Is(err, domain.ErrEvidenceRequired):
		return http.StatusBadRequest, "evidence_required"
	case errors.Is(err, domain.ErrIdempotencyRequired):
		return http.StatusBadRequest, "idempotency_key_required"
	case errors.Is(err, domain.ErrIdempotencyConflict):
		return http.StatusConflict, "idempotency_conflict"
	case errors.Is(err, domain.ErrContributionConflict):
		return http.StatusConflict, "contribution_conflict"
	case errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict, "version_conflict"
	case errors.Is(err, domain.ErrEventNotOpen):
		return http.StatusConflict, "event_not_open"
	case errors.Is(err, domain.ErrEventLocked):
		return http.StatusConflict, "event_locked"
	case errors.Is(err, domain.ErrOverContribution):
		return http.StatusUnprocessableEntity, "over_contribution"
	case errors.Is(err, domain.ErrBudgetExceeded):
		return http.StatusUnprocessableEntity, "budget_exceeded"
	case errors.Is(err, domain.ErrAlreadyHeld):
		return http.StatusConflict, "escrow_already_held"
	case errors.Is(err, domain.ErrEscrowNotHeld):
		return http.StatusConflict, "escrow_not_held"
	case errors.Is(err, domain.ErrEscrowClosed):
		return http.StatusConflict, "escrow_closed"
	case errors.Is(err, domain.ErrInsufficientEscrow):
		return http.StatusUnprocessableEntity, "insufficient_escrow"
	case errors.Is(err, domain.ErrDisputeOpen):
		return http.StatusConflict, "dispute_open"
	case errors.Is(err, domain.ErrDisputeAlreadyResolved):
		return http.StatusConflict, "dispute_already_resolved"
	case errors.Is(err, domain.ErrDisputeWindowExpired):
		return http.StatusConflict, "dispute_window_expired"
	case errors.Is(err, domain.ErrOrderClosed):
		return http.StatusConflict, "order_closed"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrPaymentCaptureFailed):
		return http.StatusBadGateway, "payment_capture_failed"
	case errors.Is(err, domain.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable, "persistence_unavailable"
	case errors.Is(err, domain.ErrInvariantViolation):
		return http.StatusInternalServerError, "invariant_violation"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
