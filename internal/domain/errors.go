package domain

import "errors"

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConflict            = errors.New("conflict")
	ErrIdempotencyRequired = errors.New("idempotency key required")
	ErrIdempotencyConflict = errors.New("idempotency conflict")
	ErrVersionConflict     = errors.New("version conflict")

	// Distribution planner / contribution ledger.
	ErrInvalidDistributionConfig = errors.New("invalid distribution config")
	ErrEventNotOpen              = errors.New("event not open")
	ErrEventLocked               = errors.New("event locked")
	ErrOverContribution          = errors.New("contribution exceeds required share")
	ErrContributionConflict      = errors.New("contribution conflict")
	ErrBudgetExceeded            = errors.New("captured contributions exceed event budget")

	// Escrow account.
	ErrAlreadyHeld        = errors.New("escrow already held")
	ErrEscrowNotHeld      = errors.New("escrow not held")
	ErrEscrowClosed       = errors.New("escrow closed")
	ErrInsufficientEscrow = errors.New("insufficient escrow balance")
	ErrDisputeOpen        = errors.New("dispute open")

	// Order lifecycle.
	ErrOrderClosed       = errors.New("order closed")
	ErrInvalidTransition = errors.New("invalid order transition")

	// Dispute workflow.
	ErrDisputeWindowExpired   = errors.New("dispute window expired")
	ErrEvidenceRequired       = errors.New("evidence required")
	ErrDisputeAlreadyResolved = errors.New("dispute already resolved")

	// External collaborators.
	ErrPaymentCaptureFailed   = errors.New("payment capture failed")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	ErrUnsupportedEventType   = errors.New("unsupported event type")

	// ErrInvariantViolation marks escrow accounting gone negative or a budget
	// check failing after validation. It is a fault, not a user error: the
	// affected entity must stop processing and the error must reach alerting.
	ErrInvariantViolation = errors.New("invariant violation")
)
