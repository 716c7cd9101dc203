package ports

import (
	"context"
	"time"

	"github.com/makersrow/escrow-engine/internal/domain"
)

// Repositories persist one aggregate each. Update calls are compare-and-swap
// on the aggregate's Version field: the store must reject a write whose
// version no longer matches with domain.ErrVersionConflict, so per-entity
// serialization survives horizontally scaled deployments.

type EventRepository interface {
	Create(ctx context.Context, row domain.Event) error
	GetByID(ctx context.Context, eventID string) (domain.Event, error)
	Update(ctx context.Context, row domain.Event) error
}

type ContributionRepository interface {
	Create(ctx context.Context, row domain.Contribution) error
	Get(ctx context.Context, eventID, participantID string) (domain.Contribution, error)
	GetByIdempotencyKey(ctx context.Context, eventID, key string) (domain.Contribution, error)
	ListByEvent(ctx context.Context, eventID string) ([]domain.Contribution, error)
	Update(ctx context.Context, row domain.Contribution) error
	DeleteByEvent(ctx context.Context, eventID string) error
}

type OrderRepository interface {
	Create(ctx context.Context, row domain.Order) error
	GetByID(ctx context.Context, orderID string) (domain.Order, error)
	Update(ctx context.Context, row domain.Order) error
	// ListDeliveredBefore returns undisputed, unsettled orders whose delivery
	// timestamp is at or before cutoff. The sweep feeds on this.
	ListDeliveredBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Order, error)
}

type EscrowRepository interface {
	Create(ctx context.Context, row domain.EscrowAccount) error
	GetByOrderID(ctx context.Context, orderID string) (domain.EscrowAccount, error)
	Update(ctx context.Context, row domain.EscrowAccount) error
}

type DisputeRepository interface {
	Create(ctx context.Context, row domain.Dispute) error
	GetByID(ctx context.Context, disputeID string) (domain.Dispute, error)
	GetByOrderID(ctx context.Context, orderID string) (domain.Dispute, error)
	Update(ctx context.Context, row domain.Dispute) error
}

type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key string, now time.Time) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
	// Delete drops a reservation whose request failed in a retryable way, so
	// the client can replay the same key.
	Delete(ctx context.Context, key string) error
}

type OutboxEvent struct {
	EventID      string
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

type OutboxRecord struct {
	OutboxID       string
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository implements the transactional outbox: mutations enqueue in
// the same store, a worker claims and publishes asynchronously.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID string, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID string, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID string, claimToken, errMsg string, at time.Time) error
}
