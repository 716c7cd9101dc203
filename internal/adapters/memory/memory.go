// Package memory provides in-process repository implementations backed by
// maps. The API server falls back to them when no database is configured;
// tests use them directly.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/makersrow/escrow-engine/internal/domain"
	"github.com/makersrow/escrow-engine/internal/ports"
)

// Store is the shared backing for every in-memory repository.
type Store struct {
	mu sync.RWMutex

	events        map[string]domain.Event
	contributions map[string]domain.Contribution // eventID + "/" + participantID
	orders        map[string]domain.Order
	escrows       map[string]domain.EscrowAccount // keyed by order ID
	disputes      map[string]domain.Dispute
	idempotency   map[string]ports.IdempotencyRecord
	outbox        map[string]ports.OutboxRecord
	outboxSeq     []string
}

func NewStore() *Store {
	return &Store{
		events:        map[string]domain.Event{},
		contributions: map[string]domain.Contribution{},
		orders:        map[string]domain.Order{},
		escrows:       map[string]domain.EscrowAccount{},
		disputes:      map[string]domain.Dispute{},
		idempotency:   map[string]ports.IdempotencyRecord{},
		outbox:        map[string]ports.OutboxRecord{},
	}
}

func contributionKey(eventID, participantID string) string {
	return eventID + "/" + participantID
}

// --- events ---

type EventRepository struct{ store *Store }

func NewEventRepository(store *Store) *EventRepository { return &EventRepository{store: store} }

func (r *EventRepository) Create(_ context.Context, row domain.Event) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.events[row.EventID]; ok {
		return domain.ErrConflict
	}
	row.Version = 1
	r.store.events[row.EventID] = row
	return nil
}

func (r *EventRepository) GetByID(_ context.Context, eventID string) (domain.Event, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	row, ok := r.store.events[eventID]
	if !ok {
		return domain.Event{}, domain.ErrNotFound
	}
	return row, nil
}

func (r *EventRepository) Update(_ context.Context, row domain.Event) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.events[row.EventID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != row.Version {
		return domain.ErrVersionConflict
	}
	row.Version++
	r.store.events[row.EventID] = row
	return nil
}

// --- contributions ---

type ContributionRepository struct{ store *Store }

func NewContributionRepository(store *Store) *ContributionRepository {
	return &ContributionRepository{store: store}
}

func (r *ContributionRepository) Create(_ context.Context, row domain.Contribution) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := contributionKey(row.EventID, row.ParticipantID)
	if _, ok := r.store.contributions[key]; ok {
		return domain.ErrConflict
	}
	r.store.contributions[key] = row
	return nil
}

func (r *ContributionRepository) Get(_ context.Context, eventID, participantID string) (domain.Contribution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	row, ok := r.store.contributions[contributionKey(eventID, participantID)]
	if !ok {
		return domain.Contribution{}, domain.ErrNotFound
	}
	return row, nil
}

func (r *ContributionRepository) GetByIdempotencyKey(_ context.Context, eventID, key string) (domain.Contribution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, row := range r.store.contributions {
		if row.EventID == eventID && row.IdempotencyKey == key {
			return row, nil
		}
	}
	return domain.Contribution{}, domain.ErrNotFound
}

func (r *ContributionRepository) ListByEvent(_ context.Context, eventID string) ([]domain.Contribution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var rows []domain.Contribution
	for _, row := range r.store.contributions {
		if row.EventID == eventID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].JoinIndex < rows[j].JoinIndex })
	return rows, nil
}

func (r *ContributionRepository) Update(_ context.Context, row domain.Contribution) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := contributionKey(row.EventID, row.ParticipantID)
	if _, ok := r.store.contributions[key]; !ok {
		return domain.ErrNotFound
	}
	r.store.contributions[key] = row
	return nil
}

func (r *ContributionRepository) DeleteByEvent(_ context.Context, eventID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for key := range r.store.contributions {
		if strings.HasPrefix(key, eventID+"/") {
			delete(r.store.contributions, key)
		}
	}
	return nil
}

// --- orders ---

type OrderRepository struct{ store *Store }

func NewOrderRepository(store *Store) *OrderRepository { return &OrderRepository{store: store} }

func (r *OrderRepository) Create(_ context.Context, row domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.orders[row.OrderID]; ok {
		return domain.ErrConflict
	}
	row.Version = 1
	r.store.orders[row.OrderID] = row
	return nil
}

func (r *OrderRepository) GetByID(_ context.Context, orderID string) (domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	row, ok := r.store.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return row, nil
}

func (r *OrderRepository) Update(_ context.Context, row domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.orders[row.OrderID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != row.Version {
		return domain.ErrVersionConflict
	}
	row.Version++
	r.store.orders[row.OrderID] = row
	return nil
}

func (r *OrderRepository) ListDeliveredBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var rows []domain.Order
	for _, row := range r.store.orders {
		if row.Cancelled || row.SettledAt != nil || row.DeliveredAt == nil {
			continue
		}
		if row.EscrowStatus == domain.EscrowStatusDisputed {
			continue
		}
		if row.DeliveredAt.After(cutoff) {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].DeliveredAt.Before(*rows[j].DeliveredAt) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// --- escrow accounts ---

type EscrowRepository struct{ store *Store }

func NewEscrowRepository(store *Store) *EscrowRepository { return &EscrowRepository{store: store} }

func (r *EscrowRepository) Create(_ context.Context, row domain.EscrowAccount) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.escrows[row.OrderID]; ok {
		return domain.ErrConflict
	}
	row.Version = 1
	r.store.escrows[row.OrderID] = row
	return nil
}

func (r *EscrowRepository) GetByOrderID(_ context.Context, orderID string) (domain.EscrowAccount, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	row, ok := r.store.escrows[orderID]
	if !ok {
		return domain.EscrowAccount{}, domain.ErrNotFound
	}
	row.PartialReleases = append([]domain.PartialRelease(nil), row.PartialReleases...)
	return row, nil
}

func (r *EscrowRepository) Update(_ context.Context, row domain.EscrowAccount) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.escrows[row.OrderID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != row.Version {
		return domain.ErrVersionConflict
	}
	row.Version++
	row.PartialReleases = append([]domain.PartialRelease(nil), row.PartialReleases...)
	r.store.escrows[row.OrderID] = row
	return nil
}

// --- disputes ---

type DisputeRepository struct{ store *Store }

func NewDisputeRepository(store *Store) *DisputeRepository { return &DisputeRepository{store: store} }

func (r *DisputeRepository) Create(_ context.Context, row domain.Dispute) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.disputes[row.DisputeID]; ok {
		return domain.ErrConflict
	}
	for _, existing := range r.store.disputes {
		if existing.OrderID == row.OrderID {
			return domain.ErrConflict
		}
	}
	row.Version = 1
	r.store.disputes[row.DisputeID] = row
	return nil
}

func (r *DisputeRepository) GetByID(_ context.Context, disputeID string) (domain.Dispute, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	row, ok := r.store.disputes[disputeID]
	if !ok {
		return domain.Dispute{}, domain.ErrNotFound
	}
	return row, nil
}

func (r *DisputeRepository) GetByOrderID(_ context.Context, orderID string) (domain.Dispute, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, row := range r.store.disputes {
		if row.OrderID == orderID {
			return row, nil
		}
	}
	return domain.Dispute{}, domain.ErrNotFound
}

func (r *DisputeRepository) Update(_ context.Context, row domain.Dispute) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.disputes[row.DisputeID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != row.Version {
		return domain.ErrVersionConflict
	}
	row.Version++
	r.store.disputes[row.DisputeID] = row
	return nil
}

// --- idempotency ---

type IdempotencyRepository struct{ store *Store }

func NewIdempotencyRepository(store *Store) *IdempotencyRepository {
	return &IdempotencyRepository{store: store}
}

func (r *IdempotencyRepository) Get(_ context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	row, ok := r.store.idempotency[key]
	if !ok || now.After(row.ExpiresAt) {
		return nil, nil
	}
	record := row
	return &record, nil
}

func (r *IdempotencyRepository) Reserve(_ context.Context, key, requestHash string, expiresAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.idempotency[key]; ok {
		return domain.ErrConflict
	}
	r.store.idempotency[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		ExpiresAt:   expiresAt,
	}
	return nil
}

func (r *IdempotencyRepository) Complete(_ context.Context, key string, responseCode int, responseBody []byte, _ time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row, ok := r.store.idempotency[key]
	if !ok {
		return domain.ErrNotFound
	}
	row.ResponseCode = responseCode
	row.ResponseBody = append([]byte(nil), responseBody...)
	r.store.idempotency[key] = row
	return nil
}

func (r *IdempotencyRepository) Delete(_ context.Context, key string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.idempotency, key)
	return nil
}

// --- outbox ---

type OutboxRepository struct{ store *Store }

func NewOutboxRepository(store *Store) *OutboxRepository { return &OutboxRepository{store: store} }

func (r *OutboxRepository) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.outbox[event.EventID]; ok {
		return domain.ErrConflict
	}
	r.store.outbox[event.EventID] = ports.OutboxRecord{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      append([]byte(nil), event.Payload...),
		CreatedAt:    event.OccurredAt,
	}
	r.store.outboxSeq = append(r.store.outboxSeq, event.EventID)
	return nil
}

func (r *OutboxRepository) ClaimUnpublished(_ context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var claimed []ports.OutboxRecord
	now := time.Now()
	for _, id := range r.store.outboxSeq {
		if limit > 0 && len(claimed) >= limit {
			break
		}
		row := r.store.outbox[id]
		if row.PublishedAt != nil || row.DeadLetteredAt != nil {
			continue
		}
		if row.ClaimUntil != nil && now.Before(*row.ClaimUntil) {
			continue
		}
		token := claimToken
		until := claimUntil
		row.ClaimToken = &token
		row.ClaimUntil = &until
		r.store.outbox[id] = row
		claimed = append(claimed, row)
	}
	return claimed, nil
}

func (r *OutboxRepository) MarkPublished(_ context.Context, outboxID, claimToken string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row, ok := r.store.outbox[outboxID]
	if !ok || row.ClaimToken == nil || *row.ClaimToken != claimToken {
		return domain.ErrNotFound
	}
	row.PublishedAt = &at
	row.ClaimToken = nil
	row.ClaimUntil = nil
	r.store.outbox[outboxID] = row
	return nil
}

func (r *OutboxRepository) MarkFailed(_ context.Context, outboxID, claimToken, errMsg string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row, ok := r.store.outbox[outboxID]
	if !ok || row.ClaimToken == nil || *row.ClaimToken != claimToken {
		return domain.ErrNotFound
	}
	row.RetryCount++
	row.LastError = &errMsg
	row.LastErrorAt = &at
	row.ClaimToken = nil
	row.ClaimUntil = nil
	r.store.outbox[outboxID] = row
	return nil
}

func (r *OutboxRepository) MarkDeadLettered(_ context.Context, outboxID, claimToken, errMsg string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row, ok := r.store.outbox[outboxID]
	if !ok || row.ClaimToken == nil || *row.ClaimToken != claimToken {
		return domain.ErrNotFound
	}
	row.LastError = &errMsg
	row.LastErrorAt = &at
	row.DeadLetteredAt = &at
	row.ClaimToken = nil
	row.ClaimUntil = nil
	r.store.outbox[outboxID] = row
	return nil
}

// Pending returns unpublished records in enqueue order. Test helper.
func (r *OutboxRepository) Pending() []ports.OutboxRecord {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var rows []ports.OutboxRecord
	for _, id := range r.store.outboxSeq {
		row := r.store.outbox[id]
		if row.PublishedAt == nil && row.DeadLetteredAt == nil {
			rows = append(rows, row)
		}
	}
	return rows
}
