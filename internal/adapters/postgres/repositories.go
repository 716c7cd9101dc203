// Package postgres persists the escrow engine's aggregates through GORM.
// Every Update is compare-and-swap on the version column so concurrent
// writers across instances cannot silently overwrite each other.
package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/makersrow/escrow-engine/internal/domain"
	"github.com/makersrow/escrow-engine/internal/ports"
)

type Repositories struct {
	Events        ports.EventRepository
	Contributions ports.ContributionRepository
	Orders        ports.OrderRepository
	Escrows       ports.EscrowRepository
	Disputes      ports.DisputeRepository
	Idempotency   ports.IdempotencyRepository
	Outbox        ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Events:        &eventRepository{db: db},
		Contributions: &contributionRepository{db: db},
		Orders:        &orderRepository{db: db},
		Escrows:       &escrowRepository{db: db},
		Disputes:      &disputeRepository{db: db},
		Idempotency:   &idempotencyRepository{db: db},
		Outbox:        &outboxRepository{db: db},
	}
}

// casUpdate applies a versioned update. Zero rows affected means another
// writer won the race (or the row is gone); either way the caller must
// re-read and retry.
func casUpdate(tx *gorm.DB) error {
	if tx.Error != nil {
		return translateError(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

type eventRepository struct {
	db *gorm.DB
}

func (r *eventRepository) Create(ctx context.Context, row domain.Event) error {
	rec := toEventModel(row)
	rec.Version = 1
	return translateError(r.db.WithContext(ctx).Create(&rec).Error)
}

func (r *eventRepository) GetByID(ctx context.Context, eventID string) (domain.Event, error) {
	var rec eventModel
	if err := r.db.WithContext(ctx).First(&rec, "event_id = ?", eventID).Error; err != nil {
		return domain.Event{}, translateError(err)
	}
	return fromEventModel(rec), nil
}

func (r *eventRepository) Update(ctx context.Context, row domain.Event) error {
	rec := toEventModel(row)
	return casUpdate(r.db.WithContext(ctx).
		Model(&eventModel{}).
		Where("event_id = ? AND version = ?", row.EventID, row.Version).
		Updates(map[string]any{
			"budget":              rec.Budget,
			"currency":            rec.Currency,
			"distribution_mode":   rec.DistributionMode,
			"target_participants": rec.TargetParticipants,
			"status":              rec.Status,
			"updated_at":          rec.UpdatedAt,
			"version":             row.Version + 1,
		}))
}

type contributionRepository struct {
	db *gorm.DB
}

func (r *contributionRepository) Create(ctx context.Context, row domain.Contribution) error {
	rec := toContributionModel(row)
	return translateError(r.db.WithContext(ctx).Create(&rec).Error)
}

func (r *contributionRepository) Get(ctx context.Context, eventID, participantID string) (domain.Contribution, error) {
	var rec contributionModel
	err := r.db.WithContext(ctx).
		First(&rec, "event_id = ? AND participant_id = ?", eventID, participantID).Error
	if err != nil {
		return domain.Contribution{}, translateError(err)
	}
	return fromContributionModel(rec), nil
}

func (r *contributionRepository) GetByIdempotencyKey(ctx context.Context, eventID, key string) (domain.Contribution, error) {
	var rec contributionModel
	err := r.db.WithContext(ctx).
		First(&rec, "event_id = ? AND idempotency_key = ?", eventID, key).Error
	if err != nil {
		return domain.Contribution{}, translateError(err)
	}
	return fromContributionModel(rec), nil
}

func (r *contributionRepository) ListByEvent(ctx context.Context, eventID string) ([]domain.Contribution, error) {
	var recs []contributionModel
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("join_index ASC").
		Find(&recs).Error
	if err != nil {
		return nil, translateError(err)
	}
	rows := make([]domain.Contribution, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, fromContributionModel(rec))
	}
	return rows, nil
}

func (r *contributionRepository) Update(ctx context.Context, row domain.Contribution) error {
	rec := toContributionModel(row)
	tx := r.db.WithContext(ctx).
		Model(&contributionModel{}).
		Where("event_id = ? AND participant_id = ?", row.EventID, row.ParticipantID).
		Updates(map[string]any{
			"committed_amount": rec.CommittedAmount,
			"captured_amount":  rec.CapturedAmount,
			"state":            rec.State,
			"capture_ref":      rec.CaptureRef,
			"updated_at":       rec.UpdatedAt,
		})
	if tx.Error != nil {
		return translateError(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *contributionRepository) DeleteByEvent(ctx context.Context, eventID string) error {
	return translateError(r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Delete(&contributionModel{}).Error)
}

type orderRepository struct {
	db *gorm.DB
}

func (r *orderRepository) Create(ctx context.Context, row domain.Order) error {
	rec, err := toOrderModel(row)
	if err != nil {
		return err
	}
	rec.Version = 1
	return translateError(r.db.WithContext(ctx).Create(&rec).Error)
}

func (r *orderRepository) GetByID(ctx context.Context, orderID string) (domain.Order, error) {
	var rec orderModel
	if err := r.db.WithContext(ctx).First(&rec, "order_id = ?", orderID).Error; err != nil {
		return domain.Order{}, translateError(err)
	}
	return fromOrderModel(rec)
}

func (r *orderRepository) Update(ctx context.Context, row domain.Order) error {
	rec, err := toOrderModel(row)
	if err != nil {
		return err
	}
	return casUpdate(r.db.WithContext(ctx).
		Model(&orderModel{}).
		Where("order_id = ? AND version = ?", row.OrderID, row.Version).
		Updates(map[string]any{
			"payment_status":     rec.PaymentStatus,
			"production_status":  rec.ProductionStatus,
			"delivery_status":    rec.DeliveryStatus,
			"escrow_status":      rec.EscrowStatus,
			"cancelled":          rec.Cancelled,
			"payment_method_ref": rec.PaymentMethodRef,
			"delivered_at":       rec.DeliveredAt,
			"settled_at":         rec.SettledAt,
			"window_warned_at":   rec.WindowWarnedAt,
			"updated_at":         rec.UpdatedAt,
			"version":            row.Version + 1,
		}))
}

func (r *orderRepository) ListDeliveredBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Order, error) {
	var recs []orderModel
	err := r.db.WithContext(ctx).
		Where("delivered_at IS NOT NULL AND delivered_at <= ?", cutoff).
		Where("settled_at IS NULL").
		Where("cancelled = FALSE").
		Where("escrow_status <> ?", domain.EscrowStatusDisputed).
		Order("delivered_at ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, translateError(err)
	}
	rows := make([]domain.Order, 0, len(recs))
	for _, rec := range recs {
		row, err := fromOrderModel(rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type escrowRepository struct {
	db *gorm.DB
}

func (r *escrowRepository) Create(ctx context.Context, row domain.EscrowAccount) error {
	rec, err := toEscrowModel(row)
	if err != nil {
		return err
	}
	rec.Version = 1
	return translateError(r.db.WithContext(ctx).Create(&rec).Error)
}

func (r *escrowRepository) GetByOrderID(ctx context.Context, orderID string) (domain.EscrowAccount, error) {
	var rec escrowModel
	if err := r.db.WithContext(ctx).First(&rec, "order_id = ?", orderID).Error; err != nil {
		return domain.EscrowAccount{}, translateError(err)
	}
	return fromEscrowModel(rec)
}

func (r *escrowRepository) Update(ctx context.Context, row domain.EscrowAccount) error {
	rec, err := toEscrowModel(row)
	if err != nil {
		return err
	}
	return casUpdate(r.db.WithContext(ctx).
		Model(&escrowModel{}).
		Where("order_id = ? AND version = ?", row.OrderID, row.Version).
		Updates(map[string]any{
			"held_amount":      rec.HeldAmount,
			"status":           rec.Status,
			"capture_ref":      rec.CaptureRef,
			"released_at":      rec.ReleasedAt,
			"partial_releases": rec.PartialReleases,
			"updated_at":       rec.UpdatedAt,
			"version":          row.Version + 1,
		}))
}

type disputeRepository struct {
	db *gorm.DB
}

func (r *disputeRepository) Create(ctx context.Context, row domain.Dispute) error {
	rec, err := toDisputeModel(row)
	if err != nil {
		return err
	}
	rec.Version = 1
	return translateError(r.db.WithContext(ctx).Create(&rec).Error)
}

func (r *disputeRepository) GetByID(ctx context.Context, disputeID string) (domain.Dispute, error) {
	var rec disputeModel
	if err := r.db.WithContext(ctx).First(&rec, "dispute_id = ?", disputeID).Error; err != nil {
		return domain.Dispute{}, translateError(err)
	}
	return fromDisputeModel(rec)
}

func (r *disputeRepository) GetByOrderID(ctx context.Context, orderID string) (domain.Dispute, error) {
	var rec disputeModel
	if err := r.db.WithContext(ctx).First(&rec, "order_id = ?", orderID).Error; err != nil {
		return domain.Dispute{}, translateError(err)
	}
	return fromDisputeModel(rec)
}

func (r *disputeRepository) Update(ctx context.Context, row domain.Dispute) error {
	rec, err := toDisputeModel(row)
	if err != nil {
		return err
	}
	return casUpdate(r.db.WithContext(ctx).
		Model(&disputeModel{}).
		Where("dispute_id = ? AND version = ?", row.DisputeID, row.Version).
		Updates(map[string]any{
			"evidence":                 rec.Evidence,
			"status":                   rec.Status,
			"outcome":                  rec.Outcome,
			"split_buyer_basis_points": rec.SplitBuyerBasisPoints,
			"resolver_id":              rec.ResolverID,
			"resolved_at":              rec.ResolvedAt,
			"updated_at":               rec.UpdatedAt,
			"version":                  row.Version + 1,
		}))
}
