package application

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/makersrow/escrow-engine/internal/contracts"
	"github.com/makersrow/escrow-engine/internal/domain"
	"github.com/makersrow/escrow-engine/internal/ports"
)

// Notification enqueueing is fire-and-forget: a failed enqueue is logged and
// never fails the state transition that triggered it.

func (s *Service) enqueue(ctx context.Context, eventType, partitionKey string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshal outbox payload", "event_type", eventType, "error", err)
		return
	}
	event := ports.OutboxEvent{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      body,
		OccurredAt:   s.nowFn(),
	}
	if err := s.outbox.Enqueue(ctx, event); err != nil {
		s.logger.Error("enqueue outbox event", "event_type", eventType, "partition_key", partitionKey, "error", err)
	}
}

func (s *Service) emitOrderStatusChanged(ctx context.Context, fromState string, order domain.Order, at time.Time) {
	toState := order.State()
	if toState == fromState {
		return
	}
	s.enqueue(ctx, domain.EventOrderStatusChanged, order.OrderID, contracts.OrderStatusChangedPayload{
		OrderID:   order.OrderID,
		BuyerID:   order.BuyerID,
		SellerID:  order.SellerID,
		FromState: fromState,
		ToState:   toState,
		ChangedAt: at.Format(time.RFC3339),
	})
}

func (s *Service) emitEscrowHeld(ctx context.Context, escrow domain.EscrowAccount, at time.Time) {
	s.enqueue(ctx, domain.EventEscrowHeld, escrow.OrderID, contracts.EscrowHeldPayload{
		OrderID:    escrow.OrderID,
		Amount:     escrow.HeldAmount,
		Currency:   escrow.Currency,
		CaptureRef: escrow.CaptureRef,
		HeldAt:     at.Format(time.RFC3339),
	})
}

func (s *Service) emitEscrowReleased(ctx context.Context, orderID string, amount int64, recipientID string, at time.Time) {
	s.enqueue(ctx, domain.EventEscrowReleased, orderID, contracts.EscrowReleasedPayload{
		OrderID:     orderID,
		Amount:      amount,
		RecipientID: recipientID,
		ReleasedAt:  at.Format(time.RFC3339),
	})
}

func (s *Service) emitEscrowRefunded(ctx context.Context, orderID string, amount int64, at time.Time) {
	s.enqueue(ctx, domain.EventEscrowRefunded, orderID, contracts.EscrowRefundedPayload{
		OrderID:    orderID,
		Amount:     amount,
		RefundedAt: at.Format(time.RFC3339),
	})
}

func (s *Service) emitDisputeRaised(ctx context.Context, dispute domain.Dispute) {
	s.enqueue(ctx, domain.EventDisputeRaised, dispute.OrderID, contracts.DisputeRaisedPayload{
		DisputeID: dispute.DisputeID,
		OrderID:   dispute.OrderID,
		RaisedBy:  dispute.RaisedBy,
		RaisedAt:  dispute.RaisedAt.Format(time.RFC3339),
	})
}

func (s *Service) emitDisputeResolved(ctx context.Context, dispute domain.Dispute, at time.Time) {
	s.enqueue(ctx, domain.EventDisputeResolved, dispute.OrderID, contracts.DisputeResolvedPayload{
		DisputeID:  dispute.DisputeID,
		OrderID:    dispute.OrderID,
		Outcome:    dispute.Outcome,
		ResolverID: dispute.ResolverID,
		ResolvedAt: at.Format(time.RFC3339),
	})
}

func (s *Service) emitContributionCaptured(ctx context.Context, contribution domain.Contribution, at time.Time) {
	s.enqueue(ctx, domain.EventContributionCaptured, contribution.EventID, contracts.ContributionCapturedPayload{
		EventID:       contribution.EventID,
		ParticipantID: contribution.ParticipantID,
		Amount:        contribution.CapturedAmount,
		CapturedAt:    at.Format(time.RFC3339),
	})
}

func (s *Service) emitContributionRefunded(ctx context.Context, contribution domain.Contribution, amount int64, at time.Time) {
	s.enqueue(ctx, domain.EventContributionRefunded, contribution.EventID, contracts.ContributionRefundedPayload{
		EventID:       contribution.EventID,
		ParticipantID: contribution.ParticipantID,
		Amount:        amount,
		RefundedAt:    at.Format(time.RFC3339),
	})
}

func (s *Service) emitEventCancelled(ctx context.Context, event domain.Event, at time.Time) {
	s.enqueue(ctx, domain.EventPurchaseEventCancelled, event.EventID, contracts.EventCancelledPayload{
		EventID:     event.EventID,
		OrganizerID: event.OrganizerID,
		CancelledAt: at.Format(time.RFC3339),
	})
}

func (s *Service) emitWindowExpiring(ctx context.Context, order domain.Order, deadline time.Time) {
	s.enqueue(ctx, domain.EventOrderWindowExpiring, order.OrderID, contracts.WindowExpiringPayload{
		OrderID:        order.OrderID,
		BuyerID:        order.BuyerID,
		WindowDeadline: deadline.Format(time.RFC3339),
	})
}
