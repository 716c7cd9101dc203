package application

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/makersrow/escrow-engine/internal/domain"
	"github.com/makersrow/escrow-engine/internal/ports"
)

// RaiseDispute contests a delivered order within the dispute window. Escrow
// freezes immediately: no release can happen while the dispute is pending.
// An order carries at most one dispute, ever.
func (s *Service) RaiseDispute(ctx context.Context, actor Actor, orderID string, evidence []domain.EvidenceRef) (domain.Dispute, error) {
	release, err := s.locker.Acquire(ctx, orderLockKey(orderID))
	if err != nil {
		return domain.Dispute{}, err
	}
	defer release()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.Dispute{}, err
	}
	if actor.SubjectID != order.BuyerID {
		return domain.Dispute{}, domain.ErrForbidden
	}

	existing, err := s.disputes.GetByOrderID(ctx, orderID)
	if err == nil {
		if existing.Status == domain.DisputeStatusResolved {
			return domain.Dispute{}, domain.ErrDisputeAlreadyResolved
		}
		return domain.Dispute{}, domain.ErrDisputeOpen
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Dispute{}, err
	}

	now := s.nowFn()
	if order.Closed() || order.SettledAt != nil {
		// Buyer confirmation and window expiry both close the window for good.
		return domain.Dispute{}, domain.ErrOrderClosed
	}
	if order.DeliveryStatus != domain.DeliveryStatusDelivered {
		return domain.Dispute{}, domain.ErrInvalidTransition
	}
	if !order.WithinDisputeWindow(now) {
		return domain.Dispute{}, domain.ErrDisputeWindowExpired
	}

	dispute, err := domain.NewDispute(uuid.NewString(), orderID, actor.SubjectID, evidence, now)
	if err != nil {
		return domain.Dispute{}, err
	}
	escrow, err := s.escrows.GetByOrderID(ctx, orderID)
	if err != nil {
		return domain.Dispute{}, err
	}
	fromState := order.State()
	if err := escrow.Freeze(now); err != nil {
		return domain.Dispute{}, err
	}
	order.EscrowStatus = domain.EscrowStatusDisputed
	order.UpdatedAt = now

	if err := s.disputes.Create(ctx, dispute); err != nil {
		return domain.Dispute{}, err
	}
	if err := s.escrows.Update(ctx, escrow); err != nil {
		return domain.Dispute{}, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return domain.Dispute{}, err
	}
	s.emitDisputeRaised(ctx, dispute)
	s.emitOrderStatusChanged(ctx, fromState, order, now)
	s.logger.Info("dispute raised", "dispute_id", dispute.DisputeID, "order_id", orderID, "raised_by", actor.SubjectID)
	return dispute, nil
}

func (s *Service) AssignResolver(ctx context.Context, actor Actor, disputeID, resolverID string) (domain.Dispute, error) {
	if !isStaffRole(actor.Role) {
		return domain.Dispute{}, domain.ErrForbidden
	}
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return domain.Dispute{}, err
	}

	release, err := s.locker.Acquire(ctx, orderLockKey(dispute.OrderID))
	if err != nil {
		return domain.Dispute{}, err
	}
	defer release()

	dispute, err = s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return domain.Dispute{}, err
	}
	order, err := s.orders.GetByID(ctx, dispute.OrderID)
	if err != nil {
		return domain.Dispute{}, err
	}
	if err := dispute.AssignResolver(resolverID, order.BuyerID, order.SellerID, s.nowFn()); err != nil {
		return domain.Dispute{}, err
	}
	if err := s.disputes.Update(ctx, dispute); err != nil {
		return domain.Dispute{}, err
	}
	return dispute, nil
}

// ResolveDispute applies the resolver's terminal decision: full release, full
// refund, or a basis-point split where the seller receives the exact
// remainder. The buyer-bound portion moves back through the gateway before
// anything persists, so a gateway failure leaves the dispute open and
// retryable.
func (s *Service) ResolveDispute(ctx context.Context, actor Actor, input ResolveDisputeInput) (domain.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, input.DisputeID)
	if err != nil {
		return domain.Dispute{}, err
	}

	release, err := s.locker.Acquire(ctx, orderLockKey(dispute.OrderID))
	if err != nil {
		return domain.Dispute{}, err
	}
	defer release()

	dispute, err = s.disputes.GetByID(ctx, input.DisputeID)
	if err != nil {
		return domain.Dispute{}, err
	}
	if !isStaffRole(actor.Role) || actor.SubjectID != dispute.ResolverID {
		return domain.Dispute{}, domain.ErrForbidden
	}
	order, err := s.orders.GetByID(ctx, dispute.OrderID)
	if err != nil {
		return domain.Dispute{}, err
	}
	escrow, err := s.escrows.GetByOrderID(ctx, dispute.OrderID)
	if err != nil {
		return domain.Dispute{}, err
	}

	now := s.nowFn()
	if err := dispute.Resolve(input.Outcome, input.SplitBuyerBasisPoints, now); err != nil {
		return domain.Dispute{}, err
	}

	remaining := escrow.Remaining()
	var buyerAmount int64
	switch dispute.Outcome {
	case domain.DisputeOutcomeRefundToBuyer:
		buyerAmount = remaining
	case domain.DisputeOutcomeSplit:
		buyerAmount = remaining * int64(dispute.SplitBuyerBasisPoints) / 10000
	}
	if buyerAmount > 0 {
		refundCtx, cancel := context.WithTimeout(ctx, s.cfg.PaymentCaptureTimeout)
		defer cancel()
		result, err := s.gateway.Refund(refundCtx, ports.RefundRequest{
			CaptureRef:     escrow.CaptureRef,
			Amount:         buyerAmount,
			IdempotencyKey: "dispute:" + dispute.DisputeID,
		})
		if err != nil || !result.Success {
			s.logger.Error("dispute refund failed", "dispute_id", dispute.DisputeID, "error", err)
			return domain.Dispute{}, domain.ErrPaymentCaptureFailed
		}
	}

	fromState := order.State()
	if err := escrow.Unfreeze(dispute.Outcome, order.BuyerID, order.SellerID, dispute.SplitBuyerBasisPoints, now); err != nil {
		return domain.Dispute{}, err
	}
	switch dispute.Outcome {
	case domain.DisputeOutcomeRefundToBuyer:
		if err := order.MarkRefunded(now); err != nil {
			return domain.Dispute{}, err
		}
	default:
		order.EscrowStatus = escrow.Status
		if err := order.Settle(now); err != nil {
			return domain.Dispute{}, err
		}
	}

	if err := s.disputes.Update(ctx, dispute); err != nil {
		return domain.Dispute{}, err
	}
	if err := s.escrows.Update(ctx, escrow); err != nil {
		return domain.Dispute{}, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return domain.Dispute{}, err
	}

	s.emitDisputeResolved(ctx, dispute, now)
	switch dispute.Outcome {
	case domain.DisputeOutcomeRefundToBuyer:
		s.emitEscrowRefunded(ctx, order.OrderID, remaining, now)
	case domain.DisputeOutcomeSplit:
		if buyerAmount > 0 {
			s.emitEscrowRefunded(ctx, order.OrderID, buyerAmount, now)
		}
		s.emitEscrowReleased(ctx, order.OrderID, remaining-buyerAmount, order.SellerID, now)
	default:
		s.emitEscrowReleased(ctx, order.OrderID, remaining, order.SellerID, now)
	}
	s.emitOrderStatusChanged(ctx, fromState, order, now)
	s.logger.Info("dispute resolved",
		"dispute_id", dispute.DisputeID, "order_id", order.OrderID, "outcome", dispute.Outcome)
	return dispute, nil
}

func (s *Service) GetDispute(ctx context.Context, actor Actor, disputeID string) (domain.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return domain.Dispute{}, err
	}
	if isStaffRole(actor.Role) {
		return dispute, nil
	}
	order, err := s.orders.GetByID(ctx, dispute.OrderID)
	if err != nil {
		return domain.Dispute{}, err
	}
	if actor.SubjectID != order.BuyerID && actor.SubjectID != order.SellerID {
		return domain.Dispute{}, domain.ErrForbidden
	}
	return dispute, nil
}
