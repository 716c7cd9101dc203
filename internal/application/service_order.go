package application

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/makersrow/escrow-engine/internal/domain"
	"github.com/makersrow/escrow-engine/internal/ports"
)

func (s *Service) CreateOrder(ctx context.Context, actor Actor, input CreateOrderInput) (OrderView, error) {
	if actor.SubjectID == "" {
		return OrderView{}, domain.ErrUnauthorized
	}
	sellerID := strings.TrimSpace(input.SellerID)
	if sellerID == "" || sellerID == actor.SubjectID {
		return OrderView{}, domain.ErrInvalidInput
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if len(currency) != 3 {
		return OrderView{}, domain.ErrInvalidInput
	}
	if len(input.LineItems) == 0 {
		return OrderView{}, domain.ErrInvalidInput
	}
	var total int64
	for _, item := range input.LineItems {
		if strings.TrimSpace(item.Name) == "" || item.Quantity <= 0 || item.UnitPrice <= 0 {
			return OrderView{}, domain.ErrInvalidInput
		}
		total += int64(item.Quantity) * item.UnitPrice
	}
	if input.EventID != "" {
		event, err := s.events.GetByID(ctx, input.EventID)
		if err != nil {
			return OrderView{}, err
		}
		if event.Status == domain.EventStatusCancelled {
			return OrderView{}, domain.ErrConflict
		}
		if event.Currency != currency {
			return OrderView{}, domain.ErrInvalidInput
		}
	}

	now := s.nowFn()
	order := domain.NewOrder(uuid.NewString(), actor.SubjectID, sellerID, input.EventID, input.LineItems, total, currency, now)
	escrow := domain.NewEscrowAccount(order.OrderID, currency, now)
	if err := s.orders.Create(ctx, order); err != nil {
		return OrderView{}, err
	}
	if err := s.escrows.Create(ctx, escrow); err != nil {
		return OrderView{}, err
	}
	s.logger.Info("order created",
		"order_id", order.OrderID, "buyer_id", order.BuyerID, "seller_id", order.SellerID, "total_amount", total)
	return OrderView{Order: order, Escrow: escrow}, nil
}

func (s *Service) AuthorizePayment(ctx context.Context, actor Actor, orderID, paymentMethodRef string) (OrderView, error) {
	if strings.TrimSpace(paymentMethodRef) == "" {
		return OrderView{}, domain.ErrInvalidInput
	}
	return s.mutateOrder(ctx, orderID, func(order *domain.Order, escrow *domain.EscrowAccount) error {
		if actor.SubjectID != order.BuyerID {
			return domain.ErrForbidden
		}
		return order.Authorize(paymentMethodRef, s.nowFn())
	})
}

// CapturePayment charges the authorized payment method and holds the full
// order total in escrow. A capture failure leaves the order authorized so the
// buyer can retry; an already-captured order is an idempotent success.
func (s *Service) CapturePayment(ctx context.Context, actor Actor, orderID string) (OrderView, error) {
	if actor.IdempotencyKey == "" {
		return OrderView{}, domain.ErrIdempotencyRequired
	}

	release, err := s.locker.Acquire(ctx, orderLockKey(orderID))
	if err != nil {
		return OrderView{}, err
	}
	defer release()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	if actor.SubjectID != order.BuyerID {
		return OrderView{}, domain.ErrForbidden
	}
	escrow, err := s.escrows.GetByOrderID(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	if order.PaymentStatus == domain.PaymentStatusCaptured {
		return OrderView{Order: order, Escrow: escrow}, nil
	}
	if order.Closed() {
		return OrderView{}, domain.ErrOrderClosed
	}
	if order.PaymentStatus != domain.PaymentStatusAuthorized {
		return OrderView{}, domain.ErrInvalidTransition
	}

	captureCtx, cancel := context.WithTimeout(ctx, s.cfg.PaymentCaptureTimeout)
	defer cancel()
	result, err := s.gateway.Capture(captureCtx, ports.CaptureRequest{
		Amount:           order.TotalAmount,
		Currency:         order.Currency,
		PaymentMethodRef: order.PaymentMethodRef,
		IdempotencyKey:   actor.IdempotencyKey,
	})
	if err != nil || !result.Success {
		s.logger.Warn("payment capture failed", "order_id", orderID, "error", err)
		return OrderView{}, domain.ErrPaymentCaptureFailed
	}

	now := s.nowFn()
	if err := escrow.Hold(order.TotalAmount, result.CaptureRef, now); err != nil {
		return OrderView{}, err
	}
	if err := order.MarkCaptured(now); err != nil {
		return OrderView{}, err
	}
	if err := s.escrows.Update(ctx, escrow); err != nil {
		return OrderView{}, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return OrderView{}, err
	}
	s.emitEscrowHeld(ctx, escrow, now)
	s.emitOrderStatusChanged(ctx, domain.OrderStatePaymentAuthorized, order, now)
	return OrderView{Order: order, Escrow: escrow}, nil
}

func (s *Service) StartProduction(ctx context.Context, actor Actor, orderID string) (OrderView, error) {
	return s.mutateOrder(ctx, orderID, func(order *domain.Order, escrow *domain.EscrowAccount) error {
		if actor.SubjectID != order.SellerID {
			return domain.ErrForbidden
		}
		return order.StartProduction(s.nowFn())
	})
}

func (s *Service) MarkShipped(ctx context.Context, actor Actor, orderID string) (OrderView, error) {
	return s.mutateOrder(ctx, orderID, func(order *domain.Order, escrow *domain.EscrowAccount) error {
		if actor.SubjectID != order.SellerID {
			return domain.ErrForbidden
		}
		return order.MarkShipped(s.nowFn())
	})
}

// MarkDelivered starts the dispute-window clock; the sweep picks the order up
// from here.
func (s *Service) MarkDelivered(ctx context.Context, actor Actor, orderID string) (OrderView, error) {
	return s.mutateOrder(ctx, orderID, func(order *domain.Order, escrow *domain.EscrowAccount) error {
		if actor.SubjectID != order.SellerID {
			return domain.ErrForbidden
		}
		return order.MarkDelivered(s.nowFn())
	})
}

// ConfirmDelivery is the buyer's explicit acceptance: it settles the order
// immediately and releases the full escrow balance to the seller, closing the
// dispute window early.
func (s *Service) ConfirmDelivery(ctx context.Context, actor Actor, orderID string) (OrderView, error) {
	release, err := s.locker.Acquire(ctx, orderLockKey(orderID))
	if err != nil {
		return OrderView{}, err
	}
	defer release()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	if actor.SubjectID != order.BuyerID {
		return OrderView{}, domain.ErrForbidden
	}
	escrow, err := s.escrows.GetByOrderID(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	if order.Closed() {
		return OrderView{}, domain.ErrOrderClosed
	}
	// The window sweep may settle first; the confirmation that loses the race
	// is a no-op success.
	if order.SettledAt != nil {
		return OrderView{Order: order, Escrow: escrow}, nil
	}

	now := s.nowFn()
	fromState := order.State()
	released := escrow.Remaining()
	if err := escrow.Release(order.SellerID, now); err != nil {
		return OrderView{}, err
	}
	if err := order.Settle(now); err != nil {
		return OrderView{}, err
	}
	if err := s.escrows.Update(ctx, escrow); err != nil {
		return OrderView{}, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return OrderView{}, err
	}
	s.emitEscrowReleased(ctx, orderID, released, order.SellerID, now)
	s.emitOrderStatusChanged(ctx, fromState, order, now)
	return OrderView{Order: order, Escrow: escrow}, nil
}

// CancelOrder is reachable by either party until the order ships. Held funds
// go back to the buyer through the gateway before the cancellation commits.
func (s *Service) CancelOrder(ctx context.Context, actor Actor, orderID string) (OrderView, error) {
	release, err := s.locker.Acquire(ctx, orderLockKey(orderID))
	if err != nil {
		return OrderView{}, err
	}
	defer release()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	if actor.SubjectID != order.BuyerID && actor.SubjectID != order.SellerID {
		return OrderView{}, domain.ErrForbidden
	}
	escrow, err := s.escrows.GetByOrderID(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	if escrow.Status == domain.EscrowStatusDisputed {
		return OrderView{}, domain.ErrDisputeOpen
	}

	now := s.nowFn()
	fromState := order.State()
	if err := order.Cancel(now); err != nil {
		return OrderView{}, err
	}

	var refunded int64
	if escrow.Status == domain.EscrowStatusHeld {
		refunded = escrow.Remaining()
		refundCtx, cancel := context.WithTimeout(ctx, s.cfg.PaymentCaptureTimeout)
		defer cancel()
		result, err := s.gateway.Refund(refundCtx, ports.RefundRequest{
			CaptureRef:     escrow.CaptureRef,
			Amount:         refunded,
			IdempotencyKey: "refund:order:" + orderID,
		})
		if err != nil || !result.Success {
			s.logger.Error("order refund failed", "order_id", orderID, "error", err)
			return OrderView{}, domain.ErrPaymentCaptureFailed
		}
		if err := escrow.Refund(now); err != nil {
			return OrderView{}, err
		}
		if err := order.MarkRefunded(now); err != nil {
			return OrderView{}, err
		}
	}

	if err := s.escrows.Update(ctx, escrow); err != nil {
		return OrderView{}, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return OrderView{}, err
	}
	if refunded > 0 {
		s.emitEscrowRefunded(ctx, orderID, refunded, now)
	}
	s.emitOrderStatusChanged(ctx, fromState, order, now)
	return OrderView{Order: order, Escrow: escrow}, nil
}

func (s *Service) GetOrderStatus(ctx context.Context, orderID string) (OrderView, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	escrow, err := s.escrows.GetByOrderID(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	return OrderView{Order: order, Escrow: escrow}, nil
}

// mutateOrder runs a guarded transition under the order lock and persists the
// result, emitting the status-change notification when the composite state
// moved.
func (s *Service) mutateOrder(ctx context.Context, orderID string, fn func(order *domain.Order, escrow *domain.EscrowAccount) error) (OrderView, error) {
	release, err := s.locker.Acquire(ctx, orderLockKey(orderID))
	if err != nil {
		return OrderView{}, err
	}
	defer release()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	escrow, err := s.escrows.GetByOrderID(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}

	fromState := order.State()
	if err := fn(&order, &escrow); err != nil {
		return OrderView{}, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return OrderView{}, err
	}
	s.emitOrderStatusChanged(ctx, fromState, order, s.nowFn())
	return OrderView{Order: order, Escrow: escrow}, nil
}
