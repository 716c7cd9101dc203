package application

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/makersrow/escrow-engine/internal/domain"
)

// SweepResult reports one pass of the window sweep.
type SweepResult struct {
	Examined int
	Settled  int
	Warned   int
}

// RunWindowSweep is the recurring auto-settlement pass. It fetches delivered
// orders whose window has elapsed or is about to, fans them out over a worker
// pool, and re-checks every order's state under its entity lock before
// settling. Missed passes self-heal: the query is driven by delivery
// timestamps, not by timers armed at delivery time.
func (s *Service) RunWindowSweep(ctx context.Context) (SweepResult, error) {
	now := s.nowFn()
	// Covers both orders due for settlement and orders entering the warning
	// lead; sweepOne tells them apart under the lock.
	cutoff := now.Add(s.cfg.WindowWarnLead).Add(-domain.DisputeWindow)

	candidates, err := s.orders.ListDeliveredBefore(ctx, cutoff, s.cfg.SweepBatchSize)
	if err != nil {
		return SweepResult{}, err
	}
	if len(candidates) == 0 {
		return SweepResult{}, nil
	}

	pool, err := ants.NewPool(s.cfg.SweepConcurrency)
	if err != nil {
		return SweepResult{}, err
	}
	defer pool.Release()

	var settled, warned atomic.Int64
	var wg sync.WaitGroup
	for _, candidate := range candidates {
		orderID := candidate.OrderID
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			didSettle, didWarn := s.sweepOne(ctx, orderID, now)
			if didSettle {
				settled.Add(1)
			}
			if didWarn {
				warned.Add(1)
			}
		})
		if submitErr != nil {
			wg.Done()
			s.logger.Error("sweep submit failed", "order_id", orderID, "error", submitErr)
		}
	}
	wg.Wait()

	result := SweepResult{
		Examined: len(candidates),
		Settled:  int(settled.Load()),
		Warned:   int(warned.Load()),
	}
	if result.Settled > 0 || result.Warned > 0 {
		s.logger.Info("window sweep pass",
			"examined", result.Examined, "settled", result.Settled, "warned", result.Warned)
	}
	return result, nil
}

// sweepOne settles or warns a single order. All state is re-read under the
// order lock so a dispute or confirmation that raced the sweep wins.
func (s *Service) sweepOne(ctx context.Context, orderID string, now time.Time) (settled, warned bool) {
	release, err := s.locker.Acquire(ctx, orderLockKey(orderID))
	if err != nil {
		return false, false
	}
	defer release()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		s.logger.Error("sweep load order failed", "order_id", orderID, "error", err)
		return false, false
	}
	if order.Closed() || order.SettledAt != nil || order.EscrowStatus == domain.EscrowStatusDisputed {
		return false, false
	}

	if order.WindowElapsed(now) {
		return s.sweepSettle(ctx, order, now), false
	}
	return false, s.sweepWarn(ctx, order, now)
}

func (s *Service) sweepSettle(ctx context.Context, order domain.Order, now time.Time) bool {
	escrow, err := s.escrows.GetByOrderID(ctx, order.OrderID)
	if err != nil {
		s.logger.Error("sweep load escrow failed", "order_id", order.OrderID, "error", err)
		return false
	}
	fromState := order.State()
	released := escrow.Remaining()
	if err := escrow.Release(order.SellerID, now); err != nil {
		s.logger.Error("sweep escrow release failed", "order_id", order.OrderID, "error", err)
		return false
	}
	if err := order.Settle(now); err != nil {
		s.logger.Error("sweep settle failed", "order_id", order.OrderID, "error", err)
		return false
	}
	if err := s.escrows.Update(ctx, escrow); err != nil {
		s.logger.Error("sweep persist escrow failed", "order_id", order.OrderID, "error", err)
		return false
	}
	if err := s.orders.Update(ctx, order); err != nil {
		s.logger.Error("sweep persist order failed", "order_id", order.OrderID, "error", err)
		return false
	}
	s.emitEscrowReleased(ctx, order.OrderID, released, order.SellerID, now)
	s.emitOrderStatusChanged(ctx, fromState, order, now)
	return true
}

func (s *Service) sweepWarn(ctx context.Context, order domain.Order, now time.Time) bool {
	if order.WindowWarnedAt != nil {
		return false
	}
	deadline, ok := order.WindowDeadline()
	if !ok || deadline.Sub(now) > s.cfg.WindowWarnLead {
		return false
	}
	order.WindowWarnedAt = &now
	order.UpdatedAt = now
	if err := s.orders.Update(ctx, order); err != nil {
		s.logger.Error("sweep persist warning failed", "order_id", order.OrderID, "error", err)
		return false
	}
	s.emitWindowExpiring(ctx, order, deadline)
	return true
}
