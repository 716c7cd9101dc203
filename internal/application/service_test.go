package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/makersrow/escrow-engine/internal/adapters/memory"
	"github.com/makersrow/escrow-engine/internal/domain"
	"github.com/makersrow/escrow-engine/internal/ports"
)

// fakeGateway approves everything unless told to fail, and counts traffic so
// tests can assert nobody was double-charged.
type fakeGateway struct {
	mu           sync.Mutex
	failCaptures bool
	failRefunds  bool
	captures     int
	refunds      []int64
}

func (g *fakeGateway) Capture(_ context.Context, req ports.CaptureRequest) (ports.CaptureResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCaptures {
		return ports.CaptureResult{}, errors.New("gateway unavailable")
	}
	g.captures++
	return ports.CaptureResult{Success: true, CaptureRef: "cap-" + req.IdempotencyKey}, nil
}

func (g *fakeGateway) Refund(_ context.Context, req ports.RefundRequest) (ports.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failRefunds {
		return ports.RefundResult{}, errors.New("gateway unavailable")
	}
	g.refunds = append(g.refunds, req.Amount)
	return ports.RefundResult{Success: true, RefundRef: "ref-" + req.IdempotencyKey}, nil
}

func (g *fakeGateway) captureCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.captures
}

func (g *fakeGateway) refundedTotal() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var sum int64
	for _, amount := range g.refunds {
		sum += amount
	}
	return sum
}

type fixture struct {
	t       *testing.T
	store   *memory.Store
	service *Service
	gateway *fakeGateway
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:       t,
		store:   memory.NewStore(),
		gateway: &fakeGateway{},
		now:     time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.service = NewService(Dependencies{
		Config:        Config{ServiceName: "escrow-engine-test"},
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Events:        memory.NewEventRepository(f.store),
		Contributions: memory.NewContributionRepository(f.store),
		Orders:        memory.NewOrderRepository(f.store),
		Escrows:       memory.NewEscrowRepository(f.store),
		Disputes:      memory.NewDisputeRepository(f.store),
		Idempotency:   memory.NewIdempotencyRepository(f.store),
		Outbox:        memory.NewOutboxRepository(f.store),
		Gateway:       f.gateway,
	}).WithNow(func() time.Time { return f.now })
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

var (
	organizer = Actor{SubjectID: "org-1"}
	buyer     = Actor{SubjectID: "buyer-1"}
	seller    = Actor{SubjectID: "seller-1"}
	resolver  = Actor{SubjectID: "staff-1", Role: "resolver"}
)

func participant(i int) Actor {
	return Actor{SubjectID: fmt.Sprintf("p%d", i), IdempotencyKey: fmt.Sprintf("join-key-%d", i)}
}

// openEvent creates and opens a self-funded event.
func (f *fixture) openEvent(budget int64, target int) domain.Event {
	f.t.Helper()
	ctx := context.Background()
	event, err := f.service.CreateEvent(ctx, organizer, CreateEventInput{
		Budget:             &budget,
		Currency:           "USD",
		DistributionMode:   domain.ModeParticipantsSelfFund,
		TargetParticipants: target,
	})
	if err != nil {
		f.t.Fatalf("CreateEvent: %v", err)
	}
	if _, err := f.service.OpenEvent(ctx, organizer, event.EventID); err != nil {
		f.t.Fatalf("OpenEvent: %v", err)
	}
	return event
}

// deliveredOrder walks an order through capture, production, shipping and
// delivery, returning its ID. Total is 40000 minor units.
func (f *fixture) deliveredOrder() string {
	f.t.Helper()
	ctx := context.Background()
	view, err := f.service.CreateOrder(ctx, buyer, CreateOrderInput{
		SellerID:  seller.SubjectID,
		Currency:  "USD",
		LineItems: []domain.LineItem{{Name: "sample run", Quantity: 2, UnitPrice: 20000}},
	})
	if err != nil {
		f.t.Fatalf("CreateOrder: %v", err)
	}
	orderID := view.Order.OrderID
	if _, err := f.service.AuthorizePayment(ctx, buyer, orderID, "pm-1"); err != nil {
		f.t.Fatalf("AuthorizePayment: %v", err)
	}
	capturer := buyer
	capturer.IdempotencyKey = "capture-" + orderID
	if _, err := f.service.CapturePayment(ctx, capturer, orderID); err != nil {
		f.t.Fatalf("CapturePayment: %v", err)
	}
	if _, err := f.service.StartProduction(ctx, seller, orderID); err != nil {
		f.t.Fatalf("StartProduction: %v", err)
	}
	if _, err := f.service.MarkShipped(ctx, seller, orderID); err != nil {
		f.t.Fatalf("MarkShipped: %v", err)
	}
	if _, err := f.service.MarkDelivered(ctx, seller, orderID); err != nil {
		f.t.Fatalf("MarkDelivered: %v", err)
	}
	return orderID
}

func TestEventFundingFlow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	event := f.openEvent(100000, 3)

	wantShares := []int64{33334, 33333, 33333}
	for i, share := range wantShares {
		c, err := f.service.JoinEvent(ctx, participant(i), JoinEventInput{
			EventID: event.EventID, Amount: share, PaymentMethodRef: "pm-x",
		})
		if err != nil {
			t.Fatalf("JoinEvent %d: %v", i, err)
		}
		if c.State != domain.ContributionStateCaptured || c.CapturedAmount != share {
			t.Fatalf("contribution %d = %+v", i, c)
		}
	}

	extra := participant(3)
	if _, err := f.service.JoinEvent(ctx, extra, JoinEventInput{EventID: event.EventID, Amount: 1}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("join full event: got %v", err)
	}

	summary, err := f.service.GetEvent(ctx, event.EventID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if summary.CapturedTotal != 100000 {
		t.Fatalf("captured total = %d, want 100000", summary.CapturedTotal)
	}

	locked, err := f.service.LockEvent(ctx, organizer, event.EventID)
	if err != nil {
		t.Fatalf("LockEvent: %v", err)
	}
	if locked.Status != domain.EventStatusLocked {
		t.Fatalf("status = %s", locked.Status)
	}
}

func TestLockEventRequiresFullFunding(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	event := f.openEvent(100000, 3)
	if _, err := f.service.JoinEvent(ctx, participant(0), JoinEventInput{EventID: event.EventID, Amount: 33334}); err != nil {
		t.Fatalf("JoinEvent: %v", err)
	}
	if _, err := f.service.LockEvent(ctx, organizer, event.EventID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("lock partially funded event: got %v", err)
	}
}

func TestJoinEventIdempotentReplay(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	event := f.openEvent(100000, 3)
	actor := participant(0)
	input := JoinEventInput{EventID: event.EventID, Amount: 33334, PaymentMethodRef: "pm-x"}

	first, err := f.service.JoinEvent(ctx, actor, input)
	if err != nil {
		t.Fatalf("JoinEvent: %v", err)
	}
	replay, err := f.service.JoinEvent(ctx, actor, input)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.CaptureRef != first.CaptureRef || replay.CapturedAmount != first.CapturedAmount {
		t.Fatalf("replay = %+v, first = %+v", replay, first)
	}
	if got := f.gateway.captureCount(); got != 1 {
		t.Fatalf("gateway captures = %d, want 1", got)
	}

	altered := input
	altered.Amount = 100
	if _, err := f.service.JoinEvent(ctx, actor, altered); !errors.Is(err, domain.ErrContributionConflict) {
		t.Fatalf("same key different amount: got %v", err)
	}
}

func TestJoinEventCaptureFailureIsRetryable(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	event := f.openEvent(100000, 3)
	actor := participant(0)
	input := JoinEventInput{EventID: event.EventID, Amount: 33334, PaymentMethodRef: "pm-x"}

	f.gateway.failCaptures = true
	if _, err := f.service.JoinEvent(ctx, actor, input); !errors.Is(err, domain.ErrPaymentCaptureFailed) {
		t.Fatalf("capture failure: got %v", err)
	}
	summary, err := f.service.GetEvent(ctx, event.EventID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if len(summary.Contributions) != 1 || summary.Contributions[0].State != domain.ContributionStatePledged {
		t.Fatalf("contributions after failure = %+v", summary.Contributions)
	}

	f.gateway.failCaptures = false
	retried, err := f.service.JoinEvent(ctx, actor, input)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.State != domain.ContributionStateCaptured {
		t.Fatalf("retried state = %s", retried.State)
	}
	if got := f.gateway.captureCount(); got != 1 {
		t.Fatalf("gateway captures = %d, want 1", got)
	}
}

func TestJoinEventGuards(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	event := f.openEvent(100000, 3)

	noKey := Actor{SubjectID: "p0"}
	if _, err := f.service.JoinEvent(ctx, noKey, JoinEventInput{EventID: event.EventID, Amount: 33334}); !errors.Is(err, domain.ErrIdempotencyRequired) {
		t.Fatalf("missing key: got %v", err)
	}
	if _, err := f.service.JoinEvent(ctx, participant(0), JoinEventInput{EventID: event.EventID, Amount: 33335}); !errors.Is(err, domain.ErrOverContribution) {
		t.Fatalf("over-contribution: got %v", err)
	}
}

func TestWithdrawContributionRefundsCaptured(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	event := f.openEvent(100000, 3)
	actor := participant(0)
	if _, err := f.service.JoinEvent(ctx, actor, JoinEventInput{EventID: event.EventID, Amount: 33334, PaymentMethodRef: "pm-x"}); err != nil {
		t.Fatalf("JoinEvent: %v", err)
	}
	withdrawn, err := f.service.WithdrawContribution(ctx, actor, event.EventID)
	if err != nil {
		t.Fatalf("WithdrawContribution: %v", err)
	}
	if withdrawn.State != domain.ContributionStateRefunded || withdrawn.CapturedAmount != 0 {
		t.Fatalf("withdrawn = %+v", withdrawn)
	}
	if got := f.gateway.refundedTotal(); got != 33334 {
		t.Fatalf("refunded total = %d, want 33334", got)
	}

	// Withdrawing again is a no-op.
	again, err := f.service.WithdrawContribution(ctx, actor, event.EventID)
	if err != nil {
		t.Fatalf("second withdraw: %v", err)
	}
	if again.State != domain.ContributionStateRefunded {
		t.Fatalf("second withdraw state = %s", again.State)
	}
	if got := f.gateway.refundedTotal(); got != 33334 {
		t.Fatalf("refunded total after no-op = %d", got)
	}
}

func TestNewJoinerFillsVacatedSlotAfterWithdrawal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	event := f.openEvent(100000, 3)

	if _, err := f.service.JoinEvent(ctx, participant(0), JoinEventInput{EventID: event.EventID, Amount: 33334, PaymentMethodRef: "pm-x"}); err != nil {
		t.Fatalf("JoinEvent p0: %v", err)
	}
	if _, err := f.service.WithdrawContribution(ctx, participant(0), event.EventID); err != nil {
		t.Fatalf("WithdrawContribution: %v", err)
	}

	// The vacated first slot goes to the next joiner; later joiners take the
	// remaining indexes and their shares.
	joins := []struct {
		actor  Actor
		amount int64
	}{
		{participant(1), 33334},
		{participant(2), 33333},
		{participant(3), 33333},
	}
	for _, j := range joins {
		c, err := f.service.JoinEvent(ctx, j.actor, JoinEventInput{EventID: event.EventID, Amount: j.amount, PaymentMethodRef: "pm-x"})
		if err != nil {
			t.Fatalf("JoinEvent %s: %v", j.actor.SubjectID, err)
		}
		if c.State != domain.ContributionStateCaptured {
			t.Fatalf("contribution %s = %+v", j.actor.SubjectID, c)
		}
	}

	summary, err := f.service.GetEvent(ctx, event.EventID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if summary.CapturedTotal != 100000 {
		t.Fatalf("captured total = %d, want 100000", summary.CapturedTotal)
	}
	if _, err := f.service.LockEvent(ctx, organizer, event.EventID); err != nil {
		t.Fatalf("LockEvent after withdrawal refill: %v", err)
	}
}

func TestWithdrawnParticipantCanRejoin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	event := f.openEvent(100000, 3)

	if _, err := f.service.JoinEvent(ctx, participant(0), JoinEventInput{EventID: event.EventID, Amount: 33334, PaymentMethodRef: "pm-x"}); err != nil {
		t.Fatalf("JoinEvent p0: %v", err)
	}
	if _, err := f.service.WithdrawContribution(ctx, participant(0), event.EventID); err != nil {
		t.Fatalf("WithdrawContribution: %v", err)
	}
	if _, err := f.service.JoinEvent(ctx, participant(1), JoinEventInput{EventID: event.EventID, Amount: 33334, PaymentMethodRef: "pm-x"}); err != nil {
		t.Fatalf("JoinEvent p1: %v", err)
	}
	if _, err := f.service.JoinEvent(ctx, participant(2), JoinEventInput{EventID: event.EventID, Amount: 33333, PaymentMethodRef: "pm-x"}); err != nil {
		t.Fatalf("JoinEvent p2: %v", err)
	}

	rejoin := Actor{SubjectID: "p0", IdempotencyKey: "rejoin-key-0"}
	c, err := f.service.JoinEvent(ctx, rejoin, JoinEventInput{EventID: event.EventID, Amount: 33333, PaymentMethodRef: "pm-x"})
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if c.State != domain.ContributionStateCaptured || c.CapturedAmount != 33333 {
		t.Fatalf("rejoined contribution = %+v", c)
	}

	summary, err := f.service.GetEvent(ctx, event.EventID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if len(summary.Contributions) != 3 {
		t.Fatalf("ledger rows = %d, want 3", len(summary.Contributions))
	}
	if summary.CapturedTotal != 100000 {
		t.Fatalf("captured total = %d, want 100000", summary.CapturedTotal)
	}
	if _, err := f.service.LockEvent(ctx, organizer, event.EventID); err != nil {
		t.Fatalf("LockEvent after rejoin: %v", err)
	}
}

func TestCancelEventRefundsEveryCapturedContribution(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	event := f.openEvent(100000, 3)
	for i := 0; i < 2; i++ {
		amount := int64(33334)
		if i > 0 {
			amount = 33333
		}
		if _, err := f.service.JoinEvent(ctx, participant(i), JoinEventInput{EventID: event.EventID, Amount: amount, PaymentMethodRef: "pm-x"}); err != nil {
			t.Fatalf("JoinEvent %d: %v", i, err)
		}
	}

	cancelled, err := f.service.CancelEvent(ctx, organizer, event.EventID)
	if err != nil {
		t.Fatalf("CancelEvent: %v", err)
	}
	if cancelled.Status != domain.EventStatusCancelled {
		t.Fatalf("status = %s", cancelled.Status)
	}
	if got := f.gateway.refundedTotal(); got != 66667 {
		t.Fatalf("refunded total = %d, want 66667", got)
	}
	summary, err := f.service.GetEvent(ctx, event.EventID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if len(summary.Contributions) != 0 {
		t.Fatalf("ledger survived cancellation: %+v", summary.Contributions)
	}
}

func TestConcurrentJoinsNeverExceedBudget(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	event := f.openEvent(90000, 3)

	var wg sync.WaitGroup
	var succeeded int64
	var mu sync.Mutex
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.service.JoinEvent(ctx, participant(i), JoinEventInput{
				EventID: event.EventID, Amount: 30000, PaymentMethodRef: "pm-x",
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrConflict) {
				t.Errorf("join %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 3 {
		t.Fatalf("successful joins = %d, want 3", succeeded)
	}
	summary, err := f.service.GetEvent(ctx, event.EventID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if summary.CapturedTotal != 90000 {
		t.Fatalf("captured total = %d, want exactly the budget", summary.CapturedTotal)
	}
	if _, err := f.service.LockEvent(ctx, organizer, event.EventID); err != nil {
		t.Fatalf("LockEvent: %v", err)
	}
}

func TestOrderSettlesOnBuyerConfirmation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.deliveredOrder()

	view, err := f.service.ConfirmDelivery(ctx, buyer, orderID)
	if err != nil {
		t.Fatalf("ConfirmDelivery: %v", err)
	}
	if view.Order.State() != domain.OrderStateSettled {
		t.Fatalf("state = %s", view.Order.State())
	}
	if view.Escrow.Status != domain.EscrowStatusReleased || view.Escrow.Remaining() != 0 {
		t.Fatalf("escrow = %+v", view.Escrow)
	}
	if len(view.Escrow.PartialReleases) != 1 || view.Escrow.PartialReleases[0].RecipientID != seller.SubjectID || view.Escrow.PartialReleases[0].Amount != 40000 {
		t.Fatalf("releases = %+v", view.Escrow.PartialReleases)
	}
}

func TestCapturePaymentIsIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.deliveredOrder()

	capturer := buyer
	capturer.IdempotencyKey = "capture-" + orderID
	view, err := f.service.CapturePayment(ctx, capturer, orderID)
	if err != nil {
		t.Fatalf("repeat capture: %v", err)
	}
	if view.Order.PaymentStatus != domain.PaymentStatusCaptured {
		t.Fatalf("payment status = %s", view.Order.PaymentStatus)
	}
	if got := f.gateway.captureCount(); got != 1 {
		t.Fatalf("gateway captures = %d, want 1", got)
	}
}

func TestCapturePaymentFailureLeavesOrderAuthorized(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.service.CreateOrder(ctx, buyer, CreateOrderInput{
		SellerID:  seller.SubjectID,
		Currency:  "USD",
		LineItems: []domain.LineItem{{Name: "prototype", Quantity: 1, UnitPrice: 5000}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	orderID := view.Order.OrderID
	if _, err := f.service.AuthorizePayment(ctx, buyer, orderID, "pm-1"); err != nil {
		t.Fatalf("AuthorizePayment: %v", err)
	}

	capturer := buyer
	capturer.IdempotencyKey = "capture-" + orderID
	f.gateway.failCaptures = true
	if _, err := f.service.CapturePayment(ctx, capturer, orderID); !errors.Is(err, domain.ErrPaymentCaptureFailed) {
		t.Fatalf("capture failure: got %v", err)
	}
	status, err := f.service.GetOrderStatus(ctx, orderID)
	if err != nil {
		t.Fatalf("GetOrderStatus: %v", err)
	}
	if status.Order.State() != domain.OrderStatePaymentAuthorized {
		t.Fatalf("state after failure = %s", status.Order.State())
	}

	f.gateway.failCaptures = false
	retried, err := f.service.CapturePayment(ctx, capturer, orderID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Order.State() != domain.OrderStatePaymentCaptured || retried.Escrow.Remaining() != 5000 {
		t.Fatalf("retry view = %+v", retried)
	}
}

func TestCancelOrderRefundsHeldEscrow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.service.CreateOrder(ctx, buyer, CreateOrderInput{
		SellerID:  seller.SubjectID,
		Currency:  "USD",
		LineItems: []domain.LineItem{{Name: "sample run", Quantity: 2, UnitPrice: 20000}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	orderID := view.Order.OrderID
	if _, err := f.service.AuthorizePayment(ctx, buyer, orderID, "pm-1"); err != nil {
		t.Fatalf("AuthorizePayment: %v", err)
	}
	capturer := buyer
	capturer.IdempotencyKey = "capture-" + orderID
	if _, err := f.service.CapturePayment(ctx, capturer, orderID); err != nil {
		t.Fatalf("CapturePayment: %v", err)
	}

	cancelled, err := f.service.CancelOrder(ctx, seller, orderID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if cancelled.Order.State() != domain.OrderStateCancelled {
		t.Fatalf("state = %s", cancelled.Order.State())
	}
	if cancelled.Escrow.Status != domain.EscrowStatusRefunded {
		t.Fatalf("escrow status = %s", cancelled.Escrow.Status)
	}
	if got := f.gateway.refundedTotal(); got != 40000 {
		t.Fatalf("refunded total = %d, want 40000", got)
	}
}

func TestCancelOrderRejectedAfterShipping(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.deliveredOrder()
	if _, err := f.service.CancelOrder(ctx, buyer, orderID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("cancel delivered order: got %v", err)
	}
}

func TestSweepWarnsThenAutoSettles(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.deliveredOrder()

	// Inside the warning lead but before expiry: warn, don't settle.
	f.advance(domain.DisputeWindow - 12*time.Hour)
	result, err := f.service.RunWindowSweep(ctx)
	if err != nil {
		t.Fatalf("RunWindowSweep: %v", err)
	}
	if result.Settled != 0 || result.Warned != 1 {
		t.Fatalf("warn pass = %+v", result)
	}
	status, err := f.service.GetOrderStatus(ctx, orderID)
	if err != nil {
		t.Fatalf("GetOrderStatus: %v", err)
	}
	if status.Order.WindowWarnedAt == nil {
		t.Fatal("warning timestamp not recorded")
	}

	// A second pass before expiry does nothing.
	result, err = f.service.RunWindowSweep(ctx)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if result.Settled != 0 || result.Warned != 0 {
		t.Fatalf("repeat warn pass = %+v", result)
	}

	// Past the deadline: settle in the seller's favor.
	f.advance(13 * time.Hour)
	result, err = f.service.RunWindowSweep(ctx)
	if err != nil {
		t.Fatalf("settle pass: %v", err)
	}
	if result.Settled != 1 {
		t.Fatalf("settle pass = %+v", result)
	}
	status, err = f.service.GetOrderStatus(ctx, orderID)
	if err != nil {
		t.Fatalf("GetOrderStatus: %v", err)
	}
	if status.Order.State() != domain.OrderStateSettled {
		t.Fatalf("state = %s", status.Order.State())
	}
	if status.Escrow.Status != domain.EscrowStatusReleased || status.Escrow.Remaining() != 0 {
		t.Fatalf("escrow = %+v", status.Escrow)
	}
}

func TestConfirmDeliveryAfterSweepSettlementIsNoOp(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.deliveredOrder()

	f.advance(domain.DisputeWindow + time.Hour)
	result, err := f.service.RunWindowSweep(ctx)
	if err != nil {
		t.Fatalf("RunWindowSweep: %v", err)
	}
	if result.Settled != 1 {
		t.Fatalf("sweep = %+v", result)
	}

	view, err := f.service.ConfirmDelivery(ctx, buyer, orderID)
	if err != nil {
		t.Fatalf("confirm after sweep settlement: %v", err)
	}
	if view.Order.State() != domain.OrderStateSettled {
		t.Fatalf("state = %s", view.Order.State())
	}
	if len(view.Escrow.PartialReleases) != 1 {
		t.Fatalf("confirmation re-released escrow: %+v", view.Escrow.PartialReleases)
	}
}

func TestSweepSkipsDisputedOrders(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.deliveredOrder()

	f.advance(29 * 24 * time.Hour)
	evidence := []domain.EvidenceRef{{Filename: "defect.jpg"}}
	if _, err := f.service.RaiseDispute(ctx, buyer, orderID, evidence); err != nil {
		t.Fatalf("RaiseDispute: %v", err)
	}

	f.advance(5 * 24 * time.Hour)
	result, err := f.service.RunWindowSweep(ctx)
	if err != nil {
		t.Fatalf("RunWindowSweep: %v", err)
	}
	if result.Settled != 0 {
		t.Fatalf("sweep settled a disputed order: %+v", result)
	}
	status, err := f.service.GetOrderStatus(ctx, orderID)
	if err != nil {
		t.Fatalf("GetOrderStatus: %v", err)
	}
	if status.Order.State() != domain.OrderStateDisputed {
		t.Fatalf("state = %s", status.Order.State())
	}
}

func TestDisputeSplitResolution(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.deliveredOrder()

	f.advance(29 * 24 * time.Hour)
	evidence := []domain.EvidenceRef{{Filename: "defect.jpg", FileURL: "https://files.example/defect.jpg"}}
	dispute, err := f.service.RaiseDispute(ctx, buyer, orderID, evidence)
	if err != nil {
		t.Fatalf("RaiseDispute: %v", err)
	}

	admin := Actor{SubjectID: "admin-1", Role: "admin"}
	if _, err := f.service.AssignResolver(ctx, admin, dispute.DisputeID, resolver.SubjectID); err != nil {
		t.Fatalf("AssignResolver: %v", err)
	}

	// Only the assigned resolver may decide.
	stranger := Actor{SubjectID: "staff-2", Role: "resolver"}
	if _, err := f.service.ResolveDispute(ctx, stranger, ResolveDisputeInput{DisputeID: dispute.DisputeID, Outcome: domain.DisputeOutcomeSplit, SplitBuyerBasisPoints: 5000}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("unassigned resolver: got %v", err)
	}

	resolved, err := f.service.ResolveDispute(ctx, resolver, ResolveDisputeInput{
		DisputeID:             dispute.DisputeID,
		Outcome:               domain.DisputeOutcomeSplit,
		SplitBuyerBasisPoints: 5000,
	})
	if err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	if resolved.Status != domain.DisputeStatusResolved {
		t.Fatalf("dispute status = %s", resolved.Status)
	}
	if got := f.gateway.refundedTotal(); got != 20000 {
		t.Fatalf("buyer refund = %d, want 20000", got)
	}
	status, err := f.service.GetOrderStatus(ctx, orderID)
	if err != nil {
		t.Fatalf("GetOrderStatus: %v", err)
	}
	if status.Order.State() != domain.OrderStateSettled {
		t.Fatalf("order state = %s", status.Order.State())
	}
	if status.Escrow.Remaining() != 0 || status.Escrow.Status != domain.EscrowStatusReleased {
		t.Fatalf("escrow = %+v", status.Escrow)
	}

	// A resolved order can never be contested again.
	if _, err := f.service.RaiseDispute(ctx, buyer, orderID, evidence); !errors.Is(err, domain.ErrDisputeAlreadyResolved) {
		t.Fatalf("re-raise after resolution: got %v", err)
	}
}

func TestDisputeRefundFailureKeepsDisputeOpen(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.deliveredOrder()

	f.advance(24 * time.Hour)
	evidence := []domain.EvidenceRef{{Filename: "defect.jpg"}}
	dispute, err := f.service.RaiseDispute(ctx, buyer, orderID, evidence)
	if err != nil {
		t.Fatalf("RaiseDispute: %v", err)
	}
	admin := Actor{SubjectID: "admin-1", Role: "admin"}
	if _, err := f.service.AssignResolver(ctx, admin, dispute.DisputeID, resolver.SubjectID); err != nil {
		t.Fatalf("AssignResolver: %v", err)
	}

	f.gateway.failRefunds = true
	input := ResolveDisputeInput{DisputeID: dispute.DisputeID, Outcome: domain.DisputeOutcomeRefundToBuyer}
	if _, err := f.service.ResolveDispute(ctx, resolver, input); !errors.Is(err, domain.ErrPaymentCaptureFailed) {
		t.Fatalf("refund failure: got %v", err)
	}
	stored, err := f.service.GetDispute(ctx, resolver, dispute.DisputeID)
	if err != nil {
		t.Fatalf("GetDispute: %v", err)
	}
	if stored.Status != domain.DisputeStatusUnderReview {
		t.Fatalf("dispute status after failure = %s", stored.Status)
	}

	f.gateway.failRefunds = false
	resolved, err := f.service.ResolveDispute(ctx, resolver, input)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if resolved.Outcome != domain.DisputeOutcomeRefundToBuyer {
		t.Fatalf("outcome = %s", resolved.Outcome)
	}
	status, err := f.service.GetOrderStatus(ctx, orderID)
	if err != nil {
		t.Fatalf("GetOrderStatus: %v", err)
	}
	if status.Order.State() != domain.OrderStateRefunded {
		t.Fatalf("order state = %s", status.Order.State())
	}
}

func TestDisputeGuards(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	evidence := []domain.EvidenceRef{{Filename: "defect.jpg"}}

	confirmed := f.deliveredOrder()
	if _, err := f.service.ConfirmDelivery(ctx, buyer, confirmed); err != nil {
		t.Fatalf("ConfirmDelivery: %v", err)
	}
	if _, err := f.service.RaiseDispute(ctx, buyer, confirmed, evidence); !errors.Is(err, domain.ErrOrderClosed) {
		t.Fatalf("dispute after confirmation: got %v", err)
	}

	expired := f.deliveredOrder()
	f.advance(domain.DisputeWindow + time.Hour)
	if _, err := f.service.RaiseDispute(ctx, buyer, expired, evidence); !errors.Is(err, domain.ErrDisputeWindowExpired) {
		t.Fatalf("dispute past window: got %v", err)
	}
}

func TestRaiseDisputeIsOnePerOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.deliveredOrder()
	evidence := []domain.EvidenceRef{{Filename: "defect.jpg"}}

	if _, err := f.service.RaiseDispute(ctx, buyer, orderID, evidence); err != nil {
		t.Fatalf("RaiseDispute: %v", err)
	}
	if _, err := f.service.RaiseDispute(ctx, buyer, orderID, evidence); !errors.Is(err, domain.ErrDisputeOpen) {
		t.Fatalf("second dispute: got %v", err)
	}
}
