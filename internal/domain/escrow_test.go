package domain

import (
	"errors"
	"testing"
	"time"
)

func heldAccount(t *testing.T, amount int64) *EscrowAccount {
	t.Helper()
	now := time.Now().UTC()
	account := NewEscrowAccount("ord-1", "USD", now)
	if err := account.Hold(amount, "cap-1", now); err != nil {
		t.Fatalf("Hold: %v", err)
	}
	return &account
}

func TestEscrowHoldIsAllowedExactlyOnce(t *testing.T) {
	t.Parallel()
	account := heldAccount(t, 40000)
	if err := account.Hold(100, "cap-2", time.Now().UTC()); !errors.Is(err, ErrAlreadyHeld) {
		t.Fatalf("second hold: got %v", err)
	}
	if account.HeldAmount != 40000 || account.CaptureRef != "cap-1" {
		t.Fatalf("second hold mutated the account: %+v", account)
	}
}

func TestEscrowReleaseClosesAccount(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	account := heldAccount(t, 40000)
	if err := account.Release("seller-1", now); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if account.Status != EscrowStatusReleased {
		t.Fatalf("status = %s", account.Status)
	}
	if account.Remaining() != 0 {
		t.Fatalf("remaining = %d after release", account.Remaining())
	}
	if err := account.Release("seller-1", now); !errors.Is(err, ErrEscrowClosed) {
		t.Fatalf("release after close: got %v", err)
	}
	if err := account.Refund(now); !errors.Is(err, ErrEscrowClosed) {
		t.Fatalf("refund after release: got %v", err)
	}
}

func TestEscrowPartialReleaseRespectsRemaining(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	account := heldAccount(t, 40000)
	if err := account.PartialReleaseTo(15000, "seller-1", now); err != nil {
		t.Fatalf("partial release: %v", err)
	}
	if account.Remaining() != 25000 {
		t.Fatalf("remaining = %d, want 25000", account.Remaining())
	}
	if err := account.PartialReleaseTo(25001, "seller-1", now); !errors.Is(err, ErrInsufficientEscrow) {
		t.Fatalf("over-release: got %v", err)
	}
	if err := account.CheckInvariant(); err != nil {
		t.Fatalf("invariant: %v", err)
	}
}

func TestEscrowRefundBlockedWhileDisputed(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	account := heldAccount(t, 40000)
	if err := account.Freeze(now); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if err := account.Freeze(now); err != nil {
		t.Fatalf("Freeze is not idempotent: %v", err)
	}
	if err := account.Refund(now); !errors.Is(err, ErrDisputeOpen) {
		t.Fatalf("refund while disputed: got %v", err)
	}
	if err := account.Release("seller-1", now); !errors.Is(err, ErrDisputeOpen) {
		t.Fatalf("release while disputed: got %v", err)
	}
}

func TestEscrowUnfreezeSplitSumsExactly(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	account := heldAccount(t, 40000)
	if err := account.Freeze(now); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if err := account.Unfreeze(DisputeOutcomeSplit, "buyer-1", "seller-1", 5000, now); err != nil {
		t.Fatalf("Unfreeze: %v", err)
	}
	if len(account.PartialReleases) != 2 {
		t.Fatalf("partial releases = %d, want 2", len(account.PartialReleases))
	}
	buyer, seller := account.PartialReleases[0], account.PartialReleases[1]
	if buyer.RecipientID != "buyer-1" || buyer.Amount != 20000 {
		t.Fatalf("buyer release = %+v", buyer)
	}
	if seller.RecipientID != "seller-1" || seller.Amount != 20000 {
		t.Fatalf("seller release = %+v", seller)
	}
	if account.Remaining() != 0 {
		t.Fatalf("remaining = %d after split", account.Remaining())
	}
	if account.Status != EscrowStatusReleased {
		t.Fatalf("status = %s after split", account.Status)
	}
}

func TestEscrowUnfreezeSplitOddAmountGivesSellerRemainder(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	account := heldAccount(t, 33333)
	if err := account.Freeze(now); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if err := account.Unfreeze(DisputeOutcomeSplit, "buyer-1", "seller-1", 5000, now); err != nil {
		t.Fatalf("Unfreeze: %v", err)
	}
	// 33333 * 5000 / 10000 = 16666 to the buyer, the odd unit to the seller.
	if account.PartialReleases[0].Amount != 16666 || account.PartialReleases[1].Amount != 16667 {
		t.Fatalf("split = %d/%d", account.PartialReleases[0].Amount, account.PartialReleases[1].Amount)
	}
	if account.Remaining() != 0 {
		t.Fatalf("remaining = %d", account.Remaining())
	}
}

func TestEscrowUnfreezeRefundAndRelease(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	refunded := heldAccount(t, 1000)
	_ = refunded.Freeze(now)
	if err := refunded.Unfreeze(DisputeOutcomeRefundToBuyer, "buyer-1", "seller-1", 0, now); err != nil {
		t.Fatalf("Unfreeze refund: %v", err)
	}
	if refunded.Status != EscrowStatusRefunded {
		t.Fatalf("status = %s, want refunded", refunded.Status)
	}

	released := heldAccount(t, 1000)
	_ = released.Freeze(now)
	if err := released.Unfreeze(DisputeOutcomeReleaseToSeller, "buyer-1", "seller-1", 0, now); err != nil {
		t.Fatalf("Unfreeze release: %v", err)
	}
	if released.Status != EscrowStatusReleased || released.Remaining() != 0 {
		t.Fatalf("release outcome: status=%s remaining=%d", released.Status, released.Remaining())
	}

	held := heldAccount(t, 1000)
	if err := held.Unfreeze(DisputeOutcomeReleaseToSeller, "buyer-1", "seller-1", 0, now); !errors.Is(err, ErrConflict) {
		t.Fatalf("unfreeze without freeze: got %v", err)
	}
}
