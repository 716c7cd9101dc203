package domain

import "time"

const (
	EscrowStatusNone     = "none"
	EscrowStatusHeld     = "held"
	EscrowStatusReleased = "released"
	EscrowStatusDisputed = "disputed"
	EscrowStatusRefunded = "refunded"
)

// PartialRelease is one disbursement out of a held amount.
type PartialRelease struct {
	Amount      int64     `json:"amount"`
	RecipientID string    `json:"recipient_id"`
	ReleasedAt  time.Time `json:"released_at"`
}

// EscrowAccount holds the captured funds of exactly one order. Accounting is
// monotone: once an amount is released or refunded it never re-enters the
// account, which keeps the held-minus-released >= 0 invariant cheap to check
// on every write instead of re-deriving state from history.
type EscrowAccount struct {
	OrderID         string
	HeldAmount      int64
	Currency        string
	Status          string
	CaptureRef      string
	ReleasedAt      *time.Time
	PartialReleases []PartialRelease
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewEscrowAccount(orderID, currency string, at time.Time) EscrowAccount {
	return EscrowAccount{
		OrderID:   orderID,
		Currency:  currency,
		Status:    EscrowStatusNone,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// ReleasedTotal sums all partial releases.
func (a *EscrowAccount) ReleasedTotal() int64 {
	var total int64
	for _, p := range a.PartialReleases {
		total += p.Amount
	}
	return total
}

// Remaining is the amount still held: HeldAmount minus all releases.
func (a *EscrowAccount) Remaining() int64 {
	return a.HeldAmount - a.ReleasedTotal()
}

// Hold captures funds into the account. Allowed exactly once.
func (a *EscrowAccount) Hold(amount int64, captureRef string, at time.Time) error {
	if amount <= 0 {
		return ErrInvalidInput
	}
	if a.Status != EscrowStatusNone {
		return ErrAlreadyHeld
	}
	a.HeldAmount = amount
	a.CaptureRef = captureRef
	a.Status = EscrowStatusHeld
	a.UpdatedAt = at
	return a.CheckInvariant()
}

// Release disburses the full remaining balance to recipient and closes the
// account. Forbidden while a dispute is pending.
func (a *EscrowAccount) Release(recipientID string, at time.Time) error {
	switch a.Status {
	case EscrowStatusDisputed:
		return ErrDisputeOpen
	case EscrowStatusReleased, EscrowStatusRefunded:
		return ErrEscrowClosed
	case EscrowStatusNone:
		return ErrEscrowNotHeld
	}
	remaining := a.Remaining()
	if remaining > 0 {
		a.PartialReleases = append(a.PartialReleases, PartialRelease{
			Amount:      remaining,
			RecipientID: recipientID,
			ReleasedAt:  at,
		})
	}
	a.Status = EscrowStatusReleased
	a.ReleasedAt = &at
	a.UpdatedAt = at
	return a.CheckInvariant()
}

// PartialReleaseTo disburses part of the held amount without closing the
// account. The amount must not drive held-minus-released below zero.
func (a *EscrowAccount) PartialReleaseTo(amount int64, recipientID string, at time.Time) error {
	if amount <= 0 {
		return ErrInvalidInput
	}
	switch a.Status {
	case EscrowStatusDisputed:
		return ErrDisputeOpen
	case EscrowStatusReleased, EscrowStatusRefunded:
		return ErrEscrowClosed
	case EscrowStatusNone:
		return ErrEscrowNotHeld
	}
	if amount > a.Remaining() {
		return ErrInsufficientEscrow
	}
	a.PartialReleases = append(a.PartialReleases, PartialRelease{
		Amount:      amount,
		RecipientID: recipientID,
		ReleasedAt:  at,
	})
	a.UpdatedAt = at
	return a.CheckInvariant()
}

// Refund returns the full remaining balance to the payer. Forbidden once the
// account has been fully released.
func (a *EscrowAccount) Refund(at time.Time) error {
	switch a.Status {
	case EscrowStatusReleased, EscrowStatusRefunded:
		return ErrEscrowClosed
	case EscrowStatusNone:
		return ErrEscrowNotHeld
	case EscrowStatusDisputed:
		return ErrDisputeOpen
	}
	a.Status = EscrowStatusRefunded
	a.UpdatedAt = at
	return a.CheckInvariant()
}

// Freeze suspends releases while a dispute is pending. Idempotent.
func (a *EscrowAccount) Freeze(at time.Time) error {
	switch a.Status {
	case EscrowStatusDisputed:
		return nil
	case EscrowStatusHeld:
		a.Status = EscrowStatusDisputed
		a.UpdatedAt = at
		return nil
	default:
		return ErrEscrowNotHeld
	}
}

// Unfreeze applies a dispute outcome to a frozen account. splitBuyerBP is the
// buyer's share of the held amount in basis points; the seller receives the
// exact remainder so the two partial releases always sum to the held amount.
func (a *EscrowAccount) Unfreeze(outcome string, buyerID, sellerID string, splitBuyerBP int, at time.Time) error {
	if a.Status != EscrowStatusDisputed {
		return ErrConflict
	}
	switch outcome {
	case DisputeOutcomeReleaseToSeller:
		a.Status = EscrowStatusHeld
		return a.Release(sellerID, at)
	case DisputeOutcomeRefundToBuyer:
		a.Status = EscrowStatusHeld
		return a.Refund(at)
	case DisputeOutcomeSplit:
		if splitBuyerBP < 0 || splitBuyerBP > 10000 {
			return ErrInvalidInput
		}
		a.Status = EscrowStatusHeld
		remaining := a.Remaining()
		buyerAmount := remaining * int64(splitBuyerBP) / 10000
		sellerAmount := remaining - buyerAmount
		if buyerAmount > 0 {
			if err := a.PartialReleaseTo(buyerAmount, buyerID, at); err != nil {
				return err
			}
		}
		if sellerAmount > 0 {
			if err := a.PartialReleaseTo(sellerAmount, sellerID, at); err != nil {
				return err
			}
		}
		a.Status = EscrowStatusReleased
		a.ReleasedAt = &at
		a.UpdatedAt = at
		return a.CheckInvariant()
	default:
		return ErrInvalidInput
	}
}

// CheckInvariant verifies the monotone accounting rule. A failure here is an
// internal fault that must abort the write and reach alerting.
func (a *EscrowAccount) CheckInvariant() error {
	if a.Remaining() < 0 {
		return ErrInvariantViolation
	}
	return nil
}
