package domain

import "time"

const (
	PaymentStatusPending    = "pending"
	PaymentStatusAuthorized = "authorized"
	PaymentStatusCaptured   = "captured"
	PaymentStatusRefunded   = "refunded"
)

const (
	ProductionStatusNotStarted = "not_started"
	ProductionStatusInProgress = "in_progress"
	ProductionStatusCompleted  = "completed"
)

const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusShipped   = "shipped"
	DeliveryStatusDelivered = "delivered"
)

// Composite lifecycle states derived from the three sub-states plus escrow.
const (
	OrderStateCreated           = "created"
	OrderStatePaymentAuthorized = "payment_authorized"
	OrderStatePaymentCaptured   = "payment_captured"
	OrderStateInProduction      = "in_production"
	OrderStateShipped           = "shipped"
	OrderStateDelivered         = "delivered"
	OrderStateSettled           = "settled"
	OrderStateDisputed          = "disputed"
	OrderStateRefunded          = "refunded"
	OrderStateCancelled         = "cancelled"
)

// DisputeWindow is the fixed period after delivery during which the buyer may
// contest the order before escrow auto-releases to the seller.
const DisputeWindow = 30 * 24 * time.Hour

type LineItem struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// Order is one commercial transaction tied to zero-or-one event. Its
// composite status is always derived via State(); callers never assemble
// status fields by hand.
type Order struct {
	OrderID          string
	BuyerID          string
	SellerID         string
	EventID          string
	LineItems        []LineItem
	TotalAmount      int64
	Currency         string
	PaymentStatus    string
	ProductionStatus string
	DeliveryStatus   string
	EscrowStatus     string
	Cancelled        bool
	PaymentMethodRef string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeliveredAt      *time.Time
	SettledAt        *time.Time
	WindowWarnedAt   *time.Time
	Version          int64
}

func NewOrder(orderID, buyerID, sellerID, eventID string, items []LineItem, total int64, currency string, at time.Time) Order {
	return Order{
		OrderID:          orderID,
		BuyerID:          buyerID,
		SellerID:         sellerID,
		EventID:          eventID,
		LineItems:        items,
		TotalAmount:      total,
		Currency:         currency,
		PaymentStatus:    PaymentStatusPending,
		ProductionStatus: ProductionStatusNotStarted,
		DeliveryStatus:   DeliveryStatusPending,
		EscrowStatus:     EscrowStatusNone,
		CreatedAt:        at,
		UpdatedAt:        at,
	}
}

// State derives the composite lifecycle view. This is the single source of
// truth for an order's status.
func (o Order) State() string {
	switch {
	case o.Cancelled:
		return OrderStateCancelled
	case o.PaymentStatus == PaymentStatusRefunded:
		return OrderStateRefunded
	case o.EscrowStatus == EscrowStatusDisputed:
		return OrderStateDisputed
	case o.SettledAt != nil:
		return OrderStateSettled
	case o.DeliveryStatus == DeliveryStatusDelivered:
		return OrderStateDelivered
	case o.DeliveryStatus == DeliveryStatusShipped:
		return OrderStateShipped
	case o.ProductionStatus == ProductionStatusInProgress:
		return OrderStateInProduction
	case o.PaymentStatus == PaymentStatusCaptured:
		return OrderStatePaymentCaptured
	case o.PaymentStatus == PaymentStatusAuthorized:
		return OrderStatePaymentAuthorized
	default:
		return OrderStateCreated
	}
}

// Closed reports whether the order accepts no further transitions.
func (o Order) Closed() bool {
	return o.Cancelled || o.PaymentStatus == PaymentStatusRefunded
}

func (o *Order) guard() error {
	if o.Closed() {
		return ErrOrderClosed
	}
	return nil
}

func (o *Order) Authorize(paymentMethodRef string, at time.Time) error {
	if err := o.guard(); err != nil {
		return err
	}
	if o.PaymentStatus != PaymentStatusPending {
		return ErrInvalidTransition
	}
	o.PaymentStatus = PaymentStatusAuthorized
	o.PaymentMethodRef = paymentMethodRef
	o.UpdatedAt = at
	return nil
}

// MarkCaptured records a successful escrow hold. On capture failure the
// order stays payment_authorized and the call is retried by the buyer.
func (o *Order) MarkCaptured(at time.Time) error {
	if err := o.guard(); err != nil {
		return err
	}
	if o.PaymentStatus != PaymentStatusAuthorized {
		return ErrInvalidTransition
	}
	o.PaymentStatus = PaymentStatusCaptured
	o.EscrowStatus = EscrowStatusHeld
	o.UpdatedAt = at
	return nil
}

func (o *Order) StartProduction(at time.Time) error {
	if err := o.guard(); err != nil {
		return err
	}
	if o.PaymentStatus != PaymentStatusCaptured || o.ProductionStatus != ProductionStatusNotStarted {
		return ErrInvalidTransition
	}
	o.ProductionStatus = ProductionStatusInProgress
	o.UpdatedAt = at
	return nil
}

func (o *Order) MarkShipped(at time.Time) error {
	if err := o.guard(); err != nil {
		return err
	}
	if o.ProductionStatus != ProductionStatusInProgress || o.DeliveryStatus != DeliveryStatusPending {
		return ErrInvalidTransition
	}
	o.ProductionStatus = ProductionStatusCompleted
	o.DeliveryStatus = DeliveryStatusShipped
	o.UpdatedAt = at
	return nil
}

// MarkDelivered records delivery and starts the dispute-window clock.
func (o *Order) MarkDelivered(at time.Time) error {
	if err := o.guard(); err != nil {
		return err
	}
	if o.DeliveryStatus != DeliveryStatusShipped {
		return ErrInvalidTransition
	}
	o.DeliveryStatus = DeliveryStatusDelivered
	o.DeliveredAt = &at
	o.UpdatedAt = at
	return nil
}

// Settle closes the order in the seller's favor. It is reached either by
// explicit buyer confirmation or by the window sweep; whichever applies
// first wins and the other becomes a no-op via the state check here.
func (o *Order) Settle(at time.Time) error {
	if err := o.guard(); err != nil {
		return err
	}
	if o.SettledAt != nil {
		return ErrConflict
	}
	if o.DeliveryStatus != DeliveryStatusDelivered {
		return ErrInvalidTransition
	}
	if o.EscrowStatus == EscrowStatusDisputed {
		return ErrDisputeOpen
	}
	o.SettledAt = &at
	o.EscrowStatus = EscrowStatusReleased
	o.UpdatedAt = at
	return nil
}

// Cancel is reachable from any pre-shipped state.
func (o *Order) Cancel(at time.Time) error {
	if err := o.guard(); err != nil {
		return err
	}
	if o.DeliveryStatus != DeliveryStatusPending {
		return ErrInvalidTransition
	}
	o.Cancelled = true
	o.UpdatedAt = at
	return nil
}

// MarkRefunded records that held funds went back to the buyer, closing the
// order.
func (o *Order) MarkRefunded(at time.Time) error {
	if o.PaymentStatus == PaymentStatusRefunded {
		return ErrConflict
	}
	o.PaymentStatus = PaymentStatusRefunded
	o.EscrowStatus = EscrowStatusRefunded
	o.UpdatedAt = at
	return nil
}

// WindowDeadline is the instant the dispute window closes. The second return
// is false until delivery is recorded.
func (o Order) WindowDeadline() (time.Time, bool) {
	if o.DeliveredAt == nil {
		return time.Time{}, false
	}
	return o.DeliveredAt.Add(DisputeWindow), true
}

// WithinDisputeWindow reports whether now falls inside the open window.
func (o Order) WithinDisputeWindow(now time.Time) bool {
	deadline, ok := o.WindowDeadline()
	if !ok {
		return false
	}
	return !now.After(deadline)
}

// WindowElapsed reports whether the sweep may auto-settle: delivered, not yet
// settled, and the window deadline passed.
func (o Order) WindowElapsed(now time.Time) bool {
	deadline, ok := o.WindowDeadline()
	if !ok {
		return false
	}
	return o.SettledAt == nil && now.After(deadline)
}
