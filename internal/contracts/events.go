package contracts

// Notification payloads carried through the outbox. Timestamps are RFC3339.

type OrderStatusChangedPayload struct {
	OrderID   string `json:"order_id"`
	BuyerID   string `json:"buyer_id"`
	SellerID  string `json:"seller_id"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	ChangedAt string `json:"changed_at"`
}

type WindowExpiringPayload struct {
	OrderID        string `json:"order_id"`
	BuyerID        string `json:"buyer_id"`
	WindowDeadline string `json:"window_deadline"`
}

type EscrowHeldPayload struct {
	OrderID    string `json:"order_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	CaptureRef string `json:"capture_ref"`
	HeldAt     string `json:"held_at"`
}

type EscrowReleasedPayload struct {
	OrderID     string `json:"order_id"`
	Amount      int64  `json:"amount"`
	RecipientID string `json:"recipient_id"`
	ReleasedAt  string `json:"released_at"`
}

type EscrowRefundedPayload struct {
	OrderID    string `json:"order_id"`
	Amount     int64  `json:"amount"`
	RefundedAt string `json:"refunded_at"`
}

type DisputeRaisedPayload struct {
	DisputeID string `json:"dispute_id"`
	OrderID   string `json:"order_id"`
	RaisedBy  string `json:"raised_by"`
	RaisedAt  string `json:"raised_at"`
}

type DisputeResolvedPayload struct {
	DisputeID  string `json:"dispute_id"`
	OrderID    string `json:"order_id"`
	Outcome    string `json:"outcome"`
	ResolverID string `json:"resolver_id"`
	ResolvedAt string `json:"resolved_at"`
}

type ContributionCapturedPayload struct {
	EventID       string `json:"event_id"`
	ParticipantID string `json:"participant_id"`
	Amount        int64  `json:"amount"`
	CapturedAt    string `json:"captured_at"`
}

type ContributionRefundedPayload struct {
	EventID       string `json:"event_id"`
	ParticipantID string `json:"participant_id"`
	Amount        int64  `json:"amount"`
	RefundedAt    string `json:"refunded_at"`
}

type EventCancelledPayload struct {
	EventID     string `json:"event_id"`
	OrganizerID string `json:"organizer_id"`
	CancelledAt string `json:"cancelled_at"`
}
