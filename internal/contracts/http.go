package contracts

type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type CreateEventRequest struct {
	Budget             *int64 `json:"budget,omitempty"`
	Currency           string `json:"currency"`
	DistributionMode   string `json:"distribution_mode"`
	TargetParticipants int    `json:"target_participants"`
}

type EventResponse struct {
	EventID             string `json:"event_id"`
	OrganizerID         string `json:"organizer_id"`
	Budget              *int64 `json:"budget,omitempty"`
	Currency            string `json:"currency"`
	DistributionMode    string `json:"distribution_mode"`
	TargetParticipants  int    `json:"target_participants"`
	Status              string `json:"status"`
	PricePerParticipant int64  `json:"price_per_participant"`
	CapturedTotal       int64  `json:"captured_total"`
	ContributionCount   int    `json:"contribution_count"`
}

type JoinEventRequest struct {
	Amount           int64  `json:"amount"`
	PaymentMethodRef string `json:"payment_method_ref"`
}

type ContributionResponse struct {
	EventID         string `json:"event_id"`
	ParticipantID   string `json:"participant_id"`
	JoinIndex       int    `json:"join_index"`
	CommittedAmount int64  `json:"committed_amount"`
	CapturedAmount  int64  `json:"captured_amount"`
	State           string `json:"state"`
}

type LineItem struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type CreateOrderRequest struct {
	SellerID  string     `json:"seller_id"`
	EventID   string     `json:"event_id,omitempty"`
	LineItems []LineItem `json:"line_items"`
	Currency  string     `json:"currency"`
}

type AuthorizePaymentRequest struct {
	PaymentMethodRef string `json:"payment_method_ref"`
}

type PartialRelease struct {
	Amount      int64  `json:"amount"`
	RecipientID string `json:"recipient_id"`
	ReleasedAt  string `json:"released_at"`
}

type OrderStatusResponse struct {
	OrderID          string           `json:"order_id"`
	BuyerID          string           `json:"buyer_id"`
	SellerID         string           `json:"seller_id"`
	EventID          string           `json:"event_id,omitempty"`
	State            string           `json:"state"`
	PaymentStatus    string           `json:"payment_status"`
	ProductionStatus string           `json:"production_status"`
	DeliveryStatus   string           `json:"delivery_status"`
	EscrowStatus     string           `json:"escrow_status"`
	TotalAmount      int64            `json:"total_amount"`
	Currency         string           `json:"currency"`
	DeliveredAt      string           `json:"delivered_at,omitempty"`
	SettledAt        string           `json:"settled_at,omitempty"`
	WindowDeadline   string           `json:"window_deadline,omitempty"`
	HeldAmount       int64            `json:"held_amount"`
	RemainingAmount  int64            `json:"remaining_amount"`
	PartialReleases  []PartialRelease `json:"partial_releases,omitempty"`
}

type EvidenceRef struct {
	Filename string `json:"filename"`
	FileURL  string `json:"file_url"`
}

type RaiseDisputeRequest struct {
	Evidence []EvidenceRef `json:"evidence"`
}

type AssignResolverRequest struct {
	ResolverID string `json:"resolver_id"`
}

type ResolveDisputeRequest struct {
	Outcome               string `json:"outcome"`
	SplitBuyerBasisPoints int    `json:"split_buyer_basis_points,omitempty"`
}

type DisputeResponse struct {
	DisputeID             string        `json:"dispute_id"`
	OrderID               string        `json:"order_id"`
	RaisedBy              string        `json:"raised_by"`
	RaisedAt              string        `json:"raised_at"`
	Status                string        `json:"status"`
	Outcome               string        `json:"outcome"`
	SplitBuyerBasisPoints int           `json:"split_buyer_basis_points,omitempty"`
	ResolverID            string        `json:"resolver_id,omitempty"`
	ResolvedAt            string        `json:"resolved_at,omitempty"`
	Evidence              []EvidenceRef `json:"evidence"`
}
