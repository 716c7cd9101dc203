package postgres

import "time"

type eventModel struct {
	EventID            string    `gorm:"column:event_id;primaryKey"`
	OrganizerID        string    `gorm:"column:organizer_id"`
	Budget             *int64    `gorm:"column:budget"`
	Currency           string    `gorm:"column:currency"`
	DistributionMode   string    `gorm:"column:distribution_mode"`
	TargetParticipants int       `gorm:"column:target_participants"`
	Status             string    `gorm:"column:status"`
	Version            int64     `gorm:"column:version"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (eventModel) TableName() string { return "purchase_events" }

type contributionModel struct {
	EventID         string    `gorm:"column:event_id;primaryKey"`
	ParticipantID   string    `gorm:"column:participant_id;primaryKey"`
	JoinIndex       int       `gorm:"column:join_index"`
	CommittedAmount int64     `gorm:"column:committed_amount"`
	CapturedAmount  int64     `gorm:"column:captured_amount"`
	State           string    `gorm:"column:state"`
	IdempotencyKey  string    `gorm:"column:idempotency_key"`
	CaptureRef      string    `gorm:"column:capture_ref"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (contributionModel) TableName() string { return "contributions" }

type orderModel struct {
	OrderID          string     `gorm:"column:order_id;primaryKey"`
	BuyerID          string     `gorm:"column:buyer_id"`
	SellerID         string     `gorm:"column:seller_id"`
	EventID          string     `gorm:"column:event_id"`
	LineItems        string     `gorm:"column:line_items;type:jsonb"`
	TotalAmount      int64      `gorm:"column:total_amount"`
	Currency         string     `gorm:"column:currency"`
	PaymentStatus    string     `gorm:"column:payment_status"`
	ProductionStatus string     `gorm:"column:production_status"`
	DeliveryStatus   string     `gorm:"column:delivery_status"`
	EscrowStatus     string     `gorm:"column:escrow_status"`
	Cancelled        bool       `gorm:"column:cancelled"`
	PaymentMethodRef string     `gorm:"column:payment_method_ref"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
	DeliveredAt      *time.Time `gorm:"column:delivered_at"`
	SettledAt        *time.Time `gorm:"column:settled_at"`
	WindowWarnedAt   *time.Time `gorm:"column:window_warned_at"`
	Version          int64      `gorm:"column:version"`
}

func (orderModel) TableName() string { return "orders" }

type escrowModel struct {
	OrderID         string     `gorm:"column:order_id;primaryKey"`
	HeldAmount      int64      `gorm:"column:held_amount"`
	Currency        string     `gorm:"column:currency"`
	Status          string     `gorm:"column:status"`
	CaptureRef      string     `gorm:"column:capture_ref"`
	ReleasedAt      *time.Time `gorm:"column:released_at"`
	PartialReleases string     `gorm:"column:partial_releases;type:jsonb"`
	Version         int64      `gorm:"column:version"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (escrowModel) TableName() string { return "escrow_accounts" }

type disputeModel struct {
	DisputeID             string     `gorm:"column:dispute_id;primaryKey"`
	OrderID               string     `gorm:"column:order_id"`
	RaisedBy              string     `gorm:"column:raised_by"`
	RaisedAt              time.Time  `gorm:"column:raised_at"`
	Evidence              string     `gorm:"column:evidence;type:jsonb"`
	Status                string     `gorm:"column:status"`
	Outcome               string     `gorm:"column:outcome"`
	SplitBuyerBasisPoints int        `gorm:"column:split_buyer_basis_points"`
	ResolverID            string     `gorm:"column:resolver_id"`
	ResolvedAt            *time.Time `gorm:"column:resolved_at"`
	Version               int64      `gorm:"column:version"`
	UpdatedAt             time.Time  `gorm:"column:updated_at"`
}

func (disputeModel) TableName() string { return "disputes" }

type outboxModel struct {
	OutboxID       string     `gorm:"column:outbox_id;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (outboxModel) TableName() string { return "escrow_outbox" }

type idempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   *string   `gorm:"column:response_body;type:jsonb"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (idempotencyModel) TableName() string { return "escrow_idempotency" }
