package application

import (
	"log/slog"
	"time"

	"github.com/makersrow/escrow-engine/internal/domain"
	"github.com/makersrow/escrow-engine/internal/ports"
)

type Config struct {
	ServiceName           string
	WindowWarnLead        time.Duration
	ContributionTolerance int64
	DepositFraction       float64
	PaymentCaptureTimeout time.Duration
	IdempotencyTTL        time.Duration
	SweepBatchSize        int
	SweepConcurrency      int
}

type Actor struct {
	SubjectID      string
	Role           string
	RequestID      string
	IdempotencyKey string
}

type CreateEventInput struct {
	Budget             *int64
	Currency           string
	DistributionMode   string
	TargetParticipants int
}

type JoinEventInput struct {
	EventID          string
	Amount           int64
	PaymentMethodRef string
}

type CreateOrderInput struct {
	SellerID  string
	EventID   string
	LineItems []domain.LineItem
	Currency  string
}

type ResolveDisputeInput struct {
	DisputeID             string
	Outcome               string
	SplitBuyerBasisPoints int
}

// EventSummary pairs an event with its contribution ledger view.
type EventSummary struct {
	Event         domain.Event
	Contributions []domain.Contribution
	CapturedTotal int64
}

// OrderView pairs an order with its escrow account for status reads.
type OrderView struct {
	Order  domain.Order
	Escrow domain.EscrowAccount
}

type Service struct {
	cfg    Config
	logger *slog.Logger

	events        ports.EventRepository
	contributions ports.ContributionRepository
	orders        ports.OrderRepository
	escrows       ports.EscrowRepository
	disputes      ports.DisputeRepository
	idempotency   ports.IdempotencyRepository
	outbox        ports.OutboxRepository

	gateway ports.PaymentGateway
	locker  ports.EntityLocker

	nowFn func() time.Time
}

type Dependencies struct {
	Config Config
	Logger *slog.Logger

	Events        ports.EventRepository
	Contributions ports.ContributionRepository
	Orders        ports.OrderRepository
	Escrows       ports.EscrowRepository
	Disputes      ports.DisputeRepository
	Idempotency   ports.IdempotencyRepository
	Outbox        ports.OutboxRepository

	Gateway ports.PaymentGateway
	Locker  ports.EntityLocker
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "escrow-engine"
	}
	if cfg.WindowWarnLead <= 0 {
		cfg.WindowWarnLead = 24 * time.Hour
	}
	if cfg.DepositFraction <= 0 || cfg.DepositFraction > 1 {
		cfg.DepositFraction = 0.2
	}
	if cfg.PaymentCaptureTimeout <= 0 {
		cfg.PaymentCaptureTimeout = 10 * time.Second
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 200
	}
	if cfg.SweepConcurrency <= 0 {
		cfg.SweepConcurrency = 8
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	locker := deps.Locker
	if locker == nil {
		locker = NewKeyedLocker()
	}
	return &Service{
		cfg:           cfg,
		logger:        logger,
		events:        deps.Events,
		contributions: deps.Contributions,
		orders:        deps.Orders,
		escrows:       deps.Escrows,
		disputes:      deps.Disputes,
		idempotency:   deps.Idempotency,
		outbox:        deps.Outbox,
		gateway:       deps.Gateway,
		locker:        locker,
		nowFn:         func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the service clock. Tests drive window expiry with it.
func (s *Service) WithNow(nowFn func() time.Time) *Service {
	s.nowFn = nowFn
	return s
}

func eventLockKey(eventID string) string { return "event:" + eventID }
func orderLockKey(orderID string) string { return "order:" + orderID }

func isStaffRole(role string) bool {
	switch role {
	case "resolver", "admin":
		return true
	default:
		return false
	}
}
