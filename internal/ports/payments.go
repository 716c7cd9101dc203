package ports

import "context"

type CaptureRequest struct {
	Amount           int64
	Currency         string
	PaymentMethodRef string
	IdempotencyKey   string
}

type CaptureResult struct {
	Success    bool
	CaptureRef string
}

type RefundRequest struct {
	CaptureRef     string
	Amount         int64
	IdempotencyKey string
}

type RefundResult struct {
	Success   bool
	RefundRef string
}

// PaymentGateway is the abstract payment-capture capability. Calls may block
// on the external provider and must honor ctx deadlines; a timeout is
// reported as a capture failure, never as ambiguous state. Both operations
// are idempotent under the supplied idempotency key, which makes caller-side
// retry safe.
type PaymentGateway interface {
	Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
}
