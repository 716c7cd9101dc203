// Package payments holds the PSP-facing gateway clients. The engine never
// talks to a payment provider except through ports.PaymentGateway.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/makersrow/escrow-engine/internal/ports"
)

// HTTPGateway calls an external payment provider over its JSON API. Captures
// and refunds carry the caller's idempotency key so provider-side retries are
// safe; any transport error or non-2xx answer is a plain failure the caller
// maps to its own retryable error.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type captureBody struct {
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	PaymentMethodRef string `json:"payment_method_ref"`
}

type captureReply struct {
	Status     string `json:"status"`
	CaptureRef string `json:"capture_ref"`
}

func (g *HTTPGateway) Capture(ctx context.Context, req ports.CaptureRequest) (ports.CaptureResult, error) {
	var reply captureReply
	err := g.post(ctx, "/v1/captures", req.IdempotencyKey, captureBody{
		Amount:           req.Amount,
		Currency:         req.Currency,
		PaymentMethodRef: req.PaymentMethodRef,
	}, &reply)
	if err != nil {
		return ports.CaptureResult{}, err
	}
	return ports.CaptureResult{
		Success:    reply.Status == "succeeded",
		CaptureRef: reply.CaptureRef,
	}, nil
}

type refundBody struct {
	CaptureRef string `json:"capture_ref"`
	Amount     int64  `json:"amount"`
}

type refundReply struct {
	Status    string `json:"status"`
	RefundRef string `json:"refund_ref"`
}

func (g *HTTPGateway) Refund(ctx context.Context, req ports.RefundRequest) (ports.RefundResult, error) {
	var reply refundReply
	err := g.post(ctx, "/v1/refunds", req.IdempotencyKey, refundBody{
		CaptureRef: req.CaptureRef,
		Amount:     req.Amount,
	}, &reply)
	if err != nil {
		return ports.RefundResult{}, err
	}
	return ports.RefundResult{
		Success:   reply.Status == "succeeded",
		RefundRef: reply.RefundRef,
	}, nil
}

func (g *HTTPGateway) post(ctx context.Context, path, idempotencyKey string, body, reply any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal gateway request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway call %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logger.WarnContext(ctx, "gateway rejected request", "path", path, "status", resp.StatusCode)
		return fmt.Errorf("gateway call %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(reply); err != nil {
		return fmt.Errorf("decode gateway reply %s: %w", path, err)
	}
	return nil
}
