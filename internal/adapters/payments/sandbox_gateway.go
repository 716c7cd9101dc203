package payments

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/makersrow/escrow-engine/internal/ports"
)

// SandboxGateway approves everything and fabricates capture refs. It backs
// local runs with no provider configured and remembers refs per idempotency
// key so replays return the same result.
type SandboxGateway struct {
	mu   sync.Mutex
	refs map[string]string
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{refs: map[string]string{}}
}

func (g *SandboxGateway) Capture(_ context.Context, req ports.CaptureRequest) (ports.CaptureResult, error) {
	return ports.CaptureResult{Success: true, CaptureRef: g.ref("cap", req.IdempotencyKey)}, nil
}

func (g *SandboxGateway) Refund(_ context.Context, req ports.RefundRequest) (ports.RefundResult, error) {
	return ports.RefundResult{Success: true, RefundRef: g.ref("ref", req.IdempotencyKey)}, nil
}

func (g *SandboxGateway) ref(prefix, key string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	mapKey := prefix + ":" + key
	if existing, ok := g.refs[mapKey]; ok {
		return existing
	}
	ref := prefix + "_" + uuid.NewString()
	g.refs[mapKey] = ref
	return ref
}
