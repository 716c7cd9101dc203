package http

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/makersrow/escrow-engine/internal/domain"
	"github.com/makersrow/escrow-engine/internal/ports"
)

// idempotencyMiddleware gives every keyed POST exactly-once response
// semantics at the edge: a replayed key returns the stored response, the same
// key with a different body is rejected, and an in-flight key conflicts
// instead of racing.
func idempotencyMiddleware(repo ports.IdempotencyRepository, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if repo == nil || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_input", "unreadable body", requestIDFromContext(r.Context()))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			requestHash := hashRequest(r.Method, r.URL.Path, body)
			scopedKey := r.URL.Path + ":" + key

			now := time.Now().UTC()
			record, err := repo.Get(r.Context(), scopedKey, now)
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, "persistence_unavailable", "idempotency store unavailable", requestIDFromContext(r.Context()))
				return
			}
			if record != nil {
				if record.RequestHash != requestHash {
					writeError(w, http.StatusConflict, "idempotency_conflict", "key reused with a different request", requestIDFromContext(r.Context()))
					return
				}
				if record.ResponseCode != 0 {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(record.ResponseCode)
					_, _ = w.Write(record.ResponseBody)
					return
				}
				writeError(w, http.StatusConflict, "idempotency_conflict", "request with this key is still in flight", requestIDFromContext(r.Context()))
				return
			}

			if err := repo.Reserve(r.Context(), scopedKey, requestHash, now.Add(ttl)); err != nil {
				if errors.Is(err, domain.ErrConflict) {
					writeError(w, http.StatusConflict, "idempotency_conflict", "request with this key is still in flight", requestIDFromContext(r.Context()))
					return
				}
				writeError(w, http.StatusServiceUnavailable, "persistence_unavailable", "idempotency store unavailable", requestIDFromContext(r.Context()))
				return
			}

			recorder := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			// Gateway-retryable failures drop the reservation so the client
			// can replay the same key.
			if recorder.status == http.StatusBadGateway || recorder.status == http.StatusServiceUnavailable {
				_ = repo.Delete(r.Context(), scopedKey)
				return
			}
			_ = repo.Complete(r.Context(), scopedKey, recorder.status, recorder.body.Bytes(), time.Now().UTC())
		})
	}
}

func hashRequest(method, path string, body []byte) string {
	sum := sha256.New()
	sum.Write([]byte(method))
	sum.Write([]byte(path))
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}
