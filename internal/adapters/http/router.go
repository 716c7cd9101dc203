package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/makersrow/escrow-engine/internal/ports"
)

type RouterConfig struct {
	JWTSecret      string
	Idempotency    ports.IdempotencyRepository
	IdempotencyTTL time.Duration
}

func NewRouter(handler *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ok", nil) })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ready", nil) })
	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(cfg.JWTSecret))
			r.Use(idempotencyMiddleware(cfg.Idempotency, cfg.IdempotencyTTL))

			r.Post("/events", handler.createEvent)
			r.Get("/events/{eventID}", handler.getEvent)
			r.Post("/events/{eventID}/open", handler.openEvent)
			r.Post("/events/{eventID}/join", handler.joinEvent)
			r.Post("/events/{eventID}/withdraw", handler.withdrawContribution)
			r.Post("/events/{eventID}/lock", handler.lockEvent)
			r.Post("/events/{eventID}/complete", handler.completeEvent)
			r.Post("/events/{eventID}/cancel", handler.cancelEvent)

			r.Post("/orders", handler.createOrder)
			r.Get("/orders/{orderID}", handler.getOrderStatus)
			r.Post("/orders/{orderID}/authorize", handler.authorizePayment)
			r.Post("/orders/{orderID}/capture", handler.capturePayment)
			r.Post("/orders/{orderID}/production/start", handler.startProduction)
			r.Post("/orders/{orderID}/ship", handler.markShipped)
			r.Post("/orders/{orderID}/deliver", handler.markDelivered)
			r.Post("/orders/{orderID}/confirm", handler.confirmDelivery)
			r.Post("/orders/{orderID}/cancel", handler.cancelOrder)

			r.Post("/orders/{orderID}/disputes", handler.raiseDispute)
			r.Get("/disputes/{disputeID}", handler.getDispute)
			r.Post("/disputes/{disputeID}/assign", handler.assignResolver)
			r.Post("/disputes/{disputeID}/resolve", handler.resolveDispute)
		})
	})
	return r
}
