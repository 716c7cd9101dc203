package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/makersrow/escrow-engine/internal/application"
	"github.com/makersrow/escrow-engine/internal/contracts"
	"github.com/makersrow/escrow-engine/internal/domain"
)

type Handler struct{ service *application.Service }

func NewHandler(service *application.Service) *Handler { return &Handler{service: service} }

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, c := mapDomainError(err)
	writeError(w, code, c, err.Error(), requestIDFromContext(r.Context()))
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context()))
		return false
	}
	return true
}

// --- events ---

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	var req contracts.CreateEventRequest
	if !decode(w, r, &req) {
		return
	}
	event, err := h.service.CreateEvent(r.Context(), actorFromContext(r.Context()), application.CreateEventInput{
		Budget:             req.Budget,
		Currency:           req.Currency,
		DistributionMode:   req.DistributionMode,
		TargetParticipants: req.TargetParticipants,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "event created", toEventResponse(event, nil))
}

func (h *Handler) openEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.OpenEvent(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "eventID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "event opened", toEventResponse(event, nil))
}

func (h *Handler) joinEvent(w http.ResponseWriter, r *http.Request) {
	var req contracts.JoinEventRequest
	if !decode(w, r, &req) {
		return
	}
	contribution, err := h.service.JoinEvent(r.Context(), actorFromContext(r.Context()), application.JoinEventInput{
		EventID:          chi.URLParam(r, "eventID"),
		Amount:           req.Amount,
		PaymentMethodRef: req.PaymentMethodRef,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "contribution captured", toContributionResponse(contribution))
}

func (h *Handler) withdrawContribution(w http.ResponseWriter, r *http.Request) {
	contribution, err := h.service.WithdrawContribution(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "eventID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "contribution withdrawn", toContributionResponse(contribution))
}

func (h *Handler) lockEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.LockEvent(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "eventID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "event locked", toEventResponse(event, nil))
}

func (h *Handler) completeEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.CompleteEvent(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "eventID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "event completed", toEventResponse(event, nil))
}

func (h *Handler) cancelEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.CancelEvent(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "eventID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "event cancelled", toEventResponse(event, nil))
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "event", toEventResponse(summary.Event, &summary))
}

// --- orders ---

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req contracts.CreateOrderRequest
	if !decode(w, r, &req) {
		return
	}
	items := make([]domain.LineItem, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		items = append(items, domain.LineItem{Name: item.Name, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	view, err := h.service.CreateOrder(r.Context(), actorFromContext(r.Context()), application.CreateOrderInput{
		SellerID:  req.SellerID,
		EventID:   req.EventID,
		LineItems: items,
		Currency:  req.Currency,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "order created", toOrderStatusResponse(view))
}

func (h *Handler) authorizePayment(w http.ResponseWriter, r *http.Request) {
	var req contracts.AuthorizePaymentRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := h.service.AuthorizePayment(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "orderID"), req.PaymentMethodRef)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "payment authorized", toOrderStatusResponse(view))
}

func (h *Handler) capturePayment(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.CapturePayment(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "payment captured", toOrderStatusResponse(view))
}

func (h *Handler) startProduction(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.StartProduction(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "production started", toOrderStatusResponse(view))
}

func (h *Handler) markShipped(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.MarkShipped(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "order shipped", toOrderStatusResponse(view))
}

func (h *Handler) markDelivered(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.MarkDelivered(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "order delivered", toOrderStatusResponse(view))
}

func (h *Handler) confirmDelivery(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ConfirmDelivery(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "delivery confirmed", toOrderStatusResponse(view))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.CancelOrder(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "order cancelled", toOrderStatusResponse(view))
}

func (h *Handler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetOrderStatus(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "order status", toOrderStatusResponse(view))
}

// --- disputes ---

func (h *Handler) raiseDispute(w http.ResponseWriter, r *http.Request) {
	var req contracts.RaiseDisputeRequest
	if !decode(w, r, &req) {
		return
	}
	evidence := make([]domain.EvidenceRef, 0, len(req.Evidence))
	for _, e := range req.Evidence {
		evidence = append(evidence, domain.EvidenceRef{Filename: e.Filename, FileURL: e.FileURL})
	}
	dispute, err := h.service.RaiseDispute(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "orderID"), evidence)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "dispute raised", toDisputeResponse(dispute))
}

func (h *Handler) assignResolver(w http.ResponseWriter, r *http.Request) {
	var req contracts.AssignResolverRequest
	if !decode(w, r, &req) {
		return
	}
	dispute, err := h.service.AssignResolver(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "disputeID"), req.ResolverID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "resolver assigned", toDisputeResponse(dispute))
}

func (h *Handler) resolveDispute(w http.ResponseWriter, r *http.Request) {
	var req contracts.ResolveDisputeRequest
	if !decode(w, r, &req) {
		return
	}
	dispute, err := h.service.ResolveDispute(r.Context(), actorFromContext(r.Context()), application.ResolveDisputeInput{
		DisputeID:             chi.URLParam(r, "disputeID"),
		Outcome:               req.Outcome,
		SplitBuyerBasisPoints: req.SplitBuyerBasisPoints,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "dispute resolved", toDisputeResponse(dispute))
}

func (h *Handler) getDispute(w http.ResponseWriter, r *http.Request) {
	dispute, err := h.service.GetDispute(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "disputeID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "dispute", toDisputeResponse(dispute))
}

// --- response mapping ---

func toEventResponse(event domain.Event, summary *application.EventSummary) contracts.EventResponse {
	resp := contracts.EventResponse{
		EventID:             event.EventID,
		OrganizerID:         event.OrganizerID,
		Budget:              event.Budget,
		Currency:            event.Currency,
		DistributionMode:    event.DistributionMode,
		TargetParticipants:  event.TargetParticipants,
		Status:              event.Status,
		PricePerParticipant: domain.PricePerParticipant(event),
	}
	if summary != nil {
		resp.CapturedTotal = summary.CapturedTotal
		resp.ContributionCount = len(summary.Contributions)
	}
	return resp
}

func toContributionResponse(c domain.Contribution) contracts.ContributionResponse {
	return contracts.ContributionResponse{
		EventID:         c.EventID,
		ParticipantID:   c.ParticipantID,
		JoinIndex:       c.JoinIndex,
		CommittedAmount: c.CommittedAmount,
		CapturedAmount:  c.CapturedAmount,
		State:           c.State,
	}
}

func toOrderStatusResponse(view application.OrderView) contracts.OrderStatusResponse {
	order := view.Order
	escrow := view.Escrow
	resp := contracts.OrderStatusResponse{
		OrderID:          order.OrderID,
		BuyerID:          order.BuyerID,
		SellerID:         order.SellerID,
		EventID:          order.EventID,
		State:            order.State(),
		PaymentStatus:    order.PaymentStatus,
		ProductionStatus: order.ProductionStatus,
		DeliveryStatus:   order.DeliveryStatus,
		EscrowStatus:     escrow.Status,
		TotalAmount:      order.TotalAmount,
		Currency:         order.Currency,
		HeldAmount:       escrow.HeldAmount,
		RemainingAmount:  escrow.Remaining(),
	}
	if order.DeliveredAt != nil {
		resp.DeliveredAt = order.DeliveredAt.Format(time.RFC3339)
	}
	if order.SettledAt != nil {
		resp.SettledAt = order.SettledAt.Format(time.RFC3339)
	}
	if deadline, ok := order.WindowDeadline(); ok {
		resp.WindowDeadline = deadline.Format(time.RFC3339)
	}
	for _, p := range escrow.PartialReleases {
		resp.PartialReleases = append(resp.PartialReleases, contracts.PartialRelease{
			Amount:      p.Amount,
			RecipientID: p.RecipientID,
			ReleasedAt:  p.ReleasedAt.Format(time.RFC3339),
		})
	}
	return resp
}

func toDisputeResponse(d domain.Dispute) contracts.DisputeResponse {
	resp := contracts.DisputeResponse{
		DisputeID:             d.DisputeID,
		OrderID:               d.OrderID,
		RaisedBy:              d.RaisedBy,
		RaisedAt:              d.RaisedAt.Format(time.RFC3339),
		Status:                d.Status,
		Outcome:               d.Outcome,
		SplitBuyerBasisPoints: d.SplitBuyerBasisPoints,
		ResolverID:            d.ResolverID,
	}
	if d.ResolvedAt != nil {
		resp.ResolvedAt = d.ResolvedAt.Format(time.RFC3339)
	}
	for _, e := range d.Evidence {
		resp.Evidence = append(resp.Evidence, contracts.EvidenceRef{Filename: e.Filename, FileURL: e.FileURL})
	}
	return resp
}
