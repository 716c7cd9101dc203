package domain

// Emitted notification event types. Delivery is fire-and-forget through the
// outbox; the state machine never blocks on it.
const (
	EventOrderStatusChanged     = "order.status_changed"
	EventOrderWindowExpiring    = "order.window_expiring"
	EventEscrowHeld             = "escrow.held"
	EventEscrowReleased         = "escrow.released"
	EventEscrowRefunded         = "escrow.refunded"
	EventDisputeRaised          = "dispute.raised"
	EventDisputeResolved        = "dispute.resolved"
	EventContributionCaptured   = "event.contribution_captured"
	EventContributionRefunded   = "event.contribution_refunded"
	EventPurchaseEventCancelled = "event.cancelled"
)

func IsEmittedEvent(eventType string) bool {
	switch eventType {
	case EventOrderStatusChanged, EventOrderWindowExpiring,
		EventEscrowHeld, EventEscrowReleased, EventEscrowRefunded,
		EventDisputeRaised, EventDisputeResolved,
		EventContributionCaptured, EventContributionRefunded,
		EventPurchaseEventCancelled:
		return true
	default:
		return false
	}
}
