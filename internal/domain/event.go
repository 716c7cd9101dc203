package domain

import (
	"strings"
	"time"
)

const (
	ModeOrganizerFundsAll    = "organizer_funds_all"
	ModeParticipantsSelfFund = "participants_self_fund"
	ModeMixedDeposit         = "mixed_deposit"
)

const (
	EventStatusDraft     = "draft"
	EventStatusOpen      = "open"
	EventStatusLocked    = "locked"
	EventStatusCompleted = "completed"
	EventStatusCancelled = "cancelled"
)

const (
	ContributionStatePledged  = "pledged"
	ContributionStateCaptured = "captured"
	ContributionStateRefunded = "refunded"
)

// Event is a shared purchasing occasion whose budget is funded by one or more
// participants according to its distribution mode. Budget is in minor units
// and stays nil until the organizer fixes the distribution mode.
type Event struct {
	EventID            string
	OrganizerID        string
	Budget             *int64
	Currency           string
	DistributionMode   string
	TargetParticipants int
	Status             string
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Contribution is one participant's stake in an event budget. JoinIndex is
// the zero-based join order, which the planner uses to assign the rounding
// remainder deterministically.
type Contribution struct {
	EventID         string
	ParticipantID   string
	JoinIndex       int
	CommittedAmount int64
	CapturedAmount  int64
	State           string
	IdempotencyKey  string
	CaptureRef      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NormalizeDistributionMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ModeOrganizerFundsAll:
		return ModeOrganizerFundsAll
	case ModeParticipantsSelfFund:
		return ModeParticipantsSelfFund
	case ModeMixedDeposit:
		return ModeMixedDeposit
	default:
		return ""
	}
}

// Open moves a draft event into the joinable state. The budget and target
// participant count must be fixed first so the planner has a defined plan
// for every join.
func (e *Event) Open(at time.Time) error {
	if e.Status == EventStatusCancelled || e.Status == EventStatusCompleted {
		return ErrEventLocked
	}
	if e.Status != EventStatusDraft {
		return ErrConflict
	}
	if e.Budget == nil || *e.Budget <= 0 || e.TargetParticipants <= 0 {
		return ErrInvalidDistributionConfig
	}
	e.Status = EventStatusOpen
	e.UpdatedAt = at
	return nil
}

// Lock freezes membership and funding. Callers must have verified the
// mode-specific funding condition (CanLock) first.
func (e *Event) Lock(at time.Time) error {
	if e.Status != EventStatusOpen {
		return ErrEventNotOpen
	}
	e.Status = EventStatusLocked
	e.UpdatedAt = at
	return nil
}

func (e *Event) Complete(at time.Time) error {
	if e.Status != EventStatusLocked {
		return ErrConflict
	}
	e.Status = EventStatusCompleted
	e.UpdatedAt = at
	return nil
}

// Cancel is only allowed while the event is draft or open; contributions are
// refunded and deleted by the caller as part of the same operation.
func (e *Event) Cancel(at time.Time) error {
	if e.Status != EventStatusDraft && e.Status != EventStatusOpen {
		return ErrEventLocked
	}
	e.Status = EventStatusCancelled
	e.UpdatedAt = at
	return nil
}

// CapturedTotal sums captured amounts across contributions. The ledger
// invariant is CapturedTotal <= *Budget at all times.
func CapturedTotal(contributions []Contribution) int64 {
	var total int64
	for _, c := range contributions {
		if c.State == ContributionStateCaptured {
			total += c.CapturedAmount
		}
	}
	return total
}

// CheckBudgetInvariant verifies the captured sum against the event budget.
// A violation here means validation was bypassed; it aborts the transaction.
func CheckBudgetInvariant(event Event, contributions []Contribution) error {
	if event.Budget == nil {
		return nil
	}
	if CapturedTotal(contributions) > *event.Budget {
		return ErrBudgetExceeded
	}
	return nil
}

// CanLock evaluates the mode-specific funding condition for locking.
func CanLock(event Event, plan DistributionPlan, contributions []Contribution) error {
	if event.Status != EventStatusOpen {
		return ErrEventNotOpen
	}
	if event.Budget == nil {
		return ErrInvalidDistributionConfig
	}
	budget := *event.Budget
	captured := CapturedTotal(contributions)

	switch event.DistributionMode {
	case ModeOrganizerFundsAll:
		// The organizer's own captured contribution must cover the full budget.
		var organizerCaptured int64
		for _, c := range contributions {
			if c.ParticipantID == event.OrganizerID && c.State == ContributionStateCaptured {
				organizerCaptured += c.CapturedAmount
			}
		}
		if organizerCaptured != budget {
			return ErrConflict
		}
	case ModeParticipantsSelfFund:
		if captured != budget {
			return ErrConflict
		}
	case ModeMixedDeposit:
		// Deposits must be in; the organizer is liable for the remainder and
		// must have covered it before lock.
		var organizerCaptured int64
		for _, c := range contributions {
			if c.ParticipantID == event.OrganizerID && c.State == ContributionStateCaptured {
				organizerCaptured += c.CapturedAmount
			}
		}
		if organizerCaptured < plan.OrganizerLiability {
			return ErrConflict
		}
		if captured != budget {
			return ErrConflict
		}
	default:
		return ErrInvalidDistributionConfig
	}
	return nil
}
