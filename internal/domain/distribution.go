package domain

import "math"

// DistributionPlan is the computed funding split for one event: a required
// amount per participant join index, plus whatever the organizer owes beyond
// their own slot. Shares always sum, together with OrganizerLiability, to the
// event budget exactly.
type DistributionPlan struct {
	EventID            string
	Mode               string
	Budget             int64
	Shares             []int64
	OrganizerLiability int64
}

// ComputePlan derives per-participant required amounts from the event's
// distribution mode. depositFraction only applies to mixed-deposit events and
// must lie in (0, 1].
//
// For participants-self-fund, the integer division remainder (at most
// target-1 minor units) is assigned to the first N participants in join
// order, so the shares sum to the budget exactly.
func ComputePlan(event Event, depositFraction float64) (DistributionPlan, error) {
	if event.Budget == nil || *event.Budget <= 0 || event.TargetParticipants <= 0 {
		return DistributionPlan{}, ErrInvalidDistributionConfig
	}
	budget := *event.Budget
	n := event.TargetParticipants

	plan := DistributionPlan{
		EventID: event.EventID,
		Mode:    event.DistributionMode,
		Budget:  budget,
		Shares:  make([]int64, n),
	}

	switch event.DistributionMode {
	case ModeOrganizerFundsAll:
		plan.OrganizerLiability = budget
		return plan, nil

	case ModeParticipantsSelfFund:
		base := budget / int64(n)
		remainder := budget % int64(n)
		for i := 0; i < n; i++ {
			plan.Shares[i] = base
			if int64(i) < remainder {
				plan.Shares[i]++
			}
		}
		return plan, nil

	case ModeMixedDeposit:
		if depositFraction <= 0 || depositFraction > 1 {
			return DistributionPlan{}, ErrInvalidDistributionConfig
		}
		base := budget / int64(n)
		remainder := budget % int64(n)
		var deposits int64
		for i := 0; i < n; i++ {
			full := base
			if int64(i) < remainder {
				full++
			}
			plan.Shares[i] = int64(math.Round(depositFraction * float64(full)))
			deposits += plan.Shares[i]
		}
		plan.OrganizerLiability = budget - deposits
		return plan, nil

	default:
		return DistributionPlan{}, ErrInvalidDistributionConfig
	}
}

// RequiredShare is the amount a participant at joinIndex is expected to
// contribute. The organizer's requirement includes their liability beyond
// their own slot.
func (p DistributionPlan) RequiredShare(joinIndex int, isOrganizer bool) int64 {
	var share int64
	if joinIndex >= 0 && joinIndex < len(p.Shares) {
		share = p.Shares[joinIndex]
	}
	if isOrganizer {
		share += p.OrganizerLiability
	}
	return share
}

// ValidateContribution is a pure check applied before the ledger mutates.
// tolerance widens the acceptable overshoot above the required share; the
// default is zero.
func ValidateContribution(event Event, plan DistributionPlan, joinIndex int, isOrganizer bool, amount, tolerance int64) error {
	if event.Status != EventStatusOpen {
		return ErrEventNotOpen
	}
	if amount <= 0 {
		return ErrInvalidInput
	}
	if amount > plan.RequiredShare(joinIndex, isOrganizer)+tolerance {
		return ErrOverContribution
	}
	return nil
}

// PricePerParticipant is the derived per-head price. Budget is authoritative;
// this value exists for display and client compatibility only.
func PricePerParticipant(event Event) int64 {
	if event.Budget == nil || event.TargetParticipants <= 0 {
		return 0
	}
	return *event.Budget / int64(event.TargetParticipants)
}
