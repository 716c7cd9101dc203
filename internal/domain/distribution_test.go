package domain

import (
	"errors"
	"testing"
	"time"
)

func intPtr(v int64) *int64 { return &v }

func testEvent(mode string, budget int64, target int) Event {
	return Event{
		EventID:            "evt-1",
		OrganizerID:        "org-1",
		Budget:             intPtr(budget),
		Currency:           "USD",
		DistributionMode:   mode,
		TargetParticipants: target,
		Status:             EventStatusOpen,
		CreatedAt:          time.Now().UTC(),
	}
}

func TestComputePlanSelfFundAssignsRemainderToEarliestJoiners(t *testing.T) {
	t.Parallel()
	plan, err := ComputePlan(testEvent(ModeParticipantsSelfFund, 100000, 3), 0.2)
	if err != nil {
		t.Fatalf("ComputePlan: %v", err)
	}
	want := []int64{33334, 33333, 33333}
	for i, share := range plan.Shares {
		if share != want[i] {
			t.Fatalf("share[%d] = %d, want %d", i, share, want[i])
		}
	}
	if plan.OrganizerLiability != 0 {
		t.Fatalf("organizer liability = %d, want 0", plan.OrganizerLiability)
	}
}

func TestComputePlanSharesAlwaysSumToBudget(t *testing.T) {
	t.Parallel()
	cases := []struct {
		budget int64
		target int
	}{
		{100000, 3}, {99999, 7}, {1, 1}, {10, 3}, {123457, 11}, {500000, 4},
	}
	for _, tc := range cases {
		plan, err := ComputePlan(testEvent(ModeParticipantsSelfFund, tc.budget, tc.target), 0.2)
		if err != nil {
			t.Fatalf("ComputePlan(%d, %d): %v", tc.budget, tc.target, err)
		}
		var sum int64
		for _, share := range plan.Shares {
			sum += share
		}
		if sum != tc.budget {
			t.Fatalf("shares for budget=%d target=%d sum to %d", tc.budget, tc.target, sum)
		}
	}
}

func TestComputePlanMixedDepositLiabilityCoversRemainder(t *testing.T) {
	t.Parallel()
	plan, err := ComputePlan(testEvent(ModeMixedDeposit, 100000, 4), 0.25)
	if err != nil {
		t.Fatalf("ComputePlan: %v", err)
	}
	var deposits int64
	for _, share := range plan.Shares {
		deposits += share
	}
	if deposits+plan.OrganizerLiability != 100000 {
		t.Fatalf("deposits %d + liability %d != budget", deposits, plan.OrganizerLiability)
	}
}

func TestComputePlanOrganizerFundsAll(t *testing.T) {
	t.Parallel()
	plan, err := ComputePlan(testEvent(ModeOrganizerFundsAll, 50000, 1), 0.2)
	if err != nil {
		t.Fatalf("ComputePlan: %v", err)
	}
	if plan.OrganizerLiability != 50000 {
		t.Fatalf("organizer liability = %d, want full budget", plan.OrganizerLiability)
	}
	if got := plan.RequiredShare(0, true); got != 50000 {
		t.Fatalf("organizer required share = %d, want 50000", got)
	}
	if got := plan.RequiredShare(0, false); got != 0 {
		t.Fatalf("participant required share = %d, want 0", got)
	}
}

func TestComputePlanRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	if _, err := ComputePlan(testEvent("all_you_can_eat", 1000, 2), 0.2); !errors.Is(err, ErrInvalidDistributionConfig) {
		t.Fatalf("unknown mode: got %v", err)
	}
	event := testEvent(ModeParticipantsSelfFund, 1000, 2)
	event.Budget = nil
	if _, err := ComputePlan(event, 0.2); !errors.Is(err, ErrInvalidDistributionConfig) {
		t.Fatalf("nil budget: got %v", err)
	}
	if _, err := ComputePlan(testEvent(ModeMixedDeposit, 1000, 2), 0); !errors.Is(err, ErrInvalidDistributionConfig) {
		t.Fatalf("zero deposit fraction: got %v", err)
	}
}

func TestValidateContributionRejectsOverContribution(t *testing.T) {
	t.Parallel()
	event := testEvent(ModeParticipantsSelfFund, 100000, 3)
	plan, err := ComputePlan(event, 0.2)
	if err != nil {
		t.Fatalf("ComputePlan: %v", err)
	}
	if err := ValidateContribution(event, plan, 0, false, 33334, 0); err != nil {
		t.Fatalf("exact share rejected: %v", err)
	}
	if err := ValidateContribution(event, plan, 0, false, 33335, 0); !errors.Is(err, ErrOverContribution) {
		t.Fatalf("over share: got %v", err)
	}
	if err := ValidateContribution(event, plan, 0, false, 33335, 1); err != nil {
		t.Fatalf("within tolerance rejected: %v", err)
	}
	if err := ValidateContribution(event, plan, 0, false, 0, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("zero amount: got %v", err)
	}
	locked := event
	locked.Status = EventStatusLocked
	if err := ValidateContribution(locked, plan, 0, false, 33334, 0); !errors.Is(err, ErrEventNotOpen) {
		t.Fatalf("locked event: got %v", err)
	}
}

func TestCanLockRequiresFullFunding(t *testing.T) {
	t.Parallel()
	event := testEvent(ModeParticipantsSelfFund, 90000, 3)
	plan, err := ComputePlan(event, 0.2)
	if err != nil {
		t.Fatalf("ComputePlan: %v", err)
	}
	contributions := []Contribution{
		{EventID: "evt-1", ParticipantID: "p1", JoinIndex: 0, CapturedAmount: 30000, State: ContributionStateCaptured},
		{EventID: "evt-1", ParticipantID: "p2", JoinIndex: 1, CapturedAmount: 30000, State: ContributionStateCaptured},
	}
	if err := CanLock(event, plan, contributions); !errors.Is(err, ErrConflict) {
		t.Fatalf("partial funding: got %v", err)
	}
	contributions = append(contributions, Contribution{
		EventID: "evt-1", ParticipantID: "p3", JoinIndex: 2, CapturedAmount: 30000, State: ContributionStateCaptured,
	})
	if err := CanLock(event, plan, contributions); err != nil {
		t.Fatalf("full funding rejected: %v", err)
	}
}

func TestCheckBudgetInvariant(t *testing.T) {
	t.Parallel()
	event := testEvent(ModeParticipantsSelfFund, 1000, 2)
	within := []Contribution{{CapturedAmount: 500, State: ContributionStateCaptured}, {CapturedAmount: 500, State: ContributionStateCaptured}}
	if err := CheckBudgetInvariant(event, within); err != nil {
		t.Fatalf("within budget: %v", err)
	}
	over := append(within, Contribution{CapturedAmount: 1, State: ContributionStateCaptured})
	if err := CheckBudgetInvariant(event, over); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("over budget: got %v", err)
	}
	refunded := append(within, Contribution{CapturedAmount: 100, State: ContributionStateRefunded})
	if err := CheckBudgetInvariant(event, refunded); err != nil {
		t.Fatalf("refunded contribution counted: %v", err)
	}
}
