package domain

import (
	"errors"
	"testing"
	"time"
)

func raisedDispute(t *testing.T) Dispute {
	t.Helper()
	evidence := []EvidenceRef{{Filename: "photo.jpg", FileURL: "https://files.example/photo.jpg"}}
	dispute, err := NewDispute("dsp-1", "ord-1", "buyer-1", evidence, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewDispute: %v", err)
	}
	return dispute
}

func TestNewDisputeRequiresEvidence(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	if _, err := NewDispute("dsp-1", "ord-1", "buyer-1", nil, now); !errors.Is(err, ErrEvidenceRequired) {
		t.Fatalf("no evidence: got %v", err)
	}
	blank := []EvidenceRef{{Filename: "   ", FileURL: ""}}
	if _, err := NewDispute("dsp-1", "ord-1", "buyer-1", blank, now); !errors.Is(err, ErrEvidenceRequired) {
		t.Fatalf("blank evidence: got %v", err)
	}
	mixed := []EvidenceRef{{Filename: "", FileURL: ""}, {Filename: " receipt.pdf ", FileURL: ""}}
	dispute, err := NewDispute("dsp-1", "ord-1", "buyer-1", mixed, now)
	if err != nil {
		t.Fatalf("NewDispute: %v", err)
	}
	if len(dispute.Evidence) != 1 || dispute.Evidence[0].Filename != "receipt.pdf" {
		t.Fatalf("evidence = %+v", dispute.Evidence)
	}
	if dispute.Status != DisputeStatusRaised || dispute.Outcome != DisputeOutcomePending {
		t.Fatalf("status=%s outcome=%s", dispute.Status, dispute.Outcome)
	}
}

func TestAssignResolverRejectsParties(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	dispute := raisedDispute(t)
	if err := dispute.AssignResolver("buyer-1", "buyer-1", "seller-1", now); !errors.Is(err, ErrForbidden) {
		t.Fatalf("buyer as resolver: got %v", err)
	}
	if err := dispute.AssignResolver("seller-1", "buyer-1", "seller-1", now); !errors.Is(err, ErrForbidden) {
		t.Fatalf("seller as resolver: got %v", err)
	}
	if err := dispute.AssignResolver("  ", "buyer-1", "seller-1", now); !errors.Is(err, ErrForbidden) {
		t.Fatalf("blank resolver: got %v", err)
	}
	if err := dispute.AssignResolver("staff-1", "buyer-1", "seller-1", now); err != nil {
		t.Fatalf("AssignResolver: %v", err)
	}
	if dispute.Status != DisputeStatusUnderReview || dispute.ResolverID != "staff-1" {
		t.Fatalf("status=%s resolver=%s", dispute.Status, dispute.ResolverID)
	}
}

func TestResolveRequiresReviewAndValidOutcome(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	dispute := raisedDispute(t)
	if err := dispute.Resolve(DisputeOutcomeRefundToBuyer, 0, now); !errors.Is(err, ErrConflict) {
		t.Fatalf("resolve before review: got %v", err)
	}
	if err := dispute.AssignResolver("staff-1", "buyer-1", "seller-1", now); err != nil {
		t.Fatalf("AssignResolver: %v", err)
	}
	if err := dispute.Resolve("keep_everything", 0, now); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown outcome: got %v", err)
	}
	if err := dispute.Resolve(DisputeOutcomeSplit, 0, now); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("split with zero bp: got %v", err)
	}
	if err := dispute.Resolve(DisputeOutcomeSplit, 10000, now); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("split with full bp: got %v", err)
	}
	if err := dispute.Resolve(DisputeOutcomeSplit, 2500, now); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if dispute.Status != DisputeStatusResolved || dispute.SplitBuyerBasisPoints != 2500 || dispute.ResolvedAt == nil {
		t.Fatalf("resolved dispute = %+v", dispute)
	}
}

func TestResolvedDisputeIsTerminal(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	dispute := raisedDispute(t)
	_ = dispute.AssignResolver("staff-1", "buyer-1", "seller-1", now)
	if err := dispute.Resolve(DisputeOutcomeReleaseToSeller, 0, now); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := dispute.Resolve(DisputeOutcomeRefundToBuyer, 0, now); !errors.Is(err, ErrDisputeAlreadyResolved) {
		t.Fatalf("second resolve: got %v", err)
	}
	if err := dispute.AssignResolver("staff-2", "buyer-1", "seller-1", now); !errors.Is(err, ErrDisputeAlreadyResolved) {
		t.Fatalf("reassign after resolve: got %v", err)
	}
}
