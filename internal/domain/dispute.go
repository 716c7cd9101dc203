package domain

import (
	"strings"
	"time"
)

const (
	DisputeStatusRaised      = "raised"
	DisputeStatusUnderReview = "under_review"
	DisputeStatusResolved    = "resolved"
)

const (
	DisputeOutcomePending         = "pending"
	DisputeOutcomeReleaseToSeller = "release_to_seller"
	DisputeOutcomeRefundToBuyer   = "refund_to_buyer"
	DisputeOutcomeSplit           = "split"
)

// EvidenceRef points at an uploaded artifact backing a dispute claim.
type EvidenceRef struct {
	Filename string `json:"filename"`
	FileURL  string `json:"file_url"`
}

// Dispute is the at-most-one contest of a delivered order. A resolved
// dispute is terminal; the same order can never be contested again.
type Dispute struct {
	DisputeID             string
	OrderID               string
	RaisedBy              string
	RaisedAt              time.Time
	Evidence              []EvidenceRef
	Status                string
	Outcome               string
	SplitBuyerBasisPoints int
	ResolverID            string
	ResolvedAt            *time.Time
	Version               int64
	UpdatedAt             time.Time
}

// NewDispute validates and constructs a raised dispute. The caller has
// already checked order state and window; this enforces the evidence rule.
func NewDispute(disputeID, orderID, raisedBy string, evidence []EvidenceRef, at time.Time) (Dispute, error) {
	cleaned := make([]EvidenceRef, 0, len(evidence))
	for _, e := range evidence {
		filename := strings.TrimSpace(e.Filename)
		fileURL := strings.TrimSpace(e.FileURL)
		if filename == "" && fileURL == "" {
			continue
		}
		cleaned = append(cleaned, EvidenceRef{Filename: filename, FileURL: fileURL})
	}
	if len(cleaned) == 0 {
		return Dispute{}, ErrEvidenceRequired
	}
	return Dispute{
		DisputeID: disputeID,
		OrderID:   orderID,
		RaisedBy:  raisedBy,
		RaisedAt:  at,
		Evidence:  cleaned,
		Status:    DisputeStatusRaised,
		Outcome:   DisputeOutcomePending,
		UpdatedAt: at,
	}, nil
}

// AssignResolver moves the dispute under review. The resolver must be a
// party distinct from buyer and seller.
func (d *Dispute) AssignResolver(resolverID, buyerID, sellerID string, at time.Time) error {
	if d.Status == DisputeStatusResolved {
		return ErrDisputeAlreadyResolved
	}
	if d.Status != DisputeStatusRaised {
		return ErrConflict
	}
	resolverID = strings.TrimSpace(resolverID)
	if resolverID == "" || resolverID == buyerID || resolverID == sellerID {
		return ErrForbidden
	}
	d.ResolverID = resolverID
	d.Status = DisputeStatusUnderReview
	d.UpdatedAt = at
	return nil
}

// Resolve sets the terminal outcome. splitBuyerBP is only meaningful for the
// split outcome and is the buyer's share in basis points.
func (d *Dispute) Resolve(outcome string, splitBuyerBP int, at time.Time) error {
	if d.Status == DisputeStatusResolved {
		return ErrDisputeAlreadyResolved
	}
	if d.Status != DisputeStatusUnderReview {
		return ErrConflict
	}
	switch outcome {
	case DisputeOutcomeReleaseToSeller, DisputeOutcomeRefundToBuyer:
	case DisputeOutcomeSplit:
		if splitBuyerBP <= 0 || splitBuyerBP >= 10000 {
			return ErrInvalidInput
		}
		d.SplitBuyerBasisPoints = splitBuyerBP
	default:
		return ErrInvalidInput
	}
	d.Outcome = outcome
	d.Status = DisputeStatusResolved
	d.ResolvedAt = &at
	d.UpdatedAt = at
	return nil
}
