package postgres

import (
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"github.com/makersrow/escrow-engine/internal/domain"
)

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ErrConflict
	default:
		return err
	}
}

func marshalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func toEventModel(row domain.Event) eventModel {
	return eventModel{
		EventID:            row.EventID,
		OrganizerID:        row.OrganizerID,
		Budget:             row.Budget,
		Currency:           row.Currency,
		DistributionMode:   row.DistributionMode,
		TargetParticipants: row.TargetParticipants,
		Status:             row.Status,
		Version:            row.Version,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}

func fromEventModel(row eventModel) domain.Event {
	return domain.Event{
		EventID:            row.EventID,
		OrganizerID:        row.OrganizerID,
		Budget:             row.Budget,
		Currency:           row.Currency,
		DistributionMode:   row.DistributionMode,
		TargetParticipants: row.TargetParticipants,
		Status:             row.Status,
		Version:            row.Version,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}

func toContributionModel(row domain.Contribution) contributionModel {
	return contributionModel{
		EventID:         row.EventID,
		ParticipantID:   row.ParticipantID,
		JoinIndex:       row.JoinIndex,
		CommittedAmount: row.CommittedAmount,
		CapturedAmount:  row.CapturedAmount,
		State:           row.State,
		IdempotencyKey:  row.IdempotencyKey,
		CaptureRef:      row.CaptureRef,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func fromContributionModel(row contributionModel) domain.Contribution {
	return domain.Contribution{
		EventID:         row.EventID,
		ParticipantID:   row.ParticipantID,
		JoinIndex:       row.JoinIndex,
		CommittedAmount: row.CommittedAmount,
		CapturedAmount:  row.CapturedAmount,
		State:           row.State,
		IdempotencyKey:  row.IdempotencyKey,
		CaptureRef:      row.CaptureRef,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func toOrderModel(row domain.Order) (orderModel, error) {
	items, err := marshalJSON(row.LineItems)
	if err != nil {
		return orderModel{}, err
	}
	return orderModel{
		OrderID:          row.OrderID,
		BuyerID:          row.BuyerID,
		SellerID:         row.SellerID,
		EventID:          row.EventID,
		LineItems:        items,
		TotalAmount:      row.TotalAmount,
		Currency:         row.Currency,
		PaymentStatus:    row.PaymentStatus,
		ProductionStatus: row.ProductionStatus,
		DeliveryStatus:   row.DeliveryStatus,
		EscrowStatus:     row.EscrowStatus,
		Cancelled:        row.Cancelled,
		PaymentMethodRef: row.PaymentMethodRef,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
		DeliveredAt:      row.DeliveredAt,
		SettledAt:        row.SettledAt,
		WindowWarnedAt:   row.WindowWarnedAt,
		Version:          row.Version,
	}, nil
}

func fromOrderModel(row orderModel) (domain.Order, error) {
	var items []domain.LineItem
	if row.LineItems != "" {
		if err := json.Unmarshal([]byte(row.LineItems), &items); err != nil {
			return domain.Order{}, err
		}
	}
	return domain.Order{
		OrderID:          row.OrderID,
		BuyerID:          row.BuyerID,
		SellerID:         row.SellerID,
		EventID:          row.EventID,
		LineItems:        items,
		TotalAmount:      row.TotalAmount,
		Currency:         row.Currency,
		PaymentStatus:    row.PaymentStatus,
		ProductionStatus: row.ProductionStatus,
		DeliveryStatus:   row.DeliveryStatus,
		EscrowStatus:     row.EscrowStatus,
		Cancelled:        row.Cancelled,
		PaymentMethodRef: row.PaymentMethodRef,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
		DeliveredAt:      row.DeliveredAt,
		SettledAt:        row.SettledAt,
		WindowWarnedAt:   row.WindowWarnedAt,
		Version:          row.Version,
	}, nil
}

func toEscrowModel(row domain.EscrowAccount) (escrowModel, error) {
	releases, err := marshalJSON(row.PartialReleases)
	if err != nil {
		return escrowModel{}, err
	}
	return escrowModel{
		OrderID:         row.OrderID,
		HeldAmount:      row.HeldAmount,
		Currency:        row.Currency,
		Status:          row.Status,
		CaptureRef:      row.CaptureRef,
		ReleasedAt:      row.ReleasedAt,
		PartialReleases: releases,
		Version:         row.Version,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

func fromEscrowModel(row escrowModel) (domain.EscrowAccount, error) {
	var releases []domain.PartialRelease
	if row.PartialReleases != "" {
		if err := json.Unmarshal([]byte(row.PartialReleases), &releases); err != nil {
			return domain.EscrowAccount{}, err
		}
	}
	return domain.EscrowAccount{
		OrderID:         row.OrderID,
		HeldAmount:      row.HeldAmount,
		Currency:        row.Currency,
		Status:          row.Status,
		CaptureRef:      row.CaptureRef,
		ReleasedAt:      row.ReleasedAt,
		PartialReleases: releases,
		Version:         row.Version,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

func toDisputeModel(row domain.Dispute) (disputeModel, error) {
	evidence, err := marshalJSON(row.Evidence)
	if err != nil {
		return disputeModel{}, err
	}
	return disputeModel{
		DisputeID:             row.DisputeID,
		OrderID:               row.OrderID,
		RaisedBy:              row.RaisedBy,
		RaisedAt:              row.RaisedAt,
		Evidence:              evidence,
		Status:                row.Status,
		Outcome:               row.Outcome,
		SplitBuyerBasisPoints: row.SplitBuyerBasisPoints,
		ResolverID:            row.ResolverID,
		ResolvedAt:            row.ResolvedAt,
		Version:               row.Version,
		UpdatedAt:             row.UpdatedAt,
	}, nil
}

func fromDisputeModel(row disputeModel) (domain.Dispute, error) {
	var evidence []domain.EvidenceRef
	if row.Evidence != "" {
		if err := json.Unmarshal([]byte(row.Evidence), &evidence); err != nil {
			return domain.Dispute{}, err
		}
	}
	return domain.Dispute{
		DisputeID:             row.DisputeID,
		OrderID:               row.OrderID,
		RaisedBy:              row.RaisedBy,
		RaisedAt:              row.RaisedAt,
		Evidence:              evidence,
		Status:                row.Status,
		Outcome:               row.Outcome,
		SplitBuyerBasisPoints: row.SplitBuyerBasisPoints,
		ResolverID:            row.ResolverID,
		ResolvedAt:            row.ResolvedAt,
		Version:               row.Version,
		UpdatedAt:             row.UpdatedAt,
	}, nil
}
