package application

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/makersrow/escrow-engine/internal/domain"
	"github.com/makersrow/escrow-engine/internal/ports"
)

func (s *Service) CreateEvent(ctx context.Context, actor Actor, input CreateEventInput) (domain.Event, error) {
	if actor.SubjectID == "" {
		return domain.Event{}, domain.ErrUnauthorized
	}
	mode := domain.NormalizeDistributionMode(input.DistributionMode)
	if mode == "" {
		return domain.Event{}, domain.ErrInvalidDistributionConfig
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if len(currency) != 3 {
		return domain.Event{}, domain.ErrInvalidInput
	}
	if input.TargetParticipants <= 0 {
		return domain.Event{}, domain.ErrInvalidInput
	}
	if input.Budget != nil && *input.Budget <= 0 {
		return domain.Event{}, domain.ErrInvalidInput
	}

	now := s.nowFn()
	event := domain.Event{
		EventID:            uuid.NewString(),
		OrganizerID:        actor.SubjectID,
		Budget:             input.Budget,
		Currency:           currency,
		DistributionMode:   mode,
		TargetParticipants: input.TargetParticipants,
		Status:             domain.EventStatusDraft,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return domain.Event{}, err
	}
	s.logger.Info("event created",
		"event_id", event.EventID, "organizer_id", event.OrganizerID, "distribution_mode", mode)
	return event, nil
}

func (s *Service) OpenEvent(ctx context.Context, actor Actor, eventID string) (domain.Event, error) {
	release, err := s.locker.Acquire(ctx, eventLockKey(eventID))
	if err != nil {
		return domain.Event{}, err
	}
	defer release()

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	if actor.SubjectID != event.OrganizerID {
		return domain.Event{}, domain.ErrForbidden
	}
	if err := event.Open(s.nowFn()); err != nil {
		return domain.Event{}, err
	}
	if err := s.events.Update(ctx, event); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

// JoinEvent records one participant's contribution and captures it through
// the payment gateway. The idempotency key is mandatory: replaying the same
// key with the same amount returns the recorded contribution (retrying the
// capture if it never succeeded); the same key with a different amount is
// rejected as a conflict.
func (s *Service) JoinEvent(ctx context.Context, actor Actor, input JoinEventInput) (domain.Contribution, error) {
	if actor.SubjectID == "" {
		return domain.Contribution{}, domain.ErrUnauthorized
	}
	if actor.IdempotencyKey == "" {
		return domain.Contribution{}, domain.ErrIdempotencyRequired
	}

	release, err := s.locker.Acquire(ctx, eventLockKey(input.EventID))
	if err != nil {
		return domain.Contribution{}, err
	}
	defer release()

	event, err := s.events.GetByID(ctx, input.EventID)
	if err != nil {
		return domain.Contribution{}, err
	}

	contribution, isReplay, hasRow, err := s.resolveContribution(ctx, event, actor, input)
	if err != nil {
		return domain.Contribution{}, err
	}
	if isReplay && contribution.State != domain.ContributionStatePledged {
		return contribution, nil
	}

	now := s.nowFn()
	if !isReplay {
		// A rejoin after withdrawal reuses the participant's refunded row
		// instead of inserting a second one.
		if hasRow {
			if err := s.contributions.Update(ctx, contribution); err != nil {
				return domain.Contribution{}, err
			}
		} else if err := s.contributions.Create(ctx, contribution); err != nil {
			return domain.Contribution{}, err
		}
	}

	captureCtx, cancel := context.WithTimeout(ctx, s.cfg.PaymentCaptureTimeout)
	defer cancel()
	result, err := s.gateway.Capture(captureCtx, ports.CaptureRequest{
		Amount:           contribution.CommittedAmount,
		Currency:         event.Currency,
		PaymentMethodRef: input.PaymentMethodRef,
		IdempotencyKey:   actor.IdempotencyKey,
	})
	if err != nil || !result.Success {
		// The pledged record stays behind so a replay with the same key
		// retries the capture instead of double-charging.
		s.logger.Warn("contribution capture failed",
			"event_id", event.EventID, "participant_id", actor.SubjectID, "error", err)
		return contribution, domain.ErrPaymentCaptureFailed
	}

	contribution.State = domain.ContributionStateCaptured
	contribution.CapturedAmount = contribution.CommittedAmount
	contribution.CaptureRef = result.CaptureRef
	contribution.UpdatedAt = now

	all, err := s.contributions.ListByEvent(ctx, event.EventID)
	if err != nil {
		return domain.Contribution{}, err
	}
	merged := make([]domain.Contribution, 0, len(all))
	for _, c := range all {
		if c.ParticipantID == contribution.ParticipantID {
			continue
		}
		merged = append(merged, c)
	}
	merged = append(merged, contribution)
	if err := domain.CheckBudgetInvariant(event, merged); err != nil {
		s.logger.Error("budget invariant violated, aborting capture commit",
			"event_id", event.EventID, "participant_id", actor.SubjectID)
		return domain.Contribution{}, err
	}

	if err := s.contributions.Update(ctx, contribution); err != nil {
		return domain.Contribution{}, err
	}
	s.emitContributionCaptured(ctx, contribution, now)
	return contribution, nil
}

// resolveContribution decides whether a join is a fresh contribution, an
// idempotent replay, a rejoin into a vacated slot, or a conflict. The third
// return reports whether a row for the participant already exists, so the
// caller updates instead of inserting. Called under the event lock.
func (s *Service) resolveContribution(ctx context.Context, event domain.Event, actor Actor, input JoinEventInput) (domain.Contribution, bool, bool, error) {
	existing, err := s.contributions.GetByIdempotencyKey(ctx, event.EventID, actor.IdempotencyKey)
	if err == nil {
		if existing.ParticipantID != actor.SubjectID || existing.CommittedAmount != input.Amount {
			return domain.Contribution{}, false, false, domain.ErrContributionConflict
		}
		return existing, true, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Contribution{}, false, false, err
	}

	all, err := s.contributions.ListByEvent(ctx, event.EventID)
	if err != nil {
		return domain.Contribution{}, false, false, err
	}

	// Refunded rows keep their slot vacant: the withdrawn participant may
	// rejoin and a new joiner may claim the freed index.
	var vacated *domain.Contribution
	used := make(map[int]bool, len(all))
	active := 0
	for i := range all {
		c := all[i]
		if c.ParticipantID == actor.SubjectID {
			if c.State != domain.ContributionStateRefunded {
				return domain.Contribution{}, false, false, domain.ErrConflict
			}
			vacated = &all[i]
			continue
		}
		if c.State == domain.ContributionStateRefunded {
			continue
		}
		used[c.JoinIndex] = true
		active++
	}
	if active >= event.TargetParticipants {
		return domain.Contribution{}, false, false, domain.ErrConflict
	}
	joinIndex := 0
	for used[joinIndex] {
		joinIndex++
	}

	plan, err := domain.ComputePlan(event, s.cfg.DepositFraction)
	if err != nil {
		return domain.Contribution{}, false, false, err
	}
	isOrganizer := actor.SubjectID == event.OrganizerID
	if err := domain.ValidateContribution(event, plan, joinIndex, isOrganizer, input.Amount, s.cfg.ContributionTolerance); err != nil {
		return domain.Contribution{}, false, false, err
	}
	if event.Budget != nil && domain.CapturedTotal(all)+input.Amount > *event.Budget {
		return domain.Contribution{}, false, false, domain.ErrBudgetExceeded
	}

	now := s.nowFn()
	if vacated != nil {
		rejoined := *vacated
		rejoined.JoinIndex = joinIndex
		rejoined.CommittedAmount = input.Amount
		rejoined.CapturedAmount = 0
		rejoined.CaptureRef = ""
		rejoined.State = domain.ContributionStatePledged
		rejoined.IdempotencyKey = actor.IdempotencyKey
		rejoined.UpdatedAt = now
		return rejoined, false, true, nil
	}
	return domain.Contribution{
		EventID:         event.EventID,
		ParticipantID:   actor.SubjectID,
		JoinIndex:       joinIndex,
		CommittedAmount: input.Amount,
		State:           domain.ContributionStatePledged,
		IdempotencyKey:  actor.IdempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, false, false, nil
}

// WithdrawContribution backs a participant out before the event locks.
// Captured funds go back through the gateway; a pledged record is simply
// marked refunded.
func (s *Service) WithdrawContribution(ctx context.Context, actor Actor, eventID string) (domain.Contribution, error) {
	release, err := s.locker.Acquire(ctx, eventLockKey(eventID))
	if err != nil {
		return domain.Contribution{}, err
	}
	defer release()

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return domain.Contribution{}, err
	}
	if event.Status != domain.EventStatusDraft && event.Status != domain.EventStatusOpen {
		return domain.Contribution{}, domain.ErrEventLocked
	}
	contribution, err := s.contributions.Get(ctx, eventID, actor.SubjectID)
	if err != nil {
		return domain.Contribution{}, err
	}
	if contribution.State == domain.ContributionStateRefunded {
		return contribution, nil
	}

	now := s.nowFn()
	refunded := contribution.CapturedAmount
	if contribution.State == domain.ContributionStateCaptured {
		if err := s.refundContribution(ctx, eventID, contribution); err != nil {
			return domain.Contribution{}, err
		}
	}
	contribution.State = domain.ContributionStateRefunded
	contribution.CapturedAmount = 0
	contribution.UpdatedAt = now
	if err := s.contributions.Update(ctx, contribution); err != nil {
		return domain.Contribution{}, err
	}
	if refunded > 0 {
		s.emitContributionRefunded(ctx, contribution, refunded, now)
	}
	return contribution, nil
}

func (s *Service) LockEvent(ctx context.Context, actor Actor, eventID string) (domain.Event, error) {
	release, err := s.locker.Acquire(ctx, eventLockKey(eventID))
	if err != nil {
		return domain.Event{}, err
	}
	defer release()

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	if actor.SubjectID != event.OrganizerID {
		return domain.Event{}, domain.ErrForbidden
	}
	contributions, err := s.contributions.ListByEvent(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	plan, err := domain.ComputePlan(event, s.cfg.DepositFraction)
	if err != nil {
		return domain.Event{}, err
	}
	if err := domain.CanLock(event, plan, contributions); err != nil {
		return domain.Event{}, err
	}
	if err := event.Lock(s.nowFn()); err != nil {
		return domain.Event{}, err
	}
	if err := s.events.Update(ctx, event); err != nil {
		return domain.Event{}, err
	}
	s.logger.Info("event locked", "event_id", eventID, "captured_total", domain.CapturedTotal(contributions))
	return event, nil
}

func (s *Service) CompleteEvent(ctx context.Context, actor Actor, eventID string) (domain.Event, error) {
	release, err := s.locker.Acquire(ctx, eventLockKey(eventID))
	if err != nil {
		return domain.Event{}, err
	}
	defer release()

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	if actor.SubjectID != event.OrganizerID {
		return domain.Event{}, domain.ErrForbidden
	}
	if err := event.Complete(s.nowFn()); err != nil {
		return domain.Event{}, err
	}
	if err := s.events.Update(ctx, event); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

// CancelEvent refunds every captured contribution and removes the ledger.
// Refunds are idempotent per participant, so a retry after a partial failure
// picks up where the previous attempt stopped.
func (s *Service) CancelEvent(ctx context.Context, actor Actor, eventID string) (domain.Event, error) {
	release, err := s.locker.Acquire(ctx, eventLockKey(eventID))
	if err != nil {
		return domain.Event{}, err
	}
	defer release()

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	if actor.SubjectID != event.OrganizerID {
		return domain.Event{}, domain.ErrForbidden
	}
	if event.Status != domain.EventStatusDraft && event.Status != domain.EventStatusOpen {
		return domain.Event{}, domain.ErrEventLocked
	}

	contributions, err := s.contributions.ListByEvent(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	now := s.nowFn()
	for _, c := range contributions {
		if c.State != domain.ContributionStateCaptured {
			continue
		}
		if err := s.refundContribution(ctx, eventID, c); err != nil {
			return domain.Event{}, err
		}
		refunded := c.CapturedAmount
		c.State = domain.ContributionStateRefunded
		c.CapturedAmount = 0
		c.UpdatedAt = now
		if err := s.contributions.Update(ctx, c); err != nil {
			return domain.Event{}, err
		}
		s.emitContributionRefunded(ctx, c, refunded, now)
	}

	if err := event.Cancel(now); err != nil {
		return domain.Event{}, err
	}
	if err := s.events.Update(ctx, event); err != nil {
		return domain.Event{}, err
	}
	if err := s.contributions.DeleteByEvent(ctx, eventID); err != nil {
		return domain.Event{}, err
	}
	s.emitEventCancelled(ctx, event, now)
	s.logger.Info("event cancelled", "event_id", eventID, "refunded_contributions", len(contributions))
	return event, nil
}

func (s *Service) refundContribution(ctx context.Context, eventID string, c domain.Contribution) error {
	refundCtx, cancel := context.WithTimeout(ctx, s.cfg.PaymentCaptureTimeout)
	defer cancel()
	result, err := s.gateway.Refund(refundCtx, ports.RefundRequest{
		CaptureRef:     c.CaptureRef,
		Amount:         c.CapturedAmount,
		IdempotencyKey: "refund:" + eventID + ":" + c.ParticipantID,
	})
	if err != nil || !result.Success {
		s.logger.Error("contribution refund failed",
			"event_id", eventID, "participant_id", c.ParticipantID, "error", err)
		return domain.ErrPaymentCaptureFailed
	}
	return nil
}

func (s *Service) GetEvent(ctx context.Context, eventID string) (EventSummary, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return EventSummary{}, err
	}
	contributions, err := s.contributions.ListByEvent(ctx, eventID)
	if err != nil {
		return EventSummary{}, err
	}
	return EventSummary{
		Event:         event,
		Contributions: contributions,
		CapturedTotal: domain.CapturedTotal(contributions),
	}, nil
}
