package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/channel"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/model"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/plan"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/quota"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/repo"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/template"
)

type OutcomeStatus string

const (
	// OutcomeSent covers a live delivery and, in dry-run mode, a delivery
	// that would have happened.
	OutcomeSent      OutcomeStatus = "sent"
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome is the result of advancing one enrollment by one step.
type Outcome struct {
	EnrollmentID string
	Status       OutcomeStatus
	Channel      model.Channel
	Err          error
}

// Stepper drives the per-enrollment state machine. It only ever moves an
// active enrollment forward: either one step deeper into the sequence or
// into the terminal completed status.
type Stepper struct {
	enrollments repo.EnrollmentStore
	accounts    repo.AccountStore
	ledger      *quota.Ledger
	senders     channel.Registry
	now         func() time.Time
}

func NewStepper(enrollments repo.EnrollmentStore, accounts repo.AccountStore, ledger *quota.Ledger, senders channel.Registry) *Stepper {
	return &Stepper{
		enrollments: enrollments,
		accounts:    accounts,
		ledger:      ledger,
		senders:     senders,
		now:         time.Now,
	}
}

// WithClock overrides the reference clock, for tests.
func (s *Stepper) WithClock(now func() time.Time) *Stepper {
	s.now = now
	return s
}

// Advance evaluates one due enrollment against its campaign's step list.
//
// Skips (channel not in plan) and failures (quota, transport, config)
// leave the enrollment untouched, so the next sweep re-evaluates the same
// step. All mutations of a successful step land in a single update.
func (s *Stepper) Advance(ctx context.Context, e *model.Enrollment, c *model.Campaign, dryRun bool) Outcome {
	now := s.now().UTC()

	// Past the last step: nothing left to send.
	if e.CurrentStep >= len(c.Steps) {
		e.Status = model.EnrollmentCompleted
		e.CompletedAt = &now
		e.NextStepAt = nil
		if !dryRun {
			if err := s.enrollments.ApplyAdvance(ctx, e); err != nil {
				return Outcome{EnrollmentID: e.ID, Status: OutcomeFailed, Err: fmt.Errorf("complete enrollment: %w", err)}
			}
		}
		return Outcome{EnrollmentID: e.ID, Status: OutcomeCompleted}
	}

	step := c.Steps[e.CurrentStep]
	ch := step.ResolvedChannel()

	tier := s.ownerTier(ctx, c)
	if !plan.ChannelAvailable(tier, ch) {
		// Soft skip: the step stays due and is retried once the tenant's
		// plan gains the channel.
		return Outcome{EnrollmentID: e.ID, Status: OutcomeSkipped, Channel: ch}
	}

	resource := model.ResourceForChannel(ch)
	check, err := s.ledger.Check(ctx, c.TenantID, c.OwnerID, resource, 1)
	if err != nil {
		return Outcome{EnrollmentID: e.ID, Status: OutcomeFailed, Channel: ch, Err: fmt.Errorf("quota check: %w", err)}
	}
	if !check.Allowed {
		// The ledger says why: exhaustion, a plan without the resource, or
		// an owner with no subscription at all.
		return Outcome{EnrollmentID: e.ID, Status: OutcomeFailed, Channel: ch,
			Err: errors.New(check.Reason)}
	}

	if dryRun {
		return Outcome{EnrollmentID: e.ID, Status: OutcomeSent, Channel: ch}
	}

	sender, ok := s.senders[ch]
	if !ok {
		return Outcome{EnrollmentID: e.ID, Status: OutcomeFailed, Channel: ch,
			Err: fmt.Errorf("no sender wired for channel %s", ch)}
	}

	vars := template.VarsFor(e.Prospect, c, s.signature(ctx, e.TenantID))
	msg := channel.Message{
		TenantID: e.TenantID,
		To:       s.recipientAddress(e, ch),
		Subject:  template.Render(step.Content.Subject, vars),
		Body:     template.Render(step.Content.Body, vars),
	}

	if _, err := sender.Send(ctx, msg); err != nil {
		return Outcome{EnrollmentID: e.ID, Status: OutcomeFailed, Channel: ch, Err: err}
	}

	fired := e.CurrentStep
	e.CurrentStep++
	// Writing active here also returns a claimed (processing) row in the
	// same update that advances it.
	e.Status = model.EnrollmentActive
	e.LastSentAt = &now
	if e.History == nil {
		e.History = map[int]model.HistoryEntry{}
	}
	e.History[fired] = model.HistoryEntry{Channel: ch, SentAt: now, Status: "sent"}

	if e.CurrentStep < len(c.Steps) {
		// Delay is anchored on send time, not on the originally scheduled
		// slot, so a late sweep shifts the schedule instead of bursting.
		next := now.AddDate(0, 0, c.Steps[e.CurrentStep].DelayDays)
		e.NextStepAt = &next
	} else {
		e.NextStepAt = nil
	}

	if err := s.enrollments.ApplyAdvance(ctx, e); err != nil {
		// The message is already out; surface the persistence failure so
		// the batch report shows it.
		return Outcome{EnrollmentID: e.ID, Status: OutcomeFailed, Channel: ch,
			Err: fmt.Errorf("persist advance after send: %w", err)}
	}

	if err := s.ledger.Increment(ctx, c.TenantID, c.OwnerID, resource, 1); err != nil {
		slog.Error("quota increment failed after send",
			"enrollment_id", e.ID, "tenant_id", c.TenantID, "resource", string(resource), "error", err)
	}

	return Outcome{EnrollmentID: e.ID, Status: OutcomeSent, Channel: ch}
}

// ownerTier resolves the campaign owner's plan tier, falling back to the
// most restrictive tier when the subscription record is missing.
func (s *Stepper) ownerTier(ctx context.Context, c *model.Campaign) plan.Tier {
	raw, err := s.accounts.GetPlan(ctx, c.TenantID, c.OwnerID)
	if err != nil {
		if !errors.Is(err, repo.ErrUserNotFound) {
			slog.Error("plan lookup failed", "tenant_id", c.TenantID, "user_id", c.OwnerID, "error", err)
		}
		return plan.TierStarter
	}
	return plan.Normalize(raw)
}

func (s *Stepper) signature(ctx context.Context, tenantID string) string {
	in, err := s.accounts.GetEmailIntegration(ctx, tenantID)
	if err != nil || in == nil {
		return ""
	}
	return in.Signature
}

func (s *Stepper) recipientAddress(e *model.Enrollment, ch model.Channel) string {
	if ch == model.ChannelEmail {
		return e.Prospect.Email
	}
	return e.Prospect.Phone
}
