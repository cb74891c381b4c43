package sequence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/channel"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/model"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/quota"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/sequence"
)

type runnerDeps struct {
	campaigns   *fakeCampaigns
	enrollments *fakeEnrollments
	accounts    *fakeAccounts
	quotaStore  *fakeQuota
	email       *fakeSender
	sms         *fakeSender
	sink        *fakeSink
	runner      *sequence.Runner
}

func newRunner(t *testing.T, c *model.Campaign, due []model.Enrollment) *runnerDeps {
	t.Helper()

	d := &runnerDeps{
		campaigns:   &fakeCampaigns{byID: map[string]*model.Campaign{}},
		enrollments: &fakeEnrollments{due: due},
		accounts:    &fakeAccounts{plans: map[string]string{"u1": "pro"}},
		quotaStore:  &fakeQuota{},
		email:       &fakeSender{ch: model.ChannelEmail},
		sms:         &fakeSender{ch: model.ChannelSMS},
		sink:        &fakeSink{},
	}
	if c != nil {
		d.campaigns.byID[c.ID] = c
	}

	clock := func() time.Time { return stepNow }
	ledger := quota.NewLedger(d.quotaStore, d.accounts).WithClock(clock)
	stepper := sequence.NewStepper(d.enrollments, d.accounts, ledger, channel.Registry{
		model.ChannelEmail: d.email,
		model.ChannelSMS:   d.sms,
	}).WithClock(clock)
	d.runner = sequence.NewRunner(d.campaigns, d.enrollments, stepper, d.sink).WithClock(clock)
	return d
}

func dueBatch(n int) []model.Enrollment {
	out := make([]model.Enrollment, 0, n)
	for i := 0; i < n; i++ {
		e := dueEnrollment(0)
		e.ID = string(rune('a' + i))
		out = append(out, *e)
	}
	return out
}

func TestRunCampaign_UnknownCampaign(t *testing.T) {
	t.Parallel()

	d := newRunner(t, nil, nil)

	_, err := d.runner.RunCampaign(context.Background(), "t1", "nope", 50, false)
	if !errors.Is(err, sequence.ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}
}

func TestRunCampaign_InactiveCampaign(t *testing.T) {
	t.Parallel()

	c := threeStepCampaign()
	c.Status = model.CampaignDraft
	d := newRunner(t, c, nil)

	_, err := d.runner.RunCampaign(context.Background(), "t1", "c1", 50, false)
	if !errors.Is(err, sequence.ErrCampaignNotActive) {
		t.Fatalf("expected ErrCampaignNotActive, got %v", err)
	}
}

func TestRunCampaign_MissingArguments(t *testing.T) {
	t.Parallel()

	d := newRunner(t, threeStepCampaign(), nil)

	if _, err := d.runner.RunCampaign(context.Background(), "", "c1", 50, false); !errors.Is(err, sequence.ErrMissingArgument) {
		t.Fatalf("expected ErrMissingArgument for tenant, got %v", err)
	}
	if _, err := d.runner.RunCampaign(context.Background(), "t1", "", 50, false); !errors.Is(err, sequence.ErrMissingArgument) {
		t.Fatalf("expected ErrMissingArgument for campaign, got %v", err)
	}
}

func TestRunCampaign_LiveBatchAggregates(t *testing.T) {
	t.Parallel()

	due := dueBatch(5)
	d := newRunner(t, threeStepCampaign(), due)

	res, err := d.runner.RunCampaign(context.Background(), "t1", "c1", 50, false)
	if err != nil {
		t.Fatalf("RunCampaign() error: %v", err)
	}

	if res.Processed != 5 || res.Sent[model.ChannelEmail] != 5 {
		t.Fatalf("expected 5 email sends, got %+v", res)
	}
	if len(res.Errors) != 0 || res.Skipped != 0 {
		t.Fatalf("expected clean batch, got %+v", res)
	}
	if res.RunID == "" || !res.RanAt.Equal(stepNow) {
		t.Fatalf("expected run metadata, got %+v", res)
	}
	if d.campaigns.statsCalls != 1 || d.campaigns.gotSent != 5 {
		t.Fatalf("expected stats persisted once with 5 sends, got calls=%d sent=%d",
			d.campaigns.statsCalls, d.campaigns.gotSent)
	}
	if len(d.sink.stored) != 1 {
		t.Fatalf("expected the batch result cached, got %d", len(d.sink.stored))
	}
}

func TestRunCampaign_TransportErrorDoesNotAbortBatch(t *testing.T) {
	t.Parallel()

	due := dueBatch(5)
	d := newRunner(t, threeStepCampaign(), due)

	// Enrollments are processed in order, so failing the third send call
	// fails exactly due[2].
	failing := due[2].ID
	sel := &failNthSender{inner: d.email, failOn: 3}
	clock := func() time.Time { return stepNow }
	ledger := quota.NewLedger(d.quotaStore, d.accounts).WithClock(clock)
	stepper := sequence.NewStepper(d.enrollments, d.accounts, ledger, channel.Registry{
		model.ChannelEmail: sel,
		model.ChannelSMS:   d.sms,
	}).WithClock(clock)
	d.runner = sequence.NewRunner(d.campaigns, d.enrollments, stepper, d.sink).WithClock(clock)

	res, err := d.runner.RunCampaign(context.Background(), "t1", "c1", 50, false)
	if err != nil {
		t.Fatalf("RunCampaign() error: %v", err)
	}

	if res.Processed != 4 {
		t.Fatalf("expected processed=4, got %d", res.Processed)
	}
	if len(res.Errors) != 1 || res.Errors[0].EnrollmentID != failing {
		t.Fatalf("expected one error for %s, got %+v", failing, res.Errors)
	}
	// The failed enrollment was never persisted.
	for _, a := range d.enrollments.applied {
		if a.ID == failing {
			t.Fatalf("failed enrollment must not be persisted")
		}
	}
}

func TestRunCampaign_DryRunMutatesNothing(t *testing.T) {
	t.Parallel()

	// 10 due: 6 at an eligible email step, 4 sitting on the sms step of a
	// starter-plan owner, which are skipped.
	due := dueBatch(6)
	for i := 0; i < 4; i++ {
		e := dueEnrollment(2)
		e.ID = string(rune('w' + i))
		due = append(due, *e)
	}
	d := newRunner(t, threeStepCampaign(), due)
	d.accounts.plans["u1"] = "starter"

	res, err := d.runner.RunCampaign(context.Background(), "t1", "c1", 50, true)
	if err != nil {
		t.Fatalf("RunCampaign() error: %v", err)
	}

	if res.Processed != 6 || res.Sent[model.ChannelEmail] != 6 {
		t.Fatalf("expected 6 virtual sends, got %+v", res)
	}
	if res.Skipped != 4 {
		t.Fatalf("expected 4 skips, got %d", res.Skipped)
	}
	if len(d.enrollments.applied) != 0 {
		t.Fatalf("dry run must not touch enrollments")
	}
	if len(d.enrollments.claimed) != 0 || d.enrollments.listed != 1 {
		t.Fatalf("dry run must read without claiming: claimed=%v listed=%d",
			d.enrollments.claimed, d.enrollments.listed)
	}
	if len(d.quotaStore.increments) != 0 {
		t.Fatalf("dry run must not consume quota")
	}
	if d.campaigns.statsCalls != 0 {
		t.Fatalf("dry run must not persist campaign stats")
	}
	if len(d.sink.stored) != 0 {
		t.Fatalf("dry run results are not cached")
	}
}

func TestRunCampaign_HonorsLimit(t *testing.T) {
	t.Parallel()

	due := dueBatch(5)
	d := newRunner(t, threeStepCampaign(), due)

	res, err := d.runner.RunCampaign(context.Background(), "t1", "c1", 2, false)
	if err != nil {
		t.Fatalf("RunCampaign() error: %v", err)
	}
	if res.Processed != 2 {
		t.Fatalf("expected the batch capped at 2, got %d", res.Processed)
	}
}

func TestRunCampaign_LiveRunClaimsBatch(t *testing.T) {
	t.Parallel()

	due := dueBatch(3)
	d := newRunner(t, threeStepCampaign(), due)

	res, err := d.runner.RunCampaign(context.Background(), "t1", "c1", 50, false)
	if err != nil {
		t.Fatalf("RunCampaign() error: %v", err)
	}

	if res.Processed != 3 {
		t.Fatalf("expected 3 sends, got %+v", res)
	}
	if len(d.enrollments.claimed) != 3 || d.enrollments.listed != 0 {
		t.Fatalf("live run must claim its batch: claimed=%v listed=%d",
			d.enrollments.claimed, d.enrollments.listed)
	}
	// Advancing writes the claim back to active in the same update.
	if len(d.enrollments.released) != 0 {
		t.Fatalf("advanced enrollments must not be released, got %v", d.enrollments.released)
	}
	for _, a := range d.enrollments.applied {
		if a.Status != model.EnrollmentActive {
			t.Fatalf("persisted advance must leave status active, got %s for %s", a.Status, a.ID)
		}
	}
}

func TestRunCampaign_ReleasesUnadvancedClaims(t *testing.T) {
	t.Parallel()

	// Three email steps plus two on the sms step of a starter-plan owner.
	due := dueBatch(3)
	for i := 0; i < 2; i++ {
		e := dueEnrollment(2)
		e.ID = string(rune('x' + i))
		due = append(due, *e)
	}
	d := newRunner(t, threeStepCampaign(), due)
	d.accounts.plans["u1"] = "starter"

	// The second email send fails in transport.
	failing := due[1].ID
	clock := func() time.Time { return stepNow }
	ledger := quota.NewLedger(d.quotaStore, d.accounts).WithClock(clock)
	stepper := sequence.NewStepper(d.enrollments, d.accounts, ledger, channel.Registry{
		model.ChannelEmail: &failNthSender{inner: d.email, failOn: 2},
		model.ChannelSMS:   d.sms,
	}).WithClock(clock)
	d.runner = sequence.NewRunner(d.campaigns, d.enrollments, stepper, d.sink).WithClock(clock)

	res, err := d.runner.RunCampaign(context.Background(), "t1", "c1", 50, false)
	if err != nil {
		t.Fatalf("RunCampaign() error: %v", err)
	}

	if res.Processed != 2 || res.Skipped != 2 || len(res.Errors) != 1 {
		t.Fatalf("expected 2 sends, 2 skips, 1 error, got %+v", res)
	}

	// Skipped and failed claims go back to active; advanced ones do not.
	want := map[string]bool{failing: true, "x": true, "y": true}
	if len(d.enrollments.released) != len(want) {
		t.Fatalf("expected %d releases, got %v", len(want), d.enrollments.released)
	}
	for _, id := range d.enrollments.released {
		if !want[id] {
			t.Fatalf("unexpected release of %s (all: %v)", id, d.enrollments.released)
		}
	}
}

func TestRunCampaign_BudgetStopReleasesRemainingClaims(t *testing.T) {
	t.Parallel()

	due := dueBatch(4)
	d := newRunner(t, threeStepCampaign(), due)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := d.runner.RunCampaign(ctx, "t1", "c1", 50, false)
	if err != nil {
		t.Fatalf("RunCampaign() error: %v", err)
	}

	if res.Processed != 0 {
		t.Fatalf("expected nothing processed after the budget stop, got %+v", res)
	}
	if len(d.enrollments.released) != 4 {
		t.Fatalf("expected all 4 claims handed back, got %v", d.enrollments.released)
	}
}

type failNthSender struct {
	inner  *fakeSender
	calls  int
	failOn int
}

func (s *failNthSender) Send(ctx context.Context, msg channel.Message) (*channel.Result, error) {
	s.calls++
	if s.calls == s.failOn {
		return nil, errTransport
	}
	return s.inner.Send(ctx, msg)
}
