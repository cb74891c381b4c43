package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/model"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/repo"
)

// DefaultBatchLimit caps how many due enrollments one run may touch.
const DefaultBatchLimit = 50

var (
	ErrCampaignNotFound  = repo.ErrCampaignNotFound
	ErrCampaignNotActive = errors.New("campaign is not active")
	ErrMissingArgument   = errors.New("missing required argument")
)

type EnrollmentError struct {
	EnrollmentID string `json:"enrollment_id"`
	Error        string `json:"error"`
}

// BatchResult is the machine-parseable outcome of one campaign run. It is
// the engine's only API surface.
type BatchResult struct {
	RunID      string                `json:"run_id"`
	TenantID   string                `json:"tenant_id"`
	CampaignID string                `json:"campaign_id"`
	DryRun     bool                  `json:"dry_run"`
	Processed  int                   `json:"processed"`
	Sent       map[model.Channel]int `json:"sent"`
	Skipped    int                   `json:"skipped"`
	Completed  int                   `json:"completed"`
	Errors     []EnrollmentError     `json:"errors"`
	RanAt      time.Time             `json:"ran_at"`
}

// ResultSink receives the result of every live run, for later inspection.
type ResultSink interface {
	StoreBatchResult(ctx context.Context, res *BatchResult) error
}

// Runner executes one pass over the due enrollments of a single campaign.
type Runner struct {
	campaigns   repo.CampaignStore
	enrollments repo.EnrollmentStore
	stepper     *Stepper
	results     ResultSink // optional
	now         func() time.Time
}

func NewRunner(campaigns repo.CampaignStore, enrollments repo.EnrollmentStore, stepper *Stepper, results ResultSink) *Runner {
	return &Runner{
		campaigns:   campaigns,
		enrollments: enrollments,
		stepper:     stepper,
		results:     results,
		now:         time.Now,
	}
}

// WithClock overrides the reference clock, for tests.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// RunCampaign fetches up to limit due enrollments and advances each one.
// Precondition failures (unknown or inactive campaign, missing ids) abort
// the whole run with a typed error; per-enrollment failures are collected
// into the result and never abort the batch.
func (r *Runner) RunCampaign(ctx context.Context, tenantID, campaignID string, limit int, dryRun bool) (*BatchResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id", ErrMissingArgument)
	}
	if campaignID == "" {
		return nil, fmt.Errorf("%w: campaign id", ErrMissingArgument)
	}
	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	c, err := r.campaigns.Get(ctx, tenantID, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignActive {
		return nil, fmt.Errorf("%w: status %s", ErrCampaignNotActive, c.Status)
	}

	// Live runs claim their batch so a scheduled sweep and an on-demand
	// run racing each other never double-send a step. Dry runs read
	// without claiming; they must not mutate anything.
	now := r.now().UTC()
	var due []model.Enrollment
	if dryRun {
		due, err = r.enrollments.ListDue(ctx, campaignID, now, limit)
	} else {
		due, err = r.enrollments.ClaimDue(ctx, campaignID, now, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch due enrollments: %w", err)
	}

	res := &BatchResult{
		RunID:      uuid.NewString(),
		TenantID:   tenantID,
		CampaignID: campaignID,
		DryRun:     dryRun,
		Sent:       map[model.Channel]int{},
		Errors:     []EnrollmentError{},
		RanAt:      now,
	}

	for i := range due {
		// Soft stop when the sweep budget runs out: unstarted claims are
		// handed back so they stay due for the next cycle.
		if ctx.Err() != nil {
			if !dryRun {
				for j := i; j < len(due); j++ {
					r.release(ctx, due[j].ID)
				}
			}
			break
		}

		out := r.stepper.Advance(ctx, &due[i], c, dryRun)
		switch out.Status {
		case OutcomeSent:
			res.Processed++
			res.Sent[out.Channel]++
		case OutcomeSkipped:
			res.Skipped++
			if !dryRun {
				r.release(ctx, due[i].ID)
			}
		case OutcomeCompleted:
			res.Completed++
		case OutcomeFailed:
			res.Errors = append(res.Errors, EnrollmentError{
				EnrollmentID: out.EnrollmentID,
				Error:        out.Err.Error(),
			})
			if !dryRun {
				r.release(ctx, due[i].ID)
			}
		}
	}

	if !dryRun {
		if err := r.campaigns.IncrementStats(ctx, tenantID, campaignID, res.Processed, res.Sent, now); err != nil {
			slog.Error("persist campaign stats failed",
				"tenant_id", tenantID, "campaign_id", campaignID, "error", err)
		}
		if r.results != nil {
			if err := r.results.StoreBatchResult(ctx, res); err != nil {
				slog.Warn("store batch result failed",
					"campaign_id", campaignID, "run_id", res.RunID, "error", err)
			}
		}
	}

	return res, nil
}

// release hands a claimed enrollment back to active. Runs without the
// batch context so a budget expiry cannot strand claims in processing.
func (r *Runner) release(ctx context.Context, enrollmentID string) {
	if err := r.enrollments.Release(context.WithoutCancel(ctx), enrollmentID); err != nil {
		slog.Error("release claimed enrollment failed", "enrollment_id", enrollmentID, "error", err)
	}
}
