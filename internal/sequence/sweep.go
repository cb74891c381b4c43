package sequence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/model"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/repo"
)

// SweepSummary aggregates one pass over every tenant's active campaigns.
type SweepSummary struct {
	SweepID   string                `json:"sweep_id"`
	Tenants   int                   `json:"tenants"`
	Campaigns int                   `json:"campaigns"`
	Processed int                   `json:"processed"`
	Sent      map[model.Channel]int `json:"sent"`
	Skipped   int                   `json:"skipped"`
	Completed int                   `json:"completed"`
	Failures  int                   `json:"failures"`
	Partial   bool                  `json:"partial"`
	StartedAt time.Time             `json:"started_at"`
	Duration  time.Duration         `json:"duration"`
}

// SummarySink receives the summary of every sweep.
type SummarySink interface {
	StoreSweepSummary(ctx context.Context, sum *SweepSummary) error
}

// Sweeper is the recurring driver: it enumerates all tenants and their
// active campaigns and runs each through the Runner. One campaign's or
// tenant's failure never halts the sweep for the rest.
type Sweeper struct {
	accounts  repo.AccountStore
	campaigns repo.CampaignStore
	runner    *Runner
	summaries SummarySink // optional

	batchLimit int
	budget     time.Duration
	workers    int
	now        func() time.Time
}

func NewSweeper(accounts repo.AccountStore, campaigns repo.CampaignStore, runner *Runner, summaries SummarySink, batchLimit int, budget time.Duration, workers int) *Sweeper {
	if batchLimit <= 0 {
		batchLimit = DefaultBatchLimit
	}
	if workers <= 0 {
		workers = 1
	}
	return &Sweeper{
		accounts:   accounts,
		campaigns:  campaigns,
		runner:     runner,
		summaries:  summaries,
		batchLimit: batchLimit,
		budget:     budget,
		workers:    workers,
		now:        time.Now,
	}
}

// Run executes one sweep. Campaigns run with bounded parallelism; the
// partition key is the campaign, so no enrollment is ever advanced by two
// workers at once. When the wall-clock budget expires the sweep stops
// starting new campaigns and reports partial completion.
func (s *Sweeper) Run(ctx context.Context) *SweepSummary {
	start := s.now().UTC()
	sum := &SweepSummary{
		SweepID:   uuid.NewString(),
		Sent:      map[model.Channel]int{},
		StartedAt: start,
	}

	if s.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.budget)
		defer cancel()
	}

	tenants, err := s.accounts.ListTenants(ctx)
	if err != nil {
		slog.Error("sweep: list tenants failed", "sweep_id", sum.SweepID, "error", err)
		sum.Failures++
		sum.Duration = time.Since(start)
		return sum
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	for _, tenantID := range tenants {
		if ctx.Err() != nil {
			sum.Partial = true
			break
		}

		campaigns, err := s.campaigns.ListActive(ctx, tenantID)
		if err != nil {
			slog.Error("sweep: list campaigns failed",
				"sweep_id", sum.SweepID, "tenant_id", tenantID, "error", err)
			mu.Lock()
			sum.Failures++
			mu.Unlock()
			continue
		}
		sum.Tenants++

		for i := range campaigns {
			if ctx.Err() != nil {
				sum.Partial = true
				break
			}
			c := campaigns[i]

			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						slog.Error("sweep: campaign run panic recovered",
							"sweep_id", sum.SweepID, "campaign_id", c.ID, "panic", r)
						mu.Lock()
						sum.Failures++
						mu.Unlock()
					}
				}()

				res, err := s.runner.RunCampaign(ctx, c.TenantID, c.ID, s.batchLimit, false)
				mu.Lock()
				defer mu.Unlock()
				sum.Campaigns++
				if err != nil {
					slog.Error("sweep: campaign run failed",
						"sweep_id", sum.SweepID, "tenant_id", c.TenantID, "campaign_id", c.ID, "error", err)
					sum.Failures++
					return nil
				}

				sum.Processed += res.Processed
				sum.Skipped += res.Skipped
				sum.Completed += res.Completed
				sum.Failures += len(res.Errors)
				for ch, n := range res.Sent {
					sum.Sent[ch] += n
				}
				return nil
			})
		}
	}

	_ = g.Wait()
	sum.Duration = time.Since(start)

	if s.summaries != nil {
		if err := s.summaries.StoreSweepSummary(context.WithoutCancel(ctx), sum); err != nil {
			slog.Warn("sweep: store summary failed", "sweep_id", sum.SweepID, "error", err)
		}
	}

	slog.Info("sweep completed",
		"sweep_id", sum.SweepID,
		"tenants", sum.Tenants,
		"campaigns", sum.Campaigns,
		"processed", sum.Processed,
		"skipped", sum.Skipped,
		"completed", sum.Completed,
		"failures", sum.Failures,
		"partial", sum.Partial,
		"duration_ms", sum.Duration.Milliseconds(),
	)
	return sum
}
