package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/model"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/plan"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/repo"
)

// CheckResult reports whether an amount of a resource may be consumed.
// Remaining is -1 when the plan has no cap on the resource. Reason is set
// on every denial so callers can tell exhaustion from a plan or account
// problem.
type CheckResult struct {
	Allowed   bool   `json:"allowed"`
	Remaining int    `json:"remaining"`
	Limit     int    `json:"limit"`
	Reason    string `json:"reason,omitempty"`
}

// Snapshot is an operator-facing view of one user's current period.
type Snapshot struct {
	Plan   plan.Tier              `json:"plan"`
	Period string                 `json:"period"`
	Used   map[model.Resource]int `json:"used"`
	Limits map[model.Resource]int `json:"limits"`
}

// Ledger enforces monthly per-resource caps per tenant-user. Check is a
// pure read; Increment is the separate commit and must be called only
// after a successful send.
type Ledger struct {
	usage    repo.QuotaStore
	accounts repo.AccountStore
	now      func() time.Time
}

func NewLedger(usage repo.QuotaStore, accounts repo.AccountStore) *Ledger {
	return &Ledger{
		usage:    usage,
		accounts: accounts,
		now:      time.Now,
	}
}

// WithClock overrides the reference clock, for tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Period returns the current usage period. Period boundaries are UTC
// calendar months.
func (l *Ledger) Period() string {
	return l.now().UTC().Format("2006-01")
}

// Check resolves the user's plan cap for the resource and compares it to
// current-period usage. A usage record from a stale period counts as zero.
// A missing user is a denied result, not an error, so batch callers can
// skip and continue.
func (l *Ledger) Check(ctx context.Context, tenantID, userID string, r model.Resource, amount int) (CheckResult, error) {
	rawPlan, err := l.accounts.GetPlan(ctx, tenantID, userID)
	if errors.Is(err, repo.ErrUserNotFound) {
		return CheckResult{Allowed: false, Reason: fmt.Sprintf("user %s has no subscription", userID)}, nil
	}
	if err != nil {
		return CheckResult{}, err
	}

	limit := plan.Limit(plan.Normalize(rawPlan), r)
	if limit == plan.Unlimited {
		return CheckResult{Allowed: true, Remaining: -1, Limit: -1}, nil
	}
	if limit == 0 {
		return CheckResult{Allowed: false, Remaining: 0, Limit: 0,
			Reason: fmt.Sprintf("plan does not include %s", r)}, nil
	}

	used := 0
	u, err := l.usage.GetUsage(ctx, tenantID, userID)
	if err != nil {
		return CheckResult{}, err
	}
	if u != nil && u.Period == l.Period() {
		used = u.Counters[r]
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	out := CheckResult{
		Allowed:   amount <= remaining,
		Remaining: remaining,
		Limit:     limit,
	}
	if !out.Allowed {
		out.Reason = fmt.Sprintf("quota exhausted for %s (limit %d)", r, limit)
	}
	return out, nil
}

// Increment commits consumption against the current period. Rollover into
// a new month happens inside the store's transaction.
func (l *Ledger) Increment(ctx context.Context, tenantID, userID string, r model.Resource, amount int) error {
	return l.usage.IncrementUsage(ctx, tenantID, userID, l.Period(), r, amount)
}

// Usage builds a full snapshot of the user's current period for the
// inspection endpoint.
func (l *Ledger) Usage(ctx context.Context, tenantID, userID string) (*Snapshot, error) {
	rawPlan, err := l.accounts.GetPlan(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	tier := plan.Normalize(rawPlan)

	used := map[model.Resource]int{}
	u, err := l.usage.GetUsage(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if u != nil && u.Period == l.Period() {
		for r, n := range u.Counters {
			used[r] = n
		}
	}

	return &Snapshot{
		Plan:   tier,
		Period: l.Period(),
		Used:   used,
		Limits: plan.Limits(tier),
	}, nil
}
