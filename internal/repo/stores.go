package repo

import (
	"context"
	"errors"
	"time"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/model"
)

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrUserNotFound     = errors.New("user not found")
)

type CampaignStore interface {
	Get(ctx context.Context, tenantID, campaignID string) (*model.Campaign, error)
	ListActive(ctx context.Context, tenantID string) ([]model.Campaign, error)
	// IncrementStats adds to the campaign's sent counters and stamps the
	// last-processed time. Commutative, so concurrent runners may both
	// apply it without coordination.
	IncrementStats(ctx context.Context, tenantID, campaignID string, processed int, sentByChannel map[model.Channel]int, at time.Time) error
}

type EnrollmentStore interface {
	// ListDue returns up to limit active enrollments whose next step is
	// due at now. Enrollments with a nil NextStepAt are included so that
	// runs past the last step get their completion transition. Read-only;
	// dry runs use it so they never claim anything.
	ListDue(ctx context.Context, campaignID string, now time.Time, limit int) ([]model.Enrollment, error)
	// ClaimDue locks due rows and marks them processing in one
	// transaction, so two concurrent runs never pick the same enrollment.
	// Every claimed row must end in ApplyAdvance or Release.
	ClaimDue(ctx context.Context, campaignID string, now time.Time, limit int) ([]model.Enrollment, error)
	// Release returns a claimed but unadvanced enrollment to active.
	Release(ctx context.Context, enrollmentID string) error
	// ApplyAdvance persists the enrollment's step position, schedule,
	// history and status in a single update.
	ApplyAdvance(ctx context.Context, e *model.Enrollment) error
}

type QuotaStore interface {
	// GetUsage returns the stored usage record, or nil when the user has
	// no record yet. The record may belong to a stale period.
	GetUsage(ctx context.Context, tenantID, userID string) (*model.QuotaUsage, error)
	// IncrementUsage atomically adds amount to one counter of the
	// current-period record. A record from an older period is replaced
	// wholesale with a fresh one holding only this increment.
	IncrementUsage(ctx context.Context, tenantID, userID, period string, r model.Resource, amount int) error
}

type AccountStore interface {
	// GetPlan resolves the subscription plan of a tenant-user. Returns
	// ErrUserNotFound when no subscription exists.
	GetPlan(ctx context.Context, tenantID, userID string) (string, error)
	ListTenants(ctx context.Context) ([]string, error)
	// GetEmailIntegration returns the tenant's mail settings, or nil when
	// none are configured.
	GetEmailIntegration(ctx context.Context, tenantID string) (*model.EmailIntegration, error)
}
