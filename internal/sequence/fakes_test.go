package sequence_test

import (
	"context"
	"errors"
	"time"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/channel"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/model"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/repo"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/sequence"
)

type fakeEnrollments struct {
	due []model.Enrollment

	listErr  error
	applyErr error

	listed   int
	claimed  []string
	released []string
	applied  []model.Enrollment
}

var _ repo.EnrollmentStore = (*fakeEnrollments)(nil)

func (f *fakeEnrollments) ListDue(ctx context.Context, campaignID string, now time.Time, limit int) ([]model.Enrollment, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.listed++
	if limit < len(f.due) {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeEnrollments) ClaimDue(ctx context.Context, campaignID string, now time.Time, limit int) ([]model.Enrollment, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := f.due
	if limit < len(out) {
		out = out[:limit]
	}
	claimed := make([]model.Enrollment, len(out))
	for i, e := range out {
		e.Status = model.EnrollmentProcessing
		claimed[i] = e
		f.claimed = append(f.claimed, e.ID)
	}
	return claimed, nil
}

func (f *fakeEnrollments) Release(ctx context.Context, enrollmentID string) error {
	f.released = append(f.released, enrollmentID)
	return nil
}

func (f *fakeEnrollments) ApplyAdvance(ctx context.Context, e *model.Enrollment) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, *e)
	return nil
}

type fakeAccounts struct {
	plans       map[string]string // userID -> plan
	integration *model.EmailIntegration
	tenants     []string
}

var _ repo.AccountStore = (*fakeAccounts)(nil)

func (f *fakeAccounts) GetPlan(ctx context.Context, tenantID, userID string) (string, error) {
	p, ok := f.plans[userID]
	if !ok {
		return "", repo.ErrUserNotFound
	}
	return p, nil
}

func (f *fakeAccounts) ListTenants(ctx context.Context) ([]string, error) {
	return f.tenants, nil
}

func (f *fakeAccounts) GetEmailIntegration(ctx context.Context, tenantID string) (*model.EmailIntegration, error) {
	return f.integration, nil
}

type fakeQuota struct {
	usage      *model.QuotaUsage
	increments []model.Resource
}

var _ repo.QuotaStore = (*fakeQuota)(nil)

func (f *fakeQuota) GetUsage(ctx context.Context, tenantID, userID string) (*model.QuotaUsage, error) {
	return f.usage, nil
}

func (f *fakeQuota) IncrementUsage(ctx context.Context, tenantID, userID, period string, r model.Resource, amount int) error {
	f.increments = append(f.increments, r)
	return nil
}

type fakeSender struct {
	ch   model.Channel
	err  error
	sent []channel.Message
}

var _ channel.Sender = (*fakeSender)(nil)

func (f *fakeSender) Send(ctx context.Context, msg channel.Message) (*channel.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, msg)
	return &channel.Result{Channel: f.ch, ProviderID: "prov-1"}, nil
}

type fakeCampaigns struct {
	byID map[string]*model.Campaign

	// getErrFor makes Get fail for one campaign id while ListActive still
	// lists it, to exercise per-campaign sweep isolation.
	getErrFor string

	statsCalls int
	gotSent    int
}

var _ repo.CampaignStore = (*fakeCampaigns)(nil)

func (f *fakeCampaigns) Get(ctx context.Context, tenantID, campaignID string) (*model.Campaign, error) {
	if f.getErrFor != "" && campaignID == f.getErrFor {
		return nil, errors.New("store unavailable")
	}
	c, ok := f.byID[campaignID]
	if !ok {
		return nil, repo.ErrCampaignNotFound
	}
	return c, nil
}

func (f *fakeCampaigns) ListActive(ctx context.Context, tenantID string) ([]model.Campaign, error) {
	var out []model.Campaign
	for _, c := range f.byID {
		if c.TenantID == tenantID && c.Status == model.CampaignActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCampaigns) IncrementStats(ctx context.Context, tenantID, campaignID string, processed int, sentByChannel map[model.Channel]int, at time.Time) error {
	f.statsCalls++
	f.gotSent += processed
	return nil
}

type fakeSink struct {
	stored []*sequence.BatchResult
	err    error
}

func (f *fakeSink) StoreBatchResult(ctx context.Context, res *sequence.BatchResult) error {
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, res)
	return nil
}

var errTransport = errors.New("transport unreachable")
