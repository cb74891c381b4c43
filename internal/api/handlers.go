package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/quota"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/repo"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/scheduler"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/sequence"
)

// runTimeout bounds a synchronous campaign run triggered over HTTP so a
// slow batch cannot hold the connection forever.
const runTimeout = 60 * time.Second

// CampaignRunner triggers one pass over a campaign's due enrollments.
type CampaignRunner interface {
	RunCampaign(ctx context.Context, tenantID, campaignID string, limit int, dryRun bool) (*sequence.BatchResult, error)
}

// ResultReader serves the cached outcome of past runs and sweeps.
type ResultReader interface {
	LastBatchResult(ctx context.Context, campaignID string) (*sequence.BatchResult, error)
	LastSweepSummary(ctx context.Context) (*sequence.SweepSummary, error)
}

// QuotaReader exposes a user's current-period usage snapshot.
type QuotaReader interface {
	Usage(ctx context.Context, tenantID, userID string) (*quota.Snapshot, error)
}

type Handler struct {
	sched  *scheduler.Scheduler
	runner CampaignRunner
	quotas QuotaReader
	cache  ResultReader // nil when no result cache is configured
}

func NewHandler(s *scheduler.Scheduler, runner CampaignRunner, quotas QuotaReader, cache ResultReader) *Handler {
	return &Handler{sched: s, runner: runner, quotas: quotas, cache: cache}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, h.sched.Status())
}

type runRequest struct {
	TenantID string `json:"tenant_id"`
	DryRun   bool   `json:"dry_run"`
	Limit    int    `json:"limit"`
}

// RunCampaign executes a batch synchronously and returns its result. Dry
// runs report what would happen without touching any state.
func (h *Handler) RunCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), runTimeout)
	defer cancel()

	res, err := h.runner.RunCampaign(ctx, req.TenantID, campaignID, req.Limit, req.DryRun)
	switch {
	case errors.Is(err, sequence.ErrMissingArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sequence.ErrCampaignNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, sequence.ErrCampaignNotActive):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *Handler) LastRun(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusNotFound, "result cache not configured")
		return
	}

	res, err := h.cache.LastBatchResult(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, "no cached run for campaign")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) LastSweep(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusNotFound, "result cache not configured")
		return
	}

	sum, err := h.cache.LastSweepSummary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sum == nil {
		writeError(w, http.StatusNotFound, "no sweep recorded yet")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) QuotaUsage(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	userID := chi.URLParam(r, "userID")

	snap, err := h.quotas.Usage(r.Context(), tenantID, userID)
	if errors.Is(err, repo.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
