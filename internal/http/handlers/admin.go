package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mvillareal/intake-scheduler/internal/lock"
	"github.com/mvillareal/intake-scheduler/internal/quota"
	"github.com/mvillareal/intake-scheduler/internal/state"
	"github.com/mvillareal/intake-scheduler/pkg/logging"
)

// Rebuilder triggers the nightly full rebuild on demand. Satisfied by
// orchestrator.Nightly.
type Rebuilder interface {
	Run(ctx context.Context) error
}

// IntegrityRunner triggers the drift check on demand. Satisfied by
// orchestrator.Integrity.
type IntegrityRunner interface {
	Run(ctx context.Context) error
}

// AdminHandler serves the JWT-protected operator endpoints: manual pass
// triggers and a status snapshot.
type AdminHandler struct {
	rebuild   Rebuilder
	integrity IntegrityRunner
	quotas    *quota.Manager
	states    *state.Store
	logger    *logging.Logger
}

// NewAdminHandler builds the admin surface.
func NewAdminHandler(rebuild Rebuilder, integrity IntegrityRunner, quotas *quota.Manager, states *state.Store, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{
		rebuild:   rebuild,
		integrity: integrity,
		quotas:    quotas,
		states:    states,
		logger:    logger,
	}
}

// TriggerRebuild processes POST /admin/rebuild. The rebuild runs inline;
// callers should use a generous client timeout.
func (h *AdminHandler) TriggerRebuild(w http.ResponseWriter, r *http.Request) {
	h.runPass(w, r, "rebuild", h.rebuild.Run)
}

// TriggerIntegrity processes POST /admin/integrity.
func (h *AdminHandler) TriggerIntegrity(w http.ResponseWriter, r *http.Request) {
	h.runPass(w, r, "integrity", h.integrity.Run)
}

func (h *AdminHandler) runPass(w http.ResponseWriter, r *http.Request, name string, run func(context.Context) error) {
	h.logger.Info("admin: pass triggered", "pass", name)
	if err := run(r.Context()); err != nil {
		if errors.Is(err, lock.ErrBusy) {
			w.Header().Set("Retry-After", "30")
			writeError(w, http.StatusServiceUnavailable, "busy", "another run holds the scheduler lock")
			return
		}
		h.logger.Error("admin: pass failed", "pass", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", name+" pass failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "pass": name})
}

type statusResponse struct {
	CallsToday      int                `json:"calls_today"`
	CallsThisRun    int                `json:"calls_this_run"`
	SubmissionCount int64              `json:"submission_count"`
	LastNightly     *time.Time         `json:"last_nightly,omitempty"`
	LastIntegrity   *time.Time         `json:"last_integrity,omitempty"`
	RecentErrors    []state.ErrorEntry `json:"recent_errors"`
}

// Status processes GET /admin/status: quota counters, pass timestamps, and
// the rolling error log.
func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := statusResponse{RecentErrors: []state.ErrorEntry{}}

	today, err := h.quotas.CallsToday(ctx)
	if err != nil {
		h.logger.Error("admin: read quota counter", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "could not read quota state")
		return
	}
	resp.CallsToday = today
	resp.CallsThisRun = h.quotas.CallsThisRun()

	if n, err := h.states.SubmissionCount(ctx); err == nil {
		resp.SubmissionCount = n
	}
	if t, err := h.states.LastSync(ctx, "nightly"); err == nil && !t.IsZero() {
		resp.LastNightly = &t
	}
	if t, err := h.states.LastSync(ctx, "integrity"); err == nil && !t.IsZero() {
		resp.LastIntegrity = &t
	}
	if entries, err := h.states.RecentErrors(ctx); err == nil {
		resp.RecentErrors = entries
	}

	writeJSON(w, http.StatusOK, resp)
}
