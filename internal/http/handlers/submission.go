// Package handlers holds the HTTP handlers for the intake webhook and the
// admin surface.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mvillareal/intake-scheduler/internal/dates"
	"github.com/mvillareal/intake-scheduler/internal/ledger"
	"github.com/mvillareal/intake-scheduler/internal/lock"
	"github.com/mvillareal/intake-scheduler/internal/orchestrator"
	"github.com/mvillareal/intake-scheduler/internal/registry"
	"github.com/mvillareal/intake-scheduler/internal/requests"
	"github.com/mvillareal/intake-scheduler/pkg/logging"
)

// Booker is the incremental pass surface. Satisfied by
// orchestrator.Incremental.
type Booker interface {
	OnSubmission(ctx context.Context, req requests.Request) ([]int, error)
}

// SubmissionHandler receives intake form webhooks and turns them into
// bookings.
type SubmissionHandler struct {
	booker   Booker
	registry *registry.Registry
	logger   *logging.Logger
}

// NewSubmissionHandler builds the webhook handler.
func NewSubmissionHandler(booker Booker, reg *registry.Registry, logger *logging.Logger) *SubmissionHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SubmissionHandler{booker: booker, registry: reg, logger: logger}
}

type submissionPayload struct {
	Category  string `json:"category"`
	LastName  string `json:"last_name"`
	FirstName string `json:"first_name"`
	Purok     string `json:"purok"`
	Barangay  string `json:"barangay"`
	// Either the bare date or the full choice label copied from the form's
	// date selector; the label carries the date in brackets.
	Date        string `json:"date"`
	ChoiceLabel string `json:"choice_label"`
}

type submissionResponse struct {
	Status string         `json:"status"`
	Date   string         `json:"date"`
	Left   map[string]int `json:"left,omitempty"`
}

// Handle processes POST /webhooks/submission.
func (h *SubmissionHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var payload submissionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}

	req, err := h.buildRequest(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}

	lefts, err := h.booker.OnSubmission(r.Context(), req)
	if err != nil {
		h.writeBookingError(w, req, err)
		return
	}

	left := make(map[string]int, len(lefts))
	for i, c := range h.registry.Categories() {
		if i < len(lefts) {
			left[c.ID] = lefts[i]
		}
	}
	writeJSON(w, http.StatusCreated, submissionResponse{
		Status: "booked",
		Date:   req.Date.String(),
		Left:   left,
	})
}

func (h *SubmissionHandler) buildRequest(p submissionPayload) (requests.Request, error) {
	req := requests.Request{
		CategoryID: strings.TrimSpace(p.Category),
		LastName:   strings.TrimSpace(p.LastName),
		FirstName:  strings.TrimSpace(p.FirstName),
		Purok:      strings.TrimSpace(p.Purok),
		Barangay:   strings.TrimSpace(p.Barangay),
	}
	if req.CategoryID == "" {
		return requests.Request{}, errors.New("category is required")
	}
	if req.LastName == "" || req.FirstName == "" {
		return requests.Request{}, errors.New("last_name and first_name are required")
	}

	raw := strings.TrimSpace(p.Date)
	if raw == "" {
		raw = strings.TrimSpace(p.ChoiceLabel)
	}
	if raw == "" {
		return requests.Request{}, errors.New("date or choice_label is required")
	}
	d, err := dates.ExtractDate(raw)
	if err != nil {
		return requests.Request{}, errors.New("no usable date in payload")
	}
	req.Date = d
	return req, nil
}

func (h *SubmissionHandler) writeBookingError(w http.ResponseWriter, req requests.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrNoSlots):
		writeError(w, http.StatusConflict, "no_slots", "no slots left for the chosen date")
	case errors.Is(err, ledger.ErrHolidayDate):
		writeError(w, http.StatusUnprocessableEntity, "holiday", "the chosen date is a holiday")
	case errors.Is(err, ledger.ErrInvalidDate):
		writeError(w, http.StatusUnprocessableEntity, "invalid_date", "the chosen date is not bookable")
	case errors.Is(err, orchestrator.ErrUnknownCategory):
		writeError(w, http.StatusBadRequest, "unknown_category", "category is not registered")
	case errors.Is(err, lock.ErrBusy):
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, "busy", "another run holds the scheduler lock, retry shortly")
	default:
		h.logger.Error("submission failed",
			"category", req.CategoryID, "date", req.Date.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "booking failed")
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}
