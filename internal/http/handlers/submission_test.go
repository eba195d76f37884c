package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvillareal/intake-scheduler/internal/ledger"
	"github.com/mvillareal/intake-scheduler/internal/lock"
	"github.com/mvillareal/intake-scheduler/internal/registry"
	"github.com/mvillareal/intake-scheduler/internal/requests"
)

type stubBooker struct {
	lefts []int
	err   error
	got   requests.Request
}

func (s *stubBooker) OnSubmission(_ context.Context, req requests.Request) ([]int, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return s.lefts, nil
}

func newSubmissionHandler(t *testing.T, booker *stubBooker) *SubmissionHandler {
	t.Helper()
	reg, err := registry.New(registry.DefaultCategories())
	require.NoError(t, err)
	return NewSubmissionHandler(booker, reg, nil)
}

func postSubmission(h *SubmissionHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/submission", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

const validBody = `{
	"category": "medical",
	"last_name": "Dela Cruz",
	"first_name": "Juan",
	"purok": "Purok 3",
	"barangay": "Poblacion",
	"date": "2026-09-01"
}`

func TestSubmissionAccepted(t *testing.T) {
	booker := &stubBooker{lefts: []int{4, 2, 7}}
	rec := postSubmission(newSubmissionHandler(t, booker), validBody)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp submissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "booked", resp.Status)
	assert.Equal(t, "2026-09-01", resp.Date)
	assert.Equal(t, map[string]int{"medical": 4, "burial": 2, "educational": 7}, resp.Left)
	assert.Equal(t, "medical", booker.got.CategoryID)
}

func TestSubmissionDateFromChoiceLabel(t *testing.T) {
	booker := &stubBooker{lefts: []int{1, 1, 1}}
	body := `{
		"category": "burial",
		"last_name": "Reyes",
		"first_name": "Maria",
		"choice_label": "September 1, 2026 (Tuesday) - 14 slots left [2026-09-01]"
	}`
	rec := postSubmission(newSubmissionHandler(t, booker), body)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "2026-09-01", booker.got.Date.String())
}

func TestSubmissionStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"no slots", ledger.ErrNoSlots, http.StatusConflict},
		{"holiday", ledger.ErrHolidayDate, http.StatusUnprocessableEntity},
		{"invalid date", ledger.ErrInvalidDate, http.StatusUnprocessableEntity},
		{"lock busy", lock.ErrBusy, http.StatusServiceUnavailable},
		{"internal", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postSubmission(newSubmissionHandler(t, &stubBooker{err: tc.err}), validBody)
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestSubmissionBusyCarriesRetryAfter(t *testing.T) {
	rec := postSubmission(newSubmissionHandler(t, &stubBooker{err: lock.ErrBusy}), validBody)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

func TestSubmissionRejectsBadPayloads(t *testing.T) {
	h := newSubmissionHandler(t, &stubBooker{})
	cases := []struct {
		name string
		body string
	}{
		{"not json", `{{`},
		{"missing category", `{"last_name":"X","first_name":"Y","date":"2026-09-01"}`},
		{"missing name", `{"category":"medical","date":"2026-09-01"}`},
		{"missing date", `{"category":"medical","last_name":"X","first_name":"Y"}`},
		{"garbled date", `{"category":"medical","last_name":"X","first_name":"Y","date":"next tuesday"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postSubmission(h, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
