package choices

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvillareal/intake-scheduler/internal/dates"
)

func testValidator() *dates.Validator {
	now := time.Date(2026, time.August, 28, 8, 0, 0, 0, time.UTC) // Friday
	return dates.NewValidator(time.UTC, 60, nil).WithNow(func() time.Time { return now })
}

func TestBuildLabelsOrderingAndFiltering(t *testing.T) {
	availability := map[string]int{
		"2026-09-02": 1,
		"2026-09-01": 14,
		"2026-08-30": 20, // Sunday, filtered
		"2026-09-03": 0,  // full, filtered
		"2026-08-20": 5,  // past, filtered
	}

	labels := BuildLabels(context.Background(), availability, testValidator())

	require.Equal(t, []string{
		"September 1, 2026 (Tuesday) - 14 slots left [2026-09-01]",
		"September 2, 2026 (Wednesday) - 1 slot left [2026-09-02]",
	}, labels)
}

func TestLabelRoundTripsThroughExtractDate(t *testing.T) {
	d, err := dates.Parse("2026-09-01")
	require.NoError(t, err)

	got, err := dates.ExtractDate(Label(d, 7))
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestHTTPPublisherReplaceAll(t *testing.T) {
	var gotAuth string
	var gotBody replacePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewHTTPPublisher(srv.URL, "tok-123", nil)
	require.NoError(t, p.ReplaceAll(context.Background(), []string{"a", "b"}))

	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, []string{"a", "b"}, gotBody.Choices)
}

func TestHTTPPublisherEmptyListClearsSelector(t *testing.T) {
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		raw, err = json.Marshal(mustDecode(t, r))
		require.NoError(t, err)
	}))
	defer srv.Close()

	p := NewHTTPPublisher(srv.URL, "", nil)
	require.NoError(t, p.ReplaceAll(context.Background(), nil))
	assert.JSONEq(t, `{"choices":[]}`, string(raw))
}

func mustDecode(t *testing.T, r *http.Request) replacePayload {
	t.Helper()
	var p replacePayload
	require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
	return p
}

func TestHTTPPublisherServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPPublisher(srv.URL, "", nil)
	err := p.ReplaceAll(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}
