package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvillareal/intake-scheduler/internal/http/handlers"
	"github.com/mvillareal/intake-scheduler/internal/quota"
	"github.com/mvillareal/intake-scheduler/internal/registry"
	"github.com/mvillareal/intake-scheduler/internal/requests"
	"github.com/mvillareal/intake-scheduler/internal/state"
)

type acceptAllBooker struct{}

func (acceptAllBooker) OnSubmission(context.Context, requests.Request) ([]int, error) {
	return []int{1, 1, 1}, nil
}

type noopRunner struct{}

func (noopRunner) Run(context.Context) error { return nil }

const testSecret = "router-test-secret"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	reg, err := registry.New(registry.DefaultCategories())
	require.NoError(t, err)

	return New(&Config{
		SubmissionHandler: handlers.NewSubmissionHandler(acceptAllBooker{}, reg, nil),
		AdminHandler: handlers.NewAdminHandler(noopRunner{}, noopRunner{},
			quota.NewManager(client, 80, 450, time.UTC, nil), state.NewStore(client), nil),
		AdminAuthSecret: testSecret,
	})
}

func TestHealthEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestWebhookRouteWired(t *testing.T) {
	body := `{"category":"medical","last_name":"X","first_name":"Y","date":"2026-09-01"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/submission", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAdminRequiresJWT(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := signToken(t, testSecret)
	req := httptest.NewRequest(http.MethodGet, "/admin/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func signToken(t *testing.T, secret string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "operator",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
