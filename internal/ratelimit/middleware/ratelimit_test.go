package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"sheetport/internal/ratelimit/metrics"
	"sheetport/internal/ratelimit/models"
	"sheetport/internal/ratelimit/store/bucket"
	"sheetport/pkg/requestcontext"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (*models.RateLimitResult, error) {
	return nil, errors.New("redis down")
}

func serve(h http.Handler, actorID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/characters/import", nil)
	if actorID != "" {
		req = req.WithContext(requestcontext.WithActor(req.Context(), actorID, "player"))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestPerActor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())
	mw := New(bucket.NewInMemoryBucketStore(), 2, time.Minute, logger, WithMetrics(m))
	h := mw.PerActor("import")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusOK, serve(h, "runner-1").Code)
	second := serve(h, "runner-1")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	blocked := serve(h, "runner-1")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "60", blocked.Header().Get("Retry-After"))
	assert.Contains(t, blocked.Body.String(), "rate_limit_exceeded")

	assert.Equal(t, http.StatusOK, serve(h, "runner-2").Code, "budgets are per actor")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checks.WithLabelValues(metrics.OutcomeBlocked)))
}

func TestPerActorAnonymousUsesClientAddress(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := New(bucket.NewInMemoryBucketStore(), 1, time.Minute, logger)
	h := mw.PerActor("import")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	assert.Equal(t, http.StatusOK, serve(h, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "").Code)
}

func TestPerActorFailsOpen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := New(failingLimiter{}, 1, time.Minute, logger)
	h := mw.PerActor("import")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	assert.Equal(t, http.StatusAccepted, serve(h, "runner-1").Code)
}
