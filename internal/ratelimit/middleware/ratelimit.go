// Package middleware throttles expensive endpoints per authenticated actor.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"sheetport/internal/ratelimit/metrics"
	"sheetport/internal/ratelimit/models"
	"sheetport/pkg/platform/httputil"
	metadata "sheetport/pkg/platform/middleware/metadata"
	request "sheetport/pkg/platform/middleware/request"
	"sheetport/pkg/requestcontext"
)

// Limiter is a sliding-window store.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

type Middleware struct {
	limiter Limiter
	logger  *slog.Logger
	limit   int
	window  time.Duration
	metrics *metrics.Metrics
}

type Option func(*Middleware)

func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

// New limits each key to limit requests per window.
func New(limiter Limiter, limit int, window time.Duration, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
		limit:   limit,
		window:  window,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PerActor keys the window on the authenticated actor, or the client address
// for anonymous requests. Store failures let the request through.
func (m *Middleware) PerActor(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := scope + ":" + subject(r)

			result, err := m.limiter.Allow(ctx, key, m.limit, m.window)
			if err != nil {
				m.metrics.IncrementCheck(metrics.OutcomeError)
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"error", err,
					"scope", scope,
					"request_id", request.GetRequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.metrics.IncrementCheck(metrics.OutcomeBlocked)
				actorID, _ := requestcontext.Actor(ctx)
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"scope", scope,
					"actor_id", actorID,
					"request_id", request.GetRequestID(ctx),
				)
				writeRateLimitExceeded(w, result)
				return
			}
			m.metrics.IncrementCheck(metrics.OutcomeAllowed)
			next.ServeHTTP(w, r)
		})
	}
}

func subject(r *http.Request) string {
	if actorID, _ := requestcontext.Actor(r.Context()); actorID != "" {
		return "actor:" + actorID
	}
	ip := metadata.GetClientIP(r.Context())
	if ip == "" {
		ip = metadata.ClientIPFromRequest(r)
	}
	return "ip:" + ip
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many imports. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
