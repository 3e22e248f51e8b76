package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"bursar/internal/platform/ratelimit"
	"bursar/internal/transport/http/api"
)

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*keyedLimiter)

type keyedLimiter struct {
	limiter *ratelimit.Limiter
	window  time.Duration
	keyFn   RateLimitKeyFunc
}

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(kl *keyedLimiter) {
		if fn != nil {
			kl.keyFn = fn
		}
	}
}

// RateLimit allows limit requests per window for each caller. Callers are
// keyed by user id when authenticated and by client IP otherwise.
func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	kl := newKeyedLimiter(limit, window, actorOrIPKey)
	for _, opt := range opts {
		opt(kl)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !kl.enforce(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SensitiveMutationRateLimit applies a tighter per-actor budget to the
// payroll state transitions. Other requests pass untouched.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	byActor := newKeyedLimiter(max(baseLimit/2, 1), window, actorOrIPKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSensitiveMutation(r) && !byActor.enforce(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return clientIPKey(r)
}

func clientIPKey(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// ClientIP returns the first X-Forwarded-For hop, falling back to the
// connection's remote host.
func ClientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if value := strings.TrimSpace(first); value != "" {
			return value
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func newKeyedLimiter(limit int, window time.Duration, keyFn RateLimitKeyFunc) *keyedLimiter {
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	return &keyedLimiter{
		limiter: ratelimit.New(limit, window),
		window:  window,
		keyFn:   keyFn,
	}
}

func (kl *keyedLimiter) enforce(w http.ResponseWriter, r *http.Request) bool {
	key := kl.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}
	decision := kl.limiter.Allow(key)
	if decision.Limit == 0 {
		return true
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	if decision.Allowed {
		return true
	}

	retryAfter := ceilSeconds(decision.RetryAfter)
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(retryAfter))
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	log.Warn().
		Str("key", key).
		Str("path", r.URL.Path).
		Str("method", r.Method).
		Int("limit", decision.Limit).
		Dur("window", kl.window).
		Str("request_id", GetRequestID(r.Context())).
		Msg("rate limit exceeded")
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return max(int(math.Ceil(d.Seconds())), 1)
}

func isSensitiveMutation(r *http.Request) bool {
	if r == nil || r.Method != http.MethodPost {
		return false
	}
	path := strings.TrimPrefix(strings.TrimSpace(r.URL.Path), "/api/v1")
	if !strings.HasPrefix(path, "/payroll/periods/") {
		return false
	}
	return strings.HasSuffix(path, "/run") ||
		strings.HasSuffix(path, "/finalize") ||
		strings.HasSuffix(path, "/reopen")
}
