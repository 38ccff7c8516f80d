package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tutorhub/apiserver/config"
	"github.com/tutorhub/apiserver/internal/logging"
)

const rateLimitWindow = time.Minute

// Counter is a fixed-window counter store, satisfied by db.Redis.
type Counter interface {
	IncrWithExpire(ctx context.Context, key string, expiration time.Duration) (int64, error)
}

// RateLimit throttles clients by IP. Counter errors let the request through.
func RateLimit(counter Counter, cfg config.RateLimitConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			count, err := counter.IncrWithExpire(ctx, "ratelimit:"+clientIP(r), rateLimitWindow)
			if err != nil {
				logging.FromContext(ctx).WarnContext(ctx, "rate limit counter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			limit := cfg.RequestsPerMinute
			remaining := max(limit-int(count), 0)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(rateLimitWindow).Unix(), 10))

			if int(count) > limit+cfg.Burst {
				w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitWindow.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "too many requests"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP relies on chi's RealIP middleware having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i > 0 && !strings.HasSuffix(addr, "]") {
		return addr[:i]
	}
	return addr
}
