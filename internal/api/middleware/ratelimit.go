package middleware

import (
	"fmt"
	"net/http"

	"github.com/quentinv/tenantguard/internal/audit"
	"github.com/quentinv/tenantguard/internal/auth"
	"github.com/quentinv/tenantguard/internal/observability"
	"github.com/quentinv/tenantguard/internal/ratelimit"
)

// RateLimit returns admission middleware for one action class. Denial is
// a distinct 429 outcome: it is reported before authentication runs, so
// it reveals nothing about credentials.
func RateLimit(limiter *ratelimit.Limiter, class ratelimit.Class, metrics *observability.Metrics, rec audit.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := auth.ClientIP(r)

			d := limiter.Admit(r.Context(), key, class)
			if !d.Allowed {
				metrics.RateLimitDenials.WithLabelValues(string(class)).Inc()
				rec.Record(r.Context(), audit.Event{
					Action:  audit.ActionRateLimit,
					Outcome: audit.OutcomeDenied,
					IP:      key,
					Detail:  map[string]string{"class": string(class)},
				})

				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", d.RetryAfter.Seconds()))
				auth.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			if d.Remaining >= 0 {
				w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", d.Remaining))
			}
			next.ServeHTTP(w, r)
		})
	}
}
