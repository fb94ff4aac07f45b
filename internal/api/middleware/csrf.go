package middleware

import (
	"net/http"

	"github.com/quentinv/tenantguard/internal/audit"
	"github.com/quentinv/tenantguard/internal/auth"
	"github.com/quentinv/tenantguard/internal/observability"
	"github.com/quentinv/tenantguard/internal/secure"
)

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// CSRF verifies the submitted token against the session-bound one before
// any handler runs. Only cookie sessions are checked: bearer tokens and
// API keys are attached deliberately per request, not ambiently by the
// browser.
func CSRF(metrics *observability.Metrics, rec audit.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := auth.FromContext(r.Context())

			if !mutating(r.Method) || rc == nil || !rc.CookieSession {
				next.ServeHTTP(w, r)
				return
			}

			submitted := secure.CSRFTokenFromRequest(r)
			if !secure.VerifyCSRF(submitted, rc.CSRFToken) {
				metrics.CSRFRejections.Inc()
				subject := rc.Subject
				rec.Record(r.Context(), audit.Event{
					Action:    audit.ActionCSRFReject,
					Outcome:   audit.OutcomeDenied,
					SubjectID: &subject,
					IP:        auth.ClientIP(r),
					Detail:    map[string]string{"path": r.URL.Path},
				})
				auth.WriteError(w, http.StatusForbidden, "csrf token missing or invalid")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
