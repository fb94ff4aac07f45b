package middleware

import (
	"net/http"

	"github.com/quentinv/tenantguard/internal/auth"
	"github.com/quentinv/tenantguard/internal/secure"
)

// Harden decorates every response with the defensive header set and the
// nonce-bound CSP. It runs after the context builder so the per-request
// nonce exists, and writes headers before the handler can flush.
func Harden(policy *secure.HeaderPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var nonce string
			if rc := auth.FromContext(r.Context()); rc != nil {
				nonce = rc.Nonce
			}
			policy.Apply(w.Header(), nonce)
			next.ServeHTTP(w, r)
		})
	}
}
