package secure

import (
	"net/http"
	"strings"
)

// ServerBanner replaces whatever identifying Server header the stack
// would otherwise emit.
const ServerBanner = "tenantguard"

// HeaderPolicy describes the fixed defensive header set plus the
// deployment-specific CSP allow-list.
type HeaderPolicy struct {
	// AllowedHosts are external hosts permitted as script/style sources
	// in addition to the serving origin.
	AllowedHosts []string
}

// Apply writes the defensive header set onto a response. The nonce is
// the per-request value minted by the context builder; only inline
// content tagged with it may execute.
func (p *HeaderPolicy) Apply(h http.Header, nonce string) {
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "SAMEORIGIN")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
	h.Set("Server", ServerBanner)
	h.Set("Content-Security-Policy", p.ContentSecurityPolicy(nonce))
}

// ContentSecurityPolicy assembles the CSP header value for one request.
func (p *HeaderPolicy) ContentSecurityPolicy(nonce string) string {
	sources := "'self' 'nonce-" + nonce + "'"
	if len(p.AllowedHosts) > 0 {
		sources += " " + strings.Join(p.AllowedHosts, " ")
	}

	var b strings.Builder
	b.WriteString("default-src 'self'; ")
	b.WriteString("script-src " + sources + "; ")
	b.WriteString("style-src " + sources + "; ")
	b.WriteString("frame-ancestors 'self'; ")
	b.WriteString("base-uri 'self'; ")
	b.WriteString("form-action 'self'; ")
	b.WriteString("object-src 'none'")
	return b.String()
}
