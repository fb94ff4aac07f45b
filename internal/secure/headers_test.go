package secure

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplySetsDefensiveHeaders(t *testing.T) {
	p := &HeaderPolicy{}
	h := http.Header{}
	p.Apply(h, "abc123")

	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", h.Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", h.Get("Referrer-Policy"))
	assert.Equal(t, "camera=(), microphone=(), geolocation=()", h.Get("Permissions-Policy"))
	assert.Equal(t, ServerBanner, h.Get("Server"))
	assert.NotEmpty(t, h.Get("Content-Security-Policy"))
}

func TestContentSecurityPolicyCarriesNonce(t *testing.T) {
	p := &HeaderPolicy{}
	csp := p.ContentSecurityPolicy("n0nce")

	assert.Contains(t, csp, "script-src 'self' 'nonce-n0nce'")
	assert.Contains(t, csp, "style-src 'self' 'nonce-n0nce'")
	assert.Contains(t, csp, "default-src 'self'")
	assert.Contains(t, csp, "frame-ancestors 'self'")
	assert.Contains(t, csp, "object-src 'none'")
	assert.NotContains(t, csp, "unsafe-inline")
}

func TestContentSecurityPolicyAllowedHosts(t *testing.T) {
	p := &HeaderPolicy{AllowedHosts: []string{"https://cdn.example.com"}}
	csp := p.ContentSecurityPolicy("x")

	assert.Contains(t, csp, "script-src 'self' 'nonce-x' https://cdn.example.com")
}
