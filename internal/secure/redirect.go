package secure

import (
	"net/url"
	"strings"
)

// IsSafeRedirect reports whether target may be used as a redirect
// destination for a deployment serving trustedOrigin. A target is safe
// only if, resolved against the trusted origin, it stays on an http(s)
// URL whose authority is exactly the trusted one. Relative paths resolve
// to the trusted origin by construction; anything else (other hosts,
// other ports, javascript:/data: and friends) is rejected.
func IsSafeRedirect(target string, trustedOrigin *url.URL) bool {
	if target == "" || trustedOrigin == nil {
		return false
	}

	ref, err := url.Parse(target)
	if err != nil {
		return false
	}

	resolved := trustedOrigin.ResolveReference(ref)

	scheme := strings.ToLower(resolved.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}

	return resolved.Host == trustedOrigin.Host
}

// SafeRedirect returns target when it passes IsSafeRedirect and the
// fixed fallback otherwise. The rejected value is never passed through.
func SafeRedirect(target string, trustedOrigin *url.URL, fallback string) string {
	if IsSafeRedirect(target, trustedOrigin) {
		return target
	}
	return fallback
}
