package secure

import "net/http"

const (
	// CSRFHeader carries the token for API-style submissions.
	CSRFHeader = "X-CSRF-Token"
	// CSRFField carries the token for form submissions.
	CSRFField = "csrf_token"
)

// CSRFTokenFromRequest extracts the submitted CSRF token, preferring the
// header over the form field. Returns "" when absent.
func CSRFTokenFromRequest(r *http.Request) string {
	if tok := r.Header.Get(CSRFHeader); tok != "" {
		return tok
	}
	return r.PostFormValue(CSRFField)
}

// VerifyCSRF reports whether the submitted token matches the one bound
// to the session. Absence or mismatch both fail; comparison is
// constant-time.
func VerifyCSRF(submitted, bound string) bool {
	return TokensEqual(submitted, bound)
}
