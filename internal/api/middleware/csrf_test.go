package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/quentinv/tenantguard/internal/audit"
	"github.com/quentinv/tenantguard/internal/auth"
	"github.com/quentinv/tenantguard/internal/observability"
	"github.com/quentinv/tenantguard/internal/secure"
)

type captureRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *captureRecorder) Record(_ context.Context, e audit.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *captureRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func serveCSRF(t *testing.T, r *http.Request, rc *auth.RequestContext) (*httptest.ResponseRecorder, bool, *captureRecorder) {
	t.Helper()
	rec := &captureRecorder{}
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	if rc != nil {
		r = r.WithContext(auth.WithRequestContext(r.Context(), rc))
	}
	w := httptest.NewRecorder()
	CSRF(observability.New(), rec)(next).ServeHTTP(w, r)
	return w, called, rec
}

func cookieRC(token string) *auth.RequestContext {
	return &auth.RequestContext{
		Subject:       uuid.New(),
		CSRFToken:     token,
		CookieSession: true,
	}
}

func TestCSRFRejectsMissingToken(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/v1/projects", nil)
	w, called, rec := serveCSRF(t, r, cookieRC("bound-token"))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, called)
	assert.Equal(t, 1, rec.count())
}

func TestCSRFRejectsWrongToken(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/v1/projects", nil)
	r.Header.Set(secure.CSRFHeader, "wrong")
	w, called, _ := serveCSRF(t, r, cookieRC("bound-token"))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, called)
}

func TestCSRFAcceptsHeaderToken(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/v1/projects", nil)
	r.Header.Set(secure.CSRFHeader, "bound-token")
	w, called, rec := serveCSRF(t, r, cookieRC("bound-token"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
	assert.Equal(t, 0, rec.count())
}

func TestCSRFAcceptsFormToken(t *testing.T) {
	form := url.Values{secure.CSRFField: {"bound-token"}}
	r := httptest.NewRequest("POST", "/api/v1/projects", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w, called, _ := serveCSRF(t, r, cookieRC("bound-token"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}

func TestCSRFSkipsSafeMethods(t *testing.T) {
	for _, method := range []string{"GET", "HEAD", "OPTIONS"} {
		r := httptest.NewRequest(method, "/api/v1/projects", nil)
		w, called, _ := serveCSRF(t, r, cookieRC("bound-token"))

		assert.Equal(t, http.StatusOK, w.Code, method)
		assert.True(t, called, method)
	}
}

func TestCSRFSkipsNonCookiePrincipals(t *testing.T) {
	// Bearer session: CookieSession false.
	bearer := &auth.RequestContext{Subject: uuid.New(), CSRFToken: "tok"}
	r := httptest.NewRequest("POST", "/api/v1/projects", nil)
	w, called, _ := serveCSRF(t, r, bearer)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)

	// Anonymous request.
	r = httptest.NewRequest("POST", "/auth/login", nil)
	w, called, _ = serveCSRF(t, r, &auth.RequestContext{})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)

	// No context at all.
	r = httptest.NewRequest("POST", "/x", nil)
	w, called, _ = serveCSRF(t, r, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}
