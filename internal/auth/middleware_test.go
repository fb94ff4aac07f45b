package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/quentinv/tenantguard/internal/models"
)

func okHandler() (http.Handler, *bool) {
	called := new(bool)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}), called
}

func requestWith(rc *RequestContext) *http.Request {
	r := httptest.NewRequest("GET", "/x", nil)
	if rc != nil {
		r = r.WithContext(WithRequestContext(r.Context(), rc))
	}
	return r
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name       string
		rc         *RequestContext
		wantStatus int
	}{
		{"no context", nil, http.StatusUnauthorized},
		{"anonymous", &RequestContext{Role: models.RoleNone}, http.StatusUnauthorized},
		{"session principal", &RequestContext{Subject: uuid.New()}, http.StatusOK},
		{"api key principal", &RequestContext{TenantID: uuid.New(), Role: models.RoleMember}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, called := okHandler()
			w := httptest.NewRecorder()
			RequireAuth(next).ServeHTTP(w, requestWith(tt.rc))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, *called)
		})
	}
}

func TestRequireRole(t *testing.T) {
	tenantID := uuid.New()

	tests := []struct {
		name       string
		rc         *RequestContext
		min        models.Role
		wantStatus int
	}{
		{"anonymous", &RequestContext{}, models.RoleViewer, http.StatusUnauthorized},
		{"no tenant selected", &RequestContext{Subject: uuid.New()}, models.RoleViewer, http.StatusConflict},
		{"role sufficient", &RequestContext{Subject: uuid.New(), TenantID: tenantID, Role: models.RoleMember}, models.RoleViewer, http.StatusOK},
		{"role exact", &RequestContext{Subject: uuid.New(), TenantID: tenantID, Role: models.RoleManager}, models.RoleManager, http.StatusOK},
		{"role insufficient", &RequestContext{Subject: uuid.New(), TenantID: tenantID, Role: models.RoleViewer}, models.RoleAdmin, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, called := okHandler()
			w := httptest.NewRecorder()
			RequireRole(tt.min)(next).ServeHTTP(w, requestWith(tt.rc))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, *called)
		})
	}
}

func TestClientIPIgnoresProxyHeaders(t *testing.T) {
	r := httptest.NewRequest("GET", "/x", nil)
	r.RemoteAddr = "203.0.113.7:54321"
	r.Header.Set("X-Forwarded-For", "10.0.0.1")
	r.Header.Set("X-Real-IP", "10.0.0.2")

	assert.Equal(t, "203.0.113.7", ClientIP(r))
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/x", nil)
	assert.Empty(t, bearerToken(r))

	r.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", bearerToken(r))

	r.Header.Set("Authorization", "Basic abc123")
	assert.Empty(t, bearerToken(r))
}

func TestMiddlewareHandlerPrefersCookie(t *testing.T) {
	f := newBuilderFixture(t)
	cookieSess := f.loginWithTenant(t)

	mw := NewMiddleware(f.builder, "tg_session")

	var got *RequestContext
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	})

	r := httptest.NewRequest("GET", "/x", nil)
	r.AddCookie(&http.Cookie{Name: "tg_session", Value: cookieSess.ID})
	r.Header.Set("Authorization", "Bearer some-other-id")
	mw.Handler(inner).ServeHTTP(httptest.NewRecorder(), r)

	assert.NotNil(t, got)
	assert.True(t, got.Authenticated())
	assert.True(t, got.CookieSession)
}

func TestMiddlewareHandlerBearerFallback(t *testing.T) {
	f := newBuilderFixture(t)
	sess := f.login(t)

	mw := NewMiddleware(f.builder, "tg_session")

	var got *RequestContext
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	})

	r := httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("Authorization", "Bearer "+sess.ID)
	mw.Handler(inner).ServeHTTP(httptest.NewRecorder(), r)

	assert.NotNil(t, got)
	assert.True(t, got.Authenticated())
	assert.False(t, got.CookieSession, "bearer transport is not CSRF-relevant")
}

func TestMiddlewareHandlerNeverRejects(t *testing.T) {
	f := newBuilderFixture(t)
	mw := NewMiddleware(f.builder, "tg_session")

	next, called := okHandler()
	r := httptest.NewRequest("GET", "/x", nil)
	r.AddCookie(&http.Cookie{Name: "tg_session", Value: "garbage"})
	w := httptest.NewRecorder()
	mw.Handler(next).ServeHTTP(w, r)

	assert.True(t, *called)
	assert.Equal(t, http.StatusOK, w.Code)
}
