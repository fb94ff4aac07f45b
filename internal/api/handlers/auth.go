package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/quentinv/tenantguard/internal/audit"
	"github.com/quentinv/tenantguard/internal/auth"
	"github.com/quentinv/tenantguard/internal/models"
	"github.com/quentinv/tenantguard/internal/observability"
	"github.com/quentinv/tenantguard/internal/secure"
)

type AuthHandler struct {
	svc           *auth.Service
	metrics       *observability.Metrics
	rec           audit.Recorder
	cookieName    string
	trustedOrigin *url.URL
	fallbackPath  string
	secureCookie  bool
}

func NewAuthHandler(svc *auth.Service, metrics *observability.Metrics, rec audit.Recorder, cookieName string, trustedOrigin *url.URL, fallbackPath string) *AuthHandler {
	return &AuthHandler{
		svc:           svc,
		metrics:       metrics,
		rec:           rec,
		cookieName:    cookieName,
		trustedOrigin: trustedOrigin,
		fallbackPath:  fallbackPath,
		secureCookie:  trustedOrigin.Scheme == "https",
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Next     string `json:"next,omitempty"`
}

// Login authenticates and sets the session cookie. The response carries
// the CSRF token for subsequent mutations and a redirect target that has
// passed the safe-redirect check. A rejected target is replaced by the
// fixed fallback, never echoed.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	sess, err := h.svc.Login(r.Context(), req.Email, req.Password, auth.ClientIP(r))
	if err != nil {
		h.metrics.Logins.WithLabelValues("failure").Inc()
		if errors.Is(err, auth.ErrInvalidCredentials) {
			// One message for unknown email and wrong password.
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.metrics.Logins.WithLabelValues("success").Inc()

	if req.Next != "" && !secure.IsSafeRedirect(req.Next, h.trustedOrigin) {
		h.metrics.RedirectFallbacks.Inc()
		subject := sess.UserID
		h.rec.Record(r.Context(), audit.Event{
			Action:    audit.ActionRedirectReject,
			Outcome:   audit.OutcomeDenied,
			SubjectID: &subject,
			IP:        auth.ClientIP(r),
			Detail:    map[string]string{"target": req.Next},
		})
	}
	target := secure.SafeRedirect(req.Next, h.trustedOrigin, h.fallbackPath)

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"csrf_token": sess.CSRFToken,
		"redirect":   target,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	rc := auth.FromContext(r.Context())
	if err := h.svc.Logout(r.Context(), rc, auth.ClientIP(r)); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

type switchTenantRequest struct {
	TenantID uuid.UUID `json:"tenant_id"`
}

func (h *AuthHandler) SwitchTenant(w http.ResponseWriter, r *http.Request) {
	var req switchTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TenantID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "tenant_id required")
		return
	}

	rc := auth.FromContext(r.Context())
	err := h.svc.SwitchTenant(r.Context(), rc, req.TenantID, auth.ClientIP(r))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"tenant_id": req.TenantID.String()})
	case errors.Is(err, auth.ErrInvalidSession):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, auth.ErrNotMember), errors.Is(err, auth.ErrTenantInactive):
		// Prior binding retained; the target stays unavailable.
		writeError(w, http.StatusConflict, "tenant unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type changePasswordRequest struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.New == "" {
		writeError(w, http.StatusBadRequest, "current and new password required")
		return
	}

	rc := auth.FromContext(r.Context())
	err := h.svc.ChangePassword(r.Context(), rc, req.Current, req.New)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
	case errors.Is(err, auth.ErrInvalidSession):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// Me exposes the resolved request context to clients: who they are and
// which tenants they can act in.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	rc := auth.FromContext(r.Context())
	if rc == nil || !rc.Authenticated() {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	memberships, err := h.svc.Memberships(r.Context(), rc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if memberships == nil {
		memberships = []models.Membership{}
	}

	resp := map[string]interface{}{
		"subject_id":  rc.Subject,
		"superadmin":  rc.Superadmin,
		"memberships": memberships,
	}
	if rc.HasTenant() {
		resp["tenant_id"] = rc.TenantID
		resp["role"] = rc.Role
	}
	writeJSON(w, http.StatusOK, resp)
}
