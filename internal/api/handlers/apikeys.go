package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quentinv/tenantguard/internal/audit"
	"github.com/quentinv/tenantguard/internal/auth"
)

type APIKeyHandler struct {
	keys *auth.APIKeys
	rec  audit.Recorder
}

func NewAPIKeyHandler(keys *auth.APIKeys, rec audit.Recorder) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, rec: rec}
}

type createKeyRequest struct {
	Name string `json:"name"`
}

// Create issues a key for the caller's tenant. The raw key appears in
// this response and nowhere else, ever.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	rc := auth.FromContext(r.Context())
	raw, key, err := h.keys.Issue(r.Context(), rc.TenantID, req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	subject := rc.Subject
	tenantID := rc.TenantID
	h.rec.Record(r.Context(), audit.Event{
		Action:    audit.ActionAPIKeyIssue,
		Outcome:   audit.OutcomeSuccess,
		SubjectID: &subject,
		TenantID:  &tenantID,
		Detail:    map[string]string{"key_prefix": key.KeyPrefix},
	})

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"key": raw,
		"id":  key.ID,
		// The prefix is all that will identify this key from now on.
		"key_prefix": key.KeyPrefix,
	})
}

func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	rc := auth.FromContext(r.Context())
	keys, err := h.keys.List(r.Context(), rc.TenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"api_keys": keys, "count": len(keys)})
}

func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key ID")
		return
	}

	rc := auth.FromContext(r.Context())
	if err := h.keys.Revoke(r.Context(), rc.TenantID, id); err != nil {
		if errors.Is(err, auth.ErrKeyNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	subject := rc.Subject
	tenantID := rc.TenantID
	h.rec.Record(r.Context(), audit.Event{
		Action:    audit.ActionAPIKeyRevoke,
		Outcome:   audit.OutcomeSuccess,
		SubjectID: &subject,
		TenantID:  &tenantID,
		Detail:    map[string]string{"key_id": id.String()},
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}
