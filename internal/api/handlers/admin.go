package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/quentinv/tenantguard/internal/audit"
	"github.com/quentinv/tenantguard/internal/auth"
	"github.com/quentinv/tenantguard/internal/models"
)

type AdminHandler struct {
	audit *audit.Service
}

func NewAdminHandler(svc *audit.Service) *AdminHandler {
	return &AdminHandler{audit: svc}
}

// AuditLogs lists the caller tenant's audit trail. Admin role enforced
// at the router.
func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	q := audit.Query{Action: r.URL.Query().Get("action")}
	q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	q.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
		q.Since = &t
	}

	rc := auth.FromContext(r.Context())
	logs, err := h.audit.List(r.Context(), rc.TenantID, q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"audit_logs": logs, "count": len(logs)})
}
