package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quentinv/tenantguard/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps accessor failures onto the wire. ErrNotFound is
// always a plain 404; whether the record is missing or foreign is not
// distinguishable here by construction. ErrNoTenant means the caller has
// no usable tenant and must select one.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrNoTenant):
		writeError(w, http.StatusConflict, "tenant selection required")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
