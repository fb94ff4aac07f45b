package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quentinv/tenantguard/internal/auth"
	"github.com/quentinv/tenantguard/internal/models"
	"github.com/quentinv/tenantguard/internal/store"
)

type TaskHandler struct {
	tasks *store.Tasks
}

func NewTaskHandler(tasks *store.Tasks) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

func (h *TaskHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project ID")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	rc := auth.FromContext(r.Context())
	tasks, err := h.tasks.ListByProject(r.Context(), rc, projectID, limit, offset)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks, "count": len(tasks)})
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task ID")
		return
	}

	rc := auth.FromContext(r.Context())
	t, err := h.tasks.Get(r.Context(), rc, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type createTaskRequest struct {
	Title      string     `json:"title"`
	AssigneeID *uuid.UUID `json:"assignee_id,omitempty"`
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project ID")
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeError(w, http.StatusBadRequest, "title required")
		return
	}

	rc := auth.FromContext(r.Context())
	t, err := h.tasks.Create(r.Context(), rc, projectID, req.Title, req.AssigneeID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

type updateTaskRequest struct {
	Status models.TaskStatus `json:"status"`
}

func (h *TaskHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task ID")
		return
	}

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Status != models.TaskStatusOpen && req.Status != models.TaskStatusDone {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	rc := auth.FromContext(r.Context())
	if err := h.tasks.SetStatus(r.Context(), rc, id, req.Status); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task ID")
		return
	}

	rc := auth.FromContext(r.Context())
	if err := h.tasks.Delete(r.Context(), rc, id); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Export streams the tenant's full task list. Guarded by the export
// rate-limit class at the router.
func (h *TaskHandler) Export(w http.ResponseWriter, r *http.Request) {
	rc := auth.FromContext(r.Context())
	tasks, err := h.tasks.Export(r.Context(), rc)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks, "count": len(tasks)})
}
