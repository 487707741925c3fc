package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"integration-sync-platform/internal/logger"
	"integration-sync-platform/internal/middleware"
	"integration-sync-platform/internal/models"
	"integration-sync-platform/internal/services"
)

// SyncTaskHandler handles the sync task API surface
type SyncTaskHandler struct {
	logger      *logger.Logger
	taskService services.SyncTaskService
}

// NewSyncTaskHandler creates a new sync task handler
func NewSyncTaskHandler(logger *logger.Logger, taskService services.SyncTaskService) *SyncTaskHandler {
	return &SyncTaskHandler{logger: logger, taskService: taskService}
}

// RegisterRoutes registers the sync task routes
func (h *SyncTaskHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/sync-tasks", h.HandleCreateTask).Methods("POST")
	router.HandleFunc("/api/v1/sync-tasks", h.HandleListTasks).Methods("GET")
	router.HandleFunc("/api/v1/sync-tasks/{id}", h.HandleGetTask).Methods("GET")
	router.HandleFunc("/api/v1/sync-tasks/{id}", h.HandleUpdateTask).Methods("PUT", "PATCH")
	router.HandleFunc("/api/v1/sync-tasks/{id}", h.HandleDeleteTask).Methods("DELETE")
	router.HandleFunc("/api/v1/sync-tasks/{id}/pause", h.HandlePauseTask).Methods("POST")
	router.HandleFunc("/api/v1/sync-tasks/{id}/resume", h.HandleResumeTask).Methods("POST")
	router.HandleFunc("/api/v1/sync-tasks/{id}/trigger", h.HandleTriggerTask).Methods("POST")
	router.HandleFunc("/api/v1/sync-tasks/{id}/executions", h.HandleListExecutions).Methods("GET")
	router.HandleFunc("/api/v1/sync-tasks/{id}/conflicts", h.HandleListConflicts).Methods("GET")
	router.HandleFunc("/api/v1/executions/{id}", h.HandleGetExecution).Methods("GET")
	router.HandleFunc("/api/v1/conflicts/{id}/resolve", h.HandleResolveConflict).Methods("POST")
}

// HandleCreateTask creates a new sync task
func (h *SyncTaskHandler) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	var task models.SyncTask
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeValidationError(w, err)
		return
	}
	task.TenantID = middleware.GetTenantFromContext(r.Context())
	task.CreatedBy = middleware.GetUserFromContext(r.Context())

	created, err := h.taskService.CreateTask(r.Context(), &task)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleListTasks lists the tenant's sync tasks
func (h *SyncTaskHandler) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	tasks, err := h.taskService.ListTasks(r.Context(), middleware.GetTenantFromContext(r.Context()), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// HandleGetTask returns one sync task
func (h *SyncTaskHandler) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.taskService.GetTask(r.Context(), middleware.GetTenantFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// HandleUpdateTask updates a sync task definition
func (h *SyncTaskHandler) HandleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var task models.SyncTask
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeValidationError(w, err)
		return
	}
	task.ID = mux.Vars(r)["id"]

	updated, err := h.taskService.UpdateTask(r.Context(), middleware.GetTenantFromContext(r.Context()), &task)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleDeleteTask deletes a sync task
func (h *SyncTaskHandler) HandleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.taskService.DeleteTask(r.Context(), middleware.GetTenantFromContext(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// HandlePauseTask pauses a sync task
func (h *SyncTaskHandler) HandlePauseTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.taskService.PauseTask(r.Context(), middleware.GetTenantFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// HandleResumeTask resumes a paused sync task
func (h *SyncTaskHandler) HandleResumeTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.taskService.ResumeTask(r.Context(), middleware.GetTenantFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// HandleTriggerTask requests an execution. A trigger rejected by the overlap
// policy answers 409; a parked trigger answers 202.
func (h *SyncTaskHandler) HandleTriggerTask(w http.ResponseWriter, r *http.Request) {
	result, err := h.taskService.TriggerTask(r.Context(), middleware.GetTenantFromContext(r.Context()), mux.Vars(r)["id"], models.TriggerManual)
	if err != nil {
		writeError(w, err)
		return
	}
	if !result.Accepted {
		writeJSON(w, http.StatusConflict, result)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

// HandleListExecutions lists a task's execution history
func (h *SyncTaskHandler) HandleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	executions, err := h.taskService.GetExecutions(r.Context(), middleware.GetTenantFromContext(r.Context()), mux.Vars(r)["id"], limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"executions": executions})
}

// HandleGetExecution returns one execution
func (h *SyncTaskHandler) HandleGetExecution(w http.ResponseWriter, r *http.Request) {
	execution, err := h.taskService.GetExecution(r.Context(), middleware.GetTenantFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, execution)
}

// HandleListConflicts lists a task's conflict audit trail
func (h *SyncTaskHandler) HandleListConflicts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	conflicts, err := h.taskService.GetConflicts(r.Context(), middleware.GetTenantFromContext(r.Context()), mux.Vars(r)["id"], limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conflicts": conflicts})
}

// HandleResolveConflict applies a manual decision to a pending conflict
func (h *SyncTaskHandler) HandleResolveConflict(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Resolution string `json:"resolution"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeValidationError(w, err)
		return
	}

	conflict, err := h.taskService.ResolveConflict(
		r.Context(),
		middleware.GetTenantFromContext(r.Context()),
		mux.Vars(r)["id"],
		body.Resolution,
		middleware.GetUserFromContext(r.Context()),
	)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conflict)
}

// writeServiceError treats plain service errors as validation failures unless
// they map to a dedicated status.
func (h *SyncTaskHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch err {
	case services.ErrNotFound, services.ErrForbidden, services.ErrTaskPaused,
		services.ErrTaskDisabled, services.ErrTaskRunning, services.ErrAlreadyResolved:
		writeError(w, err)
	default:
		writeValidationError(w, err)
	}
}
