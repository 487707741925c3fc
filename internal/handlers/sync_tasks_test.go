package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"integration-sync-platform/internal/models"
	"integration-sync-platform/internal/services"
)

type stubTaskService struct {
	updated *models.SyncTask
	trigger *services.TriggerResult
}

func (s *stubTaskService) CreateTask(context.Context, *models.SyncTask) (*models.SyncTask, error) {
	return nil, errors.New("not implemented")
}

func (s *stubTaskService) GetTask(context.Context, string, string) (*models.SyncTask, error) {
	return nil, errors.New("not implemented")
}

func (s *stubTaskService) ListTasks(context.Context, string, int, int) ([]*models.SyncTask, error) {
	return nil, errors.New("not implemented")
}

func (s *stubTaskService) UpdateTask(_ context.Context, _ string, task *models.SyncTask) (*models.SyncTask, error) {
	s.updated = task
	return task, nil
}

func (s *stubTaskService) DeleteTask(context.Context, string, string) error {
	return errors.New("not implemented")
}

func (s *stubTaskService) PauseTask(context.Context, string, string) (*models.SyncTask, error) {
	return nil, errors.New("not implemented")
}

func (s *stubTaskService) ResumeTask(context.Context, string, string) (*models.SyncTask, error) {
	return nil, errors.New("not implemented")
}

func (s *stubTaskService) TriggerTask(context.Context, string, string, string) (*services.TriggerResult, error) {
	return s.trigger, nil
}

func (s *stubTaskService) GetExecutions(context.Context, string, string, int, int) ([]*models.SyncExecution, error) {
	return nil, errors.New("not implemented")
}

func (s *stubTaskService) GetExecution(context.Context, string, string) (*models.SyncExecution, error) {
	return nil, errors.New("not implemented")
}

func (s *stubTaskService) GetConflicts(context.Context, string, string, int, int) ([]*models.SyncConflict, error) {
	return nil, errors.New("not implemented")
}

func (s *stubTaskService) ResolveConflict(context.Context, string, string, string, string) (*models.SyncConflict, error) {
	return nil, errors.New("not implemented")
}

func taskRequest(handler *SyncTaskHandler, method, path, body string) *httptest.ResponseRecorder {
	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestSyncTaskHandler_UpdateRoutes(t *testing.T) {
	t.Run("PATCH updates a task", func(t *testing.T) {
		stub := &stubTaskService{}
		handler := NewSyncTaskHandler(testLogger(), stub)

		recorder := taskRequest(handler, http.MethodPatch, "/api/v1/sync-tasks/task-1", `{"name": "renamed"}`)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "task-1", stub.updated.ID)
		assert.Equal(t, "renamed", stub.updated.Name)
	})

	t.Run("PUT updates a task", func(t *testing.T) {
		stub := &stubTaskService{}
		handler := NewSyncTaskHandler(testLogger(), stub)

		recorder := taskRequest(handler, http.MethodPut, "/api/v1/sync-tasks/task-1", `{"name": "renamed"}`)

		assert.Equal(t, http.StatusOK, recorder.Code)
	})
}

func TestSyncTaskHandler_Trigger(t *testing.T) {
	t.Run("accepted trigger answers 202", func(t *testing.T) {
		stub := &stubTaskService{trigger: &services.TriggerResult{Accepted: true}}
		handler := NewSyncTaskHandler(testLogger(), stub)

		recorder := taskRequest(handler, http.MethodPost, "/api/v1/sync-tasks/task-1/trigger", "")
		assert.Equal(t, http.StatusAccepted, recorder.Code)
	})

	t.Run("rejected trigger answers 409", func(t *testing.T) {
		stub := &stubTaskService{trigger: &services.TriggerResult{Accepted: false}}
		handler := NewSyncTaskHandler(testLogger(), stub)

		recorder := taskRequest(handler, http.MethodPost, "/api/v1/sync-tasks/task-1/trigger", "")
		assert.Equal(t, http.StatusConflict, recorder.Code)
	})
}
