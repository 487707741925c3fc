package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"integration-sync-platform/internal/config"
	"integration-sync-platform/internal/models"
)

func dispatcherHarness(execution *models.SyncExecution, err error) (*Dispatcher, *mockTaskRepository, *mockTriggerQueue) {
	tasks := new(mockTaskRepository)
	queue := new(mockTriggerQueue)
	cfg := &config.Config{Sync: config.SyncConfig{Workers: 1}}
	d := NewDispatcher(testLogger(), cfg, queue, tasks, &stubRunner{execution: execution, err: err})
	return d, tasks, queue
}

func TestDispatcher_Run(t *testing.T) {
	ctx := context.Background()
	task := &models.SyncTask{ID: "task-1", TenantID: "tenant-1", Status: models.TaskStatusRunning}
	job := &TriggerJob{TaskID: "task-1", TenantID: "tenant-1", TriggeredBy: models.TriggerManual}

	t.Run("failed execution lands the task in error", func(t *testing.T) {
		d, tasks, queue := dispatcherHarness(&models.SyncExecution{Status: models.ExecutionStatusFailed}, nil)
		tasks.On("GetByID", mock.Anything, "task-1").Return(task, nil)
		tasks.On("TransitionStatus", mock.Anything, "task-1", models.TaskStatusRunning, models.TaskStatusError).
			Return(true, nil)

		d.run(ctx, job)

		tasks.AssertExpectations(t)
		tasks.AssertNotCalled(t, "TransitionStatus", mock.Anything, "task-1", models.TaskStatusRunning, models.TaskStatusIdle)
		queue.AssertNotCalled(t, "PopWaiting", mock.Anything, "task-1")
	})

	t.Run("execution that could not start lands the task in error", func(t *testing.T) {
		d, tasks, queue := dispatcherHarness(nil, ErrNotFound)
		tasks.On("GetByID", mock.Anything, "task-1").Return(task, nil)
		tasks.On("TransitionStatus", mock.Anything, "task-1", models.TaskStatusRunning, models.TaskStatusError).
			Return(true, nil)

		d.run(ctx, job)

		tasks.AssertExpectations(t)
		queue.AssertNotCalled(t, "PopWaiting", mock.Anything, "task-1")
	})

	t.Run("partial execution returns the task to idle", func(t *testing.T) {
		d, tasks, queue := dispatcherHarness(&models.SyncExecution{Status: models.ExecutionStatusPartial}, nil)
		tasks.On("GetByID", mock.Anything, "task-1").Return(task, nil)
		tasks.On("TransitionStatus", mock.Anything, "task-1", models.TaskStatusRunning, models.TaskStatusIdle).
			Return(true, nil)
		queue.On("PopWaiting", mock.Anything, "task-1").Return("", false, nil)

		d.run(ctx, job)

		tasks.AssertExpectations(t)
	})

	t.Run("finishing drains one parked trigger", func(t *testing.T) {
		d, tasks, queue := dispatcherHarness(&models.SyncExecution{Status: models.ExecutionStatusSucceeded}, nil)
		tasks.On("GetByID", mock.Anything, "task-1").Return(task, nil)
		tasks.On("TransitionStatus", mock.Anything, "task-1", models.TaskStatusRunning, models.TaskStatusIdle).
			Return(true, nil)
		queue.On("PopWaiting", mock.Anything, "task-1").Return(models.TriggerWebhook, true, nil)
		tasks.On("TransitionStatus", mock.Anything, "task-1", models.TaskStatusIdle, models.TaskStatusRunning).
			Return(true, nil)
		queue.On("Push", mock.Anything, mock.MatchedBy(func(job TriggerJob) bool {
			return job.TaskID == "task-1" && job.TriggeredBy == models.TriggerWebhook
		})).Return(nil)

		d.run(ctx, job)

		queue.AssertExpectations(t)
		tasks.AssertExpectations(t)
	})

	t.Run("pause during the execution wins", func(t *testing.T) {
		d, tasks, queue := dispatcherHarness(&models.SyncExecution{Status: models.ExecutionStatusSucceeded}, nil)
		tasks.On("GetByID", mock.Anything, "task-1").Return(task, nil)
		tasks.On("TransitionStatus", mock.Anything, "task-1", models.TaskStatusRunning, models.TaskStatusIdle).
			Return(false, nil)

		d.run(ctx, job)

		queue.AssertNotCalled(t, "PopWaiting", mock.Anything, "task-1")
	})

	t.Run("a re-parked trigger survives a pause during drain", func(t *testing.T) {
		d, tasks, queue := dispatcherHarness(&models.SyncExecution{Status: models.ExecutionStatusSucceeded}, nil)
		tasks.On("GetByID", mock.Anything, "task-1").Return(task, nil)
		tasks.On("TransitionStatus", mock.Anything, "task-1", models.TaskStatusRunning, models.TaskStatusIdle).
			Return(true, nil)
		queue.On("PopWaiting", mock.Anything, "task-1").Return(models.TriggerManual, true, nil)
		tasks.On("TransitionStatus", mock.Anything, "task-1", models.TaskStatusIdle, models.TaskStatusRunning).
			Return(false, nil)
		queue.On("PushWaiting", mock.Anything, "task-1", models.TriggerManual).Return(nil)

		d.run(ctx, job)

		queue.AssertExpectations(t)
	})
}
