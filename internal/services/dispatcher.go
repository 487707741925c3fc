package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"integration-sync-platform/internal/config"
	"integration-sync-platform/internal/logger"
	"integration-sync-platform/internal/models"
	"integration-sync-platform/internal/repositories"
)

// Redis keys used by the trigger pipeline
const (
	triggerQueueKey  = "sync:triggers"
	waitingKeyPrefix = "sync:waiting:"
)

// TriggerJob is one accepted execution request travelling through redis.
type TriggerJob struct {
	TaskID      string    `json:"task_id"`
	TenantID    string    `json:"tenant_id"`
	TriggeredBy string    `json:"triggered_by"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// TriggerQueue moves accepted triggers from the API and scheduler to the
// dispatcher workers, and parks triggers arriving while a task is running.
type TriggerQueue interface {
	Push(ctx context.Context, job TriggerJob) error
	// Pop blocks up to timeout for the next job. A nil job with nil error
	// means the timeout elapsed.
	Pop(ctx context.Context, timeout time.Duration) (*TriggerJob, error)
	PushWaiting(ctx context.Context, taskID, triggeredBy string) error
	PopWaiting(ctx context.Context, taskID string) (string, bool, error)
	// WaitingDepth reports how many triggers are parked behind the task.
	WaitingDepth(ctx context.Context, taskID string) (int64, error)
}

// redisTriggerQueue is the redis-backed TriggerQueue. Triggers survive
// process restarts.
type redisTriggerQueue struct {
	redis *redis.Client
}

// NewTriggerQueue creates a trigger queue on the shared redis client.
func NewTriggerQueue(redis *redis.Client) TriggerQueue {
	return &redisTriggerQueue{redis: redis}
}

// Push appends a job to the trigger queue.
func (q *redisTriggerQueue) Push(ctx context.Context, job TriggerJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.redis.LPush(ctx, triggerQueueKey, data).Err()
}

func (q *redisTriggerQueue) Pop(ctx context.Context, timeout time.Duration) (*TriggerJob, error) {
	result, err := q.redis.BRPop(ctx, timeout, triggerQueueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job TriggerJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// PushWaiting parks a trigger behind the task's running execution.
func (q *redisTriggerQueue) PushWaiting(ctx context.Context, taskID, triggeredBy string) error {
	return q.redis.LPush(ctx, waitingKeyPrefix+taskID, triggeredBy).Err()
}

// PopWaiting takes the oldest parked trigger for the task, if any.
func (q *redisTriggerQueue) PopWaiting(ctx context.Context, taskID string) (string, bool, error) {
	triggeredBy, err := q.redis.RPop(ctx, waitingKeyPrefix+taskID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return triggeredBy, true, nil
}

func (q *redisTriggerQueue) WaitingDepth(ctx context.Context, taskID string) (int64, error) {
	return q.redis.LLen(ctx, waitingKeyPrefix+taskID).Result()
}

// Dispatcher consumes trigger jobs with a bounded worker pool and runs one
// execution per job. The task row was already transitioned to running when the
// trigger was accepted, so workers never race over the same task.
type Dispatcher struct {
	logger *logger.Logger
	queue  TriggerQueue
	tasks  repositories.SyncTaskRepository
	runner RunnerService

	workers int

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(logger *logger.Logger, cfg *config.Config, queue TriggerQueue, tasks repositories.SyncTaskRepository, runner RunnerService) *Dispatcher {
	workers := cfg.Sync.Workers
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		logger:  logger,
		queue:   queue,
		tasks:   tasks,
		runner:  runner,
		workers: workers,
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
	d.logger.WithField("workers", d.workers).Info("Sync dispatcher started")
}

// Stop cancels the workers and waits for in-flight executions to finish.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.logger.Info("Sync dispatcher stopped")
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := d.queue.Pop(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.WithError(err).Error("Failed to pop trigger job")
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		d.run(ctx, job)
	}
}

// run executes one trigger job end to end, including the task's transition
// back out of running and the drain of any parked trigger.
func (d *Dispatcher) run(ctx context.Context, job *TriggerJob) {
	log := d.logger.WithTenant(job.TenantID).WithField("task_id", job.TaskID)

	task, err := d.tasks.GetByID(ctx, job.TaskID)
	if err != nil {
		log.WithError(err).Error("Failed to load task for trigger job")
		return
	}

	execution, err := d.runner.Execute(ctx, task, job.TriggeredBy)
	if err != nil {
		log.WithError(err).Error("Sync execution could not start")
	}

	d.finish(ctx, task, execution)
}

// finish transitions the task out of running. An execution that could not
// start or ended failed lands the task in error; the next trigger re-acquires
// it from there. A pause issued during the execution wins: the transition
// fails and the task stays paused.
func (d *Dispatcher) finish(ctx context.Context, task *models.SyncTask, execution *models.SyncExecution) {
	to := models.TaskStatusIdle
	if execution == nil || execution.Status == models.ExecutionStatusFailed {
		to = models.TaskStatusError
	}

	ok, err := d.tasks.TransitionStatus(ctx, task.ID, models.TaskStatusRunning, to)
	if err != nil {
		d.logger.WithTask(task.ID).WithError(err).Error("Failed to transition task after execution")
		return
	}
	if !ok || to != models.TaskStatusIdle {
		return
	}

	d.drainWaiting(ctx, task)
}

// drainWaiting promotes the oldest parked trigger, if any, to a fresh job.
func (d *Dispatcher) drainWaiting(ctx context.Context, task *models.SyncTask) {
	triggeredBy, found, err := d.queue.PopWaiting(ctx, task.ID)
	if err != nil {
		d.logger.WithTask(task.ID).WithError(err).Error("Failed to drain waiting triggers")
		return
	}
	if !found {
		return
	}

	ok, err := d.tasks.TransitionStatus(ctx, task.ID, models.TaskStatusIdle, models.TaskStatusRunning)
	if err != nil || !ok {
		// Paused or deleted in the meantime; park the trigger again.
		if perr := d.queue.PushWaiting(ctx, task.ID, triggeredBy); perr != nil {
			d.logger.WithTask(task.ID).WithError(perr).Error("Failed to re-park waiting trigger")
		}
		return
	}

	if err := d.queue.Push(ctx, TriggerJob{
		TaskID:      task.ID,
		TenantID:    task.TenantID,
		TriggeredBy: triggeredBy,
	}); err != nil {
		d.logger.WithTask(task.ID).WithError(err).Error("Failed to enqueue drained trigger")
		if _, terr := d.tasks.TransitionStatus(ctx, task.ID, models.TaskStatusRunning, models.TaskStatusIdle); terr != nil {
			d.logger.WithTask(task.ID).WithError(terr).Error("Failed to roll back task status")
		}
	}
}
