package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// OrchestratorConfig sizes the worker pool.
type OrchestratorConfig struct {
	WorkerCount  int
	MaxQueueSize int
	TaskTTL      time.Duration
}

// Orchestrator queues tasks and runs them on a fixed worker pool.
type Orchestrator struct {
	tasks  *TaskStore
	queue  chan *Task
	worker *Worker
	log    *slog.Logger
	cfg    OrchestratorConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg OrchestratorConfig, worker *Worker, log *slog.Logger) *Orchestrator {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.TaskTTL <= 0 {
		cfg.TaskTTL = time.Hour
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		tasks:  NewTaskStore(cfg.TaskTTL),
		queue:  make(chan *Task, cfg.MaxQueueSize),
		worker: worker,
		log:    log,
		cfg:    cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case task, ok := <-o.queue:
					if !ok {
						return
					}
					o.worker.Process(workerCtx, task)
				}
			}
		}()
	}
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a task for processing.
func (o *Orchestrator) Submit(task *Task) error {
	o.tasks.Put(task)
	select {
	case o.queue <- task:
		o.log.Info("task queued", "task_id", task.ID, "files", len(task.Files()))
		return nil
	default:
		task.Fail("queue full")
		return fmt.Errorf("task queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetTask returns a task by ID.
func (o *Orchestrator) GetTask(id string) *Task {
	return o.tasks.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Tasks exposes the task registry to the scheduler.
func (o *Orchestrator) Tasks() *TaskStore {
	return o.tasks
}
