package ingest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Worker drains the ingest queue and runs adds to completion. Tasks run
// under their own deadline, detached from both the HTTP request that
// enqueued them and the worker's run context: a caller disconnect or a
// shutdown signal must not abort a fetch already started.
type Worker struct {
	queue       *Queue
	service     *Service
	taskTimeout time.Duration
	logger      *zap.Logger
}

// NewWorker constructs a Worker.
func NewWorker(queue *Queue, service *Service, taskTimeout time.Duration, logger *zap.Logger) *Worker {
	if taskTimeout <= 0 {
		taskTimeout = 2 * time.Minute
	}
	return &Worker{
		queue:       queue,
		service:     service,
		taskTimeout: taskTimeout,
		logger:      logger,
	}
}

// Run blocks, consuming tasks until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.process(task)
	}
}

func (w *Worker) process(task Task) {
	taskCtx, cancel := context.WithTimeout(context.Background(), w.taskTimeout)
	defer cancel()

	if _, _, err := w.service.Add(taskCtx, task.Owner, task.URL); err != nil {
		w.logger.Warn("queued link add failed",
			zap.String("task_id", task.ID),
			zap.String("owner", task.Owner),
			zap.String("url", task.URL),
			zap.Duration("queued_for", time.Since(task.EnqueuedAt)),
			zap.Error(err))
	}
}
