package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"linkstash/internal/id/uuid"
)

// Task is one queued fire-and-forget add request.
type Task struct {
	ID         string
	Owner      string
	URL        string
	EnqueuedAt time.Time
}

// ErrQueueClosed is returned by Enqueue and Dequeue after Close,
// signalling producers to back off and workers to exit.
var ErrQueueClosed = errors.New("ingest queue closed")

// Queue is a bounded in-memory task queue with context-aware
// operations. It gives the fire-and-forget add path backpressure beyond
// the page pool itself.
type Queue struct {
	ch   chan Task
	ids  *uuid.Generator
	done chan struct{}
	once sync.Once
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 64
	}
	return &Queue{
		ch:   make(chan Task, capacity),
		ids:  uuid.NewGenerator(),
		done: make(chan struct{}),
	}
}

// Enqueue pushes a task, blocking while the queue is full, or returns
// when the context ends. After Close it returns ErrQueueClosed. Tasks
// without an ID get one assigned so the worker logs can be correlated
// with the accepting request.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	if task.ID == "" {
		if id, err := q.ids.NewID(); err == nil {
			task.ID = id
		}
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return ErrQueueClosed
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation. After
// Close it keeps returning buffered tasks until the queue is empty,
// then ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) (Task, error) {
	select {
	case task := <-q.ch:
		return task, nil
	default:
	}
	select {
	case <-ctx.Done():
		return Task{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case <-q.done:
		select {
		case task := <-q.ch:
			return task, nil
		default:
			return Task{}, ErrQueueClosed
		}
	case task := <-q.ch:
		return task, nil
	}
}

// Close stops the queue. Idempotent; the task channel itself stays
// open so a racing Enqueue fails with ErrQueueClosed instead of
// panicking.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}
