// Package trigger schedules background matching passes. Delivery is
// at-least-once: handlers must be idempotent, and the bulk matcher is.
package trigger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Task asks for a matching pass. An empty JobID means every pending job.
type Task struct {
	ID          string    `json:"id"`
	JobID       string    `json:"jobId,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

func NewTask(jobID string) Task {
	return Task{ID: uuid.NewString(), JobID: strings.TrimSpace(jobID), SubmittedAt: time.Now().UTC()}
}

type Handler func(ctx context.Context, task Task) error

// Submitter enqueues tasks for background processing.
type Submitter interface {
	Submit(ctx context.Context, task Task) error
}

// Inline runs each task on its own goroutine inside the current process.
type Inline struct {
	handler Handler
	logger  *zap.Logger
	wg      sync.WaitGroup
	timeout time.Duration
}

func NewInline(handler Handler, timeout time.Duration, logger *zap.Logger) (*Inline, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inline{handler: handler, logger: logger, timeout: timeout}, nil
}

// Submit returns immediately. The task runs detached from ctx so that it
// outlives the request that triggered it.
func (i *Inline) Submit(_ context.Context, task Task) error {
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()

		ctx := context.Background()
		if i.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, i.timeout)
			defer cancel()
		}

		if err := i.handler(ctx, task); err != nil {
			i.logger.Error("background task failed", zap.String("task_id", task.ID), zap.String("job_id", task.JobID), zap.Error(err))
			return
		}
		i.logger.Debug("background task done", zap.String("job_id", task.JobID))
	}()
	return nil
}

// Wait blocks until every submitted task has finished.
func (i *Inline) Wait() {
	i.wg.Wait()
}
