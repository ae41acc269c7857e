package services

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
)

// TaskRunner is a bounded worker pool for work that must not block the
// request that triggered it. A full queue drops the task.
type TaskRunner struct {
	pool    pond.Pool
	timeout time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	stopped atomic.Bool
}

func NewTaskRunner(workers, queueSize int, timeout time.Duration) *TaskRunner {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	slog.Info("Task runner started", "workers", workers, "queue", queueSize)
	return &TaskRunner{
		pool:    pond.NewPool(workers, pond.WithQueueSize(queueSize), pond.WithNonBlocking(true)),
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Go enqueues fn without blocking.
func (r *TaskRunner) Go(name string, fn func(ctx context.Context)) {
	err := r.pool.Go(func() { r.runSafe(name, fn) })
	switch {
	case err == nil:
	case errors.Is(err, pond.ErrQueueFull):
		slog.Warn("Task queue full, dropping task", "task", name)
	default:
		slog.Warn("Task runner stopped, dropping task", "task", name, "error", err)
	}
}

// Stop refuses new tasks and drains the queue. If ctx expires first the
// running tasks see their context cancelled.
func (r *TaskRunner) Stop(ctx context.Context) error {
	if !r.stopped.CompareAndSwap(false, true) {
		return nil
	}

	drained := r.pool.Stop()
	select {
	case <-drained.Done():
		r.cancel()
		slog.Info("Task runner drained")
		return nil
	case <-ctx.Done():
		r.cancel()
		<-drained.Done()
		return errors.New("task runner stopped before queue drained")
	}
}

func (r *TaskRunner) runSafe(name string, fn func(ctx context.Context)) {
	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(r.ctx, r.timeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Panic recovered in background task", "task", name, "panic", rec)
		}
	}()
	fn(ctx)
}

// InlineRunner runs tasks synchronously on the caller's goroutine.
type InlineRunner struct{}

func (InlineRunner) Go(name string, fn func(ctx context.Context)) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Panic recovered in inline task", "task", name, "panic", rec)
		}
	}()
	fn(context.Background())
}
