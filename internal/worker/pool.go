// Package worker runs side effects that must not block the realtime path:
// presence mirroring, status persistence, notification fan-out and push
// delivery. Failed tasks are retried with exponential backoff.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

var (
	ErrQueueFull   = errors.New("worker queue full")
	ErrPoolStopped = errors.New("worker pool stopped")
)

// Config holds worker pool configuration.
type Config struct {
	Workers         int
	QueueSize       int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	AttemptTimeout  time.Duration
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		QueueSize:       1024,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		AttemptTimeout:  15 * time.Second,
	}
}

// Task is one unit of background work. MaxTries of 0 or 1 means a single
// attempt. Run may return backoff.Permanent(err) to stop retrying.
type Task struct {
	ID       string
	Name     string
	MaxTries uint
	Run      func(ctx context.Context) error
}

// Pool is a fixed set of goroutines draining a bounded task queue.
type Pool struct {
	cfg   Config
	tasks chan Task
	wg    sync.WaitGroup

	mu      sync.RWMutex
	running bool
	stopped bool
	cancel  context.CancelFunc
}

// NewPool creates a new worker pool. Call Start before submitting.
func NewPool(cfg Config) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	return &Pool{
		cfg:   cfg,
		tasks: make(chan Task, cfg.QueueSize),
	}
}

// Start launches the workers. Tasks run under ctx; cancelling it aborts
// in-flight retries.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running || p.stopped {
		return
	}
	p.running = true

	workerCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for task := range p.tasks {
				p.run(workerCtx, id, task)
			}
		}(i + 1)
	}
	slog.Info("worker pool started", "workers", p.cfg.Workers, "queue", p.cfg.QueueSize)
}

// Submit enqueues a task without blocking.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop stops accepting tasks, lets the workers drain the queue and waits
// for them. If ctx expires first, in-flight tasks are cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.tasks)
	cancel := p.cancel
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("worker pool stopped")
	case <-ctx.Done():
		slog.Warn("worker pool stop timed out, cancelling tasks")
		if cancel != nil {
			cancel()
		}
		<-done
		return ctx.Err()
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

// Pending returns the number of queued tasks.
func (p *Pool) Pending() int {
	return len(p.tasks)
}

func (p *Pool) run(ctx context.Context, workerID int, task Task) {
	tries := task.MaxTries
	if tries == 0 {
		tries = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialInterval
	b.MaxInterval = p.cfg.MaxInterval

	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		attemptCtx := ctx
		if p.cfg.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.cfg.AttemptTimeout)
			defer cancel()
		}
		return struct{}{}, task.Run(attemptCtx)
	}

	start := time.Now()
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Debug("task attempt failed",
				"task", task.Name, "task_id", task.ID, "attempt", attempt, "retry_in", next, "error", err)
		}),
	)
	if err != nil {
		slog.Warn("task failed",
			"task", task.Name, "task_id", task.ID, "worker", workerID,
			"attempts", attempt, "duration", time.Since(start), "error", err)
		return
	}
	slog.Debug("task done", "task", task.Name, "task_id", task.ID, "worker", workerID, "attempts", attempt)
}
