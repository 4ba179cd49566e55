package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alitto/pond/v2"
)

var (
	// ErrPoolClosed is returned by Submit after Shutdown was called.
	ErrPoolClosed = errors.New("worker pool is shut down")
	// ErrQueueFull is returned by Submit when the task queue has no free slot.
	ErrQueueFull = errors.New("task queue is full")
	// ErrTaskCancelled resolves futures whose task was still queued at shutdown.
	ErrTaskCancelled = errors.New("task cancelled before it started")
	// ErrTaskPanicked wraps the value recovered from a panicking task.
	ErrTaskPanicked = errors.New("task panicked")
)

// TaskFunc is a blocking unit of work executed by a pool worker.
type TaskFunc func(ctx context.Context) (any, error)

// Stats is a snapshot of pool counters.
type Stats struct {
	Name      string `json:"name"`
	Workers   int    `json:"workers"`
	Active    int64  `json:"active"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
	Pending   int    `json:"pending"`
}

// Pool runs submitted tasks on a fixed number of workers fed by a bounded queue.
type Pool struct {
	name    string
	workers int
	pool    pond.Pool
	logger  *slog.Logger

	// cancelled once Shutdown starts, queued tasks observe it before running
	stopping context.Context
	stop     context.CancelFunc

	cancelled atomic.Int64

	mtx    sync.RWMutex
	closed bool
}

// New starts a pool with the given number of workers. The queue holds
// workers*100 tasks unless queueSize is positive.
func New(name string, workers, queueSize int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 100
	}
	if logger == nil {
		logger = slog.Default()
	}

	stopping, stop := context.WithCancel(context.Background())

	return &Pool{
		name:    name,
		workers: workers,
		pool: pond.NewPool(
			workers,
			pond.WithQueueSize(queueSize),
			pond.WithNonBlocking(true),
		),
		logger:   logger,
		stopping: stopping,
		stop:     stop,
	}
}

// execute runs on a pond worker
func (p *Pool) execute(ctx context.Context, fn TaskFunc) (val any, err error) {
	if p.stopping.Err() != nil {
		p.cancelled.Add(1)
		return nil, ErrTaskCancelled
	}
	// submitter gave up before the task started
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("recovered panic in task", "pool", p.name, "panic", r)
			val, err = nil, fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()

	return fn(ctx)
}

// Submit queues fn for execution. Errors returned here concern the pool itself;
// the outcome of fn is delivered through the returned future.
func (p *Pool) Submit(ctx context.Context, fn TaskFunc) (*Future, error) {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	f := &Future{}
	f.task = p.pool.SubmitErr(func() error {
		val, err := p.execute(ctx, fn)
		f.val = val
		return err
	})

	// rejected submissions resolve before SubmitErr returns
	select {
	case <-f.task.Done():
		if err := poolError(f.task.Wait()); err != nil {
			return nil, err
		}
	default:
	}

	return f, nil
}

// Shutdown stops accepting tasks, cancels queued ones and waits until running
// tasks finish or ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mtx.Lock()
	if p.closed {
		p.mtx.Unlock()
		return nil
	}
	p.closed = true
	p.stop()
	p.mtx.Unlock()

	done := make(chan struct{})
	go func() {
		p.pool.StopAndWait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		if n := p.cancelled.Load(); n > 0 {
			p.logger.Info("cancelled queued tasks", "pool", p.name, "count", n)
		}
	case <-ctx.Done():
		err = fmt.Errorf("worker pool %s: waiting for running tasks: %w", p.name, ctx.Err())
	}

	return err
}

// Stats returns current pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Name:      p.name,
		Workers:   p.workers,
		Active:    p.pool.RunningWorkers(),
		Completed: int64(p.pool.SuccessfulTasks()),
		Failed:    int64(p.pool.FailedTasks()),
		Pending:   int(p.pool.WaitingTasks()),
	}
}

// poolError translates pond rejections, other errors belong to the task
func poolError(err error) error {
	switch {
	case errors.Is(err, pond.ErrQueueFull):
		return ErrQueueFull
	case errors.Is(err, pond.ErrPoolStopped):
		return ErrPoolClosed
	}
	return nil
}

// Run submits fn to the pool and waits for its result.
func Run[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	future, err := p.Submit(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}

	val, err := future.Wait(ctx)
	if err != nil {
		return zero, err
	}

	res, ok := val.(T)
	if !ok && val != nil {
		return zero, fmt.Errorf("unexpected task result type %T", val)
	}
	return res, nil
}
