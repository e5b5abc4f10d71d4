package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrQueueFull is returned by Submit when the pool's queue is at capacity.
var ErrQueueFull = errors.New("worker pool queue full")

// ErrStopped is returned when submitting to a pool that has shut down.
var ErrStopped = errors.New("worker pool stopped")

// TaskHandler processes one work request and returns its result.
// Implementations must be safe for concurrent use.
type TaskHandler func(ctx context.Context, payload any) (any, error)

// workUnit is one queued piece of work plus its completion channel.
type workUnit struct {
	task    string
	payload any
	done    chan unitResult

	// hold, when non-nil, keeps a worker from starting the unit until the
	// reservation is released. Cancelled units never run their handler.
	hold      chan struct{}
	cancelled atomic.Bool
}

type unitResult struct {
	payload any
	err     error
}

// PoolStatus reports a pool's current state.
type PoolStatus struct {
	Workers    int `json:"workers"`
	InFlight   int `json:"in_flight"`
	QueueDepth int `json:"queue_depth"`
}

// PoolConfig configures a new worker pool.
type PoolConfig struct {
	// Workers is the number of concurrent workers. Default 20.
	Workers int
	// QueueSize bounds the submission queue. Default 100.
	QueueSize int
	Logger    *slog.Logger
}

// Pool runs CPU-bound work on a fixed set of workers, bounding how many
// rasterization/recognition operations execute at once system-wide. It is
// constructed explicitly and injected - there is no package-level pool.
// Safe for concurrent submission from multiple callers.
type Pool struct {
	workers int
	logger  *slog.Logger
	queue   chan *workUnit

	mu       sync.RWMutex
	handlers map[string]TaskHandler

	inFlight atomic.Int64
	stopped  atomic.Bool
}

// NewPool creates a worker pool. Call Start before submitting work.
func NewPool(cfg PoolConfig) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 20
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		workers:  workers,
		logger:   logger.With("component", "pool"),
		queue:    make(chan *workUnit, queueSize),
		handlers: make(map[string]TaskHandler),
	}
}

// RegisterHandler registers a handler for a task name.
// Must be called before Start.
func (p *Pool) RegisterHandler(task string, handler TaskHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[task] = handler
	p.logger.Debug("registered task handler", "task", task)
}

// Start runs the worker loops. Blocks until the context is cancelled;
// run it in a goroutine. In-flight work is not cancelled mid-task beyond
// what the handlers themselves observe through ctx.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("worker pool started", "workers", p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.run(ctx)
		}()
	}
	wg.Wait()

	// Refuse further submissions, then fail anything still queued so
	// waiting Do callers are released rather than left blocked.
	p.stopped.Store(true)
	for {
		select {
		case unit := <-p.queue:
			unit.done <- unitResult{err: ctx.Err()}
		default:
			p.logger.Info("worker pool stopped")
			return
		}
	}
}

func (p *Pool) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case unit := <-p.queue:
			p.inFlight.Add(1)
			res := p.process(ctx, unit)
			p.inFlight.Add(-1)
			unit.done <- res
		}
	}
}

func (p *Pool) process(ctx context.Context, unit *workUnit) unitResult {
	if unit.hold != nil {
		select {
		case <-unit.hold:
		case <-ctx.Done():
			return unitResult{err: ctx.Err()}
		}
		if unit.cancelled.Load() {
			return unitResult{err: context.Canceled}
		}
	}

	p.mu.RLock()
	handler, ok := p.handlers[unit.task]
	p.mu.RUnlock()

	if !ok {
		return unitResult{err: fmt.Errorf("no handler registered for task: %s", unit.task)}
	}

	payload, err := handler(ctx, unit.payload)
	if err != nil {
		p.logger.Debug("work unit failed", "task", unit.task, "error", err)
		return unitResult{err: err}
	}
	return unitResult{payload: payload}
}

// Submit queues a work unit without waiting for its result.
// Returns ErrQueueFull if the queue is at capacity.
func (p *Pool) submit(unit *workUnit) error {
	if p.stopped.Load() {
		return ErrStopped
	}
	select {
	case p.queue <- unit:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do queues the task and waits for a worker to finish it. The calling
// goroutine suspends, but other callers keep submitting concurrently.
// Waiting is abandoned if ctx is cancelled first; the work itself then
// runs to completion in the background and its result is dropped.
func (p *Pool) Do(ctx context.Context, task string, payload any) (any, error) {
	unit := &workUnit{
		task:    task,
		payload: payload,
		done:    make(chan unitResult, 1),
	}
	if err := p.submit(unit); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-unit.done:
		return res.payload, res.err
	}
}

// Reservation is a queue slot claimed ahead of the work's bookkeeping.
// Exactly one of Release or Cancel must be called.
type Reservation struct {
	unit *workUnit
}

// Reserve claims a queue slot for the task without letting a worker start
// it. The caller can finish its own bookkeeping between Reserve and Release
// knowing the pool has already accepted the work; a full queue surfaces here,
// before any of that bookkeeping happens.
func (p *Pool) Reserve(task string, payload any) (*Reservation, error) {
	unit := &workUnit{
		task:    task,
		payload: payload,
		done:    make(chan unitResult, 1),
		hold:    make(chan struct{}),
	}
	if err := p.submit(unit); err != nil {
		return nil, err
	}
	return &Reservation{unit: unit}, nil
}

// Release hands the reserved work to the workers.
func (r *Reservation) Release() {
	close(r.unit.hold)
}

// Cancel abandons the reservation; the handler never runs.
func (r *Reservation) Cancel() {
	r.unit.cancelled.Store(true)
	close(r.unit.hold)
}

// Wait blocks until the reserved work finishes or ctx is cancelled.
func (r *Reservation) Wait(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-r.unit.done:
		return res.payload, res.err
	}
}

// Status returns a snapshot of the pool's state.
func (p *Pool) Status() PoolStatus {
	return PoolStatus{
		Workers:    p.workers,
		InFlight:   int(p.inFlight.Load()),
		QueueDepth: len(p.queue),
	}
}
