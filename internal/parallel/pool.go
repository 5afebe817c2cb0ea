// Package parallel provides the bounded worker pool the epidemic stepper
// fans node chunks out on.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// ErrTooManyWorkers is returned when the worker count exceeds MaxWorkers.
var ErrTooManyWorkers = errors.New("worker count exceeds maximum")

// ErrClosed is returned by Do when the pool was closed before every task
// could be submitted.
var ErrClosed = errors.New("worker pool closed")

// MaxWorkers is the maximum number of workers allowed in a pool.
const MaxWorkers = math.MaxInt / 2

// Pool runs tasks on a fixed set of worker goroutines.
//
// A nil *Pool is valid: Do then runs every task inline on the caller's
// goroutine.
type Pool struct {
	workers int
	tasks   chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards tasks against close during send
	closed  bool
	logger  *slog.Logger
}

// New starts a pool of workers goroutines. Zero or negative means one worker
// per available CPU.
func New(workers int, logger *slog.Logger) (*Pool, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > MaxWorkers {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrTooManyWorkers, workers, MaxWorkers)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	p := &Pool{
		workers: workers,
		tasks:   make(chan func(), workers*2),
		logger:  logger,
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p, nil
}

// Workers returns the number of worker goroutines, or 1 for a nil pool.
func (p *Pool) Workers() int {
	if p == nil {
		return 1
	}
	return p.workers
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("worker task panicked", "panic", r, "stack", string(debug.Stack()))
				}
			}()
			task()
		}()
	}
}

// Submit queues task. It returns false if the pool is closed.
func (p *Pool) Submit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.tasks <- task
	return true
}

// Close stops accepting tasks and waits for queued ones to finish. It is
// safe to call more than once.
func (p *Pool) Close() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

type taskPanic struct {
	index int
	value any
	stack []byte
}

// Do runs fn(0) .. fn(n-1) on the pool and returns once all of them have
// finished. Submission stops early if ctx is cancelled; tasks already queued
// still run to completion before Do returns ctx.Err().
//
// A panic inside fn is re-raised on the caller's goroutine after the other
// tasks finish, so invariant violations are not swallowed by the workers.
// Do must not be called from inside a task running on the same pool.
func (p *Pool) Do(ctx context.Context, n int, fn func(i int)) error {
	if p == nil {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(i)
		}
		return nil
	}

	var (
		wg       sync.WaitGroup
		panicked atomic.Pointer[taskPanic]
		runErr   error
	)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		wg.Add(1)
		ok := p.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panicked.CompareAndSwap(nil, &taskPanic{index: i, value: r, stack: debug.Stack()})
				}
			}()
			fn(i)
		})
		if !ok {
			wg.Done()
			runErr = ErrClosed
			break
		}
	}
	wg.Wait()

	if tp := panicked.Load(); tp != nil {
		panic(fmt.Sprintf("parallel: task %d panicked: %v\n\n%s", tp.index, tp.value, tp.stack))
	}
	return runErr
}
