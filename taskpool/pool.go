// Package taskpool provides a fixed-size worker pool with typed futures.
//
// Tasks run in FIFO submission order on a fixed set of goroutines. A task
// must not block on the future of another task submitted to the same pool:
// with every worker waiting, the queued task would never run.
package taskpool

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

var (
	// ErrZeroWorkers is returned when a pool is requested with no workers.
	ErrZeroWorkers = errors.New("taskpool: pool needs at least one worker")
	// ErrClosed is returned when submitting to a closed pool.
	ErrClosed = errors.New("taskpool: pool is closed")
	// ErrPanic wraps a panic recovered from a task.
	ErrPanic = errors.New("taskpool: task panicked")
)

// Pool runs submitted closures on a fixed set of goroutines.
type Pool struct {
	numWorkers int

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []func()
	head     int
	stopping bool

	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a pool with numWorkers goroutines. A negative count selects
// runtime.NumCPU().
func New(numWorkers int) (*Pool, error) {
	if numWorkers == 0 {
		return nil, ErrZeroWorkers
	}
	if numWorkers < 0 {
		numWorkers = runtime.NumCPU()
	}

	p := &Pool{numWorkers: numWorkers}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(numWorkers)
	for range numWorkers {
		go p.worker()
	}

	return p, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.numWorkers }

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for p.head == len(p.queue) && !p.stopping {
			p.cond.Wait()
		}
		if p.head == len(p.queue) {
			// stopped and drained
			p.mu.Unlock()
			return
		}
		task := p.queue[p.head]
		p.queue[p.head] = nil
		p.head++
		if p.head == len(p.queue) {
			p.queue = p.queue[:0]
			p.head = 0
		}
		p.mu.Unlock()

		task()
	}
}

// Submit enqueues a task. It never blocks.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopping {
		return ErrClosed
	}
	p.queue = append(p.queue, task)
	p.cond.Signal()
	return nil
}

// Pending returns the number of queued tasks not yet started.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) - p.head
}

// Close stops accepting tasks, runs everything already queued and waits for
// the workers to exit. It is idempotent.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	p.mu.Lock()
	p.stopping = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

// Run submits fn and returns a future for its result.
func Run[T any](p *Pool, fn func() T) *Future[T] {
	return RunErr(p, func() (T, error) { return fn(), nil })
}

// RunErr submits fn and returns a future for its result and error. If the
// pool is closed the future resolves immediately with ErrClosed.
func RunErr[T any](p *Pool, fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	err := p.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.resolve(zero, fmt.Errorf("%w: %v", ErrPanic, r))
			}
		}()
		v, err := fn()
		f.resolve(v, err)
	})
	if err != nil {
		var zero T
		f.resolve(zero, err)
	}
	return f
}
