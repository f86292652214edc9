package taskpool

import "sync"

// Future holds the eventual result of a task.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	lazy func() (T, error)

	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(v T, err error) {
	f.value, f.err = v, err
	close(f.done)
}

// Resolved returns a future that already holds v.
func Resolved[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.resolve(v, nil)
	return f
}

// Get blocks until the result is available.
func (f *Future[T]) Get() (T, error) {
	if f.lazy != nil {
		f.once.Do(func() { f.resolve(f.lazy()) })
	}
	<-f.done
	return f.value, f.err
}

// Done returns a channel that is closed once the result is available.
// Joined futures start combining in the background when Done is called.
func (f *Future[T]) Done() <-chan struct{} {
	if f.lazy != nil {
		go f.Get()
	}
	return f.done
}

// MustGet is Get for futures whose task cannot fail; it panics on error.
func (f *Future[T]) MustGet() T {
	v, err := f.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// Join returns a future combining the results of futures in order. The
// combination runs on the goroutine that first calls Get, so it never
// occupies a pool worker. The first error wins.
func Join[T, R any](futures []*Future[T], init R, combine func(R, T) R) *Future[R] {
	f := newFuture[R]()
	f.lazy = func() (R, error) {
		acc := init
		var firstErr error
		for _, fut := range futures {
			v, err := fut.Get()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			acc = combine(acc, v)
		}
		if firstErr != nil {
			var zero R
			return zero, firstErr
		}
		return acc, nil
	}
	return f
}

// GetAll waits for every future and returns the results in order.
func GetAll[T any](futures []*Future[T]) ([]T, error) {
	out := make([]T, len(futures))
	var firstErr error
	for i, f := range futures {
		v, err := f.Get()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		out[i] = v
	}
	return out, firstErr
}
