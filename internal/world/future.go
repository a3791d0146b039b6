package world

import "context"

// Future is the result of a background computation that the frame loop
// polls without blocking.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go runs fn on a new goroutine.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Resolved returns a Future that is already complete.
func Resolved[T any](val T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: val, err: err}
	close(f.done)
	return f
}

// Poll reports whether the computation finished and, if so, its result.
func (f *Future[T]) Poll() (done bool, val T, err error) {
	select {
	case <-f.done:
		return true, f.val, f.err
	default:
		return false, val, nil
	}
}

// Wait blocks until the computation finishes or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed when the computation finishes.
func (f *Future[T]) Done() <-chan struct{} { return f.done }
