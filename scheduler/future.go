package scheduler

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrSettled is returned by Resolve and Reject when the handle already has an outcome.
	ErrSettled = errors.New("scheduler: handle already settled")

	// ErrPending is returned by Result before the handle has settled.
	ErrPending = errors.New("scheduler: handle not settled")

	// ErrCanceled rejects handles that were canceled before their request was dispatched.
	ErrCanceled = errors.New("scheduler: canceled before dispatch")
)

// Future is a single-shot completion handle. Exactly one of its success or error
// paths fires, exactly once.
//
// Callbacks registered before settlement run synchronously on the goroutine that
// settles the handle. For scheduled requests that is the dispatch goroutine, so a
// continuation can submit follow-up work before the next request is dequeued.
// The stream is stalled until the callback returns: calling Wait on another
// scheduled request from inside OnSuccess, OnError or OnSettle blocks forever
// unless its context ends, because that request cannot be dispatched meanwhile.
// Callbacks registered after settlement run immediately on the caller's goroutine.
//
// Errors are never swallowed: Wait and Result return the rejection error whether or
// not an OnError callback was installed.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	value     T
	err       error
	onSuccess []func(T)
	onError   []func(error)
	canceler  func() bool
}

// NewFuture creates an unsettled handle.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a handle already settled with v.
func Resolved[T any](v T) *Future[T] {
	f := NewFuture[T]()
	_ = f.Resolve(v)
	return f
}

// Rejected returns a handle already settled with err.
func Rejected[T any](err error) *Future[T] {
	f := NewFuture[T]()
	_ = f.Reject(err)
	return f
}

// OnSuccess registers fn for the success path.
func (f *Future[T]) OnSuccess(fn func(T)) *Future[T] {
	f.mu.Lock()
	if !f.settled {
		f.onSuccess = append(f.onSuccess, fn)
		f.mu.Unlock()
		return f
	}
	v, err := f.value, f.err
	f.mu.Unlock()

	if err == nil {
		fn(v)
	}
	return f
}

// OnError registers fn for the error path.
func (f *Future[T]) OnError(fn func(error)) *Future[T] {
	f.mu.Lock()
	if !f.settled {
		f.onError = append(f.onError, fn)
		f.mu.Unlock()
		return f
	}
	err := f.err
	f.mu.Unlock()

	if err != nil {
		fn(err)
	}
	return f
}

// OnSettle registers fn for both paths.
func (f *Future[T]) OnSettle(fn func(T, error)) *Future[T] {
	var zero T
	f.OnSuccess(func(v T) { fn(v, nil) })
	f.OnError(func(err error) { fn(zero, err) })
	return f
}

// Resolve settles the handle with v. It returns ErrSettled if the handle already
// has an outcome; the earlier outcome is kept.
func (f *Future[T]) Resolve(v T) error {
	return f.settle(v, nil)
}

// Reject settles the handle with err. It returns ErrSettled if the handle already
// has an outcome; the earlier outcome is kept.
func (f *Future[T]) Reject(err error) error {
	if err == nil {
		err = errors.New("scheduler: rejected without an error")
	}
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(v T, err error) error {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return ErrSettled
	}
	f.settled = true
	f.value = v
	f.err = err
	onSuccess, onError := f.onSuccess, f.onError
	f.onSuccess, f.onError = nil, nil
	f.canceler = nil
	close(f.done)
	f.mu.Unlock()

	if err == nil {
		for _, fn := range onSuccess {
			fn(v)
		}
		return nil
	}
	for _, fn := range onError {
		fn(err)
	}
	return nil
}

// Done returns a channel closed once the handle settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the handle has an outcome.
func (f *Future[T]) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

// Result returns the outcome without blocking, or ErrPending.
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settled {
		var zero T
		return zero, ErrPending
	}
	return f.value, f.err
}

// Wait blocks until the handle settles or ctx is done. When ctx ends first the
// handle is canceled if its work has not started yet, and ctx.Err() is returned.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		f.Cancel()
		var zero T
		return zero, ctx.Err()
	}
}

// SetCanceler installs the hook used by Cancel. The hook reports whether the
// pending work was withdrawn.
func (f *Future[T]) SetCanceler(fn func() bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settled {
		f.canceler = fn
	}
}

// Cancel withdraws pending work and rejects the handle with ErrCanceled. It returns
// false when the handle is already settled, has no canceler, or its work can no
// longer be withdrawn (for example a request that is already in flight).
func (f *Future[T]) Cancel() bool {
	f.mu.Lock()
	fn := f.canceler
	settled := f.settled
	f.mu.Unlock()

	if settled || fn == nil || !fn() {
		return false
	}
	// The canceler may already have settled the handle through a continuation.
	_ = f.Reject(ErrCanceled)
	return true
}
