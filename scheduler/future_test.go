package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFutureResolve(t *testing.T) {
	f := NewFuture[int]()

	var got []int
	f.OnSuccess(func(v int) { got = append(got, v) })
	f.OnError(func(err error) { t.Errorf("unexpected error callback: %v", err) })

	if f.Settled() {
		t.Fatal("new future should not be settled")
	}
	if err := f.Resolve(7); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if err := f.Resolve(8); !errors.Is(err, ErrSettled) {
		t.Errorf("second Resolve = %v, want ErrSettled", err)
	}
	if err := f.Reject(errors.New("late")); !errors.Is(err, ErrSettled) {
		t.Errorf("Reject after Resolve = %v, want ErrSettled", err)
	}

	if len(got) != 1 || got[0] != 7 {
		t.Errorf("success callbacks saw %v, want [7]", got)
	}
	v, err := f.Result()
	if err != nil || v != 7 {
		t.Errorf("Result() = (%d, %v), want (7, nil)", v, err)
	}
}

func TestFutureReject(t *testing.T) {
	boom := errors.New("boom")
	f := NewFuture[string]()

	var gotErr error
	calls := 0
	f.OnError(func(err error) {
		calls++
		gotErr = err
	})
	f.OnSuccess(func(string) { t.Error("unexpected success callback") })

	if err := f.Reject(boom); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	_ = f.Reject(errors.New("again"))

	if calls != 1 {
		t.Errorf("error callback ran %d times, want 1", calls)
	}
	if !errors.Is(gotErr, boom) {
		t.Errorf("callback error = %v, want %v", gotErr, boom)
	}
	if _, err := f.Result(); !errors.Is(err, boom) {
		t.Errorf("Result() error = %v, want %v", err, boom)
	}
}

func TestFutureRejectNil(t *testing.T) {
	f := NewFuture[int]()
	_ = f.Reject(nil)

	if _, err := f.Result(); err == nil {
		t.Error("Reject(nil) should still settle with a non-nil error")
	}
}

func TestFutureCallbacksAfterSettle(t *testing.T) {
	f := Resolved("done")

	ran := false
	f.OnSuccess(func(v string) {
		ran = v == "done"
	})
	if !ran {
		t.Error("callback registered after settlement should run immediately")
	}

	r := Rejected[string](errors.New("nope"))
	var settled error
	r.OnSettle(func(_ string, err error) { settled = err })
	if settled == nil {
		t.Error("OnSettle on a rejected future should see the error")
	}
}

func TestFutureResultPending(t *testing.T) {
	f := NewFuture[int]()
	if _, err := f.Result(); !errors.Is(err, ErrPending) {
		t.Errorf("Result() on pending future = %v, want ErrPending", err)
	}
}

func TestFutureWait(t *testing.T) {
	f := NewFuture[int]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = f.Resolve(42)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := f.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if v != 42 {
		t.Errorf("Wait() = %d, want 42", v)
	}
}

func TestFutureWaitContextCancels(t *testing.T) {
	f := NewFuture[int]()
	withdrawn := false
	f.SetCanceler(func() bool {
		withdrawn = true
		return true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
	if !withdrawn {
		t.Error("expected canceler to run when the context ends")
	}
	if _, err := f.Result(); !errors.Is(err, ErrCanceled) {
		t.Errorf("Result() after cancel = %v, want ErrCanceled", err)
	}
}

func TestFutureCancel(t *testing.T) {
	tests := []struct {
		name     string
		canceler func() bool
		want     bool
	}{
		{"no canceler", nil, false},
		{"work already started", func() bool { return false }, false},
		{"work withdrawn", func() bool { return true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFuture[int]()
			if tt.canceler != nil {
				f.SetCanceler(tt.canceler)
			}
			if got := f.Cancel(); got != tt.want {
				t.Errorf("Cancel() = %v, want %v", got, tt.want)
			}
			if f.Settled() != tt.want {
				t.Errorf("Settled() = %v, want %v", f.Settled(), tt.want)
			}
		})
	}
}

func TestFutureCancelAfterSettle(t *testing.T) {
	f := NewFuture[int]()
	f.SetCanceler(func() bool {
		t.Error("canceler should not run on a settled future")
		return true
	})
	_ = f.Resolve(1)

	if f.Cancel() {
		t.Error("Cancel() on a settled future should return false")
	}
}
