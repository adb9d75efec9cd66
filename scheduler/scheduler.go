// Package scheduler serializes API requests into a single throttled stream.
//
// A Scheduler owns a queue and a throttle clock. Exactly one request is in flight at
// a time, and each dispatch waits until the configured interval has elapsed since
// the previous response was decoded. Normal submissions join the tail of the queue;
// priority submissions are pushed onto the head, so several priority submissions
// made before the queue drains run most-recent-first.
package scheduler

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"k8s.io/utils/clock"

	"github.com/olgasafonova/mediawiki-bot/metrics"
	"github.com/olgasafonova/mediawiki-bot/tracing"
)

// DefaultInterval spaces requests at 10 per minute.
const DefaultInterval = 6 * time.Second

// ErrClosed rejects requests submitted to, or still queued in, a closed Scheduler.
var ErrClosed = errors.New("scheduler: closed")

// Transport performs one request against the API endpoint. A non-2xx status is not a
// transport error; it is reported through status and left to the Decoder.
type Transport interface {
	Send(ctx context.Context, endpoint, method string, params url.Values) (status int, body []byte, err error)
}

// Decoder turns the raw outcome of a Transport call into a typed result or an error.
type Decoder[T any] func(status int, body []byte, sendErr error) (T, error)

// Request describes one API call. It is copied on submission and not modified afterwards.
type Request struct {
	ID       string
	Method   string
	Params   url.Values
	Priority bool
}

// NewRequest builds a Request with a fresh ID.
func NewRequest(method string, params url.Values, priority bool) Request {
	return Request{
		ID:       uuid.NewString(),
		Method:   method,
		Params:   params,
		Priority: priority,
	}
}

func (r Request) clone() Request {
	out := r
	out.Params = make(url.Values, len(r.Params))
	for k, v := range r.Params {
		out.Params[k] = append([]string(nil), v...)
	}
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.Method == "" {
		out.Method = http.MethodGet
	}
	return out
}

// coder is implemented by errors that carry a short machine-readable code.
type coder interface {
	ErrorCode() string
}

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

// WithInterval sets the minimum spacing between a response and the next dispatch.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.interval = d
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger used for dispatch events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

type entry[T any] struct {
	req      Request
	fut      *Future[T]
	elem     *list.Element // nil once dequeued or removed
	enqueued time.Time
}

// Scheduler is the single request stream of one client. It is safe for concurrent use.
type Scheduler[T any] struct {
	endpoint  string
	transport Transport
	decode    Decoder[T]
	interval  time.Duration
	clock     clock.Clock
	logger    *slog.Logger

	mu       sync.Mutex
	queue    *list.List // of *entry[T]
	next     time.Time
	inFlight bool
	closed   bool

	wake      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	stopped   chan struct{}
	closeOnce sync.Once
}

// New starts a Scheduler that sends requests to endpoint through transport and
// decodes every outcome with decode. Call Close to stop it.
func New[T any](endpoint string, transport Transport, decode Decoder[T], opts ...Option) *Scheduler[T] {
	o := options{
		interval: DefaultInterval,
		clock:    clock.RealClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler[T]{
		endpoint:  endpoint,
		transport: transport,
		decode:    decode,
		interval:  o.interval,
		clock:     o.clock,
		logger:    o.logger,
		queue:     list.New(),
		next:      o.clock.Now(),
		wake:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		stopped:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Interval returns the configured throttle interval.
func (s *Scheduler[T]) Interval() time.Duration {
	return s.interval
}

// Submit queues req and returns its completion handle.
func (s *Scheduler[T]) Submit(req Request) *Future[T] {
	return s.SubmitThen(req, nil)
}

// SubmitThen queues req with a continuation registered before the request can be
// dispatched. The continuation runs on the dispatch goroutine, before the next
// request is dequeued, so priority submissions it makes are seen first.
func (s *Scheduler[T]) SubmitThen(req Request, then func(T, error)) *Future[T] {
	fut := NewFuture[T]()
	if then != nil {
		fut.OnSettle(then)
	}

	e := &entry[T]{req: req.clone(), fut: fut, enqueued: s.clock.Now()}
	fut.SetCanceler(func() bool { return s.remove(e) })

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = fut.Reject(ErrClosed)
		return fut
	}
	if e.req.Priority {
		e.elem = s.queue.PushFront(e)
	} else {
		e.elem = s.queue.PushBack(e)
	}
	depth := s.queue.Len()
	s.mu.Unlock()

	metrics.SchedulerQueueDepth.Set(float64(depth))
	s.signal()
	return fut
}

// Len returns the number of queued requests, excluding the one in flight.
func (s *Scheduler[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Close stops the dispatch loop. Queued requests are rejected with ErrClosed and the
// in-flight request, if any, has its context canceled. Close does not wait for the
// loop to exit; use Stopped for that.
func (s *Scheduler[T]) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		pending := make([]*entry[T], 0, s.queue.Len())
		for el := s.queue.Front(); el != nil; el = el.Next() {
			e := el.Value.(*entry[T])
			e.elem = nil
			pending = append(pending, e)
		}
		s.queue.Init()
		s.mu.Unlock()

		s.cancel()
		metrics.SchedulerQueueDepth.Set(0)
		for _, e := range pending {
			_ = e.fut.Reject(ErrClosed)
		}
	})
}

// Stopped returns a channel closed when the dispatch loop has exited.
func (s *Scheduler[T]) Stopped() <-chan struct{} {
	return s.stopped
}

func (s *Scheduler[T]) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// remove withdraws a queued entry. It reports false once the entry was dequeued.
func (s *Scheduler[T]) remove(e *entry[T]) bool {
	s.mu.Lock()
	if e.elem == nil {
		s.mu.Unlock()
		return false
	}
	s.queue.Remove(e.elem)
	e.elem = nil
	depth := s.queue.Len()
	s.mu.Unlock()

	metrics.SchedulerQueueDepth.Set(float64(depth))
	metrics.SchedulerCancellations.Inc()
	s.logger.Debug("Queued request canceled", "id", e.req.ID, "action", e.req.Params.Get("action"))
	return true
}

func (s *Scheduler[T]) run() {
	defer close(s.stopped)

	for {
		if !s.awaitWork() {
			return
		}

		if delay := s.delay(); delay > 0 {
			metrics.SchedulerThrottleWait.Observe(delay.Seconds())
			timer := s.clock.NewTimer(delay)
			select {
			case <-timer.C():
			case <-s.ctx.Done():
				timer.Stop()
				return
			}
		}

		e := s.dequeue()
		if e == nil {
			// Everything queued was canceled during the throttle wait.
			s.release()
			continue
		}
		s.dispatch(e)
	}
}

// awaitWork blocks until the queue is non-empty and marks the stream in flight.
func (s *Scheduler[T]) awaitWork() bool {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return false
		}
		if s.queue.Len() > 0 && !s.inFlight {
			s.inFlight = true
			s.mu.Unlock()
			return true
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-s.ctx.Done():
			return false
		}
	}
}

func (s *Scheduler[T]) delay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.next.Sub(s.clock.Now())
	if d < 0 {
		return 0
	}
	return d
}

func (s *Scheduler[T]) dequeue() *entry[T] {
	s.mu.Lock()
	front := s.queue.Front()
	if front == nil {
		s.mu.Unlock()
		return nil
	}
	e := s.queue.Remove(front).(*entry[T])
	e.elem = nil
	depth := s.queue.Len()
	s.mu.Unlock()

	metrics.SchedulerQueueDepth.Set(float64(depth))
	return e
}

func (s *Scheduler[T]) release() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

func (s *Scheduler[T]) dispatch(e *entry[T]) {
	action := e.req.Params.Get("action")

	ctx, span := tracing.StartSpan(s.ctx, "scheduler.dispatch")
	tracing.AddWikiAttributes(span, action, firstNonEmpty(e.req.Params.Get("titles"), e.req.Params.Get("title")))
	tracing.AddDispatchAttributes(span, e.req.ID, e.req.Method, e.req.Priority, s.clock.Since(e.enqueued).Seconds())

	start := s.clock.Now()
	status, body, sendErr := s.transport.Send(ctx, s.endpoint, e.req.Method, e.req.Params)
	value, err := s.decode(status, body, sendErr)
	duration := s.clock.Since(start)

	s.mu.Lock()
	s.next = s.clock.Now().Add(s.interval)
	s.mu.Unlock()

	errorCode := ""
	if err != nil {
		errorCode = "unknown"
		var c coder
		if errors.As(err, &c) {
			errorCode = c.ErrorCode()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
	metrics.RecordDispatch(action, duration.Seconds(), err == nil, errorCode)

	s.logger.Debug("Request dispatched",
		"id", e.req.ID,
		"action", action,
		"method", e.req.Method,
		"priority", e.req.Priority,
		"status", status,
		"duration", duration,
		"error", err)

	s.settle(e, value, err)
	s.release()
}

// settle delivers the outcome. A panicking continuation must not stop the stream.
func (s *Scheduler[T]) settle(e *entry[T], value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues("scheduler").Inc()
			s.logger.Error("Panic recovered",
				"operation", "continuation",
				"id", e.req.ID,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()

	if err != nil {
		_ = e.fut.Reject(err)
		return
	}
	_ = e.fut.Resolve(value)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
