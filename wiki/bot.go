// Package wiki is a MediaWiki API client whose every call goes through one
// throttled request stream.
//
// Operations return a *scheduler.Future. Multi-step operations (login with a
// token hop, paginated listings, token-guarded edits) submit their follow-up
// requests as priority work from the continuation of the previous step, so
// they complete before unrelated calls queued in the meantime.
package wiki

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/olgasafonova/mediawiki-bot/internal/transport"
	"github.com/olgasafonova/mediawiki-bot/scheduler"
)

// Bot is a client for one wiki session
type Bot struct {
	config Config
	logger *slog.Logger
	sched  *scheduler.Scheduler[*Response]
}

// Option configures a Bot
type Option func(*botOptions)

type botOptions struct {
	logger    *slog.Logger
	transport scheduler.Transport
	clock     clock.Clock
	interval  *time.Duration
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) Option {
	return func(o *botOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTransport replaces the HTTP transport
func WithTransport(t scheduler.Transport) Option {
	return func(o *botOptions) {
		if t != nil {
			o.transport = t
		}
	}
}

// WithClock replaces the throttle clock
func WithClock(c clock.Clock) Option {
	return func(o *botOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithInterval overrides Config.Rate for the request stream. Unlike Rate, a
// zero interval is kept and disables the throttle.
func WithInterval(d time.Duration) Option {
	return func(o *botOptions) {
		if d >= 0 {
			o.interval = &d
		}
	}
}

// New creates a Bot and starts its request stream. Unset fields of cfg take
// their DefaultConfig values.
func New(cfg Config, opts ...Option) (*Bot, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := botOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.transport == nil {
		o.transport = transport.New(
			transport.WithUserAgent(cfg.UserAgent),
			transport.WithTimeout(cfg.Timeout),
			transport.WithLogger(o.logger),
		)
	}

	interval := cfg.Rate
	if o.interval != nil {
		interval = *o.interval
	}
	schedOpts := []scheduler.Option{
		scheduler.WithInterval(interval),
		scheduler.WithLogger(o.logger),
	}
	if o.clock != nil {
		schedOpts = append(schedOpts, scheduler.WithClock(o.clock))
	}

	return &Bot{
		config: cfg,
		logger: o.logger,
		sched:  scheduler.New[*Response](cfg.BaseURL, o.transport, decodeResponse, schedOpts...),
	}, nil
}

// Config returns a copy of the Bot's settings
func (b *Bot) Config() Config {
	return b.config
}

// Pending returns the number of queued requests
func (b *Bot) Pending() int {
	return b.sched.Len()
}

// Close stops the request stream. Queued calls fail with scheduler.ErrClosed.
func (b *Bot) Close() {
	b.sched.Close()
}

// CallOption adjusts a single operation
type CallOption func(*callOptions)

type callOptions struct {
	priority bool
}

// Priority puts the operation's first request at the head of the queue
func Priority() CallOption {
	return func(o *callOptions) {
		o.priority = true
	}
}

func applyCallOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Get submits a raw GET request
func (b *Bot) Get(params url.Values, opts ...CallOption) *scheduler.Future[*Response] {
	return b.submit(http.MethodGet, params, applyCallOptions(opts).priority, nil)
}

// Post submits a raw POST request
func (b *Bot) Post(params url.Values, opts ...CallOption) *scheduler.Future[*Response] {
	return b.submit(http.MethodPost, params, applyCallOptions(opts).priority, nil)
}

func (b *Bot) submit(method string, params url.Values, priority bool, then func(*Response, error)) *scheduler.Future[*Response] {
	p := make(url.Values, len(params)+1)
	for k, v := range params {
		p[k] = append([]string(nil), v...)
	}
	p.Set("format", "json")
	return b.sched.SubmitThen(scheduler.NewRequest(method, p, priority), then)
}

// flow drives an operation that takes one or more requests to settle out.
// Cancelling out withdraws whichever step is currently queued.
type flow[T any] struct {
	bot *Bot
	out *scheduler.Future[T]

	mu      sync.Mutex
	seq     uint64
	stepSeq uint64
	step    *scheduler.Future[*Response]
}

func newFlow[T any](b *Bot) *flow[T] {
	f := &flow[T]{bot: b, out: scheduler.NewFuture[T]()}
	f.out.SetCanceler(f.cancelStep)
	return f
}

func (f *flow[T]) cancelStep() bool {
	f.mu.Lock()
	step := f.step
	f.mu.Unlock()
	return step != nil && step.Cancel()
}

// send submits the next step. next runs only if the step succeeds and the
// operation is still pending; a failed step rejects the operation.
func (f *flow[T]) send(method string, params url.Values, priority bool, next func(*Response)) {
	f.mu.Lock()
	f.seq++
	seq := f.seq
	f.mu.Unlock()

	step := f.bot.submit(method, params, priority, func(resp *Response, err error) {
		defer func() {
			if r := recover(); r != nil {
				f.reject(fmt.Errorf("%s: continuation panicked: %v", params.Get("action"), r))
				panic(r)
			}
		}()
		if f.out.Settled() {
			return
		}
		if err != nil {
			_ = f.out.Reject(err)
			return
		}
		next(resp)
	})

	// A fast step may already have submitted its successor.
	f.mu.Lock()
	if seq > f.stepSeq {
		f.step, f.stepSeq = step, seq
	}
	f.mu.Unlock()
}

func (f *flow[T]) resolve(v T) {
	_ = f.out.Resolve(v)
}

func (f *flow[T]) reject(err error) {
	_ = f.out.Reject(err)
}

// call runs a single-request operation and converts its response with parse.
func call[T any](b *Bot, method string, params url.Values, priority bool, parse func(*Response) (T, error)) *scheduler.Future[T] {
	f := newFlow[T](b)
	f.send(method, params, priority, func(resp *Response) {
		v, err := parse(resp)
		if err != nil {
			f.reject(err)
			return
		}
		f.resolve(v)
	})
	return f.out
}
