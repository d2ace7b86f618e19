// Package dispatcher turns N logical calls into concurrent units of work
// and folds their outcomes into one collector per batch.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"salvo/internal/collector"
	"salvo/internal/core"
	"salvo/internal/ratelimit"
)

// DefaultConcurrency is the bounded-parallel ceiling used when a batch does
// not name one.
const DefaultConcurrency = 10

var (
	ErrInvalidMax         = errors.New("max must be a positive integer")
	ErrInvalidConcurrency = errors.New("concurrency must be a positive integer")
	// ErrIncompleteBatch means fewer outcomes were folded than calls were
	// issued. It indicates a Caller that broke its contract.
	ErrIncompleteBatch = errors.New("batch completed with missing outcomes")
)

// Batch describes one dispatch request.
type Batch struct {
	Max         int
	Strategy    core.Strategy
	Concurrency int // bounded-parallel only; 0 uses the dispatcher default
}

// Observer is notified once per batch, after its collector is created and
// before the first call is issued.
type Observer func(c *collector.Collector, b Batch)

// Dispatcher runs batches against a single Caller. Batches share no state,
// so one Dispatcher may run several batches at once.
type Dispatcher struct {
	caller      core.Caller
	async       core.AsyncCaller
	limiter     *ratelimit.RateLimiter
	logger      *slog.Logger
	clock       core.Clock
	observer    Observer
	concurrency int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAsyncCaller sets the caller used by the non-blocking strategy.
// Without it the blocking Caller is adapted with core.Async.
func WithAsyncCaller(ac core.AsyncCaller) Option {
	return func(d *Dispatcher) { d.async = ac }
}

// WithRateLimiter caps how fast calls are admitted.
func WithRateLimiter(l *ratelimit.RateLimiter) Option {
	return func(d *Dispatcher) { d.limiter = l }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

func WithClock(c core.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// WithConcurrency sets the default bounded-parallel ceiling.
func WithConcurrency(k int) Option {
	return func(d *Dispatcher) { d.concurrency = k }
}

// New creates a Dispatcher for caller.
func New(caller core.Caller, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		caller:      caller,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:       core.RealClock{},
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.async == nil {
		d.async = core.Async(caller)
	}
	return d
}

// Run dispatches b with the strategy it names.
func (d *Dispatcher) Run(ctx context.Context, b Batch) (*collector.Result, error) {
	strategy, err := core.ParseStrategy(string(b.Strategy))
	if err != nil {
		return nil, err
	}
	switch strategy {
	case core.StrategySerial:
		return d.RunSerial(ctx, b.Max)
	case core.StrategyParallel:
		k := b.Concurrency
		if k == 0 {
			k = d.concurrency
		}
		return d.RunBoundedParallel(ctx, b.Max, k)
	case core.StrategyNonBlocking:
		return d.RunNonBlocking(ctx, b.Max)
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownStrategy, strategy)
	}
}

// RunSerial issues max calls one after another on a single background
// goroutine and waits for it to finish.
func (d *Dispatcher) RunSerial(ctx context.Context, max int) (*collector.Result, error) {
	if max <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMax, max)
	}
	r := d.start(Batch{Max: max, Strategy: core.StrategySerial})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= max; i++ {
			r.invoke(ctx, i)
		}
	}()
	<-done

	return r.finish()
}

// RunBoundedParallel issues max calls with at most concurrency of them in
// flight at any moment.
func (d *Dispatcher) RunBoundedParallel(ctx context.Context, max, concurrency int) (*collector.Result, error) {
	if max <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMax, max)
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidConcurrency, concurrency)
	}
	r := d.start(Batch{Max: max, Strategy: core.StrategyParallel, Concurrency: concurrency})

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i := 1; i <= max; i++ {
		index := i
		// Go blocks while the group is at its limit.
		g.Go(func() error {
			r.invoke(ctx, index)
			return nil
		})
	}
	_ = g.Wait()

	return r.finish()
}

// RunNonBlocking issues every call through the AsyncCaller without
// waiting for earlier responses, then waits for all completions.
func (d *Dispatcher) RunNonBlocking(ctx context.Context, max int) (*collector.Result, error) {
	if max <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMax, max)
	}
	r := d.start(Batch{Max: max, Strategy: core.StrategyNonBlocking})

	var wg sync.WaitGroup
	wg.Add(max)
	for i := 1; i <= max; i++ {
		r.issue(ctx, i, wg.Done)
	}
	wg.Wait()

	return r.finish()
}

func (d *Dispatcher) start(b Batch) *run {
	r := &run{
		d:     d,
		batch: b,
		id:    uuid.NewString(),
		coll:  collector.NewCollector(d.clock),
	}
	d.logger.Info("batch started",
		"id", r.id,
		"strategy", b.Strategy,
		"calls", b.Max,
		"concurrency", b.Concurrency,
	)
	if d.observer != nil {
		d.observer(r.coll, b)
	}
	return r
}

// run holds the state of a single batch.
type run struct {
	d     *Dispatcher
	batch Batch
	id    string
	coll  *collector.Collector

	inFlight atomic.Int64
	peak     atomic.Int64
}

// invoke performs call index on the current goroutine and folds its outcome.
func (r *run) invoke(ctx context.Context, index int) {
	ctx = core.ContextWithCallIndex(ctx, index)
	if err := r.d.limiter.Wait(ctx); err != nil {
		r.coll.Observe(core.Classify("", err), 0)
		return
	}

	r.enter()
	defer r.leave()

	start := r.d.clock.Now()
	outcome, err := r.call(ctx, index)
	r.coll.Observe(core.Classify(outcome, err), r.d.clock.Since(start))
}

func (r *run) call(ctx context.Context, index int) (outcome core.Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			outcome, err = core.OutcomePanic, fmt.Errorf("panic: %v", p)
		}
	}()
	return r.d.caller.Call(ctx, index)
}

// issue starts call index through the AsyncCaller. done runs after the
// outcome has been folded.
func (r *run) issue(ctx context.Context, index int, done func()) {
	ctx = core.ContextWithCallIndex(ctx, index)
	if err := r.d.limiter.Wait(ctx); err != nil {
		r.coll.Observe(core.Classify("", err), 0)
		done()
		return
	}

	r.enter()
	start := r.d.clock.Now()

	var once sync.Once
	complete := func(outcome core.Outcome, err error) {
		once.Do(func() {
			r.coll.Observe(core.Classify(outcome, err), r.d.clock.Since(start))
			r.leave()
			done()
		})
	}

	func() {
		defer func() {
			if p := recover(); p != nil {
				complete(core.OutcomePanic, fmt.Errorf("panic: %v", p))
			}
		}()
		r.d.async.CallAsync(ctx, index, complete)
	}()
}

func (r *run) enter() {
	n := r.inFlight.Add(1)
	for {
		peak := r.peak.Load()
		if n <= peak || r.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (r *run) leave() {
	r.inFlight.Add(-1)
}

// finish stops the collector and builds the Result. It must only be called
// after the batch barrier.
func (r *run) finish() (*collector.Result, error) {
	if err := r.coll.Stop(); err != nil {
		return nil, err
	}
	if total := r.coll.Total(); total != int64(r.batch.Max) {
		r.d.logger.Error("batch incomplete",
			"id", r.id,
			"strategy", r.batch.Strategy,
			"calls", r.batch.Max,
			"folded", total,
		)
		return nil, fmt.Errorf("%w: %d of %d", ErrIncompleteBatch, total, r.batch.Max)
	}

	result := r.coll.Snapshot()
	result.ID = r.id
	result.Strategy = r.batch.Strategy
	result.Calls = r.batch.Max
	result.Concurrency = r.batch.Concurrency
	result.PeakInFlight = int(r.peak.Load())

	r.d.logger.Info("batch complete",
		"id", r.id,
		"strategy", r.batch.Strategy,
		"calls", r.batch.Max,
		"duration", result.Duration,
		"peak_in_flight", result.PeakInFlight,
	)
	return result, nil
}
