package runner

import (
	"context"
	"errors"
	"time"

	"github.com/nholik/uptime-sentinel/internal/clock"
	"github.com/nholik/uptime-sentinel/internal/healthcheck"
	"github.com/nholik/uptime-sentinel/internal/history"
	"github.com/nholik/uptime-sentinel/internal/metrics"
	"github.com/nholik/uptime-sentinel/internal/probe"
	"github.com/nholik/uptime-sentinel/internal/state"
	"github.com/rs/zerolog"
)

// Ticker is the minimal interface needed for driving the runner loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

// Publisher receives a copy of the history after every cycle.
type Publisher interface {
	Publish(h history.History)
}

// Runner owns the in-memory history and drives the probe/record/persist loop.
type Runner struct {
	logger        zerolog.Logger
	pollInterval  time.Duration
	retainWindow  time.Duration
	tickerFactory func(time.Duration) Ticker
	runOnce       func(context.Context) error
	customRunOnce bool
	clock         clock.Clock
	prober        probe.Prober
	stateStore    state.Store
	publisher     Publisher
	tracker       *healthcheck.Tracker
	metrics       *metrics.Metrics

	history  history.History
	lastSeen history.State
}

// Option customizes runner behavior.
type Option func(*Runner)

// WithTickerFactory overrides how tickers are created.
func WithTickerFactory(factory func(time.Duration) Ticker) Option {
	return func(r *Runner) {
		r.tickerFactory = factory
	}
}

// WithRunOnce overrides the single-cycle execution step.
func WithRunOnce(runOnce func(context.Context) error) Option {
	return func(r *Runner) {
		r.runOnce = runOnce
		r.customRunOnce = true
	}
}

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithProber sets the reachability probe used by the default RunOnce.
func WithProber(p probe.Prober) Option {
	return func(r *Runner) {
		r.prober = p
	}
}

// WithStateStore enables history persistence.
func WithStateStore(store state.Store) Option {
	return func(r *Runner) {
		r.stateStore = store
	}
}

// WithRetainWindow sets how long events are kept.
func WithRetainWindow(window time.Duration) Option {
	return func(r *Runner) {
		r.retainWindow = window
	}
}

// WithPublisher hands each cycle's history to p.
func WithPublisher(p Publisher) Option {
	return func(r *Runner) {
		r.publisher = p
	}
}

// WithTracker records cycle timing for health endpoints.
func WithTracker(tracker *healthcheck.Tracker) Option {
	return func(r *Runner) {
		r.tracker = tracker
	}
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// New constructs a Runner with the given logger and poll interval.
func New(logger zerolog.Logger, pollInterval time.Duration, opts ...Option) *Runner {
	r := &Runner{
		logger:       logger,
		pollInterval: pollInterval,
		retainWindow: history.DefaultRetainWindow,
		tickerFactory: func(d time.Duration) Ticker {
			return timeTicker{ticker: time.NewTicker(d)}
		},
		clock:    clock.System{},
		lastSeen: history.StateUnknown,
	}
	r.runOnce = r.defaultRunOnce

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run loads history, then probes once immediately and once per poll interval
// until the context is canceled. A load failure aborts before the first probe.
// On cancellation the history is saved one final time.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	return r.Loop(ctx)
}

// Loop drives cycles on an already started runner until ctx is canceled.
func (r *Runner) Loop(ctx context.Context) error {
	if err := r.validate(); err != nil {
		return err
	}

	// Run immediately on startup
	r.cycle(ctx)

	ticker := r.tickerFactory(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			r.logger.Info().Msg("runner stopped")
			return nil
		case <-ticker.C():
			r.cycle(ctx)
		}
	}
}

func (r *Runner) validate() error {
	if r.pollInterval <= 0 {
		return errors.New("poll interval must be greater than zero")
	}
	if r.retainWindow < time.Second {
		return errors.New("retain window must be at least one second")
	}
	if r.prober == nil && !r.customRunOnce {
		return errors.New("prober is required")
	}
	return nil
}

// Start loads the persisted history, pads any unmonitored gap since the last
// update, and seeds the last-seen state.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.validate(); err != nil {
		return err
	}

	loaded := history.New(clock.Unix(r.clock))
	if r.stateStore != nil {
		var err error
		loaded, err = r.stateStore.Load(ctx)
		if err != nil {
			return wrapStartup("load history", err)
		}
	}

	padded := false
	lastStart := uint64(0)
	if n := len(loaded.States); n > 0 {
		lastStart = loaded.States[n-1].Start
	}
	loaded.States, padded = history.PadGap(loaded.States, loaded.LastUpdate)
	if padded {
		r.logger.Info().
			Uint64("from", lastStart).
			Uint64("to", loaded.LastUpdate).
			Msg("padding unmonitored gap with unknown")
	}

	r.history = loaded
	r.lastSeen = loaded.Current()
	r.publish()

	r.logger.Info().
		Int("events", len(r.history.States)).
		Uint64("last_update", r.history.LastUpdate).
		Str("state", string(r.lastSeen)).
		Msg("history loaded")
	return nil
}

// RunOnce executes a single cycle of the runner.
func (r *Runner) RunOnce(ctx context.Context) error {
	return r.runOnce(ctx)
}

// History returns a copy of the in-memory history. It must not be called
// concurrently with Run; readers should use a Publisher instead.
func (r *Runner) History() history.History {
	return r.history.Clone()
}

func (r *Runner) cycle(ctx context.Context) {
	if err := r.RunOnce(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		var runtimeErr *RuntimeError
		if errors.As(err, &runtimeErr) {
			r.logger.Error().Err(err).Str("op", runtimeErr.Op).Msg("run cycle failed, continuing")
			return
		}
		r.logger.Error().Err(err).Msg("run cycle failed")
	}
}

func (r *Runner) defaultRunOnce(ctx context.Context) error {
	started := time.Now()
	now := clock.Unix(r.clock)
	if now < r.history.LastUpdate {
		r.logger.Warn().
			Uint64("now", now).
			Uint64("last_update", r.history.LastUpdate).
			Msg("clock moved backwards, holding last update")
		now = r.history.LastUpdate
	}

	r.logger.Debug().Uint64("time", now).Msg("checking state")
	observed := r.prober.Check(ctx)
	if err := ctx.Err(); err != nil {
		// A probe cut short by shutdown says nothing about the target.
		return err
	}
	r.metrics.ObserveProbe(observed)

	if observed != r.lastSeen {
		var recorded bool
		r.history.States, recorded = history.RecordTransition(r.history.States, observed, now)
		if recorded {
			r.logTransition(r.lastSeen, observed, now)
			r.metrics.IncTransitions(observed)
		}
		r.lastSeen = observed
	}
	r.history.LastUpdate = now
	r.history.States = history.Retain(r.history.States, now, r.retainWindow)

	r.publish()
	r.metrics.SetEventsRetained(len(r.history.States))
	r.tracker.RecordCycle(time.Since(started), observed, len(r.history.States))
	r.metrics.ObserveCycleDuration(time.Since(started))

	if err := r.persist(ctx); err != nil {
		return err
	}
	r.metrics.SetLastSuccessfulCycleTimestamp(time.Unix(int64(now), 0))
	return nil
}

func (r *Runner) logTransition(previous, current history.State, at uint64) {
	event := r.logger.Info()
	if current == history.StateUnreachable {
		event = r.logger.Warn()
	}
	event.
		Str("previous_state", string(previous)).
		Str("current_state", string(current)).
		Uint64("start", at).
		Msg("state changed")
}

func (r *Runner) persist(ctx context.Context) error {
	if r.stateStore == nil {
		return nil
	}
	if err := r.stateStore.Save(ctx, r.history.Clone()); err != nil {
		r.metrics.IncSaveErrors()
		return wrapRuntime("save history", err)
	}
	return nil
}

func (r *Runner) publish() {
	if r.publisher == nil {
		return
	}
	r.publisher.Publish(r.history.Clone())
}

func (r *Runner) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), r.pollInterval+time.Second)
	defer cancel()
	if err := r.persist(ctx); err != nil {
		r.logger.Error().Err(err).Msg("final history save failed")
		return
	}
	r.logger.Info().Int("events", len(r.history.States)).Msg("history saved on shutdown")
}
