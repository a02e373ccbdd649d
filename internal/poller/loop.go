package poller

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/salus/internal/logging"
	"github.com/muurk/salus/internal/salus"
)

// DefaultInterval is the refresh period used when Options.Interval is zero
const DefaultInterval = 60 * time.Second

// State of a Loop
type State int

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "polling"
	}
	return "idle"
}

// Fetcher reads the current thermostat state. *salus.Client satisfies it.
type Fetcher interface {
	FetchState(ctx context.Context) (salus.ThermostatState, error)
}

// Options tune a Loop. The zero value is usable.
type Options struct {
	// Interval between cycles (default DefaultInterval)
	Interval time.Duration

	// FetchTimeout bounds a single cycle (default Interval)
	FetchTimeout time.Duration

	// Now is the clock used for update timestamps
	Now func() time.Time
}

// Loop polls a Fetcher and fans results out to subscribers.
type Loop struct {
	fetcher Fetcher
	opts    Options

	mu          sync.Mutex
	running     bool
	generation  uint64
	stop        chan struct{}
	trigger     chan struct{}
	last        *salus.ThermostatState
	updatedAt   time.Time
	subscribers []func(salus.ThermostatState)
	errHooks    []func(error)
}

// New creates an idle loop
func New(fetcher Fetcher, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = opts.Interval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Loop{fetcher: fetcher, opts: opts}
}

// Interval returns the configured refresh period
func (l *Loop) Interval() time.Duration {
	return l.opts.Interval
}

// Subscribe registers fn to receive every successfully fetched state.
// Callbacks run on the loop goroutine and must not block.
func (l *Loop) Subscribe(fn func(salus.ThermostatState)) {
	l.mu.Lock()
	l.subscribers = append(l.subscribers, fn)
	l.mu.Unlock()
}

// OnError registers fn to receive every failed cycle's error
func (l *Loop) OnError(fn func(error)) {
	l.mu.Lock()
	l.errHooks = append(l.errHooks, fn)
	l.mu.Unlock()
}

// Start moves the loop to Polling. It is a no-op when already polling.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}

	l.running = true
	l.generation++
	l.stop = make(chan struct{})
	l.trigger = make(chan struct{}, 1)

	logging.Debug("Poll loop started",
		zap.Uint64("generation", l.generation),
		zap.Duration("interval", l.opts.Interval),
	)
	go l.run(l.generation, l.stop, l.trigger)
}

// Stop moves the loop to Idle. An in-flight fetch is left to finish but its
// result is discarded.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}

	l.running = false
	l.generation++
	close(l.stop)
	logging.Debug("Poll loop stopped", zap.Uint64("generation", l.generation))
}

// Refresh asks a running loop for an extra cycle without waiting for the
// next tick. It reports false when the loop is idle.
func (l *Loop) Refresh() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return false
	}
	select {
	case l.trigger <- struct{}{}:
	default:
		// one pending refresh is enough
	}
	return true
}

// Running reports whether the loop is Polling
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// State returns Idle or Polling
func (l *Loop) State() State {
	if l.Running() {
		return Polling
	}
	return Idle
}

// Last returns the most recently published state and when it was fetched
func (l *Loop) Last() (salus.ThermostatState, time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last == nil {
		return salus.ThermostatState{}, time.Time{}, false
	}
	return *l.last, l.updatedAt, true
}

func (l *Loop) run(gen uint64, stop <-chan struct{}, trigger <-chan struct{}) {
	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()

	l.cycle(gen)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		case <-trigger:
		}
		// a tick may have raced with Stop during the previous fetch
		select {
		case <-stop:
			return
		default:
		}
		l.cycle(gen)
	}
}

func (l *Loop) current(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running && l.generation == gen
}

// cycle performs one fetch. The context is independent of Stop.
func (l *Loop) cycle(gen uint64) {
	if !l.current(gen) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.opts.FetchTimeout)
	state, err := l.fetcher.FetchState(ctx)
	cancel()

	l.mu.Lock()
	if !l.running || l.generation != gen {
		l.mu.Unlock()
		logging.Debug("Discarding poll result from a stopped loop", zap.Uint64("generation", gen))
		return
	}

	if err != nil {
		hooks := slices.Clone(l.errHooks)
		l.mu.Unlock()

		logging.Warn("Poll failed, keeping previous state", zap.Error(err))
		for _, fn := range hooks {
			fn(err)
		}
		return
	}

	s := state
	l.last = &s
	l.updatedAt = l.opts.Now()
	subs := slices.Clone(l.subscribers)
	l.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}
