package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muurk/salus/internal/salus"
)

// fakeFetcher answers each call with the result of respond(call)
type fakeFetcher struct {
	calls   atomic.Int64
	respond func(call int) (salus.ThermostatState, error)
}

func (f *fakeFetcher) FetchState(ctx context.Context) (salus.ThermostatState, error) {
	n := int(f.calls.Add(1))
	return f.respond(n)
}

func stateWithTarget(v float64) salus.ThermostatState {
	return salus.ThermostatState{
		TargetTemperatureC:  v,
		CurrentTemperatureC: 19.5,
		FrostTemperatureC:   10,
		HeatingActive:       true,
		Mode:                salus.ModeOn,
	}
}

// recorder collects published states
type recorder struct {
	mu     sync.Mutex
	states []salus.ThermostatState
	errs   []error
	got    chan struct{}
}

func newRecorder() *recorder {
	return &recorder{got: make(chan struct{}, 16)}
}

func (r *recorder) onState(s salus.ThermostatState) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
	r.notify()
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.notify()
}

func (r *recorder) notify() {
	select {
	case r.got <- struct{}{}:
	default:
	}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.got:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a poll result")
	}
}

func (r *recorder) snapshot() ([]salus.ThermostatState, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]salus.ThermostatState(nil), r.states...), append([]error(nil), r.errs...)
}

func TestLoop_Defaults(t *testing.T) {
	l := New(&fakeFetcher{}, Options{})
	if l.Interval() != DefaultInterval {
		t.Errorf("Interval() = %v, want %v", l.Interval(), DefaultInterval)
	}
	if l.State() != Idle {
		t.Errorf("State() = %s, want idle", l.State())
	}
	if _, _, ok := l.Last(); ok {
		t.Error("Last() should be empty before the first poll")
	}
}

func TestLoop_FirstCycleIsImmediate(t *testing.T) {
	f := &fakeFetcher{respond: func(int) (salus.ThermostatState, error) {
		return stateWithTarget(21), nil
	}}
	l := New(f, Options{Interval: time.Hour})
	rec := newRecorder()
	l.Subscribe(rec.onState)

	l.Start()
	defer l.Stop()
	rec.wait(t)

	if l.State() != Polling {
		t.Errorf("State() = %s, want polling", l.State())
	}
	last, at, ok := l.Last()
	if !ok || last.TargetTemperatureC != 21 || at.IsZero() {
		t.Errorf("Last() = %+v, %v, %v", last, at, ok)
	}
}

func TestLoop_FailureKeepsPreviousState(t *testing.T) {
	boom := errors.New("portal down")
	f := &fakeFetcher{respond: func(call int) (salus.ThermostatState, error) {
		if call == 1 {
			return stateWithTarget(21), nil
		}
		return salus.ThermostatState{}, boom
	}}
	l := New(f, Options{Interval: 20 * time.Millisecond})
	rec := newRecorder()
	l.Subscribe(rec.onState)
	l.OnError(rec.onError)

	l.Start()
	defer l.Stop()
	rec.wait(t)
	rec.wait(t)

	states, errs := rec.snapshot()
	if len(states) != 1 {
		t.Errorf("published states = %d, want 1", len(states))
	}
	if len(errs) == 0 || !errors.Is(errs[0], boom) {
		t.Errorf("errors = %v, want %v", errs, boom)
	}
	if last, _, ok := l.Last(); !ok || last.TargetTemperatureC != 21 {
		t.Errorf("Last() = %+v, %v; previous state should be kept", last, ok)
	}
}

func TestLoop_ResultAfterStopIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	f := &fakeFetcher{respond: func(int) (salus.ThermostatState, error) {
		close(started)
		<-release
		return stateWithTarget(21), nil
	}}
	l := New(f, Options{Interval: time.Hour})
	rec := newRecorder()
	l.Subscribe(rec.onState)

	l.Start()
	<-started
	l.Stop()
	close(release)

	select {
	case <-rec.got:
		t.Fatal("a result fetched before Stop must not be published")
	case <-time.After(100 * time.Millisecond):
	}
	if _, _, ok := l.Last(); ok {
		t.Error("Last() should stay empty")
	}
}

func TestLoop_StaleGenerationAfterRestart(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	f := &fakeFetcher{respond: func(call int) (salus.ThermostatState, error) {
		if call == 1 {
			close(started)
			<-release
			return stateWithTarget(18), nil
		}
		return stateWithTarget(22), nil
	}}
	l := New(f, Options{Interval: time.Hour})
	rec := newRecorder()
	l.Subscribe(rec.onState)

	l.Start()
	<-started
	l.Stop()
	l.Start()
	defer l.Stop()
	rec.wait(t)

	// Let the first generation's fetch finish late
	close(release)
	time.Sleep(100 * time.Millisecond)

	states, _ := rec.snapshot()
	if len(states) != 1 || states[0].TargetTemperatureC != 22 {
		t.Errorf("published = %+v, want only the new generation's state", states)
	}
	if last, _, _ := l.Last(); last.TargetTemperatureC != 22 {
		t.Errorf("Last().TargetTemperatureC = %v, want 22", last.TargetTemperatureC)
	}
}

func TestLoop_Refresh(t *testing.T) {
	f := &fakeFetcher{respond: func(call int) (salus.ThermostatState, error) {
		return stateWithTarget(float64(15 + call)), nil
	}}
	l := New(f, Options{Interval: time.Hour})
	if l.Refresh() {
		t.Error("Refresh() on an idle loop should report false")
	}

	rec := newRecorder()
	l.Subscribe(rec.onState)
	l.Start()
	defer l.Stop()
	rec.wait(t)

	if !l.Refresh() {
		t.Fatal("Refresh() on a running loop should report true")
	}
	rec.wait(t)

	if last, _, _ := l.Last(); last.TargetTemperatureC != 17 {
		t.Errorf("Last().TargetTemperatureC = %v, want 17", last.TargetTemperatureC)
	}
}

func TestLoop_StartStopIdempotent(t *testing.T) {
	f := &fakeFetcher{respond: func(int) (salus.ThermostatState, error) {
		return stateWithTarget(21), nil
	}}
	l := New(f, Options{Interval: time.Hour})
	rec := newRecorder()
	l.Subscribe(rec.onState)

	l.Start()
	l.Start()
	rec.wait(t)
	l.Stop()
	l.Stop()

	if l.Running() {
		t.Error("Running() should be false after Stop")
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

func TestLoop_NoFetchAfterStop(t *testing.T) {
	// select picks randomly among ready cases, so repeat to catch a pending
	// tick or refresh winning over stop
	for i := 0; i < 20; i++ {
		release := make(chan struct{})
		started := make(chan struct{})
		f := &fakeFetcher{respond: func(call int) (salus.ThermostatState, error) {
			if call == 1 {
				close(started)
				<-release
			}
			return stateWithTarget(21), nil
		}}
		l := New(f, Options{Interval: 5 * time.Millisecond})

		l.Start()
		<-started
		l.Refresh()
		time.Sleep(20 * time.Millisecond)
		l.Stop()
		close(release)
		time.Sleep(20 * time.Millisecond)

		if got := f.calls.Load(); got != 1 {
			t.Fatalf("run %d: fetch calls = %d, want 1", i, got)
		}
	}
}
