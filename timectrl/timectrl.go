// Package timectrl paces the simulation: a fixed-rate, cooperative tick
// scheduler that never starts a tick before the previous one returned.
package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock is an interface for accessing simulation time, so components can
// stamp events without depending on the concrete controller.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still stepping by Tick.
	Accelerated
)

// Listener runs once per tick. n counts ticks from 1 within one Start.
type Listener func(ctx context.Context, n uint64, now time.Time)

// MetricsRecorder receives scheduler measurements.
type MetricsRecorder interface {
	ObserveTickWork(d time.Duration)
	TickOverrun()
}

// TimeController drives simulation time and notifies registered listeners.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	// currentTime tracks the current simulation time. It is updated
	// as the controller advances time.
	currentTime time.Time
	ticks       uint64

	listeners []Listener
	metrics   MetricsRecorder
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// SetMetricsRecorder attaches an optional recorder. Call before Start.
func (tc *TimeController) SetMetricsRecorder(m MetricsRecorder) {
	tc.mu.Lock()
	tc.metrics = m
	tc.mu.Unlock()
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime moves the simulation clock, e.g. after loading a save.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	tc.currentTime = t
	tc.mu.Unlock()
}

// Ticks is the number of ticks run by the last Start.
func (tc *TimeController) Ticks() uint64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.ticks
}

// AddListener registers a callback invoked on every tick, in registration
// order. Call before Start.
func (tc *TimeController) AddListener(fn Listener) {
	if fn == nil {
		return
	}
	tc.mu.Lock()
	tc.listeners = append(tc.listeners, fn)
	tc.mu.Unlock()
}

// Start runs ticks in a separate goroutine until ctx is cancelled or, when
// maxTicks > 0, maxTicks ticks have run. It returns a channel that is
// closed when the controller finishes.
//
// In RealTime mode ticks fire every Tick of wall-clock time; a slow tick
// delays the next one rather than queueing extra ticks. In Accelerated mode
// ticks run back to back.
func (tc *TimeController) Start(ctx context.Context, maxTicks uint64) <-chan struct{} {
	done := make(chan struct{})

	tc.mu.Lock()
	listeners := append([]Listener(nil), tc.listeners...)
	metrics := tc.metrics
	tc.ticks = 0
	simTime := tc.currentTime
	tc.mu.Unlock()

	go func() {
		defer close(done)

		var tickC <-chan time.Time
		if tc.Mode == RealTime {
			ticker := time.NewTicker(tc.Tick)
			defer ticker.Stop()
			tickC = ticker.C
		}

		for n := uint64(1); maxTicks == 0 || n <= maxTicks; n++ {
			if tickC != nil {
				select {
				case <-ctx.Done():
					return
				case <-tickC:
				}
			}
			if ctx.Err() != nil {
				return
			}

			simTime = simTime.Add(tc.Tick)
			tc.mu.Lock()
			tc.currentTime = simTime
			tc.ticks = n
			tc.mu.Unlock()

			began := time.Now()
			for _, fn := range listeners {
				fn(ctx, n, simTime)
			}
			if metrics != nil {
				work := time.Since(began)
				metrics.ObserveTickWork(work)
				if tc.Mode == RealTime && work > tc.Tick {
					metrics.TickOverrun()
				}
			}
		}
	}()
	return done
}
