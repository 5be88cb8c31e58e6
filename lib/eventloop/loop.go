// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventloop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/pel/lib/clock"
)

// Loop executes posted events one at a time, in posting order.
type Loop struct {
	clock  clock.Clock
	logger *slog.Logger

	mu    sync.Mutex
	queue []func()

	// wake has capacity 1 and is signalled on every Post so Run can
	// sleep while the queue is empty.
	wake chan struct{}
}

// New creates a Loop. Nothing runs until Run or RunPending is called.
func New(clk clock.Clock, logger *slog.Logger) *Loop {
	return &Loop{
		clock:  clk,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Clock returns the clock the loop's timers are scheduled on.
func (l *Loop) Clock() clock.Clock {
	return l.clock
}

// Post queues fn to run on the loop. Safe to call from any goroutine,
// including from inside an event; fn then runs after the current
// event returns.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes events until ctx is cancelled. Events still queued at
// cancellation are dropped.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.RunPending()
		select {
		case <-l.wake:
		case <-ctx.Done():
			return nil
		}
	}
}

// RunPending executes queued events, including any they post, until
// the queue is empty. Returns the number of events executed.
func (l *Loop) RunPending() int {
	executed := 0
	for {
		fn, ok := l.next()
		if !ok {
			return executed
		}
		l.execute(fn)
		executed++
	}
}

// Call runs fn on the loop and waits for it to finish. It is the
// bridge for goroutines (socket handlers, transports) that need to
// read or mutate loop-owned state. Returns ctx.Err() if ctx ends
// first; fn may still run later in that case.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// execute runs one event. A panicking event is logged and the loop
// keeps going.
func (l *Loop) execute(fn func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			l.logger.Error("event loop callback panicked",
				"panic", fmt.Sprint(recovered),
			)
		}
	}()
	fn()
}

// Timer is a restartable one-shot timer whose expiry runs on the
// loop. Its methods must only be called from loop events.
type Timer struct {
	loop     *Loop
	callback func()

	pending    *clock.Timer
	generation uint64
	enabled    bool
}

// NewTimer creates a disarmed timer that calls fn on the loop when it
// expires.
func (l *Loop) NewTimer(fn func()) *Timer {
	return &Timer{loop: l, callback: fn}
}

// RestartOnce arms the timer to expire once after d, replacing any
// earlier arming.
func (t *Timer) RestartOnce(d time.Duration) {
	t.disarm()
	t.enabled = true
	generation := t.generation
	t.pending = t.loop.clock.AfterFunc(d, func() {
		t.loop.Post(func() { t.expire(generation) })
	})
}

// Stop disarms the timer. Safe to call when it is not armed.
func (t *Timer) Stop() {
	t.disarm()
	t.enabled = false
}

// Enabled reports whether the timer is armed and has not yet expired.
func (t *Timer) Enabled() bool {
	return t.enabled
}

func (t *Timer) disarm() {
	t.generation++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *Timer) expire(generation uint64) {
	if generation != t.generation || !t.enabled {
		return
	}
	t.enabled = false
	t.pending = nil
	t.callback()
}
