// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package clock gives the timer-driven parts of the core (LSR ageing and
// propagation, shim-Wi-Fi enrollment timeouts) a seam to substitute in
// tests instead of calling time.Now directly.
package clock

import "time"

// Clock is the subset of time's free functions the core depends on.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker mirrors time.Ticker so fakes can control delivery.
type Ticker interface {
	C() <-chan time.Time
	Stop()
	Reset(d time.Duration)
}

// Real is the Clock backed by the standard library.
type Real struct{}

func (Real) Now() time.Time                         { return time.Now() }
func (Real) After(d time.Duration) <-chan time.Time  { return time.After(d) }
func (Real) NewTicker(d time.Duration) Ticker        { return &realTicker{t: time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (r *realTicker) C() <-chan time.Time    { return r.t.C }
func (r *realTicker) Stop()                  { r.t.Stop() }
func (r *realTicker) Reset(d time.Duration)  { r.t.Reset(d) }

// System is the process-wide default clock.
var System Clock = Real{}

// Now is a convenience wrapper over System.Now.
func Now() time.Time { return System.Now() }
