/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package clock

import (
	"math"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ntpmonitor/ntpmonitor/ntptime"
)

// ClockIndex is a signed reading of the host's monotonic hardware counter
// at a specific instant. It is kept signed, rather than the unsigned form
// some NTP clients use, because AdjustOrigin can legitimately move the
// pivot index backward relative to a stale reading still in flight.
type ClockIndex int64

// ClockDiff is the signed difference of two ClockIndex values.
type ClockDiff int64

// calibrationSamples is how many back-to-back counter reads Calibrate
// takes to estimate precision. The frequency is not measured.
const calibrationSamples = 8

// Clock is the affine map counter-index -> wall time for one server (or
// the local reference). clockTime(idx) == time0 + (idx-index0)/frequency.
type Clock struct {
	time0     ntptime.Time
	index0    ClockIndex
	frequency float64
	precision uint64
}

// Now reads the host's monotonic hardware counter. It is the one place in
// the engine that talks to the kernel clock source directly; everything
// else works in ClockIndex/ClockDiff space.
func Now() ClockIndex {
	var ts unix.Timespec
	// CLOCK_MONOTONIC never jumps backward and is not affected by
	// settimeofday/adjtime, making it the right free-running counter for
	// a model we discipline ourselves.
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// Fall back to wall-clock nanoseconds from time.Now. Unlike
		// CLOCK_MONOTONIC this reading follows steps of the system clock;
		// it is used only when the syscall itself fails.
		return ClockIndex(time.Now().UnixNano())
	}
	return ClockIndex(ts.Nano())
}

// Calibrate builds a fresh Clock by reading Now repeatedly (to measure
// precision) and then pairing one further reading with the system wall
// time, read back-to-back so no intervening work skews the pivot. The
// frequency is set to the counter's nominal rate of 1e9 ticks per second
// (CLOCK_MONOTONIC counts nanoseconds); it is not measured.
func Calibrate() Clock {
	var precision uint64
	prev := Now()
	for range calibrationSamples {
		cur := Now()
		if d := cur - prev; d > 0 && (precision == 0 || uint64(d) < precision) {
			precision = uint64(d)
		}
		prev = cur
	}
	index0 := Now()
	time0 := ntptime.FromUnix(time.Now())
	return Clock{
		time0:     time0,
		index0:    index0,
		frequency: float64(time.Second),
		precision: precision,
	}
}

// New builds a Clock directly from its model parameters, bypassing
// Calibrate. Used by tests and by callers that need to seed a clock with
// a known-good reference model.
func New(time0 ntptime.Time, index0 ClockIndex, frequency float64) Clock {
	return Clock{time0: time0, index0: index0, frequency: frequency}
}

// Frequency returns the clock's current ticks-per-second estimate.
func (c Clock) Frequency() float64 {
	return c.frequency
}

// Precision returns the smallest observed non-zero tick-to-tick
// difference seen during calibration, for reporting only.
func (c Clock) Precision() uint64 {
	return c.precision
}

// TimeAt maps a counter reading to wall time via the affine model.
func (c Clock) TimeAt(idx ClockIndex) ntptime.Time {
	seconds := float64(idx-c.index0) / c.frequency
	return ntptime.Add(c.time0, ntptime.FromSeconds(seconds))
}

// IndexAt maps a wall time to the nearest counter reading, the inverse of
// TimeAt.
func (c Clock) IndexAt(t ntptime.Time) ClockIndex {
	seconds := ntptime.ToSeconds(ntptime.Sub(t, c.time0))
	return c.index0 + ClockIndex(math.Round(seconds*c.frequency))
}

// DiffSeconds converts a ClockDiff to float64 seconds using the current
// frequency estimate.
func (c Clock) DiffSeconds(d ClockDiff) float64 {
	return float64(d) / c.frequency
}

// AdjustOrigin moves the model's pivot to idx2, recomputing time0 so that
// TimeAt(idx2) after the call equals TimeAt(idx2) before it exactly.
func (c Clock) AdjustOrigin(idx2 ClockIndex) Clock {
	c.time0 = c.TimeAt(idx2)
	c.index0 = idx2
	return c
}

// AdjustOffset shifts the wall-time estimate by d without touching the
// pivot index or the frequency.
func (c Clock) AdjustOffset(d ntptime.Duration) Clock {
	c.time0 = ntptime.Add(c.time0, d)
	return c
}

// AdjustFrequency rescales the tick rate by (1-adj), preserving the sign
// convention of the original reference implementation: a positive adj
// slows the clock down. time0 and index0 are untouched, so the model
// stays pinned at the current pivot while the rate around it changes.
func (c Clock) AdjustFrequency(adj float64) Clock {
	c.frequency *= 1 - adj
	return c
}
