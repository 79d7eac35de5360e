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

/*
Package sample holds the four-point round-trip record produced by one
NTP request/reply exchange, and the quantities derived from it against a
Clock model.
*/
package sample

import (
	"github.com/ntpmonitor/ntpmonitor/clock"
	"github.com/ntpmonitor/ntpmonitor/ntptime"
)

// Sample is one completed NTP round trip: T1/T4 are host-counter readings,
// T2/T3 are the server's receive/transmit stamps as carried in the reply.
type Sample struct {
	T1 clock.ClockIndex
	T2 ntptime.Time
	T3 ntptime.Time
	T4 clock.ClockIndex
}

// RoundTrip is T4-T1, the total host-counter time elapsed for the
// exchange. It is non-negative by construction: T4 is always read after
// T1 on the same monotonic counter.
func (s Sample) RoundTrip() clock.ClockDiff {
	return clock.ClockDiff(s.T4 - s.T1)
}

// ServerDelay is the time the server spent between receiving and
// replying, T3-T2.
func (s Sample) ServerDelay() ntptime.Duration {
	return ntptime.Sub(s.T3, s.T2)
}

// RemoteTime is the midpoint of the server's receive/transmit stamps.
func (s Sample) RemoteTime() ntptime.Time {
	return ntptime.Mid(s.T2, s.T3)
}

// LocalTime maps the midpoint of the round trip, in host-counter space,
// to wall time via c.
func (s Sample) LocalTime(c clock.Clock) ntptime.Time {
	mid := s.T1 + clock.ClockIndex(s.RoundTrip()/2)
	return c.TimeAt(mid)
}

// Offset is the signed difference between the server's reported time and
// our own clock's estimate at the same instant.
func (s Sample) Offset(c clock.Clock) ntptime.Duration {
	return ntptime.Sub(s.RemoteTime(), s.LocalTime(c))
}
