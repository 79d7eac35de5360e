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
Package server holds the per-target state the pacer loop owns exclusively:
a resolved address, its own disciplined Clock, a bounded sample ring, and
the min-roundtrip/base-error estimates 4.C derives from that ring. The
receive side of the transport loop never touches this package directly -
it only ever reaches a Server through the pacer's Update call.
*/
package server

import (
	"math"
	"net"
	"sort"

	"github.com/eclesh/welford"

	"github.com/ntpmonitor/ntpmonitor/clock"
	"github.com/ntpmonitor/ntpmonitor/monitor/discipline"
	"github.com/ntpmonitor/ntpmonitor/monitor/sample"
	"github.com/ntpmonitor/ntpmonitor/ntptime"
)

// Server is one monitored NTP peer (or the reference host).
type Server struct {
	Host string
	Addr *net.UDPAddr

	Clock clock.Clock

	ring *ring

	MinRoundtrip clock.ClockDiff
	BaseError    clock.ClockDiff

	Stratum     uint8
	ReferenceID uint32
}

// New creates a Server bound to addr with a fresh copy of the reference
// Clock model.
func New(host string, addr *net.UDPAddr, c clock.Clock) *Server {
	return &Server{
		Host:  host,
		Addr:  addr,
		Clock: c,
		ring:  newRing(),
	}
}

// SampleCount reports how many samples are currently in the window.
func (s *Server) SampleCount() int {
	return s.ring.len()
}

// LatestOffset reports the most recent sample's offset against this
// server's disciplined Clock, and whether any sample has arrived yet.
func (s *Server) LatestOffset() (ntptime.Duration, bool) {
	all := s.ring.all()
	if len(all) == 0 {
		return 0, false
	}
	return all[0].Offset(s.Clock), true
}

// Update is 4.C: prepend the new sample, recompute minRoundtrip and
// baseError from the lower half of the roundtrip distribution, then run
// Discipline to produce a corrected Clock.
func (s *Server) Update(smp sample.Sample, refID uint32, stratum uint8) {
	s.ring.push(smp)
	s.Stratum = stratum
	s.ReferenceID = refID

	all := s.ring.all()
	s.MinRoundtrip, s.BaseError = lowerHalfStats(all)
	s.Clock = discipline.Discipline(s.Clock, all, s.MinRoundtrip, s.BaseError)
}

// lowerHalfStats partial-sorts the ring's roundtrip values and derives
// minRoundtrip/baseError from the lower (less congested) half, which
// makes both estimators resistant to congestion spikes.
func lowerHalfStats(ring []sample.Sample) (minRoundtrip, baseError clock.ClockDiff) {
	if len(ring) <= 1 {
		if len(ring) == 1 {
			return ring[0].RoundTrip(), 0
		}
		return 0, 0
	}

	roundtrips := make([]int64, len(ring))
	for i, s := range ring {
		roundtrips[i] = int64(s.RoundTrip())
	}
	sort.Slice(roundtrips, func(i, j int) bool { return roundtrips[i] < roundtrips[j] })
	lowerHalf := roundtrips[:len(roundtrips)/2+len(roundtrips)%2]

	w := welford.New()
	min := lowerHalf[0]
	for _, v := range lowerHalf {
		w.Add(float64(v))
		if v < min {
			min = v
		}
	}
	stddev := w.Stddev()
	if math.IsNaN(stddev) {
		stddev = 0
	}
	return clock.ClockDiff(min), clock.ClockDiff(math.Round(3 * stddev))
}
