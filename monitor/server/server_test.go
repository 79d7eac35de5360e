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

package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ntpmonitor/ntpmonitor/clock"
	"github.com/ntpmonitor/ntpmonitor/monitor/sample"
	"github.com/ntpmonitor/ntpmonitor/ntptime"
)

func sampleWithRoundtrip(t1, t4 int64) sample.Sample {
	return sample.Sample{
		T1: clock.ClockIndex(t1),
		T2: ntptime.NewTime(uint32(t1), 0),
		T3: ntptime.NewTime(uint32(t1), 0),
		T4: clock.ClockIndex(t4),
	}
}

func TestRingPushOrderAndCapacity(t *testing.T) {
	r := newRing()
	for i := 0; i < MaxSamples+10; i++ {
		r.push(sampleWithRoundtrip(int64(i), int64(i)+1))
	}
	require.Equal(t, MaxSamples, r.len())
	// newest first: the last pushed sample must be at index 0.
	require.Equal(t, clock.ClockIndex(MaxSamples+9), r.all()[0].T1)
}

// Invariant 8 - minRoundtrip is monotonically non-increasing while no
// eviction happens, and recomputes from the surviving half on eviction.
func TestMinRoundtripMonotonicWithoutEviction(t *testing.T) {
	c := clock.New(ntptime.NewTime(0, 0), 0, 1)
	s := New("ref", nil, c)

	s.Update(sampleWithRoundtrip(0, 100), 0, 1)
	first := s.MinRoundtrip

	s.Update(sampleWithRoundtrip(200, 250), 0, 1)
	second := s.MinRoundtrip
	require.LessOrEqual(t, int64(second), int64(first))
}

func TestUpdateAdvancesSampleCount(t *testing.T) {
	c := clock.New(ntptime.NewTime(0, 0), 0, 1)
	s := New("ref", nil, c)
	require.Equal(t, 0, s.SampleCount())
	s.Update(sampleWithRoundtrip(0, 100), 0, 1)
	require.Equal(t, 1, s.SampleCount())
}
