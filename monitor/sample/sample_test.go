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

package sample

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ntpmonitor/ntpmonitor/clock"
	"github.com/ntpmonitor/ntpmonitor/ntptime"
)

// S1 - Midpoint scenario from the spec: t1=100, t4=200, t2=150s NTP,
// t3=160s NTP against an identity clock. roundtrip=100, remoteTime=155s,
// localTime=150s, offset=+5s.
func TestMidpointScenario(t *testing.T) {
	s := Sample{
		T1: clock.ClockIndex(100),
		T2: ntptime.NewTime(150, 0),
		T3: ntptime.NewTime(160, 0),
		T4: clock.ClockIndex(200),
	}
	identity := clock.New(ntptime.NewTime(0, 0), 0, 1)

	require.Equal(t, clock.ClockDiff(100), s.RoundTrip())
	require.Equal(t, ntptime.NewTime(155, 0), s.RemoteTime())
	require.Equal(t, ntptime.NewTime(150, 0), s.LocalTime(identity))
	offset := s.Offset(identity)
	require.InDelta(t, 5.0, ntptime.ToSeconds(offset), 1e-9)
}

func TestRoundTripNonNegative(t *testing.T) {
	s := Sample{T1: clock.ClockIndex(1000), T4: clock.ClockIndex(1050)}
	require.True(t, s.RoundTrip() >= 0)
}

func TestServerDelay(t *testing.T) {
	s := Sample{T2: ntptime.NewTime(100, 0), T3: ntptime.NewTime(101, 0)}
	require.InDelta(t, 1.0, ntptime.ToSeconds(s.ServerDelay()), 1e-9)
}
