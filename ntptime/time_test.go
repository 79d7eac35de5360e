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

package ntptime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddSubRoundTrip(t *testing.T) {
	t1 := NewTime(3794136399, 2712253714)
	t2 := Add(t1, Duration(123456789))
	require.Equal(t, t1, Add(t2, Sub(t1, t2)))
	require.Equal(t, t2, Add(t1, Sub(t2, t1)))
}

func TestMidIsHalfDifference(t *testing.T) {
	t1 := NewTime(1000, 0)
	t2 := NewTime(1010, 0)
	got := Mid(t1, t2)
	require.Equal(t, Sub(t2, t1)/2, Sub(got, t1))
}

func TestUnixRoundTrip(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 500000000, time.UTC)
	nt := FromUnix(now)
	back := nt.Unix()
	require.WithinDuration(t, now, back, time.Millisecond)
}

func TestSecondsFractionAccessors(t *testing.T) {
	nt := NewTime(42, 7)
	require.Equal(t, uint32(42), nt.Seconds())
	require.Equal(t, uint32(7), nt.Fraction())
}

func TestToFromSeconds(t *testing.T) {
	d := FromSeconds(1.5)
	require.InDelta(t, 1.5, ToSeconds(d), 1e-9)
	require.InDelta(t, 1500, ToMillis(d), 1e-6)
}
