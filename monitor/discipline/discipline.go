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
Package discipline implements the online outlier-resistant regression
that turns a server's sample ring into a corrected Clock. It is a pure
function with no hidden state so it can be tested directly against fixed
rings, the way the teacher repo keeps its PI servo math (see servo) free
of the event loop that drives it.
*/
package discipline

import (
	"math"

	"github.com/ntpmonitor/ntpmonitor/clock"
	"github.com/ntpmonitor/ntpmonitor/monitor/sample"
	"github.com/ntpmonitor/ntpmonitor/ntptime"
)

// Tuning parameters from the spec: phase tracks jitter over a short
// window, frequency is estimated over a much longer one so quantisation
// noise averages out and thermal drift dominates.
const (
	PhaseSamples = 25
	FreqSamples  = 500
	// drift is the assumed upper bound, in seconds of offset error per
	// second of sample age, on uncompensated frequency error (0.1 ppm).
	drift = 1e-7
)

type weighted struct {
	time   float64
	offset float64
	weight float64
}

// Discipline computes a new Clock from c and the server's sample ring
// (newest first). minRoundtrip and baseError are the estimates 4.C
// maintains from the ring's lower-half roundtrip distribution. With fewer
// than two samples there isn't enough data to correct anything, so c is
// returned unchanged.
func Discipline(c clock.Clock, ring []sample.Sample, minRoundtrip, baseError clock.ClockDiff) clock.Clock {
	if len(ring) < 2 {
		return c
	}

	// Step 1 - re-anchor at the oldest sample's send time, keeping the
	// model's numeric pivot close to the data it's about to be fit to.
	oldest := ring[len(ring)-1]
	c = c.AdjustOrigin(oldest.T1)

	newest := ring[0]
	baseErrorSeconds := c.DiffSeconds(baseError)

	samples := make([]weighted, len(ring))
	for i, s := range ring {
		initialError := c.DiffSeconds(s.RoundTrip() - minRoundtrip)
		age := c.DiffSeconds(clock.ClockDiff(newest.T4 - s.T4))
		currentError := initialError + drift*age

		quality := 1.0
		if baseErrorSeconds != 0 {
			x := currentError / baseErrorSeconds
			quality = math.Exp(-(x * x))
		}

		samples[i] = weighted{
			time:   c.DiffSeconds(clock.ClockDiff(s.T4 - oldest.T1)),
			offset: ntptime.ToSeconds(s.Offset(c)),
			weight: quality,
		}
	}

	phase := weightedMean(samples[:min(PhaseSamples, len(samples))])
	freq := frequency(samples[:min(FreqSamples, len(samples))])

	// Step 5 - apply frequency before phase, so the phase correction is
	// measured against the already-tightened rate. NaN corrections are
	// skipped individually, not as a pair.
	if !math.IsNaN(freq) {
		c = c.AdjustFrequency(freq)
	}
	if !math.IsNaN(phase) {
		c = c.AdjustOffset(ntptime.FromSeconds(phase))
	}
	return c
}

// weightedMean returns the quality-weighted mean offset, or NaN if the
// weights sum to zero or are non-finite.
func weightedMean(w []weighted) float64 {
	var sumW, sumWO float64
	for _, s := range w {
		sumW += s.weight
		sumWO += s.weight * s.offset
	}
	if sumW == 0 || math.IsNaN(sumW) || math.IsInf(sumW, 0) {
		return math.NaN()
	}
	return sumWO / sumW
}

// frequency performs the weighted linear regression of 4.E step 4: time
// is the independent variable, offset the dependent one. The formulas
// mix a weighted mean for offset with unweighted dispersion statistics,
// matching the spec exactly rather than a textbook weighted-least-squares
// derivation.
func frequency(w []weighted) float64 {
	n := float64(len(w))
	if n == 0 {
		return math.NaN()
	}

	var sumT float64
	for _, s := range w {
		sumT += s.time
	}
	mx := sumT / n
	my := weightedMean(w)
	if math.IsNaN(my) {
		return math.NaN()
	}

	var sumSqT, sumSqO, cov float64
	for _, s := range w {
		dt := s.time - mx
		do := s.offset - my
		sumSqT += dt * dt
		sumSqO += do * do
		cov += dt * do
	}
	if len(w) < 2 {
		return math.NaN()
	}
	variance := sumSqT / (n - 1)
	sx := math.Sqrt(variance)
	sy := math.Sqrt(sumSqO / n)
	c := cov / (n - 1)

	if sx == 0 || sy == 0 || math.IsNaN(sx) || math.IsNaN(sy) {
		return math.NaN()
	}
	r := c / (sx * sy)
	return r * sy / sx
}
