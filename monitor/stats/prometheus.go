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
Package stats exports the engine's counters and gauges through a
Prometheus registry, the same pattern as the teacher's sptp stats
exporter: one *prometheus.Registry built at startup, handed to
promhttp.HandlerFor. Every collector, including the per-server vectors,
is registered once in NewExporter; per-server series are created on
first use through WithLabelValues.
*/
package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter holds every metric the monitor reports and the registry
// that serves them.
type Exporter struct {
	registry *prometheus.Registry

	samplesTotal     *prometheus.CounterVec
	decodeErrors     prometheus.Counter
	unmatchedReplies prometheus.Counter
	offsetSeconds    *prometheus.GaugeVec
	frequencyPPM     *prometheus.GaugeVec
	counterFreqMHz   prometheus.Gauge

	processRSS        prometheus.Gauge
	processVMS        prometheus.Gauge
	processNumFDs     prometheus.Gauge
	processNumThreads prometheus.Gauge
	processCPUPercent prometheus.Gauge
}

// NewExporter builds and registers the full metric set.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		samplesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ntpmonitor_samples_total",
			Help: "Samples accepted into a server's ring, by server.",
		}, []string{"server"}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ntpmonitor_decode_errors_total",
			Help: "Datagrams dropped for failing to decode as a valid NTP reply.",
		}),
		unmatchedReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ntpmonitor_unmatched_datagrams_total",
			Help: "Datagrams received from a source address matching no configured server.",
		}),
		offsetSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ntpmonitor_offset_seconds",
			Help: "Most recent clock offset of a server against the local counter clock.",
		}, []string{"server"}),
		frequencyPPM: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ntpmonitor_frequency_ppm",
			Help: "Frequency of a server's disciplined clock model relative to the local counter clock's calibrated rate, in parts per million.",
		}, []string{"server"}),
		counterFreqMHz: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ntpmonitor_counter_frequency_mhz",
			Help: "Effective rate of the local monotonic counter clock.",
		}),
		processRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ntpmonitor_process_resident_memory_bytes",
			Help: "Resident set size of the monitor process itself.",
		}),
		processVMS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ntpmonitor_process_virtual_memory_bytes",
			Help: "Virtual memory size of the monitor process itself.",
		}),
		processNumFDs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ntpmonitor_process_open_fds",
			Help: "Open file descriptors held by the monitor process.",
		}),
		processNumThreads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ntpmonitor_process_threads",
			Help: "OS threads in use by the monitor process.",
		}),
		processCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ntpmonitor_process_cpu_percent",
			Help: "CPU percentage consumed by the monitor process, as reported by gopsutil.",
		}),
	}
	e.registry.MustRegister(
		e.samplesTotal,
		e.decodeErrors,
		e.unmatchedReplies,
		e.offsetSeconds,
		e.frequencyPPM,
		e.counterFreqMHz,
		e.processRSS,
		e.processVMS,
		e.processNumFDs,
		e.processNumThreads,
		e.processCPUPercent,
	)
	return e
}

// ObserveSysStats records the monitor process's own resource usage, as
// gathered by Collect, the same self-reporting the teacher's sysstats
// feeds into its own stats server.
func (e *Exporter) ObserveSysStats(s SysStats) {
	e.processRSS.Set(float64(s.RSS))
	e.processVMS.Set(float64(s.VMS))
	e.processNumFDs.Set(float64(s.NumFDs))
	e.processNumThreads.Set(float64(s.NumThreads))
	e.processCPUPercent.Set(s.CPUPercent)
}

// SampleAccepted records one accepted sample for host.
func (e *Exporter) SampleAccepted(host string) {
	e.samplesTotal.WithLabelValues(host).Inc()
}

// DecodeError records one packet that failed to decode.
func (e *Exporter) DecodeError() {
	e.decodeErrors.Inc()
}

// UnmatchedReply records one datagram from an unconfigured source.
func (e *Exporter) UnmatchedReply() {
	e.unmatchedReplies.Inc()
}

// Observe records the current offset and frequency correction for host.
func (e *Exporter) Observe(host string, offsetSeconds, frequencyPPM float64) {
	e.offsetSeconds.WithLabelValues(host).Set(offsetSeconds)
	e.frequencyPPM.WithLabelValues(host).Set(frequencyPPM)
}

// SetCounterFrequencyMHz records the local counter clock's current rate.
func (e *Exporter) SetCounterFrequencyMHz(mhz float64) {
	e.counterFreqMHz.Set(mhz)
}

// Handler serves /metrics in OpenMetrics-capable Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
