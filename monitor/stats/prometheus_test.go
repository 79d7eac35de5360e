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

package stats

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExporterServesRegisteredMetrics(t *testing.T) {
	e := NewExporter()
	e.SampleAccepted("s1.example.com")
	e.DecodeError()
	e.UnmatchedReply()
	e.Observe("s1.example.com", 0.0012, -1.5)
	e.SetCounterFrequencyMHz(3200.5)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	e.Handler().ServeHTTP(rr, req)

	require.Equal(t, 200, rr.Code)
	body := rr.Body.String()
	require.True(t, strings.Contains(body, "ntpmonitor_samples_total"))
	require.True(t, strings.Contains(body, "ntpmonitor_decode_errors_total"))
	require.True(t, strings.Contains(body, "ntpmonitor_offset_seconds"))
	require.True(t, strings.Contains(body, "ntpmonitor_counter_frequency_mhz"))
}

func TestCollectSysStats(t *testing.T) {
	s, err := Collect()
	require.NoError(t, err)
	require.GreaterOrEqual(t, s.NumThreads, int32(0))
}

func TestObserveSysStatsExposesProcessGauges(t *testing.T) {
	e := NewExporter()
	e.ObserveSysStats(SysStats{RSS: 1024, VMS: 2048, NumFDs: 7, NumThreads: 3, CPUPercent: 12.5})

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	e.Handler().ServeHTTP(rr, req)

	body := rr.Body.String()
	require.True(t, strings.Contains(body, "ntpmonitor_process_resident_memory_bytes 1024"))
	require.True(t, strings.Contains(body, "ntpmonitor_process_threads 3"))
}
