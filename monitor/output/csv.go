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

package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVWriter renders a stream of Snapshots as the two-header-row format
// described in the external interface: names row, units row, then one
// data row per tick, flushed immediately so `tail -f` works against the
// output file - the same per-row-flush discipline as calnex/export's
// per-line JSON writer, just applied to encoding/csv instead.
type CSVWriter struct {
	w           *csv.Writer
	refHost     string
	serverHosts []string
}

// NewCSVWriter builds a writer for refHost (the reference) and
// serverHosts (every other configured server, in report order).
func NewCSVWriter(out io.Writer, refHost string, serverHosts []string) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(out), refHost: refHost, serverHosts: serverHosts}
}

// WriteHeader writes the names row followed by the units row.
func (c *CSVWriter) WriteHeader() error {
	names := make([]string, 0, 2+len(c.serverHosts)+1)
	names = append(names, fmt.Sprintf("%s - Unix Time", c.refHost), fmt.Sprintf("%s - UTC Time", c.refHost))
	for _, h := range c.serverHosts {
		names = append(names, fmt.Sprintf("%s - Offset", h))
	}
	names = append(names, "Counter Frequency")

	units := make([]string, 0, len(names))
	units = append(units, "Seconds Since 1970", "UTC Time")
	for range c.serverHosts {
		units = append(units, "Milliseconds")
	}
	units = append(units, "MHz")

	if err := c.w.Write(names); err != nil {
		return err
	}
	if err := c.w.Write(units); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

// WriteRow writes one data row and flushes immediately.
func (c *CSVWriter) WriteRow(snap Snapshot) error {
	row := make([]string, 0, 2+len(snap.Offsets)+1)
	row = append(row,
		fmt.Sprintf("%.6f", float64(snap.RefTime.UnixNano())/1e9),
		snap.RefTime.Format("2006-01-02T15:04:05.000000000Z07:00"),
	)
	for _, o := range snap.Offsets {
		if !o.OK {
			row = append(row, "Unknown")
			continue
		}
		row = append(row, trimFloat(o.OffsetMillis))
	}
	row = append(row, fmt.Sprintf("%.6f", snap.CounterMHz))

	if err := c.w.Write(row); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

// trimFloat renders a float with up to 4 decimal digits and no trailing
// zeros, matching the "12.3456" style of the spec's worked example.
func trimFloat(f float64) string {
	s := fmt.Sprintf("%.4f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
