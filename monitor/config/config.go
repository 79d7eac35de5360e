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
Package config reads and writes the line-oriented server/fudge config
file described in the external interface: a chrony/ntpd-style text format
where "server" lines name a peer (or a refclock pseudo-address) and
"fudge" lines attach tuning parameters to one by matching address.

The reader and writer are plain bufio/strings code, in the same register
as the teacher's own ntpq/chrony variable parsers (cmd/ntpcheck/checker).
*/
package config

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
)

// ServerPriority records the optional prefer/noselect keyword on a server
// line.
type ServerPriority int

// Server priority values.
const (
	PriorityNormal ServerPriority = iota
	PriorityPrefer
	PriorityNoSelect
)

// RefclockKind distinguishes the two refclock pseudo-address families the
// spec recognises.
type RefclockKind int

// Refclock kinds.
const (
	RefclockNone RefclockKind = iota
	RefclockNMEA
	RefclockSHM
)

// RefclockDriver describes a 127.127.x.y refclock pseudo-address.
type RefclockDriver struct {
	Kind RefclockKind
	Unit int
}

// ServerConfig is one parsed server entry plus any fudge line that
// targets the same host.
type ServerConfig struct {
	Host     string
	Priority ServerPriority
	Mode     int
	Driver   *RefclockDriver
	Fudge    map[string]string
}

// lineKind distinguishes the lines File keeps in order.
type lineKind int

const (
	lineOpaque lineKind = iota
	lineServer
)

type line struct {
	kind lineKind
	raw  string // only meaningful for lineOpaque
	host string // only meaningful for lineServer; keys into File.servers
}

// File is a parsed config file: enough to reproduce every non-server,
// non-fudge line byte for byte, plus the structured ServerConfig set.
type File struct {
	lines   []line
	servers map[string]*ServerConfig
	order   []string // host insertion order, for Servers()
}

// parseRefclockDriver recognises the two refclock address families: NMEA
// serial units at 127.127.20.N, and shared-memory segments at
// 127.127.28.{0..3}.
func parseRefclockDriver(host string) *RefclockDriver {
	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}
	ip4 := ip.To4()
	if ip4 == nil || ip4[0] != 127 || ip4[1] != 127 {
		return nil
	}
	switch ip4[2] {
	case 20:
		return &RefclockDriver{Kind: RefclockNMEA, Unit: int(ip4[3])}
	case 28:
		if ip4[3] <= 3 {
			return &RefclockDriver{Kind: RefclockSHM, Unit: int(ip4[3])}
		}
	}
	return nil
}

func parsePriority(fields []string) ServerPriority {
	for _, f := range fields {
		switch f {
		case "prefer":
			return PriorityPrefer
		case "noselect":
			return PriorityNoSelect
		}
	}
	return PriorityNormal
}

func parseMode(fields []string) int {
	for i, f := range fields {
		if f == "mode" && i+1 < len(fields) {
			if m, err := strconv.Atoi(fields[i+1]); err == nil {
				return m
			}
		}
	}
	return 0
}

// Parse reads a config file from r.
func Parse(r io.Reader) (*File, error) {
	f := &File{servers: make(map[string]*ServerConfig)}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			f.lines = append(f.lines, line{kind: lineOpaque, raw: raw})
			continue
		}
		fields := strings.Fields(trimmed)
		switch fields[0] {
		case "server":
			if len(fields) < 2 {
				return nil, fmt.Errorf("malformed server line: %q", raw)
			}
			host := fields[1]
			sc := &ServerConfig{
				Host:     host,
				Priority: parsePriority(fields[2:]),
				Mode:     parseMode(fields[2:]),
				Driver:   parseRefclockDriver(host),
				Fudge:    map[string]string{},
			}
			f.servers[host] = sc
			f.order = append(f.order, host)
			f.lines = append(f.lines, line{kind: lineServer, host: host})
		case "fudge":
			if len(fields) < 2 {
				return nil, fmt.Errorf("malformed fudge line: %q", raw)
			}
			host := fields[1]
			sc, ok := f.servers[host]
			if !ok {
				return nil, fmt.Errorf("fudge line for unconfigured host %q", host)
			}
			for i := 2; i+1 <= len(fields)-1; i += 2 {
				sc.Fudge[fields[i]] = fields[i+1]
			}
			if len(fields)%2 == 1 && len(fields) >= 3 {
				// odd remainder: a bare flag like "flag1" with no value
				// that the loop above didn't consume.
				sc.Fudge[fields[len(fields)-1]] = "1"
			}
			f.lines = append(f.lines, line{kind: lineServer, host: host})
		default:
			f.lines = append(f.lines, line{kind: lineOpaque, raw: raw})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// Servers returns every parsed server, in file order.
func (f *File) Servers() []ServerConfig {
	out := make([]ServerConfig, 0, len(f.order))
	for _, host := range f.order {
		out = append(out, *f.servers[host])
	}
	return out
}

// Write rewrites the file to w: server/fudge lines are re-serialised with
// the host column aligned to the widest hostname, every other line is
// copied verbatim in its original position.
func (f *File) Write(w io.Writer) error {
	width := 0
	for _, host := range f.order {
		if len(host) > width {
			width = len(host)
		}
	}

	bw := bufio.NewWriter(w)
	emitted := make(map[string]bool)
	for _, l := range f.lines {
		switch l.kind {
		case lineOpaque:
			if _, err := fmt.Fprintln(bw, l.raw); err != nil {
				return err
			}
		case lineServer:
			if emitted[l.host] {
				continue
			}
			sc := f.servers[l.host]
			if err := writeServerLine(bw, *sc, width); err != nil {
				return err
			}
			if len(sc.Fudge) > 0 {
				if err := writeFudgeLine(bw, *sc, width); err != nil {
					return err
				}
			}
			emitted[l.host] = true
		}
	}
	return bw.Flush()
}

func writeServerLine(w io.Writer, sc ServerConfig, width int) error {
	parts := []string{"server", padHost(sc.Host, width)}
	switch sc.Priority {
	case PriorityPrefer:
		parts = append(parts, "prefer")
	case PriorityNoSelect:
		parts = append(parts, "noselect")
	}
	if sc.Mode != 0 {
		parts = append(parts, "mode", strconv.Itoa(sc.Mode))
	}
	_, err := fmt.Fprintln(w, strings.Join(parts, " "))
	return err
}

func writeFudgeLine(w io.Writer, sc ServerConfig, width int) error {
	if len(sc.Fudge) == 0 {
		return nil
	}
	keys := make([]string, 0, len(sc.Fudge))
	for k := range sc.Fudge {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := []string{"fudge", padHost(sc.Host, width)}
	for _, k := range keys {
		parts = append(parts, k, sc.Fudge[k])
	}
	_, err := fmt.Fprintln(w, strings.Join(parts, " "))
	return err
}

func padHost(host string, width int) string {
	if len(host) >= width {
		return host
	}
	return host + strings.Repeat(" ", width-len(host))
}
