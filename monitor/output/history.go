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
	"encoding/json"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultHistoryLimit is 10 minutes of history at the engine's 1Hz
// pacing rate.
const DefaultHistoryLimit = 600

// HistoryPoint is one server's offset at one pacing tick.
type HistoryPoint struct {
	Time          string  `json:"time"`
	OffsetSeconds float64 `json:"offset_seconds"`
}

// HistoryServer is the JSON/HTTP adapter of 4.G/4.L: a bounded in-memory
// history per server, served from a mutex-guarded map exactly the way
// fbclock/daemon's JSONStats guards its counters map - the only state
// shared with the HTTP goroutine is this map, never the sample rings.
type HistoryServer struct {
	mu      sync.Mutex
	history map[string][]HistoryPoint
	limit   int
	ready   bool
}

// NewHistoryServer builds a history server bounding each server's window
// to limit points.
func NewHistoryServer(limit int) *HistoryServer {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &HistoryServer{history: make(map[string][]HistoryPoint), limit: limit}
}

// Record appends one point to host's history, evicting the oldest point
// once the window is full.
func (h *HistoryServer) Record(host string, t time.Time, offsetSeconds float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	points := h.history[host]
	points = append(points, HistoryPoint{
		Time:          t.UTC().Format(time.RFC3339Nano),
		OffsetSeconds: offsetSeconds,
	})
	if len(points) > h.limit {
		points = points[len(points)-h.limit:]
	}
	h.history[host] = points
	h.ready = true
}

// snapshot returns a defensive copy of the current history map.
func (h *HistoryServer) snapshot() map[string][]HistoryPoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string][]HistoryPoint, len(h.history))
	for host, points := range h.history {
		cp := make([]HistoryPoint, len(points))
		copy(cp, points)
		out[host] = cp
	}
	return out
}

func (h *HistoryServer) isReady() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

// Handler serves GET / with {"<host>": [{time, offset_seconds}, ...]}.
func (h *HistoryServer) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		js, err := json.Marshal(h.snapshot())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(js); err != nil {
			log.Errorf("failed to reply with history: %v", err)
		}
	}
}

// HealthzHandler serves GET /healthz, returning 200 once the first full
// pacing tick has recorded at least one point.
func (h *HistoryServer) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !h.isReady() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
