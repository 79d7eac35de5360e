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
Package output implements the two external-consumer-facing adapters the
engine is allowed to use: a CSV row stream and a bounded JSON/HTTP history
window (4.G). Neither is part of the core; both are built the way the
teacher builds its own CSV and HTTP-stats adapters (calnex/export,
fbclock/daemon/json_stats).
*/
package output

import "time"

// ServerOffset is one server's reportable state for a single pacing tick.
type ServerOffset struct {
	Host         string
	OffsetMillis float64
	OK           bool // false until the server has produced its first sample; not reset on ticks without a new sample
}

// Snapshot is one pacing tick's reportable state: the reference server's
// wall time, every server's offset, and the local counter's frequency.
type Snapshot struct {
	RefTime    time.Time
	Offsets    []ServerOffset
	CounterMHz float64
}
