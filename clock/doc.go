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
Package clock maintains, per monitored server, an affine model mapping
readings of the host's monotonic hardware counter to wall time.

A Clock holds a reference point (time0, index0) and a frequency estimate
(ticks per second). Correcting the model is split into three orthogonal
operations: AdjustOrigin moves the pivot forward in counter-space without
changing the map it represents, AdjustOffset shifts the wall-time estimate
by a duration, and AdjustFrequency rescales the tick rate. Each operation
leaves the invariants of the other two intact, which is what lets the
discipline package apply them independently, in a fixed order, every
sampling tick.
*/
package clock
