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
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

var procStartTime = time.Now()

// SysStats reports the monitor process's own resource usage, the same
// fields the teacher's sysstats.go gathers for its own daemon.
type SysStats struct {
	UptimeSeconds uint64
	CPUPercent    float64
	RSS           uint64
	VMS           uint64
	NumFDs        int32
	NumThreads    int32
}

// Collect gathers the current process's resource usage. Fields whose
// underlying syscall fails are left zero rather than aborting the
// whole collection.
func Collect() (SysStats, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return SysStats{}, err
	}
	s := SysStats{UptimeSeconds: uint64(time.Since(procStartTime).Seconds())}
	if v, err := proc.Percent(0); err == nil {
		s.CPUPercent = v
	}
	if v, err := proc.MemoryInfo(); err == nil {
		s.RSS = v.RSS
		s.VMS = v.VMS
	}
	if v, err := proc.NumFDs(); err == nil {
		s.NumFDs = v
	}
	if v, err := proc.NumThreads(); err == nil {
		s.NumThreads = v
	}
	return s, nil
}
