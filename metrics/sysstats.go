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

package metrics

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// SysStats samples this process's own CPU/memory usage for the
// informational "runtime" block folded into every snapshot (spec §4.5 /
// SPEC_FULL.md §4.5), mirroring sptp/client/sysstats.go's CollectRuntimeStats.
type SysStats struct {
	proc      *process.Process
	startedAt time.Time
}

// NewSysStats opens a handle on the current process.
func NewSysStats() (*SysStats, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &SysStats{proc: p, startedAt: time.Now()}, nil
}

// Snapshot is the informational runtime stats block.
type Snapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	RSSBytes      uint64  `json:"rss_bytes"`
	NumGoroutine  int     `json:"num_goroutines"`
}

// Sample collects a point-in-time runtime snapshot. Errors from
// individual gopsutil calls are tolerated (best-effort fields are left
// zero) since this data is informational only.
func (s *SysStats) Sample() Snapshot {
	snap := Snapshot{
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		NumGoroutine:  runtime.NumGoroutine(),
	}
	if cpu, err := s.proc.Percent(0); err == nil {
		snap.CPUPercent = cpu
	}
	if mem, err := s.proc.MemoryInfo(); err == nil && mem != nil {
		snap.RSSBytes = mem.RSS
	}
	return snap
}
