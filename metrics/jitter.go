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
	"time"

	"github.com/eclesh/welford"
)

// SchedulingJitter accumulates an online mean/variance of the wall-clock
// gap between successive calls to Tick, the same running-statistics
// idiom fbclock/daemon uses for its offset and frequency windows, applied
// here to scheduling spacing instead of clock samples. snapshot.Writer
// calls Tick once per snapshot it takes, so the gaps are the spacing of
// successive snapshots.
type SchedulingJitter struct {
	stats    *welford.Stats
	lastTick time.Time
}

// NewSchedulingJitter returns an empty accumulator.
func NewSchedulingJitter() *SchedulingJitter {
	return &SchedulingJitter{stats: welford.New()}
}

// Tick records one scheduling event at now. The first call only seeds the
// reference point and contributes no sample.
func (j *SchedulingJitter) Tick(now time.Time) {
	if !j.lastTick.IsZero() {
		gap := now.Sub(j.lastTick).Seconds()
		j.stats.Add(gap)
	}
	j.lastTick = now
}

// JitterSnapshot is the informational tick-spacing block folded into
// periodic snapshots.
type JitterSnapshot struct {
	Samples      int64   `json:"samples"`
	MeanSeconds  float64 `json:"mean_seconds"`
	StddevSeconds float64 `json:"stddev_seconds"`
}

// Snapshot reports the accumulator's current mean and standard deviation.
// Safe to call with zero samples; welford returns 0 for both in that case.
func (j *SchedulingJitter) Snapshot() JitterSnapshot {
	return JitterSnapshot{
		Samples:       j.stats.Count(),
		MeanSeconds:   j.stats.Mean(),
		StddevSeconds: j.stats.Stddev(),
	}
}
