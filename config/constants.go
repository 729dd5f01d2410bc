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

// Package config loads an optional INI file of protocol constant
// overrides (spec.md is silent on tuning; SPEC_FULL.md §6 DOMAIN
// addition), the way calnex/config reads its device settings with
// go-ini/ini, for lab tuning across simulation runs without touching the
// topology file.
package config

import (
	"time"

	"github.com/go-ini/ini"

	"github.com/riftsim/rift/fsm/lie"
	"github.com/riftsim/rift/fsm/ztp"
)

// Constants holds every tunable protocol constant a "[constants]" INI
// section may override. Zero fields keep the FSM package defaults.
type Constants struct {
	DefaultLieHoldtimeSeconds              int
	MultipleNeighborsLieHoldtimeMultiplier int
	ZTPHolddownSeconds                     int
}

// Load reads path as an INI file and parses its "constants" section.
// A missing section is not an error; every field is left at its zero
// value, meaning "use the FSM package default".
func Load(path string) (*Constants, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	c := &Constants{}
	if !f.HasSection("constants") {
		return c, nil
	}
	s := f.Section("constants")
	c.DefaultLieHoldtimeSeconds = s.Key("default_lie_holdtime").MustInt(0)
	c.MultipleNeighborsLieHoldtimeMultiplier = s.Key("multiple_neighbors_lie_holdtime_multiplier").MustInt(0)
	c.ZTPHolddownSeconds = s.Key("ztp_holddown_seconds").MustInt(0)
	return c, nil
}

// ApplyLIE overrides f's tunable fields with any non-zero constants.
func (c *Constants) ApplyLIE(f *lie.FSM) {
	if c == nil {
		return
	}
	if c.DefaultLieHoldtimeSeconds > 0 {
		f.Holdtime = uint16(c.DefaultLieHoldtimeSeconds)
	}
	if c.MultipleNeighborsLieHoldtimeMultiplier > 0 {
		f.MultipleNeighborsLieHoldtimeMultiplier = c.MultipleNeighborsLieHoldtimeMultiplier
	}
}

// ApplyZTP overrides f's holddown duration with the constants override.
func (c *Constants) ApplyZTP(f *ztp.FSM) {
	if c == nil || c.ZTPHolddownSeconds <= 0 {
		return
	}
	f.HolddownDuration = time.Duration(c.ZTPHolddownSeconds) * time.Second
}
