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

// Package protocol implements the RIFT LIE packet wire format: the binary
// encoding of the per-link hello/keepalive packet and its optional
// authentication envelope.
package protocol

import "fmt"

// SystemId identifies a node, globally unique within the simulated fabric.
type SystemId uint64

// String renders a SystemId the way node names are usually logged.
func (s SystemId) String() string {
	return fmt.Sprintf("0x%016x", uint64(s))
}

// LinkId identifies an interface, unique within a node.
type LinkId uint32

// Level is a RIFT hierarchy level. LevelUndefined orders below every
// numeric level for "lower than HAT" comparisons.
type Level int8

// Named levels, see Table in spec §3.
const (
	LevelUndefined   Level = -1
	LevelLeaf        Level = 0
	LevelTopOfFabric Level = 24
	levelMax         Level = 24
)

// Defined reports whether the level is a concrete (non-Undefined) level.
func (l Level) Defined() bool {
	return l != LevelUndefined
}

// String renders a Level using the same aliases the topology file accepts.
func (l Level) String() string {
	switch l {
	case LevelUndefined:
		return "undefined"
	case LevelLeaf:
		return "leaf"
	case LevelTopOfFabric:
		return "top-of-fabric"
	default:
		return fmt.Sprintf("%d", int8(l))
	}
}

// ParseLevel parses the level spellings the topology YAML accepts: an
// integer in [0,24], "leaf", "top-of-fabric", "undefined", or "" (meaning
// undefined).
func ParseLevel(s string) (Level, error) {
	switch s {
	case "", "undefined":
		return LevelUndefined, nil
	case "leaf":
		return LevelLeaf, nil
	case "top-of-fabric":
		return LevelTopOfFabric, nil
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return LevelUndefined, fmt.Errorf("invalid level %q: %w", s, err)
	}
	if n < 0 || Level(n) > levelMax {
		return LevelUndefined, fmt.Errorf("level %q out of range [0,%d]", s, levelMax)
	}
	return Level(n), nil
}

// NeighborReference is the (system id, link id) pair a LIE reflects back
// to the interface it believes it is talking to.
type NeighborReference struct {
	SystemID SystemId
	LinkID   LinkId
}
