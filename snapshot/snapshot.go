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

// Package snapshot periodically serializes the full simulated graph to a
// JSON document suitable for offline rendering (spec §6). A snapshot is
// only ever taken between node.Node.Drain calls, so it always corresponds
// to a single coherent event-loop boundary, never a mid-transition state.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/riftsim/rift/metrics"
	"github.com/riftsim/rift/node"
	"github.com/riftsim/rift/protocol"
)

// Neighbor is the optional neighbor block of an interface snapshot.
type Neighbor struct {
	SystemID protocol.SystemId `json:"system_id"`
	LinkID   protocol.LinkId   `json:"link_id"`
}

// Interface is one node interface's snapshot.
type Interface struct {
	Name     string    `json:"name"`
	LinkID   protocol.LinkId `json:"link_id"`
	LieState string    `json:"lie_state"`
	Neighbor *Neighbor `json:"neighbor,omitempty"`
}

// Node is one node's snapshot.
type Node struct {
	Name            string          `json:"name"`
	SystemID        protocol.SystemId `json:"system_id"`
	EffectiveLevel  *int8           `json:"effective_level"`
	ConfiguredLevel *int8           `json:"configured_level"`
	HAL             *int8           `json:"hal,omitempty"`
	HAT             *int8           `json:"hat,omitempty"`
	HALS            []protocol.SystemId `json:"hals,omitempty"`
	ZTPState        string          `json:"ztp_state"`
	Interfaces      []Interface     `json:"interfaces"`
}

// Runtime is the informational process/scheduling block folded into every
// document (spec.md is silent on this; SPEC_FULL.md §4.5 DOMAIN addition).
type Runtime struct {
	metrics.Snapshot
	Jitter metrics.JitterSnapshot `json:"jitter"`
}

// Document is the full JSON document written per snapshot.
type Document struct {
	Nodes   []Node  `json:"nodes"`
	Runtime Runtime `json:"runtime"`
}

// levelPtr converts a protocol.Level to a *int8, nil for Undefined, the
// same "absent means undefined" convention the topology YAML format uses.
func levelPtr(l protocol.Level) *int8 {
	if !l.Defined() {
		return nil
	}
	v := int8(l)
	return &v
}

// BuildDocument takes a consistent read of every node's FSM state. Callers
// must only call this between node.Node.Drain calls (spec.md §6).
func BuildDocument(nodes []*node.Node, sys *metrics.SysStats, jitter *metrics.SchedulingJitter) Document {
	doc := Document{Nodes: make([]Node, 0, len(nodes))}
	for _, n := range nodes {
		ztpConfigured := n.ZTP.ConfiguredLevel()
		nd := Node{
			Name:            n.Name,
			SystemID:        n.SystemID,
			EffectiveLevel:  levelPtr(n.ZTP.Level()),
			ConfiguredLevel: levelPtr(ztpConfigured),
			ZTPState:        n.ZTP.State().String(),
		}
		if hal := n.ZTP.HAL(); hal != nil {
			nd.HAL = levelPtr(*hal)
		}
		if hat := n.ZTP.HAT(); hat != nil {
			nd.HAT = levelPtr(*hat)
		}
		for sysID := range n.ZTP.HALS() {
			nd.HALS = append(nd.HALS, sysID)
		}
		for _, i := range n.Interfaces() {
			is := Interface{Name: i.Name, LinkID: i.LinkID, LieState: i.FSM.State().String()}
			if nb := i.FSM.Neighbor(); nb != nil {
				is.Neighbor = &Neighbor{SystemID: nb.SystemID, LinkID: nb.LinkID}
			}
			nd.Interfaces = append(nd.Interfaces, is)
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	if sys != nil {
		doc.Runtime.Snapshot = sys.Sample()
	}
	if jitter != nil {
		doc.Runtime.Jitter = jitter.Snapshot()
	}
	return doc
}

// Writer periodically takes and writes a snapshot document to logs/ under
// dir, until MaxSnapshots are written (0 = unbounded).
type Writer struct {
	Dir          string
	MaxSnapshots int

	sys    *metrics.SysStats
	jitter *metrics.SchedulingJitter

	written int
	log     *log.Entry
}

// NewWriter constructs a Writer rooted at dir/logs.
func NewWriter(dir string, maxSnapshots int, sys *metrics.SysStats, jitter *metrics.SchedulingJitter) *Writer {
	return &Writer{
		Dir:          filepath.Join(dir, "logs"),
		MaxSnapshots: maxSnapshots,
		sys:          sys,
		jitter:       jitter,
		log:          log.WithField("component", "snapshot"),
	}
}

// Done reports whether MaxSnapshots have already been written (always
// false when MaxSnapshots is 0).
func (w *Writer) Done() bool {
	return w.MaxSnapshots > 0 && w.written >= w.MaxSnapshots
}

// Write takes a snapshot of nodes and writes it to logs/<timestamp>.json.
// Write errors are logged and the snapshot is skipped, never fatal
// (spec §7).
func (w *Writer) Write(now time.Time, nodes []*node.Node) {
	if w.jitter != nil {
		w.jitter.Tick(now)
	}
	doc := BuildDocument(nodes, w.sys, w.jitter)

	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		w.log.Errorf("failed to create snapshot directory %s: %v", w.Dir, err)
		return
	}
	name := fmt.Sprintf("%d.json", now.UnixNano())
	path := filepath.Join(w.Dir, name)

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		w.log.Errorf("failed to marshal snapshot: %v", err)
		return
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		w.log.Errorf("failed to write snapshot %s: %v", path, err)
		return
	}
	w.written++
	w.log.Debugf("wrote snapshot %s", path)
}
