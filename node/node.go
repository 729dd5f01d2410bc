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

// Package node implements the per-node runtime: one ZTP FSM and one LIE
// FSM per configured interface, wired together and driven by a single
// cooperative, deterministic round-robin event loop.
package node

import (
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/riftsim/rift/fsm/lie"
	"github.com/riftsim/rift/fsm/ztp"
	"github.com/riftsim/rift/metrics"
	"github.com/riftsim/rift/protocol"
	"github.com/riftsim/rift/timer"
)

// Interface is a configured LIE FSM plus whatever the transport needs to
// send on it; Node only ever touches the FSM.
type Interface struct {
	LinkID protocol.LinkId
	Name   string
	FSM    *lie.FSM
}

// Node owns one ZTP FSM and N LIE FSMs, one per configured interface, and
// routes events between them per spec §4.3/§5: cross-FSM notifications are
// always enqueued onto the target's tail, never delivered synchronously.
type Node struct {
	Name     string
	SystemID protocol.SystemId

	ZTP        *ztp.FSM
	interfaces map[protocol.LinkId]*Interface
	linkOrder  []protocol.LinkId

	lastPublished *ztp.Published

	clock timer.Clock
	log   *log.Entry
}

// New creates a node with an empty interface set. Interfaces are added
// with AddInterface once the topology loader has resolved them.
func New(name string, systemID protocol.SystemId, configuredLevel protocol.Level, leafFlags ztp.LeafFlags, clock timer.Clock) *Node {
	n := &Node{
		Name:       name,
		SystemID:   systemID,
		interfaces: map[protocol.LinkId]*Interface{},
		clock:      clock,
		log:        log.WithField("node", name),
	}
	n.ZTP = ztp.New(systemID, configuredLevel, leafFlags, clock)
	n.ZTP.Publish = n.publish
	n.ZTP.HasSouthboundAdjacency = n.hasSouthboundAdjacency
	n.ZTP.OnTransition = func(next ztp.State, level protocol.Level) {
		metrics.ZTPTransitionsTotal.WithLabelValues(name, next.String()).Inc()
		if level.Defined() {
			metrics.NodeLevel.WithLabelValues(name).Set(float64(level))
		}
	}
	return n
}

// AddInterface creates and wires a LIE FSM for a new interface. send is
// the transport callback invoked by SEND_LIE; it may be nil until the
// interface I/O layer attaches itself.
func (n *Node) AddInterface(name string, linkID protocol.LinkId, send func(*protocol.LIEPacket)) *Interface {
	f := lie.New(n.SystemID, linkID, n.clock)
	f.Send = send
	f.PostOffer = func(o ztp.NeighborOffer) {
		n.ZTP.Push(ztp.NeighborOfferEvent{Offer: o})
	}
	f.OnDemotion = func(reason string) {
		metrics.FSMDemotionsTotal.WithLabelValues(reason).Inc()
	}

	iface := &Interface{LinkID: linkID, Name: name, FSM: f}
	n.interfaces[linkID] = iface
	n.linkOrder = append(n.linkOrder, linkID)
	sort.Slice(n.linkOrder, func(i, j int) bool { return n.linkOrder[i] < n.linkOrder[j] })

	// A late-added interface has never received the node's current
	// published tuple; give it the full tuple once, unconditionally,
	// since there is no prior value on this FSM to diff against.
	if n.lastPublished != nil {
		p := *n.lastPublished
		f.Push(lie.LevelChanged{Level: p.Level})
		f.Push(lie.HALChanged{Level: p.HAL})
		f.Push(lie.HATChanged{Level: p.HAT})
		f.Push(lie.HALSChanged{Hals: p.HALS})
	}
	return iface
}

// Interface returns the interface wired for linkID, or nil.
func (n *Node) Interface(linkID protocol.LinkId) *Interface {
	return n.interfaces[linkID]
}

// Interfaces returns every interface in ascending LinkId order.
func (n *Node) Interfaces() []*Interface {
	out := make([]*Interface, 0, len(n.linkOrder))
	for _, id := range n.linkOrder {
		out = append(out, n.interfaces[id])
	}
	return out
}

// publish fans the ZTP FSM's newly computed tuple out to every LIE FSM on
// the node as enqueued events (spec §4.2 "Entry into UpdatingClients").
// Only the fields that actually changed since the last publish are
// enqueued: a LevelChanged carrying a new level demotes every adjacency on
// the node to OneWay, so a ZTP recompute that leaves the level unchanged
// (such as the very first BetterHAL, which fires the moment any
// neighbor's first offer arrives) enqueues no LevelChanged at all. The LIE
// FSM also ignores a LevelChanged that carries its current level.
func (n *Node) publish(p ztp.Published) {
	prev := n.lastPublished
	levelChanged := prev == nil || prev.Level != p.Level
	halChanged := prev == nil || !levelPtrEqual(prev.HAL, p.HAL)
	hatChanged := prev == nil || !levelPtrEqual(prev.HAT, p.HAT)
	halsChanged := prev == nil || !halsEqual(prev.HALS, p.HALS)

	n.lastPublished = &p

	if !levelChanged && !halChanged && !hatChanged && !halsChanged {
		return
	}
	for _, id := range n.linkOrder {
		f := n.interfaces[id].FSM
		if levelChanged {
			f.Push(lie.LevelChanged{Level: p.Level})
		}
		if halChanged {
			f.Push(lie.HALChanged{Level: p.HAL})
		}
		if hatChanged {
			f.Push(lie.HATChanged{Level: p.HAT})
		}
		if halsChanged {
			f.Push(lie.HALSChanged{Hals: p.HALS})
		}
	}
}

// levelPtrEqual compares two possibly-nil level pointers by value.
func levelPtrEqual(a, b *protocol.Level) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// halsEqual compares two HALS sets for equal membership.
func halsEqual(a, b map[protocol.SystemId]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// hasSouthboundAdjacency reports whether any LIE FSM on this node holds a
// ThreeWay adjacency to a neighbor at a lower level than this node's own
// — consulted only on ZTP's entry into HoldingDown. Reading another FSM's
// state directly here is safe only because both run in the same
// single-threaded node event loop (spec §9 cross-FSM design note).
func (n *Node) hasSouthboundAdjacency() bool {
	level := n.ZTP.Level()
	for _, id := range n.linkOrder {
		f := n.interfaces[id].FSM
		if f.State() != lie.ThreeWay {
			continue
		}
		nb := f.Neighbor()
		if nb != nil && nb.Level.Defined() && level.Defined() && nb.Level < level {
			return true
		}
	}
	return false
}

// TimerTick fans a timer tick out to the ZTP FSM's ShortTic and to every
// LIE FSM's TimerTick, then drains the whole node to a fixed point.
func (n *Node) TimerTick() {
	n.ZTP.Push(ztp.ShortTic{})
	for _, id := range n.linkOrder {
		n.interfaces[id].FSM.Push(lie.TimerTick{})
	}
	n.Drain()
}

// Drain runs the node's event loop: a deterministic round-robin over the
// ZTP FSM and every LIE FSM (ascending LinkId), one event fully processed
// per queue per round, until every queue is empty (spec §5).
func (n *Node) Drain() {
	for {
		progressed := n.ZTP.Step()
		for _, id := range n.linkOrder {
			if n.interfaces[id].FSM.Step() {
				progressed = true
			}
		}
		if !progressed {
			return
		}
	}
}
