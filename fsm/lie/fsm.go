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

package lie

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/riftsim/rift/fsm/ztp"
	"github.com/riftsim/rift/protocol"
	"github.com/riftsim/rift/timer"
)

// Defaults for the tunable protocol constants an interface may override.
const (
	DefaultLieHoldtimeSeconds           = 3
	DefaultMultipleNeighborsMultiplier  = 3
	DefaultMTU                   uint32 = 1400
)

// FSM is the per-interface LIE adjacency state machine.
type FSM struct {
	SelfID protocol.SystemId
	LinkID protocol.LinkId

	state    State
	neighbor *NeighborRecord

	multipleNeighborsDeadline timer.Deadline
	clock                     timer.Clock

	// level/hal/hat/hals mirror the node's ZTP-published tuple, kept up to
	// date by LevelChanged/HALChanged/HATChanged/HALSChanged events.
	level protocol.Level
	hal   *protocol.Level
	hat   *protocol.Level
	hals  map[protocol.SystemId]struct{}

	// Packet fields this FSM advertises in every SEND_LIE.
	Holdtime                              uint16
	FloodPort                             uint16
	Name                                  string
	MTU                                   uint32
	YouAreFloodRepeater                   bool
	MultipleNeighborsLieHoldtimeMultiplier int

	// lastOffer* cache the most recently heard neighbor's identity so
	// UpdateZTPOffer can still post a (now-expired) withdrawal after
	// CLEANUP has cleared f.neighbor (spec §9 open question 5).
	lastOfferHasOffer bool
	lastOfferSystemID protocol.SystemId
	lastOfferLevel    protocol.Level

	// mu guards queue and state against the interface transport's receive
	// goroutine pushing LieRcvd concurrently with the node's own drain
	// loop; every actual state transition still happens on one goroutine
	// at a time, inside whichever Step call holds mu.
	mu    sync.Mutex
	queue []Event

	// Send transmits a constructed LIE packet on this interface.
	Send func(*protocol.LIEPacket)
	// PostOffer delivers a NeighborOffer to the node's ZTP FSM queue.
	PostOffer func(ztp.NeighborOffer)
	// OnDemotion is called with a short reason whenever the FSM demotes to
	// OneWay or MultipleNeighborsWait, wired by node to the demotions
	// counter.
	OnDemotion func(reason string)

	log *log.Entry
}

// New creates a LIE FSM for one interface of a node.
func New(selfID protocol.SystemId, linkID protocol.LinkId, clock timer.Clock) *FSM {
	return &FSM{
		SelfID:   selfID,
		LinkID:   linkID,
		state:    OneWay,
		clock:    clock,
		level:    protocol.LevelUndefined,
		hals:     map[protocol.SystemId]struct{}{},
		Holdtime: DefaultLieHoldtimeSeconds,
		MTU:      DefaultMTU,
		MultipleNeighborsLieHoldtimeMultiplier: DefaultMultipleNeighborsMultiplier,
		log: log.WithField("link_id", linkID),
	}
}

// State returns the current LIE FSM state.
func (f *FSM) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Neighbor returns the current neighbor record, nil in OneWay (invariant 1).
func (f *FSM) Neighbor() *NeighborRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.neighbor
}

// Push appends an event to the tail of the FSM's queue. Safe to call from
// a different goroutine than the one draining the FSM, since the
// interface transport's receive loop pushes LieRcvd concurrently with the
// node's own drain loop.
func (f *FSM) Push(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushLocked(ev)
}

// pushLocked appends an event without acquiring mu. Used by handle and the
// actions it calls, which always run with mu already held by Step.
func (f *FSM) pushLocked(ev Event) {
	f.queue = append(f.queue, ev)
}

// Step processes a single queued event, if one is pending, returning
// whether it did. Node uses this to interleave this FSM's processing with
// the node's ZTP FSM and its sibling LIE FSMs in a round-robin.
func (f *FSM) Step() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return false
	}
	ev := f.queue[0]
	f.queue = f.queue[1:]
	f.handle(ev)
	return true
}

// Pending reports whether any event is queued.
func (f *FSM) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) > 0
}

// Drain processes every queued event to a fixed point, one at a time, each
// to completion before the next is drawn (spec §3 invariant 1).
func (f *FSM) Drain() {
	for f.Step() {
	}
}

func (f *FSM) transition(next State) {
	if f.state != next {
		f.log.Debugf("lie %s -> %s", f.state, next)
	}
	f.state = next
	if next == OneWay {
		f.cleanup()
		f.pushLocked(UpdateZTPOffer{})
	}
}

// cleanup is the CLEANUP auxiliary procedure: clears neighbor, the
// holdtime deadline, and cached reflection/timer state. hal/hat/hals are
// never touched here.
func (f *FSM) cleanup() {
	f.neighbor = nil
	f.multipleNeighborsDeadline.Clear()
}

// demote transitions to next (always a demotion target) and reports reason
// through OnDemotion, if wired.
func (f *FSM) demote(reason string, next State) {
	f.transition(next)
	if f.OnDemotion != nil {
		f.OnDemotion(reason)
	}
}

func (f *FSM) enterMultipleNeighborsWait() {
	f.demote("multiple_neighbors", MultipleNeighborsWait)
	mult := f.MultipleNeighborsLieHoldtimeMultiplier
	if mult <= 0 {
		mult = DefaultMultipleNeighborsMultiplier
	}
	f.multipleNeighborsDeadline.Arm(f.clock, time.Duration(mult)*time.Duration(DefaultLieHoldtimeSeconds)*time.Second)
}

func (f *FSM) handle(ev Event) {
	switch e := ev.(type) {
	case TimerTick:
		f.onTimerTick()
	case LieRcvd:
		f.processLie(e.Packet, e.Src)
	case MTUMismatch:
		f.demote("mtu_mismatch", OneWay)
	case LevelChanged:
		if e.Level == f.level {
			return
		}
		f.level = e.Level
		f.demote("level_changed", OneWay)
	case HALChanged:
		f.hal = e.Level
	case HATChanged:
		f.hat = e.Level
	case HALSChanged:
		f.hals = e.Hals
	case FloodLeadersChanged:
		// Never produced; retained so the event switch stays exhaustive.
	case SendLie:
		f.sendLie()
	case UpdateZTPOffer:
		f.updateZTPOffer()
	case NewNeighbor:
		f.transition(TwoWay)
	case ValidReflection:
		f.transition(ThreeWay)
	case MultipleNeighbors:
		f.enterMultipleNeighborsWait()
	case MultipleNeighborsDone:
		f.demote("multiple_neighbors_done", OneWay)
	case NeighborDroppedReflection:
		f.transition(TwoWay)
	case NeighborChangedAddress:
		f.demote("neighbor_changed_address", OneWay)
	case NeighborChangedLevel:
		f.demote("neighbor_changed_level", OneWay)
	case NeighborChangedMinorFields:
		// Fields were already refreshed in processLie; no state change.
	case NeighborChangedBFDCapability:
		// No-op, spec §9 open question 6.
	case UnacceptableHeader:
		f.demote("unacceptable_header", OneWay)
	case HoldtimeExpired:
		f.demote("holdtime_expired", OneWay)
	}
}

func (f *FSM) onTimerTick() {
	f.pushLocked(SendLie{})
	switch f.state {
	case TwoWay, ThreeWay:
		if f.neighbor != nil {
			holdtime := time.Duration(f.neighbor.Holdtime) * time.Second
			if f.clock.Now().Sub(f.neighbor.LastRxTime) > holdtime {
				f.pushLocked(HoldtimeExpired{})
			}
		}
	case MultipleNeighborsWait:
		if f.multipleNeighborsDeadline.Expired(f.clock) {
			f.pushLocked(MultipleNeighborsDone{})
		}
	}
}
