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

package ztp

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/riftsim/rift/protocol"
	"github.com/riftsim/rift/timer"
)

// DefaultHolddownDuration is how long ComputeBestOffer/UpdatingClients
// wait in HoldingDown for a southbound adjacency to recover before
// recomputing a (possibly leaf) fallback level.
const DefaultHolddownDuration = 10 * time.Second

// Published is the (level, hal, hat, hals) tuple the ZTP FSM broadcasts to
// every LIE FSM on the node whenever it enters UpdatingClients.
type Published struct {
	Level protocol.Level
	HAL   *protocol.Level
	HAT   *protocol.Level
	HALS  map[protocol.SystemId]struct{}
}

// FSM is the per-node ZTP state machine.
type FSM struct {
	SelfID protocol.SystemId

	state           State
	configuredLevel protocol.Level
	leafFlags       LeafFlags

	offers map[OfferKey]Offer

	level protocol.Level
	hal   *protocol.Level
	hat   *protocol.Level
	hals  map[protocol.SystemId]struct{}

	HolddownDuration time.Duration
	holddown         timer.Deadline
	clock            timer.Clock

	queue []Event

	// Publish delivers the newly computed tuple to every LIE FSM on the
	// node. Node wires this to enqueue deltas only, per spec.
	Publish func(Published)

	// HasSouthboundAdjacency reports whether any of the node's LIE FSMs
	// currently hold a ThreeWay adjacency to a lower-level neighbor. It is
	// consulted only on entry into HoldingDown.
	HasSouthboundAdjacency func() bool

	// OnTransition is called after every state transition, wired by node
	// to the ztp transitions counter and level gauge.
	OnTransition func(next State, level protocol.Level)

	log *log.Entry
}

// New creates a ZTP FSM for a node with the given static configuration.
func New(selfID protocol.SystemId, configuredLevel protocol.Level, leafFlags LeafFlags, clock timer.Clock) *FSM {
	f := &FSM{
		SelfID:           selfID,
		state:            ComputeBestOffer,
		configuredLevel:  configuredLevel,
		leafFlags:        leafFlags,
		offers:           map[OfferKey]Offer{},
		level:            protocol.LevelUndefined,
		hals:             map[protocol.SystemId]struct{}{},
		HolddownDuration: DefaultHolddownDuration,
		clock:            clock,
		log:              log.WithField("system_id", selfID),
	}
	f.enterComputeBestOffer()
	return f
}

// State returns the current ZTP state.
func (f *FSM) State() State { return f.state }

// Level returns the currently computed effective level.
func (f *FSM) Level() protocol.Level { return f.level }

// ConfiguredLevel returns the statically configured level this node was
// created with, Undefined if none was configured.
func (f *FSM) ConfiguredLevel() protocol.Level { return f.configuredLevel }

// HAL returns the currently published HAL.
func (f *FSM) HAL() *protocol.Level { return f.hal }

// HAT returns the currently published HAT.
func (f *FSM) HAT() *protocol.Level { return f.hat }

// HALS returns the currently published HALS.
func (f *FSM) HALS() map[protocol.SystemId]struct{} { return f.hals }

// Push appends an event to the tail of the FSM's queue.
func (f *FSM) Push(ev Event) {
	f.queue = append(f.queue, ev)
}

// Step processes a single queued event, if one is pending, returning
// whether it did. Node uses this to interleave ZTP and LIE FSM processing
// in a round-robin instead of fully draining one before the next.
func (f *FSM) Step() bool {
	if len(f.queue) == 0 {
		return false
	}
	ev := f.queue[0]
	f.queue = f.queue[1:]
	f.handle(ev)
	return true
}

// Pending reports whether any event is queued.
func (f *FSM) Pending() bool { return len(f.queue) > 0 }

// Drain processes every queued event to a fixed point, one at a time, each
// to completion (transition + action + any newly pushed events appended
// to the tail) before the next is drawn — see spec §3 invariant 1 and §5.
func (f *FSM) Drain() {
	for f.Step() {
	}
}

func (f *FSM) transition(next State) {
	if f.state != next {
		f.log.Debugf("ztp %s -> %s", f.state, next)
	}
	f.state = next
	switch next {
	case ComputeBestOffer:
		f.enterComputeBestOffer()
	case UpdatingClients:
		f.enterUpdatingClients()
	case HoldingDown:
		f.enterHoldingDown()
	}
	if f.OnTransition != nil {
		f.OnTransition(next, f.level)
	}
}

func (f *FSM) enterComputeBestOffer() {
	f.levelCompute()
}

func (f *FSM) enterUpdatingClients() {
	if f.Publish != nil {
		f.Publish(Published{Level: f.level, HAL: f.hal, HAT: f.hat, HALS: f.hals})
	}
}

func (f *FSM) enterHoldingDown() {
	southbound := f.HasSouthboundAdjacency != nil && f.HasSouthboundAdjacency()
	if southbound {
		f.holddown.Arm(f.clock, f.HolddownDuration)
	} else {
		f.holddown.Clear()
		f.Push(HoldDownExpired{})
	}
}

func (f *FSM) handle(ev Event) {
	switch e := ev.(type) {
	case ChangeLocalConfiguredLevel:
		f.configuredLevel = e.Level
		f.transition(ComputeBestOffer)
	case ChangeLocalHierarchyIndications:
		f.leafFlags = e.LeafFlags
		f.transition(ComputeBestOffer)
	case NeighborOfferEvent:
		f.processOffer(e.Offer)
	case ShortTic:
		f.purgeExpiredOffers()
		if f.state == HoldingDown && f.holddown.Expired(f.clock) {
			f.Push(HoldDownExpired{})
		}
	case BetterHAL:
		f.transition(ComputeBestOffer)
	case BetterHAT:
		if f.state != HoldingDown {
			f.transition(ComputeBestOffer)
		}
	case LostHAL:
		if f.state == ComputeBestOffer || f.state == UpdatingClients {
			f.transition(HoldingDown)
		}
	case LostHAT:
		if f.state != HoldingDown {
			f.transition(ComputeBestOffer)
		}
	case ComputationDone:
		if f.state == ComputeBestOffer {
			f.transition(UpdatingClients)
		}
	case HoldDownExpired:
		if f.state == HoldingDown {
			f.transition(ComputeBestOffer)
		}
	}
}
