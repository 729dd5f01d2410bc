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
	"net"

	"github.com/riftsim/rift/protocol"
)

// Event is the closed set of things a LIE FSM can be told. Every concrete
// type below implements it; a type switch in FSM.handle is the dense
// (state, event) -> (action, next state) table described in the design
// notes, organized as one switch arm per event kind and a per-state
// decision inside it.
type Event interface {
	lieEvent()
}

type base struct{}

func (base) lieEvent() {}

// External events, generated outside this FSM.

// TimerTick is delivered on every timer service tick.
type TimerTick struct{ base }

// LieRcvd carries a decoded LIE and the address it arrived from.
type LieRcvd struct {
	base
	Packet *protocol.LIEPacket
	Src    net.Addr
}

// MTUMismatch is pushed by PROCESS_LIE when the packet's MTU disagrees
// with this node's configured MTU.
type MTUMismatch struct{ base }

// LevelChanged carries this node's newly computed level, from ZTP.
type LevelChanged struct {
	base
	Level protocol.Level
}

// HALChanged carries the node's newly published HAL, from ZTP.
type HALChanged struct {
	base
	Level *protocol.Level
}

// HATChanged carries the node's newly published HAT, from ZTP.
type HATChanged struct {
	base
	Level *protocol.Level
}

// HALSChanged carries the node's newly published HALS, from ZTP.
type HALSChanged struct {
	base
	Hals map[protocol.SystemId]struct{}
}

// FloodLeadersChanged is a placeholder external event; flood-leader
// election is out of scope for this core (see spec §1 scope) and this
// event is never produced, but is retained so the table stays exhaustive.
type FloodLeadersChanged struct{ base }

// Internal events, pushed by this FSM's own actions.

// SendLie triggers SEND_LIE.
type SendLie struct{ base }

// UpdateZTPOffer triggers posting a NeighborOffer to the node's ZTP FSM.
type UpdateZTPOffer struct{ base }

// NewNeighbor is pushed when PROCESS_LIE accepts a LIE from a sender with
// no prior neighbor record.
type NewNeighbor struct{ base }

// ValidReflection is pushed by CHECK_THREE_WAY when the peer's LIE
// reflects this node's own system id and link id.
type ValidReflection struct{ base }

// MultipleNeighbors is pushed when a second, distinct sender contends on
// the same link.
type MultipleNeighbors struct{ base }

// MultipleNeighborsDone is pushed when the multiple-neighbors timer
// expires.
type MultipleNeighborsDone struct{ base }

// NeighborDroppedReflection is pushed by CHECK_THREE_WAY in ThreeWay when
// the peer's LIE no longer carries a neighbor reference.
type NeighborDroppedReflection struct{ base }

// NeighborChangedAddress is pushed when the known neighbor's source
// address changes.
type NeighborChangedAddress struct{ base }

// NeighborChangedLevel is pushed when the known neighbor's advertised
// level changes.
type NeighborChangedLevel struct{ base }

// NeighborChangedMinorFields is pushed when flood_port, name, or
// local_link_id change on an otherwise unchanged neighbor.
type NeighborChangedMinorFields struct{ base }

// NeighborChangedBFDCapability appears in the MultipleNeighborsWait action
// list in the source material but is never produced; retained as a no-op
// for forward compatibility (spec §9 open question 6).
type NeighborChangedBFDCapability struct{ base }

// UnacceptableHeader is pushed when PROCESS_LIE step 2 or 3 rejects a
// packet's header.
type UnacceptableHeader struct{ base }

// HoldtimeExpired is pushed when TimerTick observes the neighbor's
// holdtime has elapsed since its last LIE.
type HoldtimeExpired struct{ base }
