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
	"time"

	"github.com/riftsim/rift/fsm/ztp"
	"github.com/riftsim/rift/protocol"
)

// sendLie is the SEND_LIE auxiliary procedure. It is pure with respect to
// FSM state: it only reads current fields, never mutates them.
func (f *FSM) sendLie() {
	if f.Send == nil {
		return
	}
	p := &protocol.LIEPacket{
		SenderSystemID:      f.SelfID,
		SenderLevel:         f.level,
		LocalLinkID:         f.LinkID,
		Holdtime:            f.Holdtime,
		FloodPort:           f.FloodPort,
		Name:                f.Name,
		MTU:                 f.MTU,
		YouAreFloodRepeater: f.YouAreFloodRepeater,
	}
	if f.neighbor != nil {
		p.Neighbor = &protocol.NeighborReference{
			SystemID: f.neighbor.SystemID,
			LinkID:   f.neighbor.LinkID,
		}
	}
	f.Send(p)
}

// updateZTPOffer is the UpdateZTPOffer action: post a NeighborOffer to the
// owning node's ZTP FSM. If CLEANUP has just cleared neighbor, it still
// posts the last-seen offer but marked already expired so the ZTP FSM
// drops it on its next ShortTic (spec §9 open question 5).
func (f *FSM) updateZTPOffer() {
	if f.PostOffer == nil {
		return
	}
	now := f.clock.Now()
	if f.neighbor != nil {
		f.PostOffer(ztp.NeighborOffer{
			SystemID:           f.neighbor.SystemID,
			LinkID:             f.LinkID,
			Level:              f.neighbor.Level,
			ExpirationDeadline: now.Add(time.Duration(f.neighbor.Holdtime) * time.Second),
			ThreeWay:           f.state == ThreeWay,
		})
		return
	}
	if f.lastOfferHasOffer {
		f.PostOffer(ztp.NeighborOffer{
			SystemID:           f.lastOfferSystemID,
			LinkID:             f.LinkID,
			Level:              f.lastOfferLevel,
			ExpirationDeadline: now,
		})
	}
}

// processLie is the PROCESS_LIE auxiliary procedure.
func (f *FSM) processLie(p *protocol.LIEPacket, src net.Addr) {
	now := f.clock.Now()

	if p.MTU != f.MTU {
		f.pushLocked(MTUMismatch{})
		return
	}
	if p.SenderSystemID == f.SelfID {
		f.pushLocked(UnacceptableHeader{})
		return
	}
	if f.unacceptableHeader(p) {
		f.pushLocked(UnacceptableHeader{})
		return
	}

	f.pushLocked(UpdateZTPOffer{})
	candidate := neighborFromPacket(p, src, now)

	if f.neighbor == nil {
		f.neighbor = &candidate
		f.rememberOffer(candidate)
		f.pushLocked(NewNeighbor{})
		f.checkThreeWay(p)
	} else {
		switch {
		case f.neighbor.SystemID != p.SenderSystemID:
			f.pushLocked(MultipleNeighbors{})
		case f.neighbor.Level != p.SenderLevel:
			f.pushLocked(NeighborChangedLevel{})
		case !addrEqual(f.neighbor.SourceAddress, src):
			f.pushLocked(NeighborChangedAddress{})
		case f.neighbor.FloodPort != p.FloodPort || f.neighbor.Name != p.Name || f.neighbor.LinkID != p.LocalLinkID:
			f.pushLocked(NeighborChangedMinorFields{})
		}
		f.neighbor = &candidate
		f.rememberOffer(candidate)
	}

	f.checkThreeWay(p)
}

func (f *FSM) rememberOffer(n NeighborRecord) {
	f.lastOfferHasOffer = true
	f.lastOfferSystemID = n.SystemID
	f.lastOfferLevel = n.Level
}

// unacceptableHeader implements PROCESS_LIE step 3.
func (f *FSM) unacceptableHeader(p *protocol.LIEPacket) bool {
	if !p.SenderLevel.Defined() {
		return true
	}
	if !f.level.Defined() {
		return true
	}
	if f.level == protocol.LevelLeaf && f.hat != nil && p.SenderLevel < *f.hat {
		return true
	}
	if p.SenderLevel != protocol.LevelLeaf {
		diff := int(p.SenderLevel) - int(f.level)
		if diff < 0 {
			diff = -diff
		}
		if diff > 1 {
			return true
		}
	}
	return false
}

// checkThreeWay is the CHECK_THREE_WAY auxiliary procedure, following the
// de-facto behavior this spec freezes (spec §9 open question 1).
func (f *FSM) checkThreeWay(p *protocol.LIEPacket) {
	switch f.state {
	case OneWay:
		// Nothing: OneWay has no neighbor to reflect against.
	case TwoWay:
		if p.Neighbor == nil {
			return
		}
		if reflectsUs(p, f.SelfID, f.LinkID) {
			f.pushLocked(ValidReflection{})
		} else {
			f.pushLocked(MultipleNeighbors{})
		}
	case ThreeWay:
		if p.Neighbor == nil {
			f.pushLocked(NeighborDroppedReflection{})
		} else if !reflectsUs(p, f.SelfID, f.LinkID) {
			f.pushLocked(MultipleNeighbors{})
		}
	case MultipleNeighborsWait:
		// No-op: the neighbor set is ambiguous until MultipleNeighborsDone.
	}
}
