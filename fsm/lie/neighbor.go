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

	"github.com/riftsim/rift/protocol"
)

// NeighborRecord is held by a LIE FSM once it has accepted a LIE: every
// field of the most recent accepted packet, plus the address it arrived
// from and when. It is the value step 4 of PROCESS_LIE diffs against.
type NeighborRecord struct {
	SystemID  protocol.SystemId
	Level     protocol.Level
	LinkID    protocol.LinkId // the neighbor's own local_link_id
	Neighbor  *protocol.NeighborReference
	Holdtime  uint16
	FloodPort uint16
	Name      string
	MTU       uint32
	YouAreFloodRepeater bool

	SourceAddress net.Addr
	LastRxTime    time.Time
}

func neighborFromPacket(p *protocol.LIEPacket, src net.Addr, now time.Time) NeighborRecord {
	return NeighborRecord{
		SystemID:            p.SenderSystemID,
		Level:               p.SenderLevel,
		LinkID:              p.LocalLinkID,
		Neighbor:            p.Neighbor,
		Holdtime:            p.Holdtime,
		FloodPort:           p.FloodPort,
		Name:                p.Name,
		MTU:                 p.MTU,
		YouAreFloodRepeater: p.YouAreFloodRepeater,
		SourceAddress:       src,
		LastRxTime:          now,
	}
}

// reflectsUs reports whether the packet's neighbor reference names self
// (our system id and this link's local id).
func reflectsUs(p *protocol.LIEPacket, selfID protocol.SystemId, localLinkID protocol.LinkId) bool {
	return p.Neighbor != nil && p.Neighbor.SystemID == selfID && p.Neighbor.LinkID == localLinkID
}

func addrEqual(a, b net.Addr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}
