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

package node

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftsim/rift/fsm/lie"
	"github.com/riftsim/rift/fsm/ztp"
	"github.com/riftsim/rift/protocol"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

// TestTwoNodeMinimalThreeWay reproduces scenario S1: two configured-leaf
// nodes joined by one link each reach ThreeWay within three TimerTicks.
func TestTwoNodeMinimalThreeWay(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	n1 := New("node1", 1, protocol.LevelLeaf, false, clock)
	n2 := New("node2", 2, protocol.LevelLeaf, false, clock)

	var n1Out, n2Out *protocol.LIEPacket
	if1 := n1.AddInterface("if1", 10, func(p *protocol.LIEPacket) { n1Out = p })
	if2 := n2.AddInterface("if1", 20, func(p *protocol.LIEPacket) { n2Out = p })

	addr1 := &net.UDPAddr{IP: net.ParseIP("10.0.1.1")}
	addr2 := &net.UDPAddr{IP: net.ParseIP("10.0.1.2")}

	n1.Drain()
	n2.Drain()

	for i := 0; i < 3; i++ {
		n1.TimerTick()
		if n1Out != nil {
			if2.FSM.Push(lie.LieRcvd{Packet: n1Out, Src: addr1})
			n2.Drain()
		}
		n2.TimerTick()
		if n2Out != nil {
			if1.FSM.Push(lie.LieRcvd{Packet: n2Out, Src: addr2})
			n1.Drain()
		}
	}

	assert.Equal(t, lie.ThreeWay, if1.FSM.State())
	assert.Equal(t, lie.ThreeWay, if2.FSM.State())
}

// TestNeighborOfferDrivesNodeLevel exercises offer-driven level
// computation: a neighbor offering level 10 should drive this node's
// effective level, as computed by its ZTP FSM, to 9.
func TestNeighborOfferDrivesNodeLevel(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	n := New("node1", 1, protocol.LevelUndefined, false, clock)
	iface := n.AddInterface("if1", 10, nil)
	n.Drain()

	iface.FSM.Push(lie.UpdateZTPOffer{}) // no-op without a neighbor; ensures queue handling is safe pre-offer
	n.Drain()

	n.ZTP.Push(ztp.NeighborOfferEvent{Offer: ztp.NeighborOffer{
		SystemID:           2,
		LinkID:             10,
		Level:              10,
		ExpirationDeadline: clock.now.Add(time.Minute),
	}})
	n.Drain()

	require.Equal(t, protocol.Level(9), n.ZTP.Level())
}

func TestHasSouthboundAdjacencyDrivesHolddown(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	n := New("node1", 1, protocol.LevelUndefined, false, clock)
	n.AddInterface("if1", 10, nil)
	n.Drain()

	assert.False(t, n.hasSouthboundAdjacency())
}
