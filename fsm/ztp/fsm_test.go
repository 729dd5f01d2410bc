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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftsim/rift/protocol"
	"github.com/riftsim/rift/timer"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestFSM(configured protocol.Level, clock *fakeClock) *FSM {
	return New(1, configured, false, clock)
}

func drainedLevel(f *FSM, ev Event) protocol.Level {
	f.Push(ev)
	f.Drain()
	return f.Level()
}

func TestConfiguredLevelWinsImmediately(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	f := newTestFSM(5, clock)
	assert.Equal(t, protocol.Level(5), f.Level())
	f.Drain()
	assert.Equal(t, UpdatingClients, f.State())
}

func TestLeafFallbackWithoutOffers(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	f := New(1, protocol.LevelUndefined, true, clock)
	assert.Equal(t, protocol.LevelLeaf, f.Level())
}

func TestUndefinedWithoutOffersOrConfig(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	f := newTestFSM(protocol.LevelUndefined, clock)
	assert.Equal(t, protocol.LevelUndefined, f.Level())
	assert.Nil(t, f.HAL())
}

func TestBestOfferRaisesHALAndComputesLevel(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	f := newTestFSM(protocol.LevelUndefined, clock)

	f.Push(NeighborOfferEvent{Offer: NeighborOffer{
		SystemID:           2,
		LinkID:             1,
		Level:              10,
		ExpirationDeadline: clock.now.Add(time.Minute),
	}})
	f.Drain()

	require.NotNil(t, f.HAL())
	assert.Equal(t, protocol.Level(10), *f.HAL())
	assert.Equal(t, protocol.Level(9), f.Level())
	assert.Equal(t, UpdatingClients, f.State())
	assert.Contains(t, f.HALS(), protocol.SystemId(2))
}

func TestSecondLowerOfferBecomesHAT(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	f := newTestFSM(protocol.LevelUndefined, clock)

	f.Push(NeighborOfferEvent{Offer: NeighborOffer{SystemID: 2, LinkID: 1, Level: 10, ExpirationDeadline: clock.now.Add(time.Minute)}})
	f.Push(NeighborOfferEvent{Offer: NeighborOffer{SystemID: 3, LinkID: 1, Level: 4, ExpirationDeadline: clock.now.Add(time.Minute)}})
	f.Drain()

	require.NotNil(t, f.HAT())
	assert.Equal(t, protocol.Level(4), *f.HAT())
}

func TestOfferExpiryOnShortTicDropsHAL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	f := newTestFSM(protocol.LevelUndefined, clock)

	f.Push(NeighborOfferEvent{Offer: NeighborOffer{SystemID: 2, LinkID: 1, Level: 10, ExpirationDeadline: clock.now.Add(time.Second)}})
	f.Drain()
	require.NotNil(t, f.HAL())

	clock.now = clock.now.Add(2 * time.Second)
	f.Push(ShortTic{})
	f.Drain()

	assert.Nil(t, f.HAL())
	assert.Empty(t, f.HALS())
}

func TestLostHALEntersHoldingDownWithoutSouthboundAdjacency(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	f := newTestFSM(protocol.LevelUndefined, clock)
	f.HasSouthboundAdjacency = func() bool { return false }

	f.Push(NeighborOfferEvent{Offer: NeighborOffer{SystemID: 2, LinkID: 1, Level: 10, ExpirationDeadline: clock.now.Add(time.Second)}})
	f.Drain()

	f.Push(NeighborOfferEvent{Offer: NeighborOffer{NotAZtpOffer: true, SystemID: 2, LinkID: 1}})
	f.Drain()

	// No southbound adjacency: HoldingDown resolves immediately back to
	// ComputeBestOffer, landing in UpdatingClients. With no HAL and no leaf
	// flags the recomputed level is Undefined.
	assert.Equal(t, UpdatingClients, f.State())
	assert.Equal(t, protocol.LevelUndefined, f.Level())
}

func TestLostHALHoldsDownWithSouthboundAdjacency(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	f := newTestFSM(protocol.LevelUndefined, clock)
	f.HolddownDuration = time.Second
	f.HasSouthboundAdjacency = func() bool { return true }

	f.Push(NeighborOfferEvent{Offer: NeighborOffer{SystemID: 2, LinkID: 1, Level: 10, ExpirationDeadline: clock.now.Add(time.Minute)}})
	f.Drain()

	f.Push(NeighborOfferEvent{Offer: NeighborOffer{NotAZtpOffer: true, SystemID: 2, LinkID: 1}})
	f.Drain()

	assert.Equal(t, HoldingDown, f.State())

	clock.now = clock.now.Add(2 * time.Second)
	f.Push(ShortTic{})
	f.Drain()

	assert.Equal(t, UpdatingClients, f.State())
}

func TestPublishCalledOnEveryUpdatingClientsEntry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	f := newTestFSM(protocol.LevelUndefined, clock)
	var published []Published
	f.Publish = func(p Published) { published = append(published, p) }

	f.Push(NeighborOfferEvent{Offer: NeighborOffer{SystemID: 2, LinkID: 1, Level: 10, ExpirationDeadline: clock.now.Add(time.Minute)}})
	f.Drain()

	require.NotEmpty(t, published)
	last := published[len(published)-1]
	assert.Equal(t, protocol.Level(9), last.Level)
}

func TestPurgeOffersResetsTable(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	f := newTestFSM(protocol.LevelUndefined, clock)
	f.Push(NeighborOfferEvent{Offer: NeighborOffer{SystemID: 2, LinkID: 1, Level: 10, ExpirationDeadline: clock.now.Add(time.Minute)}})
	f.Drain()
	require.NotNil(t, f.HAL())

	f.PurgeOffers()
	f.Drain()

	assert.Nil(t, f.HAL())
}

func TestCompareOffersIsPureGivenSameOffers(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	f1 := newTestFSM(protocol.LevelUndefined, clock)
	f2 := newTestFSM(protocol.LevelUndefined, clock)

	offer := NeighborOffer{SystemID: 2, LinkID: 1, Level: 7, ExpirationDeadline: clock.now.Add(time.Minute)}
	f1.Push(NeighborOfferEvent{Offer: offer})
	f1.Drain()
	f2.Push(NeighborOfferEvent{Offer: offer})
	f2.Drain()

	assert.Equal(t, f1.HAL(), f2.HAL())
	assert.Equal(t, f1.Level(), f2.Level())
}

func TestDeadlineArmAndExpire(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	var d timer.Deadline
	assert.False(t, d.Armed())
	d.Arm(clock, time.Second)
	assert.True(t, d.Armed())
	assert.False(t, d.Expired(clock))
	clock.now = clock.now.Add(2 * time.Second)
	assert.True(t, d.Expired(clock))
}
