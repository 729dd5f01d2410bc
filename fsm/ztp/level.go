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

import "github.com/riftsim/rift/protocol"

// levelCompute is the LEVEL_COMPUTE auxiliary procedure: the node's
// effective level becomes the configured level if defined, else Leaf if
// leaf_flags mandate it, else HAL-1 if HAL is a numeric level >= 1, else
// Undefined. It unconditionally pushes ComputationDone (spec §9 open
// question 4).
func (f *FSM) levelCompute() {
	switch {
	case f.configuredLevel.Defined():
		f.level = f.configuredLevel
	case bool(f.leafFlags):
		f.level = protocol.LevelLeaf
	case f.hal != nil && *f.hal >= 1:
		f.level = *f.hal - 1
	default:
		f.level = protocol.LevelUndefined
	}
	f.Push(ComputationDone{})
}

// processOffer is the PROCESS_OFFER auxiliary procedure.
func (f *FSM) processOffer(n NeighborOffer) {
	if n.SystemID == f.SelfID {
		return
	}
	if n.NotAZtpOffer || !n.Level.Defined() {
		f.removeOffer(n.Key())
		return
	}
	f.updateOffer(n)
}

// updateOffer is the UPDATE_OFFER auxiliary procedure.
func (f *FSM) updateOffer(n NeighborOffer) {
	f.offers[n.Key()] = Offer{
		Level:              n.Level,
		NotAZtpOffer:       n.NotAZtpOffer,
		ExpirationDeadline: n.ExpirationDeadline,
		ThreeWay:           n.ThreeWay,
	}
	f.compareOffers()
}

// removeOffer is the REMOVE_OFFER auxiliary procedure.
func (f *FSM) removeOffer(key OfferKey) {
	delete(f.offers, key)
	f.compareOffers()
}

// PurgeOffers is the PURGE_OFFERS auxiliary procedure: empty the offer
// table entirely. This spec freezes the equivalent-but-more-efficient
// single compare pass in place of calling REMOVE_OFFER per entry; the
// observable events are identical modulo extraneous intermediate ones.
func (f *FSM) PurgeOffers() {
	f.offers = map[OfferKey]Offer{}
	f.compareOffers()
}

// purgeExpiredOffers drops every offer whose deadline has passed, per the
// ShortTic housekeeping described in spec §3 invariant 3.
func (f *FSM) purgeExpiredOffers() {
	now := f.clock.Now()
	changed := false
	for k, o := range f.offers {
		if o.Expired(now) {
			delete(f.offers, k)
			changed = true
		}
	}
	if changed {
		f.compareOffers()
	}
}

func levelGreater(a, b *protocol.Level) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return *a > *b
}

// compareOffers is the COMPARE_OFFERS auxiliary procedure. It is pure with
// respect to its inputs (the current offer table, clock, and previously
// published HAL/HAT): given the same offers it always emits the same
// events (spec §8 invariant 6).
func (f *FSM) compareOffers() {
	now := f.clock.Now()

	var halPrime *protocol.Level
	for _, o := range f.offers {
		if o.Expired(now) {
			continue
		}
		lvl := o.Level
		if halPrime == nil || lvl > *halPrime {
			v := lvl
			halPrime = &v
		}
	}

	var hatPrime *protocol.Level
	if halPrime != nil {
		for _, o := range f.offers {
			if o.Expired(now) {
				continue
			}
			if o.Level >= *halPrime {
				continue
			}
			v := o.Level
			if hatPrime == nil || v > *hatPrime {
				hatPrime = &v
			}
		}
	}

	halsPrime := map[protocol.SystemId]struct{}{}
	if halPrime != nil {
		for k, o := range f.offers {
			if o.Expired(now) {
				continue
			}
			if o.Level == *halPrime {
				halsPrime[k.SystemID] = struct{}{}
			}
		}
	}

	if levelGreater(halPrime, f.hal) {
		f.Push(BetterHAL{})
	} else if halPrime == nil && f.hal != nil {
		f.Push(LostHAL{})
	}
	if levelGreater(hatPrime, f.hat) {
		f.Push(BetterHAT{})
	} else if hatPrime == nil && f.hat != nil {
		f.Push(LostHAT{})
	}

	f.hal = halPrime
	f.hat = hatPrime
	f.hals = halsPrime
}
