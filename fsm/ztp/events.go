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

// Event is the closed set of things a ZTP FSM can be told.
type Event interface {
	ztpEvent()
}

type base struct{}

func (base) ztpEvent() {}

// LeafFlags mandates a leaf-only level computation when true.
type LeafFlags bool

// External events.

// ChangeLocalConfiguredLevel reconfigures the node's static level.
type ChangeLocalConfiguredLevel struct {
	base
	Level protocol.Level
}

// ChangeLocalHierarchyIndications reconfigures the node's leaf flags.
type ChangeLocalHierarchyIndications struct {
	base
	LeafFlags LeafFlags
}

// NeighborOfferEvent wraps a NeighborOffer posted by a LIE FSM.
type NeighborOfferEvent struct {
	base
	Offer NeighborOffer
}

// ShortTic is delivered on every ZTP short-tick, driving offer expiry and
// the holddown timer.
type ShortTic struct{ base }

// Internal events.

// BetterHAL is pushed when COMPARE_OFFERS finds a higher HAL.
type BetterHAL struct{ base }

// BetterHAT is pushed when COMPARE_OFFERS finds a higher HAT.
type BetterHAT struct{ base }

// LostHAL is pushed when COMPARE_OFFERS finds no more offers at all.
type LostHAL struct{ base }

// LostHAT is pushed when COMPARE_OFFERS finds no level strictly below HAL.
type LostHAT struct{ base }

// ComputationDone is pushed unconditionally at the end of LEVEL_COMPUTE
// (spec §9 open question 4).
type ComputationDone struct{ base }

// HoldDownExpired is pushed when the holddown timer fires.
type HoldDownExpired struct{ base }
