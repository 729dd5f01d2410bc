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

	"github.com/riftsim/rift/protocol"
)

// OfferKey identifies an Offer's source: one per (sender, interface).
type OfferKey struct {
	SystemID protocol.SystemId
	LinkID   protocol.LinkId
}

// Offer is what a LIE FSM tells the ZTP FSM about a neighbor it has heard
// from, keyed by OfferKey.
type Offer struct {
	Level              protocol.Level
	NotAZtpOffer       bool
	ExpirationDeadline time.Time
	ThreeWay           bool
}

// Expired reports whether the offer's deadline lies in the past as of now.
func (o Offer) Expired(now time.Time) bool {
	return !now.Before(o.ExpirationDeadline)
}

// NeighborOffer is the message a LIE FSM posts into its node's ZTP FSM
// queue; processing it (via PROCESS_OFFER) turns it into an insert/remove
// against the offer table.
type NeighborOffer struct {
	SystemID           protocol.SystemId
	LinkID             protocol.LinkId
	Level              protocol.Level
	NotAZtpOffer       bool
	ExpirationDeadline time.Time
	ThreeWay           bool
}

// Key returns the OfferKey this offer is stored under.
func (n NeighborOffer) Key() OfferKey {
	return OfferKey{SystemID: n.SystemID, LinkID: n.LinkID}
}
