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

// Package metrics exports the counters and gauges described in spec §7
// (codec drops, per-rejection-reason FSM demotions) over prometheus,
// mirroring ptp4u/stats, plus host runtime and scheduling-jitter stats
// folded into every snapshot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CodecDropsTotal counts LIE packets silently dropped at the codec layer
// (malformed bytes or authentication failure), labeled by reason.
var CodecDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rift_codec_drops_total",
	Help: "LIE packets dropped at the codec layer before reaching any FSM.",
}, []string{"reason"})

// FSMDemotionsTotal counts LIE FSM demotions to OneWay or
// MultipleNeighborsWait, labeled by the event that caused them
// (mtu_mismatch, unacceptable_header, holdtime_expired, multiple_neighbors,
// level_changed, ...).
var FSMDemotionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rift_lie_fsm_demotions_total",
	Help: "LIE FSM demotions to OneWay or MultipleNeighborsWait, labeled by cause.",
}, []string{"reason"})

// ZTPTransitionsTotal counts ZTP FSM state transitions, labeled by
// destination state.
var ZTPTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rift_ztp_transitions_total",
	Help: "ZTP FSM transitions, labeled by destination state.",
}, []string{"node", "state"})

// NodeLevel publishes each node's currently computed effective level.
var NodeLevel = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "rift_node_level",
	Help: "Effective RIFT level of a simulated node.",
}, []string{"node"})

// DuplicateLieTotal counts inbound LIE datagrams that are byte-identical
// to the last datagram seen from the same neighbor, labeled by link id.
// Such datagrams are still delivered to the FSM.
var DuplicateLieTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rift_duplicate_lie_total",
	Help: "LIE datagrams identical to the previous one from the same neighbor, labeled by link id.",
}, []string{"link_id"})
