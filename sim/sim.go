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

// Package sim wires a topology.Config into running nodes: one node.Node
// plus one iface.Conn per configured interface, a shared timer.Service
// fanning ticks out to every node, and a snapshot.Writer sampling the
// whole graph on its own cadence. Run supervises all of it with an
// errgroup so any fatal error or --max-snapshots exhaustion cleanly
// unwinds every goroutine, mirroring how cmd/sptp supervises its protocol
// loop alongside its stats and sysstats goroutines.
package sim

import (
	"context"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/riftsim/rift/config"
	"github.com/riftsim/rift/iface"
	"github.com/riftsim/rift/metrics"
	"github.com/riftsim/rift/node"
	"github.com/riftsim/rift/protocol"
	"github.com/riftsim/rift/snapshot"
	"github.com/riftsim/rift/timer"
	"github.com/riftsim/rift/topology"
)

// Loopback is the address every node's interfaces bind and send on: the
// simulator runs every node of a topology in one process, disambiguated
// only by port, never by host.
var Loopback = net.IPv4(127, 0, 0, 1)

// Options configures a Run.
type Options struct {
	SnapshotInterval time.Duration
	MaxSnapshots     int
	SnapshotDir      string
	TickInterval     time.Duration
	DSCP             int
	Constants        *config.Constants
}

// DefaultTickInterval is how often the shared timer.Service fires
// TimerTick/ShortTic, fast enough to keep the default 3s LIE holdtime and
// 10s ZTP holddown responsive without busy-looping.
const DefaultTickInterval = 200 * time.Millisecond

// DefaultSnapshotInterval is used when Options.SnapshotInterval is zero.
const DefaultSnapshotInterval = 5 * time.Second

// Simulator owns every running node and its transport for one loaded
// topology.
type Simulator struct {
	nodes   []*node.Node
	conns   []*iface.Conn
	clock   timer.Clock
	ticker  *timer.Service
	writer  *snapshot.Writer
	opts    Options
	keys    map[uint32]protocol.Key
	log     *log.Entry
}

// Build loads and wires a topology: constructs every node and interface
// transport, but starts nothing yet.
func Build(topologyPath string, opts Options) (*Simulator, error) {
	cfg, err := topology.Load(topologyPath)
	if err != nil {
		return nil, fmt.Errorf("loading topology: %w", err)
	}
	keys, err := cfg.Keys()
	if err != nil {
		return nil, fmt.Errorf("building authentication keys: %w", err)
	}

	if opts.TickInterval == 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.SnapshotInterval == 0 {
		opts.SnapshotInterval = DefaultSnapshotInterval
	}

	clock := timer.RealClock{}
	s := &Simulator{
		clock: clock,
		opts:  opts,
		keys:  keys,
		log:   log.WithField("component", "sim"),
	}

	sys, err := metrics.NewSysStats()
	if err != nil {
		return nil, fmt.Errorf("opening process stats handle: %w", err)
	}
	s.writer = snapshot.NewWriter(opts.SnapshotDir, opts.MaxSnapshots, sys, metrics.NewSchedulingJitter())

	for si := range cfg.Shards {
		shard := &cfg.Shards[si]
		for ni := range shard.Nodes {
			nd := &shard.Nodes[ni]
			if err := s.addNode(nd); err != nil {
				return nil, err
			}
		}
	}

	s.ticker = timer.NewService(clock, opts.TickInterval)
	return s, nil
}

func (s *Simulator) addNode(nd *topology.Node) error {
	n := node.New(nd.Name, protocol.SystemId(nd.SystemID), nd.ResolvedLevel, false, s.clock)
	s.opts.Constants.ApplyZTP(n.ZTP)

	for ii := range nd.Interfaces {
		tif := &nd.Interfaces[ii]
		// send is nil until iface.New below wires the real transport.
		ifc := n.AddInterface(tif.Name, tif.LinkID, nil)
		s.opts.Constants.ApplyLIE(ifc.FSM)

		acceptKeys := s.acceptKeysFor(tif.AcceptAuthenticationKeys)
		conn, err := iface.New(iface.Config{
			LinkID:     tif.LinkID,
			LocalIP:    Loopback,
			RxPort:     tif.RxLiePort,
			SendPort:   tif.TxLiePort,
			SendAddr:   Loopback,
			DSCP:       s.opts.DSCP,
			AcceptKeys: acceptKeys,
		}, ifc.FSM)
		if err != nil {
			return fmt.Errorf("node %s interface %s: %w", nd.Name, tif.Name, err)
		}
		if activeKey := s.activeKeyFor(tif.ActiveAuthenticationKey); activeKey != nil {
			rawSend := ifc.FSM.Send
			key := *activeKey
			ifc.FSM.Send = func(p *protocol.LIEPacket) {
				if err := p.Sign(&key); err != nil {
					s.log.Errorf("signing outgoing LIE on %s/%s: %v", nd.Name, tif.Name, err)
					return
				}
				rawSend(p)
			}
		}
		s.conns = append(s.conns, conn)
	}

	s.nodes = append(s.nodes, n)
	return nil
}

func (s *Simulator) acceptKeysFor(ids []uint32) map[uint32]protocol.Key {
	if len(ids) == 0 {
		return nil
	}
	out := make(map[uint32]protocol.Key, len(ids))
	for _, id := range ids {
		if k, ok := s.keys[id]; ok {
			out[id] = k
		}
	}
	return out
}

func (s *Simulator) activeKeyFor(id *uint32) *protocol.Key {
	if id == nil {
		return nil
	}
	if k, ok := s.keys[*id]; ok {
		return &k
	}
	return nil
}

// Nodes returns every running node, in load order.
func (s *Simulator) Nodes() []*node.Node { return s.nodes }

// Run starts every interface transport, the shared timer service and the
// snapshot writer, and blocks until ctx is cancelled or --max-snapshots is
// exhausted (an orderly, non-error stop).
func (s *Simulator) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	eg, ctx := errgroup.WithContext(ctx)

	for _, c := range s.conns {
		c := c
		eg.Go(func() error {
			c.Start()
			return nil
		})
	}

	eg.Go(func() error {
		s.ticker.Start()
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		s.ticker.Stop()
		for _, c := range s.conns {
			c.Close()
		}
		return nil
	})

	eg.Go(func() error {
		snapTicker := time.NewTicker(s.opts.SnapshotInterval)
		defer snapTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-s.ticker.C:
				for _, n := range s.nodes {
					n.TimerTick()
				}
			case now := <-snapTicker.C:
				s.writer.Write(now, s.nodes)
				if s.writer.Done() {
					s.log.Infof("wrote %d snapshots, stopping", s.opts.MaxSnapshots)
					stop()
					return nil
				}
			}
		}
	})

	return eg.Wait()
}
