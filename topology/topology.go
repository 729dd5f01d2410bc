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

// Package topology loads the YAML topology file into an immutable
// descriptor graph: nodes and interfaces reference their descriptor
// directly and derive all run-time state locally (spec §9 "Configuration").
package topology

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-version"
	"github.com/jsimonetti/rtnetlink/rtnl"
	yaml "gopkg.in/yaml.v2"

	"github.com/riftsim/rift/protocol"
)

// SupportedSchemaVersion is the topology schema this binary understands.
// A topology file naming a different major version fails to load rather
// than silently misparsing (spec §6 DOMAIN addition).
const SupportedSchemaVersion = "1.0.0"

// AuthenticationKey is one entry of the top-level authentication_keys list.
type AuthenticationKey struct {
	ID        uint32             `yaml:"id"`
	Algorithm protocol.Algorithm `yaml:"algorithm"`
	Secret    string             `yaml:"secret"`
}

// Interface is one node's interface descriptor.
type Interface struct {
	Name                     string   `yaml:"name"`
	Metric                   int      `yaml:"metric"`
	TxLiePort                int      `yaml:"tx_lie_port"`
	RxLiePort                int      `yaml:"rx_lie_port"`
	RxTiePort                int      `yaml:"rx_tie_port"`
	ActiveAuthenticationKey  *uint32  `yaml:"active_authentication_key"`
	AcceptAuthenticationKeys []uint32 `yaml:"accept_authentication_keys"`

	// OSInterface optionally names a real host NIC whose live MTU is
	// cross-checked against MTU at load time (spec §6 DOMAIN addition).
	OSInterface string `yaml:"os_interface"`
	MTU         uint32 `yaml:"mtu"`

	// LinkID is assigned by the loader, not read from YAML: the ordinal
	// position of this interface within its node.
	LinkID protocol.LinkId `yaml:"-"`
	// PeerNode/PeerInterface are resolved by pairing tx_lie_port on one
	// side to rx_lie_port on the other, within the same shard.
	PeerNode      string `yaml:"-"`
	PeerInterface string `yaml:"-"`
}

// Node is one node descriptor within a shard.
type Node struct {
	Name       string `yaml:"name"`
	SystemID   uint64 `yaml:"systemid"`
	Level      string `yaml:"level"`
	RxLieMcastAddress   string `yaml:"rx_lie_mcast_address"`
	RxLieV6McastAddress string `yaml:"rx_lie_v6_mcast_address"`
	RxLiePort           int    `yaml:"rx_lie_port"`
	Passive             bool   `yaml:"passive"`

	ActiveOriginAuthenticationKey  *uint32  `yaml:"active_origin_authentication_key"`
	AcceptOriginAuthenticationKeys []uint32 `yaml:"accept_origin_authentication_keys"`

	V4Prefixes []string    `yaml:"v4prefixes"`
	Interfaces []Interface `yaml:"interfaces"`

	// ResolvedLevel is Level parsed via protocol.ParseLevel, populated by
	// the loader.
	ResolvedLevel protocol.Level `yaml:"-"`
}

// Shard groups nodes that may interconnect.
type Shard struct {
	ID    int    `yaml:"id"`
	Nodes []Node `yaml:"nodes"`
}

// Const carries reserved/forward-compatible top-level constants.
type Const struct {
	SchemaVersion string `yaml:"schema_version"`
}

// Config is the parsed, but not yet validated, topology file.
type Config struct {
	Const              Const               `yaml:"const"`
	AuthenticationKeys []AuthenticationKey `yaml:"authentication_keys"`
	Shards             []Shard             `yaml:"shards"`
}

// Keys builds the protocol.Key accept-set from the topology's
// authentication_keys list, keyed by id.
func (c *Config) Keys() (map[uint32]protocol.Key, error) {
	out := make(map[uint32]protocol.Key, len(c.AuthenticationKeys))
	for _, k := range c.AuthenticationKeys {
		out[k.ID] = protocol.Key{ID: k.ID, Algorithm: k.Algorithm, Secret: []byte(k.Secret)}
	}
	return out, nil
}

// Load reads and validates a topology file: parses level names, checks
// schema_version, assigns LinkIds, and pairs interfaces by port. Any
// violation is a configuration error (spec §7), fatal at startup.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topology file: %w", err)
	}
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing topology file: %w", err)
	}
	if err := c.validateSchemaVersion(); err != nil {
		return nil, err
	}
	if err := c.resolve(); err != nil {
		return nil, err
	}
	if err := c.checkOSInterfaces(); err != nil {
		return nil, err
	}
	return c, nil
}

// checkOSInterfaces cross-checks any interface descriptor naming a real
// host NIC (os_interface) against that NIC's live MTU via rtnetlink,
// catching a miscabled lab rig before the simulator ever sends a LIE
// (spec §6 DOMAIN addition). Descriptors with no os_interface are
// untouched — this never runs for a pure in-process simulation.
func (c *Config) checkOSInterfaces() error {
	var conn *rtnl.Conn
	for si := range c.Shards {
		shard := &c.Shards[si]
		for ni := range shard.Nodes {
			n := &shard.Nodes[ni]
			for ii := range n.Interfaces {
				iface := &n.Interfaces[ii]
				if iface.OSInterface == "" {
					continue
				}
				if conn == nil {
					var err error
					conn, err = rtnl.Dial(nil)
					if err != nil {
						return fmt.Errorf("opening rtnetlink connection to check os_interface MTUs: %w", err)
					}
					defer conn.Close()
				}
				link, err := conn.LinkByName(iface.OSInterface)
				if err != nil {
					return fmt.Errorf("node %s interface %s: resolving os_interface %q: %w", n.Name, iface.Name, iface.OSInterface, err)
				}
				if iface.MTU != 0 && uint32(link.MTU) != iface.MTU {
					return fmt.Errorf("node %s interface %s: os_interface %q has live MTU %d, configured mtu is %d", n.Name, iface.Name, iface.OSInterface, link.MTU, iface.MTU)
				}
			}
		}
	}
	return nil
}

func (c *Config) validateSchemaVersion() error {
	if c.Const.SchemaVersion == "" {
		return nil
	}
	want, err := version.NewVersion(SupportedSchemaVersion)
	if err != nil {
		return err
	}
	got, err := version.NewVersion(c.Const.SchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid const.schema_version %q: %w", c.Const.SchemaVersion, err)
	}
	if got.Segments()[0] != want.Segments()[0] {
		return fmt.Errorf("topology schema_version %s is not compatible with supported %s", got, want)
	}
	return nil
}

// resolve parses level strings, assigns ascending LinkIds per node, checks
// for duplicate system ids and colliding interface rx_lie_ports within a
// shard, and pairs interfaces by tx_lie_port/rx_lie_port.
func (c *Config) resolve() error {
	for si := range c.Shards {
		shard := &c.Shards[si]
		seenSystemID := map[uint64]string{}
		portOwner := map[int]string{} // rx_lie_port -> "node/interface"

		for ni := range shard.Nodes {
			n := &shard.Nodes[ni]
			lvl, err := protocol.ParseLevel(n.Level)
			if err != nil {
				return fmt.Errorf("node %s: %w", n.Name, err)
			}
			n.ResolvedLevel = lvl

			if owner, ok := seenSystemID[n.SystemID]; ok {
				return fmt.Errorf("duplicate system id %d used by both %q and %q in shard %d", n.SystemID, owner, n.Name, shard.ID)
			}
			seenSystemID[n.SystemID] = n.Name

			for ii := range n.Interfaces {
				iface := &n.Interfaces[ii]
				iface.LinkID = protocol.LinkId(ii)
				key := fmt.Sprintf("%s/%s", n.Name, iface.Name)
				if owner, ok := portOwner[iface.RxLiePort]; ok {
					return fmt.Errorf("rx_lie_port %d collides between %q and %q", iface.RxLiePort, owner, key)
				}
				portOwner[iface.RxLiePort] = key
			}
		}

		if err := pairInterfaces(shard); err != nil {
			return err
		}
	}
	return nil
}

// pairInterfaces matches each interface's tx_lie_port to another
// interface's rx_lie_port within the same shard.
func pairInterfaces(shard *Shard) error {
	byRxPort := map[int]struct {
		node string
		ifn  string
	}{}
	for ni := range shard.Nodes {
		n := &shard.Nodes[ni]
		for ii := range n.Interfaces {
			iface := &n.Interfaces[ii]
			byRxPort[iface.RxLiePort] = struct {
				node string
				ifn  string
			}{n.Name, iface.Name}
		}
	}
	for ni := range shard.Nodes {
		n := &shard.Nodes[ni]
		for ii := range n.Interfaces {
			iface := &n.Interfaces[ii]
			peer, ok := byRxPort[iface.TxLiePort]
			if !ok {
				continue // unpaired interface; valid for a one-armed lab node
			}
			iface.PeerNode = peer.node
			iface.PeerInterface = peer.ifn
		}
	}
	return nil
}
