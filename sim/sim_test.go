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

package sim

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riftsim/rift/fsm/lie"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer l.Close()
	return l.LocalAddr().(*net.UDPAddr).Port
}

func writeTwoNodeTopology(t *testing.T) string {
	t.Helper()
	portA := freePort(t)
	portB := freePort(t)

	yaml := fmt.Sprintf(`
const:
  schema_version: "1.0.0"
authentication_keys: []
shards:
  - id: 0
    nodes:
      - name: node1
        systemid: 1
        level: 1
        rx_lie_mcast_address: 224.0.0.120
        rx_lie_port: %d
        interfaces:
          - name: if1
            metric: 1
            tx_lie_port: %d
            rx_lie_port: %d
            rx_tie_port: 0
            mtu: 1400
      - name: node2
        systemid: 2
        level: leaf
        rx_lie_mcast_address: 224.0.0.120
        rx_lie_port: %d
        interfaces:
          - name: if1
            metric: 1
            tx_lie_port: %d
            rx_lie_port: %d
            rx_tie_port: 0
            mtu: 1400
`, portA, portB, portA, portB, portA, portB)

	dir := t.TempDir()
	path := filepath.Join(dir, "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestBuildWiresOneConnPerInterface(t *testing.T) {
	path := writeTwoNodeTopology(t)

	s, err := Build(path, Options{SnapshotDir: t.TempDir()})
	require.NoError(t, err)
	defer func() {
		for _, c := range s.conns {
			c.Close()
		}
	}()

	require.Len(t, s.Nodes(), 2)
	require.Len(t, s.conns, 2)
}

func TestRunBringsLoopbackPairToThreeWay(t *testing.T) {
	path := writeTwoNodeTopology(t)

	s, err := Build(path, Options{
		SnapshotDir:      t.TempDir(),
		SnapshotInterval: 50 * time.Millisecond,
		TickInterval:     20 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var node1, node2 *lie.FSM
	for _, n := range s.Nodes() {
		switch n.Name {
		case "node1":
			node1 = n.Interfaces()[0].FSM
		case "node2":
			node2 = n.Interfaces()[0].FSM
		}
	}
	require.NotNil(t, node1)
	require.NotNil(t, node2)

	require.Eventually(t, func() bool {
		return node1.State() == lie.ThreeWay && node2.State() == lie.ThreeWay
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
