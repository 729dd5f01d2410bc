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

package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riftsim/rift/fsm/lie"
	"github.com/riftsim/rift/fsm/ztp"
	"github.com/riftsim/rift/node"
	"github.com/riftsim/rift/protocol"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestNode(t *testing.T, name string, systemID protocol.SystemId, configuredLevel protocol.Level) *node.Node {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	n := node.New(name, systemID, configuredLevel, false, clock)
	n.AddInterface("eth0", 0, nil)
	n.Drain()
	return n
}

func TestBuildDocumentRendersUndefinedLevelsAsNil(t *testing.T) {
	n := newTestNode(t, "leaf1", 1, protocol.LevelUndefined)

	doc := BuildDocument([]*node.Node{n}, nil, nil)

	require.Len(t, doc.Nodes, 1)
	nd := doc.Nodes[0]
	require.Equal(t, "leaf1", nd.Name)
	require.Equal(t, protocol.SystemId(1), nd.SystemID)
	require.Nil(t, nd.ConfiguredLevel)
	require.Equal(t, ztp.UpdatingClients.String(), nd.ZTPState)
	require.Len(t, nd.Interfaces, 1)
	require.Equal(t, "eth0", nd.Interfaces[0].Name)
	require.Equal(t, lie.OneWay.String(), nd.Interfaces[0].LieState)
	require.Nil(t, nd.Interfaces[0].Neighbor)
}

func TestBuildDocumentRendersConfiguredLevel(t *testing.T) {
	n := newTestNode(t, "spine1", 2, 2)

	doc := BuildDocument([]*node.Node{n}, nil, nil)

	require.Len(t, doc.Nodes, 1)
	require.NotNil(t, doc.Nodes[0].ConfiguredLevel)
	require.EqualValues(t, 2, *doc.Nodes[0].ConfiguredLevel)
}

func TestBuildDocumentOmitsRuntimeWhenNilCollectors(t *testing.T) {
	n := newTestNode(t, "leaf1", 1, protocol.LevelUndefined)

	doc := BuildDocument([]*node.Node{n}, nil, nil)

	require.Zero(t, doc.Runtime.UptimeSeconds)
	require.Zero(t, doc.Runtime.Jitter.Samples)
}

func TestWriterWritesValidJSONDocument(t *testing.T) {
	dir := t.TempDir()
	n := newTestNode(t, "leaf1", 1, protocol.LevelUndefined)

	w := NewWriter(dir, 0, nil, nil)
	require.False(t, w.Done())
	w.Write(time.Unix(1700000001, 0), []*node.Node{n})

	entries, err := os.ReadDir(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	b, err := os.ReadFile(filepath.Join(dir, "logs", entries[0].Name()))
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(b, &doc))
	require.Len(t, doc.Nodes, 1)
	require.Equal(t, "leaf1", doc.Nodes[0].Name)
}

func TestWriterDoneAfterMaxSnapshots(t *testing.T) {
	dir := t.TempDir()
	n := newTestNode(t, "leaf1", 1, protocol.LevelUndefined)

	w := NewWriter(dir, 1, nil, nil)
	require.False(t, w.Done())
	w.Write(time.Unix(1700000001, 0), []*node.Node{n})
	require.True(t, w.Done())
}
