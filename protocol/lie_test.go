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

package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func samplePacket() *LIEPacket {
	return &LIEPacket{
		SenderSystemID: 0x1,
		SenderLevel:    LevelTopOfFabric,
		LocalLinkID:    3,
		Neighbor:       &NeighborReference{SystemID: 0x2, LinkID: 7},
		Holdtime:       3,
		FloodPort:      10001,
		Name:           "if_1_2001",
		MTU:            1500,
	}
}

func TestRoundTripNoAuth(t *testing.T) {
	p := samplePacket()
	b, err := p.MarshalBinary()
	require.NoError(t, err)

	got, err := DecodeLIE(b, nil)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestRoundTripNoNeighbor(t *testing.T) {
	p := samplePacket()
	p.Neighbor = nil
	b, err := p.MarshalBinary()
	require.NoError(t, err)

	got, err := DecodeLIE(b, nil)
	require.NoError(t, err)
	require.Nil(t, got.Neighbor)
}

func TestRoundTripWithAuth(t *testing.T) {
	key := Key{ID: 1, Algorithm: AlgorithmSHA256, Secret: []byte("s3cr3t")}
	p := samplePacket()
	require.NoError(t, p.Sign(&key))

	b, err := p.MarshalBinary()
	require.NoError(t, err)

	accept := map[uint32]Key{1: key}
	got, err := DecodeLIE(b, accept)
	require.NoError(t, err)
	require.Equal(t, p.SenderSystemID, got.SenderSystemID)
}

func TestAuthFailureDropsPacket(t *testing.T) {
	key := Key{ID: 1, Algorithm: AlgorithmSHA256, Secret: []byte("s3cr3t")}
	other := Key{ID: 1, Algorithm: AlgorithmSHA256, Secret: []byte("different")}
	p := samplePacket()
	require.NoError(t, p.Sign(&key))

	b, err := p.MarshalBinary()
	require.NoError(t, err)

	_, err = DecodeLIE(b, map[uint32]Key{1: other})
	require.Error(t, err)
}

func TestAuthMissingAcceptKeyDropsPacket(t *testing.T) {
	key := Key{ID: 1, Algorithm: AlgorithmHMACSHA256, Secret: []byte("s3cr3t")}
	p := samplePacket()
	require.NoError(t, p.Sign(&key))

	b, err := p.MarshalBinary()
	require.NoError(t, err)

	_, err = DecodeLIE(b, map[uint32]Key{99: key})
	require.Error(t, err)
}

func TestMalformedPacketErrors(t *testing.T) {
	_, err := DecodeLIE([]byte{1, 2, 3}, nil)
	require.Error(t, err)
}

func TestDeliveryFingerprintStable(t *testing.T) {
	p := samplePacket()
	b, err := p.MarshalBinary()
	require.NoError(t, err)

	require.Equal(t, DeliveryFingerprint(b), DeliveryFingerprint(b))

	p2 := samplePacket()
	p2.Name = "other"
	b2, err := p2.MarshalBinary()
	require.NoError(t, err)
	require.NotEqual(t, DeliveryFingerprint(b), DeliveryFingerprint(b2))
}
