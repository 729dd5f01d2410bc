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
	"encoding/binary"
	"fmt"
)

// Version is the wire version of the LIE packet this codec speaks.
const Version uint8 = 1

// fixed-size portion of a LIEPacket, everything up to the variable-length
// name/fingerprint tail. See unmarshalHeader/headerMarshalBinaryTo in
// ptp/protocol for the idiom this mirrors.
const lieFixedSize = 1 + 8 + 1 + 4 + 1 + 8 + 4 + 2 + 2 + 4 + 1

// LIEPacket is the per-link hello/keepalive packet.
type LIEPacket struct {
	SenderSystemID SystemId
	SenderLevel    Level
	LocalLinkID    LinkId

	// Neighbor is the (system id, link id) this sender has heard the
	// receiver's own LIE reflect, or nil if it has not heard one yet.
	Neighbor *NeighborReference

	Holdtime            uint16
	FloodPort           uint16
	Name                string
	MTU                 uint32
	YouAreFloodRepeater bool

	Auth *Envelope
}

func lieMarshalBinaryTo(p *LIEPacket, b []byte) (int, error) {
	if len(b) < lieFixedSize+2+len(p.Name) {
		return 0, fmt.Errorf("not enough buffer to write LIEPacket")
	}
	b[0] = Version
	pos := 1
	binary.BigEndian.PutUint64(b[pos:], uint64(p.SenderSystemID))
	pos += 8
	b[pos] = byte(p.SenderLevel)
	pos++
	binary.BigEndian.PutUint32(b[pos:], uint32(p.LocalLinkID))
	pos += 4
	if p.Neighbor != nil {
		b[pos] = 1
		pos++
		binary.BigEndian.PutUint64(b[pos:], uint64(p.Neighbor.SystemID))
		pos += 8
		binary.BigEndian.PutUint32(b[pos:], uint32(p.Neighbor.LinkID))
		pos += 4
	} else {
		b[pos] = 0
		pos++
		pos += 8 + 4
	}
	binary.BigEndian.PutUint16(b[pos:], p.Holdtime)
	pos += 2
	binary.BigEndian.PutUint16(b[pos:], p.FloodPort)
	pos += 2
	binary.BigEndian.PutUint32(b[pos:], p.MTU)
	pos += 4
	if p.YouAreFloodRepeater {
		b[pos] = 1
	} else {
		b[pos] = 0
	}
	pos++
	binary.BigEndian.PutUint16(b[pos:], uint16(len(p.Name)))
	pos += 2
	pos += copy(b[pos:], p.Name)
	return pos, nil
}

func lieUnmarshalBinary(p *LIEPacket, b []byte) error {
	if len(b) < lieFixedSize {
		return fmt.Errorf("not enough data to decode LIEPacket header")
	}
	if b[0] != Version {
		return fmt.Errorf("unsupported LIEPacket wire version %d", b[0])
	}
	pos := 1
	p.SenderSystemID = SystemId(binary.BigEndian.Uint64(b[pos:]))
	pos += 8
	p.SenderLevel = Level(int8(b[pos]))
	pos++
	p.LocalLinkID = LinkId(binary.BigEndian.Uint32(b[pos:]))
	pos += 4
	hasNeighbor := b[pos] == 1
	pos++
	sysID := SystemId(binary.BigEndian.Uint64(b[pos:]))
	pos += 8
	linkID := LinkId(binary.BigEndian.Uint32(b[pos:]))
	pos += 4
	if hasNeighbor {
		p.Neighbor = &NeighborReference{SystemID: sysID, LinkID: linkID}
	} else {
		p.Neighbor = nil
	}
	p.Holdtime = binary.BigEndian.Uint16(b[pos:])
	pos += 2
	p.FloodPort = binary.BigEndian.Uint16(b[pos:])
	pos += 2
	p.MTU = binary.BigEndian.Uint32(b[pos:])
	pos += 4
	p.YouAreFloodRepeater = b[pos] == 1
	pos++
	if len(b) < pos+2 {
		return fmt.Errorf("not enough data to decode LIEPacket name length")
	}
	nameLen := int(binary.BigEndian.Uint16(b[pos:]))
	pos += 2
	if len(b) < pos+nameLen {
		return fmt.Errorf("not enough data to decode LIEPacket name")
	}
	p.Name = string(b[pos : pos+nameLen])
	pos += nameLen

	auth, err := unmarshalEnvelope(b[pos:])
	if err != nil {
		return err
	}
	p.Auth = auth
	return nil
}

// envelope wire format: 1 presence byte, then 4 bytes key id, 2 bytes
// fingerprint length, then the fingerprint bytes.
func unmarshalEnvelope(b []byte) (*Envelope, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if b[0] == 0 {
		return nil, nil
	}
	if len(b) < 1+4+2 {
		return nil, fmt.Errorf("not enough data to decode authentication envelope")
	}
	pos := 1
	keyID := binary.BigEndian.Uint32(b[pos:])
	pos += 4
	fpLen := int(binary.BigEndian.Uint16(b[pos:]))
	pos += 2
	if len(b) < pos+fpLen {
		return nil, fmt.Errorf("not enough data to decode authentication fingerprint")
	}
	fp := make([]byte, fpLen)
	copy(fp, b[pos:pos+fpLen])
	return &Envelope{ActiveKeyID: keyID, Fingerprint: fp}, nil
}

func marshalEnvelopeTo(e *Envelope, b []byte) (int, error) {
	if e == nil {
		if len(b) < 1 {
			return 0, fmt.Errorf("not enough buffer to write envelope presence byte")
		}
		b[0] = 0
		return 1, nil
	}
	need := 1 + 4 + 2 + len(e.Fingerprint)
	if len(b) < need {
		return 0, fmt.Errorf("not enough buffer to write authentication envelope")
	}
	b[0] = 1
	pos := 1
	binary.BigEndian.PutUint32(b[pos:], e.ActiveKeyID)
	pos += 4
	binary.BigEndian.PutUint16(b[pos:], uint16(len(e.Fingerprint)))
	pos += 2
	pos += copy(b[pos:], e.Fingerprint)
	return pos, nil
}

// MarshalBinary converts a LIEPacket, including its authentication
// envelope (signed over the unauthenticated encoding), to bytes.
func (p *LIEPacket) MarshalBinary() ([]byte, error) {
	buf := make([]byte, lieFixedSize+2+len(p.Name))
	n, err := lieMarshalBinaryTo(p, buf)
	if err != nil {
		return nil, err
	}
	payload := buf[:n]

	envBuf := make([]byte, 1+4+2+fingerprintLen(p.Auth))
	en, err := marshalEnvelopeTo(p.Auth, envBuf)
	if err != nil {
		return nil, err
	}
	return append(payload, envBuf[:en]...), nil
}

func fingerprintLen(e *Envelope) int {
	if e == nil {
		return 0
	}
	return len(e.Fingerprint)
}

// UnmarshalBinary parses bytes into a LIEPacket. It does not verify the
// authentication envelope — callers must call Auth.Verify themselves
// (DecodeLIE does this and refuses the packet on failure).
func (p *LIEPacket) UnmarshalBinary(b []byte) error {
	return lieUnmarshalBinary(p, b)
}

// Sign computes and attaches the authentication envelope for this packet
// under key, by encoding the packet without an envelope and fingerprinting
// that payload.
func (p *LIEPacket) Sign(key *Key) error {
	if key == nil {
		p.Auth = nil
		return nil
	}
	clone := *p
	clone.Auth = nil
	payload, err := clone.MarshalBinary()
	if err != nil {
		return err
	}
	fp, err := Fingerprint(*key, payload)
	if err != nil {
		return err
	}
	p.Auth = &Envelope{ActiveKeyID: key.ID, Fingerprint: fp}
	return nil
}

// DecodeLIE parses and authenticates a LIE packet. It is the bit-exact
// inverse of MarshalBinary for well-formed packets (the round-trip law in
// spec §8), and returns an error whenever the payload is malformed or its
// authentication envelope does not verify under any of acceptKeys —
// callers must treat any error as a silent drop per spec §7, not surface
// it as an FSM event.
func DecodeLIE(b []byte, acceptKeys map[uint32]Key) (*LIEPacket, error) {
	p := &LIEPacket{}
	if err := p.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	if p.Auth != nil {
		unsigned := *p
		unsigned.Auth = nil
		payload, err := unsigned.MarshalBinary()
		if err != nil {
			return nil, err
		}
		if !p.Auth.Verify(payload, acceptKeys) {
			return nil, fmt.Errorf("authentication fingerprint did not verify for key id %d", p.Auth.ActiveKeyID)
		}
	}
	return p, nil
}
