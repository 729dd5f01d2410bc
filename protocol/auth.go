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
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
)

// Algorithm is an authentication algorithm name as it appears in the
// topology file's authentication_keys list.
type Algorithm string

// Supported algorithms, per spec §6.
const (
	AlgorithmSHA224    Algorithm = "sha-224"
	AlgorithmSHA256    Algorithm = "sha-256"
	AlgorithmSHA512    Algorithm = "sha-512"
	AlgorithmHMACSHA1  Algorithm = "hmac-sha-1"
	AlgorithmHMACSHA256 Algorithm = "hmac-sha-256"
)

// Key is one entry of the topology's authentication_keys list.
type Key struct {
	ID        uint32
	Algorithm Algorithm
	Secret    []byte
}

func newHash(alg Algorithm, secret []byte) (hash.Hash, error) {
	switch alg {
	case AlgorithmSHA224:
		return sha256.New224(), nil
	case AlgorithmSHA256:
		return sha256.New(), nil
	case AlgorithmSHA512:
		return sha512.New(), nil
	case AlgorithmHMACSHA1:
		return hmac.New(sha1.New, secret), nil
	case AlgorithmHMACSHA256:
		return hmac.New(sha256.New, secret), nil
	default:
		return nil, fmt.Errorf("unknown authentication algorithm %q", alg)
	}
}

// Fingerprint computes the fingerprint of payload under the given key. The
// non-HMAC algorithms fingerprint secret||payload; this is a closed-form
// deliberately simple envelope, see spec §1 non-goals (no security
// envelope cryptography beyond key-identifier plumbing).
func Fingerprint(key Key, payload []byte) ([]byte, error) {
	h, err := newHash(key.Algorithm, key.Secret)
	if err != nil {
		return nil, err
	}
	switch key.Algorithm {
	case AlgorithmHMACSHA1, AlgorithmHMACSHA256:
		h.Write(payload)
	default:
		h.Write(key.Secret)
		h.Write(payload)
	}
	return h.Sum(nil), nil
}

// Envelope is the authentication envelope that may precede a LIE payload.
type Envelope struct {
	ActiveKeyID uint32
	Fingerprint []byte
}

// Verify reports whether the envelope's fingerprint verifies under any of
// the accept keys for payload. A codec calling this with a nil/empty
// accept-key set and a present envelope must refuse to decode per spec §3.
func (e *Envelope) Verify(payload []byte, acceptKeys map[uint32]Key) bool {
	if e == nil {
		return true
	}
	key, ok := acceptKeys[e.ActiveKeyID]
	if !ok {
		return false
	}
	want, err := Fingerprint(key, payload)
	if err != nil {
		return false
	}
	return hmac.Equal(want, e.Fingerprint)
}
