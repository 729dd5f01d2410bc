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

import "github.com/cespare/xxhash"

// DeliveryFingerprint is a fast, non-cryptographic hash of a raw LIE
// datagram, used only to recognize a datagram byte-identical to the
// previous one from the same sender after it has been decoded and
// authenticated. It is never used for authentication.
func DeliveryFingerprint(raw []byte) uint64 {
	return xxhash.Sum64(raw)
}
