// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package zigzag implements the zigzag transform used by sint32 and sint64.
package zigzag

import (
	"unsafe"

	"google.golang.org/protobuf/encoding/protowire"
)

// Signed is a signed integer type that has a zigzag encoding.
type Signed interface {
	~int32 | ~int64
}

// Encode zigzag-encodes a value of any width, producing the varint payload.
//
// The shift uses the width of T, so that int32(-1) encodes to 1 rather than
// to a sign-extended 64-bit value.
func Encode[T Signed](n T) uint64 {
	bits := unsafe.Sizeof(n) * 8
	u := uint64((n << 1) ^ (n >> (bits - 1)))
	u &= (1 << bits) - 1

	return u
}

// Decode decodes a zigzag-encoded varint payload into a value of any width.
//
// Calling DecodeZigZag does not work correctly when sign extension is involved.
func Decode[T Signed](raw uint64) T {
	var z T
	raw &= (1 << (unsafe.Sizeof(z) * 8)) - 1

	return T(protowire.DecodeZigZag(raw))
}
