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

package protoschema

import (
	"google.golang.org/protobuf/encoding/protowire"

	"buf.build/go/protoschema/internal/wire"
)

// UnknownField is a field that was not recognized while unmarshaling.
type UnknownField struct {
	Number protowire.Number
	Type   protowire.Type
	// Raw is the field's tag and value, exactly as they were read.
	Raw []byte
}

// Value decodes this field's value: a uint64 for varints and fixed64s, a
// uint32 for fixed32s, and a []byte for length-delimited values and the
// contents of groups.
func (u UnknownField) Value() (any, error) {
	_, _, n := protowire.ConsumeTag(u.Raw)
	if n < 0 {
		return nil, wire.NewError(wire.ErrorTruncated, 0)
	}
	payload := u.Raw[n:]

	var (
		v any
		m int
	)
	switch u.Type {
	case protowire.VarintType:
		v, m = protowire.ConsumeVarint(payload)
	case protowire.Fixed32Type:
		v, m = protowire.ConsumeFixed32(payload)
	case protowire.Fixed64Type:
		v, m = protowire.ConsumeFixed64(payload)
	case protowire.BytesType:
		v, m = protowire.ConsumeBytes(payload)
	case protowire.StartGroupType:
		v, m = protowire.ConsumeGroup(u.Number, payload)
	default:
		return nil, wire.NewError(wire.ErrorReserved, 0)
	}
	if m < 0 {
		return nil, wire.NewError(wire.ErrorTruncated, n)
	}
	return v, nil
}

// UnknownFields is a list of unknown fields, in the order they were read.
type UnknownFields []UnknownField

// Bytes returns the concatenated encoding of these fields.
func (u UnknownFields) Bytes() []byte {
	var b []byte
	for _, f := range u {
		b = append(b, f.Raw...)
	}
	return b
}

// Find returns the unknown fields with the given number.
func (u UnknownFields) Find(n protowire.Number) UnknownFields {
	var out UnknownFields
	for _, f := range u {
		if f.Number == n {
			out = append(out, f)
		}
	}
	return out
}
