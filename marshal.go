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

// Marshal encodes this message.
//
// Known fields, including extensions, are written in ascending tag order,
// followed by unknown fields exactly as they were read. Map entries are
// written in key order, so the encoding is deterministic.
//
// Returns an [*UninitializedMessageError] if required fields are missing,
// unless [WithAllowPartialMarshal] is set.
func (m *Message) Marshal(options ...MarshalOption) ([]byte, error) {
	return m.AppendMarshal(nil, options...)
}

// AppendMarshal is like [Message.Marshal], but appends to b.
func (m *Message) AppendMarshal(b []byte, options ...MarshalOption) ([]byte, error) {
	var opts marshalOptions
	for _, o := range options {
		o.apply(&opts)
	}
	if !opts.allowPartial {
		if err := m.CheckInitialized(); err != nil {
			return b, err
		}
	}
	return m.appendTo(b)
}

func (m *Message) appendTo(b []byte) ([]byte, error) {
	for _, o := range m.info.typ.oneofs {
		set := 0
		for _, f := range o.fields {
			if _, ok := m.values[f.tag]; ok {
				set++
			}
		}
		if set > 1 {
			return b, wire.NewError(wire.ErrorOneOf, len(b))
		}
	}

	var err error
	for _, fi := range m.info.fields {
		v, ok := m.lookup(fi)
		if !ok {
			continue
		}
		if b, err = fi.appendField(b, v); err != nil {
			return b, err
		}
	}
	for _, u := range m.unknown {
		b = append(b, u.Raw...)
	}
	return b, nil
}

func (fi *fieldInfo) appendField(b []byte, v any) ([]byte, error) {
	num := protowire.Number(fi.field.tag)
	switch {
	case fi.isMap:
		entries := v.(map[any]any) //nolint:errcheck
		for _, k := range sortedKeys(entries) {
			entry := protowire.AppendTag(nil, 1, fi.keyCodec.wireType)
			entry = fi.keyCodec.append(entry, k)
			entry, err := fi.appendValue(entry, 2, entries[k])
			if err != nil {
				return b, err
			}
			b = protowire.AppendTag(b, num, protowire.BytesType)
			b = protowire.AppendBytes(b, entry)
		}
		return b, nil

	case fi.repeated:
		list := v.([]any) //nolint:errcheck
		if fi.packed && len(list) > 0 {
			var packed []byte
			for _, item := range list {
				packed = fi.codec.append(packed, item)
			}
			b = protowire.AppendTag(b, num, protowire.BytesType)
			return protowire.AppendBytes(b, packed), nil
		}
		var err error
		for _, item := range list {
			if b, err = fi.appendValue(b, num, item); err != nil {
				return b, err
			}
		}
		return b, nil

	default:
		if !fi.field.HasPresence() && isZero(v) {
			return b, nil
		}
		return fi.appendValue(b, num, v)
	}
}

// appendValue appends a single tagged value.
func (fi *fieldInfo) appendValue(b []byte, num protowire.Number, v any) ([]byte, error) {
	switch fi.kind {
	case KindMessage:
		sub, err := v.(*Message).appendTo(nil) //nolint:errcheck
		if err != nil {
			return b, err
		}
		b = protowire.AppendTag(b, num, protowire.BytesType)
		return protowire.AppendBytes(b, sub), nil

	case KindGroup:
		var err error
		b = protowire.AppendTag(b, num, protowire.StartGroupType)
		if b, err = v.(*Message).appendTo(b); err != nil { //nolint:errcheck
			return b, err
		}
		return protowire.AppendTag(b, num, protowire.EndGroupType), nil

	default:
		b = protowire.AppendTag(b, num, fi.codec.wireType)
		return fi.codec.append(b, v), nil
	}
}
