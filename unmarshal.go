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
	"bytes"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"buf.build/go/protoschema/internal/wire"
)

// Unmarshal replaces the contents of this message with the decoding of
// data.
//
// Fields with unknown tags, or whose wire type does not match their
// declaration, are kept as unknown fields, as are values of closed enums
// that the enum does not declare. Packable fields accept both packed and
// unpacked encodings.
//
// Malformed input fails with a [*ParseError], and missing required fields
// with an [*UninitializedMessageError] unless [WithAllowPartial] is set.
func (m *Message) Unmarshal(data []byte, options ...UnmarshalOption) error {
	opts := unmarshalOptions{maxDepth: wire.DefaultMaxDepth}
	for _, o := range options {
		o.apply(&opts)
	}

	m.values, m.exts, m.unknown = nil, nil, nil
	d := &decoder{r: wire.NewReader(data, opts.maxDepth), opts: opts}
	if err := d.message(m, 0); err != nil {
		return err
	}
	if !opts.allowPartial {
		return m.CheckInitialized()
	}
	return nil
}

type decoder struct {
	r    *wire.Reader
	opts unmarshalOptions
}

// message decodes fields into m until the current end marker, or until the
// end-group tag for group if it is nonzero.
func (d *decoder) message(m *Message, group protowire.Number) error {
	for !d.r.Done() {
		start := d.r.Offset()
		num, wt, err := d.r.Tag()
		if err != nil {
			return err
		}
		if wt == protowire.EndGroupType {
			if num != group {
				return wire.NewError(wire.ErrorEndGroup, start)
			}
			return nil
		}

		fi := m.info.byTag[int32(num)]
		if fi == nil || !fi.accepts(wt) {
			if err := d.skip(m, start, num, wt); err != nil {
				return err
			}
			continue
		}
		if err := d.field(m, fi, wt, start); err != nil {
			return err
		}
	}

	if group != 0 {
		return wire.NewError(wire.ErrorTruncated, d.r.Offset())
	}
	return nil
}

// accepts returns whether a value of wire type wt can be decoded into this
// field.
func (fi *fieldInfo) accepts(wt protowire.Type) bool {
	switch {
	case fi.isMap:
		return wt == protowire.BytesType
	case fi.repeated && fi.codec.packable && wt == protowire.BytesType:
		return true
	default:
		return wt == fi.codec.wireType
	}
}

// skip consumes a value and records it as an unknown field.
func (d *decoder) skip(m *Message, start int, num protowire.Number, wt protowire.Type) error {
	if err := d.r.Skip(num, wt); err != nil {
		return err
	}
	d.addUnknown(m, num, wt, d.r.Raw(start))
	return nil
}

func (d *decoder) addUnknown(m *Message, num protowire.Number, wt protowire.Type, raw []byte) {
	if d.opts.discardUnknown {
		return
	}
	m.unknown = append(m.unknown, UnknownField{Number: num, Type: wt, Raw: bytes.Clone(raw)})
}

func (d *decoder) field(m *Message, fi *fieldInfo, wt protowire.Type, start int) error {
	num := protowire.Number(fi.field.tag)
	switch {
	case fi.isMap:
		return d.mapEntry(m, fi, start)

	case fi.kind == KindMessage || fi.kind == KindGroup:
		var sub *Message
		if !fi.repeated {
			if v, ok := m.lookup(fi); ok {
				sub = v.(*Message) //nolint:errcheck
			}
		}
		if sub == nil {
			sub = newMessage(fi.msg)
		}
		if err := d.submessage(sub, fi.kind, num); err != nil {
			return err
		}
		if fi.repeated {
			d.append(m, fi, sub)
		} else {
			m.clearOneOf(fi)
			m.store(fi, sub)
		}
		return nil

	case fi.repeated && fi.codec.packable && wt == protowire.BytesType:
		if err := d.r.Push(); err != nil {
			return err
		}
		for !d.r.Done() {
			v, err := fi.codec.consume(d.r)
			if err != nil {
				return err
			}
			if !fi.knownEnumValue(v) {
				raw := protowire.AppendTag(nil, num, protowire.VarintType)
				raw = protowire.AppendVarint(raw, uint64(int64(v.(int32)))) //nolint:errcheck
				d.addUnknown(m, num, protowire.VarintType, raw)
				continue
			}
			d.append(m, fi, v)
		}
		return d.r.Pop()
	}

	v, err := fi.codec.consume(d.r)
	if err != nil {
		return err
	}
	if err := d.checkUTF8(fi, v, start); err != nil {
		return err
	}
	if !fi.knownEnumValue(v) {
		d.addUnknown(m, num, wt, d.r.Raw(start))
		return nil
	}

	switch {
	case fi.repeated:
		d.append(m, fi, v)
	case !fi.field.HasPresence() && isZero(v):
		m.remove(fi)
	default:
		m.clearOneOf(fi)
		m.store(fi, v)
	}
	return nil
}

// submessage decodes a length-prefixed message, or a group whose start tag
// has been read.
func (d *decoder) submessage(sub *Message, kind Kind, num protowire.Number) error {
	if err := d.r.Descend(); err != nil {
		return err
	}
	defer d.r.Ascend()

	if kind == KindGroup {
		return d.message(sub, num)
	}
	if err := d.r.Push(); err != nil {
		return err
	}
	if err := d.message(sub, 0); err != nil {
		return err
	}
	return d.r.Pop()
}

func (d *decoder) mapEntry(m *Message, fi *fieldInfo, start int) error {
	if err := d.r.Push(); err != nil {
		return err
	}

	key := fi.keyCodec.zero
	var value any
	if fi.msg == nil {
		value = fi.codec.zero
	}
	for !d.r.Done() {
		fieldStart := d.r.Offset()
		num, wt, err := d.r.Tag()
		if err != nil {
			return err
		}

		switch {
		case num == 1 && wt == fi.keyCodec.wireType:
			if key, err = fi.keyCodec.consume(d.r); err != nil {
				return err
			}
			if err := d.checkUTF8(fi, key, fieldStart); err != nil {
				return err
			}
		case num == 2 && fi.msg != nil && wt == protowire.BytesType:
			sub, _ := value.(*Message)
			if sub == nil {
				sub = newMessage(fi.msg)
			}
			if err := d.submessage(sub, KindMessage, 2); err != nil {
				return err
			}
			value = sub
		case num == 2 && fi.msg == nil && wt == fi.codec.wireType:
			if value, err = fi.codec.consume(d.r); err != nil {
				return err
			}
			if err := d.checkUTF8(fi, value, fieldStart); err != nil {
				return err
			}
		default:
			if err := d.r.Skip(num, wt); err != nil {
				return err
			}
		}
	}
	if err := d.r.Pop(); err != nil {
		return err
	}

	if value == nil {
		value = newMessage(fi.msg)
	}
	if !fi.knownEnumValue(value) {
		d.addUnknown(m, protowire.Number(fi.field.tag), protowire.BytesType, d.r.Raw(start))
		return nil
	}

	v, _ := m.lookup(fi)
	entries, _ := v.(map[any]any)
	if entries == nil {
		entries = make(map[any]any)
		m.store(fi, entries)
	}
	entries[key] = value
	return nil
}

func (d *decoder) append(m *Message, fi *fieldInfo, v any) {
	list, _ := m.lookup(fi)
	l, _ := list.([]any)
	m.store(fi, append(l, v))
}

// knownEnumValue returns false for values of closed enums that the enum
// does not declare.
func (fi *fieldInfo) knownEnumValue(v any) bool {
	if fi.enum == nil || !fi.enum.IsClosed() {
		return true
	}
	n, ok := v.(int32)
	return !ok || fi.enum.ConstantByNumber(n) != nil
}

func (d *decoder) checkUTF8(fi *fieldInfo, v any, offset int) error {
	if !fi.validateUTF8 {
		return nil
	}
	return d.checkString(v, offset)
}

func (d *decoder) checkString(v any, offset int) error {
	s, ok := v.(string)
	if !ok || d.opts.allowInvalidUTF8 || utf8.ValidString(s) {
		return nil
	}
	return wire.NewError(wire.ErrorUTF8, offset)
}
