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
	"cmp"
	"fmt"
	"iter"
	"math"
	"slices"

	"github.com/protocolbuffers/protoscope"
)

// Message is a dynamic message value of a type compiled into an [Adapter].
//
// Fields are addressed by name; extension fields by their qualified name,
// such as "foo.my_extension". Values use the following Go types:
//
//   - int32, sint32, sfixed32, and enums: int32.
//   - int64, sint64, sfixed64: int64.
//   - uint32, fixed32: uint32.
//   - uint64, fixed64: uint64.
//   - float: float32; double: float64.
//   - bool, string, and bytes: bool, string, and []byte.
//   - Messages and groups: *Message.
//   - Repeated fields: []any; map fields: map[any]any.
//
// A Message is not safe for concurrent mutation.
type Message struct {
	info    *messageInfo
	values  map[int32]any
	exts    map[extKey]any
	unknown UnknownFields
}

// extKey identifies an extension value: the type it extends, and its tag.
type extKey struct {
	typ ProtoType
	tag int32
}

// NewMessage returns a new, empty message of the adapter's type.
func NewMessage(adapter *Adapter) *Message {
	return adapter.New()
}

func newMessage(info *messageInfo) *Message {
	return &Message{info: info}
}

// Type returns this message's type.
func (m *Message) Type() *MessageType {
	return m.info.typ
}

func (m *Message) lookup(fi *fieldInfo) (any, bool) {
	if fi.field.IsExtension() {
		v, ok := m.exts[extKey{m.info.typ.typ, fi.field.tag}]
		return v, ok
	}
	v, ok := m.values[fi.field.tag]
	return v, ok
}

func (m *Message) store(fi *fieldInfo, v any) {
	if fi.field.IsExtension() {
		if m.exts == nil {
			m.exts = make(map[extKey]any)
		}
		m.exts[extKey{m.info.typ.typ, fi.field.tag}] = v
		return
	}
	if m.values == nil {
		m.values = make(map[int32]any)
	}
	m.values[fi.field.tag] = v
}

func (m *Message) remove(fi *fieldInfo) {
	if fi.field.IsExtension() {
		delete(m.exts, extKey{m.info.typ.typ, fi.field.tag})
		return
	}
	delete(m.values, fi.field.tag)
}

// clearOneOf clears every other member of fi's oneof.
func (m *Message) clearOneOf(fi *fieldInfo) {
	o := fi.field.oneof
	if o == nil {
		return
	}
	for _, f := range o.fields {
		if f != fi.field {
			delete(m.values, f.tag)
		}
	}
}

func (m *Message) fieldOrErr(name string) (*fieldInfo, error) {
	fi := m.info.field(name)
	if fi == nil {
		return nil, fmt.Errorf("protoschema: %s has no field %q", m.info.typ.typ, name)
	}
	return fi, nil
}

// Has returns whether a field is set. Repeated and map fields are set if
// they are not empty.
func (m *Message) Has(name string) bool {
	fi := m.info.field(name)
	if fi == nil {
		return false
	}
	_, ok := m.lookup(fi)
	return ok
}

// Get returns the value of a field. Unset scalar fields return their
// default value; unset message, repeated, and map fields return nil.
func (m *Message) Get(name string) any {
	fi := m.info.field(name)
	if fi == nil {
		return nil
	}
	if v, ok := m.lookup(fi); ok {
		return v
	}
	if b, ok := fi.def.([]byte); ok {
		return bytes.Clone(b)
	}
	return fi.def
}

// Set sets the value of a field. Setting nil clears the field.
//
// Setting a oneof member clears the other members of its oneof. Setting a
// field without presence to its zero value clears it.
func (m *Message) Set(name string, v any) error {
	fi, err := m.fieldOrErr(name)
	if err != nil {
		return err
	}
	if v == nil {
		m.remove(fi)
		return nil
	}

	switch {
	case fi.isMap:
		entries, ok := v.(map[any]any)
		if !ok {
			return fi.mismatch(v)
		}
		out := make(map[any]any, len(entries))
		for k, v := range entries {
			ck, cv, err := fi.coerceEntry(k, v)
			if err != nil {
				return err
			}
			out[ck] = cv
		}
		if len(out) == 0 {
			m.remove(fi)
			return nil
		}
		m.store(fi, out)

	case fi.repeated:
		list, ok := v.([]any)
		if !ok {
			return fi.mismatch(v)
		}
		out := make([]any, len(list))
		for i, v := range list {
			if out[i], err = fi.coerce(v); err != nil {
				return err
			}
		}
		if len(out) == 0 {
			m.remove(fi)
			return nil
		}
		m.store(fi, out)

	default:
		cv, err := fi.coerce(v)
		if err != nil {
			return err
		}
		if !fi.field.HasPresence() && isZero(cv) {
			m.remove(fi)
			return nil
		}
		m.clearOneOf(fi)
		m.store(fi, cv)
	}
	return nil
}

// Clear clears a field.
func (m *Message) Clear(name string) {
	if fi := m.info.field(name); fi != nil {
		m.remove(fi)
	}
}

// Append appends a value to a repeated field.
func (m *Message) Append(name string, v any) error {
	fi, err := m.fieldOrErr(name)
	if err != nil {
		return err
	}
	if !fi.repeated {
		return fmt.Errorf("protoschema: %s is not a repeated field", fi.field.Member())
	}
	cv, err := fi.coerce(v)
	if err != nil {
		return err
	}
	list, _ := m.lookup(fi)
	l, _ := list.([]any)
	m.store(fi, append(l, cv))
	return nil
}

// PutEntry sets a single entry of a map field.
func (m *Message) PutEntry(name string, key, value any) error {
	fi, err := m.fieldOrErr(name)
	if err != nil {
		return err
	}
	if !fi.isMap {
		return fmt.Errorf("protoschema: %s is not a map field", fi.field.Member())
	}
	ck, cv, err := fi.coerceEntry(key, value)
	if err != nil {
		return err
	}
	v, _ := m.lookup(fi)
	entries, _ := v.(map[any]any)
	if entries == nil {
		entries = make(map[any]any)
		m.store(fi, entries)
	}
	entries[ck] = cv
	return nil
}

// Mutable returns the value of a singular message field, setting it to an
// empty message first if it is not set. Returns nil if name is not a
// singular message field.
func (m *Message) Mutable(name string) *Message {
	fi := m.info.field(name)
	if fi == nil || fi.msg == nil || fi.repeated || fi.isMap {
		return nil
	}
	if v, ok := m.lookup(fi); ok {
		return v.(*Message) //nolint:errcheck
	}
	sub := newMessage(fi.msg)
	m.clearOneOf(fi)
	m.store(fi, sub)
	return sub
}

// NewField returns a new, empty message of the type of a message field, or
// of the values of a map field, suitable for [Message.Set],
// [Message.Append], or [Message.PutEntry]. Returns nil if name is not such
// a field.
func (m *Message) NewField(name string) *Message {
	fi := m.info.field(name)
	if fi == nil || fi.msg == nil {
		return nil
	}
	return newMessage(fi.msg)
}

// WhichOneOf returns the name of the member of the named oneof that is set,
// or "" if none is.
func (m *Message) WhichOneOf(oneof string) string {
	for _, o := range m.info.typ.oneofs {
		if o.name != oneof {
			continue
		}
		for _, f := range o.fields {
			if _, ok := m.values[f.tag]; ok {
				return f.name
			}
		}
	}
	return ""
}

func (m *Message) extension(name string) (*fieldInfo, error) {
	fi := m.info.exts[name]
	if fi == nil {
		return nil, fmt.Errorf("protoschema: %s is not an extension of %s", name, m.info.typ.typ)
	}
	return fi, nil
}

// SetExtension sets an extension field, by qualified name.
func (m *Message) SetExtension(name string, v any) error {
	if _, err := m.extension(name); err != nil {
		return err
	}
	return m.Set(name, v)
}

// GetExtension returns the value of an extension field, by qualified name.
func (m *Message) GetExtension(name string) any {
	if _, err := m.extension(name); err != nil {
		return nil
	}
	return m.Get(name)
}

// HasExtension returns whether an extension field is set.
func (m *Message) HasExtension(name string) bool {
	fi, err := m.extension(name)
	if err != nil {
		return false
	}
	_, ok := m.lookup(fi)
	return ok
}

// ClearExtension clears an extension field.
func (m *Message) ClearExtension(name string) {
	if fi, err := m.extension(name); err == nil {
		m.remove(fi)
	}
}

// Unknown returns the fields that were not recognized while unmarshaling, in
// the order they were encountered.
func (m *Message) Unknown() UnknownFields {
	return m.unknown
}

// DiscardUnknown removes unknown fields from this message, and every
// message it contains.
func (m *Message) DiscardUnknown() {
	m.unknown = nil
	for _, v := range m.All() {
		forEachMessage(v, (*Message).DiscardUnknown)
	}
}

// All ranges over the fields of this message that are set, in tag order.
func (m *Message) All() iter.Seq2[*Field, any] {
	return func(yield func(*Field, any) bool) {
		for _, fi := range m.info.fields {
			v, ok := m.lookup(fi)
			if ok && !yield(fi.field, v) {
				return
			}
		}
	}
}

// Clone returns a deep copy of this message.
func (m *Message) Clone() *Message {
	out := newMessage(m.info)
	for _, fi := range m.info.fields {
		if v, ok := m.lookup(fi); ok {
			out.store(fi, cloneValue(v))
		}
	}
	for _, u := range m.unknown {
		u.Raw = bytes.Clone(u.Raw)
		out.unknown = append(out.unknown, u)
	}
	return out
}

// Equal returns whether two messages are of the same type and have equal
// fields and unknown fields. NaN compares equal to itself.
func (m *Message) Equal(other *Message) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.info.typ.typ != other.info.typ.typ {
		return false
	}
	for _, fi := range m.info.fields {
		a, ok1 := m.lookup(fi)
		ofi := other.info.byTag[fi.field.tag]
		if ofi == nil {
			return false
		}
		b, ok2 := other.lookup(ofi)
		if ok1 != ok2 || (ok1 && !valuesEqual(a, b)) {
			return false
		}
	}
	return bytes.Equal(m.unknown.Bytes(), other.unknown.Bytes())
}

// String renders this message's encoding in the protoscope language.
func (m *Message) String() string {
	b, err := m.appendTo(nil)
	if err != nil {
		return fmt.Sprintf("<%v: %v>", m.info.typ.typ, err)
	}
	return protoscope.Write(b, protoscope.WriterOptions{})
}

// CheckInitialized returns an [*UninitializedMessageError] if any required
// field of this message, or of a message it contains, is not set.
func (m *Message) CheckInitialized() error {
	var missing []string
	m.collectMissing("", &missing)
	if len(missing) > 0 {
		return &UninitializedMessageError{Type: m.info.typ.typ, Missing: missing}
	}
	return nil
}

func (m *Message) collectMissing(prefix string, out *[]string) {
	if !m.info.hasRequired {
		return
	}
	for _, fi := range m.info.fields {
		name := prefix + fi.displayName()
		v, ok := m.lookup(fi)
		if !ok {
			if fi.field.IsRequired() {
				*out = append(*out, name)
			}
			continue
		}
		if fi.msg == nil || !fi.msg.hasRequired {
			continue
		}

		switch v := v.(type) {
		case *Message:
			v.collectMissing(name+".", out)
		case []any:
			for i, item := range v {
				item.(*Message).collectMissing(fmt.Sprintf("%s[%d].", name, i), out) //nolint:errcheck
			}
		case map[any]any:
			for _, k := range sortedKeys(v) {
				v[k].(*Message).collectMissing(fmt.Sprintf("%s[%v].", name, k), out) //nolint:errcheck
			}
		}
	}
}

func (fi *fieldInfo) displayName() string {
	if fi.field.IsExtension() {
		return "(" + fi.field.QualifiedName() + ")"
	}
	return fi.field.name
}

func (fi *fieldInfo) mismatch(v any) error {
	return fmt.Errorf("protoschema: cannot assign %T to %s of type %v", v, fi.field.Member(), fi.field.typ)
}

// coerce converts a single value, or an element of a repeated field.
func (fi *fieldInfo) coerce(v any) (any, error) {
	if fi.msg != nil {
		sub, ok := v.(*Message)
		if !ok || sub == nil || sub.info.typ.typ != fi.msg.typ.typ {
			return nil, fi.mismatch(v)
		}
		return sub, nil
	}

	cv, ok := fi.codec.coerce(v)
	if !ok {
		return nil, fi.mismatch(v)
	}
	if fi.enum != nil && fi.enum.IsClosed() && fi.enum.ConstantByNumber(cv.(int32)) == nil { //nolint:errcheck
		return nil, fmt.Errorf("protoschema: %d is not a value of closed enum %v", cv, fi.enum.typ)
	}
	return cv, nil
}

func (fi *fieldInfo) coerceEntry(k, v any) (any, any, error) {
	ck, ok := fi.keyCodec.coerce(k)
	if !ok {
		return nil, nil, fmt.Errorf("protoschema: cannot use %T as a key of %s", k, fi.field.Member())
	}
	cv, err := fi.coerce(v)
	return ck, cv, err
}

// forEachMessage calls f on every message in a field value.
func forEachMessage(v any, f func(*Message)) {
	switch v := v.(type) {
	case *Message:
		f(v)
	case []any:
		for _, item := range v {
			forEachMessage(item, f)
		}
	case map[any]any:
		for _, item := range v {
			forEachMessage(item, f)
		}
	}
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case *Message:
		return v.Clone()
	case []byte:
		return bytes.Clone(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(v))
		for k, item := range v {
			out[k] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func valuesEqual(a, b any) bool {
	switch a := a.(type) {
	case *Message:
		b, ok := b.(*Message)
		return ok && a.Equal(b)
	case []byte:
		b, ok := b.([]byte)
		return ok && bytes.Equal(a, b)
	case float32:
		b, ok := b.(float32)
		return ok && (a == b || math.IsNaN(float64(a)) && math.IsNaN(float64(b)))
	case float64:
		b, ok := b.(float64)
		return ok && (a == b || math.IsNaN(a) && math.IsNaN(b))
	case []any:
		b, ok := b.([]any)
		return ok && slices.EqualFunc(a, b, valuesEqual)
	case map[any]any:
		b, ok := b.(map[any]any)
		if !ok || len(a) != len(b) {
			return false
		}
		for k, va := range a {
			vb, ok := b[k]
			if !ok || !valuesEqual(va, vb) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// sortedKeys returns the keys of a map field value in encoding order.
func sortedKeys(m map[any]any) []any {
	keys := make([]any, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

func compareKeys(a, b any) int {
	switch a := a.(type) {
	case bool:
		b := b.(bool) //nolint:errcheck
		switch {
		case a == b:
			return 0
		case !a:
			return -1
		default:
			return 1
		}
	case int32:
		return cmp.Compare(a, b.(int32)) //nolint:errcheck
	case int64:
		return cmp.Compare(a, b.(int64)) //nolint:errcheck
	case uint32:
		return cmp.Compare(a, b.(uint32)) //nolint:errcheck
	case uint64:
		return cmp.Compare(a, b.(uint64)) //nolint:errcheck
	case string:
		return cmp.Compare(a, b.(string)) //nolint:errcheck
	}
	return 0
}
