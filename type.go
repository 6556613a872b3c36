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
	"buf.build/go/protoschema/decl"
)

// Type is a linked message or enum type: either a [*MessageType] or an
// [*EnumType].
type Type interface {
	// ProtoType returns this type's identity.
	ProtoType() ProtoType
	Doc() string
	Location() decl.Location
	Options() *Options
	NestedTypes() []Type
	// File returns the file that declares this type.
	File() *ProtoFile

	isType()
}

// MessageType is a linked message type.
type MessageType struct {
	typ  ProtoType
	file *ProtoFile
	loc  decl.Location
	doc  string

	// Declared fields followed by oneof members.
	fields  []*Field
	byName  map[string]*Field
	byTag   map[int32]*Field
	oneofs  []*OneOf
	nested  []Type
	extends []*Extend

	extRanges []decl.Range
	reserved  decl.Reserved
	options   *Options

	// Set when pruning kept this type only because a nested type was kept.
	enclosingOnly bool
}

func (m *MessageType) ProtoType() ProtoType    { return m.typ }
func (m *MessageType) Doc() string             { return m.doc }
func (m *MessageType) Location() decl.Location { return m.loc }
func (m *MessageType) Options() *Options       { return m.options }
func (m *MessageType) NestedTypes() []Type     { return m.nested }
func (m *MessageType) File() *ProtoFile        { return m.file }
func (*MessageType) isType()                   {}

// Fields returns this message's fields, including oneof members, in
// declaration order. Extension fields are not included; see
// [Schema.Extensions].
func (m *MessageType) Fields() []*Field { return m.fields }

// Field returns the field with the given name, or nil.
func (m *MessageType) Field(name string) *Field { return m.byName[name] }

// FieldByTag returns the field with the given tag, or nil.
func (m *MessageType) FieldByTag(tag int32) *Field { return m.byTag[tag] }

// OneOfs returns this message's oneofs.
func (m *MessageType) OneOfs() []*OneOf { return m.oneofs }

// Extends returns the extend blocks nested in this message.
func (m *MessageType) Extends() []*Extend { return m.extends }

// ExtensionRanges returns the inclusive ranges of tags that extensions may
// use.
func (m *MessageType) ExtensionRanges() []decl.Range { return m.extRanges }

// Reserved returns this message's reserved tags and names.
func (m *MessageType) Reserved() decl.Reserved { return m.reserved }

// IsEnclosingOnly returns whether this type was kept by pruning only to
// hold a nested type, in which case it has no fields.
func (m *MessageType) IsEnclosingOnly() bool { return m.enclosingOnly }

// String implements [fmt.Stringer].
func (m *MessageType) String() string { return m.typ.String() }

// InExtensionRange returns whether tag falls in one of this message's
// extension ranges.
func (m *MessageType) InExtensionRange(tag int32) bool {
	for _, r := range m.extRanges {
		if r.Contains(tag) {
			return true
		}
	}
	return false
}

func (m *MessageType) index() {
	m.byName = make(map[string]*Field, len(m.fields))
	m.byTag = make(map[int32]*Field, len(m.fields))
	for _, f := range m.fields {
		m.byName[f.name] = f
		m.byTag[f.tag] = f
	}
}

// EnumType is a linked enum type.
type EnumType struct {
	typ  ProtoType
	file *ProtoFile
	loc  decl.Location
	doc  string

	constants  []*EnumConstant
	reserved   decl.Reserved
	options    *Options
	allowAlias bool
}

func (e *EnumType) ProtoType() ProtoType    { return e.typ }
func (e *EnumType) Doc() string             { return e.doc }
func (e *EnumType) Location() decl.Location { return e.loc }
func (e *EnumType) Options() *Options       { return e.options }
func (e *EnumType) NestedTypes() []Type     { return nil }
func (e *EnumType) File() *ProtoFile        { return e.file }
func (*EnumType) isType()                   {}

// Constants returns this enum's constants in declaration order.
func (e *EnumType) Constants() []*EnumConstant { return e.constants }

// Constant returns the constant with the given name, or nil.
func (e *EnumType) Constant(name string) *EnumConstant {
	for _, c := range e.constants {
		if c.name == name {
			return c
		}
	}
	return nil
}

// ConstantByNumber returns the first constant with the given number, or nil.
func (e *EnumType) ConstantByNumber(n int32) *EnumConstant {
	for _, c := range e.constants {
		if c.number == n {
			return c
		}
	}
	return nil
}

// AllowAlias returns whether several constants may share a number.
func (e *EnumType) AllowAlias() bool { return e.allowAlias }

// IsClosed returns whether this enum rejects unknown values, which is the
// case for enums declared in proto2 files. Unknown values of closed enums
// are decoded as unknown fields.
func (e *EnumType) IsClosed() bool { return e.file.syntax == decl.Proto2 }

// Reserved returns this enum's reserved numbers and names.
func (e *EnumType) Reserved() decl.Reserved { return e.reserved }

// String implements [fmt.Stringer].
func (e *EnumType) String() string { return e.typ.String() }

// EnumConstant is a single value of an [EnumType].
type EnumConstant struct {
	enum    *EnumType
	loc     decl.Location
	name    string
	number  int32
	doc     string
	options *Options
}

func (c *EnumConstant) Enum() *EnumType         { return c.enum }
func (c *EnumConstant) Name() string            { return c.name }
func (c *EnumConstant) Number() int32           { return c.number }
func (c *EnumConstant) Doc() string             { return c.doc }
func (c *EnumConstant) Location() decl.Location { return c.loc }
func (c *EnumConstant) Options() *Options       { return c.options }

// Member returns this constant's member identifier, such as "foo.Kind#BAR".
func (c *EnumConstant) Member() string { return c.enum.typ.Member(c.name) }

// String implements [fmt.Stringer].
func (c *EnumConstant) String() string { return c.name }

// OneOf is a group of mutually exclusive fields.
type OneOf struct {
	parent  *MessageType
	loc     decl.Location
	name    string
	doc     string
	fields  []*Field
	options *Options
}

func (o *OneOf) Name() string            { return o.name }
func (o *OneOf) Doc() string             { return o.doc }
func (o *OneOf) Location() decl.Location { return o.loc }
func (o *OneOf) Fields() []*Field        { return o.fields }
func (o *OneOf) Options() *Options       { return o.options }

// Parent returns the message this oneof belongs to.
func (o *OneOf) Parent() *MessageType { return o.parent }
