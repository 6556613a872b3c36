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

// Field is a linked field: either a field of a message, or an extension
// field declared in an extend block.
type Field struct {
	// The owning message type, or the extended type for extensions.
	declarer ProtoType
	parent   *MessageType
	extend   *Extend
	// The scope names are resolved in: the enclosing message, or the
	// package.
	scope  string
	syntax decl.Syntax

	loc      decl.Location
	doc      string
	name     string
	tag      int32
	label    decl.Label
	declType string
	typ      ProtoType
	// The named type of this field, or of a map field's values.
	elem  Type
	group bool

	def      string
	hasDef   bool
	jsonName string

	oneof   *OneOf
	options *Options

	packed, deprecated, redacted bool
}

// Name returns this field's simple name.
func (f *Field) Name() string { return f.name }

// QualifiedName returns this field's fully-qualified name. For extensions,
// this is the name the extension is referred to by, such as
// "foo.my_extension".
func (f *Field) QualifiedName() string {
	if f.extend != nil {
		if f.scope == "" {
			return f.name
		}
		return f.scope + "." + f.name
	}
	return f.declarer.String() + "." + f.name
}

// Member returns this field's member identifier, such as "foo.Bar#baz", or
// "foo.Bar#foo.my_extension" for extensions.
func (f *Field) Member() string {
	if f.extend != nil {
		return f.declarer.Member(f.QualifiedName())
	}
	return f.declarer.Member(f.name)
}

// Tag returns this field's number.
func (f *Field) Tag() int32 { return f.tag }

// Label returns this field's label.
func (f *Field) Label() decl.Label { return f.label }

// Type returns the resolved type of this field.
func (f *Field) Type() ProtoType { return f.typ }

// DeclaredType returns the type of this field, as written.
func (f *Field) DeclaredType() string { return f.declType }

// Declarer returns the message this field is a member of. For extensions,
// this is the extended type.
func (f *Field) Declarer() ProtoType { return f.declarer }

// Extend returns the extend block this field was declared in, or nil.
func (f *Field) Extend() *Extend { return f.extend }

// IsExtension returns whether this is an extension field.
func (f *Field) IsExtension() bool { return f.extend != nil }

// IsRepeated returns whether this field is repeated. Map fields are not
// considered repeated.
func (f *Field) IsRepeated() bool { return f.label == decl.LabelRepeated && !f.typ.IsMap() }

// IsMap returns whether this is a map field.
func (f *Field) IsMap() bool { return f.typ.IsMap() }

// IsRequired returns whether this field is required.
func (f *Field) IsRequired() bool { return f.label == decl.LabelRequired }

// IsGroup returns whether this field is encoded as a group.
func (f *Field) IsGroup() bool { return f.group }

// IsPackable returns whether this field may use packed encoding: it must be a
// repeated numeric scalar or enum.
func (f *Field) IsPackable() bool {
	return f.IsRepeated() && (isPackableScalar(f.typ) || f.enumType() != nil)
}

// IsPacked returns whether this field uses packed encoding. Packable fields
// in proto3 files are packed unless [packed = false] is set.
func (f *Field) IsPacked() bool { return f.packed }

// IsDeprecated returns whether this field is marked [deprecated = true].
func (f *Field) IsDeprecated() bool { return f.deprecated }

// IsRedacted returns whether this field carries an option extension named
// redacted that is set to true, such as [(squareup.redacted) = true].
func (f *Field) IsRedacted() bool { return f.redacted }

// HasPresence returns whether this field distinguishes being unset from
// holding its zero value.
func (f *Field) HasPresence() bool {
	switch {
	case f.label == decl.LabelRepeated:
		return false
	case f.label == decl.LabelImplicit:
		return f.isMessage()
	default:
		return true
	}
}

// Default returns this field's declared default value literal.
func (f *Field) Default() (string, bool) { return f.def, f.hasDef }

// JSONName returns this field's JSON name: either declared with
// [json_name = "..."], or derived from its name.
func (f *Field) JSONName() string {
	if f.jsonName != "" {
		return f.jsonName
	}
	return decl.DefaultJSONName(f.name)
}

// OneOf returns the oneof this field is a member of, or nil.
func (f *Field) OneOf() *OneOf { return f.oneof }

// Options returns this field's options.
func (f *Field) Options() *Options { return f.options }

// Doc returns this field's documentation.
func (f *Field) Doc() string { return f.doc }

// Location returns where this field is declared.
func (f *Field) Location() decl.Location { return f.loc }

// Syntax returns the syntax of the file this field is declared in.
func (f *Field) Syntax() decl.Syntax { return f.syntax }

// String implements [fmt.Stringer].
func (f *Field) String() string { return f.Member() }

// Elem returns the message or enum type of this field, or of its values
// if it is a map. Returns nil for scalars.
func (f *Field) Elem() Type { return f.elem }

func (f *Field) enumType() *EnumType {
	e, _ := f.elem.(*EnumType)
	return e
}

func (f *Field) isMessage() bool {
	_, ok := f.elem.(*MessageType)
	return ok && !f.typ.IsMap()
}

func isPackableScalar(t ProtoType) bool {
	return t.IsScalar() && t != String && t != Bytes
}
