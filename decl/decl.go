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

// Package decl contains the declaration model: plain values describing the
// contents of a single .proto file before any names are resolved.
//
// Values in this package are produced by [Parse] and [FromDescriptor], and
// are treated as immutable once returned. They may also be constructed by
// hand, which is how callers feed files into the linker without going
// through source text.
package decl

import (
	"fmt"
)

// Location is a position in a schema source file.
type Location struct {
	Path   string
	Line   int // 1-indexed; zero if unknown.
	Column int // 1-indexed; zero if unknown.
}

// At returns a copy of l at the given line and column.
func (l Location) At(line, column int) Location {
	l.Line, l.Column = line, column
	return l
}

// String implements [fmt.Stringer].
func (l Location) String() string {
	switch {
	case l.Line == 0:
		return l.Path
	case l.Column == 0:
		return fmt.Sprintf("%s:%d", l.Path, l.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", l.Path, l.Line, l.Column)
	}
}

// Syntax is the syntax level of a file.
type Syntax string

const (
	Proto2 Syntax = "proto2"
	Proto3 Syntax = "proto3"
)

// File is a parsed .proto file.
type File struct {
	Location Location

	// Path is the import path of this file, such as "foo/bar.proto".
	Path    string
	Package string
	Syntax  Syntax

	// Imports are the plain (and weak) imports; PublicImports are
	// re-exported to every file that imports this one.
	Imports       []string
	PublicImports []string

	Types    []Type
	Services []*Service
	Extends  []*Extend
	Options  []*Option
}

// Type is a message or enum declaration.
type Type interface {
	TypeName() string
	TypeLocation() Location
	NestedTypes() []Type

	isType()
}

// Message is a message declaration.
type Message struct {
	Location Location

	Name string
	Doc  string

	// Fields does not include oneof members, which are only listed in their
	// [OneOf].
	Fields []*Field
	OneOfs []*OneOf
	Nested []Type
	// Extends are extend blocks nested inside of this message.
	Extends []*Extend

	ExtensionRanges []Range
	Reserved        Reserved
	Options         []*Option
}

// Enum is an enum declaration.
type Enum struct {
	Location Location

	Name     string
	Doc      string
	Values   []*EnumValue
	Reserved Reserved
	Options  []*Option
}

// EnumValue is a single constant in an [Enum].
type EnumValue struct {
	Location Location

	Name    string
	Number  int32
	Doc     string
	Options []*Option
}

// Label is a field's cardinality.
type Label int

const (
	// LabelOptional is an explicit optional field: a proto2 optional field,
	// a proto3 optional field, or a oneof member.
	LabelOptional Label = iota
	LabelRequired
	LabelRepeated
	// LabelImplicit is a proto3 singular field with implicit presence.
	LabelImplicit
)

// String implements [fmt.Stringer].
func (l Label) String() string {
	switch l {
	case LabelOptional:
		return "optional"
	case LabelRequired:
		return "required"
	case LabelRepeated:
		return "repeated"
	case LabelImplicit:
		return "implicit"
	default:
		return fmt.Sprintf("Label(%d)", int(l))
	}
}

// Field is a field declaration, either in a message or in an extend block.
type Field struct {
	Location Location

	Label Label
	// Type is the declared type, exactly as written: a scalar name, a
	// possibly-qualified type name, or "map<K, V>".
	Type string
	Name string
	Tag  int32

	// Default is the literal default value, type-checked at use time.
	Default    string
	HasDefault bool
	JSONName   string

	Doc     string
	Options []*Option

	// Group is set for proto2 group fields, whose Type names the nested
	// message that holds the group's fields.
	Group bool
}

// OneOf is a oneof declaration.
type OneOf struct {
	Location Location

	Name    string
	Doc     string
	Fields  []*Field
	Options []*Option
}

// Extend is an extend block.
type Extend struct {
	Location Location

	// Name is the extended type's name, as written.
	Name   string
	Doc    string
	Fields []*Field
}

// Service is a service declaration.
type Service struct {
	Location Location

	Name    string
	Doc     string
	Rpcs    []*Rpc
	Options []*Option
}

// Rpc is a method in a [Service].
type Rpc struct {
	Location Location

	Name         string
	Doc          string
	RequestType  string
	ResponseType string

	RequestStreaming  bool
	ResponseStreaming bool

	Options []*Option
}

// Range is an inclusive range of field numbers.
type Range struct {
	Start, End int32
}

// Contains returns whether n is in this range.
func (r Range) Contains(n int32) bool {
	return r.Start <= n && n <= r.End
}

// Reserved is the set of reserved numbers and names of a message or enum.
type Reserved struct {
	Ranges []Range
	Names  []string
}

// HasNumber returns whether n is reserved.
func (r Reserved) HasNumber(n int32) bool {
	for _, rr := range r.Ranges {
		if rr.Contains(n) {
			return true
		}
	}
	return false
}

// HasName returns whether name is reserved.
func (r Reserved) HasName(name string) bool {
	for _, n := range r.Names {
		if n == name {
			return true
		}
	}
	return false
}

// MaxTag is the largest valid field number, which is what "max" means in a
// range.
const MaxTag = 1<<29 - 1

func (m *Message) TypeName() string       { return m.Name }
func (m *Message) TypeLocation() Location { return m.Location }
func (m *Message) NestedTypes() []Type    { return m.Nested }
func (*Message) isType()                  {}

func (e *Enum) TypeName() string       { return e.Name }
func (e *Enum) TypeLocation() Location { return e.Location }
func (e *Enum) NestedTypes() []Type    { return nil }
func (*Enum) isType()                  {}

// AllFields returns the fields of m followed by the members of each oneof,
// in declaration order.
func (m *Message) AllFields() []*Field {
	out := append([]*Field(nil), m.Fields...)
	for _, o := range m.OneOfs {
		out = append(out, o.Fields...)
	}
	return out
}
