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
	"cmp"
	"iter"
	"slices"

	"buf.build/go/protoschema/decl"
)

// Schema is a linked set of files, where every type reference has been
// resolved.
//
// A Schema is immutable, and safe for concurrent use. The only way to obtain
// one is [Link], [Load], or [Prune].
type Schema struct {
	files    []*ProtoFile
	types    map[ProtoType]Type
	services map[string]*Service
	fileOf   map[ProtoType]*ProtoFile

	// Extension fields, keyed by extendee (sorted by tag) and by qualified
	// name.
	extensions  map[ProtoType][]*Field
	extByName   map[string]*Field
	typeOrdered []Type
}

// ProtoFile is a single linked file.
type ProtoFile struct {
	loc    decl.Location
	path   string
	pkg    string
	syntax decl.Syntax

	imports, publicImports []string

	types    []Type
	services []*Service
	extends  []*Extend
	options  *Options
}

// newSchema indexes files, which must have unique paths and declare unique
// names.
func newSchema(files []*ProtoFile) *Schema {
	s := &Schema{
		files:      slices.Clone(files),
		types:      make(map[ProtoType]Type),
		services:   make(map[string]*Service),
		fileOf:     make(map[ProtoType]*ProtoFile),
		extensions: make(map[ProtoType][]*Field),
		extByName:  make(map[string]*Field),
	}
	slices.SortFunc(s.files, func(a, b *ProtoFile) int { return cmp.Compare(a.path, b.path) })

	var index func(*ProtoFile, Type)
	index = func(f *ProtoFile, t Type) {
		s.types[t.ProtoType()] = t
		s.fileOf[t.ProtoType()] = f
		s.typeOrdered = append(s.typeOrdered, t)
		for _, n := range t.NestedTypes() {
			index(f, n)
		}
	}
	for _, f := range s.files {
		for _, t := range f.types {
			index(f, t)
		}
		for _, svc := range f.services {
			s.services[svc.typ.String()] = svc
			s.fileOf[svc.typ] = f
		}
		for ext := range f.allExtends() {
			for _, field := range ext.fields {
				s.extByName[field.QualifiedName()] = field
			}
		}
	}
	return s
}

// indexExtensions builds the per-extendee extension index. It must be
// called after extend targets are resolved.
func (s *Schema) indexExtensions() {
	clear(s.extensions)
	for _, f := range s.files {
		for ext := range f.allExtends() {
			s.extensions[ext.typ] = append(s.extensions[ext.typ], ext.fields...)
		}
	}
	for _, fields := range s.extensions {
		slices.SortStableFunc(fields, func(a, b *Field) int { return cmp.Compare(a.tag, b.tag) })
	}
}

// Files returns the files in this schema, sorted by path.
func (s *Schema) Files() []*ProtoFile {
	return s.files
}

// File returns the file with the given path, or nil.
func (s *Schema) File(path string) *ProtoFile {
	i, ok := slices.BinarySearchFunc(s.files, path, func(f *ProtoFile, path string) int {
		return cmp.Compare(f.path, path)
	})
	if !ok {
		return nil
	}
	return s.files[i]
}

// Types returns every message and enum type in this schema, nested types
// included, in file order.
func (s *Schema) Types() iter.Seq[Type] {
	return slices.Values(s.typeOrdered)
}

// Type returns the message or enum type with the given fully-qualified name,
// or nil.
func (s *Schema) Type(name string) Type {
	t, err := ParseType(name)
	if err != nil {
		return nil
	}
	return s.TypeOf(t)
}

// TypeOf returns the message or enum type with the given identity, or nil.
func (s *Schema) TypeOf(t ProtoType) Type {
	return s.types[t]
}

// Message returns the message type with the given name, or nil.
func (s *Schema) Message(name string) *MessageType {
	m, _ := s.Type(name).(*MessageType)
	return m
}

// Enum returns the enum type with the given name, or nil.
func (s *Schema) Enum(name string) *EnumType {
	e, _ := s.Type(name).(*EnumType)
	return e
}

// Service returns the service with the given fully-qualified name, or nil.
func (s *Schema) Service(name string) *Service {
	return s.services[name]
}

// FileOf returns the file that declares a type or service, or nil.
func (s *Schema) FileOf(t ProtoType) *ProtoFile {
	return s.fileOf[t]
}

// Extensions returns the extension fields that extend t, sorted by tag.
func (s *Schema) Extensions(t ProtoType) []*Field {
	return s.extensions[t]
}

// Extension returns the extension field with the given fully-qualified name,
// such as "foo.bar.my_extension", or nil.
func (s *Schema) Extension(name string) *Field {
	return s.extByName[name]
}

// Field returns a field by its member identifier, such as "foo.Bar#baz". An
// extension field is addressed by the extended type and its qualified name,
// such as "foo.Bar#foo.my_extension".
func (s *Schema) Field(member string) *Field {
	typeName, name, ok := cutMember(member)
	if !ok {
		return nil
	}
	m := s.Message(typeName)
	if m == nil {
		return nil
	}
	if f := m.Field(name); f != nil {
		return f
	}
	if f := s.Extension(name); f != nil && f.declarer == m.typ {
		return f
	}
	return nil
}

// Path returns this file's import path.
func (f *ProtoFile) Path() string { return f.path }

// Location returns the location of this file.
func (f *ProtoFile) Location() decl.Location { return f.loc }

// Package returns this file's package, which may be empty.
func (f *ProtoFile) Package() string { return f.pkg }

// Syntax returns this file's syntax level.
func (f *ProtoFile) Syntax() decl.Syntax { return f.syntax }

// Imports returns this file's plain imports.
func (f *ProtoFile) Imports() []string { return f.imports }

// PublicImports returns this file's public imports.
func (f *ProtoFile) PublicImports() []string { return f.publicImports }

// Types returns this file's top-level types.
func (f *ProtoFile) Types() []Type { return f.types }

// Services returns this file's services.
func (f *ProtoFile) Services() []*Service { return f.services }

// Extends returns this file's top-level extend blocks.
func (f *ProtoFile) Extends() []*Extend { return f.extends }

// Options returns this file's options.
func (f *ProtoFile) Options() *Options { return f.options }

// String implements [fmt.Stringer].
func (f *ProtoFile) String() string { return f.path }

// allExtends yields every extend block in this file, including those nested
// in messages.
func (f *ProtoFile) allExtends() iter.Seq[*Extend] {
	return func(yield func(*Extend) bool) {
		for _, e := range f.extends {
			if !yield(e) {
				return
			}
		}
		var walk func(Type) bool
		walk = func(t Type) bool {
			m, ok := t.(*MessageType)
			if !ok {
				return true
			}
			for _, e := range m.extends {
				if !yield(e) {
					return false
				}
			}
			for _, n := range m.nested {
				if !walk(n) {
					return false
				}
			}
			return true
		}
		for _, t := range f.types {
			if !walk(t) {
				return
			}
		}
	}
}

// cutMember splits "foo.Bar#baz" into "foo.Bar" and "baz".
func cutMember(member string) (typeName, name string, ok bool) {
	for i := len(member) - 1; i >= 0; i-- {
		if member[i] == '#' {
			return member[:i], member[i+1:], i > 0 && i < len(member)-1
		}
	}
	return "", "", false
}
