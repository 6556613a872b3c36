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
	"fmt"
	"strings"

	"buf.build/go/protoschema/internal/debug"
	"buf.build/go/protoschema/internal/xsync"
)

// ProtoType is the canonical identity of a scalar, map, or named type.
//
// ProtoTypes are interned: two ProtoTypes are equal, as compared with ==,
// if and only if their [ProtoType.String] forms are equal. The zero value is
// not a valid type.
type ProtoType struct {
	id *identity
}

type typeKind uint8

const (
	kindScalar typeKind = iota + 1
	kindMap
	kindNamed
)

type identity struct {
	name       string
	kind       typeKind
	key, value ProtoType
}

// interned is the only process-wide mutable state in this package. It is
// safe for concurrent use by independent linking operations.
var interned xsync.Map[string, *identity]

func intern(name string, make func() *identity) ProtoType {
	id, loaded := interned.LoadOrStore(name, make)
	if !loaded {
		debug.Log("intern", "%s (%d types)", name, interned.Len())
	}
	return ProtoType{id}
}

// Scalar types.
var (
	Bool     = scalar("bool")
	Bytes    = scalar("bytes")
	Double   = scalar("double")
	Float    = scalar("float")
	Fixed32  = scalar("fixed32")
	Fixed64  = scalar("fixed64")
	Int32    = scalar("int32")
	Int64    = scalar("int64")
	Sfixed32 = scalar("sfixed32")
	Sfixed64 = scalar("sfixed64")
	Sint32   = scalar("sint32")
	Sint64   = scalar("sint64")
	String   = scalar("string")
	Uint32   = scalar("uint32")
	Uint64   = scalar("uint64")
)

var scalars = make(map[string]ProtoType)

func scalar(name string) ProtoType {
	t := intern(name, func() *identity { return &identity{name: name, kind: kindScalar} })
	scalars[name] = t
	return t
}

// ParseType parses a type name: a scalar name, a map type such as
// "map<string, foo.Bar>", or a dotted type name. A leading dot on a type
// name is dropped.
func ParseType(name string) (ProtoType, error) {
	name = strings.TrimSpace(name)
	if t, ok := scalars[name]; ok {
		return t, nil
	}

	if rest, ok := strings.CutPrefix(name, "map"); ok {
		rest = strings.TrimSpace(rest)
		if strings.HasPrefix(rest, "<") && strings.HasSuffix(rest, ">") {
			k, v, ok := strings.Cut(rest[1:len(rest)-1], ",")
			if !ok {
				return ProtoType{}, fmt.Errorf("malformed map type %q", name)
			}
			key, err := ParseType(k)
			if err != nil {
				return ProtoType{}, err
			}
			value, err := ParseType(v)
			if err != nil {
				return ProtoType{}, err
			}
			return MapType(key, value)
		}
	}

	name = strings.TrimPrefix(name, ".")
	if !isQualifiedName(name) {
		return ProtoType{}, fmt.Errorf("malformed type name %q", name)
	}
	return NamedType(name), nil
}

// MustParseType is like [ParseType], but panics on error.
func MustParseType(name string) ProtoType {
	t, err := ParseType(name)
	if err != nil {
		panic(err)
	}
	return t
}

// NamedType returns the type with the given fully-qualified name, without
// a leading dot.
func NamedType(name string) ProtoType {
	if t, ok := scalars[name]; ok {
		return t
	}
	return intern(name, func() *identity { return &identity{name: name, kind: kindNamed} })
}

// MapType returns the map type with the given key and value.
//
// Keys must be integral, bool, or string scalars; values may be anything but
// another map.
func MapType(key, value ProtoType) (ProtoType, error) {
	switch {
	case !key.IsScalar():
		return ProtoType{}, fmt.Errorf("map key must be a scalar type, got %v", key)
	case key == Float || key == Double || key == Bytes:
		return ProtoType{}, fmt.Errorf("map key cannot be %v", key)
	case !value.IsValid() || value.IsMap():
		return ProtoType{}, fmt.Errorf("map value cannot be %v", value)
	}

	name := fmt.Sprintf("map<%v, %v>", key, value)
	return intern(name, func() *identity {
		return &identity{name: name, kind: kindMap, key: key, value: value}
	}), nil
}

// IsValid returns whether this is not the zero ProtoType.
func (t ProtoType) IsValid() bool { return t.id != nil }

// IsScalar returns whether this is one of the fifteen scalar types.
func (t ProtoType) IsScalar() bool { return t.id != nil && t.id.kind == kindScalar }

// IsMap returns whether this is a map type.
func (t ProtoType) IsMap() bool { return t.id != nil && t.id.kind == kindMap }

// IsNamed returns whether this is a message or enum type name.
func (t ProtoType) IsNamed() bool { return t.id != nil && t.id.kind == kindNamed }

// KeyType returns the key type of a map type, or the zero type.
func (t ProtoType) KeyType() ProtoType {
	if !t.IsMap() {
		return ProtoType{}
	}
	return t.id.key
}

// ValueType returns the value type of a map type, or the zero type.
func (t ProtoType) ValueType() ProtoType {
	if !t.IsMap() {
		return ProtoType{}
	}
	return t.id.value
}

// NestedType returns the type named simple nested inside of t.
func (t ProtoType) NestedType(simple string) ProtoType {
	if !t.IsNamed() {
		panic(fmt.Sprintf("protoschema: cannot nest %q in non-named type %v", simple, t))
	}
	return NamedType(t.id.name + "." + simple)
}

// EnclosingTypeOrPackage returns the name of whatever t is declared in: its
// enclosing message, or its package. Returns "" for types in the root
// package and for non-named types.
func (t ProtoType) EnclosingTypeOrPackage() string {
	if !t.IsNamed() {
		return ""
	}
	i := strings.LastIndexByte(t.id.name, '.')
	if i < 0 {
		return ""
	}
	return t.id.name[:i]
}

// SimpleName returns the last component of t's name.
func (t ProtoType) SimpleName() string {
	if !t.IsNamed() {
		return t.String()
	}
	return t.id.name[strings.LastIndexByte(t.id.name, '.')+1:]
}

// Member returns the identifier of a member of t, such as "foo.Bar#baz".
func (t ProtoType) Member(member string) string {
	return t.String() + "#" + member
}

// String implements [fmt.Stringer].
func (t ProtoType) String() string {
	if t.id == nil {
		return ""
	}
	return t.id.name
}

func isQualifiedName(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if !isIdent(part) {
			return false
		}
	}
	return true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := range len(s) {
		c := s[i]
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && '0' <= c && c <= '9':
		default:
			return false
		}
	}
	return true
}
