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
	"fmt"
	"iter"
	"slices"

	"github.com/sirupsen/logrus"

	"buf.build/go/protoschema/decl"
	"buf.build/go/protoschema/internal/scc"
)

// Adapter encodes and decodes messages of a single type, and every type
// reachable from it, using only a [Schema].
//
// An Adapter is immutable and safe for concurrent use.
type Adapter struct {
	schema *Schema
	root   *messageInfo
	types  map[ProtoType]*messageInfo
}

// messageInfo is the compiled field table for a message type.
type messageInfo struct {
	typ    *MessageType
	fields []*fieldInfo // Declared fields and extensions, sorted by tag.
	byTag  map[int32]*fieldInfo
	byName map[string]*fieldInfo
	exts   map[string]*fieldInfo // Extensions, by qualified name.

	// Whether this type, or any type reachable from it, has required
	// fields.
	hasRequired bool
}

// fieldInfo is a single entry in a field table.
type fieldInfo struct {
	field *Field
	kind  Kind
	codec *kindCodec

	// Message or group types, and map values of message type.
	msg  *messageInfo
	enum *EnumType

	// Map keys.
	keyKind  Kind
	keyCodec *kindCodec

	repeated, packed, isMap bool
	// Strings from proto3 files, including map keys, must be valid UTF-8.
	validateUTF8 bool

	def any
}

// NewAdapter compiles an adapter for the message type with the given
// fully-qualified name.
func NewAdapter(schema *Schema, typeName string, options ...AdapterOption) (*Adapter, error) {
	opts := adapterOptions{logger: discardLogger()}
	for _, o := range options {
		o.apply(&opts)
	}

	root := schema.Message(typeName)
	if root == nil {
		return nil, fmt.Errorf("protoschema: %s is not a message type of this schema", typeName)
	}

	a := &Adapter{
		schema: schema,
		types:  make(map[ProtoType]*messageInfo),
	}
	var err error
	if a.root, err = a.compile(root, opts.logger); err != nil {
		return nil, err
	}
	a.analyzeRequired()
	return a, nil
}

// Schema returns the schema this adapter was compiled from.
func (a *Adapter) Schema() *Schema { return a.schema }

// Type returns the message type this adapter was compiled for.
func (a *Adapter) Type() *MessageType { return a.root.typ }

// New returns a new, empty message of this adapter's type.
func (a *Adapter) New() *Message {
	return newMessage(a.root)
}

// compile builds field tables for m and every message type reachable from
// it.
func (a *Adapter) compile(m *MessageType, log logrus.FieldLogger) (*messageInfo, error) {
	if info := a.types[m.typ]; info != nil {
		return info, nil
	}
	log.WithField("type", m.typ).Debug("compiling message type")

	info := &messageInfo{
		typ:    m,
		byTag:  make(map[int32]*fieldInfo),
		byName: make(map[string]*fieldInfo),
		exts:   make(map[string]*fieldInfo),
	}
	a.types[m.typ] = info

	fields := slices.Concat(m.fields, a.schema.Extensions(m.typ))
	for _, f := range fields {
		fi, err := a.compileField(f, log)
		if err != nil {
			return nil, err
		}
		info.fields = append(info.fields, fi)
		info.byTag[f.tag] = fi
		if f.IsExtension() {
			info.exts[f.QualifiedName()] = fi
		} else {
			info.byName[f.name] = fi
		}
	}
	slices.SortFunc(info.fields, func(a, b *fieldInfo) int {
		return cmp.Compare(a.field.tag, b.field.tag)
	})
	return info, nil
}

func (a *Adapter) compileField(f *Field, log logrus.FieldLogger) (*fieldInfo, error) {
	fi := &fieldInfo{
		field:    f,
		repeated: f.IsRepeated(),
		packed:   f.IsPacked(),
		isMap:    f.IsMap(),
	}

	valueType := f.typ
	if fi.isMap {
		fi.keyKind = scalarKindOf[f.typ.KeyType()]
		fi.keyCodec = &kinds[fi.keyKind]
		valueType = f.typ.ValueType()
	}

	switch elem := f.elem.(type) {
	case *MessageType:
		fi.kind = KindMessage
		if f.group {
			fi.kind = KindGroup
		}
		msg, err := a.compile(elem, log)
		if err != nil {
			return nil, err
		}
		fi.msg = msg
	case *EnumType:
		fi.kind = KindEnum
		fi.enum = elem
	default:
		k, ok := scalarKindOf[valueType]
		if !ok {
			return nil, fmt.Errorf("protoschema: %s: type %v is not in this schema", f.Member(), valueType)
		}
		fi.kind = k
	}
	fi.codec = &kinds[fi.kind]
	fi.validateUTF8 = f.syntax == decl.Proto3 && (fi.kind == KindString || fi.keyKind == KindString)

	if fi.repeated || fi.isMap || fi.msg != nil {
		return fi, nil
	}
	fi.def = fi.codec.zero
	if fi.enum != nil && len(fi.enum.constants) > 0 {
		fi.def = fi.enum.constants[0].number
	}
	if text, ok := f.Default(); ok {
		var err error
		if fi.def, err = fi.parseDefault(text); err != nil {
			return nil, fmt.Errorf("protoschema: %s: invalid default %q: %w", f.Member(), text, err)
		}
	}
	return fi, nil
}

func (fi *fieldInfo) parseDefault(text string) (any, error) {
	if fi.enum != nil {
		c := fi.enum.Constant(text)
		if c == nil {
			return nil, fmt.Errorf("%s has no constant %s", fi.enum.typ, text)
		}
		return c.number, nil
	}
	return fi.codec.parse(text)
}

// analyzeRequired computes which types need to be checked for missing
// required fields. Message types may form cycles, so this is done over the
// strongly connected components of the type graph, dependencies first.
func (a *Adapter) analyzeRequired() {
	graph := func(m *messageInfo) iter.Seq[*messageInfo] {
		return func(yield func(*messageInfo) bool) {
			for _, fi := range m.fields {
				if fi.msg != nil && !yield(fi.msg) {
					return
				}
			}
		}
	}

	dag := scc.Sort(a.root, graph)
	for c := range dag.Topological() {
		required := false
		for _, m := range c.Members() {
			for _, fi := range m.fields {
				if fi.field.IsRequired() {
					required = true
				}
			}
		}
		for dep := range c.Deps() {
			if dep.Members()[0].hasRequired {
				required = true
			}
		}
		for _, m := range c.Members() {
			m.hasRequired = required
		}
	}
}

// field looks up a declared field by name, or an extension by qualified
// name.
func (m *messageInfo) field(name string) *fieldInfo {
	if fi := m.byName[name]; fi != nil {
		return fi
	}
	return m.exts[name]
}
