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
	"iter"
	"slices"
	"strings"

	"buf.build/go/protoschema/decl"
)

// candidates yields the names a reference to name from scope may refer to,
// innermost first.
//
// For scope "a.b.C" and name "D", these are "a.b.C.D", "a.b.D", "a.D" and
// "D". A name with a leading dot is fully qualified, and only matches
// itself.
func candidates(scope, name string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if rest, ok := strings.CutPrefix(name, "."); ok {
			yield(rest)
			return
		}
		for scope != "" {
			if !yield(scope + "." + name) {
				return
			}
			i := strings.LastIndexByte(scope, '.')
			if i < 0 {
				break
			}
			scope = scope[:i]
		}
		yield(name)
	}
}

// visibleFrom returns the set of files whose declarations the given file
// may refer to: itself, its imports, and anything those re-export with
// import public.
func (l *linker) visibleFrom(pf *ProtoFile) map[string]bool {
	if v, ok := l.visible[pf.path]; ok {
		return v
	}

	v := map[string]bool{pf.path: true}
	var public func(string)
	public = func(path string) {
		if v[path] && path != pf.path {
			return
		}
		v[path] = true
		if f := l.pfiles[path]; f != nil {
			for _, p := range f.publicImports {
				public(p)
			}
		}
	}
	for _, imp := range slices.Concat(pf.imports, pf.publicImports) {
		public(imp)
	}
	l.visible[pf.path] = v
	return v
}

// lookupType resolves a type reference made from scope in pf.
func (l *linker) lookupType(pf *ProtoFile, scope, name string, loc decl.Location) (Type, error) {
	var hidden Type
	for candidate := range candidates(scope, name) {
		t, err := ParseType(candidate)
		if err != nil {
			continue
		}
		found := l.types[t]
		if found == nil {
			continue
		}
		if !l.visibleFrom(pf)[found.File().path] {
			if hidden == nil {
				hidden = found
			}
			continue
		}
		return found, nil
	}
	if hidden != nil {
		return nil, linkErrorf(loc, "%s is declared in %s, which is not imported by %s",
			hidden.ProtoType(), hidden.File().path, pf.path)
	}
	return nil, linkErrorf(loc, "unable to resolve %s", name)
}

// splitMapType splits "map<K, V>" into its key and value.
func splitMapType(name string) (key, value string, ok bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(name), "map")
	if !ok {
		return "", "", false
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "<") || !strings.HasSuffix(rest, ">") {
		return "", "", false
	}
	key, value, ok = strings.Cut(rest[1:len(rest)-1], ",")
	return strings.TrimSpace(key), strings.TrimSpace(value), ok
}

// resolveTypeRef resolves a field's declared type: a scalar, a map, or a
// named message or enum.
func (l *linker) resolveTypeRef(pf *ProtoFile, scope, name string, loc decl.Location) (ProtoType, Type, error) {
	if t, ok := scalars[name]; ok {
		return t, nil, nil
	}

	if k, v, ok := splitMapType(name); ok {
		key, ok := scalars[k]
		if !ok {
			return ProtoType{}, nil, linkErrorf(loc, "map key %q must be an integral, bool, or string type", k)
		}
		value, elem, err := l.resolveTypeRef(pf, scope, v, loc)
		if err != nil {
			return ProtoType{}, nil, err
		}
		if value.IsMap() {
			return ProtoType{}, nil, linkErrorf(loc, "map values may not be maps")
		}
		if e, ok := elem.(*EnumType); ok && (len(e.constants) == 0 || e.constants[0].number != 0) {
			return ProtoType{}, nil, linkErrorf(loc, "map value %s must be an enum whose first constant is zero", e.typ)
		}
		mt, err := MapType(key, value)
		if err != nil {
			return ProtoType{}, nil, &LinkError{Location: loc, Err: err}
		}
		return mt, elem, nil
	}

	t, err := l.lookupType(pf, scope, name, loc)
	if err != nil {
		return ProtoType{}, nil, err
	}
	return t.ProtoType(), t, nil
}

// resolve resolves every type reference in the schema.
func (l *linker) resolve() error {
	for _, pf := range l.schema.files {
		for t := range walkTypes(pf.types) {
			m, ok := t.(*MessageType)
			if !ok {
				continue
			}
			for _, f := range m.fields {
				if err := l.resolveField(f); err != nil {
					return err
				}
			}
		}

		for ext := range pf.allExtends() {
			if err := l.resolveExtend(ext); err != nil {
				return err
			}
		}

		for _, svc := range pf.services {
			for _, rpc := range svc.rpcs {
				var err error
				if rpc.request, err = l.resolveRpcType(pf, rpc, rpc.declRequest); err != nil {
					return err
				}
				if rpc.response, err = l.resolveRpcType(pf, rpc, rpc.declResponse); err != nil {
					return err
				}
			}
		}
	}

	l.schema.indexExtensions()
	return nil
}

func (l *linker) resolveField(f *Field) error {
	var err error
	f.typ, f.elem, err = l.resolveTypeRef(f.file(), f.scope, f.declType, f.loc)
	if err != nil {
		return err
	}

	if f.group && !f.isMessage() {
		return linkErrorf(f.loc, "group %s must have a message type", f.name)
	}
	if f.typ.IsMap() {
		if f.label == decl.LabelRequired {
			return linkErrorf(f.loc, "map field %s may not be required", f.name)
		}
		if f.oneof != nil {
			return linkErrorf(f.loc, "map field %s may not be a oneof member", f.name)
		}
		if f.extend != nil {
			return linkErrorf(f.loc, "extension %s may not be a map", f.name)
		}
	}
	return nil
}

func (l *linker) resolveExtend(ext *Extend) error {
	t, err := l.lookupType(ext.file, ext.scope, ext.declName, ext.loc)
	if err != nil {
		return err
	}
	if _, ok := t.(*MessageType); !ok {
		return linkErrorf(ext.loc, "extended type %s is not a message", t.ProtoType())
	}
	ext.typ = t.ProtoType()

	for _, f := range ext.fields {
		f.declarer = ext.typ
		if err := l.resolveField(f); err != nil {
			return err
		}
	}
	return nil
}

func (l *linker) resolveRpcType(pf *ProtoFile, rpc *Rpc, name string) (ProtoType, error) {
	t, err := l.lookupType(pf, rpc.service.typ.String(), name, rpc.loc)
	if err != nil {
		return ProtoType{}, err
	}
	if _, ok := t.(*MessageType); !ok {
		return ProtoType{}, linkErrorf(rpc.loc, "rpc %s: %s is not a message", rpc.name, t.ProtoType())
	}
	return t.ProtoType(), nil
}

// walkTypes yields types and all of their nested types, depth-first.
func walkTypes(types []Type) iter.Seq[Type] {
	return func(yield func(Type) bool) {
		var walk func(Type) bool
		walk = func(t Type) bool {
			if !yield(t) {
				return false
			}
			for _, n := range t.NestedTypes() {
				if !walk(n) {
					return false
				}
			}
			return true
		}
		for _, t := range types {
			if !walk(t) {
				return
			}
		}
	}
}
