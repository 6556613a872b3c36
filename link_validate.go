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

// Field numbers reserved for the protobuf implementation.
const (
	firstReservedTag = 19000
	lastReservedTag  = 19999
)

// validateDeclarations checks everything that can be checked without
// resolving type references.
func (l *linker) validateDeclarations() error {
	for _, pf := range l.schema.files {
		for t := range walkTypes(pf.types) {
			var err error
			switch t := t.(type) {
			case *MessageType:
				err = validateMessage(t)
			case *EnumType:
				err = validateEnum(t)
			}
			if err != nil {
				return err
			}
		}

		for ext := range pf.allExtends() {
			for _, f := range ext.fields {
				if err := validateField(f); err != nil {
					return err
				}
				if f.label == decl.LabelRequired {
					return linkErrorf(f.loc, "extension %s may not be required", f.name)
				}
			}
		}

		for _, svc := range pf.services {
			seen := make(map[string]*Rpc)
			for _, rpc := range svc.rpcs {
				if prev := seen[rpc.name]; prev != nil {
					return linkErrorf(rpc.loc, "rpc %s is already defined at %v", rpc.name, prev.loc)
				}
				seen[rpc.name] = rpc
			}
		}
	}
	return nil
}

func validateTag(tag int32, loc decl.Location, what string) error {
	switch {
	case tag < 1 || tag > decl.MaxTag:
		return linkErrorf(loc, "%s: tag %d is out of range [1, %d]", what, tag, decl.MaxTag)
	case tag >= firstReservedTag && tag <= lastReservedTag:
		return linkErrorf(loc, "%s: tag %d is in the range %d to %d, which is reserved for the protobuf implementation",
			what, tag, firstReservedTag, lastReservedTag)
	}
	return nil
}

func validateField(f *Field) error {
	if err := validateTag(f.tag, f.loc, f.name); err != nil {
		return err
	}
	if f.syntax == decl.Proto3 {
		switch {
		case f.label == decl.LabelRequired:
			return linkErrorf(f.loc, "%s: required fields are not allowed in proto3", f.name)
		case f.hasDef:
			return linkErrorf(f.loc, "%s: default values are not allowed in proto3", f.name)
		case f.group:
			return linkErrorf(f.loc, "%s: groups are not allowed in proto3", f.name)
		}
	}
	if f.hasDef && f.label == decl.LabelRepeated {
		return linkErrorf(f.loc, "%s: repeated fields may not have default values", f.name)
	}
	if f.oneof != nil && (f.label == decl.LabelRepeated || f.label == decl.LabelRequired) {
		return linkErrorf(f.loc, "%s: oneof members may not be %s", f.name, f.label)
	}
	return nil
}

func validateMessage(m *MessageType) error {
	for _, r := range m.extRanges {
		if r.Start < 1 || r.End > decl.MaxTag || r.Start > r.End {
			return linkErrorf(m.loc, "%s: invalid extension range %d to %d", m.typ, r.Start, r.End)
		}
	}

	byTag := make(map[int32]*Field)
	byName := make(map[string]*Field)
	for _, f := range m.fields {
		if err := validateField(f); err != nil {
			return err
		}

		if prev := byName[f.name]; prev != nil {
			return linkErrorf(f.loc, "%s is already defined at %v", f.Member(), prev.loc)
		}
		byName[f.name] = f
		if prev := byTag[f.tag]; prev != nil {
			return linkErrorf(f.loc, "%s: tag %d is already used by %s", f.Member(), f.tag, prev.name)
		}
		byTag[f.tag] = f

		if m.reserved.HasNumber(f.tag) {
			return linkErrorf(f.loc, "%s: tag %d is reserved", f.Member(), f.tag)
		}
		if m.reserved.HasName(f.name) {
			return linkErrorf(f.loc, "%s: name %q is reserved", f.Member(), f.name)
		}
		if m.InExtensionRange(f.tag) {
			return linkErrorf(f.loc, "%s: tag %d overlaps an extension range", f.Member(), f.tag)
		}
	}

	oneofs := make(map[string]*OneOf)
	for _, o := range m.oneofs {
		if len(o.fields) == 0 {
			return linkErrorf(o.loc, "oneof %s must have at least one field", o.name)
		}
		if prev := oneofs[o.name]; prev != nil {
			return linkErrorf(o.loc, "oneof %s is already defined at %v", o.name, prev.loc)
		}
		oneofs[o.name] = o
	}
	return nil
}

func validateEnum(e *EnumType) error {
	if len(e.constants) == 0 {
		return linkErrorf(e.loc, "enum %s must have at least one constant", e.typ)
	}
	if e.file.syntax == decl.Proto3 && e.constants[0].number != 0 {
		return linkErrorf(e.constants[0].loc, "%s: the first constant of a proto3 enum must be zero", e.typ)
	}

	byName := make(map[string]*EnumConstant)
	byNumber := make(map[int32]*EnumConstant)
	for _, c := range e.constants {
		if prev := byName[c.name]; prev != nil {
			return linkErrorf(c.loc, "%s is already defined at %v", c.Member(), prev.loc)
		}
		byName[c.name] = c
		if prev := byNumber[c.number]; prev != nil && !e.allowAlias {
			return linkErrorf(c.loc, "%s: value %d is already used by %s; set allow_alias to permit aliases",
				c.Member(), c.number, prev.name)
		}
		if byNumber[c.number] == nil {
			byNumber[c.number] = c
		}

		if e.reserved.HasNumber(c.number) {
			return linkErrorf(c.loc, "%s: value %d is reserved", c.Member(), c.number)
		}
		if e.reserved.HasName(c.name) {
			return linkErrorf(c.loc, "%s: name %q is reserved", c.Member(), c.name)
		}
	}
	return nil
}

// validateExtensions checks extension fields against the messages they
// extend. It must run after resolution.
func (l *linker) validateExtensions() error {
	for t := range l.schema.Types() {
		m, ok := t.(*MessageType)
		if !ok {
			continue
		}

		byTag := make(map[int32]*Field)
		for _, f := range l.schema.extensions[m.typ] {
			if !m.InExtensionRange(f.tag) {
				return linkErrorf(f.loc, "%s: tag %d is not in an extension range of %s",
					f.QualifiedName(), f.tag, m.typ)
			}
			if prev := byTag[f.tag]; prev != nil {
				return linkErrorf(f.loc, "%s: tag %d of %s is already used by %s",
					f.QualifiedName(), f.tag, m.typ, prev.QualifiedName())
			}
			byTag[f.tag] = f
		}
	}
	return nil
}
