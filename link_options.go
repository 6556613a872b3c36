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
	"math"
	"strconv"

	"buf.build/go/protoschema/decl"
)

// The messages options are resolved against.
const (
	fileOptions      = "google.protobuf.FileOptions"
	messageOptions   = "google.protobuf.MessageOptions"
	fieldOptions     = "google.protobuf.FieldOptions"
	oneofOptions     = "google.protobuf.OneofOptions"
	enumOptions      = "google.protobuf.EnumOptions"
	enumValueOptions = "google.protobuf.EnumValueOptions"
	serviceOptions   = "google.protobuf.ServiceOptions"
	methodOptions    = "google.protobuf.MethodOptions"
)

// resolveAllOptions resolves the options of every declaration, and then
// computes the flags derived from them.
func (l *linker) resolveAllOptions() error {
	for _, pf := range l.schema.files {
		if err := l.resolveOptions(pf.options, fileOptions, pf.pkg, pf.loc); err != nil {
			return err
		}

		for t := range walkTypes(pf.types) {
			switch t := t.(type) {
			case *MessageType:
				scope := t.typ.String()
				if err := l.resolveOptions(t.options, messageOptions, scope, t.loc); err != nil {
					return err
				}
				for _, f := range t.fields {
					if err := l.resolveFieldOptions(f); err != nil {
						return err
					}
				}
				for _, o := range t.oneofs {
					if err := l.resolveOptions(o.options, oneofOptions, scope, o.loc); err != nil {
						return err
					}
				}

			case *EnumType:
				scope := t.typ.String()
				if err := l.resolveOptions(t.options, enumOptions, scope, t.loc); err != nil {
					return err
				}
				for _, c := range t.constants {
					if err := l.resolveOptions(c.options, enumValueOptions, scope, c.loc); err != nil {
						return err
					}
				}
			}
		}

		for ext := range pf.allExtends() {
			for _, f := range ext.fields {
				if err := l.resolveFieldOptions(f); err != nil {
					return err
				}
			}
		}

		for _, svc := range pf.services {
			scope := svc.typ.String()
			if err := l.resolveOptions(svc.options, serviceOptions, scope, svc.loc); err != nil {
				return err
			}
			for _, rpc := range svc.rpcs {
				if err := l.resolveOptions(rpc.options, methodOptions, scope, rpc.loc); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (l *linker) resolveFieldOptions(f *Field) error {
	if err := l.resolveOptions(f.options, fieldOptions, f.scope, f.loc); err != nil {
		return err
	}

	if v, ok := f.options.Get("packed"); ok {
		if !f.IsPackable() {
			return linkErrorf(f.loc, "%s: [packed = %v] may only be set on repeated numeric or enum fields", f.name, v)
		}
		f.packed, _ = v.(bool)
	} else {
		f.packed = f.syntax == decl.Proto3 && f.IsPackable()
	}
	f.deprecated = f.options.Bool("deprecated")

	for _, e := range f.options.entries {
		if len(e.Path) == 1 && e.Path[0].IsExtension() && e.Path[0].name == "redacted" && e.Value == true {
			f.redacted = true
		}
	}
	return nil
}

// resolveOptions resolves options against the message named target. Names
// of extensions are resolved relative to scope.
func (l *linker) resolveOptions(opts *Options, target, scope string, loc decl.Location) error {
	if opts == nil || len(opts.elements) == 0 {
		return nil
	}
	msg := l.schema.Message(target)
	if msg == nil {
		return linkErrorf(loc, "cannot resolve options: %s is not defined", target)
	}

	opts.entries = make([]OptionEntry, 0, len(opts.elements))
	for _, el := range opts.elements {
		entry, err := l.resolveOption(msg, el, scope, loc)
		if err != nil {
			return err
		}
		opts.entries = append(opts.entries, entry)
	}
	return nil
}

func (l *linker) resolveOption(msg *MessageType, el *decl.Option, scope string, loc decl.Location) (OptionEntry, error) {
	parts, err := el.Parts()
	if err != nil {
		return OptionEntry{}, &LinkError{Location: loc, Err: err}
	}

	var path []*Field
	cur := msg
	for i, part := range parts {
		var f *Field
		if part.Extension {
			f = l.lookupExtension(part.Name, scope)
			if f == nil {
				return OptionEntry{}, linkErrorf(loc, "option %s: unable to resolve extension %s", el.Name, part.Name)
			}
			if f.declarer != cur.typ {
				return OptionEntry{}, linkErrorf(loc, "option %s: %s does not extend %s", el.Name, f.QualifiedName(), cur.typ)
			}
		} else {
			f = cur.Field(part.Name)
			if f == nil {
				return OptionEntry{}, linkErrorf(loc, "option %s: %s has no field named %s", el.Name, cur.typ, part.Name)
			}
		}
		path = append(path, f)

		if i < len(parts)-1 {
			next, ok := f.elem.(*MessageType)
			if !ok || f.IsMap() || f.IsRepeated() {
				return OptionEntry{}, linkErrorf(loc, "option %s: %s is not a singular message field", el.Name, f.name)
			}
			cur = next
		}
	}

	last := path[len(path)-1]
	v, err := l.optionValue(last, el.Kind, el.Value, scope, loc)
	if err != nil {
		return OptionEntry{}, err
	}
	return OptionEntry{Path: path, Value: v}, nil
}

// lookupExtension resolves an extension name relative to scope.
func (l *linker) lookupExtension(name, scope string) *Field {
	for candidate := range candidates(scope, name) {
		if f := l.schema.extByName[candidate]; f != nil {
			return f
		}
	}
	return nil
}

func (l *linker) optionValue(f *Field, kind decl.OptionKind, value any, scope string, loc decl.Location) (any, error) {
	if kind != decl.OptionList {
		return l.optionElement(f, kind, value, scope, loc)
	}

	if !f.IsRepeated() {
		return nil, linkErrorf(loc, "option %s: list values may only be assigned to repeated fields", f.name)
	}
	items, _ := value.([]*decl.Option)
	out := make([]any, 0, len(items))
	for _, item := range items {
		v, err := l.optionElement(f, item.Kind, item.Value, scope, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (l *linker) optionElement(f *Field, kind decl.OptionKind, value any, scope string, loc decl.Location) (any, error) {
	if f.IsMap() {
		return nil, linkErrorf(loc, "option %s: map fields may not be set in options", f.name)
	}

	switch elem := f.elem.(type) {
	case *MessageType:
		if kind != decl.OptionMap {
			return nil, linkErrorf(loc, "option %s: expected a message literal for %s", f.name, elem.typ)
		}
		entries, _ := value.([]*decl.Option)
		out := make([]OptionEntry, 0, len(entries))
		for _, e := range entries {
			entry, err := l.resolveOption(elem, e, scope, loc)
			if err != nil {
				return nil, err
			}
			out = append(out, entry)
		}
		return out, nil

	case *EnumType:
		switch kind {
		case decl.OptionIdentifier:
			name, _ := value.(string)
			if c := elem.Constant(name); c != nil {
				return c, nil
			}
			return nil, linkErrorf(loc, "option %s: %s has no constant named %s", f.name, elem.typ, name)
		case decl.OptionNumber:
			text, _ := value.(string)
			n, err := strconv.ParseInt(text, 0, 32)
			if err == nil {
				if c := elem.ConstantByNumber(int32(n)); c != nil {
					return c, nil
				}
			}
			return nil, linkErrorf(loc, "option %s: %s is not a value of %s", f.name, text, elem.typ)
		default:
			return nil, linkErrorf(loc, "option %s: expected a constant of %s", f.name, elem.typ)
		}
	}

	v, err := coerceScalar(f.typ, kind, value)
	if err != nil {
		return nil, linkErrorf(loc, "option %s: %v", f.name, err)
	}
	return v, nil
}

// coerceScalar converts an option literal to the Go representation of a
// scalar type.
func coerceScalar(t ProtoType, kind decl.OptionKind, value any) (any, error) {
	text, _ := value.(string)
	mismatch := func() error {
		return fmt.Errorf("cannot assign %s to a field of type %s", decl.FormatOptionValue(kind, value), t)
	}

	switch t {
	case Bool:
		switch {
		case kind == decl.OptionBool:
			return value, nil
		case kind == decl.OptionIdentifier && (text == "true" || text == "false"):
			return text == "true", nil
		}
		return nil, mismatch()

	case String:
		if kind != decl.OptionString {
			return nil, mismatch()
		}
		return text, nil

	case Bytes:
		if kind != decl.OptionString {
			return nil, mismatch()
		}
		return []byte(text), nil

	case Float, Double:
		if kind != decl.OptionNumber {
			return nil, mismatch()
		}
		bits := 64
		if t == Float {
			bits = 32
		}
		f, err := parseFloat(text, bits)
		if err != nil {
			return nil, err
		}
		if t == Float {
			return float32(f), nil
		}
		return f, nil
	}

	if kind != decl.OptionNumber {
		return nil, mismatch()
	}
	switch t {
	case Int32, Sint32, Sfixed32:
		n, err := strconv.ParseInt(text, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("%s is out of range for %s", text, t)
		}
		return int32(n), nil
	case Int64, Sint64, Sfixed64:
		n, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%s is out of range for %s", text, t)
		}
		return n, nil
	case Uint32, Fixed32:
		n, err := strconv.ParseUint(text, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("%s is out of range for %s", text, t)
		}
		return uint32(n), nil
	case Uint64, Fixed64:
		n, err := strconv.ParseUint(text, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%s is out of range for %s", text, t)
		}
		return n, nil
	}
	return nil, mismatch()
}

func parseFloat(text string, bits int) (float64, error) {
	switch text {
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	case "nan", "-nan":
		return math.NaN(), nil
	}
	if f, err := strconv.ParseFloat(text, bits); err == nil {
		return f, nil
	}
	// Integer literals, including hex and octal, are valid floats.
	if n, err := strconv.ParseInt(text, 0, 64); err == nil {
		return float64(n), nil
	}
	if n, err := strconv.ParseUint(text, 0, 64); err == nil {
		return float64(n), nil
	}
	return 0, fmt.Errorf("%s is not a valid number", text)
}
