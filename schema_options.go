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
	"strings"

	"buf.build/go/protoschema/decl"
)

// Options are the options set on a declaration, resolved against the
// matching google.protobuf.*Options message.
type Options struct {
	elements []*decl.Option
	entries  []OptionEntry
}

// OptionEntry is a single resolved option assignment.
type OptionEntry struct {
	// Path is the chain of fields the option's name resolved to. The first
	// field is a field of the *Options message, or an extension of it.
	Path []*Field

	// Value is the option's value, converted to Path's last field's type:
	// a bool, int32, int64, uint32, uint64, float32, float64, string,
	// []byte, *EnumConstant, []OptionEntry for message literals, or []any
	// for list literals of repeated fields.
	Value any
}

// Name renders this entry's path the way it would be written in source.
func (e OptionEntry) Name() string {
	var buf strings.Builder
	for i, f := range e.Path {
		if i > 0 {
			buf.WriteByte('.')
		}
		if f.IsExtension() {
			buf.WriteString("(" + f.QualifiedName() + ")")
		} else {
			buf.WriteString(f.name)
		}
	}
	return buf.String()
}

// Elements returns the options as declared, before resolution.
func (o *Options) Elements() []*decl.Option {
	if o == nil {
		return nil
	}
	return o.elements
}

// Entries returns the resolved options.
func (o *Options) Entries() []OptionEntry {
	if o == nil {
		return nil
	}
	return o.entries
}

// Get returns the value of the last option assignment with the given
// name, such as "deprecated" or "(foo.bar).baz". Extension names must be
// fully qualified.
func (o *Options) Get(name string) (any, bool) {
	if o == nil {
		return nil, false
	}
	for i := len(o.entries) - 1; i >= 0; i-- {
		if o.entries[i].Name() == name {
			return o.entries[i].Value, true
		}
	}
	return nil, false
}

// Bool returns the value of a bool option, or false if it is not set.
func (o *Options) Bool(name string) bool {
	v, _ := o.Get(name)
	b, _ := v.(bool)
	return b
}

// extensionFields yields the extension fields referenced anywhere in these
// options, including inside message literals.
func (o *Options) extensionFields(yield func(*Field)) {
	var walk func([]OptionEntry)
	walk = func(entries []OptionEntry) {
		for _, e := range entries {
			for _, f := range e.Path {
				if f.IsExtension() {
					yield(f)
				}
			}
			if nested, ok := e.Value.([]OptionEntry); ok {
				walk(nested)
			}
			if list, ok := e.Value.([]any); ok {
				for _, item := range list {
					if nested, ok := item.([]OptionEntry); ok {
						walk(nested)
					}
				}
			}
		}
	}
	if o != nil {
		walk(o.entries)
	}
}
