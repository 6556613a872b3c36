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

package decl

import (
	"fmt"
	"strings"
)

// OptionKind is the kind of literal an [Option] holds.
type OptionKind int

const (
	OptionString     OptionKind = iota // Value is a string.
	OptionBool                         // Value is a bool.
	OptionNumber                       // Value is the literal's text, such as "-1.5e3" or "inf".
	OptionIdentifier                   // Value is the identifier, such as an enum constant.
	OptionMap                          // Value is []*Option, one per message literal entry.
	OptionList                         // Value is []*Option, whose elements have no Name.
)

// Option is a single option assignment, such as (foo.bar).baz = 5.
type Option struct {
	// Name is the option's name, exactly as written. Parenthesized segments
	// name extensions. Message literal keys written as [foo.bar] are
	// normalized to (foo.bar).
	Name  string
	Kind  OptionKind
	Value any
}

// NamePart is one dot-separated segment of an option name.
type NamePart struct {
	Name      string
	Extension bool
}

// String implements [fmt.Stringer].
func (p NamePart) String() string {
	if p.Extension {
		return "(" + p.Name + ")"
	}
	return p.Name
}

// Parts splits this option's name into its segments.
func (o *Option) Parts() ([]NamePart, error) {
	return SplitOptionName(o.Name)
}

// SplitOptionName splits an option name such as "(foo.bar).baz" into its
// segments.
func SplitOptionName(name string) ([]NamePart, error) {
	var parts []NamePart
	rest := name
	for rest != "" {
		if rest[0] == '(' {
			end := strings.IndexByte(rest, ')')
			if end < 0 {
				return nil, fmt.Errorf("unterminated extension name in option %q", name)
			}
			parts = append(parts, NamePart{Name: strings.TrimSpace(rest[1:end]), Extension: true})
			rest = rest[end+1:]
		} else {
			end := strings.IndexAny(rest, ".(")
			if end < 0 {
				end = len(rest)
			}
			parts = append(parts, NamePart{Name: rest[:end]})
			rest = rest[end:]
		}

		if rest == "" {
			break
		}
		if rest[0] != '.' {
			return nil, fmt.Errorf("expected '.' in option %q", name)
		}
		rest = rest[1:]
		if rest == "" {
			return nil, fmt.Errorf("trailing '.' in option %q", name)
		}
	}

	for _, p := range parts {
		if p.Name == "" {
			return nil, fmt.Errorf("empty segment in option %q", name)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty option name")
	}
	return parts, nil
}

// String renders this option roughly as it would be written in source.
func (o *Option) String() string {
	return o.Name + " = " + FormatOptionValue(o.Kind, o.Value)
}

// FormatOptionValue renders an option literal roughly as it would be written
// in source.
func FormatOptionValue(kind OptionKind, v any) string {
	switch kind {
	case OptionString:
		return fmt.Sprintf("%q", v)
	case OptionMap:
		entries, _ := v.([]*Option)
		parts := make([]string, len(entries))
		for i, e := range entries {
			parts[i] = e.Name + ": " + FormatOptionValue(e.Kind, e.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case OptionList:
		items, _ := v.([]*Option)
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = FormatOptionValue(item.Kind, item.Value)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(v)
	}
}

// FindOption returns the last option with the given name, or nil.
func FindOption(options []*Option, name string) *Option {
	for i := len(options) - 1; i >= 0; i-- {
		if options[i].Name == name {
			return options[i]
		}
	}
	return nil
}
