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

// Redact returns a deep copy of this message with every redacted field
// cleared, recursively. A field is redacted if it carries an option
// extension named redacted set to true; see [Field.IsRedacted].
//
// Redacted required fields are set to their zero value instead, so that
// the copy still encodes. A zero message has its own required fields set to
// zero as well, down to any cycle of required message fields. Unknown fields are dropped, since they may hold
// anything. m is not modified.
func (m *Message) Redact() *Message {
	out := newMessage(m.info)
	for _, fi := range m.info.fields {
		v, ok := m.lookup(fi)
		if !ok {
			continue
		}
		if fi.field.IsRedacted() {
			if fi.field.IsRequired() {
				out.store(fi, fi.zero(nil))
			}
			continue
		}
		out.store(fi, redactValue(v))
	}
	return out
}

// zero returns the zero value of a singular field. seen holds the message
// types whose required fields are already being filled.
func (fi *fieldInfo) zero(seen map[*messageInfo]bool) any {
	if fi.msg != nil {
		return zeroMessage(fi.msg, seen)
	}
	if fi.enum != nil && len(fi.enum.constants) > 0 {
		return fi.enum.constants[0].number
	}
	return fi.codec.zero
}

// zeroMessage returns an empty message with its required fields set to
// their zero values.
func zeroMessage(info *messageInfo, seen map[*messageInfo]bool) *Message {
	out := newMessage(info)
	if !info.hasRequired || seen[info] {
		return out
	}
	if seen == nil {
		seen = make(map[*messageInfo]bool)
	}
	seen[info] = true
	defer delete(seen, info)

	for _, fi := range info.fields {
		if fi.field.IsRequired() {
			out.store(fi, fi.zero(seen))
		}
	}
	return out
}

func redactValue(v any) any {
	switch v := v.(type) {
	case *Message:
		return v.Redact()
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redactValue(item)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(v))
		for k, item := range v {
			out[k] = redactValue(item)
		}
		return out
	default:
		return cloneValue(v)
	}
}
