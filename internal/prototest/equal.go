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

// Package prototest contains helpers for checking [protoschema.Message]
// values against messages decoded by the reference implementation.
package prototest

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/emptypb"

	"buf.build/go/protoschema"
)

// Equal validates that a message decoded by the reference implementation
// and a [protoschema.Message] have the same observable value.
func Equal(t testing.TB, expect proto.Message, got *protoschema.Message) {
	t.Helper()
	e := &equal{TB: t}

	panicked := true
	defer func() {
		if panicked {
			t.Errorf("panicked at %s", e.formatPath())
		}
	}()

	e.message(expect.ProtoReflect(), got)
	panicked = false
}

type equal struct {
	testing.TB
	path []any
}

func (e *equal) message(a protoreflect.Message, b *protoschema.Message) {
	e.Helper()

	if b == nil {
		e.fail("expected %v, got nil", a.Descriptor().FullName())
		return
	}
	if name := string(a.Descriptor().FullName()); name != b.Type().ProtoType().String() {
		e.fail("expected %v, got %v", name, b.Type())
		return
	}

	// The reference implementation re-encodes each unknown field minimally,
	// so compare them after a round-trip through an empty message.
	transcode := func(b []byte) []byte {
		empty := new(emptypb.Empty)
		_ = proto.Unmarshal(b, empty)
		return empty.ProtoReflect().GetUnknown()
	}
	if want, got := transcode(a.GetUnknown()), transcode(b.Unknown().Bytes()); !bytes.Equal(want, got) {
		e.fail("unequal unknown fields: want `%x`, got `%x`", want, got)
	}

	fds := a.Descriptor().Fields()
	for i := range fds.Len() {
		fd := fds.Get(i)
		name := string(fd.Name())
		e.push(fd.Name(), func() {
			e.Helper()
			if a.Has(fd) != b.Has(name) {
				e.fail("unequal has: want %v, got %v", a.Has(fd), b.Has(name))
				return
			}

			switch {
			case fd.IsMap():
				if a.Has(fd) {
					e.map_(fd, a.Get(fd).Map(), b.Get(name))
				}
			case fd.IsList():
				if a.Has(fd) {
					e.list(fd, a.Get(fd).List(), b.Get(name))
				}
			case fd.Message() != nil:
				if a.Has(fd) {
					sub, _ := b.Get(name).(*protoschema.Message)
					e.message(a.Get(fd).Message(), sub)
				}
			default:
				e.scalar(a.Get(fd), b.Get(name))
			}
		})
	}

	ods := a.Descriptor().Oneofs()
	for i := range ods.Len() {
		od := ods.Get(i)
		if od.IsSynthetic() {
			continue
		}
		e.push(od.Name(), func() {
			e.Helper()
			var want string
			if fd := a.WhichOneof(od); fd != nil {
				want = string(fd.Name())
			}
			if got := b.WhichOneOf(string(od.Name())); want != got {
				e.fail("unequal which: want %q, got %q", want, got)
			}
		})
	}
}

func (e *equal) element(fd protoreflect.FieldDescriptor, a protoreflect.Value, b any) {
	e.Helper()
	if fd.Message() != nil {
		sub, ok := b.(*protoschema.Message)
		if !ok {
			e.wrongType(a.Interface(), b)
			return
		}
		e.message(a.Message(), sub)
		return
	}
	e.scalar(a, b)
}

func (e *equal) scalar(v protoreflect.Value, got any) {
	e.Helper()

	want := v.Interface()
	if n, ok := want.(protoreflect.EnumNumber); ok {
		want = int32(n)
	}

	switch a := want.(type) {
	case []byte:
		b, ok := got.([]byte)
		switch {
		case !ok:
			e.wrongType(a, got)
		case !bytes.Equal(a, b):
			e.fail("expected %q:`%x`, got %q:`%x`", a, a, b, b)
		}
	case float32:
		b, ok := got.(float32)
		switch {
		case !ok:
			e.wrongType(a, got)
		case math.Float32bits(a) != math.Float32bits(b):
			e.fail("expected %v:0x%x, got %v:0x%x", a, math.Float32bits(a), b, math.Float32bits(b))
		}
	case float64:
		// Compare bit-wise, to get exact comparisons for NaN payloads.
		b, ok := got.(float64)
		switch {
		case !ok:
			e.wrongType(a, got)
		case math.Float64bits(a) != math.Float64bits(b):
			e.fail("expected %v:0x%x, got %v:0x%x", a, math.Float64bits(a), b, math.Float64bits(b))
		}
	default:
		if fmt.Sprintf("%T", want) != fmt.Sprintf("%T", got) {
			e.wrongType(want, got)
			return
		}
		if want != got {
			e.fail("expected %v, got %v (%T)", want, got, got)
		}
	}
}

func (e *equal) list(fd protoreflect.FieldDescriptor, a protoreflect.List, got any) {
	e.Helper()
	b, ok := got.([]any)
	if !ok {
		e.fail("expected []any, got %T", got)
		return
	}

	// Compare the common prefix.
	for i := range min(a.Len(), len(b)) {
		e.push(i, func() {
			e.Helper()
			e.element(fd, a.Get(i), b[i])
		})
	}
	if a.Len() != len(b) {
		e.fail("unequal lengths: want %d, got %d", a.Len(), len(b))
	}
}

func (e *equal) map_(fd protoreflect.FieldDescriptor, a protoreflect.Map, got any) {
	e.Helper()
	b, ok := got.(map[any]any)
	if !ok {
		e.fail("expected map[any]any, got %T", got)
		return
	}
	if a.Len() != len(b) {
		e.fail("unequal lengths: want %d, got %d", a.Len(), len(b))
	}

	keys := make([]protoreflect.MapKey, 0, a.Len())
	for k := range a.Range {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(x, y protoreflect.MapKey) int {
		return cmp.Compare(fmt.Sprint(x.Interface()), fmt.Sprint(y.Interface()))
	})

	for _, k := range keys {
		e.push(k.Interface(), func() {
			e.Helper()
			v, ok := b[k.Interface()]
			if !ok {
				e.fail("missing key")
				return
			}
			e.element(fd.MapValue(), a.Get(k), v)
		})
	}
}

func (e *equal) push(v any, f func()) {
	e.Helper()
	e.path = append(e.path, v)
	f()
	e.path = e.path[:len(e.path)-1]
}

func (e *equal) wrongType(a, b any) {
	e.Helper()
	e.fail("expected %T, got %T", a, b)
}

func (e *equal) fail(format string, args ...any) {
	e.Helper()
	e.Errorf("failure at %s: %s", e.formatPath(), fmt.Sprintf(format, args...))
}

func (e *equal) formatPath() string {
	if len(e.path) == 0 {
		return "."
	}

	buf := new(strings.Builder)
	for _, e := range e.path {
		switch e := e.(type) {
		case protoreflect.Name, protoreflect.FullName:
			fmt.Fprintf(buf, ".%v", e)
		case string:
			fmt.Fprintf(buf, "[%q]", e)
		default:
			fmt.Fprintf(buf, "[%v]", e)
		}
	}

	return buf.String()
}
