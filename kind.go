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
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"buf.build/go/protoschema/internal/wire"
	"buf.build/go/protoschema/internal/zigzag"
)

// Kind is the encoding of a field's values.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindUint32
	KindUint64
	KindSint32
	KindSint64
	KindFixed32
	KindFixed64
	KindSfixed32
	KindSfixed64
	KindFloat
	KindDouble
	KindString
	KindBytes
	KindEnum
	KindMessage
	KindGroup
)

var scalarKindOf = map[ProtoType]Kind{
	Bool:     KindBool,
	Int32:    KindInt32,
	Int64:    KindInt64,
	Uint32:   KindUint32,
	Uint64:   KindUint64,
	Sint32:   KindSint32,
	Sint64:   KindSint64,
	Fixed32:  KindFixed32,
	Fixed64:  KindFixed64,
	Sfixed32: KindSfixed32,
	Sfixed64: KindSfixed64,
	Float:    KindFloat,
	Double:   KindDouble,
	String:   KindString,
	Bytes:    KindBytes,
}

// String implements [fmt.Stringer].
func (k Kind) String() string {
	if int(k) < len(kinds) && kinds[k].name != "" {
		return kinds[k].name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// WireType returns the wire type values of this kind are encoded with,
// when not packed.
func (k Kind) WireType() protowire.Type {
	return kinds[k].wireType
}

// kindCodec is the table entry for a single [Kind].
//
// Message and group values are framed by the marshaler and unmarshaler
// directly, so their entries only carry names and wire types.
type kindCodec struct {
	name     string
	wireType protowire.Type
	packable bool

	zero any
	// append encodes a value, without its tag.
	append func([]byte, any) []byte
	// consume decodes a value whose tag has been read.
	consume func(*wire.Reader) (any, error)
	// coerce converts a caller-provided value to this kind's Go type.
	coerce func(any) (any, bool)
	// parse converts a default value literal.
	parse func(string) (any, error)
}

var kinds = [...]kindCodec{
	KindBool: {
		name: "bool", wireType: protowire.VarintType, packable: true, zero: false,
		append: func(b []byte, v any) []byte { return protowire.AppendVarint(b, protowire.EncodeBool(v.(bool))) },
		consume: func(r *wire.Reader) (any, error) {
			v, err := r.Varint()
			return v != 0, err
		},
		coerce: func(v any) (any, bool) {
			b, ok := v.(bool)
			return b, ok
		},
		parse: func(s string) (any, error) { return strconv.ParseBool(s) },
	},
	KindInt32: {
		name: "int32", wireType: protowire.VarintType, packable: true, zero: int32(0),
		append: func(b []byte, v any) []byte { return protowire.AppendVarint(b, uint64(int64(v.(int32)))) },
		consume: func(r *wire.Reader) (any, error) {
			v, err := r.Varint()
			return int32(v), err
		},
		coerce: coerceInt32, parse: parseInt32,
	},
	KindInt64: {
		name: "int64", wireType: protowire.VarintType, packable: true, zero: int64(0),
		append: func(b []byte, v any) []byte { return protowire.AppendVarint(b, uint64(v.(int64))) },
		consume: func(r *wire.Reader) (any, error) {
			v, err := r.Varint()
			return int64(v), err
		},
		coerce: coerceInt64, parse: parseInt64,
	},
	KindUint32: {
		name: "uint32", wireType: protowire.VarintType, packable: true, zero: uint32(0),
		append: func(b []byte, v any) []byte { return protowire.AppendVarint(b, uint64(v.(uint32))) },
		consume: func(r *wire.Reader) (any, error) {
			v, err := r.Varint()
			return uint32(v), err
		},
		coerce: coerceUint32, parse: parseUint32,
	},
	KindUint64: {
		name: "uint64", wireType: protowire.VarintType, packable: true, zero: uint64(0),
		append: func(b []byte, v any) []byte { return protowire.AppendVarint(b, v.(uint64)) },
		consume: func(r *wire.Reader) (any, error) {
			return r.Varint()
		},
		coerce: coerceUint64, parse: parseUint64,
	},
	KindSint32: {
		name: "sint32", wireType: protowire.VarintType, packable: true, zero: int32(0),
		append: func(b []byte, v any) []byte { return protowire.AppendVarint(b, zigzag.Encode(v.(int32))) },
		consume: func(r *wire.Reader) (any, error) {
			v, err := r.Varint()
			return zigzag.Decode[int32](v), err
		},
		coerce: coerceInt32, parse: parseInt32,
	},
	KindSint64: {
		name: "sint64", wireType: protowire.VarintType, packable: true, zero: int64(0),
		append: func(b []byte, v any) []byte { return protowire.AppendVarint(b, zigzag.Encode(v.(int64))) },
		consume: func(r *wire.Reader) (any, error) {
			v, err := r.Varint()
			return zigzag.Decode[int64](v), err
		},
		coerce: coerceInt64, parse: parseInt64,
	},
	KindFixed32: {
		name: "fixed32", wireType: protowire.Fixed32Type, packable: true, zero: uint32(0),
		append: func(b []byte, v any) []byte { return protowire.AppendFixed32(b, v.(uint32)) },
		consume: func(r *wire.Reader) (any, error) {
			return r.Fixed32()
		},
		coerce: coerceUint32, parse: parseUint32,
	},
	KindFixed64: {
		name: "fixed64", wireType: protowire.Fixed64Type, packable: true, zero: uint64(0),
		append: func(b []byte, v any) []byte { return protowire.AppendFixed64(b, v.(uint64)) },
		consume: func(r *wire.Reader) (any, error) {
			return r.Fixed64()
		},
		coerce: coerceUint64, parse: parseUint64,
	},
	KindSfixed32: {
		name: "sfixed32", wireType: protowire.Fixed32Type, packable: true, zero: int32(0),
		append: func(b []byte, v any) []byte { return protowire.AppendFixed32(b, uint32(v.(int32))) },
		consume: func(r *wire.Reader) (any, error) {
			v, err := r.Fixed32()
			return int32(v), err
		},
		coerce: coerceInt32, parse: parseInt32,
	},
	KindSfixed64: {
		name: "sfixed64", wireType: protowire.Fixed64Type, packable: true, zero: int64(0),
		append: func(b []byte, v any) []byte { return protowire.AppendFixed64(b, uint64(v.(int64))) },
		consume: func(r *wire.Reader) (any, error) {
			v, err := r.Fixed64()
			return int64(v), err
		},
		coerce: coerceInt64, parse: parseInt64,
	},
	KindFloat: {
		name: "float", wireType: protowire.Fixed32Type, packable: true, zero: float32(0),
		append: func(b []byte, v any) []byte { return protowire.AppendFixed32(b, math.Float32bits(v.(float32))) },
		consume: func(r *wire.Reader) (any, error) {
			v, err := r.Fixed32()
			return math.Float32frombits(v), err
		},
		coerce: func(v any) (any, bool) {
			switch v := v.(type) {
			case float32:
				return v, true
			case float64:
				return float32(v), true
			case int:
				return float32(v), true
			}
			return nil, false
		},
		parse: func(s string) (any, error) {
			f, err := parseFloat(s, 32)
			return float32(f), err
		},
	},
	KindDouble: {
		name: "double", wireType: protowire.Fixed64Type, packable: true, zero: float64(0),
		append: func(b []byte, v any) []byte { return protowire.AppendFixed64(b, math.Float64bits(v.(float64))) },
		consume: func(r *wire.Reader) (any, error) {
			v, err := r.Fixed64()
			return math.Float64frombits(v), err
		},
		coerce: func(v any) (any, bool) {
			switch v := v.(type) {
			case float64:
				return v, true
			case float32:
				return float64(v), true
			case int:
				return float64(v), true
			}
			return nil, false
		},
		parse: func(s string) (any, error) { return parseFloat(s, 64) },
	},
	KindString: {
		name: "string", wireType: protowire.BytesType, zero: "",
		append: func(b []byte, v any) []byte { return protowire.AppendString(b, v.(string)) },
		consume: func(r *wire.Reader) (any, error) {
			v, err := r.Bytes()
			return string(v), err
		},
		coerce: func(v any) (any, bool) {
			s, ok := v.(string)
			return s, ok
		},
		parse: func(s string) (any, error) { return s, nil },
	},
	KindBytes: {
		name: "bytes", wireType: protowire.BytesType, zero: []byte(nil),
		append: func(b []byte, v any) []byte { return protowire.AppendBytes(b, v.([]byte)) },
		consume: func(r *wire.Reader) (any, error) {
			v, err := r.Bytes()
			return bytes.Clone(v), err
		},
		coerce: func(v any) (any, bool) {
			b, ok := v.([]byte)
			return b, ok
		},
		parse: func(s string) (any, error) { return unescapeBytes(s) },
	},
	KindEnum: {
		name: "enum", wireType: protowire.VarintType, packable: true, zero: int32(0),
		append: func(b []byte, v any) []byte { return protowire.AppendVarint(b, uint64(int64(v.(int32)))) },
		consume: func(r *wire.Reader) (any, error) {
			v, err := r.Varint()
			return int32(v), err
		},
		coerce: func(v any) (any, bool) {
			if c, ok := v.(*EnumConstant); ok {
				return c.number, true
			}
			return coerceInt32(v)
		},
	},
	KindMessage: {name: "message", wireType: protowire.BytesType},
	KindGroup:   {name: "group", wireType: protowire.StartGroupType},
}

func coerceInt32(v any) (any, bool) {
	switch v := v.(type) {
	case int32:
		return v, true
	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return int32(v), true
		}
	}
	return nil, false
}

func coerceInt64(v any) (any, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	}
	return nil, false
}

func coerceUint32(v any) (any, bool) {
	switch v := v.(type) {
	case uint32:
		return v, true
	case int:
		if v >= 0 && v <= math.MaxUint32 {
			return uint32(v), true
		}
	}
	return nil, false
}

func coerceUint64(v any) (any, bool) {
	switch v := v.(type) {
	case uint64:
		return v, true
	case uint32:
		return uint64(v), true
	case int:
		if v >= 0 {
			return uint64(v), true
		}
	}
	return nil, false
}

func parseInt32(s string) (any, error) {
	n, err := strconv.ParseInt(s, 0, 32)
	return int32(n), err
}

func parseInt64(s string) (any, error) {
	return strconv.ParseInt(s, 0, 64)
}

func parseUint32(s string) (any, error) {
	n, err := strconv.ParseUint(s, 0, 32)
	return uint32(n), err
}

func parseUint64(s string) (any, error) {
	return strconv.ParseUint(s, 0, 64)
}

// unescapeBytes decodes the C-style escapes used for bytes default values in
// descriptors.
func unescapeBytes(s string) ([]byte, error) {
	if !strings.ContainsRune(s, '\\') {
		return []byte(s), nil
	}

	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i == len(s) {
			return nil, fmt.Errorf("trailing backslash in %q", s)
		}
		switch c := s[i]; c {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'a':
			out = append(out, '\a')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'v':
			out = append(out, '\v')
		case '\\', '\'', '"', '?':
			out = append(out, c)
		case 'x', 'X':
			j := i + 1
			for j < len(s) && j < i+3 && isHex(s[j]) {
				j++
			}
			n, err := strconv.ParseUint(s[i+1:j], 16, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid hex escape in %q", s)
			}
			out = append(out, byte(n))
			i = j - 1
		default:
			j := i
			for j < len(s) && j < i+3 && '0' <= s[j] && s[j] <= '7' {
				j++
			}
			n, err := strconv.ParseUint(s[i:j], 8, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid escape in %q", s)
			}
			out = append(out, byte(n))
			i = j - 1
		}
	}
	return out, nil
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

// isZero returns whether v is the zero value of its kind, and therefore
// omitted for fields without presence.
func isZero(v any) bool {
	switch v := v.(type) {
	case bool:
		return !v
	case int32:
		return v == 0
	case int64:
		return v == 0
	case uint32:
		return v == 0
	case uint64:
		return v == 0
	case float32:
		return v == 0 && !math.Signbit(float64(v))
	case float64:
		return v == 0 && !math.Signbit(v)
	case string:
		return v == ""
	case []byte:
		return len(v) == 0
	}
	return false
}
