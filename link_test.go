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

package protoschema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buf.build/go/protoschema"
	"buf.build/go/protoschema/decl"
)

// load links the given root files, fetching everything from sources.
func load(sources map[string]string, roots ...string) (*protoschema.Schema, error) {
	return protoschema.Load(roots, protoschema.WithLoader(protoschema.NewSourceLoader(sources)))
}

// mustLoad links a single file named test.proto.
func mustLoad(t *testing.T, src string) *protoschema.Schema {
	t.Helper()
	schema, err := load(map[string]string{"test.proto": src}, "test.proto")
	require.NoError(t, err)
	return schema
}

// linkMessage links a single hand-built message, bypassing the parser's own
// checks.
func linkMessage(syntax decl.Syntax, m *decl.Message) error {
	_, err := protoschema.Link([]*decl.File{{
		Location: decl.Location{Path: "hand.proto"},
		Path:     "hand.proto",
		Package:  "hand",
		Syntax:   syntax,
		Types:    []decl.Type{m},
	}})
	return err
}

func TestLinkScopes(t *testing.T) {
	t.Parallel()

	schema := mustLoad(t, `
		syntax = "proto2";
		package a.b;

		message Outer {
			message Inner {}
			optional Inner inner = 1;
		}

		message Other {
			message Outer {
				message Inner {}
			}
			optional Outer.Inner shadowed = 1;
			optional .a.b.Outer.Inner absolute = 2;
			optional b.Outer partial = 3;
			optional Status status = 4;
		}

		enum Status {
			UNKNOWN = 0;
		}
	`)

	outer := schema.Message("a.b.Outer")
	require.NotNil(t, outer)
	assert.Equal(t, "a.b.Outer.Inner", outer.Field("inner").Type().String())

	other := schema.Message("a.b.Other")
	require.NotNil(t, other)
	assert.Equal(t, "a.b.Other.Outer.Inner", other.Field("shadowed").Type().String())
	assert.Equal(t, "a.b.Outer.Inner", other.Field("absolute").Type().String())
	assert.Equal(t, "a.b.Outer", other.Field("partial").Type().String())
	assert.Equal(t, "Outer.Inner", other.Field("shadowed").DeclaredType())

	status := other.Field("status")
	require.IsType(t, &protoschema.EnumType{}, status.Elem())
	assert.Equal(t, "a.b.Other#status", status.Member())
	assert.Same(t, schema.Field("a.b.Other#status"), status)
	assert.Equal(t, "a.b.Status", schema.Enum("a.b.Status").ProtoType().String())
}

func TestLinkVisibility(t *testing.T) {
	t.Parallel()

	sources := map[string]string{
		"a.proto": `syntax = "proto3"; package p; message A {}`,
		"b.proto": `syntax = "proto3"; package p; import public "a.proto";`,
		"c.proto": `syntax = "proto3"; package p; import "b.proto"; message C { A a = 1; }`,
		"d.proto": `syntax = "proto3"; package p; import "c.proto"; message D { C c = 1; A a = 2; }`,
	}

	schema, err := load(sources, "c.proto")
	require.NoError(t, err)
	assert.Equal(t, "p.A", schema.Message("p.C").Field("a").Type().String())
	assert.NotNil(t, schema.File("a.proto"))
	assert.Equal(t, []string{"a.proto"}, schema.File("b.proto").PublicImports())

	_, err = load(sources, "d.proto")
	require.ErrorIs(t, err, protoschema.ErrLink)
	assert.ErrorContains(t, err, "p.A is declared in a.proto, which is not imported by d.proto")
}

func TestLinkErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sources map[string]string
		err     error
		message string
	}{
		{
			name: "duplicate",
			sources: map[string]string{
				"test.proto":  `syntax = "proto3"; package p; import "other.proto"; message M {}`,
				"other.proto": `syntax = "proto3"; package p; message M {}`,
			},
			err:     protoschema.ErrLink,
			message: "p.M is already defined",
		},
		{
			name: "unresolved",
			sources: map[string]string{
				"test.proto": `syntax = "proto3"; package p; message M { Missing m = 1; }`,
			},
			err:     protoschema.ErrLink,
			message: "unable to resolve Missing",
		},
		{
			name: "map-enum-nonzero",
			sources: map[string]string{
				"test.proto": `
					syntax = "proto2";
					package p;
					enum Color { RED = 1; GREEN = 2; }
					message M { map<string, Color> m = 1; }`,
			},
			err:     protoschema.ErrLink,
			message: "map value p.Color must be an enum whose first constant is zero",
		},
		{
			name: "missing-import",
			sources: map[string]string{
				"test.proto": `syntax = "proto3"; import "nowhere.proto";`,
			},
			err: protoschema.ErrFileNotFound,
		},
		{
			name: "extension-range",
			sources: map[string]string{
				"test.proto": `
					syntax = "proto2";
					package p;
					message M { extensions 100 to 200; }
					extend M { optional int32 x = 300; }
				`,
			},
			err:     protoschema.ErrLink,
			message: "tag 300 is not in an extension range of p.M",
		},
		{
			name: "extension-conflict",
			sources: map[string]string{
				"test.proto": `
					syntax = "proto2";
					package p;
					message M { extensions 100 to 200; }
					extend M { optional int32 x = 100; }
					extend M { optional int32 y = 100; }
				`,
			},
			err:     protoschema.ErrLink,
			message: "is already used by",
		},
		{
			name: "extend-enum",
			sources: map[string]string{
				"test.proto": `
					syntax = "proto2";
					package p;
					enum E { A = 0; }
					extend E { optional int32 x = 100; }
				`,
			},
			err:     protoschema.ErrLink,
			message: "extended type p.E is not a message",
		},
		{
			name: "rpc-enum",
			sources: map[string]string{
				"test.proto": `
					syntax = "proto3";
					package p;
					enum E { A = 0; }
					message M {}
					service S { rpc Do(E) returns (M); }
				`,
			},
			err:     protoschema.ErrLink,
			message: "rpc Do: p.E is not a message",
		},
		{
			name: "unknown-option",
			sources: map[string]string{
				"test.proto": `syntax = "proto3"; option not_an_option = true;`,
			},
			err:     protoschema.ErrLink,
			message: "google.protobuf.FileOptions has no field named not_an_option",
		},
		{
			name: "unknown-extension-option",
			sources: map[string]string{
				"test.proto": `syntax = "proto3"; message M { option (nope) = 1; }`,
			},
			err:     protoschema.ErrLink,
			message: "unable to resolve extension nope",
		},
		{
			name: "option-type",
			sources: map[string]string{
				"test.proto": `syntax = "proto3"; option java_package = 42;`,
			},
			err:     protoschema.ErrLink,
			message: "option java_package",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			schema, err := load(tt.sources, "test.proto")
			require.ErrorIs(t, err, tt.err)
			assert.Nil(t, schema)
			if tt.message != "" {
				assert.ErrorContains(t, err, tt.message)
			}
		})
	}
}

func TestLinkValidation(t *testing.T) {
	t.Parallel()

	field := func(name string, tag int32) *decl.Field {
		return &decl.Field{Label: decl.LabelOptional, Type: "int32", Name: name, Tag: tag}
	}

	tests := []struct {
		name    string
		syntax  decl.Syntax
		message *decl.Message
		err     string
	}{
		{
			name:    "zero-tag",
			message: &decl.Message{Name: "M", Fields: []*decl.Field{field("a", 0)}},
			err:     "tag 0 is out of range",
		},
		{
			name:    "max-tag",
			message: &decl.Message{Name: "M", Fields: []*decl.Field{field("a", decl.MaxTag+1)}},
			err:     "tag 536870912 is out of range",
		},
		{
			name:    "implementation-range",
			message: &decl.Message{Name: "M", Fields: []*decl.Field{field("a", 19500)}},
			err:     "reserved for the protobuf implementation",
		},
		{
			name:    "duplicate-tag",
			message: &decl.Message{Name: "M", Fields: []*decl.Field{field("a", 1), field("b", 1)}},
			err:     "hand.M#b: tag 1 is already used by a",
		},
		{
			name: "reserved-tag",
			message: &decl.Message{
				Name:     "M",
				Fields:   []*decl.Field{field("a", 5)},
				Reserved: decl.Reserved{Ranges: []decl.Range{{Start: 4, End: 6}}},
			},
			err: "tag 5 is reserved",
		},
		{
			name: "reserved-name",
			message: &decl.Message{
				Name:     "M",
				Fields:   []*decl.Field{field("a", 1)},
				Reserved: decl.Reserved{Names: []string{"a"}},
			},
			err: "name \"a\" is reserved",
		},
		{
			name: "extension-overlap",
			message: &decl.Message{
				Name:            "M",
				Fields:          []*decl.Field{field("a", 10)},
				ExtensionRanges: []decl.Range{{Start: 10, End: 20}},
			},
			err: "overlaps an extension range",
		},
		{
			name:   "proto3-required",
			syntax: decl.Proto3,
			message: &decl.Message{Name: "M", Fields: []*decl.Field{
				{Label: decl.LabelRequired, Type: "int32", Name: "a", Tag: 1},
			}},
			err: "required fields are not allowed in proto3",
		},
		{
			name: "repeated-default",
			message: &decl.Message{Name: "M", Fields: []*decl.Field{
				{Label: decl.LabelRepeated, Type: "int32", Name: "a", Tag: 1, Default: "1", HasDefault: true},
			}},
			err: "repeated fields may not have default values",
		},
		{
			name: "packed-singular",
			message: &decl.Message{Name: "M", Fields: []*decl.Field{{
				Label: decl.LabelOptional, Type: "int32", Name: "a", Tag: 1,
				Options: []*decl.Option{{Name: "packed", Kind: decl.OptionBool, Value: true}},
			}}},
			err: "may only be set on repeated numeric or enum fields",
		},
		{
			name: "map-required",
			message: &decl.Message{Name: "M", Fields: []*decl.Field{
				{Label: decl.LabelRequired, Type: "map<string, int32>", Name: "a", Tag: 1},
			}},
			err: "map field a may not be required",
		},
		{
			name: "bad-map-key",
			message: &decl.Message{Name: "M", Fields: []*decl.Field{
				{Label: decl.LabelRepeated, Type: "map<double, int32>", Name: "a", Tag: 1},
			}},
			err: "map key",
		},
		{
			name: "empty-oneof",
			message: &decl.Message{Name: "M", OneOfs: []*decl.OneOf{{Name: "o"}}},
			err:     "oneof o must have at least one field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			syntax := tt.syntax
			if syntax == "" {
				syntax = decl.Proto2
			}
			err := linkMessage(syntax, tt.message)
			require.ErrorIs(t, err, protoschema.ErrLink)
			assert.ErrorContains(t, err, tt.err)
		})
	}
}

func TestLinkEnums(t *testing.T) {
	t.Parallel()

	link := func(syntax decl.Syntax, e *decl.Enum) error {
		_, err := protoschema.Link([]*decl.File{{
			Path:   "enum.proto",
			Syntax: syntax,
			Types:  []decl.Type{e},
		}})
		return err
	}
	values := func(numbers ...int32) []*decl.EnumValue {
		var out []*decl.EnumValue
		for i, n := range numbers {
			out = append(out, &decl.EnumValue{Name: string(rune('A' + i)), Number: n})
		}
		return out
	}

	err := link(decl.Proto2, &decl.Enum{Name: "E", Values: values(1, 1)})
	require.ErrorIs(t, err, protoschema.ErrLink)
	assert.ErrorContains(t, err, "set allow_alias to permit aliases")

	require.NoError(t, link(decl.Proto2, &decl.Enum{
		Name:    "E",
		Values:  values(1, 1),
		Options: []*decl.Option{{Name: "allow_alias", Kind: decl.OptionBool, Value: true}},
	}))

	err = link(decl.Proto3, &decl.Enum{Name: "E", Values: values(1, 0)})
	assert.ErrorContains(t, err, "the first constant of a proto3 enum must be zero")

	err = link(decl.Proto2, &decl.Enum{Name: "E"})
	assert.ErrorContains(t, err, "must have at least one constant")

	err = link(decl.Proto2, &decl.Enum{
		Name:     "E",
		Values:   values(0, 3),
		Reserved: decl.Reserved{Ranges: []decl.Range{{Start: 2, End: 4}}},
	})
	assert.ErrorContains(t, err, "E#B: value 3 is reserved")
}

func TestLinkOptions(t *testing.T) {
	t.Parallel()

	schema := mustLoad(t, `
		syntax = "proto2";
		package opts;

		import "google/protobuf/descriptor.proto";

		option java_package = "com.example.opts";

		extend google.protobuf.FieldOptions {
			optional bool redacted = 50000;
			optional Rule rule = 50001;
		}

		message Rule {
			optional int32 min = 1;
			repeated string tags = 2;
			optional Level level = 3;
		}

		enum Level {
			LOW = 0;
			HIGH = 1;
		}

		message M {
			optional string secret = 1 [(redacted) = true, deprecated = true];
			optional int32 n = 2 [(opts.rule) = { min: -3 tags: ["a", "b"] level: HIGH }];
			repeated int32 packed = 3 [packed = true];
			repeated int32 unpacked = 4;
		}
	`)

	file := schema.File("test.proto")
	v, ok := file.Options().Get("java_package")
	require.True(t, ok)
	assert.Equal(t, "com.example.opts", v)

	m := schema.Message("opts.M")
	secret := m.Field("secret")
	assert.True(t, secret.IsRedacted())
	assert.True(t, secret.IsDeprecated())
	assert.False(t, m.Field("n").IsRedacted())

	v, ok = m.Field("n").Options().Get("(opts.rule)")
	require.True(t, ok)
	entries, ok := v.([]protoschema.OptionEntry)
	require.True(t, ok)
	require.Len(t, entries, 3)
	assert.Equal(t, "min", entries[0].Name())
	assert.Equal(t, int32(-3), entries[0].Value)
	assert.Equal(t, "tags", entries[1].Name())
	assert.Equal(t, []any{"a", "b"}, entries[1].Value)
	level, ok := entries[2].Value.(*protoschema.EnumConstant)
	require.True(t, ok)
	assert.Equal(t, "HIGH", level.Name())
	assert.Equal(t, int32(1), level.Number())

	assert.True(t, m.Field("packed").IsPacked())
	assert.False(t, m.Field("unpacked").IsPacked())

	ext := schema.Extension("opts.redacted")
	require.NotNil(t, ext)
	assert.Equal(t, "google.protobuf.FieldOptions", ext.Declarer().String())
	assert.Contains(t, schema.Extensions(protoschema.NamedType("google.protobuf.FieldOptions")), ext)
}

func TestLinkProto3Defaults(t *testing.T) {
	t.Parallel()

	schema := mustLoad(t, `
		syntax = "proto3";
		package p;
		message M {
			repeated int32 packed = 1;
			repeated int32 unpacked = 2 [packed = false];
			repeated string strings = 3;
			int32 implicit = 4;
			optional int32 explicit = 5;
			map<string, int32> counts = 6;
		}
	`)

	m := schema.Message("p.M")
	assert.True(t, m.Field("packed").IsPacked())
	assert.False(t, m.Field("unpacked").IsPacked())
	assert.False(t, m.Field("strings").IsPacked())
	assert.False(t, m.Field("implicit").HasPresence())
	assert.True(t, m.Field("explicit").HasPresence())
	assert.True(t, m.Field("counts").IsMap())
	assert.False(t, m.Field("counts").IsRepeated())
	assert.Equal(t, "map<string, int32>", m.Field("counts").Type().String())
}

func TestLinkWellKnownTypes(t *testing.T) {
	t.Parallel()

	src := `
		syntax = "proto3";
		package p;
		import "google/protobuf/timestamp.proto";
		message M { google.protobuf.Timestamp at = 1; }
	`
	file, err := decl.Parse("test.proto", []byte(src))
	require.NoError(t, err)

	schema, err := protoschema.Link([]*decl.File{file})
	require.NoError(t, err)
	assert.NotNil(t, schema.Message("google.protobuf.Timestamp"))
	assert.NotNil(t, schema.File("google/protobuf/descriptor.proto"))

	_, err = protoschema.Link([]*decl.File{file}, protoschema.WithoutWellKnownTypes())
	require.ErrorIs(t, err, protoschema.ErrFileNotFound)
}

func TestLinkDuplicateFile(t *testing.T) {
	t.Parallel()

	file, err := decl.Parse("test.proto", []byte(`syntax = "proto3";`))
	require.NoError(t, err)

	_, err = protoschema.Link([]*decl.File{file, file})
	require.ErrorIs(t, err, protoschema.ErrLink)
	assert.ErrorContains(t, err, "file \"test.proto\" is already defined")
}

func TestLinkLeavesInputUnchanged(t *testing.T) {
	t.Parallel()

	file := &decl.File{
		Location: decl.Location{Path: "hand.proto"},
		Path:     "hand.proto",
		Package:  "hand",
		Types:    []decl.Type{&decl.Message{Name: "M"}},
	}
	schema, err := protoschema.Link([]*decl.File{file})
	require.NoError(t, err)
	assert.Equal(t, decl.Proto2, schema.File("hand.proto").Syntax())
	assert.Equal(t, decl.Syntax(""), file.Syntax)

	dep := &decl.File{Package: "dep", Types: []decl.Type{&decl.Message{Name: "D"}}}
	loader := protoschema.LoaderFunc(func(path string) (*decl.File, error) {
		if path != "dep.proto" {
			return nil, &protoschema.FileNotFoundError{Path: path}
		}
		return dep, nil
	})
	schema, err = protoschema.Load([]string{"dep.proto"}, protoschema.WithLoader(loader))
	require.NoError(t, err)
	require.NotNil(t, schema.File("dep.proto"))
	assert.Empty(t, dep.Path)
	assert.Empty(t, dep.Syntax)
}

func TestLinkServices(t *testing.T) {
	t.Parallel()

	schema := mustLoad(t, `
		syntax = "proto3";
		package svc.v1;
		message Req {}
		message Resp {}
		service Greeter {
			rpc Hello(Req) returns (Resp);
			rpc Chat(stream Req) returns (stream Resp) {
				option deprecated = true;
			}
		}
	`)

	svc := schema.Service("svc.v1.Greeter")
	require.NotNil(t, svc)
	require.Len(t, svc.Rpcs(), 2)

	hello := svc.Rpc("Hello")
	assert.Equal(t, "svc.v1.Req", hello.RequestType().String())
	assert.Equal(t, "svc.v1.Resp", hello.ResponseType().String())
	assert.False(t, hello.RequestStreaming())
	assert.Equal(t, "svc.v1.Greeter#Hello", hello.Member())

	chat := svc.Rpc("Chat")
	assert.True(t, chat.RequestStreaming())
	assert.True(t, chat.ResponseStreaming())
	assert.True(t, chat.Options().Bool("deprecated"))
}
