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

package decl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"buf.build/go/protoschema/decl"
)

const squareProto = `syntax = "proto2";

package squareup.geology;

import "google/protobuf/descriptor.proto";
import public "squareup/common.proto";

// A period of geologic time.
message Period {
  required string name = 1;
  optional int32 start_mya = 2 [default = 66, deprecated = true];
  repeated int32 samples = 3 [packed = true];
  map<string, Period> subperiods = 4;
  oneof era {
    string cenozoic = 5;
    Kind kind = 6;
  }
  optional group Result = 7 {
    optional bool ok = 8;
  }

  enum Kind {
    option allow_alias = true;
    UNKNOWN = 0;
    NONE = 0;
  }

  extensions 100 to max;
  reserved 9, 11 to 13;
  reserved "old";
}

extend Period {
  optional string note = 100;
  optional string tag = 101;
}

extend google.protobuf.FieldOptions {
  optional bool redacted = 22300;
}

service Survey {
  option deprecated = true;
  rpc Date(Period) returns (stream Period);
}
`

func TestParse(t *testing.T) {
	t.Parallel()

	f, err := decl.Parse("squareup/geology.proto", []byte(squareProto))
	require.NoError(t, err)

	assert.Equal(t, "squareup/geology.proto", f.Path)
	assert.Equal(t, "squareup.geology", f.Package)
	assert.Equal(t, decl.Proto2, f.Syntax)
	assert.Equal(t, []string{"google/protobuf/descriptor.proto"}, f.Imports)
	assert.Equal(t, []string{"squareup/common.proto"}, f.PublicImports)

	require.Len(t, f.Types, 1)
	period, ok := f.Types[0].(*decl.Message)
	require.True(t, ok)
	assert.Equal(t, "Period", period.Name)
	assert.Equal(t, "A period of geologic time.", period.Doc)
	assert.Equal(t, 9, period.Location.Line)

	fields := make(map[string]*decl.Field)
	for _, field := range period.AllFields() {
		fields[field.Name] = field
	}
	require.Len(t, fields, 7)

	assert.Equal(t, decl.LabelRequired, fields["name"].Label)
	assert.Equal(t, "string", fields["name"].Type)

	assert.True(t, fields["start_mya"].HasDefault)
	assert.Equal(t, "66", fields["start_mya"].Default)
	require.NotNil(t, decl.FindOption(fields["start_mya"].Options, "deprecated"))
	assert.Nil(t, decl.FindOption(fields["start_mya"].Options, "default"))

	samples := fields["samples"]
	assert.Equal(t, decl.LabelRepeated, samples.Label)
	packed := decl.FindOption(samples.Options, "packed")
	require.NotNil(t, packed)
	assert.Equal(t, decl.OptionBool, packed.Kind)
	assert.Equal(t, true, packed.Value)

	assert.Equal(t, "map<string, Period>", fields["subperiods"].Type)

	require.Len(t, period.OneOfs, 1)
	assert.Equal(t, "era", period.OneOfs[0].Name)
	require.Len(t, period.OneOfs[0].Fields, 2)
	assert.Equal(t, "Kind", period.OneOfs[0].Fields[1].Type)

	assert.True(t, fields["result"].Group)
	assert.Equal(t, "Result", fields["result"].Type)

	// The map entry is folded away; the group and enum remain.
	var nested []string
	for _, n := range period.Nested {
		nested = append(nested, n.TypeName())
	}
	assert.ElementsMatch(t, []string{"Result", "Kind"}, nested)

	assert.Equal(t, []decl.Range{{Start: 100, End: decl.MaxTag}}, period.ExtensionRanges)
	assert.True(t, period.Reserved.HasNumber(9))
	assert.True(t, period.Reserved.HasNumber(13))
	assert.False(t, period.Reserved.HasNumber(14))
	assert.True(t, period.Reserved.HasName("old"))

	require.Len(t, f.Extends, 2)
	assert.Equal(t, "Period", f.Extends[0].Name)
	assert.Len(t, f.Extends[0].Fields, 2)
	assert.Equal(t, "google.protobuf.FieldOptions", f.Extends[1].Name)

	require.Len(t, f.Services, 1)
	svc := f.Services[0]
	require.Len(t, svc.Rpcs, 1)
	assert.Equal(t, "Period", svc.Rpcs[0].RequestType)
	assert.False(t, svc.Rpcs[0].RequestStreaming)
	assert.True(t, svc.Rpcs[0].ResponseStreaming)
	require.NotNil(t, decl.FindOption(svc.Options, "deprecated"))
}

func TestParseProto3(t *testing.T) {
	t.Parallel()

	f, err := decl.Parse("p3.proto", []byte(`
syntax = "proto3";
package p3;
message M {
  int32 implicit = 1;
  optional int32 explicit = 2;
  repeated string names = 3 [json_name = "allNames"];
  option (my.opt) = { a: 1 b: "x" };
}
`))
	require.NoError(t, err)
	assert.Equal(t, decl.Proto3, f.Syntax)

	m := f.Types[0].(*decl.Message) //nolint:errcheck
	require.Len(t, m.Fields, 3)
	assert.Empty(t, m.OneOfs)
	assert.Equal(t, decl.LabelImplicit, m.Fields[0].Label)
	assert.Equal(t, decl.LabelOptional, m.Fields[1].Label)
	assert.Equal(t, "allNames", m.Fields[2].JSONName)

	opt := decl.FindOption(m.Options, "(my.opt)")
	require.NotNil(t, opt)
	assert.Equal(t, decl.OptionMap, opt.Kind)
	entries := opt.Value.([]*decl.Option) //nolint:errcheck
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "1", entries[0].Value)
	assert.Equal(t, "x", entries[1].Value)
}

func TestSyntaxError(t *testing.T) {
	t.Parallel()

	_, err := decl.Parse("bad.proto", []byte("syntax = \"proto2\";\nmessage M {\n  optional int32 = 1;\n}\n"))
	require.Error(t, err)

	var se *decl.SyntaxError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, decl.ErrSyntax)
	assert.Equal(t, "bad.proto", se.Location.Path)
	assert.Equal(t, 3, se.Location.Line)
	assert.Positive(t, se.Location.Column)
}

func TestFromDescriptor(t *testing.T) {
	t.Parallel()

	fdp := protodesc.ToFileDescriptorProto(timestamppb.File_google_protobuf_timestamp_proto)
	f, err := decl.FromDescriptor(fdp)
	require.NoError(t, err)

	assert.Equal(t, "google/protobuf/timestamp.proto", f.Path)
	assert.Equal(t, "google.protobuf", f.Package)
	require.Len(t, f.Types, 1)
	ts := f.Types[0].(*decl.Message) //nolint:errcheck
	assert.Equal(t, "Timestamp", ts.Name)
	require.Len(t, ts.Fields, 2)
	assert.Equal(t, "int64", ts.Fields[0].Type)
	assert.Equal(t, decl.LabelImplicit, ts.Fields[0].Label)
	assert.Empty(t, ts.Fields[0].JSONName)

	goPackage := decl.FindOption(f.Options, "go_package")
	require.NotNil(t, goPackage)
	assert.Equal(t, decl.OptionString, goPackage.Kind)

	// Editions are not supported.
	fdp = &descriptorpb.FileDescriptorProto{
		Name:   ptr("m.proto"),
		Syntax: ptr("editions"),
	}
	_, err = decl.FromDescriptor(fdp)
	assert.Error(t, err)
}

func ptr[T any](v T) *T { return &v }
