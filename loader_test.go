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

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buf.build/go/protoschema"
	"buf.build/go/protoschema/decl"
)

func TestFSLoader(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("protos/pets/v1", 0o755))
	require.NoError(t, fs.MkdirAll("vendor/common", 0o755))
	require.NoError(t, afero.WriteFile(fs, "protos/pets/v1/pets.proto", []byte(`
		syntax = "proto3";
		package pets.v1;
		import "common/money.proto";
		message Pet {
			string name = 1;
			common.Money price = 2;
		}
	`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "vendor/common/money.proto", []byte(`
		syntax = "proto3";
		package common;
		message Money {
			string currency = 1;
			int64 units = 2;
		}
	`), 0o644))

	loader := protoschema.NewFSLoader(fs, "protos", "vendor")
	schema, err := protoschema.Load([]string{"pets/v1/pets.proto"}, protoschema.WithLoader(loader))
	require.NoError(t, err)

	pets := schema.File("pets/v1/pets.proto")
	require.NotNil(t, pets)
	assert.Equal(t, "pets.v1", pets.Package())
	assert.Equal(t, decl.Proto3, pets.Syntax())
	assert.Equal(t, "common.Money", schema.Message("pets.v1.Pet").Field("price").Type().String())
	assert.NotNil(t, schema.File("common/money.proto"))

	_, err = loader.Load("missing.proto")
	require.ErrorIs(t, err, protoschema.ErrFileNotFound)

	_, err = protoschema.Load([]string{"missing.proto"}, protoschema.WithLoader(loader))
	require.ErrorIs(t, err, protoschema.ErrFileNotFound)
}

func TestLoadRequiresLoader(t *testing.T) {
	t.Parallel()

	_, err := protoschema.Load([]string{"a.proto"})
	require.Error(t, err)
}

func TestLoaderFunc(t *testing.T) {
	t.Parallel()

	var requested []string
	loader := protoschema.LoaderFunc(func(path string) (*decl.File, error) {
		requested = append(requested, path)
		if path != "root.proto" {
			return nil, &protoschema.FileNotFoundError{Path: path}
		}
		return decl.Parse(path, []byte(`
			syntax = "proto3";
			import "google/protobuf/duration.proto";
			message Timeout { google.protobuf.Duration after = 1; }
		`))
	})

	schema, err := protoschema.Load([]string{"root.proto"}, protoschema.WithLoader(loader))
	require.NoError(t, err)
	assert.Equal(t, "google.protobuf.Duration", schema.Message("Timeout").Field("after").Type().String())
	assert.Contains(t, requested, "google/protobuf/duration.proto")
}

func TestSyntaxError(t *testing.T) {
	t.Parallel()

	_, err := load(map[string]string{"bad.proto": "message {"}, "bad.proto")
	require.ErrorIs(t, err, protoschema.ErrSyntax)

	var syntax *protoschema.SyntaxError
	require.ErrorAs(t, err, &syntax)
	assert.Equal(t, "bad.proto", syntax.Location.Path)
}
