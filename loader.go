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
	"errors"
	"os"
	"path"

	"github.com/spf13/afero"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"

	"buf.build/go/protoschema/decl"

	// Register the well-known types, so that they can be imported without a
	// loader.
	_ "google.golang.org/protobuf/types/descriptorpb"
	_ "google.golang.org/protobuf/types/known/anypb"
	_ "google.golang.org/protobuf/types/known/apipb"
	_ "google.golang.org/protobuf/types/known/durationpb"
	_ "google.golang.org/protobuf/types/known/emptypb"
	_ "google.golang.org/protobuf/types/known/fieldmaskpb"
	_ "google.golang.org/protobuf/types/known/sourcecontextpb"
	_ "google.golang.org/protobuf/types/known/structpb"
	_ "google.golang.org/protobuf/types/known/timestamppb"
	_ "google.golang.org/protobuf/types/known/typepb"
	_ "google.golang.org/protobuf/types/known/wrapperspb"
)

// descriptorProto is the file that every options message lives in.
const descriptorProto = "google/protobuf/descriptor.proto"

// Loader fetches files by import path, for files that are imported but were
// not passed to [Link] directly.
//
// A Loader that cannot find a file should return an error that matches
// [ErrFileNotFound].
type Loader interface {
	Load(path string) (*decl.File, error)
}

// LoaderFunc adapts a function into a [Loader].
type LoaderFunc func(path string) (*decl.File, error)

// Load implements [Loader].
func (f LoaderFunc) Load(path string) (*decl.File, error) {
	return f(path)
}

// NewFSLoader returns a loader that parses files from a filesystem. Each
// import path is looked up under each root in turn; with no roots, paths are
// looked up relative to the filesystem's root.
func NewFSLoader(fs afero.Fs, roots ...string) Loader {
	if len(roots) == 0 {
		roots = []string{"."}
	}
	return &fsLoader{fs: fs, roots: roots}
}

type fsLoader struct {
	fs    afero.Fs
	roots []string
}

func (l *fsLoader) Load(file string) (*decl.File, error) {
	for _, root := range l.roots {
		data, err := afero.ReadFile(l.fs, path.Join(root, file))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return decl.Parse(file, data)
	}
	return nil, &FileNotFoundError{Path: file}
}

// NewSourceLoader returns a loader that parses in-memory source text, keyed
// by import path.
func NewSourceLoader(sources map[string]string) Loader {
	return LoaderFunc(func(file string) (*decl.File, error) {
		src, ok := sources[file]
		if !ok {
			return nil, &FileNotFoundError{Path: file}
		}
		return decl.Parse(file, []byte(src))
	})
}

// WellKnownLoader returns a loader for the google/protobuf/*.proto files
// that are compiled into this binary.
func WellKnownLoader() Loader {
	return LoaderFunc(func(file string) (*decl.File, error) {
		fd, err := protoregistry.GlobalFiles.FindFileByPath(file)
		if err != nil {
			return nil, &FileNotFoundError{Path: file}
		}
		return decl.FromDescriptor(protodesc.ToFileDescriptorProto(fd))
	})
}
