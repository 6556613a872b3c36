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
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jhump/protoreflect/desc/protoparse"
)

// ErrSyntax is matched by every [SyntaxError].
var ErrSyntax = errors.New("syntax error")

// SyntaxError is returned when schema source text cannot be parsed.
type SyntaxError struct {
	Location Location
	Err      error
}

// Error implements [error].
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%v: %v", e.Location, e.Err)
}

// Unwrap implements error unwrapping viz [errors.Unwrap].
func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Is makes every SyntaxError match [ErrSyntax].
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

// Parse parses the source text of a single .proto file.
//
// path is the file's import path, which is recorded in every [Location].
// Imports are not followed; resolving them is the linker's job.
func Parse(path string, src []byte) (*File, error) {
	parser := protoparse.Parser{
		IncludeSourceCodeInfo: true,
		Accessor: protoparse.FileAccessor(func(filename string) (io.ReadCloser, error) {
			// Only the file being parsed has content. Anything else the
			// parser asks for, such as an import, is empty.
			if filename != path {
				return io.NopCloser(strings.NewReader("")), nil
			}
			return io.NopCloser(strings.NewReader(string(src))), nil
		}),
	}

	fds, err := parser.ParseFilesButDoNotLink(path)
	if err != nil {
		return nil, syntaxError(path, err)
	}
	if len(fds) == 0 {
		return nil, &SyntaxError{Location: Location{Path: path}, Err: errors.New("no file produced")}
	}

	f, err := FromDescriptor(fds[0])
	if err != nil {
		return nil, &SyntaxError{Location: Location{Path: path}, Err: err}
	}
	return f, nil
}

func syntaxError(path string, err error) error {
	e := &SyntaxError{Location: Location{Path: path}, Err: err}

	var pos protoparse.ErrorWithPos
	if errors.As(err, &pos) {
		p := pos.GetPosition()
		if p.Filename != "" {
			e.Location.Path = p.Filename
		}
		e.Location.Line, e.Location.Column = p.Line, p.Col
		e.Err = pos.Unwrap()
	}
	return e
}
