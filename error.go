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
	"fmt"
	"strings"

	"buf.build/go/protoschema/decl"
	"buf.build/go/protoschema/internal/wire"
)

// Sentinels for matching the errors returned by this package with
// [errors.Is].
var (
	ErrLink               = errors.New("link error")
	ErrFileNotFound       = errors.New("file not found")
	ErrMalformed          = wire.ErrMalformed
	ErrUninitialized      = errors.New("required fields not set")
	ErrPruneInconsistency = errors.New("field refers to a pruned type")
	ErrSyntax             = decl.ErrSyntax
)

// SyntaxError is returned when schema source text cannot be parsed.
type SyntaxError = decl.SyntaxError

// ParseError is returned when wire bytes are malformed. It matches
// [ErrMalformed].
type ParseError = wire.ParseError

// LinkError is returned when a set of files cannot be linked into a
// [Schema].
type LinkError struct {
	Location decl.Location
	Err      error
}

func linkErrorf(loc decl.Location, format string, args ...any) *LinkError {
	return &LinkError{Location: loc, Err: fmt.Errorf(format, args...)}
}

// Error implements [error].
func (e *LinkError) Error() string {
	return fmt.Sprintf("%v: %v", e.Location, e.Err)
}

// Unwrap implements error unwrapping viz [errors.Unwrap].
func (e *LinkError) Unwrap() error {
	return e.Err
}

// Is makes every LinkError match [ErrLink].
func (e *LinkError) Is(target error) bool {
	return target == ErrLink
}

// FileNotFoundError is returned by a [Loader] that cannot find a file.
type FileNotFoundError struct {
	Path string
}

// Error implements [error].
func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("protoschema: file not found: %s", e.Path)
}

// Is makes every FileNotFoundError match [ErrFileNotFound].
func (e *FileNotFoundError) Is(target error) bool {
	return target == ErrFileNotFound
}

// UninitializedMessageError is returned when a message is missing required
// fields.
type UninitializedMessageError struct {
	// Type is the outermost message type being checked.
	Type ProtoType
	// Missing are the paths to the missing fields, such as "a.b.c".
	Missing []string
}

// Error implements [error].
func (e *UninitializedMessageError) Error() string {
	return fmt.Sprintf("protoschema: %v: required fields not set: %s", e.Type, strings.Join(e.Missing, ", "))
}

// Unwrap implements error unwrapping viz [errors.Unwrap].
func (e *UninitializedMessageError) Unwrap() error {
	return ErrUninitialized
}

// PruneInconsistencyError is returned when pruning would leave a kept member
// referring to a type that was pruned.
type PruneInconsistencyError struct {
	// Member is the member that refers to Type, such as "foo.Bar#baz".
	Member string
	Type   ProtoType
}

// Error implements [error].
func (e *PruneInconsistencyError) Error() string {
	return fmt.Sprintf("protoschema: %s refers to pruned type %v", e.Member, e.Type)
}

// Unwrap implements error unwrapping viz [errors.Unwrap].
func (e *PruneInconsistencyError) Unwrap() error {
	return ErrPruneInconsistency
}
