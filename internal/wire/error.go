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

package wire

import (
	"errors"
	"fmt"
	"io"
)

const (
	ErrorOk ErrorCode = iota
	// These match the errors in protowire.
	ErrorTruncated
	ErrorFieldNumber
	ErrorOverflow
	ErrorReserved
	ErrorEndGroup
	ErrorRecursionDepth

	ErrorUTF8
	ErrorLength
	ErrorRagged
	ErrorOneOf
)

var errs = [...]error{
	ErrorOk:             nil,
	ErrorTruncated:      io.ErrUnexpectedEOF,
	ErrorFieldNumber:    errors.New("invalid field number"),
	ErrorOverflow:       errors.New("variable length integer overflow"),
	ErrorReserved:       errors.New("cannot parse reserved wire type"),
	ErrorEndGroup:       errors.New("mismatching end group marker"),
	ErrorRecursionDepth: errors.New("recursion depth exceeded"),
	ErrorUTF8:           errors.New("invalid UTF-8 in string"),
	ErrorLength:         errors.New("invalid length prefix"),
	ErrorRagged:         errors.New("embedded message did not end at its length prefix"),
	ErrorOneOf:          errors.New("more than one member of a oneof is set"),
}

// ErrMalformed is matched by every [ParseError], regardless of its code.
var ErrMalformed = errors.New("malformed protocol buffer")

// ErrorCode is one of the possible types of errors in [ParseError].
type ErrorCode int

// ParseError is an error returned when reading or writing wire bytes.
type ParseError struct {
	code   ErrorCode
	offset int
}

// NewError returns a new error with the given code at the given offset.
func NewError(code ErrorCode, offset int) *ParseError {
	return &ParseError{code: code, offset: offset}
}

// Code returns what kind of error this is.
func (e *ParseError) Code() ErrorCode {
	return e.code
}

// Offset returns the offset at which the error occurred.
func (e *ParseError) Offset() int {
	return e.offset
}

// Unwrap implements error unwrapping viz [errors.Unwrap].
func (e *ParseError) Unwrap() error {
	return errs[e.code]
}

// Is makes every ParseError match [ErrMalformed].
func (e *ParseError) Is(target error) bool {
	return target == ErrMalformed
}

// Error implements [error].
func (e *ParseError) Error() string {
	return fmt.Sprintf("protoschema: malformed protobuf at offset %d/%#x: %v", e.offset, e.offset, e.Unwrap())
}
