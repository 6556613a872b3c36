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

// Package wire contains the cursor used to decode the protobuf wire format.
package wire

import (
	"encoding/binary"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"buf.build/go/protoschema/internal/debug"
)

// DefaultMaxDepth is the recursion limit used when none is configured.
const DefaultMaxDepth = 100

// maxVarintLen is the longest encoding of a 64-bit varint.
const maxVarintLen = 10

// Reader is a cursor over an immutable buffer.
//
// Reads never go past the innermost end marker; [Reader.Push] and
// [Reader.Pop] maintain the marker stack for length-delimited framing.
type Reader struct {
	buf  []byte
	pos  int
	ends []int

	depth, maxDepth int
}

// NewReader returns a reader over buf. A maxDepth of zero selects
// [DefaultMaxDepth].
func NewReader(buf []byte, maxDepth int) *Reader {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Reader{buf: buf, maxDepth: maxDepth}
}

// Offset returns the current cursor position.
func (r *Reader) Offset() int {
	return r.pos
}

// Raw returns the bytes consumed since the given offset.
func (r *Reader) Raw(start int) []byte {
	return r.buf[start:r.pos:r.pos]
}

// Done returns whether the cursor has reached the innermost end marker.
func (r *Reader) Done() bool {
	return r.pos >= r.end()
}

func (r *Reader) end() int {
	if len(r.ends) == 0 {
		return len(r.buf)
	}
	return r.ends[len(r.ends)-1]
}

// Tag reads a field tag.
//
// Field numbers outside of [1, 2^29-1] and the reserved wire types 6 and 7
// are rejected.
func (r *Reader) Tag() (protowire.Number, protowire.Type, error) {
	start := r.pos
	v, err := r.Varint()
	if err != nil {
		return 0, 0, err
	}

	n, t := v>>3, protowire.Type(v&7)
	if n < uint64(protowire.MinValidNumber) || n > uint64(protowire.MaxValidNumber) {
		return 0, 0, NewError(ErrorFieldNumber, start)
	}
	if t > protowire.Fixed32Type {
		return 0, 0, NewError(ErrorReserved, start)
	}

	debug.Log("tag", "%d:%d @ %#x", n, t, start)
	return protowire.Number(n), t, nil
}

// Varint reads a varint of up to ten bytes.
func (r *Reader) Varint() (uint64, error) {
	start, end := r.pos, r.end()
	var v uint64
	for i := range maxVarintLen {
		if r.pos >= end {
			r.pos = start
			return 0, NewError(ErrorTruncated, start)
		}

		b := r.buf[r.pos]
		r.pos++
		if i == maxVarintLen-1 && b > 1 {
			r.pos = start
			return 0, NewError(ErrorOverflow, start)
		}

		v |= uint64(b&0x7f) << (7 * i)
		if b < 0x80 {
			return v, nil
		}
	}

	// Unreachable: the tenth byte is either terminal or an overflow.
	return 0, NewError(ErrorOverflow, start)
}

// Fixed32 reads a little-endian 32-bit value.
func (r *Reader) Fixed32() (uint32, error) {
	if r.end()-r.pos < 4 {
		return 0, NewError(ErrorTruncated, r.pos)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// Fixed64 reads a little-endian 64-bit value.
func (r *Reader) Fixed64() (uint64, error) {
	if r.end()-r.pos < 8 {
		return 0, NewError(ErrorTruncated, r.pos)
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// length reads a length prefix and checks that it fits before the current
// end marker.
func (r *Reader) length() (int, error) {
	start := r.pos
	n, err := r.Varint()
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt32 {
		return 0, NewError(ErrorLength, start)
	}
	if int(n) > r.end()-r.pos {
		return 0, NewError(ErrorTruncated, start)
	}
	return int(n), nil
}

// Bytes reads a length-delimited value. The returned slice aliases the
// underlying buffer.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.length()
	if err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return b, nil
}

// Push reads a length prefix and pushes an end marker at the end of the
// delimited region.
func (r *Reader) Push() error {
	n, err := r.length()
	if err != nil {
		return err
	}
	r.ends = append(r.ends, r.pos+n)
	return nil
}

// Pop removes the innermost end marker, which the cursor must have reached
// exactly.
func (r *Reader) Pop() error {
	debug.Assert(len(r.ends) > 0, "Pop without matching Push at %#x", r.pos)
	end := r.end()
	if r.pos != end {
		return NewError(ErrorRagged, r.pos)
	}
	r.ends = r.ends[:len(r.ends)-1]
	return nil
}

// Descend records entry into a nested message or group.
func (r *Reader) Descend() error {
	if r.depth >= r.maxDepth {
		return NewError(ErrorRecursionDepth, r.pos)
	}
	r.depth++
	return nil
}

// Ascend undoes [Reader.Descend].
func (r *Reader) Ascend() {
	r.depth--
}

// Skip consumes a field value of the given wire type, whose tag has already
// been read. Groups are skipped up to their matching end-group tag.
func (r *Reader) Skip(n protowire.Number, t protowire.Type) error {
	var err error
	switch t {
	case protowire.VarintType:
		_, err = r.Varint()
	case protowire.Fixed32Type:
		_, err = r.Fixed32()
	case protowire.Fixed64Type:
		_, err = r.Fixed64()
	case protowire.BytesType:
		_, err = r.Bytes()
	case protowire.StartGroupType:
		err = r.SkipGroup(n)
	case protowire.EndGroupType:
		err = NewError(ErrorEndGroup, r.pos)
	default:
		err = NewError(ErrorReserved, r.pos)
	}
	return err
}

// SkipGroup consumes fields up to and including the end-group tag for n.
func (r *Reader) SkipGroup(n protowire.Number) error {
	if err := r.Descend(); err != nil {
		return err
	}
	defer r.Ascend()

	for {
		if r.Done() {
			return NewError(ErrorTruncated, r.pos)
		}
		start := r.pos
		m, t, err := r.Tag()
		if err != nil {
			return err
		}
		if t == protowire.EndGroupType {
			if m != n {
				return NewError(ErrorEndGroup, start)
			}
			return nil
		}
		if err := r.Skip(m, t); err != nil {
			return err
		}
	}
}
