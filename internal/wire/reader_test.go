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

package wire_test

import (
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"buf.build/go/protoschema/internal/wire"
)

func TestVarint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		hex  string
		want uint64
		code wire.ErrorCode
	}{
		{hex: "00", want: 0},
		{hex: "7f", want: 127},
		{hex: "ac02", want: 300},
		{hex: "ffffffffffffffffff01", want: 1<<64 - 1},
		{hex: "ffffffffffffffffff02", code: wire.ErrorOverflow},
		{hex: "ffffffffffffffffffff01", code: wire.ErrorOverflow},
		{hex: "ff", code: wire.ErrorTruncated},
		{hex: "", code: wire.ErrorTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.hex, func(t *testing.T) {
			t.Parallel()

			b, err := hex.DecodeString(tt.hex)
			require.NoError(t, err)

			r := wire.NewReader(b, 0)
			v, err := r.Varint()
			if tt.code != wire.ErrorOk {
				var pe *wire.ParseError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, tt.code, pe.Code())
				assert.Equal(t, 0, pe.Offset())
				assert.ErrorIs(t, err, wire.ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
			assert.True(t, r.Done())
		})
	}
}

func TestTag(t *testing.T) {
	t.Parallel()

	r := wire.NewReader(protowire.AppendTag(nil, 5, protowire.BytesType), 0)
	n, typ, err := r.Tag()
	require.NoError(t, err)
	assert.Equal(t, protowire.Number(5), n)
	assert.Equal(t, protowire.BytesType, typ)

	for _, raw := range [][]byte{
		{0x00},       // Field number 0.
		{0x02},       // Field number 0, length-delimited.
		{0x0e},       // Wire type 6.
		protowire.AppendVarint(nil, uint64(protowire.MaxValidNumber+1)<<3),
	} {
		_, _, err := wire.NewReader(raw, 0).Tag()
		assert.ErrorIs(t, err, wire.ErrMalformed, "%x", raw)
	}
}

func TestFraming(t *testing.T) {
	t.Parallel()

	// A length-delimited region of three bytes, followed by one more byte.
	r := wire.NewReader([]byte{0x03, 0x01, 0x02, 0x03, 0x04}, 0)
	require.NoError(t, r.Push())

	var got []uint64
	for !r.Done() {
		v, err := r.Varint()
		require.NoError(t, err)
		got = append(got, v)
	}
	require.NoError(t, r.Pop())
	assert.Equal(t, []uint64{1, 2, 3}, got)
	assert.False(t, r.Done())

	// A fixed64 cannot cross an end marker.
	r = wire.NewReader([]byte{0x02, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}, 0)
	require.NoError(t, r.Push())
	_, err := r.Fixed64()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	// Length prefixes past the end of the buffer are truncated.
	_, err = wire.NewReader([]byte{0x05, 0x01}, 0).Bytes()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	// Negative lengths, as written by a sign-extending encoder.
	_, err = wire.NewReader(protowire.AppendVarint(nil, ^uint64(0)), 0).Bytes()
	var pe *wire.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, wire.ErrorLength, pe.Code())

	// Popping before reaching the marker is ragged.
	r = wire.NewReader([]byte{0x02, 0x01, 0x02}, 0)
	require.NoError(t, r.Push())
	_, err = r.Varint()
	require.NoError(t, err)
	err = r.Pop()
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, wire.ErrorRagged, pe.Code())
}

func TestSkip(t *testing.T) {
	t.Parallel()

	var b []byte
	b = protowire.AppendTag(b, 1, protowire.StartGroupType)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, 150)
	b = protowire.AppendTag(b, 3, protowire.StartGroupType)
	b = protowire.AppendTag(b, 3, protowire.EndGroupType)
	b = protowire.AppendTag(b, 1, protowire.EndGroupType)
	b = protowire.AppendTag(b, 4, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 7)

	r := wire.NewReader(b, 0)
	n, typ, err := r.Tag()
	require.NoError(t, err)
	require.NoError(t, r.Skip(n, typ))
	n, typ, err = r.Tag()
	require.NoError(t, err)
	assert.Equal(t, protowire.Number(4), n)
	require.NoError(t, r.Skip(n, typ))
	assert.True(t, r.Done())
	assert.Equal(t, b, r.Raw(0))

	// Mismatched end group.
	b = protowire.AppendTag(nil, 1, protowire.StartGroupType)
	b = protowire.AppendTag(b, 2, protowire.EndGroupType)
	r = wire.NewReader(b, 0)
	n, typ, err = r.Tag()
	require.NoError(t, err)
	err = r.Skip(n, typ)
	assert.True(t, errors.Is(err, wire.ErrMalformed))

	// Recursion limit.
	b = nil
	for range 10 {
		b = protowire.AppendTag(b, 1, protowire.StartGroupType)
	}
	r = wire.NewReader(b, 5)
	n, typ, err = r.Tag()
	require.NoError(t, err)
	var pe *wire.ParseError
	require.ErrorAs(t, r.Skip(n, typ), &pe)
	assert.Equal(t, wire.ErrorRecursionDepth, pe.Code())
}
