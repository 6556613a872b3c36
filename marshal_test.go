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
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buf.build/go/protoschema"
)

func TestMarshalScalars(t *testing.T) {
	t.Parallel()

	tests := []struct {
		field string
		value any
		want  string
	}{
		{"i32", -1, "08ffffffffffffffffff01"},
		{"i32", 0, "0800"},
		{"i64", 300, "10ac02"},
		{"u32", 1, "1801"},
		{"u64", uint64(1 << 63), "2080808080808080808001"},
		{"s32", -1, "2801"},
		{"s64", -2, "3003"},
		{"f32", 1, "3d01000000"},
		{"f64", 2, "410200000000000000"},
		{"sf32", -1, "4dffffffff"},
		{"sf64", -1, "51ffffffffffffffff"},
		{"fl", float32(1.5), "5d0000c03f"},
		{"db", 1.5, "61000000000000f83f"},
		{"b", true, "6801"},
		{"s", "hi", "72026869"},
		{"by", []byte{1, 2}, "7a020102"},
		{"color", 2, "800102"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			t.Parallel()

			m := newMessage(t, "codec.Scalars")
			require.NoError(t, m.Set(tt.field, tt.value))
			b, err := m.Marshal()
			require.NoError(t, err)
			assert.Equal(t, tt.want, hex.EncodeToString(b))

			back := newMessage(t, "codec.Scalars")
			require.NoError(t, back.Unmarshal(b))
			assert.True(t, m.Equal(back), "%v != %v", m, back)
		})
	}
}

func TestMarshalPacked(t *testing.T) {
	t.Parallel()

	m := newMessage(t, "codec.Basic")
	require.NoError(t, m.Unmarshal(decodeHex(t, "08051203010203")))
	assert.Equal(t, int32(5), m.Get("a"))
	assert.Equal(t, []any{int32(1), int32(2), int32(3)}, m.Get("b"))

	b, err := m.Marshal()
	require.NoError(t, err)
	assert.Equal(t, "08051203010203", hex.EncodeToString(b))

	// Unpacked fields are written unpacked, no matter how they were read.
	require.NoError(t, m.Unmarshal(decodeHex(t, "1a020102")))
	b, err = m.Marshal()
	require.NoError(t, err)
	assert.Equal(t, "18011802", hex.EncodeToString(b))
}

func TestMarshalRepeatedBytes(t *testing.T) {
	t.Parallel()

	m := newMessage(t, "codec.Basic")
	require.NoError(t, m.Set("names", []any{"hello", "", "w"}))
	require.NoError(t, m.Append("blobs", []byte("xyz")))

	// Strings and bytes are never packed, so every element has its own tag.
	b, err := m.Marshal()
	require.NoError(t, err)
	assert.Equal(t, "520568656c6c6f5200520177"+"5a0378797a", hex.EncodeToString(b))

	got := newMessage(t, "codec.Basic")
	require.NoError(t, got.Unmarshal(b))
	assert.Equal(t, []any{"hello", "", "w"}, got.Get("names"))
	assert.Equal(t, []any{[]byte("xyz")}, got.Get("blobs"))
	assert.True(t, got.Equal(m))
	assert.Empty(t, got.Unknown())
}

func TestMarshalNested(t *testing.T) {
	t.Parallel()

	m := newMessage(t, "codec.Nested")
	require.NoError(t, m.Mutable("basic").Set("a", 1))

	item := m.NewField("many")
	require.NoError(t, item.Set("a", 2))
	require.NoError(t, m.Append("many", item))

	require.NoError(t, m.PutEntry("labels", 2, "two"))
	require.NoError(t, m.PutEntry("labels", 1, "one"))
	require.NoError(t, m.Mutable("grp").Set("x", 3))
	require.NoError(t, m.Set("id", 5))
	require.NoError(t, m.SetExtension("codec.note", "hi"))
	require.NoError(t, m.Append("codec.marks", 1))

	b, err := m.Marshal()
	require.NoError(t, err)
	assert.Equal(t, ""+
		"0a020801"+ // basic
		"12020802"+ // many
		"2207080112036f6e65"+ // labels[1]
		"22070802120374776f"+ // labels[2]
		"2b30032c"+ // grp
		"4005"+ // id
		"a206026869"+ // (note)
		"a80601", // (marks)
		hex.EncodeToString(b))

	back := newMessage(t, "codec.Nested")
	require.NoError(t, back.Unmarshal(b))
	assert.True(t, m.Equal(back))
	assert.Equal(t, "hi", back.GetExtension("codec.note"))
	assert.Equal(t, map[any]any{int32(1): "one", int32(2): "two"}, back.Get("labels"))
}

func TestMarshalMapKeyOrder(t *testing.T) {
	t.Parallel()

	m := newMessage(t, "text.Text")
	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, m.PutEntry("m", k, 1))
	}

	b, err := m.Marshal()
	require.NoError(t, err)
	assert.Equal(t, "1205"+"0a01611001"+"1205"+"0a01621001"+"1205"+"0a01631001", hex.EncodeToString(b))
}

func TestMarshalImplicitPresence(t *testing.T) {
	t.Parallel()

	m := newMessage(t, "text.Text")
	require.NoError(t, m.Append("nums", 0))
	require.NoError(t, m.Append("nums", 1))
	require.NoError(t, m.Set("maybe", 0))

	b, err := m.Marshal()
	require.NoError(t, err)
	assert.Equal(t, "220200013000", hex.EncodeToString(b))
}

func TestMarshalUnknownLast(t *testing.T) {
	t.Parallel()

	m := newMessage(t, "codec.Basic")
	require.NoError(t, m.Unmarshal(decodeHex(t, "f801070805")))
	require.NoError(t, m.Set("a", 6))

	b, err := m.Marshal()
	require.NoError(t, err)
	assert.Equal(t, "0806f80107", hex.EncodeToString(b))
}

func TestMarshalRequired(t *testing.T) {
	t.Parallel()

	m := newMessage(t, "codec.Required")
	_, err := m.Marshal()
	require.ErrorIs(t, err, protoschema.ErrUninitialized)

	var uninit *protoschema.UninitializedMessageError
	require.ErrorAs(t, err, &uninit)
	assert.Equal(t, []string{"id"}, uninit.Missing)

	require.NoError(t, m.Set("id", 1))
	child := m.Mutable("child")
	require.NoError(t, m.Append("children", m.NewField("children")))
	require.NoError(t, m.PutEntry("by_key", "k", m.NewField("by_key")))

	_, err = m.Marshal()
	require.ErrorAs(t, err, &uninit)
	assert.Equal(t, []string{"child.id", "children[0].id", "by_key[k].id"}, uninit.Missing)

	b, err := m.Marshal(protoschema.WithAllowPartialMarshal(true))
	require.NoError(t, err)
	assert.Equal(t, "080112001a0022050a016b1200", hex.EncodeToString(b))

	require.NoError(t, child.Set("id", 2))
	_, err = m.Marshal()
	require.ErrorAs(t, err, &uninit)
	assert.Equal(t, []string{"children[0].id", "by_key[k].id"}, uninit.Missing)
}

func TestAppendMarshal(t *testing.T) {
	t.Parallel()

	m := newMessage(t, "codec.Basic")
	require.NoError(t, m.Set("a", 1))
	b, err := m.AppendMarshal([]byte{0xff})
	require.NoError(t, err)
	assert.Equal(t, "ff0801", hex.EncodeToString(b))
}
