// Copyright 2025 The amqpwire Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package amqp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustUUID(t *testing.T, s string) Value {
	v, err := ParseUUID(s)
	require.NoError(t, err)
	return v
}

func mustChar(r rune) Value {
	v, err := NewChar(r)
	if err != nil {
		panic(err)
	}
	return v
}

func TestEncodeGolden(t *testing.T) {
	tests := []struct {
		name  string
		input Value
		bytes []byte
	}{
		{
			name:  "Null",
			input: Null(),
			bytes: []byte{0x40},
		},
		{
			name:  "Bool true",
			input: NewBool(true),
			bytes: []byte{0x41},
		},
		{
			name:  "Bool false",
			input: NewBool(false),
			bytes: []byte{0x42},
		},
		{
			name:  "Ulong 0",
			input: NewUlong(0),
			bytes: []byte{0x44},
		},
		{
			name:  "Ulong 255",
			input: NewUlong(255),
			bytes: []byte{0x53, 0xFF},
		},
		{
			name:  "Ulong 256",
			input: NewUlong(256),
			bytes: []byte{0x80, 0, 0, 0, 0, 0, 0, 1, 0},
		},
		{
			name:  "Uint 0",
			input: NewUint(0),
			bytes: []byte{0x43},
		},
		{
			name:  "Uint 255",
			input: NewUint(255),
			bytes: []byte{0x52, 0xFF},
		},
		{
			name:  "Int -1",
			input: NewInt(-1),
			bytes: []byte{0x54, 0xFF},
		},
		{
			name:  "Long 128",
			input: NewLong(128),
			bytes: []byte{0x81, 0, 0, 0, 0, 0, 0, 0, 0x80},
		},
		{
			name:  "String Test",
			input: NewString("Test"),
			bytes: []byte{0xA1, 0x04, 0x54, 0x65, 0x73, 0x74},
		},
		{
			name:  "Binary Test",
			input: NewBinary([]byte("Test")),
			bytes: []byte{0xA0, 0x04, 0x54, 0x65, 0x73, 0x74},
		},
		{
			name:  "Symbol s",
			input: MustSymbol("s"),
			bytes: []byte{0xA3, 0x01, 0x73},
		},
		{
			name:  "Empty list",
			input: NewList(),
			bytes: []byte{0x45},
		},
		{
			name:  "List [true, ubyte(125)]",
			input: NewList(NewBool(true), NewUbyte(125)),
			bytes: []byte{0xC0, 0x04, 0x02, 0x41, 0x50, 0x7D},
		},
		{
			name:  "Uuid",
			input: mustUUID(t, "37f9db00-fbb7-11e7-85ee-ecb1d755839a"),
			bytes: []byte{
				0x98,
				0x37, 0xF9, 0xDB, 0x00, 0xFB, 0xB7, 0x11, 0xE7,
				0x85, 0xEE, 0xEC, 0xB1, 0xD7, 0x55, 0x83, 0x9A,
			},
		},
		{
			name:  "Described smallulong",
			input: NewDescribed(NewUlong(0x77), NewString("v")),
			bytes: []byte{0x00, 0x53, 0x77, 0xA1, 0x01, 0x76},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.bytes, b)

			v, n, err := Decode(b)
			require.NoError(t, err)
			assert.Equal(t, len(b), n)
			assert.True(t, Equal(tt.input, v))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	bigMap := NewMap()
	require.NoError(t, bigMap.Insert(MustSymbol("k1"), NewTimestamp(-62135596800000)))
	require.NoError(t, bigMap.Insert(NewString("k2"), NewDouble(3.14159)))
	require.NoError(t, bigMap.Insert(NewLong(-1), NewList(Null(), NewBool(false))))

	uints := NewArray(KindUint)
	require.NoError(t, uints.Append(NewUint(0)))
	require.NoError(t, uints.Append(NewUint(4294967295)))

	strs := NewArray(KindString)
	require.NoError(t, strs.Append(NewString("first")))
	require.NoError(t, strs.Append(NewString("")))

	values := []Value{
		Null(),
		NewBool(true),
		NewUbyte(0),
		NewUbyte(255),
		NewUshort(65535),
		NewUint(256),
		NewUlong(18446744073709551615),
		NewByte(-128),
		NewShort(-32768),
		NewInt(-2147483648),
		NewInt(127),
		NewLong(-9223372036854775808),
		NewLong(-1),
		NewFloat(1.5),
		NewDouble(-2.25),
		mustChar('A'),
		mustChar('中'),
		NewTimestamp(1540803917541),
		NewUUID(),
		NewBinary(nil),
		NewBinary(make([]byte, 300)),
		NewString("hello"),
		NewString(string(make([]byte, 256))),
		MustSymbol("amqp:link:detach-forced"),
		NewList(NewList(NewList())),
		bigMap,
		uints,
		strs,
		NewDescribed(MustSymbol("desc"), bigMap),
	}

	for _, v := range values {
		b, err := Encode(v)
		require.NoError(t, err)

		got, n, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, len(b), n)
		assert.True(t, Equal(v, got), "kind %s", v.Kind())

		// 编码是确定性的
		b2, err := Encode(got)
		require.NoError(t, err)
		assert.Equal(t, b, b2)
	}
}

func TestEncodeShortestForm(t *testing.T) {
	tests := []struct {
		name  string
		input Value
		code  byte
	}{
		{"ulong zero", NewUlong(0), 0x44},
		{"ulong small", NewUlong(200), 0x53},
		{"ulong wide", NewUlong(256), 0x80},
		{"uint zero", NewUint(0), 0x43},
		{"uint small", NewUint(1), 0x52},
		{"uint wide", NewUint(65536), 0x70},
		{"int small", NewInt(-128), 0x54},
		{"int wide", NewInt(-129), 0x71},
		{"long small", NewLong(127), 0x55},
		{"long wide", NewLong(128), 0x81},
		{"binary compact", NewBinary(make([]byte, 255)), 0xA0},
		{"binary wide", NewBinary(make([]byte, 256)), 0xB0},
		{"string compact", NewString("x"), 0xA1},
		{"symbol compact", MustSymbol("x"), 0xA3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.code, b[0])
		})
	}
}

func TestDecodeStrictness(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		err   error
	}{
		{
			name:  "unknown format code",
			input: []byte{0x9F},
			err:   ErrUnknownFormatCode,
		},
		{
			name:  "empty input",
			input: []byte{},
			err:   ErrMalformedBytes,
		},
		{
			name:  "string length beyond buffer",
			input: []byte{0xA1, 0x05, 'a'},
			err:   ErrMalformedBytes,
		},
		{
			name:  "string invalid utf-8",
			input: []byte{0xA1, 0x01, 0xFF},
			err:   ErrMalformedBytes,
		},
		{
			name:  "map odd count",
			input: []byte{0xC1, 0x04, 0x03, 0x40, 0x40, 0x40},
			err:   ErrMalformedBytes,
		},
		{
			name:  "list declared size beyond buffer",
			input: []byte{0xC0, 0x10, 0x01, 0x40},
			err:   ErrMalformedBytes,
		},
		{
			name:  "list trailing bytes",
			input: []byte{0xC0, 0x03, 0x01, 0x40, 0x40},
			err:   ErrMalformedBytes,
		},
		{
			name:  "array payload does not exhaust size",
			input: []byte{0xE0, 0x05, 0x02, 0x50, 0x01, 0x02, 0x03},
			err:   ErrMalformedBytes,
		},
		{
			name:  "array unknown constructor",
			input: []byte{0xE0, 0x02, 0x01, 0x9F},
			err:   ErrUnknownFormatCode,
		},
		{
			name:  "truncated timestamp",
			input: []byte{0x83, 0x00, 0x01},
			err:   ErrMalformedBytes,
		},
		{
			name:  "char surrogate scalar",
			input: []byte{0x73, 0x00, 0x00, 0xD8, 0x00},
			err:   ErrMalformedBytes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.input)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

// TestMessageAnnotationsGolden 一个真实的 message-annotations 段
// descriptor 0x72 的 described 2 键 map 编码后共 104 字节
func TestMessageAnnotationsGolden(t *testing.T) {
	annotations := NewMap()
	require.NoError(t, annotations.Insert(
		MustSymbol("x-opt-scheduled-enqueue-time"),
		NewTimestamp(1540803917541),
	))
	require.NoError(t, annotations.Insert(
		MustSymbol("x-opt-partition-key"),
		NewString("e3a98c25-4574-4dbf-a5bf-2e5cd7f19882"),
	))
	section := NewDescribed(NewUlong(0x72), annotations)

	b, err := Encode(section)
	require.NoError(t, err)
	assert.Len(t, b, 104)
	assert.Equal(t, []byte{0x00, 0x53, 0x72, 0xC1, 0x63, 0x04, 0xA3, 0x1C, 'x'}, b[:9])

	v, n, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, 104, n)

	desc, err := v.Descriptor()
	require.NoError(t, err)
	code, err := desc.Ulong()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x72), code)

	inner, err := v.Described()
	require.NoError(t, err)
	ts, err := inner.MapGet(MustSymbol("x-opt-scheduled-enqueue-time"))
	require.NoError(t, err)
	ms, err := ts.Timestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(1540803917541), ms)

	// 重新编码得到相同的字节
	b2, err := Encode(v)
	require.NoError(t, err)
	assert.Equal(t, b, b2)
}

func TestDecodeAll(t *testing.T) {
	var b []byte
	var err error
	b, err = AppendEncode(b, NewString("a"))
	require.NoError(t, err)
	b, err = AppendEncode(b, NewInt(1))
	require.NoError(t, err)

	vals, err := DecodeAll(b)
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.Equal(t, KindString, vals[0].Kind())
	assert.Equal(t, KindInt, vals[1].Kind())
}
