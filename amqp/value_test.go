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

func TestEqualRespectsKind(t *testing.T) {
	tests := []struct {
		name  string
		a     Value
		b     Value
		equal bool
	}{
		{
			name:  "Int vs Int",
			a:     NewInt(5),
			b:     NewInt(5),
			equal: true,
		},
		{
			name:  "Int vs Long",
			a:     NewInt(5),
			b:     NewLong(5),
			equal: false,
		},
		{
			name:  "Symbol vs String",
			a:     MustSymbol("x"),
			b:     NewString("x"),
			equal: false,
		},
		{
			name:  "Uint vs Ulong zero",
			a:     NewUint(0),
			b:     NewUlong(0),
			equal: false,
		},
		{
			name:  "Binary vs Binary",
			a:     NewBinary([]byte{1, 2, 3}),
			b:     NewBinary([]byte{1, 2, 3}),
			equal: true,
		},
		{
			name:  "Described mismatching descriptor",
			a:     NewDescribed(NewUlong(0x70), NewString("v")),
			b:     NewDescribed(NewUlong(0x71), NewString("v")),
			equal: false,
		},
		{
			name:  "Nested list",
			a:     NewList(NewBool(true), NewList(NewInt(1))),
			b:     NewList(NewBool(true), NewList(NewInt(1))),
			equal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, Equal(tt.a, tt.b))
			if tt.equal {
				assert.Equal(t, Hash(tt.a), Hash(tt.b))
			}
		})
	}
}

func TestListOps(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Resize(3))
	assert.Equal(t, 3, l.Len())

	v, err := l.Get(2)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	require.NoError(t, l.Set(1, NewString("x")))
	v, err = l.Get(1)
	require.NoError(t, err)
	s, err := v.Text()
	require.NoError(t, err)
	assert.Equal(t, "x", s)

	assert.ErrorIs(t, l.Set(3, Null()), ErrIndexOutOfRange)
	_, err = l.Get(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	// 收缩
	require.NoError(t, l.Resize(1))
	assert.Equal(t, 1, l.Len())
}

func TestMapOps(t *testing.T) {
	m := NewMap()
	require.NoError(t, m.Insert(MustSymbol("a"), NewInt(1)))
	require.NoError(t, m.Insert(NewString("a"), NewInt(2))) // symbol != string
	require.NoError(t, m.Insert(NewLong(42), NewString("answer")))
	assert.Equal(t, 3, m.Len())

	v, err := m.MapGet(MustSymbol("a"))
	require.NoError(t, err)
	i, _ := v.Int()
	assert.Equal(t, int32(1), i)

	// 覆盖保留原有位置
	require.NoError(t, m.Insert(MustSymbol("a"), NewInt(3)))
	assert.Equal(t, 3, m.Len())
	pair, err := m.Nth(0)
	require.NoError(t, err)
	assert.True(t, Equal(pair.Key, MustSymbol("a")))
	i, _ = pair.Value.Int()
	assert.Equal(t, int32(3), i)

	_, err = m.MapGet(NewString("missing"))
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = m.Nth(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	pairs, err := m.Pairs()
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.True(t, Equal(pairs[1].Key, NewString("a")))
}

func TestArrayOps(t *testing.T) {
	arr := NewArray(KindUint)
	require.NoError(t, arr.Append(NewUint(1)))
	require.NoError(t, arr.Append(NewUint(1024)))

	err := arr.Append(NewUlong(1))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	items, err := arr.Array()
	require.NoError(t, err)
	assert.Len(t, items, 2)

	elem, err := arr.ElemKind()
	require.NoError(t, err)
	assert.Equal(t, KindUint, elem)
}

func TestConstructorValidation(t *testing.T) {
	_, err := NewSymbol("ascii-only")
	assert.NoError(t, err)

	_, err = NewSymbol("非法")
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = NewChar('中')
	assert.NoError(t, err)

	_, err = NewChar(0xD800) // 代理区
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = ParseUUID("not-a-uuid")
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestTypeMismatchGetters(t *testing.T) {
	v := NewString("text")
	_, err := v.Int()
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = v.Binary()
	assert.ErrorIs(t, err, ErrTypeMismatch)

	var l Value
	assert.ErrorIs(t, l.AppendItem(Null()), ErrTypeMismatch)
}

func TestCloneIsDeep(t *testing.T) {
	m := NewMap()
	require.NoError(t, m.Insert(NewString("k"), NewList(NewInt(1))))

	cp := m.Clone()
	require.NoError(t, cp.Insert(NewString("k2"), Null()))
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 2, cp.Len())

	l := NewList(NewInt(1))
	cl := l.Clone()
	require.NoError(t, cl.Set(0, NewInt(9)))
	v, err := l.Get(0)
	require.NoError(t, err)
	i, _ := v.Int()
	assert.Equal(t, int32(1), i)
}

func TestMapEqualIgnoresOrder(t *testing.T) {
	m1 := NewMap()
	_ = m1.Insert(NewString("a"), NewInt(1))
	_ = m1.Insert(NewString("b"), NewInt(2))

	m2 := NewMap()
	_ = m2.Insert(NewString("b"), NewInt(2))
	_ = m2.Insert(NewString("a"), NewInt(1))

	assert.True(t, Equal(m1, m2))
}
