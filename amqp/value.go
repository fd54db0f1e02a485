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
	"unicode/utf8"

	"github.com/pkg/errors"
)

func newError(format string, args ...any) error {
	format = "amqp/value: " + format
	return errors.Errorf(format, args...)
}

var (
	// ErrOutOfRange 值超出所声明类型的合法范围
	ErrOutOfRange = errors.New("amqp/value: out of range")

	// ErrTypeMismatch 类型标签不匹配
	ErrTypeMismatch = errors.New("amqp/value: type mismatch")

	// ErrIndexOutOfRange List / Map 下标越界
	ErrIndexOutOfRange = errors.New("amqp/value: index out of range")

	// ErrKeyNotFound Map 中不存在该键
	ErrKeyNotFound = errors.New("amqp/value: key not found")
)

// Kind 值的类型标签 参与相等性比较
//
// AMQP 类型系统中标签与载荷共同构成一个值 即使载荷逐字节相等
// 标签不同的两个值也不相等 如 Int(5) != Long(5)
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindUbyte
	KindUshort
	KindUint
	KindUlong
	KindByte
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindChar
	KindTimestamp
	KindUUID
	KindBinary
	KindString
	KindSymbol
	KindList
	KindMap
	KindArray
	KindDescribed
)

var kindNames = map[Kind]string{
	KindNull:      "null",
	KindBool:      "bool",
	KindUbyte:     "ubyte",
	KindUshort:    "ushort",
	KindUint:      "uint",
	KindUlong:     "ulong",
	KindByte:      "byte",
	KindShort:     "short",
	KindInt:       "int",
	KindLong:      "long",
	KindFloat:     "float",
	KindDouble:    "double",
	KindChar:      "char",
	KindTimestamp: "timestamp",
	KindUUID:      "uuid",
	KindBinary:    "binary",
	KindString:    "string",
	KindSymbol:    "symbol",
	KindList:      "list",
	KindMap:       "map",
	KindArray:     "array",
	KindDescribed: "described",
}

func (k Kind) String() string {
	s, ok := kindNames[k]
	if !ok {
		return "unknown"
	}
	return s
}

// Value AMQP 多态值 使用 tagged-sum 的形式组织
//
// 各变体复用少量字段存储载荷:
// - 定宽数值共用 u64 / i64 / f64
// - String / Symbol 共用 str
// - Binary / UUID 共用 bin
// - List / Array 的元素与 Map 的 k/v 交替序列共用 items
// - Described 的描述符存于 desc 被描述值为 items[0]
//
// 复合变体按值持有子节点 相等性与哈希递归遍历整个结构
type Value struct {
	kind  Kind
	b     bool
	u64   uint64
	i64   int64
	f64   float64
	str   string
	bin   []byte
	items []Value
	desc  *Value
	elem  Kind // Array 元素类型标签
}

// Pair Map 的单个键值对
type Pair struct {
	Key   Value
	Value Value
}

// Null 返回 null 值
func Null() Value {
	return Value{kind: KindNull}
}

func NewBool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func NewUbyte(v uint8) Value {
	return Value{kind: KindUbyte, u64: uint64(v)}
}

func NewUshort(v uint16) Value {
	return Value{kind: KindUshort, u64: uint64(v)}
}

func NewUint(v uint32) Value {
	return Value{kind: KindUint, u64: uint64(v)}
}

func NewUlong(v uint64) Value {
	return Value{kind: KindUlong, u64: v}
}

func NewByte(v int8) Value {
	return Value{kind: KindByte, i64: int64(v)}
}

func NewShort(v int16) Value {
	return Value{kind: KindShort, i64: int64(v)}
}

func NewInt(v int32) Value {
	return Value{kind: KindInt, i64: int64(v)}
}

func NewLong(v int64) Value {
	return Value{kind: KindLong, i64: v}
}

func NewFloat(v float32) Value {
	return Value{kind: KindFloat, f64: float64(v)}
}

func NewDouble(v float64) Value {
	return Value{kind: KindDouble, f64: v}
}

// NewChar 创建单个 Unicode 标量值 代理区与超出 0x10FFFF 的码点非法
func NewChar(r rune) (Value, error) {
	if !utf8.ValidRune(r) {
		return Value{}, errors.Wrapf(ErrOutOfRange, "char %#x", r)
	}
	return Value{kind: KindChar, i64: int64(r)}, nil
}

// NewTimestamp 创建时间戳值 单位为 Unix 毫秒 允许为负
func NewTimestamp(ms int64) Value {
	return Value{kind: KindTimestamp, i64: ms}
}

// NewBinary 创建二进制值 内容会被拷贝一份
func NewBinary(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBinary, bin: cp}
}

func NewString(s string) Value {
	return Value{kind: KindString, str: s}
}

// NewSymbol 创建 symbol 值 仅允许 ASCII 字符
func NewSymbol(s string) (Value, error) {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return Value{}, errors.Wrapf(ErrOutOfRange, "symbol %q is not ascii", s)
		}
	}
	return Value{kind: KindSymbol, str: s}, nil
}

// MustSymbol 仅用于字面量已知合法的场景
func MustSymbol(s string) Value {
	v, err := NewSymbol(s)
	if err != nil {
		panic(err)
	}
	return v
}

// NewList 创建列表值 元素类型不限
func NewList(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, items: cp}
}

// NewMap 创建空 Map 值 键值对按插入顺序保存
func NewMap() Value {
	return Value{kind: KindMap}
}

// NewArray 创建空 Array 值 所有元素共享 elem 类型标签
func NewArray(elem Kind) Value {
	return Value{kind: KindArray, elem: elem}
}

// NewDescribed 创建 described 值 descriptor 可以是任意 AMQP 值
// 惯例上是一个小的 ulong
func NewDescribed(descriptor, value Value) Value {
	d := descriptor.Clone()
	return Value{kind: KindDescribed, desc: &d, items: []Value{value.Clone()}}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

func (v Value) typeErr(want Kind) error {
	return errors.Wrapf(ErrTypeMismatch, "want %s but got %s", want, v.kind)
}

func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, v.typeErr(KindBool)
	}
	return v.b, nil
}

func (v Value) Ubyte() (uint8, error) {
	if v.kind != KindUbyte {
		return 0, v.typeErr(KindUbyte)
	}
	return uint8(v.u64), nil
}

func (v Value) Ushort() (uint16, error) {
	if v.kind != KindUshort {
		return 0, v.typeErr(KindUshort)
	}
	return uint16(v.u64), nil
}

func (v Value) Uint() (uint32, error) {
	if v.kind != KindUint {
		return 0, v.typeErr(KindUint)
	}
	return uint32(v.u64), nil
}

func (v Value) Ulong() (uint64, error) {
	if v.kind != KindUlong {
		return 0, v.typeErr(KindUlong)
	}
	return v.u64, nil
}

func (v Value) Byte() (int8, error) {
	if v.kind != KindByte {
		return 0, v.typeErr(KindByte)
	}
	return int8(v.i64), nil
}

func (v Value) Short() (int16, error) {
	if v.kind != KindShort {
		return 0, v.typeErr(KindShort)
	}
	return int16(v.i64), nil
}

func (v Value) Int() (int32, error) {
	if v.kind != KindInt {
		return 0, v.typeErr(KindInt)
	}
	return int32(v.i64), nil
}

func (v Value) Long() (int64, error) {
	if v.kind != KindLong {
		return 0, v.typeErr(KindLong)
	}
	return v.i64, nil
}

func (v Value) Float() (float32, error) {
	if v.kind != KindFloat {
		return 0, v.typeErr(KindFloat)
	}
	return float32(v.f64), nil
}

func (v Value) Double() (float64, error) {
	if v.kind != KindDouble {
		return 0, v.typeErr(KindDouble)
	}
	return v.f64, nil
}

func (v Value) Char() (rune, error) {
	if v.kind != KindChar {
		return 0, v.typeErr(KindChar)
	}
	return rune(v.i64), nil
}

func (v Value) Timestamp() (int64, error) {
	if v.kind != KindTimestamp {
		return 0, v.typeErr(KindTimestamp)
	}
	return v.i64, nil
}

// Binary 返回二进制载荷的拷贝
func (v Value) Binary() ([]byte, error) {
	if v.kind != KindBinary {
		return nil, v.typeErr(KindBinary)
	}
	cp := make([]byte, len(v.bin))
	copy(cp, v.bin)
	return cp, nil
}

func (v Value) Text() (string, error) {
	if v.kind != KindString {
		return "", v.typeErr(KindString)
	}
	return v.str, nil
}

func (v Value) Symbol() (string, error) {
	if v.kind != KindSymbol {
		return "", v.typeErr(KindSymbol)
	}
	return v.str, nil
}

// List 返回列表元素 调用方不应修改返回的切片
func (v Value) List() ([]Value, error) {
	if v.kind != KindList {
		return nil, v.typeErr(KindList)
	}
	return v.items, nil
}

// Array 返回数组元素 调用方不应修改返回的切片
func (v Value) Array() ([]Value, error) {
	if v.kind != KindArray {
		return nil, v.typeErr(KindArray)
	}
	return v.items, nil
}

// ElemKind 返回 Array 元素类型标签
func (v Value) ElemKind() (Kind, error) {
	if v.kind != KindArray {
		return KindNull, v.typeErr(KindArray)
	}
	return v.elem, nil
}

// Descriptor 返回 described 值的描述符
func (v Value) Descriptor() (Value, error) {
	if v.kind != KindDescribed {
		return Value{}, v.typeErr(KindDescribed)
	}
	return *v.desc, nil
}

// Described 返回 described 值中被描述的值
func (v Value) Described() (Value, error) {
	if v.kind != KindDescribed {
		return Value{}, v.typeErr(KindDescribed)
	}
	return v.items[0], nil
}

// Len 返回复合值的元素数量 Map 为键值对数量 标量返回 0
func (v Value) Len() int {
	if v.kind == KindMap {
		return len(v.items) / 2
	}
	return len(v.items)
}

// Resize 将列表扩展至 n 个元素 新增位置填充 Null
// n 小于当前长度时收缩
func (v *Value) Resize(n int) error {
	if v.kind != KindList {
		return v.typeErr(KindList)
	}
	if n <= len(v.items) {
		v.items = v.items[:n]
		return nil
	}
	for len(v.items) < n {
		v.items = append(v.items, Null())
	}
	return nil
}

// Set 设置列表第 i 个元素 i 必须小于当前长度
func (v *Value) Set(i int, item Value) error {
	if v.kind != KindList {
		return v.typeErr(KindList)
	}
	if i < 0 || i >= len(v.items) {
		return errors.Wrapf(ErrIndexOutOfRange, "set %d of %d", i, len(v.items))
	}
	v.items[i] = item
	return nil
}

// Get 返回列表第 i 个元素
func (v Value) Get(i int) (Value, error) {
	if v.kind != KindList {
		return Value{}, v.typeErr(KindList)
	}
	if i < 0 || i >= len(v.items) {
		return Value{}, errors.Wrapf(ErrIndexOutOfRange, "get %d of %d", i, len(v.items))
	}
	return v.items[i], nil
}

// AppendItem 向列表追加元素
func (v *Value) AppendItem(item Value) error {
	if v.kind != KindList {
		return v.typeErr(KindList)
	}
	v.items = append(v.items, item)
	return nil
}

// Insert 插入键值对 键按结构相等匹配 已存在时覆盖其值并保留原有位置
func (v *Value) Insert(k, val Value) error {
	if v.kind != KindMap {
		return v.typeErr(KindMap)
	}
	h := Hash(k)
	for i := 0; i < len(v.items); i += 2 {
		if Hash(v.items[i]) == h && Equal(v.items[i], k) {
			v.items[i+1] = val
			return nil
		}
	}
	v.items = append(v.items, k, val)
	return nil
}

// MapGet 按键查找值 键按结构相等匹配
func (v Value) MapGet(k Value) (Value, error) {
	if v.kind != KindMap {
		return Value{}, v.typeErr(KindMap)
	}
	h := Hash(k)
	for i := 0; i < len(v.items); i += 2 {
		if Hash(v.items[i]) == h && Equal(v.items[i], k) {
			return v.items[i+1], nil
		}
	}
	return Value{}, errors.Wrapf(ErrKeyNotFound, "key kind %s", k.kind)
}

// Nth 按插入顺序返回第 i 个键值对
func (v Value) Nth(i int) (Pair, error) {
	if v.kind != KindMap {
		return Pair{}, v.typeErr(KindMap)
	}
	if i < 0 || i*2 >= len(v.items) {
		return Pair{}, errors.Wrapf(ErrIndexOutOfRange, "nth %d of %d", i, len(v.items)/2)
	}
	return Pair{Key: v.items[i*2], Value: v.items[i*2+1]}, nil
}

// Pairs 按插入顺序返回全部键值对
func (v Value) Pairs() ([]Pair, error) {
	if v.kind != KindMap {
		return nil, v.typeErr(KindMap)
	}
	pairs := make([]Pair, 0, len(v.items)/2)
	for i := 0; i < len(v.items); i += 2 {
		pairs = append(pairs, Pair{Key: v.items[i], Value: v.items[i+1]})
	}
	return pairs, nil
}

// Append 向数组追加元素 类型标签与数组声明不一致时报错
func (v *Value) Append(item Value) error {
	if v.kind != KindArray {
		return v.typeErr(KindArray)
	}
	if item.kind != v.elem {
		return errors.Wrapf(ErrTypeMismatch, "array of %s rejects %s", v.elem, item.kind)
	}
	v.items = append(v.items, item)
	return nil
}

// Clone 深拷贝 复合变体递归复制全部子节点
func (v Value) Clone() Value {
	cp := v
	if v.bin != nil {
		cp.bin = make([]byte, len(v.bin))
		copy(cp.bin, v.bin)
	}
	if v.items != nil {
		cp.items = make([]Value, len(v.items))
		for i := range v.items {
			cp.items[i] = v.items[i].Clone()
		}
	}
	if v.desc != nil {
		d := v.desc.Clone()
		cp.desc = &d
	}
	return cp
}

// Equal 结构化相等 标签与载荷均参与比较
//
// Symbol 与 String 即使字节一致也不相等 Map 的比较忽略插入顺序差异
// 之外的一切子结构均递归比较
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}

	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindUbyte, KindUshort, KindUint, KindUlong:
		return a.u64 == b.u64
	case KindByte, KindShort, KindInt, KindLong, KindChar, KindTimestamp:
		return a.i64 == b.i64
	case KindFloat, KindDouble:
		return a.f64 == b.f64
	case KindString, KindSymbol:
		return a.str == b.str
	case KindBinary, KindUUID:
		return string(a.bin) == string(b.bin)

	case KindList:
		return equalItems(a.items, b.items)

	case KindArray:
		if a.elem != b.elem {
			return false
		}
		return equalItems(a.items, b.items)

	case KindMap:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := 0; i < len(a.items); i += 2 {
			bv, err := b.MapGet(a.items[i])
			if err != nil {
				return false
			}
			if !Equal(a.items[i+1], bv) {
				return false
			}
		}
		return true

	case KindDescribed:
		return Equal(*a.desc, *b.desc) && Equal(a.items[0], b.items[0])
	}
	return false
}

func equalItems(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Equal 同 Equal(v, o)
func (v Value) Equal(o Value) bool {
	return Equal(v, o)
}
