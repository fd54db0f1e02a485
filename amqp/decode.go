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
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownFormatCode 未知的 format code
	ErrUnknownFormatCode = errors.New("amqp/decode: unknown format code")

	// ErrMalformedBytes 字节流不是合法的 AMQP 编码
	// 包括声明长度超出剩余缓冲 / String 非法 UTF-8 / Map count 为奇数
	// 以及复合值载荷与声明长度不一致等情况
	ErrMalformedBytes = errors.New("amqp/decode: malformed bytes")
)

// Decode 解析 b 起始处的单个值 返回值与消耗的字节数
//
// 解析是严格的 任何与声明不符的字节流都会立即报错
// 而不是尽力返回部分结果
func Decode(b []byte) (Value, int, error) {
	return readValue(b)
}

// DecodeAll 依次解析 b 中的全部值 直到缓冲耗尽
func DecodeAll(b []byte) ([]Value, error) {
	var vals []Value
	for len(b) > 0 {
		v, n, err := readValue(b)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
		b = b[n:]
	}
	return vals, nil
}

func truncatedErr(what string) error {
	return errors.Wrapf(ErrMalformedBytes, "truncated %s", what)
}

// need 校验剩余缓冲是否满足声明长度
func need(b []byte, n int, what string) error {
	if len(b) < n {
		return errors.Wrapf(ErrMalformedBytes, "%s wants %d bytes but %d left", what, n, len(b))
	}
	return nil
}

func readValue(b []byte) (Value, int, error) {
	if len(b) == 0 {
		return Value{}, 0, truncatedErr("constructor")
	}

	code := b[0]
	b = b[1:]

	switch code {
	case fcDescribed:
		desc, dn, err := readValue(b)
		if err != nil {
			return Value{}, 0, err
		}
		val, vn, err := readValue(b[dn:])
		if err != nil {
			return Value{}, 0, err
		}
		return NewDescribed(desc, val), 1 + dn + vn, nil

	case fcNull:
		return Null(), 1, nil

	case fcBoolTrue:
		return NewBool(true), 1, nil

	case fcBoolFalse:
		return NewBool(false), 1, nil

	case fcBool:
		if err := need(b, 1, "bool"); err != nil {
			return Value{}, 0, err
		}
		switch b[0] {
		case 0x00:
			return NewBool(false), 2, nil
		case 0x01:
			return NewBool(true), 2, nil
		}
		return Value{}, 0, errors.Wrapf(ErrMalformedBytes, "bool octet %#x", b[0])

	case fcUint0:
		return NewUint(0), 1, nil

	case fcUlong0:
		return NewUlong(0), 1, nil

	case fcUbyte:
		if err := need(b, 1, "ubyte"); err != nil {
			return Value{}, 0, err
		}
		return NewUbyte(b[0]), 2, nil

	case fcSmallUint:
		if err := need(b, 1, "smalluint"); err != nil {
			return Value{}, 0, err
		}
		return NewUint(uint32(b[0])), 2, nil

	case fcSmallUlong:
		if err := need(b, 1, "smallulong"); err != nil {
			return Value{}, 0, err
		}
		return NewUlong(uint64(b[0])), 2, nil

	case fcByte:
		if err := need(b, 1, "byte"); err != nil {
			return Value{}, 0, err
		}
		return NewByte(int8(b[0])), 2, nil

	case fcSmallInt:
		if err := need(b, 1, "smallint"); err != nil {
			return Value{}, 0, err
		}
		return NewInt(int32(int8(b[0]))), 2, nil

	case fcSmallLong:
		if err := need(b, 1, "smalllong"); err != nil {
			return Value{}, 0, err
		}
		return NewLong(int64(int8(b[0]))), 2, nil

	case fcUshort:
		if err := need(b, 2, "ushort"); err != nil {
			return Value{}, 0, err
		}
		return NewUshort(binary.BigEndian.Uint16(b)), 3, nil

	case fcShort:
		if err := need(b, 2, "short"); err != nil {
			return Value{}, 0, err
		}
		return NewShort(int16(binary.BigEndian.Uint16(b))), 3, nil

	case fcUint:
		if err := need(b, 4, "uint"); err != nil {
			return Value{}, 0, err
		}
		return NewUint(binary.BigEndian.Uint32(b)), 5, nil

	case fcInt:
		if err := need(b, 4, "int"); err != nil {
			return Value{}, 0, err
		}
		return NewInt(int32(binary.BigEndian.Uint32(b))), 5, nil

	case fcFloat:
		if err := need(b, 4, "float"); err != nil {
			return Value{}, 0, err
		}
		return NewFloat(math.Float32frombits(binary.BigEndian.Uint32(b))), 5, nil

	case fcChar:
		if err := need(b, 4, "char"); err != nil {
			return Value{}, 0, err
		}
		v, err := NewChar(rune(binary.BigEndian.Uint32(b)))
		if err != nil {
			return Value{}, 0, errors.Wrapf(ErrMalformedBytes, "char scalar %#x", binary.BigEndian.Uint32(b))
		}
		return v, 5, nil

	case fcUlong:
		if err := need(b, 8, "ulong"); err != nil {
			return Value{}, 0, err
		}
		return NewUlong(binary.BigEndian.Uint64(b)), 9, nil

	case fcLong:
		if err := need(b, 8, "long"); err != nil {
			return Value{}, 0, err
		}
		return NewLong(int64(binary.BigEndian.Uint64(b))), 9, nil

	case fcDouble:
		if err := need(b, 8, "double"); err != nil {
			return Value{}, 0, err
		}
		return NewDouble(math.Float64frombits(binary.BigEndian.Uint64(b))), 9, nil

	case fcTimestamp:
		if err := need(b, 8, "timestamp"); err != nil {
			return Value{}, 0, err
		}
		return NewTimestamp(int64(binary.BigEndian.Uint64(b))), 9, nil

	case fcUUID:
		if err := need(b, 16, "uuid"); err != nil {
			return Value{}, 0, err
		}
		var u [16]byte
		copy(u[:], b)
		return NewUUIDBytes(u), 17, nil

	case fcVbin8, fcStr8, fcSym8:
		if err := need(b, 1, "length"); err != nil {
			return Value{}, 0, err
		}
		n := int(b[0])
		if err := need(b[1:], n, "payload"); err != nil {
			return Value{}, 0, err
		}
		v, err := variableValue(code, b[1:1+n])
		return v, 2 + n, err

	case fcVbin32, fcStr32, fcSym32:
		if err := need(b, 4, "length"); err != nil {
			return Value{}, 0, err
		}
		n64 := binary.BigEndian.Uint32(b)
		if n64 > math.MaxInt32 {
			return Value{}, 0, errors.Wrapf(ErrMalformedBytes, "length %d overflows", n64)
		}
		n := int(n64)
		if err := need(b[4:], n, "payload"); err != nil {
			return Value{}, 0, err
		}
		v, err := variableValue(code, b[4:4+n])
		return v, 5 + n, err

	case fcList0:
		return NewList(), 1, nil

	case fcList8, fcMap8, fcArray8:
		if err := need(b, 2, "compound header"); err != nil {
			return Value{}, 0, err
		}
		size, count := int(b[0]), int(b[1])
		if size < 1 {
			return Value{}, 0, errors.Wrap(ErrMalformedBytes, "compound size")
		}
		if err := need(b[1:], size, "compound"); err != nil {
			return Value{}, 0, err
		}
		// size 覆盖 count 字段与元素载荷
		v, err := compoundValue(code, count, b[2:1+size])
		return v, 2 + size, err

	case fcList32, fcMap32, fcArray32:
		if err := need(b, 8, "compound header"); err != nil {
			return Value{}, 0, err
		}
		size64 := binary.BigEndian.Uint32(b)
		count64 := binary.BigEndian.Uint32(b[4:])
		if size64 < 4 || size64 > math.MaxInt32 || count64 > math.MaxInt32 {
			return Value{}, 0, errors.Wrap(ErrMalformedBytes, "compound size")
		}
		size, count := int(size64), int(count64)
		if err := need(b[4:], size, "compound"); err != nil {
			return Value{}, 0, err
		}
		v, err := compoundValue(code, count, b[8:4+size])
		return v, 5 + size, err
	}

	return Value{}, 0, errors.Wrapf(ErrUnknownFormatCode, "code %#02x", code)
}

func variableValue(code byte, payload []byte) (Value, error) {
	switch code {
	case fcVbin8, fcVbin32:
		return NewBinary(payload), nil

	case fcStr8, fcStr32:
		if !utf8.Valid(payload) {
			return Value{}, errors.Wrap(ErrMalformedBytes, "string is not valid utf-8")
		}
		return NewString(string(payload)), nil

	default:
		v, err := NewSymbol(string(payload))
		if err != nil {
			return Value{}, errors.Wrap(ErrMalformedBytes, "symbol is not ascii")
		}
		return v, nil
	}
}

// compoundValue body 为 count 字段之后的元素载荷区 必须被完全消费
func compoundValue(code byte, count int, body []byte) (Value, error) {
	switch code {
	case fcList8, fcList32:
		items, err := readElems(body, count, "list")
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindList, items: items}, nil

	case fcMap8, fcMap32:
		if count%2 != 0 {
			return Value{}, errors.Wrapf(ErrMalformedBytes, "map count %d is odd", count)
		}
		items, err := readElems(body, count, "map")
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindMap, items: items}, nil

	default:
		return readArray(body, count)
	}
}

func readElems(body []byte, count int, what string) ([]Value, error) {
	items := make([]Value, 0, count)
	off := 0
	for i := 0; i < count; i++ {
		v, n, err := readValue(body[off:])
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		off += n
	}
	if off != len(body) {
		return nil, errors.Wrapf(ErrMalformedBytes, "%s has %d trailing bytes", what, len(body)-off)
	}
	return items, nil
}

var arrayElemKinds = map[byte]Kind{
	fcNull:      KindNull,
	fcBool:      KindBool,
	fcUbyte:     KindUbyte,
	fcUshort:    KindUshort,
	fcUint:      KindUint,
	fcUlong:     KindUlong,
	fcByte:      KindByte,
	fcShort:     KindShort,
	fcInt:       KindInt,
	fcLong:      KindLong,
	fcFloat:     KindFloat,
	fcDouble:    KindDouble,
	fcChar:      KindChar,
	fcTimestamp: KindTimestamp,
	fcUUID:      KindUUID,
	fcVbin32:    KindBinary,
	fcStr32:     KindString,
	fcSym32:     KindSymbol,
	fcList32:    KindList,
	fcMap32:     KindMap,
	fcArray32:   KindArray,
}

// readArray body 起始于元素 constructor 元素载荷不再重复 constructor
// 载荷未恰好耗尽声明区域时视为 malformed
func readArray(body []byte, count int) (Value, error) {
	if len(body) < 1 {
		return Value{}, truncatedErr("array constructor")
	}
	ac := body[0]
	body = body[1:]

	elem, ok := arrayElemKinds[ac]
	if !ok {
		return Value{}, errors.Wrapf(ErrUnknownFormatCode, "array constructor %#02x", ac)
	}

	items := make([]Value, 0, count)
	off := 0
	for i := 0; i < count; i++ {
		v, n, err := readArrayElem(ac, body[off:])
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
		off += n
	}
	if off != len(body) {
		return Value{}, errors.Wrapf(ErrMalformedBytes, "array has %d trailing bytes", len(body)-off)
	}
	return Value{kind: KindArray, elem: elem, items: items}, nil
}

func readArrayElem(ac byte, b []byte) (Value, int, error) {
	switch ac {
	case fcNull:
		return Null(), 0, nil

	case fcBool:
		if err := need(b, 1, "bool"); err != nil {
			return Value{}, 0, err
		}
		switch b[0] {
		case 0x00:
			return NewBool(false), 1, nil
		case 0x01:
			return NewBool(true), 1, nil
		}
		return Value{}, 0, errors.Wrapf(ErrMalformedBytes, "bool octet %#x", b[0])

	case fcUbyte:
		if err := need(b, 1, "ubyte"); err != nil {
			return Value{}, 0, err
		}
		return NewUbyte(b[0]), 1, nil

	case fcByte:
		if err := need(b, 1, "byte"); err != nil {
			return Value{}, 0, err
		}
		return NewByte(int8(b[0])), 1, nil

	case fcUshort:
		if err := need(b, 2, "ushort"); err != nil {
			return Value{}, 0, err
		}
		return NewUshort(binary.BigEndian.Uint16(b)), 2, nil

	case fcShort:
		if err := need(b, 2, "short"); err != nil {
			return Value{}, 0, err
		}
		return NewShort(int16(binary.BigEndian.Uint16(b))), 2, nil

	case fcUint:
		if err := need(b, 4, "uint"); err != nil {
			return Value{}, 0, err
		}
		return NewUint(binary.BigEndian.Uint32(b)), 4, nil

	case fcInt:
		if err := need(b, 4, "int"); err != nil {
			return Value{}, 0, err
		}
		return NewInt(int32(binary.BigEndian.Uint32(b))), 4, nil

	case fcFloat:
		if err := need(b, 4, "float"); err != nil {
			return Value{}, 0, err
		}
		return NewFloat(math.Float32frombits(binary.BigEndian.Uint32(b))), 4, nil

	case fcChar:
		if err := need(b, 4, "char"); err != nil {
			return Value{}, 0, err
		}
		v, err := NewChar(rune(binary.BigEndian.Uint32(b)))
		if err != nil {
			return Value{}, 0, errors.Wrap(ErrMalformedBytes, "char scalar")
		}
		return v, 4, nil

	case fcUlong:
		if err := need(b, 8, "ulong"); err != nil {
			return Value{}, 0, err
		}
		return NewUlong(binary.BigEndian.Uint64(b)), 8, nil

	case fcLong:
		if err := need(b, 8, "long"); err != nil {
			return Value{}, 0, err
		}
		return NewLong(int64(binary.BigEndian.Uint64(b))), 8, nil

	case fcDouble:
		if err := need(b, 8, "double"); err != nil {
			return Value{}, 0, err
		}
		return NewDouble(math.Float64frombits(binary.BigEndian.Uint64(b))), 8, nil

	case fcTimestamp:
		if err := need(b, 8, "timestamp"); err != nil {
			return Value{}, 0, err
		}
		return NewTimestamp(int64(binary.BigEndian.Uint64(b))), 8, nil

	case fcUUID:
		if err := need(b, 16, "uuid"); err != nil {
			return Value{}, 0, err
		}
		var u [16]byte
		copy(u[:], b)
		return NewUUIDBytes(u), 16, nil

	case fcVbin32, fcStr32, fcSym32:
		if err := need(b, 4, "length"); err != nil {
			return Value{}, 0, err
		}
		n64 := binary.BigEndian.Uint32(b)
		if n64 > math.MaxInt32 {
			return Value{}, 0, errors.Wrapf(ErrMalformedBytes, "length %d overflows", n64)
		}
		n := int(n64)
		if err := need(b[4:], n, "payload"); err != nil {
			return Value{}, 0, err
		}
		v, err := variableValue(ac, b[4:4+n])
		return v, 4 + n, err

	case fcList32, fcMap32, fcArray32:
		if err := need(b, 8, "compound header"); err != nil {
			return Value{}, 0, err
		}
		size64 := binary.BigEndian.Uint32(b)
		count64 := binary.BigEndian.Uint32(b[4:])
		if size64 < 4 || size64 > math.MaxInt32 || count64 > math.MaxInt32 {
			return Value{}, 0, errors.Wrap(ErrMalformedBytes, "compound size")
		}
		size, count := int(size64), int(count64)
		if err := need(b[4:], size, "compound"); err != nil {
			return Value{}, 0, err
		}
		v, err := compoundValue(ac, count, b[8:4+size])
		return v, 4 + size, err
	}
	return Value{}, 0, errors.Wrapf(ErrUnknownFormatCode, "array constructor %#02x", ac)
}
