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

	"github.com/cespare/xxhash/v2"
)

// Hash 计算值的结构化哈希 与 Equal 保持一致
//
// Equal(a, b) 成立则 Hash(a) == Hash(b) Map 查找用其快速跳过不相等的键
// Map 的键值对哈希以异或合并 与插入顺序无关
func Hash(v Value) uint64 {
	d := xxhash.New()
	hashValue(d, v)
	return d.Sum64()
}

func hashValue(d *xxhash.Digest, v Value) {
	var scratch [8]byte

	_, _ = d.WriteString(v.kind.String())
	switch v.kind {
	case KindNull:

	case KindBool:
		if v.b {
			scratch[0] = 1
		}
		_, _ = d.Write(scratch[:1])

	case KindUbyte, KindUshort, KindUint, KindUlong:
		binary.BigEndian.PutUint64(scratch[:], v.u64)
		_, _ = d.Write(scratch[:])

	case KindByte, KindShort, KindInt, KindLong, KindChar, KindTimestamp:
		binary.BigEndian.PutUint64(scratch[:], uint64(v.i64))
		_, _ = d.Write(scratch[:])

	case KindFloat, KindDouble:
		f := v.f64
		if f == 0 {
			f = 0 // +0 与 -0 相等 哈希取同一位模式
		}
		binary.BigEndian.PutUint64(scratch[:], math.Float64bits(f))
		_, _ = d.Write(scratch[:])

	case KindString, KindSymbol:
		_, _ = d.WriteString(v.str)

	case KindBinary, KindUUID:
		_, _ = d.Write(v.bin)

	case KindList:
		for i := range v.items {
			hashValue(d, v.items[i])
		}

	case KindMap:
		var acc uint64
		for i := 0; i < len(v.items); i += 2 {
			sub := xxhash.New()
			hashValue(sub, v.items[i])
			hashValue(sub, v.items[i+1])
			acc ^= sub.Sum64()
		}
		binary.BigEndian.PutUint64(scratch[:], acc)
		_, _ = d.Write(scratch[:])

	case KindArray:
		_, _ = d.WriteString(v.elem.String())
		for i := range v.items {
			hashValue(d, v.items[i])
		}

	case KindDescribed:
		hashValue(d, *v.desc)
		hashValue(d, v.items[0])
	}
}
