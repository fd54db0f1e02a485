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
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// NewUUID 创建随机 UUID 值 (version 4)
func NewUUID() Value {
	u := uuid.New()
	return NewUUIDBytes(u)
}

// NewUUIDBytes 以 RFC 4122 字节序创建 UUID 值
func NewUUIDBytes(b [16]byte) Value {
	bin := make([]byte, 16)
	copy(bin, b[:])
	return Value{kind: KindUUID, bin: bin}
}

// ParseUUID 解析文本形式的 UUID
func ParseUUID(s string) (Value, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Value{}, errors.Wrapf(ErrOutOfRange, "uuid %q: %v", s, err)
	}
	return NewUUIDBytes(u), nil
}

// UUID 返回 16 字节的 UUID 载荷
func (v Value) UUID() ([16]byte, error) {
	var b [16]byte
	if v.kind != KindUUID {
		return b, v.typeErr(KindUUID)
	}
	copy(b[:], v.bin)
	return b, nil
}

// UUIDString 返回 UUID 的文本形式
func (v Value) UUIDString() (string, error) {
	b, err := v.UUID()
	if err != nil {
		return "", err
	}
	return uuid.UUID(b).String(), nil
}
