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

package message

import (
	"github.com/packetd/amqpwire/amqp"
	"github.com/packetd/amqpwire/internal/bufpool"
)

// BatchFormat 批量消息的 message-format
const BatchFormat uint32 = 0x80013700

// NewBatch 构建批量消息
//
// next 为内部载荷的拉取函数 返回 false 表示序列耗尽
// 每个载荷被编码为一个完整的 amqp-value 段信封
// 并作为一个 data 块追加进消息体 接收端不负责拆分
func NewBatch(next func() (amqp.Value, bool)) (*Message, error) {
	m := New()
	m.Format = BatchFormat

	buf := bufpool.Acquire()
	defer bufpool.Release(buf)

	for {
		v, ok := next()
		if !ok {
			break
		}

		envelope := amqp.NewDescribed(amqp.NewUlong(DescValue), v)
		b, err := amqp.AppendEncode(buf.B[:0], envelope)
		if err != nil {
			return nil, err
		}
		buf.B = b

		if err := m.Body.AppendData(b); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewBatchOf 以现成的切片构建批量消息
func NewBatchOf(payloads ...amqp.Value) (*Message, error) {
	i := 0
	return NewBatch(func() (amqp.Value, bool) {
		if i >= len(payloads) {
			return amqp.Value{}, false
		}
		v := payloads[i]
		i++
		return v, true
	})
}
