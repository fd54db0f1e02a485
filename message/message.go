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
	"github.com/pkg/errors"

	"github.com/packetd/amqpwire/amqp"
)

func newError(format string, args ...any) error {
	format = "message: " + format
	return errors.Errorf(format, args...)
}

// ErrMalformedMessage 消息段不符合约束 包括重复出现的段 /
// 段载荷类型与描述符不匹配等情况
var ErrMalformedMessage = errors.New("message: malformed message")

// 消息段描述符 均为 well-known ulong
const (
	DescHeader              uint64 = 0x70
	DescDeliveryAnnotations uint64 = 0x71
	DescMessageAnnotations  uint64 = 0x72
	DescProperties          uint64 = 0x73
	DescAppProperties       uint64 = 0x74
	DescData                uint64 = 0x75
	DescSequence            uint64 = 0x76
	DescValue               uint64 = 0x77
	DescFooter              uint64 = 0x78
)

// DefaultFormat 普通消息的 message-format
const DefaultFormat uint32 = 0

// Message AMQP 消息 由一组可选段构成
//
// 各段在结构体中即为具名槽位 编码时按协议规定的顺序发射
// 缺失的段直接跳过 解码时允许任意顺序到达 但每个段至多出现一次
// (body 的 data / sequence 段可以重复 追加进 Body)
type Message struct {
	Format uint32

	Header              *Header
	DeliveryAnnotations amqp.Value // KindMap 键惯例为 symbol
	MessageAnnotations  amqp.Value // KindMap
	Properties          *Properties
	AppProperties       amqp.Value // KindMap
	Body                Body
	Footer              amqp.Value // KindMap
}

// New 创建空消息
func New() *Message {
	return &Message{Format: DefaultFormat}
}

// Encode 编码为段的拼接 段按协议规定的顺序发射
func (m *Message) Encode() ([]byte, error) {
	var dst []byte
	var err error

	if m.Header != nil {
		dst, err = m.Header.appendSection(dst)
		if err != nil {
			return nil, err
		}
	}
	if m.DeliveryAnnotations.Kind() == amqp.KindMap {
		dst, err = appendMapSection(dst, DescDeliveryAnnotations, m.DeliveryAnnotations)
		if err != nil {
			return nil, err
		}
	}
	if m.MessageAnnotations.Kind() == amqp.KindMap {
		dst, err = appendMapSection(dst, DescMessageAnnotations, m.MessageAnnotations)
		if err != nil {
			return nil, err
		}
	}
	if m.Properties != nil {
		dst, err = m.Properties.appendSection(dst)
		if err != nil {
			return nil, err
		}
	}
	if m.AppProperties.Kind() == amqp.KindMap {
		dst, err = appendMapSection(dst, DescAppProperties, m.AppProperties)
		if err != nil {
			return nil, err
		}
	}
	dst, err = m.Body.appendSections(dst)
	if err != nil {
		return nil, err
	}
	if m.Footer.Kind() == amqp.KindMap {
		dst, err = appendMapSection(dst, DescFooter, m.Footer)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// Decode 从段的拼接中还原消息 段可以任意顺序出现
// 同一段重复出现时报错 data / sequence 除外
func Decode(b []byte) (*Message, error) {
	vals, err := amqp.DecodeAll(b)
	if err != nil {
		return nil, err
	}

	m := New()
	seen := make(map[uint64]bool)

	for _, v := range vals {
		desc, err := v.Descriptor()
		if err != nil {
			return nil, errors.Wrap(ErrMalformedMessage, "section is not described")
		}
		code, err := desc.Ulong()
		if err != nil {
			return nil, errors.Wrap(ErrMalformedMessage, "section descriptor is not ulong")
		}
		inner, _ := v.Described()

		// data / sequence 允许重复 其余段只允许一次
		if code != DescData && code != DescSequence {
			if seen[code] {
				return nil, errors.Wrapf(ErrMalformedMessage, "duplicate section %#x", code)
			}
			seen[code] = true
		}

		switch code {
		case DescHeader:
			h, err := decodeHeader(inner)
			if err != nil {
				return nil, err
			}
			m.Header = h

		case DescDeliveryAnnotations:
			if inner.Kind() != amqp.KindMap {
				return nil, errors.Wrap(ErrMalformedMessage, "delivery-annotations is not a map")
			}
			m.DeliveryAnnotations = inner

		case DescMessageAnnotations:
			if inner.Kind() != amqp.KindMap {
				return nil, errors.Wrap(ErrMalformedMessage, "message-annotations is not a map")
			}
			m.MessageAnnotations = inner

		case DescProperties:
			p, err := decodeProperties(inner)
			if err != nil {
				return nil, err
			}
			m.Properties = p

		case DescAppProperties:
			if inner.Kind() != amqp.KindMap {
				return nil, errors.Wrap(ErrMalformedMessage, "application-properties is not a map")
			}
			m.AppProperties = inner

		case DescData:
			bin, err := inner.Binary()
			if err != nil {
				return nil, errors.Wrap(ErrMalformedMessage, "data section is not binary")
			}
			if err := m.Body.AppendData(bin); err != nil {
				return nil, err
			}

		case DescSequence:
			items, err := inner.List()
			if err != nil {
				return nil, errors.Wrap(ErrMalformedMessage, "amqp-sequence section is not a list")
			}
			if err := m.Body.AppendSequence(items); err != nil {
				return nil, err
			}

		case DescValue:
			if m.Body.Type() != BodyNone {
				return nil, errors.Wrap(ErrMalformedMessage, "amqp-value joins a non-empty body")
			}
			if err := m.Body.SetValue(inner); err != nil {
				return nil, err
			}

		case DescFooter:
			if inner.Kind() != amqp.KindMap {
				return nil, errors.Wrap(ErrMalformedMessage, "footer is not a map")
			}
			m.Footer = inner

		default:
			return nil, errors.Wrapf(ErrMalformedMessage, "unknown section descriptor %#x", code)
		}
	}
	return m, nil
}

// appendMapSection 发射 described map 段
func appendMapSection(dst []byte, code uint64, m amqp.Value) ([]byte, error) {
	if m.Kind() != amqp.KindMap {
		return nil, newError("section %#x requires a map", code)
	}
	return amqp.AppendEncode(dst, amqp.NewDescribed(amqp.NewUlong(code), m))
}
