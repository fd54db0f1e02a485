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

package frame

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/packetd/amqpwire/amqp"
)

var (
	// ErrMalformedFrame 帧头或帧体不符合协议约束
	ErrMalformedFrame = errors.New("frame: malformed frame")

	// ErrUnknownPerformative 帧体的描述符不是已知 performative
	// 是否断开连接由调用方决定
	ErrUnknownPerformative = errors.New("frame: unknown performative")
)

// 帧类型
const (
	TypeAMQP uint8 = 0x00
	TypeSASL uint8 = 0x01
)

// 协议协商头的 protocol-id
const (
	ProtoAMQP uint8 = 0
	ProtoTLS  uint8 = 2
	ProtoSASL uint8 = 3
)

// HeaderLength 固定帧头长度
const HeaderLength = 8

// 协议协商头不是长度前缀帧 而是固定的 8 字节字面量
// `AMQP` + protocol-id + major + minor + revision
var (
	HeaderAMQP = [8]byte{'A', 'M', 'Q', 'P', 0x00, 0x01, 0x00, 0x00}
	HeaderTLS  = [8]byte{'A', 'M', 'Q', 'P', 0x02, 0x01, 0x00, 0x00}
	HeaderSASL = [8]byte{'A', 'M', 'Q', 'P', 0x03, 0x01, 0x00, 0x00}
)

// ProtoHeader 解析后的协议协商头
type ProtoHeader struct {
	ProtoID  uint8
	Major    uint8
	Minor    uint8
	Revision uint8
}

// Bytes 还原为 8 字节字面量
func (h ProtoHeader) Bytes() [8]byte {
	return [8]byte{'A', 'M', 'Q', 'P', h.ProtoID, h.Major, h.Minor, h.Revision}
}

// NewProtoHeader 按 protocol-id 构建标准版本 (1.0.0) 的协商头
func NewProtoHeader(protoID uint8) ProtoHeader {
	return ProtoHeader{ProtoID: protoID, Major: 1, Minor: 0, Revision: 0}
}

// Header 解析后的帧头
//
// ┌─────────────────────── AMQP Frame ───────────────────────────┐
// │  size (u32 BE)  │ doff (u8) │ type (u8) │   channel (u16 BE) │
// ├──────────────────────────────────────────────────────────────┤
// │  extended header (doff*4 - 8 bytes)                          │
// ├──────────────────────────────────────────────────────────────┤
// │  body (size - doff*4 bytes)                                  │
// └──────────────────────────────────────────────────────────────┘
//
// 前四字节为 ASCII `AMQP` 时整个 8 字节是协议协商头而非帧
// 此时 Proto 非空且 Size 无意义
type Header struct {
	Size    uint32
	Doff    uint8
	Type    uint8
	Channel uint16
	Proto   *ProtoHeader
}

// IsProtoHeader 是否为协议协商头
func (h Header) IsProtoHeader() bool {
	return h.Proto != nil
}

// BodyLength 帧体字节数 扩展头不计入
func (h Header) BodyLength() int {
	return int(h.Size) - int(h.Doff)*4
}

// ExtLength 扩展头字节数
func (h Header) ExtLength() int {
	return int(h.Doff)*4 - HeaderLength
}

// ParseHeader 解析 8 字节帧头
//
// doff 以 4 字节字为单位 其最小合法值为 2 (帧头自身)
// doff < 2 会导致扩展头长度下溢 直接判为 malformed
func ParseHeader(b [8]byte) (Header, error) {
	if b[0] == 'A' && b[1] == 'M' && b[2] == 'Q' && b[3] == 'P' {
		return Header{
			Proto: &ProtoHeader{ProtoID: b[4], Major: b[5], Minor: b[6], Revision: b[7]},
		}, nil
	}

	h := Header{
		Size:    binary.BigEndian.Uint32(b[0:4]),
		Doff:    b[4],
		Type:    b[5],
		Channel: binary.BigEndian.Uint16(b[6:8]),
	}
	if h.Doff < 2 {
		return Header{}, errors.Wrapf(ErrMalformedFrame, "doff %d < 2", h.Doff)
	}
	if h.Size != 0 && int(h.Size) < int(h.Doff)*4 {
		return Header{}, errors.Wrapf(ErrMalformedFrame, "size %d < doff %d words", h.Size, h.Doff)
	}
	return h, nil
}

// Frame 单个非协商帧
//
// Performative 为空表示心跳帧 Payload 为 performative 之后的附加载荷
// (transfer 帧携带的消息字节)
type Frame struct {
	Type         uint8
	Channel      uint16
	Performative Performative
	Payload      []byte
}

// Heartbeat 空帧
func Heartbeat(channel uint16) *Frame {
	return &Frame{Type: TypeAMQP, Channel: channel}
}

// DecodeBody 解析帧体 帧体为一个 described list performative
// 之后允许跟随原始载荷字节 空帧体返回 (nil, nil, nil)
func DecodeBody(b []byte) (Performative, []byte, error) {
	if len(b) == 0 {
		return nil, nil, nil
	}

	v, n, err := amqp.Decode(b)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrMalformedFrame, "performative: %v", err)
	}
	p, err := performativeOf(v)
	if err != nil {
		return nil, nil, err
	}
	return p, b[n:], nil
}

// Encode 编码整帧 含帧头 编码总是使用 doff=2 不携带扩展头
func (f *Frame) Encode() ([]byte, error) {
	body, err := f.encodeBody()
	if err != nil {
		return nil, err
	}
	if len(body) > math.MaxUint32-HeaderLength {
		return nil, errors.Wrap(ErrMalformedFrame, "frame body too large")
	}

	dst := make([]byte, 0, HeaderLength+len(body))
	dst = binary.BigEndian.AppendUint32(dst, uint32(HeaderLength+len(body)))
	dst = append(dst, 2, f.Type)
	dst = binary.BigEndian.AppendUint16(dst, f.Channel)
	return append(dst, body...), nil
}

func (f *Frame) encodeBody() ([]byte, error) {
	if f.Performative == nil {
		return nil, nil
	}
	dst, err := appendPerformative(nil, f.Performative)
	if err != nil {
		return nil, err
	}
	return append(dst, f.Payload...), nil
}
