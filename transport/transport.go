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

package transport

import (
	"math"
	"net"
	"syscall"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/packetd/amqpwire/common"
	"github.com/packetd/amqpwire/frame"
	"github.com/packetd/amqpwire/logger"
)

var (
	// ErrConnectionClosed 对端关闭或不可恢复的 I/O 错误
	// transport 进入断开态后所有 I/O 都会立即返回此错误
	ErrConnectionClosed = errors.New("transport: connection closed")

	// ErrTimeout 受限 I/O 超出预算
	// 读超时后连接仍然可用 写超时后 transport 已进入断开态
	ErrTimeout = errors.New("transport: i/o timeout")

	// ErrProtocolMismatch 协商头与期望的协议不一致
	ErrProtocolMismatch = errors.New("transport: protocol mismatch")

	// ErrUnexpectedFrame 帧类型与 expect 不一致
	ErrUnexpectedFrame = errors.New("transport: unexpected frame")
)

// IsTimeout 是否为超时错误 读超时时调用方可以原地重试
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsClosed 是否为断开态错误
func IsClosed(err error) bool {
	return errors.Is(err, ErrConnectionClosed)
}

// DefaultPort AMQP 默认端口
const DefaultPort = 5672

// signedIntMax 读取 API 以有符号长度计数的上限 超过则拆分为两次读取
const signedIntMax = math.MaxInt32

// ExpectType ReceiveFrame 的帧类型约束
type ExpectType int16

const (
	// ExpectAny 不校验帧类型 仅用于协商阶段
	ExpectAny ExpectType = -1

	ExpectAMQP = ExpectType(frame.TypeAMQP)
	ExpectSASL = ExpectType(frame.TypeSASL)
)

// Received 一次 ReceiveFrame 的结果
//
// Proto 非空表示收到协议协商头 Performative 为空且 Proto 为空表示心跳
type Received struct {
	Channel      uint16
	Proto        *frame.ProtoHeader
	Performative frame.Performative
	Payload      []byte
}

// IsHeartbeat 是否为空帧
func (r Received) IsHeartbeat() bool {
	return r.Proto == nil && r.Performative == nil
}

// Transport 阻塞式帧传输
//
// 单个实例同一时刻只归属一个逻辑执行体 内部不加锁
// 帧按到达顺序交付 SendFrame 单次调用内的写入不会与其他帧交织
type Transport interface {
	// Connect 建立连接 幂等 已连接时直接返回
	Connect() error

	// Close 关闭并释放 socket 幂等 任何退出路径都保证释放
	Close() error

	// Negotiate 执行协议头协商
	Negotiate() error

	// SendFrame 编码并完整写出一帧
	SendFrame(channel uint16, p frame.Performative, payload []byte) error

	// SendProtoHeader 写出 8 字节协议协商头
	SendProtoHeader(h frame.ProtoHeader) error

	// ReceiveFrame 阻塞读取一帧 expect 不匹配时返回 ErrUnexpectedFrame
	ReceiveFrame(expect ExpectType) (Received, error)

	// Connected 是否处于连接态
	Connected() bool
}

// Config transport 配置
//
// SocketSettings 为 TCP 选项名到取值的覆盖表 未覆盖的选项使用默认值
// SSL 为 TLS 选项包 非空时 New 返回 TLS transport
type Config struct {
	Host string `config:"host"`

	ConnectTimeout time.Duration `config:"connectTimeout"`
	ReadTimeout    time.Duration `config:"readTimeout"`
	WriteTimeout   time.Duration `config:"writeTimeout"`

	SocketSettings common.Options `config:"socketSettings"`
	SSL            common.Options `config:"ssl"`

	// RaiseOnInitialEINTR 首次读取被信号打断时上抛超时
	// 关闭时透明重试
	RaiseOnInitialEINTR bool `config:"raiseOnInitialEintr"`
}

func (c Config) socketSettings() (map[string]int, error) {
	if len(c.SocketSettings) == 0 {
		return nil, nil
	}

	settings := make(map[string]int)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &settings,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(map[string]any(c.SocketSettings)); err != nil {
		return nil, errors.Wrap(err, "decode socket settings")
	}
	return settings, nil
}

// New 按配置创建 transport 实例 SSL 选项包非空时为 TLS 变体
func New(cfg Config) (Transport, error) {
	if len(cfg.SSL) == 0 {
		return NewTCP(cfg)
	}
	return NewTLS(cfg)
}

// stream TCP / TLS 共享的阻塞读写逻辑
//
// rbuf 保存超时中断时已读取的字节 下一次读取从断点继续
// 这使得读超时不破坏帧边界 连接保持可用
type stream struct {
	cfg  Config
	host string
	port int

	sock      net.Conn
	connected bool
	rbuf      []byte
	chunk     []byte // 读缓冲 调用间复用
}

func (s *stream) Connected() bool {
	return s.connected
}

// markDisconnected 进入断开态 此状态不可逆 仅 Connect 重建
func (s *stream) markDisconnected() {
	s.connected = false
}

func (s *stream) ensureConnected() error {
	if !s.connected || s.sock == nil {
		return errors.WithStack(ErrConnectionClosed)
	}
	return nil
}

// read 精确读取 n 字节
//
// 超时时把已读取的部分存回 rbuf 并返回 ErrTimeout
// 读到 0 字节 (EOF) 或其他 I/O 错误时标记断开并上抛
func (s *stream) read(n int, initial bool) ([]byte, error) {
	if err := s.ensureConnected(); err != nil {
		return nil, err
	}

	got := s.rbuf
	s.rbuf = nil
	if len(got) >= n {
		s.rbuf = got[n:]
		return got[:n], nil
	}

	if cap(s.chunk) < n {
		s.chunk = make([]byte, n)
	}
	first := true
	for len(got) < n {
		if s.cfg.ReadTimeout > 0 {
			_ = s.sock.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		} else {
			_ = s.sock.SetReadDeadline(time.Time{})
		}

		m, err := s.sock.Read(s.chunk[:n-len(got)])
		if m > 0 {
			got = append(got, s.chunk[:m]...)
		}
		if err == nil {
			if m == 0 {
				s.markDisconnected()
				return nil, errors.WithStack(ErrConnectionClosed)
			}
			first = false
			continue
		}

		var netErr net.Error
		switch {
		case errors.As(err, &netErr) && netErr.Timeout():
			s.rbuf = got
			readTimeouts.Inc()
			return nil, errors.Wrapf(ErrTimeout, "read %d/%d bytes", len(got), n)

		case errors.Is(err, syscall.EINTR):
			if initial && first && s.cfg.RaiseOnInitialEINTR {
				s.rbuf = got
				return nil, errors.Wrap(ErrTimeout, "interrupted")
			}
			continue

		default:
			s.markDisconnected()
			return nil, errors.Wrapf(ErrConnectionClosed, "read: %v", err)
		}
	}
	bytesRead.Add(float64(n))
	return got[:n], nil
}

// write 完整写出 p 部分写入会循环直到全部完成
//
// 写超时或出错后 transport 进入断开态 后续 I/O 直接短路
func (s *stream) write(p []byte) error {
	if err := s.ensureConnected(); err != nil {
		return err
	}

	for len(p) > 0 {
		if s.cfg.WriteTimeout > 0 {
			_ = s.sock.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		} else {
			_ = s.sock.SetWriteDeadline(time.Time{})
		}

		n, err := s.sock.Write(p)
		if err != nil {
			s.markDisconnected()
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return errors.Wrap(ErrTimeout, "write")
			}
			return errors.Wrapf(ErrConnectionClosed, "write: %v", err)
		}
		if n == 0 {
			s.markDisconnected()
			return errors.WithStack(ErrConnectionClosed)
		}
		bytesWritten.Add(float64(n))
		p = p[n:]
	}
	return nil
}

// receiveFrame 读取并解析一帧
//
// 先精确读取 8 字节帧头 再按 size 读取剩余载荷
// 载荷读取超时时将帧头与已读部分一并存回 保证下一次调用
// 观察到完整的字节拼接
func (s *stream) receiveFrame(expect ExpectType) (Received, error) {
	hdr, err := s.read(frame.HeaderLength, true)
	if err != nil {
		return Received{}, err
	}

	var hdr8 [8]byte
	copy(hdr8[:], hdr)
	h, err := frame.ParseHeader(hdr8)
	if err != nil {
		return Received{}, err
	}

	if h.IsProtoHeader() {
		framesReceived.Inc()
		return Received{Proto: h.Proto}, nil
	}

	// 空帧 (心跳) 的 size 覆盖的内容即帧头自身
	if h.Size == 0 || h.BodyLength()+h.ExtLength() == 0 {
		framesReceived.Inc()
		return Received{Channel: h.Channel}, nil
	}

	if expect != ExpectAny && uint8(expect) != h.Type {
		return Received{}, errors.Wrapf(ErrUnexpectedFrame, "type %d but expect %d", h.Type, expect)
	}

	remain := int64(h.Size) - frame.HeaderLength
	payload, err := s.readPayload(remain, hdr8[:])
	if err != nil {
		return Received{}, err
	}

	perf, rest, err := frame.DecodeBody(payload[h.ExtLength():])
	if err != nil {
		return Received{}, err
	}
	framesReceived.Inc()
	return Received{Channel: h.Channel, Performative: perf, Payload: rest}, nil
}

// readPayload 读取帧载荷 长度超出有符号 32 位上限时拆成两次
func (s *stream) readPayload(remain int64, consumed []byte) ([]byte, error) {
	readPart := func(n int64) ([]byte, error) {
		b, err := s.read(int(n), false)
		if err != nil {
			// 超时后 rbuf 中是本次的部分数据 把之前消费的字节接回开头
			if errors.Is(err, ErrTimeout) {
				s.rbuf = append(append([]byte{}, consumed...), s.rbuf...)
			}
			return nil, err
		}
		consumed = append(consumed, b...)
		return b, nil
	}

	if remain > signedIntMax {
		head, err := readPart(signedIntMax)
		if err != nil {
			return nil, err
		}
		tail, err := readPart(remain - signedIntMax)
		if err != nil {
			return nil, err
		}
		return append(append([]byte{}, head...), tail...), nil
	}
	return readPart(remain)
}

func (s *stream) sendFrame(channel uint16, p frame.Performative, payload []byte) error {
	f := &frame.Frame{
		Type:         frame.TypeAMQP,
		Channel:      channel,
		Performative: p,
		Payload:      payload,
	}
	if p != nil && p.Descriptor() >= 0x40 && p.Descriptor() <= 0x44 {
		f.Type = frame.TypeSASL
	}

	b, err := f.Encode()
	if err != nil {
		return err
	}
	if err := s.write(b); err != nil {
		return err
	}
	framesSent.Inc()
	if p != nil {
		logger.Debugf("CH%d -> %s", channel, p.Name())
	}
	return nil
}

func (s *stream) sendProtoHeader(h frame.ProtoHeader) error {
	b := h.Bytes()
	if err := s.write(b[:]); err != nil {
		return err
	}
	framesSent.Inc()
	logger.Debugf("-> proto header %d", h.ProtoID)
	return nil
}

// negotiateProto 交换协商头 对端回显不一致时报错
func (s *stream) negotiateProto(want frame.ProtoHeader) error {
	if err := s.sendProtoHeader(want); err != nil {
		return err
	}
	recv, err := s.receiveFrame(ExpectAny)
	if err != nil {
		return err
	}
	if recv.Proto == nil {
		return errors.Wrap(ErrProtocolMismatch, "peer did not answer with a protocol header")
	}
	if *recv.Proto != want {
		return errors.Wrapf(ErrProtocolMismatch,
			"sent proto %d but peer answered %d", want.ProtoID, recv.Proto.ProtoID)
	}
	return nil
}
