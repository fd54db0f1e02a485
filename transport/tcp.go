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
	"context"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/packetd/amqpwire/frame"
	"github.com/packetd/amqpwire/logger"
)

// ipv6Literal 形如 [fe80::1]:5672 的 IPv6 字面量 (RFC 2732)
var ipv6Literal = regexp.MustCompile(`^\[([.0-9a-fA-F:]+)\](?::(\d+))?$`)

// splitHostPort 解析 host / host:port / [v6]:port 端口缺省为 5672
func splitHostPort(s string) (string, int, error) {
	if m := ipv6Literal.FindStringSubmatch(s); m != nil {
		port := DefaultPort
		if m[2] != "" {
			p, err := strconv.Atoi(m[2])
			if err != nil {
				return "", 0, errors.Wrapf(err, "port %q", m[2])
			}
			port = p
		}
		return m[1], port, nil
	}

	if i := strings.LastIndex(s, ":"); i >= 0 {
		p, err := strconv.Atoi(s[i+1:])
		if err != nil {
			return "", 0, errors.Wrapf(err, "port %q", s[i+1:])
		}
		return s[:i], p, nil
	}
	return s, DefaultPort, nil
}

// TCPTransport 明文 TCP 变体
type TCPTransport struct {
	stream
}

// NewTCP 创建明文 TCP transport
func NewTCP(cfg Config) (*TCPTransport, error) {
	host, port, err := splitHostPort(cfg.Host)
	if err != nil {
		return nil, err
	}
	return &TCPTransport{stream: stream{cfg: cfg, host: host, port: port}}, nil
}

// Connect 建连并初始化 socket 选项 幂等
func (t *TCPTransport) Connect() error {
	if t.connected {
		return nil
	}
	sock, err := t.dial()
	if err != nil {
		return err
	}
	if err := t.initSocket(sock); err != nil {
		_ = sock.Close()
		return err
	}
	t.sock = sock
	t.connected = true
	t.rbuf = nil
	connectsTotal.Inc()
	logger.Infof("tcp connected to %s:%d", t.host, t.port)
	return nil
}

// dial 先解析 IPv4 再解析 IPv6 逐地址尝试 第一个成功的地址胜出
//
// IPv4 地址中有一个连接成功时不再触发 AAAA 查询 避免 DNS 服务器不可达时
// 把建连过程锁住过长时间 全部 IPv4 地址连接失败时仍会查询 AAAA
func (s *stream) dial() (net.Conn, error) {
	timeout := s.cfg.ConnectTimeout

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var errs error
	for _, family := range []string{"ip4", "ip6"} {
		ips, err := net.DefaultResolver.LookupIP(ctx, family, s.host)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		for _, ip := range ips {
			addr := net.JoinHostPort(ip.String(), strconv.Itoa(s.port))
			sock, err := net.DialTimeout("tcp", addr, timeout)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			return sock, nil
		}
	}
	if errs == nil {
		errs = errors.Errorf("failed to resolve broker hostname %q", s.host)
	}
	return nil, errors.Wrapf(errs, "connect %s:%d", s.host, s.port)
}

// initSocket 应用 keepalive 与 TCP 选项 默认值可被 SocketSettings 覆盖
func (s *stream) initSocket(sock net.Conn) error {
	tcpConn, ok := sock.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tcpConn.SetKeepAlive(true); err != nil {
		return errors.Wrap(err, "set keepalive")
	}

	overrides, err := s.cfg.socketSettings()
	if err != nil {
		return err
	}
	return applySocketSettings(tcpConn, overrides)
}

// Negotiate 交换 AMQP 协议头
func (t *TCPTransport) Negotiate() error {
	return t.negotiateProto(frame.NewProtoHeader(frame.ProtoAMQP))
}

func (t *TCPTransport) SendFrame(channel uint16, p frame.Performative, payload []byte) error {
	return t.sendFrame(channel, p, payload)
}

func (t *TCPTransport) SendProtoHeader(h frame.ProtoHeader) error {
	return t.sendProtoHeader(h)
}

func (t *TCPTransport) ReceiveFrame(expect ExpectType) (Received, error) {
	return t.receiveFrame(expect)
}

// Close 关闭 socket 幂等 关闭失败也会释放引用
func (t *TCPTransport) Close() error {
	t.markDisconnected()
	if t.sock == nil {
		return nil
	}

	var errs error
	if tcpConn, ok := t.sock.(*net.TCPConn); ok {
		// 先 shutdown 让未决数据尽量送达对端
		_ = tcpConn.SetLinger(1)
		if err := tcpConn.CloseWrite(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := t.sock.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	t.sock = nil
	t.rbuf = nil
	if errs != nil {
		return errors.Wrap(errs, "close")
	}
	return nil
}

var _ Transport = (*TCPTransport)(nil)

// connDeadline 保护性地限制一次性操作的时长
func connDeadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}
