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
	"crypto/tls"
	"crypto/x509"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/packetd/amqpwire/frame"
	"github.com/packetd/amqpwire/logger"
)

// TLSOptions TLS 选项包
//
// 缺省使用系统信任库并开启主机名校验 SNI 为目标主机
// CheckHostname 关闭时仍然校验证书链 仅跳过主机名匹配
type TLSOptions struct {
	CAFile   string `mapstructure:"caFile"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`

	Ciphers    []string `mapstructure:"ciphers"`
	ServerName string   `mapstructure:"serverName"`

	CheckHostname *bool  `mapstructure:"checkHostname"`
	MinVersion    string `mapstructure:"minVersion"`
	MaxVersion    string `mapstructure:"maxVersion"`

	// Upgrade 为 true 时建连后保持明文 由 Negotiate 通过
	// TLS 协商头交换后原地升级
	Upgrade bool `mapstructure:"upgrade"`
}

var tlsVersions = map[string]uint16{
	"1.0": tls.VersionTLS10,
	"1.1": tls.VersionTLS11,
	"1.2": tls.VersionTLS12,
	"1.3": tls.VersionTLS13,
}

func tlsVersionOf(s string) (uint16, error) {
	if s == "" {
		return 0, nil
	}
	v, ok := tlsVersions[s]
	if !ok {
		return 0, errors.Errorf("unknown tls version %q", s)
	}
	return v, nil
}

func cipherSuitesOf(names []string) ([]uint16, error) {
	if len(names) == 0 {
		return nil, nil
	}
	byName := make(map[string]uint16)
	for _, cs := range tls.CipherSuites() {
		byName[cs.Name] = cs.ID
	}

	var ids []uint16
	for _, name := range names {
		id, ok := byName[name]
		if !ok {
			return nil, errors.Errorf("unknown cipher suite %q", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// TLSTransport TLS 变体
type TLSTransport struct {
	stream

	opts    TLSOptions
	wrapped bool
}

// NewTLS 创建 TLS transport SSL 选项包在此处完成解码
func NewTLS(cfg Config) (*TLSTransport, error) {
	host, port, err := splitHostPort(cfg.Host)
	if err != nil {
		return nil, err
	}

	var opts TLSOptions
	if err := mapstructure.Decode(map[string]any(cfg.SSL), &opts); err != nil {
		return nil, errors.Wrap(err, "decode ssl options")
	}
	return &TLSTransport{
		stream: stream{cfg: cfg, host: host, port: port},
		opts:   opts,
	}, nil
}

// tlsConfig 构建 tls.Config 调用方给定的版本取值会被如实传递
func (t *TLSTransport) tlsConfig() (*tls.Config, error) {
	roots, err := x509.SystemCertPool()
	if err != nil {
		roots = x509.NewCertPool()
	}
	if t.opts.CAFile != "" {
		pem, err := os.ReadFile(t.opts.CAFile)
		if err != nil {
			return nil, errors.Wrap(err, "read ca bundle")
		}
		if !roots.AppendCertsFromPEM(pem) {
			return nil, errors.Errorf("no certificate found in %s", t.opts.CAFile)
		}
	}

	serverName := t.opts.ServerName
	if serverName == "" {
		serverName = t.host
	}

	conf := &tls.Config{
		RootCAs:    roots,
		ServerName: serverName,
	}

	if conf.MinVersion, err = tlsVersionOf(t.opts.MinVersion); err != nil {
		return nil, err
	}
	if conf.MaxVersion, err = tlsVersionOf(t.opts.MaxVersion); err != nil {
		return nil, err
	}
	if conf.CipherSuites, err = cipherSuitesOf(t.opts.Ciphers); err != nil {
		return nil, err
	}

	if t.opts.CertFile != "" && t.opts.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(t.opts.CertFile, t.opts.KeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "load client certificate")
		}
		conf.Certificates = []tls.Certificate{cert}
	}

	// 关闭主机名校验时证书链仍需校验
	if t.opts.CheckHostname != nil && !*t.opts.CheckHostname {
		conf.InsecureSkipVerify = true
		conf.VerifyPeerCertificate = chainOnlyVerifier(roots)
	}
	return conf, nil
}

// chainOnlyVerifier 仅校验证书链 不做主机名匹配
func chainOnlyVerifier(roots *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return errors.New("peer sent no certificate")
		}

		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return errors.Wrap(err, "parse peer certificate")
			}
			certs = append(certs, cert)
		}

		inters := x509.NewCertPool()
		for _, cert := range certs[1:] {
			inters.AddCert(cert)
		}
		_, err := certs[0].Verify(x509.VerifyOptions{Roots: roots, Intermediates: inters})
		return err
	}
}

// Connect 建连 非 Upgrade 模式下随即完成 TLS 握手
func (t *TLSTransport) Connect() error {
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
	t.wrapped = false

	if !t.opts.Upgrade {
		if err := t.wrap(); err != nil {
			_ = t.Close()
			return err
		}
	}
	connectsTotal.Inc()
	logger.Infof("tls connected to %s:%d (upgrade=%v)", t.host, t.port, t.opts.Upgrade)
	return nil
}

// wrap 在现有 socket 上完成阻塞式 TLS 握手
func (t *TLSTransport) wrap() error {
	conf, err := t.tlsConfig()
	if err != nil {
		return err
	}

	tlsConn := tls.Client(t.sock, conf)
	_ = tlsConn.SetDeadline(connDeadline(t.cfg.ConnectTimeout))
	if err := tlsConn.Handshake(); err != nil {
		t.markDisconnected()
		return errors.Wrap(err, "tls handshake")
	}
	_ = tlsConn.SetDeadline(time.Time{})

	t.sock = tlsConn
	t.wrapped = true
	return nil
}

// Negotiate 协议头协商
//
// Upgrade 模式: 明文交换 TLS 协商头 原地升级 再交换 AMQP 协商头
// 常规模式: 在 TLS 通道内交换 TLS 协商头
func (t *TLSTransport) Negotiate() error {
	if !t.wrapped {
		if err := t.negotiateProto(frame.NewProtoHeader(frame.ProtoTLS)); err != nil {
			return err
		}
		if err := t.wrap(); err != nil {
			return err
		}
		return t.negotiateProto(frame.NewProtoHeader(frame.ProtoAMQP))
	}
	return t.negotiateProto(frame.NewProtoHeader(frame.ProtoTLS))
}

func (t *TLSTransport) SendFrame(channel uint16, p frame.Performative, payload []byte) error {
	return t.sendFrame(channel, p, payload)
}

func (t *TLSTransport) SendProtoHeader(h frame.ProtoHeader) error {
	return t.sendProtoHeader(h)
}

func (t *TLSTransport) ReceiveFrame(expect ExpectType) (Received, error) {
	return t.receiveFrame(expect)
}

// Close 先结束 TLS 层再关闭 socket 两步的失败都被容忍
func (t *TLSTransport) Close() error {
	t.markDisconnected()
	if t.sock == nil {
		return nil
	}

	var errs error
	if tlsConn, ok := t.sock.(*tls.Conn); ok {
		_ = tlsConn.SetDeadline(connDeadline(time.Second))
		if err := tlsConn.CloseWrite(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := t.sock.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	t.sock = nil
	t.rbuf = nil
	t.wrapped = false
	if errs != nil {
		return errors.Wrap(errs, "close")
	}
	return nil
}

var _ Transport = (*TLSTransport)(nil)
