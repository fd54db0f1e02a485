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
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/amqpwire/frame"
)

// timeoutError 模拟 read deadline 触发的错误
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

type readStep struct {
	data []byte
	err  error
}

// fakeConn 按脚本回放读取内容的 net.Conn 替身
type fakeConn struct {
	reads    []readStep
	wbuf     bytes.Buffer
	maxWrite int
	closed   bool
}

func (c *fakeConn) Read(p []byte) (int, error) {
	if len(c.reads) == 0 {
		return 0, io.EOF
	}
	st := c.reads[0]
	if st.err != nil {
		c.reads = c.reads[1:]
		return 0, st.err
	}

	n := copy(p, st.data)
	if n < len(st.data) {
		c.reads[0].data = st.data[n:]
	} else {
		c.reads = c.reads[1:]
	}
	return n, nil
}

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.maxWrite > 0 && len(p) > c.maxWrite {
		p = p[:c.maxWrite]
	}
	return c.wbuf.Write(p)
}

func (c *fakeConn) Close() error                       { c.closed = true; return nil }
func (c *fakeConn) LocalAddr() net.Addr                { return &net.TCPAddr{} }
func (c *fakeConn) RemoteAddr() net.Addr               { return &net.TCPAddr{} }
func (c *fakeConn) SetDeadline(t time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func newTestTransport(conn net.Conn) *TCPTransport {
	return &TCPTransport{stream: stream{
		cfg:       Config{ReadTimeout: time.Second},
		host:      "test",
		port:      DefaultPort,
		sock:      conn,
		connected: true,
	}}
}

func encodeFrame(t *testing.T, f *frame.Frame) []byte {
	b, err := f.Encode()
	require.NoError(t, err)
	return b
}

func TestReceiveFrameInOrder(t *testing.T) {
	open := encodeFrame(t, &frame.Frame{
		Type:         frame.TypeAMQP,
		Channel:      0,
		Performative: &frame.Open{ContainerID: "c1"},
	})
	clos := encodeFrame(t, &frame.Frame{
		Type:         frame.TypeAMQP,
		Channel:      1,
		Performative: &frame.Close{},
	})
	heartbeat := encodeFrame(t, frame.Heartbeat(0))

	// 三帧在同一个字节流里连续到达
	var wire []byte
	wire = append(wire, open...)
	wire = append(wire, heartbeat...)
	wire = append(wire, clos...)

	tr := newTestTransport(&fakeConn{reads: []readStep{{data: wire}}})

	recv, err := tr.ReceiveFrame(ExpectAMQP)
	require.NoError(t, err)
	openPerf, ok := recv.Performative.(*frame.Open)
	require.True(t, ok)
	assert.Equal(t, "c1", openPerf.ContainerID)

	recv, err = tr.ReceiveFrame(ExpectAMQP)
	require.NoError(t, err)
	assert.True(t, recv.IsHeartbeat())

	recv, err = tr.ReceiveFrame(ExpectAMQP)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), recv.Channel)
	_, ok = recv.Performative.(*frame.Close)
	assert.True(t, ok)
}

func TestReceiveProtoHeader(t *testing.T) {
	tr := newTestTransport(&fakeConn{reads: []readStep{{data: frame.HeaderAMQP[:]}}})

	recv, err := tr.ReceiveFrame(ExpectAny)
	require.NoError(t, err)
	require.NotNil(t, recv.Proto)
	assert.Equal(t, frame.ProtoAMQP, recv.Proto.ProtoID)
}

func TestReceiveFrameTypeGuard(t *testing.T) {
	saslInit := encodeFrame(t, &frame.Frame{
		Type:         frame.TypeSASL,
		Channel:      0,
		Performative: &frame.SASLInit{Mechanism: "PLAIN"},
	})
	tr := newTestTransport(&fakeConn{reads: []readStep{{data: saslInit}}})

	_, err := tr.ReceiveFrame(ExpectAMQP)
	assert.ErrorIs(t, err, ErrUnexpectedFrame)
}

// TestReceiveFrameTimeoutKeepsBytes 读取中途超时后已读字节保留
// 下一次调用观察到完整的拼接 连接保持可用
func TestReceiveFrameTimeoutKeepsBytes(t *testing.T) {
	full := encodeFrame(t, &frame.Frame{
		Type:         frame.TypeAMQP,
		Channel:      2,
		Performative: &frame.End{},
	})

	half := len(full) / 2
	tr := newTestTransport(&fakeConn{reads: []readStep{
		{data: full[:half]},
		{err: timeoutError{}},
		{data: full[half:]},
	}})

	_, err := tr.ReceiveFrame(ExpectAMQP)
	require.ErrorIs(t, err, ErrTimeout)
	assert.True(t, tr.Connected())

	recv, err := tr.ReceiveFrame(ExpectAMQP)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), recv.Channel)
	_, ok := recv.Performative.(*frame.End)
	assert.True(t, ok)
}

func TestReceiveFrameEOF(t *testing.T) {
	tr := newTestTransport(&fakeConn{})

	_, err := tr.ReceiveFrame(ExpectAMQP)
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.False(t, tr.Connected())

	// 断开态短路
	_, err = tr.ReceiveFrame(ExpectAMQP)
	assert.ErrorIs(t, err, ErrConnectionClosed)
	err = tr.SendFrame(0, &frame.Close{}, nil)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

// TestSendFramePartialWrites 部分写入会循环补齐
func TestSendFramePartialWrites(t *testing.T) {
	conn := &fakeConn{maxWrite: 3}
	tr := newTestTransport(conn)

	p := &frame.Open{ContainerID: "container"}
	require.NoError(t, tr.SendFrame(0, p, nil))

	want := encodeFrame(t, &frame.Frame{
		Type:         frame.TypeAMQP,
		Channel:      0,
		Performative: p,
	})
	assert.Equal(t, want, conn.wbuf.Bytes())
}

func TestSendFrameSelectsSASLType(t *testing.T) {
	conn := &fakeConn{}
	tr := newTestTransport(conn)

	require.NoError(t, tr.SendFrame(0, &frame.SASLInit{Mechanism: "ANONYMOUS"}, nil))
	b := conn.wbuf.Bytes()
	require.GreaterOrEqual(t, len(b), frame.HeaderLength)
	assert.Equal(t, frame.TypeSASL, b[5])
}

func TestNegotiate(t *testing.T) {
	t.Run("echoed header", func(t *testing.T) {
		conn := &fakeConn{reads: []readStep{{data: frame.HeaderAMQP[:]}}}
		tr := newTestTransport(conn)
		require.NoError(t, tr.Negotiate())
		assert.Equal(t, frame.HeaderAMQP[:], conn.wbuf.Bytes())
	})

	t.Run("mismatching header", func(t *testing.T) {
		conn := &fakeConn{reads: []readStep{{data: frame.HeaderSASL[:]}}}
		tr := newTestTransport(conn)
		assert.ErrorIs(t, tr.Negotiate(), ErrProtocolMismatch)
	})

	t.Run("peer answers a frame", func(t *testing.T) {
		b := encodeFrame(t, &frame.Frame{Type: frame.TypeAMQP, Performative: &frame.Close{}})
		conn := &fakeConn{reads: []readStep{{data: b}}}
		tr := newTestTransport(conn)
		assert.ErrorIs(t, tr.Negotiate(), ErrProtocolMismatch)
	})
}

func TestSplitHostPort(t *testing.T) {
	tests := []struct {
		input string
		host  string
		port  int
	}{
		{"broker.local", "broker.local", 5672},
		{"broker.local:5671", "broker.local", 5671},
		{"[fe80::1]:5432", "fe80::1", 5432},
		{"[::1]", "::1", 5672},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			host, port, err := splitHostPort(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
		})
	}

	_, _, err := splitHostPort("host:notaport")
	assert.Error(t, err)
}

func TestCloseIdempotent(t *testing.T) {
	conn := &fakeConn{}
	tr := newTestTransport(conn)

	require.NoError(t, tr.Close())
	assert.True(t, conn.closed)
	assert.False(t, tr.Connected())
	require.NoError(t, tr.Close())
}

func TestConfigSocketSettings(t *testing.T) {
	cfg := Config{SocketSettings: map[string]any{
		"TCP_USER_TIMEOUT": 5000,
		"TCP_KEEPCNT":      "3", // 字符串取值也可接受
	}}

	settings, err := cfg.socketSettings()
	require.NoError(t, err)
	assert.Equal(t, 5000, settings["TCP_USER_TIMEOUT"])
	assert.Equal(t, 3, settings["TCP_KEEPCNT"])
}
