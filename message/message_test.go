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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/amqpwire/amqp"
)

func ptrOf[T any](v T) *T {
	return &v
}

func TestMessageRoundTrip(t *testing.T) {
	annotations := amqp.NewMap()
	require.NoError(t, annotations.Insert(
		amqp.MustSymbol("x-opt-partition-key"),
		amqp.NewString("pk-1"),
	))

	appProps := amqp.NewMap()
	require.NoError(t, appProps.Insert(amqp.NewString("attempt"), amqp.NewInt(3)))

	m := New()
	m.Header = &Header{
		Durable:  ptrOf(true),
		Priority: ptrOf(uint8(4)),
	}
	m.MessageAnnotations = annotations
	m.Properties = &Properties{
		MessageID:    amqp.NewString("id-1"),
		To:           ptrOf("queue-a"),
		ContentType:  ptrOf("application/json"),
		CreationTime: ptrOf(int64(1540803917541)),
	}
	m.AppProperties = appProps
	require.NoError(t, m.Body.AppendData([]byte("payload-0")))
	require.NoError(t, m.Body.AppendData([]byte("payload-1")))

	b, err := m.Encode()
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)

	require.NotNil(t, got.Header)
	assert.Equal(t, true, *got.Header.Durable)
	assert.Equal(t, uint8(4), *got.Header.Priority)
	assert.Nil(t, got.Header.TTL)

	require.NotNil(t, got.Properties)
	id, err := got.Properties.MessageID.Text()
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)
	assert.Equal(t, "queue-a", *got.Properties.To)
	assert.Equal(t, "application/json", *got.Properties.ContentType)
	assert.Equal(t, int64(1540803917541), *got.Properties.CreationTime)
	assert.Nil(t, got.Properties.GroupID)

	assert.True(t, amqp.Equal(annotations, got.MessageAnnotations))
	assert.True(t, amqp.Equal(appProps, got.AppProperties))

	assert.Equal(t, BodyData, got.Body.Type())
	require.Len(t, got.Body.Data(), 2)
	assert.Equal(t, []byte("payload-1"), got.Body.Data()[1])

	// 编码是确定性的
	b2, err := got.Encode()
	require.NoError(t, err)
	assert.Equal(t, b, b2)
}

// TestHeaderTruncatesTrailingNulls 尾部 Null 字段在编码时被截断
// 解码器对缺失的尾部字段补 Null
func TestHeaderTruncatesTrailingNulls(t *testing.T) {
	m := New()
	m.Header = &Header{Durable: ptrOf(true)}

	b, err := m.Encode()
	require.NoError(t, err)

	v, n, err := amqp.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, len(b), n)

	inner, err := v.Described()
	require.NoError(t, err)
	assert.Equal(t, 1, inner.Len())

	got, err := Decode(b)
	require.NoError(t, err)
	require.NotNil(t, got.Header)
	assert.Equal(t, true, *got.Header.Durable)
	assert.Nil(t, got.Header.DeliveryCount)
}

func TestPropertiesAllThirteenFields(t *testing.T) {
	p := &Properties{
		MessageID:          amqp.NewUlong(7),
		UserID:             []byte{0x01},
		To:                 ptrOf("to"),
		Subject:            ptrOf("subject"),
		ReplyTo:            ptrOf("reply-to"),
		CorrelationID:      amqp.NewUUID(),
		ContentType:        ptrOf("text/plain"),
		ContentEncoding:    ptrOf("gzip"),
		AbsoluteExpiryTime: ptrOf(int64(2000)),
		CreationTime:       ptrOf(int64(1000)),
		GroupID:            ptrOf("group"),
		GroupSequence:      ptrOf(uint32(5)),
		ReplyToGroupID:     ptrOf("reply-group"),
	}

	m := New()
	m.Properties = p
	b, err := m.Encode()
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	require.NotNil(t, got.Properties)
	assert.True(t, amqp.Equal(p.CorrelationID, got.Properties.CorrelationID))
	assert.Equal(t, "reply-group", *got.Properties.ReplyToGroupID)
	assert.Equal(t, uint32(5), *got.Properties.GroupSequence)
}

func TestDecodeDuplicateSection(t *testing.T) {
	m := New()
	m.Header = &Header{Durable: ptrOf(true)}

	b, err := m.Encode()
	require.NoError(t, err)

	_, err = Decode(append(append([]byte{}, b...), b...))
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestBodyShapesAreExclusive(t *testing.T) {
	var b Body
	require.NoError(t, b.AppendData([]byte("x")))
	assert.ErrorIs(t, b.AppendSequence([]amqp.Value{amqp.Null()}), ErrMalformedMessage)
	assert.ErrorIs(t, b.SetValue(amqp.NewInt(1)), ErrMalformedMessage)

	var s Body
	require.NoError(t, s.AppendSequence([]amqp.Value{amqp.NewInt(1)}))
	require.NoError(t, s.AppendSequence([]amqp.Value{amqp.NewInt(2)}))
	assert.ErrorIs(t, s.AppendData([]byte("x")), ErrMalformedMessage)

	var v Body
	require.NoError(t, v.SetValue(amqp.NewString("only-once")))
	assert.ErrorIs(t, v.SetValue(amqp.NewString("again")), ErrMalformedMessage)
}

func TestSequenceBodyRoundTrip(t *testing.T) {
	m := New()
	require.NoError(t, m.Body.AppendSequence([]amqp.Value{amqp.NewInt(1), amqp.NewString("a")}))
	require.NoError(t, m.Body.AppendSequence([]amqp.Value{amqp.NewBool(true)}))

	b, err := m.Encode()
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, BodySequence, got.Body.Type())
	require.Len(t, got.Body.Sequences(), 2)
	assert.True(t, amqp.Equal(amqp.NewString("a"), got.Body.Sequences()[0][1]))
}

func TestValueBodyRoundTrip(t *testing.T) {
	m := New()
	require.NoError(t, m.Body.SetValue(amqp.NewDouble(2.5)))

	b, err := m.Encode()
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, BodyValue, got.Body.Type())
	d, err := got.Body.Value().Double()
	require.NoError(t, err)
	assert.Equal(t, 2.5, d)

	// 第二个 amqp-value 段不合法
	_, err = Decode(append(append([]byte{}, b...), b...))
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

// TestBatch 批量消息 每个内部载荷编码为一个 amqp-value 信封
// 并作为一个 data 块追加 接收端不拆分
func TestBatch(t *testing.T) {
	payloads := []amqp.Value{
		amqp.NewString("event-1"),
		amqp.NewString("event-2"),
		amqp.NewInt(3),
	}

	m, err := NewBatchOf(payloads...)
	require.NoError(t, err)
	assert.Equal(t, BatchFormat, m.Format)
	assert.Equal(t, BodyData, m.Body.Type())
	require.Len(t, m.Body.Data(), 3)

	for i, blob := range m.Body.Data() {
		v, n, err := amqp.Decode(blob)
		require.NoError(t, err)
		assert.Equal(t, len(blob), n)

		desc, err := v.Descriptor()
		require.NoError(t, err)
		code, err := desc.Ulong()
		require.NoError(t, err)
		assert.Equal(t, DescValue, code)

		inner, err := v.Described()
		require.NoError(t, err)
		assert.True(t, amqp.Equal(payloads[i], inner))
	}

	// 拉取函数在序列耗尽时停止
	n := 0
	m2, err := NewBatch(func() (amqp.Value, bool) {
		if n >= 1 {
			return amqp.Value{}, false
		}
		n++
		return amqp.NewBool(true), true
	})
	require.NoError(t, err)
	assert.Len(t, m2.Body.Data(), 1)
}
