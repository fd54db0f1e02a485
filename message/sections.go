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

// Header header 段 5 个定位字段
//
// durable / priority / ttl / first-acquirer / delivery-count
// 均为可选 编码时尾部的 Null 字段会被截断 解码时缺失的尾部字段补 Null
type Header struct {
	Durable       *bool
	Priority      *uint8
	TTL           *uint32 // 单位 ms
	FirstAcquirer *bool
	DeliveryCount *uint32
}

func (h *Header) fieldList() []amqp.Value {
	fields := make([]amqp.Value, 5)
	for i := range fields {
		fields[i] = amqp.Null()
	}
	if h.Durable != nil {
		fields[0] = amqp.NewBool(*h.Durable)
	}
	if h.Priority != nil {
		fields[1] = amqp.NewUbyte(*h.Priority)
	}
	if h.TTL != nil {
		fields[2] = amqp.NewUint(*h.TTL)
	}
	if h.FirstAcquirer != nil {
		fields[3] = amqp.NewBool(*h.FirstAcquirer)
	}
	if h.DeliveryCount != nil {
		fields[4] = amqp.NewUint(*h.DeliveryCount)
	}
	return fields
}

func (h *Header) appendSection(dst []byte) ([]byte, error) {
	return appendListSection(dst, DescHeader, h.fieldList())
}

func decodeHeader(v amqp.Value) (*Header, error) {
	f, err := sectionFields(v, "header")
	if err != nil {
		return nil, err
	}

	h := &Header{}
	if h.Durable, err = f.boolAt(0); err != nil {
		return nil, err
	}
	if h.Priority, err = f.ubyteAt(1); err != nil {
		return nil, err
	}
	if h.TTL, err = f.uintAt(2); err != nil {
		return nil, err
	}
	if h.FirstAcquirer, err = f.boolAt(3); err != nil {
		return nil, err
	}
	if h.DeliveryCount, err = f.uintAt(4); err != nil {
		return nil, err
	}
	return h, nil
}

// Properties properties 段 13 个定位字段
//
// message-id 与 correlation-id 允许 ulong / uuid / binary / string
// 四种类型 以 amqp.Value 原样保存 其余标量字段做了具体化
type Properties struct {
	MessageID          amqp.Value
	UserID             []byte
	To                 *string
	Subject            *string
	ReplyTo            *string
	CorrelationID      amqp.Value
	ContentType        *string // symbol
	ContentEncoding    *string // symbol
	AbsoluteExpiryTime *int64  // Unix 毫秒
	CreationTime       *int64  // Unix 毫秒
	GroupID            *string
	GroupSequence      *uint32
	ReplyToGroupID     *string
}

func (p *Properties) fieldList() ([]amqp.Value, error) {
	fields := make([]amqp.Value, 13)
	for i := range fields {
		fields[i] = amqp.Null()
	}

	if p.MessageID.Kind() != amqp.KindNull {
		fields[0] = p.MessageID
	}
	if p.UserID != nil {
		fields[1] = amqp.NewBinary(p.UserID)
	}
	if p.To != nil {
		fields[2] = amqp.NewString(*p.To)
	}
	if p.Subject != nil {
		fields[3] = amqp.NewString(*p.Subject)
	}
	if p.ReplyTo != nil {
		fields[4] = amqp.NewString(*p.ReplyTo)
	}
	if p.CorrelationID.Kind() != amqp.KindNull {
		fields[5] = p.CorrelationID
	}
	if p.ContentType != nil {
		sym, err := amqp.NewSymbol(*p.ContentType)
		if err != nil {
			return nil, err
		}
		fields[6] = sym
	}
	if p.ContentEncoding != nil {
		sym, err := amqp.NewSymbol(*p.ContentEncoding)
		if err != nil {
			return nil, err
		}
		fields[7] = sym
	}
	if p.AbsoluteExpiryTime != nil {
		fields[8] = amqp.NewTimestamp(*p.AbsoluteExpiryTime)
	}
	if p.CreationTime != nil {
		fields[9] = amqp.NewTimestamp(*p.CreationTime)
	}
	if p.GroupID != nil {
		fields[10] = amqp.NewString(*p.GroupID)
	}
	if p.GroupSequence != nil {
		fields[11] = amqp.NewUint(*p.GroupSequence)
	}
	if p.ReplyToGroupID != nil {
		fields[12] = amqp.NewString(*p.ReplyToGroupID)
	}
	return fields, nil
}

func (p *Properties) appendSection(dst []byte) ([]byte, error) {
	fields, err := p.fieldList()
	if err != nil {
		return nil, err
	}
	return appendListSection(dst, DescProperties, fields)
}

func decodeProperties(v amqp.Value) (*Properties, error) {
	f, err := sectionFields(v, "properties")
	if err != nil {
		return nil, err
	}

	p := &Properties{MessageID: f.at(0), CorrelationID: f.at(5)}
	if p.UserID, err = f.binaryAt(1); err != nil {
		return nil, err
	}
	if p.To, err = f.stringAt(2); err != nil {
		return nil, err
	}
	if p.Subject, err = f.stringAt(3); err != nil {
		return nil, err
	}
	if p.ReplyTo, err = f.stringAt(4); err != nil {
		return nil, err
	}
	if p.ContentType, err = f.symbolAt(6); err != nil {
		return nil, err
	}
	if p.ContentEncoding, err = f.symbolAt(7); err != nil {
		return nil, err
	}
	if p.AbsoluteExpiryTime, err = f.timestampAt(8); err != nil {
		return nil, err
	}
	if p.CreationTime, err = f.timestampAt(9); err != nil {
		return nil, err
	}
	if p.GroupID, err = f.stringAt(10); err != nil {
		return nil, err
	}
	if p.GroupSequence, err = f.uintAt(11); err != nil {
		return nil, err
	}
	if p.ReplyToGroupID, err = f.stringAt(12); err != nil {
		return nil, err
	}
	return p, nil
}

// appendListSection 发射 described list 段 尾部的 Null 字段被截断
func appendListSection(dst []byte, code uint64, fields []amqp.Value) ([]byte, error) {
	n := len(fields)
	for n > 0 && fields[n-1].IsNull() {
		n--
	}
	return amqp.AppendEncode(dst, amqp.NewDescribed(amqp.NewUlong(code), amqp.NewList(fields[:n]...)))
}

// sectionList 定位字段访问器 缺失的尾部字段按 Null 处理
type sectionList struct {
	items []amqp.Value
	what  string
}

func sectionFields(v amqp.Value, what string) (sectionList, error) {
	items, err := v.List()
	if err != nil {
		return sectionList{}, errors.Wrapf(ErrMalformedMessage, "%s section is not a list", what)
	}
	return sectionList{items: items, what: what}, nil
}

func (f sectionList) at(i int) amqp.Value {
	if i >= len(f.items) {
		return amqp.Null()
	}
	return f.items[i]
}

func (f sectionList) fieldErr(i int, err error) error {
	return errors.Wrapf(ErrMalformedMessage, "%s field %d: %v", f.what, i, err)
}

func (f sectionList) boolAt(i int) (*bool, error) {
	v := f.at(i)
	if v.IsNull() {
		return nil, nil
	}
	b, err := v.Bool()
	if err != nil {
		return nil, f.fieldErr(i, err)
	}
	return &b, nil
}

func (f sectionList) ubyteAt(i int) (*uint8, error) {
	v := f.at(i)
	if v.IsNull() {
		return nil, nil
	}
	u, err := v.Ubyte()
	if err != nil {
		return nil, f.fieldErr(i, err)
	}
	return &u, nil
}

func (f sectionList) uintAt(i int) (*uint32, error) {
	v := f.at(i)
	if v.IsNull() {
		return nil, nil
	}
	u, err := v.Uint()
	if err != nil {
		return nil, f.fieldErr(i, err)
	}
	return &u, nil
}

func (f sectionList) stringAt(i int) (*string, error) {
	v := f.at(i)
	if v.IsNull() {
		return nil, nil
	}
	s, err := v.Text()
	if err != nil {
		return nil, f.fieldErr(i, err)
	}
	return &s, nil
}

func (f sectionList) symbolAt(i int) (*string, error) {
	v := f.at(i)
	if v.IsNull() {
		return nil, nil
	}
	s, err := v.Symbol()
	if err != nil {
		return nil, f.fieldErr(i, err)
	}
	return &s, nil
}

func (f sectionList) binaryAt(i int) ([]byte, error) {
	v := f.at(i)
	if v.IsNull() {
		return nil, nil
	}
	b, err := v.Binary()
	if err != nil {
		return nil, f.fieldErr(i, err)
	}
	return b, nil
}

func (f sectionList) timestampAt(i int) (*int64, error) {
	v := f.at(i)
	if v.IsNull() {
		return nil, nil
	}
	ts, err := v.Timestamp()
	if err != nil {
		return nil, f.fieldErr(i, err)
	}
	return &ts, nil
}

// BodyType 消息体的三种形态
type BodyType uint8

const (
	BodyNone BodyType = iota
	BodyData
	BodySequence
	BodyValue
)

// Body 消息体 三种形态互斥
//
// Data: 若干不透明二进制块 每块编码为一个 data 段 只增不改
// Sequence: 若干 amqp-sequence 列表段
// Value: 单个 amqp-value 段
type Body struct {
	typ   BodyType
	data  [][]byte
	seqs  [][]amqp.Value
	value amqp.Value
}

func (b *Body) Type() BodyType {
	return b.typ
}

// AppendData 追加一个二进制块 与 Sequence / Value 形态互斥
func (b *Body) AppendData(blob []byte) error {
	if b.typ != BodyNone && b.typ != BodyData {
		return errors.Wrap(ErrMalformedMessage, "data joins a non-data body")
	}
	b.typ = BodyData
	cp := make([]byte, len(blob))
	copy(cp, blob)
	b.data = append(b.data, cp)
	return nil
}

// AppendSequence 追加一个 amqp-sequence 列表
func (b *Body) AppendSequence(items []amqp.Value) error {
	if b.typ != BodyNone && b.typ != BodySequence {
		return errors.Wrap(ErrMalformedMessage, "sequence joins a non-sequence body")
	}
	b.typ = BodySequence
	cp := make([]amqp.Value, len(items))
	copy(cp, items)
	b.seqs = append(b.seqs, cp)
	return nil
}

// SetValue 设置单值消息体 只允许设置一次
func (b *Body) SetValue(v amqp.Value) error {
	if b.typ != BodyNone {
		return errors.Wrap(ErrMalformedMessage, "value joins a non-empty body")
	}
	b.typ = BodyValue
	b.value = v
	return nil
}

func (b *Body) Data() [][]byte {
	return b.data
}

func (b *Body) Sequences() [][]amqp.Value {
	return b.seqs
}

func (b *Body) Value() amqp.Value {
	return b.value
}

func (b *Body) appendSections(dst []byte) ([]byte, error) {
	var err error
	switch b.typ {
	case BodyNone:
		return dst, nil

	case BodyData:
		for _, blob := range b.data {
			section := amqp.NewDescribed(amqp.NewUlong(DescData), amqp.NewBinary(blob))
			dst, err = amqp.AppendEncode(dst, section)
			if err != nil {
				return nil, err
			}
		}
		return dst, nil

	case BodySequence:
		for _, seq := range b.seqs {
			section := amqp.NewDescribed(amqp.NewUlong(DescSequence), amqp.NewList(seq...))
			dst, err = amqp.AppendEncode(dst, section)
			if err != nil {
				return nil, err
			}
		}
		return dst, nil

	default:
		section := amqp.NewDescribed(amqp.NewUlong(DescValue), b.value)
		return amqp.AppendEncode(dst, section)
	}
}
