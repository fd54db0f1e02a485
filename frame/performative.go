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
	"github.com/pkg/errors"

	"github.com/packetd/amqpwire/amqp"
)

// performative 描述符
const (
	codeOpen        uint64 = 0x10
	codeBegin       uint64 = 0x11
	codeAttach      uint64 = 0x12
	codeFlow        uint64 = 0x13
	codeTransfer    uint64 = 0x14
	codeDisposition uint64 = 0x15
	codeDetach      uint64 = 0x16
	codeEnd         uint64 = 0x17
	codeClose       uint64 = 0x18

	codeSASLMechanisms uint64 = 0x40
	codeSASLInit       uint64 = 0x41
	codeSASLChallenge  uint64 = 0x42
	codeSASLResponse   uint64 = 0x43
	codeSASLOutcome    uint64 = 0x44
)

// Performative 帧体中的控制消息 以 described list 编码
//
// 标量字段做了具体化 source / target / delivery-state 等
// 结构化子值以 amqp.Value 原样保存 由上层的状态机解释
type Performative interface {
	Descriptor() uint64
	Name() string

	fieldList() ([]amqp.Value, error)
	fromFields(f perfFields) error
}

var performativeFactories = map[uint64]func() Performative{
	codeOpen:        func() Performative { return &Open{} },
	codeBegin:       func() Performative { return &Begin{} },
	codeAttach:      func() Performative { return &Attach{} },
	codeFlow:        func() Performative { return &Flow{} },
	codeTransfer:    func() Performative { return &Transfer{} },
	codeDisposition: func() Performative { return &Disposition{} },
	codeDetach:      func() Performative { return &Detach{} },
	codeEnd:         func() Performative { return &End{} },
	codeClose:       func() Performative { return &Close{} },

	codeSASLMechanisms: func() Performative { return &SASLMechanisms{} },
	codeSASLInit:       func() Performative { return &SASLInit{} },
	codeSASLChallenge:  func() Performative { return &SASLChallenge{} },
	codeSASLResponse:   func() Performative { return &SASLResponse{} },
	codeSASLOutcome:    func() Performative { return &SASLOutcome{} },
}

// performativeOf 按描述符分发到具体的 performative 类型
func performativeOf(v amqp.Value) (Performative, error) {
	desc, err := v.Descriptor()
	if err != nil {
		return nil, errors.Wrap(ErrMalformedFrame, "frame body is not described")
	}
	code, err := desc.Ulong()
	if err != nil {
		return nil, errors.Wrap(ErrMalformedFrame, "performative descriptor is not ulong")
	}

	factory, ok := performativeFactories[code]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownPerformative, "descriptor %#x", code)
	}

	inner, _ := v.Described()
	items, err := inner.List()
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedFrame, "performative %#x is not a list", code)
	}

	p := factory()
	if err := p.fromFields(perfFields{items: items, name: p.Name()}); err != nil {
		return nil, err
	}
	return p, nil
}

// appendPerformative 编码 performative 为 described list
// 尾部的 Null 字段会被截断
func appendPerformative(dst []byte, p Performative) ([]byte, error) {
	fields, err := p.fieldList()
	if err != nil {
		return nil, err
	}
	n := len(fields)
	for n > 0 && fields[n-1].IsNull() {
		n--
	}
	v := amqp.NewDescribed(amqp.NewUlong(p.Descriptor()), amqp.NewList(fields[:n]...))
	return amqp.AppendEncode(dst, v)
}

// perfFields 定位字段访问器 缺失的尾部字段按 Null 处理
type perfFields struct {
	items []amqp.Value
	name  string
}

func (f perfFields) at(i int) amqp.Value {
	if i >= len(f.items) {
		return amqp.Null()
	}
	return f.items[i]
}

func (f perfFields) fieldErr(i int, err error) error {
	return errors.Wrapf(ErrMalformedFrame, "%s field %d: %v", f.name, i, err)
}

func (f perfFields) boolAt(i int, dst **bool) error {
	v := f.at(i)
	if v.IsNull() {
		return nil
	}
	b, err := v.Bool()
	if err != nil {
		return f.fieldErr(i, err)
	}
	*dst = &b
	return nil
}

func (f perfFields) boolValAt(i int, dst *bool) error {
	v := f.at(i)
	if v.IsNull() {
		return nil
	}
	b, err := v.Bool()
	if err != nil {
		return f.fieldErr(i, err)
	}
	*dst = b
	return nil
}

func (f perfFields) ubyteAt(i int, dst **uint8) error {
	v := f.at(i)
	if v.IsNull() {
		return nil
	}
	u, err := v.Ubyte()
	if err != nil {
		return f.fieldErr(i, err)
	}
	*dst = &u
	return nil
}

func (f perfFields) ushortAt(i int, dst **uint16) error {
	v := f.at(i)
	if v.IsNull() {
		return nil
	}
	u, err := v.Ushort()
	if err != nil {
		return f.fieldErr(i, err)
	}
	*dst = &u
	return nil
}

func (f perfFields) uintAt(i int, dst **uint32) error {
	v := f.at(i)
	if v.IsNull() {
		return nil
	}
	u, err := v.Uint()
	if err != nil {
		return f.fieldErr(i, err)
	}
	*dst = &u
	return nil
}

func (f perfFields) uintValAt(i int, dst *uint32) error {
	v := f.at(i)
	if v.IsNull() {
		return nil
	}
	u, err := v.Uint()
	if err != nil {
		return f.fieldErr(i, err)
	}
	*dst = u
	return nil
}

func (f perfFields) ulongAt(i int, dst **uint64) error {
	v := f.at(i)
	if v.IsNull() {
		return nil
	}
	u, err := v.Ulong()
	if err != nil {
		return f.fieldErr(i, err)
	}
	*dst = &u
	return nil
}

func (f perfFields) strValAt(i int, dst *string) error {
	v := f.at(i)
	if v.IsNull() {
		return nil
	}
	s, err := v.Text()
	if err != nil {
		return f.fieldErr(i, err)
	}
	*dst = s
	return nil
}

func (f perfFields) strAt(i int, dst **string) error {
	v := f.at(i)
	if v.IsNull() {
		return nil
	}
	s, err := v.Text()
	if err != nil {
		return f.fieldErr(i, err)
	}
	*dst = &s
	return nil
}

func (f perfFields) symValAt(i int, dst *string) error {
	v := f.at(i)
	if v.IsNull() {
		return nil
	}
	s, err := v.Symbol()
	if err != nil {
		return f.fieldErr(i, err)
	}
	*dst = s
	return nil
}

func (f perfFields) binAt(i int, dst *[]byte) error {
	v := f.at(i)
	if v.IsNull() {
		return nil
	}
	b, err := v.Binary()
	if err != nil {
		return f.fieldErr(i, err)
	}
	*dst = b
	return nil
}

func (f perfFields) valAt(i int, dst *amqp.Value) {
	*dst = f.at(i)
}

// 编码侧的小工具
func optBool(p *bool) amqp.Value {
	if p == nil {
		return amqp.Null()
	}
	return amqp.NewBool(*p)
}

func optUbyte(p *uint8) amqp.Value {
	if p == nil {
		return amqp.Null()
	}
	return amqp.NewUbyte(*p)
}

func optUshort(p *uint16) amqp.Value {
	if p == nil {
		return amqp.Null()
	}
	return amqp.NewUshort(*p)
}

func optUint(p *uint32) amqp.Value {
	if p == nil {
		return amqp.Null()
	}
	return amqp.NewUint(*p)
}

func optUlong(p *uint64) amqp.Value {
	if p == nil {
		return amqp.Null()
	}
	return amqp.NewUlong(*p)
}

func optStr(p *string) amqp.Value {
	if p == nil {
		return amqp.Null()
	}
	return amqp.NewString(*p)
}

func optBin(b []byte) amqp.Value {
	if b == nil {
		return amqp.Null()
	}
	return amqp.NewBinary(b)
}
