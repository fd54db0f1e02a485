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
	"github.com/packetd/amqpwire/amqp"
)

// Open connection 级握手 descriptor 0x10
type Open struct {
	ContainerID         string
	Hostname            *string
	MaxFrameSize        *uint32
	ChannelMax          *uint16
	IdleTimeout         *uint32 // 单位 ms
	OutgoingLocales     amqp.Value
	IncomingLocales     amqp.Value
	OfferedCapabilities amqp.Value
	DesiredCapabilities amqp.Value
	Properties          amqp.Value
}

func (o *Open) Descriptor() uint64 { return codeOpen }
func (o *Open) Name() string       { return "open" }

func (o *Open) fieldList() ([]amqp.Value, error) {
	return []amqp.Value{
		amqp.NewString(o.ContainerID),
		optStr(o.Hostname),
		optUint(o.MaxFrameSize),
		optUshort(o.ChannelMax),
		optUint(o.IdleTimeout),
		o.OutgoingLocales,
		o.IncomingLocales,
		o.OfferedCapabilities,
		o.DesiredCapabilities,
		o.Properties,
	}, nil
}

func (o *Open) fromFields(f perfFields) error {
	if err := f.strValAt(0, &o.ContainerID); err != nil {
		return err
	}
	if err := f.strAt(1, &o.Hostname); err != nil {
		return err
	}
	if err := f.uintAt(2, &o.MaxFrameSize); err != nil {
		return err
	}
	if err := f.ushortAt(3, &o.ChannelMax); err != nil {
		return err
	}
	if err := f.uintAt(4, &o.IdleTimeout); err != nil {
		return err
	}
	f.valAt(5, &o.OutgoingLocales)
	f.valAt(6, &o.IncomingLocales)
	f.valAt(7, &o.OfferedCapabilities)
	f.valAt(8, &o.DesiredCapabilities)
	f.valAt(9, &o.Properties)
	return nil
}

// Begin session 级握手 descriptor 0x11
type Begin struct {
	RemoteChannel       *uint16
	NextOutgoingID      uint32
	IncomingWindow      uint32
	OutgoingWindow      uint32
	HandleMax           *uint32
	OfferedCapabilities amqp.Value
	DesiredCapabilities amqp.Value
	Properties          amqp.Value
}

func (b *Begin) Descriptor() uint64 { return codeBegin }
func (b *Begin) Name() string       { return "begin" }

func (b *Begin) fieldList() ([]amqp.Value, error) {
	return []amqp.Value{
		optUshort(b.RemoteChannel),
		amqp.NewUint(b.NextOutgoingID),
		amqp.NewUint(b.IncomingWindow),
		amqp.NewUint(b.OutgoingWindow),
		optUint(b.HandleMax),
		b.OfferedCapabilities,
		b.DesiredCapabilities,
		b.Properties,
	}, nil
}

func (b *Begin) fromFields(f perfFields) error {
	if err := f.ushortAt(0, &b.RemoteChannel); err != nil {
		return err
	}
	if err := f.uintValAt(1, &b.NextOutgoingID); err != nil {
		return err
	}
	if err := f.uintValAt(2, &b.IncomingWindow); err != nil {
		return err
	}
	if err := f.uintValAt(3, &b.OutgoingWindow); err != nil {
		return err
	}
	if err := f.uintAt(4, &b.HandleMax); err != nil {
		return err
	}
	f.valAt(5, &b.OfferedCapabilities)
	f.valAt(6, &b.DesiredCapabilities)
	f.valAt(7, &b.Properties)
	return nil
}

// Attach link 级握手 descriptor 0x12
//
// source / target 与 unsettled map 的内部结构由上层解释 原样透传
type Attach struct {
	LinkName             string
	Handle               uint32
	Role                 bool // false sender / true receiver
	SndSettleMode        *uint8
	RcvSettleMode        *uint8
	Source               amqp.Value
	Target               amqp.Value
	Unsettled            amqp.Value
	IncompleteUnsettled  *bool
	InitialDeliveryCount *uint32
	MaxMessageSize       *uint64
	OfferedCapabilities  amqp.Value
	DesiredCapabilities  amqp.Value
	Properties           amqp.Value
}

func (a *Attach) Descriptor() uint64 { return codeAttach }
func (a *Attach) Name() string       { return "attach" }

func (a *Attach) fieldList() ([]amqp.Value, error) {
	return []amqp.Value{
		amqp.NewString(a.LinkName),
		amqp.NewUint(a.Handle),
		amqp.NewBool(a.Role),
		optUbyte(a.SndSettleMode),
		optUbyte(a.RcvSettleMode),
		a.Source,
		a.Target,
		a.Unsettled,
		optBool(a.IncompleteUnsettled),
		optUint(a.InitialDeliveryCount),
		optUlong(a.MaxMessageSize),
		a.OfferedCapabilities,
		a.DesiredCapabilities,
		a.Properties,
	}, nil
}

func (a *Attach) fromFields(f perfFields) error {
	if err := f.strValAt(0, &a.LinkName); err != nil {
		return err
	}
	if err := f.uintValAt(1, &a.Handle); err != nil {
		return err
	}
	if err := f.boolValAt(2, &a.Role); err != nil {
		return err
	}
	if err := f.ubyteAt(3, &a.SndSettleMode); err != nil {
		return err
	}
	if err := f.ubyteAt(4, &a.RcvSettleMode); err != nil {
		return err
	}
	f.valAt(5, &a.Source)
	f.valAt(6, &a.Target)
	f.valAt(7, &a.Unsettled)
	if err := f.boolAt(8, &a.IncompleteUnsettled); err != nil {
		return err
	}
	if err := f.uintAt(9, &a.InitialDeliveryCount); err != nil {
		return err
	}
	if err := f.ulongAt(10, &a.MaxMessageSize); err != nil {
		return err
	}
	f.valAt(11, &a.OfferedCapabilities)
	f.valAt(12, &a.DesiredCapabilities)
	f.valAt(13, &a.Properties)
	return nil
}

// Flow 流控 descriptor 0x13
type Flow struct {
	NextIncomingID *uint32
	IncomingWindow uint32
	NextOutgoingID uint32
	OutgoingWindow uint32
	Handle         *uint32
	DeliveryCount  *uint32
	LinkCredit     *uint32
	Available      *uint32
	Drain          *bool
	Echo           *bool
	Properties     amqp.Value
}

func (l *Flow) Descriptor() uint64 { return codeFlow }
func (l *Flow) Name() string       { return "flow" }

func (l *Flow) fieldList() ([]amqp.Value, error) {
	return []amqp.Value{
		optUint(l.NextIncomingID),
		amqp.NewUint(l.IncomingWindow),
		amqp.NewUint(l.NextOutgoingID),
		amqp.NewUint(l.OutgoingWindow),
		optUint(l.Handle),
		optUint(l.DeliveryCount),
		optUint(l.LinkCredit),
		optUint(l.Available),
		optBool(l.Drain),
		optBool(l.Echo),
		l.Properties,
	}, nil
}

func (l *Flow) fromFields(f perfFields) error {
	if err := f.uintAt(0, &l.NextIncomingID); err != nil {
		return err
	}
	if err := f.uintValAt(1, &l.IncomingWindow); err != nil {
		return err
	}
	if err := f.uintValAt(2, &l.NextOutgoingID); err != nil {
		return err
	}
	if err := f.uintValAt(3, &l.OutgoingWindow); err != nil {
		return err
	}
	if err := f.uintAt(4, &l.Handle); err != nil {
		return err
	}
	if err := f.uintAt(5, &l.DeliveryCount); err != nil {
		return err
	}
	if err := f.uintAt(6, &l.LinkCredit); err != nil {
		return err
	}
	if err := f.uintAt(7, &l.Available); err != nil {
		return err
	}
	if err := f.boolAt(8, &l.Drain); err != nil {
		return err
	}
	if err := f.boolAt(9, &l.Echo); err != nil {
		return err
	}
	f.valAt(10, &l.Properties)
	return nil
}

// Transfer 消息传输 descriptor 0x14 消息字节位于帧的附加载荷
type Transfer struct {
	Handle        uint32
	DeliveryID    *uint32
	DeliveryTag   []byte
	MessageFormat *uint32
	Settled       *bool
	More          *bool
	RcvSettleMode *uint8
	State         amqp.Value
	Resume        *bool
	Aborted       *bool
	Batchable     *bool
}

func (t *Transfer) Descriptor() uint64 { return codeTransfer }
func (t *Transfer) Name() string       { return "transfer" }

func (t *Transfer) fieldList() ([]amqp.Value, error) {
	return []amqp.Value{
		amqp.NewUint(t.Handle),
		optUint(t.DeliveryID),
		optBin(t.DeliveryTag),
		optUint(t.MessageFormat),
		optBool(t.Settled),
		optBool(t.More),
		optUbyte(t.RcvSettleMode),
		t.State,
		optBool(t.Resume),
		optBool(t.Aborted),
		optBool(t.Batchable),
	}, nil
}

func (t *Transfer) fromFields(f perfFields) error {
	if err := f.uintValAt(0, &t.Handle); err != nil {
		return err
	}
	if err := f.uintAt(1, &t.DeliveryID); err != nil {
		return err
	}
	if err := f.binAt(2, &t.DeliveryTag); err != nil {
		return err
	}
	if err := f.uintAt(3, &t.MessageFormat); err != nil {
		return err
	}
	if err := f.boolAt(4, &t.Settled); err != nil {
		return err
	}
	if err := f.boolAt(5, &t.More); err != nil {
		return err
	}
	if err := f.ubyteAt(6, &t.RcvSettleMode); err != nil {
		return err
	}
	f.valAt(7, &t.State)
	if err := f.boolAt(8, &t.Resume); err != nil {
		return err
	}
	if err := f.boolAt(9, &t.Aborted); err != nil {
		return err
	}
	return f.boolAt(10, &t.Batchable)
}

// Disposition 投递状态变更 descriptor 0x15
type Disposition struct {
	Role      bool
	First     uint32
	Last      *uint32
	Settled   *bool
	State     amqp.Value
	Batchable *bool
}

func (d *Disposition) Descriptor() uint64 { return codeDisposition }
func (d *Disposition) Name() string       { return "disposition" }

func (d *Disposition) fieldList() ([]amqp.Value, error) {
	return []amqp.Value{
		amqp.NewBool(d.Role),
		amqp.NewUint(d.First),
		optUint(d.Last),
		optBool(d.Settled),
		d.State,
		optBool(d.Batchable),
	}, nil
}

func (d *Disposition) fromFields(f perfFields) error {
	if err := f.boolValAt(0, &d.Role); err != nil {
		return err
	}
	if err := f.uintValAt(1, &d.First); err != nil {
		return err
	}
	if err := f.uintAt(2, &d.Last); err != nil {
		return err
	}
	if err := f.boolAt(3, &d.Settled); err != nil {
		return err
	}
	f.valAt(4, &d.State)
	return f.boolAt(5, &d.Batchable)
}

// Detach link 终止 descriptor 0x16
type Detach struct {
	Handle uint32
	Closed *bool
	Error  amqp.Value
}

func (d *Detach) Descriptor() uint64 { return codeDetach }
func (d *Detach) Name() string       { return "detach" }

func (d *Detach) fieldList() ([]amqp.Value, error) {
	return []amqp.Value{
		amqp.NewUint(d.Handle),
		optBool(d.Closed),
		d.Error,
	}, nil
}

func (d *Detach) fromFields(f perfFields) error {
	if err := f.uintValAt(0, &d.Handle); err != nil {
		return err
	}
	if err := f.boolAt(1, &d.Closed); err != nil {
		return err
	}
	f.valAt(2, &d.Error)
	return nil
}

// End session 终止 descriptor 0x17
type End struct {
	Error amqp.Value
}

func (e *End) Descriptor() uint64 { return codeEnd }
func (e *End) Name() string       { return "end" }

func (e *End) fieldList() ([]amqp.Value, error) {
	return []amqp.Value{e.Error}, nil
}

func (e *End) fromFields(f perfFields) error {
	f.valAt(0, &e.Error)
	return nil
}

// Close connection 终止 descriptor 0x18
type Close struct {
	Error amqp.Value
}

func (c *Close) Descriptor() uint64 { return codeClose }
func (c *Close) Name() string       { return "close" }

func (c *Close) fieldList() ([]amqp.Value, error) {
	return []amqp.Value{c.Error}, nil
}

func (c *Close) fromFields(f perfFields) error {
	f.valAt(0, &c.Error)
	return nil
}

// SASLMechanisms descriptor 0x40 携带 symbol 或 symbol 数组
type SASLMechanisms struct {
	Mechanisms amqp.Value
}

func (s *SASLMechanisms) Descriptor() uint64 { return codeSASLMechanisms }
func (s *SASLMechanisms) Name() string       { return "sasl-mechanisms" }

func (s *SASLMechanisms) fieldList() ([]amqp.Value, error) {
	return []amqp.Value{s.Mechanisms}, nil
}

func (s *SASLMechanisms) fromFields(f perfFields) error {
	f.valAt(0, &s.Mechanisms)
	return nil
}

// SASLInit descriptor 0x41
type SASLInit struct {
	Mechanism       string // symbol
	InitialResponse []byte
	Hostname        *string
}

func (s *SASLInit) Descriptor() uint64 { return codeSASLInit }
func (s *SASLInit) Name() string       { return "sasl-init" }

func (s *SASLInit) fieldList() ([]amqp.Value, error) {
	mech, err := amqp.NewSymbol(s.Mechanism)
	if err != nil {
		return nil, err
	}
	return []amqp.Value{
		mech,
		optBin(s.InitialResponse),
		optStr(s.Hostname),
	}, nil
}

func (s *SASLInit) fromFields(f perfFields) error {
	if err := f.symValAt(0, &s.Mechanism); err != nil {
		return err
	}
	if err := f.binAt(1, &s.InitialResponse); err != nil {
		return err
	}
	return f.strAt(2, &s.Hostname)
}

// SASLChallenge descriptor 0x42
type SASLChallenge struct {
	Challenge []byte
}

func (s *SASLChallenge) Descriptor() uint64 { return codeSASLChallenge }
func (s *SASLChallenge) Name() string       { return "sasl-challenge" }

func (s *SASLChallenge) fieldList() ([]amqp.Value, error) {
	return []amqp.Value{optBin(s.Challenge)}, nil
}

func (s *SASLChallenge) fromFields(f perfFields) error {
	return f.binAt(0, &s.Challenge)
}

// SASLResponse descriptor 0x43
type SASLResponse struct {
	Response []byte
}

func (s *SASLResponse) Descriptor() uint64 { return codeSASLResponse }
func (s *SASLResponse) Name() string       { return "sasl-response" }

func (s *SASLResponse) fieldList() ([]amqp.Value, error) {
	return []amqp.Value{optBin(s.Response)}, nil
}

func (s *SASLResponse) fromFields(f perfFields) error {
	return f.binAt(0, &s.Response)
}

// SASLOutcome descriptor 0x44
type SASLOutcome struct {
	Code           uint8
	AdditionalData []byte
}

func (s *SASLOutcome) Descriptor() uint64 { return codeSASLOutcome }
func (s *SASLOutcome) Name() string       { return "sasl-outcome" }

func (s *SASLOutcome) fieldList() ([]amqp.Value, error) {
	return []amqp.Value{
		amqp.NewUbyte(s.Code),
		optBin(s.AdditionalData),
	}, nil
}

func (s *SASLOutcome) fromFields(f perfFields) error {
	v := f.at(0)
	if !v.IsNull() {
		code, err := v.Ubyte()
		if err != nil {
			return f.fieldErr(0, err)
		}
		s.Code = code
	}
	return f.binAt(1, &s.AdditionalData)
}
