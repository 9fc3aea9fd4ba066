/*
 *    Copyright 2026 The Mercurio Authors
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package packet

import (
	"bytes"
	"io"

	"github.com/frenzox/mercurio/internal/binary"
	"github.com/frenzox/mercurio/internal/code"
	"github.com/frenzox/mercurio/internal/xerror"
)

// RetainHandling controls whether a SUBSCRIBE triggers retained-message
// delivery (v5 only; v3 always behaves as SendRetained).
type RetainHandling byte

const (
	SendRetained                 RetainHandling = 0
	SendRetainedIfNewSubscription RetainHandling = 1
	DoNotSendRetained            RetainHandling = 2
)

// SubscriptionOptions is the per-filter options byte of a v5 SUBSCRIBE,
// degenerating to just MaxQoS for v3.
type SubscriptionOptions struct {
	MaxQoS          QoS
	NoLocal         bool
	RetainAsPublished bool
	RetainHandling  RetainHandling
}

// Subscription is one filter entry of a SUBSCRIBE packet.
type Subscription struct {
	Filter  string
	Options SubscriptionOptions
}

// Subscribe represents the SUBSCRIBE packet.
type Subscribe struct {
	Version       Version
	PacketID      uint16
	Properties    *Properties
	Subscriptions []Subscription
}

func DecodeSubscribe(fh *FixedHeader, v Version, r io.Reader) (*Subscribe, error) {
	if fh.Flags != 0x02 { // MQTT-3.8.1-1
		return nil, xerror.ErrMalformed
	}
	body := make([]byte, fh.RemainLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	buf := bytes.NewReader(body)

	pid, err := binary.ReadUint16(buf)
	if err != nil {
		return nil, xerror.ErrMalformed
	}
	if pid == 0 {
		return nil, xerror.ErrMalformed
	}
	s := &Subscribe{Version: v, PacketID: pid}

	if v.IsV5() {
		props, err := DecodeProperties(buf)
		if err != nil {
			return nil, err
		}
		s.Properties = props
	}

	for buf.Len() > 0 {
		filter, err := binary.UTF8String(buf)
		if err != nil {
			return nil, err
		}
		if filter == "" {
			return nil, xerror.ErrMalformed
		}
		optByte, err := buf.ReadByte()
		if err != nil {
			return nil, xerror.ErrMalformed
		}
		opts := SubscriptionOptions{MaxQoS: QoS(optByte & 0x03)}
		if !opts.MaxQoS.Valid() {
			return nil, xerror.ErrMalformed
		}
		if v.IsV5() {
			opts.NoLocal = optByte&0x04 != 0
			opts.RetainAsPublished = optByte&0x08 != 0
			opts.RetainHandling = RetainHandling((optByte >> 4) & 0x03)
			if opts.RetainHandling > 2 {
				return nil, xerror.ErrMalformed
			}
		}
		s.Subscriptions = append(s.Subscriptions, Subscription{Filter: filter, Options: opts})
	}
	if len(s.Subscriptions) == 0 { // MQTT-3.8.3-3
		return nil, xerror.ErrMalformed
	}
	return s, nil
}

func (s *Subscribe) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	_ = binary.WriteUint16(buf, s.PacketID)
	if s.Version.IsV5() {
		if err := EncodeProperties(buf, s.Properties); err != nil {
			return err
		}
	}
	for _, sub := range s.Subscriptions {
		if err := binary.WriteUTF8String(buf, sub.Filter); err != nil {
			return err
		}
		b := byte(sub.Options.MaxQoS)
		if s.Version.IsV5() {
			if sub.Options.NoLocal {
				b |= 0x04
			}
			if sub.Options.RetainAsPublished {
				b |= 0x08
			}
			b |= byte(sub.Options.RetainHandling) << 4
		}
		buf.WriteByte(b)
	}
	fh := &FixedHeader{Type: SUBSCRIBE, Flags: 0x02, RemainLength: buf.Len()}
	if err := fh.Encode(w); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Suback represents the SUBACK packet, one reason code per filter in the
// SUBSCRIBE it answers, in the same order.
type Suback struct {
	Version    Version
	PacketID   uint16
	Properties *Properties
	Codes      []code.Code
}

func (a *Suback) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	_ = binary.WriteUint16(buf, a.PacketID)
	if a.Version.IsV5() {
		if err := EncodeProperties(buf, a.Properties); err != nil {
			return err
		}
	}
	for _, c := range a.Codes {
		if !a.Version.IsV5() && c.IsError() {
			c = code.UnspecifiedError // v3 SUBACK has the single failure code 0x80
		}
		buf.WriteByte(byte(c))
	}
	fh := &FixedHeader{Type: SUBACK, RemainLength: buf.Len()}
	if err := fh.Encode(w); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func DecodeSuback(fh *FixedHeader, v Version, r io.Reader) (*Suback, error) {
	body := make([]byte, fh.RemainLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	buf := bytes.NewReader(body)
	pid, err := binary.ReadUint16(buf)
	if err != nil {
		return nil, xerror.ErrMalformed
	}
	a := &Suback{Version: v, PacketID: pid}
	if v.IsV5() {
		props, err := DecodeProperties(buf)
		if err != nil {
			return nil, err
		}
		a.Properties = props
	}
	for buf.Len() > 0 {
		b, _ := buf.ReadByte()
		a.Codes = append(a.Codes, code.Code(b))
	}
	return a, nil
}
