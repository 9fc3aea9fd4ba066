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

// Unsubscribe represents the UNSUBSCRIBE packet.
type Unsubscribe struct {
	Version    Version
	PacketID   uint16
	Properties *Properties
	Filters    []string
}

func DecodeUnsubscribe(fh *FixedHeader, v Version, r io.Reader) (*Unsubscribe, error) {
	if fh.Flags != 0x02 {
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
	u := &Unsubscribe{Version: v, PacketID: pid}
	if v.IsV5() {
		props, err := DecodeProperties(buf)
		if err != nil {
			return nil, err
		}
		u.Properties = props
	}
	for buf.Len() > 0 {
		f, err := binary.UTF8String(buf)
		if err != nil {
			return nil, err
		}
		if f == "" {
			return nil, xerror.ErrMalformed
		}
		u.Filters = append(u.Filters, f)
	}
	if len(u.Filters) == 0 {
		return nil, xerror.ErrMalformed
	}
	return u, nil
}

func (u *Unsubscribe) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	_ = binary.WriteUint16(buf, u.PacketID)
	if u.Version.IsV5() {
		if err := EncodeProperties(buf, u.Properties); err != nil {
			return err
		}
	}
	for _, f := range u.Filters {
		if err := binary.WriteUTF8String(buf, f); err != nil {
			return err
		}
	}
	fh := &FixedHeader{Type: UNSUBSCRIBE, Flags: 0x02, RemainLength: buf.Len()}
	if err := fh.Encode(w); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Unsuback represents the UNSUBACK packet. v3.1.1 carries no payload at
// all beyond the packet id; v5 carries one reason code per filter.
type Unsuback struct {
	Version    Version
	PacketID   uint16
	Properties *Properties
	Codes      []code.Code // only meaningful for v5
}

func (a *Unsuback) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	_ = binary.WriteUint16(buf, a.PacketID)
	if a.Version.IsV5() {
		if err := EncodeProperties(buf, a.Properties); err != nil {
			return err
		}
		for _, c := range a.Codes {
			buf.WriteByte(byte(c))
		}
	}
	fh := &FixedHeader{Type: UNSUBACK, RemainLength: buf.Len()}
	if err := fh.Encode(w); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func DecodeUnsuback(fh *FixedHeader, v Version, r io.Reader) (*Unsuback, error) {
	body := make([]byte, fh.RemainLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	buf := bytes.NewReader(body)
	pid, err := binary.ReadUint16(buf)
	if err != nil {
		return nil, xerror.ErrMalformed
	}
	a := &Unsuback{Version: v, PacketID: pid}
	if v.IsV5() {
		props, err := DecodeProperties(buf)
		if err != nil {
			return nil, err
		}
		a.Properties = props
		for buf.Len() > 0 {
			b, _ := buf.ReadByte()
			a.Codes = append(a.Codes, code.Code(b))
		}
	}
	return a, nil
}
