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

// Ack is the common shape of PUBACK, PUBREC, PUBCOMP and (with a fixed
// flags nibble of 0x02) PUBREL: a packet identifier plus, in v5, an
// optional reason code and properties. v3.1.1 has no reason code or
// properties; those fields are simply omitted from the wire if the
// reason code is Success and there are no properties (MQTT-3.4.2-1 et al,
// "short form" allowed when nothing more needs to be said).
type Ack struct {
	Type       Type
	Version    Version
	PacketID   uint16
	Code       code.Code
	Properties *Properties
}

func ackFlags(t Type) byte {
	if t == PUBREL {
		return 0x02
	}
	return 0x00
}

func (a *Ack) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	_ = binary.WriteUint16(buf, a.PacketID)

	if a.Version.IsV5() && (a.Code != code.Success || a.Properties != nil) {
		buf.WriteByte(byte(a.Code))
		if err := EncodeProperties(buf, a.Properties); err != nil {
			return err
		}
	}

	fh := &FixedHeader{Type: a.Type, Flags: ackFlags(a.Type), RemainLength: buf.Len()}
	if err := fh.Encode(w); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func DecodeAck(fh *FixedHeader, v Version, r io.Reader) (*Ack, error) {
	if fh.Type == PUBREL && fh.Flags != 0x02 {
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
	a := &Ack{Type: fh.Type, Version: v, PacketID: pid, Code: code.Success}

	if v.IsV5() && buf.Len() > 0 {
		rc, err := buf.ReadByte()
		if err != nil {
			return nil, xerror.ErrMalformed
		}
		a.Code = code.Code(rc)
		if buf.Len() > 0 {
			props, err := DecodeProperties(buf)
			if err != nil {
				return nil, err
			}
			a.Properties = props
		}
	}
	return a, nil
}

func NewPuback(v Version, pid uint16, cd code.Code) *Ack {
	return &Ack{Type: PUBACK, Version: v, PacketID: pid, Code: cd}
}

func NewPubrec(v Version, pid uint16, cd code.Code) *Ack {
	return &Ack{Type: PUBREC, Version: v, PacketID: pid, Code: cd}
}

func NewPubrel(v Version, pid uint16) *Ack {
	return &Ack{Type: PUBREL, Version: v, PacketID: pid, Code: code.Success}
}

func NewPubcomp(v Version, pid uint16, cd code.Code) *Ack {
	return &Ack{Type: PUBCOMP, Version: v, PacketID: pid, Code: cd}
}
