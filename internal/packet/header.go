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
	"io"

	"github.com/frenzox/mercurio/internal/binary"
	"github.com/frenzox/mercurio/internal/xerror"
)

// FixedHeader is the 2-to-5 byte header present on every MQTT control
// packet: packet type + flags, followed by the Remaining Length VBI.
type FixedHeader struct {
	Type         Type
	Flags        byte
	RemainLength int
}

// DecodeFixedHeader reads and decodes a fixed header from r. Read errors
// from r (io.EOF and the like) are returned unchanged, so callers can
// tell a closed stream from a malformed header.
func DecodeFixedHeader(r io.Reader) (*FixedHeader, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	h := &FixedHeader{
		Type:  Type(buf[0] >> 4),
		Flags: buf[0] & 0x0F,
	}
	n, err := binary.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	h.RemainLength = n
	return h, nil
}

func (h *FixedHeader) Encode(w io.Writer) error {
	first := byte(h.Type)<<4 | (h.Flags & 0x0F)
	if _, err := w.Write([]byte{first}); err != nil {
		return err
	}
	return binary.WriteVarInt(w, h.RemainLength)
}

// PublishFlags decodes the PUBLISH fixed header flags byte into
// dup/qos/retain. It returns a protocol error with the MalformedPacket
// code if the QoS bits encode the reserved value 3.
func PublishFlags(flags byte) (dup bool, qos QoS, retain bool, err error) {
	qos = QoS((flags >> 1) & 0x03)
	if !qos.Valid() {
		return false, 0, false, xerror.Protocol(xerror.ErrMalformed.Code, "invalid PUBLISH QoS bits", nil)
	}
	dup = flags&0x08 != 0
	retain = flags&0x01 != 0
	return dup, qos, retain, nil
}

func EncodePublishFlags(dup bool, qos QoS, retain bool) byte {
	var f byte
	if dup {
		f |= 0x08
	}
	f |= byte(qos) << 1
	if retain {
		f |= 0x01
	}
	return f
}
