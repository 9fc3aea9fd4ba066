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
	"fmt"
	"io"

	"github.com/frenzox/mercurio/internal/binary"
	"github.com/frenzox/mercurio/internal/code"
	"github.com/frenzox/mercurio/internal/xerror"
)

// ConnectFlags is the single-byte flags field of the CONNECT variable
// header (MQTT spec 3.1.2.3).
type ConnectFlags struct {
	// CleanStart: bit 1. v3.1.1 calls this Clean Session; v5 renames it
	// Clean Start but keeps identical wire semantics for this field.
	CleanStart   bool
	WillFlag     bool
	WillQoS      QoS
	WillRetain   bool
	PasswordFlag bool
	UsernameFlag bool
}

// Connect represents the CONNECT packet.
type Connect struct {
	FixedHeader *FixedHeader
	Version     Version

	ProtocolName  string
	ProtocolLevel byte
	ConnectFlags
	KeepAlive uint16

	// Properties is non-nil only for v5 connections.
	Properties  *Properties
	WillProps   *Properties
	WillTopic   string
	WillMessage []byte

	ClientId string
	Username string
	Password []byte
}

const (
	connectFlagUsername   = 1 << 7
	connectFlagPassword   = 1 << 6
	connectFlagWillRetain = 1 << 5
	connectFlagWillQoS    = 0x03 << 3
	connectFlagWillFlag   = 1 << 2
	connectFlagCleanStart = 1 << 1
	connectFlagReserved   = 1 << 0
)

// NewConnect decodes a CONNECT packet body. The fixed header flags are
// reserved and MUST be zero (MQTT-2.2.2-2).
func NewConnect(fh *FixedHeader, r io.Reader) (*Connect, error) {
	if fh.Flags != FixedHeaderFlagReserved {
		return nil, xerror.ErrMalformed
	}
	body := make([]byte, fh.RemainLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	c := &Connect{FixedHeader: fh}
	if err := c.decode(bytes.NewReader(body)); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connect) decode(buf *bytes.Reader) error {
	name, err := binary.UTF8String(buf)
	if err != nil {
		return err
	}
	c.ProtocolName = name

	level, err := buf.ReadByte()
	if err != nil {
		return xerror.ErrMalformed
	}
	c.ProtocolLevel = level
	c.Version = Version(level)

	if !protocolNameValid(name, c.Version) {
		return xerror.Protocol(code.UnsupportedProtocolVersion, "unexpected protocol name for level", nil)
	}
	if c.Version != Version31 && c.Version != Version311 && c.Version != Version5 {
		return xerror.Protocol(code.UnsupportedProtocolVersion, "unsupported protocol level", nil)
	}

	flags, err := buf.ReadByte()
	if err != nil {
		return xerror.ErrMalformed
	}
	if flags&connectFlagReserved != 0 { // MQTT-3.1.2-3
		return xerror.ErrMalformed
	}
	c.CleanStart = flags&connectFlagCleanStart != 0
	c.WillFlag = flags&connectFlagWillFlag != 0
	c.WillQoS = QoS((flags & connectFlagWillQoS) >> 3)
	c.WillRetain = flags&connectFlagWillRetain != 0
	c.PasswordFlag = flags&connectFlagPassword != 0
	c.UsernameFlag = flags&connectFlagUsername != 0

	if !c.WillFlag && (c.WillQoS != QoS0 || c.WillRetain) { // MQTT-3.1.2-11/-15
		return xerror.ErrMalformed
	}
	if !c.WillQoS.Valid() {
		return xerror.ErrMalformed
	}

	c.KeepAlive, err = binary.ReadUint16(buf)
	if err != nil {
		return xerror.ErrMalformed
	}

	if c.Version.IsV5() {
		props, err := DecodeProperties(buf)
		if err != nil {
			return err
		}
		c.Properties = props
	}
	return c.decodePayload(buf)
}

func (c *Connect) decodePayload(buf *bytes.Reader) error {
	clientId, err := binary.UTF8String(buf)
	if err != nil {
		return err
	}
	c.ClientId = clientId

	if c.Version.IsV3() && len(clientId) == 0 && !c.CleanStart { // MQTT-3.1.3-7/-8
		return xerror.Protocol(code.ClientIdentifierNotValid, "empty client id requires clean session", nil)
	}

	if c.WillFlag {
		if c.Version.IsV5() {
			props, err := DecodeProperties(buf)
			if err != nil {
				return err
			}
			c.WillProps = props
		}
		topic, err := binary.UTF8String(buf)
		if err != nil {
			return err
		}
		c.WillTopic = topic
		msg, err := binary.ReadBinary(buf)
		if err != nil {
			return xerror.ErrMalformed
		}
		c.WillMessage = msg
	}

	if c.UsernameFlag {
		u, err := binary.UTF8String(buf)
		if err != nil {
			return err
		}
		c.Username = u
	}
	if c.PasswordFlag {
		pw, err := binary.ReadBinary(buf)
		if err != nil {
			return xerror.ErrMalformed
		}
		c.Password = pw
	}
	return nil
}

// ValidV311ClientID reports whether id satisfies the strict v3.1.1
// charset/length rule ([0-9A-Za-z], 1..23 chars, MQTT-3.1.3-5). Mercurio's
// default configuration does not enforce this on the decode path (it
// accepts any UTF-8 client id, common broker behavior), but exposes the
// check for auth/validation policies that want to opt into strict mode.
func ValidV311ClientID(id string) bool {
	if len(id) < 1 || len(id) > 23 {
		return false
	}
	for _, r := range id {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
			return false
		}
	}
	return true
}

func (c *Connect) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	if err := binary.WriteUTF8String(buf, c.ProtocolName); err != nil {
		return err
	}
	buf.WriteByte(c.ProtocolLevel)

	var flags byte
	if c.UsernameFlag {
		flags |= connectFlagUsername
	}
	if c.PasswordFlag {
		flags |= connectFlagPassword
	}
	if c.WillRetain {
		flags |= connectFlagWillRetain
	}
	flags |= byte(c.WillQoS) << 3
	if c.WillFlag {
		flags |= connectFlagWillFlag
	}
	if c.CleanStart {
		flags |= connectFlagCleanStart
	}
	buf.WriteByte(flags)
	_ = binary.WriteUint16(buf, c.KeepAlive)

	if c.Version.IsV5() {
		if err := EncodeProperties(buf, c.Properties); err != nil {
			return err
		}
	}

	if err := binary.WriteUTF8String(buf, c.ClientId); err != nil {
		return err
	}
	if c.WillFlag {
		if c.Version.IsV5() {
			if err := EncodeProperties(buf, c.WillProps); err != nil {
				return err
			}
		}
		if err := binary.WriteUTF8String(buf, c.WillTopic); err != nil {
			return err
		}
		if err := binary.WriteBinary(buf, c.WillMessage); err != nil {
			return err
		}
	}
	if c.UsernameFlag {
		if err := binary.WriteUTF8String(buf, c.Username); err != nil {
			return err
		}
	}
	if c.PasswordFlag {
		if err := binary.WriteBinary(buf, c.Password); err != nil {
			return err
		}
	}

	fh := &FixedHeader{Type: CONNECT, Flags: FixedHeaderFlagReserved, RemainLength: buf.Len()}
	if err := fh.Encode(w); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (c *Connect) String() string {
	return fmt.Sprintf("CONNECT{version=%s clientId=%q cleanStart=%v keepAlive=%d will=%v}",
		c.Version, c.ClientId, c.CleanStart, c.KeepAlive, c.WillFlag)
}

// NewConnack builds the CONNACK that answers this CONNECT.
func (c *Connect) NewConnack(cd code.Code, sessionPresent bool) *Connack {
	ack := &Connack{Version: c.Version, Code: cd}
	if cd == code.Success {
		ack.SessionPresent = sessionPresent
	}
	return ack
}
