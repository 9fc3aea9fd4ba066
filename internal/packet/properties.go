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
	"github.com/frenzox/mercurio/internal/xerror"
)

// Property identifiers, MQTT v5.0 section 2.2.2.2.
const (
	PropPayloadFormatIndicator          byte = 0x01
	PropMessageExpiryInterval           byte = 0x02
	PropContentType                     byte = 0x03
	PropResponseTopic                   byte = 0x08
	PropCorrelationData                 byte = 0x09
	PropSubscriptionIdentifier          byte = 0x0B
	PropSessionExpiryInterval           byte = 0x11
	PropAssignedClientIdentifier        byte = 0x12
	PropServerKeepAlive                 byte = 0x13
	PropAuthenticationMethod            byte = 0x15
	PropAuthenticationData              byte = 0x16
	PropRequestProblemInformation       byte = 0x17
	PropWillDelayInterval                byte = 0x18
	PropRequestResponseInformation      byte = 0x19
	PropResponseInformation             byte = 0x1A
	PropServerReference                 byte = 0x1C
	PropReasonString                    byte = 0x1F
	PropReceiveMaximum                  byte = 0x21
	PropTopicAliasMaximum               byte = 0x22
	PropTopicAlias                       byte = 0x23
	PropMaximumQoS                       byte = 0x24
	PropRetainAvailable                  byte = 0x25
	PropUserProperty                     byte = 0x26
	PropMaximumPacketSize                byte = 0x27
	PropWildcardSubscriptionAvailable    byte = 0x28
	PropSubscriptionIdentifierAvailable  byte = 0x29
	PropSharedSubscriptionAvailable      byte = 0x2A
)

// UserProperty is a repeatable free-form key/value pair (v5 only).
type UserProperty struct {
	Key   string
	Value string
}

// Properties holds the v5 property set that can appear on any packet
// type; not every field is legal on every packet, the per-packet codec
// enforces that. Zero value means "absent" for scalars that have no
// natural zero; where 0 is a legitimate value the field is a pointer and
// nil means absent.
type Properties struct {
	PayloadFormatIndicator   *byte
	MessageExpiryInterval    *uint32
	ContentType              string
	ResponseTopic            string
	CorrelationData          []byte
	SubscriptionIdentifier   []int // several on a PUBLISH, one per matching subscription
	SessionExpiryInterval    *uint32
	AssignedClientIdentifier string
	ServerKeepAlive          *uint16
	AuthenticationMethod     string
	AuthenticationData       []byte
	RequestProblemInfo       *byte
	WillDelayInterval        *uint32
	RequestResponseInfo      *byte
	ResponseInformation      string
	ServerReference          string
	ReasonString             string
	ReceiveMaximum           *uint16
	TopicAliasMaximum        *uint16
	TopicAlias               *uint16
	MaximumQoS               *byte
	RetainAvailable          *bool
	UserProperties           []UserProperty
	MaximumPacketSize        *uint32
	WildcardSubAvailable     *bool
	SubIDAvailable           *bool
	SharedSubAvailable       *bool
}

func u32p(v uint32) *uint32 { return &v }
func u16p(v uint16) *uint16 { return &v }
func bytep(v byte) *byte    { return &v }
func boolp(v bool) *bool    { return &v }

// EncodeProperties writes the length-prefixed properties section to w.
func EncodeProperties(w io.Writer, p *Properties) error {
	buf := &bytes.Buffer{}
	if p != nil {
		if err := p.encodeInto(buf); err != nil {
			return err
		}
	}
	if err := binary.WriteVarInt(w, buf.Len()); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (p *Properties) encodeInto(buf *bytes.Buffer) error {
	if p.PayloadFormatIndicator != nil {
		buf.WriteByte(PropPayloadFormatIndicator)
		buf.WriteByte(*p.PayloadFormatIndicator)
	}
	if p.MessageExpiryInterval != nil {
		buf.WriteByte(PropMessageExpiryInterval)
		_ = binary.WriteUint32(buf, *p.MessageExpiryInterval)
	}
	if p.ContentType != "" {
		buf.WriteByte(PropContentType)
		if err := binary.WriteUTF8String(buf, p.ContentType); err != nil {
			return err
		}
	}
	if p.ResponseTopic != "" {
		buf.WriteByte(PropResponseTopic)
		if err := binary.WriteUTF8String(buf, p.ResponseTopic); err != nil {
			return err
		}
	}
	if p.CorrelationData != nil {
		buf.WriteByte(PropCorrelationData)
		_ = binary.WriteBinary(buf, p.CorrelationData)
	}
	for _, id := range p.SubscriptionIdentifier {
		buf.WriteByte(PropSubscriptionIdentifier)
		_ = binary.WriteVarInt(buf, id)
	}
	if p.SessionExpiryInterval != nil {
		buf.WriteByte(PropSessionExpiryInterval)
		_ = binary.WriteUint32(buf, *p.SessionExpiryInterval)
	}
	if p.AssignedClientIdentifier != "" {
		buf.WriteByte(PropAssignedClientIdentifier)
		if err := binary.WriteUTF8String(buf, p.AssignedClientIdentifier); err != nil {
			return err
		}
	}
	if p.ServerKeepAlive != nil {
		buf.WriteByte(PropServerKeepAlive)
		_ = binary.WriteUint16(buf, *p.ServerKeepAlive)
	}
	if p.AuthenticationMethod != "" {
		buf.WriteByte(PropAuthenticationMethod)
		if err := binary.WriteUTF8String(buf, p.AuthenticationMethod); err != nil {
			return err
		}
	}
	if p.AuthenticationData != nil {
		buf.WriteByte(PropAuthenticationData)
		_ = binary.WriteBinary(buf, p.AuthenticationData)
	}
	if p.RequestProblemInfo != nil {
		buf.WriteByte(PropRequestProblemInformation)
		buf.WriteByte(*p.RequestProblemInfo)
	}
	if p.WillDelayInterval != nil {
		buf.WriteByte(PropWillDelayInterval)
		_ = binary.WriteUint32(buf, *p.WillDelayInterval)
	}
	if p.RequestResponseInfo != nil {
		buf.WriteByte(PropRequestResponseInformation)
		buf.WriteByte(*p.RequestResponseInfo)
	}
	if p.ResponseInformation != "" {
		buf.WriteByte(PropResponseInformation)
		if err := binary.WriteUTF8String(buf, p.ResponseInformation); err != nil {
			return err
		}
	}
	if p.ServerReference != "" {
		buf.WriteByte(PropServerReference)
		if err := binary.WriteUTF8String(buf, p.ServerReference); err != nil {
			return err
		}
	}
	if p.ReasonString != "" {
		buf.WriteByte(PropReasonString)
		if err := binary.WriteUTF8String(buf, p.ReasonString); err != nil {
			return err
		}
	}
	if p.ReceiveMaximum != nil {
		buf.WriteByte(PropReceiveMaximum)
		_ = binary.WriteUint16(buf, *p.ReceiveMaximum)
	}
	if p.TopicAliasMaximum != nil {
		buf.WriteByte(PropTopicAliasMaximum)
		_ = binary.WriteUint16(buf, *p.TopicAliasMaximum)
	}
	if p.TopicAlias != nil {
		buf.WriteByte(PropTopicAlias)
		_ = binary.WriteUint16(buf, *p.TopicAlias)
	}
	if p.MaximumQoS != nil {
		buf.WriteByte(PropMaximumQoS)
		buf.WriteByte(*p.MaximumQoS)
	}
	if p.RetainAvailable != nil {
		buf.WriteByte(PropRetainAvailable)
		_ = binary.WriteBool(buf, *p.RetainAvailable)
	}
	for _, up := range p.UserProperties {
		buf.WriteByte(PropUserProperty)
		if err := binary.WriteUTF8String(buf, up.Key); err != nil {
			return err
		}
		if err := binary.WriteUTF8String(buf, up.Value); err != nil {
			return err
		}
	}
	if p.MaximumPacketSize != nil {
		buf.WriteByte(PropMaximumPacketSize)
		_ = binary.WriteUint32(buf, *p.MaximumPacketSize)
	}
	if p.WildcardSubAvailable != nil {
		buf.WriteByte(PropWildcardSubscriptionAvailable)
		_ = binary.WriteBool(buf, *p.WildcardSubAvailable)
	}
	if p.SubIDAvailable != nil {
		buf.WriteByte(PropSubscriptionIdentifierAvailable)
		_ = binary.WriteBool(buf, *p.SubIDAvailable)
	}
	if p.SharedSubAvailable != nil {
		buf.WriteByte(PropSharedSubscriptionAvailable)
		_ = binary.WriteBool(buf, *p.SharedSubAvailable)
	}
	return nil
}

// hasID reports if id was already decoded, used to reject duplicate
// identifiers except User Property and Subscription Identifier.
func hasID(seen map[byte]bool, id byte) error {
	if id == PropUserProperty || id == PropSubscriptionIdentifier {
		return nil
	}
	if seen[id] {
		return xerror.Protocol(xerror.ErrMalformed.Code, "duplicate property identifier", nil)
	}
	seen[id] = true
	return nil
}

// DecodeProperties reads a length-prefixed properties section from r.
func DecodeProperties(r io.Reader) (*Properties, error) {
	length, err := binary.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, err
	}
	buf := bytes.NewReader(raw)
	p := &Properties{}
	seen := make(map[byte]bool)

	for buf.Len() > 0 {
		id, err := buf.ReadByte()
		if err != nil {
			return nil, xerror.ErrMalformed
		}
		if err := hasID(seen, id); err != nil {
			return nil, err
		}
		switch id {
		case PropPayloadFormatIndicator:
			b, err := buf.ReadByte()
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			p.PayloadFormatIndicator = bytep(b)
		case PropMessageExpiryInterval:
			v, err := binary.ReadUint32(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			p.MessageExpiryInterval = u32p(v)
		case PropContentType:
			s, err := binary.UTF8String(buf)
			if err != nil {
				return nil, err
			}
			p.ContentType = s
		case PropResponseTopic:
			s, err := binary.UTF8String(buf)
			if err != nil {
				return nil, err
			}
			p.ResponseTopic = s
		case PropCorrelationData:
			b, err := binary.ReadBinary(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			p.CorrelationData = b
		case PropSubscriptionIdentifier:
			v, err := binary.ReadVarInt(buf)
			if err != nil {
				return nil, err
			}
			if v == 0 {
				return nil, xerror.Protocol(xerror.ErrMalformed.Code, "subscription identifier must not be 0", nil)
			}
			p.SubscriptionIdentifier = append(p.SubscriptionIdentifier, v)
		case PropSessionExpiryInterval:
			v, err := binary.ReadUint32(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			p.SessionExpiryInterval = u32p(v)
		case PropAssignedClientIdentifier:
			s, err := binary.UTF8String(buf)
			if err != nil {
				return nil, err
			}
			p.AssignedClientIdentifier = s
		case PropServerKeepAlive:
			v, err := binary.ReadUint16(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			p.ServerKeepAlive = u16p(v)
		case PropAuthenticationMethod:
			s, err := binary.UTF8String(buf)
			if err != nil {
				return nil, err
			}
			p.AuthenticationMethod = s
		case PropAuthenticationData:
			b, err := binary.ReadBinary(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			p.AuthenticationData = b
		case PropRequestProblemInformation:
			b, err := buf.ReadByte()
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			p.RequestProblemInfo = bytep(b)
		case PropWillDelayInterval:
			v, err := binary.ReadUint32(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			p.WillDelayInterval = u32p(v)
		case PropRequestResponseInformation:
			b, err := buf.ReadByte()
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			p.RequestResponseInfo = bytep(b)
		case PropResponseInformation:
			s, err := binary.UTF8String(buf)
			if err != nil {
				return nil, err
			}
			p.ResponseInformation = s
		case PropServerReference:
			s, err := binary.UTF8String(buf)
			if err != nil {
				return nil, err
			}
			p.ServerReference = s
		case PropReasonString:
			s, err := binary.UTF8String(buf)
			if err != nil {
				return nil, err
			}
			p.ReasonString = s
		case PropReceiveMaximum:
			v, err := binary.ReadUint16(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			if v == 0 {
				return nil, xerror.ErrMalformed
			}
			p.ReceiveMaximum = u16p(v)
		case PropTopicAliasMaximum:
			v, err := binary.ReadUint16(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			p.TopicAliasMaximum = u16p(v)
		case PropTopicAlias:
			v, err := binary.ReadUint16(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			p.TopicAlias = u16p(v)
		case PropMaximumQoS:
			b, err := buf.ReadByte()
			if err != nil || b > 1 {
				return nil, xerror.ErrMalformed
			}
			p.MaximumQoS = bytep(b)
		case PropRetainAvailable:
			v, err := binary.ReadBool(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			p.RetainAvailable = boolp(v)
		case PropUserProperty:
			k, err := binary.UTF8String(buf)
			if err != nil {
				return nil, err
			}
			v, err := binary.UTF8String(buf)
			if err != nil {
				return nil, err
			}
			p.UserProperties = append(p.UserProperties, UserProperty{Key: k, Value: v})
		case PropMaximumPacketSize:
			v, err := binary.ReadUint32(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			p.MaximumPacketSize = u32p(v)
		case PropWildcardSubscriptionAvailable:
			v, err := binary.ReadBool(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			p.WildcardSubAvailable = boolp(v)
		case PropSubscriptionIdentifierAvailable:
			v, err := binary.ReadBool(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			p.SubIDAvailable = boolp(v)
		case PropSharedSubscriptionAvailable:
			v, err := binary.ReadBool(buf)
			if err != nil {
				return nil, xerror.ErrMalformed
			}
			p.SharedSubAvailable = boolp(v)
		default:
			return nil, xerror.Protocol(xerror.ErrMalformed.Code, "unknown property identifier", nil)
		}
	}
	return p, nil
}
