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

// Publish represents the PUBLISH packet: an application message in
// transit between a publisher and the broker, or the broker and a
// subscriber.
type Publish struct {
	Version Version

	Dup      bool
	QoS      QoS
	Retain   bool
	Topic    string
	PacketID uint16 // present only when QoS > 0

	Properties *Properties
	Payload    []byte
}

func DecodePublish(fh *FixedHeader, v Version, r io.Reader) (*Publish, error) {
	dup, qos, retain, err := PublishFlags(fh.Flags)
	if err != nil {
		return nil, err
	}
	body := make([]byte, fh.RemainLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	buf := bytes.NewReader(body)

	topic, err := binary.UTF8String(buf)
	if err != nil {
		return nil, err
	}
	if topic == "" {
		return nil, xerror.ErrMalformed
	}
	for _, r := range topic {
		if r == '+' || r == '#' {
			return nil, xerror.ErrMalformed // PUBLISH topic name must not contain wildcards
		}
	}

	p := &Publish{Version: v, Dup: dup, QoS: qos, Retain: retain, Topic: topic}

	if qos != QoS0 {
		pid, err := binary.ReadUint16(buf)
		if err != nil {
			return nil, xerror.ErrMalformed
		}
		if pid == 0 {
			return nil, xerror.ErrMalformed
		}
		p.PacketID = pid
	}

	if v.IsV5() {
		props, err := DecodeProperties(buf)
		if err != nil {
			return nil, err
		}
		p.Properties = props
	}

	payload := make([]byte, buf.Len())
	_, _ = io.ReadFull(buf, payload)
	p.Payload = payload
	return p, nil
}

func (p *Publish) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	if err := binary.WriteUTF8String(buf, p.Topic); err != nil {
		return err
	}
	if p.QoS != QoS0 {
		_ = binary.WriteUint16(buf, p.PacketID)
	}
	if p.Version.IsV5() {
		if err := EncodeProperties(buf, p.Properties); err != nil {
			return err
		}
	}
	buf.Write(p.Payload)

	fh := &FixedHeader{
		Type:         PUBLISH,
		Flags:        EncodePublishFlags(p.Dup, p.QoS, p.Retain),
		RemainLength: buf.Len(),
	}
	if err := fh.Encode(w); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Clone returns a deep-enough copy of p suitable for mutating Dup/PacketID
// independently per recipient (the router delivers one shared application
// message to N subscribers, each with its own packet id and DUP state).
func (p *Publish) Clone() *Publish {
	cp := *p
	if p.Properties != nil {
		propsCopy := *p.Properties
		cp.Properties = &propsCopy
	}
	return &cp
}
