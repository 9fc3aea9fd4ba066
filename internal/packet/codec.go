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

	"github.com/frenzox/mercurio/internal/xerror"
)

// Encoder is implemented by every decoded packet type.
type Encoder interface {
	Encode(w io.Writer) error
}

// Decoder is bound to a Version once CONNECT has been parsed; before
// that it only knows how to read the fixed header and a CONNECT body
// (spec §4.1: "a decoder is bound to a protocol version after CONNECT is
// parsed").
type Decoder struct {
	Version Version
	bound   bool
}

// NewDecoder returns a decoder that has not yet seen CONNECT.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Bind locks the decoder to v once the CONNECT packet has been accepted.
func (d *Decoder) Bind(v Version) {
	d.Version = v
	d.bound = true
}

// ReadPacket reads exactly one control packet from r. The fixed header
// read can return io.EOF/io.ErrUnexpectedEOF on a half-closed connection,
// which callers should treat as a clean disconnect rather than a
// protocol violation.
func (d *Decoder) ReadPacket(r io.Reader) (Type, Encoder, error) {
	fh, err := DecodeFixedHeader(r)
	if err != nil {
		return 0, nil, err
	}

	if !d.bound && fh.Type != CONNECT {
		return fh.Type, nil, xerror.Protocol(xerror.ErrMalformed.Code, "first packet must be CONNECT", nil)
	}

	switch fh.Type {
	case CONNECT:
		p, err := NewConnect(fh, r)
		return CONNECT, p, err
	case CONNACK:
		p, err := DecodeConnack(fh, d.Version, r)
		return CONNACK, p, err
	case PUBLISH:
		p, err := DecodePublish(fh, d.Version, r)
		return PUBLISH, p, err
	case PUBACK, PUBREC, PUBREL, PUBCOMP:
		p, err := DecodeAck(fh, d.Version, r)
		return fh.Type, p, err
	case SUBSCRIBE:
		p, err := DecodeSubscribe(fh, d.Version, r)
		return SUBSCRIBE, p, err
	case SUBACK:
		p, err := DecodeSuback(fh, d.Version, r)
		return SUBACK, p, err
	case UNSUBSCRIBE:
		p, err := DecodeUnsubscribe(fh, d.Version, r)
		return UNSUBSCRIBE, p, err
	case UNSUBACK:
		p, err := DecodeUnsuback(fh, d.Version, r)
		return UNSUBACK, p, err
	case PINGREQ:
		if fh.RemainLength != 0 {
			return 0, nil, xerror.ErrMalformed
		}
		return PINGREQ, PingReq{}, nil
	case PINGRESP:
		if fh.RemainLength != 0 {
			return 0, nil, xerror.ErrMalformed
		}
		return PINGRESP, PingResp{}, nil
	case DISCONNECT:
		p, err := DecodeDisconnect(fh, d.Version, r)
		return DISCONNECT, p, err
	case AUTH:
		if !d.Version.IsV5() {
			return 0, nil, xerror.ErrMalformed
		}
		p, err := DecodeAuth(fh, r)
		return AUTH, p, err
	default:
		return fh.Type, nil, xerror.Protocol(xerror.ErrMalformed.Code, "unknown packet type", nil)
	}
}
