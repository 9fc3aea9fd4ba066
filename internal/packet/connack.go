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

	"github.com/frenzox/mercurio/internal/code"
	"github.com/frenzox/mercurio/internal/xerror"
)

// Connack represents the CONNACK packet.
type Connack struct {
	Version        Version
	SessionPresent bool
	Code           code.Code
	Properties     *Properties
}

func (a *Connack) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	var flags byte
	if a.SessionPresent {
		flags = 0x01
	}
	buf.WriteByte(flags)

	rc := byte(a.Code)
	if a.Version.IsV3() {
		rc = byte(code.ToV3(a.Code))
	}
	buf.WriteByte(rc)

	if a.Version.IsV5() {
		if err := EncodeProperties(buf, a.Properties); err != nil {
			return err
		}
	}

	fh := &FixedHeader{Type: CONNACK, RemainLength: buf.Len()}
	if err := fh.Encode(w); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func DecodeConnack(fh *FixedHeader, v Version, r io.Reader) (*Connack, error) {
	body := make([]byte, fh.RemainLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	buf := bytes.NewReader(body)
	flags, err := buf.ReadByte()
	if err != nil {
		return nil, xerror.ErrMalformed
	}
	rc, err := buf.ReadByte()
	if err != nil {
		return nil, xerror.ErrMalformed
	}
	a := &Connack{Version: v, SessionPresent: flags&0x01 != 0, Code: code.Code(rc)}
	if v.IsV5() {
		props, err := DecodeProperties(buf)
		if err != nil {
			return nil, err
		}
		a.Properties = props
	}
	return a, nil
}
