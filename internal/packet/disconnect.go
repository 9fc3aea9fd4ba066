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
)

// Disconnect represents the DISCONNECT packet. v3.1.1 has no payload at
// all (it simply means "clean, suppress the will"); v5 carries a reason
// code and properties, and unlike v3, only reason code 0x00 suppresses
// the will: with any other code the will is still published.
type Disconnect struct {
	Version    Version
	Code       code.Code
	Properties *Properties
}

func (d *Disconnect) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	if d.Version.IsV5() && (d.Code != code.NormalDisconnection || d.Properties != nil) {
		buf.WriteByte(byte(d.Code))
		if err := EncodeProperties(buf, d.Properties); err != nil {
			return err
		}
	}
	fh := &FixedHeader{Type: DISCONNECT, RemainLength: buf.Len()}
	if err := fh.Encode(w); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func DecodeDisconnect(fh *FixedHeader, v Version, r io.Reader) (*Disconnect, error) {
	body := make([]byte, fh.RemainLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	d := &Disconnect{Version: v, Code: code.NormalDisconnection}
	if len(body) == 0 {
		return d, nil
	}
	buf := bytes.NewReader(body)
	rc, _ := buf.ReadByte()
	d.Code = code.Code(rc)
	if buf.Len() > 0 {
		props, err := DecodeProperties(buf)
		if err != nil {
			return nil, err
		}
		d.Properties = props
	}
	return d, nil
}

// SuppressesWill reports whether this DISCONNECT should prevent will
// publication, per spec §3 ("NOT when the client sends a normal
// DISCONNECT (v3) or DISCONNECT with reason 0x00 (v5)").
func (d *Disconnect) SuppressesWill() bool {
	if d.Version.IsV3() {
		return true
	}
	return d.Code == code.NormalDisconnection
}

// Auth represents the AUTH packet (v5 only), used for extended (e.g.
// challenge/response) authentication exchanges.
type Auth struct {
	Code       code.Code
	Properties *Properties
}

func (a *Auth) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(a.Code))
	if err := EncodeProperties(buf, a.Properties); err != nil {
		return err
	}
	fh := &FixedHeader{Type: AUTH, RemainLength: buf.Len()}
	if err := fh.Encode(w); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func DecodeAuth(fh *FixedHeader, r io.Reader) (*Auth, error) {
	body := make([]byte, fh.RemainLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	a := &Auth{Code: code.Success}
	if len(body) == 0 {
		return a, nil
	}
	buf := bytes.NewReader(body)
	rc, _ := buf.ReadByte()
	a.Code = code.Code(rc)
	if buf.Len() > 0 {
		props, err := DecodeProperties(buf)
		if err != nil {
			return nil, err
		}
		a.Properties = props
	}
	return a, nil
}
