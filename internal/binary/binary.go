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

// Package binary implements the low-level read/write primitives the MQTT
// wire format is built from: booleans, 16/32-bit big-endian integers,
// length-prefixed strings and binary data, and the variable byte integer
// used for Remaining Length and v5 property lengths.
package binary

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/frenzox/mercurio/internal/xerror"
)

// MaxVarInt is the largest value representable in a 4-byte Variable Byte
// Integer (MQTT spec 1.5.5).
const MaxVarInt = 268435455

func ReadBool(r io.Reader) (bool, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return false, err
	}
	return buf[0] != 0, nil
}

func WriteBool(w io.Writer, b bool) error {
	var v byte
	if b {
		v = 1
	}
	_, err := w.Write([]byte{v})
	return err
}

func ReadUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func WriteUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteString writes a length-prefixed (2-byte big-endian) byte string.
func WriteString(w io.Writer, s []byte) error {
	if err := WriteUint16(w, uint16(len(s))); err != nil {
		return err
	}
	_, err := w.Write(s)
	return err
}

// ReadString reads a length-prefixed byte string and returns it as a
// string, without UTF-8 validation. Use UTF8String to additionally
// validate MQTT's UTF-8 encoded string rules.
func ReadString(r io.Reader) (string, error) {
	n, err := ReadUint16(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadBinary reads length-prefixed binary data (v5 Binary Data type and
// Correlation Data/Authentication Data properties).
func ReadBinary(r io.Reader) ([]byte, error) {
	n, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func WriteBinary(w io.Writer, b []byte) error {
	return WriteString(w, b)
}

// ValidateUTF8 enforces the MQTT UTF-8 encoded string rules: well-formed
// UTF-8, no embedded NUL (U+0000), no UTF-16 surrogate code points
// (U+D800..U+DFFF).
func ValidateUTF8(s []byte) error {
	if !utf8.Valid(s) {
		return xerror.Protocol(xerror.ErrMalformed.Code, "invalid utf-8 string", nil)
	}
	for _, r := range string(s) {
		if r == 0 {
			return xerror.Protocol(xerror.ErrMalformed.Code, "embedded NUL in string", nil)
		}
		if r >= 0xD800 && r <= 0xDFFF {
			return xerror.Protocol(xerror.ErrMalformed.Code, "UTF-16 surrogate in string", nil)
		}
	}
	return nil
}

// UTF8String reads a length-prefixed string and validates it per MQTT's
// UTF-8 rules.
func UTF8String(r io.Reader) (string, error) {
	s, err := ReadString(r)
	if err != nil {
		return "", err
	}
	if err := ValidateUTF8([]byte(s)); err != nil {
		return "", err
	}
	return s, nil
}

func WriteUTF8String(w io.Writer, s string) error {
	if err := ValidateUTF8([]byte(s)); err != nil {
		return err
	}
	return WriteString(w, []byte(s))
}

// ReadVarInt reads a Variable Byte Integer (MQTT spec 1.5.5), 1-4 bytes.
// It returns a protocol error with the MalformedPacket code if a 5th
// continuation byte is seen or the decoded value exceeds MaxVarInt.
func ReadVarInt(r io.Reader) (int, error) {
	var (
		multiplier = 1
		value      = 0
		buf        [1]byte
	)
	for i := 0; i < 4; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		b := buf[0]
		value += int(b&0x7F) * multiplier
		if b&0x80 == 0 {
			if value > MaxVarInt {
				return 0, xerror.Protocol(xerror.ErrMalformed.Code, "variable byte integer too large", nil)
			}
			return value, nil
		}
		multiplier *= 128
	}
	return 0, xerror.Protocol(xerror.ErrMalformed.Code, "variable byte integer has more than 4 bytes", nil)
}

// AppendVarInt appends the Variable Byte Integer encoding of v to dst.
func AppendVarInt(dst []byte, v int) ([]byte, error) {
	if v < 0 || v > MaxVarInt {
		return nil, fmt.Errorf("value %d out of range for variable byte integer", v)
	}
	for {
		b := byte(v % 128)
		v /= 128
		if v > 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if v == 0 {
			break
		}
	}
	return dst, nil
}

// VarIntSize returns the number of bytes needed to encode v as a
// Variable Byte Integer.
func VarIntSize(v int) int {
	switch {
	case v < 128:
		return 1
	case v < 16384:
		return 2
	case v < 2097152:
		return 3
	default:
		return 4
	}
}

func WriteVarInt(w io.Writer, v int) error {
	buf, err := AppendVarInt(make([]byte, 0, 4), v)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}
