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

// Package xerror classifies the error kinds the broker core can raise
// (Protocol, Resource, Auth, IO, Fatal) and carries the reason code each
// maps to, so the connection layer never has to re-derive it.
package xerror

import (
	"errors"
	"fmt"

	"github.com/frenzox/mercurio/internal/code"
)

// Kind is one of the five error classes described by the broker's error
// handling design.
type Kind int

const (
	// KindProtocol covers malformed packets, disallowed flags, bad UTF-8,
	// invalid reserved bits, unsupported protocol levels, identifier-in-use.
	KindProtocol Kind = iota
	// KindResource covers accept-cap reached, packet too large, queue overflow.
	KindResource
	// KindAuth covers bad credentials or not-authorized-to-publish/subscribe.
	KindAuth
	// KindIO covers read/write errors and timeouts.
	KindIO
	// KindFatal covers internal invariant violations.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindResource:
		return "resource"
	case KindAuth:
		return "auth"
	case KindIO:
		return "io"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the broker core's typed error. It always carries the reason
// code the connection layer should report to the peer (via CONNACK,
// SUBACK, or a v5 DISCONNECT) and whether the offending session should be
// destroyed.
type Error struct {
	Kind        Kind
	Code        code.Code
	Msg         string
	DestroySess bool
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.cause }

func newErr(k Kind, c code.Code, destroy bool, msg string, cause error) *Error {
	return &Error{Kind: k, Code: c, Msg: msg, DestroySess: destroy, cause: cause}
}

// Protocol builds a KindProtocol error, always with DestroySess set.
func Protocol(c code.Code, msg string, cause error) *Error {
	return newErr(KindProtocol, c, true, msg, cause)
}

// Resource builds a KindResource error (accept cap, packet too large, queue overflow).
func Resource(c code.Code, msg string, cause error) *Error {
	return newErr(KindResource, c, false, msg, cause)
}

// Auth builds a KindAuth error.
func Auth(c code.Code, msg string) *Error {
	return newErr(KindAuth, c, true, msg, nil)
}

// IO builds a KindIO error wrapping a read/write/timeout failure.
func IO(msg string, cause error) *Error {
	return newErr(KindIO, code.UnspecifiedError, false, msg, cause)
}

// Fatal builds a KindFatal error for invariant violations.
func Fatal(msg string, cause error) *Error {
	return newErr(KindFatal, code.UnspecifiedError, false, msg, cause)
}

// As is a small convenience wrapper over errors.As for the common case of
// pulling an *Error out of a wrapped chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

var (
	// ErrMalformed is returned by codec routines on any structurally
	// invalid packet (bad UTF-8, bad VBI, wrong reserved bits, ...).
	ErrMalformed = Protocol(code.MalformedPacket, "malformed packet", nil)
	// ErrIncomplete signals the decoder needs more bytes; it is never
	// surfaced to the connection as a protocol violation.
	ErrIncomplete = errors.New("incomplete packet")
)
