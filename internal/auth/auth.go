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

// Package auth implements the CONNECT credential check described by
// spec §1/§7: a pluggable accept/reject predicate that never leaks
// which half of a (username, password) pair was wrong.
package auth

// Credentials is what a CONNECT packet supplies for authentication.
// Either field may be absent (HasUsername/HasPassword false) per MQTT's
// independent username/password-present flags.
type Credentials struct {
	ClientID    string
	Username    string
	HasUsername bool
	Password    []byte
	HasPassword bool
}

// Authenticator decides whether Credentials are accepted. Authenticate
// returns only true/false: callers must not report which of username or
// password was wrong (spec §7 "never leak which credential component
// failed").
type Authenticator interface {
	Authenticate(c Credentials) bool
}

// Disabled accepts every connection, used when config.Auth.Enabled is
// false (the spec's default).
type Disabled struct{}

func (Disabled) Authenticate(Credentials) bool { return true }

// AllowAnonymous accepts connections with no credentials present, and
// otherwise defers to Next. Used when config.Auth.AllowAnonymous is true.
type AllowAnonymous struct {
	Next Authenticator
}

func (a AllowAnonymous) Authenticate(c Credentials) bool {
	if !c.HasUsername && !c.HasPassword {
		return true
	}
	return a.Next.Authenticate(c)
}

// StaticTable is a fixed username->password allow-list, the simplest
// non-trivial Authenticator: every credential pair must match exactly.
type StaticTable struct {
	Users map[string]string
}

func (s StaticTable) Authenticate(c Credentials) bool {
	if !c.HasUsername {
		return false
	}
	want, ok := s.Users[c.Username]
	if !ok {
		return false
	}
	// Constant-ish comparison isn't load-bearing here: the spec's
	// "never leak which part failed" is about the response, not timing.
	return c.HasPassword && string(c.Password) == want
}
