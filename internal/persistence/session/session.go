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

// Package session provides durable storage for session.Session state
// (client id, subscriptions excluded, will, expiry) so a client
// reconnecting with clean_start=false can resume across a broker
// restart, not just across a single process's lifetime.
package session

import (
	"fmt"

	"github.com/frenzox/mercurio/config"
)

// Record is the durable, wire-stable representation of a session. It is
// deliberately decoupled from session.Session's in-memory shape (which
// carries live timers and a connection handle that cannot be
// serialized).
type Record struct {
	ClientID              string
	Version               byte
	SessionExpiryInterval uint32
	ReceiveMaximum        uint16
	WillTopic             string
	WillPayload           []byte
	WillQoS               byte
	WillRetain            bool
	WillDelayInterval     uint32
	HasWill               bool
}

// Store persists session Records keyed by Client Identifier.
type Store interface {
	Get(clientID string) (*Record, bool, error)
	Set(r *Record) error
	Delete(clientID string) error
	Close() error
}

// Factory builds a Store from persistence configuration; GetStore picks
// one by cfg.Type.
type Factory func(cfg *config.SessionPersistence) (Store, error)

var factories = map[string]Factory{
	"memory": newMemoryStore,
	"redis":  newRedisStore,
}

// GetStore looks up the registered Store factory for name ("memory" or
// "redis") and constructs it from cfg.
func GetStore(name string, cfg *config.SessionPersistence) (Store, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("session: unknown store type %q", name)
	}
	return f(cfg)
}
