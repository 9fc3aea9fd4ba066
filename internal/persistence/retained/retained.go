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

// Package retained stores the single retained message per topic name
// described by spec §4.4/§4.5: a PUBLISH with RETAIN=1 replaces (or, with
// an empty payload, deletes) the retained message for its topic; a new
// subscription receives the retained message of every topic its filter
// matches.
package retained

import (
	"fmt"

	"github.com/frenzox/mercurio/config"
)

// Message is the durable representation of a retained PUBLISH.
type Message struct {
	Topic      string
	Payload    []byte
	QoS        byte
	PropertiesRaw []byte // pre-encoded v5 PUBLISH properties, opaque to the store
}

// Store holds at most one retained Message per topic name.
type Store interface {
	// Set stores msg, replacing any existing retained message for
	// msg.Topic. A zero-length Payload deletes the retained message
	// instead (spec §4.4).
	Set(msg Message) error
	// Match returns every retained message whose topic matches filter.
	Match(filter string) ([]Message, error)
	Close() error
}

// Factory builds a Store from persistence configuration.
type Factory func(cfg *config.RetainedPersistence) (Store, error)

var factories = map[string]Factory{
	"memory": newMemoryStore,
	"redis":  newRedisStore,
}

// GetStore looks up the registered Store factory for name.
func GetStore(name string, cfg *config.RetainedPersistence) (Store, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("retained: unknown store type %q", name)
	}
	return f(cfg)
}
