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

// Package subscription provides durable storage for a client's
// subscription set, so it can be restored into internal/topic.Index
// after a broker restart for clients with clean_start=false.
package subscription

import (
	"fmt"

	"github.com/frenzox/mercurio/config"
	"github.com/frenzox/mercurio/internal/topic"
)

// Record is the durable form of one (client, filter) subscription.
type Record struct {
	ClientID string
	Filter   string
	Options  topic.Options
}

// Store persists subscription Records. All returns the full set,
// consulted once at startup to rehydrate internal/topic.Index; Save/
// Delete are called as sessions mutate their subscriptions.
type Store interface {
	All() ([]Record, error)
	Save(r Record) error
	Delete(clientID, filter string) error
	DeleteClient(clientID string) error
	Close() error
}

// Factory builds a Store from persistence configuration.
type Factory func(cfg *config.SubscriptionPersistence) (Store, error)

var factories = map[string]Factory{
	"memory": newMemoryStore,
	"redis":  newRedisStore,
}

// GetStore looks up the registered Store factory for name.
func GetStore(name string, cfg *config.SubscriptionPersistence) (Store, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("subscription: unknown store type %q", name)
	}
	return f(cfg)
}
