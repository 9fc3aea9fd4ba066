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

package subscription

import (
	"sync"

	"github.com/frenzox/mercurio/config"
)

type memoryStore struct {
	mu      sync.RWMutex
	records map[string]Record // keyed by clientID+"\x00"+filter
}

func newMemoryStore(_ *config.SubscriptionPersistence) (Store, error) {
	return &memoryStore{records: make(map[string]Record)}, nil
}

func recordKey(clientID, filter string) string {
	return clientID + "\x00" + filter
}

func (m *memoryStore) All() ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryStore) Save(r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[recordKey(r.ClientID, r.Filter)] = r
	return nil
}

func (m *memoryStore) Delete(clientID, filter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, recordKey(clientID, filter))
	return nil
}

func (m *memoryStore) DeleteClient(clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := clientID + "\x00"
	for k := range m.records {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(m.records, k)
		}
	}
	return nil
}

func (m *memoryStore) Close() error { return nil }
