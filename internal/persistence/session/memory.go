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

package session

import (
	"sync"

	"github.com/frenzox/mercurio/config"
)

// memoryStore is the default, process-lifetime-only Store: sessions do
// not survive a broker restart. This is the spec's stated default.
type memoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func newMemoryStore(_ *config.SessionPersistence) (Store, error) {
	return &memoryStore{records: make(map[string]*Record)}, nil
}

func (m *memoryStore) Get(clientID string) (*Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[clientID]
	return r, ok, nil
}

func (m *memoryStore) Set(r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.records[r.ClientID] = &cp
	return nil
}

func (m *memoryStore) Delete(clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, clientID)
	return nil
}

func (m *memoryStore) Close() error { return nil }
