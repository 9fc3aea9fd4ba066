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

package retained

import (
	"sync"

	"github.com/frenzox/mercurio/config"
	"github.com/frenzox/mercurio/internal/topic"
)

type memoryStore struct {
	mu   sync.RWMutex
	byTopic map[string]Message
}

func newMemoryStore(_ *config.RetainedPersistence) (Store, error) {
	return &memoryStore{byTopic: make(map[string]Message)}, nil
}

func (m *memoryStore) Set(msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(msg.Payload) == 0 {
		delete(m.byTopic, msg.Topic)
		return nil
	}
	m.byTopic[msg.Topic] = msg
	return nil
}

func (m *memoryStore) Match(filter string) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Message
	for t, msg := range m.byTopic {
		if topic.Matches(filter, t) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memoryStore) Close() error { return nil }
