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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frenzox/mercurio/internal/topic"
)

func TestMemoryStoreSaveAndAll(t *testing.T) {
	s, err := newMemoryStore(nil)
	require.NoError(t, err)

	require.NoError(t, s.Save(Record{ClientID: "client-a", Filter: "a/b", Options: topic.Options{MaxQoS: 1}}))
	require.NoError(t, s.Save(Record{ClientID: "client-a", Filter: "a/c", Options: topic.Options{MaxQoS: 0}}))

	all, err := s.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryStoreSaveOverwritesSameKey(t *testing.T) {
	s, err := newMemoryStore(nil)
	require.NoError(t, err)

	require.NoError(t, s.Save(Record{ClientID: "client-a", Filter: "a/b", Options: topic.Options{MaxQoS: 0}}))
	require.NoError(t, s.Save(Record{ClientID: "client-a", Filter: "a/b", Options: topic.Options{MaxQoS: 2}}))

	all, err := s.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, byte(2), all[0].Options.MaxQoS)
}

func TestMemoryStoreDelete(t *testing.T) {
	s, err := newMemoryStore(nil)
	require.NoError(t, err)

	require.NoError(t, s.Save(Record{ClientID: "client-a", Filter: "a/b"}))
	require.NoError(t, s.Delete("client-a", "a/b"))

	all, err := s.All()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMemoryStoreDeleteClientRemovesOnlyItsFilters(t *testing.T) {
	s, err := newMemoryStore(nil)
	require.NoError(t, err)

	require.NoError(t, s.Save(Record{ClientID: "client-a", Filter: "a/b"}))
	require.NoError(t, s.Save(Record{ClientID: "client-a", Filter: "a/c"}))
	require.NoError(t, s.Save(Record{ClientID: "client-b", Filter: "a/b"}))

	require.NoError(t, s.DeleteClient("client-a"))

	all, err := s.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "client-b", all[0].ClientID)
}

func TestMemoryStoreClose(t *testing.T) {
	s, err := newMemoryStore(nil)
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
