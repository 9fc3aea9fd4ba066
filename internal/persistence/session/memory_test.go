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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetMissing(t *testing.T) {
	s, err := newMemoryStore(nil)
	require.NoError(t, err)

	_, ok, err := s.Get("client-a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreSetGetRoundTrip(t *testing.T) {
	s, err := newMemoryStore(nil)
	require.NoError(t, err)

	in := &Record{ClientID: "client-a", SessionExpiryInterval: 3600}
	require.NoError(t, s.Set(in))

	out, ok, err := s.Get("client-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "client-a", out.ClientID)
	assert.Equal(t, uint32(3600), out.SessionExpiryInterval)
}

func TestMemoryStoreSetCopiesRecord(t *testing.T) {
	s, err := newMemoryStore(nil)
	require.NoError(t, err)

	in := &Record{ClientID: "client-a"}
	require.NoError(t, s.Set(in))

	in.SessionExpiryInterval = 3600
	out, ok, err := s.Get("client-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Zero(t, out.SessionExpiryInterval, "Set must store a copy, not alias the caller's pointer")
}

func TestMemoryStoreDelete(t *testing.T) {
	s, err := newMemoryStore(nil)
	require.NoError(t, err)

	require.NoError(t, s.Set(&Record{ClientID: "client-a"}))
	require.NoError(t, s.Delete("client-a"))

	_, ok, err := s.Get("client-a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreDeleteMissingIsNoop(t *testing.T) {
	s, err := newMemoryStore(nil)
	require.NoError(t, err)
	assert.NoError(t, s.Delete("never-existed"))
}

func TestMemoryStoreClose(t *testing.T) {
	s, err := newMemoryStore(nil)
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
