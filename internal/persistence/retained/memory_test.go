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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetAndMatchExact(t *testing.T) {
	s, err := newMemoryStore(nil)
	require.NoError(t, err)

	require.NoError(t, s.Set(Message{Topic: "a/b", Payload: []byte("hello"), QoS: 1}))

	msgs, err := s.Match("a/b")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte("hello"), msgs[0].Payload)
}

func TestMemoryStoreMatchWildcard(t *testing.T) {
	s, err := newMemoryStore(nil)
	require.NoError(t, err)

	require.NoError(t, s.Set(Message{Topic: "a/b", Payload: []byte("1")}))
	require.NoError(t, s.Set(Message{Topic: "a/c", Payload: []byte("2")}))
	require.NoError(t, s.Set(Message{Topic: "x/y", Payload: []byte("3")}))

	msgs, err := s.Match("a/+")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestMemoryStoreEmptyPayloadDeletes(t *testing.T) {
	s, err := newMemoryStore(nil)
	require.NoError(t, err)

	require.NoError(t, s.Set(Message{Topic: "a/b", Payload: []byte("hello")}))
	require.NoError(t, s.Set(Message{Topic: "a/b", Payload: nil}))

	msgs, err := s.Match("a/b")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMemoryStoreMatchNoneFound(t *testing.T) {
	s, err := newMemoryStore(nil)
	require.NoError(t, err)

	msgs, err := s.Match("no/such/topic")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMemoryStoreClose(t *testing.T) {
	s, err := newMemoryStore(nil)
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
