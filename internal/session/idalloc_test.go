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

func TestIDAllocatorAllocNeverReturnsZero(t *testing.T) {
	a := newIDAllocator()

	id, ok := a.Alloc()
	require.True(t, ok)
	assert.NotZero(t, id)
}

func TestIDAllocatorReusesFreedID(t *testing.T) {
	a := newIDAllocator()

	first, ok := a.Alloc()
	require.True(t, ok)
	a.Free(first)

	for i := 0; i < 65535; i++ {
		_, ok := a.Alloc()
		require.True(t, ok)
	}

	_, ok = a.Alloc()
	assert.False(t, ok, "space should be exhausted after freeing and re-filling")
}

func TestIDAllocatorExhaustion(t *testing.T) {
	a := newIDAllocator()

	for i := 0; i < 65535; i++ {
		_, ok := a.Alloc()
		require.Truef(t, ok, "allocation %d should have succeeded", i)
	}

	_, ok := a.Alloc()
	assert.False(t, ok)
}

func TestIDAllocatorReserve(t *testing.T) {
	a := newIDAllocator()

	a.Reserve(42)
	assert.True(t, a.isSet(42))

	id, ok := a.Alloc()
	require.True(t, ok)
	assert.NotEqual(t, uint16(42), id)
}
