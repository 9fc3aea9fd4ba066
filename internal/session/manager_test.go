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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frenzox/mercurio/internal/packet"
)

func TestManagerAcceptConnectFreshSession(t *testing.T) {
	m := NewManager(10, DropOldest, false)
	c := &fakeConn{}

	res := m.AcceptConnect("client-a", packet.Version311, true, c)
	assert.False(t, res.SessionPresent)
	assert.False(t, res.TookOver)
	require.NotNil(t, res.Session)
	assert.Equal(t, "client-a", res.Session.ClientID)
}

func TestManagerAcceptConnectResumesSession(t *testing.T) {
	m := NewManager(10, DropOldest, false)
	c1 := &fakeConn{}

	res := m.AcceptConnect("client-a", packet.Version311, false, c1)
	res.Session.SessionExpiryInterval = 3600
	m.OnDisconnect("client-a", c1, func(*Session) {})

	c2 := &fakeConn{}
	res2 := m.AcceptConnect("client-a", packet.Version311, false, c2)
	assert.True(t, res2.SessionPresent)
	assert.Same(t, res.Session, res2.Session, "resuming must reattach the same Session, not create a new one")
}

func TestManagerAcceptConnectCleanStartDiscardsPriorState(t *testing.T) {
	m := NewManager(10, DropOldest, false)
	c1 := &fakeConn{}

	res := m.AcceptConnect("client-a", packet.Version311, false, c1)
	m.OnDisconnect("client-a", c1, func(*Session) {})

	c2 := &fakeConn{}
	res2 := m.AcceptConnect("client-a", packet.Version311, true, c2)
	assert.False(t, res2.SessionPresent)
	assert.NotSame(t, res.Session, res2.Session)
}

func TestManagerAcceptConnectTakesOverLiveConnection(t *testing.T) {
	m := NewManager(10, DropOldest, false)
	c1 := &fakeConn{}
	m.AcceptConnect("client-a", packet.Version311, false, c1)

	c2 := &fakeConn{}
	res := m.AcceptConnect("client-a", packet.Version311, false, c2)

	assert.True(t, res.TookOver)
	assert.True(t, c1.closed, "the connection being superseded must be closed")
}

func TestManagerOnDisconnectNoopsForSupersededConnection(t *testing.T) {
	m := NewManager(10, DropOldest, false)
	c1 := &fakeConn{}
	res := m.AcceptConnect("client-a", packet.Version311, false, c1)
	res.Session.SessionExpiryInterval = 3600

	c2 := &fakeConn{}
	m.AcceptConnect("client-a", packet.Version311, false, c2)

	// c1's listen() goroutine only learns about the take-over after the
	// fact; its teardown must not disturb the session c2 now owns.
	destroyed := false
	m.OnDisconnect("client-a", c1, func(*Session) { destroyed = true })

	assert.False(t, destroyed, "a superseded connection's disconnect must not destroy the session")
	assert.Equal(t, 1, m.Len())
	sess, ok := m.Get("client-a")
	require.True(t, ok)
	assert.True(t, sess.Connected(), "the new connection's attachment must survive the old connection's teardown")
}

func TestManagerOnDisconnectDropsCleanSession(t *testing.T) {
	m := NewManager(10, DropOldest, false)
	c := &fakeConn{}
	m.AcceptConnect("client-a", packet.Version311, true, c)

	destroyed := false
	m.OnDisconnect("client-a", c, func(*Session) { destroyed = true })

	assert.True(t, destroyed)
	assert.Equal(t, 0, m.Len())
}

func TestManagerOnDisconnectDropsZeroExpirySession(t *testing.T) {
	m := NewManager(10, DropOldest, false)
	c := &fakeConn{}
	res := m.AcceptConnect("client-a", packet.Version311, false, c)
	res.Session.SessionExpiryInterval = 0 // still dropped immediately: clean_start=false but zero expiry

	m.OnDisconnect("client-a", c, func(*Session) {})
	assert.Equal(t, 0, m.Len())
}

func TestManagerOnDisconnectSchedulesExpiry(t *testing.T) {
	m := NewManager(10, DropOldest, false)
	c := &fakeConn{}
	res := m.AcceptConnect("client-a", packet.Version311, false, c)
	res.Session.SessionExpiryInterval = 0
	res.Session.CleanStart = false

	// Force a non-zero expiry so OnDisconnect schedules a timer instead of
	// dropping immediately.
	res.Session.SessionExpiryInterval = 1

	m.OnDisconnect("client-a", c, func(*Session) {})
	assert.Equal(t, 1, m.Len(), "session must survive until its expiry timer fires")

	_, ok := m.Get("client-a")
	assert.True(t, ok)

	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, 0, m.Len(), "session must be dropped once its expiry interval elapses")
}
