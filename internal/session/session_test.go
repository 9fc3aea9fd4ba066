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

	"github.com/frenzox/mercurio/internal/packet"
)

type fakeConn struct {
	closed     bool
	delivered  []*OutboundMessage
	rejectNext bool
}

func (f *fakeConn) Close() error { f.closed = true; return nil }

func (f *fakeConn) Deliver(m *OutboundMessage) bool {
	if f.rejectNext {
		return false
	}
	f.delivered = append(f.delivered, m)
	return true
}

func TestSessionOutboundLifecycle(t *testing.T) {
	s := New("client-a", packet.Version311, false, 10, DropOldest, false)

	id, ok := s.AllocID()
	require.True(t, ok)

	m := &OutboundMessage{PacketID: id, Topic: "a/b", QoS: packet.QoS1, State: PendingPuback}
	s.PushOutbound(m)
	assert.Equal(t, 1, s.OutboundInFlightLen())

	assert.True(t, s.CompleteOutbound(id))
	assert.Equal(t, 0, s.OutboundInFlightLen())
	assert.False(t, s.CompleteOutbound(id), "completing an already-completed id is a no-op")
}

func TestSessionAdvanceOutboundQoS2(t *testing.T) {
	s := New("client-a", packet.Version311, false, 10, DropOldest, false)

	id, ok := s.AllocID()
	require.True(t, ok)
	s.PushOutbound(&OutboundMessage{PacketID: id, QoS: packet.QoS2, State: PendingPubrec})

	m, ok := s.AdvanceOutbound(id)
	require.True(t, ok)
	assert.Equal(t, PendingPubcomp, m.State)

	assert.True(t, s.CompleteOutbound(id))
}

func TestSessionMarkInboundQoS2Dedup(t *testing.T) {
	s := New("client-a", packet.Version311, false, 10, DropOldest, false)

	assert.True(t, s.MarkInboundQoS2(7), "first PUBLISH with this id should not be a dup")
	assert.False(t, s.MarkInboundQoS2(7), "replayed PUBLISH before PUBREL must be treated as a dup")

	s.ReleaseInboundQoS2(7)
	assert.True(t, s.MarkInboundQoS2(7), "id is free again after PUBREL")
}

func TestSessionReleaseInboundQoS2Idempotent(t *testing.T) {
	s := New("client-a", packet.Version311, false, 10, DropOldest, false)
	s.ReleaseInboundQoS2(99) // never marked; must not panic
}

func TestSessionEnqueueDropOldest(t *testing.T) {
	s := New("client-a", packet.Version311, false, 2, DropOldest, true)

	assert.True(t, s.Enqueue("t/1", []byte("1"), packet.QoS0, false, nil))
	assert.True(t, s.Enqueue("t/2", []byte("2"), packet.QoS0, false, nil))
	assert.True(t, s.Enqueue("t/3", []byte("3"), packet.QoS0, false, nil))

	msgs := s.DequeueAll()
	require.Len(t, msgs, 2)
	assert.Equal(t, "t/2", msgs[0].Topic())
	assert.Equal(t, "t/3", msgs[1].Topic())
}

func TestSessionEnqueueRejectPublish(t *testing.T) {
	s := New("client-a", packet.Version311, false, 1, RejectPublish, true)

	assert.True(t, s.Enqueue("t/1", []byte("1"), packet.QoS1, false, nil))
	assert.False(t, s.Enqueue("t/2", []byte("2"), packet.QoS1, false, nil))
}

func TestSessionEnqueueSkipsQoS0WhenDisabled(t *testing.T) {
	s := New("client-a", packet.Version311, false, 10, DropOldest, false)
	assert.False(t, s.Enqueue("t/1", []byte("1"), packet.QoS0, false, nil))
}

func TestSessionAttachDetach(t *testing.T) {
	s := New("client-a", packet.Version311, false, 10, DropOldest, false)
	c := &fakeConn{}

	s.Attach(c)
	assert.True(t, s.Connected())

	s.Detach()
	assert.False(t, s.Connected())
	assert.False(t, c.closed, "Detach must not close the connection; that is the caller's call")
}

func TestSessionDeliverWithNoConnection(t *testing.T) {
	s := New("client-a", packet.Version311, false, 10, DropOldest, false)
	ok := s.Deliver(&OutboundMessage{Topic: "a"})
	assert.False(t, ok)
}
