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

package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frenzox/mercurio/internal/packet"
	"github.com/frenzox/mercurio/internal/persistence/retained"
	"github.com/frenzox/mercurio/internal/session"
	"github.com/frenzox/mercurio/internal/topic"
)

type fakeConn struct {
	delivered []*session.OutboundMessage
}

func (f *fakeConn) Close() error { return nil }

func (f *fakeConn) Deliver(m *session.OutboundMessage) bool {
	f.delivered = append(f.delivered, m)
	return true
}

type fakeSessions struct {
	byClient map[string]*session.Session
}

func newFakeSessions() *fakeSessions { return &fakeSessions{byClient: make(map[string]*session.Session)} }

func (f *fakeSessions) Get(clientID string) (*session.Session, bool) {
	s, ok := f.byClient[clientID]
	return s, ok
}

func (f *fakeSessions) connect(clientID string) (*session.Session, *fakeConn) {
	s := session.New(clientID, packet.Version311, false, 10, session.DropOldest, true)
	c := &fakeConn{}
	s.Attach(c)
	f.byClient[clientID] = s
	return s, c
}

type fakeRetained struct {
	byTopic map[string]retained.Message
}

func newFakeRetained() *fakeRetained { return &fakeRetained{byTopic: make(map[string]retained.Message)} }

func (f *fakeRetained) Set(msg retained.Message) error {
	if len(msg.Payload) == 0 {
		delete(f.byTopic, msg.Topic)
		return nil
	}
	f.byTopic[msg.Topic] = msg
	return nil
}

func (f *fakeRetained) Match(filter string) ([]retained.Message, error) {
	var out []retained.Message
	for t, msg := range f.byTopic {
		if topic.Matches(filter, t) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (f *fakeRetained) Close() error { return nil }

func TestRouterPublishQoS0ToSingleSubscriber(t *testing.T) {
	idx := topic.NewIndex()
	sessions := newFakeSessions()
	r := New(idx, sessions, newFakeRetained())

	_, conn := sessions.connect("sub-1")
	idx.Subscribe("sub-1", "a/b", topic.Options{MaxQoS: 0})

	r.Publish("pub-1", "a/b", []byte("hello"), packet.QoS0, false, nil)

	require.Len(t, conn.delivered, 1)
	assert.Equal(t, "a/b", conn.delivered[0].Topic)
	assert.Equal(t, []byte("hello"), conn.delivered[0].Payload)
}

func TestRouterPublishCollapsesMultipleFilterMatches(t *testing.T) {
	idx := topic.NewIndex()
	sessions := newFakeSessions()
	r := New(idx, sessions, newFakeRetained())

	sess, conn := sessions.connect("sub-1")
	idx.Subscribe("sub-1", "a/+", topic.Options{MaxQoS: 0})
	idx.Subscribe("sub-1", "a/b", topic.Options{MaxQoS: 1})

	r.Publish("pub-1", "a/b", []byte("x"), packet.QoS1, false, nil)

	require.Len(t, conn.delivered, 1, "one session matched by two filters gets exactly one delivery")
	assert.Equal(t, packet.QoS1, conn.delivered[0].QoS, "effective QoS is the max across matching filters")
	assert.Equal(t, 1, sess.OutboundInFlightLen())
}

func TestRouterPublishSkipsNoLocal(t *testing.T) {
	idx := topic.NewIndex()
	sessions := newFakeSessions()
	r := New(idx, sessions, newFakeRetained())

	_, conn := sessions.connect("pub-1")
	idx.Subscribe("pub-1", "a/b", topic.Options{MaxQoS: 0, NoLocal: true})

	r.Publish("pub-1", "a/b", []byte("x"), packet.QoS0, false, nil)

	assert.Empty(t, conn.delivered, "no_local subscription must not receive its own publisher's message")
}

func TestRouterPublishEnqueuesForDisconnectedSubscriber(t *testing.T) {
	idx := topic.NewIndex()
	sessions := newFakeSessions()
	r := New(idx, sessions, newFakeRetained())

	sess, _ := sessions.connect("sub-1")
	sess.Detach()
	idx.Subscribe("sub-1", "a/b", topic.Options{MaxQoS: 0})

	r.Publish("pub-1", "a/b", []byte("x"), packet.QoS0, false, nil)

	msgs := sess.DequeueAll()
	require.Len(t, msgs, 1)
	assert.Equal(t, "a/b", msgs[0].Topic())
}

func TestRouterPublishStoresRetained(t *testing.T) {
	idx := topic.NewIndex()
	sessions := newFakeSessions()
	store := newFakeRetained()
	r := New(idx, sessions, store)

	r.Publish("pub-1", "a/b", []byte("x"), packet.QoS0, true, nil)
	assert.Contains(t, store.byTopic, "a/b")

	r.Publish("pub-1", "a/b", nil, packet.QoS0, true, nil)
	assert.NotContains(t, store.byTopic, "a/b", "empty-payload retained publish deletes it")
}

func TestRouterDeliverRetainedHonorsRetainHandling(t *testing.T) {
	idx := topic.NewIndex()
	sessions := newFakeSessions()
	store := newFakeRetained()
	r := New(idx, sessions, store)

	store.byTopic["a/b"] = retained.Message{Topic: "a/b", Payload: []byte("keep"), QoS: 0}

	sess, conn := sessions.connect("sub-1")

	r.DeliverRetained(sess, "a/b", 2, true, 0, packet.QoS2)
	assert.Empty(t, conn.delivered, "retain_handling=2 never sends retained messages")

	r.DeliverRetained(sess, "a/b", 1, false, 0, packet.QoS2)
	assert.Empty(t, conn.delivered, "retain_handling=1 only applies to a new subscription")

	r.DeliverRetained(sess, "a/b", 0, false, 0, packet.QoS2)
	require.Len(t, conn.delivered, 1)
	assert.True(t, conn.delivered[0].Retain)
}

func TestRouterDeliverRetainedClampsToGrantedMaxQoS(t *testing.T) {
	idx := topic.NewIndex()
	sessions := newFakeSessions()
	store := newFakeRetained()
	r := New(idx, sessions, store)

	store.byTopic["a/b"] = retained.Message{Topic: "a/b", Payload: []byte("keep"), QoS: 2}
	sess, conn := sessions.connect("sub-1")

	r.DeliverRetained(sess, "a/b", 0, true, 0, packet.QoS1)

	require.Len(t, conn.delivered, 1)
	assert.Equal(t, packet.QoS1, conn.delivered[0].QoS, "retained delivery must clamp to min(stored qos, granted max_qos)")
}
