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

// Package session implements the per-Client-Identifier Session described
// by spec §3/§4.3: outbound/inbound in-flight tracking, the packet
// identifier allocator, the bounded offline queue, and the will/expiry
// timers, plus the take-over-aware session table.
package session

import (
	"container/list"
	"sync"
	"time"

	"github.com/frenzox/mercurio/internal/packet"
)

// OutboundState is where an outbound QoS>0 PUBLISH is in its handshake.
type OutboundState int

const (
	PendingPuback OutboundState = iota
	PendingPubrec
	PendingPubcomp
)

// OutboundMessage is one entry of a session's outbound in-flight queue.
type OutboundMessage struct {
	PacketID   uint16
	Topic      string
	Payload    []byte
	QoS        packet.QoS
	Retain     bool
	Dup        bool
	Properties *packet.Properties
	State      OutboundState
}

// Will is the message a session publishes on abnormal termination.
type Will struct {
	Topic         string
	Payload       []byte
	QoS           packet.QoS
	Retain        bool
	Properties    *packet.Properties
	DelayInterval uint32 // v5 only; seconds to wait after disconnect before publishing
}

// OverflowPolicy decides what happens when the offline queue is full.
type OverflowPolicy int

const (
	DropOldest OverflowPolicy = iota
	DropNewest
	RejectPublish
)

// Conn is the minimal surface the session needs from whatever owns the
// live socket, so the session package doesn't depend on net or the
// server package. Take-over calls Close on the superseded connection.
type Conn interface {
	Close() error
	// Deliver writes an application message to the connection as a
	// PUBLISH. It must not block the caller
	// indefinitely (the router never blocks on a slow subscriber).
	Deliver(*OutboundMessage) bool
}

// Session is the persistent (or, for clean sessions, ephemeral) state
// attached to a Client Identifier.
type Session struct {
	mu sync.Mutex

	ClientID   string
	Version    packet.Version
	CleanStart bool

	SessionExpiryInterval uint32 // seconds; 0 = session ends with the network connection
	ReceiveMaximum        uint16 // client's advertised cap on our outstanding QoS>0 PUBLISHes
	Will                  *Will

	ids      *idAllocator
	outbound *list.List // ordered []*OutboundMessage, in-flight, oldest first
	queued   *list.List // ordered []*queuedMessage, offline/overflow backlog
	inbound  map[uint16]struct{}

	maxQueued      int
	overflowPolicy OverflowPolicy
	queueQoS0      bool

	conn      Conn
	connected bool

	expiryTimer   *time.Timer
	willDelayTimer *time.Timer
}

type queuedMessage struct {
	topic      string
	payload    []byte
	qos        packet.QoS
	retain     bool
	properties *packet.Properties
}

// New creates a fresh Session for clientID.
func New(clientID string, v packet.Version, cleanStart bool, maxQueued int, policy OverflowPolicy, queueQoS0 bool) *Session {
	return &Session{
		ClientID:       clientID,
		Version:        v,
		CleanStart:     cleanStart,
		ids:            newIDAllocator(),
		outbound:       list.New(),
		queued:         list.New(),
		inbound:        make(map[uint16]struct{}),
		maxQueued:      maxQueued,
		overflowPolicy: policy,
		queueQoS0:      queueQoS0,
	}
}

// Attach binds a live connection to the session, marking it connected.
// Callers must have already evicted any previous connection (take-over)
// before calling Attach.
func (s *Session) Attach(c Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = c
	s.connected = true
	s.stopTimersLocked()
}

// Detach unbinds the connection (network drop, server-side kick, or
// graceful DISCONNECT), leaving accumulated state intact; discarding a
// clean session is the Manager's job.
func (s *Session) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = nil
	s.connected = false
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// IsCurrentConn reports whether c is still the session's live
// connection. A connection evicted by take-over (spec §9 "take-over
// race") uses this to detect that the new connection already owns the
// session and it must tear down nothing.
func (s *Session) IsCurrentConn(c Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == c
}

func (s *Session) stopTimersLocked() {
	if s.expiryTimer != nil {
		s.expiryTimer.Stop()
		s.expiryTimer = nil
	}
	if s.willDelayTimer != nil {
		s.willDelayTimer.Stop()
		s.willDelayTimer = nil
	}
}

// AllocID allocates the next free outbound packet identifier. Returns
// false if the 16-bit space is exhausted (caller should backpressure or,
// in v5, disconnect with ReceiveMaximumExceeded per spec §9).
func (s *Session) AllocID() (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids.Alloc()
}

func (s *Session) FreeID(id uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids.Free(id)
}

// OutboundInFlightLen reports how many QoS>0 PUBLISHes are currently
// outstanding. Nothing compares it with the client's Receive Maximum.
func (s *Session) OutboundInFlightLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outbound.Len()
}

// Deliver hands m to the attached connection, if any. It returns false
// if there is no live connection (the router has already queued the
// message via Enqueue in that case, so this is advisory for callers
// that want to know whether the write was attempted).
func (s *Session) Deliver(m *OutboundMessage) bool {
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()
	if c == nil {
		return false
	}
	return c.Deliver(m)
}

// PushOutbound appends a new in-flight entry (packet id already
// allocated by the caller via AllocID).
func (s *Session) PushOutbound(m *OutboundMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbound.PushBack(m)
}

// CompleteOutbound removes the in-flight entry for id (PUBACK for QoS 1,
// PUBCOMP for QoS 2) and frees its packet id.
func (s *Session) CompleteOutbound(id uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for e := s.outbound.Front(); e != nil; e = e.Next() {
		m := e.Value.(*OutboundMessage)
		if m.PacketID == id {
			s.outbound.Remove(e)
			s.ids.Free(id)
			return true
		}
	}
	return false
}

// AdvanceOutbound transitions the in-flight entry for id to
// PendingPubcomp on receipt of PUBREC.
func (s *Session) AdvanceOutbound(id uint16) (*OutboundMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for e := s.outbound.Front(); e != nil; e = e.Next() {
		m := e.Value.(*OutboundMessage)
		if m.PacketID == id {
			m.State = PendingPubcomp
			return m, true
		}
	}
	return nil, false
}

// OutboundSnapshot returns the in-flight queue in order, for redelivery
// on resume (spec §4.3: "every item ... is resent with DUP=1 in original
// order; for QoS 2 items already past PENDING_PUBREC, only PUBREL is
// resent").
func (s *Session) OutboundSnapshot() []*OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*OutboundMessage, 0, s.outbound.Len())
	for e := s.outbound.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*OutboundMessage))
	}
	return out
}

// MarkInboundQoS2 records a QoS-2 PUBLISH packet id as awaiting PUBREL.
// Returns false if the id was already present (a duplicate PUBLISH,
// which must be treated as a dup: resend PUBREC without re-routing).
func (s *Session) MarkInboundQoS2(id uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.inbound[id]; dup {
		return false
	}
	s.inbound[id] = struct{}{}
	return true
}

// ReleaseInboundQoS2 removes id from the inbound set on PUBREL. It is
// idempotent: releasing an already-released (or never-seen) id is a
// no-op, since a replayed PUBREL must still elicit PUBCOMP (spec §8).
func (s *Session) ReleaseInboundQoS2(id uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inbound, id)
}

// Enqueue appends a message to the offline/backlog queue, applying the
// configured overflow policy if the queue is at capacity. Returns false
// if the message was dropped (RejectPublish only rejects the newest
// QoS>0 message; DropOldest/DropNewest never reject, they just drop).
func (s *Session) Enqueue(topic string, payload []byte, qos packet.QoS, retain bool, props *packet.Properties) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qos == packet.QoS0 && !s.queueQoS0 {
		return false
	}

	if s.queued.Len() >= s.maxQueued {
		if !s.evictLocked(qos) {
			return false
		}
	}

	s.queued.PushBack(&queuedMessage{topic: topic, payload: payload, qos: qos, retain: retain, properties: props})
	return true
}

// evictLocked makes room per the overflow policy. Returns false if the
// incoming message itself must be dropped instead (RejectPublish).
func (s *Session) evictLocked(incoming packet.QoS) bool {
	// Oldest QoS-0 first, regardless of configured policy (spec §4.3).
	for e := s.queued.Front(); e != nil; e = e.Next() {
		if e.Value.(*queuedMessage).qos == packet.QoS0 {
			s.queued.Remove(e)
			return true
		}
	}
	switch s.overflowPolicy {
	case DropOldest:
		if front := s.queued.Front(); front != nil {
			s.queued.Remove(front)
		}
		return true
	case DropNewest:
		if back := s.queued.Back(); back != nil {
			s.queued.Remove(back)
		}
		return true
	case RejectPublish:
		return false
	default:
		return false
	}
}

// DequeueAll drains the offline queue in FIFO order, for delivery right
// after a resumed CONNECT is acknowledged.
func (s *Session) DequeueAll() []*queuedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*queuedMessage, 0, s.queued.Len())
	for e := s.queued.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*queuedMessage))
	}
	s.queued.Init()
	return out
}

func (m *queuedMessage) Topic() string                    { return m.topic }
func (m *queuedMessage) Payload() []byte                  { return m.payload }
func (m *queuedMessage) QoS() packet.QoS                  { return m.qos }
func (m *queuedMessage) Retain() bool                     { return m.retain }
func (m *queuedMessage) Properties() *packet.Properties   { return m.properties }
