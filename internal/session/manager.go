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
	"time"

	"github.com/frenzox/mercurio/internal/packet"
)

// Store is the durability hook a Manager consults to load a session on a
// clean_start=false CONNECT when none is in memory, and to save one whose
// connection ends with a non-zero expiry. The in-process table is always
// authoritative while the server is running; Store only matters across
// restarts.
type Store interface {
	Load(clientID string) (*Session, bool)
	Save(s *Session) error
	Delete(clientID string) error
}

// Manager is the broker-wide session table keyed by Client Identifier
// (spec §4.3). It owns take-over: when a new CONNECT arrives for a
// Client Identifier that already has a live connection, the manager
// closes the old connection before the new one is allowed to proceed,
// so at most one network connection is ever attached to a session.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	store    Store

	defaultMaxQueued int
	defaultPolicy    OverflowPolicy
	defaultQueueQoS0 bool
}

// NewManager returns a Manager with no durable backing store; sessions
// live only as long as the process (or their SessionExpiryInterval).
func NewManager(maxQueued int, policy OverflowPolicy, queueQoS0 bool) *Manager {
	return &Manager{
		sessions:         make(map[string]*Session),
		defaultMaxQueued: maxQueued,
		defaultPolicy:    policy,
		defaultQueueQoS0: queueQoS0,
	}
}

// WithStore attaches a durable Store, used for session hydration across
// restarts when a client reconnects with clean_start=false.
func (m *Manager) WithStore(s Store) *Manager {
	m.store = s
	return m
}

// Resolution describes what AcceptConnect did to the session table, so
// the caller (the connection state machine) can build the right
// CONNACK (session_present) and know whether to replay in-flight state.
type Resolution struct {
	Session        *Session
	SessionPresent bool
	TookOver       bool
}

// AcceptConnect implements spec §4.2's CONNECT resolution step 3:
// evict and close any existing connection for this Client Identifier,
// then either discard prior state (clean_start=true, or no prior state)
// or resume it (clean_start=false and a session exists, in memory or in
// the durable store).
func (m *Manager) AcceptConnect(clientID string, v packet.Version, cleanStart bool, conn Conn) Resolution {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, hadExisting := m.sessions[clientID]
	tookOver := false
	if hadExisting {
		if existing.Connected() {
			if c := existing.detachConn(); c != nil {
				c.Close()
			}
			tookOver = true
		}
		if cleanStart {
			delete(m.sessions, clientID)
			hadExisting = false
			if m.store != nil {
				m.store.Delete(clientID)
			}
		}
	}

	if !hadExisting && !cleanStart && m.store != nil {
		if loaded, ok := m.store.Load(clientID); ok {
			m.sessions[clientID] = loaded
			existing = loaded
			hadExisting = true
		}
	}

	if hadExisting && !cleanStart {
		existing.Attach(conn)
		return Resolution{Session: existing, SessionPresent: true, TookOver: tookOver}
	}

	s := New(clientID, v, cleanStart, m.defaultMaxQueued, m.defaultPolicy, m.defaultQueueQoS0)
	s.Attach(conn)
	m.sessions[clientID] = s
	return Resolution{Session: s, SessionPresent: false, TookOver: tookOver}
}

// detachConn returns and clears the session's connection without taking
// the session's own lock twice (called from within the manager's lock).
func (s *Session) detachConn() Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.conn
	s.conn = nil
	s.connected = false
	return c
}

// Get returns the session for clientID, if one is currently tracked.
func (m *Manager) Get(clientID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[clientID]
	return s, ok
}

// OnDisconnect detaches the session's connection and, if its session
// expiry interval is zero (or it was a clean session), removes it from
// the table immediately. Otherwise it schedules destruction after the
// expiry interval elapses, per spec §4.3.
//
// conn must be the connection that is tearing down. If a take-over has
// already attached a new connection to this session (spec §9 "take-over
// race"), conn no longer matches and OnDisconnect is a no-op: the
// evicted connection must not detach, expire or destroy state the new
// connection now owns.
func (m *Manager) OnDisconnect(clientID string, conn Conn, destroy func(*Session)) {
	m.mu.Lock()
	s, ok := m.sessions[clientID]
	m.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	current := s.conn == conn
	if current {
		s.conn = nil
		s.connected = false
	}
	s.mu.Unlock()

	if !current {
		return
	}

	if s.CleanStart || s.SessionExpiryInterval == 0 {
		m.drop(clientID)
		if destroy != nil {
			destroy(s)
		}
		return
	}

	s.mu.Lock()
	s.expiryTimer = time.AfterFunc(time.Duration(s.SessionExpiryInterval)*time.Second, func() {
		m.drop(clientID)
		if destroy != nil {
			destroy(s)
		}
	})
	s.mu.Unlock()

	if m.store != nil {
		m.store.Save(s)
	}
}

func (m *Manager) drop(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, clientID)
}

// Len reports the number of sessions currently tracked, live or
// disconnected-but-not-yet-expired.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
