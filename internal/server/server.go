/*
 *    Copyright 2021 chenquan
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

// Package server implements the accept loop and per-connection protocol
// state machine: server owns the shared session table, subscription
// index and retained store; client is one accepted connection's
// CONNECT-to-DISCONNECT lifecycle.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/frenzox/mercurio/config"
	"github.com/frenzox/mercurio/internal/auth"
	"github.com/frenzox/mercurio/internal/code"
	"github.com/frenzox/mercurio/internal/goroutine"
	"github.com/frenzox/mercurio/internal/packet"
	"github.com/frenzox/mercurio/internal/persistence/retained"
	persistsession "github.com/frenzox/mercurio/internal/persistence/session"
	"github.com/frenzox/mercurio/internal/persistence/subscription"
	"github.com/frenzox/mercurio/internal/router"
	"github.com/frenzox/mercurio/internal/session"
	"github.com/frenzox/mercurio/internal/topic"
	"github.com/frenzox/mercurio/internal/xlog"
	"github.com/frenzox/mercurio/internal/xtrace"
)

type (
	Server interface {
		ServeTCP() error
		Stop(ctx context.Context) error
	}

	Option func(*Options)

	Options struct {
		listen string
		cfg    *config.Config
		authn  auth.Authenticator
	}

	server struct {
		listen string
		cfg    *config.Config

		listener net.Listener
		log      *zap.Logger
		tracer   trace.Tracer

		sessions *session.Manager
		topics   *topic.Index
		router   *router.Router
		retained retained.Store
		subs     subscription.Store
		authn    auth.Authenticator

		maxQoS            uint8
		maxKeepAlive      uint16
		receiveMax        uint16
		topicAliasMax     uint16
		maxPacketSize     uint32
		wildcardAvailable bool
		retainAvailable   bool
		connectTimeout    time.Duration
		shutdownDeadline  time.Duration

		clientsMu sync.Mutex
		clients   map[*client]struct{}
		shutdown  bool
	}
)

func WithListen(listen string) Option {
	return func(o *Options) { o.listen = listen }
}

func WithConfig(cfg *config.Config) Option {
	return func(o *Options) { o.cfg = cfg }
}

func WithAuthenticator(a auth.Authenticator) Option {
	return func(o *Options) { o.authn = a }
}

func loadServerOptions(opts ...Option) *Options {
	o := &Options{cfg: config.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.listen == "" {
		o.listen = fmt.Sprintf("%s:%d", o.cfg.Server.Host, o.cfg.Server.Port)
	}
	if o.authn == nil {
		o.authn = buildAuthenticator(&o.cfg.Auth)
	}
	return o
}

func buildAuthenticator(a *config.Auth) auth.Authenticator {
	if !a.Enabled {
		return auth.Disabled{}
	}
	var base auth.Authenticator = auth.StaticTable{Users: map[string]string{}}
	if a.AllowAnonymous {
		return auth.AllowAnonymous{Next: base}
	}
	return base
}

// sessionLookup adapts *session.Manager to router.SessionLookup.
type sessionLookup struct{ m *session.Manager }

func (l sessionLookup) Get(clientID string) (*session.Session, bool) { return l.m.Get(clientID) }

func overflowPolicyFromConfig(mode string) session.OverflowPolicy {
	switch mode {
	case "drop_newest":
		return session.DropNewest
	case "reject_publish":
		return session.RejectPublish
	default:
		return session.DropOldest
	}
}

// NewServer wires up the session table, subscription index, retained
// store and router from cfg, taking each store from its persistence
// package's GetStore factory.
func NewServer(opts ...Option) (*server, error) {
	o := loadServerOptions(opts...)
	cfg := o.cfg

	s := &server{
		listen:            o.listen,
		cfg:               cfg,
		log:               xlog.LoggerModule("server"),
		authn:             o.authn,
		topics:            topic.NewIndex(),
		maxQoS:            cfg.Mqtt.MaximumQoS,
		maxKeepAlive:      cfg.Mqtt.MaxKeepAlive,
		receiveMax:        cfg.Mqtt.ReceiveMax,
		topicAliasMax:     cfg.Mqtt.TopicAliasMax,
		maxPacketSize:     cfg.Server.MaxPacketSize,
		wildcardAvailable: cfg.Mqtt.WildcardAvailable,
		retainAvailable:   cfg.Mqtt.RetainAvailable,
		connectTimeout:    time.Duration(cfg.Server.ConnectTimeoutSecs) * time.Second,
		shutdownDeadline:  5 * time.Second,
		clients:           make(map[*client]struct{}),
	}

	sessionStore, err := persistsession.GetStore(cfg.Persistence.Session.Type, &cfg.Persistence.Session)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	s.sessions = session.NewManager(cfg.Mqtt.MaxQueueMessages, overflowPolicyFromConfig(cfg.Mqtt.QueueOverflowPolicy), cfg.Mqtt.QueueQos0Msg).
		WithStore(&sessionStoreAdapter{store: sessionStore})

	subStore, err := subscription.GetStore(cfg.Persistence.Subscription.Type, &cfg.Persistence.Subscription)
	if err != nil {
		return nil, fmt.Errorf("subscription store: %w", err)
	}
	s.subs = subStore
	s.hydrateSubscriptions()

	retainedStore, err := retained.GetStore(cfg.Persistence.Retained.Type, &cfg.Persistence.Retained)
	if err != nil {
		return nil, fmt.Errorf("retained store: %w", err)
	}
	s.retained = retainedStore

	s.router = router.New(s.topics, sessionLookup{s.sessions}, s.retained)

	return s, nil
}

func (s *server) hydrateSubscriptions() {
	records, err := s.subs.All()
	if err != nil {
		s.log.Warn("subscription hydration failed", zap.Error(err))
		return
	}
	for _, r := range records {
		s.topics.Subscribe(r.ClientID, r.Filter, r.Options)
	}
}

// ServeTCP runs the accept loop until Stop closes the listener.
func (s *server) ServeTCP() error {
	s.tracer = otel.GetTracerProvider().Tracer(xtrace.Name)

	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.listen, err)
	}
	s.listener = ln
	s.log.Info("listening", zap.String("addr", s.listen))

	var tempDelay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isShuttingDown() {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if m := time.Second; tempDelay > m {
					tempDelay = m
				}
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0

		if s.atCapacity() {
			_ = conn.Close()
			continue
		}

		c := newClient(s, conn)
		s.trackClient(c, true)
		goroutine.Go(func() {
			defer s.trackClient(c, false)
			c.listen()
		})
	}
}

func (s *server) atCapacity() bool {
	if s.cfg.Server.MaxConnections <= 0 {
		return false
	}
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients) >= s.cfg.Server.MaxConnections
}

func (s *server) trackClient(c *client, add bool) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if add {
		s.clients[c] = struct{}{}
	} else {
		delete(s.clients, c)
	}
}

func (s *server) isShuttingDown() bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return s.shutdown
}

// Stop implements the shutdown coordination: stop accepting, DISCONNECT
// (v5, ServerShuttingDown) or close (v3.x) every connected client, wait
// up to the deadline for their write buffers to drain, then release the
// worker pool.
func (s *server) Stop(ctx context.Context) error {
	s.clientsMu.Lock()
	s.shutdown = true
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()

	if s.listener != nil {
		_ = s.listener.Close()
	}

	for _, c := range clients {
		if c.decoder.Version.IsV5() {
			c.sendDisconnect(code.ServerShuttingDown)
		} else {
			_ = c.conn.Close()
		}
	}

	deadline := time.NewTimer(s.shutdownDeadline)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

wait:
	for {
		s.clientsMu.Lock()
		remaining := len(s.clients)
		s.clientsMu.Unlock()
		if remaining == 0 {
			break wait
		}
		select {
		case <-ctx.Done():
			break wait
		case <-deadline.C:
			break wait
		case <-tick.C:
		}
	}

	goroutine.Release()
	return nil
}

// publishWill fans out sess's will message, if one is set, honoring v5
// will_delay_interval: the will is deferred unless the session resumes
// (reattaches a connection) before the delay elapses.
func (s *server) publishWill(sess *session.Session) {
	will := sess.Will
	if will == nil {
		return
	}

	publish := func() {
		s.router.Publish(sess.ClientID, will.Topic, will.Payload, will.QoS, will.Retain, will.Properties)
	}

	if will.DelayInterval == 0 {
		publish()
		return
	}
	time.AfterFunc(time.Duration(will.DelayInterval)*time.Second, func() {
		if !sess.Connected() {
			publish()
		}
	})
}

// sessionStoreAdapter bridges persistence/session.Store (durable
// Records) to session.Store (live *session.Session), translating between
// the two shapes at the hydrate/save boundary.
type sessionStoreAdapter struct {
	store persistsession.Store
}

func (a *sessionStoreAdapter) Load(clientID string) (*session.Session, bool) {
	rec, ok, err := a.store.Get(clientID)
	if err != nil || !ok {
		return nil, false
	}

	s := session.New(clientID, packet.Version(rec.Version), false, 1000, session.DropOldest, false)
	s.SessionExpiryInterval = rec.SessionExpiryInterval
	s.ReceiveMaximum = rec.ReceiveMaximum
	if rec.HasWill {
		s.Will = &session.Will{
			Topic:         rec.WillTopic,
			Payload:       rec.WillPayload,
			QoS:           packet.QoS(rec.WillQoS),
			Retain:        rec.WillRetain,
			DelayInterval: rec.WillDelayInterval,
		}
	}
	return s, true
}

func (a *sessionStoreAdapter) Save(s *session.Session) error {
	rec := &persistsession.Record{
		ClientID:              s.ClientID,
		Version:               byte(s.Version),
		SessionExpiryInterval: s.SessionExpiryInterval,
		ReceiveMaximum:        s.ReceiveMaximum,
	}
	if s.Will != nil {
		rec.HasWill = true
		rec.WillTopic = s.Will.Topic
		rec.WillPayload = s.Will.Payload
		rec.WillQoS = byte(s.Will.QoS)
		rec.WillRetain = s.Will.Retain
		rec.WillDelayInterval = s.Will.DelayInterval
	}
	return a.store.Set(rec)
}

func (a *sessionStoreAdapter) Delete(clientID string) error {
	return a.store.Delete(clientID)
}
