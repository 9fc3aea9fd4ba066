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

package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/frenzox/mercurio/internal/code"
	"github.com/frenzox/mercurio/internal/packet"
	"github.com/frenzox/mercurio/internal/session"
	"github.com/frenzox/mercurio/internal/xerror"
)

// connState is the per-connection protocol state of spec §4.2.
type connState int

const (
	awaitingConnect connState = iota
	connected
	disconnecting
	closed
)

// client is one accepted TCP connection and its MQTT protocol state
// machine. It owns the socket and the decoder; the attached
// session.Session owns everything that must outlive the socket.
type client struct {
	srv  *server
	conn net.Conn
	log  *zap.Logger

	w *bufio.Writer

	mu       sync.Mutex
	state    connState
	decoder  *packet.Decoder
	sess     *session.Session
	clientID string

	connectDeadline time.Time
	keepAlive       time.Duration
}

func newClient(s *server, conn net.Conn) *client {
	return &client{
		srv:     s,
		conn:    conn,
		log:     s.log,
		w:       bufio.NewWriter(conn),
		decoder: packet.NewDecoder(),
		state:   awaitingConnect,
	}
}

// Close implements session.Conn: take-over closes the socket of the
// connection it is superseding.
func (c *client) Close() error {
	c.mu.Lock()
	c.state = closed
	c.mu.Unlock()
	return c.conn.Close()
}

// Deliver implements session.Conn: write one outbound application
// message to the socket, converting it to a PUBLISH at the connection's
// negotiated protocol version.
func (c *client) Deliver(m *session.OutboundMessage) bool {
	p := &packet.Publish{
		Version:    c.decoder.Version,
		Dup:        m.Dup,
		QoS:        m.QoS,
		Retain:     m.Retain,
		Topic:      m.Topic,
		PacketID:   m.PacketID,
		Properties: m.Properties,
		Payload:    m.Payload,
	}
	return c.writePacket(p) == nil
}

// listen is the connection's read loop, run on the worker pool. It
// never returns until the socket is closed or a protocol violation ends
// the session.
func (c *client) listen() {
	defer c.teardown()

	c.mu.Lock()
	c.connectDeadline = time.Now().Add(c.srv.connectTimeout)
	c.mu.Unlock()
	_ = c.conn.SetReadDeadline(c.connectDeadline)

	for {
		typ, p, err := c.decoder.ReadPacket(c.conn)
		if err != nil {
			c.handleReadError(err)
			return
		}

		c.resetKeepAliveDeadline()

		if err := c.dispatch(typ, p); err != nil {
			c.handleProtocolError(err)
			return
		}

		c.mu.Lock()
		st := c.state
		c.mu.Unlock()
		if st == closed {
			return
		}
	}
}

func (c *client) handleReadError(err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		c.log.Debug("keep-alive timeout", zap.String("client_id", c.clientID))
		if c.decoder.Version.IsV5() {
			c.sendDisconnect(code.KeepAliveTimeout)
		}
		return
	}
	c.log.Debug("read error", zap.Error(err))
}

func (c *client) handleProtocolError(err error) {
	xe, ok := xerror.As(err)
	if !ok {
		c.log.Debug("connection error", zap.Error(err))
		return
	}
	c.log.Debug("protocol violation", zap.String("client_id", c.clientID), zap.Error(xe))
	if c.decoder.Version.IsV5() && c.decoder.Version != 0 {
		c.sendDisconnect(xe.Code)
	}
}

func (c *client) resetKeepAliveDeadline() {
	c.mu.Lock()
	ka := c.keepAlive
	c.mu.Unlock()
	if ka == 0 {
		_ = c.conn.SetReadDeadline(time.Time{})
		return
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(ka + ka/2))
}

func (c *client) dispatch(typ packet.Type, p packet.Encoder) error {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()

	if st == awaitingConnect && typ != packet.CONNECT {
		return xerror.Protocol(code.ProtocolError, "first packet must be CONNECT", nil)
	}

	switch typ {
	case packet.CONNECT:
		return c.handleConnect(p.(*packet.Connect))
	case packet.PUBLISH:
		return c.handlePublish(p.(*packet.Publish))
	case packet.PUBACK, packet.PUBCOMP:
		return c.handleOutboundComplete(p.(*packet.Ack))
	case packet.PUBREC:
		return c.handlePubrec(p.(*packet.Ack))
	case packet.PUBREL:
		return c.handlePubrel(p.(*packet.Ack))
	case packet.SUBSCRIBE:
		return c.handleSubscribe(p.(*packet.Subscribe))
	case packet.UNSUBSCRIBE:
		return c.handleUnsubscribe(p.(*packet.Unsubscribe))
	case packet.PINGREQ:
		return c.writePacket(packet.PingResp{})
	case packet.DISCONNECT:
		return c.handleDisconnect(p.(*packet.Disconnect))
	case packet.AUTH:
		return nil // extended auth exchanges are not implemented; accepted as a no-op
	default:
		return xerror.ErrMalformed
	}
}

// writePacket encodes and flushes p. A write that stays blocked for 30s
// fails, and any failed write closes the connection.
func (c *client) writePacket(p packet.Encoder) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	err := p.Encode(c.w)
	if err == nil {
		err = c.w.Flush()
	}
	if err != nil {
		_ = c.conn.Close()
	}
	return err
}

func (c *client) sendDisconnect(cd code.Code) {
	_ = c.writePacket(&packet.Disconnect{Version: c.decoder.Version, Code: cd})
	c.mu.Lock()
	c.state = closed
	c.mu.Unlock()
	_ = c.conn.Close()
}

// teardown runs when listen() returns for any reason: detach from the
// session table and schedule the will, if the session still has one
// (spec §5 "Cancellation").
//
// If a take-over has already attached a new connection to this session
// (spec §9 "take-over race"), this connection was only evicted, not
// disconnected: it must not publish the will or touch session state the
// new connection now owns.
func (c *client) teardown() {
	c.mu.Lock()
	cid := c.clientID
	sess := c.sess
	c.mu.Unlock()

	_ = c.conn.Close()

	if cid == "" {
		return // never completed CONNECT
	}

	if sess != nil && !sess.IsCurrentConn(c) {
		return
	}

	// A DISCONNECT that suppresses the will has already cleared it
	// (handleDisconnect); a v5 DISCONNECT with a non-zero reason keeps it.
	if sess != nil {
		c.srv.publishWill(sess)
	}

	c.srv.sessions.OnDisconnect(cid, c, func(s *session.Session) {
		c.srv.topics.RemoveSession(cid)
		if err := c.srv.subs.DeleteClient(cid); err != nil {
			c.log.Warn("subscription persistence cleanup failed", zap.String("client_id", cid), zap.Error(err))
		}
	})
}
