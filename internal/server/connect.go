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

package server

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/frenzox/mercurio/internal/auth"
	"github.com/frenzox/mercurio/internal/code"
	"github.com/frenzox/mercurio/internal/packet"
	"github.com/frenzox/mercurio/internal/session"
	"github.com/frenzox/mercurio/internal/xerror"
)

// handleConnect implements spec §4.2's five CONNECT resolution steps.
func (c *client) handleConnect(cn *packet.Connect) error {
	c.decoder.Bind(cn.Version)

	// Step 1 is already done by the codec (protocol name/level, reserved
	// bits, will-flag consistency); what is left here is the empty Client
	// Id case. The v3.1.1 Client Id charset/length rule is not enforced.
	clientID := cn.ClientId
	if clientID == "" {
		if cn.Version.IsV5() {
			clientID = uuid.NewString()
		} else if cn.CleanStart {
			clientID = uuid.NewString()
		} else {
			return xerror.Protocol(code.ClientIdentifierNotValid, "empty client id", nil)
		}
	}

	// Step 2: authentication.
	creds := auth.Credentials{
		ClientID:    clientID,
		Username:    cn.Username,
		HasUsername: cn.UsernameFlag,
		Password:    cn.Password,
		HasPassword: cn.PasswordFlag,
	}
	if !c.srv.authn.Authenticate(creds) {
		cd := code.BadUserNameOrPassword
		if cn.Version.IsV5() {
			cd = code.NotAuthorized
		}
		_ = c.writePacket(cn.NewConnack(cd, false))
		return xerror.Auth(cd, "authentication failed")
	}

	keepAlive := cn.KeepAlive
	if c.srv.maxKeepAlive > 0 && (keepAlive == 0 || keepAlive > c.srv.maxKeepAlive) {
		keepAlive = c.srv.maxKeepAlive
	}

	// Step 3: resolve the session, performing take-over if necessary.
	res := c.srv.sessions.AcceptConnect(clientID, cn.Version, cn.CleanStart, c)
	sess := res.Session
	sess.ReceiveMaximum = c.srv.receiveMax
	if cn.Properties != nil {
		if cn.Properties.SessionExpiryInterval != nil {
			sess.SessionExpiryInterval = *cn.Properties.SessionExpiryInterval
		}
		if cn.Properties.ReceiveMaximum != nil {
			sess.ReceiveMaximum = *cn.Properties.ReceiveMaximum
		}
	}
	if cn.WillFlag {
		sess.Will = &session.Will{
			Topic:   cn.WillTopic,
			Payload: cn.WillMessage,
			QoS:     cn.WillQoS,
			Retain:  cn.WillRetain,
		}
		if cn.WillProps != nil {
			sess.Will.Properties = cn.WillProps
			if cn.WillProps.WillDelayInterval != nil {
				sess.Will.DelayInterval = *cn.WillProps.WillDelayInterval
			}
		}
	}

	c.mu.Lock()
	c.clientID = clientID
	c.sess = sess
	c.state = connected
	c.keepAlive = time.Duration(keepAlive) * time.Second
	c.mu.Unlock()
	c.resetKeepAliveDeadline()

	c.log.Info("client connected",
		zap.String("client_id", clientID),
		zap.Bool("clean_start", cn.CleanStart),
		zap.Bool("session_present", res.SessionPresent),
		zap.Bool("took_over", res.TookOver),
	)

	// Step 4: CONNACK.
	ack := cn.NewConnack(code.Success, res.SessionPresent)
	if cn.Version.IsV5() {
		ack.Properties = c.srv.connackProperties(clientID, cn)
	}
	if err := c.writePacket(ack); err != nil {
		return xerror.IO("write connack", err)
	}

	// Step 5: resend in-flight outbound state first, then deliver queued
	// messages, so redelivered PUBLISHes always precede new ones (spec
	// §4.3/§8 scenario 6). A QoS 2 item already past PENDING_PUBREC only
	// gets its PUBREL resent, never a second PUBLISH.
	for _, om := range sess.OutboundSnapshot() {
		if om.State == session.PendingPubcomp {
			c.writePacket(packet.NewPubrel(cn.Version, om.PacketID))
			continue
		}
		om2 := *om
		om2.Dup = true
		c.Deliver(&om2)
	}
	for _, m := range sess.DequeueAll() {
		om := &session.OutboundMessage{Topic: m.Topic(), Payload: m.Payload(), QoS: m.QoS(), Retain: m.Retain(), Properties: m.Properties()}
		if om.QoS != packet.QoS0 {
			id, ok := sess.AllocID()
			if !ok {
				sess.Enqueue(om.Topic, om.Payload, om.QoS, om.Retain, om.Properties)
				continue
			}
			om.PacketID, om.State = id, session.PendingPuback
			if om.QoS == packet.QoS2 {
				om.State = session.PendingPubrec
			}
			sess.PushOutbound(om)
		}
		c.Deliver(om)
	}

	return nil
}

// connackProperties builds the v5 CONNACK properties: receive maximum,
// maximum packet size and topic alias maximum when configured (> 0), the
// assigned client id when the client sent none, and server keep alive
// when the client's keep alive exceeds the configured maximum.
func (c *client) connackProperties(clientID string, cn *packet.Connect) *packet.Properties {
	props := &packet.Properties{}
	if c.srv.receiveMax > 0 {
		props.ReceiveMaximum = &c.srv.receiveMax
	}
	if c.srv.maxPacketSize > 0 {
		props.MaximumPacketSize = &c.srv.maxPacketSize
	}
	if c.srv.topicAliasMax > 0 {
		props.TopicAliasMaximum = &c.srv.topicAliasMax
	}
	if cn.ClientId == "" {
		props.AssignedClientIdentifier = clientID
	}
	if c.srv.maxKeepAlive > 0 && cn.KeepAlive > c.srv.maxKeepAlive {
		ka := c.srv.maxKeepAlive
		props.ServerKeepAlive = &ka
	}
	return props
}
