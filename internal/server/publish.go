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
	"github.com/frenzox/mercurio/internal/code"
	"github.com/frenzox/mercurio/internal/packet"
	"github.com/frenzox/mercurio/internal/topic"
	"github.com/frenzox/mercurio/internal/xerror"
)

// handlePublish is the per-packet dispatch table's PUBLISH row of spec
// §4.2: route at QoS 0 with no ack, route+PUBACK at QoS 1, dedup+route
// once+PUBREC at QoS 2.
func (c *client) handlePublish(p *packet.Publish) error {
	if !topic.ValidName(p.Topic) {
		return xerror.Protocol(code.TopicNameInvalid, "invalid topic name", nil)
	}
	if uint8(p.QoS) > c.srv.maxQoS {
		return xerror.Protocol(code.QoSNotSupported, "qos exceeds server maximum", nil)
	}

	switch p.QoS {
	case packet.QoS0:
		c.srv.router.Publish(c.clientID, p.Topic, p.Payload, p.QoS, p.Retain, p.Properties)
		return nil

	case packet.QoS1:
		c.srv.router.Publish(c.clientID, p.Topic, p.Payload, p.QoS, p.Retain, p.Properties)
		return c.writePacket(packet.NewPuback(p.Version, p.PacketID, code.Success))

	case packet.QoS2:
		c.mu.Lock()
		sess := c.sess
		c.mu.Unlock()
		if !sess.MarkInboundQoS2(p.PacketID) {
			// Duplicate: resend PUBREC without re-routing (spec §4.2).
			return c.writePacket(packet.NewPubrec(p.Version, p.PacketID, code.Success))
		}
		c.srv.router.Publish(c.clientID, p.Topic, p.Payload, p.QoS, p.Retain, p.Properties)
		return c.writePacket(packet.NewPubrec(p.Version, p.PacketID, code.Success))

	default:
		return xerror.ErrMalformed
	}
}

// handleOutboundComplete handles PUBACK (QoS 1) and PUBCOMP (QoS 2):
// release the outbound packet id, flight complete.
func (c *client) handleOutboundComplete(a *packet.Ack) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	sess.CompleteOutbound(a.PacketID)
	return nil
}

// handlePubrec transitions the outbound flight to PENDING_PUBCOMP and
// answers with PUBREL.
func (c *client) handlePubrec(a *packet.Ack) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	sess.AdvanceOutbound(a.PacketID)
	return c.writePacket(packet.NewPubrel(a.Version, a.PacketID))
}

// handlePubrel releases the inbound packet id (idempotent: a replayed
// PUBREL still elicits PUBCOMP) and answers with PUBCOMP.
func (c *client) handlePubrel(a *packet.Ack) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	sess.ReleaseInboundQoS2(a.PacketID)
	return c.writePacket(packet.NewPubcomp(a.Version, a.PacketID, code.Success))
}
