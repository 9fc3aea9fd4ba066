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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frenzox/mercurio/config"
	"github.com/frenzox/mercurio/internal/packet"
	"github.com/frenzox/mercurio/internal/session"
)

func TestClientResumeResendsPubrelOnlyForPendingPubcompBeforeQueuedMessages(t *testing.T) {
	// The queued message below is QoS 0, which the session only keeps
	// when QoS 0 queueing is on (it is off by default).
	cfg := config.Default()
	cfg.Mqtt.QueueQos0Msg = true
	s, err := NewServer(WithConfig(cfg))
	require.NoError(t, err)
	cn := &packet.Connect{
		Version:       packet.Version311,
		ProtocolName:  "MQTT",
		ProtocolLevel: 4,
		ConnectFlags:  packet.ConnectFlags{CleanStart: false},
		ClientId:      "client-a",
	}
	_, clientConn1, _ := connectAndRead(t, s, cn)

	sess, ok := s.sessions.Get("client-a")
	require.True(t, ok)
	sess.SessionExpiryInterval = 3600

	// One QoS 2 item already past PUBREC (only its PUBREL must be
	// resent), one QoS 1 item still awaiting PUBACK (resent as PUBLISH
	// with DUP=1), and one offline-queued message that must arrive after
	// both.
	sess.PushOutbound(&session.OutboundMessage{PacketID: 1, Topic: "a/b", QoS: packet.QoS2, State: session.PendingPubcomp})
	sess.PushOutbound(&session.OutboundMessage{PacketID: 2, Topic: "c/d", QoS: packet.QoS1, State: session.PendingPuback})
	sess.Enqueue("e/f", []byte("queued"), packet.QoS0, false, nil)

	clientConn1.Close()

	// Reconnect and resume: clean_start=false, same Client Identifier.
	_, clientConn2, ack := connectAndRead(t, s, cn)
	defer clientConn2.Close()
	assert.True(t, ack.SessionPresent)

	dec := packet.NewDecoder()
	dec.Bind(packet.Version311)

	typ1, p1, err := dec.ReadPacket(clientConn2)
	require.NoError(t, err)
	require.Equal(t, packet.PUBREL, typ1, "a PendingPubcomp item must resend only its PUBREL, not a PUBLISH")
	assert.Equal(t, uint16(1), p1.(*packet.Ack).PacketID)

	typ2, p2, err := dec.ReadPacket(clientConn2)
	require.NoError(t, err)
	require.Equal(t, packet.PUBLISH, typ2)
	pub2 := p2.(*packet.Publish)
	assert.Equal(t, uint16(2), pub2.PacketID)
	assert.True(t, pub2.Dup, "a resent in-flight PUBLISH must carry DUP=1")

	typ3, p3, err := dec.ReadPacket(clientConn2)
	require.NoError(t, err)
	require.Equal(t, packet.PUBLISH, typ3, "queued messages are delivered only after in-flight redelivery")
	assert.Equal(t, "e/f", p3.(*packet.Publish).Topic)
}
