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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frenzox/mercurio/config"
	"github.com/frenzox/mercurio/internal/code"
	"github.com/frenzox/mercurio/internal/packet"
)

func newTestServer(t *testing.T) *server {
	t.Helper()
	s, err := NewServer(WithConfig(config.Default()))
	require.NoError(t, err)
	return s
}

// connectAndRead drives one CONNECT/CONNACK exchange over a net.Pipe,
// running the client's read loop on the goroutine it owns in production.
func connectAndRead(t *testing.T, s *server, cn *packet.Connect) (serverConn net.Conn, clientConn net.Conn, ack *packet.Connack) {
	t.Helper()

	serverConn, clientConn = net.Pipe()
	c := newClient(s, serverConn)
	go c.listen()

	require.NoError(t, cn.Encode(clientConn))

	dec := packet.NewDecoder()
	dec.Bind(cn.Version)
	typ, p, err := dec.ReadPacket(clientConn)
	require.NoError(t, err)
	require.Equal(t, packet.CONNACK, typ)

	return serverConn, clientConn, p.(*packet.Connack)
}

func TestClientConnectAssignsClientIDWhenEmpty(t *testing.T) {
	s := newTestServer(t)
	cn := &packet.Connect{
		Version:       packet.Version311,
		ProtocolName:  "MQTT",
		ProtocolLevel: 4,
		ConnectFlags:  packet.ConnectFlags{CleanStart: true},
	}

	_, clientConn, ack := connectAndRead(t, s, cn)
	defer clientConn.Close()

	assert.Equal(t, code.Success, ack.Code)
	assert.False(t, ack.SessionPresent)
}

func TestClientConnectRejectsEmptyClientIDWithoutCleanStart(t *testing.T) {
	s := newTestServer(t)
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	c := newClient(s, serverConn)
	go c.listen()

	cn := &packet.Connect{
		Version:       packet.Version311,
		ProtocolName:  "MQTT",
		ProtocolLevel: 4,
		ConnectFlags:  packet.ConnectFlags{CleanStart: false},
	}
	require.NoError(t, cn.Encode(clientConn))

	// The server closes the connection rather than sending a CONNACK for
	// this violation; the pipe read unblocks with EOF.
	buf := make([]byte, 1)
	clientConn.SetReadDeadline(time.Now().Add(time.Second))
	_, err := clientConn.Read(buf)
	assert.Error(t, err)
}

func TestClientPingReqGetsPingResp(t *testing.T) {
	s := newTestServer(t)
	cn := &packet.Connect{
		Version:       packet.Version311,
		ProtocolName:  "MQTT",
		ProtocolLevel: 4,
		ConnectFlags:  packet.ConnectFlags{CleanStart: true},
		ClientId:      "client-a",
	}
	_, clientConn, _ := connectAndRead(t, s, cn)
	defer clientConn.Close()

	require.NoError(t, packet.PingReq{}.Encode(clientConn))

	dec := packet.NewDecoder()
	dec.Bind(packet.Version311)
	typ, _, err := dec.ReadPacket(clientConn)
	require.NoError(t, err)
	assert.Equal(t, packet.PINGRESP, typ)
}

func TestClientDisconnectSuppressesWill(t *testing.T) {
	s := newTestServer(t)
	cn := &packet.Connect{
		Version:       packet.Version311,
		ProtocolName:  "MQTT",
		ProtocolLevel: 4,
		ConnectFlags:  packet.ConnectFlags{CleanStart: true, WillFlag: true, WillRetain: true},
		ClientId:      "client-a",
		WillTopic:     "last/will",
		WillMessage:   []byte("bye"),
	}
	_, clientConn, _ := connectAndRead(t, s, cn)
	defer clientConn.Close()

	require.NoError(t, (&packet.Disconnect{Version: packet.Version311, Code: code.NormalDisconnection}).Encode(clientConn))

	// listen()'s teardown runs asynchronously after the socket closes;
	// give it a moment before checking that no will fires. The will is
	// retained, so a published will would show up in the retained store.
	time.Sleep(100 * time.Millisecond)
	_, ok := s.sessions.Get("client-a")
	assert.False(t, ok, "clean_start session must be dropped once disconnected")
	msgs, err := s.retained.Match("last/will")
	require.NoError(t, err)
	assert.Empty(t, msgs, "a clean DISCONNECT must not publish the will")
}

func TestClientSubscribePersistsAndUnsubscribeRemoves(t *testing.T) {
	s := newTestServer(t)
	cn := &packet.Connect{
		Version:       packet.Version311,
		ProtocolName:  "MQTT",
		ProtocolLevel: 4,
		ConnectFlags:  packet.ConnectFlags{CleanStart: true},
		ClientId:      "client-a",
	}
	_, clientConn, _ := connectAndRead(t, s, cn)
	defer clientConn.Close()

	sub := &packet.Subscribe{
		Version:  packet.Version311,
		PacketID: 1,
		Subscriptions: []packet.Subscription{
			{Filter: "a/b", Options: packet.SubscriptionOptions{MaxQoS: packet.QoS1}},
		},
	}
	require.NoError(t, sub.Encode(clientConn))

	dec := packet.NewDecoder()
	dec.Bind(packet.Version311)
	typ, _, err := dec.ReadPacket(clientConn)
	require.NoError(t, err)
	require.Equal(t, packet.SUBACK, typ)

	records, err := s.subs.All()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "client-a", records[0].ClientID)
	assert.Equal(t, "a/b", records[0].Filter)

	unsub := &packet.Unsubscribe{Version: packet.Version311, PacketID: 2, Filters: []string{"a/b"}}
	require.NoError(t, unsub.Encode(clientConn))

	typ, _, err = dec.ReadPacket(clientConn)
	require.NoError(t, err)
	require.Equal(t, packet.UNSUBACK, typ)

	records, err = s.subs.All()
	require.NoError(t, err)
	assert.Empty(t, records, "UNSUBSCRIBE must remove the durable subscription record too")
}

func TestClientTakeOverEvictedConnectionDoesNotTearDownNewOne(t *testing.T) {
	s := newTestServer(t)
	cn := &packet.Connect{
		Version:       packet.Version311,
		ProtocolName:  "MQTT",
		ProtocolLevel: 4,
		ConnectFlags:  packet.ConnectFlags{CleanStart: false, WillFlag: true},
		ClientId:      "client-a",
		WillTopic:     "last/will",
		WillMessage:   []byte("bye"),
	}
	_, clientConn1, _ := connectAndRead(t, s, cn)
	defer clientConn1.Close()

	sub := &packet.Subscribe{
		Version:  packet.Version311,
		PacketID: 1,
		Subscriptions: []packet.Subscription{
			{Filter: "a/b", Options: packet.SubscriptionOptions{MaxQoS: packet.QoS1}},
		},
	}
	require.NoError(t, sub.Encode(clientConn1))
	dec := packet.NewDecoder()
	dec.Bind(packet.Version311)
	typ, _, err := dec.ReadPacket(clientConn1)
	require.NoError(t, err)
	require.Equal(t, packet.SUBACK, typ)

	// A second CONNECT for the same Client Identifier takes over: the
	// first connection's socket is closed out from under it and its
	// listen() goroutine will run teardown() concurrently with this.
	_, clientConn2, ack2 := connectAndRead(t, s, cn)
	defer clientConn2.Close()
	assert.True(t, ack2.SessionPresent)

	// Give the evicted connection's teardown a moment to run.
	time.Sleep(150 * time.Millisecond)

	sess, ok := s.sessions.Get("client-a")
	require.True(t, ok, "the session must survive the evicted connection's teardown")
	assert.True(t, sess.Connected(), "the new connection must still be attached")

	subs := s.topics.Match("a/b")
	require.Len(t, subs, 1, "take-over must not wipe the inherited subscription")
	assert.Equal(t, "client-a", subs[0].ClientID)
}

func TestClientAuthenticationFailureSendsConnack(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Enabled = true
	cfg.Auth.AllowAnonymous = false
	s, err := NewServer(WithConfig(cfg))
	require.NoError(t, err)

	cn := &packet.Connect{
		Version:       packet.Version311,
		ProtocolName:  "MQTT",
		ProtocolLevel: 4,
		ConnectFlags:  packet.ConnectFlags{CleanStart: true},
		ClientId:      "client-a",
	}
	_, clientConn, ack := connectAndRead(t, s, cn)
	defer clientConn.Close()

	assert.Equal(t, code.V3BadUsernameOrPassword, ack.Code)
}
