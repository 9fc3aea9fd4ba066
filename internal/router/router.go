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

// Package router implements the fan-out algorithm of spec §4.4: given a
// PUBLISH and the subscription index, compute one delivery per matching
// session at its effective QoS, skip no_local loops, and update the
// retained store. It never touches a socket directly — delivery is
// handed to session.Session, which owns the in-flight list and the
// offline queue with its overflow policy. The client's Receive Maximum
// is not enforced: every QoS>0 delivery to a connected session is sent
// at once.
package router

import (
	"github.com/frenzox/mercurio/internal/packet"
	"github.com/frenzox/mercurio/internal/persistence/retained"
	"github.com/frenzox/mercurio/internal/session"
	"github.com/frenzox/mercurio/internal/topic"
)

// SessionLookup resolves a Client Id to its live Session, used to reach
// the outbound queue of every matching subscriber.
type SessionLookup interface {
	Get(clientID string) (*session.Session, bool)
}

// Router fans a PUBLISH out to every matching subscriber and maintains
// the retained-message store.
type Router struct {
	index    *topic.Index
	sessions SessionLookup
	retained retained.Store
}

func New(index *topic.Index, sessions SessionLookup, retained retained.Store) *Router {
	return &Router{index: index, sessions: sessions, retained: retained}
}

// Publish is spec §4.4's fan-out algorithm. publisherID is the Client Id
// of the originating session, used to skip no_local subscriptions;
// props are the v5 PUBLISH properties attached to every delivery (a
// recipient with subscription identifiers gets a copy carrying them).
func (r *Router) Publish(publisherID, topicName string, payload []byte, qos packet.QoS, retain bool, props *packet.Properties) {
	subs := r.index.Match(topicName)

	// Step 1: collapse multiple matching filters for the same session
	// into a single delivery at the max effective QoS, unioning
	// subscription identifiers.
	type delivery struct {
		qos      packet.QoS
		retainAs bool
		subIDs   []int
		noLocal  bool
	}
	byClient := make(map[string]*delivery, len(subs))
	for _, s := range subs {
		d, ok := byClient[s.ClientID]
		if !ok {
			d = &delivery{}
			byClient[s.ClientID] = d
		}
		eff := packet.Min(qos, packet.QoS(s.Options.MaxQoS))
		if eff > d.qos {
			d.qos = eff
		}
		if s.Options.RetainAsPublished {
			d.retainAs = true
		}
		if s.Options.SubscriptionID != 0 {
			d.subIDs = append(d.subIDs, s.Options.SubscriptionID)
		}
		if s.Options.NoLocal && s.ClientID == publisherID {
			d.noLocal = true
		}
	}

	for clientID, d := range byClient {
		// Step 2: skip no_local loops.
		if d.noLocal {
			continue
		}

		sess, ok := r.sessions.Get(clientID)
		if !ok {
			continue
		}

		outRetain := false
		if d.retainAs {
			outRetain = retain
		}

		r.deliver(sess, topicName, payload, d.qos, outRetain, props, d.subIDs)
	}

	// Step 4: update the retained store.
	if retain && r.retained != nil {
		r.retained.Set(retained.Message{Topic: topicName, Payload: payload, QoS: byte(qos)})
	}
}

// deliver implements step 3: allocate a packet id if needed and hand
// the message to the session. A disconnected session queues it under its
// overflow policy; a connected one gets it at once, without regard to
// its Receive Maximum.
func (r *Router) deliver(sess *session.Session, topicName string, payload []byte, qos packet.QoS, retain bool, props *packet.Properties, subIDs []int) {
	if !sess.Connected() {
		sess.Enqueue(topicName, payload, qos, retain, props)
		return
	}

	if qos == packet.QoS0 {
		sess.Deliver(&session.OutboundMessage{
			Topic:      topicName,
			Payload:    payload,
			QoS:        qos,
			Retain:     retain,
			Properties: withSubIDs(props, subIDs),
		})
		return
	}

	id, ok := sess.AllocID()
	if !ok {
		// 16-bit space exhausted: queue it rather than drop silently.
		sess.Enqueue(topicName, payload, qos, retain, props)
		return
	}

	m := &session.OutboundMessage{
		PacketID:   id,
		Topic:      topicName,
		Payload:    payload,
		QoS:        qos,
		Retain:     retain,
		Properties: withSubIDs(props, subIDs),
		State:      session.PendingPuback,
	}
	if qos == packet.QoS2 {
		m.State = session.PendingPubrec
	}
	sess.PushOutbound(m)
	sess.Deliver(m)
}

func withSubIDs(props *packet.Properties, subIDs []int) *packet.Properties {
	if len(subIDs) == 0 {
		return props
	}
	out := packet.Properties{}
	if props != nil {
		out = *props
	}
	out.SubscriptionIdentifier = subIDs
	return &out
}

// DeliverRetained implements spec §4.4's "retained-message delivery on
// subscribe": for filter, scan the retained store and hand matching
// messages to sess per retainHandling (0=always, 1=only if the
// subscription is new, 2=never).
func (r *Router) DeliverRetained(sess *session.Session, filter string, retainHandling byte, subscriptionIsNew bool, subID int, maxQoS packet.QoS) {
	if retainHandling == 2 || (retainHandling == 1 && !subscriptionIsNew) {
		return
	}
	if r.retained == nil {
		return
	}

	msgs, err := r.retained.Match(filter)
	if err != nil {
		return
	}
	for _, msg := range msgs {
		var props *packet.Properties
		if subID != 0 {
			props = &packet.Properties{SubscriptionIdentifier: []int{subID}}
		}
		r.deliver(sess, msg.Topic, msg.Payload, packet.Min(packet.QoS(msg.QoS), maxQoS), true, props, nil)
	}
}
