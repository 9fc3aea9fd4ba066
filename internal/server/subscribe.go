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
	"strings"

	"go.uber.org/zap"

	"github.com/frenzox/mercurio/internal/code"
	"github.com/frenzox/mercurio/internal/packet"
	"github.com/frenzox/mercurio/internal/persistence/subscription"
	"github.com/frenzox/mercurio/internal/topic"
)

// handleSubscribe registers each filter, answers with one reason code
// per filter in order, then delivers matching retained messages (spec
// §4.2/§4.4).
func (c *client) handleSubscribe(s *packet.Subscribe) error {
	c.mu.Lock()
	clientID := c.clientID
	c.mu.Unlock()

	var subID int
	if s.Properties != nil && len(s.Properties.SubscriptionIdentifier) > 0 {
		subID = s.Properties.SubscriptionIdentifier[0]
	}

	ack := &packet.Suback{Version: s.Version, PacketID: s.PacketID}
	type delivery struct {
		filter         string
		retainHandling byte
		isNew          bool
		maxQoS         packet.QoS
	}
	var retainDeliveries []delivery

	for _, sub := range s.Subscriptions {
		if !topic.ValidFilter(sub.Filter) {
			ack.Codes = append(ack.Codes, code.TopicFilterInvalid)
			continue
		}
		if strings.HasPrefix(sub.Filter, "$share/") {
			ack.Codes = append(ack.Codes, code.SharedSubscriptionsNotSupported)
			continue
		}
		if !c.srv.wildcardAvailable && strings.ContainsAny(sub.Filter, "+#") {
			ack.Codes = append(ack.Codes, code.WildcardSubscriptionsNotSupported)
			continue
		}

		grantedQoS := sub.Options.MaxQoS
		if uint8(grantedQoS) > c.srv.maxQoS {
			grantedQoS = packet.QoS(c.srv.maxQoS)
		}

		opts := topic.Options{
			MaxQoS:            byte(grantedQoS),
			NoLocal:           sub.Options.NoLocal,
			RetainAsPublished: sub.Options.RetainAsPublished,
			RetainHandling:    byte(sub.Options.RetainHandling),
			SubscriptionID:    subID,
		}
		existed := c.srv.topics.Subscribe(clientID, sub.Filter, opts)
		ack.Codes = append(ack.Codes, code.Code(grantedQoS))

		if err := c.srv.subs.Save(subscription.Record{ClientID: clientID, Filter: sub.Filter, Options: opts}); err != nil {
			c.log.Warn("subscription persistence failed", zap.String("filter", sub.Filter), zap.Error(err))
		}

		if c.srv.retainAvailable {
			retainDeliveries = append(retainDeliveries, delivery{
				filter:         sub.Filter,
				retainHandling: opts.RetainHandling,
				isNew:          !existed,
				maxQoS:         grantedQoS,
			})
		}
	}

	if err := c.writePacket(ack); err != nil {
		return err
	}

	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	for _, d := range retainDeliveries {
		c.srv.router.DeliverRetained(sess, d.filter, d.retainHandling, d.isNew, subID, d.maxQoS)
	}

	return nil
}

// handleUnsubscribe removes each filter and answers with UNSUBACK.
func (c *client) handleUnsubscribe(u *packet.Unsubscribe) error {
	c.mu.Lock()
	clientID := c.clientID
	c.mu.Unlock()

	ack := &packet.Unsuback{Version: u.Version, PacketID: u.PacketID}
	for _, filter := range u.Filters {
		existed := c.srv.topics.Unsubscribe(clientID, filter)
		if existed {
			if err := c.srv.subs.Delete(clientID, filter); err != nil {
				c.log.Warn("subscription persistence delete failed", zap.String("filter", filter), zap.Error(err))
			}
		}
		if !u.Version.IsV5() {
			continue
		}
		if existed {
			ack.Codes = append(ack.Codes, code.Success)
		} else {
			ack.Codes = append(ack.Codes, code.NoSubscriptionExisted)
		}
	}
	return c.writePacket(ack)
}
