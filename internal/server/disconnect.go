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
	"github.com/frenzox/mercurio/internal/packet"
)

// handleDisconnect marks the connection clean (suppressing the will,
// unless the v5 reason code says otherwise) and closes after flushing.
func (c *client) handleDisconnect(d *packet.Disconnect) error {
	c.mu.Lock()
	suppressWill := d.SuppressesWill()
	if suppressWill && c.sess != nil {
		c.sess.Will = nil
	}
	c.state = disconnecting
	c.mu.Unlock()

	_ = c.conn.Close()
	return nil
}
