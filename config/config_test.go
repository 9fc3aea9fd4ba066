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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsMissingServerHost(t *testing.T) {
	cfg := Default()
	cfg.Server.Host = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMaximumQoSAboveTwo(t *testing.T) {
	cfg := Default()
	cfg.Mqtt.MaximumQoS = 3
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownDeliveryMode(t *testing.T) {
	cfg := Default()
	cfg.Mqtt.DeliveryMode = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownQueueOverflowPolicy(t *testing.T) {
	cfg := Default()
	cfg.Mqtt.QueueOverflowPolicy = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsEachQueueOverflowPolicy(t *testing.T) {
	for _, p := range []string{"", "drop_oldest", "drop_newest", "reject_publish"} {
		cfg := Default()
		cfg.Mqtt.QueueOverflowPolicy = p
		assert.NoErrorf(t, cfg.Validate(), "policy %q should be valid", p)
	}
}

func TestValidateRejectsBadLoggingLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())
}
