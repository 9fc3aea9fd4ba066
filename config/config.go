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

package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type Configuration interface {
	// Validate validates the configuration.
	// If it returns an error, the broker will not start.
	Validate() error
}

// Config is the top-level, TOML-decoded broker configuration.
type Config struct {
	Server      Server      `toml:"server" validate:"required"`
	Mqtt        Mqtt        `toml:"mqtt"`
	Logging     Logging     `toml:"logging"`
	Auth        Auth        `toml:"auth"`
	Persistence Persistence `toml:"persistence"`
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Mqtt.MaximumQoS > 2 {
		return fmt.Errorf("config: mqtt.maximum_qos must be 0, 1 or 2, got %d", c.Mqtt.MaximumQoS)
	}
	switch c.Mqtt.DeliveryMode {
	case "", "overlap", "onlyonce":
	default:
		return fmt.Errorf("config: mqtt.delivery_mode must be \"overlap\" or \"onlyonce\", got %q", c.Mqtt.DeliveryMode)
	}
	switch c.Mqtt.QueueOverflowPolicy {
	case "", "drop_oldest", "drop_newest", "reject_publish":
	default:
		return fmt.Errorf("config: mqtt.queue_overflow_policy must be \"drop_oldest\", \"drop_newest\" or \"reject_publish\", got %q", c.Mqtt.QueueOverflowPolicy)
	}
	return nil
}

// Server holds the listener and accept-loop tunables from spec §6.
type Server struct {
	Host               string `toml:"host" validate:"required"`
	Port               uint16 `toml:"port" validate:"required"`
	MaxConnections     int    `toml:"max_connections"`
	ConnectTimeoutSecs int    `toml:"connect_timeout_secs"`
	MaxQueuedMessages  int    `toml:"max_queued_messages"`
	MaxPacketSize      uint32 `toml:"max_packet_size"`
}

// Logging configures the zap-based logger (internal/xlog).
type Logging struct {
	Level      string `toml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Auth configures the internal/auth credential check.
type Auth struct {
	Enabled         bool `toml:"enabled"`
	AllowAnonymous  bool `toml:"allow_anonymous"`
}

// Mqtt holds the protocol-behavior tunables from the broker's original
// configuration surface, extended with v5 and persistence-adjacent
// knobs the distilled spec's server.* table doesn't itemize directly.
type Mqtt struct {
	// SessionExpiry is the maximum session expiry interval in seconds.
	SessionExpiry time.Duration `toml:"session_expiry"`
	// SessionExpiryCheckInterval is the interval time for session expiry checker to check whether there
	// are expired sessions.
	SessionExpiryCheckInterval time.Duration `toml:"session_expiry_check_interval"`
	// MessageExpiry is the maximum lifetime of the message in seconds.
	MessageExpiry time.Duration `toml:"message_expiry"`
	// InflightExpiry is the lifetime of the "inflight" message in seconds.
	InflightExpiry time.Duration `toml:"inflight_expiry"`
	// MaxPacketSize is the maximum packet size that the server is willing to accept from the client.
	MaxPacketSize uint32 `toml:"max_packet_size"`
	// ReceiveMax limits the number of QoS 1 and QoS 2 publications that the server is willing to process concurrently for the client.
	ReceiveMax uint16 `toml:"server_receive_maximum"`
	// MaxKeepAlive is the maximum keep alive time in seconds allowed by the server.
	MaxKeepAlive uint16 `toml:"max_keepalive"`
	// TopicAliasMax indicates the highest value the server will accept as a Topic Alias. No-op for v3.x.
	TopicAliasMax uint16 `toml:"topic_alias_maximum"`
	// SubscriptionIDAvailable indicates whether the server supports Subscription Identifiers. No-op for v3.x.
	SubscriptionIDAvailable bool `toml:"subscription_identifier_available"`
	// SharedSubAvailable indicates whether the server supports Shared Subscriptions.
	SharedSubAvailable bool `toml:"shared_subscription_available"`
	// WildcardAvailable indicates whether the server supports Wildcard Subscriptions.
	WildcardAvailable bool `toml:"wildcard_subscription_available"`
	// RetainAvailable indicates whether the server supports retained messages.
	RetainAvailable bool `toml:"retain_available"`
	// MaxQueueMessages is the maximum queue length of outgoing messages for an offline session.
	MaxQueueMessages int `toml:"max_queue_messages"`
	// MaxInflight limits the in-flight length of outgoing messages.
	MaxInflight uint16 `toml:"max_inflight"`
	// MaximumQoS is the highest QoS level permitted for a Publish.
	MaximumQoS uint8 `toml:"maximum_qos"`
	// QueueQos0Msg indicates whether to store QoS 0 messages for an offline session.
	QueueQos0Msg bool `toml:"queue_qos0_messages"`
	// DeliveryMode is "overlap" (deliver once per matching subscription, at that subscription's
	// effective QoS) or "onlyonce" (deliver once, at the max QoS of all matching subscriptions).
	DeliveryMode string `toml:"delivery_mode"`
	// QueueOverflowPolicy decides what happens when a session's offline queue is full:
	// "drop_oldest" (default), "drop_newest" or "reject_publish".
	QueueOverflowPolicy string `toml:"queue_overflow_policy"`
	// AllowZeroLenClientId indicates whether to allow a client to connect with an empty client id.
	AllowZeroLenClientId bool `toml:"allow_zero_len_client_id"`
}

// Persistence groups the durable-storage configuration for sessions,
// subscriptions and retained messages (spec §6 "Persisted state
// layout"), each independently selectable between "memory" and "redis".
type Persistence struct {
	Session      SessionPersistence      `toml:"session"`
	Subscription SubscriptionPersistence `toml:"subscription"`
	Retained     RetainedPersistence     `toml:"retained"`
}

// Redis is the connection configuration shared by every redis-backed
// persistence.Store implementation.
type Redis struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
}

type SessionPersistence struct {
	Type  string `toml:"type" validate:"omitempty,oneof=memory redis"`
	Redis Redis  `toml:"redis"`
}

type SubscriptionPersistence struct {
	Type  string `toml:"type" validate:"omitempty,oneof=memory redis"`
	Redis Redis  `toml:"redis"`
}

type RetainedPersistence struct {
	Type  string `toml:"type" validate:"omitempty,oneof=memory redis"`
	Redis Redis  `toml:"redis"`
}

// Default returns the configuration applied before a TOML file (or
// flag overrides) is layered on top, matching the defaults table of
// spec §6.
func Default() *Config {
	return &Config{
		Server: Server{
			Host:               "127.0.0.1",
			Port:               1883,
			MaxConnections:     10000,
			ConnectTimeoutSecs: 10,
			MaxQueuedMessages:  1000,
			MaxPacketSize:      268435455,
		},
		Mqtt: Mqtt{
			MaxPacketSize:       268435455,
			MaxQueueMessages:    1000,
			MaximumQoS:          2,
			DeliveryMode:        "overlap",
			QueueOverflowPolicy: "drop_oldest",
		},
		Logging: Logging{
			Level: "info",
		},
		Auth: Auth{
			Enabled:        false,
			AllowAnonymous: true,
		},
		Persistence: Persistence{
			Session:      SessionPersistence{Type: "memory"},
			Subscription: SubscriptionPersistence{Type: "memory"},
			Retained:     RetainedPersistence{Type: "memory"},
		},
	}
}
