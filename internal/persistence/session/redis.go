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

package session

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/frenzox/mercurio/config"
)

// redisStore backs session Records with one Redis string key per client
// (prefix + Client Id, expiring with the session expiry interval), so
// clean_start=false resumption survives a broker restart. Records are
// msgpack-encoded: compact, schema-tolerant to field additions, and
// already used elsewhere in this module for the same reason.
type redisStore struct {
	client *redis.Client
	prefix string
}

func newRedisStore(cfg *config.SessionPersistence) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	prefix := cfg.Redis.KeyPrefix
	if prefix == "" {
		prefix = "mercurio:session:"
	}
	return &redisStore{client: client, prefix: prefix}, nil
}

func (s *redisStore) key(clientID string) string {
	return s.prefix + clientID
}

func (s *redisStore) Get(clientID string) (*Record, bool, error) {
	raw, err := s.client.Get(context.Background(), s.key(clientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var r Record
	if err := msgpack.Unmarshal(raw, &r); err != nil {
		return nil, false, err
	}
	return &r, true, nil
}

func (s *redisStore) Set(r *Record) error {
	raw, err := msgpack.Marshal(r)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if r.SessionExpiryInterval > 0 {
		ttl = time.Duration(r.SessionExpiryInterval) * time.Second
	}
	return s.client.Set(context.Background(), s.key(r.ClientID), raw, ttl).Err()
}

func (s *redisStore) Delete(clientID string) error {
	return s.client.Del(context.Background(), s.key(clientID)).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
