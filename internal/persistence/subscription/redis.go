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

package subscription

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/frenzox/mercurio/config"
)

// redisStore keeps every subscription Record as a field of one Redis
// hash, so All() is a single HGETALL rather than a key scan.
type redisStore struct {
	client *redis.Client
	key    string
}

func newRedisStore(cfg *config.SubscriptionPersistence) (Store, error) {
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

	key := cfg.Redis.KeyPrefix
	if key == "" {
		key = "mercurio:subscriptions"
	}
	return &redisStore{client: client, key: key}, nil
}

func (s *redisStore) All() ([]Record, error) {
	fields, err := s.client.HGetAll(context.Background(), s.key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(fields))
	for _, raw := range fields {
		var r Record
		if err := msgpack.Unmarshal([]byte(raw), &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *redisStore) Save(r Record) error {
	raw, err := msgpack.Marshal(r)
	if err != nil {
		return err
	}
	return s.client.HSet(context.Background(), s.key, recordKey(r.ClientID, r.Filter), raw).Err()
}

func (s *redisStore) Delete(clientID, filter string) error {
	return s.client.HDel(context.Background(), s.key, recordKey(clientID, filter)).Err()
}

func (s *redisStore) DeleteClient(clientID string) error {
	fields, err := s.client.HKeys(context.Background(), s.key).Result()
	if err != nil {
		return err
	}
	prefix := clientID + "\x00"
	var toDel []string
	for _, f := range fields {
		if len(f) >= len(prefix) && f[:len(prefix)] == prefix {
			toDel = append(toDel, f)
		}
	}
	if len(toDel) == 0 {
		return nil
	}
	return s.client.HDel(context.Background(), s.key, toDel...).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
