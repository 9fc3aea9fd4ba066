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

package retained

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/frenzox/mercurio/config"
	"github.com/frenzox/mercurio/internal/topic"
)

// redisStore keeps every retained Message as a field of one Redis hash
// keyed by topic name. Filter matching happens client-side against the
// full set, same tradeoff the in-process topic.Index makes for its
// trie: a dedicated wildcard-aware Redis index is out of scope.
type redisStore struct {
	client *redis.Client
	key    string
}

func newRedisStore(cfg *config.RetainedPersistence) (Store, error) {
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
		key = "mercurio:retained"
	}
	return &redisStore{client: client, key: key}, nil
}

func (s *redisStore) Set(msg Message) error {
	if len(msg.Payload) == 0 {
		return s.client.HDel(context.Background(), s.key, msg.Topic).Err()
	}
	raw, err := msgpack.Marshal(msg)
	if err != nil {
		return err
	}
	return s.client.HSet(context.Background(), s.key, msg.Topic, raw).Err()
}

func (s *redisStore) Match(filter string) ([]Message, error) {
	fields, err := s.client.HGetAll(context.Background(), s.key).Result()
	if err != nil {
		return nil, err
	}
	var out []Message
	for t, raw := range fields {
		if !topic.Matches(filter, t) {
			continue
		}
		var msg Message
		if err := msgpack.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
