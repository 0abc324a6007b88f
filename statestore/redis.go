// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package statestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig configures a Redis-backed Store.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

// DefaultRedisConfig returns sane pool defaults matching the platform's
// production tuning.
func DefaultRedisConfig(addr string) RedisConfig {
	return RedisConfig{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     100,
		MinIdleConns: 10,
	}
}

// RedisStore implements Store on top of go-redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, newStoreError("Connect", "", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an already-constructed client (used by
// tests against miniredis, and by callers that share a pool across stores).
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, newStoreError("Get", key, err)
	}
	return val, nil
}

func (s *RedisStore) SetEX(ctx context.Context, key string, ttl time.Duration, value []byte) error {
	if ttl <= 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return newStoreError("SetEX", key, err)
	}
	return nil
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return newStoreError("Del", key, err)
	}
	return nil
}

func (s *RedisStore) scanAll(ctx context.Context, pattern string) ([]string, error) {
	var cursor uint64
	var keys []string
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return nil, newStoreError("Scan", pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (s *RedisStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	return s.scanAll(ctx, pattern)
}

func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.scanAll(ctx, pattern)
}

func (s *RedisStore) SAdd(ctx context.Context, key string, members ...string) error {
	vals := make([]interface{}, len(members))
	for i, m := range members {
		vals[i] = m
	}
	if err := s.client.SAdd(ctx, key, vals...).Err(); err != nil {
		return newStoreError("SAdd", key, err)
	}
	return nil
}

func (s *RedisStore) SRem(ctx context.Context, key string, members ...string) error {
	vals := make([]interface{}, len(members))
	for i, m := range members {
		vals[i] = m
	}
	if err := s.client.SRem(ctx, key, vals...).Err(); err != nil {
		return newStoreError("SRem", key, err)
	}
	return nil
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, newStoreError("SMembers", key, err)
	}
	return members, nil
}

func (s *RedisStore) SCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, newStoreError("SCard", key, err)
	}
	return n, nil
}

func (s *RedisStore) LPush(ctx context.Context, key string, values ...string) error {
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := s.client.LPush(ctx, key, vals...).Err(); err != nil {
		return newStoreError("LPush", key, err)
	}
	return nil
}

func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, newStoreError("LRange", key, err)
	}
	return vals, nil
}

func (s *RedisStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	if err := s.client.LTrim(ctx, key, start, stop).Err(); err != nil {
		return newStoreError("LTrim", key, err)
	}
	return nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return newStoreError("Expire", key, err)
	}
	return nil
}

func (s *RedisStore) XAdd(ctx context.Context, stream string, fields map[string]string) (string, error) {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
	if err != nil {
		return "", newStoreError("XAdd", stream, err)
	}
	return id, nil
}

func (s *RedisStore) XLen(ctx context.Context, stream string) (int64, error) {
	n, err := s.client.XLen(ctx, stream).Result()
	if err != nil {
		return 0, newStoreError("XLen", stream, err)
	}
	return n, nil
}

func (s *RedisStore) XRange(ctx context.Context, stream, cursor string, count int64) ([]StreamEntry, error) {
	start := "-"
	if cursor != "" && cursor != "0" {
		start = fmt.Sprintf("(%s", cursor)
	}
	msgs, err := s.client.XRangeN(ctx, stream, start, "+", count).Result()
	if err != nil {
		return nil, newStoreError("XRange", stream, err)
	}

	entries := make([]StreamEntry, 0, len(msgs))
	for _, m := range msgs {
		fields := make(map[string]string, len(m.Values))
		for k, v := range m.Values {
			fields[k] = fmt.Sprintf("%v", v)
		}
		entries = append(entries, StreamEntry{ID: m.ID, Fields: fields})
	}
	return entries, nil
}

func (s *RedisStore) XTrim(ctx context.Context, stream string, maxLen int64, approx bool) error {
	var err error
	if approx {
		err = s.client.XTrimApprox(ctx, stream, maxLen).Err()
	} else {
		err = s.client.XTrim(ctx, stream, maxLen).Err()
	}
	if err != nil {
		return newStoreError("XTrim", stream, err)
	}
	return nil
}

func (s *RedisStore) XGroupCreate(ctx context.Context, stream, group, start string) error {
	if start == "" {
		start = "0"
	}
	err := s.client.XGroupCreateMkStream(ctx, stream, group, start).Err()
	if err != nil && !isBusyGroupErr(err) {
		return newStoreError("XGroupCreate", stream, err)
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func (s *RedisStore) XAck(ctx context.Context, stream, group, id string) error {
	if err := s.client.XAck(ctx, stream, group, id).Err(); err != nil {
		return newStoreError("XAck", stream, err)
	}
	return nil
}

func (s *RedisStore) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return newStoreError("Publish", channel, err)
	}
	return nil
}

// Incr increments key and, only the first time the counter is created
// (TTL previously unset), applies ttl. This gives a fixed-window counter:
// the window starts on first publish and resets when it expires, matching
// the platform's documented rate-limit semantics.
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, newStoreError("Incr", key, err)
	}
	if n == 1 && ttl > 0 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return n, newStoreError("Incr", key, err)
		}
	}
	return n, nil
}
