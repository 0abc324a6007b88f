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
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStoreFromClient(client)
}

func TestGetSetEX(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.SetEX(ctx, "k1", time.Minute, []byte("v1")); err != nil {
		t.Fatalf("SetEX failed: %v", err)
	}

	val, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "v1" {
		t.Fatalf("expected v1, got %s", val)
	}

	if err := store.Del(ctx, "k1"); err != nil {
		t.Fatalf("Del failed: %v", err)
	}
	if _, err := store.Get(ctx, "k1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after Del, got %v", err)
	}
}

func TestSetOperations(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.SAdd(ctx, "dept:agents", "a1", "a2", "a1"); err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}
	n, err := store.SCard(ctx, "dept:agents")
	if err != nil {
		t.Fatalf("SCard failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 members, got %d", n)
	}

	if err := store.SRem(ctx, "dept:agents", "a1"); err != nil {
		t.Fatalf("SRem failed: %v", err)
	}
	members, err := store.SMembers(ctx, "dept:agents")
	if err != nil {
		t.Fatalf("SMembers failed: %v", err)
	}
	if len(members) != 1 || members[0] != "a2" {
		t.Fatalf("unexpected members: %v", members)
	}
}

func TestStreamOperations(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	preLen, err := store.XLen(ctx, "agent:a2:messages")
	if err != nil {
		t.Fatalf("XLen failed: %v", err)
	}

	id, err := store.XAdd(ctx, "agent:a2:messages", map[string]string{"payload": "hello"})
	if err != nil {
		t.Fatalf("XAdd failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty entry ID")
	}

	postLen, err := store.XLen(ctx, "agent:a2:messages")
	if err != nil {
		t.Fatalf("XLen failed: %v", err)
	}
	if postLen != preLen+1 {
		t.Fatalf("expected stream length %d, got %d", preLen+1, postLen)
	}

	entries, err := store.XRange(ctx, "agent:a2:messages", "", 10)
	if err != nil {
		t.Fatalf("XRange failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Fields["payload"] != "hello" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	if err := store.XGroupCreate(ctx, "agent:a2:messages", "readers", "0"); err != nil {
		t.Fatalf("XGroupCreate failed: %v", err)
	}
	// Creating it again must be idempotent (BUSYGROUP swallowed).
	if err := store.XGroupCreate(ctx, "agent:a2:messages", "readers", "0"); err != nil {
		t.Fatalf("XGroupCreate should be idempotent, got: %v", err)
	}

	if err := store.XAck(ctx, "agent:a2:messages", "readers", id); err != nil {
		t.Fatalf("XAck failed: %v", err)
	}
}

func TestIncrAppliesTTLOnlyOnCreate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := int64(1); i <= 5; i++ {
		n, err := store.Incr(ctx, "rate_limit:a1", 60*time.Second)
		if err != nil {
			t.Fatalf("Incr failed: %v", err)
		}
		if n != i {
			t.Fatalf("expected counter %d, got %d", i, n)
		}
	}

	if ttl := store.client.TTL(ctx, "rate_limit:a1").Val(); ttl <= 0 || ttl > 60*time.Second {
		t.Fatalf("expected the creating Incr to set a TTL of at most 60s, got %v", ttl)
	}
	if err := store.client.Expire(ctx, "rate_limit:a1", 10*time.Second).Err(); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if _, err := store.Incr(ctx, "rate_limit:a1", 60*time.Second); err != nil {
		t.Fatalf("Incr failed: %v", err)
	}
	if ttl := store.client.TTL(ctx, "rate_limit:a1").Val(); ttl > 10*time.Second {
		t.Fatalf("expected a later Incr to leave the TTL alone, got %v", ttl)
	}
}

func TestScanMatchesPattern(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.SetEX(ctx, "checkpoint:s1:latest", time.Hour, []byte("{}")); err != nil {
		t.Fatalf("SetEX failed: %v", err)
	}
	if err := store.SetEX(ctx, "checkpoint:s2:latest", time.Hour, []byte("{}")); err != nil {
		t.Fatalf("SetEX failed: %v", err)
	}
	if err := store.SetEX(ctx, "agents:s1", time.Hour, []byte("[]")); err != nil {
		t.Fatalf("SetEX failed: %v", err)
	}

	keys, err := store.Scan(ctx, "checkpoint:*:latest")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %v", keys)
	}
}
