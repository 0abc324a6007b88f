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

// Package statestore defines the platform's StateStore capability and
// provides a Redis-backed implementation of it. The rest of the platform
// — checkpoint, bus, agentspec persistence — depends only on the Store
// interface, never on *redis.Client directly.
package statestore

import (
	"context"
	"time"
)

// StreamEntry is one entry read back from an append-only stream.
type StreamEntry struct {
	ID     string
	Fields map[string]string
}

// Store is the StateStore capability described in keyed blobs
// with TTL, append-only streams with consumer groups, pub/sub, and set
// operations. All blobs are opaque byte strings; callers own encoding.
type Store interface {
	// Get returns the blob stored at key, or ErrNotFound if absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// SetEX stores value at key with the given TTL. ttl <= 0 means no expiry.
	SetEX(ctx context.Context, key string, ttl time.Duration, value []byte) error
	// Del removes key. It is not an error if key does not exist.
	Del(ctx context.Context, key string) error
	// Scan returns all keys matching a glob pattern (e.g. "checkpoint:*:latest").
	Scan(ctx context.Context, pattern string) ([]string, error)
	// Keys is an alias historically distinct from Scan in the wire contract
	//; here it simply delegates to Scan.
	Keys(ctx context.Context, pattern string) ([]string, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)

	LPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// XAdd appends fields to stream and returns the generated entry ID.
	XAdd(ctx context.Context, stream string, fields map[string]string) (string, error)
	// XLen reports the current length of a stream.
	XLen(ctx context.Context, stream string) (int64, error)
	// XRange reads up to count entries from stream starting at (exclusive of)
	// cursor. cursor == "" or "0" reads from the beginning.
	XRange(ctx context.Context, stream, cursor string, count int64) ([]StreamEntry, error)
	// XTrim trims stream to approximately maxLen entries.
	XTrim(ctx context.Context, stream string, maxLen int64, approx bool) error
	// XGroupCreate creates a consumer group at the given stream position.
	// "already exists" errors are swallowed.
	XGroupCreate(ctx context.Context, stream, group, start string) error
	// XAck acknowledges an entry for a consumer group.
	XAck(ctx context.Context, stream, group, id string) error

	// Publish sends payload to a pub/sub channel; delivery is best-effort.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Incr atomically increments key and returns the new value; it also
	// applies ttl the first time the key is created (used by rate limiting).
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	Close() error
}
