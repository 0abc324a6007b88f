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

package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/avisanghavi/agentctl/statestore"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := statestore.NewRedisStoreFromClient(client)
	return New(store, DefaultConfig())
}

func TestPublishAppendsToRecipientStream(t *testing.T) {
	ctx := context.Background()
	b := newTestBus(t)

	before, err := b.Stats(ctx, "a2")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	id, err := b.Publish(ctx, "a1", "a2", TypeDataShare, map[string]interface{}{"x": 1}, PriorityMedium)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty message id")
	}

	after, err := b.Stats(ctx, "a2")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if after.PendingCount != before.PendingCount+1 {
		t.Fatalf("expected pending count to increase by 1, got %d -> %d", before.PendingCount, after.PendingCount)
	}
}

func TestPublishRejectsUnknownType(t *testing.T) {
	ctx := context.Background()
	b := newTestBus(t)

	if _, err := b.Publish(ctx, "a1", "a2", MessageType("bogus"), nil, PriorityLow); !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
}

func TestRateLimitAfter100Messages(t *testing.T) {
	ctx := context.Background()
	b := newTestBus(t)

	for i := 0; i < 100; i++ {
		if _, err := b.Publish(ctx, "a1", "a2", TypeDataShare, nil, PriorityLow); err != nil {
			t.Fatalf("message %d: expected success, got %v", i, err)
		}
	}

	statsBefore, err := b.Stats(ctx, "a2")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if _, err := b.Publish(ctx, "a1", "a2", TypeDataShare, nil, PriorityLow); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on the 101st message, got %v", err)
	}

	statsAfter, err := b.Stats(ctx, "a2")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if statsAfter.PendingCount != statsBefore.PendingCount {
		t.Fatalf("rate-limited publish must not append: before=%d after=%d", statsBefore.PendingCount, statsAfter.PendingCount)
	}
}

func TestBroadcastFansOutToDepartmentAgents(t *testing.T) {
	ctx := context.Background()
	b := newTestBus(t)

	for _, a := range []string{"a1", "a2", "a3"} {
		if err := b.JoinDepartment(ctx, "dept_sales", a); err != nil {
			t.Fatalf("JoinDepartment(%s) failed: %v", a, err)
		}
	}

	broadcastID, err := b.Broadcast(ctx, "dept_sales", map[string]interface{}{"kickoff": true}, "coordinator")
	if err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}
	if broadcastID == "" {
		t.Fatal("expected a non-empty broadcast id")
	}

	for _, a := range []string{"a1", "a2", "a3"} {
		stats, err := b.Stats(ctx, a)
		if err != nil {
			t.Fatalf("Stats(%s) failed: %v", a, err)
		}
		if stats.PendingCount != 1 {
			t.Fatalf("expected %s to receive exactly one broadcast copy, got %d", a, stats.PendingCount)
		}
	}
}

func TestMarkReadCreatesConsumerGroupOnFirstUse(t *testing.T) {
	ctx := context.Background()
	b := newTestBus(t)

	id, err := b.Publish(ctx, "a1", "a2", TypeAlert, map[string]interface{}{"level": "critical"}, PriorityCritical)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	pending, err := b.Pending(ctx, "a2", 10)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending message, got %d", len(pending))
	}

	if err := b.MarkRead(ctx, "a2", pending[0].Cursor); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	// Second mark-read for the same agent must not fail on "group exists".
	id2, err := b.Publish(ctx, "a1", "a2", TypeAlert, nil, PriorityHigh)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	pending2, err := b.Pending(ctx, "a2", 10)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if err := b.MarkRead(ctx, "a2", pending2[len(pending2)-1].Cursor); err != nil {
		t.Fatalf("MarkRead (second) failed: %v", err)
	}
	if id == id2 {
		t.Fatal("expected distinct message ids")
	}
}

func TestCleanupExpiredTrimsStream(t *testing.T) {
	ctx := context.Background()
	b := newTestBus(t)
	b.cfg.MaxStreamLen = 5

	for i := 0; i < 10; i++ {
		if _, err := b.Publish(ctx, "a1", "a2", TypeDataShare, nil, PriorityLow); err != nil {
			t.Fatalf("Publish %d failed: %v", i, err)
		}
	}

	if err := b.CleanupExpired(ctx, []string{inboxStream("a2")}); err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}

	stats, err := b.Stats(ctx, "a2")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.PendingCount >= 10 {
		t.Fatalf("expected trim to reduce stream length, got %d", stats.PendingCount)
	}
}
