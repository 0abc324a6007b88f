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
	"encoding/json"
	"fmt"
	"time"

	"github.com/avisanghavi/agentctl/shared/logger"
	"github.com/avisanghavi/agentctl/statestore"
)

const (
	defaultRateLimitWindow = 60 * time.Second
	defaultRateLimitMax    = 100
	defaultMessageTTL      = 7 * 24 * time.Hour
	defaultDeadLetterTTL   = 30 * 24 * time.Hour
	defaultMaxStreamLen    = 1000
)

// Config bounds a Bus's rate limiting and retention.
type Config struct {
	RateLimitWindow time.Duration
	RateLimitMax    int64
	MessageTTL      time.Duration
	DeadLetterTTL   time.Duration
	MaxStreamLen    int64
}

// DefaultConfig returns the platform's documented defaults: 100 messages
// per 60s per sender, 7-day live streams, 30-day dead letters.
func DefaultConfig() Config {
	return Config{
		RateLimitWindow: defaultRateLimitWindow,
		RateLimitMax:    defaultRateLimitMax,
		MessageTTL:      defaultMessageTTL,
		DeadLetterTTL:   defaultDeadLetterTTL,
		MaxStreamLen:    defaultMaxStreamLen,
	}
}

// Bus is the MessageBus capability, built on top of the
// StateStore's append-only streams, sets, and atomic counters.
type Bus struct {
	store statestore.Store
	cfg   Config
	log   *logger.Logger
}

// New builds a Bus on top of a StateStore backend. Zero-valued Config
// fields fall back to DefaultConfig.
func New(store statestore.Store, cfg Config) *Bus {
	def := DefaultConfig()
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = def.RateLimitWindow
	}
	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = def.RateLimitMax
	}
	if cfg.MessageTTL <= 0 {
		cfg.MessageTTL = def.MessageTTL
	}
	if cfg.DeadLetterTTL <= 0 {
		cfg.DeadLetterTTL = def.DeadLetterTTL
	}
	if cfg.MaxStreamLen <= 0 {
		cfg.MaxStreamLen = def.MaxStreamLen
	}
	return &Bus{store: store, cfg: cfg, log: logger.New("bus")}
}

func inboxStream(agent string) string  { return fmt.Sprintf("agent:%s:messages", agent) }
func outboxStream(agent string) string { return fmt.Sprintf("agent:%s:outbox", agent) }
func readStream(agent string) string   { return fmt.Sprintf("agent:%s:read_messages", agent) }
func subsKey(agent string) string      { return fmt.Sprintf("agent:%s:subscriptions", agent) }
func deptBroadcast(dept string) string { return fmt.Sprintf("dept:%s:broadcast", dept) }
func deptAgents(dept string) string    { return fmt.Sprintf("dept:%s:agents", dept) }
func rateLimitKey(agent string) string { return fmt.Sprintf("rate_limit:%s", agent) }

const deadLetterStream = "failed:messages"
const consumerGroup = "bus"

// Publish sends one message from->to. It enforces
// the per-sender fixed-window rate limit before appending, and routes any
// failure (other than a rate-limit refusal) verbatim to the dead letter
// stream.
func (b *Bus) Publish(ctx context.Context, from, to string, msgType MessageType, payload map[string]interface{}, priority Priority) (string, error) {
	if !validMessageType(msgType) {
		return "", ErrUnknownMessageType
	}

	count, err := b.store.Incr(ctx, rateLimitKey(from), b.cfg.RateLimitWindow)
	if err != nil {
		b.deadLetter(ctx, Message{FromAgent: from, ToAgent: to, MessageType: msgType, Payload: payload, Priority: priority}, "rate limit check failed: "+err.Error())
		return "", err
	}
	if count > b.cfg.RateLimitMax {
		// RateLimited is never dead-lettered.
		rateLimitedTotal.Inc()
		return "", ErrRateLimited
	}

	msg := Message{
		MessageID:   newMessageID(),
		FromAgent:   from,
		ToAgent:     to,
		MessageType: msgType,
		Timestamp:   time.Now(),
		Priority:    priority,
		Payload:     payload,
	}

	if err := b.append(ctx, inboxStream(to), msg); err != nil {
		b.deadLetter(ctx, msg, "append to recipient stream: "+err.Error())
		return "", fmt.Errorf("bus: deliver message: %w", err)
	}
	if err := b.append(ctx, outboxStream(from), msg); err != nil {
		b.log.Warn("", "", "failed to append outbox audit entry", map[string]interface{}{"from": from, "message_id": msg.MessageID, "error": err.Error()})
	}

	publishedTotal.WithLabelValues(string(msgType)).Inc()
	return msg.MessageID, nil
}

// Broadcast enumerates a department's agents and enqueues a per-agent copy
// of payload sharing one broadcast_id, plus a record on the department's
// fan-in stream.
func (b *Bus) Broadcast(ctx context.Context, dept string, payload map[string]interface{}, from string) (string, error) {
	agents, err := b.store.SMembers(ctx, deptAgents(dept))
	if err != nil {
		return "", fmt.Errorf("bus: list department agents: %w", err)
	}

	broadcastID := "msg_" + dept + "-broadcast-" + newMessageID()[4:]
	for _, agent := range agents {
		if agent == from {
			continue
		}
		msg := Message{
			MessageID:    newMessageID(),
			FromAgent:    from,
			ToAgent:      agent,
			MessageType:  TypeCoordination,
			Timestamp:    time.Now(),
			Priority:     PriorityMedium,
			DepartmentID: dept,
			Payload:      payload,
			BroadcastID:  broadcastID,
		}
		if err := b.append(ctx, inboxStream(agent), msg); err != nil {
			b.deadLetter(ctx, msg, "broadcast append: "+err.Error())
			continue
		}
	}

	deptMsg := Message{
		MessageID:    broadcastID,
		FromAgent:    from,
		MessageType:  TypeCoordination,
		Timestamp:    time.Now(),
		Priority:     PriorityMedium,
		DepartmentID: dept,
		Payload:      payload,
		BroadcastID:  broadcastID,
	}
	if err := b.append(ctx, deptBroadcast(dept), deptMsg); err != nil {
		b.log.Warn("", "", "failed to append department broadcast record", map[string]interface{}{"department_id": dept, "error": err.Error()})
	}
	broadcastsTotal.Inc()
	return broadcastID, nil
}

// Subscribe set-adds topics to an agent's subscription set.
func (b *Bus) Subscribe(ctx context.Context, agent string, topics []string) error {
	if len(topics) == 0 {
		return nil
	}
	return b.store.SAdd(ctx, subsKey(agent), topics...)
}

// Pending reads up to limit entries from an agent's inbox without acking
// them.
func (b *Bus) Pending(ctx context.Context, agent string, limit int64) ([]PendingMessage, error) {
	entries, err := b.store.XRange(ctx, inboxStream(agent), "", limit)
	if err != nil {
		return nil, fmt.Errorf("bus: read pending: %w", err)
	}

	out := make([]PendingMessage, 0, len(entries))
	for _, e := range entries {
		var msg Message
		if raw, ok := e.Fields["message"]; ok {
			if err := json.Unmarshal([]byte(raw), &msg); err != nil {
				continue
			}
		}
		out = append(out, PendingMessage{Cursor: e.ID, Message: msg})
	}
	return out, nil
}

// MarkRead acknowledges one message for an agent's consumer group,
// creating the group on first use.
func (b *Bus) MarkRead(ctx context.Context, agent, messageID string) error {
	stream := inboxStream(agent)
	if err := b.store.XGroupCreate(ctx, stream, consumerGroup, "0"); err != nil {
		return fmt.Errorf("bus: create consumer group: %w", err)
	}
	if err := b.store.XAck(ctx, stream, consumerGroup, messageID); err != nil {
		return fmt.Errorf("bus: ack message: %w", err)
	}

	audit := Message{MessageID: messageID, ToAgent: agent, Timestamp: time.Now()}
	return b.append(ctx, readStream(agent), audit)
}

// Stats reports queue depths for one agent.
func (b *Bus) Stats(ctx context.Context, agent string) (Stats, error) {
	pending, err := b.store.XLen(ctx, inboxStream(agent))
	if err != nil {
		return Stats{}, fmt.Errorf("bus: stats pending: %w", err)
	}
	outbox, err := b.store.XLen(ctx, outboxStream(agent))
	if err != nil {
		return Stats{}, fmt.Errorf("bus: stats outbox: %w", err)
	}
	read, err := b.store.XLen(ctx, readStream(agent))
	if err != nil {
		return Stats{}, fmt.Errorf("bus: stats read: %w", err)
	}
	subs, err := b.store.SCard(ctx, subsKey(agent))
	if err != nil {
		return Stats{}, fmt.Errorf("bus: stats subscriptions: %w", err)
	}
	return Stats{PendingCount: pending, OutboxCount: outbox, ReadCount: read, SubscriptionCount: subs}, nil
}

// CleanupExpired trims every live stream this Bus knows about (the
// recipient inboxes and department broadcast streams passed in) down to
// the configured approximate max length.
// Callers supply the stream names to trim since the StateStore capability
// has no native "list all streams" operation.
func (b *Bus) CleanupExpired(ctx context.Context, streams []string) error {
	for _, stream := range streams {
		if err := b.store.XTrim(ctx, stream, b.cfg.MaxStreamLen, true); err != nil {
			return fmt.Errorf("bus: trim %s: %w", stream, err)
		}
	}
	return nil
}

// JoinDepartment adds an agent to a department's agent set, used by
// Broadcast's fan-out enumeration.
func (b *Bus) JoinDepartment(ctx context.Context, dept, agent string) error {
	return b.store.SAdd(ctx, deptAgents(dept), agent)
}

// LeaveDepartment removes an agent from a department's agent set.
func (b *Bus) LeaveDepartment(ctx context.Context, dept, agent string) error {
	return b.store.SRem(ctx, deptAgents(dept), agent)
}

func (b *Bus) append(ctx context.Context, stream string, msg Message) error {
	blob, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("bus: marshal message: %w", err)
	}
	if _, err := b.store.XAdd(ctx, stream, map[string]string{"message": string(blob)}); err != nil {
		return err
	}
	return b.store.Expire(ctx, stream, b.cfg.MessageTTL)
}

func (b *Bus) deadLetter(ctx context.Context, msg Message, reason string) {
	failed := FailedMessage{Message: msg, Reason: reason, RetryCount: 0, FailedAt: time.Now()}
	blob, err := json.Marshal(failed)
	if err != nil {
		b.log.Error("", "", "failed to marshal dead letter entry", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := b.store.XAdd(ctx, deadLetterStream, map[string]string{"failed": string(blob)}); err != nil {
		b.log.Error("", "", "failed to append dead letter entry", map[string]interface{}{"error": err.Error()})
		return
	}
	deadLetteredTotal.Inc()
	_ = b.store.Expire(ctx, deadLetterStream, b.cfg.DeadLetterTTL)
}
