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

// Package bus implements the inter-agent MessageBus: typed
// messages over per-recipient append-only streams, department broadcast
// fan-out, per-sender rate limiting, and a dead-letter backstop.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// MessageType enumerates the Message.MessageType variants.
type MessageType string

const (
	TypeDataShare      MessageType = "DataShare"
	TypeTaskAssignment MessageType = "TaskAssignment"
	TypeStatusUpdate   MessageType = "StatusUpdate"
	TypeCoordination   MessageType = "Coordination"
	TypeAlert          MessageType = "Alert"
	TypeHandoff        MessageType = "Handoff"
)

func validMessageType(t MessageType) bool {
	switch t {
	case TypeDataShare, TypeTaskAssignment, TypeStatusUpdate, TypeCoordination, TypeAlert, TypeHandoff:
		return true
	default:
		return false
	}
}

// Priority enumerates Message.Priority.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Message is the typed envelope exchanged over the bus. Payload
// is an opaque blob; callers own its encoding, matching the StateStore
// capability's "opaque byte strings" contract.
type Message struct {
	MessageID    string                 `json:"message_id"`
	FromAgent    string                 `json:"from_agent"`
	ToAgent      string                 `json:"to_agent,omitempty"`
	MessageType  MessageType            `json:"message_type"`
	Timestamp    time.Time              `json:"timestamp"`
	Priority     Priority               `json:"priority"`
	DepartmentID string                 `json:"department_id,omitempty"`
	ExpiresAt    *time.Time             `json:"expires_at,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Payload      map[string]interface{} `json:"payload"`

	// ProgressPercentage carries a StatusUpdate's progress. The bus stores
	// the value as given; it does not check or clamp it to [0,100].
	ProgressPercentage *int `json:"progress_percentage,omitempty"`

	// BroadcastID links every per-agent copy fanned out by one Broadcast
	// call.
	BroadcastID string `json:"broadcast_id,omitempty"`
}

func newMessageID() string {
	return "msg_" + uuid.NewString()
}

// PendingMessage is one entry returned by Pending: the decoded message plus
// the stream cursor needed to MarkRead it.
type PendingMessage struct {
	Cursor  string
	Message Message
}

// Stats summarizes one agent's queues.
type Stats struct {
	PendingCount      int64
	OutboxCount       int64
	ReadCount         int64
	SubscriptionCount int64
}
