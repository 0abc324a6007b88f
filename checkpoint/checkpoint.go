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

// Package checkpoint persists orchestrator state machine steps so an
// interrupted session can be resumed at the step it last completed.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/avisanghavi/agentctl/statestore"
)

const defaultTTL = 24 * time.Hour

// ErrNoCheckpoint is returned by Load when a session has no saved state.
var ErrNoCheckpoint = errors.New("checkpoint: no saved state for session")

// Pointer is the value stored at checkpoint:{session}:latest.
type Pointer struct {
	Step      string    `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionSummary is one entry returned by ListSessions.
type SessionSummary struct {
	Session   string
	Step      string
	Timestamp time.Time
	Preview   json.RawMessage
}

// Store persists checkpointed state on top of the StateStore capability.
type Store struct {
	backend statestore.Store
	ttl     time.Duration
}

// New builds a checkpoint.Store. ttl defaults to 24h when zero.
func New(backend statestore.Store, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{backend: backend, ttl: ttl}
}

func stepKey(session, step string) string {
	return fmt.Sprintf("checkpoint:%s:%s", session, step)
}

func latestKey(session string) string {
	return fmt.Sprintf("checkpoint:%s:latest", session)
}

// Save persists state at checkpoint:{session}:{step} and advances the
// latest pointer to it.
func (s *Store) Save(ctx context.Context, session, step string, state interface{}) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal state: %w", err)
	}

	if err := s.backend.SetEX(ctx, stepKey(session, step), s.ttl, blob); err != nil {
		return fmt.Errorf("checkpoint: save step: %w", err)
	}

	ptr := Pointer{Step: step, Timestamp: time.Now()}
	ptrBlob, err := json.Marshal(ptr)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal pointer: %w", err)
	}
	if err := s.backend.SetEX(ctx, latestKey(session), s.ttl, ptrBlob); err != nil {
		return fmt.Errorf("checkpoint: save pointer: %w", err)
	}
	return nil
}

// Load returns the blob saved for (session, step). If step is empty it
// follows the latest pointer.
func (s *Store) Load(ctx context.Context, session, step string) (json.RawMessage, string, error) {
	if step == "" {
		ptr, err := s.loadPointer(ctx, session)
		if err != nil {
			return nil, "", err
		}
		step = ptr.Step
	}

	blob, err := s.backend.Get(ctx, stepKey(session, step))
	if err != nil {
		if errors.Is(err, statestore.ErrNotFound) {
			return nil, "", ErrNoCheckpoint
		}
		return nil, "", fmt.Errorf("checkpoint: load step: %w", err)
	}
	return json.RawMessage(blob), step, nil
}

func (s *Store) loadPointer(ctx context.Context, session string) (Pointer, error) {
	blob, err := s.backend.Get(ctx, latestKey(session))
	if err != nil {
		if errors.Is(err, statestore.ErrNotFound) {
			return Pointer{}, ErrNoCheckpoint
		}
		return Pointer{}, fmt.Errorf("checkpoint: load pointer: %w", err)
	}
	var ptr Pointer
	if err := json.Unmarshal(blob, &ptr); err != nil {
		return Pointer{}, fmt.Errorf("checkpoint: unmarshal pointer: %w", err)
	}
	return ptr, nil
}

// ListSessions scans every latest pointer, joins it with the pointed blob
// for a status preview, and sorts newest-first.
func (s *Store) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	keys, err := s.backend.Scan(ctx, "checkpoint:*:latest")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: scan sessions: %w", err)
	}

	summaries := make([]SessionSummary, 0, len(keys))
	for _, key := range keys {
		session, ok := sessionFromLatestKey(key)
		if !ok {
			continue
		}
		ptr, err := s.loadPointer(ctx, session)
		if err != nil {
			continue
		}
		blob, _, err := s.Load(ctx, session, ptr.Step)
		if err != nil {
			continue
		}
		summaries = append(summaries, SessionSummary{
			Session:   session,
			Step:      ptr.Step,
			Timestamp: ptr.Timestamp,
			Preview:   blob,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Timestamp.After(summaries[j].Timestamp)
	})
	return summaries, nil
}

func sessionFromLatestKey(key string) (string, bool) {
	const prefix = "checkpoint:"
	const suffix = ":latest"
	if len(key) <= len(prefix)+len(suffix) {
		return "", false
	}
	if key[:len(prefix)] != prefix || key[len(key)-len(suffix):] != suffix {
		return "", false
	}
	return key[len(prefix) : len(key)-len(suffix)], true
}

// AgentsKey returns the key holding the session's serialized agent
// list.
func AgentsKey(session string) string {
	return fmt.Sprintf("agents:%s", session)
}

// SaveAgents persists the session's agent spec list with the given TTL
// (configured session_timeout).
func (s *Store) SaveAgents(ctx context.Context, session string, agents interface{}, ttl time.Duration) error {
	blob, err := json.Marshal(agents)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal agents: %w", err)
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	if err := s.backend.SetEX(ctx, AgentsKey(session), ttl, blob); err != nil {
		return fmt.Errorf("checkpoint: save agents: %w", err)
	}
	return nil
}

// LoadAgents returns the session's serialized agent list, or
// ErrNoCheckpoint if none has been saved.
func (s *Store) LoadAgents(ctx context.Context, session string) (json.RawMessage, error) {
	blob, err := s.backend.Get(ctx, AgentsKey(session))
	if err != nil {
		if errors.Is(err, statestore.ErrNotFound) {
			return nil, ErrNoCheckpoint
		}
		return nil, fmt.Errorf("checkpoint: load agents: %w", err)
	}
	return json.RawMessage(blob), nil
}

// AgentRuntimeKey returns the key holding the sandbox runtime summary
// attached to one deployed agent.
func AgentRuntimeKey(session, agentID string) string {
	return fmt.Sprintf("agent_runtime:%s:%s", session, agentID)
}

// SaveAgentRuntime persists a deployed agent's sandbox runtime summary with
// the store's checkpoint TTL.
func (s *Store) SaveAgentRuntime(ctx context.Context, session, agentID string, runtime interface{}) error {
	blob, err := json.Marshal(runtime)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal agent runtime: %w", err)
	}
	if err := s.backend.SetEX(ctx, AgentRuntimeKey(session, agentID), s.ttl, blob); err != nil {
		return fmt.Errorf("checkpoint: save agent runtime: %w", err)
	}
	return nil
}

// LoadAgentRuntime returns the sandbox runtime summary last attached to a
// deployed agent, or ErrNoCheckpoint if none was ever attached.
func (s *Store) LoadAgentRuntime(ctx context.Context, session, agentID string) (json.RawMessage, error) {
	blob, err := s.backend.Get(ctx, AgentRuntimeKey(session, agentID))
	if err != nil {
		if errors.Is(err, statestore.ErrNotFound) {
			return nil, ErrNoCheckpoint
		}
		return nil, fmt.Errorf("checkpoint: load agent runtime: %w", err)
	}
	return json.RawMessage(blob), nil
}
