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

package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/avisanghavi/agentctl/checkpoint"
	"github.com/avisanghavi/agentctl/completion"
	"github.com/avisanghavi/agentctl/statestore"
)

func newTestCheckpoints(t *testing.T) *checkpoint.Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend := statestore.NewRedisStoreFromClient(client)
	return checkpoint.New(backend, time.Hour)
}

// erroringProvider always fails Generate, for exercising the retry budget.
type erroringProvider struct{}

func (erroringProvider) Generate(context.Context, string, string, completion.Options) (*completion.Result, error) {
	return nil, errors.New("upstream unavailable")
}

// routingProvider dispatches on a substring of the system prompt so
// understand_intent's classification call and create_agent's skeleton call
// can each get a response shaped for that step from one shared Provider.
type routingProvider struct {
	byPromptSubstring map[string]string
	fallback          string
}

func (r routingProvider) Generate(_ context.Context, system, _ string, _ completion.Options) (*completion.Result, error) {
	for substr, text := range r.byPromptSubstring {
		if strings.Contains(system, substr) {
			return &completion.Result{Text: text}, nil
		}
	}
	return &completion.Result{Text: r.fallback}, nil
}

func happyPathProvider() routingProvider {
	return routingProvider{
		byPromptSubstring: map[string]string{
			"Classify the user's request": `{"intent_type": "CREATE_AGENT", "parameters": {}, "confidence": 0.95}`,
			"design an AgentSpec skeleton": `{"kind": "monitor", "name": "Email Monitor", "description": "Watches inbox for urgent messages and alerts.", "capability": "email_monitoring", "integration_service": "gmail", "interval_minutes": 30}`,
		},
	}
}

func TestProcessHappyPathReachesCompletedWithFullProgressSequence(t *testing.T) {
	cp := newTestCheckpoints(t)
	o := New(happyPathProvider(), cp)

	var events []ProgressEvent
	o = New(happyPathProvider(), cp, WithProgress(func(e ProgressEvent) { events = append(events, e) }))

	state, err := o.Process(context.Background(), "Monitor my email for urgent messages", "sess-happy", nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if state.DeploymentStatus != DeploymentCompleted {
		t.Fatalf("expected completed, got %s (error: %s)", state.DeploymentStatus, state.ErrorMessage)
	}
	if state.AgentSpec == nil {
		t.Fatal("expected an agent spec to be attached")
	}
	if len(state.ExistingAgents) != 1 {
		t.Fatalf("expected one persisted agent, got %d", len(state.ExistingAgents))
	}

	wantPercents := []int{20, 40, 60, 80, 100}
	if len(events) != len(wantPercents) {
		t.Fatalf("expected %d progress events, got %d: %+v", len(wantPercents), len(events), events)
	}
	for i, want := range wantPercents {
		if events[i].Percent != want {
			t.Fatalf("event %d: expected percent %d, got %d", i, want, events[i].Percent)
		}
	}
}

func TestProcessRetriesThenFailsAfterMaxRetries(t *testing.T) {
	cp := newTestCheckpoints(t)
	const maxRetries = 2
	o := New(erroringProvider{}, cp, WithMaxRetries(maxRetries))

	state, err := o.Process(context.Background(), "Monitor my email for urgent messages", "sess-retry", nil)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if state.DeploymentStatus != DeploymentFailed {
		t.Fatalf("expected failed, got %s", state.DeploymentStatus)
	}
	if state.RetryCount != maxRetries+1 {
		t.Fatalf("expected retry_count %d, got %d", maxRetries+1, state.RetryCount)
	}
	if !strings.HasSuffix(state.LastStep, "_error") {
		t.Fatalf("expected last step to be an _error checkpoint, got %s", state.LastStep)
	}
}

func TestClarificationPauseThenResumeReachesCompleted(t *testing.T) {
	cp := newTestCheckpoints(t)

	ambiguous := routingProvider{
		byPromptSubstring: map[string]string{
			"Classify the user's request": `{"intent_type": "CLARIFICATION_NEEDED", "parameters": {}, "confidence": 0.2}`,
		},
	}
	o := New(ambiguous, cp)

	first, err := o.Process(context.Background(), "set up monitoring", "sess-clarify", nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !first.NeedsClarification {
		t.Fatal("expected needs_clarification on the ambiguous request")
	}
	if len(first.ClarificationQuestions) == 0 {
		t.Fatal("expected clarification questions to be populated")
	}
	if first.Clarification == nil {
		t.Fatal("expected a ClarificationRequest record to be persisted alongside the state")
	}
	if len(first.Clarification.Questions) == 0 || first.Clarification.RaisedAt.IsZero() || first.Clarification.ExpiresAt.IsZero() {
		t.Fatalf("expected a fully populated ClarificationRequest, got %+v", first.Clarification)
	}
	if !first.Clarification.ExpiresAt.After(first.Clarification.RaisedAt) {
		t.Fatalf("expected ExpiresAt after RaisedAt, got %+v", first.Clarification)
	}
	if first.Clarification.Expired(first.Clarification.RaisedAt) {
		t.Fatal("a freshly raised clarification request should not be expired")
	}

	// The next Process call answers the question; a second routingProvider
	// is wired to the same session to represent the now-confident classify
	// response a real Completion backend would return once the request
	// reads as unambiguous.
	o2 := New(happyPathProvider(), cp)
	question := first.ClarificationQuestions[0]
	second, err := o2.Process(context.Background(), "set up monitoring", "sess-clarify", map[string]string{
		question: "email inbox for important messages",
	})
	if err != nil {
		t.Fatalf("Process (resume) failed: %v", err)
	}
	if second.NeedsClarification {
		t.Fatal("expected clarification to be cleared on the resumed run")
	}
	if second.Clarification != nil {
		t.Fatalf("expected Clarification to be cleared, got %+v", second.Clarification)
	}
	if second.DeploymentStatus != DeploymentCompleted {
		t.Fatalf("expected completed after clarification answered, got %s (error: %s)", second.DeploymentStatus, second.ErrorMessage)
	}
	if !strings.Contains(second.UserRequest, question) {
		t.Fatalf("expected the clarification Q&A to be folded into user_request, got %q", second.UserRequest)
	}
}

func TestRecoverIsIdempotentOnceCompleted(t *testing.T) {
	cp := newTestCheckpoints(t)
	o := New(happyPathProvider(), cp)

	completed, err := o.Process(context.Background(), "Monitor my email for urgent messages", "sess-recover", nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if completed.DeploymentStatus != DeploymentCompleted {
		t.Fatalf("expected completed, got %s", completed.DeploymentStatus)
	}

	recovered, err := o.Recover(context.Background(), "sess-recover")
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if recovered.DeploymentStatus != DeploymentCompleted {
		t.Fatalf("expected recovered state to be completed, got %s", recovered.DeploymentStatus)
	}

	resumed, err := o.Resume(context.Background(), "sess-recover", "a completely different request")
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if resumed.UserRequest != completed.UserRequest {
		t.Fatalf("expected Resume on an already-completed session to be a no-op, got new request %q", resumed.UserRequest)
	}
	if resumed.DeploymentStatus != DeploymentCompleted {
		t.Fatalf("expected resumed state to remain completed, got %s", resumed.DeploymentStatus)
	}
}

func TestRecoverWithNoCheckpointSurfacesErrNoCheckpoint(t *testing.T) {
	cp := newTestCheckpoints(t)
	o := New(happyPathProvider(), cp)

	_, err := o.Recover(context.Background(), "sess-never-started")
	if !errors.Is(err, checkpoint.ErrNoCheckpoint) {
		t.Fatalf("expected ErrNoCheckpoint, got %v", err)
	}
}

func TestListSessionsReportsNewestFirst(t *testing.T) {
	cp := newTestCheckpoints(t)
	o := New(happyPathProvider(), cp)
	ctx := context.Background()

	if _, err := o.Process(ctx, "Monitor my email for urgent messages", "sess-a", nil); err != nil {
		t.Fatalf("Process sess-a failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := o.Process(ctx, "Monitor my email for urgent messages", "sess-b", nil); err != nil {
		t.Fatalf("Process sess-b failed: %v", err)
	}

	sessions, err := o.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].Session != "sess-b" {
		t.Fatalf("expected sess-b newest-first, got %s", sessions[0].Session)
	}
}
