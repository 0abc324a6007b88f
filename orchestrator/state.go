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

// Package orchestrator implements the agent-creation state machine: a small
// fixed graph of nodes that turns a natural-language request into a
// deployed, sandboxed agent, with checkpointed per-step recovery.
package orchestrator

import (
	"time"

	"github.com/avisanghavi/agentctl/agentspec"
)

// clarificationTTL bounds how long a paused clarification request stays
// answerable before the pause goes stale.
const clarificationTTL = time.Hour

// ClarificationRequest is the first-class pause/resume record raised by
// understand_intent when it can't proceed without more detail. Rather
// than bare flags, the question list, when it was raised, and when the
// pause goes stale travel together and are persisted as part of
// OrchestratorState at every checkpoint.
type ClarificationRequest struct {
	Questions   []string  `json:"questions"`
	MissingInfo []string  `json:"missing_info,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
	RaisedAt    time.Time `json:"raised_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the pause has outlived its TTL as of now. A nil
// receiver is never expired.
func (c *ClarificationRequest) Expired(now time.Time) bool {
	if c == nil {
		return false
	}
	return now.After(c.ExpiresAt)
}

// DeploymentStatus is the terminal-or-in-flight disposition of one pipeline
// run.
type DeploymentStatus string

const (
	DeploymentPending    DeploymentStatus = "pending"
	DeploymentInProgress DeploymentStatus = "in_progress"
	DeploymentCompleted  DeploymentStatus = "completed"
	DeploymentFailed     DeploymentStatus = "failed"
)

// IntentType enumerates the classification tags a ParsedIntent may carry.
type IntentType string

const (
	IntentCreateAgent        IntentType = "CREATE_AGENT"
	IntentModifyAgent        IntentType = "MODIFY_AGENT"
	IntentDeleteAgent        IntentType = "DELETE_AGENT"
	IntentListAgents         IntentType = "LIST_AGENTS"
	IntentExecuteTask        IntentType = "EXECUTE_TASK"
	IntentClarificationNeeded IntentType = "CLARIFICATION_NEEDED"
	IntentCreateDepartment   IntentType = "CREATE_DEPARTMENT"
	IntentModifyDepartment   IntentType = "MODIFY_DEPARTMENT"
	IntentDeleteDepartment   IntentType = "DELETE_DEPARTMENT"
	IntentListDepartment     IntentType = "LIST_DEPARTMENT"
)

// ParsedIntent is the structured result of understand_intent.
type ParsedIntent struct {
	IntentType        IntentType             `json:"intent_type"`
	Parameters        map[string]interface{} `json:"parameters,omitempty"`
	Confidence        float64                `json:"confidence"`
	AlternateIntents  []IntentType           `json:"alternate_intents,omitempty"`
	ClarificationNeeded bool                 `json:"clarification_needed,omitempty"`
}

// RuntimeContext is attached to a spec after deploy_agent, summarizing the
// sandbox run if one was attempted.
type RuntimeContext struct {
	ContainerID string   `json:"container_id,omitempty"`
	ExitStatus  string   `json:"exit_status,omitempty"`
	LastLogs    []string `json:"last_logs,omitempty"`
}

// OrchestratorState is the in-flight pipeline state carried node to
// node. It is snapshotted whole at every checkpoint.
type OrchestratorState struct {
	UserRequest       string                     `json:"user_request"`
	SessionID         string                     `json:"session_id"`
	ParsedIntent      *ParsedIntent              `json:"parsed_intent,omitempty"`
	ExistingAgents    []agentspec.AgentSpec      `json:"existing_agents,omitempty"`
	AgentSpec         *agentspec.AgentSpec       `json:"agent_spec,omitempty"`
	GeneratedSource   string                     `json:"generated_source,omitempty"`
	Runtime           *RuntimeContext            `json:"runtime,omitempty"`
	DeploymentStatus  DeploymentStatus           `json:"deployment_status"`
	ErrorMessage      string                     `json:"error_message,omitempty"`
	ExecutionContext  map[string]interface{}     `json:"execution_context,omitempty"`
	RetryCount        int                        `json:"retry_count"`
	NeedsClarification bool                      `json:"needs_clarification,omitempty"`
	ClarificationQuestions []string              `json:"clarification_questions,omitempty"`
	MissingInfo       []string                   `json:"missing_info,omitempty"`
	Suggestions       []string                   `json:"suggestions,omitempty"`
	Clarification     *ClarificationRequest      `json:"clarification,omitempty"`
	ActiveDepartments []string                   `json:"active_departments,omitempty"`
	DepartmentCoordination string                `json:"department_coordination,omitempty"`
	CurrentDepartment string                     `json:"current_department,omitempty"`
	DepartmentStates  map[string]interface{}     `json:"department_states,omitempty"`

	// LastStep records the step label ({node}_start, _complete or _error) of
	// the checkpoint this state came from; used by resume to pick up where
	// recovery left off.
	LastStep string `json:"last_step,omitempty"`
}

// newState seeds a fresh pipeline run.
func newState(session, request string) *OrchestratorState {
	return &OrchestratorState{
		UserRequest:      request,
		SessionID:        session,
		DeploymentStatus: DeploymentPending,
		ExecutionContext: map[string]interface{}{},
	}
}

// clone returns a deep-enough copy so in-memory state and a checkpointed
// snapshot never share structure.
func (s *OrchestratorState) clone() *OrchestratorState {
	cp := *s
	if s.ParsedIntent != nil {
		pi := *s.ParsedIntent
		cp.ParsedIntent = &pi
	}
	if s.AgentSpec != nil {
		as := *s.AgentSpec
		cp.AgentSpec = &as
	}
	if s.Runtime != nil {
		rt := *s.Runtime
		cp.Runtime = &rt
	}
	if s.Clarification != nil {
		cr := *s.Clarification
		cp.Clarification = &cr
	}
	cp.ExistingAgents = append([]agentspec.AgentSpec(nil), s.ExistingAgents...)
	cp.ClarificationQuestions = append([]string(nil), s.ClarificationQuestions...)
	cp.MissingInfo = append([]string(nil), s.MissingInfo...)
	cp.Suggestions = append([]string(nil), s.Suggestions...)
	cp.ActiveDepartments = append([]string(nil), s.ActiveDepartments...)
	return &cp
}

// partialUpdate is the delta a node returns; the scheduler merges it into
// the rolling state.
type partialUpdate struct {
	parsedIntent        *ParsedIntent
	existingAgents       []agentspec.AgentSpec
	agentSpec            *agentspec.AgentSpec
	generatedSource      string
	runtime              *RuntimeContext
	deploymentStatus     DeploymentStatus
	errorMessage         string
	needsClarification   *bool
	clarificationQuestions []string
	missingInfo          []string
	suggestions          []string
	clarification        *ClarificationRequest
}

func (s *OrchestratorState) merge(u partialUpdate) {
	if u.parsedIntent != nil {
		s.ParsedIntent = u.parsedIntent
	}
	if u.existingAgents != nil {
		s.ExistingAgents = u.existingAgents
	}
	if u.agentSpec != nil {
		s.AgentSpec = u.agentSpec
	}
	if u.generatedSource != "" {
		s.GeneratedSource = u.generatedSource
	}
	if u.runtime != nil {
		s.Runtime = u.runtime
	}
	if u.deploymentStatus != "" {
		s.DeploymentStatus = u.deploymentStatus
	}
	if u.errorMessage != "" {
		s.ErrorMessage = u.errorMessage
	}
	if u.needsClarification != nil {
		s.NeedsClarification = *u.needsClarification
	}
	if u.clarificationQuestions != nil {
		s.ClarificationQuestions = u.clarificationQuestions
	}
	if u.missingInfo != nil {
		s.MissingInfo = u.missingInfo
	}
	if u.suggestions != nil {
		s.Suggestions = u.suggestions
	}
	if u.clarification != nil {
		s.Clarification = u.clarification
	}
}

func boolPtr(b bool) *bool { return &b }
