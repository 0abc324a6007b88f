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

// Package department implements the Department and DepartmentOrchestrator
// coordination layer: a group of agents with shared memory, a
// health model, a workflow queue, and three coordination modes.
package department

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avisanghavi/agentctl/agentspec"
)

// Status is the lifecycle state of a Department.
type Status string

const (
	StatusInactive     Status = "inactive"
	StatusInitializing Status = "initializing"
	StatusActive       Status = "active"
	StatusCoordinating Status = "coordinating"
	StatusPaused       Status = "paused"
	StatusError        Status = "error"
	StatusOffline      Status = "offline"
)

// Health classifies a Department's current operating condition.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
	HealthCritical Health = "critical"
	HealthOffline  Health = "offline"
)

const maxErrors = 5

// CoordinationRule names one coordination mode a department's
// DepartmentOrchestrator may apply to a workflow.
type CoordinationRule struct {
	WorkflowName string
	Mode         Mode
	RequiredCapabilities []string
	CollaborationTimeout time.Duration
}

// Spec describes a department to be created.
type Spec struct {
	DepartmentID string
	Name         string
	Description  string
	MicroAgents  []agentspec.AgentSpec
	Rules        []CoordinationRule
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func newDepartmentID() string {
	return "dept_" + uuid.NewString()
}

// WorkflowStatus is the lifecycle state of one workflow record.
type WorkflowStatus string

const (
	WorkflowPending    WorkflowStatus = "pending"
	WorkflowInProgress WorkflowStatus = "in_progress"
	WorkflowCompleted  WorkflowStatus = "completed"
	WorkflowFailed     WorkflowStatus = "failed"
	WorkflowPaused     WorkflowStatus = "paused"
)

// Workflow is one unit of work a Department executes.
type Workflow struct {
	ID             string
	Task           string
	Status         WorkflowStatus
	StartedAt      time.Time
	CompletedAt    time.Time
	Progress       float64
	AssignedAgents []string
	Results        map[string]interface{}
	Errors         []string
}

func newWorkflowID() string {
	return "wf_" + uuid.NewString()
}

// State is the runtime state of a Department. All
// mutating access goes through Department's methods, which hold mu for the
// duration.
type State struct {
	ActiveAgents      []string
	SharedMemory      map[string]interface{}
	Status            Status
	LastCoordination  time.Time
	CoordinationHistory []string
	ResourceUsage     map[string]interface{}
	ErrorLog          []string
	WorkflowsCompleted int
	WorkflowsFailed    int
	AvgCompletionTimeS float64
	ErrorCount         int
}

// Department owns its agent list and runtime state. All public
// methods are safe for concurrent use; the workflows map and its
// derived health fields are guarded by mu.
type Department struct {
	mu sync.RWMutex

	spec   Spec
	agents map[string]agentspec.AgentSpec // by agent ID
	state  State

	initAgent AgentInitializer

	workflows map[string]*Workflow
}

// New creates an inactive Department from a Spec.
func New(spec Spec) *Department {
	if spec.DepartmentID == "" {
		spec.DepartmentID = newDepartmentID()
	}
	now := time.Now()
	if spec.CreatedAt.IsZero() {
		spec.CreatedAt = now
	}
	spec.UpdatedAt = now

	agents := make(map[string]agentspec.AgentSpec, len(spec.MicroAgents))
	for _, a := range spec.MicroAgents {
		agents[a.ID] = a
	}

	return &Department{
		spec:   spec,
		agents: agents,
		state: State{
			SharedMemory:  map[string]interface{}{},
			ResourceUsage: map[string]interface{}{},
			Status:        StatusInactive,
		},
		workflows: map[string]*Workflow{},
	}
}

// ID returns the department's identifier.
func (d *Department) ID() string { return d.spec.DepartmentID }

// Name returns the department's name.
func (d *Department) Name() string { return d.spec.Name }

// Rules returns the department's coordination rules.
func (d *Department) Rules() []CoordinationRule {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]CoordinationRule(nil), d.spec.Rules...)
}
