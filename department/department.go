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

package department

import (
	"context"
	"fmt"
	"time"

	"github.com/avisanghavi/agentctl/agentspec"
)

// AgentInitializer prepares one micro-agent for service when its
// department starts. Concrete department subtypes supply their own
// initializer; a nil initializer means agents need no per-start setup.
type AgentInitializer func(ctx context.Context, agent agentspec.AgentSpec) error

// WithInitializer attaches the per-agent initializer Start runs.
func (d *Department) WithInitializer(fn AgentInitializer) *Department {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initAgent = fn
	return d
}

// Start transitions a Department inactive -> initializing -> active,
// running the configured initializer for every micro-agent along the
// way. An initializer failure leaves the department in the error state
// with the failure logged.
func (d *Department) Start(ctx context.Context) error {
	d.mu.Lock()
	d.state.Status = StatusInitializing
	agents := make([]agentspec.AgentSpec, 0, len(d.agents))
	for _, a := range d.agents {
		agents = append(agents, a)
	}
	initFn := d.initAgent
	d.mu.Unlock()

	active := make([]string, 0, len(agents))
	for _, a := range agents {
		if initFn != nil {
			if err := initFn(ctx, a); err != nil {
				d.mu.Lock()
				d.state.Status = StatusError
				d.state.ErrorCount++
				d.state.ErrorLog = append(d.state.ErrorLog, fmt.Sprintf("initialize %s: %v", a.ID, err))
				d.mu.Unlock()
				return fmt.Errorf("department: initialize agent %s: %w", a.ID, err)
			}
		}
		active = append(active, a.ID)
	}

	d.mu.Lock()
	d.state.ActiveAgents = active
	d.state.Status = StatusActive
	d.mu.Unlock()
	return nil
}

// Stop transitions a Department to offline and clears its active agent
// list.
func (d *Department) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Status = StatusOffline
	d.state.ActiveAgents = nil
	return nil
}

// AddAgent registers a new micro-agent with the department.
func (d *Department) AddAgent(spec agentspec.AgentSpec) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.agents[spec.ID] = spec
	if d.state.Status == StatusActive || d.state.Status == StatusCoordinating {
		d.state.ActiveAgents = append(d.state.ActiveAgents, spec.ID)
	}
}

// RemoveAgent unregisters a micro-agent.
func (d *Department) RemoveAgent(agentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.agents, agentID)
	filtered := d.state.ActiveAgents[:0]
	for _, id := range d.state.ActiveAgents {
		if id != agentID {
			filtered = append(filtered, id)
		}
	}
	d.state.ActiveAgents = filtered
}

// Agents returns a snapshot of the department's current micro-agents.
func (d *Department) Agents() []agentspec.AgentSpec {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]agentspec.AgentSpec, 0, len(d.agents))
	for _, a := range d.agents {
		out = append(out, a)
	}
	return out
}

// StartWorkflow records a new pending-then-in-progress workflow and assigns
// it to agents.
func (d *Department) StartWorkflow(id, task string, assignedAgents []string) *Workflow {
	if id == "" {
		id = newWorkflowID()
	}
	wf := &Workflow{
		ID:             id,
		Task:           task,
		Status:         WorkflowInProgress,
		StartedAt:      time.Now(),
		AssignedAgents: assignedAgents,
		Results:        map[string]interface{}{},
	}

	d.mu.Lock()
	d.workflows[id] = wf
	d.state.Status = StatusCoordinating
	d.mu.Unlock()
	return wf
}

// StopWorkflow marks a running workflow paused without settling its health
// counters.
func (d *Department) StopWorkflow(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	wf, ok := d.workflows[id]
	if !ok {
		return fmt.Errorf("department: unknown workflow %q", id)
	}
	wf.Status = WorkflowPaused
	return nil
}

// SettleWorkflow records a workflow's terminal outcome, updates the running
// success-rate counters incrementally, and re-evaluates health.
func (d *Department) SettleWorkflow(id string, success bool, results map[string]interface{}, errMsg string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	wf, ok := d.workflows[id]
	if !ok {
		return
	}
	wf.CompletedAt = time.Now()
	if success {
		wf.Status = WorkflowCompleted
		wf.Results = results
		d.state.WorkflowsCompleted++
	} else {
		wf.Status = WorkflowFailed
		if errMsg != "" {
			wf.Errors = append(wf.Errors, errMsg)
			d.state.ErrorLog = append(d.state.ErrorLog, errMsg)
		}
		d.state.WorkflowsFailed++
		d.state.ErrorCount++
	}

	total := d.state.WorkflowsCompleted + d.state.WorkflowsFailed
	if total > 0 {
		elapsed := wf.CompletedAt.Sub(wf.StartedAt).Seconds()
		d.state.AvgCompletionTimeS = ((d.state.AvgCompletionTimeS * float64(total-1)) + elapsed) / float64(total)
	}
	d.state.LastCoordination = time.Now()
	d.state.CoordinationHistory = append(d.state.CoordinationHistory, id)

	workflowsTotal.WithLabelValues(d.spec.DepartmentID, outcomeLabel(success)).Inc()
	avgCompletionSeconds.WithLabelValues(d.spec.DepartmentID).Set(d.state.AvgCompletionTimeS)
	errorCount.WithLabelValues(d.spec.DepartmentID).Set(float64(d.state.ErrorCount))

	if d.state.Status == StatusCoordinating {
		d.state.Status = StatusActive
	}
}

// IncrementErrorCount records a coordination-level failure that did not
// settle a specific workflow, e.g. a collaborative coordination timeout.
func (d *Department) IncrementErrorCount(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.ErrorCount++
	if reason != "" {
		d.state.ErrorLog = append(d.state.ErrorLog, reason)
	}
	errorCount.WithLabelValues(d.spec.DepartmentID).Set(float64(d.state.ErrorCount))
}

// successRate returns completed/(completed+failed), or 1.0 when nothing has
// settled yet.
func (d *Department) successRate() float64 {
	total := d.state.WorkflowsCompleted + d.state.WorkflowsFailed
	if total == 0 {
		return 1.0
	}
	return float64(d.state.WorkflowsCompleted) / float64(total)
}

// Health classifies the department's current condition.
func (d *Department) Health() Health {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.state.Status == StatusInactive || d.state.Status == StatusOffline {
		return HealthOffline
	}

	rate := d.successRate()
	switch {
	case d.state.ErrorCount >= maxErrors || rate < 0.5:
		return HealthCritical
	case rate < 0.8:
		return HealthDegraded
	case d.state.ErrorCount < maxErrors && rate >= 0.8:
		return HealthHealthy
	default:
		return HealthDegraded
	}
}

// SaveState returns a deep-enough copy of the department's runtime state
// for persistence, mirroring checkpoint.Store's snapshot-on-write
// discipline.
func (d *Department) SaveState() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cp := d.state
	cp.ActiveAgents = append([]string(nil), d.state.ActiveAgents...)
	cp.CoordinationHistory = append([]string(nil), d.state.CoordinationHistory...)
	cp.ErrorLog = append([]string(nil), d.state.ErrorLog...)
	memory := make(map[string]interface{}, len(d.state.SharedMemory))
	for k, v := range d.state.SharedMemory {
		memory[k] = v
	}
	cp.SharedMemory = memory
	return cp
}

// LoadState replaces the department's runtime state wholesale, e.g. after recovering from a persisted snapshot.
func (d *Department) LoadState(s State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = s
}

// GetStatus is a cloning accessor for external readers.
func (d *Department) GetStatus() (Status, Health) {
	d.mu.RLock()
	status := d.state.Status
	d.mu.RUnlock()
	return status, d.Health()
}

// SetSharedMemory writes one key into the department's shared memory map.
func (d *Department) SetSharedMemory(key string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.SharedMemory == nil {
		d.state.SharedMemory = map[string]interface{}{}
	}
	d.state.SharedMemory[key] = value
}

// SharedMemoryValue reads one key from the department's shared memory map.
func (d *Department) SharedMemoryValue(key string) (interface{}, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.state.SharedMemory[key]
	return v, ok
}

// CalculateBusinessImpact is a default, overridable-by-convention estimate
// of a department's contribution, derived from its settled workflow
// counters. Concrete department subtypes may compute a domain-specific figure instead; this
// gives every department a sane default.
func (d *Department) CalculateBusinessImpact() map[string]interface{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return map[string]interface{}{
		"workflows_completed":   d.state.WorkflowsCompleted,
		"workflows_failed":      d.state.WorkflowsFailed,
		"success_rate":          d.successRate(),
		"avg_completion_time_s": d.state.AvgCompletionTimeS,
	}
}
