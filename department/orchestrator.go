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
	"sync"
	"time"

	"github.com/avisanghavi/agentctl/agentspec"
	"github.com/avisanghavi/agentctl/bus"
	"github.com/avisanghavi/agentctl/shared/logger"
)

// Mode is one of the three coordination contracts.
type Mode string

const (
	ModeParallel      Mode = "parallel"
	ModeSequential    Mode = "sequential"
	ModeCollaborative Mode = "collaborative"
)

const defaultCollaborationTimeout = 300 * time.Second
const complexTaskAgentTarget = 3

// AgentTask is the unit of work one agent runs within a coordination
// round. Complexity ∈ {simple, moderate, complex} selects how many agents
// Select adds for a task.
type AgentTask struct {
	RequiredCapabilities []string
	Complexity           string
	WorkItems            []interface{}
	Context              map[string]interface{}
}

// AgentRunner executes one agent against a task context and returns its
// output or an error. The concrete agent runtime is an external
// collaborator; DepartmentOrchestrator only sequences calls to
// it.
type AgentRunner func(ctx context.Context, agent agentspec.AgentSpec, taskContext map[string]interface{}) (map[string]interface{}, error)

// Result is what one coordination round returns.
type Result struct {
	Success bool
	Outputs map[string]map[string]interface{}
	Error   string
}

// DepartmentOrchestrator runs coordination rounds against a Department's
// agents. active_coordinations is the one long-lived mutable map this
// component owns; it is guarded by mu.
type DepartmentOrchestrator struct {
	mu                  sync.Mutex
	activeCoordinations map[string]bool

	run AgentRunner
	bus *bus.Bus // optional; broadcasts the collaborative session opener
	log *logger.Logger
}

// NewOrchestrator builds a DepartmentOrchestrator that dispatches agent
// work through runner.
func NewOrchestrator(runner AgentRunner) *DepartmentOrchestrator {
	return &DepartmentOrchestrator{
		activeCoordinations: map[string]bool{},
		run:                 runner,
		log:                 logger.New("department_orchestrator"),
	}
}

// WithBus attaches a MessageBus so collaborative coordination broadcasts
// its session opener to department members instead of only invoking agents
// directly.
func (o *DepartmentOrchestrator) WithBus(b *bus.Bus) *DepartmentOrchestrator {
	o.bus = b
	return o
}

// Select picks agents from dept whose capability set intersects
// task.RequiredCapabilities: for complex
// tasks it keeps adding matches until three agents or the candidate pool
// is exhausted; if nothing matches at all it falls back to the first
// available agent.
func Select(dept *Department, task AgentTask) []agentspec.AgentSpec {
	agents := dept.Agents()
	var matched []agentspec.AgentSpec
	for _, a := range agents {
		if intersects(a.Capabilities, task.RequiredCapabilities) {
			matched = append(matched, a)
			if task.Complexity == "complex" && len(matched) >= complexTaskAgentTarget {
				break
			}
		}
	}
	if len(matched) == 0 && len(agents) > 0 {
		return agents[:1]
	}
	return matched
}

func intersects(have, want []string) bool {
	set := make(map[string]bool, len(want))
	for _, w := range want {
		set[w] = true
	}
	for _, h := range have {
		if set[h] {
			return true
		}
	}
	return false
}

// Coordinate dispatches workflowName against dept using mode, selecting
// agents via Select(dept, task).
func (o *DepartmentOrchestrator) Coordinate(ctx context.Context, dept *Department, workflowName string, mode Mode, task AgentTask, collaborationTimeout time.Duration) Result {
	o.mu.Lock()
	o.activeCoordinations[dept.ID()+":"+workflowName] = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.activeCoordinations, dept.ID()+":"+workflowName)
		o.mu.Unlock()
	}()

	agents := Select(dept, task)
	if len(agents) == 0 {
		return Result{Success: false, Error: "no agents available"}
	}

	var result Result
	switch mode {
	case ModeParallel:
		result = o.coordinateParallel(ctx, agents, task)
	case ModeSequential:
		result = o.coordinateSequential(ctx, agents, task)
	case ModeCollaborative:
		if collaborationTimeout <= 0 {
			collaborationTimeout = defaultCollaborationTimeout
		}
		result = o.coordinateCollaborative(ctx, dept, workflowName, agents, task, collaborationTimeout)
		if result.Error == "Collaboration timeout" {
			dept.IncrementErrorCount("collaboration timeout: " + workflowName)
		}
	default:
		return Result{Success: false, Error: fmt.Sprintf("unknown coordination mode %q", mode)}
	}

	coordinationsTotal.WithLabelValues(dept.ID(), string(mode), outcomeLabel(result.Success)).Inc()
	return result
}

// partitionWorkItems round-robins work items across n agents.
func partitionWorkItems(items []interface{}, n int) [][]interface{} {
	buckets := make([][]interface{}, n)
	for i, item := range items {
		idx := i % n
		buckets[idx] = append(buckets[idx], item)
	}
	return buckets
}

func (o *DepartmentOrchestrator) coordinateParallel(ctx context.Context, agents []agentspec.AgentSpec, task AgentTask) Result {
	buckets := partitionWorkItems(task.WorkItems, len(agents))

	type outcome struct {
		name   string
		output map[string]interface{}
		err    error
	}
	outcomes := make(chan outcome, len(agents))

	var wg sync.WaitGroup
	for i, agent := range agents {
		wg.Add(1)
		go func(a agentspec.AgentSpec, items []interface{}) {
			defer wg.Done()
			taskCtx := map[string]interface{}{"work_items": items}
			for k, v := range task.Context {
				taskCtx[k] = v
			}
			out, err := o.run(ctx, a, taskCtx)
			outcomes <- outcome{name: a.Name, output: out, err: err}
		}(agent, buckets[i])
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	outputs := map[string]map[string]interface{}{}
	success := true
	var firstErr string
	for o := range outcomes {
		if o.err != nil {
			success = false
			if firstErr == "" {
				firstErr = o.err.Error()
			}
			continue
		}
		outputs[o.name] = o.output
	}

	return Result{Success: success, Outputs: outputs, Error: firstErr}
}

func (o *DepartmentOrchestrator) coordinateSequential(ctx context.Context, agents []agentspec.AgentSpec, task AgentTask) Result {
	outputs := map[string]map[string]interface{}{}
	taskCtx := map[string]interface{}{}
	for k, v := range task.Context {
		taskCtx[k] = v
	}

	for _, agent := range agents {
		out, err := o.run(ctx, agent, taskCtx)
		if err != nil {
			return Result{Success: false, Outputs: outputs, Error: err.Error()}
		}
		outputs[agent.Name] = out
		// thread this agent's output into the next's context.
		for k, v := range out {
			taskCtx[k] = v
		}
	}
	return Result{Success: true, Outputs: outputs}
}

func (o *DepartmentOrchestrator) coordinateCollaborative(ctx context.Context, dept *Department, workflowName string, agents []agentspec.AgentSpec, task AgentTask, timeout time.Duration) Result {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		name   string
		output map[string]interface{}
		err    error
	}
	outcomes := make(chan outcome, len(agents))

	sessionCtx := map[string]interface{}{"collaboration_opener": true}
	for k, v := range task.Context {
		sessionCtx[k] = v
	}

	if o.bus != nil {
		if _, err := o.bus.Broadcast(ctx, dept.ID(), map[string]interface{}{
			"event":    "collaboration_opened",
			"workflow": workflowName,
		}, "department_orchestrator"); err != nil {
			o.log.Warn("", "", "failed to broadcast collaboration opener", map[string]interface{}{"department_id": dept.ID(), "error": err.Error()})
		}
	}

	for _, agent := range agents {
		go func(a agentspec.AgentSpec) {
			out, err := o.run(cctx, a, sessionCtx)
			select {
			case outcomes <- outcome{name: a.Name, output: out, err: err}:
			case <-cctx.Done():
			}
		}(agent)
	}

	merged := map[string]map[string]interface{}{}
	anySucceeded := false
	for i := 0; i < len(agents); i++ {
		select {
		case o := <-outcomes:
			if o.err == nil {
				merged[o.name] = o.output
				anySucceeded = true
			}
		case <-cctx.Done():
			return Result{Success: false, Error: "Collaboration timeout"}
		}
	}

	if !anySucceeded {
		return Result{Success: false, Outputs: merged, Error: "all agents failed"}
	}
	return Result{Success: true, Outputs: merged}
}
