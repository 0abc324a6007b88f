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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/avisanghavi/agentctl/agentspec"
	"github.com/avisanghavi/agentctl/checkpoint"
	"github.com/avisanghavi/agentctl/completion"
	"github.com/avisanghavi/agentctl/sandbox"
	"github.com/avisanghavi/agentctl/shared/logger"
	"github.com/avisanghavi/agentctl/synth"
)

// ProgressEvent is published once per node per request.
type ProgressEvent struct {
	Node    string
	Percent int
	Message string
}

// ProgressFunc receives one ProgressEvent per node invocation.
type ProgressFunc func(ProgressEvent)

// Orchestrator runs the request -> intent -> lookup -> synth -> deploy
// pipeline, checkpointing before and after every node so an interrupted
// run can be resumed at the step it last completed.
type Orchestrator struct {
	completion completion.Provider
	synth      *synth.Synthesizer
	checkpoints *checkpoint.Store
	sandbox    sandbox.Runtime // optional; nil disables sandbox execution

	maxRetries     int
	sessionTimeout time.Duration
	nodeTimeout    time.Duration

	progress ProgressFunc
	log      *logger.Logger
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithSandbox attaches a SandboxRuntime. Without one, deploy_agent stores
// the spec but never submits generated source for execution.
func WithSandbox(rt sandbox.Runtime) Option {
	return func(o *Orchestrator) { o.sandbox = rt }
}

// WithMaxRetries overrides the default per-node retry budget.
func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

// WithSessionTimeout overrides the TTL applied to agents:{session}.
func WithSessionTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.sessionTimeout = d
		}
	}
}

// WithProgress attaches the pluggable progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithNodeTimeout overrides the deadline each node inherits for its
// external calls.
func WithNodeTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.nodeTimeout = d
		}
	}
}

// New builds an Orchestrator. provider and checkpoints are required;
// sandbox, retry budget, session timeout, and progress callback are
// optional per the Option list above.
func New(provider completion.Provider, checkpoints *checkpoint.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		completion:     provider,
		synth:          synth.New(provider),
		checkpoints:    checkpoints,
		maxRetries:     3,
		sessionTimeout: time.Hour,
		nodeTimeout:    300 * time.Second,
		log:            logger.New("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) emit(node string, percent int, message string) {
	if o.progress != nil {
		o.progress(ProgressEvent{Node: node, Percent: percent, Message: message})
	}
}

// Process runs one request through the pipeline for session, starting at
// parse_request. If clarificationResponses is non-empty, it is folded into
// the request before the graph starts
// (the caller is expected to have already recovered the paused state and
// passed its user_request through; Process itself does not read prior
// checkpoints — use Resume for that).
func (o *Orchestrator) Process(ctx context.Context, request, session string, clarificationResponses map[string]string) (*OrchestratorState, error) {
	req := applyClarifications(request, clarificationResponses)
	state := newState(session, req)
	if len(clarificationResponses) > 0 {
		state.NeedsClarification = false
		state.Clarification = nil
	}
	return o.run(ctx, state, nodeParseRequest)
}

// applyClarifications folds question/answer pairs into the request as
// "{request}. Additional details: {q}: {a}; ...".
func applyClarifications(request string, responses map[string]string) string {
	if len(responses) == 0 {
		return request
	}
	var b strings.Builder
	b.WriteString(request)
	b.WriteString(". Additional details: ")
	first := true
	for q, a := range responses {
		if !first {
			b.WriteString("; ")
		}
		first = false
		fmt.Fprintf(&b, "%s: %s", q, a)
	}
	return b.String()
}

// Recover loads the latest checkpoint for session. A session with no
// checkpoint yet surfaces checkpoint.ErrNoCheckpoint to the caller
// unchanged.
func (o *Orchestrator) Recover(ctx context.Context, session string) (*OrchestratorState, error) {
	blob, step, err := o.checkpoints.Load(ctx, session, "")
	if err != nil {
		return nil, err
	}
	var state OrchestratorState
	if err := json.Unmarshal(blob, &state); err != nil {
		return nil, fmt.Errorf("orchestrator: unmarshal recovered state: %w", err)
	}
	state.LastStep = step
	return &state, nil
}

// Resume replaces user_request in the recovered state of session and
// re-runs from the last incomplete step. If
// the recovered state already reached completed, Resume is a no-op and
// returns it unchanged, so re-running a finished session never re-deploys.
func (o *Orchestrator) Resume(ctx context.Context, session, newRequest string) (*OrchestratorState, error) {
	state, err := o.Recover(ctx, session)
	if err != nil {
		return nil, err
	}
	if state.DeploymentStatus == DeploymentCompleted {
		return state, nil
	}

	state.UserRequest = newRequest
	nextNode := nextNodeAfter(state.LastStep)
	return o.run(ctx, state, nextNode)
}

// nextNodeAfter maps a checkpointed step label to the node that should run
// next on resume. A "{node}_complete" step resumes at that node's
// successor in nodeOrder; a "{node}_start" or "{node}_error" step re-runs
// the same node (the step never finished).
func nextNodeAfter(step string) string {
	switch {
	case strings.HasSuffix(step, "_complete"):
		name := strings.TrimSuffix(step, "_complete")
		for i, n := range nodeOrder {
			if n == name {
				if i+1 < len(nodeOrder) {
					return nodeOrder[i+1]
				}
				return ""
			}
		}
	case strings.HasSuffix(step, "_start"):
		return strings.TrimSuffix(step, "_start")
	case strings.HasSuffix(step, "_error"):
		return strings.TrimSuffix(step, "_error")
	}
	return nodeParseRequest
}

// run drives the node graph starting at startNode, checkpointing before
// and after every node and honoring the clarification pause and the
// per-node retry budget.
func (o *Orchestrator) run(ctx context.Context, state *OrchestratorState, startNode string) (*OrchestratorState, error) {
	current := startNode
	for current != "" {
		entry, ok := nodeTable[current]
		if !ok {
			return state, ErrUnknownNode
		}

		startStep := current + "_start"
		if err := o.checkpoints.Save(ctx, state.SessionID, startStep, state.clone()); err != nil {
			return state, fmt.Errorf("orchestrator: checkpoint %s: %w", startStep, err)
		}

		nodeCtx, cancel := context.WithTimeout(ctx, o.nodeTimeout)
		update, err := entry.fn(nodeCtx, o, state)
		cancel()
		if err != nil {
			state.RetryCount++
			if state.RetryCount <= o.maxRetries {
				state.ErrorMessage = softenError(err)
				errStep := current + "_error"
				_ = o.checkpoints.Save(ctx, state.SessionID, errStep, state.clone())
				o.emit(current, entry.percent, "retrying after error: "+state.ErrorMessage)
				continue // re-run the same node
			}

			state.DeploymentStatus = DeploymentFailed
			state.ErrorMessage = err.Error()
			errStep := current + "_error"
			_ = o.checkpoints.Save(ctx, state.SessionID, errStep, state.clone())
			state.LastStep = errStep
			return state, ErrRetriesExhausted
		}

		state.merge(update)
		state.LastStep = current + "_complete"
		if err := o.checkpoints.Save(ctx, state.SessionID, state.LastStep, state.clone()); err != nil {
			return state, fmt.Errorf("orchestrator: checkpoint %s: %w", state.LastStep, err)
		}
		o.emit(current, entry.percent, humanMessage(current, state))

		if state.NeedsClarification {
			// Clarification pauses the graph: return the state upward and
			// let the caller supply clarification_responses on the next
			// Process call.
			return state, nil
		}

		current = entry.next(state)
	}
	return state, nil
}

// softenError produces the user-visible message shown while a node failure
// is still being retried, before it turns terminal.
func softenError(err error) string {
	return "hit a transient issue, retrying: " + err.Error()
}

func humanMessage(node string, state *OrchestratorState) string {
	switch node {
	case nodeParseRequest:
		return "Understood your request."
	case nodeUnderstandIntent:
		if state.NeedsClarification {
			return "I need a bit more detail before continuing."
		}
		return "Classified your request."
	case nodeCheckExistingAgents:
		return fmt.Sprintf("Found %d existing agent(s) for this session.", len(state.ExistingAgents))
	case nodeCreateAgent:
		return "Generated the agent."
	case nodeDeployAgent:
		return "Deployed the agent."
	default:
		return ""
	}
}

// SessionSummary is one entry returned by ListSessions.
type SessionSummary struct {
	Session   string           `json:"session"`
	Timestamp time.Time        `json:"timestamp"`
	Status    DeploymentStatus `json:"status"`
	Request   string           `json:"request"`
}

// ListSessions reports every session with a checkpoint, newest first.
func (o *Orchestrator) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	sessions, err := o.checkpoints.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		var preview OrchestratorState
		_ = json.Unmarshal(s.Preview, &preview)
		out = append(out, SessionSummary{
			Session:   s.Session,
			Timestamp: s.Timestamp,
			Status:    preview.DeploymentStatus,
			Request:   preview.UserRequest,
		})
	}
	return out, nil
}

// findAgent locates a named agent within a session's persisted agent list.
func (o *Orchestrator) findAgent(ctx context.Context, session, name string) (*agentspec.AgentSpec, error) {
	blob, err := o.checkpoints.LoadAgents(ctx, session)
	if err != nil {
		return nil, err
	}
	agents, err := agentspec.ParseList(blob)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: parse agents: %w", err)
	}
	for i := range agents {
		if agents[i].Name == name || agents[i].ID == name {
			return &agents[i], nil
		}
	}
	return nil, fmt.Errorf("orchestrator: agent %q not found in session %q", name, session)
}

// containerID looks up the sandbox container id attached to a deployed
// agent by deploy_agent, via the side index in checkpoint.Store
// keyed by (session, agent id).
func (o *Orchestrator) containerID(ctx context.Context, session string, agent *agentspec.AgentSpec) string {
	blob, err := o.checkpoints.LoadAgentRuntime(ctx, session, agent.ID)
	if err != nil {
		return ""
	}
	var rt RuntimeContext
	if err := json.Unmarshal(blob, &rt); err != nil {
		return ""
	}
	return rt.ContainerID
}

// StopAgent stops the sandbox worker backing a deployed agent, if one is
// running. It does not remove the agent's persisted spec.
func (o *Orchestrator) StopAgent(ctx context.Context, session, name string) error {
	if o.sandbox == nil {
		return nil
	}
	agent, err := o.findAgent(ctx, session, name)
	if err != nil {
		return err
	}
	id := o.containerID(ctx, session, agent)
	if id == "" {
		return nil
	}
	return o.sandbox.Stop(ctx, id, 10*time.Second)
}

// CleanupAgent stops and removes the sandbox worker backing a deployed
// agent, if one exists.
func (o *Orchestrator) CleanupAgent(ctx context.Context, session, name string) error {
	if o.sandbox == nil {
		return nil
	}
	agent, err := o.findAgent(ctx, session, name)
	if err != nil {
		return err
	}
	id := o.containerID(ctx, session, agent)
	if id == "" {
		return nil
	}
	_ = o.sandbox.Stop(ctx, id, 10*time.Second)
	return o.sandbox.Remove(ctx, id)
}

// GetAgentLogs returns the sandbox worker's captured output for a deployed
// agent.
func (o *Orchestrator) GetAgentLogs(ctx context.Context, session, name string) (string, error) {
	if o.sandbox == nil {
		return "", nil
	}
	agent, err := o.findAgent(ctx, session, name)
	if err != nil {
		return "", err
	}
	id := o.containerID(ctx, session, agent)
	if id == "" {
		return "", nil
	}
	return o.sandbox.Logs(ctx, id)
}

// AgentStatus reports a deployed agent's lifecycle status and (if a
// sandbox worker is running) its resource usage.
type AgentStatus struct {
	Spec  agentspec.AgentSpec `json:"spec"`
	Stats *sandbox.Stats      `json:"stats,omitempty"`
}

// GetAgentStatus returns a deployed agent's spec and live resource usage.
func (o *Orchestrator) GetAgentStatus(ctx context.Context, session, name string) (*AgentStatus, error) {
	agent, err := o.findAgent(ctx, session, name)
	if err != nil {
		return nil, err
	}
	status := &AgentStatus{Spec: *agent}
	if o.sandbox == nil {
		return status, nil
	}
	id := o.containerID(ctx, session, agent)
	if id == "" {
		return status, nil
	}
	stats, err := o.sandbox.Stats(ctx, id)
	if err == nil {
		status.Stats = &stats
	}
	return status, nil
}
