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
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/avisanghavi/agentctl/agentspec"
	"github.com/avisanghavi/agentctl/completion"
	"github.com/avisanghavi/agentctl/sandbox"
)

// nodeFunc is one state-machine node: read the state, do work, return a
// partial update. The scheduler merges the update before checkpointing
// "{node}_complete".
type nodeFunc func(ctx context.Context, o *Orchestrator, state *OrchestratorState) (partialUpdate, error)

// nextFunc selects the next node name given the merged state, or "" for
// END. Only check_existing_agents branches; every other node has a fixed
// successor.
type nextFunc func(state *OrchestratorState) string

type nodeEntry struct {
	fn      nodeFunc
	next    nextFunc
	percent int
}

const (
	nodeParseRequest        = "parse_request"
	nodeUnderstandIntent     = "understand_intent"
	nodeCheckExistingAgents  = "check_existing_agents"
	nodeCreateAgent          = "create_agent"
	nodeDeployAgent          = "deploy_agent"
)

var nodeOrder = []string{
	nodeParseRequest,
	nodeUnderstandIntent,
	nodeCheckExistingAgents,
	nodeCreateAgent,
	nodeDeployAgent,
}

func fixedNext(name string) nextFunc {
	return func(*OrchestratorState) string { return name }
}

var nodeTable = map[string]nodeEntry{
	nodeParseRequest:       {fn: parseRequestNode, next: fixedNext(nodeUnderstandIntent), percent: 20},
	nodeUnderstandIntent:    {fn: understandIntentNode, next: fixedNext(nodeCheckExistingAgents), percent: 40},
	nodeCheckExistingAgents: {fn: checkExistingAgentsNode, next: branchAfterCheckExistingAgents, percent: 60},
	nodeCreateAgent:         {fn: createAgentNode, next: fixedNext(nodeDeployAgent), percent: 80},
	nodeDeployAgent:         {fn: deployAgentNode, next: fixedNext(""), percent: 100},
}

func branchAfterCheckExistingAgents(state *OrchestratorState) string {
	if state.ParsedIntent == nil {
		return ""
	}
	switch state.ParsedIntent.IntentType {
	case IntentCreateAgent, IntentModifyAgent:
		return nodeCreateAgent
	default:
		return ""
	}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func parseRequestNode(ctx context.Context, o *Orchestrator, state *OrchestratorState) (partialUpdate, error) {
	trimmed := strings.TrimSpace(whitespaceRe.ReplaceAllString(state.UserRequest, " "))
	if trimmed == "" {
		return partialUpdate{}, &ParseError{Reason: "unintelligible"}
	}
	state.UserRequest = trimmed
	return partialUpdate{}, nil
}

// intentJSON is the shape understand_intent asks Completion to return.
type intentJSON struct {
	IntentType string                 `json:"intent_type"`
	Parameters map[string]interface{} `json:"parameters"`
	Confidence float64                `json:"confidence"`
}

func understandIntentNode(ctx context.Context, o *Orchestrator, state *OrchestratorState) (partialUpdate, error) {
	system := `Classify the user's request into one intent. Respond with JSON only:
{"intent_type": "CREATE_AGENT|MODIFY_AGENT|DELETE_AGENT|LIST_AGENTS|EXECUTE_TASK|CLARIFICATION_NEEDED", "parameters": {}, "confidence": 0.0}`
	user := fmt.Sprintf("Request: %s\nKnown agents: %d", state.UserRequest, len(state.ExistingAgents))

	parsed, err := classifyIntent(ctx, o.completion, system, user)
	if err != nil {
		return partialUpdate{}, &completion.CompletionError{Provider: "understand_intent", Cause: err}
	}

	needsClarification := parsed.Confidence < 0.5 || parsed.IntentType == IntentClarificationNeeded
	update := partialUpdate{
		parsedIntent: &ParsedIntent{
			IntentType: parsed.IntentType,
			Parameters: parsed.Parameters,
			Confidence: parsed.Confidence,
		},
		needsClarification: boolPtr(needsClarification),
	}
	if needsClarification {
		questions := []string{"What would you like this agent to do?"}
		missing := []string{"capability", "integration"}
		suggestions := []string{
			"Monitor my email for urgent messages",
			"Sync leads from Salesforce to HubSpot daily",
		}
		update.clarificationQuestions = questions
		update.missingInfo = missing
		update.suggestions = suggestions

		raisedAt := time.Now()
		update.clarification = &ClarificationRequest{
			Questions:   questions,
			MissingInfo: missing,
			Suggestions: suggestions,
			RaisedAt:    raisedAt,
			ExpiresAt:   raisedAt.Add(clarificationTTL),
		}
	}
	return update, nil
}

func classifyIntent(ctx context.Context, provider completion.Provider, system, user string) (*ParsedIntent, error) {
	result, err := provider.Generate(ctx, system, user, completion.Options{MaxTokens: 256, Temperature: 0.0})
	if err != nil {
		return nil, err
	}

	var raw intentJSON
	if obj := extractJSONObject(result.Text); obj != "" {
		if jsonErr := json.Unmarshal([]byte(obj), &raw); jsonErr == nil && raw.IntentType != "" {
			return &ParsedIntent{
				IntentType: IntentType(raw.IntentType),
				Parameters: raw.Parameters,
				Confidence: raw.Confidence,
			}, nil
		}
	}

	// Completions are non-deterministic; fall back to a sentinel default
	// rather than surfacing a parse failure to the caller.
	return &ParsedIntent{IntentType: IntentCreateAgent, Confidence: 0.3}, nil
}

// extractJSONObject finds the outermost {...} substring in text.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func checkExistingAgentsNode(ctx context.Context, o *Orchestrator, state *OrchestratorState) (partialUpdate, error) {
	blob, err := o.checkpoints.LoadAgents(ctx, state.SessionID)
	if err != nil {
		// No saved agents yet is the common case, not a failure.
		return partialUpdate{existingAgents: []agentspec.AgentSpec{}}, nil
	}

	agents, parseErr := agentspec.ParseList(blob)
	if parseErr != nil {
		o.log.Warn(state.SessionID, "", "persisted agent list failed validation, ignoring", map[string]interface{}{"error": parseErr.Error()})
		return partialUpdate{existingAgents: []agentspec.AgentSpec{}}, nil
	}
	return partialUpdate{existingAgents: agents}, nil
}

func createAgentNode(ctx context.Context, o *Orchestrator, state *OrchestratorState) (partialUpdate, error) {
	spec, err := o.buildAgentSpec(ctx, state)
	if err != nil {
		return partialUpdate{}, err
	}

	source, err := o.synth.Synthesize(ctx, spec, state.UserRequest)
	if err != nil {
		return partialUpdate{}, err
	}

	return partialUpdate{agentSpec: spec, generatedSource: source}, nil
}

// buildAgentSpec produces an AgentSpec skeleton via Completion, then
// instantiates it through the matching factory.
func (o *Orchestrator) buildAgentSpec(ctx context.Context, state *OrchestratorState) (*agentspec.AgentSpec, error) {
	system := `You design an AgentSpec skeleton for an automation platform. Respond with
JSON only: {"kind": "monitor|sync|report", "name": "...", "description": "...",
"capability": "...", "integration_service": "...", "source_service": "...",
"dest_service": "...", "interval_minutes": 30, "cron": "0 8 * * 1"}`
	user := fmt.Sprintf("Request: %s", state.UserRequest)

	result, err := o.completion.Generate(ctx, system, user, completion.Options{MaxTokens: 512, Temperature: 0.2})
	if err != nil {
		return nil, &completion.CompletionError{Provider: "create_agent", Cause: err}
	}

	var skel struct {
		Kind               string `json:"kind"`
		Name               string `json:"name"`
		Description        string `json:"description"`
		Capability         string `json:"capability"`
		IntegrationService string `json:"integration_service"`
		SourceService      string `json:"source_service"`
		DestService        string `json:"dest_service"`
		IntervalMinutes    int    `json:"interval_minutes"`
		Cron               string `json:"cron"`
	}
	if obj := extractJSONObject(result.Text); obj != "" {
		_ = json.Unmarshal([]byte(obj), &skel)
	}

	if skel.Name == "" {
		skel.Name = inferAgentName(state.UserRequest)
	}
	if skel.Description == "" {
		skel.Description = state.UserRequest
	}
	if skel.IntervalMinutes <= 0 {
		skel.IntervalMinutes = 30
	}

	switch skel.Kind {
	case "sync":
		return agentspec.NewSyncAgent(skel.Name, skel.Description, state.SessionID, orDefault(skel.SourceService, "gmail"), orDefault(skel.DestService, "slack"), skel.IntervalMinutes)
	case "report":
		return agentspec.NewReportAgent(skel.Name, skel.Description, state.SessionID, orDefault(skel.Cron, "0 8 * * 1"))
	default:
		return agentspec.NewMonitorAgent(skel.Name, skel.Description, state.SessionID, orDefault(skel.Capability, "email_monitoring"), orDefault(skel.IntegrationService, "gmail"), skel.IntervalMinutes)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func inferAgentName(request string) string {
	words := strings.Fields(request)
	if len(words) > 6 {
		words = words[:6]
	}
	name := strings.Join(words, " ")
	if len(name) < 2 {
		return "Generated Agent"
	}
	return name
}

func deployAgentNode(ctx context.Context, o *Orchestrator, state *OrchestratorState) (partialUpdate, error) {
	if state.AgentSpec == nil {
		return partialUpdate{deploymentStatus: DeploymentFailed, errorMessage: "no agent spec to deploy"}, nil
	}

	spec := *state.AgentSpec
	spec.Status = agentspec.StatusActive
	agents := upsertAgent(state.ExistingAgents, spec)

	if err := o.checkpoints.SaveAgents(ctx, state.SessionID, agents, o.sessionTimeout); err != nil {
		return partialUpdate{}, fmt.Errorf("orchestrator: persist agents: %w", err)
	}

	update := partialUpdate{
		agentSpec:        &spec,
		existingAgents:   agents,
		deploymentStatus: DeploymentCompleted,
	}

	if o.sandbox != nil && state.GeneratedSource != "" {
		rt := o.runInSandbox(ctx, state.SessionID, &spec, state.GeneratedSource)
		update.runtime = rt
		if err := o.checkpoints.SaveAgentRuntime(ctx, state.SessionID, spec.ID, rt); err != nil {
			// Best-effort: the deployment itself already succeeded.
			_ = err
		}
	}

	return update, nil
}

func upsertAgent(existing []agentspec.AgentSpec, spec agentspec.AgentSpec) []agentspec.AgentSpec {
	for i := range existing {
		if existing[i].ID == spec.ID {
			out := append([]agentspec.AgentSpec(nil), existing...)
			out[i] = spec
			return out
		}
	}
	return append(append([]agentspec.AgentSpec(nil), existing...), spec)
}

// runInSandbox submits generated source to the SandboxRuntime and attaches
// a summary to the spec's runtime context.
// A sandbox failure never fails the deployment step itself.
func (o *Orchestrator) runInSandbox(ctx context.Context, session string, spec *agentspec.AgentSpec, source string) *RuntimeContext {
	const image = "agentctl/worker:latest"
	const network = "agentctl-sandbox"

	if err := o.sandbox.EnsureImage(ctx, image); err != nil {
		return &RuntimeContext{ExitStatus: (&sandbox.SandboxError{Stage: sandbox.StageBuild, Cause: err}).Error()}
	}
	if err := o.sandbox.EnsureNetwork(ctx, network); err != nil {
		return &RuntimeContext{ExitStatus: (&sandbox.SandboxError{Stage: sandbox.StageCreate, Cause: err}).Error()}
	}

	ws, err := sandbox.NewWorkspace(source, nil)
	if err != nil {
		return &RuntimeContext{ExitStatus: err.Error()}
	}
	defer ws.Remove()

	id, err := o.sandbox.Create(ctx, sandbox.CreateOptions{
		Image: image,
		Name:  "agent-" + strconv.FormatInt(time.Now().UnixNano(), 36),
		Env: map[string]string{
			"SANDBOX_ID":       spec.ID,
			"AGENT_TIMEOUT":    strconv.Itoa(spec.ResourceLimits.TimeoutS),
			"AGENT_MAX_MEMORY": strconv.Itoa(spec.ResourceLimits.MemoryMB),
			"AGENT_FILE":       "/agent/" + sandbox.AgentSourceFile,
		},
		Mounts:       ws.Mounts(),
		Network:      network,
		ReadOnlyRoot: true,
		Tmpfs:        []sandbox.Tmpfs{{Mountpoint: "/tmp", SizeBytes: 16 << 20, NoExec: true}},
		Limits: sandbox.ResourceLimits{
			MemoryMB: int64(spec.ResourceLimits.MemoryMB),
			TimeoutS: spec.ResourceLimits.TimeoutS,
		},
		SecurityOptions: []string{"no-new-privileges"},
		User:            "1000:1000",
	})
	if err != nil {
		return &RuntimeContext{ExitStatus: (&sandbox.SandboxError{Stage: sandbox.StageCreate, Cause: err}).Error()}
	}

	if err := o.sandbox.Start(ctx, id); err != nil {
		return &RuntimeContext{ContainerID: id, ExitStatus: (&sandbox.SandboxError{Stage: sandbox.StageRuntime, Cause: err}).Error()}
	}

	timeout := time.Duration(spec.ResourceLimits.TimeoutS) * time.Second
	result, err := o.sandbox.Wait(ctx, id, timeout)
	if err != nil {
		return &RuntimeContext{ContainerID: id, ExitStatus: (&sandbox.SandboxError{Stage: sandbox.StageRuntime, Cause: err}).Error()}
	}

	logs, _ := o.sandbox.Logs(ctx, id)
	lastLogs := lastNLines(logs, 20)

	return &RuntimeContext{
		ContainerID: id,
		ExitStatus:  string(result.Status),
		LastLogs:    lastLogs,
	}
}

func lastNLines(text string, n int) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
