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

// Package synth implements two-phase agent code production: a deterministic
// template fast path, and a Completion-backed generative fallback with
// static validation and bounded retries.
package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/avisanghavi/agentctl/agentspec"
	"github.com/avisanghavi/agentctl/completion"
)

const maxAttempts = 3

// Synthesizer produces executable agent source from an AgentSpec.
type Synthesizer struct {
	provider completion.Provider
}

// New builds a Synthesizer backed by the given Completion provider.
func New(provider completion.Provider) *Synthesizer {
	return &Synthesizer{provider: provider}
}

// Synthesize tries the template fast path first; if no template clears
// the confidence threshold, it falls through to the generative slow path
// with up to three validated attempts.
func (s *Synthesizer) Synthesize(ctx context.Context, spec *agentspec.AgentSpec, request string) (string, error) {
	if match := TemplateMatch(request, spec); match != nil && match.Confidence >= templateMatchThreshold {
		source := match.Template.Render(spec, match.Params)
		if result := Validate(source); result.Valid {
			return source, nil
		}
	}

	var lastErr string
	for attempt := 0; attempt < maxAttempts; attempt++ {
		source, err := s.generateAttempt(ctx, spec, request, lastErr)
		if err != nil {
			lastErr = err.Error()
			continue
		}

		result := Validate(source)
		if result.Valid {
			return source, nil
		}
		lastErr = result.Error
	}

	return "", &CodeGenerationError{Reason: lastErr}
}

func (s *Synthesizer) generateAttempt(ctx context.Context, spec *agentspec.AgentSpec, request, previousError string) (string, error) {
	system := buildSystemPrompt(spec)
	user := buildUserPrompt(spec, request, previousError)

	result, err := s.provider.Generate(ctx, system, user, completion.Options{MaxTokens: 2048, Temperature: 0.1})
	if err != nil {
		return "", err
	}
	return stripCodeFences(result.Text), nil
}

func buildSystemPrompt(spec *agentspec.AgentSpec) string {
	var libs []string
	for lib := range ApprovedLibraries {
		libs = append(libs, lib)
	}

	return fmt.Sprintf(`You generate Python source for a sandboxed agent worker.

Required methods: __init__, initialize, execute, cleanup.
The class must inherit from BaseAgent or SandboxAgent.
Approved libraries: %s
Forbidden: exec/eval, subprocess, os.system, write/append file opens, input(), globals()/locals()/vars(), compile().
`, strings.Join(libs, ", "))
}

func buildUserPrompt(spec *agentspec.AgentSpec, request, previousError string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original request: %s\n", request)
	fmt.Fprintf(&b, "Agent name: %s\n", spec.Name)
	fmt.Fprintf(&b, "Description: %s\n", spec.Description)
	fmt.Fprintf(&b, "Capabilities: %s\n", strings.Join(spec.Capabilities, ", "))
	fmt.Fprintf(&b, "Triggers: %d configured\n", len(spec.Triggers))
	fmt.Fprintf(&b, "Integrations: %d configured\n", len(spec.Integrations))
	if previousError != "" {
		fmt.Fprintf(&b, "Previous attempt failed validation: %s\nFix this and retry.\n", previousError)
	}
	return b.String()
}

func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
