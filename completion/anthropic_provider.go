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

package completion

import (
	"context"

	"github.com/avisanghavi/agentctl/completion/anthropic"
)

// AnthropicProvider adapts the anthropic.Provider HTTP client to the
// Completion capability.
type AnthropicProvider struct {
	provider *anthropic.Provider
}

// NewAnthropicProvider builds a Completion provider backed by Anthropic's
// API. Returns ErrNoProvider if apiKey is empty so callers can fall back to
// a documented default rather than failing startup.
func NewAnthropicProvider(apiKey string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, ErrNoProvider
	}
	p, err := anthropic.NewProvider(anthropic.Config{APIKey: apiKey})
	if err != nil {
		return nil, &CompletionError{Provider: "anthropic", Cause: err}
	}
	return &AnthropicProvider{provider: p}, nil
}

func (a *AnthropicProvider) Generate(ctx context.Context, system, user string, opts Options) (*Result, error) {
	req := anthropic.CompletionRequest{
		Prompt:        user,
		SystemPrompt:  system,
		MaxTokens:     opts.MaxTokens,
		Temperature:   opts.Temperature,
		StopSequences: opts.Stop,
	}

	resp, err := a.provider.Complete(ctx, req)
	if err != nil {
		return nil, &CompletionError{Provider: "anthropic", Cause: err}
	}

	return &Result{
		Text: resp.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
