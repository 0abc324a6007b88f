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

// Package completion defines the Completion capability: a single
// abstract text-completion call the orchestrator uses for intent
// classification, agent-spec synthesis, and code generation. The concrete
// LLM provider is an external collaborator — this package owns
// only the contract and one grounded HTTP-backed adapter (Anthropic).
package completion

import (
	"context"
	"errors"
)

// Usage reports token consumption for a single completion call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Options bounds a single completion call.
type Options struct {
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// Result is what a Provider returns for a completion call.
type Result struct {
	Text  string
	Usage Usage
}

// Provider is the Completion capability: invoke a text-completion backend
// with a system and user prompt and bounded generation options.
type Provider interface {
	Generate(ctx context.Context, system, user string, opts Options) (*Result, error)
}

// CompletionError wraps an upstream provider failure.
type CompletionError struct {
	Provider string
	Cause    error
}

func (e *CompletionError) Error() string {
	return "completion(" + e.Provider + "): " + e.Cause.Error()
}

func (e *CompletionError) Unwrap() error {
	return e.Cause
}

// ErrNoProvider is returned by providers that were constructed without
// credentials, so callers can fall back to a documented sentinel default
// ("Completion determinism").
var ErrNoProvider = errors.New("completion: no provider configured")
