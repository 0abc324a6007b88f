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

// Package agentspec canonicalizes and validates agent descriptions: the
// typed identity, capability set, triggers, integrations, and resource caps
// an orchestrator instantiates and a sandbox runs.
package agentspec

import "time"

// Status is the lifecycle state of an AgentSpec.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusArchived Status = "archived"
)

// TriggerKind distinguishes the three trigger variants.
type TriggerKind string

const (
	TriggerTime   TriggerKind = "time"
	TriggerEvent  TriggerKind = "event"
	TriggerManual TriggerKind = "manual"
)

// Trigger is a tagged union over Time/Event/Manual. Exactly one of the
// kind-specific field groups is populated, matching Kind.
type Trigger struct {
	Kind TriggerKind `json:"kind"`

	// Time trigger: exactly one of Cron or IntervalMinutes is set.
	Cron            string `json:"cron,omitempty"`
	IntervalMinutes int    `json:"interval_minutes,omitempty"`

	// Event trigger.
	URL        string   `json:"url,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
	Source     string   `json:"source,omitempty"`

	// Manual trigger.
	Description string `json:"description,omitempty"`
}

// FieldSchema describes one named input or output field.
type FieldSchema struct {
	Type       string                 `json:"type"`
	Required   bool                   `json:"required"`
	Validation map[string]interface{} `json:"validation,omitempty"`
}

// FieldType enumerates the allowed FieldSchema.Type values.
const (
	FieldTypeString  = "string"
	FieldTypeNumber  = "number"
	FieldTypeBoolean = "boolean"
	FieldTypeObject  = "object"
	FieldTypeArray   = "array"
)

// AuthType enumerates allowed Integration.Auth values.
type AuthType string

const (
	AuthOAuth2   AuthType = "oauth2"
	AuthAPIKey   AuthType = "api_key"
	AuthWebhook  AuthType = "webhook"
	AuthInternal AuthType = "internal"
	AuthScraping AuthType = "scraping"
)

// Integration is one entry of AgentSpec.Integrations. ServiceName must equal
// the map key it is stored under.
type Integration struct {
	ServiceName string   `json:"service_name"`
	Auth        AuthType `json:"auth"`
	Scopes      []string `json:"scopes,omitempty"`
	RateLimit   int      `json:"rate_limit"`
}

// ResourceLimits bounds what a deployed agent may consume.
type ResourceLimits struct {
	CPUCores   float64 `json:"cpu"`
	MemoryMB   int     `json:"memory"`
	TimeoutS   int     `json:"timeout"`
	MaxRetries int     `json:"max_retries"`
}

// Hard bounds on what a spec's resource_limits may request.
const (
	MinCPUCores   = 0.1
	MaxCPUCores   = 4.0
	MinMemoryMB   = 128
	MaxMemoryMB   = 2048
	MinTimeoutS   = 30
	MaxTimeoutS   = 3600
	MinMaxRetries = 0
	MaxMaxRetries = 10
)

// AgentSpec is the central entity: a typed, validated description of one
// agent.
type AgentSpec struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description"`
	Version        string                 `json:"version"`
	Capabilities   []string               `json:"capabilities"`
	Triggers       []Trigger              `json:"triggers"`
	Integrations   map[string]Integration `json:"integrations,omitempty"`
	Inputs         map[string]FieldSchema `json:"inputs,omitempty"`
	Outputs        map[string]FieldSchema `json:"outputs,omitempty"`
	ResourceLimits ResourceLimits         `json:"resource_limits"`
	Status         Status                 `json:"status"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	CreatedBy      string                 `json:"created_by"`
}

// ValidationError reports the field and reason an invariant failed.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return "agentspec: " + e.Field + ": " + e.Reason
}
