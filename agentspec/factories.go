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

package agentspec

import (
	"time"

	"github.com/google/uuid"
)

func newID() string {
	return "agent:" + uuid.NewString()
}

func baseSpec(name, description, createdBy string) AgentSpec {
	now := time.Now()
	return AgentSpec{
		ID:          newID(),
		Name:        name,
		Description: description,
		Version:     "1.0.0",
		Status:      StatusDraft,
		Integrations: map[string]Integration{},
		Inputs:       map[string]FieldSchema{},
		Outputs:      map[string]FieldSchema{},
		ResourceLimits: ResourceLimits{
			CPUCores:   0.5,
			MemoryMB:   256,
			TimeoutS:   300,
			MaxRetries: 3,
		},
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: createdBy,
	}
}

// NewMonitorAgent builds a well-formed spec for a capability that watches a
// source on an interval and raises alerts, e.g. "Monitor my email for
// urgent messages".
func NewMonitorAgent(name, description, createdBy, capability, integrationService string, intervalMinutes int) (*AgentSpec, error) {
	spec := baseSpec(name, description, createdBy)
	spec.Capabilities = []string{capability, "alert_sending"}
	spec.Triggers = []Trigger{{Kind: TriggerTime, IntervalMinutes: intervalMinutes}}
	if integrationService != "" {
		spec.Integrations[integrationService] = Integration{
			ServiceName: integrationService,
			Auth:        AuthOAuth2,
			Scopes:      []string{"read"},
			RateLimit:   100,
		}
	}
	if err := Validate(&spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// NewSyncAgent builds a well-formed spec that moves data between two
// integrations on a schedule.
func NewSyncAgent(name, description, createdBy string, sourceService, destService string, intervalMinutes int) (*AgentSpec, error) {
	spec := baseSpec(name, description, createdBy)
	spec.Capabilities = []string{"data_sync", "data_transformation"}
	spec.Triggers = []Trigger{{Kind: TriggerTime, IntervalMinutes: intervalMinutes}}
	spec.Integrations[sourceService] = Integration{
		ServiceName: sourceService,
		Auth:        AuthOAuth2,
		Scopes:      []string{"read"},
		RateLimit:   100,
	}
	spec.Integrations[destService] = Integration{
		ServiceName: destService,
		Auth:        AuthOAuth2,
		Scopes:      []string{"write"},
		RateLimit:   100,
	}
	if err := Validate(&spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// NewReportAgent builds a well-formed spec that generates a recurring
// report on a cron trigger. It adds no integrations, email or otherwise.
func NewReportAgent(name, description, createdBy string, cron string) (*AgentSpec, error) {
	spec := baseSpec(name, description, createdBy)
	spec.Capabilities = []string{"report_generation", "report_scheduling"}
	spec.Triggers = []Trigger{{Kind: TriggerTime, Cron: cron}}
	if err := Validate(&spec); err != nil {
		return nil, err
	}
	return &spec, nil
}
