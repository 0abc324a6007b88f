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

import "testing"

func TestNewMonitorAgentProducesValidSpec(t *testing.T) {
	spec, err := NewMonitorAgent("Email Monitor", "Watches inbox for urgent messages.", "session_abc", "email_monitoring", "gmail", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spec.Triggers) != 1 || spec.Triggers[0].Kind != TriggerTime {
		t.Fatalf("expected single time trigger, got %+v", spec.Triggers)
	}
	if spec.Triggers[0].IntervalMinutes > 60 {
		t.Fatalf("expected interval <= 60, got %d", spec.Triggers[0].IntervalMinutes)
	}
	if _, ok := spec.Integrations["gmail"]; !ok {
		t.Fatal("expected gmail integration")
	}
}

func TestNewSyncAgentProducesValidSpec(t *testing.T) {
	spec, err := NewSyncAgent("CRM Sync", "Syncs leads from Hubspot to Salesforce.", "session_abc", "hubspot", "salesforce", 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spec.Integrations) != 2 {
		t.Fatalf("expected 2 integrations, got %d", len(spec.Integrations))
	}
}

func TestNewReportAgentProducesValidSpec(t *testing.T) {
	spec, err := NewReportAgent("Weekly Report", "Generates a weekly sales summary report.", "session_abc", "0 9 * * 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Triggers[0].Cron != "0 9 * * 1" {
		t.Fatalf("unexpected cron: %s", spec.Triggers[0].Cron)
	}
}

func TestNewMonitorAgentRejectsInvalidIntegration(t *testing.T) {
	_, err := NewMonitorAgent("Bad Monitor", "Watches something invalid here.", "session_abc", "email_monitoring", "not_a_real_service", 30)
	if err == nil {
		t.Fatal("expected validation error for unknown integration service")
	}
}
