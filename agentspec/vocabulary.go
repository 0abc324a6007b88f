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

// Capabilities is the fixed closed vocabulary agents may declare. Roughly
// thirty tags spanning monitoring, communication, data sync, and reporting
// concerns.
var Capabilities = map[string]bool{
	"email_monitoring":       true,
	"calendar_monitoring":    true,
	"alert_sending":          true,
	"notification_dispatch":  true,
	"data_sync":              true,
	"data_extraction":        true,
	"data_transformation":    true,
	"report_generation":      true,
	"report_scheduling":      true,
	"lead_scoring":           true,
	"lead_routing":           true,
	"customer_followup":      true,
	"invoice_processing":     true,
	"expense_tracking":       true,
	"social_media_posting":   true,
	"social_media_listening": true,
	"web_scraping":           true,
	"document_summarization": true,
	"sentiment_analysis":     true,
	"task_scheduling":        true,
	"workflow_automation":    true,
	"approval_routing":       true,
	"ticket_triage":          true,
	"ticket_escalation":      true,
	"inventory_tracking":     true,
	"order_processing":       true,
	"payment_reconciliation": true,
	"meeting_scheduling":     true,
	"contract_review":        true,
	"compliance_checking":    true,
}

// IntegrationWhitelist is the closed set of service names an Integration's
// ServiceName may take.
var IntegrationWhitelist = map[string]bool{
	"gmail":        true,
	"outlook":      true,
	"slack":        true,
	"salesforce":   true,
	"hubspot":      true,
	"stripe":       true,
	"quickbooks":   true,
	"google_calendar": true,
	"zendesk":      true,
	"jira":         true,
	"twitter":      true,
	"linkedin":     true,
	"shopify":      true,
	"docusign":     true,
	"notion":       true,
	"webhook":      true,
}

// CapabilityIntegrationDependencies lists, for each capability that needs
// external data, the integrations of which at least one must be present.
var CapabilityIntegrationDependencies = map[string][]string{
	"email_monitoring":       {"gmail", "outlook"},
	"calendar_monitoring":    {"google_calendar", "outlook"},
	"lead_scoring":           {"salesforce", "hubspot"},
	"lead_routing":           {"salesforce", "hubspot"},
	"invoice_processing":     {"quickbooks", "stripe"},
	"payment_reconciliation": {"stripe", "quickbooks"},
	"ticket_triage":          {"zendesk", "jira"},
	"ticket_escalation":      {"zendesk", "jira"},
	"social_media_posting":   {"twitter", "linkedin"},
	"social_media_listening": {"twitter", "linkedin"},
	"order_processing":       {"shopify"},
	"contract_review":        {"docusign"},
}

// resourceWeight is the per-capability/integration/trigger contribution to
// EstimateResources' projected CPU and memory usage.
type resourceWeight struct {
	CPU      float64
	MemoryMB int
}

var capabilityWeights = map[string]resourceWeight{
	"web_scraping":           {CPU: 0.5, MemoryMB: 256},
	"data_extraction":        {CPU: 0.4, MemoryMB: 256},
	"data_transformation":    {CPU: 0.3, MemoryMB: 192},
	"document_summarization": {CPU: 0.6, MemoryMB: 384},
	"sentiment_analysis":     {CPU: 0.4, MemoryMB: 256},
	"report_generation":      {CPU: 0.3, MemoryMB: 192},
}

var defaultCapabilityWeight = resourceWeight{CPU: 0.15, MemoryMB: 128}

var integrationWeight = resourceWeight{CPU: 0.05, MemoryMB: 32}

var triggerWeight = map[TriggerKind]resourceWeight{
	TriggerTime:   {CPU: 0.05, MemoryMB: 16},
	TriggerEvent:  {CPU: 0.1, MemoryMB: 32},
	TriggerManual: {CPU: 0.0, MemoryMB: 0},
}
