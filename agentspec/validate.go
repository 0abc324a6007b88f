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
	"regexp"
	"strconv"
	"strings"
)

var (
	nameRe    = regexp.MustCompile(`^[A-Za-z0-9 ]+$`)
	semverRe  = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	cronRe    = regexp.MustCompile(`^\S+\s+\S+\s+\S+\s+\S+\s+\S+$`)
)

// Validate enforces every AgentSpec invariant against a fully-populated
// spec. It does not mutate the spec; callers that build a spec field by
// field should call Validate once construction is complete.
func Validate(spec *AgentSpec) error {
	if err := validateName(spec.Name); err != nil {
		return err
	}
	if err := validateDescription(spec.Description); err != nil {
		return err
	}
	if !semverRe.MatchString(spec.Version) {
		return &ValidationError{Field: "version", Reason: "must be MAJOR.MINOR.PATCH"}
	}
	if err := validateCapabilities(spec.Capabilities); err != nil {
		return err
	}
	if err := validateTriggers(spec.Triggers); err != nil {
		return err
	}
	if err := validateIntegrations(spec.Integrations); err != nil {
		return err
	}
	if err := validateResourceLimits(spec.ResourceLimits); err != nil {
		return err
	}
	if err := ValidateCapabilitiesMap(spec); err != nil {
		return err
	}
	return nil
}

func validateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < 2 || len(trimmed) > 50 {
		return &ValidationError{Field: "name", Reason: "must be 2-50 characters"}
	}
	if !nameRe.MatchString(trimmed) {
		return &ValidationError{Field: "name", Reason: "must be alphanumeric and spaces only"}
	}
	return nil
}

func validateDescription(desc string) error {
	if len(desc) < 10 || len(desc) > 500 {
		return &ValidationError{Field: "description", Reason: "must be 10-500 characters"}
	}
	return nil
}

func validateCapabilities(caps []string) error {
	if len(caps) == 0 {
		return &ValidationError{Field: "capabilities", Reason: "at least one capability required"}
	}
	for _, c := range caps {
		if !Capabilities[c] {
			return &ValidationError{Field: "capabilities", Reason: "unknown capability: " + c}
		}
	}
	return nil
}

// DedupeCapabilities removes duplicate entries, preserving first-seen order.
func DedupeCapabilities(caps []string) []string {
	seen := make(map[string]bool, len(caps))
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func validateTriggers(triggers []Trigger) error {
	if len(triggers) == 0 {
		return &ValidationError{Field: "triggers", Reason: "at least one trigger required"}
	}
	for i, t := range triggers {
		if err := validateTrigger(t); err != nil {
			err.Field = "triggers[" + strconv.Itoa(i) + "]." + err.Field
			return err
		}
	}
	return nil
}

func validateTrigger(t Trigger) *ValidationError {
	switch t.Kind {
	case TriggerTime:
		hasCron := t.Cron != ""
		hasInterval := t.IntervalMinutes != 0
		if hasCron == hasInterval {
			return &ValidationError{Field: "time", Reason: "exactly one of cron or interval_minutes required"}
		}
		if hasCron && !cronRe.MatchString(t.Cron) {
			return &ValidationError{Field: "cron", Reason: "must have 5 whitespace-separated fields"}
		}
		if hasInterval && (t.IntervalMinutes < 1 || t.IntervalMinutes > 43200) {
			return &ValidationError{Field: "interval_minutes", Reason: "must be in [1, 43200]"}
		}
	case TriggerEvent:
		if t.URL != "" && !strings.HasPrefix(t.URL, "http://") && !strings.HasPrefix(t.URL, "https://") {
			return &ValidationError{Field: "url", Reason: "must start with http:// or https://"}
		}
	case TriggerManual:
		if len(t.Description) < 5 || len(t.Description) > 200 {
			return &ValidationError{Field: "description", Reason: "must be 5-200 characters"}
		}
	default:
		return &ValidationError{Field: "kind", Reason: "unknown trigger kind: " + string(t.Kind)}
	}
	return nil
}

func validateIntegrations(integrations map[string]Integration) error {
	for key, integ := range integrations {
		if integ.ServiceName != key {
			return &ValidationError{Field: "integrations." + key, Reason: "service_name must equal map key"}
		}
		if !IntegrationWhitelist[key] {
			return &ValidationError{Field: "integrations." + key, Reason: "service not in whitelist"}
		}
		switch integ.Auth {
		case AuthOAuth2, AuthAPIKey, AuthWebhook, AuthInternal, AuthScraping:
		default:
			return &ValidationError{Field: "integrations." + key + ".auth", Reason: "unknown auth type"}
		}
		if integ.RateLimit < 1 || integ.RateLimit > 10000 {
			return &ValidationError{Field: "integrations." + key + ".rate_limit", Reason: "must be in [1, 10000]"}
		}
	}
	return nil
}

func validateResourceLimits(limits ResourceLimits) error {
	if limits.CPUCores < MinCPUCores || limits.CPUCores > MaxCPUCores {
		return &ValidationError{Field: "resource_limits.cpu", Reason: "must be in [0.1, 4.0]"}
	}
	if limits.MemoryMB < MinMemoryMB || limits.MemoryMB > MaxMemoryMB {
		return &ValidationError{Field: "resource_limits.memory", Reason: "must be in [128, 2048]"}
	}
	if limits.TimeoutS < MinTimeoutS || limits.TimeoutS > MaxTimeoutS {
		return &ValidationError{Field: "resource_limits.timeout", Reason: "must be in [30, 3600]"}
	}
	if limits.MaxRetries < MinMaxRetries || limits.MaxRetries > MaxMaxRetries {
		return &ValidationError{Field: "resource_limits.max_retries", Reason: "must be in [0, 10]"}
	}
	return nil
}

// ValidateEventTriggerURL runs full SSRF checks (scheme, private-IP
// resolution, allow/deny lists) against an Event trigger's URL. Validate
// only checks the scheme prefix, since it must stay a pure, non-suspending
// check; this function resolves DNS. Neither Validate nor the orchestrator
// pipeline calls it.
func ValidateEventTriggerURL(rawURL string) error {
	if rawURL == "" {
		return nil
	}
	if err := ValidateURL(rawURL, DefaultURLValidationOptions()); err != nil {
		return &ValidationError{Field: "url", Reason: err.Error()}
	}
	return nil
}

// ValidateCapabilitiesMap checks the capability → integration dependency
// table: a capability in CapabilityIntegrationDependencies
// requires at least one of its listed integrations to be present.
func ValidateCapabilitiesMap(spec *AgentSpec) error {
	for _, cap := range spec.Capabilities {
		required, ok := CapabilityIntegrationDependencies[cap]
		if !ok {
			continue
		}
		if !hasAnyIntegration(spec.Integrations, required) {
			return &ValidationError{
				Field:  "capabilities." + cap,
				Reason: "requires one of integrations: " + strings.Join(required, ", "),
			}
		}
	}
	return nil
}

func hasAnyIntegration(integrations map[string]Integration, candidates []string) bool {
	for _, c := range candidates {
		if _, ok := integrations[c]; ok {
			return true
		}
	}
	return false
}
