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
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VersionKind selects which semver component IncrementVersion bumps.
type VersionKind string

const (
	VersionMajor VersionKind = "major"
	VersionMinor VersionKind = "minor"
	VersionPatch VersionKind = "patch"
)

// IncrementVersion bumps spec.Version per semver rules and refreshes
// UpdatedAt. Major/minor bumps reset the components below them to zero.
func IncrementVersion(spec *AgentSpec, kind VersionKind) error {
	major, minor, patch, err := parseSemver(spec.Version)
	if err != nil {
		return err
	}

	switch kind {
	case VersionMajor:
		major, minor, patch = major+1, 0, 0
	case VersionMinor:
		minor, patch = minor+1, 0
	case VersionPatch:
		patch = patch + 1
	default:
		return &ValidationError{Field: "version_kind", Reason: "unknown kind: " + string(kind)}
	}

	spec.Version = fmt.Sprintf("%d.%d.%d", major, minor, patch)
	spec.UpdatedAt = time.Now()
	return nil
}

func parseSemver(v string) (major, minor, patch int, err error) {
	if !semverRe.MatchString(v) {
		return 0, 0, 0, &ValidationError{Field: "version", Reason: "must be MAJOR.MINOR.PATCH"}
	}
	parts := strings.SplitN(v, ".", 3)
	major, _ = strconv.Atoi(parts[0])
	minor, _ = strconv.Atoi(parts[1])
	patch, _ = strconv.Atoi(parts[2])
	return major, minor, patch, nil
}

// ResourceEstimate is the projected footprint of an AgentSpec, clamped by
// its own ResourceLimits.
type ResourceEstimate struct {
	CPUCores       float64
	MemoryMB       int
	EfficiencyScore float64
}

// EstimateResources sums the per-capability, per-integration, and
// per-trigger weight tables, then clamps against spec.ResourceLimits.
func EstimateResources(spec *AgentSpec) ResourceEstimate {
	var cpu float64
	var mem int

	for _, cap := range spec.Capabilities {
		w, ok := capabilityWeights[cap]
		if !ok {
			w = defaultCapabilityWeight
		}
		cpu += w.CPU
		mem += w.MemoryMB
	}

	for range spec.Integrations {
		cpu += integrationWeight.CPU
		mem += integrationWeight.MemoryMB
	}

	for _, t := range spec.Triggers {
		w := triggerWeight[t.Kind]
		cpu += w.CPU
		mem += w.MemoryMB
	}

	if cpu > spec.ResourceLimits.CPUCores {
		cpu = spec.ResourceLimits.CPUCores
	}
	if mem > spec.ResourceLimits.MemoryMB {
		mem = spec.ResourceLimits.MemoryMB
	}

	efficiency := 1.0
	if spec.ResourceLimits.CPUCores > 0 {
		efficiency = 1.0 - (cpu / spec.ResourceLimits.CPUCores)
		if efficiency < 0 {
			efficiency = 0
		}
	}

	return ResourceEstimate{CPUCores: cpu, MemoryMB: mem, EfficiencyScore: efficiency}
}

// RequiredScopes is the deduplicated union of scopes across every
// integration.
func RequiredScopes(spec *AgentSpec) []string {
	seen := make(map[string]bool)
	var scopes []string
	for _, integ := range spec.Integrations {
		for _, s := range integ.Scopes {
			if seen[s] {
				continue
			}
			seen[s] = true
			scopes = append(scopes, s)
		}
	}
	return scopes
}
