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

func TestIncrementVersionMajorResetsMinorPatch(t *testing.T) {
	spec := validSpec()
	spec.Version = "1.2.3"
	if err := IncrementVersion(&spec, VersionMajor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Version != "2.0.0" {
		t.Fatalf("expected 2.0.0, got %s", spec.Version)
	}
}

func TestIncrementVersionPatch(t *testing.T) {
	spec := validSpec()
	spec.Version = "1.2.3"
	if err := IncrementVersion(&spec, VersionPatch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Version != "1.2.4" {
		t.Fatalf("expected 1.2.4, got %s", spec.Version)
	}
}

func TestIncrementVersionRejectsMalformedVersion(t *testing.T) {
	spec := validSpec()
	spec.Version = "not-a-version"
	if err := IncrementVersion(&spec, VersionPatch); err == nil {
		t.Fatal("expected error for malformed version")
	}
}

func TestEstimateResourcesClampedByLimits(t *testing.T) {
	spec := validSpec()
	spec.ResourceLimits.CPUCores = 0.1
	spec.ResourceLimits.MemoryMB = 128
	est := EstimateResources(&spec)
	if est.CPUCores > spec.ResourceLimits.CPUCores {
		t.Fatalf("expected CPU estimate clamped to %v, got %v", spec.ResourceLimits.CPUCores, est.CPUCores)
	}
	if est.MemoryMB > spec.ResourceLimits.MemoryMB {
		t.Fatalf("expected memory estimate clamped to %v, got %v", spec.ResourceLimits.MemoryMB, est.MemoryMB)
	}
}

func TestRequiredScopesDeduplicated(t *testing.T) {
	spec := validSpec()
	spec.Integrations = map[string]Integration{
		"gmail":   {ServiceName: "gmail", Scopes: []string{"read", "write"}},
		"outlook": {ServiceName: "outlook", Scopes: []string{"read"}},
	}
	scopes := RequiredScopes(&spec)
	counts := map[string]int{}
	for _, s := range scopes {
		counts[s]++
	}
	if counts["read"] != 1 || counts["write"] != 1 {
		t.Fatalf("expected deduplicated scopes, got %v", scopes)
	}
}
