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

func TestValidateEventTriggerURLAllowsEmpty(t *testing.T) {
	if err := ValidateEventTriggerURL(""); err != nil {
		t.Fatalf("expected empty URL to be allowed, got %v", err)
	}
}

func TestValidateEventTriggerURLRejectsPrivateTarget(t *testing.T) {
	if err := ValidateEventTriggerURL("http://127.0.0.1:8080/webhook"); err == nil {
		t.Fatal("expected rejection of loopback target")
	}
}

func TestValidateEventTriggerURLRejectsBadScheme(t *testing.T) {
	if err := ValidateEventTriggerURL("ftp://example.com/feed"); err == nil {
		t.Fatal("expected rejection of non-http(s) scheme")
	}
}
