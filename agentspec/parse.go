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
	"encoding/json"
	"fmt"
)

// Parse decodes blob into an AgentSpec and validates every invariant
// before returning it. Callers that persist and later reload a spec (the
// orchestrator's agents:{session} list, the HTTP API) should use Parse
// rather than a bare json.Unmarshal, so a hand-edited or corrupted blob
// can never smuggle an invariant violation back into the pipeline.
func Parse(blob []byte) (*AgentSpec, error) {
	var spec AgentSpec
	if err := json.Unmarshal(blob, &spec); err != nil {
		return nil, fmt.Errorf("agentspec: parse: %w", err)
	}
	if err := Validate(&spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// ParseList decodes blob into a slice of AgentSpecs and validates each one,
// for the session-scoped agents:{session} list.
func ParseList(blob []byte) ([]AgentSpec, error) {
	var specs []AgentSpec
	if err := json.Unmarshal(blob, &specs); err != nil {
		return nil, fmt.Errorf("agentspec: parse list: %w", err)
	}
	for i := range specs {
		if err := Validate(&specs[i]); err != nil {
			return nil, err
		}
	}
	return specs, nil
}
