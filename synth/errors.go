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

package synth

// ForbiddenOperation is returned by validate when generated source matches
// a denylist pattern. It is counted as a synth attempt; the offending
// source is never surfaced to the sandbox.
type ForbiddenOperation struct {
	Pattern string
}

func (e *ForbiddenOperation) Error() string {
	return "Forbidden operation detected: " + e.Pattern
}

// CodeGenerationError is raised after three validation failures, carrying
// the last validator error.
type CodeGenerationError struct {
	Reason string
}

func (e *CodeGenerationError) Error() string {
	return "code generation failed: " + e.Reason
}
