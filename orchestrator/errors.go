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

package orchestrator

import "errors"

// ParseError reports that parse_request could not make sense of the raw
// request.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "parse: " + e.Reason }

// ErrSessionNotPaused reports a recovered state that is not waiting on
// clarification or a retry. Resume does not return it: a completed session
// comes back unchanged and any other state re-runs from its last step.
var ErrSessionNotPaused = errors.New("orchestrator: session is not paused")

// ErrUnknownNode is returned if the graph is asked to run a node with no
// registered handler.
var ErrUnknownNode = errors.New("orchestrator: unknown node")

// ErrRetriesExhausted marks a node that failed more than max_retries times.
var ErrRetriesExhausted = errors.New("orchestrator: retries exhausted")
