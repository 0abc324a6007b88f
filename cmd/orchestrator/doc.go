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

/*
Command orchestrator runs the agentctl Orchestrator service: the HTTP
front door over the agent-creation state machine and its business-routing
wrapper.

A request lands on /api/v1/process, is classified into a business intent
by the MetaOrchestrator, and is delegated to the underlying Orchestrator's
checkpointed pipeline: parse intent, check existing agents, synthesize and
validate agent source, deploy into a sandbox runtime.

# Usage

	orchestrator [flags]

# Environment Variables

Required:
  - ANTHROPIC_API_KEY: Anthropic API key used for intent parsing and code
    synthesis; startup fails when it is empty

Optional (see the config package for the full table and defaults):
  - PORT: HTTP server port (default: 8080)
  - REDIS_ADDR: Redis address backing checkpoints, the message bus, and
    business context (default: localhost:6379)
  - DOCKER_HOST: Docker daemon address for sandbox execution (default: the
    local Docker socket); if the daemon is unreachable, deployments still
    store the agent spec and record the sandbox failure in its runtime
    context

# Example

	export REDIS_ADDR="localhost:6379"
	export ANTHROPIC_API_KEY="sk-ant-..."
	./orchestrator
*/
package main
