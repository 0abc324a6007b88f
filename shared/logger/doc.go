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
Package logger provides structured JSON logging for the orchestration
platform's components.

# Overview

The logger package writes each entry as one line of JSON through the
standard library log package, so it goes to stderr (or wherever
log.SetOutput points) after log's date and time prefix.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (orchestrator, department, bus, sandbox, ...)
  - Instance ID and container name (for distributed tracing)
  - Session ID (the identity scope for persisted state and agent ownership)
  - Request ID (for request correlation)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("orchestrator")

Derive a sub-component logger for one node or dispatch path without
threading extra fields through every call:

	nodeLog := log.With("deploy_agent")

Log messages with session and request context:

	log.Info("session_abc123", "req-456", "deploying agent", map[string]interface{}{
	    "node": "deploy_agent",
	})

Log errors with status codes:

	log.ErrorWithCode("session_abc123", "req-456", "synthesis failed", 500, err, nil)

Log with duration tracking:

	start := time.Now()
	// ... do work ...
	log.InfoWithDuration("session_abc123", "req-456", "node complete",
	    float64(time.Since(start).Milliseconds()), nil)

# Environment Variables

The logger reads these environment variables:

  - INSTANCE_ID: Deployment instance identifier
  - HOSTNAME: Container hostname (auto-detected)
  - LOG_LEVEL: Minimum level emitted (DEBUG, INFO, WARN, ERROR). Defaults
    to INFO; an unrecognized value also falls back to INFO.

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
