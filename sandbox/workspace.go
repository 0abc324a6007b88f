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

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is the materialized host-side directory layout one worker
// mounts: agent source read-only, secrets read-only, logs read-write.
type Workspace struct {
	Root string
}

const (
	agentDirName   = "agent"
	secretsDirName = "secrets"
	logsDirName    = "logs"

	// AgentSourceFile is where the generated source lands inside the agent
	// mount; the worker image's entrypoint reads it from AGENT_FILE.
	AgentSourceFile = "main.py"
)

// NewWorkspace creates a temporary directory holding the worker's source
// and secrets. Secrets are written 0600 one file per key; the logs
// directory starts empty and is the only writable mount the worker gets.
func NewWorkspace(source string, secrets map[string]string) (*Workspace, error) {
	root, err := os.MkdirTemp("", "agentctl-sandbox-")
	if err != nil {
		return nil, &SandboxError{Stage: StageCreate, Cause: err}
	}
	ws := &Workspace{Root: root}

	for _, dir := range []string{agentDirName, secretsDirName, logsDirName} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			ws.Remove()
			return nil, &SandboxError{Stage: StageCreate, Cause: err}
		}
	}

	if err := os.WriteFile(filepath.Join(root, agentDirName, AgentSourceFile), []byte(source), 0o644); err != nil {
		ws.Remove()
		return nil, &SandboxError{Stage: StageCreate, Cause: err}
	}

	for name, value := range secrets {
		if err := os.WriteFile(filepath.Join(root, secretsDirName, name), []byte(value), 0o600); err != nil {
			ws.Remove()
			return nil, &SandboxError{Stage: StageCreate, Cause: fmt.Errorf("write secret %s: %w", name, err)}
		}
	}

	return ws, nil
}

// Mounts returns the three bind mounts a worker created from this
// workspace needs: /agent and /secrets read-only, /logs read-write.
func (w *Workspace) Mounts() []Mount {
	return []Mount{
		{Source: filepath.Join(w.Root, agentDirName), Target: "/agent", ReadOnly: true},
		{Source: filepath.Join(w.Root, secretsDirName), Target: "/secrets", ReadOnly: true},
		{Source: filepath.Join(w.Root, logsDirName), Target: "/logs", ReadOnly: false},
	}
}

// Remove deletes the workspace directory and everything under it.
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.Root)
}
