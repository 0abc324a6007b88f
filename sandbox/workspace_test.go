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
	"os"
	"path/filepath"
	"testing"
)

func TestWorkspaceMaterializesSourceSecretsAndLogs(t *testing.T) {
	ws, err := NewWorkspace("print('hello')", map[string]string{"GMAIL_TOKEN": "tok-123"})
	if err != nil {
		t.Fatalf("NewWorkspace failed: %v", err)
	}
	t.Cleanup(func() { ws.Remove() })

	source, err := os.ReadFile(filepath.Join(ws.Root, "agent", AgentSourceFile))
	if err != nil {
		t.Fatalf("agent source not materialized: %v", err)
	}
	if string(source) != "print('hello')" {
		t.Fatalf("unexpected agent source: %q", source)
	}

	secret, err := os.ReadFile(filepath.Join(ws.Root, "secrets", "GMAIL_TOKEN"))
	if err != nil {
		t.Fatalf("secret not materialized: %v", err)
	}
	if string(secret) != "tok-123" {
		t.Fatalf("unexpected secret contents: %q", secret)
	}
	info, err := os.Stat(filepath.Join(ws.Root, "secrets", "GMAIL_TOKEN"))
	if err != nil {
		t.Fatalf("stat secret: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected secret mode 0600, got %v", info.Mode().Perm())
	}

	if _, err := os.Stat(filepath.Join(ws.Root, "logs")); err != nil {
		t.Fatalf("logs dir not materialized: %v", err)
	}
}

func TestWorkspaceMountsAreReadOnlyExceptLogs(t *testing.T) {
	ws, err := NewWorkspace("pass", nil)
	if err != nil {
		t.Fatalf("NewWorkspace failed: %v", err)
	}
	t.Cleanup(func() { ws.Remove() })

	mounts := ws.Mounts()
	if len(mounts) != 3 {
		t.Fatalf("expected 3 mounts, got %d", len(mounts))
	}
	byTarget := map[string]Mount{}
	for _, m := range mounts {
		byTarget[m.Target] = m
	}
	if !byTarget["/agent"].ReadOnly || !byTarget["/secrets"].ReadOnly {
		t.Fatal("agent and secrets mounts must be read-only")
	}
	if byTarget["/logs"].ReadOnly {
		t.Fatal("logs mount must be read-write")
	}
}

func TestWorkspaceRemoveDeletesEverything(t *testing.T) {
	ws, err := NewWorkspace("pass", map[string]string{"K": "v"})
	if err != nil {
		t.Fatalf("NewWorkspace failed: %v", err)
	}
	if err := ws.Remove(); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(ws.Root); !os.IsNotExist(err) {
		t.Fatalf("expected workspace root to be gone, stat err: %v", err)
	}
}
