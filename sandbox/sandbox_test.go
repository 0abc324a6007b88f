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
	"context"
	"errors"
	"testing"
	"time"
)

func TestFakeRuntimeLifecycle(t *testing.T) {
	ctx := context.Background()
	rt := NewFakeRuntime()

	if err := rt.EnsureImage(ctx, "agentctl/worker:latest"); err != nil {
		t.Fatalf("EnsureImage failed: %v", err)
	}
	if err := rt.EnsureNetwork(ctx, "agentctl-net"); err != nil {
		t.Fatalf("EnsureNetwork failed: %v", err)
	}

	id, err := rt.Create(ctx, CreateOptions{Image: "agentctl/worker:latest", Name: "w1"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := rt.Start(ctx, id); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	res, err := rt.Wait(ctx, id, 5*time.Second)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("expected StatusCompleted, got %v", res.Status)
	}

	stats, err := rt.Stats(ctx, id)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.MemoryLimitMB != 1024 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := rt.Remove(ctx, id); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	infos, err := rt.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("expected removed container to drop from List, got %+v", infos)
	}
}

func TestFakeRuntimeWaitTimeoutScripted(t *testing.T) {
	ctx := context.Background()
	rt := NewFakeRuntime()

	id, err := rt.Create(ctx, CreateOptions{Image: "agentctl/worker:latest"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	rt.WaitResults[id] = WaitResult{Status: StatusTimeout}

	res, err := rt.Wait(ctx, id, time.Millisecond)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if res.Status != StatusTimeout {
		t.Fatalf("expected StatusTimeout, got %v", res.Status)
	}
}

func TestFakeRuntimeUnknownIDReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	rt := NewFakeRuntime()

	if _, err := rt.Wait(ctx, "missing", time.Second); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExtractResultParsesBottomUpJSONLine(t *testing.T) {
	output := "starting up\nprogress: 50%\n{\"status\": \"completed\", \"value\": 42}\n"
	result, ok := extractResult(output)
	if !ok {
		t.Fatal("expected a parsed result")
	}
	if result["value"] != float64(42) {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestExtractResultNoMatch(t *testing.T) {
	_, ok := extractResult("no json here\njust text\n")
	if ok {
		t.Fatal("expected no match")
	}
}

func TestSandboxErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := &SandboxError{Stage: StageRuntime, Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatal("expected SandboxError to unwrap to cause")
	}
}
