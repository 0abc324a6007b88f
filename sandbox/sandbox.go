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

// Package sandbox defines the SandboxRuntime capability: an isolated
// container lifecycle for running generated agent code with CPU, memory,
// and time caps, a read-only root filesystem, and no privilege escalation.
package sandbox

import (
	"context"
	"errors"
	"time"
)

// Stage identifies which lifecycle step a SandboxError occurred in.
type Stage string

const (
	StageTimeout Stage = "timeout"
	StageBuild   Stage = "build"
	StageCreate  Stage = "create"
	StageRuntime Stage = "runtime"
)

// SandboxError is attached to an agent's execution context on failure. The
// deployment step that requested it still succeeds (the spec is stored)
// unless the failure happened pre-creation.
type SandboxError struct {
	Stage Stage
	Cause error
}

func (e *SandboxError) Error() string {
	return "sandbox(" + string(e.Stage) + "): " + e.Cause.Error()
}

func (e *SandboxError) Unwrap() error {
	return e.Cause
}

// ErrNotFound is returned when an operation targets an unknown container id.
var ErrNotFound = errors.New("sandbox: container not found")

// Status is the terminal disposition of a completed or timed-out worker.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusTimeout   Status = "timeout"
	StatusFailed    Status = "failed"
)

// Mount is a read-only or read-write bind from a host path into the
// container at Target.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// Tmpfs describes a tmpfs mount, e.g. the small noexec /tmp every worker
// gets.
type Tmpfs struct {
	Mountpoint string
	SizeBytes  int64
	NoExec     bool
}

// ResourceLimits clamps what a worker may consume. The runtime clamps these
// against a process-wide ceiling before creating the container.
type ResourceLimits struct {
	MemoryMB  int64
	CPUPeriod int64
	CPUQuota  int64
	TimeoutS  int
}

// CreateOptions describes a worker to create.
type CreateOptions struct {
	Image           string
	Name            string
	Env             map[string]string
	Mounts          []Mount
	Network         string
	ReadOnlyRoot    bool
	Tmpfs           []Tmpfs
	Limits          ResourceLimits
	SecurityOptions []string
	User            string
	WorkingDir      string
	Command         []string
}

// WaitResult is what Wait reports once the container exits or the timeout
// elapses.
type WaitResult struct {
	Status   Status
	ExitCode int
	Output   string
	Result   map[string]interface{}
}

// Stats is a point-in-time resource snapshot for a running container.
type Stats struct {
	CPUPercent     float64
	MemoryMB       float64
	MemoryLimitMB  float64
	NetRxBytes     int64
	NetTxBytes     int64
}

// ContainerInfo is a summary entry returned by List.
type ContainerInfo struct {
	ID      string
	Name    string
	Image   string
	Status  string
	Created time.Time
}

// Runtime is the SandboxRuntime capability.
type Runtime interface {
	EnsureImage(ctx context.Context, descriptor string) error
	EnsureNetwork(ctx context.Context, name string) error
	Create(ctx context.Context, opts CreateOptions) (string, error)
	Start(ctx context.Context, id string) error
	Wait(ctx context.Context, id string, timeout time.Duration) (WaitResult, error)
	Stop(ctx context.Context, id string, grace time.Duration) error
	Remove(ctx context.Context, id string) error
	Logs(ctx context.Context, id string) (string, error)
	Stats(ctx context.Context, id string) (Stats, error)
	List(ctx context.Context) ([]ContainerInfo, error)
}
