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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// ProcessCeiling bounds every worker this runtime creates, regardless of
// what an individual agent's ResourceLimits ask for.
type ProcessCeiling struct {
	MaxCPUCores   float64
	MaxMemoryMB   int64
	DefaultTimeoutS int
}

// DefaultProcessCeiling matches the platform's documented defaults.
func DefaultProcessCeiling() ProcessCeiling {
	return ProcessCeiling{MaxCPUCores: 2.0, MaxMemoryMB: 1024, DefaultTimeoutS: 300}
}

// DockerRuntime implements Runtime on top of the Docker Engine API.
type DockerRuntime struct {
	cli     *client.Client
	ceiling ProcessCeiling
}

// NewDockerRuntime connects to the Docker daemon described by the standard
// DOCKER_HOST/DOCKER_* environment variables.
func NewDockerRuntime(ceiling ProcessCeiling) (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, &SandboxError{Stage: StageCreate, Cause: err}
	}
	return &DockerRuntime{cli: cli, ceiling: ceiling}, nil
}

func (r *DockerRuntime) clamp(limits ResourceLimits) ResourceLimits {
	clamped := limits
	maxMemBytes := r.ceiling.MaxMemoryMB
	if clamped.MemoryMB <= 0 || clamped.MemoryMB > maxMemBytes {
		clamped.MemoryMB = maxMemBytes
	}
	maxQuota := int64(r.ceiling.MaxCPUCores * 100000)
	if clamped.CPUPeriod <= 0 {
		clamped.CPUPeriod = 100000
	}
	if clamped.CPUQuota <= 0 || clamped.CPUQuota > maxQuota {
		clamped.CPUQuota = maxQuota
	}
	if clamped.TimeoutS <= 0 {
		clamped.TimeoutS = r.ceiling.DefaultTimeoutS
	}
	return clamped
}

func (r *DockerRuntime) EnsureImage(ctx context.Context, descriptor string) error {
	f := filters.NewArgs(filters.Arg("reference", descriptor))
	existing, err := r.cli.ImageList(ctx, image.ListOptions{Filters: f})
	if err != nil {
		return &SandboxError{Stage: StageBuild, Cause: err}
	}
	if len(existing) > 0 {
		return nil
	}

	rc, err := r.cli.ImagePull(ctx, descriptor, image.PullOptions{})
	if err != nil {
		return &SandboxError{Stage: StageBuild, Cause: err}
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return &SandboxError{Stage: StageBuild, Cause: err}
	}
	return nil
}

func (r *DockerRuntime) EnsureNetwork(ctx context.Context, name string) error {
	f := filters.NewArgs(filters.Arg("name", name))
	existing, err := r.cli.NetworkList(ctx, network.ListOptions{Filters: f})
	if err != nil {
		return &SandboxError{Stage: StageCreate, Cause: err}
	}
	for _, n := range existing {
		if n.Name == name {
			return nil
		}
	}

	_, err = r.cli.NetworkCreate(ctx, name, network.CreateOptions{
		Driver: "bridge",
		Options: map[string]string{
			"com.docker.network.bridge.enable_icc":           "false",
			"com.docker.network.bridge.enable_ip_masquerade": "true",
		},
	})
	if err != nil {
		return &SandboxError{Stage: StageCreate, Cause: err}
	}
	return nil
}

func (r *DockerRuntime) Create(ctx context.Context, opts CreateOptions) (string, error) {
	limits := r.clamp(opts.Limits)

	env := make([]string, 0, len(opts.Env))
	for k, v := range opts.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	mounts := make([]mount.Mount, 0, len(opts.Mounts))
	for _, m := range opts.Mounts {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}

	tmpfs := make(map[string]string, len(opts.Tmpfs))
	for _, t := range opts.Tmpfs {
		spec := "size=" + fmt.Sprintf("%d", t.SizeBytes)
		if t.NoExec {
			spec += ",noexec"
		}
		tmpfs[t.Mountpoint] = spec
	}

	cfg := &container.Config{
		Image:      opts.Image,
		Env:        env,
		User:       opts.User,
		WorkingDir: opts.WorkingDir,
		Cmd:        opts.Command,
	}

	hostCfg := &container.HostConfig{
		Mounts:         mounts,
		Tmpfs:          tmpfs,
		ReadonlyRootfs: opts.ReadOnlyRoot,
		SecurityOpt:    opts.SecurityOptions,
		NetworkMode:    container.NetworkMode(opts.Network),
		Resources: container.Resources{
			Memory:    limits.MemoryMB * 1024 * 1024,
			CPUPeriod: limits.CPUPeriod,
			CPUQuota:  limits.CPUQuota,
		},
	}

	resp, err := r.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, opts.Name)
	if err != nil {
		return "", &SandboxError{Stage: StageCreate, Cause: err}
	}
	return resp.ID, nil
}

func (r *DockerRuntime) Start(ctx context.Context, id string) error {
	if err := r.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return &SandboxError{Stage: StageRuntime, Cause: err}
	}
	return nil
}

// Wait blocks until the container exits or timeout elapses. On timeout it
// stops the worker with a 10-second grace and reports StatusTimeout.
func (r *DockerRuntime) Wait(ctx context.Context, id string, timeout time.Duration) (WaitResult, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	statusCh, errCh := r.cli.ContainerWait(waitCtx, id, container.WaitConditionNotRunning)

	select {
	case err := <-errCh:
		if waitCtx.Err() != nil {
			return r.timeoutResult(ctx, id)
		}
		return WaitResult{}, &SandboxError{Stage: StageRuntime, Cause: err}
	case status := <-statusCh:
		output, _ := r.Logs(ctx, id)
		result, ok := extractResult(output)
		res := WaitResult{ExitCode: int(status.StatusCode), Output: output, Result: result}
		if !ok {
			res.Result = map[string]interface{}{"status": string(StatusCompleted), "raw": output}
		}
		if status.StatusCode == 0 {
			res.Status = StatusCompleted
		} else {
			res.Status = StatusFailed
		}
		return res, nil
	case <-waitCtx.Done():
		return r.timeoutResult(ctx, id)
	}
}

func (r *DockerRuntime) timeoutResult(ctx context.Context, id string) (WaitResult, error) {
	if err := r.Stop(ctx, id, 10*time.Second); err != nil {
		return WaitResult{Status: StatusTimeout}, err
	}
	return WaitResult{Status: StatusTimeout}, nil
}

// extractResult scans output bottom-up for the last line that looks like a
// JSON object and parses it.
func extractResult(output string) (map[string]interface{}, bool) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
			var parsed map[string]interface{}
			if err := json.Unmarshal([]byte(line), &parsed); err == nil {
				return parsed, true
			}
		}
	}
	return nil, false
}

func (r *DockerRuntime) Stop(ctx context.Context, id string, grace time.Duration) error {
	secs := int(grace.Seconds())
	if err := r.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &secs}); err != nil {
		return &SandboxError{Stage: StageRuntime, Cause: err}
	}
	return nil
}

func (r *DockerRuntime) Remove(ctx context.Context, id string) error {
	if err := r.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		return &SandboxError{Stage: StageRuntime, Cause: err}
	}
	return nil
}

func (r *DockerRuntime) Logs(ctx context.Context, id string) (string, error) {
	rc, err := r.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", &SandboxError{Stage: StageRuntime, Cause: err}
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil {
		return "", &SandboxError{Stage: StageRuntime, Cause: err}
	}
	return stdout.String() + stderr.String(), nil
}

func (r *DockerRuntime) Stats(ctx context.Context, id string) (Stats, error) {
	resp, err := r.cli.ContainerStatsOneShot(ctx, id)
	if err != nil {
		return Stats{}, &SandboxError{Stage: StageRuntime, Cause: err}
	}
	defer resp.Body.Close()

	var raw container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Stats{}, &SandboxError{Stage: StageRuntime, Cause: err}
	}

	cpuDelta := float64(raw.CPUStats.CPUUsage.TotalUsage - raw.PreCPUStats.CPUUsage.TotalUsage)
	sysDelta := float64(raw.CPUStats.SystemUsage - raw.PreCPUStats.SystemUsage)
	cpuPercent := 0.0
	if sysDelta > 0 && cpuDelta > 0 {
		cpuPercent = (cpuDelta / sysDelta) * float64(len(raw.CPUStats.CPUUsage.PercpuUsage)) * 100.0
	}

	return Stats{
		CPUPercent:    cpuPercent,
		MemoryMB:      float64(raw.MemoryStats.Usage) / (1024 * 1024),
		MemoryLimitMB: float64(raw.MemoryStats.Limit) / (1024 * 1024),
		NetRxBytes:    sumRx(raw.Networks),
		NetTxBytes:    sumTx(raw.Networks),
	}, nil
}

func sumRx(networks map[string]container.NetworkStats) int64 {
	var total int64
	for _, n := range networks {
		total += int64(n.RxBytes)
	}
	return total
}

func sumTx(networks map[string]container.NetworkStats) int64 {
	var total int64
	for _, n := range networks {
		total += int64(n.TxBytes)
	}
	return total
}

func (r *DockerRuntime) List(ctx context.Context) ([]ContainerInfo, error) {
	containers, err := r.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, &SandboxError{Stage: StageRuntime, Cause: err}
	}

	infos := make([]ContainerInfo, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		infos = append(infos, ContainerInfo{
			ID:      c.ID,
			Name:    name,
			Image:   c.Image,
			Status:  c.Status,
			Created: time.Unix(c.Created, 0),
		})
	}
	return infos, nil
}
