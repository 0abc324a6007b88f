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
	"fmt"
	"sync"
	"time"
)

// FakeRuntime is an in-memory Runtime for orchestrator/department tests. It
// never touches Docker; Create assigns sequential ids and Wait returns
// whatever WaitResult was scripted for that id (or StatusCompleted with a
// {"status": "completed"} result by default).
type FakeRuntime struct {
	mu         sync.Mutex
	nextID     int
	containers map[string]*fakeContainer
	images     map[string]bool
	networks   map[string]bool
	WaitResults map[string]WaitResult
}

type fakeContainer struct {
	opts    CreateOptions
	started bool
	removed bool
}

func NewFakeRuntime() *FakeRuntime {
	return &FakeRuntime{
		containers:  make(map[string]*fakeContainer),
		images:      make(map[string]bool),
		networks:    make(map[string]bool),
		WaitResults: make(map[string]WaitResult),
	}
}

func (f *FakeRuntime) EnsureImage(_ context.Context, descriptor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[descriptor] = true
	return nil
}

func (f *FakeRuntime) EnsureNetwork(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.networks[name] = true
	return nil
}

func (f *FakeRuntime) Create(_ context.Context, opts CreateOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("fake-%d", f.nextID)
	f.containers[id] = &fakeContainer{opts: opts}
	return id, nil
}

func (f *FakeRuntime) Start(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return ErrNotFound
	}
	c.started = true
	return nil
}

// Wait returns the result previously scripted via WaitResults[id], or a
// default successful completion if none was scripted.
func (f *FakeRuntime) Wait(_ context.Context, id string, _ time.Duration) (WaitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.containers[id]; !ok {
		return WaitResult{}, ErrNotFound
	}
	if res, ok := f.WaitResults[id]; ok {
		return res, nil
	}
	return WaitResult{Status: StatusCompleted, ExitCode: 0, Result: map[string]interface{}{"status": "completed"}}, nil
}

func (f *FakeRuntime) Stop(_ context.Context, id string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.containers[id]; !ok {
		return ErrNotFound
	}
	return nil
}

func (f *FakeRuntime) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return ErrNotFound
	}
	c.removed = true
	return nil
}

func (f *FakeRuntime) Logs(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.containers[id]; !ok {
		return "", ErrNotFound
	}
	return "", nil
}

func (f *FakeRuntime) Stats(_ context.Context, id string) (Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.containers[id]; !ok {
		return Stats{}, ErrNotFound
	}
	return Stats{CPUPercent: 1.0, MemoryMB: 32, MemoryLimitMB: 1024}, nil
}

func (f *FakeRuntime) List(_ context.Context) ([]ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	infos := make([]ContainerInfo, 0, len(f.containers))
	for id, c := range f.containers {
		if c.removed {
			continue
		}
		infos = append(infos, ContainerInfo{ID: id, Name: c.opts.Name, Image: c.opts.Image})
	}
	return infos, nil
}
