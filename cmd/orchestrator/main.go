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

// Package main is the entry point for the agentctl Orchestrator service.
//
// The Orchestrator turns natural-language requests into deployed,
// sandboxed agents: it parses intent, checks existing agents, synthesizes
// and validates agent source, and deploys into a sandbox runtime, with
// checkpointed per-step recovery. A MetaOrchestrator wraps that pipeline
// with business-intent classification and per-session business context.
//
// Usage:
//
//	./orchestrator
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8080)
//	REDIS_ADDR - Redis address for checkpoints, message bus, and business context (default: localhost:6379)
//	ANTHROPIC_API_KEY - Anthropic API key for intent parsing and code synthesis (required; startup fails without it)
//	DOCKER_HOST - Docker daemon address for sandbox execution (optional; defaults to the local Docker socket)
//
// For more information, see https://docs.getaxonflow.com
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avisanghavi/agentctl/checkpoint"
	"github.com/avisanghavi/agentctl/completion"
	"github.com/avisanghavi/agentctl/config"
	"github.com/avisanghavi/agentctl/meta"
	"github.com/avisanghavi/agentctl/orchestrator"
	"github.com/avisanghavi/agentctl/sandbox"
	"github.com/avisanghavi/agentctl/statestore"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := statestore.NewRedisStore(ctx, statestore.DefaultRedisConfig(cfg.RedisAddr))
	cancel()
	if err != nil {
		log.Fatalf("agentctl: connect to redis at %s: %v", cfg.RedisAddr, err)
	}

	provider, err := completion.NewAnthropicProvider(cfg.AnthropicAPIKey)
	if err != nil {
		log.Fatalf("agentctl: configure completion provider: %v", err)
	}

	checkpoints := checkpoint.New(store, cfg.CheckpointTTL)

	opts := []orchestrator.Option{
		orchestrator.WithMaxRetries(cfg.MaxRetries),
		orchestrator.WithSessionTimeout(cfg.SessionTimeout),
		orchestrator.WithNodeTimeout(cfg.DefaultTimeout),
	}
	if rt, err := sandbox.NewDockerRuntime(sandbox.ProcessCeiling{
		MaxCPUCores:     cfg.MaxCPUCores,
		MaxMemoryMB:     cfg.MaxMemoryMB,
		DefaultTimeoutS: int(cfg.DefaultTimeout.Seconds()),
	}); err != nil {
		log.Printf("agentctl: sandbox runtime unavailable, deployments will skip execution: %v", err)
	} else {
		opts = append(opts, orchestrator.WithSandbox(rt))
	}

	inner := orchestrator.New(provider, checkpoints, opts...)
	metaOrch := meta.New(inner, provider, store)

	srv := newServer(metaOrch, cfg)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.router(),
	}

	go func() {
		log.Printf("agentctl orchestrator listening on port %s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("agentctl: server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("agentctl orchestrator shutting down")
	if err := shutdown(context.Background(), httpServer); err != nil {
		log.Printf("agentctl: graceful shutdown failed: %v", err)
	}
}
