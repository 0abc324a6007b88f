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

package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/avisanghavi/agentctl/config"
	"github.com/avisanghavi/agentctl/meta"
	"github.com/avisanghavi/agentctl/orchestrator"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentctl_orchestrator_requests_total",
		Help: "Total requests handled by the orchestrator HTTP front door, by route and outcome.",
	}, []string{"route", "outcome"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentctl_orchestrator_request_duration_seconds",
		Help:    "Orchestrator HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration)
}

// server wires the public orchestration surface onto HTTP
// handlers. It holds the MetaOrchestrator rather than the bare
// Orchestrator so process requests get business-intent routing; the
// session endpoints call the inner Orchestrator directly.
type server struct {
	meta *meta.MetaOrchestrator
	cfg  config.Config
}

func newServer(m *meta.MetaOrchestrator, cfg config.Config) *server {
	return &server{meta: m, cfg: cfg}
}

func (s *server) router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/api/v1/process", s.instrument("process", s.processHandler)).Methods("POST")
	r.HandleFunc("/api/v1/sessions", s.instrument("list_sessions", s.listSessionsHandler)).Methods("GET")
	r.HandleFunc("/api/v1/sessions/{session}/recover", s.instrument("recover", s.recoverHandler)).Methods("POST")
	r.HandleFunc("/api/v1/sessions/{session}/resume", s.instrument("resume", s.resumeHandler)).Methods("POST")
	r.HandleFunc("/api/v1/sessions/{session}/agents/{name}/stop", s.instrument("stop_agent", s.stopAgentHandler)).Methods("POST")
	r.HandleFunc("/api/v1/sessions/{session}/agents/{name}/cleanup", s.instrument("cleanup_agent", s.cleanupAgentHandler)).Methods("POST")
	r.HandleFunc("/api/v1/sessions/{session}/agents/{name}/logs", s.instrument("get_agent_logs", s.agentLogsHandler)).Methods("GET")
	r.HandleFunc("/api/v1/sessions/{session}/agents/{name}/status", s.instrument("get_agent_status", s.agentStatusHandler)).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// instrument wraps a handler with the route's request counter and latency
// histogram.
func (s *server) instrument(route string, h func(http.ResponseWriter, *http.Request)) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		outcome := "success"
		if rec.status >= 400 {
			outcome = "error"
		}
		requestsTotal.WithLabelValues(route, outcome).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type processRequest struct {
	Request                 string            `json:"request"`
	Session                  string            `json:"session"`
	ClarificationResponses   map[string]string `json:"clarification_responses,omitempty"`
}

func (s *server) processHandler(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.meta.Process(r.Context(), req.Request, req.Session, req.ClarificationResponses)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.innerOrchestrator().ListSessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *server) recoverHandler(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["session"]
	state, err := s.innerOrchestrator().Recover(r.Context(), session)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if state == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no checkpoint for session"})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type resumeRequest struct {
	NewRequest string `json:"new_request"`
}

func (s *server) resumeHandler(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["session"]
	var req resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	state, err := s.innerOrchestrator().Resume(r.Context(), session, req.NewRequest)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *server) stopAgentHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.innerOrchestrator().StopAgent(r.Context(), vars["session"], vars["name"]); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *server) cleanupAgentHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.innerOrchestrator().CleanupAgent(r.Context(), vars["session"], vars["name"]); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleaned_up"})
}

func (s *server) agentLogsHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	logs, err := s.innerOrchestrator().GetAgentLogs(r.Context(), vars["session"], vars["name"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"logs": logs})
}

func (s *server) agentStatusHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	status, err := s.innerOrchestrator().GetAgentStatus(r.Context(), vars["session"], vars["name"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// innerOrchestrator exposes the underlying orchestrator.Orchestrator for
// the session-management endpoints (list_sessions, recover, resume,
// stop/cleanup/logs/status), which MetaOrchestrator intentionally does
// not re-wrap.
func (s *server) innerOrchestrator() *orchestrator.Orchestrator {
	return s.meta.Inner()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("agentctl: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// shutdown gives in-flight requests up to 10 seconds to finish.
func shutdown(ctx context.Context, srv *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
