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

package department

import "github.com/prometheus/client_golang/prometheus"

var (
	workflowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentctl_department_workflows_total",
		Help: "Settled department workflows by outcome.",
	}, []string{"department", "outcome"})

	coordinationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentctl_department_coordinations_total",
		Help: "Coordination rounds dispatched, by mode and outcome.",
	}, []string{"department", "mode", "outcome"})

	avgCompletionSeconds = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agentctl_department_avg_completion_seconds",
		Help: "Running mean workflow completion time per department.",
	}, []string{"department"})

	errorCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agentctl_department_error_count",
		Help: "Accumulated error count feeding the department health model.",
	}, []string{"department"})
)

func init() {
	prometheus.MustRegister(workflowsTotal, coordinationsTotal, avgCompletionSeconds, errorCount)
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
