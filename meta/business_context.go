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

package meta

import "time"

// atRiskWindow is how close to a goal's deadline "at risk" classification
// kicks in when progress is lagging.
const atRiskWindow = 14 * 24 * time.Hour

// UpdateMetric sets one named metric on the context and re-derives runway
// and ARR. Unknown names are ignored; callers validate field names
// upstream.
func (bc *BusinessContext) UpdateMetric(name string, value float64) {
	switch name {
	case "cash_balance":
		bc.Metrics.CashBalance = value
	case "burn_rate":
		bc.Metrics.BurnRate = value
	case "mrr":
		bc.Metrics.MRR = value
	case "ltv":
		bc.Metrics.LTV = value
	case "cac":
		bc.Metrics.CAC = value
	case "churn_rate":
		bc.Metrics.ChurnRate = value
	}
	bc.deriveMetrics()
	bc.UpdatedAt = time.Now()
}

// deriveMetrics recomputes the derived metrics. Called after every
// UpdateMetric so runway and ARR never drift from their inputs.
func (bc *BusinessContext) deriveMetrics() {
	bc.Metrics.ARR = bc.Metrics.MRR * 12
	if bc.Metrics.BurnRate > 0 {
		bc.Metrics.Runway = bc.Metrics.CashBalance / bc.Metrics.BurnRate
	} else {
		bc.Metrics.Runway = 0
	}
}

// CheckGoalProgress classifies every tracked goal: completed | on_track | at_risk | overdue |
// slow_progress | not_started, using deadline proximity and progress
// fraction.
func (bc *BusinessContext) CheckGoalProgress(now time.Time) map[string]GoalStatus {
	out := make(map[string]GoalStatus, len(bc.Goals))
	for _, g := range bc.Goals {
		out[g.Name] = classifyGoal(g, now)
	}
	return out
}

func classifyGoal(g Goal, now time.Time) GoalStatus {
	progress := g.Progress()
	if progress >= 1 {
		return GoalCompleted
	}
	if progress <= 0 {
		return GoalNotStarted
	}
	if g.Deadline.IsZero() {
		if progress < 0.3 {
			return GoalSlowProgress
		}
		return GoalOnTrack
	}

	remaining := g.Deadline.Sub(now)
	if remaining < 0 {
		return GoalOverdue
	}
	if remaining <= atRiskWindow && progress < 0.8 {
		return GoalAtRisk
	}
	if progress < 0.3 {
		return GoalSlowProgress
	}
	return GoalOnTrack
}

// OptimizationSuggestions produces rule-based advice from the current
// metrics and company stage.
func (bc *BusinessContext) OptimizationSuggestions() []string {
	var out []string
	m := bc.Metrics

	switch {
	case m.BurnRate > 0 && m.Runway < 3:
		out = append(out, "Runway under 3 months: prioritize fundraising or immediate cost cuts.")
	case m.BurnRate > 0 && m.Runway < 6:
		out = append(out, "Runway under 6 months: begin fundraising conversations now.")
	}

	if m.MRR > 0 && m.ARR > 0 {
		// crude month-over-month-implied growth signal: no history here, so
		// only flag when ARR is still far below a seed-stage benchmark.
		if bc.Profile.Stage == "seed" && m.ARR < 120000 {
			out = append(out, "ARR below typical seed benchmark: focus on revenue-generating departments before scaling headcount.")
		}
	}

	if m.CAC > 0 {
		ratio := m.LTV / m.CAC
		switch {
		case ratio < 1:
			out = append(out, "LTV:CAC below 1:1 — acquisition is losing money per customer; revisit pricing or channel mix.")
		case ratio < 3:
			out = append(out, "LTV:CAC below the 3:1 healthy threshold — invest in retention or lower acquisition cost before scaling spend.")
		}
	}

	if m.ChurnRate > 0.05 {
		out = append(out, "Monthly churn above 5% — prioritize customer-retention initiatives before further acquisition spend.")
	}

	if bc.Profile.TeamSize > 0 {
		switch bc.Profile.Stage {
		case "pre-seed", "seed":
			if bc.Profile.TeamSize > 15 {
				out = append(out, "Team size large for stage — headcount growth is outpacing typical seed-stage efficiency.")
			}
		case "series_a":
			if bc.Profile.TeamSize < 10 {
				out = append(out, "Team size small for Series A — consider whether hiring is keeping pace with growth goals.")
			}
		}
	}

	if bc.Profile.Industry != "" && m.ChurnRate > 0 {
		switch bc.Profile.Industry {
		case "saas", "b2b_saas":
			if m.ChurnRate > 0.03 {
				out = append(out, "Churn elevated for B2B SaaS (industry benchmark ~2-3%/mo) — audit onboarding and support response time.")
			}
		}
	}

	return out
}
