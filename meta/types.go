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

// Package meta implements the MetaOrchestrator business-routing layer
//: it wraps the orchestrator package's request pipeline
// unmodified and adds business-intent classification, a per-session
// BusinessContext, and goal/metric tracking on top.
package meta

import "time"

// BusinessCategory is BusinessIntent's classification tag.
type BusinessCategory string

const (
	CategoryGrowRevenue       BusinessCategory = "GROW_REVENUE"
	CategoryReduceCosts       BusinessCategory = "REDUCE_COSTS"
	CategoryImproveEfficiency BusinessCategory = "IMPROVE_EFFICIENCY"
	CategoryLaunchProduct     BusinessCategory = "LAUNCH_PRODUCT"
	CategoryCustomAutomation  BusinessCategory = "CUSTOM_AUTOMATION"
)

// fallbackConfidence is what classify uses when the completion response
// can't be parsed.
const fallbackConfidence = 0.3

// BusinessIntent is the result of classifying one request against the
// company's business context.
type BusinessIntent struct {
	Category             BusinessCategory `json:"category"`
	Confidence           float64          `json:"confidence"`
	SuggestedDepartments []string         `json:"suggested_departments,omitempty"`
	KeyMetrics           []string         `json:"key_metrics,omitempty"`
	Reasoning            string           `json:"reasoning,omitempty"`
	Complexity           string           `json:"complexity,omitempty"` // simple | moderate | complex
	EstimatedTimeline    string           `json:"estimated_timeline,omitempty"`
	Prerequisites        []string         `json:"prerequisites,omitempty"`
	SuccessCriteria      []string         `json:"success_criteria,omitempty"`
}

// GoalStatus classifies a BusinessGoal's progress.
type GoalStatus string

const (
	GoalCompleted    GoalStatus = "completed"
	GoalOnTrack      GoalStatus = "on_track"
	GoalAtRisk       GoalStatus = "at_risk"
	GoalOverdue      GoalStatus = "overdue"
	GoalSlowProgress GoalStatus = "slow_progress"
	GoalNotStarted   GoalStatus = "not_started"
)

// Goal is one tracked business objective.
type Goal struct {
	Name         string    `json:"name"`
	TargetValue  float64   `json:"target_value"`
	CurrentValue float64   `json:"current_value"`
	Deadline     time.Time `json:"deadline"`
}

// Progress returns current/target, clamped to [0,1]; a zero target is
// treated as already met.
func (g Goal) Progress() float64 {
	if g.TargetValue == 0 {
		return 1
	}
	p := g.CurrentValue / g.TargetValue
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// CompanyProfile is the static-ish identity of the business the
// MetaOrchestrator is routing for.
type CompanyProfile struct {
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Stage    string `json:"stage"` // e.g. "pre-seed", "seed", "series_a", "growth"
	TeamSize int    `json:"team_size"`
}

// Metrics holds the running financial and growth figures a BusinessContext
// derives ratios from.
type Metrics struct {
	CashBalance float64 `json:"cash_balance"`
	BurnRate    float64 `json:"burn_rate"` // monthly
	MRR         float64 `json:"mrr"`
	ARR         float64 `json:"arr"` // derived: mrr * 12
	Runway      float64 `json:"runway"` // derived: cash_balance / burn_rate, months
	LTV         float64 `json:"ltv"`
	CAC         float64 `json:"cac"`
	ChurnRate   float64 `json:"churn_rate"` // monthly, fraction
}

// BusinessContext is the per-session business state the MetaOrchestrator
// loads before classifying each request.
type BusinessContext struct {
	Session   string         `json:"session"`
	Profile   CompanyProfile `json:"profile"`
	Metrics   Metrics        `json:"metrics"`
	Goals     []Goal         `json:"goals"`
	Constraints []string     `json:"constraints,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// JarvisMetadata is attached to every MetaOrchestrator response.
type JarvisMetadata struct {
	ProcessingTimeMS  int64            `json:"processing_time_ms"`
	ActiveDepartments []string         `json:"active_departments,omitempty"`
	Category          BusinessCategory `json:"category"`
	Confidence        float64          `json:"confidence"`
	Complexity        string           `json:"complexity,omitempty"`
	EstimatedTimeline string           `json:"estimated_timeline,omitempty"`
}

// BusinessGuidance is attached to a response when the request was routed
// through the business-context preamble.
type BusinessGuidance struct {
	Purpose     string   `json:"purpose"`
	Departments []string `json:"departments,omitempty"`
	Metrics     []string `json:"metrics,omitempty"`
}

// PersistedIntent is the envelope stored under
// business_intent:{session}:{ts}.
type PersistedIntent struct {
	Session   string         `json:"session"`
	Timestamp time.Time      `json:"timestamp"`
	Request   string         `json:"request"`
	Intent    BusinessIntent `json:"intent"`
}
