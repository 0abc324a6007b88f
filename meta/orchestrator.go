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

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/avisanghavi/agentctl/completion"
	"github.com/avisanghavi/agentctl/orchestrator"
	"github.com/avisanghavi/agentctl/shared/logger"
	"github.com/avisanghavi/agentctl/statestore"
)

const (
	businessIntentTTL          = 24 * time.Hour
	classifyMaxTokens          = 300
	defaultContextRefreshEvery = 300 * time.Second
)

// Response is what MetaOrchestrator.Process returns: the unmodified
// orchestrator state plus the business-layer additions.
type Response struct {
	State            *orchestrator.OrchestratorState `json:"state"`
	Intent           BusinessIntent                  `json:"intent"`
	BusinessGuidance *BusinessGuidance               `json:"business_guidance,omitempty"`
	Jarvis           JarvisMetadata                  `json:"jarvis_metadata"`
}

// MetaOrchestrator wraps an orchestrator.Orchestrator unmodified and adds business-intent
// classification and BusinessContext tracking around every request.
type MetaOrchestrator struct {
	inner      *orchestrator.Orchestrator
	completion completion.Provider
	store      statestore.Store
	log        *logger.Logger
}

// New builds a MetaOrchestrator over an existing Orchestrator.
func New(inner *orchestrator.Orchestrator, provider completion.Provider, store statestore.Store) *MetaOrchestrator {
	return &MetaOrchestrator{
		inner:      inner,
		completion: provider,
		store:      store,
		log:        logger.New("meta_orchestrator"),
	}
}

// Inner returns the wrapped Orchestrator, for callers that need the
// session-management surface MetaOrchestrator does not re-wrap.
func (m *MetaOrchestrator) Inner() *orchestrator.Orchestrator { return m.inner }

func contextKey(session string) string { return fmt.Sprintf("business_context:%s", session) }
func intentKey(session string, ts time.Time) string {
	return fmt.Sprintf("business_intent:%s:%d", session, ts.UnixNano())
}
func intentIndexKey(session string) string { return fmt.Sprintf("business_intents:%s", session) }

// LoadContext reads a session's BusinessContext, seeding an empty one if
// none has been persisted yet.
func (m *MetaOrchestrator) LoadContext(ctx context.Context, session string) (*BusinessContext, error) {
	raw, err := m.store.Get(ctx, contextKey(session))
	if err != nil {
		if err == statestore.ErrNotFound {
			return &BusinessContext{Session: session, UpdatedAt: time.Now()}, nil
		}
		return nil, fmt.Errorf("meta: load business context: %w", err)
	}
	var bc BusinessContext
	if err := json.Unmarshal(raw, &bc); err != nil {
		return nil, fmt.Errorf("meta: decode business context: %w", err)
	}
	return &bc, nil
}

// SaveContext persists a session's BusinessContext with no expiry; it is
// long-lived company state, not a transient checkpoint.
func (m *MetaOrchestrator) SaveContext(ctx context.Context, bc *BusinessContext) error {
	blob, err := json.Marshal(bc)
	if err != nil {
		return fmt.Errorf("meta: encode business context: %w", err)
	}
	return m.store.SetEX(ctx, contextKey(bc.Session), 0, blob)
}

// Process runs the business-routing layer around a single request: load context, classify, route, delegate, persist, annotate.
func (m *MetaOrchestrator) Process(ctx context.Context, request, session string, clarificationResponses map[string]string) (*Response, error) {
	start := time.Now()

	bc, err := m.LoadContext(ctx, session)
	if err != nil {
		return nil, err
	}

	intent := m.classify(ctx, request, bc)

	var state *orchestrator.OrchestratorState
	var guidance *BusinessGuidance

	if intent.Category == CategoryCustomAutomation {
		state, err = m.inner.Process(ctx, request, session, clarificationResponses)
	} else {
		preamble := businessPreamble(bc, intent)
		guidance = &BusinessGuidance{
			Purpose:     preamble.purpose,
			Departments: intent.SuggestedDepartments,
			Metrics:     preamble.metrics,
		}
		enriched := preamble.text + "\n\n" + request
		state, err = m.inner.Process(ctx, enriched, session, clarificationResponses)
		if err != nil || state == nil || state.DeploymentStatus != orchestrator.DeploymentCompleted {
			guidance = nil
		}
	}
	if err != nil {
		return nil, err
	}

	if perr := m.persistIntent(ctx, session, request, intent); perr != nil {
		m.log.Warn(session, "", "failed to persist business intent", map[string]interface{}{"error": perr.Error()})
	}

	jarvis := JarvisMetadata{
		ProcessingTimeMS:  time.Since(start).Milliseconds(),
		ActiveDepartments: intent.SuggestedDepartments,
		Category:          intent.Category,
		Confidence:        intent.Confidence,
		Complexity:        intent.Complexity,
		EstimatedTimeline: intent.EstimatedTimeline,
	}

	return &Response{State: state, Intent: intent, BusinessGuidance: guidance, Jarvis: jarvis}, nil
}

type preamble struct {
	text    string
	purpose string
	metrics []string
}

// businessPreamble builds the short "Business Context" prefix prepended to
// non-CUSTOM_AUTOMATION requests.
func businessPreamble(bc *BusinessContext, intent BusinessIntent) preamble {
	var metrics []string
	if bc.Metrics.Runway > 0 {
		metrics = append(metrics, fmt.Sprintf("runway=%.1fmo", bc.Metrics.Runway))
	}
	if bc.Metrics.ARR > 0 {
		metrics = append(metrics, fmt.Sprintf("arr=$%.0f", bc.Metrics.ARR))
	}

	purpose := fmt.Sprintf("Support %s goal: %s.", bc.Profile.Name, string(intent.Category))
	var b strings.Builder
	b.WriteString("Business Context: ")
	b.WriteString(purpose)
	if len(intent.SuggestedDepartments) > 0 {
		b.WriteString(" Departments: " + strings.Join(intent.SuggestedDepartments, ", ") + ".")
	}
	if len(metrics) > 0 {
		b.WriteString(" Metrics: " + strings.Join(metrics, ", ") + ".")
	}
	return preamble{text: b.String(), purpose: purpose, metrics: metrics}
}

// persistIntent stores the classified intent under business_intent:{s}:{ts}
// and prepends the key to the session's rolling index.
func (m *MetaOrchestrator) persistIntent(ctx context.Context, session, request string, intent BusinessIntent) error {
	now := time.Now()
	key := intentKey(session, now)
	persisted := PersistedIntent{Session: session, Timestamp: now, Request: request, Intent: intent}
	blob, err := json.Marshal(persisted)
	if err != nil {
		return err
	}
	if err := m.store.SetEX(ctx, key, businessIntentTTL, blob); err != nil {
		return err
	}
	if err := m.store.LPush(ctx, intentIndexKey(session), key); err != nil {
		return err
	}
	return m.store.Expire(ctx, intentIndexKey(session), businessIntentTTL)
}

// classifyPrompt is the system prompt given to Completion for intent
// classification.
const classifyPrompt = `You classify a business request into one category: GROW_REVENUE, REDUCE_COSTS, IMPROVE_EFFICIENCY, LAUNCH_PRODUCT, CUSTOM_AUTOMATION.
Respond with a single JSON object: {"category": "...", "confidence": 0.0-1.0, "suggested_departments": ["..."], "key_metrics": ["..."], "reasoning": "...", "complexity": "simple|moderate|complex", "estimated_timeline": "...", "prerequisites": ["..."], "success_criteria": ["..."]}`

// classify calls Completion to categorize request against bc, falling back
// to CUSTOM_AUTOMATION at confidence 0.3 on any parse failure.
func (m *MetaOrchestrator) classify(ctx context.Context, request string, bc *BusinessContext) BusinessIntent {
	fallback := BusinessIntent{Category: CategoryCustomAutomation, Confidence: fallbackConfidence}
	if m.completion == nil {
		return fallback
	}

	user := fmt.Sprintf("Company stage: %s. Industry: %s. Request: %s", bc.Profile.Stage, bc.Profile.Industry, request)
	result, err := m.completion.Generate(ctx, classifyPrompt, user, completion.Options{MaxTokens: classifyMaxTokens, Temperature: 0.2})
	if err != nil {
		return fallback
	}

	parsed, ok := parseIntent(result.Text)
	if !ok {
		return fallback
	}
	return parsed
}

// parseIntent defensively extracts the outermost {...} object from a
// completion response and decodes it.
func parseIntent(text string) (BusinessIntent, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return BusinessIntent{}, false
	}
	var intent BusinessIntent
	if err := json.Unmarshal([]byte(text[start:end+1]), &intent); err != nil {
		return BusinessIntent{}, false
	}
	switch intent.Category {
	case CategoryGrowRevenue, CategoryReduceCosts, CategoryImproveEfficiency,
		CategoryLaunchProduct, CategoryCustomAutomation:
	default:
		// A category outside the closed vocabulary is a parse failure; the
		// caller substitutes the documented fallback.
		return BusinessIntent{}, false
	}
	return intent, true
}
