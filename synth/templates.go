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

package synth

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"github.com/avisanghavi/agentctl/agentspec"
	"gopkg.in/yaml.v3"
)

// Template is a deterministic, parameterized source renderer for one
// capability family. Synthesize uses a match only when its confidence
// reaches templateMatchThreshold.
type Template struct {
	Name          string
	Keywords      []string
	ParamPatterns map[string]*regexp.Regexp
	Required      []string
	Render        func(spec *agentspec.AgentSpec, params map[string]string) string
}

//go:embed templates.yaml
var templateRegistryYAML []byte

// templateDef is the YAML-shaped (keywords, param patterns, required
// fields) half of a Template. Render stays Go code and is attached by
// name in loadTemplates, so matching rules are data while source
// rendering remains compiled.
type templateDef struct {
	Name          string            `yaml:"name"`
	Keywords      []string          `yaml:"keywords"`
	ParamPatterns map[string]string `yaml:"param_patterns"`
	Required      []string          `yaml:"required"`
}

type templateRegistry struct {
	Templates []templateDef `yaml:"templates"`
}

var renderers = map[string]func(spec *agentspec.AgentSpec, params map[string]string) string{
	"monitor": renderMonitor,
	"sync":    renderSync,
	"report":  renderReport,
}

var templates = loadTemplates(templateRegistryYAML)

// loadTemplates parses the embedded YAML template registry and attaches
// each definition's Go renderer by name. Panics on a malformed registry:
// this file is compiled into the binary, so a parse failure here is a
// build-time defect, not a runtime condition callers can recover from.
func loadTemplates(raw []byte) []Template {
	var reg templateRegistry
	if err := yaml.Unmarshal(raw, &reg); err != nil {
		panic("synth: malformed template registry: " + err.Error())
	}

	out := make([]Template, 0, len(reg.Templates))
	for _, def := range reg.Templates {
		render, ok := renderers[def.Name]
		if !ok {
			panic("synth: template registry names unknown renderer: " + def.Name)
		}
		patterns := make(map[string]*regexp.Regexp, len(def.ParamPatterns))
		for param, pattern := range def.ParamPatterns {
			patterns[param] = regexp.MustCompile(pattern)
		}
		out = append(out, Template{
			Name:          def.Name,
			Keywords:      def.Keywords,
			ParamPatterns: patterns,
			Required:      def.Required,
			Render:        render,
		})
	}
	return out
}

// MatchResult is the outcome of the fast-path template extractor.
type MatchResult struct {
	Template   *Template
	Params     map[string]string
	Confidence float64
}

// TemplateMatch extracts parameters from the originating request using a
// deterministic regex+keyword extractor and scores confidence against
// every known template.
func TemplateMatch(request string, spec *agentspec.AgentSpec) *MatchResult {
	lower := strings.ToLower(request)

	var best *MatchResult
	for i := range templates {
		tmpl := &templates[i]
		params := map[string]string{}
		for name, pattern := range tmpl.ParamPatterns {
			if m := pattern.FindStringSubmatch(request); len(m) > 1 {
				params[name] = m[1]
			}
		}

		keywordHits := 0
		for _, kw := range tmpl.Keywords {
			if strings.Contains(lower, kw) {
				keywordHits++
			}
		}
		if keywordHits == 0 {
			continue
		}

		// Base confidence of 0.75 for a single keyword hit (enough to clear
		// the 0.7 fast-path threshold), rising toward 1.0 as more of the
		// template's keywords appear in the request.
		confidence := 0.75 + 0.25*(float64(keywordHits-1)/float64(len(tmpl.Keywords)))
		allRequiredPresent := true
		for _, req := range tmpl.Required {
			if _, ok := params[req]; !ok {
				allRequiredPresent = false
				break
			}
		}
		if !allRequiredPresent {
			confidence -= 0.3
		}

		if best == nil || confidence > best.Confidence {
			best = &MatchResult{Template: tmpl, Params: params, Confidence: confidence}
		}
	}
	return best
}

const templateMatchThreshold = 0.7

func className(name string) string {
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	var b strings.Builder
	for _, f := range fields {
		if f == "" {
			continue
		}
		b.WriteString(strings.ToUpper(f[:1]))
		b.WriteString(f[1:])
	}
	if b.Len() == 0 {
		return "GeneratedAgent"
	}
	return b.String() + "Agent"
}

func renderMonitor(spec *agentspec.AgentSpec, params map[string]string) string {
	return fmt.Sprintf(`"""Generated monitor agent: %s."""

import asyncio
import logging

from agent_base import SandboxAgent

logger = logging.getLogger(__name__)


class %s(SandboxAgent):
    def __init__(self):
        super().__init__(name=%q, version=%q, capabilities=%s, config={})

    async def initialize(self):
        logger.info("initializing %s")

    async def execute(self):
        logger.info("checking for new activity")
        return {"status": "completed"}

    async def cleanup(self):
        logger.info("cleanup complete")
`, spec.Name, className(spec.Name), spec.Name, spec.Version, pyList(spec.Capabilities), spec.Name)
}

func renderSync(spec *agentspec.AgentSpec, params map[string]string) string {
	return fmt.Sprintf(`"""Generated sync agent: %s."""

import asyncio
import logging

from agent_base import SandboxAgent

logger = logging.getLogger(__name__)


class %s(SandboxAgent):
    def __init__(self):
        super().__init__(name=%q, version=%q, capabilities=%s, config={})

    async def initialize(self):
        logger.info("initializing sync state")

    async def execute(self):
        logger.info("syncing records")
        return {"status": "completed", "records_synced": 0}

    async def cleanup(self):
        logger.info("sync cleanup complete")
`, spec.Name, className(spec.Name), spec.Name, spec.Version, pyList(spec.Capabilities))
}

func renderReport(spec *agentspec.AgentSpec, params map[string]string) string {
	return fmt.Sprintf(`"""Generated report agent: %s."""

import asyncio
import logging

from agent_base import SandboxAgent

logger = logging.getLogger(__name__)


class %s(SandboxAgent):
    def __init__(self):
        super().__init__(name=%q, version=%q, capabilities=%s, config={})

    async def initialize(self):
        logger.info("preparing report context")

    async def execute(self):
        logger.info("generating report")
        return {"status": "completed", "report_lines": 0}

    async def cleanup(self):
        logger.info("report cleanup complete")
`, spec.Name, className(spec.Name), spec.Name, spec.Version, pyList(spec.Capabilities))
}

func pyList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = fmt.Sprintf("%q", it)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
