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
	"fmt"
	"regexp"
	"strings"
)

// ApprovedLibraries is the root-module import allowlist. Submodules of an
// approved root (e.g. "google.oauth2.credentials") are allowed.
var ApprovedLibraries = map[string]bool{
	"asyncio": true, "logging": true, "datetime": true, "typing": true,
	"json": true, "os": true, "re": true, "time": true, "uuid": true,
	"hashlib": true, "base64": true, "urllib": true, "http": true,
	"email": true, "mimetypes": true, "pathlib": true, "shutil": true,
	"tempfile": true, "google": true, "googleapiclient": true,
	"slack_sdk": true, "requests": true, "aiohttp": true, "pandas": true,
	"numpy": true, "tenacity": true, "schedule": true, "pydantic": true,
	"sqlalchemy": true, "redis": true, "boto3": true, "azure": true,
	"dropbox": true, "notion_client": true, "jira": true, "github": true,
	"tweepy": true, "agent_base": true,
}

// forbiddenPatterns flags dynamic exec/eval, process spawning, shell
// invocation, write/append-mode file opens, global-scope introspection, and
// compile — each a substring match against the generated source.
var forbiddenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bexec\s*\(`),
	regexp.MustCompile(`\beval\s*\(`),
	regexp.MustCompile(`__import__\s*\(`),
	regexp.MustCompile(`\bcompile\s*\(`),
	regexp.MustCompile(`subprocess\s*\.`),
	regexp.MustCompile(`os\.system\s*\(`),
	regexp.MustCompile(`os\.popen\s*\(`),
	regexp.MustCompile(`\bopen\s*\([^)]*["'][rwa]?[wa]["']`),
	regexp.MustCompile(`\binput\s*\(`),
	regexp.MustCompile(`raw_input\s*\(`),
	regexp.MustCompile(`globals\s*\(\s*\)`),
	regexp.MustCompile(`locals\s*\(\s*\)`),
	regexp.MustCompile(`\bvars\s*\(\s*\)`),
}

var requiredMethods = []string{"__init__", "initialize", "execute", "cleanup"}

// ValidationResult is the outcome of a static validation pass.
type ValidationResult struct {
	Valid    bool
	Error    string
	Warnings []string
}

// Validate applies every static check to generated source: structural
// parse, forbidden patterns, import allowlist, required methods. It never
// executes the source; every check is textual or structural.
func Validate(source string) ValidationResult {
	if err := checkParses(source); err != nil {
		return ValidationResult{Valid: false, Error: err.Error()}
	}

	for _, pattern := range forbiddenPatterns {
		if pattern.MatchString(source) {
			return ValidationResult{Valid: false, Error: (&ForbiddenOperation{Pattern: pattern.String()}).Error()}
		}
	}

	if err := checkImports(source); err != nil {
		return ValidationResult{Valid: false, Error: err.Error()}
	}

	for _, method := range requiredMethods {
		if !strings.Contains(source, "def "+method) && !strings.Contains(source, "async def "+method) {
			return ValidationResult{Valid: false, Error: "missing required method: " + method}
		}
		if isEmptyBody(source, method) {
			return ValidationResult{Valid: false, Error: "empty body for required method: " + method}
		}
	}

	if !strings.Contains(source, "class ") || (!strings.Contains(source, "BaseAgent") && !strings.Contains(source, "SandboxAgent")) {
		return ValidationResult{Valid: false, Error: "missing class definition or BaseAgent/SandboxAgent inheritance"}
	}

	return ValidationResult{Valid: true}
}

var (
	importRe     = regexp.MustCompile(`(?m)^\s*import\s+([\w.]+)`)
	fromImportRe = regexp.MustCompile(`(?m)^\s*from\s+([\w.]+)\s+import\s+`)
)

func checkImports(source string) error {
	for _, m := range importRe.FindAllStringSubmatch(source, -1) {
		if !isApprovedImport(m[1]) {
			return fmt.Errorf("unapproved import: %s", m[1])
		}
	}
	for _, m := range fromImportRe.FindAllStringSubmatch(source, -1) {
		if !isApprovedImport(m[1]) {
			return fmt.Errorf("unapproved import: %s", m[1])
		}
	}
	return nil
}

func isApprovedImport(module string) bool {
	root := strings.SplitN(module, ".", 2)[0]
	return ApprovedLibraries[root]
}

// checkParses is a pragmatic stand-in for ast.parse: no Python AST library
// exists in this module's dependency set, so syntax validity is checked
// structurally (balanced delimiters, a terminal definition present). A
// truncated response — one with no closing definition — fails here.
func checkParses(source string) error {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return fmt.Errorf("syntax error: empty source")
	}

	depth := 0
	for _, r := range source {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return fmt.Errorf("syntax error: unbalanced delimiters")
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("syntax error: unbalanced delimiters")
	}

	if !strings.Contains(source, "def ") {
		return fmt.Errorf("syntax error: no method definitions found (truncated?)")
	}
	return nil
}

// isEmptyBody checks whether the named method's body is just `pass`,
// `...`, or a bare docstring — rejected's empty-body edge
// case.
func isEmptyBody(source, method string) bool {
	idx := strings.Index(source, "def "+method)
	if idx < 0 {
		idx = strings.Index(source, "async def "+method)
	}
	if idx < 0 {
		return false
	}

	rest := source[idx:]
	lineEnd := strings.Index(rest, "\n")
	if lineEnd < 0 {
		return true
	}
	rest = rest[lineEnd+1:]

	bodyLines := []string{}
	for _, line := range strings.Split(rest, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		indented := strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
		if !indented {
			break
		}
		bodyLines = append(bodyLines, trimmed)
	}

	if len(bodyLines) == 0 {
		return true
	}
	for _, l := range bodyLines {
		if l == "pass" || l == "..." || strings.HasPrefix(l, `"""`) || strings.HasPrefix(l, `'''`) {
			continue
		}
		return false
	}
	return true
}
