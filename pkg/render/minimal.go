// Copyright 2025 The Troupe Authors
//
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

package render

import (
	"fmt"
	"strings"

	"troupe/pkg/workflow"
)

// bannerWidth is the width of the "="-rule banners in minimal output.
const bannerWidth = 80

// Minimal renders a plain linear transcript: a banner per step with its
// final output, failures inline, and a closing summary. Tool calls and
// status transitions are suppressed.
type Minimal struct{}

// NewMinimal creates a minimal renderer.
func NewMinimal() *Minimal {
	return &Minimal{}
}

// Render implements Renderer.
func (m *Minimal) Render(result *workflow.Result) (string, error) {
	if err := validateResult(result); err != nil {
		return "", err
	}

	rule := strings.Repeat("=", bannerWidth)
	thin := strings.Repeat("-", bannerWidth)

	var sb strings.Builder
	sb.WriteString(rule + "\n")
	sb.WriteString(fmt.Sprintf("WORKFLOW: %s (mode: %s)\n", result.Workflow, result.Mode))
	sb.WriteString(rule + "\n")

	for _, sr := range result.Steps {
		sb.WriteString("\n" + thin + "\n")
		sb.WriteString("STEP: " + stepLabel(sr) + "\n")
		sb.WriteString(thin + "\n")

		switch sr.Status {
		case workflow.StatusCompleted:
			if sr.Output != "" {
				sb.WriteString(sr.Output + "\n")
			}
		case workflow.StatusSkipped:
			sb.WriteString("(skipped)\n")
		case workflow.StatusFailed:
			sb.WriteString("FAILED: " + sr.Error + "\n")
		}
	}

	sb.WriteString("\n" + rule + "\n")
	sb.WriteString("SUMMARY\n")
	sb.WriteString(rule + "\n")
	for _, sr := range result.Steps {
		sb.WriteString(fmt.Sprintf("%-*s %s\n", summaryNameWidth(result), stepLabel(sr), sr.Status))
	}
	if result.Failed() {
		sb.WriteString("\nRESULT: FAILED\n")
	} else {
		sb.WriteString("\nRESULT: OK\n")
	}

	return sb.String(), nil
}

// summaryNameWidth returns the padding width for step labels in summaries.
func summaryNameWidth(result *workflow.Result) int {
	width := 0
	for _, sr := range result.Steps {
		if l := len(stepLabel(sr)); l > width {
			width = l
		}
	}
	return width + 2
}
