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

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"troupe/pkg/workflow"
)

const (
	// minDecoratedWidth is the narrowest box the decorated renderer draws.
	minDecoratedWidth = 40
	// fallbackWidth is used when terminal width detection fails (pipes,
	// CI, tests).
	fallbackWidth = 100
)

// Decorated style palette.
var (
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	styleError  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	styleMuted  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

// Status symbols.
const (
	symbolOK      = "✓"
	symbolError   = "✗"
	symbolSkipped = "•"
)

// Decorated renders a box-drawing tree view: a header box, a per-step tree
// showing status transitions and tool call counters, framed outputs, and a
// styled summary.
type Decorated struct {
	width int
}

// NewDecorated creates a decorated renderer. A width of 0 detects the
// terminal width, falling back to a fixed width when no terminal is
// attached.
func NewDecorated(width int) *Decorated {
	if width <= 0 {
		w, _, err := term.GetSize(0)
		if err != nil || w <= 0 {
			w = fallbackWidth
		}
		width = w
	}
	if width < minDecoratedWidth {
		width = minDecoratedWidth
	}
	return &Decorated{width: width}
}

// Render implements Renderer.
func (d *Decorated) Render(result *workflow.Result) (string, error) {
	if err := validateResult(result); err != nil {
		return "", err
	}

	var sb strings.Builder
	d.writeHeader(&sb, result)

	for _, sr := range result.Steps {
		sb.WriteString("\n")
		d.writeStep(&sb, sr)
	}

	sb.WriteString("\n")
	d.writeSummary(&sb, result)
	return sb.String(), nil
}

func (d *Decorated) writeHeader(sb *strings.Builder, result *workflow.Result) {
	border := strings.Repeat("─", d.width-2)
	inner := d.width - 4

	sb.WriteString("┌" + border + "┐\n")
	sb.WriteString(fmt.Sprintf("│ %-*s │\n", inner,
		truncate("Workflow: "+result.Workflow, inner)))
	sb.WriteString(fmt.Sprintf("│ %-*s │\n", inner,
		truncate(fmt.Sprintf("Mode: %s   Steps: %d", result.Mode, len(result.Steps)), inner)))
	sb.WriteString("└" + border + "┘\n")
}

func (d *Decorated) writeStep(sb *strings.Builder, sr *workflow.StepResult) {
	sb.WriteString(statusSymbol(sr.Status) + " " + styleHeader.Render(stepLabel(sr)) + "\n")

	var lines []string
	if len(sr.Transitions) > 0 {
		parts := make([]string, len(sr.Transitions))
		for i, tr := range sr.Transitions {
			parts[i] = string(tr.To)
		}
		lines = append(lines, styleMuted.Render(strings.Join(parts, " -> ")))
	}
	for _, tc := range sr.ToolCalls {
		line := fmt.Sprintf("tool %s ×%d", tc.Name, tc.Count)
		if tc.Input != "" {
			line += ": " + truncate(tc.Input, d.width/2)
		}
		lines = append(lines, line)
	}
	switch sr.Status {
	case workflow.StatusCompleted:
		if sr.Output != "" {
			lines = append(lines, "output:\n"+frameOutput(sr.Output))
		}
	case workflow.StatusFailed:
		lines = append(lines, styleError.Render("error: "+sr.Error))
	case workflow.StatusSkipped:
		lines = append(lines, styleMuted.Render("skipped"))
	}

	for i, line := range lines {
		branch := "├─ "
		if i == len(lines)-1 {
			branch = "└─ "
		}
		first, rest, _ := strings.Cut(line, "\n")
		sb.WriteString(branch + first + "\n")
		if rest != "" {
			sb.WriteString(rest + "\n")
		}
	}
}

func (d *Decorated) writeSummary(sb *strings.Builder, result *workflow.Result) {
	sb.WriteString(styleHeader.Render("Summary") + "\n")
	width := 0
	for _, sr := range result.Steps {
		if l := len(stepLabel(sr)); l > width {
			width = l
		}
	}
	for _, sr := range result.Steps {
		sb.WriteString(fmt.Sprintf("  %s %-*s %s\n",
			statusSymbol(sr.Status), width+2, stepLabel(sr), sr.Status))
	}

	if result.Failed() {
		sb.WriteString("\n" + styleError.Render("Result: FAILED") + "\n")
	} else {
		sb.WriteString("\n" + styleOK.Render("Result: OK") + "\n")
	}
}

// statusSymbol returns the styled glyph for a terminal step status.
func statusSymbol(status workflow.StepStatus) string {
	switch status {
	case workflow.StatusCompleted:
		return styleOK.Render(symbolOK)
	case workflow.StatusFailed:
		return styleError.Render(symbolError)
	default:
		return styleMuted.Render(symbolSkipped)
	}
}

// frameOutput indents a multi-line output under a │ gutter.
func frameOutput(output string) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "   │ " + line
	}
	return strings.Join(lines, "\n")
}

// truncate shortens s to max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
