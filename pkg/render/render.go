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

// Package render formats completed workflow results as text transcripts.
//
// Two styles are available: minimal, a plain linear transcript with
// "="-rule banners, and decorated, a box-drawing tree view with status
// transitions and tool call counters. Rendering is a pure function of the
// result: it performs no mutation, and the same result always produces the
// same text.
package render

import (
	"fmt"

	"troupe/pkg/errors"
	"troupe/pkg/workflow"
)

// Style selects a rendering style.
type Style string

const (
	// StyleMinimal renders a plain linear transcript.
	StyleMinimal Style = "minimal"
	// StyleDecorated renders a box-drawing tree view with transitions and
	// tool calls.
	StyleDecorated Style = "decorated"
)

// IsValid reports whether the style is a known rendering style.
func (s Style) IsValid() bool {
	return s == StyleMinimal || s == StyleDecorated
}

// ParseStyle converts a string into a Style.
func ParseStyle(s string) (Style, error) {
	style := Style(s)
	if !style.IsValid() {
		return "", &errors.ValidationError{
			Field:    "style",
			Message:  fmt.Sprintf("unknown render style: %s", s),
			HelpText: "use one of: minimal, decorated",
		}
	}
	return style, nil
}

// Renderer formats a workflow result as a text transcript.
type Renderer interface {
	// Render returns the transcript for a finished run. The result is not
	// mutated. A result with steps still pending or running is rejected
	// with an InvalidResultError.
	Render(result *workflow.Result) (string, error)
}

// New returns a renderer for the given style.
func New(style Style) (Renderer, error) {
	switch style {
	case StyleMinimal:
		return NewMinimal(), nil
	case StyleDecorated:
		return NewDecorated(0), nil
	default:
		return nil, &errors.ValidationError{
			Field:    "style",
			Message:  fmt.Sprintf("unknown render style: %s", style),
			HelpText: "use one of: minimal, decorated",
		}
	}
}

// validateResult rejects results a renderer cannot present: nil results,
// results with no steps, and steps that never reached a terminal status.
func validateResult(result *workflow.Result) error {
	if result == nil {
		return &errors.InvalidResultError{Reason: "result is nil"}
	}
	if len(result.Steps) == 0 {
		return &errors.InvalidResultError{Reason: "result has no steps"}
	}
	for _, sr := range result.Steps {
		if sr == nil {
			return &errors.InvalidResultError{Reason: "result has a nil step entry"}
		}
		if !sr.Status.IsTerminal() {
			return &errors.InvalidResultError{
				Step:   sr.Name,
				Reason: fmt.Sprintf("is still %s", sr.Status),
			}
		}
	}
	return nil
}

// stepLabel joins a step's name and agent for display.
func stepLabel(sr *workflow.StepResult) string {
	if sr.Agent != "" {
		return fmt.Sprintf("%s (%s)", sr.Name, sr.Agent)
	}
	return sr.Name
}
