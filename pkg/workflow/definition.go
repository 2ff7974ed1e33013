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

package workflow

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"troupe/pkg/errors"
)

// Definition represents a YAML-based workflow definition. Step outputs are
// Go text templates resolved against workflow inputs and the outputs of
// upstream steps, so a definition is runnable without any external agent
// backend.
type Definition struct {
	// Name is the workflow identifier
	Name string `yaml:"name" json:"name"`

	// Description provides human-readable context about the workflow
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Mode selects the default execution mode (linear, dependency).
	// Defaults to linear. The CLI may override it.
	Mode Mode `yaml:"mode,omitempty" json:"mode,omitempty"`

	// Inputs defines the expected input parameters for the workflow
	Inputs []InputDefinition `yaml:"inputs,omitempty" json:"inputs,omitempty"`

	// Steps are the executable units of the workflow
	Steps []StepDefinition `yaml:"steps" json:"steps"`
}

// InputDefinition describes a workflow input parameter.
// Inputs without a default value are required.
type InputDefinition struct {
	// Name is the input parameter identifier
	Name string `yaml:"name" json:"name"`

	// Default provides a fallback value if the input is not provided.
	// Inputs without a default are required.
	Default any `yaml:"default,omitempty" json:"default,omitempty"`

	// Description explains what this input is for
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// StepDefinition represents a single step in a workflow definition.
type StepDefinition struct {
	// ID is the unique step identifier within this workflow
	ID string `yaml:"id" json:"id"`

	// Agent is the display label of the agent performing the step
	Agent string `yaml:"agent,omitempty" json:"agent,omitempty"`

	// DependsOn lists prerequisite step IDs (dependency mode)
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`

	// When is an optional condition expression; false skips the step
	When string `yaml:"when,omitempty" json:"when,omitempty"`

	// Output is a Go text template producing the step's output text.
	// It can reference {{.inputs.<name>}} and {{.steps.<id>.output}}.
	Output string `yaml:"output" json:"output"`

	// Tools declares the tool invocations the step performs while running
	Tools []ToolDefinition `yaml:"tools,omitempty" json:"tools,omitempty"`
}

// ToolDefinition declares tool usage by a step.
type ToolDefinition struct {
	// Name is the tool identifier
	Name string `yaml:"name" json:"name"`

	// Calls is the invocation count (defaults to 1)
	Calls int `yaml:"calls,omitempty" json:"calls,omitempty"`

	// Input is optional input text shown by decorated rendering
	Input string `yaml:"input,omitempty" json:"input,omitempty"`
}

// LoadDefinition reads and parses a workflow definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.ConfigError{
			Key:    "workflow",
			Reason: fmt.Sprintf("cannot read workflow file %s", path),
			Cause:  err,
		}
	}
	return ParseDefinition(data)
}

// ParseDefinition parses a workflow definition from YAML bytes and
// validates it.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, &errors.ValidationError{
			Field:    "workflow",
			Message:  fmt.Sprintf("invalid YAML: %v", err),
			HelpText: "check the workflow file for YAML syntax errors",
		}
	}
	if def.Mode == "" {
		def.Mode = ModeLinear
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the definition for structural problems: missing name,
// invalid mode, duplicate or missing step IDs, unknown dependencies,
// dependency cycles, and unparsable output templates.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return &errors.ValidationError{
			Field:    "name",
			Message:  "workflow name is required",
			HelpText: "add a name field to the workflow definition",
		}
	}
	if !d.Mode.IsValid() {
		return &errors.ValidationError{
			Field:    "mode",
			Message:  fmt.Sprintf("unknown mode: %s", d.Mode),
			HelpText: "use one of: linear, dependency",
		}
	}
	if len(d.Steps) == 0 {
		return &errors.ValidationError{
			Field:    "steps",
			Message:  "workflow must have at least one step",
			HelpText: "add at least one step to the workflow",
		}
	}

	for _, s := range d.Steps {
		if s.ID == "" {
			return &errors.ValidationError{
				Field:    "steps",
				Message:  "step has no id",
				HelpText: "give every step a unique id",
			}
		}
		if strings.TrimSpace(s.Output) == "" {
			return &errors.ValidationError{
				Field:    fmt.Sprintf("steps[%s].output", s.ID),
				Message:  "step has no output template",
				HelpText: "add an output template to the step",
			}
		}
		if _, err := parseOutputTemplate(s.ID, s.Output); err != nil {
			return err
		}
	}

	// Compile to probe the structural rules shared with programmatic steps
	// (duplicate IDs, missing deps, cycles).
	steps, err := d.Compile()
	if err != nil {
		return err
	}
	return ValidateSteps(steps)
}

// ValidateInputs checks that every input without a default is present.
func (d *Definition) ValidateInputs(inputs map[string]any) error {
	for _, in := range d.Inputs {
		if in.Default != nil {
			continue
		}
		if _, ok := inputs[in.Name]; !ok {
			return &errors.ValidationError{
				Field:    in.Name,
				Message:  "required input missing",
				HelpText: fmt.Sprintf("provide the input with --input %s=<value>", in.Name),
			}
		}
	}
	return nil
}

// ResolveInputs merges provided inputs over declared defaults.
func (d *Definition) ResolveInputs(inputs map[string]any) map[string]any {
	resolved := make(map[string]any, len(d.Inputs)+len(inputs))
	for _, in := range d.Inputs {
		if in.Default != nil {
			resolved[in.Name] = in.Default
		}
	}
	for k, v := range inputs {
		resolved[k] = v
	}
	return resolved
}

// Compile lowers the definition into runnable Steps. Each step's work
// function renders the output template against workflow inputs and visible
// upstream outputs, and registers the declared tool calls.
func (d *Definition) Compile() ([]Step, error) {
	steps := make([]Step, 0, len(d.Steps))
	for _, sd := range d.Steps {
		tmpl, err := parseOutputTemplate(sd.ID, sd.Output)
		if err != nil {
			return nil, err
		}
		tools := sd.Tools

		steps = append(steps, Step{
			Name:      sd.ID,
			Agent:     sd.Agent,
			DependsOn: sd.DependsOn,
			When:      sd.When,
			Run: func(ctx context.Context, sc *StepContext) (string, error) {
				for _, t := range tools {
					calls := t.Calls
					if calls <= 0 {
						calls = 1
					}
					for i := 0; i < calls; i++ {
						sc.RecordTool(t.Name, t.Input, "")
					}
				}
				return renderOutput(tmpl, sc)
			},
		})
	}
	return steps, nil
}

// parseOutputTemplate parses a step's output template, reporting template
// syntax errors as validation errors.
func parseOutputTemplate(stepID, text string) (*template.Template, error) {
	tmpl, err := template.New(stepID).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, &errors.ValidationError{
			Field:    fmt.Sprintf("steps[%s].output", stepID),
			Message:  fmt.Sprintf("invalid output template: %v", err),
			HelpText: "output templates use Go template syntax, e.g. {{.inputs.topic}} or {{.steps.research.output}}",
		}
	}
	return tmpl, nil
}

// renderOutput executes a step's output template against its context.
func renderOutput(tmpl *template.Template, sc *StepContext) (string, error) {
	stepsData := make(map[string]any, len(sc.outputs))
	for name, output := range sc.outputs {
		stepsData[name] = map[string]any{"output": output}
	}
	data := map[string]any{
		"inputs": sc.inputs,
		"steps":  stepsData,
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering output template: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}
