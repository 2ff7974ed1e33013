package workflow

import (
	"context"
	"time"
)

// StepStatus represents the execution status of a workflow step.
type StepStatus string

const (
	// StatusPending indicates the step has not started yet.
	StatusPending StepStatus = "pending"
	// StatusRunning indicates the step is currently executing.
	StatusRunning StepStatus = "running"
	// StatusCompleted indicates the step completed successfully.
	StatusCompleted StepStatus = "completed"
	// StatusFailed indicates the step failed, or was never run because an
	// upstream dependency failed.
	StatusFailed StepStatus = "failed"
	// StatusSkipped indicates the step was skipped due to a when condition.
	StatusSkipped StepStatus = "skipped"
)

// IsTerminal returns true if the status is terminal (no further transitions).
func (s StepStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// Mode selects how the runner orders step execution.
type Mode string

const (
	// ModeLinear executes steps strictly in list order, one at a time.
	ModeLinear Mode = "linear"
	// ModeDependency executes steps in dependency-graph order, running
	// independent steps concurrently.
	ModeDependency Mode = "dependency"
)

// IsValid reports whether the mode is a known execution mode.
func (m Mode) IsValid() bool {
	return m == ModeLinear || m == ModeDependency
}

// WorkFunc is the unit of agent work for a step. It receives a StepContext
// exposing workflow inputs and completed dependency outputs, and returns the
// step's output text. Tool usage is registered through the StepContext.
type WorkFunc func(ctx context.Context, sc *StepContext) (string, error)

// Step declares one unit of agent work within a workflow.
type Step struct {
	// Name uniquely identifies the step within the workflow.
	Name string

	// Agent is a display label for the agent performing the step.
	Agent string

	// DependsOn lists prerequisite step names. Used in dependency mode;
	// linear mode runs steps in list order regardless.
	DependsOn []string

	// When is an optional condition expression. If it evaluates false the
	// step is skipped. Skipped steps count as satisfied prerequisites.
	When string

	// Run is the step's work function.
	Run WorkFunc
}

// ToolCall records invocations of one external tool by a step.
type ToolCall struct {
	// Name is the tool identifier.
	Name string `json:"name"`

	// Count is the number of invocations.
	Count int `json:"count"`

	// Input is the most recent input text, if any.
	Input string `json:"input,omitempty"`

	// Output is the most recent output text, if any.
	Output string `json:"output,omitempty"`
}

// Transition records one status change of a step.
type Transition struct {
	To StepStatus `json:"to"`
	At time.Time  `json:"at"`
}

// StepResult represents the result of executing a workflow step.
// Each result is written only by the goroutine executing its step.
type StepResult struct {
	// Name is the step's name.
	Name string `json:"name"`

	// Agent is the step's display label.
	Agent string `json:"agent,omitempty"`

	// Status is the terminal execution status once the run finishes.
	Status StepStatus `json:"status"`

	// Output is the step's output text.
	Output string `json:"output,omitempty"`

	// Error contains the error message if the step failed.
	Error string `json:"error,omitempty"`

	// ToolCalls lists the tools the step invoked, in first-use order.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Transitions records every status change in order.
	Transitions []Transition `json:"transitions"`

	// StartedAt is when the step execution began.
	StartedAt time.Time `json:"started_at,omitzero"`

	// CompletedAt is when the step execution finished.
	CompletedAt time.Time `json:"completed_at,omitzero"`

	// Duration is the time taken to execute the step.
	Duration time.Duration `json:"duration,omitempty"`
}

// transition advances the step's status and records the change.
func (sr *StepResult) transition(to StepStatus) {
	sr.Status = to
	sr.Transitions = append(sr.Transitions, Transition{To: to, At: time.Now()})
}

// Result is the outcome of one workflow execution: every step with its
// terminal status and output, in definition order. The runner owns it for
// the duration of the run and hands it to renderers read-only.
type Result struct {
	// RunID uniquely identifies this execution.
	RunID string `json:"run_id"`

	// Workflow is the workflow name.
	Workflow string `json:"workflow"`

	// Mode is the execution mode used.
	Mode Mode `json:"mode"`

	// Inputs are the workflow inputs the run started with.
	Inputs map[string]any `json:"inputs,omitempty"`

	// Steps holds every step result in definition order.
	Steps []*StepResult `json:"steps"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run finished.
	CompletedAt time.Time `json:"completed_at"`
}

// Failed reports whether any step reached failed status.
func (r *Result) Failed() bool {
	for _, sr := range r.Steps {
		if sr.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Step returns the result for the named step, or nil if not present.
func (r *Result) Step(name string) *StepResult {
	for _, sr := range r.Steps {
		if sr.Name == name {
			return sr
		}
	}
	return nil
}

// StepContext provides a step's work function with read access to workflow
// inputs and completed dependency outputs, and collects ToolCall records.
// A StepContext is used by a single goroutine; it is not shared.
type StepContext struct {
	inputs    map[string]any
	outputs   map[string]string
	toolCalls []ToolCall
}

// Input retrieves a workflow input value.
func (sc *StepContext) Input(key string) (any, bool) {
	v, ok := sc.inputs[key]
	return v, ok
}

// InputString retrieves a workflow input as a string, or "" if missing or
// not a string.
func (sc *StepContext) InputString(key string) string {
	if s, ok := sc.inputs[key].(string); ok {
		return s
	}
	return ""
}

// Output returns the output of a completed upstream step. In dependency
// mode only declared dependencies are visible; in linear mode every prior
// step is.
func (sc *StepContext) Output(step string) (string, bool) {
	v, ok := sc.outputs[step]
	return v, ok
}

// Outputs returns a copy of all visible upstream outputs keyed by step name.
func (sc *StepContext) Outputs() map[string]string {
	out := make(map[string]string, len(sc.outputs))
	for k, v := range sc.outputs {
		out[k] = v
	}
	return out
}

// RecordTool registers one invocation of the named tool. Repeated calls for
// the same tool increment its invocation count; the latest non-empty input
// and output text are retained.
func (sc *StepContext) RecordTool(name, input, output string) {
	for i := range sc.toolCalls {
		if sc.toolCalls[i].Name == name {
			sc.toolCalls[i].Count++
			if input != "" {
				sc.toolCalls[i].Input = input
			}
			if output != "" {
				sc.toolCalls[i].Output = output
			}
			return
		}
	}
	sc.toolCalls = append(sc.toolCalls, ToolCall{Name: name, Count: 1, Input: input, Output: output})
}
