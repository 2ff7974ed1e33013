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

package errors

import (
	"fmt"
	"strings"
)

// ValidationError represents user input validation failures.
// Use this for invalid workflow definitions, malformed data, or constraint violations.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// HelpText provides actionable guidance for fixing the error
	HelpText string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// IsUserVisible marks validation errors as safe to show to end users.
func (e *ValidationError) IsUserVisible() bool { return true }

// UserMessage returns a user-friendly error message.
func (e *ValidationError) UserMessage() string { return e.Error() }

// Suggestion returns actionable guidance for resolving the error.
func (e *ValidationError) Suggestion() string { return e.HelpText }

// NotFoundError represents a resource not found error.
// Use this when a requested resource does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "scenario", "run", "step")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// CyclicDependencyError is raised at scheduling time when a workflow's
// dependency graph contains a cycle. It is fatal: the runner aborts before
// any step executes.
type CyclicDependencyError struct {
	// Cycle lists the step names forming the cycle, in traversal order.
	Cycle []string
}

// Error implements the error interface.
func (e *CyclicDependencyError) Error() string {
	if len(e.Cycle) == 0 {
		return "workflow dependency graph contains a cycle"
	}
	return fmt.Sprintf("workflow dependency graph contains a cycle: %s",
		strings.Join(e.Cycle, " -> "))
}

// IsUserVisible marks cycle errors as safe to show to end users.
func (e *CyclicDependencyError) IsUserVisible() bool { return true }

// UserMessage returns a user-friendly error message.
func (e *CyclicDependencyError) UserMessage() string { return e.Error() }

// Suggestion returns actionable guidance for resolving the error.
func (e *CyclicDependencyError) Suggestion() string {
	return "remove one of the depends_on entries so the steps form a directed acyclic graph"
}

// StepExecutionError wraps a failure raised by a step's work function.
// It is recorded on the step as failed and cascades failed status to the
// step's dependents; the step is not retried.
type StepExecutionError struct {
	// Step is the name of the step whose work function failed
	Step string

	// Cause is the error the work function returned (or the recovered panic)
	Cause error
}

// Error implements the error interface.
func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *StepExecutionError) Unwrap() error {
	return e.Cause
}

// InvalidResultError is returned by a renderer given a workflow result that
// is incomplete or malformed (steps still pending or running). It indicates
// a programming misuse, not a runtime condition.
type InvalidResultError struct {
	// Reason explains what is wrong with the result
	Reason string

	// Step is the offending step name, if the problem is step-specific
	Step string
}

// Error implements the error interface.
func (e *InvalidResultError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("invalid workflow result: step %q %s", e.Step, e.Reason)
	}
	return fmt.Sprintf("invalid workflow result: %s", e.Reason)
}

// ConfigError represents configuration problems.
// Use this for file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "mode", "history.path")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
