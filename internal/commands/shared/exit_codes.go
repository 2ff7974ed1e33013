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

package shared

import (
	"errors"
	"fmt"
	"os"

	pkgerrors "troupe/pkg/errors"
)

// Exit codes for troupe commands.
const (
	// ExitSuccess means every step completed.
	ExitSuccess = 0
	// ExitExecutionFailed means at least one step failed, or the run could
	// not finish.
	ExitExecutionFailed = 1
	// ExitInvalidWorkflow means the workflow definition or invocation was
	// invalid (bad YAML, unknown step references, cycles, missing inputs).
	ExitInvalidWorkflow = 2
)

// ExitError is an error that carries an exit code.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewExecutionError creates an error for workflow execution failures.
func NewExecutionError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitExecutionFailed,
		Message: msg,
		Cause:   cause,
	}
}

// NewInvalidWorkflowError creates an error for invalid workflow definitions
// or invocations.
func NewInvalidWorkflowError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitInvalidWorkflow,
		Message: msg,
		Cause:   cause,
	}
}

// ClassifyError wraps an error with the exit code it should produce.
// Definition and graph problems are invalid-workflow errors; everything
// else is an execution failure.
func ClassifyError(err error) *ExitError {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}

	var (
		valErr      *pkgerrors.ValidationError
		cycleErr    *pkgerrors.CyclicDependencyError
		cfgErr      *pkgerrors.ConfigError
		notFoundErr *pkgerrors.NotFoundError
	)
	if errors.As(err, &valErr) || errors.As(err, &cycleErr) ||
		errors.As(err, &cfgErr) || errors.As(err, &notFoundErr) {
		return NewInvalidWorkflowError("invalid workflow", err)
	}
	return NewExecutionError("workflow execution failed", err)
}

// HandleExitError prints an error and exits with its code.
func HandleExitError(err error) {
	if err == nil {
		return
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, RenderError("Error: "+exitErr.Error()))
		printUserVisibleSuggestion(err)
		os.Exit(exitErr.Code)
	}

	fmt.Fprintln(os.Stderr, RenderError("Error: "+err.Error()))
	printUserVisibleSuggestion(err)
	os.Exit(ExitExecutionFailed)
}

// printUserVisibleSuggestion walks the error chain and prints the first
// suggestion a UserVisibleError offers.
func printUserVisibleSuggestion(err error) {
	for err != nil {
		if userErr, ok := err.(pkgerrors.UserVisibleError); ok {
			if userErr.IsUserVisible() {
				if suggestion := userErr.Suggestion(); suggestion != "" {
					fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", suggestion)
				}
			}
			return
		}
		err = errors.Unwrap(err)
	}
}
