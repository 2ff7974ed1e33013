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
	"fmt"

	"troupe/pkg/errors"
)

// ValidateSteps checks a step list for structural problems: empty list,
// missing work functions, duplicate names, unknown dependencies, and
// dependency cycles. It is called by the runner before any step executes.
func ValidateSteps(steps []Step) error {
	if len(steps) == 0 {
		return &errors.ValidationError{
			Field:    "steps",
			Message:  "workflow must have at least one step",
			HelpText: "add at least one step to the workflow",
		}
	}

	names := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s.Name == "" {
			return &errors.ValidationError{
				Field:    "steps",
				Message:  "step has no name",
				HelpText: "give every step a unique name",
			}
		}
		if names[s.Name] {
			return &errors.ValidationError{
				Field:    "steps",
				Message:  fmt.Sprintf("duplicate step name: %s", s.Name),
				HelpText: "step names must be unique within a workflow",
			}
		}
		if s.Run == nil {
			return &errors.ValidationError{
				Field:    fmt.Sprintf("steps[%s]", s.Name),
				Message:  "step has no work function",
				HelpText: "assign a Run function to every step",
			}
		}
		names[s.Name] = true
	}

	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if !names[dep] {
				return &errors.ValidationError{
					Field:    fmt.Sprintf("steps[%s].depends_on", s.Name),
					Message:  fmt.Sprintf("dependency not found: %s", dep),
					HelpText: "depends_on entries must name other steps in the same workflow",
				}
			}
			if dep == s.Name {
				return &errors.CyclicDependencyError{Cycle: []string{s.Name, s.Name}}
			}
		}
	}

	return detectCycles(steps)
}

// detectCycles runs a depth-first search over the dependency graph and
// returns a CyclicDependencyError naming the first cycle found.
func detectCycles(steps []Step) error {
	deps := make(map[string][]string, len(steps))
	for _, s := range steps {
		deps[s.Name] = s.DependsOn
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(steps))
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			// Found a back edge; slice the stack from the first occurrence
			// of name to report the cycle path.
			for i, n := range stack {
				if n == name {
					cycle := append(append([]string{}, stack[i:]...), name)
					return &errors.CyclicDependencyError{Cycle: cycle}
				}
			}
			return &errors.CyclicDependencyError{Cycle: []string{name, name}}
		}

		state[name] = visiting
		stack = append(stack, name)
		for _, dep := range deps[name] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
		return nil
	}

	for _, s := range steps {
		if err := visit(s.Name); err != nil {
			return err
		}
	}
	return nil
}
