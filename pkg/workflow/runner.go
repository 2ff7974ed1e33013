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

// Package workflow executes ordered or dependency-graph-ordered sets of
// agent steps and collects their outputs into a Result.
//
// Two execution modes are supported:
//   - linear: steps run strictly in list order, one at a time
//   - dependency: steps run as soon as their prerequisites complete,
//     concurrently where the graph allows
//
// Step status transitions are monotonic (pending -> running -> terminal)
// and driven exclusively by the Runner.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"troupe/internal/log"
	"troupe/pkg/errors"
)

// DefaultMaxConcurrency is the default cap on concurrently running steps in
// dependency mode. Can be overridden via WithMaxConcurrency.
const DefaultMaxConcurrency = 4

// Runner executes workflow steps and records status transitions.
type Runner struct {
	mode           Mode
	maxConcurrency int
	logger         *slog.Logger
	emitter        *Emitter
}

// Option configures a Runner.
type Option func(*Runner)

// WithMode sets the execution mode.
func WithMode(mode Mode) Option {
	return func(r *Runner) { r.mode = mode }
}

// WithMaxConcurrency caps the number of concurrently running steps in
// dependency mode. Values <= 0 restore the default.
func WithMaxConcurrency(n int) Option {
	return func(r *Runner) {
		if n <= 0 {
			n = DefaultMaxConcurrency
		}
		r.maxConcurrency = n
	}
}

// WithLogger sets a custom logger for the runner.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithEmitter sets the event emitter that receives step lifecycle events.
func WithEmitter(emitter *Emitter) Option {
	return func(r *Runner) { r.emitter = emitter }
}

// NewRunner creates a runner. The default configuration is linear mode with
// the default concurrency cap and slog.Default().
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		mode:           ModeLinear,
		maxConcurrency: DefaultMaxConcurrency,
		logger:         slog.Default(),
		emitter:        NewEmitter(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mode returns the runner's execution mode.
func (r *Runner) Mode() Mode { return r.mode }

// Run executes the steps and returns a Result containing every step with
// its terminal status and output. The step list is validated first; a cycle
// in the dependency graph aborts the run with a CyclicDependencyError
// before any step executes.
//
// Step failures do not produce a non-nil error: they are recorded on the
// Result (check Result.Failed). The returned error is non-nil only for
// validation failures and context cancellation.
func (r *Runner) Run(ctx context.Context, name string, steps []Step, inputs map[string]any) (*Result, error) {
	if err := ValidateSteps(steps); err != nil {
		return nil, err
	}
	if inputs == nil {
		inputs = make(map[string]any)
	}

	result := &Result{
		RunID:     uuid.NewString(),
		Workflow:  name,
		Mode:      r.mode,
		Inputs:    inputs,
		Steps:     make([]*StepResult, len(steps)),
		StartedAt: time.Now(),
	}
	for i, s := range steps {
		sr := &StepResult{Name: s.Name, Agent: s.Agent}
		sr.transition(StatusPending)
		result.Steps[i] = sr
	}

	rlog := log.WithRunContext(r.logger, result.RunID, name)
	rlog.Debug("starting workflow run",
		"mode", string(r.mode),
		"steps", len(steps),
	)

	var err error
	switch r.mode {
	case ModeDependency:
		err = r.runDependency(ctx, result, steps)
	default:
		err = r.runLinear(ctx, result, steps)
	}

	result.CompletedAt = time.Now()

	rlog.Debug("workflow run finished",
		"failed", result.Failed(),
		"duration", result.CompletedAt.Sub(result.StartedAt),
	)

	return result, err
}

// runLinear executes steps strictly in list order. A failure cascades
// failed status to every subsequent step without invoking its work
// function.
func (r *Runner) runLinear(ctx context.Context, result *Result, steps []Step) error {
	visible := make(map[string]*StepResult, len(steps))
	failedUpstream := ""

	for i := range steps {
		sr := result.Steps[i]

		if ctx.Err() != nil {
			r.failWithoutRun(ctx, result, sr, "run cancelled")
			continue
		}
		if failedUpstream != "" {
			r.failWithoutRun(ctx, result, sr, fmt.Sprintf("not run: step %q failed", failedUpstream))
			continue
		}

		r.executeStep(ctx, result, &steps[i], sr, visible)
		if sr.Status == StatusFailed {
			failedUpstream = sr.Name
		}
		visible[sr.Name] = sr
	}

	return ctx.Err()
}

// runDependency executes steps in dependency-graph order. Steps whose
// prerequisites are all terminal and non-failed run concurrently under the
// concurrency cap; a failed prerequisite poisons its transitive dependents,
// which are marked failed without execution. Skipped prerequisites count as
// satisfied.
func (r *Runner) runDependency(ctx context.Context, result *Result, steps []Step) error {
	byName := make(map[string]*StepResult, len(steps))
	stepByName := make(map[string]*Step, len(steps))
	remaining := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps))
	failedDep := make(map[string]string) // step -> first failed prerequisite

	for i := range steps {
		s := &steps[i]
		byName[s.Name] = result.Steps[i]
		stepByName[s.Name] = s
		remaining[s.Name] = len(s.DependsOn)
		for _, dep := range s.DependsOn {
			dependents[dep] = append(dependents[dep], s.Name)
		}
	}

	readyCh := make(chan string, len(steps))
	doneCh := make(chan string, len(steps))
	sem := make(chan struct{}, r.maxConcurrency)

	for _, s := range steps {
		if remaining[s.Name] == 0 {
			readyCh <- s.Name
		}
	}

	// unblock releases the dependents of a finished step, poisoning them if
	// the step failed.
	unblock := func(name string, failed bool) {
		for _, d := range dependents[name] {
			if failed {
				if _, ok := failedDep[d]; !ok {
					failedDep[d] = name
				}
			}
			remaining[d]--
			if remaining[d] == 0 {
				readyCh <- d
			}
		}
	}

	inFlight := 0
	completed := 0
	total := len(steps)

	for completed < total {
		select {
		case <-ctx.Done():
			// Wait out running steps, then mark whatever never reached a
			// terminal status as failed.
			for inFlight > 0 {
				name := <-doneCh
				inFlight--
				completed++
				unblock(name, byName[name].Status == StatusFailed)
			}
			for _, sr := range result.Steps {
				if !sr.Status.IsTerminal() {
					r.failWithoutRun(ctx, result, sr, "run cancelled")
				}
			}
			return ctx.Err()

		case name := <-readyCh:
			sr := byName[name]
			if upstream, poisoned := failedDep[name]; poisoned {
				r.failWithoutRun(ctx, result, sr, fmt.Sprintf("not run: dependency %q failed", upstream))
				completed++
				unblock(name, true)
				continue
			}

			// Snapshot terminal prerequisite results before handing them to
			// the step goroutine. Each goroutine writes only its own result.
			visible := make(map[string]*StepResult, len(stepByName[name].DependsOn))
			for _, dep := range stepByName[name].DependsOn {
				visible[dep] = byName[dep]
			}

			inFlight++
			go func(step *Step, sr *StepResult) {
				sem <- struct{}{}
				defer func() { <-sem }()
				r.executeStep(ctx, result, step, sr, visible)
				doneCh <- step.Name
			}(stepByName[name], sr)

		case name := <-doneCh:
			inFlight--
			completed++
			unblock(name, byName[name].Status == StatusFailed)
		}
	}

	return nil
}

// executeStep runs one step: condition check, work function invocation with
// panic recovery, tool call collection, and event emission. visible holds
// the terminal results of the steps whose outputs this step may read.
func (r *Runner) executeStep(ctx context.Context, result *Result, step *Step, sr *StepResult, visible map[string]*StepResult) {
	logger := log.WithStepContext(r.logger, result.RunID, step.Name)

	if step.When != "" {
		ok, err := evalCondition(step.When, conditionEnv(result.Inputs, visible))
		if err != nil {
			stepErr := &errors.StepExecutionError{
				Step:  step.Name,
				Cause: fmt.Errorf("condition evaluation failed: %w", err),
			}
			sr.Error = stepErr.Error()
			sr.transition(StatusFailed)
			r.emit(ctx, result, sr, EventStepFailed)
			return
		}
		if !ok {
			logger.Debug("step skipped",
				log.EventKey, string(EventStepSkipped),
				"when", step.When,
			)
			sr.transition(StatusSkipped)
			r.emit(ctx, result, sr, EventStepSkipped)
			return
		}
	}

	outputs := make(map[string]string, len(visible))
	for name, dep := range visible {
		if dep.Status == StatusCompleted {
			outputs[name] = dep.Output
		}
	}
	sc := &StepContext{inputs: result.Inputs, outputs: outputs}

	sr.StartedAt = time.Now()
	sr.transition(StatusRunning)
	r.emit(ctx, result, sr, EventStepStarted)

	output, err := runWork(ctx, step, sc)

	sr.CompletedAt = time.Now()
	sr.Duration = sr.CompletedAt.Sub(sr.StartedAt)
	sr.ToolCalls = sc.toolCalls

	if err != nil {
		stepErr := &errors.StepExecutionError{Step: step.Name, Cause: err}
		sr.Error = stepErr.Error()
		sr.transition(StatusFailed)
		logger.Debug("step failed",
			log.EventKey, string(EventStepFailed),
			"error", err,
			"duration", sr.Duration,
		)
		r.emit(ctx, result, sr, EventStepFailed)
		return
	}

	sr.Output = output
	sr.transition(StatusCompleted)
	logger.Debug("step completed",
		log.EventKey, string(EventStepCompleted),
		"duration", sr.Duration,
		"tool_calls", len(sr.ToolCalls),
	)
	r.emit(ctx, result, sr, EventStepCompleted)
}

// runWork invokes the step's work function, converting panics into errors
// so a misbehaving work function cannot take down sibling goroutines.
func runWork(ctx context.Context, step *Step, sc *StepContext) (output string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("work function panicked: %v", rec)
		}
	}()
	return step.Run(ctx, sc)
}

// failWithoutRun marks a step failed without invoking its work function.
func (r *Runner) failWithoutRun(ctx context.Context, result *Result, sr *StepResult, reason string) {
	sr.Error = reason
	sr.transition(StatusFailed)
	r.emit(ctx, result, sr, EventStepFailed)
}

// emit publishes a step lifecycle event if an emitter is configured.
func (r *Runner) emit(ctx context.Context, result *Result, sr *StepResult, t EventType) {
	if r.emitter == nil {
		return
	}
	r.emitter.Emit(ctx, Event{
		Type:     t,
		RunID:    result.RunID,
		Workflow: result.Workflow,
		Step:     sr.Name,
		Agent:    sr.Agent,
		Status:   sr.Status,
		Error:    sr.Error,
	})
}
