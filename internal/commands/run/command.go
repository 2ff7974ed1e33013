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

// Package run implements the `troupe run` command.
package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"troupe/internal/commands/shared"
	"troupe/internal/history"
	"troupe/internal/log"
	"troupe/internal/scenarios"
	"troupe/pkg/render"
	"troupe/pkg/workflow"
)

// options holds the run command's flag values.
type options struct {
	scenario       string
	topic          string
	inputs         []string
	mode           string
	style          string
	maxConcurrency int
	save           bool
	noHistory      bool
}

// NewCommand creates the run command.
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "run [workflow.yaml]",
		Short: "Execute a workflow and print its transcript",
		Long: `Execute a workflow from a YAML file or the built-in scenario library and
print the collected results in the selected style.

Exit codes: 0 if every step completed, 1 if any step failed, 2 if the
workflow or invocation was invalid.`,
		Example: `  troupe run workflow.yaml --input topic=Go
  troupe run --scenario conference --topic "AI & Machine Learning"
  troupe run workflow.yaml --mode dependency --style decorated --save`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.scenario, "scenario", "", "Run a built-in scenario instead of a file (see 'troupe scenarios')")
	cmd.Flags().StringVar(&opts.topic, "topic", "", "Topic input for the workflow (shorthand for --input topic=...)")
	cmd.Flags().StringSliceVarP(&opts.inputs, "input", "i", nil, "Workflow input in key=value format")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Execution mode: linear or dependency (default: from the workflow)")
	cmd.Flags().StringVar(&opts.style, "style", string(render.StyleMinimal), "Render style: minimal or decorated")
	cmd.Flags().IntVar(&opts.maxConcurrency, "max-concurrency", workflow.DefaultMaxConcurrency, "Concurrent step cap in dependency mode")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Write the transcript to a timestamped file")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Skip recording the run in history")

	return cmd
}

func runWorkflow(cmd *cobra.Command, args []string, opts options) error {
	def, err := loadWorkflow(args, opts.scenario)
	if err != nil {
		return shared.ClassifyError(err)
	}

	inputs, err := parseInputs(opts.inputs)
	if err != nil {
		return shared.NewInvalidWorkflowError("invalid input", err)
	}
	if opts.topic != "" {
		inputs["topic"] = opts.topic
	}
	resolved := def.ResolveInputs(inputs)
	if err := def.ValidateInputs(resolved); err != nil {
		return shared.NewInvalidWorkflowError("missing workflow input", err)
	}

	mode := def.Mode
	if opts.mode != "" {
		mode = workflow.Mode(opts.mode)
		if !mode.IsValid() {
			return shared.NewInvalidWorkflowError(
				fmt.Sprintf("unknown mode %q (use linear or dependency)", opts.mode), nil)
		}
	}

	style, err := render.ParseStyle(opts.style)
	if err != nil {
		return shared.NewInvalidWorkflowError("invalid render style", err)
	}
	renderer, err := render.New(style)
	if err != nil {
		return shared.ClassifyError(err)
	}

	steps, err := def.Compile()
	if err != nil {
		return shared.NewInvalidWorkflowError("invalid workflow", err)
	}

	logCfg := log.FromEnv()
	if shared.GetVerbose() {
		logCfg.Level = "debug"
	}
	logger := log.New(logCfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := workflow.NewRunner(
		workflow.WithMode(mode),
		workflow.WithMaxConcurrency(opts.maxConcurrency),
		workflow.WithLogger(logger),
	)
	result, err := runner.Run(ctx, def.Name, steps, resolved)
	if err != nil {
		return shared.ClassifyError(err)
	}

	transcript, err := renderer.Render(result)
	if err != nil {
		return shared.NewExecutionError("rendering failed", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), transcript)

	if !opts.noHistory {
		if err := recordHistory(ctx, result); err != nil {
			logger.Warn("could not record run history", "error", err)
		}
	}

	if opts.save {
		path, err := writeTranscript(def.Name, result, transcript)
		if err != nil {
			return shared.NewExecutionError("saving transcript failed", err)
		}
		if !shared.GetQuiet() {
			fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK("Transcript saved to "+path))
		}
	}

	if result.Failed() {
		failed := 0
		for _, sr := range result.Steps {
			if sr.Status == workflow.StatusFailed {
				failed++
			}
		}
		return shared.NewExecutionError(fmt.Sprintf("%d of %d steps failed", failed, len(result.Steps)), nil)
	}
	return nil
}

// loadWorkflow resolves the workflow definition from a file argument or the
// built-in scenario library. Exactly one source must be given.
func loadWorkflow(args []string, scenario string) (*workflow.Definition, error) {
	switch {
	case scenario != "" && len(args) > 0:
		return nil, shared.NewInvalidWorkflowError("pass either a workflow file or --scenario, not both", nil)
	case scenario != "":
		return scenarios.Get(scenario)
	case len(args) > 0:
		return workflow.LoadDefinition(args[0])
	default:
		return nil, shared.NewInvalidWorkflowError("no workflow given (pass a file or --scenario)", nil)
	}
}

// recordHistory persists the finished run in the history store.
func recordHistory(ctx context.Context, result *workflow.Result) error {
	path := shared.GetHistoryPath()
	if path == "" {
		var err error
		if path, err = history.DefaultPath(); err != nil {
			return err
		}
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveRun(ctx, result)
}
