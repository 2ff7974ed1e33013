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

// Package historycmd implements the `troupe history` command group.
package historycmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"troupe/internal/commands/shared"
	"troupe/internal/history"
	"troupe/internal/jq"
	"troupe/pkg/render"
)

// NewCommand creates the history command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded workflow runs",
	}
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newDeleteCommand())
	return cmd
}

func newListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			summaries, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tWORKFLOW\tMODE\tSTEPS\tRESULT\tSTARTED")
			for _, s := range summaries {
				result := "ok"
				if s.Failed {
					result = "failed"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					s.RunID, s.Workflow, s.Mode, s.Steps, result,
					s.StartedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}

func newShowCommand() *cobra.Command {
	var (
		styleFlag string
		jqExpr    string
	)

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one recorded run",
		Long: `Show a recorded run, either rendered as a transcript or filtered with a
jq expression against the stored JSON record.`,
		Example: `  troupe history show 1b4e28ba-2fa1-11d2-883f-0016d3cca427
  troupe history show <run-id> --style decorated
  troupe history show <run-id> --jq '.steps[] | select(.status == "failed")'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return shared.ClassifyError(err)
			}

			if jqExpr != "" {
				filter, err := jq.Compile(jqExpr)
				if err != nil {
					return shared.NewInvalidWorkflowError("invalid jq expression", err)
				}
				filtered, err := filter.Apply(cmd.Context(), result)
				if err != nil {
					return err
				}
				encoded, err := json.MarshalIndent(filtered, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
				return nil
			}

			style, err := render.ParseStyle(styleFlag)
			if err != nil {
				return shared.NewInvalidWorkflowError("invalid render style", err)
			}
			renderer, err := render.New(style)
			if err != nil {
				return err
			}
			transcript, err := renderer.Render(result)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), transcript)
			return nil
		},
	}

	cmd.Flags().StringVar(&styleFlag, "style", string(render.StyleMinimal), "Render style: minimal or decorated")
	cmd.Flags().StringVar(&jqExpr, "jq", "", "Filter the stored record with a jq expression")
	return cmd
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteRun(cmd.Context(), args[0]); err != nil {
				return shared.ClassifyError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK("Deleted run "+args[0]))
			return nil
		},
	}
}

// openStore opens the history database at the configured path.
func openStore() (*history.Store, error) {
	path := shared.GetHistoryPath()
	if path == "" {
		var err error
		if path, err = history.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return history.Open(path)
}
