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

// Package scenarioscmd implements the `troupe scenarios` command.
package scenarioscmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"troupe/internal/commands/shared"
	"troupe/internal/scenarios"
)

// NewCommand creates the scenarios command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the built-in scenario library",
		Long: `List the built-in demonstration scenarios that can be run with
'troupe run --scenario <name> --topic <topic>'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, shared.Header.Render("Built-in scenarios"))
			for _, info := range scenarios.List() {
				fmt.Fprintf(out, "\n  %s  %s\n", shared.Bold.Render(info.Key), info.Title)
				fmt.Fprintf(out, "    %s %s\n", shared.RenderLabel("topic:"), info.TopicHint)
				fmt.Fprintf(out, "    %s %s\n", shared.RenderLabel("agents:"), strings.Join(info.Agents, " -> "))
			}
			fmt.Fprintf(out, "\nRun one with: troupe run --scenario <name> --topic \"...\"\n")
			return nil
		},
	}
}
