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

// Package cli builds the root command for the troupe CLI.
package cli

import (
	"github.com/spf13/cobra"

	"troupe/internal/commands/shared"
)

// SetVersion sets the version information (called from main).
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for troupe.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "troupe",
		Short: "Troupe - multi-agent workflow runner",
		Long: `Troupe runs multi-agent workflows: ordered or dependency-graph-ordered
sets of steps whose outputs feed each other, rendered as a minimal or
decorated transcript.

Run 'troupe scenarios' to see the built-in scenario library.
Run 'troupe run --scenario conference --topic "AI"' to try one.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	verbose, quiet, historyPath := shared.RegisterFlagPointers()

	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(quiet, "quiet", "q", false, "Suppress non-error output")
	cmd.PersistentFlags().StringVar(historyPath, "history-path", "", "Path to the history database (default: ~/.troupe/history.db)")

	return cmd
}

// HandleExitError handles exit errors with proper exit codes.
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
