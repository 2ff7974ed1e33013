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

// Package validate implements the `troupe validate` command.
package validate

import (
	"fmt"

	"github.com/spf13/cobra"

	"troupe/internal/commands/shared"
	"troupe/pkg/workflow"
)

// NewCommand creates the validate command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workflow.yaml>",
		Short: "Check a workflow file without running it",
		Long: `Parse a workflow file and validate its structure: step IDs, dependency
references, dependency cycles, and output templates.

Exits 0 if the workflow is valid, 2 if not.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := workflow.LoadDefinition(args[0])
			if err != nil {
				return shared.NewInvalidWorkflowError("invalid workflow", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(
				fmt.Sprintf("%s is valid (%d steps, %s mode)", def.Name, len(def.Steps), def.Mode)))
			return nil
		},
	}
}
