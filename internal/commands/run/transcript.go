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

package run

import (
	"fmt"
	"os"
	"strings"
	"time"

	"troupe/pkg/errors"
	"troupe/pkg/workflow"
)

// writeTranscript saves the rendered transcript plus a full results section
// to troupe_<workflow>_<timestamp>.txt in the working directory and returns
// the file path.
func writeTranscript(name string, result *workflow.Result, transcript string) (string, error) {
	path := fmt.Sprintf("troupe_%s_%s.txt", sanitizeName(name), time.Now().Format("20060102_150405"))

	var sb strings.Builder
	rule := strings.Repeat("=", 80)

	sb.WriteString(rule + "\n")
	sb.WriteString("TROUPE WORKFLOW TRANSCRIPT\n")
	sb.WriteString(rule + "\n")
	sb.WriteString("Workflow: " + result.Workflow + "\n")
	if topic, ok := result.Inputs["topic"].(string); ok && topic != "" {
		sb.WriteString("Topic: " + topic + "\n")
	}
	sb.WriteString("Run ID: " + result.RunID + "\n")
	sb.WriteString("Date: " + result.StartedAt.Format("2006-01-02 15:04:05") + "\n\n")

	sb.WriteString(transcript)
	if !strings.HasSuffix(transcript, "\n") {
		sb.WriteString("\n")
	}

	sb.WriteString("\n" + rule + "\n")
	sb.WriteString("FULL RESULTS\n")
	sb.WriteString(rule + "\n")
	for i, sr := range result.Steps {
		label := sr.Name
		if sr.Agent != "" {
			label += " (" + sr.Agent + ")"
		}
		sb.WriteString(fmt.Sprintf("\n--- Phase %d: %s [%s] ---\n", i+1, label, sr.Status))
		switch {
		case sr.Error != "":
			sb.WriteString(sr.Error + "\n")
		case sr.Output != "":
			sb.WriteString(sr.Output + "\n")
		}
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", errors.Wrap(err, "writing transcript")
	}
	return path, nil
}

// sanitizeName makes a workflow name safe for a filename.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
