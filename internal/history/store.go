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

// Package history persists finished workflow runs in a local SQLite
// database so they can be listed and inspected after the fact.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"troupe/pkg/errors"
	"troupe/pkg/workflow"
)

// Store is a SQLite-backed run store.
type Store struct {
	db *sql.DB
}

// RunSummary is one row of `history list`.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	Workflow    string    `json:"workflow"`
	Mode        string    `json:"mode"`
	Failed      bool      `json:"failed"`
	Steps       int       `json:"steps"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// DefaultPath returns the default history database location,
// ~/.troupe/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory")
	}
	return filepath.Join(home, ".troupe", "history.db"), nil
}

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating history directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening history database")
	}

	// SQLite serializes writes; a single connection avoids lock churn.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connecting to history database")
	}

	s := &Store{db: db}
	if err := s.configurePragmas(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "configuring history database")
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrating history database")
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) configurePragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "executing %s", pragma)
		}
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			workflow TEXT NOT NULL,
			mode TEXT NOT NULL,
			failed INTEGER NOT NULL DEFAULT 0,
			inputs TEXT,
			started_at TEXT NOT NULL,
			completed_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_workflow ON runs(workflow)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		`CREATE TABLE IF NOT EXISTS step_results (
			run_id TEXT NOT NULL,
			step_index INTEGER NOT NULL,
			name TEXT NOT NULL,
			agent TEXT,
			status TEXT NOT NULL,
			output TEXT,
			error TEXT,
			tool_calls TEXT,
			transitions TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			started_at TEXT,
			completed_at TEXT,
			PRIMARY KEY (run_id, step_index),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_step_results_run_id ON step_results(run_id)`,
	}
	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return errors.Wrap(err, "migration failed")
		}
	}
	return nil
}

// SaveRun persists a finished run and its step results.
func (s *Store) SaveRun(ctx context.Context, result *workflow.Result) error {
	inputsJSON, err := json.Marshal(result.Inputs)
	if err != nil {
		return errors.Wrap(err, "marshaling inputs")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, workflow, mode, failed, inputs, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.Workflow, string(result.Mode), boolToInt(result.Failed()),
		string(inputsJSON),
		result.StartedAt.Format(time.RFC3339Nano),
		result.CompletedAt.Format(time.RFC3339Nano),
		time.Now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrap(err, "inserting run")
	}

	for i, sr := range result.Steps {
		toolCallsJSON, err := json.Marshal(sr.ToolCalls)
		if err != nil {
			return errors.Wrap(err, "marshaling tool calls")
		}
		transitionsJSON, err := json.Marshal(sr.Transitions)
		if err != nil {
			return errors.Wrap(err, "marshaling transitions")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO step_results (run_id, step_index, name, agent, status, output, error,
				tool_calls, transitions, duration_ms, started_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.RunID, i, sr.Name, sr.Agent, string(sr.Status), sr.Output, sr.Error,
			string(toolCallsJSON), string(transitionsJSON),
			sr.Duration.Milliseconds(),
			formatTime(sr.StartedAt), formatTime(sr.CompletedAt),
		)
		if err != nil {
			return errors.Wrapf(err, "inserting step result %s", sr.Name)
		}
	}

	return tx.Commit()
}

// GetRun loads a stored run by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*workflow.Result, error) {
	var (
		result     workflow.Result
		mode       string
		inputsJSON sql.NullString
		startedAt  string
		completed  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workflow, mode, inputs, started_at, completed_at
		FROM runs WHERE id = ?`, runID).
		Scan(&result.RunID, &result.Workflow, &mode, &inputsJSON, &startedAt, &completed)
	if err == sql.ErrNoRows {
		return nil, &errors.NotFoundError{Resource: "run", ID: runID}
	}
	if err != nil {
		return nil, errors.Wrap(err, "loading run")
	}

	result.Mode = workflow.Mode(mode)
	if inputsJSON.Valid && inputsJSON.String != "" {
		if err := json.Unmarshal([]byte(inputsJSON.String), &result.Inputs); err != nil {
			return nil, errors.Wrap(err, "unmarshaling inputs")
		}
	}
	if result.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if result.CompletedAt, err = parseTime(completed); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, agent, status, output, error, tool_calls, transitions,
			duration_ms, started_at, completed_at
		FROM step_results WHERE run_id = ? ORDER BY step_index`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "loading step results")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sr            workflow.StepResult
			status        string
			agent         sql.NullString
			output        sql.NullString
			errText       sql.NullString
			toolCalls     sql.NullString
			transitions   sql.NullString
			durationMS    int64
			stepStarted   sql.NullString
			stepCompleted sql.NullString
		)
		if err := rows.Scan(&sr.Name, &agent, &status, &output, &errText,
			&toolCalls, &transitions, &durationMS, &stepStarted, &stepCompleted); err != nil {
			return nil, errors.Wrap(err, "scanning step result")
		}

		sr.Agent = agent.String
		sr.Status = workflow.StepStatus(status)
		sr.Output = output.String
		sr.Error = errText.String
		sr.Duration = time.Duration(durationMS) * time.Millisecond
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &sr.ToolCalls); err != nil {
				return nil, errors.Wrap(err, "unmarshaling tool calls")
			}
		}
		if transitions.Valid && transitions.String != "" {
			if err := json.Unmarshal([]byte(transitions.String), &sr.Transitions); err != nil {
				return nil, errors.Wrap(err, "unmarshaling transitions")
			}
		}
		if stepStarted.Valid && stepStarted.String != "" {
			if sr.StartedAt, err = parseTime(stepStarted.String); err != nil {
				return nil, err
			}
		}
		if stepCompleted.Valid && stepCompleted.String != "" {
			if sr.CompletedAt, err = parseTime(stepCompleted.String); err != nil {
				return nil, err
			}
		}
		result.Steps = append(result.Steps, &sr)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating step results")
	}

	return &result, nil
}

// ListRuns returns the most recent runs, newest first. A limit of 0 uses a
// default of 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.workflow, r.mode, r.failed, r.started_at, r.completed_at,
			(SELECT COUNT(*) FROM step_results sr WHERE sr.run_id = r.id)
		FROM runs r ORDER BY r.created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "listing runs")
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var (
			summary   RunSummary
			failed    int
			startedAt string
			completed string
		)
		if err := rows.Scan(&summary.RunID, &summary.Workflow, &summary.Mode,
			&failed, &startedAt, &completed, &summary.Steps); err != nil {
			return nil, errors.Wrap(err, "scanning run summary")
		}
		summary.Failed = failed != 0
		if summary.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if summary.CompletedAt, err = parseTime(completed); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// DeleteRun removes a run and its step results.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return errors.Wrap(err, "deleting run")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting run")
	}
	if affected == 0 {
		return &errors.NotFoundError{Resource: "run", ID: runID}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing stored timestamp %q", s)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
