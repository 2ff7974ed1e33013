package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	troupeerrors "troupe/pkg/errors"
	"troupe/pkg/workflow"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleResult(runID string) *workflow.Result {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &workflow.Result{
		RunID:    runID,
		Workflow: "research-brief",
		Mode:     workflow.ModeDependency,
		Inputs:   map[string]any{"topic": "go"},
		Steps: []*workflow.StepResult{
			{
				Name:   "research",
				Agent:  "Researcher",
				Status: workflow.StatusCompleted,
				Output: "Findings on go.",
				ToolCalls: []workflow.ToolCall{
					{Name: "web_search", Count: 3, Input: "go overview"},
				},
				Transitions: []workflow.Transition{
					{To: workflow.StatusPending, At: t0},
					{To: workflow.StatusRunning, At: t0.Add(time.Second)},
					{To: workflow.StatusCompleted, At: t0.Add(2 * time.Second)},
				},
				StartedAt:   t0.Add(time.Second),
				CompletedAt: t0.Add(2 * time.Second),
				Duration:    time.Second,
			},
			{
				Name:   "outline",
				Agent:  "Planner",
				Status: workflow.StatusFailed,
				Error:  `step "outline" failed: boom`,
			},
		},
		StartedAt:   t0,
		CompletedAt: t0.Add(3 * time.Second),
	}
}

func TestSaveAndGetRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	saved := sampleResult("run-1")
	require.NoError(t, store.SaveRun(ctx, saved))

	loaded, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, saved.RunID, loaded.RunID)
	assert.Equal(t, saved.Workflow, loaded.Workflow)
	assert.Equal(t, saved.Mode, loaded.Mode)
	assert.Equal(t, "go", loaded.Inputs["topic"])
	assert.True(t, loaded.Failed())

	require.Len(t, loaded.Steps, 2)
	research := loaded.Step("research")
	require.NotNil(t, research)
	assert.Equal(t, workflow.StatusCompleted, research.Status)
	assert.Equal(t, "Findings on go.", research.Output)
	assert.Equal(t, time.Second, research.Duration)
	require.Len(t, research.ToolCalls, 1)
	assert.Equal(t, 3, research.ToolCalls[0].Count)
	assert.Len(t, research.Transitions, 3)

	outline := loaded.Step("outline")
	require.NotNil(t, outline)
	assert.Equal(t, workflow.StatusFailed, outline.Status)
	assert.Contains(t, outline.Error, "boom")
}

func TestGetRunNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetRun(context.Background(), "nope")
	var notFound *troupeerrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "run", notFound.Resource)
}

func TestListRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, store.SaveRun(ctx, sampleResult(id)))
	}

	summaries, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "research-brief", summaries[0].Workflow)
	assert.Equal(t, 2, summaries[0].Steps)
	assert.True(t, summaries[0].Failed)
}

func TestDeleteRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, sampleResult("run-1")))
	require.NoError(t, store.DeleteRun(ctx, "run-1"))

	_, err := store.GetRun(ctx, "run-1")
	assert.Error(t, err)

	var notFound *troupeerrors.NotFoundError
	assert.True(t, errors.As(store.DeleteRun(ctx, "run-1"), &notFound))
}
