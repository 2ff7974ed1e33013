package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"troupe/internal/log"
	troupeerrors "troupe/pkg/errors"
)

// staticStep builds a step whose work function returns fixed output.
func staticStep(name string, deps []string, output string) Step {
	return Step{
		Name:      name,
		DependsOn: deps,
		Run: func(ctx context.Context, sc *StepContext) (string, error) {
			return output, nil
		},
	}
}

// failingStep builds a step whose work function always fails.
func failingStep(name string, deps []string) Step {
	return Step{
		Name:      name,
		DependsOn: deps,
		Run: func(ctx context.Context, sc *StepContext) (string, error) {
			return "", errors.New("boom")
		},
	}
}

func TestRunLinearOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	var steps []Step
	for _, name := range []string{"a", "b", "c"} {
		name := name
		steps = append(steps, Step{
			Name: name,
			Run: func(ctx context.Context, sc *StepContext) (string, error) {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return "out-" + name, nil
			},
		})
	}

	runner := NewRunner(WithMode(ModeLinear))
	result, err := runner.Run(context.Background(), "test", steps, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := strings.Join(order, ","); got != "a,b,c" {
		t.Errorf("execution order = %s, want a,b,c", got)
	}
	for _, sr := range result.Steps {
		if sr.Status != StatusCompleted {
			t.Errorf("step %s status = %s, want completed", sr.Name, sr.Status)
		}
	}
	if result.Failed() {
		t.Error("Failed() = true, want false")
	}
}

func TestRunLinearPriorOutputsVisible(t *testing.T) {
	steps := []Step{
		staticStep("first", nil, "x"),
		{
			Name: "second",
			Run: func(ctx context.Context, sc *StepContext) (string, error) {
				out, ok := sc.Output("first")
				if !ok {
					return "", errors.New("first output not visible")
				}
				return "saw " + out, nil
			},
		},
	}

	result, err := NewRunner().Run(context.Background(), "test", steps, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := result.Step("second").Output; got != "saw x" {
		t.Errorf("second output = %q, want %q", got, "saw x")
	}
}

func TestRunLinearFailureCascades(t *testing.T) {
	var laterInvoked atomic.Bool
	steps := []Step{
		failingStep("a", nil),
		{
			Name: "b",
			Run: func(ctx context.Context, sc *StepContext) (string, error) {
				laterInvoked.Store(true)
				return "never", nil
			},
		},
	}

	result, err := NewRunner(WithMode(ModeLinear)).Run(context.Background(), "test", steps, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if laterInvoked.Load() {
		t.Error("step b work function was invoked after a failed")
	}
	if got := result.Step("a").Status; got != StatusFailed {
		t.Errorf("a status = %s, want failed", got)
	}
	if got := result.Step("b").Status; got != StatusFailed {
		t.Errorf("b status = %s, want failed", got)
	}
	if !result.Failed() {
		t.Error("Failed() = false, want true")
	}
}

func TestRunDependencyDiamond(t *testing.T) {
	// A has no deps; B and C both depend on A and may run concurrently.
	steps := []Step{
		staticStep("a", nil, "x"),
		{
			Name:      "b",
			DependsOn: []string{"a"},
			Run: func(ctx context.Context, sc *StepContext) (string, error) {
				out, _ := sc.Output("a")
				return "b:" + out, nil
			},
		},
		{
			Name:      "c",
			DependsOn: []string{"a"},
			Run: func(ctx context.Context, sc *StepContext) (string, error) {
				out, _ := sc.Output("a")
				return "c:" + out, nil
			},
		},
	}

	result, err := NewRunner(WithMode(ModeDependency)).Run(context.Background(), "test", steps, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for name, want := range map[string]string{"a": "x", "b": "b:x", "c": "c:x"} {
		sr := result.Step(name)
		if sr.Status != StatusCompleted {
			t.Errorf("step %s status = %s, want completed", name, sr.Status)
		}
		if sr.Output != want {
			t.Errorf("step %s output = %q, want %q", name, sr.Output, want)
		}
	}
}

func TestRunDependencyNoStartBeforePrereqs(t *testing.T) {
	// Each step asserts its prerequisites reached terminal completed state
	// before it started.
	var done sync.Map

	mkStep := func(name string, deps ...string) Step {
		return Step{
			Name:      name,
			DependsOn: deps,
			Run: func(ctx context.Context, sc *StepContext) (string, error) {
				for _, dep := range deps {
					if _, ok := done.Load(dep); !ok {
						return "", fmt.Errorf("started before dependency %s completed", dep)
					}
				}
				done.Store(name, true)
				return name, nil
			},
		}
	}

	steps := []Step{
		mkStep("a"),
		mkStep("b", "a"),
		mkStep("c", "a"),
		mkStep("d", "b", "c"),
		mkStep("e"),
	}

	result, err := NewRunner(WithMode(ModeDependency), WithMaxConcurrency(2)).
		Run(context.Background(), "test", steps, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, sr := range result.Steps {
		if sr.Status != StatusCompleted {
			t.Errorf("step %s status = %s (error: %s), want completed", sr.Name, sr.Status, sr.Error)
		}
	}
}

func TestRunDependencyFailureCascade(t *testing.T) {
	var bInvoked atomic.Bool
	steps := []Step{
		failingStep("a", nil),
		{
			Name:      "b",
			DependsOn: []string{"a"},
			Run: func(ctx context.Context, sc *StepContext) (string, error) {
				bInvoked.Store(true)
				return "never", nil
			},
		},
		staticStep("c", nil, "independent"),
	}

	result, err := NewRunner(WithMode(ModeDependency)).Run(context.Background(), "test", steps, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if bInvoked.Load() {
		t.Error("step b work function was invoked despite failed dependency")
	}
	if got := result.Step("b").Status; got != StatusFailed {
		t.Errorf("b status = %s, want failed", got)
	}
	if !strings.Contains(result.Step("b").Error, `dependency "a" failed`) {
		t.Errorf("b error = %q, want mention of failed dependency", result.Step("b").Error)
	}
	// Independent steps still run to completion.
	if got := result.Step("c").Status; got != StatusCompleted {
		t.Errorf("c status = %s, want completed", got)
	}
}

func TestRunDependencyTransitiveCascade(t *testing.T) {
	steps := []Step{
		failingStep("a", nil),
		staticStep("b", []string{"a"}, "never"),
		staticStep("c", []string{"b"}, "never"),
	}

	result, err := NewRunner(WithMode(ModeDependency)).Run(context.Background(), "test", steps, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, name := range []string{"a", "b", "c"} {
		if got := result.Step(name).Status; got != StatusFailed {
			t.Errorf("%s status = %s, want failed", name, got)
		}
	}
}

func TestRunCycleAbortsBeforeExecution(t *testing.T) {
	var invoked atomic.Bool
	run := func(ctx context.Context, sc *StepContext) (string, error) {
		invoked.Store(true)
		return "", nil
	}
	steps := []Step{
		{Name: "a", DependsOn: []string{"b"}, Run: run},
		{Name: "b", DependsOn: []string{"a"}, Run: run},
	}

	result, err := NewRunner(WithMode(ModeDependency)).Run(context.Background(), "test", steps, nil)
	if result != nil {
		t.Error("expected nil result for cyclic graph")
	}

	var cycleErr *troupeerrors.CyclicDependencyError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Run() error = %v, want CyclicDependencyError", err)
	}
	if invoked.Load() {
		t.Error("work function was invoked despite cycle")
	}
}

func TestRunAllStepsReachTerminalStatus(t *testing.T) {
	// Mixed graph with a failure in the middle: every step must still end
	// in a terminal status.
	steps := []Step{
		staticStep("a", nil, "x"),
		failingStep("b", []string{"a"}),
		staticStep("c", []string{"b"}, "never"),
		staticStep("d", []string{"a"}, "fine"),
		staticStep("e", nil, "fine"),
	}

	result, err := NewRunner(WithMode(ModeDependency)).Run(context.Background(), "test", steps, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, sr := range result.Steps {
		if !sr.Status.IsTerminal() {
			t.Errorf("step %s status = %s, want terminal", sr.Name, sr.Status)
		}
	}
}

func TestRunWhenSkips(t *testing.T) {
	steps := []Step{
		staticStep("a", nil, "x"),
		{
			Name:      "b",
			DependsOn: []string{"a"},
			When:      `inputs.verbose == true`,
			Run: func(ctx context.Context, sc *StepContext) (string, error) {
				return "never", nil
			},
		},
		// Skipped prerequisites count as satisfied.
		staticStep("c", []string{"b"}, "after skip"),
	}

	result, err := NewRunner(WithMode(ModeDependency)).
		Run(context.Background(), "test", steps, map[string]any{"verbose": false})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := result.Step("b").Status; got != StatusSkipped {
		t.Errorf("b status = %s, want skipped", got)
	}
	if got := result.Step("c").Status; got != StatusCompleted {
		t.Errorf("c status = %s, want completed", got)
	}
	if result.Failed() {
		t.Error("Failed() = true, want false")
	}
}

func TestRunWhenConditionError(t *testing.T) {
	steps := []Step{
		{
			Name: "a",
			When: `inputs.topic +`,
			Run: func(ctx context.Context, sc *StepContext) (string, error) {
				return "never", nil
			},
		},
	}

	result, err := NewRunner().Run(context.Background(), "test", steps, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	sr := result.Step("a")
	if sr.Status != StatusFailed {
		t.Errorf("status = %s, want failed", sr.Status)
	}
	if !strings.Contains(sr.Error, "condition evaluation failed") {
		t.Errorf("error = %q, want condition evaluation failure", sr.Error)
	}
}

func TestRunPanicRecovered(t *testing.T) {
	steps := []Step{
		{
			Name: "a",
			Run: func(ctx context.Context, sc *StepContext) (string, error) {
				panic("agent misbehaved")
			},
		},
	}

	result, err := NewRunner().Run(context.Background(), "test", steps, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	sr := result.Step("a")
	if sr.Status != StatusFailed {
		t.Errorf("status = %s, want failed", sr.Status)
	}
	if !strings.Contains(sr.Error, "panicked") {
		t.Errorf("error = %q, want panic mention", sr.Error)
	}
}

func TestRunRecordsToolCalls(t *testing.T) {
	steps := []Step{
		{
			Name: "a",
			Run: func(ctx context.Context, sc *StepContext) (string, error) {
				sc.RecordTool("web_search", "query one", "")
				sc.RecordTool("web_search", "query two", "")
				sc.RecordTool("calculator", "", "42")
				return "done", nil
			},
		},
	}

	result, err := NewRunner().Run(context.Background(), "test", steps, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	calls := result.Step("a").ToolCalls
	if len(calls) != 2 {
		t.Fatalf("len(ToolCalls) = %d, want 2", len(calls))
	}
	if calls[0].Name != "web_search" || calls[0].Count != 2 {
		t.Errorf("first tool call = %+v, want web_search x2", calls[0])
	}
	if calls[0].Input != "query two" {
		t.Errorf("first tool input = %q, want latest input retained", calls[0].Input)
	}
	if calls[1].Name != "calculator" || calls[1].Count != 1 {
		t.Errorf("second tool call = %+v, want calculator x1", calls[1])
	}
}

func TestRunTransitionsMonotonic(t *testing.T) {
	steps := []Step{staticStep("a", nil, "x")}

	result, err := NewRunner().Run(context.Background(), "test", steps, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := result.Step("a").Transitions
	want := []StepStatus{StatusPending, StatusRunning, StatusCompleted}
	if len(got) != len(want) {
		t.Fatalf("len(Transitions) = %d, want %d", len(got), len(want))
	}
	for i, tr := range got {
		if tr.To != want[i] {
			t.Errorf("transition %d = %s, want %s", i, tr.To, want[i])
		}
		if i > 0 && tr.At.Before(got[i-1].At) {
			t.Errorf("transition %d timestamp precedes transition %d", i, i-1)
		}
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	steps := []Step{staticStep("a", nil, "x"), staticStep("b", nil, "y")}
	result, err := NewRunner(WithMode(ModeLinear)).Run(ctx, "test", steps, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	for _, sr := range result.Steps {
		if sr.Status != StatusFailed {
			t.Errorf("step %s status = %s, want failed", sr.Name, sr.Status)
		}
	}
}

func TestRunValidationErrors(t *testing.T) {
	runner := NewRunner()
	ctx := context.Background()
	run := func(ctx context.Context, sc *StepContext) (string, error) { return "", nil }

	tests := []struct {
		name  string
		steps []Step
	}{
		{"empty", nil},
		{"duplicate names", []Step{{Name: "a", Run: run}, {Name: "a", Run: run}}},
		{"missing dependency", []Step{{Name: "a", DependsOn: []string{"ghost"}, Run: run}}},
		{"nil work function", []Step{{Name: "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runner.Run(ctx, "test", tt.steps, nil)
			var valErr *troupeerrors.ValidationError
			if !errors.As(err, &valErr) {
				t.Errorf("Run() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestRunLogsCarryContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := NewRunner(WithLogger(logger))

	if _, err := r.Run(context.Background(), "demo", []Step{staticStep("a", nil, "hi")}, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var sawRun, sawStep bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("unmarshaling log line %q: %v", line, err)
		}
		switch entry["msg"] {
		case "starting workflow run":
			sawRun = true
			if entry[log.WorkflowKey] != "demo" {
				t.Errorf("%s = %v, want demo", log.WorkflowKey, entry[log.WorkflowKey])
			}
			if id, _ := entry[log.RunIDKey].(string); id == "" {
				t.Errorf("%s missing from run log", log.RunIDKey)
			}
		case "step completed":
			sawStep = true
			if entry[log.StepKey] != "a" {
				t.Errorf("%s = %v, want a", log.StepKey, entry[log.StepKey])
			}
			if entry[log.EventKey] != string(EventStepCompleted) {
				t.Errorf("%s = %v, want %s", log.EventKey, entry[log.EventKey], EventStepCompleted)
			}
		}
	}
	if !sawRun {
		t.Error("no start-of-run log entry")
	}
	if !sawStep {
		t.Error("no step completion log entry")
	}
}
