package scenarios

import (
	"context"
	"errors"
	"strings"
	"testing"

	troupeerrors "troupe/pkg/errors"
	"troupe/pkg/workflow"
)

func TestNames(t *testing.T) {
	want := []string{"conference", "marketing", "research", "architecture"}
	got := Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestGetUnknown(t *testing.T) {
	_, err := Get("escape-room")
	var notFound *troupeerrors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Get() error = %v, want NotFoundError", err)
	}
	if notFound.Resource != "scenario" {
		t.Errorf("Resource = %q, want scenario", notFound.Resource)
	}
}

func TestEveryScenarioIsValid(t *testing.T) {
	for _, key := range Names() {
		t.Run(key, func(t *testing.T) {
			def, err := Get(key)
			if err != nil {
				t.Fatalf("Get(%s) error = %v", key, err)
			}
			if err := def.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if len(def.Steps) != 4 {
				t.Errorf("len(Steps) = %d, want 4 phases", len(def.Steps))
			}
			for _, sd := range def.Steps {
				if sd.Agent == "" {
					t.Errorf("step %s has no agent label", sd.ID)
				}
			}
		})
	}
}

func TestListMatchesLibrary(t *testing.T) {
	infos := List()
	if len(infos) != len(Names()) {
		t.Fatalf("List() has %d entries, want %d", len(infos), len(Names()))
	}
	for _, info := range infos {
		if info.Title == "" || info.TopicHint == "" {
			t.Errorf("scenario %s missing display fields: %+v", info.Key, info)
		}
		if len(info.Agents) != 4 {
			t.Errorf("scenario %s has %d agents, want 4", info.Key, len(info.Agents))
		}
	}
}

func TestScenarioRunThreadsTopic(t *testing.T) {
	def, err := Get("conference")
	if err != nil {
		t.Fatal(err)
	}
	steps, err := def.Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	inputs := def.ResolveInputs(map[string]any{"topic": "AI & Machine Learning"})
	result, err := workflow.NewRunner(workflow.WithMode(def.Mode)).
		Run(context.Background(), def.Name, steps, inputs)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Failed() {
		for _, sr := range result.Steps {
			t.Logf("step %s: %s %s", sr.Name, sr.Status, sr.Error)
		}
		t.Fatal("scenario run failed")
	}

	// The topic appears in phase one, and each later phase carries the
	// previous phase's output forward.
	first := result.Steps[0]
	if !strings.Contains(first.Output, "AI & Machine Learning") {
		t.Errorf("phase one output missing topic: %q", first.Output)
	}
	for i := 1; i < len(result.Steps); i++ {
		prev := result.Steps[i-1].Output
		if !strings.Contains(result.Steps[i].Output, firstSentence(prev)) {
			t.Errorf("phase %d does not thread phase %d output", i+1, i)
		}
	}

	if calls := result.Steps[0].ToolCalls; len(calls) != 1 || calls[0].Count != 2 {
		t.Errorf("phase one tool calls = %+v, want web_search x2", calls)
	}
}

func TestScenarioMissingTopic(t *testing.T) {
	def, err := Get("marketing")
	if err != nil {
		t.Fatal(err)
	}
	err = def.ValidateInputs(map[string]any{})
	var valErr *troupeerrors.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("ValidateInputs() error = %v, want ValidationError", err)
	}
	if valErr.Field != "topic" {
		t.Errorf("Field = %q, want topic", valErr.Field)
	}
}

// firstSentence trims an output to a short stable prefix for containment
// checks.
func firstSentence(s string) string {
	if i := strings.IndexAny(s, ".:("); i > 0 {
		return s[:i]
	}
	return s
}
