package workflow

import (
	"context"
	"sync"
	"testing"
)

func TestEmitterOn(t *testing.T) {
	emitter := NewEmitter()

	var got []Event
	emitter.On(EventStepCompleted, func(ctx context.Context, e Event) {
		got = append(got, e)
	})

	emitter.Emit(context.Background(), Event{Type: EventStepStarted, Step: "a"})
	emitter.Emit(context.Background(), Event{Type: EventStepCompleted, Step: "a"})

	if len(got) != 1 {
		t.Fatalf("listener received %d events, want 1", len(got))
	}
	if got[0].Step != "a" || got[0].Type != EventStepCompleted {
		t.Errorf("event = %+v", got[0])
	}
	if got[0].Timestamp.IsZero() {
		t.Error("Emit did not stamp the event timestamp")
	}
}

func TestEmitterOnAll(t *testing.T) {
	emitter := NewEmitter()

	var count int
	emitter.OnAll(func(ctx context.Context, e Event) { count++ })

	for _, et := range []EventType{EventStepStarted, EventStepCompleted, EventStepFailed, EventStepSkipped} {
		emitter.Emit(context.Background(), Event{Type: et})
	}
	if count != 4 {
		t.Errorf("OnAll listener received %d events, want 4", count)
	}
}

func TestRunnerEmitsLifecycleEvents(t *testing.T) {
	emitter := NewEmitter()

	var mu sync.Mutex
	byStep := make(map[string][]EventType)
	emitter.OnAll(func(ctx context.Context, e Event) {
		mu.Lock()
		byStep[e.Step] = append(byStep[e.Step], e.Type)
		mu.Unlock()
	})

	steps := []Step{
		staticStep("ok", nil, "x"),
		failingStep("bad", []string{"ok"}),
		staticStep("never", []string{"bad"}, "y"),
	}

	runner := NewRunner(WithMode(ModeDependency), WithEmitter(emitter))
	if _, err := runner.Run(context.Background(), "test", steps, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := map[string][]EventType{
		"ok":    {EventStepStarted, EventStepCompleted},
		"bad":   {EventStepStarted, EventStepFailed},
		"never": {EventStepFailed},
	}
	for step, wantTypes := range want {
		got := byStep[step]
		if len(got) != len(wantTypes) {
			t.Errorf("step %s events = %v, want %v", step, got, wantTypes)
			continue
		}
		for i := range wantTypes {
			if got[i] != wantTypes[i] {
				t.Errorf("step %s event %d = %s, want %s", step, i, got[i], wantTypes[i])
			}
		}
	}
}
