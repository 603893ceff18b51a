package model

import (
	"errors"
	"testing"
)

// TestCrawlTaskTransition tests the task lifecycle edges.
func TestCrawlTaskTransition(t *testing.T) {
	t.Parallel()

	t.Run("new task is pending at attempt zero", func(t *testing.T) {
		t.Parallel()

		task := NewCrawlTask("https://example.com/")
		if task.State != TaskPending {
			t.Errorf("expected pending, got %s", task.State)
		}
		if task.Attempt != 0 {
			t.Errorf("expected attempt 0, got %d", task.Attempt)
		}
	})

	t.Run("retry loop increments attempt only after backoff", func(t *testing.T) {
		t.Parallel()

		task := NewCrawlTask("https://example.com/")
		steps := []TaskState{TaskFetching, TaskBackoff, TaskFetching, TaskBackoff, TaskFetching, TaskSucceeded}
		for _, next := range steps {
			if err := task.Transition(next); err != nil {
				t.Fatalf("transition to %s: %v", next, err)
			}
		}
		if task.Attempt != 2 {
			t.Errorf("expected attempt 2, got %d", task.Attempt)
		}
		if !task.State.Terminal() {
			t.Errorf("expected terminal state, got %s", task.State)
		}
	})

	t.Run("rejects illegal edges", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			from TaskState
			to   TaskState
		}{
			{"pending to succeeded", TaskPending, TaskSucceeded},
			{"succeeded to fetching", TaskSucceeded, TaskFetching},
			{"disallowed to fetching", TaskDisallowed, TaskFetching},
			{"backoff to succeeded", TaskBackoff, TaskSucceeded},
			{"exhausted to backoff", TaskExhausted, TaskBackoff},
		}

		for _, tt := range tests {
			task := &CrawlTask{URL: "https://example.com/", State: tt.from}
			err := task.Transition(tt.to)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s: expected ErrInvalidTransition, got %v", tt.name, err)
			}
			if task.State != tt.from {
				t.Errorf("%s: state changed to %s", tt.name, task.State)
			}
		}
	})
}

// TestTaskStateString tests state names.
func TestTaskStateString(t *testing.T) {
	t.Parallel()

	tests := map[TaskState]string{
		TaskPending:    "pending",
		TaskFetching:   "fetching",
		TaskBackoff:    "backoff",
		TaskSucceeded:  "succeeded",
		TaskExhausted:  "exhausted",
		TaskFailed:     "failed",
		TaskDisallowed: "disallowed",
		TaskState(42):  "state(42)",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("got %q, expected %q", got, want)
		}
	}
}
