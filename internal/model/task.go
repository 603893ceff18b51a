package model

import (
	"errors"
	"fmt"
)

// TaskState is a step of a crawl task's lifecycle.
//
//	Pending -> Fetching -> Succeeded
//	                    -> Backoff -> Fetching
//	                    -> Exhausted | Failed
//	Pending -> Disallowed
type TaskState int

const (
	// TaskPending is the state of a task that has not been started yet.
	TaskPending TaskState = iota
	// TaskFetching means an attempt is in flight.
	TaskFetching
	// TaskBackoff means the task is suspended before its next attempt.
	TaskBackoff
	// TaskSucceeded is terminal: the page was fetched and extracted.
	TaskSucceeded
	// TaskExhausted is terminal: every allowed attempt was retryable and failed.
	TaskExhausted
	// TaskFailed is terminal: the fetch hit a fatal outcome.
	TaskFailed
	// TaskDisallowed is terminal: robots.txt denied the URL.
	TaskDisallowed
)

// String returns the lowercase state name used in log output.
func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskFetching:
		return "fetching"
	case TaskBackoff:
		return "backoff"
	case TaskSucceeded:
		return "succeeded"
	case TaskExhausted:
		return "exhausted"
	case TaskFailed:
		return "failed"
	case TaskDisallowed:
		return "disallowed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskSucceeded, TaskExhausted, TaskFailed, TaskDisallowed:
		return true
	default:
		return false
	}
}

// ErrInvalidTransition is returned when a task is moved along an edge
// that the lifecycle does not have.
var ErrInvalidTransition = errors.New("invalid task state transition")

// transitions lists the legal edges of the task lifecycle.
var transitions = map[TaskState][]TaskState{
	TaskPending:  {TaskFetching, TaskDisallowed},
	TaskFetching: {TaskSucceeded, TaskBackoff, TaskExhausted, TaskFailed},
	TaskBackoff:  {TaskFetching, TaskFailed},
}

// CrawlTask is the unit of work for a single input URL.
// It is owned by exactly one scheduler goroutine and never shared.
type CrawlTask struct {
	// URL is the absolute URL to fetch.
	URL string

	// Attempt is the zero-based index of the current attempt.
	// It only grows, and only when the task leaves Backoff.
	Attempt int

	// State is the current lifecycle state.
	State TaskState
}

// NewCrawlTask creates a pending task for the given URL.
func NewCrawlTask(url string) *CrawlTask {
	return &CrawlTask{URL: url, State: TaskPending}
}

// Transition moves the task to next, incrementing Attempt when a
// backoff ends. It returns ErrInvalidTransition for illegal edges.
func (t *CrawlTask) Transition(next TaskState) error {
	for _, allowed := range transitions[t.State] {
		if allowed != next {
			continue
		}
		if t.State == TaskBackoff && next == TaskFetching {
			t.Attempt++
		}
		t.State = next
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.State, next)
}
