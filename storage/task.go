// Package storage provides task and audit log persistence backed by NATS
// JetStream KV, and the task status state machine the pipeline enforces.
package storage

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

// Task statuses. StatusDone and StatusFailed are terminal: the pipeline
// defines no re-queue path out of them.
const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// CanTransitionTo reports whether the transition s → to is legal.
// The only legal edges are todo → in_progress (applied by an external actor
// to enqueue work) and in_progress → done|failed (applied by the pipeline).
func (s Status) CanTransitionTo(to Status) bool {
	switch s {
	case StatusTodo:
		return to == StatusInProgress
	case StatusInProgress:
		return to == StatusDone || to == StatusFailed
	default:
		return false
	}
}

// TransitionError reports an illegal status transition.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition: %s -> %s", e.From, e.To)
}

// Output is a task's terminal result. Exactly one shape is ever written:
// the success fields together, or Error alone.
type Output struct {
	Result           string `json:"result,omitempty"`
	Model            string `json:"model,omitempty"`
	ProcessingTimeMs int64  `json:"processing_time_ms,omitempty"`
	WorkflowUsed     string `json:"workflow_used,omitempty"`
	Error            string `json:"error,omitempty"`
}

// Task is the unit of work. Tasks are created externally with status todo,
// externally moved to in_progress to request processing, and from then on
// the pipeline is the exclusive writer of DetectedWorkflow, Output,
// CompletedAt, and the terminal status.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// RequestedWorkflow is a catalog identifier, a legacy request alias,
	// or the auto-detect sentinel.
	RequestedWorkflow string `json:"requested_workflow"`

	// DetectedWorkflow is set once by the classifier for auto tasks and
	// never overwritten.
	DetectedWorkflow *string `json:"detected_workflow,omitempty"`

	Status    Status  `json:"status"`
	InputText string  `json:"input_text"`
	Output    *Output `json:"output,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Eligible reports whether the pipeline may pick this task up. This is the
// sole admission predicate: in_progress with no output yet.
func (t *Task) Eligible() bool {
	return t.Status == StatusInProgress && t.Output == nil
}

// Validate checks the fields required at creation time.
func (t *Task) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if t.InputText == "" {
		return fmt.Errorf("input_text is required")
	}
	if t.RequestedWorkflow == "" {
		return fmt.Errorf("requested_workflow is required")
	}
	return nil
}

// ClassificationText assembles the free text the classifier sees for this
// task: title, description, and input payload joined the way submitters
// naturally phrase a request.
func (t *Task) ClassificationText() string {
	text := t.Title
	if t.Description != "" {
		text += " - " + t.Description
	}
	if t.InputText != "" {
		text += ": " + t.InputText
	}
	return text
}
