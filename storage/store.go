package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// Bucket names.
const (
	BucketTasks    = "TASKPIPE_TASKS"
	BucketTaskLogs = "TASKPIPE_TASK_LOGS"
)

// TaskStore persists tasks in a NATS KV bucket, one JSON value per task
// keyed by task ID. The store itself is the work queue: eligibility is a
// filtered read, not a separate structure.
type TaskStore struct {
	bucket jetstream.KeyValue
}

// NewTaskStore creates the task store, creating the KV bucket if needed.
func NewTaskStore(ctx context.Context, js jetstream.JetStream) (*TaskStore, error) {
	// CreateOrUpdateKeyValue is idempotent and handles race conditions
	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      BucketTasks,
		Description: "Taskpipe tasks",
		History:     5, // Keep last 5 revisions
	})
	if err != nil {
		return nil, fmt.Errorf("create/update tasks bucket: %w", err)
	}

	return &TaskStore{bucket: bucket}, nil
}

// Create stores a new task with status todo and returns its ID.
func (s *TaskStore) Create(ctx context.Context, t *Task) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("invalid task: %w", err)
	}

	t.ID = uuid.New().String()
	t.Status = StatusTodo
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt

	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("marshal task: %w", err)
	}

	if _, err := s.bucket.Create(ctx, t.ID, data); err != nil {
		return "", fmt.Errorf("store task: %w", err)
	}

	return t.ID, nil
}

// Get retrieves a task by ID.
func (s *TaskStore) Get(ctx context.Context, id string) (*Task, error) {
	entry, err := s.bucket.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	var t Task
	if err := json.Unmarshal(entry.Value(), &t); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}

	return &t, nil
}

// put marshals and writes a task back, bumping UpdatedAt.
func (s *TaskStore) put(ctx context.Context, t *Task) error {
	t.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	if _, err := s.bucket.Put(ctx, t.ID, data); err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	return nil
}

// List returns all tasks, newest first.
func (s *TaskStore) List(ctx context.Context) ([]*Task, error) {
	tasks, err := s.scan(ctx, nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// ListEligible returns all tasks matching the admission predicate
// (in_progress with no output), oldest created_at first. The ascending order
// is a fairness guarantee: earlier-enqueued work is attempted first.
func (s *TaskStore) ListEligible(ctx context.Context) ([]*Task, error) {
	tasks, err := s.scan(ctx, func(t *Task) bool { return t.Eligible() })
	if err != nil {
		return nil, err
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// scan loads every task in the bucket, keeping those that pass the filter.
func (s *TaskStore) scan(ctx context.Context, keep func(*Task) bool) ([]*Task, error) {
	keys, err := s.bucket.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list task keys: %w", err)
	}

	tasks := make([]*Task, 0, len(keys))
	for _, key := range keys {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		entry, err := s.bucket.Get(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		var t Task
		if err := json.Unmarshal(entry.Value(), &t); err != nil {
			continue
		}
		if keep != nil && !keep(&t) {
			continue
		}
		tasks = append(tasks, &t)
	}

	return tasks, nil
}

// MarkInProgress applies the external enqueue transition todo → in_progress.
// The pipeline never calls this; it exists for the submit command and tests
// playing the external actor.
func (s *TaskStore) MarkInProgress(ctx context.Context, id string) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if !t.Status.CanTransitionTo(StatusInProgress) {
		return &TransitionError{From: t.Status, To: StatusInProgress}
	}

	t.Status = StatusInProgress
	return s.put(ctx, t)
}

// SetDetectedWorkflow records the classifier's decision for an auto task.
// Detection is write-once: a second call for the same task fails.
func (s *TaskStore) SetDetectedWorkflow(ctx context.Context, id, workflow string) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if t.DetectedWorkflow != nil {
		return ErrAlreadyDetected
	}

	t.DetectedWorkflow = &workflow
	return s.put(ctx, t)
}

// Complete applies the terminal done transition with the success output.
// CompletedAt is set here and only here; failed tasks carry no terminal
// timestamp.
func (s *TaskStore) Complete(ctx context.Context, id string, out Output) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if !t.Status.CanTransitionTo(StatusDone) {
		return &TransitionError{From: t.Status, To: StatusDone}
	}
	if t.Output != nil {
		return ErrOutputExists
	}

	now := time.Now().UTC()
	t.Status = StatusDone
	t.Output = &out
	t.CompletedAt = &now
	return s.put(ctx, t)
}

// Fail applies the terminal failed transition with an error-only output.
func (s *TaskStore) Fail(ctx context.Context, id, message string) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if !t.Status.CanTransitionTo(StatusFailed) {
		return &TransitionError{From: t.Status, To: StatusFailed}
	}
	if t.Output != nil {
		return ErrOutputExists
	}

	t.Status = StatusFailed
	t.Output = &Output{Error: message}
	return s.put(ctx, t)
}

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "key not found")
}
