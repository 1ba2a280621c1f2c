//go:build integration

package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestJetStream starts an embedded NATS server with JetStream for the
// duration of the test.
func newTestJetStream(t *testing.T) jetstream.JetStream {
	t.Helper()

	opts := &server.Options{
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	}

	ns, err := server.NewServer(opts)
	require.NoError(t, err)

	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second), "embedded NATS server failed to start")

	conn, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	js, err := jetstream.New(conn)
	require.NoError(t, err)
	return js
}

func newTestTask() *Task {
	return &Task{
		Title:             "Summarize report",
		Description:       "Quarterly earnings",
		RequestedWorkflow: "auto",
		InputText:         "Revenue was up 20% year over year.",
	}
}

func TestTaskStore_CreateAndGet(t *testing.T) {
	js := newTestJetStream(t)
	ctx := context.Background()

	store, err := NewTaskStore(ctx, js)
	require.NoError(t, err)

	id, err := store.Create(ctx, newTestTask())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, StatusTodo, got.Status)
	assert.Equal(t, "Summarize report", got.Title)
	assert.Nil(t, got.Output)
	assert.Nil(t, got.DetectedWorkflow)
	assert.Nil(t, got.CompletedAt)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestTaskStore_GetNotFound(t *testing.T) {
	js := newTestJetStream(t)
	ctx := context.Background()

	store, err := NewTaskStore(ctx, js)
	require.NoError(t, err)

	_, err = store.Get(ctx, "missing-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskStore_CreateRejectsInvalid(t *testing.T) {
	js := newTestJetStream(t)
	ctx := context.Background()

	store, err := NewTaskStore(ctx, js)
	require.NoError(t, err)

	_, err = store.Create(ctx, &Task{Title: "no input"})
	assert.Error(t, err)
}

func TestTaskStore_EligibilityLifecycle(t *testing.T) {
	js := newTestJetStream(t)
	ctx := context.Background()

	store, err := NewTaskStore(ctx, js)
	require.NoError(t, err)

	id, err := store.Create(ctx, newTestTask())
	require.NoError(t, err)

	// A todo task is not eligible
	eligible, err := store.ListEligible(ctx)
	require.NoError(t, err)
	assert.Empty(t, eligible)

	require.NoError(t, store.MarkInProgress(ctx, id))

	eligible, err = store.ListEligible(ctx)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, id, eligible[0].ID)

	// Completing removes it from the eligible set
	require.NoError(t, store.Complete(ctx, id, Output{
		Result:           "Summary text",
		Model:            "test-model",
		ProcessingTimeMs: 42,
		WorkflowUsed:     "summarization",
	}))

	eligible, err = store.ListEligible(ctx)
	require.NoError(t, err)
	assert.Empty(t, eligible)
}

func TestTaskStore_ListEligible_OldestFirst(t *testing.T) {
	js := newTestJetStream(t)
	ctx := context.Background()

	store, err := NewTaskStore(ctx, js)
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := store.Create(ctx, newTestTask())
		require.NoError(t, err)
		require.NoError(t, store.MarkInProgress(ctx, id))
		ids = append(ids, id)
		time.Sleep(5 * time.Millisecond) // distinct created_at
	}

	eligible, err := store.ListEligible(ctx)
	require.NoError(t, err)
	require.Len(t, eligible, 3)
	for i, task := range eligible {
		assert.Equal(t, ids[i], task.ID, "position %d", i)
	}
}

func TestTaskStore_Complete_SetsTerminalFields(t *testing.T) {
	js := newTestJetStream(t)
	ctx := context.Background()

	store, err := NewTaskStore(ctx, js)
	require.NoError(t, err)

	id, err := store.Create(ctx, newTestTask())
	require.NoError(t, err)
	require.NoError(t, store.MarkInProgress(ctx, id))

	out := Output{Result: "done", Model: "m", ProcessingTimeMs: 10, WorkflowUsed: "summarization"}
	require.NoError(t, store.Complete(ctx, id, out))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, got.Status)
	require.NotNil(t, got.Output)
	assert.Equal(t, out, *got.Output)
	assert.NotNil(t, got.CompletedAt)
}

func TestTaskStore_Fail_NoCompletedAt(t *testing.T) {
	js := newTestJetStream(t)
	ctx := context.Background()

	store, err := NewTaskStore(ctx, js)
	require.NoError(t, err)

	id, err := store.Create(ctx, newTestTask())
	require.NoError(t, err)
	require.NoError(t, store.MarkInProgress(ctx, id))

	require.NoError(t, store.Fail(ctx, id, "quota exceeded"))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.Output)
	assert.Equal(t, "quota exceeded", got.Output.Error)
	assert.Empty(t, got.Output.Result)
	assert.Nil(t, got.CompletedAt, "failed tasks carry no completion timestamp")
}

func TestTaskStore_IllegalTransitions(t *testing.T) {
	js := newTestJetStream(t)
	ctx := context.Background()

	store, err := NewTaskStore(ctx, js)
	require.NoError(t, err)

	id, err := store.Create(ctx, newTestTask())
	require.NoError(t, err)

	// todo cannot go terminal directly
	var transErr *TransitionError
	err = store.Complete(ctx, id, Output{Result: "x"})
	require.Error(t, err)
	assert.True(t, errors.As(err, &transErr))

	err = store.Fail(ctx, id, "boom")
	require.Error(t, err)
	assert.True(t, errors.As(err, &transErr))

	// terminal states accept nothing
	require.NoError(t, store.MarkInProgress(ctx, id))
	require.NoError(t, store.Complete(ctx, id, Output{Result: "x"}))

	err = store.MarkInProgress(ctx, id)
	require.Error(t, err)
	assert.True(t, errors.As(err, &transErr))

	err = store.Fail(ctx, id, "boom")
	require.Error(t, err)
	assert.True(t, errors.As(err, &transErr))
}

func TestTaskStore_SetDetectedWorkflow_WriteOnce(t *testing.T) {
	js := newTestJetStream(t)
	ctx := context.Background()

	store, err := NewTaskStore(ctx, js)
	require.NoError(t, err)

	id, err := store.Create(ctx, newTestTask())
	require.NoError(t, err)

	require.NoError(t, store.SetDetectedWorkflow(ctx, id, "translation"))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.DetectedWorkflow)
	assert.Equal(t, "translation", *got.DetectedWorkflow)

	err = store.SetDetectedWorkflow(ctx, id, "research")
	assert.ErrorIs(t, err, ErrAlreadyDetected)

	// First value survives
	got, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "translation", *got.DetectedWorkflow)
}

func TestAuditLog_AppendAndList(t *testing.T) {
	js := newTestJetStream(t)
	ctx := context.Background()

	log, err := NewAuditLog(ctx, js)
	require.NoError(t, err)

	taskID := "task-123"
	require.NoError(t, log.Append(ctx, taskID, EventWorkflowDetected, "AI detected workflow: translation", nil))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, log.Append(ctx, taskID, EventStarted, "Started processing with workflow: translation", nil))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, log.Append(ctx, taskID, EventCompleted, "Completed in 42ms using translation", map[string]any{
		"processing_time_ms": 42,
		"workflow":           "translation",
	}))

	// Entries for another task must not leak in
	require.NoError(t, log.Append(ctx, "other-task", EventFailed, "Failed: boom", nil))

	entries, err := log.ListByTask(ctx, taskID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Newest first
	assert.Equal(t, EventCompleted, entries[0].Event)
	assert.Equal(t, EventStarted, entries[1].Event)
	assert.Equal(t, EventWorkflowDetected, entries[2].Event)

	assert.Equal(t, "Completed in 42ms using translation", entries[0].Message)
	assert.Equal(t, "translation", entries[0].Metadata["workflow"])

	for _, e := range entries {
		assert.Equal(t, taskID, e.TaskID)
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.CreatedAt.IsZero())
	}
}

func TestAuditLog_ListByTask_Empty(t *testing.T) {
	js := newTestJetStream(t)
	ctx := context.Background()

	log, err := NewAuditLog(ctx, js)
	require.NoError(t, err)

	entries, err := log.ListByTask(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
