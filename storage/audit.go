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

// Event identifies a significant pipeline event recorded in the audit log.
type Event string

// Audit events, in the order they can occur for a single task.
const (
	EventWorkflowDetected Event = "workflow_detected"
	EventStarted          Event = "started"
	EventCompleted        Event = "completed"
	EventFailed           Event = "failed"
)

// AuditEntry is one immutable audit log record. Entries accumulate
// indefinitely; the pipeline never mutates or deletes them.
type AuditEntry struct {
	ID        string         `json:"id"`
	TaskID    string         `json:"task_id"`
	Event     Event          `json:"event"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditLog is an append-only log of pipeline events in a NATS KV bucket.
// Each entry gets its own key "<task_id>.<entry_id>" so appends for the same
// task never contend.
type AuditLog struct {
	bucket jetstream.KeyValue
}

// NewAuditLog creates the audit log, creating the KV bucket if needed.
func NewAuditLog(ctx context.Context, js jetstream.JetStream) (*AuditLog, error) {
	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      BucketTaskLogs,
		Description: "Taskpipe task audit log",
	})
	if err != nil {
		return nil, fmt.Errorf("create/update task logs bucket: %w", err)
	}

	return &AuditLog{bucket: bucket}, nil
}

// Append writes one audit entry. The entry's ID and CreatedAt are assigned
// here; existing entries are never touched.
func (l *AuditLog) Append(ctx context.Context, taskID string, event Event, message string, metadata map[string]any) error {
	entry := AuditEntry{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		Event:     event,
		Message:   message,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	key := entry.TaskID + "." + entry.ID
	if _, err := l.bucket.Create(ctx, key, data); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}

	return nil
}

// ListByTask returns all entries for a task, newest first.
func (l *AuditLog) ListByTask(ctx context.Context, taskID string) ([]*AuditEntry, error) {
	keys, err := l.bucket.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list audit keys: %w", err)
	}

	var entries []*AuditEntry
	for _, key := range keys {
		if !strings.HasPrefix(key, taskID+".") {
			continue
		}

		entry, err := l.bucket.Get(ctx, key)
		if err != nil {
			continue
		}
		var e AuditEntry
		if err := json.Unmarshal(entry.Value(), &e); err != nil {
			continue
		}
		entries = append(entries, &e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	return entries, nil
}
