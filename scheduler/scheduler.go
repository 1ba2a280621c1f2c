// Package scheduler implements the polling loop that discovers eligible
// tasks and drives each one through classification, execution, and its
// terminal status transition. One cycle is an explicit operation
// (RunOneCycle) so the loop's behavior is testable without timers.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/c360studio/taskpipe/executor"
	"github.com/c360studio/taskpipe/storage"
	"github.com/c360studio/taskpipe/workflow"
)

// Defaults match the reference cadence: poll every 3 seconds, pause 1 second
// between tasks to cap the outbound completion request rate.
const (
	DefaultPollInterval = 3 * time.Second
	DefaultTaskDelay    = time.Second
)

// TaskStore is the subset of task persistence the scheduler drives.
type TaskStore interface {
	ListEligible(ctx context.Context) ([]*storage.Task, error)
	SetDetectedWorkflow(ctx context.Context, id, workflow string) error
	Complete(ctx context.Context, id string, out storage.Output) error
	Fail(ctx context.Context, id, message string) error
}

// AuditLog is the append-only event log the scheduler writes to.
type AuditLog interface {
	Append(ctx context.Context, taskID string, event storage.Event, message string, metadata map[string]any) error
}

// Classifier resolves an auto-detect task description to a workflow.
// Implementations never fail; they fall back instead.
type Classifier interface {
	Classify(ctx context.Context, description string) workflow.Workflow
}

// Executor runs one workflow over input text.
type Executor interface {
	Execute(ctx context.Context, wf workflow.Workflow, input string) (*executor.Result, error)
}

// Scheduler is the single sequential pipeline worker. It holds no locks:
// strictly sequential processing is the concurrency model, keeping at most
// one completion call in flight and audit writes unraced.
type Scheduler struct {
	store      TaskStore
	audit      AuditLog
	classifier Classifier
	executor   Executor

	pollInterval time.Duration
	taskDelay    time.Duration
	logger       *slog.Logger

	// Lifetime counters, reported when the loop exits.
	cyclesRun      atomic.Int64
	cycleErrors    atomic.Int64
	tasksSucceeded atomic.Int64
	tasksFailed    atomic.Int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPollInterval sets the cycle interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithTaskDelay sets the pause between tasks within a cycle.
func WithTaskDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.taskDelay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New creates a scheduler over the given collaborators.
func New(store TaskStore, audit AuditLog, cls Classifier, exec Executor, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:        store,
		audit:        audit,
		classifier:   cls,
		executor:     exec,
		pollInterval: DefaultPollInterval,
		taskDelay:    DefaultTaskDelay,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run polls until ctx is cancelled. A cycle failure never stops the loop;
// the next tick is an independent retry.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Scheduler started",
		"poll_interval", s.pollInterval,
		"task_delay", s.taskDelay)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	// Run immediately on start
	s.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped",
				"cycles_run", s.cyclesRun.Load(),
				"cycle_errors", s.cycleErrors.Load(),
				"tasks_succeeded", s.tasksSucceeded.Load(),
				"tasks_failed", s.tasksFailed.Load())
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// cycle runs one cycle and absorbs its error into logs and counters.
func (s *Scheduler) cycle(ctx context.Context) {
	if err := s.RunOneCycle(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("Cycle failed", "error", err)
	}
}

// RunOneCycle queries for eligible tasks and processes them sequentially,
// oldest first. A failure in one task does not affect the others; a failure
// in the store query itself ends the cycle.
func (s *Scheduler) RunOneCycle(ctx context.Context) error {
	s.cyclesRun.Add(1)
	cyclesTotal.Inc()

	tasks, err := s.store.ListEligible(ctx)
	if err != nil {
		s.cycleErrors.Add(1)
		cycleErrorsTotal.Inc()
		return fmt.Errorf("list eligible tasks: %w", err)
	}

	if len(tasks) == 0 {
		return nil
	}

	s.logger.Info("Found tasks to process", "count", len(tasks))

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.processTask(ctx, task)

		// Fixed pause between tasks caps the outbound request rate.
		if i < len(tasks)-1 && s.taskDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.taskDelay):
			}
		}
	}

	return nil
}

// processTask drives one task end to end. Every error is contained here:
// execution failures become the failed transition, store failures abort
// processing without a transition so the task stays eligible for the next
// cycle.
func (s *Scheduler) processTask(ctx context.Context, task *storage.Task) {
	logger := s.logger.With("task_id", shortID(task.ID), "title", task.Title)
	logger.Info("Processing task")

	tasksProcessedTotal.Inc()

	wf, ok := s.resolveWorkflow(ctx, task, logger)
	if !ok {
		return
	}

	if err := s.audit.Append(ctx, task.ID, storage.EventStarted,
		fmt.Sprintf("Started processing with workflow: %s", wf), nil); err != nil {
		logger.Warn("Failed to append started entry, leaving task for next cycle", "error", err)
		return
	}

	result, err := s.executor.Execute(ctx, wf, task.InputText)
	if err != nil {
		s.failTask(ctx, task, err, logger)
		return
	}

	if err := s.store.Complete(ctx, task.ID, storage.Output{
		Result:           result.Text,
		Model:            result.Model,
		ProcessingTimeMs: result.ProcessingTimeMs,
		WorkflowUsed:     result.Workflow.String(),
	}); err != nil {
		logger.Warn("Failed to store task output, leaving task for next cycle", "error", err)
		return
	}

	if err := s.audit.Append(ctx, task.ID, storage.EventCompleted,
		fmt.Sprintf("Completed in %dms using %s", result.ProcessingTimeMs, result.Workflow),
		map[string]any{
			"processing_time_ms": result.ProcessingTimeMs,
			"workflow":           result.Workflow.String(),
		}); err != nil {
		// The task is already done; the missing entry is a log gap, not
		// a reason to reprocess.
		logger.Warn("Failed to append completed entry", "error", err)
	}

	s.tasksSucceeded.Add(1)
	tasksSucceededTotal.Inc()
	logger.Info("Task done", "duration_ms", result.ProcessingTimeMs, "workflow", result.Workflow)
}

// resolveWorkflow determines which workflow to execute. For auto tasks it
// classifies the description, persists the detection, and records the
// workflow_detected entry, exactly once per task: a detection that survived
// an earlier crash is reused, not redone.
func (s *Scheduler) resolveWorkflow(ctx context.Context, task *storage.Task, logger *slog.Logger) (workflow.Workflow, bool) {
	if task.RequestedWorkflow != workflow.RequestedAuto {
		return workflow.ResolveExplicit(task.RequestedWorkflow), true
	}

	if task.DetectedWorkflow != nil {
		wf, ok := workflow.Parse(*task.DetectedWorkflow)
		if !ok {
			wf = workflow.Fallback
		}
		return wf, true
	}

	logger.Info("Auto-detecting workflow")
	wf := s.classifier.Classify(ctx, task.ClassificationText())
	logger.Info("Detected workflow", "workflow", wf)

	if err := s.store.SetDetectedWorkflow(ctx, task.ID, wf.String()); err != nil {
		logger.Warn("Failed to persist detected workflow, leaving task for next cycle", "error", err)
		return "", false
	}

	if err := s.audit.Append(ctx, task.ID, storage.EventWorkflowDetected,
		fmt.Sprintf("AI detected workflow: %s", wf), nil); err != nil {
		// Detection is persisted; we will not classify again, and the
		// entry cannot be retried without risking a duplicate.
		logger.Warn("Failed to append workflow_detected entry", "error", err)
	}

	return wf, true
}

// failTask applies the failed transition and records the failure.
func (s *Scheduler) failTask(ctx context.Context, task *storage.Task, execErr error, logger *slog.Logger) {
	logger.Error("Task execution failed", "error", execErr)

	if err := s.store.Fail(ctx, task.ID, execErr.Error()); err != nil {
		logger.Warn("Failed to store task failure, leaving task for next cycle", "error", err)
		return
	}

	if err := s.audit.Append(ctx, task.ID, storage.EventFailed,
		fmt.Sprintf("Failed: %s", execErr), nil); err != nil {
		logger.Warn("Failed to append failed entry", "error", err)
	}

	s.tasksFailed.Add(1)
	tasksFailedTotal.Inc()
}

// shortID abbreviates a task UUID for log lines.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
