// Package executor runs one workflow against the completion service: render
// the template, make the call, time it, and return the generated text.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360studio/taskpipe/llm"
	"github.com/c360studio/taskpipe/workflow"
)

// Creative generation gets a higher temperature and a real output budget,
// unlike classification.
const (
	executeTemperature = 0.7
	executeMaxTokens   = 2048

	defaultTimeout = 60 * time.Second
)

// ExecutionError is a failed workflow execution. Message carries the
// service-reported error when there is one, so it surfaces verbatim in the
// task's output and audit trail.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string { return e.Message }

// Result is a successful workflow execution.
type Result struct {
	// Text is the generated output.
	Text string

	// Model is the model that produced the output.
	Model string

	// ProcessingTimeMs is the wall-clock duration of the completion call.
	ProcessingTimeMs int64

	// Workflow is the workflow actually executed, after any defensive
	// fallback.
	Workflow workflow.Workflow
}

// Completer is the single-shot completion call the executor depends on.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Executor renders workflow templates and invokes the completion service.
type Executor struct {
	client  Completer
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout bounds a single execution call.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// New creates an executor that generates with the given model.
func New(client Completer, model string, opts ...Option) *Executor {
	e := &Executor{
		client:  client,
		model:   model,
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs wf over the input text. Unrecognized identifiers execute the
// fallback template; identifiers reach this point validated or
// classifier-resolved, but the executor defends against the gap anyway.
// All failures surface as *ExecutionError. Execute performs exactly one
// attempt; retry policy belongs to the caller.
func (e *Executor) Execute(ctx context.Context, wf workflow.Workflow, input string) (*Result, error) {
	if !wf.Valid() {
		e.logger.Warn("Unrecognized workflow, executing fallback template",
			"workflow", wf,
			"fallback", workflow.Fallback)
		wf = workflow.Fallback
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	temp := executeTemperature
	start := time.Now()
	resp, err := e.client.Complete(ctx, llm.Request{
		Model:  e.model,
		Prompt: workflow.Prompt(wf, input),
		Params: llm.GenerationParams{
			Temperature:     &temp,
			MaxOutputTokens: executeMaxTokens,
		},
	})
	elapsed := time.Since(start)

	if err != nil {
		return nil, asExecutionError(err)
	}

	return &Result{
		Text:             resp.Content,
		Model:            resp.Model,
		ProcessingTimeMs: elapsed.Milliseconds(),
		Workflow:         wf,
	}, nil
}

// asExecutionError converts a completion failure into an *ExecutionError,
// preferring the service-reported message over transport wrapping.
func asExecutionError(err error) error {
	if apiErr, ok := llm.AsAPIError(err); ok {
		return &ExecutionError{Message: apiErr.Message}
	}
	return &ExecutionError{Message: err.Error()}
}
