// Package classifier infers a workflow from a free-text task description
// when none is explicitly requested. Classification never fails: every error
// path resolves to the fallback workflow, because a misclassified task is
// recoverable and an aborted one is not.
package classifier

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/c360studio/taskpipe/llm"
	"github.com/c360studio/taskpipe/workflow"
)

// Deterministic, short-output sampling keeps classification responses stable.
const (
	classifyTemperature = 0.1
	classifyMaxTokens   = 50

	defaultTimeout = 30 * time.Second
)

// fillerPrefixes are phrases models prepend despite being told not to.
// They are stripped before matching.
var fillerPrefixes = []string{
	"the category is",
	"category:",
	"answer:",
}

// Completer is the single-shot completion call the classifier depends on.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Classifier turns a task description into one catalog workflow.
type Classifier struct {
	client  Completer
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTimeout bounds a single classification call.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// New creates a classifier that generates with the given model.
func New(client Completer, model string, opts ...Option) *Classifier {
	c := &Classifier{
		client:  client,
		model:   model,
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the catalog workflow for the description. On any failure
// (call error, timeout, unrecognized response) it returns workflow.Fallback;
// it never returns an error.
func (c *Classifier) Classify(ctx context.Context, description string) workflow.Workflow {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temp := classifyTemperature
	resp, err := c.client.Complete(ctx, llm.Request{
		Model:  c.model,
		Prompt: buildPrompt(description),
		Params: llm.GenerationParams{
			Temperature:     &temp,
			MaxOutputTokens: classifyMaxTokens,
		},
	})
	if err != nil {
		c.logger.Warn("Classification call failed, using fallback",
			"fallback", workflow.Fallback,
			"error", err)
		return workflow.Fallback
	}

	raw := strings.ToLower(strings.TrimSpace(resp.Content))
	c.logger.Debug("Raw classification response", "response", raw)

	cleaned := stripFiller(raw)

	// Exact match first, then substring containment: models sometimes wrap
	// the identifier in a sentence despite the single-token instruction.
	for _, w := range workflow.All() {
		if cleaned == w.String() {
			return w
		}
	}
	for _, w := range workflow.All() {
		if strings.Contains(cleaned, w.String()) {
			return w
		}
	}

	c.logger.Info("No workflow matched classification response, using fallback",
		"response", raw,
		"fallback", workflow.Fallback)
	return workflow.Fallback
}

// stripFiller removes known filler prefixes and surrounding whitespace.
func stripFiller(s string) string {
	for _, prefix := range fillerPrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	return strings.TrimSpace(s)
}
