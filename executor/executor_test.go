package executor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/c360studio/taskpipe/llm"
	"github.com/c360studio/taskpipe/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompleter returns a canned response or error and records the request.
type fakeCompleter struct {
	content string
	model   string
	err     error
	delay   time.Duration
	lastReq llm.Request
	calls   int
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.calls++
	f.lastReq = req
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	model := f.model
	if model == "" {
		model = req.Model
	}
	return &llm.Response{Content: f.content, Model: model}, nil
}

func TestExecute_Success(t *testing.T) {
	fake := &fakeCompleter{content: "A concise summary.", delay: 10 * time.Millisecond}
	e := New(fake, "test-model")

	res, err := e.Execute(context.Background(), workflow.Summarization, "Long article text")
	require.NoError(t, err)

	assert.Equal(t, "A concise summary.", res.Text)
	assert.Equal(t, "test-model", res.Model)
	assert.Equal(t, workflow.Summarization, res.Workflow)
	assert.GreaterOrEqual(t, res.ProcessingTimeMs, int64(10), "timing must cover the call")
}

func TestExecute_RequestShape(t *testing.T) {
	fake := &fakeCompleter{content: "out"}
	e := New(fake, "test-model")

	_, err := e.Execute(context.Background(), workflow.Translation, "bonjour le monde")
	require.NoError(t, err)

	req := fake.lastReq
	assert.Equal(t, "test-model", req.Model)
	require.NotNil(t, req.Params.Temperature)
	assert.Equal(t, 0.7, *req.Params.Temperature)
	assert.Equal(t, 2048, req.Params.MaxOutputTokens)
	assert.Equal(t, workflow.Prompt(workflow.Translation, "bonjour le monde"), req.Prompt)
}

func TestExecute_UnknownWorkflowUsesFallback(t *testing.T) {
	fake := &fakeCompleter{content: "out"}
	e := New(fake, "test-model")

	res, err := e.Execute(context.Background(), workflow.Workflow("interpretive-dance"), "text")
	require.NoError(t, err)

	assert.Equal(t, workflow.Fallback, res.Workflow)
	assert.Equal(t, workflow.Prompt(workflow.Fallback, "text"), fake.lastReq.Prompt)
}

func TestExecute_APIErrorMessageVerbatim(t *testing.T) {
	apiErr := llm.NewTransientError(&llm.APIError{StatusCode: 429, Message: "quota exceeded"})
	fake := &fakeCompleter{err: apiErr}
	e := New(fake, "test-model")

	_, err := e.Execute(context.Background(), workflow.Summarization, "text")
	require.Error(t, err)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "quota exceeded", execErr.Message)
	assert.Equal(t, "quota exceeded", err.Error())
}

func TestExecute_PlainErrorWrapped(t *testing.T) {
	fake := &fakeCompleter{err: fmt.Errorf("invalid response structure")}
	e := New(fake, "test-model")

	_, err := e.Execute(context.Background(), workflow.Research, "text")
	require.Error(t, err)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "invalid response structure", execErr.Message)
}

func TestExecute_SingleAttempt(t *testing.T) {
	fake := &fakeCompleter{err: fmt.Errorf("transient blip")}
	e := New(fake, "test-model")

	_, err := e.Execute(context.Background(), workflow.Summarization, "text")
	require.Error(t, err)
	assert.Equal(t, 1, fake.calls, "a failed execution must not be retried")
}
