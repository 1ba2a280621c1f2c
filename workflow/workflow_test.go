package workflow_test

import (
	"testing"

	"github.com/c360studio/taskpipe/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll_ContainsTenWorkflows(t *testing.T) {
	all := workflow.All()
	require.Len(t, all, 10)

	seen := make(map[workflow.Workflow]bool)
	for _, w := range all {
		assert.True(t, w.Valid(), "workflow %q should be valid", w)
		assert.False(t, seen[w], "workflow %q listed twice", w)
		seen[w] = true
	}

	assert.Contains(t, all, workflow.Summarization)
	assert.Contains(t, all, workflow.Research)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  workflow.Workflow
		ok    bool
	}{
		{"canonical", "summarization", workflow.Summarization, true},
		{"canonical multi-word", "sentiment-analysis", workflow.SentimentAnalysis, true},
		{"canonical bug fix", "bug-fix", workflow.BugFix, true},
		{"unknown", "poetry", "", false},
		{"empty", "", "", false},
		{"alias is not canonical", "summarize", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := workflow.Parse(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestResolveExplicit(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		want      workflow.Workflow
	}{
		{"canonical passes through", "translation", workflow.Translation},
		{"alias summarize", "summarize", workflow.Summarization},
		{"alias translate", "translate", workflow.Translation},
		{"alias sentiment", "sentiment", workflow.SentimentAnalysis},
		{"alias code", "code", workflow.CodeGeneration},
		{"alias ocr", "ocr", workflow.DocumentAnalysis},
		{"unknown falls back", "interpretive_dance", workflow.Summarization},
		{"empty falls back", "", workflow.Summarization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, workflow.ResolveExplicit(tt.requested))
		})
	}
}

func TestFallback_IsSummarization(t *testing.T) {
	assert.Equal(t, workflow.Summarization, workflow.Fallback)
}

func TestPrompt_EmbedsInput(t *testing.T) {
	const input = "UNIQUE-INPUT-MARKER"

	for _, w := range workflow.All() {
		prompt := workflow.Prompt(w, input)
		assert.Contains(t, prompt, input, "workflow %q prompt should embed the input", w)
		assert.NotEmpty(t, prompt)
	}
}

func TestPrompt_UnknownWorkflowUsesFallbackTemplate(t *testing.T) {
	got := workflow.Prompt(workflow.Workflow("nonsense"), "text")
	want := workflow.Prompt(workflow.Fallback, "text")
	assert.Equal(t, want, got)
}

func TestPrompt_TemplatesAreDistinct(t *testing.T) {
	seen := make(map[string]workflow.Workflow)
	for _, w := range workflow.All() {
		prompt := workflow.Prompt(w, "x")
		prev, dup := seen[prompt]
		assert.False(t, dup, "workflows %q and %q share a template", prev, w)
		seen[prompt] = w
	}
}

func TestDescription_CoversCatalog(t *testing.T) {
	for _, w := range workflow.All() {
		assert.NotEmpty(t, workflow.Description(w), "workflow %q needs a description", w)
	}
}
