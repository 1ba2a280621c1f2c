package classifier

import (
	"fmt"
	"strings"

	"github.com/c360studio/taskpipe/workflow"
)

// workedExamples anchor the model on the expected single-token answers.
// One example per commonly confused category pair is enough.
var workedExamples = []struct {
	task     string
	category workflow.Workflow
}{
	{"write a python function to sort array", workflow.CodeGeneration},
	{"explain this javascript code: function add(a,b)", workflow.CodeExplanation},
	{"my code has an error: TypeError undefined", workflow.BugFix},
	{"translate hello world to french", workflow.Translation},
	{"analyze sentiment of: I love this product", workflow.SentimentAnalysis},
}

// buildPrompt renders the constrained classification prompt: every valid
// identifier with its one-line disambiguation rule, worked examples, and an
// instruction to answer with the bare category name only.
func buildPrompt(description string) string {
	var b strings.Builder

	b.WriteString("Classify this task into EXACTLY ONE category. Reply with ONLY the category name, nothing else.\n\n")
	b.WriteString("Categories:\n")
	for _, w := range workflow.All() {
		fmt.Fprintf(&b, "- %s (%s)\n", w, workflow.Description(w))
	}

	b.WriteString("\nExamples:\n")
	for _, ex := range workedExamples {
		fmt.Fprintf(&b, "%q → %s\n", ex.task, ex.category)
	}

	fmt.Fprintf(&b, "\nTask: %q\n\nReply with ONLY the category name:", description)

	return b.String()
}
