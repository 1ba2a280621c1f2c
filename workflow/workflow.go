// Package workflow defines the closed set of processing workflows and the
// prompt template each one renders. The catalog is static: it is built into
// the binary, has no mutation path, and needs no synchronization.
package workflow

// Workflow identifies a named transformation with a dedicated prompt template.
type Workflow string

// The complete workflow catalog. Unknown identifiers resolve to Fallback.
const (
	Summarization     Workflow = "summarization"
	Translation       Workflow = "translation"
	SentimentAnalysis Workflow = "sentiment-analysis"
	CodeGeneration    Workflow = "code-generation"
	CodeExplanation   Workflow = "code-explanation"
	BugFix            Workflow = "bug-fix"
	DocumentAnalysis  Workflow = "document-analysis"
	ContentPolishing  Workflow = "content-polishing"
	CreativeWriting   Workflow = "creative-writing"
	Research          Workflow = "research"
)

// Fallback is the global fallback workflow used whenever an identifier cannot
// be resolved, including classifier failures.
const Fallback = Summarization

// RequestedAuto is the sentinel value of a task's requested workflow meaning
// "classify the task description to pick one".
const RequestedAuto = "auto"

// All returns every catalog identifier in declaration order.
func All() []Workflow {
	return []Workflow{
		Summarization,
		Translation,
		SentimentAnalysis,
		CodeGeneration,
		CodeExplanation,
		BugFix,
		DocumentAnalysis,
		ContentPolishing,
		CreativeWriting,
		Research,
	}
}

// Parse returns the workflow for s and whether s is a known identifier.
func Parse(s string) (Workflow, bool) {
	switch Workflow(s) {
	case Summarization, Translation, SentimentAnalysis, CodeGeneration,
		CodeExplanation, BugFix, DocumentAnalysis, ContentPolishing,
		CreativeWriting, Research:
		return Workflow(s), true
	default:
		return "", false
	}
}

// String returns the identifier.
func (w Workflow) String() string { return string(w) }

// Valid reports whether w is part of the catalog.
func (w Workflow) Valid() bool {
	_, ok := Parse(string(w))
	return ok
}

// requestAliases maps the short request names accepted on task creation to
// catalog workflows. These predate auto-detection and are kept for
// compatibility with existing submitters.
var requestAliases = map[string]Workflow{
	"summarize": Summarization,
	"translate": Translation,
	"sentiment": SentimentAnalysis,
	"code":      CodeGeneration,
	"ocr":       DocumentAnalysis,
}

// ResolveExplicit maps an explicitly requested workflow to a catalog
// identifier. Canonical identifiers pass through, legacy aliases are mapped,
// and anything else resolves to Fallback. The caller handles RequestedAuto
// before calling this.
func ResolveExplicit(requested string) Workflow {
	if w, ok := Parse(requested); ok {
		return w
	}
	if w, ok := requestAliases[requested]; ok {
		return w
	}
	return Fallback
}
