package workflow

import "fmt"

// Prompt renders the template for w with the task's input text substituted
// verbatim. Unknown identifiers render the Fallback template; this should not
// happen in practice because identifiers are validated or classifier-resolved
// upstream, but the catalog defends against it anyway.
func Prompt(w Workflow, input string) string {
	switch w {
	case Summarization:
		return fmt.Sprintf("Summarize the following text in 2-3 concise sentences:\n\n%s", input)

	case Translation:
		return fmt.Sprintf("Translate the following text to Spanish (or detect the target language from context). Provide ONLY the translation:\n\n%s", input)

	case SentimentAnalysis:
		return fmt.Sprintf(`Analyze the sentiment of this text. Provide:
1) Overall Sentiment: (Positive/Negative/Neutral/Mixed)
2) Confidence Score: (percentage)
3) Key Emotions Detected: (list main emotions)
4) Brief Explanation: (2-3 sentences)

Text to analyze: "%s"`, input)

	case CodeGeneration:
		return fmt.Sprintf(`Generate clean, working, well-commented code based on this request. Include:
1) The complete code
2) Brief explanation of how it works
3) Example usage if applicable

Request: %s`, input)

	case CodeExplanation:
		return fmt.Sprintf(`Explain the following code in detail. Include:
1) What the code does (high-level overview)
2) Step-by-step breakdown of key parts
3) Any important concepts or patterns used

Code: %s`, input)

	case BugFix:
		return fmt.Sprintf(`Analyze the following code/error and provide:
1) Identified Issue: What's wrong
2) Root Cause: Why it's happening
3) Fixed Code: Corrected version
4) Prevention Tips: How to avoid this in future

Code/Error: %s`, input)

	case DocumentAnalysis:
		return fmt.Sprintf(`Analyze this document and extract:
1) Key Information: Main points and data
2) Structure: How it's organized
3) Summary: Brief overview
4) Insights: Important findings

Document: %s`, input)

	case ContentPolishing:
		return fmt.Sprintf(`Improve and refine the following content. Provide:
1) Polished Version: Enhanced, error-free text
2) Changes Made: Brief list of improvements
3) Suggestions: Additional recommendations

Original Content: %s`, input)

	case CreativeWriting:
		return fmt.Sprintf(`Create creative content based on this request. Be imaginative, engaging, and original:

%s`, input)

	case Research:
		return fmt.Sprintf(`Research and provide comprehensive information on this topic. Include:
1) Overview: Brief introduction
2) Key Facts: Important information
3) Details: In-depth explanation
4) Sources: Where this information comes from

Topic: %s`, input)

	default:
		return Prompt(Fallback, input)
	}
}

// Description returns the one-line disambiguation rule for w, used by the
// classifier prompt to separate adjacent categories.
func Description(w Workflow) string {
	switch w {
	case Summarization:
		return "if user wants to SUMMARIZE/CONDENSE text"
	case Translation:
		return "if user wants to TRANSLATE text to another language"
	case SentimentAnalysis:
		return "if user wants to ANALYZE emotions/opinions/sentiment"
	case CodeGeneration:
		return "if user wants to CREATE/WRITE/BUILD code or program"
	case CodeExplanation:
		return "if user wants to UNDERSTAND/EXPLAIN existing code"
	case BugFix:
		return "if user wants to FIX/DEBUG code errors"
	case DocumentAnalysis:
		return "if user wants to EXTRACT/ANALYZE document information"
	case ContentPolishing:
		return "if user wants to IMPROVE/EDIT/PROOFREAD text"
	case CreativeWriting:
		return "if user wants to WRITE stories/poems/creative content"
	case Research:
		return "if user wants to FIND/INVESTIGATE information"
	default:
		return ""
	}
}
