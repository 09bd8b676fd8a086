// Package research decides when a user request warrants a web-search pass
// and shapes search results for prompt inclusion.
package research

import "strings"

// triggerPatterns is the fixed table of question-pattern phrases that gate
// the research step. Substring matching is a heuristic, not a classifier:
// it separates questions about approach from direct build requests.
//
//nolint:gochecknoglobals // Static pattern table
var triggerPatterns = []string{
	"what is the best",
	"what's the best",
	"what are the best",
	"how should i",
	"how do i",
	"how can i",
	"which is better",
	"what are the options",
	"pros and cons",
	"compare",
	"comparison",
	"recommend",
	"research",
	"should i use",
	"what would you suggest",
}

// ShouldResearch reports whether the transcript matches any trigger pattern.
// Case-insensitive, pure, side-effect-free.
func ShouldResearch(transcript string) bool {
	lowered := strings.ToLower(transcript)
	for _, pattern := range triggerPatterns {
		if strings.Contains(lowered, pattern) {
			return true
		}
	}
	return false
}

// TriggerPatterns returns a copy of the pattern table for tests and docs.
func TriggerPatterns() []string {
	out := make([]string, len(triggerPatterns))
	copy(out, triggerPatterns)
	return out
}
