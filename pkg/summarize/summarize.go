// Package summarize compresses agent output into bounded digests for prompt
// inclusion and speech synthesis.
package summarize

import "strings"

// margin reserves headroom below maxLen so the greedy accumulation never
// lands exactly on the limit.
const margin = 10

// ellipsis marks hard character truncation.
const ellipsis = "..."

// Summarize returns message unchanged when it fits within maxLen. Otherwise
// it accumulates whole sentences while the running total stays under maxLen
// minus a small margin. When not even the first sentence fits, it falls back
// to hard truncation with an ellipsis marker. Output length never exceeds
// maxLen plus the marker, and output is non-empty for non-empty input.
func Summarize(message string, maxLen int) string {
	if len(message) <= maxLen {
		return message
	}
	if maxLen <= 0 {
		return ""
	}

	sentences := splitSentences(message)

	var b strings.Builder
	for _, sentence := range sentences {
		if b.Len()+len(sentence) >= maxLen-margin {
			break
		}
		b.WriteString(sentence)
	}

	if b.Len() == 0 {
		return hardTruncate(message, maxLen)
	}
	return strings.TrimSpace(b.String())
}

// TruncateForSpeech bounds text for the speech synthesizer. It prefers to
// cut at the last sentence boundary when that boundary falls within the
// trailing 30% of the budget, otherwise it hard-cuts with an ellipsis.
func TruncateForSpeech(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	if maxLen <= 0 {
		return ""
	}

	window := text[:maxLen]
	cut := -1
	for i := len(window) - 1; i >= 0; i-- {
		if isBoundary(window[i]) {
			cut = i
			break
		}
	}

	// Only accept a boundary cut in the trailing 30% of the budget;
	// anything earlier throws away too much of the message.
	if cut >= (maxLen*7)/10 {
		return strings.TrimSpace(window[:cut+1])
	}
	return hardTruncate(text, maxLen)
}

// splitSentences breaks text into sentence-like units on punctuation
// boundaries, keeping the terminator and trailing whitespace with each unit.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		if !isBoundary(text[i]) {
			continue
		}
		// Swallow consecutive terminators ("?!", "...") and whitespace.
		end := i + 1
		for end < len(text) && (isBoundary(text[end]) || text[end] == ' ' || text[end] == '\n' || text[end] == '\t') {
			end++
		}
		sentences = append(sentences, text[start:end])
		start = end
		i = end - 1
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

func isBoundary(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func hardTruncate(text string, maxLen int) string {
	if maxLen <= len(ellipsis) {
		return text[:maxLen]
	}
	return text[:maxLen-len(ellipsis)] + ellipsis
}
