// Package llm defines the provider-neutral language model interface.
package llm

import "context"

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	// RoleSystem indicates a system message that provides instructions or context.
	RoleSystem CompletionRole = "system"
	// RoleUser indicates a message from the human user.
	RoleUser CompletionRole = "user"
	// RoleAssistant indicates a message from the AI assistant.
	RoleAssistant CompletionRole = "assistant"
)

// Tier selects between the fast model (demo mode) and the high-quality model.
type Tier string

const (
	// TierFast is the low-latency model used in demo mode.
	TierFast Tier = "fast"
	// TierQuality is the high-quality model used for full responses.
	TierQuality Tier = "quality"
)

// StopReason reports why the model stopped generating.
type StopReason string

const (
	// StopEnd indicates the model finished naturally.
	StopEnd StopReason = "stop"
	// StopMaxTokens indicates the output hit the length cap and was truncated.
	StopMaxTokens StopReason = "max_tokens"
	// StopSafety indicates the provider cut generation on a safety filter.
	StopSafety StopReason = "safety"
	// StopOther covers provider-specific reasons we do not act on.
	StopOther StopReason = "other"
)

// CompletionMessage represents a message in a completion request.
type CompletionMessage struct {
	Role    CompletionRole
	Content string
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Messages    []CompletionMessage
	Tier        Tier
	Temperature float32
	MaxTokens   int
}

// CompletionResponse represents a response from a completion request.
// Providers must report StopMaxTokens whenever the length cap truncated
// output so callers can flag the truncation.
type CompletionResponse struct {
	Content    string
	StopReason StopReason
}

// Client defines the interface for language model interactions.
// Implementations are constructed once per process and passed by reference;
// there is no hidden singleton lookup.
type Client interface {
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// ModelName returns the underlying model name for a tier.
	ModelName(tier Tier) string
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

// SplitSystem separates system instructions from conversational messages for
// providers that take the system prompt as a top-level parameter.
func SplitSystem(messages []CompletionMessage) (system string, rest []CompletionMessage) {
	for i := range messages {
		msg := &messages[i]
		if msg.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		rest = append(rest, *msg)
	}
	return system, rest
}
