// Package google provides the Google Gemini client implementation for the llm.Client interface.
package google

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"voxcrew/pkg/agent/llm"
	"voxcrew/pkg/agent/llmerrors"
)

// Client wraps the Google GenAI client to implement llm.Client.
type Client struct {
	client       *genai.Client
	apiKey       string
	fastModel    string
	qualityModel string
}

// NewClient creates a new Gemini client serving both model tiers.
// The underlying genai client requires a context, so creation is deferred
// to the first Complete call.
func NewClient(apiKey, fastModel, qualityModel string) *Client {
	return &Client{
		apiKey:       apiKey,
		fastModel:    fastModel,
		qualityModel: qualityModel,
	}
}

// ModelName returns the model backing a tier.
func (g *Client) ModelName(tier llm.Tier) string {
	if tier == llm.TierFast {
		return g.fastModel
	}
	return g.qualityModel
}

// ensureClient lazily constructs the genai client.
func (g *Client) ensureClient(ctx context.Context) error {
	if g.client != nil {
		return nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, err, "failed to create Gemini client")
	}
	g.client = client
	return nil
}

// Complete implements the llm.Client interface.
//
//nolint:gocritic // CompletionRequest passed by value for interface consistency
func (g *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	if err := g.ensureClient(ctx); err != nil {
		return llm.CompletionResponse{}, err
	}

	contents, systemInstruction, err := convertMessages(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "message conversion error")
	}

	//nolint:gosec // MaxTokens validated at higher layer, overflow acceptable
	maxTokens := int32(in.MaxTokens)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &in.Temperature,
		MaxOutputTokens: maxTokens,
	}
	if systemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}

	result, err := g.client.Models.GenerateContent(ctx, g.ModelName(in.Tier), contents, cfg)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, "Gemini API call failed")
	}
	if result == nil || len(result.Candidates) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from Gemini API")
	}

	return llm.CompletionResponse{
		Content:    result.Text(),
		StopReason: stopReason(result),
	}, nil
}

// convertMessages converts our message format to Gemini's Content format.
// Returns contents array and optional system instruction.
func convertMessages(messages []llm.CompletionMessage) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("message list cannot be empty")
	}

	systemInstruction, rest := llm.SplitSystem(messages)

	var contents []*genai.Content
	for i := range rest {
		msg := &rest[i]

		var role string
		switch msg.Role {
		case llm.RoleUser:
			role = "user"
		case llm.RoleAssistant:
			role = "model" // Gemini uses "model" instead of "assistant"
		default:
			return nil, "", fmt.Errorf("unsupported message role: %s", msg.Role)
		}

		if msg.Content == "" {
			continue
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	if len(contents) == 0 {
		return nil, "", fmt.Errorf("must have at least one non-system message")
	}
	return contents, systemInstruction, nil
}

// stopReason maps Gemini finish reasons onto our stop reason enum. The
// length-cap case must surface as StopMaxTokens so callers can flag
// truncation.
func stopReason(result *genai.GenerateContentResponse) llm.StopReason {
	if result == nil || len(result.Candidates) == 0 {
		return llm.StopOther
	}
	switch result.Candidates[0].FinishReason {
	case genai.FinishReasonStop:
		return llm.StopEnd
	case genai.FinishReasonMaxTokens:
		return llm.StopMaxTokens
	case genai.FinishReasonSafety, genai.FinishReasonRecitation, genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent:
		return llm.StopSafety
	default:
		return llm.StopOther
	}
}
