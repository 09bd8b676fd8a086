// Package speech provides text-to-speech synthesis through the Gemini TTS
// model. Synthesis is always best-effort: callers must treat any error as a
// degraded (audio-less) response, never a failed turn.
package speech

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"voxcrew/pkg/logx"
)

// Synthesizer is the speech-synthesis collaborator.
type Synthesizer interface {
	// Synthesize renders text with the given prebuilt voice and returns raw
	// audio bytes. Failures must be catchable without aborting the caller.
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Client implements Synthesizer against the Gemini TTS model.
type Client struct {
	client *genai.Client
	logger *logx.Logger
	apiKey string
	model  string
}

// NewClient creates a TTS client. Client construction is deferred to the
// first Synthesize call since genai requires a context.
func NewClient(apiKey, model string) *Client {
	return &Client{
		logger: logx.NewLogger("speech"),
		apiKey: apiKey,
		model:  model,
	}
}

// Synthesize implements Synthesizer.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("speech synthesis API key not configured")
	}

	if c.client == nil {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create TTS client: %w", err)
		}
		c.client = client
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: voice,
				},
			},
		},
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("TTS generation failed: %w", err)
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return nil, fmt.Errorf("TTS returned no candidates")
	}

	for _, part := range result.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			c.logger.Debug("Synthesized %d bytes with voice %s", len(part.InlineData.Data), voice)
			return part.InlineData.Data, nil
		}
	}
	return nil, fmt.Errorf("TTS response contained no audio data")
}
