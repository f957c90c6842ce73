package nw

import (
	"context"
	"fmt"

	// google ai
	"google.golang.org/genai"

	// my libraries
	gt "github.com/meinside/gemini-things-go"
)

// completer for Gemini models
type geminiCompleter struct {
	apiKey string
	model  string

	temperature float64
	maxTokens   int
}

// return a new completer for Gemini models
func newGeminiCompleter(settings Settings) *geminiCompleter {
	return &geminiCompleter{
		apiKey: settings.APIKey,
		model:  settings.Model,

		temperature: settings.Temperature,
		maxTokens:   settings.MaxTokens,
	}
}

// generation config with the completer's temperature and max output tokens
func (c *geminiCompleter) generationConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.temperature)),
		MaxOutputTokens: int32(max(minMaxTokens, c.maxTokens)),
	}
}

// complete with given system instruction and prompt
func (c *geminiCompleter) complete(ctx context.Context, systemInstruction, prompt string) (generated string, err error) {
	// NOTE: no retries; a failed generation falls back to the raw description
	gtc, err := gt.NewClient(
		c.apiKey,
		gt.WithModel(c.model),
		gt.WithMaxRetryCount(0),
	)
	if err != nil {
		return "", fmt.Errorf("error initializing gemini-things client: %w", err)
	}
	defer func() { _ = gtc.Close() }()

	// system instruction
	gtc.SetSystemInstructionFunc(func() string {
		return systemInstruction
	})

	// generate
	var result *genai.GenerateContentResponse
	if result, err = gtc.Generate(
		ctx,
		genai.Text(prompt),
		c.generationConfig(),
	); err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidate in generation result", ErrNoContent)
	}

	candidate := result.Candidates[0]
	if content := candidate.Content; content != nil {
		for _, part := range content.Parts {
			if part.Text != "" {
				generated += part.Text
			}
		}
	} else if candidate.FinishReason != genai.FinishReasonUnspecified {
		return "", fmt.Errorf("generation was terminated due to: %s", candidate.FinishReason)
	}

	if generated == "" {
		return "", fmt.Errorf("%w: no text in generation result: %s", ErrNoContent, Prettify(candidate))
	}

	return generated, nil
}
