package nw

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// completer for OpenAI-compatible chat completion apis
type openAICompleter struct {
	client *openai.Client

	model       string
	temperature float64
	maxTokens   int
}

// return a new completer for OpenAI-compatible chat completion apis
func newOpenAICompleter(settings Settings, httpClient *http.Client) *openAICompleter {
	config := openai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		config.BaseURL = strings.TrimRight(settings.BaseURL, "/")
	}
	config.HTTPClient = httpClient

	return &openAICompleter{
		client: openai.NewClientWithConfig(config),

		model:       settings.Model,
		temperature: settings.Temperature,
		maxTokens:   settings.MaxTokens,
	}
}

// complete with chat completion api
func (c *openAICompleter) complete(ctx context.Context, systemInstruction, prompt string) (string, error) {
	// NOTE: zero temperature is omitted from the request, so send the smallest non-zero value instead
	temperature := float32(c.temperature)
	if temperature <= 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemInstruction,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: temperature,
		MaxTokens:   max(minMaxTokens, c.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: no message content in chat completion response", ErrNoContent)
	}

	return resp.Choices[0].Message.Content, nil
}
