package answer

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ErrMissingAPIKey is returned by an OpenAI client constructed without a
// credential. It is deliberately not a startup error: the generator surfaces
// it per request so the rest of the service keeps working.
var ErrMissingAPIKey = errors.New("OpenAI API key is missing")

// OpenAIClient calls an OpenAI-compatible chat completion API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	apiKey string
}

// NewOpenAI builds a client for the given model. baseURL is optional and
// allows pointing at any OpenAI-compatible endpoint.
func NewOpenAI(apiKey, baseURL, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		apiKey: apiKey,
	}
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	oaMsgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		oaMsgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: oaMsgs,
	})
	if err != nil {
		return "", fmt.Errorf("creating chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
