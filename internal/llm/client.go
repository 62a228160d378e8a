// Package llm wraps the chat-completion client shared by the frontier
// planner and the relevance oracle.
package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Chatter is the narrow completion surface the pipeline depends on.
type Chatter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client implements Chatter over the OpenAI-compatible chat API.
type Client struct {
	api   *openai.Client
	model string
}

// Config holds client construction knobs.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewClient builds a Client. BaseURL allows pointing at any
// OpenAI-compatible endpoint.
func NewClient(cfg Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Client{
		api:   openai.NewClientWithConfig(clientCfg),
		model: model,
	}
}

// Complete sends one system+user exchange and returns the assistant text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
