package llm

import (
	"context"
	"fmt"
	"io"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"github.com/luigisaetta/oraculum/pkg/config"
	"github.com/luigisaetta/oraculum/pkg/models"
)

// Client talks to an OpenAI-compatible provider for chat completion,
// token streaming and text embedding.
type Client struct {
	api     *openai.Client
	cfg     config.LLMConfig
	verbose bool
}

// New creates a Client from the given LLM configuration.
func New(cfg config.LLMConfig, verbose bool) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		cfg:     cfg,
		verbose: verbose,
	}
}

// Complete runs a chat completion and returns the full answer.
func (c *Client) Complete(ctx context.Context, msgs []models.Message) (string, error) {
	return c.complete(ctx, msgs, nil)
}

// CompleteJSON runs a chat completion constrained to a JSON object answer.
func (c *Client) CompleteJSON(ctx context.Context, msgs []models.Message) (string, error) {
	format := &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}
	return c.complete(ctx, msgs, format)
}

func (c *Client) complete(ctx context.Context, msgs []models.Message, format *openai.ChatCompletionResponseFormat) (string, error) {
	if c.verbose {
		log.Printf("llm: calling model %s", c.cfg.Model)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:          c.cfg.Model,
		Messages:       toAPIMessages(msgs),
		Temperature:    c.cfg.Temperature,
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: format,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream runs a chat completion and forwards each token to emit as it
// arrives. It returns when the stream ends, emit fails, or ctx is done.
func (c *Client) Stream(ctx context.Context, msgs []models.Message, emit func(string) error) error {
	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    toAPIMessages(msgs),
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return fmt.Errorf("open completion stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read completion stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			if err := emit(delta); err != nil {
				return err
			}
		}
	}
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.cfg.EmbedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding: empty result")
	}
	return resp.Data[0].Embedding, nil
}

// toAPIMessages converts stored messages to the wire format.
func toAPIMessages(msgs []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case models.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case models.RoleAI:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
