// Package summary digests what a requester wrote while waiting in the
// queue, so the accepting agent gets context before the first reply.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tinyland-inc/relaybot/pkg/config"
)

const (
	defaultModel = "claude-3-5-haiku-latest"
	maxTokens    = 512

	systemPrompt = "You summarize chat messages a customer sent while waiting " +
		"for a support agent. Reply with a short plain-text summary of what " +
		"the customer needs, at most three sentences. Do not add commentary."
)

type Client struct {
	client *anthropic.Client
	model  string
}

func New(cfg config.SummarizerConfig) *Client {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{client: &client, model: model}
}

// Summarize implements routing.Summarizer.
func (c *Client) Summarize(ctx context.Context, transcript []string) (string, error) {
	if len(transcript) == 0 {
		return "", nil
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(strings.Join(transcript, "\n"))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("summary API call: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			tb := block.AsText()
			sb.WriteString(tb.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("summary API returned no text")
	}
	return text, nil
}
