package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"reviewsentiment/internal/config"
)

type AnthropicClassifier struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

func NewAnthropicClassifier(apiKey, model string, maxTokens int, timeout time.Duration, opts ...option.RequestOption) *AnthropicClassifier {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(externalHTTPClient),
	}
	reqOpts = append(reqOpts, opts...)
	return &AnthropicClassifier{
		client:    anthropic.NewClient(reqOpts...),
		model:     model,
		maxTokens: int64(maxTokens),
		timeout:   timeout,
	}
}

func (a *AnthropicClassifier) Classify(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", providerErr(config.ProviderAnthropic, fmt.Errorf("Anthropic API error: %w", err))
	}

	for _, block := range message.Content {
		if block.Type != "text" {
			continue
		}
		slog.Debug("llm anthropic response",
			slog.Int("size", len(block.Text)),
			slog.Int64("tokens_in", message.Usage.InputTokens),
			slog.Int64("tokens_out", message.Usage.OutputTokens))
		if strings.TrimSpace(block.Text) == "" {
			return "", providerErr(config.ProviderAnthropic, errEmptyResponse)
		}
		return block.Text, nil
	}
	return "", providerErr(config.ProviderAnthropic, fmt.Errorf("no text content in Anthropic response"))
}
