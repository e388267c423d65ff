package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"reviewsentiment/internal/config"
)

// GroqClassifier uses the openai-go SDK against Groq's OpenAI-compatible API.
type GroqClassifier struct {
	client    *openai.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

func NewGroqClassifier(apiKey, baseURL, model string, maxTokens int, timeout time.Duration, opts ...option.RequestOption) *GroqClassifier {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(externalHTTPClient),
	}
	reqOpts = append(reqOpts, opts...)
	return &GroqClassifier{
		client:    openai.NewClient(reqOpts...),
		model:     model,
		maxTokens: int64(maxTokens),
		timeout:   timeout,
	}
}

func (g *GroqClassifier) Classify(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		}),
		Model:     openai.F(openai.ChatModel(g.model)),
		MaxTokens: openai.Int(g.maxTokens),
	})
	if err != nil {
		return "", providerErr(config.ProviderGroq, fmt.Errorf("Groq API error: %w", err))
	}
	if len(completion.Choices) == 0 {
		return "", providerErr(config.ProviderGroq, fmt.Errorf("no choices in Groq response"))
	}

	content := completion.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", providerErr(config.ProviderGroq, errEmptyResponse)
	}
	slog.Debug("llm groq response",
		slog.Int("size", len(content)),
		slog.Int64("tokens_in", completion.Usage.PromptTokens),
		slog.Int64("tokens_out", completion.Usage.CompletionTokens))
	return content, nil
}
