package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"reviewsentiment/internal/config"
)

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// OpenAIClassifier talks to any OpenAI-compatible chat completions endpoint
// with plain JSON over the shared HTTP client.
type OpenAIClassifier struct {
	apiKey     string
	endpoint   string
	model      string
	maxTokens  int
	timeout    time.Duration
	httpClient *http.Client
}

func NewOpenAIClassifier(apiKey, baseURL, model string, maxTokens int, timeout time.Duration, httpClient *http.Client) *OpenAIClassifier {
	return &OpenAIClassifier{
		apiKey:     apiKey,
		endpoint:   strings.TrimRight(baseURL, "/") + "/chat/completions",
		model:      model,
		maxTokens:  maxTokens,
		timeout:    timeout,
		httpClient: httpClient,
	}
}

func (o *OpenAIClassifier) Classify(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	bodyBytes, err := json.Marshal(openAIRequest{
		Model:     o.model,
		Messages:  []openAIMessage{{Role: "user", Content: prompt}},
		MaxTokens: o.maxTokens,
	})
	if err != nil {
		return "", providerErr(config.ProviderOpenAI, fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", providerErr(config.ProviderOpenAI, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", providerErr(config.ProviderOpenAI, fmt.Errorf("OpenAI API error: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", providerErr(config.ProviderOpenAI, fmt.Errorf("reading response: %w", err))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", providerErr(config.ProviderOpenAI, fmt.Errorf("parsing OpenAI response (status %d): %w", resp.StatusCode, err))
	}
	if parsed.Error != nil {
		return "", providerErr(config.ProviderOpenAI, fmt.Errorf("OpenAI API error (status %d): %s", resp.StatusCode, parsed.Error.Message))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", providerErr(config.ProviderOpenAI, fmt.Errorf("OpenAI API returned status %d", resp.StatusCode))
	}
	if len(parsed.Choices) == 0 {
		return "", providerErr(config.ProviderOpenAI, fmt.Errorf("no choices in OpenAI response"))
	}

	content := parsed.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", providerErr(config.ProviderOpenAI, errEmptyResponse)
	}

	attrs := []any{slog.Int("size", len(content))}
	if parsed.Usage != nil {
		attrs = append(attrs, slog.Int64("tokens_in", parsed.Usage.PromptTokens), slog.Int64("tokens_out", parsed.Usage.CompletionTokens))
	}
	slog.Debug("llm openai response", attrs...)
	return content, nil
}
