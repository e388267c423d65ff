package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reviewsentiment/internal/config"
)

// Call statuses reported to a CallObserver.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// CallObserver records the status and latency of every provider call.
type CallObserver interface {
	ObserveLLMCall(provider, status string, duration time.Duration)
}

// New builds the configured classify capability.
func New(cfg Config, observer CallObserver) (Classifier, error) {
	timeout := cfg.ExternalHTTPTimeout()

	var c Classifier
	switch cfg.LLMProvider {
	case config.ProviderAnthropic:
		c = NewAnthropicClassifier(cfg.AnthropicAPIKey, cfg.LLMModel, cfg.LLMMaxTokens, timeout)
	case config.ProviderOpenAI:
		c = NewOpenAIClassifier(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMModel, cfg.LLMMaxTokens, timeout, externalHTTPClient)
	case config.ProviderGroq:
		c = NewGroqClassifier(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.LLMModel, cfg.LLMMaxTokens, timeout)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}

	slog.Info("llm classifier ready",
		slog.String("provider", cfg.LLMProvider),
		slog.String("model", cfg.LLMModel),
		slog.Duration("timeout", timeout))

	if observer == nil {
		return c, nil
	}
	return &observedClassifier{provider: cfg.LLMProvider, next: c, observer: observer}, nil
}

type observedClassifier struct {
	provider string
	next     Classifier
	observer CallObserver
}

func (o *observedClassifier) Classify(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := o.next.Classify(ctx, prompt)
	o.observer.ObserveLLMCall(o.provider, callStatus(err), time.Since(start))
	return text, err
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	default:
		return StatusError
	}
}

func providerErr(provider string, err error) error {
	return &ProviderError{Provider: provider, Err: err}
}

var errEmptyResponse = errors.New("empty response")
