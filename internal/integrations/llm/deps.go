package llm

import (
	"reviewsentiment/internal/config"
	"reviewsentiment/internal/domain"
	"reviewsentiment/internal/httpx"
	"reviewsentiment/internal/sentiment"
)

type Config = config.Config
type Classifier = sentiment.Classifier
type ProviderError = domain.ProviderError

var externalHTTPClient = httpx.ExternalHTTPClient()
