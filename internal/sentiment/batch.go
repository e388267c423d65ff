package sentiment

import (
	"context"
	"errors"

	"reviewsentiment/internal/domain"
)

// Classifier is the external classify(prompt) -> text capability.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

type ClassifierFunc func(ctx context.Context, prompt string) (string, error)

func (f ClassifierFunc) Classify(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Batch outcomes, also used as metric label values.
const (
	BatchClassified    = "classified"
	BatchPartial       = "partial"
	BatchProviderError = "provider_error"
	BatchParseError    = "parse_error"
	BatchNoSummary     = "no_summary"
)

type BatchOutcome struct {
	Tally        domain.Tally
	Unclassified []domain.Review
	Labels       []domain.Label
	// Summary is nil when the response had no usable summary block.
	Summary  *domain.Tally
	Status   string
	Response string
	Err      error
}

// ClassifyBatch runs one batch through classify and the response parser.
// Provider and parse failures never escape: the whole batch is deferred.
func ClassifyBatch(ctx context.Context, classifier Classifier, batch []domain.Review) BatchOutcome {
	prompt := BuildBatchPrompt(batch)

	response, err := classifier.Classify(ctx, prompt)
	if err != nil {
		var pe *domain.ProviderError
		if !errors.As(err, &pe) {
			err = &domain.ProviderError{Provider: "unknown", Err: err}
		}
		return BatchOutcome{
			Unclassified: cloneReviews(batch),
			Status:       BatchProviderError,
			Err:          err,
		}
	}

	labels, summary, err := ParseBatchResponse(response, len(batch))
	if err != nil {
		return BatchOutcome{
			Unclassified: cloneReviews(batch),
			Labels:       labels,
			Status:       BatchParseError,
			Response:     response,
			Err:          err,
		}
	}
	if summary == nil {
		return BatchOutcome{
			Unclassified: cloneReviews(batch),
			Labels:       labels,
			Status:       BatchNoSummary,
			Response:     response,
		}
	}

	out := BatchOutcome{
		Tally:    *summary,
		Labels:   labels,
		Summary:  summary,
		Status:   BatchClassified,
		Response: response,
	}
	// Positional: assumes in-order classification truncated only at the end.
	if len(labels) < len(batch) {
		out.Unclassified = cloneReviews(batch[len(labels):])
		out.Status = BatchPartial
	}
	return out
}

// SummaryMismatch reports whether the self-reported summary disagrees with
// the number of structurally parsed labels. The summary still wins.
func (o BatchOutcome) SummaryMismatch() bool {
	return o.Summary != nil && o.Summary.Total() != len(o.Labels)
}

func cloneReviews(reviews []domain.Review) []domain.Review {
	return append([]domain.Review(nil), reviews...)
}
