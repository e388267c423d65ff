package sentiment

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"reviewsentiment/internal/domain"
)

const (
	DefaultBatchSize = 10
	maxBatchWorkers  = 8
)

// Retry outcomes, also used as metric label values.
const (
	RetryClassified   = "classified"
	RetryNoLabel      = "no_label"
	RetryProviderFail = "provider_error"
)

// Recorder receives per-batch and per-retry outcomes.
type Recorder interface {
	ObserveBatch(outcome string, size int)
	ObserveRetry(outcome string)
}

type Options struct {
	BatchSize   int
	Concurrency int
	Logger      *slog.Logger
	Recorder    Recorder
}

// Pipeline is the reconciliation loop: batched classification followed by
// one individual retry per residual review.
type Pipeline struct {
	classifier  Classifier
	batchSize   int
	concurrency int
	logger      *slog.Logger
	recorder    Recorder
}

// Accumulator carries the running tally and the pending unclassified set.
type Accumulator struct {
	Tally   domain.Tally
	Pending []domain.Review
}

func NewPipeline(classifier Classifier, opts Options) *Pipeline {
	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		classifier:  classifier,
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      logger,
		recorder:    opts.Recorder,
	}
}

func (p *Pipeline) BatchSize() int {
	return p.batchSize
}

// Partition slices reviews into contiguous batches; the last may be shorter.
func Partition(reviews []domain.Review, size int) [][]domain.Review {
	if size < 1 {
		size = DefaultBatchSize
	}
	var batches [][]domain.Review
	for start := 0; start < len(reviews); start += size {
		end := start + size
		if end > len(reviews) {
			end = len(reviews)
		}
		batches = append(batches, reviews[start:end])
	}
	return batches
}

// Run classifies every review. A cancelled context aborts the run with no
// partial result.
func (p *Pipeline) Run(ctx context.Context, reviews []domain.Review) (Accumulator, error) {
	batches := Partition(reviews, p.batchSize)

	outcomes, err := p.classifyBatches(ctx, batches)
	if err != nil {
		return Accumulator{}, err
	}

	var acc Accumulator
	for _, out := range outcomes {
		acc.Tally.Merge(out.Tally)
		acc.Pending = append(acc.Pending, out.Unclassified...)
	}

	if len(acc.Pending) > 0 {
		p.logger.Info("retrying unclassified reviews individually", slog.Int("pending", len(acc.Pending)))
	}
	return p.retryPending(ctx, acc)
}

func (p *Pipeline) classifyBatches(ctx context.Context, batches [][]domain.Review) ([]BatchOutcome, error) {
	outcomes := make([]BatchOutcome, len(batches))

	limit := batchConcurrencyLimit(len(batches), p.concurrency)
	if limit == 1 {
		for i, batch := range batches {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			outcomes[i] = p.classifyBatch(ctx, i, batch)
		}
		return outcomes, nil
	}

	// Outcomes are stored by index so the merge order matches sequential mode.
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
dispatch:
	for i, batch := range batches {
		if ctx.Err() != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}
		wg.Add(1)
		go func(idx int, batch []domain.Review) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[idx] = p.classifyBatch(ctx, idx, batch)
		}(i, batch)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func batchConcurrencyLimit(total, configured int) int {
	limit := configured
	if limit > maxBatchWorkers {
		limit = maxBatchWorkers
	}
	if total < limit {
		limit = total
	}
	if limit < 1 {
		return 1
	}
	return limit
}

func (p *Pipeline) classifyBatch(ctx context.Context, idx int, batch []domain.Review) BatchOutcome {
	out := ClassifyBatch(ctx, p.classifier, batch)

	attrs := []any{
		slog.Int("batch", idx+1),
		slog.Int("size", len(batch)),
		slog.String("outcome", out.Status),
		slog.Int("parsed", len(out.Labels)),
		slog.Int("unclassified", len(out.Unclassified)),
	}
	switch out.Status {
	case BatchProviderError, BatchParseError:
		p.logger.Warn("batch deferred", append(attrs, slog.String("error", out.Err.Error()))...)
	case BatchNoSummary:
		p.logger.Warn("batch deferred: no summary block", attrs...)
	default:
		p.logger.Info("batch classified", attrs...)
	}
	if out.Response != "" {
		p.logger.Debug("batch response", slog.Int("batch", idx+1), slog.String("response", out.Response))
	}
	if out.SummaryMismatch() {
		p.logger.Warn("batch summary disagrees with per-item labels",
			slog.Int("batch", idx+1),
			slog.Int("summary_total", out.Summary.Total()),
			slog.Int("parsed", len(out.Labels)))
	}

	if p.recorder != nil {
		p.recorder.ObserveBatch(out.Status, len(batch))
	}
	return out
}

// retryPending makes exactly one individual attempt per pending review,
// iterating over a snapshot. Failures leave the review pending.
func (p *Pipeline) retryPending(ctx context.Context, acc Accumulator) (Accumulator, error) {
	snapshot := cloneReviews(acc.Pending)
	remaining := make([]domain.Review, 0, len(snapshot))

	for _, review := range snapshot {
		if err := ctx.Err(); err != nil {
			return Accumulator{}, err
		}

		label, outcome, err := p.retryReview(ctx, review)
		if p.recorder != nil {
			p.recorder.ObserveRetry(outcome)
		}
		switch outcome {
		case RetryClassified:
			acc.Tally.Add(label, 1)
			p.logger.Info("review classified on retry", slog.Int("position", review.Position), slog.String("label", string(label)))
		case RetryProviderFail:
			remaining = append(remaining, review)
			p.logger.Warn("review retry failed", slog.Int("position", review.Position), slog.String("error", err.Error()))
		default:
			remaining = append(remaining, review)
			p.logger.Info("review left unclassified", slog.Int("position", review.Position))
		}
	}

	// A retry interrupted by cancellation surfaces as a provider failure, so
	// the loop can finish without noticing.
	if err := ctx.Err(); err != nil {
		return Accumulator{}, err
	}
	acc.Pending = remaining
	return acc, nil
}

func (p *Pipeline) retryReview(ctx context.Context, review domain.Review) (domain.Label, string, error) {
	response, err := p.classifier.Classify(ctx, BuildSingleReviewPrompt(review))
	if err != nil {
		var pe *domain.ProviderError
		if !errors.As(err, &pe) {
			err = &domain.ProviderError{Provider: "unknown", Err: err}
		}
		return "", RetryProviderFail, err
	}
	label, ok := ParseSingleResponse(response)
	if !ok {
		return "", RetryNoLabel, nil
	}
	return label, RetryClassified, nil
}

// Analyze runs the pipeline over texts and aggregates the result.
func (p *Pipeline) Analyze(ctx context.Context, texts []string) (domain.AnalysisResult, error) {
	reviews := domain.NewReviews(texts)
	p.logger.Info("analyzing reviews", slog.Int("reviews", len(reviews)), slog.Int("batch_size", p.batchSize))

	acc, err := p.Run(ctx, reviews)
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	result := Aggregate(acc.Tally, len(reviews), acc.Pending)
	p.logger.Info("analysis complete",
		slog.Int("positive", result.Counts.Positive),
		slog.Int("negative", result.Counts.Negative),
		slog.Int("neutral", result.Counts.Neutral),
		slog.Int("unclassified", result.Unclassified))
	return result, nil
}
