package sentiment

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"reviewsentiment/internal/domain"
)

func TestAggregate_Proportions(t *testing.T) {
	tally := domain.Tally{Positive: 2, Negative: 1, Neutral: 0}
	unclassified := []domain.Review{{Position: 3, Text: "???"}}

	result := Aggregate(tally, 4, unclassified)

	if result.Proportions.Positive != 0.67 || result.Proportions.Negative != 0.33 || result.Proportions.Neutral != 0 {
		t.Fatalf("unexpected proportions: %+v", result.Proportions)
	}
	if result.TotalReviews != 4 || result.Unclassified != 1 {
		t.Fatalf("unexpected totals: %+v", result)
	}
	if len(result.UnclassifiedReviews) != 1 || result.UnclassifiedReviews[0] != "???" {
		t.Fatalf("unexpected unclassified reviews: %v", result.UnclassifiedReviews)
	}
	if len(result.UnclassifiedPositions) != 1 || result.UnclassifiedPositions[0] != 3 {
		t.Fatalf("unexpected unclassified positions: %v", result.UnclassifiedPositions)
	}
}

func TestAggregate_NothingClassified(t *testing.T) {
	result := Aggregate(domain.Tally{}, 2, domain.NewReviews([]string{"a", "b"}))
	if result.Proportions != (domain.Proportions{}) {
		t.Fatalf("expected zero proportions, got %+v", result.Proportions)
	}
}

func TestAnalyze_EmptyInput(t *testing.T) {
	stub := &routedClassifier{batchFn: allPositive}
	pipeline := NewPipeline(stub, Options{Logger: quietLogger()})

	result, err := pipeline.Analyze(context.Background(), nil)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if result.TotalReviews != 0 || result.Counts.Total() != 0 || result.Unclassified != 0 {
		t.Fatalf("unexpected result for empty input: %+v", result)
	}
	if result.Proportions != (domain.Proportions{}) {
		t.Fatalf("expected zero proportions, got %+v", result.Proportions)
	}
	if len(stub.calls) != 0 {
		t.Fatalf("expected no classify calls for empty input")
	}

	body, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(body), `"unclassified_reviews":[]`) {
		t.Fatalf("expected empty JSON array for unclassified_reviews, got %s", body)
	}
}

func TestAnalyze_AccountingIdentity(t *testing.T) {
	tests := []struct {
		name   string
		texts  []string
		batch  func(string) (string, error)
		single map[string]string
	}{
		{
			name:  "all classified",
			texts: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"},
			batch: allPositive,
		},
		{
			name:  "truncated batch",
			texts: []string{"a", "b", "c"},
			batch: func(string) (string, error) {
				return "1. Positive\n2. Negative\nPositive: 1\nNegative: 1\nNeutral: 0", nil
			},
			single: map[string]string{"c": "Neutral"},
		},
		{
			name:  "no summary, partial retry",
			texts: []string{"a", "b", "c", "d"},
			batch: func(string) (string, error) {
				return "1. Positive", nil
			},
			single: map[string]string{"a": "positive", "c": "negative", "d": "meh"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &routedClassifier{batchFn: tt.batch, single: tt.single}
			pipeline := NewPipeline(stub, Options{BatchSize: 10, Logger: quietLogger()})

			result, err := pipeline.Analyze(context.Background(), tt.texts)
			if err != nil {
				t.Fatalf("Analyze returned error: %v", err)
			}
			if result.TotalReviews != len(tt.texts) {
				t.Fatalf("total_reviews = %d, want %d", result.TotalReviews, len(tt.texts))
			}
			if result.Counts.Total()+result.Unclassified != result.TotalReviews {
				t.Fatalf("accounting mismatch: counts=%+v unclassified=%d total=%d", result.Counts, result.Unclassified, result.TotalReviews)
			}
			if len(result.UnclassifiedReviews) != result.Unclassified {
				t.Fatalf("unclassified_reviews length %d != unclassified %d", len(result.UnclassifiedReviews), result.Unclassified)
			}
		})
	}
}

func TestSinglePromptRoundTrip(t *testing.T) {
	for _, label := range domain.Labels {
		review := domain.Review{Text: "some review"}
		echo := ClassifierFunc(func(context.Context, string) (string, error) {
			return label.Title(), nil
		})
		resp, err := echo.Classify(context.Background(), BuildSingleReviewPrompt(review))
		if err != nil {
			t.Fatalf("classify: %v", err)
		}
		got, ok := ParseSingleResponse(resp)
		if !ok || got != label {
			t.Fatalf("round trip for %s returned (%q, %v)", label, got, ok)
		}
	}
}
