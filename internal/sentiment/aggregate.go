package sentiment

import (
	"math"

	"reviewsentiment/internal/domain"
)

// Aggregate builds the final result. Proportions are over classified
// reviews only, so they need not sum to 1 when reviews stay unclassified.
func Aggregate(tally domain.Tally, totalReviews int, unclassified []domain.Review) domain.AnalysisResult {
	result := domain.AnalysisResult{
		Counts:              tally,
		TotalReviews:        totalReviews,
		Unclassified:        len(unclassified),
		UnclassifiedReviews: domain.ReviewTexts(unclassified),

		UnclassifiedPositions: domain.ReviewPositions(unclassified),
	}

	classified := tally.Total()
	if classified > 0 {
		result.Proportions = domain.Proportions{
			Positive: round2(float64(tally.Positive) / float64(classified)),
			Negative: round2(float64(tally.Negative) / float64(classified)),
			Neutral:  round2(float64(tally.Neutral) / float64(classified)),
		}
	}
	return result
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
