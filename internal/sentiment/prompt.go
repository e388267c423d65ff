package sentiment

import (
	"fmt"
	"strings"

	"reviewsentiment/internal/domain"
)

var (
	batchInstruction = "Analyze the sentiment of each of the following reviews. " +
		"For each review, respond with ONLY " + labelChoices() + ", " +
		"one numbered line per review in the same order (e.g. \"1. " + domain.Positive.Title() + "\"). " +
		"After classifying all reviews, provide a summary count in the format:\n" +
		summaryTemplate() + "\n" +
		"Reviews:\n"

	singleInstruction = "Analyze the sentiment of the following review. " +
		"Respond with ONLY " + labelChoices() + ".\n\n" +
		"Review: "
)

// labelChoices renders the vocabulary as "'Positive', 'Negative', or 'Neutral'".
func labelChoices() string {
	quoted := make([]string, len(domain.Labels))
	for i, label := range domain.Labels {
		quoted[i] = "'" + label.Title() + "'"
	}
	last := len(quoted) - 1
	return strings.Join(quoted[:last], ", ") + ", or " + quoted[last]
}

func summaryTemplate() string {
	var b strings.Builder
	for _, label := range domain.Labels {
		b.WriteString(label.Title() + ": <count>\n")
	}
	return b.String()
}

// BuildBatchPrompt enumerates the batch as "1. <text>", "2. <text>", ... in
// input order after the classification and summary instructions. Each text
// is flattened to one line so embedded newlines cannot start a fake item.
func BuildBatchPrompt(batch []domain.Review) string {
	var b strings.Builder
	b.WriteString(batchInstruction)
	for i, review := range batch {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%d. %s", i+1, flatten(review.Text)))
	}
	return b.String()
}

func BuildSingleReviewPrompt(review domain.Review) string {
	return singleInstruction + review.Text
}

func flatten(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
