package domain

import (
	"strings"
	"time"
)

type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)

// Labels is the closed label vocabulary in prompt order.
var Labels = []Label{Positive, Negative, Neutral}

// ParseLabel matches s against the vocabulary, exact word, case-insensitive.
func ParseLabel(s string) (Label, bool) {
	switch Label(strings.ToLower(strings.TrimSpace(s))) {
	case Positive:
		return Positive, true
	case Negative:
		return Negative, true
	case Neutral:
		return Neutral, true
	default:
		return "", false
	}
}

// Title returns the capitalized label word used in prompts and summaries.
func (l Label) Title() string {
	if l == "" {
		return ""
	}
	return strings.ToUpper(string(l[:1])) + string(l[1:])
}

type Review struct {
	Position int
	Text     string
}

// NewReviews assigns input positions to texts.
func NewReviews(texts []string) []Review {
	reviews := make([]Review, len(texts))
	for i, text := range texts {
		reviews[i] = Review{Position: i, Text: text}
	}
	return reviews
}

func ReviewTexts(reviews []Review) []string {
	out := make([]string, len(reviews))
	for i, r := range reviews {
		out[i] = r.Text
	}
	return out
}

func ReviewPositions(reviews []Review) []int {
	out := make([]int, len(reviews))
	for i, r := range reviews {
		out[i] = r.Position
	}
	return out
}

type Tally struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

func (t *Tally) Add(label Label, n int) {
	switch label {
	case Positive:
		t.Positive += n
	case Negative:
		t.Negative += n
	case Neutral:
		t.Neutral += n
	}
}

func (t *Tally) Merge(other Tally) {
	t.Positive += other.Positive
	t.Negative += other.Negative
	t.Neutral += other.Neutral
}

func (t Tally) Get(label Label) int {
	switch label {
	case Positive:
		return t.Positive
	case Negative:
		return t.Negative
	case Neutral:
		return t.Neutral
	default:
		return 0
	}
}

func (t Tally) Total() int {
	return t.Positive + t.Negative + t.Neutral
}

type Proportions struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

func (p Proportions) Get(label Label) float64 {
	switch label {
	case Positive:
		return p.Positive
	case Negative:
		return p.Negative
	case Neutral:
		return p.Neutral
	default:
		return 0
	}
}

type AnalysisResult struct {
	Counts              Tally       `json:"counts"`
	Proportions         Proportions `json:"proportions"`
	TotalReviews        int         `json:"total_reviews"`
	Unclassified        int         `json:"unclassified"`
	UnclassifiedReviews []string    `json:"unclassified_reviews"`

	// UnclassifiedPositions holds the input position of each entry in
	// UnclassifiedReviews. It is persisted with run history, not served.
	UnclassifiedPositions []int `json:"-"`
}

const (
	OriginUpload = "upload"
	OriginInbox  = "inbox"
)

type AnalysisRun struct {
	ID        int64          `json:"id"`
	Source    string         `json:"source"`
	Origin    string         `json:"origin"`
	Provider  string         `json:"provider"`
	Model     string         `json:"model"`
	BatchSize int            `json:"batch_size"`
	Duration  time.Duration  `json:"duration_ns"`
	CreatedAt time.Time      `json:"created_at"`
	Result    AnalysisResult `json:"result"`
}
