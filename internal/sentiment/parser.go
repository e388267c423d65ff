package sentiment

import (
	"errors"
	"strconv"
	"strings"

	"reviewsentiment/internal/domain"
)

var errNegativeCount = errors.New("count must not be negative")

// ParseBatchResponse extracts the ordered per-item labels and the optional
// summary block from a batch response. Labels are capped at expectedCount.
// A nil summary means no "Positive:" line was found.
func ParseBatchResponse(text string, expectedCount int) ([]domain.Label, *domain.Tally, error) {
	lines := strings.Split(strings.TrimSpace(text), "\n")

	var labels []domain.Label
	for _, line := range lines {
		if label, ok := parseItemLine(line); ok {
			labels = append(labels, label)
		}
	}
	if expectedCount >= 0 && len(labels) > expectedCount {
		labels = labels[:expectedCount]
	}

	summary, err := parseSummary(lines)
	if err != nil {
		return labels, nil, err
	}
	return labels, summary, nil
}

// parseItemLine accepts "<digits><delim> <label>" where delim is '.', ')' or ':'.
func parseItemLine(line string) (domain.Label, bool) {
	line = strings.TrimSpace(line)
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) {
		return "", false
	}
	switch line[i] {
	case '.', ')', ':':
	default:
		return "", false
	}
	return domain.ParseLabel(line[i+1:])
}

func parseSummary(lines []string) (*domain.Tally, error) {
	start := -1
	for i, line := range lines {
		if label, ok := summaryLabel(line); ok && label == domain.Positive {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, nil
	}

	counts := make(map[domain.Label]int, len(domain.Labels))
	for _, line := range lines[start:] {
		label, ok := summaryLabel(line)
		if !ok {
			continue
		}
		lower := strings.ToLower(strings.TrimSpace(line))
		value := strings.TrimSpace(lower[len(label)+1:])
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, &domain.ParseError{Line: strings.TrimSpace(line), Err: err}
		}
		if n < 0 {
			return nil, &domain.ParseError{Line: strings.TrimSpace(line), Err: errNegativeCount}
		}
		counts[label] = n
	}

	var tally domain.Tally
	for label, n := range counts {
		tally.Add(label, n)
	}
	return &tally, nil
}

// summaryLabel reports which "<label>:" prefix the line carries, if any.
func summaryLabel(line string) (domain.Label, bool) {
	lower := strings.ToLower(strings.TrimSpace(line))
	for _, label := range domain.Labels {
		if strings.HasPrefix(lower, string(label)+":") {
			return label, true
		}
	}
	return "", false
}

// ParseSingleResponse returns a label only when the whole response is
// exactly one label word. Anything else is "no label", not an error.
func ParseSingleResponse(text string) (domain.Label, bool) {
	return domain.ParseLabel(text)
}
