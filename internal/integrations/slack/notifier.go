package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"reviewsentiment/internal/domain"
)

const (
	maxUnclassifiedSamples = 5
	maxSampleRunes         = 120
)

// Notifier posts a short summary of every completed run to one channel.
type Notifier struct {
	api       *slack.Client
	channelID string
}

func NewNotifier(api *slack.Client, channelID string) *Notifier {
	return &Notifier{api: api, channelID: channelID}
}

func (n *Notifier) NotifyRun(ctx context.Context, run domain.AnalysisRun) error {
	_, ts, err := n.api.PostMessageContext(ctx, n.channelID, slack.MsgOptionText(FormatRunSummary(run), false))
	if err != nil {
		return fmt.Errorf("posting run summary to %s: %w", n.channelID, err)
	}
	slog.Debug("slack run summary posted", slog.String("channel", n.channelID), slog.String("ts", ts), slog.Int64("run_id", run.ID))
	return nil
}

// FormatRunSummary renders a run as Slack mrkdwn.
func FormatRunSummary(run domain.AnalysisRun) string {
	res := run.Result
	var b strings.Builder

	fmt.Fprintf(&b, "*Review sentiment* `%s` (%s", run.Source, run.Origin)
	if run.ID > 0 {
		fmt.Fprintf(&b, ", run #%d", run.ID)
	}
	b.WriteString(")\n")

	fmt.Fprintf(&b, "Reviews: %d", res.TotalReviews)
	for _, label := range domain.Labels {
		fmt.Fprintf(&b, " | %s: %d (%s)", label.Title(), res.Counts.Get(label), percent(res.Proportions.Get(label)))
	}
	fmt.Fprintf(&b, "\nUnclassified: %d", res.Unclassified)

	samples := res.UnclassifiedReviews
	if len(samples) > maxUnclassifiedSamples {
		samples = samples[:maxUnclassifiedSamples]
	}
	for _, text := range samples {
		b.WriteString("\n> ")
		b.WriteString(truncate(singleLine(text), maxSampleRunes))
	}
	if extra := len(res.UnclassifiedReviews) - len(samples); extra > 0 {
		fmt.Fprintf(&b, "\n_...and %d more_", extra)
	}
	return b.String()
}

func percent(p float64) string {
	return fmt.Sprintf("%.0f%%", p*100)
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
