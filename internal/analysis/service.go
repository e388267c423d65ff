package analysis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"reviewsentiment/internal/domain"
	"reviewsentiment/internal/metrics"
	"reviewsentiment/internal/spreadsheet"
	"reviewsentiment/internal/storage/sqlite"
)

// ErrHistoryDisabled is returned by the history lookups when no database is
// configured.
var ErrHistoryDisabled = errors.New("run history is disabled")

type Analyzer interface {
	Analyze(ctx context.Context, texts []string) (domain.AnalysisResult, error)
}

// Notifier announces a completed run.
type Notifier interface {
	NotifyRun(ctx context.Context, run domain.AnalysisRun) error
}

type RunObserver interface {
	ObserveRun(origin, status string)
	ObserveReviews(classified, unclassified int)
}

type Deps struct {
	Analyzer  Analyzer
	DB        *sql.DB
	Notifier  Notifier
	Observer  RunObserver
	Provider  string
	Model     string
	BatchSize int
	Logger    *slog.Logger
}

type Service struct {
	analyzer  Analyzer
	db        *sql.DB
	notifier  Notifier
	observer  RunObserver
	provider  string
	model     string
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		analyzer:  deps.Analyzer,
		db:        deps.DB,
		notifier:  deps.Notifier,
		observer:  deps.Observer,
		provider:  deps.Provider,
		model:     deps.Model,
		batchSize: deps.BatchSize,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) HistoryEnabled() bool {
	return s.db != nil
}

func (s *Service) Provider() string { return s.provider }

func (s *Service) Model() string { return s.model }

// AnalyzeFile reads the review column from a csv or xlsx stream and runs the
// reconciliation pipeline over it. Persistence and notification failures are
// logged and do not fail the run.
func (s *Service) AnalyzeFile(ctx context.Context, origin, name string, r io.Reader) (domain.AnalysisRun, error) {
	start := s.now()
	logger := s.logger.With(slog.String("source", name), slog.String("origin", origin))

	reviews, err := spreadsheet.ReadReviews(name, r)
	if err != nil {
		s.observeRun(origin, metrics.RunError)
		return domain.AnalysisRun{}, err
	}
	logger.Info("analysis started", slog.Int("reviews", len(reviews)))

	result, err := s.analyzer.Analyze(ctx, reviews)
	if err != nil {
		s.observeRun(origin, metrics.RunError)
		return domain.AnalysisRun{}, fmt.Errorf("analyzing %s: %w", name, err)
	}

	run := domain.AnalysisRun{
		Source:    name,
		Origin:    origin,
		Provider:  s.provider,
		Model:     s.model,
		BatchSize: s.batchSize,
		Duration:  s.now().Sub(start),
		CreatedAt: start,
		Result:    result,
	}
	s.observeRun(origin, metrics.RunSuccess)
	if s.observer != nil {
		s.observer.ObserveReviews(result.Counts.Total(), result.Unclassified)
	}
	logger.Info("analysis finished",
		slog.Int("total", result.TotalReviews),
		slog.Int("positive", result.Counts.Positive),
		slog.Int("negative", result.Counts.Negative),
		slog.Int("neutral", result.Counts.Neutral),
		slog.Int("unclassified", result.Unclassified),
		slog.Duration("duration", run.Duration))

	if s.db != nil {
		id, err := sqlite.InsertAnalysisRun(ctx, s.db, run)
		if err != nil {
			logger.Error("failed to persist run", slog.Any("error", err))
		} else {
			run.ID = id
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyRun(ctx, run); err != nil {
			logger.Warn("failed to notify run", slog.Any("error", err))
		}
	}

	return run, nil
}

func (s *Service) RecentRuns(ctx context.Context, limit int) ([]domain.AnalysisRun, error) {
	if s.db == nil {
		return nil, ErrHistoryDisabled
	}
	return sqlite.GetRecentRuns(ctx, s.db, limit)
}

// Run looks up one stored run. A missing ID returns sql.ErrNoRows.
func (s *Service) Run(ctx context.Context, id int64) (domain.AnalysisRun, error) {
	if s.db == nil {
		return domain.AnalysisRun{}, ErrHistoryDisabled
	}
	return sqlite.GetAnalysisRun(ctx, s.db, id)
}

func (s *Service) observeRun(origin, status string) {
	if s.observer != nil {
		s.observer.ObserveRun(origin, status)
	}
}
