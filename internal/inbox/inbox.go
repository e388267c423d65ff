package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"reviewsentiment/internal/domain"
	"reviewsentiment/internal/spreadsheet"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

type FileAnalyzer interface {
	AnalyzeFile(ctx context.Context, origin, name string, r io.Reader) (domain.AnalysisRun, error)
}

// ScanResult tracks what one pass over the inbox did.
type ScanResult struct {
	Processed int
	Failed    int
	Skipped   int
	RunIDs    []int64
	Errors    []string
}

// Scanner analyzes spreadsheets dropped into a directory.
type Scanner struct {
	dir      string
	analyzer FileAnalyzer
	logger   *slog.Logger
	now      func() time.Time
}

func NewScanner(dir string, analyzer FileAnalyzer, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		dir:      dir,
		analyzer: analyzer,
		logger:   logger.With(slog.String("component", "inbox"), slog.String("dir", dir)),
		now:      time.Now,
	}
}

// Run wakes on every schedule tick and scans the inbox until ctx is done.
func (s *Scanner) Run(ctx context.Context, sched cron.Schedule) {
	for {
		now := s.now()
		next := sched.Next(now)
		if next.IsZero() {
			s.logger.Error("inbox schedule never fires, scanner not started")
			return
		}
		wait := next.Sub(now)
		s.logger.Debug("next inbox scan", slog.Time("at", next), slog.Duration("in", wait.Round(time.Second)))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("inbox scanner stopped")
			return
		case <-timer.C:
		}

		result, err := s.ScanOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("inbox scan failed", slog.Any("error", err))
		}
		if result.Processed+result.Failed > 0 {
			s.logger.Info("inbox scan complete", slog.String("summary", FormatScanSummary(result)))
		}
	}
}

// ScanOnce analyzes every csv and xlsx file currently in the inbox, in name
// order. Each file is moved to processed/ or failed/ afterwards. A file whose
// run was interrupted by ctx stays in place for the next scan.
func (s *Scanner) ScanOnce(ctx context.Context) (ScanResult, error) {
	var result ScanResult

	for _, sub := range []string{processedDir, failedDir} {
		if err := os.MkdirAll(filepath.Join(s.dir, sub), 0o755); err != nil {
			return result, fmt.Errorf("creating %s dir: %w", sub, err)
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return result, fmt.Errorf("reading inbox: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if _, err := spreadsheet.Extension(name); err != nil {
			result.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		run, err := s.analyzeFile(ctx, name)
		if err != nil && ctx.Err() != nil {
			return result, ctx.Err()
		}

		dest := processedDir
		if err != nil {
			dest = failedDir
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
			s.logger.Warn("inbox file failed", slog.String("file", name), slog.Any("error", err))
		} else {
			result.Processed++
			if run.ID > 0 {
				result.RunIDs = append(result.RunIDs, run.ID)
			}
		}

		if moveErr := s.move(name, dest); moveErr != nil {
			return result, moveErr
		}
	}
	return result, nil
}

func (s *Scanner) analyzeFile(ctx context.Context, name string) (domain.AnalysisRun, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return domain.AnalysisRun{}, err
	}
	defer f.Close()
	return s.analyzer.AnalyzeFile(ctx, domain.OriginInbox, name, f)
}

// move files name under sub, prefixed with a timestamp so repeated drops of
// the same filename do not overwrite each other.
func (s *Scanner) move(name, sub string) error {
	target := filepath.Join(s.dir, sub, s.now().UTC().Format("20060102T150405")+"-"+name)
	if err := os.Rename(filepath.Join(s.dir, name), target); err != nil {
		return fmt.Errorf("moving %s to %s: %w", name, sub, err)
	}
	return nil
}

func FormatScanSummary(result ScanResult) string {
	msg := fmt.Sprintf("%d processed, %d failed", result.Processed, result.Failed)
	if result.Skipped > 0 {
		msg += fmt.Sprintf(", %d skipped", result.Skipped)
	}
	if len(result.Errors) > 0 {
		msg += fmt.Sprintf("\nErrors:\n%s", strings.Join(result.Errors, "\n"))
	}
	return msg
}
