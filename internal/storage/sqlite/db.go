package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"reviewsentiment/internal/domain"
	"reviewsentiment/internal/sentiment"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS analysis_runs (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		source        TEXT NOT NULL,
		origin        TEXT NOT NULL DEFAULT 'upload',
		provider      TEXT DEFAULT '',
		model         TEXT DEFAULT '',
		batch_size    INTEGER NOT NULL DEFAULT 10,
		total_reviews INTEGER NOT NULL,
		positive      INTEGER NOT NULL DEFAULT 0,
		negative      INTEGER NOT NULL DEFAULT 0,
		neutral       INTEGER NOT NULL DEFAULT 0,
		unclassified  INTEGER NOT NULL DEFAULT 0,
		duration_ms   INTEGER NOT NULL DEFAULT 0,
		created_at    DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs(created_at);

	CREATE TABLE IF NOT EXISTS unclassified_reviews (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id   INTEGER NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		text     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_unclassified_run ON unclassified_reviews(run_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InsertAnalysisRun stores the run and its unclassified texts in one
// transaction and returns the new run ID.
func InsertAnalysisRun(ctx context.Context, db *sql.DB, run domain.AnalysisRun) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	counts := run.Result.Counts
	res, err := tx.ExecContext(ctx,
		`INSERT INTO analysis_runs
		 (source, origin, provider, model, batch_size, total_reviews, positive, negative, neutral, unclassified, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Source, run.Origin, run.Provider, run.Model, run.BatchSize,
		run.Result.TotalReviews, counts.Positive, counts.Negative, counts.Neutral,
		run.Result.Unclassified, run.Duration.Milliseconds(), createdAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(run.Result.UnclassifiedReviews) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO unclassified_reviews (run_id, position, text) VALUES (?, ?, ?)`,
		)
		if err != nil {
			return 0, err
		}
		defer stmt.Close()

		positions := run.Result.UnclassifiedPositions
		for i, text := range run.Result.UnclassifiedReviews {
			position := i
			if len(positions) == len(run.Result.UnclassifiedReviews) {
				position = positions[i]
			}
			if _, err := stmt.ExecContext(ctx, id, position, text); err != nil {
				return 0, fmt.Errorf("inserting unclassified review: %w", err)
			}
		}
	}

	return id, tx.Commit()
}

// GetRecentRuns returns up to limit runs, newest first. Unclassified texts
// are not loaded; only their count is set.
func GetRecentRuns(ctx context.Context, db *sql.DB, limit int) ([]domain.AnalysisRun, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, source, origin, provider, model, batch_size, total_reviews,
		        positive, negative, neutral, unclassified, duration_ms, created_at
		 FROM analysis_runs ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []domain.AnalysisRun{}
	for rows.Next() {
		run, unclassified, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		run.Result = sentiment.Aggregate(run.Result.Counts, run.Result.TotalReviews, nil)
		run.Result.Unclassified = unclassified
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetAnalysisRun loads one run with its unclassified texts. A missing ID
// returns sql.ErrNoRows.
func GetAnalysisRun(ctx context.Context, db *sql.DB, id int64) (domain.AnalysisRun, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, source, origin, provider, model, batch_size, total_reviews,
		        positive, negative, neutral, unclassified, duration_ms, created_at
		 FROM analysis_runs WHERE id = ?`,
		id,
	)
	run, _, err := scanRun(row)
	if err != nil {
		return domain.AnalysisRun{}, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT position, text FROM unclassified_reviews WHERE run_id = ? ORDER BY position`,
		id,
	)
	if err != nil {
		return domain.AnalysisRun{}, err
	}
	defer rows.Close()

	var unclassified []domain.Review
	for rows.Next() {
		var r domain.Review
		if err := rows.Scan(&r.Position, &r.Text); err != nil {
			return domain.AnalysisRun{}, err
		}
		unclassified = append(unclassified, r)
	}
	if err := rows.Err(); err != nil {
		return domain.AnalysisRun{}, err
	}

	run.Result = sentiment.Aggregate(run.Result.Counts, run.Result.TotalReviews, unclassified)
	return run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (domain.AnalysisRun, int, error) {
	var (
		run          domain.AnalysisRun
		unclassified int
		durationMS   int64
	)
	err := s.Scan(
		&run.ID, &run.Source, &run.Origin, &run.Provider, &run.Model, &run.BatchSize,
		&run.Result.TotalReviews, &run.Result.Counts.Positive, &run.Result.Counts.Negative,
		&run.Result.Counts.Neutral, &unclassified, &durationMS, &run.CreatedAt,
	)
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, unclassified, err
}
