package inbox

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/goleak"

	"reviewsentiment/internal/domain"
	"reviewsentiment/internal/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAnalyzer struct {
	mu      sync.Mutex
	calls   []string
	bodies  map[string]string
	failFor map[string]error
	nextID  int64
	onCall  func()
}

func (f *fakeAnalyzer) AnalyzeFile(ctx context.Context, origin, name string, r io.Reader) (domain.AnalysisRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if origin != domain.OriginInbox {
		return domain.AnalysisRun{}, errors.New("unexpected origin " + origin)
	}
	body, _ := io.ReadAll(r)
	if f.bodies == nil {
		f.bodies = map[string]string{}
	}
	f.bodies[name] = string(body)
	f.calls = append(f.calls, name)
	if f.onCall != nil {
		f.onCall()
	}
	if err := ctx.Err(); err != nil {
		return domain.AnalysisRun{}, err
	}
	if err := f.failFor[name]; err != nil {
		return domain.AnalysisRun{}, err
	}
	f.nextID++
	return domain.AnalysisRun{ID: f.nextID, Source: name, Origin: origin}, nil
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

func newTestScanner(dir string, analyzer FileAnalyzer) *Scanner {
	s := NewScanner(dir, analyzer, logging.New(io.Discard, "error"))
	s.now = func() time.Time { return time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC) }
	return s
}

func TestScanOnceMovesFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.csv", "review\ngood\n")
	writeFile(t, dir, "a.xlsx", "fake workbook")
	writeFile(t, dir, "bad.csv", "comment\nx\n")
	writeFile(t, dir, "notes.txt", "ignore me")
	writeFile(t, dir, ".uploading.csv", "review\npartial")

	analyzer := &fakeAnalyzer{failFor: map[string]error{
		"bad.csv": &domain.MissingColumnError{Column: "Review"},
	}}
	s := newTestScanner(dir, analyzer)

	result, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce failed: %v", err)
	}

	if got := strings.Join(analyzer.calls, ","); got != "a.xlsx,b.csv,bad.csv" {
		t.Fatalf("unexpected analysis order: %s", got)
	}
	if analyzer.bodies["b.csv"] != "review\ngood\n" {
		t.Fatalf("unexpected body for b.csv: %q", analyzer.bodies["b.csv"])
	}
	if result.Processed != 2 || result.Failed != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.RunIDs) != 2 {
		t.Fatalf("expected 2 run ids, got %v", result.RunIDs)
	}

	processed := listDir(t, filepath.Join(dir, processedDir))
	if strings.Join(processed, ",") != "20260504T103000-a.xlsx,20260504T103000-b.csv" {
		t.Fatalf("unexpected processed files: %v", processed)
	}
	failed := listDir(t, filepath.Join(dir, failedDir))
	if strings.Join(failed, ",") != "20260504T103000-bad.csv" {
		t.Fatalf("unexpected failed files: %v", failed)
	}
	remaining := listDir(t, dir)
	if strings.Join(remaining, ",") != ".uploading.csv,notes.txt" {
		t.Fatalf("unexpected remaining files: %v", remaining)
	}
}

func TestScanOnceEmptyInbox(t *testing.T) {
	s := newTestScanner(t.TempDir(), &fakeAnalyzer{})

	result, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce failed: %v", err)
	}
	if result.Processed != 0 || result.Failed != 0 {
		t.Fatalf("expected nothing processed, got %+v", result)
	}
}

func TestScanOnceMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	s := newTestScanner(dir, &fakeAnalyzer{})

	// The subdirectories are created on demand, so a missing inbox is created too.
	if _, err := s.ScanOnce(context.Background()); err != nil {
		t.Fatalf("ScanOnce failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, processedDir)); err != nil {
		t.Fatalf("expected processed dir: %v", err)
	}
}

func TestScanOnceCancelledLeavesFileInPlace(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "first.csv", "review\nx\n")
	writeFile(t, dir, "second.csv", "review\ny\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	analyzer := &fakeAnalyzer{onCall: cancel}
	s := newTestScanner(dir, analyzer)

	_, err := s.ScanOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if analyzer.callCount() != 1 {
		t.Fatalf("expected one analysis before cancellation, got %d", analyzer.callCount())
	}
	remaining := listDir(t, dir)
	if strings.Join(remaining, ",") != "first.csv,second.csv" {
		t.Fatalf("expected both files to stay in the inbox, got %v", remaining)
	}
}

type intervalSchedule time.Duration

func (d intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(time.Duration(d))
}

func TestRunScansOnScheduleAndStops(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tick.csv", "review\nx\n")

	analyzer := &fakeAnalyzer{}
	s := NewScanner(dir, analyzer, logging.New(io.Discard, "error"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx, intervalSchedule(10*time.Millisecond))
	}()

	deadline := time.After(5 * time.Second)
	for analyzer.callCount() == 0 {
		select {
		case <-deadline:
			cancel()
			<-done
			t.Fatal("scanner never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scanner did not stop after cancel")
	}
	if analyzer.callCount() != 1 {
		t.Fatalf("expected the file to be analyzed once, got %d", analyzer.callCount())
	}
}

func TestRunReturnsWhenScheduleNeverFires(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "waiting.csv", "review\nx\n")

	sched, err := cron.ParseStandard("0 0 30 2 *")
	if err != nil {
		t.Fatalf("parse schedule: %v", err)
	}
	analyzer := &fakeAnalyzer{}
	s := NewScanner(dir, analyzer, logging.New(io.Discard, "error"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(context.Background(), sched)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scanner kept running on a schedule with no next time")
	}
	if analyzer.callCount() != 0 {
		t.Fatalf("expected no scans, got %d", analyzer.callCount())
	}
}

func TestFormatScanSummary(t *testing.T) {
	got := FormatScanSummary(ScanResult{Processed: 2, Failed: 1, Skipped: 3, Errors: []string{"bad.csv: boom"}})
	want := "2 processed, 1 failed, 3 skipped\nErrors:\nbad.csv: boom"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
