package history_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/raysh454/lumen/internal/audit"
	"github.com/raysh454/lumen/internal/contrast"
	"github.com/raysh454/lumen/internal/history"
	"github.com/raysh454/lumen/internal/report"
	"github.com/raysh454/lumen/internal/scanner"
)

func openTestStore(t *testing.T) *history.Store {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	s, err := history.NewStore(db, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeReport(id string, started time.Time, failing int) *report.Report {
	var checks []contrast.Check
	for i := 0; i < failing; i++ {
		checks = append(checks, contrast.Check{Selector: "p", Foreground: contrast.RGB(149, 149, 149), Background: contrast.White, Ratio: 2.99, Required: 4.5})
	}
	checks = append(checks, contrast.Check{Selector: "h1", Foreground: contrast.Black, Background: contrast.White, Ratio: 21, Required: 3, LargeText: true, Passes: true})

	pages := []audit.PageResult{
		{
			Name: "home", URL: "http://app.test/", Status: audit.PageAudited,
			Violations:         []scanner.Violation{{ID: "color-contrast", Impact: "serious", NodeCount: 1}},
			ContrastViolations: []scanner.Violation{{ID: "color-contrast", Impact: "serious", NodeCount: 1}},
			Checks:             checks,
			StartedAt:          started, FinishedAt: started.Add(time.Second),
		},
		{
			Name: "down", URL: "http://app.test/down", Status: audit.PageNavigationFailed,
			Errors:             []audit.PageError{{Kind: audit.KindNavigationFailed, Message: "timeout"}},
			Violations:         []scanner.Violation{},
			ContrastViolations: []scanner.Violation{},
			Checks:             []contrast.Check{},
			StartedAt:          started, FinishedAt: started.Add(time.Second),
		},
	}
	return report.Aggregate(id, started, started.Add(time.Minute), pages)
}

func TestStore_SaveListGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	if err := s.SaveReport(ctx, makeReport("run-a", t0, 2)); err != nil {
		t.Fatalf("SaveReport a: %v", err)
	}
	if err := s.SaveReport(ctx, makeReport("run-b", t0.Add(time.Hour), 1)); err != nil {
		t.Fatalf("SaveReport b: %v", err)
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs got %d", len(runs))
	}
	if runs[0].ID != "run-b" {
		t.Fatalf("expected newest run first, got %s", runs[0].ID)
	}
	if runs[1].Totals.TotalChecksFailed != 2 || runs[1].Totals.PagesFailed != 1 {
		t.Fatalf("unexpected totals for run-a: %+v", runs[1].Totals)
	}
	if !runs[1].StartedAt.Equal(t0) {
		t.Fatalf("started_at round trip: want %v got %v", t0, runs[1].StartedAt)
	}

	limited, err := s.ListRuns(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("ListRuns limit: %v %d", err, len(limited))
	}

	got, err := s.GetReport(ctx, "run-a")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.Totals != runs[1].Totals {
		t.Fatalf("report totals mismatch: %+v vs %+v", got.Totals, runs[1].Totals)
	}
	if len(got.Pages) != 2 || got.Pages[0].Checks[0].Foreground != contrast.RGB(149, 149, 149) {
		t.Fatalf("pages not restored: %+v", got.Pages)
	}

	latest, err := s.GetReport(ctx, history.Latest)
	if err != nil {
		t.Fatalf("GetReport latest: %v", err)
	}
	if latest.RunID != "run-b" {
		t.Fatalf("latest should be run-b, got %s", latest.RunID)
	}
}

func TestStore_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.GetReport(ctx, "nope"); !errors.Is(err, history.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := s.GetReport(ctx, history.Latest); !errors.Is(err, history.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound for latest on empty store, got %v", err)
	}
	if err := s.DeleteRun(ctx, "nope"); !errors.Is(err, history.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound on delete, got %v", err)
	}
}

func TestStore_SaveTwiceReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	if err := s.SaveReport(ctx, makeReport("run", t0, 3)); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if err := s.Persist(ctx, makeReport("run", t0, 0)); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	runs, _ := s.ListRuns(ctx, 0)
	if len(runs) != 1 || runs[0].Totals.TotalChecksFailed != 0 {
		t.Fatalf("expected replaced run, got %+v", runs)
	}
	trend, err := s.PageHistory(ctx, "home", 0)
	if err != nil {
		t.Fatalf("PageHistory: %v", err)
	}
	if len(trend) != 1 {
		t.Fatalf("expected one page row after replace, got %d", len(trend))
	}
}

func TestStore_PageHistoryAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"r1", "r2", "r3"} {
		if err := s.SaveReport(ctx, makeReport(id, t0.Add(time.Duration(i)*time.Hour), 3-i)); err != nil {
			t.Fatalf("SaveReport %s: %v", id, err)
		}
	}

	trend, err := s.PageHistory(ctx, "home", 0)
	if err != nil {
		t.Fatalf("PageHistory: %v", err)
	}
	if len(trend) != 3 || trend[0].RunID != "r3" || trend[0].Counts.ChecksFailed != 1 || trend[2].Counts.ChecksFailed != 3 {
		t.Fatalf("unexpected trend: %+v", trend)
	}

	down, _ := s.PageHistory(ctx, "down", 1)
	if len(down) != 1 || down[0].Status != string(audit.PageNavigationFailed) {
		t.Fatalf("unexpected down trend: %+v", down)
	}

	if err := s.DeleteRun(ctx, "r3"); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	id, err := s.ResolveRunID(ctx, history.Latest)
	if err != nil || id != "r2" {
		t.Fatalf("latest after delete: %q %v", id, err)
	}
	trend, _ = s.PageHistory(ctx, "home", 0)
	if len(trend) != 2 {
		t.Fatalf("page rows not removed with run: %d", len(trend))
	}
}

func TestStore_RejectsMissingRunID(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveReport(context.Background(), &report.Report{}); err == nil {
		t.Fatal("expected error for report without run id")
	}
	if err := s.Persist(context.Background(), nil); !errors.Is(err, report.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := history.Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if _, err := s.ListRuns(context.Background(), 0); err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
}
