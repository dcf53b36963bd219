package out_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	adapterout "focuslog/internal/modules/tracker/adapter/out"
	"focuslog/internal/modules/tracker/domain"
	apperrors "focuslog/internal/platform/errors"
)

func openSQLite(t *testing.T) *adapterout.SQLiteStore {
	t.Helper()
	store, err := adapterout.NewSQLiteStore(filepath.Join(t.TempDir(), "data", "focuslog.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestSQLiteStoreLogLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openSQLite(t)
	loc := time.FixedZone("CET", 3600)
	start := time.Date(2026, 3, 1, 13, 0, 0, 0, loc)
	a := domain.NewProgram("s1", "/usr/bin/code", "code", "main.go", start)

	if _, err := store.FindLogByStart(ctx, a.Identity, start); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found before insert, got %v", err)
	}
	id, err := store.InsertLog(ctx, domain.NewSessionLog(domain.FamilyProgram, a, "code", start))
	if err != nil {
		t.Fatalf("insert log: %v", err)
	}
	found, err := store.FindLogByStart(ctx, a.Identity, start)
	if err != nil {
		t.Fatalf("find log: %v", err)
	}
	if found.ID != id || !found.EndTime.Equal(start) || found.DurationSeconds != 0 {
		t.Fatalf("unexpected seeded log %+v", found)
	}
	if found.GatheringDate != "2026-03-01" || found.Detail != "main.go" {
		t.Fatalf("unexpected log fields %+v", found)
	}

	end := start.Add(27 * time.Second)
	if err := store.UpdateLogTail(ctx, id, end, 27); err != nil {
		t.Fatalf("update tail: %v", err)
	}
	logs, err := store.ListLogs(ctx, "2026-03-01")
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 || !logs[0].EndTime.Equal(end) || logs[0].DurationSeconds != 27 {
		t.Fatalf("unexpected logs %+v", logs)
	}
	if logs[0].EndLocal() != "2026-03-01T13:00:27" {
		t.Fatalf("unexpected end local %q", logs[0].EndLocal())
	}

	if err := store.UpdateLogTail(ctx, id+100, end, 1); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found for missing row, got %v", err)
	}
	if err := store.UpdateLogTail(ctx, id, end, -1); !errors.Is(err, apperrors.ErrNegativeDuration) {
		t.Fatalf("expected negative duration, got %v", err)
	}
}

func TestSQLiteStoreFamiliesAreIsolated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openSQLite(t)
	domains := store.ForFamily(domain.FamilyDomain)
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	a := domain.NewBrowserDomain("s1", "GitHub.com", "PRs", start)

	if _, err := domains.InsertLog(ctx, domain.NewSessionLog(domain.FamilyDomain, a, a.DisplayName, start)); err != nil {
		t.Fatalf("insert domain log: %v", err)
	}
	if _, err := store.FindLogByStart(ctx, "github.com", start); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("program family must not see domain rows, got %v", err)
	}
	if _, err := domains.FindLogByStart(ctx, "github.com", start); err != nil {
		t.Fatalf("find domain log: %v", err)
	}
	if domains.Family() != domain.FamilyDomain || store.Family() != domain.FamilyProgram {
		t.Fatalf("unexpected families %s %s", domains.Family(), store.Family())
	}
}

func TestSQLiteStoreSummaryIsUniqueAndCapped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openSQLite(t)
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	a := domain.NewProgram("s1", "a", "a", "", start)
	summary := domain.NewDailySummary(domain.FamilyProgram, a, "a", start)

	if err := store.IncrementSummary(ctx, "a", "2026-03-01", 0.5); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found before insert, got %v", err)
	}
	if err := store.InsertSummary(ctx, summary); err != nil {
		t.Fatalf("insert summary: %v", err)
	}
	if err := store.IncrementSummary(ctx, "a", "2026-03-01", 1.5); err != nil {
		t.Fatalf("increment: %v", err)
	}
	// A second insert for the same day leaves the accrued hours alone.
	if err := store.InsertSummary(ctx, summary); err != nil {
		t.Fatalf("reinsert summary: %v", err)
	}
	got, err := store.FindSummary(ctx, "a", "2026-03-01")
	if err != nil {
		t.Fatalf("find summary: %v", err)
	}
	if math.Abs(got.HoursSpent-1.5) > 1e-9 {
		t.Fatalf("expected 1.5h, got %f", got.HoursSpent)
	}

	if err := store.IncrementSummary(ctx, "a", "2026-03-01", 30); err != nil {
		t.Fatalf("increment past cap: %v", err)
	}
	rows, err := store.ListSummaries(ctx, "2026-03-01")
	if err != nil {
		t.Fatalf("list summaries: %v", err)
	}
	if len(rows) != 1 || rows[0].HoursSpent != domain.MaxHoursPerDay {
		t.Fatalf("expected one capped row, got %+v", rows)
	}
}

func TestSQLiteStoreRenamesPlaceholderVideoRows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openSQLite(t)
	videos := store.ForFamily(domain.FamilyVideo)
	const placeholder = "Unknown Media Title"
	start := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	a := domain.NewBrowserDomain("s1", "netflix.com", "", start).WithVideo(domain.VideoInfo{Platform: "netflix", MediaID: "X"})

	if _, err := videos.FindTitledName(ctx, "netflix", "X", placeholder); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected no titled name, got %v", err)
	}
	if _, err := videos.InsertLog(ctx, domain.NewSessionLog(domain.FamilyVideo, a, placeholder, start)); err != nil {
		t.Fatalf("insert video log: %v", err)
	}
	if err := videos.InsertSummary(ctx, domain.NewDailySummary(domain.FamilyVideo, a, placeholder, start)); err != nil {
		t.Fatalf("insert video summary: %v", err)
	}

	logs, err := videos.RenamePlaceholderLogs(ctx, "netflix", "X", placeholder, "Hilda S1E2")
	if err != nil || logs != 1 {
		t.Fatalf("rename logs: n=%d err=%v", logs, err)
	}
	summaries, err := videos.RenamePlaceholderSummaries(ctx, "netflix", "X", placeholder, "Hilda S1E2")
	if err != nil || summaries != 1 {
		t.Fatalf("rename summaries: n=%d err=%v", summaries, err)
	}
	name, err := videos.FindTitledName(ctx, "netflix", "X", placeholder)
	if err != nil || name != "Hilda S1E2" {
		t.Fatalf("expected revealed title, got %q err=%v", name, err)
	}
}

func TestSQLiteStoreMysteriesAndHeartbeat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openSQLite(t)
	base := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	if err := store.UpsertMystery(ctx, "netflix", "X", base); err != nil {
		t.Fatalf("upsert X: %v", err)
	}
	if err := store.UpsertMystery(ctx, "youtube", "Y", base.Add(time.Minute)); err != nil {
		t.Fatalf("upsert Y: %v", err)
	}
	if err := store.UpsertMystery(ctx, "netflix", "X", base.Add(2*time.Minute)); err != nil {
		t.Fatalf("re-upsert X: %v", err)
	}
	recent, err := store.RecentMysteries(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].MediaID != "X" || !recent[0].FirstSeen.Equal(base) {
		t.Fatalf("unexpected recent mysteries %+v", recent)
	}
	if err := store.DeleteMystery(ctx, "netflix", "X"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.FindMystery(ctx, "netflix", "X"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected deleted mystery, got %v", err)
	}

	latest, err := store.LatestHeartbeat(ctx)
	if err != nil || !latest.IsZero() {
		t.Fatalf("expected zero heartbeat, got %s err=%v", latest, err)
	}
	for _, at := range []time.Time{base, base.Add(10 * time.Second)} {
		if err := store.RecordHeartbeat(ctx, at); err != nil {
			t.Fatalf("record heartbeat: %v", err)
		}
	}
	latest, err = store.LatestHeartbeat(ctx)
	if err != nil || !latest.Equal(base.Add(10*time.Second)) {
		t.Fatalf("expected latest heartbeat, got %s err=%v", latest, err)
	}
}
