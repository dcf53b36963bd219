package service_test

import (
	"context"
	"testing"
	"time"

	"focuslog/internal/modules/tracker/domain"
	"focuslog/internal/modules/tracker/service"
	"focuslog/internal/platform/logging"
)

func netflixTab(media, title string, start time.Time) domain.Activity {
	return domain.NewBrowserDomain("s-"+start.Format("1504"), "netflix.com", "", start).
		WithVideo(domain.VideoInfo{Platform: "netflix", MediaID: media, Title: title, PlayerState: domain.PlayerPlaying})
}

func TestMysteryRevealRenamesPlaceholderRows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, 10)

	if _, err := f.recorder.OpenSession(ctx, netflixTab("X", "", time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("open untitled: %v", err)
	}
	summary, err := f.videos.FindSummary(ctx, "netflix:X", "2026-03-01")
	if err != nil {
		t.Fatalf("video summary: %v", err)
	}
	if summary.Name != placeholder {
		t.Fatalf("expected placeholder name, got %q", summary.Name)
	}
	if ok, err := f.mysteries.IsMystery(ctx, "netflix", "X"); err != nil || !ok {
		t.Fatalf("expected X to be a mystery, ok=%v err=%v", ok, err)
	}

	if _, err := f.recorder.OpenSession(ctx, netflixTab("X", "Hilda S1E2", time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("open titled: %v", err)
	}
	logs, err := f.recorder.Logs(ctx, domain.FamilyVideo, "2026-03-01")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected two video logs, got %d", len(logs))
	}
	for _, log := range logs {
		if log.Name != "Hilda S1E2" {
			t.Fatalf("expected renamed log, got %+v", log)
		}
	}
	summary, _ = f.videos.FindSummary(ctx, "netflix:X", "2026-03-01")
	if summary.Name != "Hilda S1E2" {
		t.Fatalf("expected renamed summary, got %q", summary.Name)
	}
	if ok, _ := f.mysteries.IsMystery(ctx, "netflix", "X"); ok {
		t.Fatalf("revealed media must leave the mystery set")
	}
	recent, _ := f.mysteries.Recent(ctx)
	if len(recent) != 0 {
		t.Fatalf("expected no stored mysteries, got %+v", recent)
	}
}

func TestMysteryUntitledRevisitReusesKnownTitle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, 10)

	if _, err := f.recorder.OpenSession(ctx, netflixTab("Y", "Dark S1E1", time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("open titled: %v", err)
	}
	opened, err := f.recorder.OpenSession(ctx, netflixTab("Y", "", time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("open untitled: %v", err)
	}
	if opened.Video.Title != "Dark S1E1" {
		t.Fatalf("expected known title carried on the session, got %q", opened.Video.Title)
	}
	if ok, _ := f.mysteries.IsMystery(ctx, "netflix", "Y"); ok {
		t.Fatalf("a titled media must not become a mystery")
	}
}

func TestMysteryFallsBackToStorageAfterEviction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, 1)

	base := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	if _, err := f.recorder.OpenSession(ctx, netflixTab("X", "", base)); err != nil {
		t.Fatalf("open X: %v", err)
	}
	if _, err := f.recorder.OpenSession(ctx, netflixTab("Z", "", base.Add(time.Minute))); err != nil {
		t.Fatalf("open Z: %v", err)
	}
	if f.mysteries.CachedCount() != 1 {
		t.Fatalf("expected cache bounded at 1, got %d", f.mysteries.CachedCount())
	}
	if ok, err := f.mysteries.IsMystery(ctx, "netflix", "X"); err != nil || !ok {
		t.Fatalf("evicted mystery must still be found, ok=%v err=%v", ok, err)
	}

	if _, err := f.recorder.OpenSession(ctx, netflixTab("X", "Hilda S1E3", base.Add(2*time.Minute))); err != nil {
		t.Fatalf("reveal X: %v", err)
	}
	summary, _ := f.videos.FindSummary(ctx, "netflix:X", "2026-03-01")
	if summary.Name != "Hilda S1E3" {
		t.Fatalf("expected reveal through storage, got %q", summary.Name)
	}
}

func TestMysterySeedLoadsRecentEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, 10)
	base := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	for i, id := range []string{"A", "B", "C"} {
		if err := f.db.UpsertMystery(ctx, "youtube", id, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	resolver, err := service.NewMysteryResolver(f.videos, f.db, placeholder, 2, noRetry(), logging.Discard())
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	if err := resolver.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if resolver.CachedCount() != 2 {
		t.Fatalf("expected the 2 most recent entries cached, got %d", resolver.CachedCount())
	}
}
