package out_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	adapterout "focuslog/internal/modules/tracker/adapter/out"
	apperrors "focuslog/internal/platform/errors"
)

func TestTrackerClientReadsCurrentAndSummaries(t *testing.T) {
	t.Parallel()
	var lastQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/current":
			_, _ = w.Write([]byte(`{"active":true,"kind":"program","name":"code","start_time":"2026-03-01T10:00:00Z","recorded_seconds":40}`))
		case "/v1/summaries":
			lastQuery = r.URL.RawQuery
			_, _ = w.Write([]byte(`{"summaries":[{"family":"domain","identity":"github.com","name":"github.com","day":"2026-03-01","hours_spent":0.25}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	client := adapterout.NewTrackerClient(strings.TrimPrefix(srv.URL, "http://"), time.Second)
	current, err := client.Current(context.Background())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if !current.Active || current.Name != "code" || current.RecordedSeconds != 40 {
		t.Fatalf("unexpected current %+v", current)
	}

	rows, err := client.Summaries(context.Background(), "domain", "2026-03-01")
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(rows) != 1 || rows[0].HoursSpent != 0.25 {
		t.Fatalf("unexpected summaries %+v", rows)
	}
	if lastQuery != "day=2026-03-01&family=domain" {
		t.Fatalf("unexpected query %q", lastQuery)
	}
}

func TestTrackerClientErrors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"database unavailable"}`, http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	if _, err := adapterout.NewTrackerClient(srv.URL, time.Second).Current(context.Background()); err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status error, got %v", err)
	}

	down := adapterout.NewTrackerClient("127.0.0.1:1", time.Second)
	if _, err := down.Current(context.Background()); !errors.Is(err, apperrors.ErrTrackerUnreachable) {
		t.Fatalf("expected unreachable tracker, got %v", err)
	}
}
