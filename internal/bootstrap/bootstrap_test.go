package bootstrap_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"focuslog/internal/bootstrap"
	trackerdto "focuslog/internal/modules/tracker/dto"
	"focuslog/internal/platform/config"
	"focuslog/internal/platform/logging"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Timezone = "UTC"
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "focuslog.db")
	cfg.ListenAddr = "127.0.0.1:0"
	return cfg
}

func TestNewWiresSQLiteTracker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	app, err := bootstrap.New(ctx, testConfig(t), logging.Discard(), bootstrap.Options{})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() {
		_ = app.Close()
	})

	if err := app.Heartbeat.Beat(ctx); err != nil {
		t.Fatalf("beat: %v", err)
	}
	rows, err := app.TrackerCLI.Summaries(ctx, "program", "2026-03-01")
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty database, got %+v", rows)
	}
	current, err := app.TrackerCLI.Current(ctx)
	if err != nil || current.Active {
		t.Fatalf("expected idle tracker, got %+v err=%v", current, err)
	}
}

func TestNewRejectsUnreachableRedis(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Heartbeat.Driver = config.HeartbeatDriverRedis
	cfg.Heartbeat.RedisAddr = "127.0.0.1:1"
	if _, err := bootstrap.New(context.Background(), cfg, logging.Discard(), bootstrap.Options{}); err == nil {
		t.Fatalf("expected redis connection failure")
	}
}

func TestServeStopsWithContext(t *testing.T) {
	t.Parallel()
	app, err := bootstrap.New(context.Background(), testConfig(t), logging.Discard(), bootstrap.Options{})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() {
		_ = app.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := app.Serve(ctx, true); err != nil {
		t.Fatalf("serve: %v", err)
	}
}

func TestServeFinalizesQueuedSessionOnShutdown(t *testing.T) {
	t.Parallel()
	app, err := bootstrap.New(context.Background(), testConfig(t), logging.Discard(), bootstrap.Options{})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() {
		_ = app.Close()
	})

	start := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)
	if start.Day() != time.Now().UTC().Add(time.Second).Day() {
		t.Skip("session would straddle midnight")
	}
	app.Events <- trackerdto.ProgramEvent(trackerdto.ProgramFocusEvent{ExePath: "/usr/bin/code", ProcessName: "code", StartTime: start})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := app.Serve(ctx, false); err != nil {
		t.Fatalf("serve: %v", err)
	}

	rows, err := app.TrackerCLI.Sessions(context.Background(), "program", start.Format("2006-01-02"))
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(rows) != 1 || rows[0].DurationSeconds < 60 || !rows[0].EndTime.After(start) {
		t.Fatalf("expected the queued session to be finalized on shutdown, got %+v", rows)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServeHeartbeatLogsThroughAppLogger(t *testing.T) {
	t.Parallel()
	logs := &syncBuffer{}
	logger, err := logging.New(logs, "debug", "json")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	app, err := bootstrap.New(context.Background(), testConfig(t), logger, bootstrap.Options{})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() {
		_ = app.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := app.Serve(ctx, true); err != nil {
		t.Fatalf("serve: %v", err)
	}
	out := logs.String()
	if !strings.Contains(out, "http listening") {
		t.Fatalf("serve must log through the app logger:\n%s", out)
	}
	if strings.Contains(out, "heartbeat writer stopped") {
		t.Fatalf("a clean shutdown must not warn about the heartbeat writer:\n%s", out)
	}
}
