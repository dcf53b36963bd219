package service_test

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	adapterout "focuslog/internal/modules/tracker/adapter/out"
	"focuslog/internal/modules/tracker/service"
	"focuslog/internal/platform/logging"
	"focuslog/internal/platform/retry"
)

const placeholder = "Unknown Media Title"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fixedID string

func (f fixedID) New() string { return string(f) }

func noRetry() retry.Policy {
	return retry.Policy{MaxRetries: 0, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

type fixture struct {
	db        *adapterout.SQLiteStore
	programs  *adapterout.SQLiteStore
	domains   *adapterout.SQLiteStore
	videos    *adapterout.SQLiteStore
	mysteries *service.MysteryResolver
	recorder  *service.Recorder
	clock     *fakeClock
}

func newFixture(t *testing.T, cacheSize int) fixture {
	t.Helper()
	db, err := adapterout.NewSQLiteStore(filepath.Join(t.TempDir(), "focuslog.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	f := fixture{
		db:       db,
		programs: db.ForFamily("program"),
		domains:  db.ForFamily("domain"),
		videos:   db.ForFamily("video"),
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	f.mysteries, err = service.NewMysteryResolver(f.videos, db, placeholder, cacheSize, noRetry(), logging.Discard())
	if err != nil {
		t.Fatalf("new mystery resolver: %v", err)
	}
	f.recorder = service.NewRecorder(f.programs, f.domains, f.videos, f.mysteries, f.clock, noRetry(), logging.Discard())
	return f
}

// manualTicker hands out one unbuffered channel; a send returns once the worker took the tick.
type manualTicker struct {
	mu      sync.Mutex
	c       chan time.Time
	started int
	stopped int
}

func newManualTicker() *manualTicker {
	return &manualTicker{c: make(chan time.Time)}
}

func (m *manualTicker) Func() service.TickerFunc {
	return func(time.Duration) (<-chan time.Time, func()) {
		m.mu.Lock()
		m.started++
		m.mu.Unlock()
		return m.c, func() {
			m.mu.Lock()
			m.stopped++
			m.mu.Unlock()
		}
	}
}

func (m *manualTicker) Tick(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case m.c <- time.Time{}:
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d was not consumed", i+1)
		}
	}
}

func (m *manualTicker) Counts() (started, stopped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started, m.stopped
}

// Refused asserts that nothing reads the tick channel, i.e. the worker is not ticking.
func (m *manualTicker) Refused(t *testing.T) {
	t.Helper()
	select {
	case m.c <- time.Time{}:
		t.Fatalf("tick was consumed by an idle pulse")
	case <-time.After(20 * time.Millisecond):
	}
}
