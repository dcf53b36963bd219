package usecase_test

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	adapterout "focuslog/internal/modules/tracker/adapter/out"
	"focuslog/internal/modules/tracker/domain"
	"focuslog/internal/modules/tracker/dto"
	trackerin "focuslog/internal/modules/tracker/port/in"
	"focuslog/internal/modules/tracker/service"
	"focuslog/internal/modules/tracker/usecase"
	"focuslog/internal/platform/id"
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

type stateLog struct {
	mu         sync.Mutex
	identities []string
}

func (s *stateLog) OnStateChanged(a domain.Activity) {
	s.mu.Lock()
	s.identities = append(s.identities, a.Identity)
	s.mu.Unlock()
}

// hookedHeartbeats runs onRead after each heartbeat lookup, which is the first
// thing a handler does.
type hookedHeartbeats struct {
	*adapterout.SQLiteStore
	mu     sync.Mutex
	onRead func()
}

func (h *hookedHeartbeats) LatestHeartbeat(ctx context.Context) (time.Time, error) {
	at, err := h.SQLiteStore.LatestHeartbeat(ctx)
	h.mu.Lock()
	hook := h.onRead
	h.mu.Unlock()
	if hook != nil {
		hook()
	}
	return at, err
}

func (h *hookedHeartbeats) OnRead(hook func()) {
	h.mu.Lock()
	h.onRead = hook
	h.mu.Unlock()
}

type harness struct {
	uc     trackerin.Usecase
	db     *adapterout.SQLiteStore
	hb     *hookedHeartbeats
	clock  *fakeClock
	tickC  chan time.Time
	pulse  *service.PulseContainer
	states *stateLog
}

func newHarness(t *testing.T, dbPath string) *harness {
	t.Helper()
	if dbPath == "" {
		dbPath = filepath.Join(t.TempDir(), "focuslog.db")
	}
	db, err := adapterout.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	h := &harness{
		db:     db,
		hb:     &hookedHeartbeats{SQLiteStore: db},
		clock:  &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		tickC:  make(chan time.Time),
		states: &stateLog{},
	}
	policy := retry.Policy{MaxRetries: 0, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	logger := logging.Discard()
	videos := db.ForFamily(domain.FamilyVideo)
	mysteries, err := service.NewMysteryResolver(videos, db, placeholder, 10, policy, logger)
	if err != nil {
		t.Fatalf("new mystery resolver: %v", err)
	}
	ticker := func(time.Duration) (<-chan time.Time, func()) { return h.tickC, func() {} }
	pulse := service.NewPulseContainer(time.Second, ticker, logger)
	h.pulse = pulse

	h.uc = usecase.NewArbiter(usecase.Deps{
		Factory:       service.NewActivityFactory(id.UUID{}, adapterout.NewStaticClassifier([]string{"code"}, nil), time.UTC, 10*time.Second),
		Machine:       domain.NewStateMachine(2 * time.Minute),
		Sleep:         service.NewSleepDetector(h.clock, h.hb, 90*time.Second),
		Pulse:         pulse,
		Recorder:      service.NewRecorder(db.ForFamily(domain.FamilyProgram), db.ForFamily(domain.FamilyDomain), videos, mysteries, h.clock, policy, logger),
		Mysteries:     mysteries,
		Heartbeats:    h.hb,
		Listener:      h.states,
		Clock:         h.clock,
		WindowSeconds: 10,
		Retry:         policy,
		Logger:        logger,
	})
	t.Cleanup(func() {
		_ = pulse.Close(context.Background())
	})
	return h
}

// tick feeds n pulses. The trailing Start is a no-op on a running pulse and
// returns only after the worker finished the last tick.
func (h *harness) tick(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case h.tickC <- time.Time{}:
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d was not consumed", i+1)
		}
	}
	if err := h.pulse.Start(context.Background()); err != nil {
		t.Fatalf("sync pulse: %v", err)
	}
}

func (h *harness) program(t *testing.T, exe string, at time.Time) {
	t.Helper()
	h.clock.Set(at)
	if err := h.uc.OnProgramEvent(context.Background(), dto.ProgramFocusEvent{ExePath: exe, StartTime: at}); err != nil {
		t.Fatalf("program event %s: %v", exe, err)
	}
}

func (h *harness) logs(t *testing.T, family domain.Family, identity string) []domain.SessionLog {
	t.Helper()
	rows, err := h.db.ForFamily(family).ListLogs(context.Background(), "2026-03-01")
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	var out []domain.SessionLog
	for _, row := range rows {
		if row.Identity == identity {
			out = append(out, row)
		}
	}
	return out
}

func (h *harness) hours(t *testing.T, family domain.Family, identity string) float64 {
	t.Helper()
	summary, err := h.db.ForFamily(family).FindSummary(context.Background(), identity, "2026-03-01")
	if err != nil {
		t.Fatalf("find summary %s: %v", identity, err)
	}
	return summary.HoursSpent
}

func assertSeconds(t *testing.T, hours float64, seconds int64) {
	t.Helper()
	if math.Abs(hours-float64(seconds)/3600) > 1e-9 {
		t.Fatalf("expected %ds, got %fh (%.1fs)", seconds, hours, hours*3600)
	}
}

func at(h, m, s int) time.Time {
	return time.Date(2026, 3, 1, h, m, s, 0, time.UTC)
}
