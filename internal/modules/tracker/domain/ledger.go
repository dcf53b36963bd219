package domain

import (
	"fmt"
	"sync"
	"time"

	apperrors "focuslog/internal/platform/errors"
)

// Ledger tracks the time recorded for one session. Its total always equals what
// the recorder has written for the session.
type Ledger struct {
	mu     sync.Mutex
	window time.Duration
	total  time.Duration
	closed bool
}

func NewLedger(window time.Duration) *Ledger {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Ledger{window: window}
}

func (l *Ledger) AddWindow() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return apperrors.ErrSessionClosed
	}
	l.total += l.window
	return nil
}

// SettlePartial adds the unflushed tail and closes the ledger. Zero seconds is a no-op.
func (l *Ledger) SettlePartial(seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("%w: negative partial %d", apperrors.ErrInvalidInput, seconds)
	}
	if seconds == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return apperrors.ErrSessionClosed
	}
	l.total += time.Duration(seconds) * time.Second
	l.closed = true
	return nil
}

func (l *Ledger) Total() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

func (l *Ledger) Open() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

func (l *Ledger) Window() time.Duration {
	return l.window
}

func (l *Ledger) Clone() *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Ledger{window: l.window, total: l.total, closed: l.closed}
}
