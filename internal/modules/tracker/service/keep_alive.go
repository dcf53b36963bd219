package service

import (
	"context"
	"fmt"
	"log/slog"

	"focuslog/internal/modules/tracker/domain"
	apperrors "focuslog/internal/platform/errors"
)

// WindowRecorder is the hot-path part of the Recorder used by engines.
type WindowRecorder interface {
	ExtendWindow(ctx context.Context, session domain.Activity, seconds int) error
	SettlePartial(ctx context.Context, session domain.Activity, seconds int) error
}

// KeepAliveEngine extends the recorded duration of one live session in whole
// windows and settles the tail when it is concluded.
type KeepAliveEngine struct {
	session    domain.Activity
	recorder   WindowRecorder
	window     int
	amountUsed int
	concluded  bool
	logger     *slog.Logger
}

func NewKeepAliveEngine(session domain.Activity, recorder WindowRecorder, windowSeconds int, logger *slog.Logger) *KeepAliveEngine {
	if windowSeconds < 1 {
		windowSeconds = int(domain.DefaultWindow.Seconds())
	}
	return &KeepAliveEngine{session: session, recorder: recorder, window: windowSeconds, logger: logger}
}

func (e *KeepAliveEngine) AmountUsed() int {
	return e.amountUsed
}

func (e *KeepAliveEngine) Tick(ctx context.Context) error {
	if e.concluded {
		return nil
	}
	e.amountUsed++
	if e.amountUsed < e.window {
		return nil
	}
	e.amountUsed = 0
	if err := e.recorder.ExtendWindow(ctx, e.session, e.window); err != nil {
		return fmt.Errorf("extend window for %s: %w", e.session.Identity, err)
	}
	if e.session.Ledger != nil {
		if err := e.session.Ledger.AddWindow(); err != nil {
			return fmt.Errorf("add window to ledger of %s: %w", e.session.Identity, err)
		}
	}
	return nil
}

// Conclude settles the unflushed tail. Calling it again is a no-op.
func (e *KeepAliveEngine) Conclude(ctx context.Context) error {
	if e.concluded {
		return nil
	}
	e.concluded = true
	if e.amountUsed == e.window {
		return fmt.Errorf("%w: engine for %s holds a full unflushed window", apperrors.ErrImpossibleState, e.session.Identity)
	}
	tail := e.amountUsed
	e.amountUsed = 0
	if tail == 0 {
		return nil
	}
	if err := e.recorder.SettlePartial(ctx, e.session, tail); err != nil {
		return fmt.Errorf("settle partial for %s: %w", e.session.Identity, err)
	}
	if e.session.Ledger != nil {
		if err := e.session.Ledger.SettlePartial(tail); err != nil {
			return fmt.Errorf("settle ledger of %s: %w", e.session.Identity, err)
		}
	}
	e.logger.Debug("settled partial window", "identity", e.session.Identity, "session_id", e.session.SessionID, "seconds", tail)
	return nil
}
