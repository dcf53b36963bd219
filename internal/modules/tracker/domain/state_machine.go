package domain

import (
	"fmt"
	"time"

	apperrors "focuslog/internal/platform/errors"
)

// Transition describes what set_new_session did to the prior session.
type Transition struct {
	Concluded    *Completed
	HeartbeatGap time.Duration
	// Suspicious is a diagnostic only; the transition proceeds regardless.
	Suspicious bool
}

// StateMachine holds at most one live session. It is owned by the event path
// and is not safe for concurrent use.
type StateMachine struct {
	current       *Activity
	prior         *Completed
	suspiciousGap time.Duration
}

func NewStateMachine(suspiciousGap time.Duration) *StateMachine {
	if suspiciousGap <= 0 {
		suspiciousGap = 2 * time.Minute
	}
	return &StateMachine{suspiciousGap: suspiciousGap}
}

func (m *StateMachine) IsEmpty() bool {
	return m.current == nil
}

// Current returns the live session. The ledger is shared with the bound engine.
func (m *StateMachine) Current() (Activity, bool) {
	if m.current == nil {
		return Activity{}, false
	}
	return *m.current, true
}

func (m *StateMachine) PeekPrior() (Completed, bool) {
	if m.prior == nil {
		return Completed{}, false
	}
	return *m.prior, true
}

// CheckOrder rejects an incoming session that starts before the live one.
func (m *StateMachine) CheckOrder(incoming Activity) error {
	if m.current == nil {
		return nil
	}
	if incoming.StartTime.Before(m.current.StartTime) {
		return fmt.Errorf("%w: %s at %s precedes %s at %s", apperrors.ErrBackwardsTime,
			incoming.Identity, incoming.StartTime.Format(time.RFC3339),
			m.current.Identity, m.current.StartTime.Format(time.RFC3339))
	}
	return nil
}

// SetNewSession adopts incoming and concludes the live session at incoming's start.
// A zero latestHeartbeat means no heartbeat has been seen.
func (m *StateMachine) SetNewSession(incoming Activity, latestHeartbeat time.Time) (Transition, error) {
	if m.current == nil {
		adopted := incoming
		m.current = &adopted
		return Transition{}, nil
	}
	if err := m.CheckOrder(incoming); err != nil {
		return Transition{}, err
	}

	end := incoming.StartTime
	var tr Transition
	if !latestHeartbeat.IsZero() {
		tr.HeartbeatGap = end.Sub(latestHeartbeat)
		tr.Suspicious = tr.HeartbeatGap > m.suspiciousGap
	}

	completed, err := m.current.ToCompleted(end)
	if err != nil {
		return Transition{}, err
	}
	if completed.Duration < 0 {
		return Transition{}, fmt.Errorf("%w: %s", apperrors.ErrNegativeDuration, completed.Identity)
	}
	m.prior = &completed
	adopted := incoming
	m.current = &adopted
	tr.Concluded = &completed
	return tr, nil
}

// ConcludeAt closes the live session without replacement and leaves the machine empty.
// An instant before the session start concludes at the start.
func (m *StateMachine) ConcludeAt(at time.Time) (Completed, bool, error) {
	if m.current == nil {
		return Completed{}, false, nil
	}
	if at.Before(m.current.StartTime) {
		at = m.current.StartTime
	}
	completed, err := m.current.ToCompleted(at)
	if err != nil {
		return Completed{}, false, err
	}
	m.prior = &completed
	m.current = nil
	return completed, true, nil
}
