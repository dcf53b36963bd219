package service

import (
	"context"
	"fmt"
	"time"

	trackerout "focuslog/internal/modules/tracker/port/out"
	"focuslog/internal/platform/clock"
)

type Awakening struct {
	Slept bool
	// LastHeartbeat is zero when no heartbeat was ever recorded.
	LastHeartbeat time.Time
}

// SleepDetector tells an OS suspend apart from an ordinary gap between events
// using the liveness heartbeat alone.
type SleepDetector struct {
	clock     clock.Clock
	store     trackerout.HeartbeatStore
	threshold time.Duration
}

func NewSleepDetector(clock clock.Clock, store trackerout.HeartbeatStore, threshold time.Duration) *SleepDetector {
	if threshold <= 0 {
		threshold = 90 * time.Second
	}
	return &SleepDetector{clock: clock, store: store, threshold: threshold}
}

func (d *SleepDetector) DetectAwakening(ctx context.Context) (Awakening, error) {
	last, err := d.store.LatestHeartbeat(ctx)
	if err != nil {
		return Awakening{}, fmt.Errorf("read latest heartbeat: %w", err)
	}
	if last.IsZero() {
		return Awakening{}, nil
	}
	now := d.clock.Now()
	return Awakening{
		Slept:         now.Sub(last) > d.threshold,
		LastHeartbeat: last.In(now.Location()),
	}, nil
}
