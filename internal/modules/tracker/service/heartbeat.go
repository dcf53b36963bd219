package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"focuslog/internal/platform/clock"
	"focuslog/internal/platform/retry"
)

// HeartbeatSink receives liveness timestamps.
type HeartbeatSink interface {
	RecordHeartbeat(ctx context.Context, at time.Time) error
}

type HeartbeatFunc func(ctx context.Context, at time.Time) error

func (f HeartbeatFunc) RecordHeartbeat(ctx context.Context, at time.Time) error {
	return f(ctx, at)
}

// HeartbeatWriter is the in-process liveness task read by the SleepDetector.
type HeartbeatWriter struct {
	store     HeartbeatSink
	clock     clock.Clock
	interval  time.Duration
	newTicker TickerFunc
	retry     retry.Policy
	logger    *slog.Logger
}

func NewHeartbeatWriter(store HeartbeatSink, clock clock.Clock, interval time.Duration, ticker TickerFunc, policy retry.Policy, logger *slog.Logger) *HeartbeatWriter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if ticker == nil {
		ticker = IntervalTicker
	}
	return &HeartbeatWriter{store: store, clock: clock, interval: interval, newTicker: ticker, retry: policy, logger: logger}
}

func (w *HeartbeatWriter) Beat(ctx context.Context) error {
	now := w.clock.Now()
	if err := w.retry.Do(ctx, func(ctx context.Context) error {
		return w.store.RecordHeartbeat(ctx, now)
	}); err != nil {
		return fmt.Errorf("record heartbeat: %w", err)
	}
	return nil
}

// Run beats once immediately and then on every interval until ctx ends.
func (w *HeartbeatWriter) Run(ctx context.Context) error {
	if err := w.Beat(ctx); err != nil {
		w.logger.Warn("heartbeat failed", "error", err)
	}
	tickC, stop := w.newTicker(w.interval)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tickC:
			if err := w.Beat(ctx); err != nil {
				w.logger.Warn("heartbeat failed", "error", err)
			}
		}
	}
}
