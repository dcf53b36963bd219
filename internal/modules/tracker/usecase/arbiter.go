package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"focuslog/internal/modules/tracker/domain"
	"focuslog/internal/modules/tracker/dto"
	trackerin "focuslog/internal/modules/tracker/port/in"
	trackerout "focuslog/internal/modules/tracker/port/out"
	"focuslog/internal/modules/tracker/service"
	"focuslog/internal/platform/clock"
	apperrors "focuslog/internal/platform/errors"
	"focuslog/internal/platform/retry"
)

type Deps struct {
	Factory       *service.ActivityFactory
	Machine       *domain.StateMachine
	Sleep         *service.SleepDetector
	Pulse         *service.PulseContainer
	Recorder      *service.Recorder
	Mysteries     *service.MysteryResolver
	Heartbeats    trackerout.HeartbeatStore
	Listener      trackerout.StateListener
	Clock         clock.Clock
	WindowSeconds int
	Retry         retry.Policy
	Logger        *slog.Logger
}

// Arbiter decides which single activity is live and drives the pulse and the
// recorder accordingly. Handle calls are serialized.
type Arbiter struct {
	mu   sync.Mutex
	deps Deps
}

func NewArbiter(deps Deps) trackerin.Usecase {
	if deps.Listener == nil {
		deps.Listener = nopListener{}
	}
	return &Arbiter{deps: deps}
}

type nopListener struct{}

func (nopListener) OnStateChanged(domain.Activity) {}

func (a *Arbiter) OnProgramEvent(ctx context.Context, event dto.ProgramFocusEvent) error {
	return a.Handle(ctx, dto.ProgramEvent(event))
}

func (a *Arbiter) OnTabEvent(ctx context.Context, event dto.TabFocusEvent) error {
	return a.Handle(ctx, dto.TabEvent(event))
}

func (a *Arbiter) OnPlayerEvent(ctx context.Context, event dto.PlayerStateEvent) error {
	return a.Handle(ctx, dto.PlayerEvent(event))
}

func (a *Arbiter) Handle(ctx context.Context, event dto.Event) error {
	incoming, err := a.deps.Factory.FromEvent(event)
	if err != nil {
		return fmt.Errorf("build activity: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.handle(ctx, incoming); err != nil {
		attrs := []any{"identity", incoming.Identity, "session_id", incoming.SessionID, "start", incoming.StartTime, "error", err}
		if apperrors.IsInvariant(err) {
			a.deps.Logger.Error("invariant violated while handling event", attrs...)
		} else {
			a.deps.Logger.Warn("event handling aborted", attrs...)
		}
		return err
	}
	return nil
}

func (a *Arbiter) handle(ctx context.Context, incoming domain.Activity) error {
	awake, err := a.recoverFromSleep(ctx)
	if err != nil {
		return err
	}

	if err := a.deps.Machine.CheckOrder(incoming); err != nil {
		return err
	}

	opened, err := a.deps.Recorder.OpenSession(ctx, incoming)
	if err != nil {
		return err
	}
	engine := service.NewKeepAliveEngine(opened, a.deps.Recorder, a.deps.WindowSeconds, a.deps.Logger)

	if a.deps.Machine.IsEmpty() {
		if _, err := a.deps.Machine.SetNewSession(opened, awake.LastHeartbeat); err != nil {
			return err
		}
		if err := a.deps.Pulse.InstallFirst(ctx, engine); err != nil {
			return fmt.Errorf("install engine: %w", err)
		}
		if err := a.deps.Pulse.Start(ctx); err != nil {
			return fmt.Errorf("start pulse: %w", err)
		}
	} else {
		tr, err := a.deps.Machine.SetNewSession(opened, awake.LastHeartbeat)
		if err != nil {
			return err
		}
		if tr.Suspicious {
			a.deps.Logger.Warn("suspicious heartbeat gap", "identity", opened.Identity, "gap_s", int64(tr.HeartbeatGap.Seconds()))
		}
		// The swap settles the old tail before its log is rewritten.
		if err := a.deps.Pulse.Swap(ctx, engine); err != nil {
			return fmt.Errorf("swap engine: %w", err)
		}
		if tr.Concluded != nil && tr.Concluded.Duration > 0 {
			if err := a.deps.Recorder.Finalize(ctx, *tr.Concluded); err != nil {
				return err
			}
		}
	}
	a.deps.Listener.OnStateChanged(opened.Snapshot())
	return nil
}

// recoverFromSleep concludes the live session at the last heartbeat when the
// heartbeat gap says the machine was suspended.
func (a *Arbiter) recoverFromSleep(ctx context.Context) (service.Awakening, error) {
	awake, err := a.deps.Sleep.DetectAwakening(ctx)
	if err != nil {
		return service.Awakening{}, err
	}
	if !awake.Slept {
		return awake, nil
	}
	concluded, ok, err := a.deps.Machine.ConcludeAt(awake.LastHeartbeat)
	if err != nil {
		return service.Awakening{}, err
	}
	if err := a.deps.Pulse.Stop(ctx); err != nil {
		return service.Awakening{}, fmt.Errorf("stop pulse after sleep: %w", err)
	}
	if ok && concluded.Duration > 0 {
		if err := a.deps.Recorder.Finalize(ctx, concluded); err != nil {
			return service.Awakening{}, err
		}
	}
	// Refresh the heartbeat so the same gap is not reported twice.
	now := a.deps.Clock.Now()
	if err := a.deps.Retry.Do(ctx, func(ctx context.Context) error {
		return a.deps.Heartbeats.RecordHeartbeat(ctx, now)
	}); err != nil {
		return service.Awakening{}, fmt.Errorf("refresh heartbeat after sleep: %w", err)
	}
	a.deps.Logger.Info("sleep detected", "last_heartbeat", awake.LastHeartbeat, "concluded", ok)
	return awake, nil
}

// Run consumes events until ctx ends or the channel closes. Invariant
// violations stop the loop; other failures are logged and skipped. An event
// already taken off the queue is handled to completion even if ctx ends.
func (a *Arbiter) Run(ctx context.Context, events <-chan dto.Event) error {
	handleCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := a.Handle(handleCtx, event); err != nil && apperrors.IsInvariant(err) {
				return err
			}
		}
	}
}

// Shutdown settles the live tail, concludes the session now and stops the pulse worker.
func (a *Arbiter) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	if err := a.deps.Pulse.Stop(ctx); err != nil && !errors.Is(err, service.ErrPulseClosed) {
		errs = append(errs, fmt.Errorf("stop pulse: %w", err))
	}
	concluded, ok, err := a.deps.Machine.ConcludeAt(a.deps.Clock.Now())
	if err != nil {
		errs = append(errs, err)
	}
	if ok && concluded.Duration > 0 {
		if err := a.deps.Recorder.Finalize(ctx, concluded); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.deps.Pulse.Close(ctx); err != nil && !errors.Is(err, service.ErrPulseClosed) {
		errs = append(errs, fmt.Errorf("close pulse: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	a.deps.Logger.Info("tracker shut down", "concluded", ok)
	return nil
}

// RecordHeartbeat checks for a suspend before refreshing the heartbeat, so an
// in-process writer waking up first cannot hide the gap.
func (a *Arbiter) RecordHeartbeat(ctx context.Context, input dto.HeartbeatInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.recoverFromSleep(ctx); err != nil {
		return err
	}
	return a.deps.Retry.Do(ctx, func(ctx context.Context) error {
		return a.deps.Heartbeats.RecordHeartbeat(ctx, input.Timestamp)
	})
}

func (a *Arbiter) DaySummaries(ctx context.Context, query dto.DayQuery) ([]dto.SummaryOutput, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	rows, err := a.deps.Recorder.Summaries(ctx, domain.Family(query.Family), query.Day)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SummaryOutput, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.SummaryOutput{
			Family:     string(row.Family),
			Identity:   row.Identity,
			Name:       row.Name,
			Platform:   row.Platform,
			MediaID:    row.MediaID,
			Productive: row.Productive,
			Day:        row.GatheringDate,
			HoursSpent: row.HoursSpent,
		})
	}
	return out, nil
}

func (a *Arbiter) DayLogs(ctx context.Context, query dto.DayQuery) ([]dto.SessionLogOutput, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	rows, err := a.deps.Recorder.Logs(ctx, domain.Family(query.Family), query.Day)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SessionLogOutput, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.SessionLogOutput{
			Family:          string(row.Family),
			SessionID:       row.SessionID,
			Identity:        row.Identity,
			Name:            row.Name,
			Detail:          row.Detail,
			Platform:        row.Platform,
			MediaID:         row.MediaID,
			Productive:      row.Productive,
			StartTime:       row.StartTime,
			EndTime:         row.EndTime,
			EndLocal:        row.EndLocal(),
			DurationSeconds: row.DurationSeconds,
			Day:             row.GatheringDate,
		})
	}
	return out, nil
}

func (a *Arbiter) Mysteries(ctx context.Context) ([]dto.MysteryOutput, error) {
	rows, err := a.deps.Mysteries.Recent(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MysteryOutput, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.MysteryOutput{Platform: row.Platform, MediaID: row.MediaID, FirstSeen: row.FirstSeen, LastSeen: row.LastSeen})
	}
	return out, nil
}

func (a *Arbiter) Current(context.Context) (dto.CurrentOutput, error) {
	a.mu.Lock()
	current, ok := a.deps.Machine.Current()
	if ok {
		current = current.Snapshot()
	}
	a.mu.Unlock()
	if !ok {
		return dto.CurrentOutput{}, nil
	}
	out := dto.CurrentOutput{
		Active:     true,
		SessionID:  current.SessionID,
		Kind:       string(current.Kind),
		Identity:   current.Identity,
		Name:       current.DisplayName,
		Detail:     current.Detail,
		Productive: current.Productive,
		StartTime:  current.StartTime,
	}
	if current.Ledger != nil {
		out.RecordedSeconds = int64(current.Ledger.Total().Seconds())
	}
	if v := current.Video; v != nil {
		out.Video = &dto.VideoInfo{Platform: v.Platform, MediaID: v.MediaID, Title: v.Title, ChannelName: v.ChannelName, PlayerState: string(v.PlayerState)}
	}
	return out, nil
}
