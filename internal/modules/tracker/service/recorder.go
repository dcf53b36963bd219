package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"focuslog/internal/modules/tracker/domain"
	trackerout "focuslog/internal/modules/tracker/port/out"
	"focuslog/internal/platform/clock"
	apperrors "focuslog/internal/platform/errors"
	"focuslog/internal/platform/retry"
)

// Recorder writes every lifecycle point of a session into the log and summary
// stores of each family the session belongs to.
type Recorder struct {
	programs  trackerout.ActivityStore
	domains   trackerout.ActivityStore
	videos    trackerout.VideoStore
	mysteries *MysteryResolver
	clock     clock.Clock
	retry     retry.Policy
	logger    *slog.Logger
}

func NewRecorder(programs, domains trackerout.ActivityStore, videos trackerout.VideoStore, mysteries *MysteryResolver, clock clock.Clock, policy retry.Policy, logger *slog.Logger) *Recorder {
	return &Recorder{
		programs:  programs,
		domains:   domains,
		videos:    videos,
		mysteries: mysteries,
		clock:     clock,
		retry:     policy,
		logger:    logger,
	}
}

func (r *Recorder) store(family domain.Family) (trackerout.ActivityStore, error) {
	switch family {
	case domain.FamilyProgram:
		return r.programs, nil
	case domain.FamilyDomain:
		return r.domains, nil
	case domain.FamilyVideo:
		return r.videos, nil
	default:
		return nil, fmt.Errorf("%w: unknown family %q", apperrors.ErrInvalidInput, string(family))
	}
}

// OpenSession appends the session's log rows and makes sure a summary exists for
// its day. For videos the returned activity carries the title it was recorded under.
func (r *Recorder) OpenSession(ctx context.Context, session domain.Activity) (domain.Activity, error) {
	if err := session.Validate(); err != nil {
		return domain.Activity{}, err
	}
	videoName := ""
	if session.Video != nil {
		name, err := r.mysteries.NameFor(ctx, *session.Video)
		if err != nil {
			return domain.Activity{}, err
		}
		videoName = name
		if session.Video.Title == "" && name != r.mysteries.Placeholder() {
			v := *session.Video
			v.Title = name
			session.Video = &v
		}
	}

	now := r.clock.Now()
	for _, family := range session.Families() {
		name := session.DisplayName
		if family == domain.FamilyVideo {
			name = videoName
		}
		if err := r.openIn(ctx, family, session, name, now); err != nil {
			return domain.Activity{}, err
		}
	}

	if session.Video != nil {
		if err := r.mysteries.Observe(ctx, *session.Video, videoName, session.StartTime); err != nil {
			return domain.Activity{}, err
		}
	}
	r.logger.Info("session opened", "identity", session.Identity, "session_id", session.SessionID, "start", session.StartTime)
	return session, nil
}

func (r *Recorder) openIn(ctx context.Context, family domain.Family, session domain.Activity, name string, now time.Time) error {
	store, err := r.store(family)
	if err != nil {
		return err
	}
	log := domain.NewSessionLog(family, session, name, now)
	if err := r.retry.Do(ctx, func(ctx context.Context) error {
		_, err := store.InsertLog(ctx, log)
		return err
	}); err != nil {
		return fmt.Errorf("open %s log for %s: %w", family, log.Identity, err)
	}

	summary := domain.NewDailySummary(family, session, name, now)
	return r.retry.Do(ctx, func(ctx context.Context) error {
		_, err := store.FindSummary(ctx, summary.Identity, summary.GatheringDate)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if err := store.InsertSummary(ctx, summary); err != nil {
			return fmt.Errorf("open %s summary for %s: %w", family, summary.Identity, err)
		}
		return nil
	})
}

// ExtendWindow moves the log end time forward and adds the window to the day's summary.
func (r *Recorder) ExtendWindow(ctx context.Context, session domain.Activity, seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("%w: extend by %d seconds", apperrors.ErrNegativeDuration, seconds)
	}
	for _, family := range session.Families() {
		store, err := r.store(family)
		if err != nil {
			return err
		}
		identity := session.IdentityFor(family)
		log, err := r.findLog(ctx, store, identity, session.StartTime)
		if err != nil {
			return err
		}
		end := log.EndTime.Add(time.Duration(seconds) * time.Second)
		if err := r.retry.Do(ctx, func(ctx context.Context) error {
			return store.UpdateLogTail(ctx, log.ID, end, log.DurationSeconds)
		}); err != nil {
			return fmt.Errorf("extend %s log for %s: %w", family, identity, err)
		}
		if err := r.increment(ctx, store, identity, domain.DayKey(session.StartTime), seconds); err != nil {
			return err
		}
	}
	return nil
}

// SettlePartial adds the tail to the summaries. The log is rewritten by Finalize.
func (r *Recorder) SettlePartial(ctx context.Context, session domain.Activity, seconds int) error {
	if seconds == 0 {
		return nil
	}
	if seconds < 0 {
		return fmt.Errorf("%w: settle %d seconds", apperrors.ErrNegativeDuration, seconds)
	}
	for _, family := range session.Families() {
		store, err := r.store(family)
		if err != nil {
			return err
		}
		if err := r.increment(ctx, store, session.IdentityFor(family), domain.DayKey(session.StartTime), seconds); err != nil {
			return err
		}
	}
	return nil
}

// Finalize overwrites the log tail with the exact end and duration. Zero-duration
// sessions are dropped.
func (r *Recorder) Finalize(ctx context.Context, completed domain.Completed) error {
	if completed.Duration < 0 {
		return fmt.Errorf("%w: finalize %s with %s", apperrors.ErrNegativeDuration, completed.Identity, completed.Duration)
	}
	if completed.Duration == 0 {
		r.logger.Debug("dropping zero-duration session", "identity", completed.Identity, "session_id", completed.SessionID)
		return nil
	}
	for _, family := range completed.Families() {
		store, err := r.store(family)
		if err != nil {
			return err
		}
		identity := completed.IdentityFor(family)
		log, err := r.findLog(ctx, store, identity, completed.StartTime)
		if err != nil {
			return err
		}
		if err := r.retry.Do(ctx, func(ctx context.Context) error {
			return store.UpdateLogTail(ctx, log.ID, completed.EndTime, completed.DurationSeconds())
		}); err != nil {
			return fmt.Errorf("finalize %s log for %s: %w", family, identity, err)
		}
	}
	r.logger.Info("session finalized",
		"identity", completed.Identity,
		"session_id", completed.SessionID,
		"start", completed.StartTime,
		"end", completed.EndTime,
		"duration_s", completed.DurationSeconds(),
	)
	return nil
}

func (r *Recorder) findLog(ctx context.Context, store trackerout.ActivityStore, identity string, start time.Time) (domain.SessionLog, error) {
	var log domain.SessionLog
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		found, err := store.FindLogByStart(ctx, identity, start)
		if err != nil {
			return err
		}
		log = found
		return nil
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		return domain.SessionLog{}, fmt.Errorf("%w: no %s log for %s starting %s", apperrors.ErrImpossibleState, store.Family(), identity, start.Format(time.RFC3339))
	}
	if err != nil {
		return domain.SessionLog{}, fmt.Errorf("find %s log for %s: %w", store.Family(), identity, err)
	}
	return log, nil
}

func (r *Recorder) increment(ctx context.Context, store trackerout.ActivityStore, identity, day string, seconds int) error {
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		return store.IncrementSummary(ctx, identity, day, domain.HoursDelta(int64(seconds)))
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("%w: no %s summary for %s on %s", apperrors.ErrImpossibleState, store.Family(), identity, day)
	}
	if err != nil {
		return fmt.Errorf("increment %s summary for %s: %w", store.Family(), identity, err)
	}
	return nil
}

func (r *Recorder) Summaries(ctx context.Context, family domain.Family, day string) ([]domain.DailySummary, error) {
	store, err := r.store(family)
	if err != nil {
		return nil, err
	}
	var out []domain.DailySummary
	err = r.retry.Do(ctx, func(ctx context.Context) error {
		rows, err := store.ListSummaries(ctx, day)
		out = rows
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list %s summaries: %w", family, err)
	}
	return out, nil
}

func (r *Recorder) Logs(ctx context.Context, family domain.Family, day string) ([]domain.SessionLog, error) {
	store, err := r.store(family)
	if err != nil {
		return nil, err
	}
	var out []domain.SessionLog
	err = r.retry.Do(ctx, func(ctx context.Context) error {
		rows, err := store.ListLogs(ctx, day)
		out = rows
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list %s logs: %w", family, err)
	}
	return out, nil
}
