package out

import (
	"context"
	"time"

	"focuslog/internal/modules/tracker/domain"
)

// ActivityStore is the DAO of one family. Lookups that find nothing return apperrors.ErrNotFound.
type ActivityStore interface {
	Family() domain.Family
	InsertLog(ctx context.Context, log domain.SessionLog) (int64, error)
	FindLogByStart(ctx context.Context, identity string, start time.Time) (domain.SessionLog, error)
	UpdateLogTail(ctx context.Context, id int64, end time.Time, durationSeconds int64) error
	FindSummary(ctx context.Context, identity, day string) (domain.DailySummary, error)
	// InsertSummary leaves an existing (identity, day) row untouched.
	InsertSummary(ctx context.Context, summary domain.DailySummary) error
	// IncrementSummary adds deltaHours atomically, capped at 24 hours.
	IncrementSummary(ctx context.Context, identity, day string, deltaHours float64) error
	ListSummaries(ctx context.Context, day string) ([]domain.DailySummary, error)
	ListLogs(ctx context.Context, day string) ([]domain.SessionLog, error)
}

type VideoStore interface {
	ActivityStore
	FindTitledName(ctx context.Context, platform, mediaID, placeholder string) (string, error)
	RenamePlaceholderLogs(ctx context.Context, platform, mediaID, placeholder, title string) (int64, error)
	RenamePlaceholderSummaries(ctx context.Context, platform, mediaID, placeholder, title string) (int64, error)
}

type MysteryMediaStore interface {
	UpsertMystery(ctx context.Context, platform, mediaID string, seenAt time.Time) error
	DeleteMystery(ctx context.Context, platform, mediaID string) error
	FindMystery(ctx context.Context, platform, mediaID string) (domain.MysteryMedia, error)
	RecentMysteries(ctx context.Context, limit int) ([]domain.MysteryMedia, error)
}

// HeartbeatStore keeps the liveness timestamp. LatestHeartbeat returns the zero time when none exists.
type HeartbeatStore interface {
	RecordHeartbeat(ctx context.Context, at time.Time) error
	LatestHeartbeat(ctx context.Context) (time.Time, error)
}

// StateListener is notified for display only.
type StateListener interface {
	OnStateChanged(activity domain.Activity)
}

type Classifier interface {
	IsProductive(kind domain.Kind, identity string) bool
}
