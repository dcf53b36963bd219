package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"focuslog/internal/modules/tracker/domain"
	trackerout "focuslog/internal/modules/tracker/port/out"
	apperrors "focuslog/internal/platform/errors"
	"focuslog/internal/platform/retry"
)

const DefaultMysteryCacheSize = 50

// MysteryResolver late-binds titles of videos first seen without one.
type MysteryResolver struct {
	videos      trackerout.VideoStore
	store       trackerout.MysteryMediaStore
	cache       *lru.Cache[string, domain.MysteryMedia]
	size        int
	placeholder string
	retry       retry.Policy
	logger      *slog.Logger
}

func NewMysteryResolver(videos trackerout.VideoStore, store trackerout.MysteryMediaStore, placeholder string, size int, policy retry.Policy, logger *slog.Logger) (*MysteryResolver, error) {
	if size < 1 {
		size = DefaultMysteryCacheSize
	}
	cache, err := lru.New[string, domain.MysteryMedia](size)
	if err != nil {
		return nil, fmt.Errorf("create mystery cache: %w", err)
	}
	return &MysteryResolver{
		videos:      videos,
		store:       store,
		cache:       cache,
		size:        size,
		placeholder: placeholder,
		retry:       policy,
		logger:      logger,
	}, nil
}

func (m *MysteryResolver) Placeholder() string {
	return m.placeholder
}

// Seed loads the most recent unresolved media into the cache.
func (m *MysteryResolver) Seed(ctx context.Context) error {
	var recent []domain.MysteryMedia
	if err := m.retry.Do(ctx, func(ctx context.Context) error {
		rows, err := m.store.RecentMysteries(ctx, m.size)
		recent = rows
		return err
	}); err != nil {
		return fmt.Errorf("seed mystery media: %w", err)
	}
	// Oldest first so the newest end up most recently used.
	for i := len(recent) - 1; i >= 0; i-- {
		media := recent[i]
		m.cache.Add(mysteryKey(media.Platform, media.MediaID), media)
	}
	return nil
}

// NameFor returns the name a video is recorded under: its own title, a title
// seen earlier for the same media, or the placeholder.
func (m *MysteryResolver) NameFor(ctx context.Context, video domain.VideoInfo) (string, error) {
	if video.Title != "" {
		return video.Title, nil
	}
	var name string
	err := m.retry.Do(ctx, func(ctx context.Context) error {
		found, err := m.videos.FindTitledName(ctx, video.Platform, video.MediaID, m.placeholder)
		name = found
		return err
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		return m.placeholder, nil
	}
	if err != nil {
		return "", fmt.Errorf("find titled name for %s: %w", video.Identity(), err)
	}
	return name, nil
}

// Observe registers a video recorded under the placeholder, or reveals the
// title of a known mystery by renaming its placeholder rows.
func (m *MysteryResolver) Observe(ctx context.Context, video domain.VideoInfo, recordedAs string, seenAt time.Time) error {
	key := mysteryKey(video.Platform, video.MediaID)
	if video.Title == "" {
		if recordedAs != m.placeholder {
			return nil
		}
		if err := m.retry.Do(ctx, func(ctx context.Context) error {
			return m.store.UpsertMystery(ctx, video.Platform, video.MediaID, seenAt)
		}); err != nil {
			return fmt.Errorf("register mystery %s: %w", key, err)
		}
		media, ok := m.cache.Get(key)
		if !ok {
			media = domain.MysteryMedia{Platform: video.Platform, MediaID: video.MediaID, FirstSeen: seenAt}
		}
		media.LastSeen = seenAt
		m.cache.Add(key, media)
		m.logger.Info("mystery media registered", "media_id", video.MediaID, "platform", video.Platform)
		return nil
	}

	mystery, err := m.IsMystery(ctx, video.Platform, video.MediaID)
	if err != nil {
		return err
	}
	if !mystery {
		return nil
	}
	return m.reveal(ctx, video)
}

func (m *MysteryResolver) reveal(ctx context.Context, video domain.VideoInfo) error {
	key := mysteryKey(video.Platform, video.MediaID)
	var logs, summaries int64
	if err := m.retry.Do(ctx, func(ctx context.Context) error {
		n, err := m.videos.RenamePlaceholderLogs(ctx, video.Platform, video.MediaID, m.placeholder, video.Title)
		logs = n
		return err
	}); err != nil {
		return fmt.Errorf("rename placeholder logs for %s: %w", key, err)
	}
	if err := m.retry.Do(ctx, func(ctx context.Context) error {
		n, err := m.videos.RenamePlaceholderSummaries(ctx, video.Platform, video.MediaID, m.placeholder, video.Title)
		summaries = n
		return err
	}); err != nil {
		return fmt.Errorf("rename placeholder summaries for %s: %w", key, err)
	}
	if err := m.retry.Do(ctx, func(ctx context.Context) error {
		return m.store.DeleteMystery(ctx, video.Platform, video.MediaID)
	}); err != nil {
		return fmt.Errorf("delete mystery %s: %w", key, err)
	}
	m.cache.Remove(key)
	m.logger.Info("mystery media revealed", "media_id", video.MediaID, "platform", video.Platform, "title", video.Title, "logs", logs, "summaries", summaries)
	return nil
}

// IsMystery checks the cache first and falls back to storage for evicted entries.
func (m *MysteryResolver) IsMystery(ctx context.Context, platform, mediaID string) (bool, error) {
	if m.cache.Contains(mysteryKey(platform, mediaID)) {
		return true, nil
	}
	err := m.retry.Do(ctx, func(ctx context.Context) error {
		_, err := m.store.FindMystery(ctx, platform, mediaID)
		return err
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find mystery %s: %w", mysteryKey(platform, mediaID), err)
	}
	return true, nil
}

func (m *MysteryResolver) Recent(ctx context.Context) ([]domain.MysteryMedia, error) {
	var out []domain.MysteryMedia
	err := m.retry.Do(ctx, func(ctx context.Context) error {
		rows, err := m.store.RecentMysteries(ctx, m.size)
		out = rows
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list mystery media: %w", err)
	}
	return out, nil
}

// CachedCount reports the number of mysteries held in memory.
func (m *MysteryResolver) CachedCount() int {
	return m.cache.Len()
}

func mysteryKey(platform, mediaID string) string {
	return domain.VideoInfo{Platform: platform, MediaID: mediaID}.Identity()
}
