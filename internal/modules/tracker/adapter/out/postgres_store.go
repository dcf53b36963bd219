package out

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"focuslog/internal/modules/tracker/domain"
	apperrors "focuslog/internal/platform/errors"
)

// PostgresStore is the pooled alternative to SQLiteStore. Every call borrows a
// connection from the pool for its own duration.
type PostgresStore struct {
	pool   *pgxpool.Pool
	family domain.Family
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := &PostgresStore{pool: pool, family: domain.FamilyProgram}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (p *PostgresStore) ForFamily(family domain.Family) *PostgresStore {
	return &PostgresStore{pool: p.pool, family: family}
}

func (p *PostgresStore) Family() domain.Family {
	return p.family
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}

func (p *PostgresStore) Health(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS session_logs (
  id BIGSERIAL PRIMARY KEY,
  family TEXT NOT NULL,
  session_id TEXT NOT NULL,
  identity TEXT NOT NULL,
  name TEXT NOT NULL,
  detail TEXT NOT NULL DEFAULT '',
  platform TEXT NOT NULL DEFAULT '',
  media_id TEXT NOT NULL DEFAULT '',
  productive BOOLEAN NOT NULL DEFAULT FALSE,
  start_time TIMESTAMPTZ NOT NULL,
  start_unix_ns BIGINT NOT NULL,
  end_time TIMESTAMPTZ NOT NULL,
  end_local TEXT NOT NULL,
  duration_seconds BIGINT NOT NULL DEFAULT 0 CHECK (duration_seconds >= 0),
  gathering_date TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_logs_start ON session_logs(family, identity, start_unix_ns);
CREATE INDEX IF NOT EXISTS idx_session_logs_day ON session_logs(family, gathering_date);
CREATE INDEX IF NOT EXISTS idx_session_logs_media ON session_logs(family, platform, media_id);

CREATE TABLE IF NOT EXISTS daily_summaries (
  id BIGSERIAL PRIMARY KEY,
  family TEXT NOT NULL,
  identity TEXT NOT NULL,
  name TEXT NOT NULL,
  platform TEXT NOT NULL DEFAULT '',
  media_id TEXT NOT NULL DEFAULT '',
  productive BOOLEAN NOT NULL DEFAULT FALSE,
  gathering_date TEXT NOT NULL,
  hours_spent DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (hours_spent >= 0 AND hours_spent <= 24),
  created_at TIMESTAMPTZ NOT NULL,
  UNIQUE (family, identity, gathering_date)
);

CREATE TABLE IF NOT EXISTS mystery_media (
  platform TEXT NOT NULL,
  media_id TEXT NOT NULL,
  first_seen TIMESTAMPTZ NOT NULL,
  last_seen TIMESTAMPTZ NOT NULL,
  discovered_name TEXT,
  PRIMARY KEY (platform, media_id)
);

CREATE TABLE IF NOT EXISTS heartbeats (
  id SMALLINT PRIMARY KEY CHECK (id = 1),
  at TIMESTAMPTZ NOT NULL
);
`
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create tracker tables: %w", err)
	}
	return nil
}

func (p *PostgresStore) InsertLog(ctx context.Context, log domain.SessionLog) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO session_logs (family, session_id, identity, name, detail, platform, media_id, productive,
		   start_time, start_unix_ns, end_time, end_local, duration_seconds, gathering_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id`,
		string(p.family),
		log.SessionID,
		log.Identity,
		log.Name,
		log.Detail,
		log.Platform,
		log.MediaID,
		log.Productive,
		log.StartTime,
		log.StartTime.UnixNano(),
		log.EndTime,
		log.EndLocal(),
		log.DurationSeconds,
		log.GatheringDate,
		log.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert session log: %w", err)
	}
	return id, nil
}

func (p *PostgresStore) FindLogByStart(ctx context.Context, identity string, start time.Time) (domain.SessionLog, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+logColumns+`
		 FROM session_logs
		 WHERE family = $1 AND identity = $2 AND start_unix_ns = $3
		 ORDER BY id DESC
		 LIMIT 1`,
		string(p.family), identity, start.UnixNano())
	log, err := scanPgLog(row, start.Location())
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SessionLog{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.SessionLog{}, fmt.Errorf("find session log: %w", err)
	}
	return log, nil
}

func (p *PostgresStore) UpdateLogTail(ctx context.Context, id int64, end time.Time, durationSeconds int64) error {
	if durationSeconds < 0 {
		return fmt.Errorf("%w: duration %d", apperrors.ErrNegativeDuration, durationSeconds)
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE session_logs SET end_time = $1, end_local = $2, duration_seconds = $3
		 WHERE id = $4 AND family = $5`,
		end, end.Format("2006-01-02T15:04:05"), durationSeconds, id, string(p.family))
	if err != nil {
		return fmt.Errorf("update session log tail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (p *PostgresStore) FindSummary(ctx context.Context, identity, day string) (domain.DailySummary, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+summaryColumns+`
		 FROM daily_summaries
		 WHERE family = $1 AND identity = $2 AND gathering_date = $3`,
		string(p.family), identity, day)
	summary, err := scanPgSummary(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DailySummary{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.DailySummary{}, fmt.Errorf("find daily summary: %w", err)
	}
	return summary, nil
}

func (p *PostgresStore) InsertSummary(ctx context.Context, summary domain.DailySummary) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO daily_summaries (family, identity, name, platform, media_id, productive, gathering_date, hours_spent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (family, identity, gathering_date) DO NOTHING`,
		string(p.family),
		summary.Identity,
		summary.Name,
		summary.Platform,
		summary.MediaID,
		summary.Productive,
		summary.GatheringDate,
		summary.HoursSpent,
		summary.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert daily summary: %w", err)
	}
	return nil
}

// IncrementSummary locks the row for the find-then-add so concurrent
// increments of one identity serialize.
func (p *PostgresStore) IncrementSummary(ctx context.Context, identity, day string, deltaHours float64) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin increment: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		id    int64
		hours float64
	)
	err = tx.QueryRow(ctx,
		`SELECT id, hours_spent FROM daily_summaries
		 WHERE family = $1 AND identity = $2 AND gathering_date = $3
		 FOR UPDATE`,
		string(p.family), identity, day).Scan(&id, &hours)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock daily summary: %w", err)
	}
	next := hours + deltaHours
	if next > domain.MaxHoursPerDay {
		next = domain.MaxHoursPerDay
	}
	if _, err := tx.Exec(ctx, `UPDATE daily_summaries SET hours_spent = $1 WHERE id = $2`, next, id); err != nil {
		return fmt.Errorf("increment daily summary: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit increment: %w", err)
	}
	return nil
}

func (p *PostgresStore) ListSummaries(ctx context.Context, day string) ([]domain.DailySummary, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+summaryColumns+`
		 FROM daily_summaries
		 WHERE family = $1 AND gathering_date = $2
		 ORDER BY hours_spent DESC, identity ASC`,
		string(p.family), day)
	if err != nil {
		return nil, fmt.Errorf("list daily summaries: %w", err)
	}
	defer rows.Close()
	out := []domain.DailySummary{}
	for rows.Next() {
		summary, err := scanPgSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily summary: %w", err)
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily summaries: %w", err)
	}
	return out, nil
}

func (p *PostgresStore) ListLogs(ctx context.Context, day string) ([]domain.SessionLog, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+logColumns+`
		 FROM session_logs
		 WHERE family = $1 AND gathering_date = $2
		 ORDER BY start_unix_ns ASC, id ASC`,
		string(p.family), day)
	if err != nil {
		return nil, fmt.Errorf("list session logs: %w", err)
	}
	defer rows.Close()
	out := []domain.SessionLog{}
	for rows.Next() {
		log, err := scanPgLog(rows, time.Local)
		if err != nil {
			return nil, fmt.Errorf("scan session log: %w", err)
		}
		out = append(out, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session logs: %w", err)
	}
	return out, nil
}

func (p *PostgresStore) FindTitledName(ctx context.Context, platform, mediaID, placeholder string) (string, error) {
	var name string
	err := p.pool.QueryRow(ctx,
		`SELECT name FROM daily_summaries
		 WHERE family = $1 AND platform = $2 AND media_id = $3 AND name <> $4
		 ORDER BY gathering_date DESC
		 LIMIT 1`,
		string(domain.FamilyVideo), platform, mediaID, placeholder).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find titled video name: %w", err)
	}
	return name, nil
}

func (p *PostgresStore) RenamePlaceholderLogs(ctx context.Context, platform, mediaID, placeholder, title string) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE session_logs SET name = $1
		 WHERE family = $2 AND platform = $3 AND media_id = $4 AND name = $5`,
		title, string(domain.FamilyVideo), platform, mediaID, placeholder)
	if err != nil {
		return 0, fmt.Errorf("rename placeholder logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresStore) RenamePlaceholderSummaries(ctx context.Context, platform, mediaID, placeholder, title string) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE daily_summaries SET name = $1
		 WHERE family = $2 AND platform = $3 AND media_id = $4 AND name = $5`,
		title, string(domain.FamilyVideo), platform, mediaID, placeholder)
	if err != nil {
		return 0, fmt.Errorf("rename placeholder summaries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresStore) UpsertMystery(ctx context.Context, platform, mediaID string, seenAt time.Time) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO mystery_media (platform, media_id, first_seen, last_seen)
		 VALUES ($1, $2, $3, $3)
		 ON CONFLICT (platform, media_id) DO UPDATE
		 SET last_seen = EXCLUDED.last_seen`,
		platform, mediaID, seenAt)
	if err != nil {
		return fmt.Errorf("upsert mystery media: %w", err)
	}
	return nil
}

func (p *PostgresStore) DeleteMystery(ctx context.Context, platform, mediaID string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM mystery_media WHERE platform = $1 AND media_id = $2`, platform, mediaID); err != nil {
		return fmt.Errorf("delete mystery media: %w", err)
	}
	return nil
}

func (p *PostgresStore) FindMystery(ctx context.Context, platform, mediaID string) (domain.MysteryMedia, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT platform, media_id, first_seen, last_seen, discovered_name
		 FROM mystery_media
		 WHERE platform = $1 AND media_id = $2`,
		platform, mediaID)
	media, err := scanPgMystery(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MysteryMedia{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.MysteryMedia{}, fmt.Errorf("find mystery media: %w", err)
	}
	return media, nil
}

func (p *PostgresStore) RecentMysteries(ctx context.Context, limit int) ([]domain.MysteryMedia, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx,
		`SELECT platform, media_id, first_seen, last_seen, discovered_name
		 FROM mystery_media
		 ORDER BY last_seen DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list mystery media: %w", err)
	}
	defer rows.Close()
	out := []domain.MysteryMedia{}
	for rows.Next() {
		media, err := scanPgMystery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mystery media: %w", err)
		}
		out = append(out, media)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mystery media: %w", err)
	}
	return out, nil
}

func (p *PostgresStore) RecordHeartbeat(ctx context.Context, at time.Time) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO heartbeats (id, at) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET at = EXCLUDED.at`, at)
	if err != nil {
		return fmt.Errorf("record heartbeat: %w", err)
	}
	return nil
}

func (p *PostgresStore) LatestHeartbeat(ctx context.Context) (time.Time, error) {
	var at time.Time
	err := p.pool.QueryRow(ctx, `SELECT at FROM heartbeats WHERE id = 1`).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read heartbeat: %w", err)
	}
	return at, nil
}

func scanPgLog(row pgx.Row, loc *time.Location) (domain.SessionLog, error) {
	var (
		log    domain.SessionLog
		family string
	)
	if err := row.Scan(&log.ID, &family, &log.SessionID, &log.Identity, &log.Name, &log.Detail, &log.Platform, &log.MediaID,
		&log.Productive, &log.StartTime, &log.EndTime, &log.DurationSeconds, &log.GatheringDate, &log.CreatedAt); err != nil {
		return domain.SessionLog{}, err
	}
	log.Family = domain.Family(family)
	log.StartTime = log.StartTime.In(loc)
	log.EndTime = log.EndTime.In(loc)
	return log, nil
}

func scanPgSummary(row pgx.Row) (domain.DailySummary, error) {
	var (
		summary domain.DailySummary
		family  string
	)
	if err := row.Scan(&summary.ID, &family, &summary.Identity, &summary.Name, &summary.Platform, &summary.MediaID,
		&summary.Productive, &summary.GatheringDate, &summary.HoursSpent, &summary.CreatedAt); err != nil {
		return domain.DailySummary{}, err
	}
	summary.Family = domain.Family(family)
	return summary, nil
}

func scanPgMystery(row pgx.Row) (domain.MysteryMedia, error) {
	var (
		media      domain.MysteryMedia
		discovered *string
	)
	if err := row.Scan(&media.Platform, &media.MediaID, &media.FirstSeen, &media.LastSeen, &discovered); err != nil {
		return domain.MysteryMedia{}, err
	}
	if discovered != nil {
		media.DiscoveredName = *discovered
	}
	return media, nil
}
