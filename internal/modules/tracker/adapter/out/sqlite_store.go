package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"focuslog/internal/modules/tracker/domain"
	apperrors "focuslog/internal/platform/errors"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// SQLiteStore is the DAO of one family over a shared SQLite database. It also
// holds the mystery media and heartbeat tables.
type SQLiteStore struct {
	db     *sql.DB
	family domain.Family
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The pulse worker and the event path share one connection; SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	store := &SQLiteStore{db: db, family: domain.FamilyProgram}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// ForFamily returns a store over the same database scoped to family.
func (s *SQLiteStore) ForFamily(family domain.Family) *SQLiteStore {
	return &SQLiteStore{db: s.db, family: family}
}

func (s *SQLiteStore) Family() domain.Family {
	return s.family
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS session_logs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  family TEXT NOT NULL,
  session_id TEXT NOT NULL,
  identity TEXT NOT NULL,
  name TEXT NOT NULL,
  detail TEXT NOT NULL DEFAULT '',
  platform TEXT NOT NULL DEFAULT '',
  media_id TEXT NOT NULL DEFAULT '',
  productive INTEGER NOT NULL DEFAULT 0,
  start_time TEXT NOT NULL,
  start_unix_ns INTEGER NOT NULL,
  end_time TEXT NOT NULL,
  end_local TEXT NOT NULL,
  duration_seconds INTEGER NOT NULL DEFAULT 0 CHECK (duration_seconds >= 0),
  gathering_date TEXT NOT NULL,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_logs_start ON session_logs(family, identity, start_unix_ns);
CREATE INDEX IF NOT EXISTS idx_session_logs_day ON session_logs(family, gathering_date);
CREATE INDEX IF NOT EXISTS idx_session_logs_media ON session_logs(family, platform, media_id);

CREATE TABLE IF NOT EXISTS daily_summaries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  family TEXT NOT NULL,
  identity TEXT NOT NULL,
  name TEXT NOT NULL,
  platform TEXT NOT NULL DEFAULT '',
  media_id TEXT NOT NULL DEFAULT '',
  productive INTEGER NOT NULL DEFAULT 0,
  gathering_date TEXT NOT NULL,
  hours_spent REAL NOT NULL DEFAULT 0 CHECK (hours_spent >= 0 AND hours_spent <= 24),
  created_at TEXT NOT NULL,
  UNIQUE (family, identity, gathering_date)
);

CREATE TABLE IF NOT EXISTS mystery_media (
  platform TEXT NOT NULL,
  media_id TEXT NOT NULL,
  first_seen TEXT NOT NULL,
  last_seen TEXT NOT NULL,
  last_seen_unix_ns INTEGER NOT NULL,
  discovered_name TEXT,
  PRIMARY KEY (platform, media_id)
);

CREATE TABLE IF NOT EXISTS heartbeats (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  at TEXT NOT NULL,
  at_unix_ns INTEGER NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create tracker tables: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertLog(ctx context.Context, log domain.SessionLog) (int64, error) {
	const stmt = `
INSERT INTO session_logs (family, session_id, identity, name, detail, platform, media_id, productive,
  start_time, start_unix_ns, end_time, end_local, duration_seconds, gathering_date, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	res, err := s.db.ExecContext(ctx, stmt,
		string(s.family),
		log.SessionID,
		log.Identity,
		log.Name,
		log.Detail,
		log.Platform,
		log.MediaID,
		boolInt(log.Productive),
		log.StartTime.Format(timeLayout),
		log.StartTime.UnixNano(),
		log.EndTime.Format(timeLayout),
		log.EndLocal(),
		log.DurationSeconds,
		log.GatheringDate,
		log.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert session log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read session log id: %w", err)
	}
	return id, nil
}

const logColumns = `id, family, session_id, identity, name, detail, platform, media_id, productive,
  start_time, end_time, duration_seconds, gathering_date, created_at`

func (s *SQLiteStore) FindLogByStart(ctx context.Context, identity string, start time.Time) (domain.SessionLog, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+logColumns+`
FROM session_logs
WHERE family = ? AND identity = ? AND start_unix_ns = ?
ORDER BY id DESC
LIMIT 1;
`, string(s.family), identity, start.UnixNano())
	log, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SessionLog{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.SessionLog{}, fmt.Errorf("find session log: %w", err)
	}
	return log, nil
}

func (s *SQLiteStore) UpdateLogTail(ctx context.Context, id int64, end time.Time, durationSeconds int64) error {
	if durationSeconds < 0 {
		return fmt.Errorf("%w: duration %d", apperrors.ErrNegativeDuration, durationSeconds)
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE session_logs SET end_time = ?, end_local = ?, duration_seconds = ?
WHERE id = ? AND family = ?;
`, end.Format(timeLayout), end.Format("2006-01-02T15:04:05"), durationSeconds, id, string(s.family))
	if err != nil {
		return fmt.Errorf("update session log tail: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) FindSummary(ctx context.Context, identity, day string) (domain.DailySummary, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+summaryColumns+`
FROM daily_summaries
WHERE family = ? AND identity = ? AND gathering_date = ?;
`, string(s.family), identity, day)
	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DailySummary{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.DailySummary{}, fmt.Errorf("find daily summary: %w", err)
	}
	return summary, nil
}

const summaryColumns = `id, family, identity, name, platform, media_id, productive, gathering_date, hours_spent, created_at`

func (s *SQLiteStore) InsertSummary(ctx context.Context, summary domain.DailySummary) error {
	const stmt = `
INSERT INTO daily_summaries (family, identity, name, platform, media_id, productive, gathering_date, hours_spent, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(family, identity, gathering_date) DO NOTHING;
`
	_, err := s.db.ExecContext(ctx, stmt,
		string(s.family),
		summary.Identity,
		summary.Name,
		summary.Platform,
		summary.MediaID,
		boolInt(summary.Productive),
		summary.GatheringDate,
		summary.HoursSpent,
		summary.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert daily summary: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IncrementSummary(ctx context.Context, identity, day string, deltaHours float64) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE daily_summaries SET hours_spent = MIN(?, hours_spent + ?)
WHERE family = ? AND identity = ? AND gathering_date = ?;
`, domain.MaxHoursPerDay, deltaHours, string(s.family), identity, day)
	if err != nil {
		return fmt.Errorf("increment daily summary: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) ListSummaries(ctx context.Context, day string) ([]domain.DailySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+summaryColumns+`
FROM daily_summaries
WHERE family = ? AND gathering_date = ?
ORDER BY hours_spent DESC, identity ASC;
`, string(s.family), day)
	if err != nil {
		return nil, fmt.Errorf("list daily summaries: %w", err)
	}
	defer rows.Close()
	out := []domain.DailySummary{}
	for rows.Next() {
		summary, err := scanSummary(rows)
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

func (s *SQLiteStore) ListLogs(ctx context.Context, day string) ([]domain.SessionLog, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+logColumns+`
FROM session_logs
WHERE family = ? AND gathering_date = ?
ORDER BY start_unix_ns ASC, id ASC;
`, string(s.family), day)
	if err != nil {
		return nil, fmt.Errorf("list session logs: %w", err)
	}
	defer rows.Close()
	out := []domain.SessionLog{}
	for rows.Next() {
		log, err := scanLog(rows)
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

func (s *SQLiteStore) FindTitledName(ctx context.Context, platform, mediaID, placeholder string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `
SELECT name FROM daily_summaries
WHERE family = ? AND platform = ? AND media_id = ? AND name <> ?
ORDER BY gathering_date DESC
LIMIT 1;
`, string(domain.FamilyVideo), platform, mediaID, placeholder).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find titled video name: %w", err)
	}
	return name, nil
}

func (s *SQLiteStore) RenamePlaceholderLogs(ctx context.Context, platform, mediaID, placeholder, title string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE session_logs SET name = ?
WHERE family = ? AND platform = ? AND media_id = ? AND name = ?;
`, title, string(domain.FamilyVideo), platform, mediaID, placeholder)
	if err != nil {
		return 0, fmt.Errorf("rename placeholder logs: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) RenamePlaceholderSummaries(ctx context.Context, platform, mediaID, placeholder, title string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE daily_summaries SET name = ?
WHERE family = ? AND platform = ? AND media_id = ? AND name = ?;
`, title, string(domain.FamilyVideo), platform, mediaID, placeholder)
	if err != nil {
		return 0, fmt.Errorf("rename placeholder summaries: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) UpsertMystery(ctx context.Context, platform, mediaID string, seenAt time.Time) error {
	const stmt = `
INSERT INTO mystery_media (platform, media_id, first_seen, last_seen, last_seen_unix_ns)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(platform, media_id) DO UPDATE SET
  last_seen=excluded.last_seen,
  last_seen_unix_ns=excluded.last_seen_unix_ns;
`
	at := seenAt.Format(timeLayout)
	if _, err := s.db.ExecContext(ctx, stmt, platform, mediaID, at, at, seenAt.UnixNano()); err != nil {
		return fmt.Errorf("upsert mystery media: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteMystery(ctx context.Context, platform, mediaID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM mystery_media WHERE platform = ? AND media_id = ?`, platform, mediaID); err != nil {
		return fmt.Errorf("delete mystery media: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindMystery(ctx context.Context, platform, mediaID string) (domain.MysteryMedia, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT platform, media_id, first_seen, last_seen, discovered_name
FROM mystery_media
WHERE platform = ? AND media_id = ?;
`, platform, mediaID)
	media, err := scanMystery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MysteryMedia{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.MysteryMedia{}, fmt.Errorf("find mystery media: %w", err)
	}
	return media, nil
}

func (s *SQLiteStore) RecentMysteries(ctx context.Context, limit int) ([]domain.MysteryMedia, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT platform, media_id, first_seen, last_seen, discovered_name
FROM mystery_media
ORDER BY last_seen_unix_ns DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list mystery media: %w", err)
	}
	defer rows.Close()
	out := []domain.MysteryMedia{}
	for rows.Next() {
		media, err := scanMystery(rows)
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

func (s *SQLiteStore) RecordHeartbeat(ctx context.Context, at time.Time) error {
	const stmt = `
INSERT INTO heartbeats (id, at, at_unix_ns) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET at=excluded.at, at_unix_ns=excluded.at_unix_ns;
`
	if _, err := s.db.ExecContext(ctx, stmt, at.Format(timeLayout), at.UnixNano()); err != nil {
		return fmt.Errorf("record heartbeat: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LatestHeartbeat(ctx context.Context) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT at FROM heartbeats WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read heartbeat: %w", err)
	}
	return parseTime(raw)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLog(row scanner) (domain.SessionLog, error) {
	var (
		log                   domain.SessionLog
		family                string
		productive            int
		start, end, createdAt string
	)
	if err := row.Scan(&log.ID, &family, &log.SessionID, &log.Identity, &log.Name, &log.Detail, &log.Platform, &log.MediaID,
		&productive, &start, &end, &log.DurationSeconds, &log.GatheringDate, &createdAt); err != nil {
		return domain.SessionLog{}, err
	}
	log.Family = domain.Family(family)
	log.Productive = productive != 0
	var err error
	if log.StartTime, err = parseTime(start); err != nil {
		return domain.SessionLog{}, err
	}
	if log.EndTime, err = parseTime(end); err != nil {
		return domain.SessionLog{}, err
	}
	if log.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.SessionLog{}, err
	}
	return log, nil
}

func scanSummary(row scanner) (domain.DailySummary, error) {
	var (
		summary    domain.DailySummary
		family     string
		productive int
		createdAt  string
	)
	if err := row.Scan(&summary.ID, &family, &summary.Identity, &summary.Name, &summary.Platform, &summary.MediaID,
		&productive, &summary.GatheringDate, &summary.HoursSpent, &createdAt); err != nil {
		return domain.DailySummary{}, err
	}
	summary.Family = domain.Family(family)
	summary.Productive = productive != 0
	var err error
	if summary.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.DailySummary{}, err
	}
	return summary, nil
}

func scanMystery(row scanner) (domain.MysteryMedia, error) {
	var (
		media           domain.MysteryMedia
		first, last     string
		discoveredTitle sql.NullString
	)
	if err := row.Scan(&media.Platform, &media.MediaID, &first, &last, &discoveredTitle); err != nil {
		return domain.MysteryMedia{}, err
	}
	media.DiscoveredName = discoveredTitle.String
	var err error
	if media.FirstSeen, err = parseTime(first); err != nil {
		return domain.MysteryMedia{}, err
	}
	if media.LastSeen, err = parseTime(last); err != nil {
		return domain.MysteryMedia{}, err
	}
	return media, nil
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", raw, err)
	}
	return t, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read affected rows: %w", err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
