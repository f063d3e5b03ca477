package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/response-guard/internal/memory"
	"github.com/rcliao/response-guard/internal/model"
)

// timeFormat is fixed width so stored timestamps compare correctly as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
	now     func() time.Time
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id                 TEXT PRIMARY KEY,
		summary            TEXT,
		user_since_summary INTEGER NOT NULL DEFAULT 0,
		last_updated       TEXT,
		saved_at           TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_saved ON sessions(saved_at DESC);

	CREATE TABLE IF NOT EXISTS records (
		session_id   TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		tier         TEXT NOT NULL,
		id           TEXT NOT NULL,
		seq          INTEGER NOT NULL,
		speaker      TEXT NOT NULL,
		content      TEXT NOT NULL,
		created_at   TEXT NOT NULL,
		emotion_tags TEXT,
		topic_tags   TEXT,
		importance   REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (session_id, tier, id)
	);
	CREATE INDEX IF NOT EXISTS idx_records_session_seq ON records(session_id, tier, seq);
	CREATE INDEX IF NOT EXISTS idx_records_speaker ON records(speaker);

	CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
		content,
		content=records,
		content_rowid=rowid
	);

	CREATE TRIGGER IF NOT EXISTS records_ai AFTER INSERT ON records BEGIN
		INSERT INTO records_fts(rowid, content) VALUES (new.rowid, new.content);
	END;
	CREATE TRIGGER IF NOT EXISTS records_ad AFTER DELETE ON records BEGIN
		INSERT INTO records_fts(records_fts, rowid, content) VALUES('delete', old.rowid, old.content);
	END;
	CREATE TRIGGER IF NOT EXISTS records_au AFTER UPDATE ON records BEGIN
		INSERT INTO records_fts(records_fts, rowid, content) VALUES('delete', old.rowid, old.content);
		INSERT INTO records_fts(rowid, content) VALUES (new.rowid, new.content);
	END;
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save replaces the stored snapshot of sessionID in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, sessionID string, snap memory.Snapshot) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}

	summary, err := marshalList(snap.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, summary, user_since_summary, last_updated, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			summary = excluded.summary,
			user_since_summary = excluded.user_since_summary,
			last_updated = excluded.last_updated,
			saved_at = excluded.saved_at`,
		sessionID, summary, snap.UserSinceSummary, formatTime(snap.LastUpdated), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (session_id, tier, id, seq, speaker, content, created_at, emotion_tags, topic_tags, importance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	short, long := s.fillRecords(snap.ShortTerm, snap.LongTerm)
	for _, tier := range []struct {
		name Tier
		recs []model.MemoryRecord
	}{{TierShort, short}, {TierLong, long}} {
		for i, r := range tier.recs {
			emotions, err := marshalList(r.EmotionTags)
			if err != nil {
				return fmt.Errorf("encode tags: %w", err)
			}
			topics, err := marshalList(r.TopicTags)
			if err != nil {
				return fmt.Errorf("encode tags: %w", err)
			}
			_, err = stmt.ExecContext(ctx, sessionID, string(tier.name), r.ID, i, string(r.Speaker),
				r.Content, formatTime(r.Timestamp), emotions, topics, r.Importance)
			if err != nil {
				return fmt.Errorf("insert %s record %s: %w", tier.name, r.ID, err)
			}
		}
	}

	return tx.Commit()
}

// fillRecords returns copies of both tiers with missing IDs and timestamps
// set. A record held in both tiers gets the same ID in each.
func (s *SQLiteStore) fillRecords(short, long []model.MemoryRecord) ([]model.MemoryRecord, []model.MemoryRecord) {
	type key struct {
		speaker model.Speaker
		content string
		at      time.Time
	}
	ids := map[key]string{}
	now := s.now()
	fill := func(recs []model.MemoryRecord) []model.MemoryRecord {
		out := make([]model.MemoryRecord, len(recs))
		for i, r := range recs {
			if r.ID == "" {
				k := key{r.Speaker, r.Content, r.Timestamp}
				if ids[k] == "" {
					ids[k] = s.newID()
				}
				r.ID = ids[k]
			}
			if r.Timestamp.IsZero() {
				r.Timestamp = now
			}
			out[i] = r
		}
		return out
	}
	return fill(short), fill(long)
}

// Load returns the stored snapshot of sessionID. An unknown session yields
// an empty snapshot and no error.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (memory.Snapshot, error) {
	var snap memory.Snapshot
	var summary, lastUpdated sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT summary, user_since_summary, last_updated FROM sessions WHERE id = ?`, sessionID).
		Scan(&summary, &snap.UserSinceSummary, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return memory.Snapshot{}, nil
	}
	if err != nil {
		return memory.Snapshot{}, err
	}
	if snap.Summary, err = unmarshalList(summary); err != nil {
		return memory.Snapshot{}, fmt.Errorf("decode summary: %w", err)
	}
	if snap.LastUpdated, err = parseTime(lastUpdated.String); err != nil {
		return memory.Snapshot{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tier, id, speaker, content, created_at, emotion_tags, topic_tags, importance
		FROM records WHERE session_id = ? ORDER BY tier DESC, seq`, sessionID)
	if err != nil {
		return memory.Snapshot{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var tier string
		r, err := scanRecord(rows, &tier)
		if err != nil {
			return memory.Snapshot{}, err
		}
		if Tier(tier) == TierLong {
			snap.LongTerm = append(snap.LongTerm, r)
		} else {
			snap.ShortTerm = append(snap.ShortTerm, r)
		}
	}
	return snap, rows.Err()
}

// Session returns the stored summary of one session.
func (s *SQLiteStore) Session(ctx context.Context, sessionID string) (*SessionInfo, error) {
	infos, err := s.querySessions(ctx, `WHERE s.id = ?`, sessionID)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, ErrNotFound
	}
	return &infos[0], nil
}

// ListSessions lists stored sessions, most recently saved first.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]SessionInfo, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.querySessions(ctx, `ORDER BY s.saved_at DESC LIMIT ?`, limit)
}

func (s *SQLiteStore) querySessions(ctx context.Context, tail string, args ...interface{}) ([]SessionInfo, error) {
	query := `
		SELECT s.id,
		       (SELECT COUNT(*) FROM records r WHERE r.session_id = s.id AND r.tier = 'short'),
		       (SELECT COUNT(*) FROM records r WHERE r.session_id = s.id AND r.tier = 'long'),
		       COALESCE(json_array_length(s.summary), 0),
		       s.last_updated, s.saved_at
		FROM sessions s ` + tail

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var lastUpdated sql.NullString
		var savedAt string
		if err := rows.Scan(&info.ID, &info.ShortTerm, &info.LongTerm, &info.Summaries, &lastUpdated, &savedAt); err != nil {
			return nil, err
		}
		if info.LastUpdated, err = parseTime(lastUpdated.String); err != nil {
			return nil, err
		}
		if info.SavedAt, err = parseTime(savedAt); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// DeleteSession removes a session and its records.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// Prune deletes sessions whose memory was last updated longer ago than
// olderThan (e.g. "30d", "12h"). It returns the number of sessions removed.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan string) (int, error) {
	d, err := parseTTL(olderThan)
	if err != nil {
		return 0, fmt.Errorf("older-than: %w", err)
	}
	cutoff := formatTime(s.now().Add(-d))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	const stale = `SELECT id FROM sessions WHERE COALESCE(last_updated, saved_at) < ?`
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE session_id IN (`+stale+`)`, cutoff); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id IN (`+stale+`)`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord reads one record row. Leading columns before the record
// fields are scanned into prefix.
func scanRecord(row scanner, prefix ...interface{}) (model.MemoryRecord, error) {
	var r model.MemoryRecord
	var speaker, createdAt string
	var emotions, topics sql.NullString

	dest := append(prefix, &r.ID, &speaker, &r.Content, &createdAt, &emotions, &topics, &r.Importance)
	if err := row.Scan(dest...); err != nil {
		return r, err
	}
	r.Speaker = model.Speaker(speaker)

	var err error
	if r.Timestamp, err = parseTime(createdAt); err != nil {
		return r, err
	}
	if r.EmotionTags, err = unmarshalList(emotions); err != nil {
		return r, fmt.Errorf("decode emotion tags: %w", err)
	}
	if r.TopicTags, err = unmarshalList(topics); err != nil {
		return r, fmt.Errorf("decode topic tags: %w", err)
	}
	return r, nil
}

// marshalList encodes a list as JSON, storing empty lists as NULL.
func marshalList(items []string) (interface{}, error) {
	if len(items) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalList(v sql.NullString) ([]string, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(v.String), &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

// formatTime stores the zero time as NULL.
func formatTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeFormat, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", v, err)
	}
	return t, nil
}

var ttlRegex = regexp.MustCompile(`^(\d+)([dhms])$`)

// parseTTL parses a duration string like "7d", "24h", "30m" into a time.Duration.
func parseTTL(s string) (time.Duration, error) {
	m := ttlRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid format %q (use e.g. 7d, 24h, 30m, 60s)", s)
	}
	n, _ := strconv.Atoi(m[1])
	switch m[2] {
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "s":
		return time.Duration(n) * time.Second, nil
	}
	return 0, fmt.Errorf("unknown unit %q", m[2])
}
