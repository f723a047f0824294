// Package store persists the merged catalog in SQLite and answers the
// dynamic filter/pagination queries consumers page through.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/snapetech/chancat/internal/catalog"
)

// StorageError wraps any store-layer failure. Unlike per-source fetch
// errors, a StorageError is fatal to the calling operation and must reach
// the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// ErrNotFound is returned by SetReachable when no channel has the given URL.
var ErrNotFound = sql.ErrNoRows

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS channels (
	url            TEXT PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	grp            TEXT NOT NULL DEFAULT '',
	guide_id       TEXT NOT NULL DEFAULT '',
	guide_name     TEXT NOT NULL DEFAULT '',
	logo_url       TEXT NOT NULL DEFAULT '',
	has_guide_data INTEGER NOT NULL DEFAULT 0,
	reachable      INTEGER NOT NULL DEFAULT 0,
	resolution     TEXT NOT NULL DEFAULT '',
	content_type   TEXT NOT NULL DEFAULT '',
	last_updated   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_channels_name ON channels(name);
CREATE INDEX IF NOT EXISTS idx_channels_grp ON channels(grp);
CREATE INDEX IF NOT EXISTS idx_channels_reachable ON channels(reachable);
CREATE INDEX IF NOT EXISTS idx_channels_resolution ON channels(resolution);
CREATE INDEX IF NOT EXISTS idx_channels_content_type ON channels(content_type);
CREATE INDEX IF NOT EXISTS idx_channels_grp_reachable ON channels(grp, reachable);
CREATE INDEX IF NOT EXISTS idx_channels_name_reachable ON channels(name, reachable);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Open opens (creating if needed) the catalog database at path and migrates
// the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storageErr("open", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, storageErr("pragma", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, storageErr("pragma", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, storageErr("migrate", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Upsert writes a merged channel batch in one transaction: either the whole
// batch applies or none of it does. Existing rows are overwritten field by
// field except reachable, which only the Validator touches — probe state
// must survive a catalog refresh.
func (s *Store) Upsert(ctx context.Context, channels []catalog.Channel) error {
	if len(channels) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("upsert: begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO channels (url, name, grp, guide_id, guide_name, logo_url,
			has_guide_data, reachable, resolution, content_type, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			name = excluded.name,
			grp = excluded.grp,
			guide_id = excluded.guide_id,
			guide_name = excluded.guide_name,
			logo_url = excluded.logo_url,
			has_guide_data = excluded.has_guide_data,
			resolution = excluded.resolution,
			content_type = excluded.content_type,
			last_updated = excluded.last_updated`)
	if err != nil {
		return storageErr("upsert: prepare", err)
	}
	defer stmt.Close()

	for _, ch := range channels {
		if ch.URL == "" {
			return storageErr("upsert", fmt.Errorf("channel %q has empty url", ch.Name))
		}
		_, err := stmt.ExecContext(ctx,
			ch.URL, ch.Name, ch.Group, ch.GuideID, ch.GuideName, ch.LogoURL,
			boolToInt(ch.HasGuideData), int(ch.Reachable), ch.Resolution,
			ch.ContentType, timeToText(ch.LastUpdated))
		if err != nil {
			return storageErr("upsert: exec", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr("upsert: commit", err)
	}
	return nil
}

// SetReachable records a probe outcome for one channel.
func (s *Store) SetReachable(ctx context.Context, url string, r catalog.Reachability) error {
	res, err := s.db.ExecContext(ctx, "UPDATE channels SET reachable = ? WHERE url = ?", int(r), url)
	if err != nil {
		return storageErr("set reachable", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("set reachable", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of channels matching f. It shares its WHERE
// clause with Query so pagination totals are always consistent.
func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	where, args := f.whereClause()
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM channels"+where, args...).Scan(&n)
	if err != nil {
		return 0, storageErr("count", err)
	}
	return n, nil
}

// Query returns a page of channels matching f, ordered by (name, url) so
// pagination is stable. limit < 0 means no limit.
func (s *Store) Query(ctx context.Context, f Filter, limit, offset int) ([]catalog.Channel, error) {
	where, args := f.whereClause()
	if limit < 0 {
		limit = -1 // SQLite: LIMIT -1 is unlimited
	}
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, name, grp, guide_id, guide_name, logo_url,
			has_guide_data, reachable, resolution, content_type, last_updated
		FROM channels`+where+`
		ORDER BY name, url
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, storageErr("query", err)
	}
	defer rows.Close()

	var out []catalog.Channel
	for rows.Next() {
		var ch catalog.Channel
		var hasGuide, reachable int
		var lastUpdated string
		err := rows.Scan(&ch.URL, &ch.Name, &ch.Group, &ch.GuideID, &ch.GuideName,
			&ch.LogoURL, &hasGuide, &reachable, &ch.Resolution, &ch.ContentType, &lastUpdated)
		if err != nil {
			return nil, storageErr("query: scan", err)
		}
		ch.HasGuideData = hasGuide != 0
		ch.Reachable = catalog.Reachability(reachable)
		ch.LastUpdated = textToTime(lastUpdated)
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query: rows", err)
	}
	return out, nil
}

// SetMeta records a refresh bookkeeping value (e.g. last refresh time).
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return storageErr("set meta", err)
	}
	return nil
}

// GetMeta returns the stored value for key, or "" when unset.
func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", storageErr("get meta", err)
	}
	return v, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeToText(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func textToTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
