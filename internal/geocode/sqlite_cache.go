package geocode

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteCache implements Cache on a local SQLite database for single-user
// and offline deployments. Timestamps are stored as RFC 3339 UTC strings,
// which compare correctly as text.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens (or creates) a SQLite cache at the given path.
func NewSQLiteCache(dsn string) (*SQLiteCache, error) {
	d, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: open sqlite cache")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := d.Exec(pragma); err != nil {
			d.Close()
			return nil, eris.Wrapf(err, "geocode: sqlite exec %s", pragma)
		}
	}
	return &SQLiteCache{db: d}, nil
}

const sqliteCacheMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	cache_key         TEXT PRIMARY KEY,
	original_address  TEXT NOT NULL,
	latitude          REAL NOT NULL,
	longitude         REAL NOT NULL,
	formatted_address TEXT NOT NULL,
	accuracy          TEXT NOT NULL,
	provider          TEXT NOT NULL,
	created_at        TEXT NOT NULL,
	expires_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_expires_at ON geocode_cache(expires_at);
`

// Migrate creates the cache table if it does not exist.
func (c *SQLiteCache) Migrate(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, sqliteCacheMigration); err != nil {
		return eris.Wrap(err, "geocode: migrate sqlite cache")
	}
	return nil
}

// Close closes the underlying database.
func (c *SQLiteCache) Close() error { return c.db.Close() }

func sqliteTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// GetFresh implements Cache.
func (c *SQLiteCache) GetFresh(ctx context.Context, key string) (*Entry, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT cache_key, original_address, latitude, longitude, formatted_address, accuracy, provider, created_at, expires_at
		FROM geocode_cache
		WHERE cache_key = ? AND expires_at > ?`,
		key, sqliteTime(time.Now()),
	)

	var e Entry
	var accuracy, createdAt, expiresAt string
	err := row.Scan(&e.Key, &e.Address, &e.Latitude, &e.Longitude, &e.FormattedAddress, &accuracy, &e.Provider, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "geocode: sqlite cache lookup")
	}
	e.Accuracy = Accuracy(accuracy)
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, eris.Wrap(err, "geocode: sqlite parse created_at")
	}
	if e.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt); err != nil {
		return nil, eris.Wrap(err, "geocode: sqlite parse expires_at")
	}
	return &e, nil
}

// Upsert implements Cache.
func (c *SQLiteCache) Upsert(ctx context.Context, entry *Entry) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (cache_key, original_address, latitude, longitude, formatted_address, accuracy, provider, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			original_address  = excluded.original_address,
			latitude          = excluded.latitude,
			longitude         = excluded.longitude,
			formatted_address = excluded.formatted_address,
			accuracy          = excluded.accuracy,
			provider          = excluded.provider,
			created_at        = excluded.created_at,
			expires_at        = excluded.expires_at`,
		entry.Key, entry.Address, entry.Latitude, entry.Longitude, entry.FormattedAddress,
		string(entry.Accuracy), entry.Provider, sqliteTime(entry.CreatedAt), sqliteTime(entry.ExpiresAt),
	)
	if err != nil {
		return eris.Wrap(err, "geocode: sqlite store cache entry")
	}
	return nil
}

// Stats reports total and expired row counts.
func (c *SQLiteCache) Stats(ctx context.Context) (CacheStats, error) {
	var stats CacheStats
	row := c.db.QueryRowContext(ctx, `
		SELECT count(*), count(CASE WHEN expires_at <= ? THEN 1 END)
		FROM geocode_cache`,
		sqliteTime(time.Now()),
	)
	if err := row.Scan(&stats.Total, &stats.Expired); err != nil {
		return CacheStats{}, eris.Wrap(err, "geocode: sqlite cache stats")
	}
	return stats, nil
}

// Evict deletes expired rows.
func (c *SQLiteCache) Evict(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM geocode_cache WHERE expires_at <= ?`, sqliteTime(time.Now()))
	if err != nil {
		return 0, eris.Wrap(err, "geocode: sqlite evict cache")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "geocode: sqlite evict rows affected")
	}
	return n, nil
}
