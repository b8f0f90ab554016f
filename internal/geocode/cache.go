package geocode

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/db"
)

// Entry is one persisted resolution. The geocoding service is the only
// writer; entries are upserted by key and ignored once expired.
type Entry struct {
	Key              string
	Address          string
	Latitude         float64
	Longitude        float64
	FormattedAddress string
	Accuracy         Accuracy
	Provider         string
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// Cache is the persistent store port. GetFresh returns (nil, nil) on a miss,
// including entries whose expiry has passed.
type Cache interface {
	GetFresh(ctx context.Context, key string) (*Entry, error)
	Upsert(ctx context.Context, entry *Entry) error
}

// CacheStats summarizes cache contents for the status command.
type CacheStats struct {
	Total   int64
	Expired int64
}

// PostgresCache implements Cache on a geocode_cache table.
type PostgresCache struct {
	pool db.Pool
}

// NewPostgresCache creates a PostgresCache using the given pool.
func NewPostgresCache(pool db.Pool) *PostgresCache {
	return &PostgresCache{pool: pool}
}

const postgresCacheMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	cache_key         TEXT PRIMARY KEY,
	original_address  TEXT NOT NULL,
	latitude          DOUBLE PRECISION NOT NULL,
	longitude         DOUBLE PRECISION NOT NULL,
	formatted_address TEXT NOT NULL,
	accuracy          TEXT NOT NULL,
	provider          TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_expires_at ON geocode_cache(expires_at);
`

// Migrate creates the cache table if it does not exist.
func (c *PostgresCache) Migrate(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, postgresCacheMigration); err != nil {
		return eris.Wrap(err, "geocode: migrate cache")
	}
	return nil
}

// GetFresh implements Cache, filtering out expired entries on read.
func (c *PostgresCache) GetFresh(ctx context.Context, key string) (*Entry, error) {
	row := c.pool.QueryRow(ctx, `
		SELECT cache_key, original_address, latitude, longitude, formatted_address, accuracy, provider, created_at, expires_at
		FROM geocode_cache
		WHERE cache_key = $1 AND expires_at > now()`,
		key,
	)

	var e Entry
	var accuracy string
	err := row.Scan(&e.Key, &e.Address, &e.Latitude, &e.Longitude, &e.FormattedAddress, &accuracy, &e.Provider, &e.CreatedAt, &e.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "geocode: cache lookup")
	}
	e.Accuracy = Accuracy(accuracy)

	keyPrefix := key
	if len(keyPrefix) > 12 {
		keyPrefix = keyPrefix[:12]
	}
	zap.L().Debug("geocode cache hit", zap.String("key", keyPrefix), zap.String("provider", e.Provider))
	return &e, nil
}

// Upsert implements Cache. A re-resolution after expiry overwrites the old
// row with a fresh expiration.
func (c *PostgresCache) Upsert(ctx context.Context, entry *Entry) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO geocode_cache (cache_key, original_address, latitude, longitude, formatted_address, accuracy, provider, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (cache_key) DO UPDATE SET
			original_address  = EXCLUDED.original_address,
			latitude          = EXCLUDED.latitude,
			longitude         = EXCLUDED.longitude,
			formatted_address = EXCLUDED.formatted_address,
			accuracy          = EXCLUDED.accuracy,
			provider          = EXCLUDED.provider,
			created_at        = EXCLUDED.created_at,
			expires_at        = EXCLUDED.expires_at`,
		entry.Key, entry.Address, entry.Latitude, entry.Longitude, entry.FormattedAddress,
		string(entry.Accuracy), entry.Provider, entry.CreatedAt, entry.ExpiresAt,
	)
	if err != nil {
		return eris.Wrap(err, "geocode: store cache entry")
	}
	return nil
}

// Stats reports total and expired row counts.
func (c *PostgresCache) Stats(ctx context.Context) (CacheStats, error) {
	var stats CacheStats
	row := c.pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE expires_at <= now())
		FROM geocode_cache`)
	if err := row.Scan(&stats.Total, &stats.Expired); err != nil {
		return CacheStats{}, eris.Wrap(err, "geocode: cache stats")
	}
	return stats, nil
}

// Evict deletes expired rows. Correctness never depends on eviction; this
// only reclaims space.
func (c *PostgresCache) Evict(ctx context.Context) (int64, error) {
	tag, err := c.pool.Exec(ctx, `DELETE FROM geocode_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "geocode: evict cache")
	}
	return tag.RowsAffected(), nil
}
