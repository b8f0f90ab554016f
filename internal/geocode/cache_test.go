package geocode

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresCache_GetFresh_Hit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	expires := created.Add(30 * 24 * time.Hour)

	mock.ExpectQuery(`SELECT cache_key, original_address, latitude, longitude, formatted_address`).
		WithArgs("abc123").
		WillReturnRows(
			pgxmock.NewRows([]string{"cache_key", "original_address", "latitude", "longitude", "formatted_address", "accuracy", "provider", "created_at", "expires_at"}).
				AddRow("abc123", "tampa, tampa, fl, usa", 27.95, -82.45, "Tampa, Florida", "approximate", "nominatim", created, expires),
		)

	c := NewPostgresCache(mock)
	entry, err := c.GetFresh(context.Background(), "abc123")

	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "abc123", entry.Key)
	assert.InDelta(t, 27.95, entry.Latitude, 0.001)
	assert.InDelta(t, -82.45, entry.Longitude, 0.001)
	assert.Equal(t, AccuracyApproximate, entry.Accuracy)
	assert.Equal(t, "nominatim", entry.Provider)
	assert.Equal(t, expires, entry.ExpiresAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCache_GetFresh_MissIsNotAnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT cache_key, original_address, latitude, longitude, formatted_address`).
		WithArgs("missing-key").
		WillReturnError(pgx.ErrNoRows)

	c := NewPostgresCache(mock)
	entry, err := c.GetFresh(context.Background(), "missing-key")

	require.NoError(t, err)
	assert.Nil(t, entry)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCache_GetFresh_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT cache_key, original_address, latitude, longitude, formatted_address`).
		WithArgs("key").
		WillReturnError(assert.AnError)

	c := NewPostgresCache(mock)
	entry, err := c.GetFresh(context.Background(), "key")

	require.Error(t, err)
	assert.Nil(t, entry)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCache_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	expires := created.Add(30 * 24 * time.Hour)

	mock.ExpectExec(`INSERT INTO geocode_cache`).
		WithArgs("hashkey", "tampa, tampa, fl, usa", 27.95, -82.45, "Tampa, Florida", "approximate", "nominatim", created, expires).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	c := NewPostgresCache(mock)
	err = c.Upsert(context.Background(), &Entry{
		Key:              "hashkey",
		Address:          "tampa, tampa, fl, usa",
		Latitude:         27.95,
		Longitude:        -82.45,
		FormattedAddress: "Tampa, Florida",
		Accuracy:         AccuracyApproximate,
		Provider:         "nominatim",
		CreatedAt:        created,
		ExpiresAt:        expires,
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCache_Stats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT count`).
		WillReturnRows(pgxmock.NewRows([]string{"count", "count"}).AddRow(int64(42), int64(7)))

	c := NewPostgresCache(mock)
	stats, err := c.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(42), stats.Total)
	assert.Equal(t, int64(7), stats.Expired)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCache_Evict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM geocode_cache`).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	c := NewPostgresCache(mock)
	n, err := c.Evict(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteCache_RoundTrip(t *testing.T) {
	c, err := NewSQLiteCache(t.TempDir() + "/cache.db")
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Migrate(ctx))

	now := time.Now().UTC().Truncate(time.Millisecond)
	entry := &Entry{
		Key:              "k1",
		Address:          "tampa, tampa, fl, usa",
		Latitude:         27.95,
		Longitude:        -82.45,
		FormattedAddress: "Tampa, Florida",
		Accuracy:         AccuracyApproximate,
		Provider:         "nominatim",
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Hour),
	}
	require.NoError(t, c.Upsert(ctx, entry))

	got, err := c.GetFresh(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.FormattedAddress, got.FormattedAddress)
	assert.Equal(t, entry.Accuracy, got.Accuracy)
	assert.InDelta(t, entry.Latitude, got.Latitude, 0.0001)

	// Upsert by the same key overwrites.
	entry.Provider = "other"
	require.NoError(t, c.Upsert(ctx, entry))
	got, err = c.GetFresh(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "other", got.Provider)
}

func TestSQLiteCache_ExpiredEntryIsAMiss(t *testing.T) {
	c, err := NewSQLiteCache(t.TempDir() + "/cache.db")
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Migrate(ctx))

	now := time.Now().UTC()
	require.NoError(t, c.Upsert(ctx, &Entry{
		Key:              "stale",
		Address:          "x",
		Latitude:         1,
		Longitude:        1,
		FormattedAddress: "X",
		Accuracy:         AccuracyExact,
		Provider:         "nominatim",
		CreatedAt:        now.Add(-2 * time.Hour),
		ExpiresAt:        now.Add(-time.Hour),
	}))

	got, err := c.GetFresh(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, got)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.Expired)

	n, err := c.Evict(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
