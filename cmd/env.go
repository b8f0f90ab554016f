package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/coordinates"
	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/geocode"
	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/store"
)

// geocodeCache is the cache surface shared by both backends.
type geocodeCache interface {
	geocode.Cache
	Migrate(ctx context.Context) error
	Stats(ctx context.Context) (geocode.CacheStats, error)
	Evict(ctx context.Context) (int64, error)
}

// openStore opens the configured store backend and runs migrations.
func openStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres", "":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// openGeocodeCache opens the geocode cache on the same backend as the store.
func openGeocodeCache(ctx context.Context, st store.Store) (geocodeCache, error) {
	var cache geocodeCache
	switch s := st.(type) {
	case *store.PostgresStore:
		cache = geocode.NewPostgresCache(s.Pool())
	case *store.SQLiteStore:
		c, err := geocode.NewSQLiteCache(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		cache = c
	default:
		return nil, eris.New("store backend has no geocode cache")
	}
	if err := cache.Migrate(ctx); err != nil {
		return nil, err
	}
	return cache, nil
}

// newCoordinatesService wires providers, cache, and static table into a
// batch coordinate resolver.
func newCoordinatesService(cache geocode.Cache) (*coordinates.Service, error) {
	nominatim := geocode.NewNominatimProvider(cfg.Geocode.UserAgent,
		geocode.WithNominatimBaseURL(cfg.Geocode.NominatimBaseURL),
	)

	svc := geocode.NewService([]geocode.Provider{nominatim},
		geocode.WithCache(cache),
		geocode.WithRateInterval(time.Duration(cfg.Geocode.RateIntervalMillis)*time.Millisecond),
		geocode.WithProviderTimeout(time.Duration(cfg.Geocode.ProviderTimeoutSecs)*time.Second),
		geocode.WithCacheTTL(time.Duration(cfg.Geocode.CacheTTLDays)*24*time.Hour),
		geocode.WithCountry(cfg.Geocode.Country),
	)

	var static *geocode.StaticTable
	if cfg.Geocode.StaticTablePath != "" {
		t, err := geocode.LoadStaticTable(cfg.Geocode.StaticTablePath)
		if err != nil {
			return nil, eris.Wrap(err, "load static coordinate table")
		}
		static = t
		zap.L().Info("static coordinate table loaded",
			zap.String("path", cfg.Geocode.StaticTablePath),
			zap.Int("entries", t.Len()),
		)
	}

	return coordinates.NewService(svc, static), nil
}
