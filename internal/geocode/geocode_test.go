package geocode

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider returns canned results and counts calls.
type fakeProvider struct {
	name      string
	result    *Result
	err       error
	mu        sync.Mutex
	calls     int
	addresses []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Resolve(_ context.Context, address, _ string) (*Result, error) {
	f.mu.Lock()
	f.calls++
	f.addresses = append(f.addresses, address)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memCache is an in-memory Cache with injectable failures.
type memCache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	getErr  error
	putErr  error
	gets    int
	puts    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*Entry)}
}

func (c *memCache) GetFresh(_ context.Context, key string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, c.getErr
	}
	e, ok := c.entries[key]
	if !ok || !e.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return e, nil
}

func (c *memCache) Upsert(_ context.Context, entry *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	if c.putErr != nil {
		return c.putErr
	}
	c.entries[entry.Key] = entry
	return nil
}

func tampaResult() *Result {
	return &Result{
		Latitude:         27.9506,
		Longitude:        -82.4572,
		FormattedAddress: "Tampa, Hillsborough County, Florida, United States",
		Accuracy:         AccuracyApproximate,
	}
}

func newTestService(cache Cache, providers ...Provider) *Service {
	opts := []Option{WithRateInterval(time.Microsecond)}
	if cache != nil {
		opts = append(opts, WithCache(cache))
	}
	return NewService(providers, opts...)
}

func TestGeocode_InvalidQueryBeforeAnyAccess(t *testing.T) {
	cache := newMemCache()
	p := &fakeProvider{name: "nominatim", result: tampaResult()}
	svc := newTestService(cache, p)

	_, err := svc.Geocode(context.Background(), Query{City: "", State: "FL"})
	require.ErrorIs(t, err, ErrInvalidQuery)

	_, err = svc.Geocode(context.Background(), Query{City: "Tampa", State: " "})
	require.ErrorIs(t, err, ErrInvalidQuery)

	assert.Zero(t, cache.gets, "invalid query must not touch the cache")
	assert.Zero(t, p.callCount(), "invalid query must not call providers")
}

func TestGeocode_ProviderResolution(t *testing.T) {
	p := &fakeProvider{name: "nominatim", result: tampaResult()}
	svc := newTestService(newMemCache(), p)

	coord, err := svc.Geocode(context.Background(), Query{City: "Tampa", State: "FL"})
	require.NoError(t, err)
	require.NotNil(t, coord)

	assert.InDelta(t, 27.9506, coord.Latitude, 0.0001)
	assert.InDelta(t, -82.4572, coord.Longitude, 0.0001)
	assert.Equal(t, AccuracyApproximate, coord.Accuracy)
	assert.Equal(t, "nominatim", coord.Provider)
	assert.False(t, coord.Cached)
}

func TestGeocode_SecondCallServedFromCache(t *testing.T) {
	cache := newMemCache()
	p := &fakeProvider{name: "nominatim", result: tampaResult()}
	svc := newTestService(cache, p)

	q := Query{City: "Tampa", State: "FL"}

	first, err := svc.Geocode(context.Background(), q)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.False(t, first.Cached)

	second, err := svc.Geocode(context.Background(), q)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.True(t, second.Cached)

	assert.Equal(t, 1, p.callCount(), "cached query must not re-call the provider")
	assert.Equal(t, first.Latitude, second.Latitude)
	assert.Equal(t, first.Longitude, second.Longitude)
}

func TestGeocode_CacheReadFailureIsAMiss(t *testing.T) {
	cache := newMemCache()
	cache.getErr = eris.New("connection refused")
	p := &fakeProvider{name: "nominatim", result: tampaResult()}
	svc := newTestService(cache, p)

	coord, err := svc.Geocode(context.Background(), Query{City: "Tampa", State: "FL"})
	require.NoError(t, err)
	require.NotNil(t, coord)
	assert.False(t, coord.Cached)
	assert.Equal(t, 1, p.callCount())
}

func TestGeocode_CacheWriteFailureStillReturnsResult(t *testing.T) {
	cache := newMemCache()
	cache.putErr = eris.New("disk full")
	p := &fakeProvider{name: "nominatim", result: tampaResult()}
	svc := newTestService(cache, p)

	coord, err := svc.Geocode(context.Background(), Query{City: "Tampa", State: "FL"})
	require.NoError(t, err)
	require.NotNil(t, coord)
	assert.Equal(t, 1, cache.puts)
}

func TestGeocode_OutOfRangeResultFallsThrough(t *testing.T) {
	bad := &fakeProvider{name: "bad", result: &Result{
		Latitude:         999,
		Longitude:        -82.4572,
		FormattedAddress: "nonsense",
		Accuracy:         AccuracyExact,
	}}
	good := &fakeProvider{name: "good", result: tampaResult()}
	svc := newTestService(newMemCache(), bad, good)

	coord, err := svc.Geocode(context.Background(), Query{City: "Tampa", State: "FL"})
	require.NoError(t, err)
	require.NotNil(t, coord)
	assert.Equal(t, "good", coord.Provider)
	assert.Equal(t, 1, bad.callCount())
	assert.Equal(t, 1, good.callCount())
}

func TestGeocode_EmptyFormattedAddressIsInvalid(t *testing.T) {
	bad := &fakeProvider{name: "bad", result: &Result{
		Latitude:  27.95,
		Longitude: -82.45,
		Accuracy:  AccuracyExact,
	}}
	svc := newTestService(newMemCache(), bad)

	coord, err := svc.Geocode(context.Background(), Query{City: "Tampa", State: "FL"})
	require.NoError(t, err)
	require.NotNil(t, coord)
	assert.Equal(t, AccuracyFallback, coord.Accuracy)
}

func TestGeocode_ProviderErrorTriesNext(t *testing.T) {
	down := &fakeProvider{name: "down", err: eris.New("timeout")}
	good := &fakeProvider{name: "good", result: tampaResult()}
	svc := newTestService(newMemCache(), down, good)

	coord, err := svc.Geocode(context.Background(), Query{City: "Tampa", State: "FL"})
	require.NoError(t, err)
	require.NotNil(t, coord)
	assert.Equal(t, "good", coord.Provider)
}

func TestGeocode_FallbackOnTotalFailure(t *testing.T) {
	cache := newMemCache()
	down := &fakeProvider{name: "down", err: eris.New("timeout")}
	svc := newTestService(cache, down)

	coord, err := svc.Geocode(context.Background(), Query{City: "Tampa", State: "FL"})
	require.NoError(t, err)
	require.NotNil(t, coord)

	centroid, ok := StateCentroid("FL")
	require.True(t, ok)
	assert.Equal(t, AccuracyFallback, coord.Accuracy)
	assert.Equal(t, "fallback", coord.Provider)
	assert.Equal(t, centroid.Latitude, coord.Latitude)
	assert.Equal(t, centroid.Longitude, coord.Longitude)
	assert.NotEmpty(t, coord.FormattedAddress)

	// Fallback results are never cached, so recovery is retried later.
	assert.Zero(t, cache.puts)
}

func TestGeocode_UnknownStateIsUnresolvable(t *testing.T) {
	down := &fakeProvider{name: "down", err: eris.New("timeout")}
	svc := newTestService(newMemCache(), down)

	coord, err := svc.Geocode(context.Background(), Query{City: "Springfield", State: "ZZ"})
	require.NoError(t, err)
	assert.Nil(t, coord)
}

func TestGeocode_RateLimitSerializesProviderCalls(t *testing.T) {
	interval := 30 * time.Millisecond
	p := &fakeProvider{name: "nominatim", result: tampaResult()}
	svc := NewService([]Provider{p},
		WithCache(newMemCache()),
		WithRateInterval(interval),
	)

	start := time.Now()
	for _, city := range []string{"Tampa", "Miami", "Orlando"} {
		coord, err := svc.Geocode(context.Background(), Query{City: city, State: "FL"})
		require.NoError(t, err)
		require.NotNil(t, coord)
	}
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 2*interval,
		"three uncached lookups must take at least two rate-limit intervals")
	assert.Equal(t, 3, p.callCount())
}

func TestBatchGeocode_DedupsByCityState(t *testing.T) {
	p := &fakeProvider{name: "nominatim", result: tampaResult()}
	svc := newTestService(newMemCache(), p)

	queries := make([]Query, 0, 10)
	for i := 0; i < 10; i++ {
		city := "Tampa"
		if i%2 == 1 {
			city = "TAMPA" // dedup is case-insensitive
		}
		queries = append(queries, Query{City: city, State: "FL"})
	}

	out, err := svc.BatchGeocode(context.Background(), queries)
	require.NoError(t, err)

	assert.Len(t, out, 1)
	assert.Equal(t, 1, p.callCount(), "shared locations must incur one provider call")
	require.Contains(t, out, LocationKey("Tampa", "FL"))
}

func TestBatchGeocode_ResolvesUniqueLocationsInInputOrder(t *testing.T) {
	p := &fakeProvider{name: "nominatim", result: tampaResult()}
	svc := newTestService(newMemCache(), p)

	queries := []Query{
		{City: "Tampa", State: "FL"},
		{City: "Miami", State: "FL"},
		{City: "Tampa", State: "FL"},
		{City: "Orlando", State: "FL"},
	}

	_, err := svc.BatchGeocode(context.Background(), queries)
	require.NoError(t, err)

	require.Len(t, p.addresses, 3)
	assert.True(t, strings.HasPrefix(p.addresses[0], "Tampa"))
	assert.True(t, strings.HasPrefix(p.addresses[1], "Miami"))
	assert.True(t, strings.HasPrefix(p.addresses[2], "Orlando"))
}

func TestBatchGeocode_SkipsIncompleteQueries(t *testing.T) {
	p := &fakeProvider{name: "nominatim", result: tampaResult()}
	svc := newTestService(newMemCache(), p)

	out, err := svc.BatchGeocode(context.Background(), []Query{
		{City: "Tampa", State: "FL"},
		{City: "", State: "FL"},
		{City: "Nowhere", State: ""},
	})
	require.NoError(t, err)

	assert.Len(t, out, 1)
	assert.Equal(t, 1, p.callCount())
}

func TestBatchGeocode_OmitsUnresolvable(t *testing.T) {
	down := &fakeProvider{name: "down", err: eris.New("timeout")}
	svc := newTestService(newMemCache(), down)

	out, err := svc.BatchGeocode(context.Background(), []Query{
		{City: "Tampa", State: "FL"},       // falls back to centroid
		{City: "Springfield", State: "ZZ"}, // unresolvable, omitted
	})
	require.NoError(t, err)

	assert.Len(t, out, 1)
	assert.Contains(t, out, LocationKey("Tampa", "FL"))
}

func TestQueryValidate(t *testing.T) {
	assert.NoError(t, Query{City: "Tampa", State: "FL"}.Validate())
	assert.ErrorIs(t, Query{State: "FL"}.Validate(), ErrInvalidQuery)
	assert.ErrorIs(t, Query{City: "Tampa"}.Validate(), ErrInvalidQuery)
	assert.ErrorIs(t, Query{City: "  ", State: "FL"}.Validate(), ErrInvalidQuery)
}
