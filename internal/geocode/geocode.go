// Package geocode resolves postal addresses to coordinates with a layered
// cache (persistent store, then providers, then a state-centroid fallback),
// a shared outbound rate limit, and in-flight deduplication.
package geocode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Accuracy classifies how coarse a resolved coordinate is.
type Accuracy string

const (
	AccuracyExact       Accuracy = "exact"       // street-level
	AccuracyApproximate Accuracy = "approximate" // city/town-level
	AccuracyFallback    Accuracy = "fallback"    // state-centroid placeholder
)

// ErrInvalidQuery is returned when a query is missing city or state.
var ErrInvalidQuery = eris.New("geocode: query requires city and state")

// Query is a free-form location to resolve.
type Query struct {
	Address string // optional; city is substituted when empty
	City    string // required
	State   string // required, 2-letter code or full name
	Country string // optional, defaults to the service country
}

// Validate rejects queries missing city or state before any lookup happens.
func (q Query) Validate() error {
	if strings.TrimSpace(q.City) == "" || strings.TrimSpace(q.State) == "" {
		return ErrInvalidQuery
	}
	return nil
}

// text returns the free-text address sent to providers, substituting the
// city when no street address is present.
func (q Query) text() string {
	addr := strings.TrimSpace(q.Address)
	if addr == "" {
		addr = strings.TrimSpace(q.City)
	}
	return fmt.Sprintf("%s, %s, %s, %s",
		addr, strings.TrimSpace(q.City), strings.TrimSpace(q.State), strings.TrimSpace(q.Country))
}

// Coordinate is a resolved, range-validated location.
type Coordinate struct {
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	FormattedAddress string   `json:"formatted_address"`
	Accuracy         Accuracy `json:"accuracy"`
	Provider         string   `json:"provider"`
	Cached           bool     `json:"cached"`
}

// LocationKey is the case-insensitive (city, state) key used for batch
// deduplication: entities sharing a key share one resolution.
func LocationKey(city, state string) string {
	city = normalize(city)
	state = normalize(state)
	if city == "" || state == "" {
		return ""
	}
	return city + "|" + state
}

// Service resolves queries through the cache, the configured providers, and
// the state-centroid fallback, in that order.
type Service struct {
	providers       []Provider
	cache           Cache
	limiter         *rate.Limiter
	group           singleflight.Group
	cacheTTL        time.Duration
	providerTimeout time.Duration
	country         string
	now             func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithCache sets the persistent cache. Without one the service resolves
// every query through the providers.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithRateInterval sets the minimum interval between outbound provider
// calls. The limiter is shared by every caller of this Service.
func WithRateInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithProviderTimeout bounds each individual provider call.
func WithProviderTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.providerTimeout = d
		}
	}
}

// WithCacheTTL sets the lifetime of persisted cache entries.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cacheTTL = d
		}
	}
}

// WithCountry sets the default country appended to queries.
func WithCountry(country string) Option {
	return func(s *Service) {
		if country != "" {
			s.country = country
		}
	}
}

// NewService creates a Service that tries providers in the given order.
func NewService(providers []Provider, opts ...Option) *Service {
	s := &Service{
		providers:       providers,
		limiter:         rate.NewLimiter(rate.Every(time.Second), 1),
		cacheTTL:        30 * 24 * time.Hour,
		providerTimeout: 10 * time.Second,
		country:         "USA",
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Geocode resolves one query to a coordinate.
//
// A nil, nil return means the query was well-formed but unresolvable: every
// provider failed and the state has no centroid. Callers treat a missing
// coordinate as a normal outcome. Fallback results are never cached, so a
// later call retries the providers once the network recovers.
func (s *Service) Geocode(ctx context.Context, q Query) (*Coordinate, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(q.Country) == "" {
		q.Country = s.country
	}

	key := cacheKey(q)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.resolve(ctx, q, key)
	})
	if err != nil {
		return nil, err
	}
	coord, _ := v.(*Coordinate)
	if coord == nil {
		return nil, nil
	}
	// Copy so collapsed concurrent callers don't share one mutable value.
	out := *coord
	return &out, nil
}

func (s *Service) resolve(ctx context.Context, q Query, key string) (*Coordinate, error) {
	// Cache read errors are misses, never surfaced.
	if s.cache != nil {
		entry, err := s.cache.GetFresh(ctx, key)
		if err != nil {
			zap.L().Warn("geocode: cache read failed, treating as miss",
				zap.String("city", q.City),
				zap.Error(err),
			)
		}
		if entry != nil {
			return &Coordinate{
				Latitude:         entry.Latitude,
				Longitude:        entry.Longitude,
				FormattedAddress: entry.FormattedAddress,
				Accuracy:         entry.Accuracy,
				Provider:         entry.Provider,
				Cached:           true,
			}, nil
		}
	}

	text := q.text()
	for _, p := range s.providers {
		// One shared clock serializes every outbound call across callers.
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "geocode: rate limit wait")
		}

		pctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
		result, err := p.Resolve(pctx, text, q.Country)
		cancel()
		if err != nil {
			zap.L().Warn("geocode: provider failed, trying next",
				zap.String("provider", p.Name()),
				zap.String("city", q.City),
				zap.String("state", q.State),
				zap.Error(err),
			)
			continue
		}
		if result == nil || !result.valid() {
			zap.L().Debug("geocode: provider returned no usable match",
				zap.String("provider", p.Name()),
				zap.String("city", q.City),
				zap.String("state", q.State),
			)
			continue
		}

		coord := &Coordinate{
			Latitude:         result.Latitude,
			Longitude:        result.Longitude,
			FormattedAddress: result.FormattedAddress,
			Accuracy:         result.Accuracy,
			Provider:         p.Name(),
		}
		s.persist(ctx, key, q, coord)
		return coord, nil
	}

	// Total provider failure: coarse state centroid, never cached.
	if centroid, ok := StateCentroid(q.State); ok {
		return &Coordinate{
			Latitude:         centroid.Latitude,
			Longitude:        centroid.Longitude,
			FormattedAddress: fmt.Sprintf("%s, %s", strings.TrimSpace(q.City), strings.TrimSpace(q.State)),
			Accuracy:         AccuracyFallback,
			Provider:         "fallback",
		}, nil
	}

	zap.L().Info("geocode: unresolvable query",
		zap.String("city", q.City),
		zap.String("state", q.State),
	)
	return nil, nil
}

// persist upserts a fresh resolution. A write failure is logged only; the
// resolved coordinate is still returned to the caller.
func (s *Service) persist(ctx context.Context, key string, q Query, coord *Coordinate) {
	if s.cache == nil {
		return
	}
	now := s.now()
	entry := &Entry{
		Key:              key,
		Address:          q.text(),
		Latitude:         coord.Latitude,
		Longitude:        coord.Longitude,
		FormattedAddress: coord.FormattedAddress,
		Accuracy:         coord.Accuracy,
		Provider:         coord.Provider,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.cacheTTL),
	}
	if err := s.cache.Upsert(ctx, entry); err != nil {
		zap.L().Warn("geocode: cache write failed",
			zap.String("city", q.City),
			zap.Error(err),
		)
	}
}

// BatchGeocode resolves a set of queries, deduplicated by case-insensitive
// (city, state). Unique locations are resolved sequentially in input order
// so they share the rate-limit clock. Individual failures only omit that
// location from the result; the batch itself never fails except on context
// cancellation.
func (s *Service) BatchGeocode(ctx context.Context, queries []Query) (map[string]*Coordinate, error) {
	out := make(map[string]*Coordinate, len(queries))
	seen := make(map[string]bool, len(queries))

	for _, q := range queries {
		lk := LocationKey(q.City, q.State)
		if lk == "" {
			zap.L().Debug("geocode: skipping batch query without city/state")
			continue
		}
		if seen[lk] {
			continue
		}
		seen[lk] = true

		coord, err := s.Geocode(ctx, q)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, eris.Wrap(ctxErr, "geocode: batch canceled")
			}
			zap.L().Warn("geocode: batch query failed",
				zap.String("location", lk),
				zap.Error(err),
			)
			continue
		}
		if coord != nil {
			out[lk] = coord
		}
	}

	return out, nil
}
