// Package coordinates batch-resolves map coordinates for domain entities and
// exposes per-region map viewports. Entities sharing a city/state pair share
// one lookup and receive identical coordinates, which keeps map markers for
// co-located entities stacked instead of scattered.
package coordinates

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/geocode"
)

// Addressable is any entity that carries its own postal address.
type Addressable interface {
	EntityID() string
	AddressLine() string
	CityName() string
	StateCode() string
}

// Dependent is any entity that inherits its location from an Addressable
// parent.
type Dependent interface {
	EntityID() string
	ParentID() string
}

// Geocoder is the slice of the geocoding service this package needs.
type Geocoder interface {
	BatchGeocode(ctx context.Context, queries []geocode.Query) (map[string]*geocode.Coordinate, error)
}

// Service resolves coordinates for entity collections.
type Service struct {
	geocoder Geocoder
	static   *geocode.StaticTable
}

// NewService creates a coordinates Service. The static table is optional;
// when present, known cities bypass the geocoding service entirely.
func NewService(geocoder Geocoder, static *geocode.StaticTable) *Service {
	return &Service{geocoder: geocoder, static: static}
}

// Resolve maps entity IDs to coordinates. Entities missing city or state are
// logged and skipped, never an error. Entities sharing a (city, state) pair
// always receive the identical coordinate within one call.
func (s *Service) Resolve(ctx context.Context, entities []Addressable) (map[string]*geocode.Coordinate, error) {
	byLocation := make(map[string]*geocode.Coordinate)
	var queries []geocode.Query

	for _, e := range entities {
		key := geocode.LocationKey(e.CityName(), e.StateCode())
		if key == "" {
			zap.L().Debug("coordinates: entity missing city/state, skipping",
				zap.String("entity_id", e.EntityID()),
			)
			continue
		}
		if _, seen := byLocation[key]; seen {
			continue
		}

		// Static table first: a hit skips network and cache I/O entirely.
		if s.static != nil {
			if sc, ok := s.static.Lookup(e.CityName(), e.StateCode()); ok {
				byLocation[key] = &geocode.Coordinate{
					Latitude:         sc.Latitude,
					Longitude:        sc.Longitude,
					FormattedAddress: formatCityState(e.CityName(), e.StateCode()),
					Accuracy:         sc.Accuracy,
					Provider:         "static",
				}
				continue
			}
		}

		byLocation[key] = nil // placeholder: resolve via geocoder
		address := strings.TrimSpace(e.AddressLine())
		if address == "" {
			address = strings.TrimSpace(e.CityName())
		}
		queries = append(queries, geocode.Query{
			Address: address,
			City:    e.CityName(),
			State:   e.StateCode(),
		})
	}

	if len(queries) > 0 {
		resolved, err := s.geocoder.BatchGeocode(ctx, queries)
		if err != nil {
			return nil, err
		}
		for key, coord := range resolved {
			byLocation[key] = coord
		}
	}

	// Fan results back out to every entity sharing a location.
	out := make(map[string]*geocode.Coordinate, len(entities))
	for _, e := range entities {
		key := geocode.LocationKey(e.CityName(), e.StateCode())
		if key == "" {
			continue
		}
		if coord := byLocation[key]; coord != nil {
			out[e.EntityID()] = coord
		}
	}
	return out, nil
}

// ResolveDependents assigns each dependent the coordinate of its parent.
// Dependents whose parent is missing or unresolved are absent from the
// result.
func (s *Service) ResolveDependents(ctx context.Context, dependents []Dependent, parents []Addressable) (map[string]*geocode.Coordinate, error) {
	parentCoords, err := s.Resolve(ctx, parents)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*geocode.Coordinate, len(dependents))
	for _, d := range dependents {
		if coord, ok := parentCoords[d.ParentID()]; ok {
			out[d.EntityID()] = coord
		}
	}
	return out, nil
}

// Viewport returns the default map viewport for a region code. Unknown codes
// get the national view.
func (s *Service) Viewport(regionCode string) Viewport {
	return RegionViewport(regionCode)
}

func formatCityState(city, state string) string {
	return strings.TrimSpace(city) + ", " + strings.ToUpper(strings.TrimSpace(state))
}
