package coordinates

import (
	"strings"

	"github.com/twpayne/go-geom"
)

// Viewport is a map's initial camera position for a region.
type Viewport struct {
	CenterLat float64 `json:"center_lat"`
	CenterLon float64 `json:"center_lon"`
	Zoom      int     `json:"zoom"`

	bounds *geom.Bounds
}

// BoundsRect returns the viewport's bounding box as (minLat, minLon,
// maxLat, maxLon). ok is false when the viewport has no explicit bounds.
func (v Viewport) BoundsRect() (minLat, minLon, maxLat, maxLon float64, ok bool) {
	if v.bounds == nil {
		return 0, 0, 0, 0, false
	}
	// geom bounds are X=lon, Y=lat.
	return v.bounds.Min(1), v.bounds.Min(0), v.bounds.Max(1), v.bounds.Max(0), true
}

func boundedViewport(centerLat, centerLon float64, zoom int, minLon, minLat, maxLon, maxLat float64) Viewport {
	b := geom.NewBounds(geom.XY)
	b.Set(minLon, minLat, maxLon, maxLat)
	return Viewport{CenterLat: centerLat, CenterLon: centerLon, Zoom: zoom, bounds: b}
}

// nationalViewport frames the continental United States.
var nationalViewport = boundedViewport(39.8283, -98.5795, 4, -125.0, 24.5, -66.9, 49.4)

// regionViewports maps Red Cross region codes to their default map views.
var regionViewports = map[string]Viewport{
	"national":        nationalViewport,
	"north-florida":   boundedViewport(30.3322, -83.7, 7, -87.6, 28.9, -80.0, 31.0),
	"central-florida": boundedViewport(28.3852, -81.5, 7, -83.0, 26.9, -80.0, 29.4),
	"south-florida":   boundedViewport(26.1224, -80.8, 7, -82.3, 24.4, -79.9, 27.3),
	"georgia":         boundedViewport(32.1656, -82.9001, 7, -85.6, 30.3, -80.8, 35.0),
	"alabama-miss":    boundedViewport(32.3182, -88.5, 7, -91.7, 30.1, -84.9, 35.0),
}

// RegionViewport returns the viewport for a region code, or the national
// view for unknown codes. Pure lookup, no I/O.
func RegionViewport(regionCode string) Viewport {
	code := strings.ToLower(strings.TrimSpace(regionCode))
	if vp, ok := regionViewports[code]; ok {
		return vp
	}
	return nationalViewport
}
