// Package regions loads Red Cross chapter boundary shapefiles and aggregates
// them into per-region bounding boxes and centroids for map viewports.
package regions

import (
	"math"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
)

// extendBounds grows b to cover box. A nil b starts a fresh bounds.
// Shapefile boxes are X=lon, Y=lat.
func extendBounds(b *geom.Bounds, box shp.Box) *geom.Bounds {
	if b == nil {
		nb := geom.NewBounds(geom.XY)
		nb.Set(box.MinX, box.MinY, box.MaxX, box.MaxY)
		return nb
	}
	b.Set(
		math.Min(b.Min(0), box.MinX),
		math.Min(b.Min(1), box.MinY),
		math.Max(b.Max(0), box.MaxX),
		math.Max(b.Max(1), box.MaxY),
	)
	return b
}

// boundsCenter returns the midpoint of a bounds as (lat, lon).
func boundsCenter(b *geom.Bounds) (lat, lon float64) {
	return (b.Min(1) + b.Max(1)) / 2, (b.Min(0) + b.Max(0)) / 2
}

// validBox rejects degenerate or out-of-range shapefile boxes, which show up
// in chapter exports with empty geometries.
func validBox(box shp.Box) bool {
	if box.MinX > box.MaxX || box.MinY > box.MaxY {
		return false
	}
	if box.MinX < -180 || box.MaxX > 180 || box.MinY < -90 || box.MaxY > 90 {
		return false
	}
	// An all-zero box means the record had no geometry.
	if box.MinX == 0 && box.MinY == 0 && box.MaxX == 0 && box.MaxY == 0 {
		return false
	}
	return true
}
