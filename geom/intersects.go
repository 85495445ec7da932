// Package geom provides the planar intersection predicates used by the
// spatial change filters. Geometries are orb types in lon/lat order.
package geom

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// BoundPolygon builds a polygon from a bounding box. The ring is
// closed by repeating the first point.
func BoundPolygon(minLon, minLat, maxLon, maxLat float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minLon, minLat},
		{minLon, maxLat},
		{maxLon, maxLat},
		{maxLon, minLat},
		{minLon, minLat},
	}}
}

// Intersects reports whether g intersects the polygon shape. Supported
// geometries are Point, LineString and Polygon; anything else (and
// empty geometries) never intersects.
func Intersects(g orb.Geometry, shape orb.Polygon) bool {
	if emptyPolygon(shape) {
		return false
	}
	switch g := g.(type) {
	case orb.Point:
		return planar.PolygonContains(shape, g)
	case orb.LineString:
		return lineStringIntersects(g, shape)
	case orb.Polygon:
		return polygonIntersects(g, shape)
	}
	return false
}

func emptyPolygon(p orb.Polygon) bool {
	return len(p) == 0 || len(p[0]) == 0
}

func lineStringIntersects(ls orb.LineString, shape orb.Polygon) bool {
	if len(ls) == 0 {
		return false
	}
	for _, p := range ls {
		if planar.PolygonContains(shape, p) {
			return true
		}
	}
	// All vertices outside: the line can still cut through the polygon.
	return pathCrossesPolygon([]orb.Point(ls), shape)
}

func polygonIntersects(poly orb.Polygon, shape orb.Polygon) bool {
	if emptyPolygon(poly) {
		return false
	}
	for _, p := range poly[0] {
		if planar.PolygonContains(shape, p) {
			return true
		}
	}
	for _, p := range shape[0] {
		if planar.PolygonContains(poly, p) {
			return true
		}
	}
	return pathCrossesPolygon([]orb.Point(poly[0]), shape)
}

func pathCrossesPolygon(path []orb.Point, shape orb.Polygon) bool {
	for _, ring := range shape {
		for i := 0; i < len(ring)-1; i++ {
			for j := 0; j < len(path)-1; j++ {
				if segmentsIntersect(ring[i], ring[i+1], path[j], path[j+1]) {
					return true
				}
			}
		}
	}
	return false
}

// segmentsIntersect reports whether segments a-b and c-d intersect,
// including touching and collinear overlap.
func segmentsIntersect(a, b, c, d orb.Point) bool {
	o1 := orientation(a, b, c)
	o2 := orientation(a, b, d)
	o3 := orientation(c, d, a)
	o4 := orientation(c, d, b)

	if o1 != o2 && o3 != o4 {
		return true
	}
	if o1 == 0 && onSegment(a, b, c) {
		return true
	}
	if o2 == 0 && onSegment(a, b, d) {
		return true
	}
	if o3 == 0 && onSegment(c, d, a) {
		return true
	}
	if o4 == 0 && onSegment(c, d, b) {
		return true
	}
	return false
}

// orientation returns the sign of the cross product (b-a)x(c-a):
// 1 counter-clockwise, -1 clockwise, 0 collinear.
func orientation(a, b, c orb.Point) int {
	v := (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// onSegment reports whether the collinear point p lies on segment a-b.
func onSegment(a, b, p orb.Point) bool {
	return min(a[0], b[0]) <= p[0] && p[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= p[1] && p[1] <= max(a[1], b[1])
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
