package osm

import "github.com/paulmach/orb"

// Geometry derives the geometry of the object.
//
// Nodes become a Point, open ways a LineString and closed ways a
// Polygon ring. A way without nodes (deletion stub) becomes an empty
// Polygon that intersects nothing.
//
// The second return is false when no geometry can be derived: a node
// or way node without coordinates, or a relation. Relation geometries
// are not implemented; spatial filters treat them as non-intersecting.
func (o *Object) Geometry() (orb.Geometry, bool) {
	switch {
	case o.Node != nil:
		n := o.Node
		if n.Lat == nil || n.Long == nil {
			return nil, false
		}
		return orb.Point{*n.Long, *n.Lat}, true
	case o.Way != nil:
		return o.Way.geometry()
	}
	return nil, false
}

func (w *Way) geometry() (orb.Geometry, bool) {
	if len(w.Nodes) == 0 {
		return orb.Polygon{}, true
	}
	points := make([]orb.Point, 0, len(w.Nodes))
	for _, nd := range w.Nodes {
		if nd.Lat == nil || nd.Long == nil {
			return nil, false
		}
		points = append(points, orb.Point{*nd.Long, *nd.Lat})
	}
	if w.IsClosed() {
		return orb.Polygon{orb.Ring(points)}, true
	}
	return orb.LineString(points), true
}
