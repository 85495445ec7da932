package osm

import "time"

// A Changeset holds the metadata of one OSM changeset, as returned by
// the OSM API. It is only used to enrich alert reports; filters never
// look at it.
type Changeset struct {
	ID            int64
	CreatedAt     time.Time
	ClosedAt      *time.Time
	Open          bool
	MinLon        *float64
	MinLat        *float64
	MaxLon        *float64
	MaxLat        *float64
	UserID        int64
	UserName      string
	CommentsCount int
	Tags          Tags
}
