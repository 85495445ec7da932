// Package filter decides which changes are worth alerting on. Each
// filter is an independent predicate over a single change, paired with
// a fixed explanation of what it watches for. Filters never fail:
// missing geometry or metadata means "no match".
package filter

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/osmwatch/osmwatch/geom"
	"github.com/osmwatch/osmwatch/osm"
)

type Filter interface {
	// Match reports whether the change triggers this filter.
	Match(action osm.Action) bool
	// Explanation describes the trigger condition. It only depends on
	// the filter configuration, so it is stable across actions and can
	// be used to group matches.
	Explanation() string
}

// UserIDChanged triggers when an object last touched by the watched
// user is handed off to someone else.
type UserIDChanged struct {
	UserID int64
}

func (f *UserIDChanged) Explanation() string {
	return fmt.Sprintf("User ID changed from %d", f.UserID)
}

func (f *UserIDChanged) Match(action osm.Action) bool {
	if action.Old == nil || action.New == nil {
		return false
	}
	oldUID, ok := action.Old.UID()
	if !ok || oldUID != f.UserID {
		return false
	}
	newUID, ok := action.New.UID()
	return !ok || newUID != f.UserID
}

// UserIDMadeChange triggers on any create, modify or delete authored
// by the watched user.
type UserIDMadeChange struct {
	UserID int64
}

func (f *UserIDMadeChange) Explanation() string {
	return fmt.Sprintf("User ID %d made a change", f.UserID)
}

func (f *UserIDMadeChange) Match(action osm.Action) bool {
	if action.New == nil {
		return false
	}
	uid, ok := action.New.UID()
	return ok && uid == f.UserID
}

// NewUser triggers the first time a user ID shows up that is not in
// the seen set, and records it. The set is owned by the caller and
// must live as long as the monitoring run; do not share one set
// between filter instances.
type NewUser struct {
	seen map[int64]struct{}
}

func NewNewUser(seen map[int64]struct{}) *NewUser {
	if seen == nil {
		seen = make(map[int64]struct{})
	}
	return &NewUser{seen: seen}
}

func (f *NewUser) Explanation() string {
	return "New user made a change"
}

func (f *NewUser) Match(action osm.Action) bool {
	if action.New == nil {
		return false
	}
	uid, ok := action.New.UID()
	if !ok {
		// an unknown author cannot be a new user
		return false
	}
	if _, seen := f.seen[uid]; seen {
		return false
	}
	f.seen[uid] = struct{}{}
	return true
}

// ObjectChanged triggers on any change to one specific object.
type ObjectChanged struct {
	Type osm.Type
	ID   int64
}

func (f *ObjectChanged) Explanation() string {
	return fmt.Sprintf("Object %s %d changed", f.Type, f.ID)
}

func (f *ObjectChanged) Match(action osm.Action) bool {
	// old and new share identity, pick whichever exists
	obj := action.Old
	if obj == nil {
		obj = action.New
	}
	if obj == nil {
		return false
	}
	return obj.Type() == f.Type && obj.ID() == f.ID
}

// ChangeInShape triggers when the old or new geometry intersects the
// shape. Relations are excluded (their geometry derivation is not
// implemented). When old and new belong to the same changeset the
// match is suppressed: a way whose geometry moved only because a child
// node moved is already reported through the node change.
type ChangeInShape struct {
	Shape orb.Polygon
	Name  string
}

func (f *ChangeInShape) Explanation() string {
	if f.Name != "" {
		return fmt.Sprintf("Change in shape %q", f.Name)
	}
	return "Change in shape"
}

func (f *ChangeInShape) Match(action osm.Action) bool {
	if action.Old != nil && action.Old.Rel != nil {
		return false
	}
	if action.New != nil && action.New.Rel != nil {
		return false
	}

	if action.Old != nil && action.New != nil {
		oldCS, oldOK := action.Old.ChangesetID()
		newCS, newOK := action.New.ChangesetID()
		if oldOK && newOK && oldCS == newCS {
			return false
		}
	}

	g := visibleGeometry(action.New)
	if g == nil {
		g = visibleGeometry(action.Old)
	}
	if g == nil {
		return false
	}
	return geom.Intersects(g, f.Shape)
}

func visibleGeometry(obj *osm.Object) orb.Geometry {
	if obj == nil || !obj.El().Visible {
		return nil
	}
	g, ok := obj.Geometry()
	if !ok {
		return nil
	}
	return g
}

// NewChangeInBoundingBox is ChangeInShape specialized to a bounding
// box given as minlon, minlat, maxlon, maxlat.
func NewChangeInBoundingBox(minLon, minLat, maxLon, maxLat float64, name string) *ChangeInShape {
	if name == "" {
		name = fmt.Sprintf("bbox (%v, %v, %v, %v)", minLon, minLat, maxLon, maxLat)
	}
	return &ChangeInShape{
		Shape: geom.BoundPolygon(minLon, minLat, maxLon, maxLat),
		Name:  name,
	}
}

// TagValueInList triggers when a tag appears with one of the watched
// values or changes to one. A tag staying constant at a watched value
// does not match.
type TagValueInList struct {
	Key    string
	Values []string
}

func (f *TagValueInList) Explanation() string {
	if len(f.Values) > 3 {
		return fmt.Sprintf("Tag %s changed to one of %v and %d more",
			f.Key, f.Values[:3], len(f.Values)-3)
	}
	return fmt.Sprintf("Tag %s changed to one of %v", f.Key, f.Values)
}

func (f *TagValueInList) Match(action osm.Action) bool {
	oldVal, oldOK := tagOf(action.Old, f.Key)
	newVal, newOK := tagOf(action.New, f.Key)
	if !newOK {
		return false
	}
	if oldOK && oldVal == newVal {
		return false
	}
	for _, v := range f.Values {
		if v == newVal {
			return true
		}
	}
	return false
}

// ObjectWithTagChanged triggers on edits to any object already
// carrying the watched tag, and on creation of objects with it.
type ObjectWithTagChanged struct {
	Key   string
	Value string
}

func (f *ObjectWithTagChanged) Explanation() string {
	return fmt.Sprintf("Object with %s=%s changed", f.Key, f.Value)
}

func (f *ObjectWithTagChanged) Match(action osm.Action) bool {
	if v, ok := tagOf(action.Old, f.Key); ok && v == f.Value {
		return true
	}
	if action.Kind == osm.Create {
		if v, ok := tagOf(action.New, f.Key); ok && v == f.Value {
			return true
		}
	}
	return false
}

// tagOf reads a tag off an optional object. An absent object has no
// tag values, not empty ones.
func tagOf(obj *osm.Object, key string) (string, bool) {
	if obj == nil {
		return "", false
	}
	return obj.Tag(key)
}
