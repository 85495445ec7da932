// Package osm contains the object model for OpenStreetMap elements as
// they appear in augmented diffs. Augmented diffs can elide most
// attributes (untagged objects and deletion stubs keep only their ID),
// so every attribute that can be missing is a pointer.
package osm

import (
	"fmt"
	"time"
)

// A Tags is a collection of key=values, describing an OSM element.
type Tags map[string]string

func (t *Tags) String() string {
	return fmt.Sprintf("%v", (map[string]string)(*t))
}

// Type discriminates the three OSM primitives.
type Type int

const (
	NodeType Type = iota
	WayType
	RelationType
)

var TypeValues = map[string]Type{
	"node":     NodeType,
	"way":      WayType,
	"relation": RelationType,
}

func (t Type) String() string {
	switch t {
	case NodeType:
		return "node"
	case WayType:
		return "way"
	case RelationType:
		return "relation"
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// An Element holds the attributes shared by nodes, ways and relations.
// Only ID is guaranteed to be present. Version, UID, User, Changeset
// and Timestamp are nil when the diff did not carry them; nil and zero
// are different things (user ID 0 is not "user unknown").
type Element struct {
	ID        int64
	Version   *int
	Timestamp *time.Time
	UID       *int64
	User      *string
	Changeset *int64
	Visible   bool
	Tags      Tags
}

// Tag returns the value for key. The second return is false when the
// element carries no such tag.
func (e *Element) Tag(key string) (string, bool) {
	v, ok := e.Tags[key]
	return v, ok
}

// A Node is a single point. Lat/Long are nil when the geometry was
// elided from the diff.
type Node struct {
	Element
	Lat  *float64
	Long *float64
}

// A NodeRef references a way member node by ID, with the coordinates
// resolved when the diff embedded them.
type NodeRef struct {
	Ref  int64
	Lat  *float64
	Long *float64
}

// A Way is an ordered list of node references.
type Way struct {
	Element
	Nodes []NodeRef
}

// IsClosed returns whether the first and last node references are the
// same node. Identity of the ref is the only criterion, there is no
// coordinate tolerance.
func (w *Way) IsClosed() bool {
	return len(w.Nodes) >= 2 && w.Nodes[0].Ref == w.Nodes[len(w.Nodes)-1].Ref
}

// A Member is a single relation member.
type Member struct {
	Type Type
	Ref  int64
	Role string
}

// A Relation is a collection of members.
type Relation struct {
	Element
	Members []Member
}

// An Object is one OSM primitive. Exactly one of Node, Way and Rel is
// non-nil; consumers switch on Type before touching variant fields.
type Object struct {
	Node *Node
	Way  *Way
	Rel  *Relation
}

func (o *Object) Type() Type {
	switch {
	case o.Node != nil:
		return NodeType
	case o.Way != nil:
		return WayType
	}
	return RelationType
}

// El returns the shared element attributes of the object.
func (o *Object) El() *Element {
	switch {
	case o.Node != nil:
		return &o.Node.Element
	case o.Way != nil:
		return &o.Way.Element
	}
	return &o.Rel.Element
}

func (o *Object) ID() int64 {
	return o.El().ID
}

// UID returns the user ID of the last edit, if known.
func (o *Object) UID() (int64, bool) {
	if uid := o.El().UID; uid != nil {
		return *uid, true
	}
	return 0, false
}

// ChangesetID returns the changeset of the last edit, if known.
func (o *Object) ChangesetID() (int64, bool) {
	if cs := o.El().Changeset; cs != nil {
		return *cs, true
	}
	return 0, false
}

// Tag returns the value of the tag on the object, if set.
func (o *Object) Tag(key string) (string, bool) {
	return o.El().Tag(key)
}

func (o *Object) String() string {
	return fmt.Sprintf("%s %d", o.Type(), o.ID())
}
