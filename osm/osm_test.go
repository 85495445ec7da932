package osm

import (
	"testing"

	"github.com/paulmach/orb"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func TestNodeGeometry(t *testing.T) {
	n := &Object{Node: &Node{Element: Element{ID: 1, Visible: true}, Lat: f64(45.0), Long: f64(-93.0)}}
	g, ok := n.Geometry()
	if !ok {
		t.Fatal("expected geometry for node with coordinates")
	}
	p, ok := g.(orb.Point)
	if !ok {
		t.Fatalf("expected point, got %T", g)
	}
	if p[0] != -93.0 || p[1] != 45.0 {
		t.Error("unexpected point", p)
	}

	stub := &Object{Node: &Node{Element: Element{ID: 2, Visible: true}}}
	if _, ok := stub.Geometry(); ok {
		t.Error("expected no geometry for node without coordinates")
	}
}

func TestWayGeometry(t *testing.T) {
	nd := func(ref int64, lon, lat float64) NodeRef {
		return NodeRef{Ref: ref, Lat: f64(lat), Long: f64(lon)}
	}

	closed := &Object{Way: &Way{
		Element: Element{ID: 10, Visible: true},
		Nodes:   []NodeRef{nd(1, 0, 0), nd(2, 1, 0), nd(3, 1, 1), nd(1, 0, 0)},
	}}
	g, ok := closed.Geometry()
	if !ok {
		t.Fatal("expected geometry for closed way")
	}
	poly, ok := g.(orb.Polygon)
	if !ok {
		t.Fatalf("expected polygon, got %T", g)
	}
	if len(poly) != 1 || len(poly[0]) != 4 {
		t.Error("unexpected ring", poly)
	}

	open := &Object{Way: &Way{
		Element: Element{ID: 11, Visible: true},
		Nodes:   []NodeRef{nd(1, 0, 0), nd(2, 1, 0), nd(3, 1, 1)},
	}}
	g, ok = open.Geometry()
	if !ok {
		t.Fatal("expected geometry for open way")
	}
	ls, ok := g.(orb.LineString)
	if !ok {
		t.Fatalf("expected linestring, got %T", g)
	}
	if len(ls) != 3 {
		t.Error("unexpected linestring", ls)
	}

	empty := &Object{Way: &Way{Element: Element{ID: 12, Visible: true}}}
	g, ok = empty.Geometry()
	if !ok {
		t.Fatal("expected degenerate geometry for empty way")
	}
	if poly, ok := g.(orb.Polygon); !ok || len(poly) != 0 {
		t.Error("expected empty polygon", g)
	}

	partial := &Object{Way: &Way{
		Element: Element{ID: 13, Visible: true},
		Nodes:   []NodeRef{nd(1, 0, 0), {Ref: 2}},
	}}
	if _, ok := partial.Geometry(); ok {
		t.Error("expected no geometry for way with unresolved node")
	}
}

func TestRelationGeometry(t *testing.T) {
	rel := &Object{Rel: &Relation{Element: Element{ID: 20, Visible: true}}}
	if _, ok := rel.Geometry(); ok {
		t.Error("relation geometry must be undefined")
	}
}

func TestActionChangesetID(t *testing.T) {
	old := &Object{Node: &Node{Element: Element{ID: 1, Changeset: i64(55), Visible: true}}}
	stub := &Object{Node: &Node{Element: Element{ID: 1, Visible: true}}}

	a := Action{Kind: Delete, Old: old, New: stub}
	if cs, ok := a.ChangesetID(); !ok || cs != 55 {
		t.Error("expected changeset from old side, got", cs, ok)
	}

	b := Action{Kind: Delete, Old: stub}
	if _, ok := b.ChangesetID(); ok {
		t.Error("expected no changeset for identity-only stub")
	}
}

func TestChanges(t *testing.T) {
	mk := func(kind Kind, id int64) Action {
		return Action{Kind: kind, New: &Object{Node: &Node{Element: Element{ID: id, Visible: true}}}}
	}
	d := &Diff{
		Creates:  []Action{mk(Create, 1)},
		Modifies: []Action{mk(Modify, 2), mk(Modify, 3)},
		Deletes:  []Action{mk(Delete, 4)},
	}
	changes := d.Changes()
	if len(changes) != 4 {
		t.Fatal("expected 4 changes, got", len(changes))
	}
	want := []int64{1, 2, 3, 4}
	for i, a := range changes {
		if a.New.ID() != want[i] {
			t.Error("unexpected order", i, a.New.ID())
		}
	}
}
