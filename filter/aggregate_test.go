package filter

import (
	"testing"

	"github.com/osmwatch/osmwatch/osm"
)

func TestAggregate(t *testing.T) {
	diff := &osm.Diff{
		Creates: []osm.Action{
			{Kind: osm.Create, New: node(1, i64(4732), i64(100), nil, nil, osm.Tags{"name": "dumb"})},
		},
		Modifies: []osm.Action{
			{
				Kind: osm.Modify,
				Old:  node(2, i64(4732), i64(90), nil, nil, nil),
				New:  node(2, i64(4732), i64(101), nil, nil, nil),
			},
		},
	}

	interests := []UserInterest{
		{
			UserID: "watcher",
			Filters: []Filter{
				&UserIDMadeChange{UserID: 4732},
				&TagValueInList{Key: "name", Values: []string{"dumb"}},
			},
		},
		{
			UserID:  "other",
			Filters: []Filter{&UserIDMadeChange{UserID: 1}},
		},
	}

	result := Aggregate(interests, diff)

	alerts, ok := result["watcher"]
	if !ok {
		t.Fatal("expected alerts for watcher")
	}
	if _, ok := result["other"]; ok {
		t.Error("watcher without matches must not be present")
	}

	made := alerts["User ID 4732 made a change"]
	if len(made) != 2 {
		t.Error("expected both changesets under actor filter", made)
	}
	if _, ok := made[100]; !ok {
		t.Error("missing changeset 100")
	}
	if _, ok := made[101]; !ok {
		t.Error("missing changeset 101")
	}

	// the create matched two filters and shows up twice
	tag := alerts[(&TagValueInList{Key: "name", Values: []string{"dumb"}}).Explanation()]
	if len(tag) != 1 {
		t.Fatal("expected one changeset under tag filter", tag)
	}
	if _, ok := tag[100]; !ok {
		t.Error("missing changeset 100 under tag filter")
	}
}

func TestAggregateSkipsActionsWithoutChangeset(t *testing.T) {
	diff := &osm.Diff{
		Deletes: []osm.Action{
			{Kind: osm.Delete, Old: node(1, i64(4732), nil, nil, nil, nil)},
		},
	}
	interests := []UserInterest{
		{UserID: "w", Filters: []Filter{&ObjectChanged{Type: osm.NodeType, ID: 1}}},
	}
	result := Aggregate(interests, diff)
	if len(result) != 0 {
		t.Error("identity-only stub has no changeset to report", result)
	}
}

func TestAggregateEvaluatesStatefulFiltersOnce(t *testing.T) {
	diff := &osm.Diff{
		Modifies: []osm.Action{
			{Kind: osm.Modify, Old: node(1, i64(9999), i64(1), nil, nil, nil), New: node(1, i64(9999), i64(2), nil, nil, nil)},
			{Kind: osm.Modify, Old: node(2, i64(9999), i64(2), nil, nil, nil), New: node(2, i64(9999), i64(3), nil, nil, nil)},
		},
	}
	interests := []UserInterest{
		{UserID: "w", Filters: []Filter{NewNewUser(nil)}},
	}
	result := Aggregate(interests, diff)
	alerts := result["w"]["New user made a change"]
	if len(alerts) != 1 {
		t.Error("only the first sighting of a user should alert", alerts)
	}
	if _, ok := alerts[2]; !ok {
		t.Error("expected changeset 2 from the first action")
	}
}
