package filter

import "github.com/osmwatch/osmwatch/osm"

// A UserInterest is the ordered filter list of one watcher.
type UserInterest struct {
	UserID  string
	Filters []Filter
}

// Alerts groups the changeset IDs that triggered a filter by the
// filter's explanation.
type Alerts map[string]map[int64]struct{}

func (a Alerts) add(explanation string, changeset int64) {
	set, ok := a[explanation]
	if !ok {
		set = make(map[int64]struct{})
		a[explanation] = set
	}
	set[changeset] = struct{}{}
}

// Aggregate evaluates every filter of every interest against all
// changes of the diff and groups matches per watcher and explanation.
// One action can show up under several explanations when several
// filters match it. The result only covers this diff; aggregation is
// not cumulative across containers.
//
// Every filter is evaluated exactly once per action, so stateful
// filters (NewUser) see each change once. Matches on actions without
// any changeset ID (identity-only stubs) are dropped, there is no
// changeset to report.
func Aggregate(interests []UserInterest, diff *osm.Diff) map[string]Alerts {
	result := make(map[string]Alerts)
	for _, action := range diff.Changes() {
		changeset, hasChangeset := action.ChangesetID()
		for _, interest := range interests {
			for _, f := range interest.Filters {
				if !f.Match(action) {
					continue
				}
				if !hasChangeset {
					continue
				}
				alerts, ok := result[interest.UserID]
				if !ok {
					alerts = make(Alerts)
					result[interest.UserID] = alerts
				}
				alerts.add(f.Explanation(), changeset)
			}
		}
	}
	return result
}
