package osm

import "fmt"

// Kind classifies a change action.
type Kind int

const (
	Create Kind = iota
	Modify
	Delete
)

var KindValues = map[string]Kind{
	"create": Create,
	"modify": Modify,
	"delete": Delete,
}

func (k Kind) String() string {
	switch k {
	case Create:
		return "create"
	case Modify:
		return "modify"
	case Delete:
		return "delete"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// An Action is a single change: the object before and after the edit.
// Create actions have Old == nil. Delete actions can have New as a
// bare identity stub, or no New at all. When both sides are present
// they refer to the same (type, id).
type Action struct {
	Kind Kind
	Old  *Object
	New  *Object
}

// ChangesetID returns the changeset the action belongs to, preferring
// the new side. False when neither side carries one.
func (a Action) ChangesetID() (int64, bool) {
	if a.New != nil {
		if cs, ok := a.New.ChangesetID(); ok {
			return cs, true
		}
	}
	if a.Old != nil {
		return a.Old.ChangesetID()
	}
	return 0, false
}

// A Diff is one decoded augmented diff document.
type Diff struct {
	Version   string
	Generator string
	Note      string

	Creates  []Action
	Modifies []Action
	Deletes  []Action
}

// Changes returns all actions of the diff, creates first, then
// modifies, then deletes. The order is fixed regardless of the order
// in the source document.
func (d *Diff) Changes() []Action {
	changes := make([]Action, 0, len(d.Creates)+len(d.Modifies)+len(d.Deletes))
	changes = append(changes, d.Creates...)
	changes = append(changes, d.Modifies...)
	changes = append(changes, d.Deletes...)
	return changes
}
