package watch

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/osmwatch/osmwatch/changeset"
	"github.com/osmwatch/osmwatch/filter"
	"github.com/osmwatch/osmwatch/osm"
	"github.com/osmwatch/osmwatch/replication"
)

func testDiff(uid, cs int64) *osm.Diff {
	node := &osm.Node{Element: osm.Element{ID: 1, UID: &uid, Changeset: &cs, Visible: true}}
	return &osm.Diff{
		Version:   "0.6",
		Generator: "test",
		Creates:   []osm.Action{{Kind: osm.Create, New: &osm.Object{Node: node}}},
	}
}

func testRunner(url string) *runner {
	return &runner{
		interests: []filter.UserInterest{
			{UserID: "alice", Filters: []filter.Filter{&filter.UserIDMadeChange{UserID: 4732}}},
		},
		csClient:   changeset.NewClient(url),
		changesets: make(map[int64]osm.Changeset),
		pending:    make(map[int64]struct{}),
		backoff:    newExpBackoff(2*time.Second, 5*time.Minute),
	}
}

func TestProcessEnriches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `<osm version="0.6">
  <changeset id="55" created_at="2024-05-01T12:00:00Z" open="false" user="somebody" uid="99">
    <tag k="comment" v="fixing roads"/>
  </changeset>
</osm>`)
	}))
	defer srv.Close()

	r := testRunner(srv.URL)
	r.process(replication.Sequence{Sequence: 1, Diff: testDiff(4732, 55)})

	if len(r.pending) != 0 {
		t.Error("changeset should not stay pending", r.pending)
	}
	cs, ok := r.changesets[55]
	if !ok {
		t.Fatal("changeset 55 not fetched")
	}
	if cs.UserName != "somebody" {
		t.Error("unexpected changeset user", cs.UserName)
	}
	if got := r.describe([]int64{55}); got != `changeset 55 by somebody "fixing roads"` {
		t.Error("unexpected description", got)
	}
}

func TestProcessKeepsPendingOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer srv.Close()

	r := testRunner(srv.URL)
	r.process(replication.Sequence{Sequence: 1, Diff: testDiff(4732, 55)})

	if _, ok := r.pending[55]; !ok {
		t.Error("failed changeset should stay pending")
	}
	if !r.retryAt.After(time.Now()) {
		t.Error("retry should be delayed after a failure")
	}
	if got := r.describe([]int64{55}); got != "changeset 55" {
		t.Error("unexpected description", got)
	}

	// enrichment is skipped while the backoff is active
	r.process(replication.Sequence{Sequence: 2, Diff: testDiff(4732, 55)})
	if _, ok := r.pending[55]; !ok {
		t.Error("changeset should still be pending")
	}
}

func TestNoAlertsNoFetch(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		called = true
		http.NotFound(w, req)
	}))
	defer srv.Close()

	r := testRunner(srv.URL)
	r.process(replication.Sequence{Sequence: 1, Diff: testDiff(9999, 55)})

	if called {
		t.Error("no filter matched, nothing should be fetched")
	}
}
