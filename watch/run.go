// Package watch wires the replication source, the filter engine and
// the changeset client into the long-running watch process.
package watch

import (
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/osmwatch/osmwatch/changeset"
	"github.com/osmwatch/osmwatch/config"
	"github.com/osmwatch/osmwatch/filter"
	"github.com/osmwatch/osmwatch/log"
	"github.com/osmwatch/osmwatch/osm"
	"github.com/osmwatch/osmwatch/replication"
)

func Run(opts config.RunOptions) {
	if opts.Quiet {
		log.SetMinLevel(log.LWarn)
	}

	interests := make([]filter.UserInterest, 0, len(opts.Watchers))
	for _, w := range opts.Watchers {
		interest, err := w.Build()
		if err != nil {
			log.Fatal("[fatal] ", err)
		}
		interests = append(interests, interest)
	}

	seq := opts.Sequence
	var source replication.Source
	if opts.DiffDir != "" {
		if seq == 0 {
			log.Fatal("[fatal] -seqn required with -diffdir")
		}
		source = replication.NewReader(opts.DiffDir, seq)
	} else {
		if seq == 0 {
			var err error
			seq, err = replication.CurrentSequence(opts.ReplicationURL)
			if err != nil {
				log.Fatal("[fatal] fetching current sequence: ", err)
			}
			log.Printf("[info] starting at current sequence %d", seq)
		}
		source = replication.NewDownloader(opts.ReplicationURL, seq, opts.ReplicationInterval.Duration)
	}

	log.Printf("[info] replication URL: %s", opts.ReplicationURL)
	log.Printf("[info] replication interval: %s", opts.ReplicationInterval.Duration)

	r := &runner{
		interests:  interests,
		csClient:   changeset.NewClient(opts.ChangesetAPI),
		changesets: make(map[int64]osm.Changeset),
		pending:    make(map[int64]struct{}),
		backoff:    newExpBackoff(2*time.Second, 5*time.Minute),
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	shutdown := func() {
		log.Println("[info] exiting (SIGTERM/SIGINT/SIGHUP)")
		source.Stop()
		os.Exit(0)
	}

	nextSeq := source.Sequences()
	for {
		select {
		case <-sigc:
			shutdown()
		case seq, ok := <-nextSeq:
			if !ok {
				return
			}
			r.process(seq)
			select {
			case <-sigc:
				shutdown()
			default:
			}
		}
	}
}

type runner struct {
	interests  []filter.UserInterest
	csClient   *changeset.Client
	changesets map[int64]osm.Changeset
	pending    map[int64]struct{}
	backoff    *expBackoff
	retryAt    time.Time
}

func (r *runner) process(seq replication.Sequence) {
	log.Printf("[debug] processing #%d (%d creates, %d modifies, %d deletes)",
		seq.Sequence, len(seq.Diff.Creates), len(seq.Diff.Modifies), len(seq.Diff.Deletes))

	alerts := filter.Aggregate(r.interests, seq.Diff)
	if len(alerts) == 0 {
		return
	}

	for _, byExplanation := range alerts {
		for _, ids := range byExplanation {
			for id := range ids {
				if _, ok := r.changesets[id]; !ok {
					r.pending[id] = struct{}{}
				}
			}
		}
	}
	r.enrich()
	r.report(seq.Sequence, alerts)
}

// enrich fetches metadata for changesets we have not resolved yet.
// Failures only delay enrichment, IDs stay pending and are requested
// again with the next container.
func (r *runner) enrich() {
	if len(r.pending) == 0 || time.Now().Before(r.retryAt) {
		return
	}
	ids := make([]int64, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result, err := r.csClient.Changesets(ids)
	if err != nil {
		r.backoff.Step()
		r.retryAt = time.Now().Add(r.backoff.Duration())
		log.Printf("[warn] fetching changesets: %v (retrying in %s)", err, r.backoff.Duration())
		return
	}
	r.backoff.Reset()
	r.retryAt = time.Time{}
	for id, cs := range result {
		r.changesets[id] = cs
		delete(r.pending, id)
	}
}

func (r *runner) report(seq int, alerts map[string]filter.Alerts) {
	users := make([]string, 0, len(alerts))
	for user := range alerts {
		users = append(users, user)
	}
	sort.Strings(users)

	for _, user := range users {
		explanations := make([]string, 0, len(alerts[user]))
		for explanation := range alerts[user] {
			explanations = append(explanations, explanation)
		}
		sort.Strings(explanations)

		for _, explanation := range explanations {
			ids := make([]int64, 0, len(alerts[user][explanation]))
			for id := range alerts[user][explanation] {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

			log.Printf("[info] #%d alert for %s: %s (%s)",
				seq, user, explanation, r.describe(ids))
		}
	}
}

// describe renders a changeset ID list, with author and comment where
// the metadata is already fetched.
func (r *runner) describe(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		cs, ok := r.changesets[id]
		if !ok {
			parts = append(parts, "changeset "+strconv.FormatInt(id, 10))
			continue
		}
		part := "changeset " + strconv.FormatInt(id, 10) + " by " + cs.UserName
		if comment, ok := cs.Tags["comment"]; ok && comment != "" {
			part += " " + strconv.Quote(comment)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

type expBackoff struct {
	current time.Duration
	min     time.Duration
	max     time.Duration
}

func newExpBackoff(min, max time.Duration) *expBackoff {
	return &expBackoff{min, min, max}
}

func (eb *expBackoff) Duration() time.Duration {
	return eb.current
}

func (eb *expBackoff) Step() {
	eb.current = eb.current * 2
	if eb.current > eb.max {
		eb.current = eb.max
	}
}

func (eb *expBackoff) Reset() {
	eb.current = eb.min
}
