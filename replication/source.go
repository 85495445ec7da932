// Package replication streams augmented diffs from a sequence-numbered
// replication service. It owns all polling, retries and waiting; the
// consumer sees decoded containers in strictly increasing sequence
// order with no gaps.
package replication

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/osmwatch/osmwatch/log"
	"github.com/osmwatch/osmwatch/osm"
	"github.com/osmwatch/osmwatch/parser/adiff"
)

// A Sequence is one decoded augmented diff and its sequence number.
type Sequence struct {
	Sequence int
	Time     time.Time
	Diff     *osm.Diff
}

type Source interface {
	// Sequences returns the channel the source delivers diffs on.
	Sequences() <-chan Sequence
	// Stop shuts the source down. The sequences channel is closed.
	Stop()
}

var _ Source = &downloader{}

type downloader struct {
	baseURL      string
	lastSequence int
	interval     time.Duration
	errWaittime  time.Duration
	naWaittime   time.Duration
	sequences    chan Sequence
	client       *http.Client
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewDownloader polls baseURL for <sequence>.adiff files, starting at
// seq. Sequences that are not yet produced are retried, never skipped.
func NewDownloader(baseURL string, seq int, interval time.Duration) Source {
	client := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			Dial: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 1 * time.Second, // do not keep alive till next interval
			}).Dial,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
	}

	naWaittime := 10 * time.Second
	if interval < naWaittime {
		naWaittime = interval
	}

	ctx, cancel := context.WithCancel(context.Background())
	dl := &downloader{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		lastSequence: seq - 1, // we want to start with seq
		interval:     interval,
		errWaittime:  60 * time.Second,
		naWaittime:   naWaittime,
		sequences:    make(chan Sequence, 1),
		client:       client,
		ctx:          ctx,
		cancel:       cancel,
	}
	go dl.fetchNextLoop()
	return dl
}

func (d *downloader) Sequences() <-chan Sequence {
	return d.sequences
}

func (d *downloader) Stop() {
	d.cancel()
}

func (d *downloader) fetchNextLoop() {
	defer close(d.sequences)
	for {
		nextSeq := d.lastSequence + 1
		diff, err := d.fetch(nextSeq)
		switch {
		case err == errNotAvailable:
			// not produced yet, same sequence again after a pause
			if !d.wait(d.naWaittime) {
				return
			}
			continue
		case err == adiff.ErrMalformedDocument:
			// broken document, no point in re-fetching it
			log.Printf("[error] skipping sequence %d: %v", nextSeq, err)
		case err != nil:
			log.Printf("[error] fetching sequence %d: %v", nextSeq, err)
			if !d.wait(d.errWaittime) {
				return
			}
			continue
		}
		d.lastSequence = nextSeq
		if diff == nil {
			continue
		}
		select {
		case d.sequences <- Sequence{Sequence: nextSeq, Time: time.Now(), Diff: diff}:
		case <-d.ctx.Done():
			return
		}
	}
}

var errNotAvailable = fmt.Errorf("sequence not available")

func (d *downloader) fetch(seq int) (*osm.Diff, error) {
	url := fmt.Sprintf("%s/%d.adiff", d.baseURL, seq)
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(d.ctx)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, errNotAvailable
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("unexpected status %s for %s", resp.Status, url)
	}
	return adiff.Decode(resp.Body)
}

// wait pauses for dur, returning false when the downloader was
// stopped meanwhile.
func (d *downloader) wait(dur time.Duration) bool {
	select {
	case <-time.After(dur):
		return true
	case <-d.ctx.Done():
		return false
	}
}
