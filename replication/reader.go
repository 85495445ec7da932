package replication

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/fsnotify.v1"

	"github.com/osmwatch/osmwatch/log"
	"github.com/osmwatch/osmwatch/parser/adiff"
)

var _ Source = &reader{}

type reader struct {
	dir          string
	lastSequence int
	sequences    chan Sequence
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewReader delivers diffs from <sequence>.adiff files in a local
// directory, starting at seq. It waits for files that another process
// has not written yet.
func NewReader(dir string, seq int) Source {
	ctx, cancel := context.WithCancel(context.Background())
	r := &reader{
		dir:          dir,
		lastSequence: seq - 1,
		sequences:    make(chan Sequence, 1),
		ctx:          ctx,
		cancel:       cancel,
	}
	go r.fetchNextLoop()
	return r
}

func (r *reader) Sequences() <-chan Sequence {
	return r.sequences
}

func (r *reader) Stop() {
	r.cancel()
}

func (r *reader) fetchNextLoop() {
	defer close(r.sequences)
	for {
		nextSeq := r.lastSequence + 1
		filename := filepath.Join(r.dir, fmt.Sprintf("%d.adiff", nextSeq))
		if err := r.waitTillPresent(filename); err != nil {
			if r.ctx.Err() != nil {
				return
			}
			log.Printf("[error] waiting for %s: %v", filename, err)
			continue
		}
		r.lastSequence = nextSeq
		diff, err := adiff.DecodeFile(filename)
		if err != nil {
			log.Printf("[error] skipping %s: %v", filename, err)
			continue
		}
		var mtime time.Time
		if fi, err := os.Stat(filename); err == nil {
			mtime = fi.ModTime()
		}
		select {
		case r.sequences <- Sequence{Sequence: nextSeq, Time: mtime, Diff: diff}:
		case <-r.ctx.Done():
			return
		}
	}
}

// waitTillPresent blocks till the file is present or the reader is
// stopped.
func (r *reader) waitTillPresent(filename string) error {
	if _, err := os.Stat(filename); err == nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	// watch the directory, we want events for a new file
	if err := w.Add(filepath.Dir(filename)); err != nil {
		return err
	}

	// check again, in case the file was created before we started watching
	if _, err := os.Stat(filename); err == nil {
		return nil
	}

	for {
		select {
		case evt := <-w.Events:
			if evt.Op&fsnotify.Create == fsnotify.Create && evt.Name == filename {
				return nil
			}
		case err := <-w.Errors:
			return err
		case <-r.ctx.Done():
			return r.ctx.Err()
		}
	}
}
