package daemon

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// settleDelay is how long the inbox must stay quiet before a batch of
	// arrivals is handed to the handler.
	settleDelay = 200 * time.Millisecond

	// batchBacklog bounds the number of settled batches waiting for the
	// single handler goroutine.
	batchBacklog = 16

	pollDefault = 5 * time.Second
)

// InboxWatcher feeds job files created in the inbox to a handler, one at a
// time. Arrivals are grouped until the inbox settles and each group is
// handled in file name order, so a producer can sequence jobs by name.
type InboxWatcher struct {
	inbox   string
	handler func(path string)
	settle  time.Duration
	log     *slog.Logger
}

func NewInboxWatcher(inbox string, handler func(path string), logger *slog.Logger) *InboxWatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &InboxWatcher{inbox: inbox, handler: handler, settle: settleDelay, log: logger}
}

// Run blocks until ctx is cancelled. Batches already settled when ctx ends
// are still handled before Run returns.
func (w *InboxWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()
	if err := fw.Add(w.inbox); err != nil {
		return err
	}

	batches := make(chan []string, batchBacklog)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for batch := range batches {
			for _, path := range batch {
				w.handle(path)
			}
		}
	}()

	pending := map[string]struct{}{}
	quiet := time.NewTimer(w.settle)
	quiet.Stop()

	release := func() {
		if len(pending) == 0 {
			return
		}
		batch := make([]string, 0, len(pending))
		for p := range pending {
			batch = append(batch, p)
		}
		clear(pending)
		slices.Sort(batch)
		batches <- batch
	}
	defer func() {
		quiet.Stop()
		release()
		close(batches)
		<-drained
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-quiet.C:
			release()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) || !isJobFile(ev.Name) {
				continue
			}
			pending[ev.Name] = struct{}{}
			quiet.Reset(w.settle)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("inbox watch error", "inbox", w.inbox, "error", err)
		}
	}
}

// handle shields the loop from a panicking handler; the job file stays
// where it is and is picked up as an orphan on the next start.
func (w *InboxWatcher) handle(path string) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("job handler panicked", "path", path, "panic", r)
		}
	}()
	w.handler(path)
}

// PollWatcher is the fallback for filesystems without change events
// (network mounts). Each file is handed to the handler at most once.
type PollWatcher struct {
	inbox    string
	handler  func(path string)
	interval time.Duration
	seen     map[string]bool
}

func NewPollWatcher(inbox string, handler func(path string), interval time.Duration) *PollWatcher {
	if interval <= 0 {
		interval = pollDefault
	}
	return &PollWatcher{inbox: inbox, handler: handler, interval: interval, seen: map[string]bool{}}
}

func (w *PollWatcher) Run(ctx context.Context) error {
	tick := time.NewTicker(w.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			w.scan()
		}
	}
}

func (w *PollWatcher) scan() {
	paths, err := jobFiles(w.inbox)
	if err != nil {
		return
	}
	for _, p := range paths {
		if w.seen[p] {
			continue
		}
		w.seen[p] = true
		w.handler(p)
	}
}

// ScanExisting hands every job already waiting in the inbox to handler, in
// name order. A missing inbox is not an error.
func ScanExisting(inbox string, handler func(path string)) error {
	paths, err := jobFiles(inbox)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, p := range paths {
		handler(p)
	}
	return nil
}

// jobFiles lists the job files directly under dir, sorted by name.
func jobFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if p := filepath.Join(dir, e.Name()); isJobFile(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// isJobFile accepts finished .json writes; producers stage into *.tmp and
// rename.
func isJobFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".tmp")
}
