package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// recorder collects handled paths.
type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, filepath.Base(path))
	r.mu.Unlock()
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func dropJob(t *testing.T, inbox, name string) {
	t.Helper()
	path := filepath.Join(inbox, name)
	if err := os.WriteFile(path+".tmp", []byte(`{"id":"x"}`), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(path+".tmp", path); err != nil {
		t.Fatal(err)
	}
}

func TestInboxWatcherFlushesBatchInNameOrder(t *testing.T) {
	inbox := t.TempDir()
	var rec recorder
	w := NewInboxWatcher(inbox, rec.handle, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	for _, name := range []string{"c.json", "a.json", "b.json"} {
		dropJob(t, inbox, name)
	}
	time.Sleep(600 * time.Millisecond)
	cancel()

	got := rec.seen()
	want := []string{"a.json", "b.json", "c.json"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestInboxWatcherIgnoresPartialWrites(t *testing.T) {
	inbox := t.TempDir()
	var rec recorder
	w := NewInboxWatcher(inbox, rec.handle, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(inbox, "claim-1.json.tmp"), []byte(`{}`), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(500 * time.Millisecond)
	cancel()

	if got := rec.seen(); len(got) != 0 {
		t.Errorf("expected no jobs for .tmp, got %v", got)
	}
}

func TestInboxWatcherSurvivesHandlerPanic(t *testing.T) {
	inbox := t.TempDir()
	var rec recorder
	w := NewInboxWatcher(inbox, func(path string) {
		if filepath.Base(path) == "a.json" {
			panic("boom")
		}
		rec.handle(path)
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	dropJob(t, inbox, "a.json")
	dropJob(t, inbox, "b.json")
	time.Sleep(600 * time.Millisecond)
	cancel()

	if got := rec.seen(); len(got) != 1 || got[0] != "b.json" {
		t.Errorf("got %v, want [b.json]", got)
	}
}

func TestInboxWatcherStopsOnCancel(t *testing.T) {
	w := NewInboxWatcher(t.TempDir(), func(string) {}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil error on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after context cancellation")
	}
}

func TestPollWatcherHandlesEachFileOnce(t *testing.T) {
	inbox := t.TempDir()
	var rec recorder
	w := NewPollWatcher(inbox, rec.handle, 50*time.Millisecond)

	dropJob(t, inbox, "pay-1.json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	time.Sleep(300 * time.Millisecond)
	cancel()

	if got := rec.seen(); len(got) != 1 {
		t.Errorf("file should be handled exactly once, got %v", got)
	}
}

func TestScanExisting(t *testing.T) {
	inbox := t.TempDir()
	for _, name := range []string{"a.json", "b.json", "c.json.tmp", "d.txt"} {
		if err := os.WriteFile(filepath.Join(inbox, name), []byte(`{}`), 0600); err != nil {
			t.Fatal(err)
		}
	}

	var rec recorder
	if err := ScanExisting(inbox, rec.handle); err != nil {
		t.Fatal(err)
	}
	if got := rec.seen(); len(got) != 2 {
		t.Fatalf("expected 2 .json files, got %v", got)
	}
}

func TestScanExistingMissingDir(t *testing.T) {
	var rec recorder
	if err := ScanExisting(filepath.Join(t.TempDir(), "absent"), rec.handle); err != nil {
		t.Fatal(err)
	}
	if got := rec.seen(); len(got) != 0 {
		t.Errorf("expected nothing, got %v", got)
	}
}

func TestIsJobFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"claim-001.json", true},
		{"claim-001.json.tmp", false},
		{"notes.txt", false},
		{".hidden.json", true},
	}
	for _, tt := range tests {
		if got := isJobFile(tt.path); got != tt.want {
			t.Errorf("isJobFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
