package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Config holds full daemon configuration.
type Config struct {
	Dirs         DirConfig
	PollMode     bool
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Daemon watches the inbox directory and processes jobs.
type Daemon struct {
	cfg       Config
	log       *slog.Logger
	processor *Processor
}

// New creates a daemon that runs jobs through exec.
func New(cfg Config, exec Executor) (*Daemon, error) {
	if cfg.Dirs.Inbox == "" || cfg.Dirs.Outbox == "" || cfg.Dirs.State == "" {
		return nil, fmt.Errorf("inbox, outbox, and state directories are required")
	}
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = pollDefault
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Daemon{
		cfg:       cfg,
		log:       cfg.Logger,
		processor: NewProcessor(cfg.Dirs, exec, cfg.Logger),
	}, nil
}

// Run starts the daemon. Blocks until ctx is cancelled.
// On startup, fails orphaned processing files and then processes any
// existing inbox files.
func (d *Daemon) Run(ctx context.Context) error {
	if err := EnsureDirs(d.cfg.Dirs); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	pidPath := d.cfg.Dirs.PIDFile()
	if err := acquirePIDLock(pidPath); err != nil {
		return fmt.Errorf("acquire PID lock: %w", err)
	}
	defer func() { _ = os.Remove(pidPath) }()

	if err := d.recoverOrphans(); err != nil {
		return fmt.Errorf("recover orphans: %w", err)
	}

	handler := func(path string) {
		if err := d.processor.Process(ctx, path); err != nil {
			d.log.Error("process job", "file", filepath.Base(path), "error", err)
		}
	}

	if err := ScanExisting(d.cfg.Dirs.Inbox, handler); err != nil {
		return fmt.Errorf("scan existing: %w", err)
	}

	d.log.Info("daemon started", "inbox", d.cfg.Dirs.Inbox, "poll", d.cfg.PollMode)
	if d.cfg.PollMode {
		return NewPollWatcher(d.cfg.Dirs.Inbox, handler, d.cfg.PollInterval).Run(ctx)
	}
	return NewInboxWatcher(d.cfg.Dirs.Inbox, handler, d.log).Run(ctx)
}

// recoverOrphans fails files left in state/processing/. These are jobs
// that were interrupted by a crash or restart; whether their write landed
// is decided by the ledger, not by rerunning them.
func (d *Daemon) recoverOrphans() error {
	orphans, err := jobFiles(d.cfg.Dirs.ProcessingDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, path := range orphans {
		id := baseID(path)
		d.log.Warn("failing interrupted job", "id", id)
		result := &Result{
			ID:          id,
			Status:      ResultFailed,
			Error:       "interrupted: job was processing when daemon stopped",
			CompletedAt: d.processor.now().UTC(),
		}
		if err := d.processor.writeResult(result); err != nil {
			d.log.Error("recover orphan", "id", id, "error", err)
			continue
		}
		_ = os.Remove(path)
	}
	return nil
}

// acquirePIDLock writes the current PID to the file and checks for stale locks.
func acquirePIDLock(path string) error {
	if data, err := os.ReadFile(path); err == nil {
		pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("another daemon is running (PID %d)", pid)
				}
			}
		}
		// Stale PID file.
		_ = os.Remove(path)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0600)
}
