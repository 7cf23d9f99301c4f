package daemon

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

const dirPerm = 0750

// DirConfig is where the daemon finds jobs and leaves results. Jobs move
// from Inbox to State/processing while they run; results land in Outbox.
type DirConfig struct {
	Inbox  string
	Outbox string
	State  string
}

// DirsUnder returns the conventional layout rooted at root.
func DirsUnder(root string) DirConfig {
	return DirConfig{
		Inbox:  filepath.Join(root, "inbox"),
		Outbox: filepath.Join(root, "outbox"),
		State:  filepath.Join(root, "state"),
	}
}

func (d DirConfig) ProcessingDir() string { return filepath.Join(d.State, "processing") }

// PIDFile guards against two daemons draining the same inbox.
func (d DirConfig) PIDFile() string { return filepath.Join(d.State, "daemon.pid") }

func (d DirConfig) resultPath(id string) string { return filepath.Join(d.Outbox, id+".json") }

// EnsureDirs creates the layout. Safe to call repeatedly.
func EnsureDirs(d DirConfig) error {
	for _, dir := range []string{d.Inbox, d.Outbox, d.ProcessingDir()} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// moveFile renames src to dst, copying across devices when the inbox is a
// separate mount.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
