package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/oraclegate/internal/gate"
	"github.com/ppiankov/oraclegate/internal/model"
)

// Executor runs raw invocations. *gate.Gate satisfies it.
type Executor interface {
	Execute(ctx context.Context, req gate.ExecuteRequest) (model.Verdict, error)
}

// Processor handles job lifecycle transitions.
type Processor struct {
	dirs DirConfig
	exec Executor
	log  *slog.Logger
	now  func() time.Time
}

// NewProcessor creates a processor that runs jobs through exec.
func NewProcessor(dirs DirConfig, exec Executor, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{dirs: dirs, exec: exec, log: logger, now: time.Now}
}

// Process handles a single job file through its full lifecycle:
// read → validate → move to processing → execute → write result to outbox.
func (p *Processor) Process(ctx context.Context, jobPath string) error {
	// Symlinks could point the daemon at arbitrary files.
	fi, err := os.Lstat(jobPath)
	if err != nil {
		return fmt.Errorf("stat job file: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("rejected symlink: %s", filepath.Base(jobPath))
	}

	data, err := os.ReadFile(jobPath)
	if err != nil {
		return fmt.Errorf("read job file: %w", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		_ = os.Remove(jobPath)
		return p.writeFailedResult(baseID(jobPath), fmt.Sprintf("invalid JSON: %v", err))
	}
	if err := ValidateJob(&job); err != nil {
		_ = os.Remove(jobPath)
		return p.writeFailedResult(job.ID, fmt.Sprintf("validation failed: %v", err))
	}

	processingPath := filepath.Join(p.dirs.ProcessingDir(), job.ID+".json")
	if err := moveFile(jobPath, processingPath); err != nil {
		return fmt.Errorf("move to processing: %w", err)
	}

	result := p.execute(ctx, &job)
	if err := p.writeResult(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	_ = os.Remove(processingPath)

	p.log.Info("job processed",
		"id", result.ID,
		"status", result.Status,
		"decision", result.Decision,
		"reason", result.Reason)
	return nil
}

func (p *Processor) execute(ctx context.Context, job *Job) *Result {
	result := &Result{ID: job.ID, Policy: model.Policy(job.Program)}
	req, err := job.Request()
	if err == nil {
		var v model.Verdict
		v, err = p.exec.Execute(ctx, req)
		result.Decision = v.Decision
		result.Reason = v.Reason
		result.Detail = v.Detail
		result.Mutated = v.Mutated
	}
	if err != nil {
		result.Status = ResultFailed
		result.Error = err.Error()
	} else {
		result.Status = ResultDone
	}
	result.CompletedAt = p.now().UTC()
	return result
}

// writeResult writes a result to the outbox directory atomically.
func (p *Processor) writeResult(r *Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	final := p.dirs.resultPath(r.ID)
	if err := os.WriteFile(final+".tmp", data, 0600); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	return os.Rename(final+".tmp", final)
}

// writeFailedResult writes a minimal failed result when the job can't be run.
func (p *Processor) writeFailedResult(id string, errMsg string) error {
	if id == "" || !validID.MatchString(id) {
		id = fmt.Sprintf("unknown-%d", p.now().UnixNano())
	}
	p.log.Warn("job rejected", "id", id, "error", errMsg)
	return p.writeResult(&Result{
		ID:          id,
		Status:      ResultFailed,
		Error:       errMsg,
		CompletedAt: p.now().UTC(),
	})
}

func baseID(path string) string {
	name := filepath.Base(path)
	return name[:len(name)-len(filepath.Ext(name))]
}
