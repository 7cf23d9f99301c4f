// Package daemon implements the raw instruction inbox. Jobs arrive as JSON
// files in the inbox directory, run one at a time through the raw entry
// point, and results are written to the outbox directory.
package daemon

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/oraclegate/internal/gate"
	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/model"
)

// validID matches alphanumeric characters, dashes, and underscores only.
var validID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Job is one raw invocation dropped into the inbox.
type Job struct {
	ID      string `json:"id"`
	Program string `json:"program"`
	// Instruction is hex-encoded instruction data.
	Instruction string       `json:"instruction"`
	Accounts    []JobAccount `json:"accounts"`
	// DryRun evaluates without persisting the policy write.
	DryRun    bool      `json:"dry_run,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// JobAccount is one positional account. Address is hex or a derivation
// name.
type JobAccount struct {
	Address  string `json:"address"`
	Signer   bool   `json:"signer,omitempty"`
	Writable bool   `json:"writable,omitempty"`
}

// Result is written to the outbox after processing a job.
type Result struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	Policy      model.Policy   `json:"policy,omitempty"`
	Decision    model.Decision `json:"decision,omitempty"`
	Reason      model.Reason   `json:"reason,omitempty"`
	Detail      string         `json:"detail,omitempty"`
	Mutated     bool           `json:"mutated,omitempty"`
	Error       string         `json:"error,omitempty"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Result status values. A denial is still a done job; failed means no
// verdict was produced.
const (
	ResultDone   = "done"
	ResultFailed = "failed"
)

// ValidateJob checks that a job has all required fields and safe values.
func ValidateJob(j *Job) error {
	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if strings.Contains(j.ID, "..") {
		return fmt.Errorf("job ID must not contain '..'")
	}
	if !validID.MatchString(j.ID) {
		return fmt.Errorf("job ID contains invalid characters: only alphanumeric, dash, and underscore allowed")
	}
	switch model.Policy(j.Program) {
	case model.PolicyClaim, model.PolicyPayment:
	case "":
		return fmt.Errorf("job program is required")
	default:
		return fmt.Errorf("invalid job program %q: must be one of: claim, payment", j.Program)
	}
	if j.Instruction == "" {
		return fmt.Errorf("job instruction is required")
	}
	if len(j.Accounts) == 0 {
		return fmt.Errorf("job accounts are required")
	}
	return nil
}

// Request converts a validated job into a raw gate invocation.
func (j *Job) Request() (gate.ExecuteRequest, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(j.Instruction, "0x"))
	if err != nil {
		return gate.ExecuteRequest{}, fmt.Errorf("decode instruction: %w", err)
	}
	metas := make([]layout.AccountMeta, len(j.Accounts))
	for i, a := range j.Accounts {
		addr, err := model.ResolveAddress(a.Address)
		if err != nil {
			return gate.ExecuteRequest{}, fmt.Errorf("account %d: %w", i, err)
		}
		metas[i] = layout.AccountMeta{Address: addr, Signer: a.Signer, Writable: a.Writable}
	}
	return gate.ExecuteRequest{
		Policy:      model.Policy(j.Program),
		Instruction: data,
		Accounts:    metas,
		DryRun:      j.DryRun,
	}, nil
}
