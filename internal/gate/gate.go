// Package gate is the host service around the authorization engine. It
// loads accounts from the ledger, invokes the router, writes the single
// authorized mutation back in the same transaction and audits every
// decision.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/oraclegate/internal/audit"
	"github.com/ppiankov/oraclegate/internal/ledger"
	"github.com/ppiankov/oraclegate/internal/model"
	"github.com/ppiankov/oraclegate/internal/router"
)

// Options configures a Gate.
type Options struct {
	Program       model.Address
	OracleProgram model.Address
	Store         *ledger.Store
	// Audit may be nil to skip the decision log.
	Audit      *audit.Log
	Logger     *slog.Logger
	ConfigHash string
	// Now overrides the clock; nil uses time.Now.
	Now func() time.Time
}

// Gate serializes invocations against one ledger.
type Gate struct {
	program    model.Address
	oracle     model.Address
	store      *ledger.Store
	router     *router.Router
	audit      *audit.Log
	log        *slog.Logger
	configHash string
	now        func() time.Time
	mu         sync.Mutex
}

// New builds a gate from opts.
func New(opts Options) (*Gate, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("gate: ledger store is required")
	}
	if opts.Program.IsZero() {
		return nil, fmt.Errorf("gate: program identity is required")
	}
	g := &Gate{
		program:    opts.Program,
		oracle:     opts.OracleProgram,
		store:      opts.Store,
		router:     router.New(opts.Program, opts.OracleProgram),
		audit:      opts.Audit,
		log:        opts.Logger,
		configHash: opts.ConfigHash,
		now:        opts.Now,
	}
	if g.log == nil {
		g.log = slog.New(slog.DiscardHandler)
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g, nil
}

// Program returns the program identity.
func (g *Gate) Program() model.Address {
	return g.program
}

// Router returns the engine entry points the gate dispatches to.
func (g *Gate) Router() *router.Router {
	return g.router
}

func (g *Gate) unix() int64 {
	return g.now().Unix()
}

// errDryRun rolls back a simulated invocation.
var errDryRun = errors.New("dry run")

// update runs fn in a serialized ledger transaction. With dryRun the
// transaction always rolls back.
func (g *Gate) update(ctx context.Context, dryRun bool, fn func(*ledger.Tx) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	err := g.store.Update(ctx, func(tx *ledger.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		if dryRun {
			return errDryRun
		}
		return nil
	})
	if errors.Is(err, errDryRun) {
		return nil
	}
	return err
}

func (g *Gate) view(ctx context.Context, fn func(*ledger.Tx) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.View(ctx, fn)
}

// record writes entry to the audit log. Audit failures are logged, not
// returned: the ledger transaction has already committed.
func (g *Gate) record(trace string, entry audit.AuditEntry) {
	if g.audit == nil {
		return
	}
	entry.TraceID = trace
	entry.ConfigHash = g.configHash
	if _, err := g.audit.Record(entry); err != nil {
		g.log.Error("audit write failed", "trace", trace, "error", err)
	}
}

// recordAdmin audits an administrative operation and its outcome.
func (g *Gate) recordAdmin(op string, subject model.Address, err error) {
	entry := audit.AuditEntry{
		Type:     audit.TypeAdmin,
		Action:   audit.Action{Op: op, Subject: subject.String()},
		Decision: string(model.Allow),
	}
	if err != nil {
		entry.Decision = string(model.Deny)
		if reason, ok := model.ReasonOf(err); ok {
			entry.Reason = string(reason)
		}
		entry.Detail = err.Error()
		g.log.Warn("admin operation refused", "op", op, "subject", subject.Short(), "error", err)
	} else {
		g.log.Info("admin operation applied", "op", op, "subject", subject.Short())
	}
	g.record(uuid.NewString(), entry)
}

// logVerdict reports a decision on the process logger.
func (g *Gate) logVerdict(trace, op string, v model.Verdict, subject model.Address, amount uint64) {
	attrs := []any{
		"trace", trace, "op", op, "policy", v.Policy, "path", v.Path,
		"subject", subject.Short(), "amount", amount,
	}
	if v.Allowed() {
		g.log.Info("transfer authorized", append(attrs, "mutated", v.Mutated)...)
		return
	}
	g.log.Info("transfer denied", append(attrs, "reason", v.Reason, "detail", v.Detail)...)
}

// finish logs and audits v. A dry run never reports a mutation.
func (g *Gate) finish(op string, v model.Verdict, subject model.Address, amount uint64, dryRun bool) model.Verdict {
	trace := uuid.NewString()
	if dryRun {
		op = "simulate-" + op
		v.Mutated = false
	}
	g.logVerdict(trace, op, v, subject, amount)
	g.record(trace, audit.FromVerdict(op, v, subject, amount))
	return v
}
