package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/oraclegate/internal/audit"
	"github.com/ppiankov/oraclegate/internal/config"
	"github.com/ppiankov/oraclegate/internal/gate"
	"github.com/ppiankov/oraclegate/internal/ledger"
	"github.com/ppiankov/oraclegate/internal/model"
)

var (
	configPath string
	dbPath     string
	auditPath  string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "oraclegate",
	Short: "Oracle-gated transfer authorization",
	Long: "Authorizes token transfers against oracle data: earthquake insurance\n" +
		"claims gated on a regional magnitude feed, and payments gated on an\n" +
		"oracle price band. Records live in a local ledger; every decision is\n" +
		"written to a hash-chained audit log.",
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to config YAML (default ~/.oraclegate/config.yaml)")
	pf.StringVar(&dbPath, "db", "", "Path to the ledger database (overrides config)")
	pf.StringVar(&auditPath, "audit-log", "", "Path to the audit log (overrides config)")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides config)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// errDenied makes a denied transfer exit non-zero after its verdict is printed.
var errDenied = errors.New("transfer denied")

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*config.Config, string, error) {
	cfg, hash, err := config.Load(configPath)
	if err != nil {
		return nil, "", err
	}
	if dbPath != "" {
		cfg.Ledger = dbPath
	}
	if auditPath != "" {
		cfg.AuditLog = auditPath
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, hash, nil
}

// host is everything a command needs to talk to the ledger.
type host struct {
	cfg   *config.Config
	log   *slog.Logger
	store *ledger.Store
	audit *audit.Log
	gate  *gate.Gate
}

func openHost(ctx context.Context, stderr io.Writer) (*host, error) {
	cfg, hash, err := loadConfig()
	if err != nil {
		return nil, err
	}
	program, err := cfg.Program()
	if err != nil {
		return nil, fmt.Errorf("program_id: %w", err)
	}
	oracleProgram, err := cfg.OracleProgram()
	if err != nil {
		return nil, fmt.Errorf("oracle_program_id: %w", err)
	}
	h := &host{cfg: cfg, log: cfg.NewLogger(stderr)}

	if err := os.MkdirAll(filepath.Dir(cfg.Ledger), 0o750); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	if h.store, err = ledger.Open(ctx, cfg.Ledger); err != nil {
		return nil, err
	}
	if cfg.AuditLog != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.AuditLog), 0o750); err != nil {
			_ = h.Close()
			return nil, fmt.Errorf("create audit directory: %w", err)
		}
		if h.audit, err = audit.Open(cfg.AuditLog); err != nil {
			_ = h.Close()
			return nil, err
		}
	}
	h.gate, err = gate.New(gate.Options{
		Program:       program,
		OracleProgram: oracleProgram,
		Store:         h.store,
		Audit:         h.audit,
		Logger:        h.log,
		ConfigHash:    hash,
	})
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	return h, nil
}

func (h *host) Close() error {
	var errs []error
	if h.audit != nil {
		errs = append(errs, h.audit.Close())
	}
	if h.store != nil {
		errs = append(errs, h.store.Close())
	}
	return errors.Join(errs...)
}

// withHost opens the host for the duration of fn.
func withHost(cmd *cobra.Command, fn func(ctx context.Context, h *host) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	h, err := openHost(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer h.Close()
	return fn(ctx, h)
}

// address resolves a flag value: hex, or a name to derive from.
func address(flag, value string) (model.Address, error) {
	a, err := model.ResolveAddress(value)
	if err != nil {
		return a, fmt.Errorf("--%s: %w", flag, err)
	}
	return a, nil
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// printVerdict renders v and returns errDenied for a denial.
func printVerdict(w io.Writer, v model.Verdict, format string) error {
	if format == "json" {
		if err := printJSON(w, v); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "%s  %s (%s path)\n", label(v), v.Policy, v.Path)
		if !v.Allowed() {
			fmt.Fprintf(w, "  reason: %s: %s\n", v.Reason, v.Reason.Message())
		}
		if v.Detail != "" {
			fmt.Fprintf(w, "  detail: %s\n", v.Detail)
		}
	}
	if !v.Allowed() {
		return errDenied
	}
	return nil
}

func label(v model.Verdict) string {
	switch {
	case v.Mutated:
		return "ALLOW*"
	case v.Allowed():
		return "ALLOW"
	}
	return "DENY"
}
