package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/oraclegate/internal/audit"
)

var (
	replayTrace   string
	replaySubject string
	replayReason  string
	replayFrom    string
	replayTo      string
	replayFormat  string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd, auditReplayCmd)

	f := auditReplayCmd.Flags()
	f.StringVar(&replayTrace, "trace", "", "Only entries with this trace ID")
	f.StringVar(&replaySubject, "subject", "", "Only entries for this subject (hex address or name)")
	f.StringVar(&replayReason, "reason", "", "Only denials with this reason")
	f.StringVar(&replayFrom, "from", "", "Start time filter (RFC3339)")
	f.StringVar(&replayTo, "to", "", "End time filter (RFC3339)")
	f.StringVarP(&replayFormat, "format", "f", "text", "Output format (text|json)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying and replaying the hash-chained decision log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify hash chain integrity of an audit log",
	Long: "Walks the JSONL audit log and validates that every entry's prev_hash\n" +
		"matches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.\n" +
		"Defaults to the configured audit log.",
	Args: cobra.MaximumNArgs(1),
	RunE: runAuditVerify,
}

var auditReplayCmd = &cobra.Command{
	Use:   "replay [path]",
	Short: "Render a decision timeline from the audit log",
	Long:  "Reads the audit log, applies the filters, and renders a timeline with\na summary of allows, denials and reasons.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditReplay,
}

// auditLogPath is the positional argument, else the configured log.
func auditLogPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.AuditLog == "" {
		return "", fmt.Errorf("no audit log configured")
	}
	return cfg.AuditLog, nil
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	path, err := auditLogPath(args)
	if err != nil {
		return err
	}
	result := audit.Verify(path)
	if !result.Valid {
		return fmt.Errorf("audit log broken at line %d: %s", result.ErrorLine, result.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries verified\n", result.Lines)
	return nil
}

func runAuditReplay(cmd *cobra.Command, args []string) error {
	path, err := auditLogPath(args)
	if err != nil {
		return err
	}
	filter := audit.ReplayFilter{TraceID: replayTrace, Reason: replayReason}
	if replaySubject != "" {
		subject, err := address("subject", replaySubject)
		if err != nil {
			return err
		}
		filter.Subject = subject.String()
	}
	if replayFrom != "" {
		if filter.From, err = time.Parse(time.RFC3339, replayFrom); err != nil {
			return fmt.Errorf("invalid --from time %q: %w", replayFrom, err)
		}
	}
	if replayTo != "" {
		if filter.To, err = time.Parse(time.RFC3339, replayTo); err != nil {
			return fmt.Errorf("invalid --to time %q: %w", replayTo, err)
		}
	}

	result, err := audit.Replay(path, filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch replayFormat {
	case "json":
		s, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, s)
	default:
		fmt.Fprint(out, audit.FormatTimeline(result))
	}
	return nil
}
