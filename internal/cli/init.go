package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/oraclegate/internal/config"
	"github.com/ppiankov/oraclegate/internal/ledger"
	"github.com/ppiankov/oraclegate/internal/model"
	"github.com/ppiankov/oraclegate/internal/oracle"
)

var (
	initAuthority string
	initThreshold float64
	initMint      string
	initForce     bool
)

func init() {
	initCmd.Flags().StringVar(&initAuthority, "authority", "", "Admin authority for config and registry updates (required)")
	initCmd.Flags().Float64Var(&initThreshold, "threshold", 7.0, "Minimum magnitude that authorizes a claim")
	initCmd.Flags().StringVar(&initMint, "mint", "", "Insurance token mint; writes its extra account list")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	_ = initCmd.MarkFlagRequired("authority")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap the config file and the insurance program config",
	Long: `Writes a default config file if none exists, creates the program config
record with the given authority and threshold, and optionally writes the
extra account list for the insurance mint.

Running init again leaves existing records in place.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	var created []string

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	if path != "" {
		wrote, err := writeIfMissing(path, defaultConfigYAML())
		if err != nil {
			return err
		}
		if wrote {
			created = append(created, path)
		}
	}

	authority, err := address("authority", initAuthority)
	if err != nil {
		return err
	}

	err = withHost(cmd, func(ctx context.Context, h *host) error {
		cfg, err := h.gate.InitConfig(ctx, authority, initThreshold)
		switch {
		case errors.Is(err, ledger.ErrAlreadyExists):
			fmt.Fprintln(out, "Program config already exists.")
		case err != nil:
			return err
		default:
			created = append(created, fmt.Sprintf("program config (threshold %s)", oracle.FormatHundredths(cfg.Threshold)))
		}

		if initMint == "" {
			return nil
		}
		mint, err := address("mint", initMint)
		if err != nil {
			return err
		}
		_, err = h.gate.InitExtraAccountMetas(ctx, mint, model.PolicyClaim)
		switch {
		case errors.Is(err, ledger.ErrAlreadyExists):
			fmt.Fprintln(out, "Extra account list already exists.")
		case err != nil:
			return err
		default:
			created = append(created, "extra account list for mint "+mint.Short())
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "oraclegate init complete.")
	if len(created) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Created:")
		for _, c := range created {
			fmt.Fprintf(out, "  %s\n", c)
		}
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next:")
	fmt.Fprintln(out, "  oraclegate region-feed --authority <addr> --region West --feed <addr>")
	fmt.Fprintln(out, "  oraclegate register --owner <addr> --region West --insured <amount> --premium <amount> --days 30")
	return nil
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

func defaultConfigYAML() string {
	return `# oraclegate configuration.
# Every key can also be set with an ORACLEGATE_* environment variable.

# Identity that owns program records. Hex, or a name to derive from.
program_id: oraclegate
# When set, feed accounts must be owned by this program.
# oracle_program_id: switchboard

# ledger: ~/.oraclegate/ledger.db
# audit_log: ~/.oraclegate/audit.jsonl

log_format: text
log_level: info

daemon:
  # dir: ~/.oraclegate/daemon
  poll_interval: 2s
`
}
