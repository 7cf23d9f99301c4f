package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/oraclegate/internal/daemon"
)

var (
	daemonDir  string
	daemonPoll bool
)

func init() {
	daemonCmd.Flags().StringVar(&daemonDir, "dir", "", "Root of inbox/, outbox/ and state/ (overrides config)")
	daemonCmd.Flags().BoolVar(&daemonPoll, "poll", false, "Poll the inbox instead of using filesystem events")
	rootCmd.AddCommand(daemonCmd)
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Process raw invocation jobs from an inbox directory",
	Long: `Watches <dir>/inbox for job files:

  {"id": "job-1", "program": "claim", "instruction": "<hex>",
   "accounts": [{"address": "<hex>", "signer": false, "writable": true}]}

Each job runs through the raw entry point, one at a time. The result is
written to <dir>/outbox/<id>.json. Jobs interrupted by a restart are
reported as failed, not rerun.`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h, err := openHost(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer h.Close()

	dir := h.cfg.Daemon.Dir
	if daemonDir != "" {
		dir = daemonDir
	}
	d, err := daemon.New(daemon.Config{
		Dirs:         daemon.DirsUnder(dir),
		PollMode:     daemonPoll,
		PollInterval: h.cfg.Daemon.PollInterval,
		Logger:       h.log,
	}, h.gate)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}
