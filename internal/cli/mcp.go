package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	gatemcp "github.com/ppiankov/oraclegate/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs oraclegate as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes dry-run tools: check_claim, check_payment, check_execute, policy.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h, err := openHost(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer h.Close()

	srv, err := gatemcp.New(gatemcp.Config{Gate: h.gate, Version: version, Logger: h.log})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	h.log.Info("MCP server running on stdio", "ledger", h.cfg.Ledger)
	return srv.Run(ctx)
}
