// Package mcp exposes the gate's decisions as MCP tools over stdio. Every
// check is a dry run: the verdict is the one a real invocation would get,
// and nothing is persisted.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/oraclegate/internal/gate"
)

// Config holds MCP server configuration.
type Config struct {
	Gate    *gate.Gate
	Version string
	Logger  *slog.Logger
}

// Server wraps the MCP SDK server around a gate.
type Server struct {
	mcpServer *mcpsdk.Server
	gate      *gate.Gate
	log       *slog.Logger
}

// New creates an MCP server with its tools registered.
func New(cfg Config) (*Server, error) {
	if cfg.Gate == nil {
		return nil, fmt.Errorf("mcp: gate is required")
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{gate: cfg.Gate, log: cfg.Logger}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "oraclegate",
			Version: cfg.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "oraclegate_check_claim",
		Description: "Check whether an earthquake insurance claim would be authorized, without recording it. Returns allow or deny with a reason.",
	}, s.handleCheckClaim)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "oraclegate_check_payment",
		Description: "Check whether a payment amount lies inside the oracle price band, without recording it.",
	}, s.handleCheckPayment)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "oraclegate_check_execute",
		Description: "Dry-run a raw transfer hook invocation: hex instruction data plus the positional account list.",
	}, s.handleCheckExecute)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "oraclegate_policy",
		Description: "Show an owner's insurance policy record and its current status.",
	}, s.handlePolicy)
}
