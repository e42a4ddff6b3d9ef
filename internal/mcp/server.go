// Package mcp serves the gateway's dry-run policy checks as MCP tools over
// stdio, so an agent can ask before it acts.
package mcp

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jibsandbox/jib-gateway/internal/gateway"
)

// Config holds MCP server configuration.
type Config struct {
	Version string
	Logger  *slog.Logger
}

// Server wraps the MCP SDK server around a Gateway.
type Server struct {
	mcpServer *mcpsdk.Server
	gw        *gateway.Gateway
	logger    *slog.Logger
}

// New creates an MCP server with all tools registered.
func New(gw *gateway.Gateway, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	s := &Server{gw: gw, logger: cfg.Logger}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "jib-gateway",
			Version: cfg.Version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// callContext tags ctx for audit.
func callContext(ctx context.Context) context.Context {
	return gateway.WithTransport(gateway.WithRequestID(ctx, uuid.NewString()), "mcp")
}

// registerTools adds every gateway tool to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "gateway_check_access",
		Description: "Check whether an operation (push, fetch, pr_create, execute, ...) may touch a repository under the current repo mode, without executing anything.",
	}, s.handleCheckAccess)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "gateway_check_branch",
		Description: "Check whether the agent may push to a branch: repo mode plus branch ownership (owned prefix or open PR authored by the agent).",
	}, s.handleCheckBranch)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "gateway_check_pr",
		Description: "Check whether the agent may comment on, edit, close or merge a pull request. Merge is always denied.",
	}, s.handleCheckPR)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "gateway_check_fork",
		Description: "Check whether a repository may be forked. In private repo mode forks must come from a private source and be created private.",
	}, s.handleCheckFork)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "gateway_visibility",
		Description: "Look up a repository's visibility (public, private or internal) as the gateway sees it.",
	}, s.handleVisibility)
}
