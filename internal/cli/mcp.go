package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jibsandbox/jib-gateway/internal/gateway"
	gatewaymcp "github.com/jibsandbox/jib-gateway/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs the gateway's policy checks as an MCP (Model Context Protocol) server\n" +
		"over stdio. Exposes dry-run tools: gateway_check_access, gateway_check_branch,\n" +
		"gateway_check_pr, gateway_check_fork and gateway_visibility.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	rt, err := gateway.Build(cfg, gateway.BuildOptions{Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to build gateway: %w", err)
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(os.Stderr, "jib-gateway MCP server running on stdio")
	fmt.Fprintf(os.Stderr, "Private repo mode: %v\n", cfg.PrivateRepoMode)
	fmt.Fprintln(os.Stderr)

	return gatewaymcp.New(rt.Gateway, gatewaymcp.Config{Version: version, Logger: logger}).Run(ctx)
}
