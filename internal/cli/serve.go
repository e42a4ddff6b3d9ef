package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jibsandbox/jib-gateway/internal/alert"
	"github.com/jibsandbox/jib-gateway/internal/config"
	"github.com/jibsandbox/jib-gateway/internal/gateway"
	"github.com/jibsandbox/jib-gateway/internal/integrity"
	"github.com/jibsandbox/jib-gateway/internal/proxy"
	"github.com/jibsandbox/jib-gateway/internal/server"
	"github.com/jibsandbox/jib-gateway/internal/systemd"
)

var (
	servePort     int
	serveGRPCPort int
	serveNoReload bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP listen port (overrides config)")
	serveCmd.Flags().IntVar(&serveGRPCPort, "grpc-port", 0, "gRPC listen port, 0 keeps the config value")
	serveCmd.Flags().BoolVar(&serveNoReload, "no-reload", false, "Disable config hot-reload")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway",
	Long: "Runs the HTTP API the sandbox talks to. When a gRPC port is configured,\n" +
		"the policy service is served on it too. The config file is watched and\n" +
		"repo mode, cache TTLs, rate limits and the denylist are hot-reloaded.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, hash, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Listen.Port = servePort
	}
	if serveGRPCPort != 0 {
		cfg.Listen.GRPCPort = serveGRPCPort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	if msg := systemd.CheckIntegrity(systemd.DefaultUnitPath, unitHashPath()); msg != "" {
		logger.Warn("systemd unit integrity", "warning", msg)
	}
	check := integrity.Checker{
		ChecksumFile: binaryHashPath(),
		TamperLog:    filepath.Join(config.Dir(), "tamper.jsonl"),
		Alerts:       alert.NewDispatcher(cfg.Alerts, logger.With("component", "alert")),
		Logger:       logger,
	}
	if _, err := check.Verify(); err != nil {
		return err
	}

	rt, err := gateway.Build(cfg, gateway.BuildOptions{CreateSecret: true, Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to build gateway: %w", err)
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !serveNoReload {
		path := resolvedConfigPath()
		reloader, err := server.NewReloader(path, server.ConfigReload(path, os.LookupEnv, rt.Gateway, logger, hash), logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
		} else {
			go reloader.Run(ctx)
		}
	}

	errCh := make(chan error, 2)
	var grpcSrv *server.Server
	if cfg.Listen.GRPCPort != 0 {
		grpcSrv = server.New(rt.Gateway, rt.Auth, server.Config{Addr: cfg.Listen.GRPCAddr(), Logger: logger})
		go func() { errCh <- grpcSrv.Serve() }()
	}

	httpSrv := proxy.NewServer(rt.Gateway, rt.Auth, proxy.Config{
		Addr:    cfg.Listen.Addr(),
		Version: version,
		Logger:  logger,
	})
	go func() { errCh <- httpSrv.Start(ctx) }()

	fmt.Fprintf(os.Stderr, "jib-gateway %s listening on %s\n", version, cfg.Listen.Addr())
	if grpcSrv != nil {
		fmt.Fprintf(os.Stderr, "Policy service (gRPC): %s\n", cfg.Listen.GRPCAddr())
	}
	fmt.Fprintf(os.Stderr, "Private repo mode: %v\n", cfg.PrivateRepoMode)
	if !rt.Auth.Configured() {
		fmt.Fprintln(os.Stderr, "warning: no gateway secret configured, all API calls will be rejected")
	}
	fmt.Fprintln(os.Stderr)

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "\nShutting down gateway...")
	case err = <-errCh:
		stop()
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	return err
}
