package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jibsandbox/jib-gateway/internal/config"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "jib-gateway",
	Short: "Policy-enforcing GitHub gateway for sandboxed agents",
	Long: "Holds the GitHub credentials on behalf of sandboxed agents and decides,\n" +
		"per request, whether a git push, PR mutation, gh command or fork may run.\n" +
		"Unknown visibility is always denied.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.jib-gateway/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug|info|warn|error)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errDenied) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// loadConfig reads the config file named by --config and the environment.
func loadConfig() (*config.Config, string, error) {
	cfg, hash, err := config.Load(configPath, os.LookupEnv)
	if err != nil {
		return nil, "", err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, hash, nil
}

// resolvedConfigPath is the file the reloader watches.
func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

// newLogger returns a JSON logger on stderr. Stdout stays free for command
// output and the MCP stdio stream.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		fmt.Fprintf(os.Stderr, "warning: unknown log level %q, using info\n", level)
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
