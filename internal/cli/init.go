package cli

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jibsandbox/jib-gateway/internal/auth"
	"github.com/jibsandbox/jib-gateway/internal/config"
	"github.com/jibsandbox/jib-gateway/internal/integrity"
	"github.com/jibsandbox/jib-gateway/internal/systemd"
)

var (
	initInstallSystemd bool
	initUser           string
	initForce          bool
	initPinBinary      bool
)

func init() {
	initCmd.Flags().BoolVar(&initInstallSystemd, "install-systemd", false, "Install jib-gateway.service (requires root)")
	initCmd.Flags().StringVar(&initUser, "user", "", "User the systemd service runs as (default: $SUDO_USER or current user)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
	initCmd.Flags().BoolVar(&initPinBinary, "pin-binary", false, "Record this binary's SHA-256 so serve refuses to start if it changes")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap gateway configuration, secret and optional systemd unit",
	Long: `Creates ~/.jib-gateway/ with a default config.yaml and a fresh
gateway secret (mode 0600).

With --install-systemd: installs jib-gateway.service and records its hash so
the gateway can warn when the unit is modified.

With --pin-binary: records the binary's hash; serve then refuses to start
when the binary no longer matches.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	var created []string

	path := resolvedConfigPath()
	content, err := defaultConfigYAML()
	if err != nil {
		return fmt.Errorf("generate default config: %w", err)
	}
	if wrote, err := writeIfMissing(path, content); err != nil {
		return err
	} else if wrote {
		created = append(created, path)
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Secret.Value == "" {
		_, statErr := os.Stat(cfg.Secret.File)
		if _, err := auth.LoadOrCreateSecret(cfg.Secret.File); err != nil {
			return err
		}
		if os.IsNotExist(statErr) {
			created = append(created, cfg.Secret.File)
		}
	}

	if initPinBinary {
		if _, err := integrity.Pin(binaryHashPath()); err != nil {
			return err
		}
		created = append(created, binaryHashPath())
	}

	if initInstallSystemd {
		unitPath, err := installUnit(path)
		if err != nil {
			return err
		}
		created = append(created, unitPath)
	}

	fmt.Fprintln(out, "jib-gateway init complete.")
	fmt.Fprintln(out)
	if len(created) > 0 {
		fmt.Fprintln(out, "Created:")
		for _, p := range created {
			fmt.Fprintf(out, "  %s\n", p)
		}
	} else {
		fmt.Fprintln(out, "All files already exist (use --force to overwrite).")
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Set GITHUB_TOKEN (or github.token_file) and start the gateway:")
	fmt.Fprintln(out, "  jib-gateway serve")
	if initInstallSystemd {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Enable the service:")
		fmt.Fprintln(out, "  sudo systemctl enable --now jib-gateway")
	}
	return nil
}

func installUnit(configFile string) (string, error) {
	if runtime.GOOS != "linux" {
		return "", fmt.Errorf("--install-systemd is only supported on Linux")
	}
	if os.Geteuid() != 0 {
		return "", fmt.Errorf("--install-systemd requires root; run with sudo")
	}
	name := initUser
	if name == "" {
		name = os.Getenv("SUDO_USER")
	}
	if name == "" {
		u, err := user.Current()
		if err != nil {
			return "", fmt.Errorf("determine service user: %w", err)
		}
		name = u.Username
	}
	if name == "root" {
		return "", fmt.Errorf("refusing to run the gateway as root; pass --user")
	}
	bin, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate binary: %w", err)
	}
	absConfig, err := filepath.Abs(configFile)
	if err != nil {
		return "", err
	}

	unit, err := systemd.Unit(systemd.UnitOptions{
		Binary:     bin,
		ConfigPath: absConfig,
		User:       name,
		StateDir:   filepath.Dir(absConfig),
	})
	if err != nil {
		return "", err
	}
	if err := systemd.Install(systemd.DefaultUnitPath, unitHashPath(), unit); err != nil {
		return "", err
	}
	if err := exec.Command("systemctl", "daemon-reload").Run(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: systemctl daemon-reload failed: %v\n", err)
	}
	return systemd.DefaultUnitPath, nil
}

// unitHashPath records the install-time hash of the systemd unit.
func unitHashPath() string {
	return filepath.Join(config.Dir(), "unit-file.sha256")
}

// binaryHashPath holds the pinned hash of the gateway binary.
func binaryHashPath() string {
	return filepath.Join(config.Dir(), "binary.sha256")
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
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// defaultConfigYAML renders the built-in defaults with a header.
func defaultConfigYAML() (string, error) {
	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return "", err
	}
	header := "# jib-gateway configuration.\n" +
		"# Environment variables (PRIVATE_REPO_MODE, GITHUB_TOKEN, GATEWAY_PORT, ...)\n" +
		"# override these values. private_repo_mode, visibility TTLs, rate_limits\n" +
		"# and denylist are hot-reloaded.\n\n"
	return header + string(data), nil
}
