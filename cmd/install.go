package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/lyricsync/internal/daemon"
)

const systemdUnitName = "lyricsync.service"

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the lyricsync daemon as a login service",
	Long: `Install the lyricsync daemon as a service that runs automatically on login.

On macOS this command will:
  - Generate a launchd plist for the daemon
  - Install it to ~/Library/LaunchAgents/
  - Load the agent with launchctl

On Linux it will:
  - Generate a systemd user unit for the daemon
  - Install it to ~/.config/systemd/user/
  - Enable and start it with systemctl --user

The daemon will run in the background and keep the state file used by
'lyricsync now' up to date.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		binaryPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		// Resolve symlinks to get the actual binary path
		binaryPath, err = filepath.EvalSymlinks(binaryPath)
		if err != nil {
			return fmt.Errorf("failed to resolve executable path: %w", err)
		}

		logPath, err := daemon.GetDefaultLogPath()
		if err != nil {
			return fmt.Errorf("failed to get log path: %w", err)
		}
		if err := os.MkdirAll(logPath, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		content, err := daemon.GenerateService(daemon.ServiceConfig{
			Label:            daemon.ServiceLabel,
			BinaryPath:       binaryPath,
			LogPath:          logPath,
			WorkingDirectory: home,
		})
		if err != nil {
			return fmt.Errorf("failed to generate service definition: %w", err)
		}

		servicePath, err := daemon.GetServicePath()
		if err != nil {
			return fmt.Errorf("failed to get service path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(servicePath), 0755); err != nil {
			return fmt.Errorf("failed to create service directory: %w", err)
		}

		if _, err := os.Stat(servicePath); err == nil {
			fmt.Println("Daemon is already installed. Uninstalling first...")
			if err := unloadDaemon(); err != nil {
				fmt.Printf("Warning: failed to unload existing daemon: %v\n", err)
			}
		}

		if err := os.WriteFile(servicePath, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write service file: %w", err)
		}
		fmt.Printf("✓ Installed service to %s\n", servicePath)

		if err := loadDaemon(servicePath); err != nil {
			return fmt.Errorf("failed to load daemon: %w", err)
		}

		fmt.Println("✓ Daemon loaded and started successfully")
		fmt.Printf("✓ Logs will be written to %s\n", logPath)
		fmt.Println("\nThe lyricsync daemon is now running and will start automatically on login.")
		fmt.Println("\nYou can check the daemon status with:")
		if runtime.GOOS == "darwin" {
			fmt.Println("  launchctl list | grep lyricsync")
		} else {
			fmt.Println("  systemctl --user status lyricsync")
		}
		fmt.Println("\nTo uninstall, run:")
		fmt.Println("  lyricsync uninstall")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}

// launchdDomain returns the gui/<uid> domain of the current user
func launchdDomain() string {
	return fmt.Sprintf("gui/%d", os.Getuid())
}

// loadDaemon starts the installed service
func loadDaemon(servicePath string) error {
	if runtime.GOOS != "darwin" {
		if err := systemctl("daemon-reload"); err != nil {
			return err
		}
		return systemctl("enable", "--now", systemdUnitName)
	}

	output, err := exec.Command("launchctl", "bootstrap", launchdDomain(), servicePath).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(output)); msg != "" {
			return fmt.Errorf("launchctl bootstrap failed: %s", msg)
		}
		return fmt.Errorf("failed to run launchctl bootstrap: %w", err)
	}
	return nil
}

// unloadDaemon stops the service. A service that is not loaded is not an
// error.
func unloadDaemon() error {
	if runtime.GOOS != "darwin" {
		return systemctl("disable", "--now", systemdUnitName)
	}

	service := launchdDomain() + "/" + daemon.ServiceLabel
	output, err := exec.Command("launchctl", "bootout", service).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(output)); msg != "" {
			fmt.Printf("Warning: %s\n", msg)
		}
	}
	return nil
}

func systemctl(args ...string) error {
	output, err := exec.Command("systemctl", append([]string{"--user"}, args...)...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(output)); msg != "" {
			return fmt.Errorf("systemctl %s failed: %s", strings.Join(args, " "), msg)
		}
		return fmt.Errorf("failed to run systemctl %s: %w", strings.Join(args, " "), err)
	}
	return nil
}
