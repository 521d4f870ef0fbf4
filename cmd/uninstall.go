package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/lyricsync/internal/daemon"
)

// uninstallCmd represents the uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the lyricsync login service",
	Long: `Uninstall the lyricsync daemon service and stop it from running automatically.

This command will:
  - Stop the running daemon (if any)
  - Unload it from launchd, or disable the systemd user unit
  - Remove the service file

After uninstalling, the daemon will no longer run automatically on login.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		servicePath, err := daemon.GetServicePath()
		if err != nil {
			return fmt.Errorf("failed to get service path: %w", err)
		}

		if _, err := os.Stat(servicePath); os.IsNotExist(err) {
			fmt.Println("Daemon is not installed (service file not found)")
			return nil
		}

		fmt.Println("Stopping daemon...")
		if err := unloadDaemon(); err != nil {
			fmt.Printf("Warning: failed to unload daemon: %v\n", err)
			fmt.Println("Continuing with service file removal...")
		} else {
			fmt.Println("✓ Daemon stopped")
		}

		if err := os.Remove(servicePath); err != nil {
			return fmt.Errorf("failed to remove service file: %w", err)
		}
		fmt.Printf("✓ Removed service file %s\n", servicePath)

		if runtime.GOOS != "darwin" {
			if err := systemctl("daemon-reload"); err != nil {
				fmt.Printf("Warning: %v\n", err)
			}
		}

		fmt.Println("\nThe lyricsync daemon has been uninstalled successfully.")
		fmt.Println("It will no longer run automatically on login.")
		fmt.Println("\nTo reinstall, run:")
		fmt.Println("  lyricsync install")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
