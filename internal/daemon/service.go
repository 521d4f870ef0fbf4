package daemon

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

// ServiceLabel names the launchd agent and systemd unit
const ServiceLabel = "com.lyricsync.daemon"

const plistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Label}}</string>
	<key>ProgramArguments</key>
	<array>
		<string>{{.BinaryPath}}</string>
		<string>daemon</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
	<key>StandardOutPath</key>
	<string>{{.LogPath}}/lyricsync.log</string>
	<key>StandardErrorPath</key>
	<string>{{.LogPath}}/lyricsync.err</string>
	<key>WorkingDirectory</key>
	<string>{{.WorkingDirectory}}</string>
	<key>EnvironmentVariables</key>
	<dict>
		<key>PATH</key>
		<string>/usr/local/bin:/usr/bin:/bin:/usr/sbin:/sbin</string>
	</dict>
</dict>
</plist>
`

const systemdTemplate = `[Unit]
Description=lyricsync lyric sync daemon
After=graphical-session.target

[Service]
Type=simple
ExecStart={{.BinaryPath}} daemon --log-file {{.LogPath}}/lyricsync.log
WorkingDirectory={{.WorkingDirectory}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`

// ServiceConfig holds the values substituted into a service definition
type ServiceConfig struct {
	Label            string
	BinaryPath       string
	LogPath          string
	WorkingDirectory string
}

// GeneratePlist generates a launchd plist file from the template
func GeneratePlist(config ServiceConfig) (string, error) {
	return render("plist", plistTemplate, config)
}

// GenerateSystemdUnit generates a systemd user unit from the template
func GenerateSystemdUnit(config ServiceConfig) (string, error) {
	return render("systemd", systemdTemplate, config)
}

// GenerateService renders the definition for the current platform
func GenerateService(config ServiceConfig) (string, error) {
	if config.Label == "" {
		config.Label = ServiceLabel
	}
	if runtime.GOOS == "darwin" {
		return GeneratePlist(config)
	}
	return GenerateSystemdUnit(config)
}

func render(name, text string, config ServiceConfig) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, config); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}

	return buf.String(), nil
}

// GetServicePath returns where the service definition is installed: a
// LaunchAgent on macOS, a systemd user unit elsewhere.
func GetServicePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "LaunchAgents", ServiceLabel+".plist"), nil
	}
	return filepath.Join(home, ".config", "systemd", "user", "lyricsync.service"), nil
}

// GetDefaultLogPath returns the default path for daemon logs
func GetDefaultLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".local", "share", "lyricsync", "logs"), nil
}
