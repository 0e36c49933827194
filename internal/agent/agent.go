// Package agent renders the in-guest artifacts for the snail-core
// collection agent: its configuration file, the systemd units that run it
// periodically, and the command used to trigger a collection on demand.
//
// The agent's config schema (endpoint, API key, timeouts, collector lists,
// output settings) is externally defined; this package only serializes it.
package agent

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cofront/conductor/internal/config"
)

const (
	// InstallDir is the agent's isolated install prefix inside the guest.
	InstallDir = "/opt/snail-core"
	// ConfigPath is where the agent reads its configuration.
	ConfigPath = InstallDir + "/snail.yaml"
	// BinPath is the agent entry point inside its virtualenv.
	BinPath = InstallDir + "/venv/bin/snail"
)

// FileConfig is the snail-core configuration file schema.
type FileConfig struct {
	UploadURL          string   `yaml:"upload_url,omitempty"`
	APIKey             string   `yaml:"api_key,omitempty"`
	TimeoutSeconds     int      `yaml:"timeout_seconds"`
	Retries            int      `yaml:"retries"`
	Collectors         []string `yaml:"collectors,omitempty"`
	DisabledCollectors []string `yaml:"disabled_collectors,omitempty"`
	OutputDir          string   `yaml:"output_dir"`
	Compression        bool     `yaml:"compression"`
	LogLevel           string   `yaml:"log_level"`
}

// RenderConfig serializes the agent configuration file content.
func RenderConfig(cfg config.AgentConfig) (string, error) {
	fc := FileConfig{
		UploadURL:          cfg.UploadURL,
		APIKey:             cfg.APIKey,
		TimeoutSeconds:     cfg.TimeoutSeconds,
		Retries:            cfg.Retries,
		Collectors:         cfg.Collectors,
		DisabledCollectors: cfg.DisabledCollectors,
		OutputDir:          cfg.OutputDir,
		Compression:        cfg.Compression,
		LogLevel:           cfg.LogLevel,
	}

	data, err := yaml.Marshal(&fc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal agent config: %w", err)
	}
	return string(data), nil
}

// RenderServiceUnit returns the oneshot systemd service that runs a
// collection pass.
func RenderServiceUnit() string {
	return strings.Join([]string{
		"[Unit]",
		"Description=snail-core collection run",
		"After=network-online.target",
		"",
		"[Service]",
		"Type=oneshot",
		fmt.Sprintf("ExecStart=%s run --config %s", BinPath, ConfigPath),
		"",
	}, "\n")
}

// RenderTimerUnit returns the systemd timer that schedules periodic
// collection at the configured interval.
func RenderTimerUnit(intervalMinutes int) string {
	if intervalMinutes <= 0 {
		intervalMinutes = 60
	}
	return strings.Join([]string{
		"[Timer]",
		fmt.Sprintf("OnBootSec=%dmin", 5),
		fmt.Sprintf("OnUnitActiveSec=%dmin", intervalMinutes),
		"",
		"[Install]",
		"WantedBy=timers.target",
		"",
	}, "\n")
}

// RunCommand returns the shell command that triggers one collection run,
// optionally overriding the upload URL through the agent's environment.
func RunCommand(uploadURL string) string {
	cmd := BinPath + " run"
	if uploadURL != "" {
		cmd = fmt.Sprintf("SNAIL_UPLOAD_URL=%s %s", uploadURL, cmd)
	}
	return cmd
}
