// Package config defines the conductor configuration and its loading pipeline.
//
// Configuration is loaded once at startup from an optional YAML file and
// passed explicitly to every component. There is no ambient process-wide
// state: a zero-value file (or no file at all) yields a fully defaulted,
// valid configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file name looked up in the working
// directory when no explicit path is given.
const DefaultConfigFile = "conductor.yaml"

// Config is the complete, immutable conductor configuration.
type Config struct {
	Host  HostConfig  `yaml:"host"`
	VMs   VMsConfig   `yaml:"vms"`
	Agent AgentConfig `yaml:"snail"`
	Poll  PollConfig  `yaml:"poll"`
}

// HostConfig describes host-side paths and the hypervisor connection.
type HostConfig struct {
	// ImageDir is where base images live and where per-VM disks are created.
	ImageDir string `yaml:"image_dir"`
	// CloudInitDir is the working directory for rendered cloud-init files.
	CloudInitDir string `yaml:"cloudinit_dir"`
	// LibvirtSocket overrides the libvirt daemon socket path. Empty means
	// the default local qemu:///system socket.
	LibvirtSocket string `yaml:"libvirt_socket,omitempty"`
}

// VMsConfig describes VM naming, sizing and guest credentials.
type VMsConfig struct {
	NamePrefix    string `yaml:"name_prefix"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	SSHKeyPath    string `yaml:"ssh_key_path"`
	DefaultDistro string `yaml:"default_distribution"`
	DiskSizeGB    int    `yaml:"disk_size_gb"`

	// Distributions maps a distro name to its known versions. Used by
	// list-versions and create-all; create accepts any version and lets the
	// missing-image gate reject unknown ones.
	Distributions map[string]Distribution `yaml:"distributions,omitempty"`
}

// Distribution describes the versions configured for one distro.
type Distribution struct {
	DefaultVersion string   `yaml:"default_version,omitempty"`
	Versions       []string `yaml:"versions,omitempty"`
}

// AgentConfig carries the snail-core agent settings injected into each guest.
type AgentConfig struct {
	UploadURL          string   `yaml:"upload_url,omitempty"`
	APIKey             string   `yaml:"api_key,omitempty"`
	TimeoutSeconds     int      `yaml:"timeout_seconds"`
	Retries            int      `yaml:"retries"`
	Collectors         []string `yaml:"collectors,omitempty"`
	DisabledCollectors []string `yaml:"disabled_collectors,omitempty"`
	OutputDir          string   `yaml:"output_dir"`
	Compression        bool     `yaml:"compression"`
	LogLevel           string   `yaml:"log_level"`
	// MinPythonVersion gates the in-guest agent install. Guests whose
	// python3 is older skip the install and write a failure sentinel.
	MinPythonVersion string `yaml:"min_python_version"`
	// IntervalMinutes is the periodic collection timer interval.
	IntervalMinutes int `yaml:"interval_minutes"`
}

// PollConfig controls the IP-readiness poller.
type PollConfig struct {
	TimeoutSeconds  int `yaml:"timeout_seconds"`
	IntervalSeconds int `yaml:"interval_seconds"`
}

// KnownDistros is the set of supported distribution names.
var KnownDistros = []string{"fedora", "debian", "ubuntu", "centos", "rhel", "suse"}

// IsKnownDistro reports whether name is a supported distribution.
func IsKnownDistro(name string) bool {
	for _, d := range KnownDistros {
		if d == name {
			return true
		}
	}
	return false
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Host: HostConfig{
			ImageDir:     "/var/lib/libvirt/images",
			CloudInitDir: "/tmp/conductor-cloudinit",
		},
		VMs: VMsConfig{
			NamePrefix:    "conductor-test",
			Username:      "conductor",
			Password:      "conductortest123",
			SSHKeyPath:    "~/.ssh/conductor-test-key",
			DefaultDistro: "fedora",
			DiskSizeGB:    20,
			Distributions: map[string]Distribution{
				"fedora": {DefaultVersion: "42", Versions: []string{"42", "41", "40"}},
				"debian": {DefaultVersion: "12", Versions: []string{"12", "11"}},
				"ubuntu": {DefaultVersion: "24.04", Versions: []string{"24.04", "22.04"}},
				"centos": {DefaultVersion: "9", Versions: []string{"10", "9"}},
				"rhel":   {DefaultVersion: "10.0", Versions: []string{"10.0", "9.4"}},
				"suse":   {DefaultVersion: "15.6", Versions: []string{"15.6", "15.5", "sles15.5", "tumbleweed"}},
			},
		},
		Agent: AgentConfig{
			TimeoutSeconds:   300,
			Retries:          3,
			OutputDir:        "/var/lib/snail-core/output",
			Compression:      true,
			LogLevel:         "info",
			MinPythonVersion: "3.6",
			IntervalMinutes:  60,
		},
		Poll: PollConfig{
			TimeoutSeconds:  300,
			IntervalSeconds: 5,
		},
	}
}

// LoadFromFile loads configuration from a YAML file, applying defaults for
// every omitted field. A missing file is not an error: the defaults are
// returned unchanged.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return LoadFromYAML(data)
}

// LoadFromYAML loads configuration from YAML bytes over the defaults.
func LoadFromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Normalize sanitizes user input to consistent formats. Called automatically
// by LoadFromYAML before validation.
func (c *Config) Normalize() {
	c.VMs.NamePrefix = strings.ToLower(strings.TrimSpace(c.VMs.NamePrefix))
	c.VMs.DefaultDistro = strings.ToLower(strings.TrimSpace(c.VMs.DefaultDistro))
	c.VMs.SSHKeyPath = ExpandHome(c.VMs.SSHKeyPath)

	// Distro keys are matched case-insensitively against user specs.
	normalized := make(map[string]Distribution, len(c.VMs.Distributions))
	for name, dist := range c.VMs.Distributions {
		normalized[strings.ToLower(strings.TrimSpace(name))] = dist
	}
	c.VMs.Distributions = normalized
}

// Validate checks the configuration structure. It does not touch the
// hypervisor or the filesystem beyond the optional SSH public key.
func (c *Config) Validate() error {
	if c.Host.ImageDir == "" {
		return fmt.Errorf("host.image_dir is required")
	}
	if c.Host.CloudInitDir == "" {
		return fmt.Errorf("host.cloudinit_dir is required")
	}
	if c.VMs.NamePrefix == "" {
		return fmt.Errorf("vms.name_prefix is required")
	}
	if c.VMs.Username == "" {
		return fmt.Errorf("vms.username is required")
	}
	if c.VMs.DiskSizeGB <= 0 {
		return fmt.Errorf("vms.disk_size_gb must be > 0, got %d", c.VMs.DiskSizeGB)
	}
	if !IsKnownDistro(c.VMs.DefaultDistro) {
		return fmt.Errorf("vms.default_distribution %q is not a known distro (known: %s)",
			c.VMs.DefaultDistro, strings.Join(KnownDistros, ", "))
	}
	for name := range c.VMs.Distributions {
		if !IsKnownDistro(name) {
			return fmt.Errorf("vms.distributions contains unknown distro %q", name)
		}
	}
	if c.Poll.TimeoutSeconds <= 0 {
		return fmt.Errorf("poll.timeout_seconds must be > 0, got %d", c.Poll.TimeoutSeconds)
	}
	if c.Poll.IntervalSeconds <= 0 {
		return fmt.Errorf("poll.interval_seconds must be > 0, got %d", c.Poll.IntervalSeconds)
	}
	if c.Agent.Retries < 0 {
		return fmt.Errorf("snail.retries must be >= 0, got %d", c.Agent.Retries)
	}
	if c.Agent.TimeoutSeconds <= 0 {
		return fmt.Errorf("snail.timeout_seconds must be > 0, got %d", c.Agent.TimeoutSeconds)
	}
	return nil
}

// PublicKeyPath returns the path to the SSH public key paired with the
// configured private key.
func (c *Config) PublicKeyPath() string {
	return c.VMs.SSHKeyPath + ".pub"
}

// ReadPublicKey reads and validates the configured SSH public key.
// Returns the key in authorized_keys format with surrounding whitespace
// trimmed.
func (c *Config) ReadPublicKey() (string, error) {
	data, err := os.ReadFile(c.PublicKeyPath())
	if err != nil {
		return "", fmt.Errorf("failed to read SSH public key %s: %w", c.PublicKeyPath(), err)
	}

	key := strings.TrimSpace(string(data))
	if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
		return "", fmt.Errorf("%s is not a valid SSH public key: %w", c.PublicKeyPath(), err)
	}

	return key, nil
}

// ExpandHome expands a leading ~ to the current user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
	}
	return path
}
