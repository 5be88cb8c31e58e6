// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the peld configuration.
type Config struct {
	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Registry is the message registry YAML file.
	Registry string `yaml:"registry"`

	// Repository configures PEL storage limits and the removal archive.
	Repository RepositoryConfig `yaml:"repository"`

	// Host configures delivery of new PELs to the host.
	Host HostConfig `yaml:"host"`

	// System supplies the identity fields written into the Extended
	// User Header of PELs this BMC creates.
	System SystemConfig `yaml:"system"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root holds logs/, archive/, the PEL ID counter and the bad-PEL
	// quarantine file.
	Root string `yaml:"root"`

	// Run holds the peld control socket.
	Run string `yaml:"run"`
}

// RepositoryConfig configures capacity limits.
type RepositoryConfig struct {
	// MaxSize is the capacity in on-disk bytes that pruning percentages
	// are computed against.
	MaxSize uint64 `yaml:"max_size"`

	// MaxCount is the number of stored PELs above which a size warning
	// is raised and count pruning runs.
	MaxCount int `yaml:"max_count"`

	Archive ArchiveConfig `yaml:"archive"`
}

// ArchiveConfig configures the compressed archive of removed PELs.
type ArchiveConfig struct {
	Enabled bool `yaml:"enabled"`

	// Compression is "zstd", "lz4" or "none".
	Compression string `yaml:"compression"`

	// MaxSize caps the archive directory in bytes; the oldest archived
	// PELs are removed first.
	MaxSize uint64 `yaml:"max_size"`
}

// HostConfig configures the host notifier and its transport.
type HostConfig struct {
	// Socket is the host agent's Unix socket.
	Socket string `yaml:"socket"`

	// PELReporting enables sending PELs to the host at all.
	PELReporting bool `yaml:"pel_reporting"`

	// HMCManaged reports whether an HMC manages this system, which
	// suppresses host notification of hidden PELs.
	HMCManaged bool `yaml:"hmc_managed"`

	SendRetryDelay     time.Duration `yaml:"send_retry_delay"`
	ReceiveRetryDelay  time.Duration `yaml:"receive_retry_delay"`
	HostFullRetryDelay time.Duration `yaml:"host_full_retry_delay"`

	// ResponseTimeout bounds each new-log command to the host agent.
	ResponseTimeout time.Duration `yaml:"response_timeout"`
}

// SystemConfig supplies platform identity.
type SystemConfig struct {
	MachineTypeModel   string   `yaml:"machine_type_model"`
	SerialNumber       string   `yaml:"serial_number"`
	ServerFWVersion    string   `yaml:"server_fw_version"`
	SubsystemFWVersion string   `yaml:"subsystem_fw_version"`
	MotherboardCCIN    string   `yaml:"motherboard_ccin"`
	SystemNames        []string `yaml:"system_names"`

	// Inventory maps inventory object paths to the FRU details used
	// when a PEL calls out that path.
	Inventory map[string]InventoryItem `yaml:"inventory"`

	// Devices maps a device path to the inventory paths it calls out,
	// most likely failing part first.
	Devices map[string][]string `yaml:"devices"`
}

// InventoryItem is one FRU in the static inventory.
type InventoryItem struct {
	LocationCode string `yaml:"location_code"`
	PartNumber   string `yaml:"part_number"`
	CCIN         string `yaml:"ccin"`
	SerialNumber string `yaml:"serial_number"`
}

// Default returns the default configuration. LoadFile decodes the
// config file over these values.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Root: "/var/lib/pel",
			Run:  "/run/pel",
		},
		Registry: "/etc/pel/registry.yaml",
		Repository: RepositoryConfig{
			MaxSize:  20 * 1024 * 1024,
			MaxCount: 3000,
			Archive: ArchiveConfig{
				Enabled:     false,
				Compression: "zstd",
				MaxSize:     10 * 1024 * 1024,
			},
		},
		Host: HostConfig{
			Socket:             "/run/pel/host.sock",
			PELReporting:       true,
			SendRetryDelay:     time.Second,
			ReceiveRetryDelay:  time.Second,
			HostFullRetryDelay: 60 * time.Second,
			ResponseTimeout:    10 * time.Second,
		},
	}
}

// Load loads configuration from the file named by PEL_CONFIG. There is
// no fallback search path.
func Load() (*Config, error) {
	configPath := os.Getenv("PEL_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("PEL_CONFIG environment variable not set; " +
			"set it to the path of your peld.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from path over the defaults, then
// expands ${VAR} and ${VAR:-default} in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	c.Paths.Run = expandVars(c.Paths.Run, vars)
	vars["PEL_ROOT"] = c.Paths.Root
	vars["PEL_RUN"] = c.Paths.Run

	c.Registry = expandVars(c.Registry, vars)
	c.Host.Socket = expandVars(c.Host.Socket, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}. Provided vars win over
// the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Run == "" {
		errs = append(errs, fmt.Errorf("paths.run is required"))
	}

	if c.Repository.MaxSize == 0 {
		errs = append(errs, fmt.Errorf("repository.max_size must be positive"))
	}
	if c.Repository.MaxCount <= 0 {
		errs = append(errs, fmt.Errorf("repository.max_count must be positive"))
	}

	compressions := []string{"zstd", "lz4", "none"}
	if !contains(compressions, c.Repository.Archive.Compression) {
		errs = append(errs, fmt.Errorf("repository.archive.compression must be one of: %v", compressions))
	}

	if c.Host.Socket == "" {
		errs = append(errs, fmt.Errorf("host.socket is required"))
	}
	delays := []struct {
		name  string
		value time.Duration
	}{
		{"host.send_retry_delay", c.Host.SendRetryDelay},
		{"host.receive_retry_delay", c.Host.ReceiveRetryDelay},
		{"host.host_full_retry_delay", c.Host.HostFullRetryDelay},
		{"host.response_timeout", c.Host.ResponseTimeout},
	}
	for _, delay := range delays {
		if delay.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", delay.name, delay.value))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ControlSocketPath returns the peld control socket path.
func (c *Config) ControlSocketPath() string {
	return filepath.Join(c.Paths.Run, "peld.sock")
}

// EnsurePaths creates the configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.Run,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
