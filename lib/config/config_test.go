// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Repository.MaxSize != 20*1024*1024 {
		t.Errorf("expected max_size=20MiB, got %d", cfg.Repository.MaxSize)
	}
	if cfg.Repository.MaxCount != 3000 {
		t.Errorf("expected max_count=3000, got %d", cfg.Repository.MaxCount)
	}
	if cfg.Host.HostFullRetryDelay != 60*time.Second {
		t.Errorf("expected host_full_retry_delay=60s, got %v", cfg.Host.HostFullRetryDelay)
	}
	if !cfg.Host.PELReporting {
		t.Error("expected pel_reporting=true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad_RequiresPELConfig(t *testing.T) {
	t.Setenv("PEL_CONFIG", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when PEL_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "PEL_CONFIG environment variable not set") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_WithPELConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "peld.yaml")
	content := `
paths:
  root: /test/root
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("PEL_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Paths.Root != "/test/root" {
		t.Errorf("expected root=/test/root, got %s", cfg.Paths.Root)
	}
	if cfg.Paths.Run != "/run/pel" {
		t.Errorf("expected default run dir to survive, got %s", cfg.Paths.Run)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "peld.yaml")
	content := `
paths:
  root: /custom/root
  run: /custom/run

registry: ${PEL_ROOT}/registry.yaml

repository:
  max_size: 1048576
  max_count: 100
  archive:
    enabled: true
    compression: lz4

host:
  socket: ${PEL_RUN}/host.sock
  pel_reporting: false
  send_retry_delay: 250ms
  host_full_retry_delay: 2m

system:
  machine_type_model: 9105-22A
  system_names: [rainier, rainier2u]
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Registry != "/custom/root/registry.yaml" {
		t.Errorf("registry = %s", cfg.Registry)
	}
	if cfg.Host.Socket != "/custom/run/host.sock" {
		t.Errorf("host.socket = %s", cfg.Host.Socket)
	}
	if cfg.Repository.MaxSize != 1048576 || cfg.Repository.MaxCount != 100 {
		t.Errorf("repository = %+v", cfg.Repository)
	}
	if !cfg.Repository.Archive.Enabled || cfg.Repository.Archive.Compression != "lz4" {
		t.Errorf("archive = %+v", cfg.Repository.Archive)
	}
	if cfg.Repository.Archive.MaxSize != 10*1024*1024 {
		t.Errorf("archive.max_size default lost: %d", cfg.Repository.Archive.MaxSize)
	}
	if cfg.Host.PELReporting {
		t.Error("pel_reporting should be false")
	}
	if cfg.Host.SendRetryDelay != 250*time.Millisecond {
		t.Errorf("send_retry_delay = %v", cfg.Host.SendRetryDelay)
	}
	if cfg.Host.HostFullRetryDelay != 2*time.Minute {
		t.Errorf("host_full_retry_delay = %v", cfg.Host.HostFullRetryDelay)
	}
	if cfg.Host.ReceiveRetryDelay != time.Second {
		t.Errorf("receive_retry_delay default lost: %v", cfg.Host.ReceiveRetryDelay)
	}
	if len(cfg.System.SystemNames) != 2 || cfg.System.MachineTypeModel != "9105-22A" {
		t.Errorf("system = %+v", cfg.System)
	}
	if cfg.ControlSocketPath() != "/custom/run/peld.sock" {
		t.Errorf("ControlSocketPath() = %s", cfg.ControlSocketPath())
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(configPath, []byte("host:\n  send_retry_delay: soon\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(configPath); err == nil {
		t.Error("expected error for an unparseable duration")
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("PEL_TEST_VAR", "from-env")
	vars := map[string]string{"PEL_ROOT": "/var/lib/pel"}

	tests := []struct {
		input string
		want  string
	}{
		{"${PEL_ROOT}/logs", "/var/lib/pel/logs"},
		{"${PEL_TEST_VAR}/x", "from-env/x"},
		{"${PEL_UNSET_VAR:-/fallback}", "/fallback"},
		{"${PEL_UNSET_VAR}", ""},
		{"/plain/path", "/plain/path"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing root", func(c *Config) { c.Paths.Root = "" }, "paths.root"},
		{"zero max size", func(c *Config) { c.Repository.MaxSize = 0 }, "repository.max_size"},
		{"negative max count", func(c *Config) { c.Repository.MaxCount = -1 }, "repository.max_count"},
		{"bad compression", func(c *Config) { c.Repository.Archive.Compression = "gzip" }, "compression"},
		{"zero delay", func(c *Config) { c.Host.ReceiveRetryDelay = 0 }, "host.receive_retry_delay"},
		{"missing socket", func(c *Config) { c.Host.Socket = "" }, "host.socket"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.mutate(cfg)
			err := cfg.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, test.wantErr)
			}
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Paths.Root = ""
	cfg.Repository.MaxCount = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	if !strings.Contains(err.Error(), "paths.root") || !strings.Contains(err.Error(), "repository.max_count") {
		t.Errorf("expected both errors, got %v", err)
	}
}

func TestEnsurePaths(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Paths.Root = filepath.Join(root, "lib", "pel")
	cfg.Paths.Run = filepath.Join(root, "run", "pel")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}
	for _, path := range []string{cfg.Paths.Root, cfg.Paths.Run} {
		if info, err := os.Stat(path); err != nil || !info.IsDir() {
			t.Errorf("%s not created", path)
		}
	}
}
