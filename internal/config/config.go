// Package config loads oraclegate settings: built-in defaults, then a YAML
// file, then ORACLEGATE_* environment variables.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/oraclegate/internal/model"
)

// DefaultProgramName seeds the program identity when none is configured.
const DefaultProgramName = "oraclegate"

// DaemonConfig locates the raw instruction inbox.
type DaemonConfig struct {
	Dir          string        `yaml:"dir" env:"ORACLEGATE_DAEMON_DIR"`
	PollInterval time.Duration `yaml:"poll_interval" env:"ORACLEGATE_DAEMON_POLL"`
}

// Config holds every setting the host needs. Identities are kept as
// strings here and resolved by Program and OracleProgram.
type Config struct {
	// ProgramID is the identity records must be owned by. Hex, or a name.
	ProgramID string `yaml:"program_id" env:"ORACLEGATE_PROGRAM_ID"`
	// OracleProgramID, when set, must own every feed account.
	OracleProgramID string       `yaml:"oracle_program_id" env:"ORACLEGATE_ORACLE_PROGRAM_ID"`
	Ledger          string       `yaml:"ledger" env:"ORACLEGATE_LEDGER"`
	AuditLog        string       `yaml:"audit_log" env:"ORACLEGATE_AUDIT_LOG"`
	LogFormat       string       `yaml:"log_format" env:"ORACLEGATE_LOG_FORMAT"`
	LogLevel        string       `yaml:"log_level" env:"ORACLEGATE_LOG_LEVEL"`
	Daemon          DaemonConfig `yaml:"daemon"`
}

// Default returns the built-in configuration rooted at home.
func Default(home string) *Config {
	base := filepath.Join(home, ".oraclegate")
	return &Config{
		ProgramID: DefaultProgramName,
		Ledger:    filepath.Join(base, "ledger.db"),
		AuditLog:  filepath.Join(base, "audit.jsonl"),
		LogFormat: "text",
		LogLevel:  "info",
		Daemon: DaemonConfig{
			Dir:          filepath.Join(base, "daemon"),
			PollInterval: 2 * time.Second,
		},
	}
}

// DefaultPath is ~/.oraclegate/config.yaml, or empty when there is no home.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".oraclegate", "config.yaml")
}

// Load reads the config at path (DefaultPath when empty) and applies the
// environment overlay. A missing file yields defaults. It also returns the
// SHA-256 of the raw file, or of empty input when no file was read.
func Load(path string) (*Config, string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	cfg := Default(home)
	if path == "" {
		path = DefaultPath()
	}

	var data []byte
	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("failed to read config: %w", err)
		}
	}
	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, "", fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, hash, nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ProgramID) == "" {
		return fmt.Errorf("program_id is required")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.Daemon.PollInterval < 0 {
		return fmt.Errorf("daemon.poll_interval must not be negative")
	}
	return nil
}

// Program resolves the program identity.
func (c *Config) Program() (model.Address, error) {
	return model.ResolveAddress(c.ProgramID)
}

// OracleProgram resolves the oracle program identity. Unset yields the
// zero address, which disables the feed ownership check.
func (c *Config) OracleProgram() (model.Address, error) {
	if strings.TrimSpace(c.OracleProgramID) == "" {
		return model.ZeroAddress, nil
	}
	return model.ResolveAddress(c.OracleProgramID)
}
