package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config holds the full runtime configuration. Values load from a YAML
// file when one is present, then environment variables override.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	Custody  CustodyConfig  `yaml:"custody"`
	Platform PlatformConfig `yaml:"platform"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"SERVER_HOST"`
	Port int    `yaml:"port" env:"SERVER_PORT"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	Output     string `yaml:"output" env:"LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"LOG_FILE_PREFIX"`
}

type DatabaseConfig struct {
	// URL is a postgres connection string. Empty selects the in-memory store.
	URL string `yaml:"url" env:"DATABASE_URL"`
}

type CustodyConfig struct {
	// RPCURL points at the external custodian. Empty selects the in-memory bank.
	RPCURL        string        `yaml:"rpc_url" env:"CUSTODY_RPC_URL"`
	EscrowAccount string        `yaml:"escrow_account" env:"CUSTODY_ESCROW_ACCOUNT"`
	Timeout       time.Duration `yaml:"timeout" env:"CUSTODY_TIMEOUT"`
}

type PlatformConfig struct {
	Owner string `yaml:"owner" env:"PLATFORM_OWNER"`
}

type SweeperConfig struct {
	Enabled  bool          `yaml:"enabled" env:"SWEEPER_ENABLED"`
	Interval time.Duration `yaml:"interval" env:"SWEEPER_INTERVAL"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Custody: CustodyConfig{
			Timeout: 10 * time.Second,
		},
		Sweeper: SweeperConfig{
			Enabled:  true,
			Interval: time.Minute,
		},
	}
}

// Load reads configuration from the given YAML path (skipped when the
// file is absent) and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return Config{}, fmt.Errorf("failed to decode environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Platform.Owner == "" {
		return fmt.Errorf("platform owner is required")
	}
	if c.Custody.RPCURL != "" && c.Custody.EscrowAccount == "" {
		return fmt.Errorf("custody escrow account is required when an RPC URL is set")
	}
	if c.Sweeper.Enabled && c.Sweeper.Interval <= 0 {
		return fmt.Errorf("sweeper interval must be positive")
	}
	return nil
}

// ListenAddr renders the host:port pair the HTTP server binds to.
func (c ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
