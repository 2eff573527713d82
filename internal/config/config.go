package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"codecheck/internal/domain"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Engine    EngineConfig    `yaml:"engine"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type KnowledgeConfig struct {
	// DataDir holds the YAML reference data: jurisdictions, packs,
	// amendments, cross references.
	DataDir string `yaml:"data_dir"`
	// DBPath, when set, persists the knowledge base in SQLite and reloads it
	// on startup instead of reparsing the YAML.
	DBPath string `yaml:"db_path"`
}

type EngineConfig struct {
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"`
}

type ScoringConfig struct {
	CompliantThreshold float64 `yaml:"compliant_threshold"`
	PartialThreshold   float64 `yaml:"partial_threshold"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    ServerConfig{Addr: ":8086"},
		Knowledge: KnowledgeConfig{DataDir: "data"},
		Engine:    EngineConfig{Workers: 8, Timeout: 30 * time.Second},
		Scoring:   ScoringConfig{CompliantThreshold: 90, PartialThreshold: 70},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config: %v", domain.ErrConfiguration, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", domain.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Engine.Workers < 1 {
		return fmt.Errorf("%w: engine workers must be at least 1", domain.ErrConfiguration)
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("%w: engine timeout must be positive", domain.ErrConfiguration)
	}
	if c.Scoring.PartialThreshold > c.Scoring.CompliantThreshold {
		return fmt.Errorf("%w: partial threshold above compliant threshold", domain.ErrConfiguration)
	}
	if c.Scoring.PartialThreshold < 0 || c.Scoring.CompliantThreshold > 100 {
		return fmt.Errorf("%w: thresholds must sit within 0..100", domain.ErrConfiguration)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", domain.ErrConfiguration, c.Logging.Format)
	}
	if c.Knowledge.DataDir == "" && c.Knowledge.DBPath == "" {
		return fmt.Errorf("%w: neither data_dir nor db_path configured", domain.ErrConfiguration)
	}
	return nil
}
