// Package config manages the imagedup configuration file. Settings cover
// detection defaults; command-line flags override whatever is loaded here.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"imagedup/types"
)

const (
	// AppDir is the per-user directory holding the config file, cache
	// database and log file, rooted at the user config/home dir.
	AppDir     = ".imagedup"
	ConfigFile = "config.toml"
	CacheFile  = "fingerprints.db"
	LogFile    = "imagedup.log"
)

// Config represents the detection configuration
type Config struct {
	HashAlgorithm      string  `toml:"hash_algorithm"`
	HashThreshold      int     `toml:"hash_threshold"`
	UseFeatureMatching bool    `toml:"use_feature_matching"`
	FeatureThreshold   float64 `toml:"feature_threshold"`
	Workers            int     `toml:"workers"`
	CachePath          string  `toml:"cache_path"`
	LogFile            string  `toml:"log_file"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		HashAlgorithm:    types.AlgorithmDHash,
		HashThreshold:    0,
		FeatureThreshold: 0.9,
	}
}

// AppPath returns the per-user application directory, creating it if
// needed.
func AppPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve home directory: %w", err)
	}
	path := filepath.Join(home, AppDir)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	return path, nil
}

// DefaultCachePath returns the cache database location inside the
// application directory.
func DefaultCachePath() (string, error) {
	path, err := AppPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(path, CacheFile), nil
}

// DefaultLogPath returns the log file location inside the application
// directory.
func DefaultLogPath() (string, error) {
	path, err := AppPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(path, LogFile), nil
}

// Load loads the configuration from path. A missing file yields the
// defaults without error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings detection cannot run with.
func (c *Config) Validate() error {
	switch c.HashAlgorithm {
	case types.AlgorithmDHash, types.AlgorithmAHash:
	default:
		return fmt.Errorf("unknown hash algorithm %q", c.HashAlgorithm)
	}
	if c.HashThreshold < 0 || c.HashThreshold > 64 {
		return fmt.Errorf("hash threshold %d out of range [0,64]", c.HashThreshold)
	}
	if c.FeatureThreshold < 0 || c.FeatureThreshold > 1 {
		return fmt.Errorf("feature threshold %g out of range [0,1]", c.FeatureThreshold)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	return nil
}
