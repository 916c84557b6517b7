// Package config loads runtime settings for the BOQ engine.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds the engine settings. Values come from an optional YAML file
// with environment variable overrides.
type Config struct {
	// ExportDir is where finished export artifacts are written.
	// Relative paths are resolved against the PocketBase data dir.
	ExportDir string `yaml:"export_dir" env:"BOQ_EXPORT_DIR" env-default:"exports"`

	// DefaultLocale is used when an export request does not name one.
	DefaultLocale string `yaml:"default_locale" env:"BOQ_DEFAULT_LOCALE" env-default:"en"`

	// RenderWorkers bounds parallel document rendering in batch exports.
	RenderWorkers int `yaml:"render_workers" env:"BOQ_RENDER_WORKERS" env-default:"4"`

	// SeedDemo inserts a demo catalog on startup when the catalog is empty.
	SeedDemo bool `yaml:"seed_demo" env:"BOQ_SEED_DEMO" env-default:"false"`
}

// Load reads configuration from path (if it exists) and applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			return cfg, cfg.validate()
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, cfg.validate()
}

// ResolveExportDir returns ExportDir as an absolute-or-dataDir-relative path.
func (c *Config) ResolveExportDir(dataDir string) string {
	if filepath.IsAbs(c.ExportDir) {
		return c.ExportDir
	}
	return filepath.Join(dataDir, c.ExportDir)
}

func (c *Config) validate() error {
	if c.RenderWorkers < 1 {
		return fmt.Errorf("render_workers must be at least 1, got %d", c.RenderWorkers)
	}
	if c.ExportDir == "" {
		return errors.New("export_dir must not be empty")
	}
	return nil
}
