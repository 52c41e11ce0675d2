// Package config loads the YAML file configuration. Runtime tunables live
// in DB-backed settings; the file only carries what is needed before the
// database is open.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/djorigin/rpasops/internal/util"
)

// DefaultConfigFile is the config file name used when none is given.
const DefaultConfigFile = "config.yaml"

// AppConfig holds command-line level inputs.
type AppConfig struct {
	ConfigPath string
}

// FileConfig is the on-disk YAML configuration.
type FileConfig struct {
	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	Server struct {
		Listen string `yaml:"listen"`
	} `yaml:"server"`

	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max-size-mb"`
		MaxBackups int    `yaml:"max-backups"`
		MaxAgeDays int    `yaml:"max-age-days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`

	Scheduler struct {
		ComplianceEnabled  *bool `yaml:"compliance-enabled"`
		MaintenanceEnabled *bool `yaml:"maintenance-enabled"`
	} `yaml:"scheduler"`
}

// ResolveConfigPath normalizes the config path, preferring the writable
// path root when one is configured.
func ResolveConfigPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = DefaultConfigFile
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	if root := util.WritablePath(); root != "" {
		return filepath.Join(root, trimmed)
	}
	return filepath.Clean(trimmed)
}

// Load reads and parses the config file, applying defaults. A missing file
// yields the defaults rather than an error so a fresh deployment can boot
// on SQLite without any configuration.
func Load(path string) (*FileConfig, error) {
	cfg := &FileConfig{}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if errParse := yaml.Unmarshal(data, cfg); errParse != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errParse)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// LoadDatabaseDSN loads only the database DSN from the config file.
func LoadDatabaseDSN(path string) (string, error) {
	cfg, err := Load(path)
	if err != nil {
		return "", err
	}
	return cfg.Database.DSN, nil
}

func applyDefaults(cfg *FileConfig) {
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		dsn := "rpasops.db"
		if root := util.WritablePath(); root != "" {
			dsn = filepath.Join(root, dsn)
		}
		cfg.Database.DSN = dsn
	}
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = ":8317"
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays <= 0 {
		cfg.Log.MaxAgeDays = 28
	}
}

// SchedulerEnabled reports the scheduler toggles; both default to on.
func (c *FileConfig) SchedulerEnabled() (compliance, maintenance bool) {
	compliance = c.Scheduler.ComplianceEnabled == nil || *c.Scheduler.ComplianceEnabled
	maintenance = c.Scheduler.MaintenanceEnabled == nil || *c.Scheduler.MaintenanceEnabled
	return compliance, maintenance
}
