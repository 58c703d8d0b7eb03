package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// MigrationConfig holds the full TOML-driven migration configuration.
type MigrationConfig struct {
	Emitter string       `toml:"emitter"` // store|files
	Source  SourceConfig `toml:"source"`
	Output  OutputConfig `toml:"output"`
	Store   StoreConfig  `toml:"store"`
	Hooks   HooksConfig  `toml:"hooks"`

	// configDir is the directory containing the TOML file, used to resolve relative paths.
	configDir string
}

// SourceConfig identifies the catalog file and its format.
type SourceConfig struct {
	Path   string `toml:"path"`
	Format string `toml:"format"` // legacy|list
}

// OutputConfig controls the files emitter.
type OutputConfig struct {
	Dir string `toml:"dir"`
}

// StoreConfig identifies the package store engine and connection string.
type StoreConfig struct {
	Type         string `toml:"type"` // sqlite|mysql|postgres
	DSN          string `toml:"dsn"`
	CreateSchema bool   `toml:"create_schema"`
}

// HooksConfig lists SQL files run inside the store transaction.
type HooksConfig struct {
	BeforeData []string `toml:"before_data"`
	AfterData  []string `toml:"after_data"`
}

func defaultMigrationConfig() MigrationConfig {
	return MigrationConfig{
		Emitter: "store",
		Source: SourceConfig{
			Path:   "packages",
			Format: "legacy",
		},
		Output: OutputConfig{Dir: "pkg_def"},
		Store: StoreConfig{
			Type:         "sqlite",
			DSN:          "packages.db",
			CreateSchema: true,
		},
	}
}

// loadConfig reads a TOML config file and returns a MigrationConfig with defaults applied.
func loadConfig(path string) (*MigrationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultMigrationConfig()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.Source.Path = cfg.resolvePath(cfg.Source.Path)
	cfg.Output.Dir = cfg.resolvePath(cfg.Output.Dir)
	if cfg.Store.Type == "sqlite" && isSQLiteFilePath(cfg.Store.DSN) {
		cfg.Store.DSN = cfg.resolvePath(cfg.Store.DSN)
	}

	return &cfg, nil
}

func (c *MigrationConfig) validate() error {
	c.Emitter = strings.TrimSpace(c.Emitter)
	switch c.Emitter {
	case "store", "files":
	default:
		return fmt.Errorf("emitter must be one of: store, files")
	}

	if strings.TrimSpace(c.Source.Path) == "" {
		return fmt.Errorf("source.path is required")
	}
	format, err := newCatalogFormat(c.Source.Format)
	if err != nil {
		return err
	}
	if format.InfoOnly() && c.Emitter != "store" {
		return fmt.Errorf("source.format %q requires emitter \"store\"", c.Source.Format)
	}

	if c.Emitter == "files" && strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output.dir is required for the files emitter")
	}
	if c.Emitter == "files" && (len(c.Hooks.BeforeData) > 0 || len(c.Hooks.AfterData) > 0) {
		return fmt.Errorf("hooks are only supported with the store emitter")
	}

	if _, err := newStoreDialect(c.Store.Type); err != nil {
		return err
	}
	if c.Emitter == "store" && strings.TrimSpace(c.Store.DSN) == "" {
		return fmt.Errorf("store.dsn is required")
	}
	return nil
}

// resolvePath resolves a path relative to the config file directory.
func (c *MigrationConfig) resolvePath(p string) string {
	if filepath.IsAbs(p) || c.configDir == "" {
		return p
	}
	return filepath.Join(c.configDir, p)
}
