// Package config loads the YAML configuration from disk, materialising the
// embedded default on first run.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/opsforge/opspilot/assets"
	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/pkg/filesystem"
	"github.com/opsforge/opspilot/internal/ports"
)

// EnvConfigPath overrides the config location when set.
const EnvConfigPath = "OPSPILOT_CONFIG"

// FileLoader reads ~/.opspilot/config.yaml, or the path given on the
// command line, or $OPSPILOT_CONFIG, in that order of precedence.
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a loader. An empty path means resolve normally.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider. On first run the embedded default
// config is written to disk verbatim so the operator has a commented file
// to edit, then parsed like any other.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.Path()
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return domain.Config{}, fmt.Errorf("create config dir: %w", err)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(path, assets.DefaultConfigYAML, domain.SecureFilePermissions); err != nil {
			return domain.Config{}, fmt.Errorf("write default config: %w", err)
		}
		data = assets.DefaultConfigYAML
	} else if err != nil {
		return domain.Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	expandStatePaths(&cfg)
	if err := cfg.ValidateConsistency(); err != nil {
		return domain.Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config back to its resolved path. Saved files keep the
// secure mode because provider entries name credential variables.
func (l *FileLoader) Save(cfg domain.Config) error {
	if err := cfg.ValidateConsistency(); err != nil {
		return fmt.Errorf("refusing to save: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	path := l.Path()
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, domain.SecureFilePermissions); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Reset overwrites the config with the embedded default, returning the
// parsed result. Comments in the default file survive because the bytes
// are written verbatim.
func (l *FileLoader) Reset(ctx context.Context) (domain.Config, error) {
	path := l.Path()
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return domain.Config{}, fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, assets.DefaultConfigYAML, domain.SecureFilePermissions); err != nil {
		return domain.Config{}, fmt.Errorf("write default config: %w", err)
	}
	return l.Load(ctx)
}

// Path reports where the config lives without touching the disk.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return filesystem.ExpandPath(l.overridePath)
	}
	if custom := os.Getenv(EnvConfigPath); custom != "" {
		return filesystem.ExpandPath(custom)
	}
	return filepath.Join(filesystem.AppDir(), "config.yaml")
}

// expandStatePaths resolves ~ and relative forms once, so everything
// downstream sees absolute paths.
func expandStatePaths(cfg *domain.Config) {
	if cfg.Security.RulesFile != "" {
		cfg.Security.RulesFile = filesystem.ExpandPath(cfg.Security.RulesFile)
	}
	if cfg.Matcher.TableFile != "" {
		cfg.Matcher.TableFile = filesystem.ExpandPath(cfg.Matcher.TableFile)
	}
	if cfg.Memory.Dir != "" {
		cfg.Memory.Dir = filesystem.ExpandPath(cfg.Memory.Dir)
	}
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
