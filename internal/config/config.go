// Package config manages metavc configuration and the .metavc directory
// structure. It handles loading, saving, and initializing the repository
// configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	MetaDir      = ".metavc"
	ConfigFile   = "config"
	DatabaseFile = "metavc.db"
)

// Config represents the metavc repository configuration
type Config struct {
	RepoID        string `toml:"repo_id"`
	DefaultRemote string `toml:"default_remote,omitempty"`
	path          string // path to .metavc directory
}

// FindRoot finds the .metavc directory by walking up from the given directory.
// An empty start means the current working directory.
func FindRoot(start string) (string, error) {
	dir := start
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}

	for {
		metaPath := filepath.Join(dir, MetaDir)
		if info, err := os.Stat(metaPath); err == nil && info.IsDir() {
			return metaPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a metavc repository (or any parent up to root)")
		}
		dir = parent
	}
}

// Load loads the configuration, discovering the .metavc directory from the
// current working directory.
func Load() (*Config, error) {
	metaPath, err := FindRoot("")
	if err != nil {
		return nil, err
	}
	return LoadAt(metaPath)
}

// LoadAt loads the configuration from a specific .metavc directory.
func LoadAt(metaPath string) (*Config, error) {
	configPath := filepath.Join(metaPath, ConfigFile)
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.path = metaPath
	return &cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	configPath := filepath.Join(c.path, ConfigFile)
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// MetaPath returns the path to the .metavc directory
func (c *Config) MetaPath() string {
	return c.path
}

// WorkRoot returns the worktree root (parent of the .metavc directory)
func (c *Config) WorkRoot() string {
	return filepath.Dir(c.path)
}

// DatabasePath returns the path to the bbolt database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.path, DatabaseFile)
}

// Initialize creates a new .metavc directory with initial configuration
// under the given worktree root.
func Initialize(root, repoID string) (*Config, error) {
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root = cwd
	}

	metaPath := filepath.Join(root, MetaDir)
	if _, err := os.Stat(metaPath); err == nil {
		return nil, fmt.Errorf("metavc repository already initialized at %s", metaPath)
	}

	if err := os.MkdirAll(metaPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", MetaDir, err)
	}

	if repoID == "" {
		repoID = filepath.Base(root)
	}

	cfg := &Config{
		RepoID: repoID,
		path:   metaPath,
	}

	if err := cfg.Save(); err != nil {
		return nil, err
	}

	return cfg, nil
}
