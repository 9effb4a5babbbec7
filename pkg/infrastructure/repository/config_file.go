package repository

import (
	"github.com/illumination-k/pathmirror/pkg/application/port"
	"github.com/illumination-k/pathmirror/pkg/config"
)

// ConfigFileRepository implements port.ConfigRepository using file-based storage
type ConfigFileRepository struct {
	store *config.Store
}

// NewConfigFileRepository creates a repository backed by store
func NewConfigFileRepository(store *config.Store) port.ConfigRepository {
	return &ConfigFileRepository{store: store}
}

// NewConfigFileRepositoryWithPath creates a repository with a custom config directory
func NewConfigFileRepositoryWithPath(configDir string) port.ConfigRepository {
	return NewConfigFileRepository(config.NewStoreWithPath(configDir))
}

// LoadGlobalConfig loads the global configuration
func (r *ConfigFileRepository) LoadGlobalConfig() (*config.GlobalConfig, error) {
	return r.store.LoadGlobalConfig()
}

// SaveGlobalConfig saves the global configuration
func (r *ConfigFileRepository) SaveGlobalConfig(cfg *config.GlobalConfig) error {
	return r.store.SaveGlobalConfig(cfg)
}

// EnsureConfigDir creates the configuration directory structure if it doesn't exist
func (r *ConfigFileRepository) EnsureConfigDir() error {
	return r.store.EnsureConfigDir()
}

// GetGlobalConfigPath returns the file path for global config
func (r *ConfigFileRepository) GetGlobalConfigPath() string {
	return r.store.GetGlobalConfigPath()
}
