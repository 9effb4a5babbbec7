package port

import (
	"github.com/illumination-k/pathmirror/pkg/config"
)

// ProfileRepository handles persistence of profile configurations
type ProfileRepository interface {
	// LoadProfile loads a profile configuration by name
	LoadProfile(name string) (*config.ProfileConfig, error)

	// SaveProfile saves a profile configuration
	SaveProfile(profile *config.ProfileConfig) error

	// DeleteProfile removes a profile configuration
	DeleteProfile(name string) error

	// ListProfiles returns all profile configurations
	ListProfiles() ([]*config.ProfileConfig, error)

	// ProfileExists checks if a profile exists
	ProfileExists(name string) bool

	// GetLockPath returns the lock file guarding passes of a profile
	GetLockPath(name string) string
}

// ConfigRepository handles persistence of global configuration
type ConfigRepository interface {
	// LoadGlobalConfig loads the global configuration
	LoadGlobalConfig() (*config.GlobalConfig, error)

	// SaveGlobalConfig saves the global configuration
	SaveGlobalConfig(config *config.GlobalConfig) error

	// EnsureConfigDir creates the configuration directory structure if it doesn't exist
	EnsureConfigDir() error

	// GetGlobalConfigPath returns the file path for global config
	GetGlobalConfigPath() string
}
