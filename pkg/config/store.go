package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrProfileNotFound is returned when a profile config file doesn't exist
	ErrProfileNotFound = errors.New("profile not found")

	// ErrProfileExists is returned when creating a profile whose name is taken
	ErrProfileExists = errors.New("profile already exists")
)

const (
	// DefaultConfigDir is the default directory for pathmirror configuration
	DefaultConfigDir = ".pathmirror"

	// HomeEnv overrides the configuration directory
	HomeEnv = "PATHMIRROR_HOME"

	// ProfilesSubdir is the subdirectory for profile configs
	ProfilesSubdir = "profiles"

	// LocksSubdir holds per-profile lock files
	LocksSubdir = "locks"

	// GlobalConfigFile is the filename for global configuration
	GlobalConfigFile = "config.yaml"

	// HistoryDBFile is the filename of the sync history journal
	HistoryDBFile = "history.db"
)

// Store handles reading and writing configuration files
type Store struct {
	configDir string
}

// NewStore creates a new configuration store rooted at $PATHMIRROR_HOME,
// falling back to ~/.pathmirror
func NewStore() (*Store, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		resolved, err := ResolvePath(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", HomeEnv, err)
		}
		return &Store{configDir: resolved}, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(home, DefaultConfigDir)
	return &Store{configDir: configDir}, nil
}

// NewStoreWithPath creates a store with a custom config directory
func NewStoreWithPath(configDir string) *Store {
	return &Store{configDir: configDir}
}

// ConfigDir returns the root configuration directory
func (s *Store) ConfigDir() string {
	return s.configDir
}

// EnsureConfigDir creates the configuration directory structure if it doesn't exist
func (s *Store) EnsureConfigDir() error {
	for _, dir := range []string{
		s.configDir,
		filepath.Join(s.configDir, ProfilesSubdir),
		filepath.Join(s.configDir, LocksSubdir),
	} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create config directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetProfilePath returns the file path for a profile config
func (s *Store) GetProfilePath(name string) string {
	return filepath.Join(s.configDir, ProfilesSubdir, name+".yaml")
}

// GetGlobalConfigPath returns the file path for global config
func (s *Store) GetGlobalConfigPath() string {
	return filepath.Join(s.configDir, GlobalConfigFile)
}

// GetHistoryDBPath returns the file path of the history journal
func (s *Store) GetHistoryDBPath() string {
	return filepath.Join(s.configDir, HistoryDBFile)
}

// GetLockPath returns the lock file guarding passes of a profile
func (s *Store) GetLockPath(name string) string {
	return filepath.Join(s.configDir, LocksSubdir, name+".lock")
}

// LoadProfile loads a profile configuration from disk
func (s *Store) LoadProfile(name string) (*ProfileConfig, error) {
	if err := ValidateProfileName(name); err != nil {
		return nil, err
	}
	path := s.GetProfilePath(name)

	// #nosec G304 -- path is constructed from validated profile name
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
		}
		return nil, fmt.Errorf("failed to read profile config: %w", err)
	}

	var config ProfileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse profile config: %w", err)
	}
	if config.Paths == nil {
		config.Paths = []string{}
	}

	return &config, nil
}

// SaveProfile saves a profile configuration to disk
func (s *Store) SaveProfile(config *ProfileConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	if err := s.EnsureConfigDir(); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal profile config: %w", err)
	}

	if err := os.WriteFile(s.GetProfilePath(config.Name), data, 0o600); err != nil {
		return fmt.Errorf("failed to write profile config: %w", err)
	}

	return nil
}

// DeleteProfile removes a profile configuration from disk
func (s *Store) DeleteProfile(name string) error {
	if err := ValidateProfileName(name); err != nil {
		return err
	}

	if err := os.Remove(s.GetProfilePath(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
		}
		return fmt.Errorf("failed to delete profile config: %w", err)
	}

	// The lock file may never have been created
	_ = os.Remove(s.GetLockPath(name))
	return nil
}

// ListProfiles returns all profile configurations sorted by name
func (s *Store) ListProfiles() ([]*ProfileConfig, error) {
	profilesDir := filepath.Join(s.configDir, ProfilesSubdir)

	entries, err := os.ReadDir(profilesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*ProfileConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read profiles directory: %w", err)
	}

	profiles := make([]*ProfileConfig, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".yaml")
		profile, err := s.LoadProfile(name)
		if err != nil {
			// Skip unreadable profiles and keep listing the rest
			continue
		}

		profiles = append(profiles, profile)
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Name < profiles[j].Name
	})

	return profiles, nil
}

// ProfileExists checks if a profile configuration exists
func (s *Store) ProfileExists(name string) bool {
	if ValidateProfileName(name) != nil {
		return false
	}
	_, err := os.Stat(s.GetProfilePath(name))
	return err == nil
}

// LoadGlobalConfig loads the global configuration
func (s *Store) LoadGlobalConfig() (*GlobalConfig, error) {
	path := s.GetGlobalConfigPath()

	// #nosec G304 -- path is constructed from config directory
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultGlobalConfig(), nil
		}
		return nil, fmt.Errorf("failed to read global config: %w", err)
	}

	var config GlobalConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse global config: %w", err)
	}

	defaultConfig := DefaultGlobalConfig()
	defaultConfig.Merge(&config)

	return defaultConfig, nil
}

// SaveGlobalConfig saves the global configuration to disk
func (s *Store) SaveGlobalConfig(config *GlobalConfig) error {
	if err := s.EnsureConfigDir(); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal global config: %w", err)
	}

	if err := os.WriteFile(s.GetGlobalConfigPath(), data, 0o600); err != nil {
		return fmt.Errorf("failed to write global config: %w", err)
	}

	return nil
}
