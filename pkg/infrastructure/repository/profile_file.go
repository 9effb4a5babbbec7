package repository

import (
	"github.com/illumination-k/pathmirror/pkg/application/port"
	"github.com/illumination-k/pathmirror/pkg/config"
)

// ProfileFileRepository implements port.ProfileRepository using one YAML file per profile
type ProfileFileRepository struct {
	store *config.Store
}

// NewProfileFileRepository creates a repository backed by store
func NewProfileFileRepository(store *config.Store) port.ProfileRepository {
	return &ProfileFileRepository{store: store}
}

// NewProfileFileRepositoryWithPath creates a repository with a custom config directory
func NewProfileFileRepositoryWithPath(configDir string) port.ProfileRepository {
	return NewProfileFileRepository(config.NewStoreWithPath(configDir))
}

// LoadProfile loads a profile configuration by name
func (r *ProfileFileRepository) LoadProfile(name string) (*config.ProfileConfig, error) {
	return r.store.LoadProfile(name)
}

// SaveProfile saves a profile configuration
func (r *ProfileFileRepository) SaveProfile(profile *config.ProfileConfig) error {
	return r.store.SaveProfile(profile)
}

// DeleteProfile removes a profile configuration
func (r *ProfileFileRepository) DeleteProfile(name string) error {
	return r.store.DeleteProfile(name)
}

// ListProfiles returns all profile configurations
func (r *ProfileFileRepository) ListProfiles() ([]*config.ProfileConfig, error) {
	return r.store.ListProfiles()
}

// ProfileExists checks if a profile exists
func (r *ProfileFileRepository) ProfileExists(name string) bool {
	return r.store.ProfileExists(name)
}

// GetLockPath returns the lock file guarding passes of a profile
func (r *ProfileFileRepository) GetLockPath(name string) string {
	return r.store.GetLockPath(name)
}
