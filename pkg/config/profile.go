package config

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	pathsync "github.com/illumination-k/pathmirror/pkg/sync"
	"github.com/illumination-k/pathmirror/pkg/sync/conflict"
	"github.com/illumination-k/pathmirror/pkg/sync/filter"
)

var (
	// ErrProfileNameRequired is returned when profile name is empty
	ErrProfileNameRequired = errors.New("profile name is required")

	// ErrInvalidProfileName is returned when a profile name cannot be used as a file name
	ErrInvalidProfileName = errors.New("profile name may only contain letters, digits, '.', '_' and '-'")
)

var profileNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ProfileConfig is a named, persisted set of sync settings
type ProfileConfig struct {
	Name           string         `yaml:"name" json:"name"`
	Paths          []string       `yaml:"paths" json:"paths"`
	Direction      string         `yaml:"direction" json:"direction"`
	ConflictPolicy string         `yaml:"conflictPolicy" json:"conflictPolicy"`
	Filter         filter.Options `yaml:"filter" json:"filter"`

	// IntervalSeconds overrides the global interval when non-zero
	IntervalSeconds int `yaml:"intervalSeconds,omitempty" json:"intervalSeconds,omitempty"`

	CreatedAt time.Time `yaml:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `yaml:"updatedAt" json:"updatedAt"`
}

// NewProfile returns a profile with default settings
func NewProfile(name string) *ProfileConfig {
	now := time.Now()
	defaults := pathsync.DefaultSettings()
	return &ProfileConfig{
		Name:           name,
		Paths:          []string{},
		Direction:      string(defaults.Direction),
		ConflictPolicy: string(defaults.Policy),
		Filter:         defaults.Filter,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ValidateProfileName checks that name is usable as a profile file name
func ValidateProfileName(name string) error {
	if name == "" {
		return ErrProfileNameRequired
	}
	if !profileNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidProfileName, name)
	}
	return nil
}

// Validate checks if the profile configuration is valid
func (p *ProfileConfig) Validate() error {
	if err := ValidateProfileName(p.Name); err != nil {
		return err
	}
	if p.IntervalSeconds != 0 {
		if err := pathsync.ValidateInterval(time.Duration(p.IntervalSeconds) * time.Second); err != nil {
			return err
		}
	}
	return p.Settings(pathsync.DefaultInterval).Validate()
}

// Settings converts the profile into engine settings. fallbackInterval is used
// when the profile does not set its own interval.
func (p *ProfileConfig) Settings(fallbackInterval time.Duration) pathsync.Settings {
	interval := fallbackInterval
	if p.IntervalSeconds != 0 {
		interval = time.Duration(p.IntervalSeconds) * time.Second
	}
	return pathsync.Settings{
		Paths:     append([]string(nil), p.Paths...),
		Direction: pathsync.Direction(p.Direction),
		Policy:    conflict.Policy(p.ConflictPolicy),
		Filter:    p.Filter.Clone(),
		Interval:  interval,
	}
}

// Apply copies session settings back into the profile. The interval is left
// alone so a profile without its own interval keeps following the global one.
func (p *ProfileConfig) Apply(s pathsync.Settings) {
	p.Paths = append([]string{}, s.Paths...)
	p.Direction = string(s.Direction)
	p.ConflictPolicy = string(s.Policy)
	p.Filter = s.Filter.Clone()
	p.Touch()
}

// Touch updates the UpdatedAt timestamp
func (p *ProfileConfig) Touch() {
	p.UpdatedAt = time.Now()
}
