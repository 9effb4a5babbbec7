package sync

import (
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/illumination-k/pathmirror/pkg/sync/conflict"
	"github.com/illumination-k/pathmirror/pkg/sync/filter"
)

const (
	MinInterval     = 5 * time.Second
	MaxInterval     = time.Hour
	DefaultInterval = 60 * time.Second
)

// Settings is the configuration a pass runs with
type Settings struct {
	Paths     []string
	Direction Direction
	Policy    conflict.Policy
	Filter    filter.Options
	Interval  time.Duration
}

// DefaultSettings returns the configuration of a freshly created session
func DefaultSettings() Settings {
	return Settings{
		Direction: Bidirectional,
		Policy:    conflict.PolicyNewer,
		Filter:    filter.DefaultOptions(),
		Interval:  DefaultInterval,
	}
}

// Clone returns a deep copy of the settings
func (s Settings) Clone() Settings {
	c := s
	c.Paths = slices.Clone(s.Paths)
	c.Filter = s.Filter.Clone()
	return c
}

// Validate checks every field of the settings
func (s Settings) Validate() error {
	seen := make(map[string]struct{}, len(s.Paths))
	for _, p := range s.Paths {
		if p == "" {
			return configError(ErrEmptyPath)
		}
		clean := filepath.Clean(p)
		if _, dup := seen[clean]; dup {
			return configErrorf(ErrDuplicatePath, "%s", clean)
		}
		seen[clean] = struct{}{}
	}
	if _, err := ParseDirection(string(s.Direction)); err != nil {
		return err
	}
	if _, err := conflict.ParsePolicy(string(s.Policy)); err != nil {
		return &ConfigError{Err: err}
	}
	if err := ValidateInterval(s.Interval); err != nil {
		return err
	}
	if err := s.Filter.Validate(); err != nil {
		return &ConfigError{Err: err}
	}
	return nil
}

// ValidateInterval checks that d lies in [MinInterval, MaxInterval]
func ValidateInterval(d time.Duration) error {
	if d < MinInterval || d > MaxInterval {
		return configErrorf(ErrInvalidInterval, "got %s", d)
	}
	return nil
}

// Session holds the mutable configuration shared by the engine and scheduler.
// Every mutation either applies fully or returns a ConfigError and changes nothing.
type Session struct {
	mu       sync.RWMutex
	settings Settings
	logger   *slog.Logger
}

// NewSession creates a session from validated settings
func NewSession(settings Settings, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	settings = settings.Clone()
	for i, p := range settings.Paths {
		if p != "" {
			settings.Paths[i] = filepath.Clean(p)
		}
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return &Session{settings: settings, logger: logger}, nil
}

// Snapshot returns a copy of the current settings for use by one pass
func (s *Session) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// Paths returns the registered paths in registration order
func (s *Session) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.settings.Paths)
}

// AddPath registers a new path at the end of the list
func (s *Session) AddPath(path string) error {
	if path == "" {
		return configError(ErrEmptyPath)
	}
	path = filepath.Clean(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.settings.Paths, path) {
		return configErrorf(ErrDuplicatePath, "%s", path)
	}
	s.settings.Paths = append(s.settings.Paths, path)

	s.logger.Info("path added", "path", path, "count", len(s.settings.Paths))
	return nil
}

// RemovePath unregisters path
func (s *Session) RemovePath(path string) error {
	path = filepath.Clean(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.Index(s.settings.Paths, path)
	if idx < 0 {
		return configErrorf(ErrUnknownPath, "%s", path)
	}
	s.settings.Paths = slices.Delete(slices.Clone(s.settings.Paths), idx, idx+1)

	s.logger.Info("path removed", "path", path, "count", len(s.settings.Paths))
	return nil
}

// SetDirection changes the sync direction
func (s *Session) SetDirection(d Direction) error {
	if _, err := ParseDirection(string(d)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.Direction = d
	s.logger.Info("sync direction changed", "direction", string(d))
	return nil
}

// SetPolicy changes the conflict resolution policy
func (s *Session) SetPolicy(p conflict.Policy) error {
	if _, err := conflict.ParsePolicy(string(p)); err != nil {
		return &ConfigError{Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.Policy = p
	s.logger.Info("conflict policy changed", "policy", string(p))
	return nil
}

// SetFilter replaces the file filter
func (s *Session) SetFilter(opts filter.Options) error {
	if err := opts.Validate(); err != nil {
		return &ConfigError{Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.Filter = opts.Clone()
	s.logger.Info("filter updated", "filter", opts.Describe())
	return nil
}

// SetInterval changes the scheduler interval. A running scheduler picks it up on
// its next start.
func (s *Session) SetInterval(d time.Duration) error {
	if err := ValidateInterval(d); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.Interval = d
	s.logger.Info("sync interval changed", "interval", d)
	return nil
}
