package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"

	"github.com/illumination-k/pathmirror/pkg/application/port"
	"github.com/illumination-k/pathmirror/pkg/config"
	"github.com/illumination-k/pathmirror/pkg/history"
	pathsync "github.com/illumination-k/pathmirror/pkg/sync"
	"github.com/illumination-k/pathmirror/pkg/sync/conflict"
	"github.com/illumination-k/pathmirror/pkg/sync/filter"
)

var (
	// ErrProfileBusy is returned when another process holds the profile lock
	ErrProfileBusy = errors.New("profile is being synced by another process")

	// ErrPathNotFound is returned when registering a path that does not exist
	ErrPathNotFound = errors.New("path does not exist")
)

// RunOptions configures a one-shot pass or a watch
type RunOptions struct {
	// Prompt answers conflicts under the ask policy. Nil resolves them as skip.
	Prompt conflict.Prompt

	// Overrides holds command line values taking precedence over config files
	Overrides config.Overrides
}

// SyncService provides profile management and sync operations using dependency injection
type SyncService struct {
	profiles port.ProfileRepository
	configs  port.ConfigRepository
	history  port.HistoryStore
	fs       afero.Fs
	logger   *slog.Logger
}

// NewSyncService creates a new SyncService with injected dependencies.
// A nil logger means slog.Default() at call time.
func NewSyncService(
	profiles port.ProfileRepository,
	configs port.ConfigRepository,
	historyStore port.HistoryStore,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		profiles: profiles,
		configs:  configs,
		history:  historyStore,
		fs:       afero.NewOsFs(),
		logger:   logger,
	}
}

func (s *SyncService) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// LoadGlobalConfig loads the global configuration
func (s *SyncService) LoadGlobalConfig() (*config.GlobalConfig, error) {
	return s.configs.LoadGlobalConfig()
}

// LoadProfile loads a profile configuration by name
func (s *SyncService) LoadProfile(name string) (*config.ProfileConfig, error) {
	return s.profiles.LoadProfile(name)
}

// ListProfiles returns all profile configurations
func (s *SyncService) ListProfiles() ([]*config.ProfileConfig, error) {
	return s.profiles.ListProfiles()
}

// CreateProfile creates and saves a new profile registering paths in order
func (s *SyncService) CreateProfile(name string, paths []string) (*config.ProfileConfig, error) {
	if err := config.ValidateProfileName(name); err != nil {
		return nil, err
	}
	if s.profiles.ProfileExists(name) {
		return nil, fmt.Errorf("%w: %s", config.ErrProfileExists, name)
	}

	profile := config.NewProfile(name)
	session, err := pathsync.NewSession(profile.Settings(pathsync.DefaultInterval), s.log().With("profile", name))
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		resolved, err := s.resolveExisting(path)
		if err != nil {
			return nil, err
		}
		if err := session.AddPath(resolved); err != nil {
			return nil, err
		}
	}
	profile.Apply(session.Snapshot())

	if err := s.profiles.SaveProfile(profile); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	s.log().Info("profile created", "profile", name, "paths", len(profile.Paths))
	return profile, nil
}

// DeleteProfile removes a profile and its history
func (s *SyncService) DeleteProfile(name string) error {
	if err := s.profiles.DeleteProfile(name); err != nil {
		return err
	}

	if err := s.withJournal(name, func(j port.HistoryJournal) error {
		return j.Clear()
	}); err != nil {
		s.log().Warn("failed to clear history of deleted profile", "profile", name, "error", err)
	}

	s.log().Info("profile deleted", "profile", name)
	return nil
}

// AddPath registers an existing file or directory with the profile
func (s *SyncService) AddPath(name, path string) (*config.ProfileConfig, error) {
	resolved, err := s.resolveExisting(path)
	if err != nil {
		return nil, err
	}
	return s.mutate(name, func(session *pathsync.Session, _ *config.ProfileConfig) error {
		return session.AddPath(resolved)
	})
}

// RemovePath unregisters a path. The path does not need to exist anymore.
func (s *SyncService) RemovePath(name, path string) (*config.ProfileConfig, error) {
	resolved, err := config.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	return s.mutate(name, func(session *pathsync.Session, _ *config.ProfileConfig) error {
		return session.RemovePath(resolved)
	})
}

// SetDirection changes the sync direction of the profile
func (s *SyncService) SetDirection(name string, direction pathsync.Direction) (*config.ProfileConfig, error) {
	return s.mutate(name, func(session *pathsync.Session, _ *config.ProfileConfig) error {
		return session.SetDirection(direction)
	})
}

// SetPolicy changes the conflict policy of the profile
func (s *SyncService) SetPolicy(name string, policy conflict.Policy) (*config.ProfileConfig, error) {
	return s.mutate(name, func(session *pathsync.Session, _ *config.ProfileConfig) error {
		return session.SetPolicy(policy)
	})
}

// SetFilter replaces the file filter of the profile
func (s *SyncService) SetFilter(name string, opts filter.Options) (*config.ProfileConfig, error) {
	return s.mutate(name, func(session *pathsync.Session, _ *config.ProfileConfig) error {
		return session.SetFilter(opts)
	})
}

// SetInterval pins the scheduler interval of the profile
func (s *SyncService) SetInterval(name string, interval time.Duration) (*config.ProfileConfig, error) {
	return s.mutate(name, func(session *pathsync.Session, profile *config.ProfileConfig) error {
		if err := session.SetInterval(interval); err != nil {
			return err
		}
		profile.IntervalSeconds = int(interval / time.Second)
		return nil
	})
}

// mutate loads a profile, applies fn through a Session and saves the result.
// The stored profile is untouched when fn fails.
func (s *SyncService) mutate(name string, fn func(*pathsync.Session, *config.ProfileConfig) error) (*config.ProfileConfig, error) {
	profile, err := s.profiles.LoadProfile(name)
	if err != nil {
		return nil, err
	}

	session, err := pathsync.NewSession(profile.Settings(pathsync.DefaultInterval), s.log().With("profile", name))
	if err != nil {
		return nil, fmt.Errorf("invalid stored profile %s: %w", name, err)
	}

	if err := fn(session, profile); err != nil {
		return nil, err
	}
	profile.Apply(session.Snapshot())

	if err := s.profiles.SaveProfile(profile); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return profile, nil
}

func (s *SyncService) resolveExisting(path string) (string, error) {
	resolved, err := config.ResolvePath(path)
	if err != nil {
		return "", err
	}
	if _, err := s.fs.Stat(resolved); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrPathNotFound, resolved)
		}
		return "", fmt.Errorf("failed to access %s: %w", resolved, err)
	}
	return resolved, nil
}

// RunOnce executes a single pass for the profile
func (s *SyncService) RunOnce(ctx context.Context, name string, opts RunOptions) (*pathsync.SyncResult, error) {
	r, err := s.open(name, opts)
	if err != nil {
		return nil, err
	}
	defer r.close()

	return r.engine.Run(ctx)
}

// WatchSummary describes the passes run by one watch
type WatchSummary struct {
	// Passes holds the results of this watch, oldest first
	Passes []pathsync.SyncResult
	// Last is the most recent pass, or nil when none ran
	Last *pathsync.SyncResult
}

// Files returns the number of files copied across all passes
func (w *WatchSummary) Files() int {
	n := 0
	for _, p := range w.Passes {
		n += p.FileCount
	}
	return n
}

// Failures returns the number of failed passes
func (w *WatchSummary) Failures() int {
	n := 0
	for _, p := range w.Passes {
		if !p.Success {
			n++
		}
	}
	return n
}

// Watch monitors the profile until ctx is cancelled and reports the passes it ran
func (s *SyncService) Watch(ctx context.Context, name string, opts RunOptions) (*WatchSummary, error) {
	r, err := s.open(name, opts)
	if err != nil {
		return nil, err
	}
	defer r.close()

	scheduler := pathsync.NewScheduler(r.engine,
		pathsync.WithDebounce(r.resolved.Debounce),
		pathsync.WithSchedulerLogger(r.logger),
	)
	if err := scheduler.Start(ctx); err != nil {
		return nil, err
	}

	<-ctx.Done()
	err = scheduler.Stop()

	return &WatchSummary{
		Passes: r.recent.Records(),
		Last:   r.engine.LastResult(),
	}, err
}

// History returns the recorded passes of the profile, oldest first
func (s *SyncService) History(name string) ([]pathsync.SyncResult, error) {
	var records []pathsync.SyncResult
	err := s.withJournal(name, func(j port.HistoryJournal) error {
		var err error
		records, err = j.Records()
		return err
	})
	return records, err
}

// ClearHistory removes every recorded pass of the profile
func (s *SyncService) ClearHistory(name string) error {
	if err := s.withJournal(name, func(j port.HistoryJournal) error {
		return j.Clear()
	}); err != nil {
		return err
	}
	s.log().Info("history cleared", "profile", name)
	return nil
}

// ExportHistory writes the history of the profile to w as CSV
func (s *SyncService) ExportHistory(name string, w io.Writer) error {
	return s.withJournal(name, func(j port.HistoryJournal) error {
		return j.Export(w)
	})
}

func (s *SyncService) withJournal(name string, fn func(port.HistoryJournal) error) error {
	if err := config.ValidateProfileName(name); err != nil {
		return err
	}

	global, err := s.configs.LoadGlobalConfig()
	if err != nil {
		return err
	}
	if err := s.configs.EnsureConfigDir(); err != nil {
		return err
	}

	journal, err := s.history.Open(name, global.HistoryLimit())
	if err != nil {
		return err
	}
	defer journal.Close()

	return fn(journal)
}

// run holds everything a locked pass or watch needs
type run struct {
	engine   *pathsync.Engine
	resolved *config.ResolvedConfig
	journal  port.HistoryJournal
	recent   *history.Recorder
	lock     *flock.Flock
	logger   *slog.Logger
}

func (r *run) close() {
	if err := r.journal.Close(); err != nil {
		r.logger.Warn("failed to close history journal", "error", err)
	}
	if err := r.lock.Unlock(); err != nil {
		r.logger.Warn("failed to release profile lock", "error", err)
	}
}

func (s *SyncService) open(name string, opts RunOptions) (*run, error) {
	profile, err := s.profiles.LoadProfile(name)
	if err != nil {
		return nil, err
	}
	global, err := s.configs.LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	resolved := config.NewProfileResolver(global, profile).Resolve(opts.Overrides)

	logger := s.log().With("profile", name)
	session, err := pathsync.NewSession(resolved.Settings, logger)
	if err != nil {
		return nil, err
	}

	if err := s.configs.EnsureConfigDir(); err != nil {
		return nil, err
	}

	lock := flock.New(s.profiles.GetLockPath(name))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock profile %s: %w", name, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrProfileBusy, name)
	}

	journal, err := s.history.Open(name, resolved.HistoryLimit)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	resolverOpts := []conflict.Option{conflict.WithTimeout(resolved.AskTimeout)}
	if opts.Prompt != nil {
		resolverOpts = append(resolverOpts, conflict.WithPrompt(opts.Prompt))
	}

	recent := history.NewRecorder(resolved.HistoryLimit)
	engine := pathsync.NewEngine(session,
		pathsync.WithFs(s.fs),
		pathsync.WithResolver(conflict.NewResolver(resolverOpts...)),
		pathsync.WithHistory(journal),
		pathsync.WithHistory(recent),
		pathsync.WithLogger(logger),
	)

	return &run{
		engine:   engine,
		resolved: resolved,
		journal:  journal,
		recent:   recent,
		lock:     lock,
		logger:   logger,
	}, nil
}
