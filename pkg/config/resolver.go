package config

import (
	"time"

	pathsync "github.com/illumination-k/pathmirror/pkg/sync"
)

// ResolvedConfig is the configuration a profile runs with after global
// defaults and command line overrides are applied
type ResolvedConfig struct {
	Settings     pathsync.Settings
	Debounce     time.Duration
	AskTimeout   time.Duration
	HistoryLimit int
	LogLevel     string
}

// Overrides holds values given on the command line. Zero values defer to config.
type Overrides struct {
	LogLevel        string
	IntervalSeconds int
	DebounceMillis  int
}

// ProfileResolver merges global and profile configurations
type ProfileResolver struct {
	global  *GlobalConfig
	profile *ProfileConfig
}

// NewProfileResolver creates a new ProfileResolver.
// global must not be nil, profile must not be nil.
func NewProfileResolver(global *GlobalConfig, profile *ProfileConfig) *ProfileResolver {
	return &ProfileResolver{
		global:  global,
		profile: profile,
	}
}

// Resolve merges configs with the following priority:
// CLI overrides > Profile > Global > Hardcoded defaults
func (r *ProfileResolver) Resolve(overrides Overrides) *ResolvedConfig {
	defaults := DefaultGlobalConfig()

	interval := CoalesceInt(r.global.Sync.IntervalSeconds, defaults.Sync.IntervalSeconds)
	interval = CoalesceInt(r.profile.IntervalSeconds, interval)
	interval = CoalesceInt(overrides.IntervalSeconds, interval)

	settings := r.profile.Settings(0)
	settings.Interval = time.Duration(interval) * time.Second

	settings.Filter.Exclude = MergeUnique(r.global.Sync.Exclude, settings.Filter.Exclude)
	if r.global.Sync.UseGitignore != nil && *r.global.Sync.UseGitignore {
		settings.Filter.UseGitignore = true
	}

	debounce := CoalesceInt(r.global.Sync.DebounceMillis, defaults.Sync.DebounceMillis)
	debounce = CoalesceInt(overrides.DebounceMillis, debounce)

	askTimeout := CoalesceInt(r.global.Sync.AskTimeoutSeconds, defaults.Sync.AskTimeoutSeconds)

	return &ResolvedConfig{
		Settings:     settings,
		Debounce:     time.Duration(debounce) * time.Millisecond,
		AskTimeout:   time.Duration(askTimeout) * time.Second,
		HistoryLimit: r.global.HistoryLimit(),
		LogLevel:     CoalesceString(overrides.LogLevel, CoalesceString(r.global.LogLevel, defaults.LogLevel)),
	}
}
