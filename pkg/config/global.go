package config

import (
	"time"

	pathsync "github.com/illumination-k/pathmirror/pkg/sync"
	"github.com/illumination-k/pathmirror/pkg/sync/conflict"
)

// GlobalConfig represents global configuration for pathmirror
type GlobalConfig struct {
	LogLevel string           `yaml:"logLevel,omitempty"`
	History  HistoryConfig    `yaml:"history,omitempty"`
	Sync     GlobalSyncConfig `yaml:"sync,omitempty"`
}

// HistoryConfig holds history retention settings
type HistoryConfig struct {
	// Limit is the number of records kept per profile (0 = unbounded)
	Limit *int `yaml:"limit,omitempty"`
}

// GlobalSyncConfig holds defaults applied to every profile
type GlobalSyncConfig struct {
	IntervalSeconds   int      `yaml:"intervalSeconds,omitempty"`
	DebounceMillis    int      `yaml:"debounceMillis,omitempty"`
	AskTimeoutSeconds int      `yaml:"askTimeoutSeconds,omitempty"`
	UseGitignore      *bool    `yaml:"useGitignore,omitempty"`
	Exclude           []string `yaml:"exclude,omitempty"`
}

const DefaultHistoryLimit = 1000

// DefaultGlobalConfig returns a GlobalConfig with sensible defaults
func DefaultGlobalConfig() *GlobalConfig {
	limit := DefaultHistoryLimit
	useGitignore := false
	return &GlobalConfig{
		LogLevel: "info",
		History: HistoryConfig{
			Limit: &limit,
		},
		Sync: GlobalSyncConfig{
			IntervalSeconds:   int(pathsync.DefaultInterval / time.Second),
			DebounceMillis:    int(pathsync.DefaultDebounce / time.Millisecond),
			AskTimeoutSeconds: int(conflict.DefaultPromptTimeout / time.Second),
			UseGitignore:      &useGitignore,
			Exclude:           []string{}, // No default excludes
		},
	}
}

// Merge merges this config with another, with the other taking precedence
func (g *GlobalConfig) Merge(other *GlobalConfig) {
	if other.LogLevel != "" {
		g.LogLevel = other.LogLevel
	}
	// Limit is a *int so an explicit 0 (unbounded) can override the default
	if other.History.Limit != nil {
		g.History.Limit = other.History.Limit
	}
	if other.Sync.IntervalSeconds != 0 {
		g.Sync.IntervalSeconds = other.Sync.IntervalSeconds
	}
	if other.Sync.DebounceMillis != 0 {
		g.Sync.DebounceMillis = other.Sync.DebounceMillis
	}
	if other.Sync.AskTimeoutSeconds != 0 {
		g.Sync.AskTimeoutSeconds = other.Sync.AskTimeoutSeconds
	}
	if other.Sync.UseGitignore != nil {
		g.Sync.UseGitignore = other.Sync.UseGitignore
	}
	if len(other.Sync.Exclude) > 0 {
		g.Sync.Exclude = other.Sync.Exclude
	}
}

// HistoryLimit returns the configured history cap
func (g *GlobalConfig) HistoryLimit() int {
	if g.History.Limit == nil {
		return DefaultHistoryLimit
	}
	return max(*g.History.Limit, 0)
}
