package exclude

import (
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// Manager handles exclude pattern matching under one directory root
type Manager struct {
	gitignoreMatcher *ignore.GitIgnore
	basePath         string
	configPatterns   []string
}

// Config holds configuration for the exclude manager
type Config struct {
	// BasePath is the directory root the patterns are relative to
	BasePath string

	// Patterns are explicit exclude patterns (gitignore syntax)
	Patterns []string

	// UseGitignore enables loading <BasePath>/.gitignore
	UseGitignore bool
}

// NewManager creates a new exclude pattern manager
func NewManager(fs afero.Fs, cfg Config) *Manager {
	m := &Manager{
		basePath:       cfg.BasePath,
		configPatterns: cfg.Patterns,
	}

	if cfg.UseGitignore {
		data, err := afero.ReadFile(fs, filepath.Join(cfg.BasePath, ".gitignore"))
		if err == nil {
			// A missing or unreadable .gitignore leaves only the config patterns active
			m.gitignoreMatcher = ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...)
		}
	}

	return m
}

// Active reports whether any pattern source is configured
func (m *Manager) Active() bool {
	return m != nil && (len(m.configPatterns) > 0 || m.gitignoreMatcher != nil)
}

// ShouldExclude returns true if the file should be excluded from sync.
// absPath must be inside the manager's base path.
func (m *Manager) ShouldExclude(absPath string) bool {
	return m.excluded(absPath, false)
}

// ShouldExcludeDir returns true if the directory and everything below it should
// be skipped during traversal
func (m *Manager) ShouldExcludeDir(absPath string) bool {
	return m.excluded(absPath, true)
}

func (m *Manager) excluded(absPath string, isDir bool) bool {
	if !m.Active() {
		return false
	}

	relPath, err := filepath.Rel(m.basePath, absPath)
	if err != nil || relPath == "." || strings.HasPrefix(relPath, "..") {
		return false
	}

	// Config patterns take precedence
	if m.matchesConfigPatterns(relPath) {
		return true
	}

	if m.gitignoreMatcher == nil {
		return false
	}

	slashPath := filepath.ToSlash(relPath)
	if m.gitignoreMatcher.MatchesPath(slashPath) {
		return true
	}
	// Directory-only patterns ("build/") need the trailing slash to match
	return isDir && m.gitignoreMatcher.MatchesPath(slashPath+"/")
}

// matchesConfigPatterns checks if path matches any config pattern
func (m *Manager) matchesConfigPatterns(relPath string) bool {
	for _, pattern := range m.configPatterns {
		if m.matchPattern(pattern, relPath) {
			return true
		}
	}
	return false
}

// matchPattern matches a single gitignore-style pattern
func (m *Manager) matchPattern(pattern, path string) bool {
	path = filepath.ToSlash(path)

	// Directory-only patterns (ending with /)
	if strings.HasSuffix(pattern, "/") {
		dir := strings.TrimSuffix(pattern, "/")
		if path == dir || strings.HasPrefix(path, dir+"/") || strings.Contains(path, "/"+dir+"/") {
			return true
		}
		return false
	}

	// ** matches any directory depth
	if strings.Contains(pattern, "**") {
		pattern = strings.ReplaceAll(pattern, "**", "*")
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// A pattern also matches any single path component
	// (e.g., "node_modules" matches "foo/node_modules/bar")
	for _, part := range strings.Split(path, "/") {
		if matched, err := filepath.Match(pattern, part); err == nil && matched {
			return true
		}
	}

	return false
}
