package filter

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
)

var (
	// ErrInvalidSize is returned when a size bound cannot be parsed
	ErrInvalidSize = errors.New("file size must be a number of bytes")

	// ErrInvalidRange is returned when the minimum size exceeds the maximum size
	ErrInvalidRange = errors.New("minimum size exceeds maximum size")

	// ErrEmptyExtension is returned when an extension is blank after trimming
	ErrEmptyExtension = errors.New("extension cannot be empty")
)

// Options holds the filter configuration supplied by the caller
type Options struct {
	// Extensions is the allow-list of lowercase extensions without the leading dot.
	// An empty list means every extension is allowed.
	Extensions []string `yaml:"extensions,omitempty" json:"extensions,omitempty"`

	// MinSize is the minimum file size in bytes (0 = unbounded)
	MinSize int64 `yaml:"minSize,omitempty" json:"minSize,omitempty"`

	// MaxSize is the maximum file size in bytes (0 = unbounded)
	MaxSize int64 `yaml:"maxSize,omitempty" json:"maxSize,omitempty"`

	// ExcludeHidden skips files whose basename starts with "."
	ExcludeHidden bool `yaml:"excludeHidden" json:"excludeHidden"`

	// Exclude holds gitignore-style patterns applied under directory roots
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`

	// UseGitignore loads <root>/.gitignore for every directory root
	UseGitignore bool `yaml:"useGitignore,omitempty" json:"useGitignore,omitempty"`
}

// DefaultOptions returns the filter used when nothing is configured
func DefaultOptions() Options {
	return Options{ExcludeHidden: true}
}

// Validate checks that the options describe a usable filter
func (o Options) Validate() error {
	for _, ext := range o.Extensions {
		if NormalizeExtension(ext) == "" {
			return ErrEmptyExtension
		}
	}
	if o.MinSize < 0 || o.MaxSize < 0 {
		return ErrInvalidSize
	}
	if o.MinSize > 0 && o.MaxSize > 0 && o.MinSize > o.MaxSize {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange,
			humanize.IBytes(uint64(o.MinSize)), humanize.IBytes(uint64(o.MaxSize)))
	}
	return nil
}

// Clone returns a deep copy of the options
func (o Options) Clone() Options {
	c := o
	c.Extensions = append([]string(nil), o.Extensions...)
	c.Exclude = append([]string(nil), o.Exclude...)
	return c
}

// Describe renders the options as a single human-readable line
func (o Options) Describe() string {
	exts := "unrestricted"
	if len(o.Extensions) > 0 {
		exts = strings.Join(o.Extensions, ",")
	}

	minSize := "0"
	if o.MinSize > 0 {
		minSize = humanize.IBytes(uint64(o.MinSize))
	}
	maxSize := "∞"
	if o.MaxSize > 0 {
		maxSize = humanize.IBytes(uint64(o.MaxSize))
	}

	hidden := "no"
	if o.ExcludeHidden {
		hidden = "yes"
	}

	return fmt.Sprintf("extensions=%s size=%s-%s excludeHidden=%s", exts, minSize, maxSize, hidden)
}

// Filter decides whether a file participates in synchronization
type Filter struct {
	extensions    mapset.Set[string]
	minSize       int64
	maxSize       int64
	excludeHidden bool
}

// New creates a Filter from validated options
func New(opts Options) *Filter {
	exts := mapset.NewThreadUnsafeSet[string]()
	for _, ext := range opts.Extensions {
		exts.Add(NormalizeExtension(ext))
	}

	return &Filter{
		extensions:    exts,
		minSize:       opts.MinSize,
		maxSize:       opts.MaxSize,
		excludeHidden: opts.ExcludeHidden,
	}
}

// Passes reports whether a file with the given path, size and basename satisfies
// every active constraint
func (f *Filter) Passes(absPath string, size int64, basename string) bool {
	if basename == "" {
		basename = filepath.Base(absPath)
	}

	if f.extensions.Cardinality() > 0 {
		ext := Extension(basename)
		if ext == "" || !f.extensions.Contains(ext) {
			return false
		}
	}

	if f.minSize > 0 && size < f.minSize {
		return false
	}
	if f.maxSize > 0 && size > f.maxSize {
		return false
	}

	if f.excludeHidden && strings.HasPrefix(basename, ".") {
		return false
	}

	return true
}

// Extension returns the lowercase extension of basename without the leading dot.
// Names like ".bashrc" and "file." have no extension.
func Extension(basename string) string {
	name := strings.TrimLeft(basename, ".")
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeExtension lowercases ext and strips surrounding whitespace and a leading dot
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// ParseExtensions splits a comma-separated extension list
func ParseExtensions(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var exts []string
	for _, part := range strings.Split(s, ",") {
		ext := NormalizeExtension(part)
		if ext == "" {
			return nil, ErrEmptyExtension
		}
		exts = append(exts, ext)
	}
	return exts, nil
}

// ParseSize parses a size bound such as "512", "4KB" or "1MiB".
// An empty string means unbounded.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	return int64(n), nil
}
