package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/illumination-k/pathmirror/pkg/sync/exclude"
	"github.com/illumination-k/pathmirror/pkg/sync/filter"
)

// TempFilePrefix marks in-flight copies, which are never catalogued
const TempFilePrefix = ".pathmirror-"

// Root is one registered location handed to the builder
type Root struct {
	Path  string
	IsDir bool
}

// FileRecord is one observed copy of a logical file under some root
type FileRecord struct {
	// Key correlates candidates across roots: the slash-separated path relative
	// to a directory root, or the basename of a file root
	Key string

	Path    string
	ModTime time.Time
	Size    int64

	// Root is the registered location the record was found under
	Root string
}

// Catalog maps identity keys to their candidates in root registration order
type Catalog map[string][]FileRecord

// Keys returns every identity key in sorted order
func (c Catalog) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Latest returns the candidate with the strictly greatest mtime for key.
// On equal mtimes the earliest registered root wins.
func (c Catalog) Latest(key string) (FileRecord, bool) {
	candidates := c[key]
	if len(candidates) == 0 {
		return FileRecord{}, false
	}

	latest := candidates[0]
	for _, rec := range candidates[1:] {
		if rec.ModTime.After(latest.ModTime) {
			latest = rec
		}
	}
	return latest, true
}

// Count returns the total number of candidates across all keys
func (c Catalog) Count() int {
	n := 0
	for _, candidates := range c {
		n += len(candidates)
	}
	return n
}

// Builder enumerates participating files under a set of roots
type Builder struct {
	fs     afero.Fs
	opts   filter.Options
	filter *filter.Filter
}

// NewBuilder creates a Builder that applies opts to every discovered file
func NewBuilder(fs afero.Fs, opts filter.Options) *Builder {
	return &Builder{
		fs:     fs,
		opts:   opts,
		filter: filter.New(opts),
	}
}

// Filter returns the file filter the builder applies
func (b *Builder) Filter() *filter.Filter {
	return b.filter
}

// Build walks every root and groups participating files by identity key.
// Roots are re-read on every call.
func (b *Builder) Build(roots []Root) (Catalog, error) {
	cat := make(Catalog)

	for _, root := range roots {
		if !root.IsDir {
			info, err := b.fs.Stat(root.Path)
			if err != nil {
				return nil, fmt.Errorf("failed to stat %s: %w", root.Path, err)
			}
			base := filepath.Base(root.Path)
			if !b.filter.Passes(root.Path, info.Size(), base) {
				continue
			}
			cat[base] = append(cat[base], FileRecord{
				Key:     base,
				Path:    root.Path,
				ModTime: info.ModTime(),
				Size:    info.Size(),
				Root:    root.Path,
			})
			continue
		}

		err := b.WalkTree(root.Path, func(rel string, info os.FileInfo) error {
			if info.IsDir() {
				return nil
			}
			key := filepath.ToSlash(rel)
			cat[key] = append(cat[key], FileRecord{
				Key:     key,
				Path:    filepath.Join(root.Path, rel),
				ModTime: info.ModTime(),
				Size:    info.Size(),
				Root:    root.Path,
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return cat, nil
}

// WalkFunc receives the path relative to the walked root and its file info
type WalkFunc func(rel string, info os.FileInfo) error

// Excludes returns the exclude manager for directory root
func (b *Builder) Excludes(root string) *exclude.Manager {
	return exclude.NewManager(b.fs, exclude.Config{
		BasePath:     root,
		Patterns:     b.opts.Exclude,
		UseGitignore: b.opts.UseGitignore,
	})
}

// WalkTree visits every non-excluded directory below root and every file that
// passes the filter, in lexical order. The root itself is not visited.
func (b *Builder) WalkTree(root string, fn WalkFunc) error {
	return b.walk(b.Excludes(root), root, root, fn)
}

// WalkSubtree is WalkTree restricted to dir, a directory inside root. Exclude
// patterns and reported paths stay relative to root.
func (b *Builder) WalkSubtree(root, dir string, fn WalkFunc) error {
	return b.walk(b.Excludes(root), root, dir, fn)
}

func (b *Builder) walk(excludes *exclude.Manager, root, dir string, fn WalkFunc) error {
	err := afero.Walk(b.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if excludes.ShouldExcludeDir(path) {
				return filepath.SkipDir
			}
			return fn(rel, info)
		}

		if !info.Mode().IsRegular() || strings.HasPrefix(info.Name(), TempFilePrefix) {
			return nil
		}
		if excludes.ShouldExclude(path) || !b.filter.Passes(path, info.Size(), info.Name()) {
			return nil
		}
		return fn(rel, info)
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	return nil
}
