package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/illumination-k/pathmirror/pkg/sync/catalog"
	"github.com/illumination-k/pathmirror/pkg/sync/conflict"
)

// HistoryRecorder receives the result of every executed pass
type HistoryRecorder interface {
	Record(result SyncResult) error
}

// Engine runs synchronization passes for one session
type Engine struct {
	fs       afero.Fs
	session  *Session
	resolver *conflict.Resolver
	history  []HistoryRecorder
	logger   *slog.Logger
	clock    clockwork.Clock

	// passMu serializes passes
	passMu sync.Mutex

	mu    sync.RWMutex
	state State
	last  *SyncResult

	// written maps destinations of the current or latest pass to the mtime they
	// were given, so watchers can tell the engine's own writes from external ones
	writtenMu sync.Mutex
	written   map[string]time.Time
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithFs replaces the filesystem the engine operates on
func WithFs(fs afero.Fs) EngineOption {
	return func(e *Engine) {
		e.fs = fs
	}
}

// WithResolver sets the conflict resolver used for file roots
func WithResolver(r *conflict.Resolver) EngineOption {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithHistory adds a recorder that receives every pass result. Recorders are
// called in the order they were added.
func WithHistory(h HistoryRecorder) EngineOption {
	return func(e *Engine) {
		if h != nil {
			e.history = append(e.history, h)
		}
	}
}

// WithLogger sets the engine logger
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces the clock used for result timestamps
func WithClock(c clockwork.Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// NewEngine creates an engine for session
func NewEngine(session *Session, opts ...EngineOption) *Engine {
	e := &Engine{
		fs:       afero.NewOsFs(),
		session:  session,
		resolver: conflict.NewResolver(),
		logger:   slog.Default(),
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Session returns the session the engine reads its settings from
func (e *Engine) Session() *Session {
	return e.session
}

// State returns the state of the most recent pass
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// LastResult returns the result of the most recent pass, or nil
func (e *Engine) LastResult() *SyncResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.last == nil {
		return nil
	}
	r := *e.last
	r.Paths = slices.Clone(e.last.Paths)
	return &r
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
}

func (e *Engine) resetWritten() {
	e.writtenMu.Lock()
	defer e.writtenMu.Unlock()
	e.written = make(map[string]time.Time)
}

func (e *Engine) markWritten(path string, mtime time.Time) {
	e.writtenMu.Lock()
	defer e.writtenMu.Unlock()
	if e.written == nil {
		e.written = make(map[string]time.Time)
	}
	e.written[path] = mtime
}

// WroteLast reports whether path still carries the mtime the engine gave it
// during the current or most recent pass
func (e *Engine) WroteLast(path string, mtime time.Time) bool {
	e.writtenMu.Lock()
	defer e.writtenMu.Unlock()
	written, ok := e.written[filepath.Clean(path)]
	return ok && written.Equal(mtime)
}

// Run executes one pass over a snapshot of the session settings.
//
// Fewer than two registered paths is a ConfigError and records nothing. Otherwise
// exactly one result is recorded; a failed pass returns both the result and the
// error that aborted it.
func (e *Engine) Run(ctx context.Context) (*SyncResult, error) {
	if !e.passMu.TryLock() {
		return nil, ErrPassInProgress
	}
	defer e.passMu.Unlock()

	settings := e.session.Snapshot()
	if len(settings.Paths) < 2 {
		return nil, configErrorf(ErrInsufficientPaths, "%d registered", len(settings.Paths))
	}

	e.setState(StateRunning)
	e.resetWritten()
	result := &SyncResult{
		ID:        uuid.NewString(),
		StartedAt: e.clock.Now(),
		Direction: settings.Direction,
		Paths:     slices.Clone(settings.Paths),
	}
	logger := e.logger.With("pass", result.ID[:8])
	logger.Info("sync started", "direction", string(settings.Direction), "paths", len(settings.Paths))

	p := &pass{
		ctx:      ctx,
		fs:       e.fs,
		settings: settings,
		builder:  catalog.NewBuilder(e.fs, settings.Filter),
		resolver: e.resolver,
		logger:   logger,
		onCopy:   e.markWritten,
	}
	err := p.run()

	result.FinishedAt = e.clock.Now()
	result.FileCount = p.copied
	if err != nil {
		result.Status = fmt.Sprintf("sync failed: %v", err)
		logger.Error("sync failed", "error", err, "files", p.copied)
	} else {
		result.Success = true
		result.Status = fmt.Sprintf("synced %d files", p.copied)
		logger.Info("sync completed", "files", p.copied, "duration", result.Duration())
	}

	for _, h := range e.history {
		if recErr := h.Record(*result); recErr != nil {
			logger.Warn("failed to record sync history", "error", recErr)
		}
	}

	e.mu.Lock()
	if err != nil {
		e.state = StateFailed
	} else {
		e.state = StateCompleted
	}
	e.last = result
	e.mu.Unlock()

	return result, err
}

// pass holds the state of one sync run
type pass struct {
	ctx      context.Context
	fs       afero.Fs
	settings Settings
	builder  *catalog.Builder
	resolver *conflict.Resolver
	logger   *slog.Logger
	onCopy   func(path string, mtime time.Time)

	copied int
}

func (p *pass) run() error {
	paths := make([]SyncPath, len(p.settings.Paths))
	for i, path := range p.settings.Paths {
		paths[i] = SyncPath{Path: path, Kind: ResolvePathKind(p.fs, path)}
	}

	if p.settings.Direction.OneWay() {
		return p.oneWay(paths)
	}
	return p.bidirectional(paths)
}

func (p *pass) checkCancelled() error {
	if err := p.ctx.Err(); err != nil {
		return fmt.Errorf("sync cancelled: %w", err)
	}
	return nil
}

func (p *pass) copy(src, dst string) error {
	if err := p.checkCancelled(); err != nil {
		return err
	}
	mtime, err := copyFile(p.fs, src, dst)
	if err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if p.onCopy != nil {
		p.onCopy(dst, mtime)
	}
	p.copied++
	p.logger.Info("file copied", "from", src, "to", dst)
	return nil
}

// oneWay copies from Paths[0] to Paths[1], or the reverse for DestToSource.
// Mixed or missing endpoints are a no-op.
func (p *pass) oneWay(paths []SyncPath) error {
	src, dst := paths[0], paths[1]
	if p.settings.Direction == DestToSource {
		src, dst = dst, src
	}

	switch {
	case src.Kind == KindFile && dst.Kind == KindFile:
		info, err := p.fs.Stat(src.Path)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", src.Path, err)
		}
		if !p.builder.Filter().Passes(src.Path, info.Size(), info.Name()) {
			return nil
		}
		return p.copy(src.Path, dst.Path)

	case src.Kind == KindDirectory && dst.Kind == KindDirectory:
		return p.mirrorTree(src.Path, dst.Path)

	default:
		return nil
	}
}

// mirrorTree copies every file under src that is missing or strictly older under
// dst. Files present only under dst are left alone.
func (p *pass) mirrorTree(src, dst string) error {
	return p.builder.WalkTree(src, func(rel string, info os.FileInfo) error {
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			if err := p.fs.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
			return nil
		}

		existing, err := p.fs.Stat(target)
		switch {
		case err == nil:
			if !info.ModTime().After(existing.ModTime()) {
				return nil
			}
		case !os.IsNotExist(err):
			return fmt.Errorf("failed to stat %s: %w", target, err)
		}

		return p.copy(filepath.Join(src, rel), target)
	})
}

// bidirectional reconciles every identity key across all registered paths.
// Directory roots always receive the newest candidate; file roots go through
// the configured conflict policy.
func (p *pass) bidirectional(paths []SyncPath) error {
	roots := make([]catalog.Root, 0, len(paths))
	for _, sp := range paths {
		if sp.Kind == KindMissing {
			p.logger.Warn("skipping missing path", "path", sp.Path)
			continue
		}
		roots = append(roots, catalog.Root{Path: sp.Path, IsDir: sp.Kind == KindDirectory})
	}

	cat, err := p.builder.Build(roots)
	if err != nil {
		return err
	}

	for _, key := range cat.Keys() {
		latest, _ := cat.Latest(key)

		for _, root := range roots {
			if root.IsDir {
				if err := p.updateDirectoryRoot(root.Path, key, latest); err != nil {
					return err
				}
				continue
			}

			if filepath.Base(root.Path) != key || root.Path == latest.Path {
				continue
			}
			if err := p.reconcileFileRoot(latest, root.Path); err != nil {
				return err
			}
		}
	}

	return nil
}

func (p *pass) updateDirectoryRoot(root, key string, latest catalog.FileRecord) error {
	target := filepath.Join(root, filepath.FromSlash(key))
	if target == latest.Path {
		return nil
	}

	existing, err := p.fs.Stat(target)
	switch {
	case err == nil:
		if existing.IsDir() {
			p.logger.Warn("skipping file that collides with a directory", "path", target)
			return nil
		}
		if !latest.ModTime.After(existing.ModTime()) {
			return nil
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("failed to stat %s: %w", target, err)
	}

	return p.copy(latest.Path, target)
}

// reconcileFileRoot resolves the newest candidate against a standalone file root
func (p *pass) reconcileFileRoot(winner catalog.FileRecord, path string) error {
	src, err := conflict.Stat(p.fs, winner.Path)
	if err != nil {
		p.logger.Warn("skipping stale entry", "error", err)
		return nil
	}
	dst, err := conflict.Stat(p.fs, path)
	if err != nil {
		p.logger.Warn("skipping stale entry", "error", err)
		return nil
	}
	if src.Identical(dst) {
		return nil
	}

	decision, err := p.resolver.Resolve(p.ctx, p.settings.Policy, src, dst)
	if err != nil {
		if ctxErr := p.checkCancelled(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, conflict.ErrPromptTimeout) {
			p.logger.Warn("conflict prompt timed out, skipping", "source", src.Path, "destination", dst.Path)
			return nil
		}
		p.logger.Warn("conflict skipped", "source", src.Path, "destination", dst.Path, "error", err)
		return nil
	}

	switch decision {
	case conflict.SourceWins:
		return p.copy(src.Path, dst.Path)
	case conflict.DestinationWins:
		return p.copy(dst.Path, src.Path)
	default:
		p.logger.Info("conflict skipped", "source", src.Path, "destination", dst.Path)
		return nil
	}
}
